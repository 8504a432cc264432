// cmd/schedctl/main.go — CLI root. Dispatches to subcommand handlers.
package main

import (
	"fmt"
	"os"
)

const usage = "Usage: schedctl <list|show|create|trigger|pause|resume|history|stats> [options]"

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(1)
	}

	switch os.Args[1] {
	case "list":
		runList(os.Args[2:])
	case "show":
		runShow(os.Args[2:])
	case "create":
		runCreate(os.Args[2:])
	case "trigger":
		runTrigger(os.Args[2:])
	case "pause":
		runPause(os.Args[2:])
	case "resume":
		runResume(os.Args[2:])
	case "history":
		runHistory(os.Args[2:])
	case "stats":
		runStats(os.Args[2:])
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %q\n", os.Args[1])
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(1)
	}
}
