// cmd/schedctl/pause.go — schedctl pause and resume subcommands.
package main

import (
	"flag"
	"fmt"
	"os"
)

func runPause(args []string) {
	togglePause("pause", args)
}

func runResume(args []string) {
	togglePause("resume", args)
}

func togglePause(cmd string, args []string) {
	fs := flag.NewFlagSet(cmd, flag.ExitOnError)
	server := fs.String("server", serverAddr(), "admin API address")
	_ = fs.Parse(args)

	if fs.NArg() < 1 {
		fmt.Fprintf(os.Stderr, "Usage: schedctl %s [--server addr] <job_id>\n", cmd)
		os.Exit(1)
	}
	jobID := fs.Arg(0)

	if err := newClient(*server).post("/v1/jobs/"+jobID+"/"+cmd, nil, nil); err != nil {
		fatal(cmd, err)
	}
	fmt.Printf("%sd job %s\n", cmd, jobID)
}
