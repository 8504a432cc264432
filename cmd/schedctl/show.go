// cmd/schedctl/show.go — schedctl show subcommand.
package main

import (
	"flag"
	"fmt"
	"os"
)

func runShow(args []string) {
	fs := flag.NewFlagSet("show", flag.ExitOnError)
	server := fs.String("server", serverAddr(), "admin API address")
	_ = fs.Parse(args)

	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Usage: schedctl show [--server addr] <job_id>")
		os.Exit(1)
	}
	jobID := fs.Arg(0)

	var j jobView
	if err := newClient(*server).get("/v1/jobs/"+jobID, &j); err != nil {
		fatal("show", err)
	}

	fmt.Printf("id:           %s\n", j.ID)
	fmt.Printf("name:         %s\n", j.Name)
	fmt.Printf("kind:         %s\n", j.Kind)
	fmt.Printf("schedule:     %s\n", j.Schedule)
	fmt.Printf("params:       %s\n", string(j.Params))
	fmt.Printf("enabled:      %t\n", j.Enabled)
	fmt.Printf("max_retries:  %d\n", j.MaxRetries)
	fmt.Printf("timeout:      %ds\n", j.TimeoutSec)
	fmt.Printf("priority:     %d\n", j.Priority)
	if len(j.Tags) > 0 {
		fmt.Printf("tags:         %v\n", j.Tags)
	}
	if j.NextDueAt != nil {
		fmt.Printf("next_due_at:  %s\n", j.NextDueAt)
	}
	if j.LastRunAt != nil {
		fmt.Printf("last_run_at:  %s\n", j.LastRunAt)
	}
}
