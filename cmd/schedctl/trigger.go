// cmd/schedctl/trigger.go — schedctl trigger subcommand.
package main

import (
	"flag"
	"fmt"
	"os"
)

func runTrigger(args []string) {
	fs := flag.NewFlagSet("trigger", flag.ExitOnError)
	server := fs.String("server", serverAddr(), "admin API address")
	_ = fs.Parse(args)

	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Usage: schedctl trigger [--server addr] <job_id>")
		os.Exit(1)
	}
	jobID := fs.Arg(0)

	var resp struct {
		ExecutionID string `json:"execution_id"`
	}
	if err := newClient(*server).post("/v1/jobs/"+jobID+"/trigger", nil, &resp); err != nil {
		fatal("trigger", err)
	}

	fmt.Printf("triggered job %s, execution %s\n", jobID, resp.ExecutionID)
}
