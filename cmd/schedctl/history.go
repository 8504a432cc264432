// cmd/schedctl/history.go — schedctl history subcommand.
package main

import (
	"flag"
	"fmt"
	"os"
)

func runHistory(args []string) {
	fs := flag.NewFlagSet("history", flag.ExitOnError)
	server := fs.String("server", serverAddr(), "admin API address")
	limit := fs.Int("limit", 20, "number of executions to show")
	_ = fs.Parse(args)

	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Usage: schedctl history [--server addr] [--limit n] <job_id>")
		os.Exit(1)
	}
	jobID := fs.Arg(0)

	var execs []executionView
	path := fmt.Sprintf("/v1/jobs/%s/executions?limit=%d", jobID, *limit)
	if err := newClient(*server).get(path, &execs); err != nil {
		fatal("history", err)
	}

	if len(execs) == 0 {
		fmt.Printf("no execution history for job %s\n", jobID)
		return
	}

	fmt.Printf("execution history for job %s (%d shown):\n\n", jobID, len(execs))
	for _, e := range execs {
		fmt.Printf("  execution_id:  %s\n", e.ID)
		fmt.Printf("  status:        %s\n", e.Status)
		fmt.Printf("  instance:      %s\n", e.InstanceID)
		fmt.Printf("  started_at:    %s\n", e.StartedAt)
		if e.CompletedAt != nil {
			fmt.Printf("  completed_at:  %s\n", e.CompletedAt)
			fmt.Printf("  duration_ms:   %d\n", e.DurationMS)
		}
		if e.RetryCount > 0 {
			fmt.Printf("  retries:       %d\n", e.RetryCount)
		}
		if e.Error != nil {
			fmt.Printf("  error:         %s\n", *e.Error)
		}
		fmt.Println()
	}
}
