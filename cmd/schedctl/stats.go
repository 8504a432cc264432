// cmd/schedctl/stats.go — schedctl stats subcommand.
package main

import (
	"flag"
	"fmt"
)

func runStats(args []string) {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	server := fs.String("server", serverAddr(), "admin API address")
	_ = fs.Parse(args)

	client := newClient(*server)

	var inst struct {
		InstanceID string `json:"instance_id"`
	}
	if err := client.get("/v1/instance", &inst); err != nil {
		fatal("stats", err)
	}

	var stats struct {
		Acquired int64 `json:"acquired"`
		Released int64 `json:"released"`
		Expired  int64 `json:"expired"`
	}
	if err := client.get("/v1/locks/stats", &stats); err != nil {
		fatal("stats", err)
	}

	fmt.Printf("instance:        %s\n", inst.InstanceID)
	fmt.Printf("locks acquired:  %d\n", stats.Acquired)
	fmt.Printf("locks released:  %d\n", stats.Released)
	fmt.Printf("locks expired:   %d\n", stats.Expired)
}
