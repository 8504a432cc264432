// cmd/schedctl/list.go — schedctl list subcommand.
package main

import (
	"flag"
	"fmt"
)

func runList(args []string) {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	server := fs.String("server", serverAddr(), "admin API address")
	_ = fs.Parse(args)

	var jobs []jobView
	if err := newClient(*server).get("/v1/jobs", &jobs); err != nil {
		fatal("list", err)
	}

	if len(jobs) == 0 {
		fmt.Println("no jobs defined")
		return
	}

	fmt.Printf("%-36s  %-24s  %-13s  %-16s  %4s  %-7s  %s\n",
		"ID", "NAME", "KIND", "SCHEDULE", "PRIO", "STATE", "NEXT DUE")
	for _, j := range jobs {
		state := "active"
		if !j.Enabled {
			state = "paused"
		}
		next := "-"
		if j.NextDueAt != nil {
			next = j.NextDueAt.Format("2006-01-02 15:04:05Z07:00")
		}
		fmt.Printf("%-36s  %-24s  %-13s  %-16s  %4d  %-7s  %s\n",
			j.ID, j.Name, j.Kind, j.Schedule, j.Priority, state, next)
	}
}
