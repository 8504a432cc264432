// cmd/schedctl/create.go — schedctl create subcommand.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"
)

func runCreate(args []string) {
	fs := flag.NewFlagSet("create", flag.ExitOnError)
	server := fs.String("server", serverAddr(), "admin API address")
	name := fs.String("name", "", "job name (required)")
	kind := fs.String("kind", "", "job kind (required)")
	spec := fs.String("schedule", "", "cron schedule, five fields (required)")
	params := fs.String("params", "{}", "JSON parameters passed to the executor")
	retries := fs.Int("max-retries", 0, "retry attempts after the first failure")
	timeout := fs.Int("timeout", 0, "execution timeout in seconds (0 = server default)")
	priority := fs.Int("priority", 0, "dispatch priority, higher first")
	tags := fs.String("tags", "", "comma-separated tags")
	paused := fs.Bool("paused", false, "create the job disabled")
	_ = fs.Parse(args)

	if *name == "" || *kind == "" || *spec == "" {
		fmt.Fprintln(os.Stderr, "Usage: schedctl create --name n --kind k --schedule \"*/5 * * * *\" [options]")
		os.Exit(1)
	}
	if !json.Valid([]byte(*params)) {
		fatal("create", fmt.Errorf("--params is not valid JSON"))
	}

	enabled := !*paused
	body := map[string]any{
		"name":            *name,
		"kind":            *kind,
		"schedule":        *spec,
		"params":          json.RawMessage(*params),
		"enabled":         enabled,
		"max_retries":     *retries,
		"timeout_seconds": *timeout,
		"priority":        *priority,
	}
	if *tags != "" {
		body["tags"] = strings.Split(*tags, ",")
	}

	var j jobView
	if err := newClient(*server).post("/v1/jobs", body, &j); err != nil {
		fatal("create", err)
	}

	fmt.Printf("created job %s (%s)\n", j.ID, j.Name)
	if j.NextDueAt != nil {
		fmt.Printf("first due at %s\n", j.NextDueAt)
	}
}
