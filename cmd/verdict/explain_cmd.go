package main

import (
	"context"
	"flag"
	"fmt"
	"io"
)

func runExplain(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("explain", flag.ContinueOnError)
	fs.SetOutput(stderr)
	specPath := fs.String("spec", "", "path to the scenario spec (.yaml or .json)")
	factsPath := fs.String("facts", "", "optional JSON file of asserted facts for the static provider")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *specPath == "" {
		fmt.Fprintln(stderr, "explain: -spec is required")
		return 2
	}

	res, err := evaluate(context.Background(), *specPath, *factsPath)
	if err != nil {
		fmt.Fprintf(stderr, "explain: %v\n", err)
		return 1
	}
	fmt.Fprintf(stdout, "run %s: %s (%s)\n", res.RunID, res.State, res.Outcome)
	if res.Reason != "" {
		fmt.Fprintf(stdout, "reason: %s\n", res.Reason)
	}
	if res.Plan != nil {
		fmt.Fprintln(stdout, res.Plan.Explain())
	}
	return 0
}
