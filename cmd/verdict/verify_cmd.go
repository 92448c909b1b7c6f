package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/verdict-labs/verdict/pkg/runpack"
)

func runVerify(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("verify", flag.ContinueOnError)
	fs.SetOutput(stderr)
	packPath := fs.String("pack", "", "path to a sealed runpack JSON file")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *packPath == "" {
		fmt.Fprintln(stderr, "verify: -pack is required")
		return 2
	}

	raw, err := os.ReadFile(*packPath)
	if err != nil {
		fmt.Fprintf(stderr, "verify: %v\n", err)
		return 1
	}
	p, err := runpack.Decode(raw)
	if err != nil {
		fmt.Fprintf(stderr, "verify: %v\n", err)
		return 1
	}

	idx, err := runpack.Verify(p)
	if err != nil {
		fmt.Fprintf(stdout, "FAIL run=%s scenario=%s: step %d: %v\n",
			p.RunID, p.ScenarioID, idx, err)
		return 1
	}
	fmt.Fprintf(stdout, "OK run=%s scenario=%s steps=%d fingerprint=%s\n",
		p.RunID, p.ScenarioID, len(p.Steps), p.Fingerprint)
	return 0
}
