// Command verdict evaluates scenario specs and works with sealed runpacks.
//
//	verdict eval -spec spec.yaml [-facts facts.json]
//	verdict verify -pack run.json
//	verdict explain -spec spec.yaml [-facts facts.json]
package main

import (
	"fmt"
	"io"
	"os"
)

func main() {
	os.Exit(Run(os.Args, os.Stdout, os.Stderr))
}

// Run dispatches subcommands; split out for testing.
func Run(args []string, stdout, stderr io.Writer) int {
	if len(args) < 2 {
		usage(stderr)
		return 2
	}
	switch args[1] {
	case "eval":
		return runEval(args[2:], stdout, stderr)
	case "verify":
		return runVerify(args[2:], stdout, stderr)
	case "explain":
		return runExplain(args[2:], stdout, stderr)
	case "help", "-h", "--help":
		usage(stdout)
		return 0
	default:
		fmt.Fprintf(stderr, "unknown command %q\n", args[1])
		usage(stderr)
		return 2
	}
}

func usage(w io.Writer) {
	fmt.Fprintln(w, "usage: verdict <command> [flags]")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "commands:")
	fmt.Fprintln(w, "  eval     evaluate a scenario spec and print the result")
	fmt.Fprintln(w, "  verify   check a sealed runpack's hash chain")
	fmt.Fprintln(w, "  explain  evaluate and print the requirement tree traversal")
}
