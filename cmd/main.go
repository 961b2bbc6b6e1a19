package main

import (
	"fmt"
	"io"
	"os"
)

// Version is set at build time via -ldflags.
// Example: go build -ldflags="-X main.Version=v0.1.0" ./cmd
var Version = "dev"

const usage = `diffcore - parse unified, git, svn and hg diffs into structured change sets

Usage:
  diffcore <command> [options]

Commands:
  parse [file|-]     Parse a diff and print its changes
  list               List stored diffs
  show <id>          Show a stored diff
  delete <id>        Delete a stored diff
  serve              Start the HTTP/WebSocket parse server
  watch [file]       Poll a diff file and print each new version
  metrics            Show parse metrics from a running server
  init               Write a default config file
  version            Print the version
Run 'diffcore <command> --help' for more information on a command.
`

func main() {
	os.Exit(run(os.Args, os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	if len(args) < 2 {
		fmt.Fprint(stdout, usage)
		return 0
	}

	switch args[1] {
	case "parse":
		return runParse(args[2:], os.Stdin, stdout, stderr)
	case "list":
		return runList(args[2:], stdout, stderr)
	case "show":
		return runShow(args[2:], stdout, stderr)
	case "delete":
		return runDelete(args[2:], stdout, stderr)
	case "serve":
		return runServe(args[2:], stdout, stderr)
	case "watch":
		return runWatch(args[2:], stdout, stderr)
	case "metrics":
		return runMetrics(args[2:], stdout, stderr)
	case "init":
		return runInit(args[2:], stdout, stderr)
	case "--help", "-h", "help":
		fmt.Fprint(stdout, usage)
		return 0
	case "--version", "-v", "version":
		fmt.Fprintf(stdout, "diffcore %s\n", Version)
		return 0
	default:
		fmt.Fprintf(stdout, "Unknown command: %s\n", args[1])
		fmt.Fprint(stdout, usage)
		return 1
	}
}
