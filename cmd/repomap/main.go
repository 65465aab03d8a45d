package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
)

// CLI flags parsed from command line.
type cliFlags struct {
	Root    string
	Config  string
	Addr    string
	Upload  bool
	Force   bool
	Verbose bool
}

// version is set with -ldflags at build time.
var version = "dev"

const usage = `usage: repomap [flags] <command> [args]

commands:
  init               write repomap.yml and register the MCP server in .mcp.json
  index              describe files, link http calls, summarize directories
  status             show index coverage per repository and the next step
  link               rerun the http link pass over indexed files
  graph              write the dependency graph (and Mermaid, if configured)
  services           write the service call graph
  ask <question>     answer a question from the index
  summary [repo]     summarize one repository, or the whole system
  serve-mcp          serve the tools over stdio (or --addr for HTTP)
  version            print version and exit
`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	var flags cliFlags

	fs := flag.NewFlagSet("repomap", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprint(stderr, usage, "\nflags:\n")
		fs.PrintDefaults()
	}
	fs.StringVar(&flags.Root, "root", "", "directory containing one subdirectory per repository (overrides config)")
	fs.StringVar(&flags.Config, "config", ".", "directory holding repomap.yml and .env")
	fs.StringVar(&flags.Addr, "addr", "", "serve-mcp: listen address for streamable HTTP instead of stdio")
	fs.BoolVar(&flags.Upload, "upload", false, "graph, services: upload written files to the configured bucket")
	fs.BoolVar(&flags.Force, "force", false, "init: overwrite existing files")
	fs.BoolVar(&flags.Verbose, "verbose", false, "enable debug logging")

	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return fmt.Errorf("missing command")
	}
	cmd, rest := fs.Arg(0), fs.Args()[1:]

	switch cmd {
	case "version":
		fmt.Fprintln(stdout, version)
		return nil
	case "init":
		return runInit(flags.Config, flags.Force, stdout)
	}

	a, err := newApp(ctx, flags, stdout, stderr)
	if err != nil {
		return err
	}
	defer a.Close()

	switch cmd {
	case "index":
		return a.runIndex(ctx)
	case "status":
		return a.runStatus(ctx)
	case "link":
		return a.runLink(ctx)
	case "graph":
		return a.runGraph(ctx, flags.Upload)
	case "services":
		return a.runServices(ctx, flags.Upload)
	case "ask":
		return a.runAsk(ctx, rest)
	case "summary":
		return a.runSummary(ctx, rest)
	case "serve-mcp":
		return a.runServeMCP(ctx, flags.Addr)
	default:
		fs.Usage()
		return fmt.Errorf("unknown command %q", cmd)
	}
}
