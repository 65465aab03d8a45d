package main

import (
	"context"
	"fmt"

	"github.com/dusk-indust/repomap/internal/status"
)

func (a *app) runStatus(ctx context.Context) error {
	st, err := status.Get(ctx, a.store, a.cfg.Root, a.cfg.ExcludeDirs, status.Outputs{
		Graph:    a.cfg.Output.Graph,
		Services: a.cfg.Output.Services,
	})
	if err != nil {
		return err
	}

	fmt.Fprintf(a.stdout, "Root: %s\n\n", st.Root)
	if len(st.Repos) == 0 {
		fmt.Fprintln(a.stdout, "No repositories found.")
		fmt.Fprintln(a.stdout, "Point --root at a directory with one subdirectory per repository.")
		return nil
	}

	for _, rs := range st.Repos {
		label := "pending"
		if rs.Indexed {
			label = "indexed"
		}
		fmt.Fprintf(a.stdout, "  %-24s %4d files %4d dirs  [%s]\n", rs.Name, rs.Files, rs.Dirs, label)
	}
	fmt.Fprintln(a.stdout)
	printStepTable(a, st)
	return nil
}

func printStepTable(a *app, st status.IndexStatus) {
	for _, si := range st.Steps {
		marker := "  "
		label := "pending"
		if si.Complete {
			label = "complete"
		}
		if si.Step == st.NextStep {
			marker = "->"
			label = "next"
		}
		fmt.Fprintf(a.stdout, "  %s Step %d: %-18s [%s]\n", marker, si.Step, si.Name, label)
	}

	if st.NextStep == -1 {
		fmt.Fprintln(a.stdout, "  All steps complete.")
	}
}
