package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/dusk-indust/repomap/internal/pipeline"
)

func (a *app) newPipeline(progress *pipeline.ProgressReporter) (*pipeline.Pipeline, error) {
	pc := a.cfg.PipelineConfig()
	pc.Logger = a.logger
	pc.Progress = progress
	return pipeline.New(pc, a.parser, a.store, a.gen, a.emb)
}

// printProgress drains progress until it is closed. The returned channel
// is closed once every event has been written.
func (a *app) printProgress(progress *pipeline.ProgressReporter) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		for ev := range progress.Subscribe() {
			fmt.Fprintln(a.stderr, pipeline.FormatProgress(ev))
		}
	}()
	return done
}

func (a *app) runIndex(ctx context.Context) error {
	progress := pipeline.NewProgressReporter()
	p, err := a.newPipeline(progress)
	if err != nil {
		return err
	}
	done := a.printProgress(progress)
	st, runErr := p.Run(ctx)
	progress.Close()
	<-done
	if runErr != nil {
		return fmt.Errorf("index %s: %w", p.Root(), runErr)
	}
	return a.printJSON(st)
}

func (a *app) runLink(ctx context.Context) error {
	p, err := a.newPipeline(nil)
	if err != nil {
		return err
	}
	var st pipeline.Stats
	if err := p.LinkHTTP(ctx, &st); err != nil {
		return fmt.Errorf("link: %w", err)
	}
	fmt.Fprintf(a.stdout, "relinked %d files\n", st.Relinked)
	return nil
}

func (a *app) printJSON(v any) error {
	enc := json.NewEncoder(a.stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
