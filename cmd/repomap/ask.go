package main

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/dusk-indust/repomap/internal/mcptools"
	"github.com/dusk-indust/repomap/internal/retrieve"
	"github.com/dusk-indust/repomap/internal/walk"
)

func (a *app) retriever() *retrieve.Retriever {
	return &retrieve.Retriever{
		Store:    a.store,
		Embedder: a.emb,
		Gen:      a.gen,
		K:        a.cfg.RetrieverK,
		Logger:   a.logger,
	}
}

func (a *app) runAsk(ctx context.Context, args []string) error {
	question := strings.TrimSpace(strings.Join(args, " "))
	if question == "" {
		return fmt.Errorf("usage: repomap ask <question>")
	}
	answer, sources, err := a.retriever().Answer(ctx, question)
	if err != nil {
		return err
	}
	fmt.Fprintln(a.stdout, answer)
	fmt.Fprintln(a.stdout)
	fmt.Fprintln(a.stdout, "Sources:")
	for _, s := range sources {
		fmt.Fprintf(a.stdout, "  [%s] %s (%.3f)\n", s.Type, s.Path, s.Score)
	}
	return nil
}

func (a *app) runSummary(ctx context.Context, args []string) error {
	r := a.retriever()
	if len(args) > 0 {
		repo := filepath.Join(a.cfg.Root, args[0])
		if !walk.IsRepoDir(a.cfg.Root, repo) {
			return fmt.Errorf("%s is not a repository under %s", args[0], a.cfg.Root)
		}
		text, err := r.RepoSummary(ctx, repo)
		if err != nil {
			return err
		}
		fmt.Fprintln(a.stdout, text)
		return nil
	}

	repos := walk.New(a.cfg.Root, a.cfg.ExcludeDirs...).Repos()
	if len(repos) == 0 {
		return fmt.Errorf("no repositories under %s", a.cfg.Root)
	}
	text, err := r.SystemOverview(ctx, repos)
	if err != nil {
		return err
	}
	fmt.Fprintln(a.stdout, text)
	return nil
}

func (a *app) runServeMCP(ctx context.Context, addr string) error {
	pc := a.cfg.PipelineConfig()
	pc.Logger = a.logger
	svc := mcptools.NewRepoMapService(mcptools.ServiceConfig{
		Pipeline:  pc,
		GraphPath: a.cfg.Output.Graph,
		Version:   version,
		K:         a.cfg.RetrieverK,
		Logger:    a.logger,
	}, a.store, a.parser, a.gen, a.emb)
	server := mcptools.NewRepoMapMCPServer(svc)

	if addr != "" {
		a.logger.Info("mcp.listen", "addr", addr)
		return mcptools.RunHTTP(ctx, server, addr)
	}
	return mcptools.RunStdio(ctx, server)
}
