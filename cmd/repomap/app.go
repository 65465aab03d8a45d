package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"

	"github.com/dusk-indust/repomap/internal/config"
	"github.com/dusk-indust/repomap/internal/graph"
	"github.com/dusk-indust/repomap/internal/llm"
)

// app holds the collaborators shared by all commands.
type app struct {
	cfg    *config.ProjectConfig
	logger *slog.Logger
	stdout io.Writer
	stderr io.Writer
	store  graph.Store
	parser *graph.TreeSitterParser
	gen    llm.TextGenerator
	emb    llm.Embedder
}

func newApp(ctx context.Context, flags cliFlags, stdout, stderr io.Writer) (*app, error) {
	cfg, err := config.Load(flags.Config)
	if err != nil {
		return nil, err
	}
	if flags.Root != "" {
		cfg.Root = flags.Root
	}
	if cfg.Root, err = filepath.Abs(cfg.Root); err != nil {
		return nil, fmt.Errorf("resolve root: %w", err)
	}

	level := slog.LevelInfo
	if flags.Verbose || cfg.Verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))

	llmCfg := cfg.LLMSettings()
	llmCfg.Logger = logger
	gen, err := llm.NewTextGenerator(ctx, llmCfg)
	if err != nil {
		return nil, err
	}
	emb, err := llm.NewEmbedder(ctx, llmCfg)
	if err != nil {
		return nil, err
	}

	store, err := graph.OpenStore(ctx, cfg.Store.Backend, cfg.Store.Path)
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", cfg.Store.Backend, err)
	}
	logger.Debug("store.open", "backend", cfg.Store.Backend, "path", cfg.Store.Path)

	return &app{
		cfg:    cfg,
		logger: logger,
		stdout: stdout,
		stderr: stderr,
		store:  store,
		parser: graph.NewTreeSitterParser(graph.WithHTTPClients(cfg.HTTPClients...)),
		gen:    gen,
		emb:    emb,
	}, nil
}

func (a *app) Close() {
	a.parser.Close()
	if err := a.store.Close(); err != nil {
		a.logger.Warn("store.close", "error", err)
	}
}
