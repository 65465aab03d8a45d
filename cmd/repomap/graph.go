package main

import (
	"context"
	"fmt"

	"github.com/dusk-indust/repomap/internal/config"
	"github.com/dusk-indust/repomap/internal/export"
)

func (a *app) runGraph(ctx context.Context, upload bool) error {
	g, err := export.Assemble(ctx, a.store, a.cfg.Root, version)
	if err != nil {
		return fmt.Errorf("assemble graph: %w", err)
	}
	if err := export.WriteJSON(a.cfg.Output.Graph, g); err != nil {
		return err
	}
	written := []string{a.cfg.Output.Graph}
	fmt.Fprintf(a.stdout, "wrote %s (%d nodes, %d edges)\n", a.cfg.Output.Graph, len(g.Nodes), len(g.Edges))

	if path := a.cfg.Output.Mermaid; path != "" {
		if err := export.WriteFile(path, []byte(export.GenerateMermaid(g))); err != nil {
			return fmt.Errorf("write mermaid: %w", err)
		}
		written = append(written, path)
		fmt.Fprintf(a.stdout, "wrote %s\n", path)
	}

	if upload {
		return a.upload(ctx, written)
	}
	return nil
}

func (a *app) runServices(ctx context.Context, upload bool) error {
	sg, err := export.ServiceGraphFromStore(ctx, a.store, a.cfg.Root, version)
	if err != nil {
		return fmt.Errorf("build service graph: %w", err)
	}
	if err := export.WriteJSON(a.cfg.Output.Services, sg); err != nil {
		return err
	}
	fmt.Fprintf(a.stdout, "wrote %s (%d services, %d calls)\n", a.cfg.Output.Services, len(sg.Nodes), len(sg.Edges))

	if upload {
		return a.upload(ctx, []string{a.cfg.Output.Services})
	}
	return nil
}

func (a *app) upload(ctx context.Context, files []string) error {
	access, secret := config.S3Credentials()
	art := a.cfg.Artifact
	up, err := export.NewS3Uploader(export.S3Config{
		Endpoint:  art.Endpoint,
		Region:    art.Region,
		AccessKey: access,
		SecretKey: secret,
		Bucket:    art.Bucket,
		Prefix:    art.Prefix,
		UseSSL:    art.UseSSL,
	})
	if err != nil {
		return err
	}
	for _, f := range files {
		key, err := up.Upload(ctx, f)
		if err != nil {
			return err
		}
		a.logger.Info("artifact.upload", "file", f, "bucket", art.Bucket, "key", key)
		fmt.Fprintf(a.stdout, "uploaded s3://%s/%s\n", art.Bucket, key)
	}
	return nil
}
