package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/dusk-indust/repomap/internal/config"
)

// mcpConfig represents the structure of a .mcp.json file.
type mcpConfig struct {
	MCPServers map[string]json.RawMessage `json:"mcpServers"`
}

// repomapMCPEntry is the MCP server configuration for the repomap binary.
var repomapMCPEntry = json.RawMessage(`{
  "type": "stdio",
  "command": "repomap",
  "args": ["serve-mcp"]
}`)

// runInit writes a default repomap.yml and registers the MCP server in
// .mcp.json inside dir.
func runInit(dir string, force bool, stdout io.Writer) error {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return fmt.Errorf("resolving config dir: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return err
	}

	cfgPath := filepath.Join(abs, "repomap.yml")
	if _, err := os.Stat(cfgPath); err == nil && !force {
		fmt.Fprintf(stdout, "  skipped %s (exists, use --force to overwrite)\n", dotRelative(abs, cfgPath))
	} else {
		if err := config.Default().Save(cfgPath); err != nil {
			return err
		}
		fmt.Fprintf(stdout, "  created %s\n", dotRelative(abs, cfgPath))
	}

	if err := mergeMCPConfig(filepath.Join(abs, ".mcp.json"), force, stdout); err != nil {
		return err
	}

	fmt.Fprintln(stdout, "\nSetup complete. Run 'repomap index' to build the index.")
	return nil
}

// mergeMCPConfig creates or merges the repomap entry into .mcp.json.
func mergeMCPConfig(mcpPath string, force bool, stdout io.Writer) error {
	var cfg mcpConfig

	data, err := os.ReadFile(mcpPath)
	if err == nil {
		if err := json.Unmarshal(data, &cfg); err != nil {
			return fmt.Errorf("parsing %s: %w", mcpPath, err)
		}
	}

	if cfg.MCPServers == nil {
		cfg.MCPServers = make(map[string]json.RawMessage)
	}

	if _, exists := cfg.MCPServers["repomap"]; exists && !force {
		fmt.Fprintf(stdout, "  skipped .mcp.json repomap entry (exists, use --force to overwrite)\n")
		return nil
	}

	cfg.MCPServers["repomap"] = repomapMCPEntry

	out, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling .mcp.json: %w", err)
	}

	if err := os.WriteFile(mcpPath, append(out, '\n'), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", mcpPath, err)
	}

	action := "created"
	if data != nil {
		action = "updated"
	}
	fmt.Fprintf(stdout, "  %s .mcp.json with repomap MCP server\n", action)
	return nil
}

// dotRelative returns a display path relative to base, prefixed with "./".
func dotRelative(base, path string) string {
	rel, err := filepath.Rel(base, path)
	if err != nil {
		return path
	}
	return "./" + rel
}
