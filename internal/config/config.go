package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/dusk-indust/repomap/internal/graph"
	"github.com/dusk-indust/repomap/internal/llm"
	"github.com/dusk-indust/repomap/internal/pipeline"
	"github.com/dusk-indust/repomap/internal/retrieve"
)

// StoreConfig selects the node store backend.
type StoreConfig struct {
	Backend string `yaml:"backend,omitempty"`
	Path    string `yaml:"path,omitempty"`
}

// LLMConfig selects the text generator and embedder.
type LLMConfig struct {
	Provider      string  `yaml:"provider,omitempty"`
	Model         string  `yaml:"model,omitempty"`
	BaseURL       string  `yaml:"baseURL,omitempty"`
	Temperature   float32 `yaml:"temperature,omitempty"`
	EmbedProvider string  `yaml:"embedProvider,omitempty"`
	EmbedModel    string  `yaml:"embedModel,omitempty"`
	EmbedDim      int     `yaml:"embedDim,omitempty"`
	CacheSize     int     `yaml:"cacheSize,omitempty"`
	Retries       int     `yaml:"retries,omitempty"`
}

// OutputConfig names the written artifacts.
type OutputConfig struct {
	Graph    string `yaml:"graph,omitempty"`
	Services string `yaml:"services,omitempty"`
	Mermaid  string `yaml:"mermaid,omitempty"`
}

// ArtifactConfig locates the optional S3-compatible upload bucket. Keys
// come from REPOMAP_S3_ACCESS_KEY and REPOMAP_S3_SECRET_KEY.
type ArtifactConfig struct {
	Endpoint string `yaml:"endpoint,omitempty"`
	Bucket   string `yaml:"bucket,omitempty"`
	Region   string `yaml:"region,omitempty"`
	Prefix   string `yaml:"prefix,omitempty"`
	UseSSL   bool   `yaml:"useSSL,omitempty"`
}

// ProjectConfig holds project-level settings loaded from repomap.yml.
type ProjectConfig struct {
	Root        string         `yaml:"root,omitempty"`
	BatchSize   int            `yaml:"batchSize,omitempty"`
	Concurrency int            `yaml:"concurrency,omitempty"`
	HTTPClients []string       `yaml:"httpClients,omitempty"`
	Entrypoints []string       `yaml:"entrypoints,omitempty"`
	ExcludeDirs []string       `yaml:"excludeDirs,omitempty"`
	Store       StoreConfig    `yaml:"store,omitempty"`
	LLM         LLMConfig      `yaml:"llm,omitempty"`
	Output      OutputConfig   `yaml:"output,omitempty"`
	Artifact    ArtifactConfig `yaml:"artifact,omitempty"`
	RetrieverK  int            `yaml:"retrieverK,omitempty"`
	Verbose     bool           `yaml:"verbose,omitempty"`
}

// Default returns the configuration used when no file sets a value.
func Default() *ProjectConfig {
	return &ProjectConfig{
		Root:        ".",
		BatchSize:   pipeline.DefaultBatchSize,
		Concurrency: 1,
		HTTPClients: append([]string(nil), graph.DefaultHTTPClients...),
		Entrypoints: append([]string(nil), graph.DefaultEntrypoints...),
		ExcludeDirs: []string{".git", "node_modules", "__pycache__", ".venv", "venv"},
		Store:       StoreConfig{Backend: graph.BackendSQLite, Path: ".repomap/nodes.db"},
		LLM: LLMConfig{
			Provider:      llm.ProviderOffline,
			EmbedProvider: llm.ProviderHash,
			CacheSize:     1024,
			Retries:       3,
		},
		Output: OutputConfig{
			Graph:    "graph.json",
			Services: "services.json",
		},
		RetrieverK: retrieve.DefaultK,
	}
}

// Load attempts to read repomap.yml or repomap.yaml from the given
// directory on top of Default. Returns the defaults (not an error) if no
// config file exists. A .env file in dir, if present, is loaded into the
// environment without overriding variables already set.
func Load(dir string) (*ProjectConfig, error) {
	if err := godotenv.Load(filepath.Join(dir, ".env")); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := Default()
	for _, name := range []string{"repomap.yml", "repomap.yaml"} {
		path := filepath.Join(dir, name)
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
		break
	}
	cfg.resolve(dir)
	return cfg, nil
}

// resolve makes relative paths relative to the config directory.
func (c *ProjectConfig) resolve(dir string) {
	abs := func(p string) string {
		if p == "" || filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(dir, p)
	}
	c.Root = abs(c.Root)
	if c.Store.Path != ":memory:" {
		c.Store.Path = abs(c.Store.Path)
	}
	c.Output.Graph = abs(c.Output.Graph)
	c.Output.Services = abs(c.Output.Services)
	c.Output.Mermaid = abs(c.Output.Mermaid)
}

// PipelineConfig projects the pipeline settings.
func (c *ProjectConfig) PipelineConfig() pipeline.Config {
	return pipeline.Config{
		Root:        c.Root,
		BatchSize:   c.BatchSize,
		Concurrency: c.Concurrency,
		Entrypoints: c.Entrypoints,
		Exclude:     c.ExcludeDirs,
	}
}

// LLMSettings projects the provider settings.
func (c *ProjectConfig) LLMSettings() llm.Config {
	return llm.Config{
		Provider:      c.LLM.Provider,
		Model:         c.LLM.Model,
		Temperature:   c.LLM.Temperature,
		BaseURL:       c.LLM.BaseURL,
		EmbedProvider: c.LLM.EmbedProvider,
		EmbedModel:    c.LLM.EmbedModel,
		EmbedDim:      c.LLM.EmbedDim,
		CacheSize:     c.LLM.CacheSize,
		Retries:       c.LLM.Retries,
	}
}

// S3Credentials returns the upload keys from the environment.
func S3Credentials() (access, secret string) {
	return os.Getenv("REPOMAP_S3_ACCESS_KEY"), os.Getenv("REPOMAP_S3_SECRET_KEY")
}

// Save writes c as YAML to path.
func (c *ProjectConfig) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
