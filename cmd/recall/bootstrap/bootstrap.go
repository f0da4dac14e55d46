// Package bootstrap wires the configured providers into a ready engine.
// Every subcommand that touches memories goes through Build so they all
// share the same provider selection and defaulting behavior.
package bootstrap

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/recallhq/recall/pkg/config"
	"github.com/recallhq/recall/pkg/embeddings/cache"
	"github.com/recallhq/recall/pkg/embeddings/ollama"
	"github.com/recallhq/recall/pkg/llm/langchain"
	"github.com/recallhq/recall/pkg/memory"
	"github.com/recallhq/recall/pkg/vector"
	"github.com/recallhq/recall/pkg/vector/chromem"
	"github.com/recallhq/recall/pkg/vector/inmemory"
	"github.com/recallhq/recall/pkg/vector/sqlitevec"
)

// Runtime bundles the engine with the components commands may want to
// inspect or tear down.
type Runtime struct {
	Engine *memory.Engine
	Cache  *cache.Cache
	Driver vector.Driver
	Config *config.Config
}

// Close releases the runtime's providers.
func (r *Runtime) Close() {
	if r.Cache != nil {
		_ = r.Cache.Close()
	}
	if r.Driver != nil {
		_ = r.Driver.Close()
	}
}

// LoadConfig resolves the config for a command invocation, honoring the
// global --config-dir flag.
func LoadConfig(cmd *cobra.Command) (*config.Config, error) {
	configDir, _ := cmd.Flags().GetString("config-dir")

	v, err := config.InitViper(configDir)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	cfg, err := config.Load(v)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return cfg, nil
}

// Build assembles the full engine stack from config: embedder behind the
// cache, the selected vector driver, the chat model, and the engine itself.
func Build(cfg *config.Config, lg *zap.Logger) (*Runtime, error) {
	embedder, err := ollama.NewEmbedder(ollama.Config{
		BaseURL: cfg.Embedding.Target,
		Model:   cfg.Embedding.Model,
	})
	if err != nil {
		return nil, fmt.Errorf("creating embedder: %w", err)
	}
	cached := cache.New(embedder, cfg.Embedding.CacheCapacity, lg)

	driver, err := newDriver(cfg, lg)
	if err != nil {
		_ = cached.Close()
		return nil, err
	}

	model, err := langchain.New(langchain.Config{
		Provider: cfg.LLM.Provider,
		Model:    cfg.LLM.Model,
		Target:   cfg.LLM.Target,
		APIKey:   cfg.LLM.APIKey,
	})
	if err != nil {
		_ = cached.Close()
		_ = driver.Close()
		return nil, fmt.Errorf("creating chat model: %w", err)
	}

	store := memory.NewStore(driver, cached, lg)

	engine, err := memory.NewEngine(store, model, nil, memory.Options{
		RetrievalLimit:     cfg.Memory.RetrievalLimit,
		RetrievalThreshold: cfg.Memory.RetrievalThreshold,
		ChatThreshold:      cfg.Memory.ChatThreshold,
		DedupThreshold:     cfg.Memory.DedupThreshold,
		MaxContextTokens:   cfg.Memory.MaxContextTokens,
	}, lg)
	if err != nil {
		_ = cached.Close()
		_ = driver.Close()
		return nil, fmt.Errorf("creating engine: %w", err)
	}

	return &Runtime{
		Engine: engine,
		Cache:  cached,
		Driver: driver,
		Config: cfg,
	}, nil
}

func newDriver(cfg *config.Config, lg *zap.Logger) (vector.Driver, error) {
	switch cfg.VectorStore.Provider {
	case "memory":
		return inmemory.NewDriver(), nil
	case "chromem", "":
		return chromem.NewDriver(chromem.Config{
			Path:       cfg.VectorStore.Path,
			Collection: cfg.VectorStore.Collection,
		}, lg)
	case "sqlite":
		return sqlitevec.NewDriver(sqlitevec.Config{
			DBPath:     cfg.VectorStore.Path,
			Dimensions: cfg.Embedding.Dimensions,
		}, lg)
	default:
		return nil, fmt.Errorf("unknown vector store provider: %q", cfg.VectorStore.Provider)
	}
}
