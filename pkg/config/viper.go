package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// InitViper creates and returns a configured *viper.Viper.
// It sets defaults from NewDefaultConfig(), reads the config.toml file
// (if present in configDir or the working directory), and binds environment
// variables with the RECALL_ prefix.
//
// Config precedence (highest to lowest):
//  1. Environment variables (RECALL_LLM_MODEL, RECALL_VECTOR_STORE_PATH, etc.)
//  2. config.toml file values
//  3. Defaults from NewDefaultConfig()
func InitViper(configDir string) (*viper.Viper, error) {
	v := viper.New()

	setViperDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("toml")

	if configDir != "" {
		v.AddConfigPath(configDir)
	}
	v.AddConfigPath(".")

	if err := v.ReadInConfig(); err != nil {
		// Config file not found errors are fine, defaults will apply.
		if !errors.As(err, &viper.ConfigFileNotFoundError{}) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	v.SetEnvPrefix("RECALL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return v, nil
}

// Load unmarshals the viper state into a typed Config.
func Load(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	return &cfg, nil
}

// setViperDefaults registers defaults from NewDefaultConfig() into viper
// using dotted-key notation. This keeps defaults.go as the single source of truth.
func setViperDefaults(v *viper.Viper) {
	def := NewDefaultConfig()

	v.SetDefault("logging.debug", def.Logging.Debug)

	v.SetDefault("embedding.provider", def.Embedding.Provider)
	v.SetDefault("embedding.target", def.Embedding.Target)
	v.SetDefault("embedding.model", def.Embedding.Model)
	v.SetDefault("embedding.dimensions", def.Embedding.Dimensions)
	v.SetDefault("embedding.cache_capacity", def.Embedding.CacheCapacity)

	v.SetDefault("vector_store.provider", def.VectorStore.Provider)
	v.SetDefault("vector_store.path", def.VectorStore.Path)
	v.SetDefault("vector_store.collection", def.VectorStore.Collection)

	v.SetDefault("llm.provider", def.LLM.Provider)
	v.SetDefault("llm.model", def.LLM.Model)
	v.SetDefault("llm.target", def.LLM.Target)
	v.SetDefault("llm.api_key", def.LLM.APIKey)

	v.SetDefault("memory.retrieval_limit", def.Memory.RetrievalLimit)
	v.SetDefault("memory.retrieval_threshold", def.Memory.RetrievalThreshold)
	v.SetDefault("memory.chat_threshold", def.Memory.ChatThreshold)
	v.SetDefault("memory.dedup_threshold", def.Memory.DedupThreshold)
	v.SetDefault("memory.max_context_tokens", def.Memory.MaxContextTokens)
}
