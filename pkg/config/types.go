package config

// Config represents the persistent recall configuration. It is loaded from
// config.toml (discovered in the working directory or an explicit --config-dir),
// overridable through RECALL_* environment variables.
type Config struct {
	Logging     LoggingConfig     `mapstructure:"logging"`
	Embedding   EmbeddingConfig   `mapstructure:"embedding"`
	VectorStore VectorStoreConfig `mapstructure:"vector_store"`
	LLM         LLMConfig         `mapstructure:"llm"`
	Memory      MemoryConfig      `mapstructure:"memory"`
}

// LoggingConfig holds logger settings.
type LoggingConfig struct {
	Debug bool `mapstructure:"debug"`
}

// EmbeddingConfig holds embedding provider settings.
type EmbeddingConfig struct {
	Provider      string `mapstructure:"provider"`
	Target        string `mapstructure:"target"`
	Model         string `mapstructure:"model"`
	Dimensions    uint   `mapstructure:"dimensions"`
	CacheCapacity int    `mapstructure:"cache_capacity"`
}

// VectorStoreConfig holds vector store settings.
type VectorStoreConfig struct {
	// Provider selects the driver: "memory", "chromem", or "sqlite".
	Provider string `mapstructure:"provider"`

	// Path is the on-disk location for persistent drivers.
	Path string `mapstructure:"path"`

	// Collection is the logical collection name for drivers that support it.
	Collection string `mapstructure:"collection"`
}

// LLMConfig holds chat model settings.
type LLMConfig struct {
	// Provider selects the chat backend: "ollama", "openai", or "anthropic".
	Provider string `mapstructure:"provider"`
	Model    string `mapstructure:"model"`
	Target   string `mapstructure:"target"`
	APIKey   string `mapstructure:"api_key"`
}

// MemoryConfig holds engine tuning knobs.
type MemoryConfig struct {
	// RetrievalLimit is the number of memories returned per retrieval.
	RetrievalLimit int `mapstructure:"retrieval_limit"`

	// RetrievalThreshold is the minimum relevance for direct searches.
	RetrievalThreshold float64 `mapstructure:"retrieval_threshold"`

	// ChatThreshold is the (looser) minimum relevance used by the chat flow.
	ChatThreshold float64 `mapstructure:"chat_threshold"`

	// DedupThreshold is the relevance above which a new memory is treated
	// as a duplicate of an existing one and skipped.
	DedupThreshold float64 `mapstructure:"dedup_threshold"`

	// MaxContextTokens caps the assembled context block size.
	MaxContextTokens int `mapstructure:"max_context_tokens"`
}
