package config

const (
	defaultEmbeddingProvider   = "ollama"
	defaultEmbeddingTarget     = "http://localhost:11434"
	defaultEmbeddingModel      = "nomic-embed-text"
	defaultEmbeddingDimensions = 768
	defaultCacheCapacity       = 1000

	defaultVectorProvider   = "chromem"
	defaultVectorPath       = "recall.db"
	defaultVectorCollection = "recall"

	defaultLLMProvider = "ollama"
	defaultLLMModel    = "llama3.2"
	defaultLLMTarget   = "http://localhost:11434"

	defaultRetrievalLimit     = 5
	defaultRetrievalThreshold = 0.7
	defaultChatThreshold      = 0.5
	defaultDedupThreshold     = 0.95
	defaultMaxContextTokens   = 2000
)

// NewDefaultConfig returns a Config with sane defaults for all fields.
// This is the single source of truth for default values.
func NewDefaultConfig() *Config {
	return &Config{
		Embedding: EmbeddingConfig{
			Provider:      defaultEmbeddingProvider,
			Target:        defaultEmbeddingTarget,
			Model:         defaultEmbeddingModel,
			Dimensions:    defaultEmbeddingDimensions,
			CacheCapacity: defaultCacheCapacity,
		},
		VectorStore: VectorStoreConfig{
			Provider:   defaultVectorProvider,
			Path:       defaultVectorPath,
			Collection: defaultVectorCollection,
		},
		LLM: LLMConfig{
			Provider: defaultLLMProvider,
			Model:    defaultLLMModel,
			Target:   defaultLLMTarget,
		},
		Memory: MemoryConfig{
			RetrievalLimit:     defaultRetrievalLimit,
			RetrievalThreshold: defaultRetrievalThreshold,
			ChatThreshold:      defaultChatThreshold,
			DedupThreshold:     defaultDedupThreshold,
			MaxContextTokens:   defaultMaxContextTokens,
		},
	}
}
