package config

import (
	"errors"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// OpenAIEmbedderConfig holds configuration for the OpenAI-compatible embedder.
type OpenAIEmbedderConfig struct {
	BaseURL     string `yaml:"base_url"`
	APIKeyEnv   string `yaml:"api_key_env"`
	Model       string `yaml:"model"`
	TimeoutSecs int    `yaml:"timeout_secs"`
	MaxRetries  int    `yaml:"max_retries"`
}

// GeminiConfig holds configuration shared by the Gemini embedder and generator.
type GeminiConfig struct {
	APIKeyEnv      string `yaml:"api_key_env"`
	EmbeddingModel string `yaml:"embedding_model"`
	Model          string `yaml:"model"`
}

// EmbedderConfig selects and configures the text embedder implementation.
// Dimension applies to every backend; zero lets the backend pick its default.
type EmbedderConfig struct {
	Type      string                `yaml:"type"`
	Dimension int                   `yaml:"dimension"`
	BatchSize int                   `yaml:"batch_size"`
	OpenAI    *OpenAIEmbedderConfig `yaml:"openai,omitempty"`
	Gemini    *GeminiConfig         `yaml:"gemini,omitempty"`
}

// ChunkerConfig configures how session documents are split into chunks.
// ChunkSize is in characters, Overlap in words. An omitted or zero Overlap
// takes the default; a negative Overlap disables overlap.
type ChunkerConfig struct {
	ChunkSize int `yaml:"chunk_size"`
	Overlap   int `yaml:"overlap"`
	MinLength int `yaml:"min_length"`
}

// CorpusConfig configures the persistent corpus index.
// ChunkSize and Overlap are in characters. Overlap follows the same zero and
// negative rules as ChunkerConfig.
type CorpusConfig struct {
	Dir           string `yaml:"dir"`
	IndexDir      string `yaml:"index_dir"`
	ChunkSize     int    `yaml:"chunk_size"`
	Overlap       int    `yaml:"overlap"`
	MinLength     int    `yaml:"min_length"`
	SnippetLength int    `yaml:"snippet_length"`
	SearchK       int    `yaml:"search_k"`
	ResultLimit   int    `yaml:"result_limit"`
	Workers       int    `yaml:"workers"`
}

// VectorStoreConfig selects and configures the session vector store implementation.
type VectorStoreConfig struct {
	Type   string        `yaml:"type"`
	Qdrant *QdrantConfig `yaml:"qdrant,omitempty"`
}

// QdrantConfig contains connection details for a Qdrant vector store.
type QdrantConfig struct {
	URL         string `yaml:"url"`
	APIKey      string `yaml:"api_key"`
	Collection  string `yaml:"collection"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

// RankingConfig holds the query engine constants.
type RankingConfig struct {
	L2Scale         float64 `yaml:"l2_scale"`
	KeywordBoost    float64 `yaml:"keyword_boost"`
	KeywordCap      int     `yaml:"keyword_cap"`
	DefinitionBoost float64 `yaml:"definition_boost"`
}

// SessionConfig configures queries against the session store.
type SessionConfig struct {
	TopK          int     `yaml:"top_k"`
	MinSimilarity float64 `yaml:"min_similarity"`
}

// GeneratorConfig selects the generative answer backend. "none" disables it.
type GeneratorConfig struct {
	Type              string                 `yaml:"type"`
	MaxChunks         int                    `yaml:"max_chunks"`
	AnswerLimit       int                    `yaml:"answer_limit"`
	RequestsPerMinute int                    `yaml:"requests_per_minute"`
	OpenAI            *OpenAIGeneratorConfig `yaml:"openai,omitempty"`
	Gemini            *GeminiConfig          `yaml:"gemini,omitempty"`
}

// OpenAIGeneratorConfig configures the OpenAI-compatible chat backend.
type OpenAIGeneratorConfig struct {
	BaseURL     string  `yaml:"base_url"`
	APIKeyEnv   string  `yaml:"api_key_env"`
	Model       string  `yaml:"model"`
	Temperature float64 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`
	TimeoutSecs int     `yaml:"timeout_secs"`
}

// LogConfig configures structured logging.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig configures the Prometheus endpoint. Empty Addr disables it.
type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

// AppConfig is the root application configuration structure.
type AppConfig struct {
	Embedder    EmbedderConfig    `yaml:"embedder"`
	Chunker     ChunkerConfig     `yaml:"chunker"`
	Corpus      CorpusConfig      `yaml:"corpus"`
	VectorStore VectorStoreConfig `yaml:"vector_store"`
	Ranking     RankingConfig     `yaml:"ranking"`
	Session     SessionConfig     `yaml:"session"`
	Generator   GeneratorConfig   `yaml:"generator"`
	Log         LogConfig         `yaml:"log"`
	Metrics     MetricsConfig     `yaml:"metrics"`
}

// Load reads a config from a specified path. If the file does not exist, returns defaults.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Default(), nil
		}
		return nil, err
	}
	var cfg AppConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	applyConfigDefaults(&cfg)
	return &cfg, nil
}

// LoadDefault tries ./config.yaml first, then ~/.config/docrag/config.yaml.
// If neither exists, it writes defaults to ~/.config/docrag/config.yaml and returns them.
func LoadDefault() (*AppConfig, string, error) {
	cwdPath := "config.yaml"
	if _, err := os.Stat(cwdPath); err == nil {
		cfg, err := Load(cwdPath)
		return cfg, cwdPath, err
	}
	userPath, err := defaultUserConfigPath()
	if err != nil {
		return nil, "", err
	}
	if _, err := os.Stat(userPath); err == nil {
		cfg, err := Load(userPath)
		return cfg, userPath, err
	}
	cfg := Default()
	if err := Save(userPath, cfg); err != nil {
		return nil, "", err
	}
	return cfg, userPath, nil
}

// Save writes the config to the given path, creating directories as needed.
func Save(path string, cfg *AppConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func defaultUserConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "docrag", "config.yaml"), nil
}

// Default returns the built-in configuration.
func Default() *AppConfig {
	cfg := &AppConfig{
		Embedder:    EmbedderConfig{Type: "local"},
		VectorStore: VectorStoreConfig{Type: "memory"},
		Generator:   GeneratorConfig{Type: "none"},
		Corpus:      CorpusConfig{Dir: "data/corpus", IndexDir: "data/index"},
		Log:         LogConfig{Level: "info", Format: "text"},
	}
	applyConfigDefaults(cfg)
	return cfg
}

func applyConfigDefaults(cfg *AppConfig) {
	if cfg.Embedder.BatchSize == 0 {
		cfg.Embedder.BatchSize = 32
	}
	switch cfg.Embedder.Type {
	case "openai":
		if cfg.Embedder.OpenAI == nil {
			cfg.Embedder.OpenAI = &OpenAIEmbedderConfig{}
		}
	case "gemini":
		if cfg.Embedder.Gemini == nil {
			cfg.Embedder.Gemini = &GeminiConfig{}
		}
	}
	if oc := cfg.Embedder.OpenAI; oc != nil {
		if oc.BaseURL == "" {
			oc.BaseURL = "https://api.openai.com/v1"
		}
		if oc.APIKeyEnv == "" {
			oc.APIKeyEnv = "OPENAI_API_KEY"
		}
		if oc.Model == "" {
			oc.Model = "text-embedding-3-small"
		}
		if oc.TimeoutSecs == 0 {
			oc.TimeoutSecs = 30
		}
	}
	if cfg.Embedder.Gemini != nil && cfg.Embedder.Gemini.APIKeyEnv == "" {
		cfg.Embedder.Gemini.APIKeyEnv = "GEMINI_API_KEY"
	}

	if cfg.Chunker.ChunkSize == 0 {
		cfg.Chunker.ChunkSize = 300
	}
	if cfg.Chunker.Overlap == 0 {
		cfg.Chunker.Overlap = 50
	}
	if cfg.Chunker.MinLength == 0 {
		cfg.Chunker.MinLength = 10
	}

	if cfg.Corpus.ChunkSize == 0 {
		cfg.Corpus.ChunkSize = 1000
	}
	if cfg.Corpus.Overlap == 0 {
		cfg.Corpus.Overlap = 200
	}
	if cfg.Corpus.MinLength == 0 {
		cfg.Corpus.MinLength = 50
	}
	if cfg.Corpus.SnippetLength == 0 {
		cfg.Corpus.SnippetLength = 200
	}
	if cfg.Corpus.SearchK == 0 {
		cfg.Corpus.SearchK = 10
	}
	if cfg.Corpus.ResultLimit == 0 {
		cfg.Corpus.ResultLimit = 8
	}
	if cfg.Corpus.Workers == 0 {
		cfg.Corpus.Workers = 4
	}

	if cfg.Ranking.L2Scale == 0 {
		cfg.Ranking.L2Scale = 10
	}
	if cfg.Ranking.KeywordBoost == 0 {
		cfg.Ranking.KeywordBoost = 0.1
	}
	if cfg.Ranking.KeywordCap == 0 {
		cfg.Ranking.KeywordCap = 3
	}
	if cfg.Ranking.DefinitionBoost == 0 {
		cfg.Ranking.DefinitionBoost = 0.2
	}

	if cfg.Session.TopK == 0 {
		cfg.Session.TopK = 5
	}
	if cfg.Session.MinSimilarity == 0 {
		cfg.Session.MinSimilarity = 0.15
	}

	if cfg.Generator.MaxChunks == 0 {
		cfg.Generator.MaxChunks = 5
	}
	if cfg.Generator.AnswerLimit == 0 {
		cfg.Generator.AnswerLimit = 800
	}
	if cfg.Generator.RequestsPerMinute == 0 {
		cfg.Generator.RequestsPerMinute = 60
	}
	switch cfg.Generator.Type {
	case "openai":
		if cfg.Generator.OpenAI == nil {
			cfg.Generator.OpenAI = &OpenAIGeneratorConfig{}
		}
	case "gemini":
		if cfg.Generator.Gemini == nil {
			cfg.Generator.Gemini = &GeminiConfig{}
		}
	}
	if oc := cfg.Generator.OpenAI; oc != nil {
		if oc.BaseURL == "" {
			oc.BaseURL = "https://api.openai.com/v1"
		}
		if oc.APIKeyEnv == "" {
			oc.APIKeyEnv = "OPENAI_API_KEY"
		}
		if oc.Model == "" {
			oc.Model = "gpt-4o-mini"
		}
		if oc.MaxTokens == 0 {
			oc.MaxTokens = 1000
		}
		if oc.Temperature == 0 {
			oc.Temperature = 0.7
		}
		if oc.TimeoutSecs == 0 {
			oc.TimeoutSecs = 60
		}
	}
	if cfg.Generator.Gemini != nil && cfg.Generator.Gemini.APIKeyEnv == "" {
		cfg.Generator.Gemini.APIKeyEnv = "GEMINI_API_KEY"
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
}
