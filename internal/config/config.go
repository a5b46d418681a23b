package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	LLM       LLMConfig       `mapstructure:"llm"`
	Embedding EmbeddingConfig `mapstructure:"embedding"`
	Vector    VectorConfig    `mapstructure:"vector"`
	Chunking  ChunkingConfig  `mapstructure:"chunking"`
	Search    SearchConfig    `mapstructure:"search"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Temporal  TemporalConfig  `mapstructure:"temporal"`
	Tracing   TracingConfig   `mapstructure:"tracing"`
	Log       LogConfig       `mapstructure:"log"`
}

type LLMConfig struct {
	Provider    string  `mapstructure:"provider"`
	Model       string  `mapstructure:"model"`
	APIKey      string  `mapstructure:"api_key"`
	BaseURL     string  `mapstructure:"base_url"`
	Temperature float64 `mapstructure:"temperature"`
	MaxTokens   int     `mapstructure:"max_tokens"`
}

type EmbeddingConfig struct {
	Model string `mapstructure:"model"`
	// Dimension must match the vector collection size.
	Dimension int `mapstructure:"dimension"`
}

type VectorConfig struct {
	Host       string `mapstructure:"host"`
	Port       int    `mapstructure:"port"`
	Collection string `mapstructure:"collection"`
	Distance   string `mapstructure:"distance"`
}

type ChunkingConfig struct {
	TargetTokens  int `mapstructure:"target_tokens"`
	OverlapTokens int `mapstructure:"overlap_tokens"`
}

type SearchConfig struct {
	Limit          int     `mapstructure:"limit"`
	ScoreThreshold float64 `mapstructure:"score_threshold"`
	PreviewLength  int     `mapstructure:"preview_length"`
}

type StorageConfig struct {
	DataDir  string `mapstructure:"data_dir"`
	FilesDir string `mapstructure:"files_dir"`
}

type TemporalConfig struct {
	Host      string `mapstructure:"host"`
	Namespace string `mapstructure:"namespace"`
	TaskQueue string `mapstructure:"task_queue"`
}

type TracingConfig struct {
	OTLPEndpoint string  `mapstructure:"otlp_endpoint"`
	Environment  string  `mapstructure:"environment"`
	SampleRate   float64 `mapstructure:"sample_rate"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Validate checks configuration for issues and returns warnings.
func (c *Config) Validate() []string {
	var warnings []string

	// Ollama runs without credentials; every other active provider needs a key
	if c.LLM.Provider != "" && c.LLM.Provider != "none" && c.LLM.Provider != "ollama" && c.LLM.APIKey == "" {
		warnings = append(warnings, fmt.Sprintf("LLM provider '%s' is configured but api_key is empty", c.LLM.Provider))
	}

	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2.0 {
		warnings = append(warnings, fmt.Sprintf("LLM temperature %.2f is outside recommended range [0.0, 2.0]", c.LLM.Temperature))
	}

	if c.Embedding.Dimension <= 0 {
		warnings = append(warnings, "embedding dimension is not set; dimension checks are disabled")
	}

	if c.Chunking.TargetTokens > 0 && c.Chunking.OverlapTokens >= c.Chunking.TargetTokens {
		warnings = append(warnings, fmt.Sprintf("chunk overlap %d is not smaller than target %d", c.Chunking.OverlapTokens, c.Chunking.TargetTokens))
	}

	if c.Search.ScoreThreshold < 0 || c.Search.ScoreThreshold > 1 {
		warnings = append(warnings, fmt.Sprintf("score threshold %.2f is outside [0.0, 1.0]", c.Search.ScoreThreshold))
	}

	return warnings
}

// Load reads configuration from file and environment.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix("DOCFLOW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	// Validate configuration and print warnings
	if warnings := cfg.Validate(); len(warnings) > 0 {
		for _, warning := range warnings {
			fmt.Fprintf(os.Stderr, "Warning: %s\n", warning)
		}
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("llm.provider", "ollama")
	v.SetDefault("llm.model", "llama3.1:8b")
	v.SetDefault("llm.temperature", 0.1)
	v.SetDefault("embedding.model", "all-minilm:l6-v2")
	v.SetDefault("embedding.dimension", 384)
	v.SetDefault("vector.host", "localhost")
	v.SetDefault("vector.port", 6334)
	v.SetDefault("vector.collection", "documents")
	v.SetDefault("vector.distance", "cosine")
	v.SetDefault("chunking.target_tokens", 800)
	v.SetDefault("chunking.overlap_tokens", 100)
	v.SetDefault("search.limit", 5)
	v.SetDefault("search.score_threshold", 0.5)
	v.SetDefault("search.preview_length", 300)
	v.SetDefault("storage.data_dir", "data")
	v.SetDefault("storage.files_dir", "data/files")
	v.SetDefault("temporal.host", "localhost:7233")
	v.SetDefault("temporal.namespace", "default")
	v.SetDefault("temporal.task_queue", "docflow-ingest")
	v.SetDefault("tracing.sample_rate", 1.0)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}
