package config

import (
	"errors"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// PathsConfig holds the fixed filesystem roots.
type PathsConfig struct {
	DataDir   string `yaml:"data_dir"`
	ModelsDir string `yaml:"models_dir"`
	EvalDir   string `yaml:"eval_dir"`
}

// SchemaConfig names the dataset columns.
type SchemaConfig struct {
	Topic         string `yaml:"topic"`
	KeyPoint      string `yaml:"key_point"`
	Argument      string `yaml:"argument"`
	Label         string `yaml:"label"`
	TopicKeyPoint string `yaml:"topic_key_point"`
	Stance        string `yaml:"stance"`
	Score         string `yaml:"score"`
}

// SplitsConfig names the data files of each dataset split.
type SplitsConfig struct {
	Train string `yaml:"train"`
	Test  string `yaml:"test"`
	Dev   string `yaml:"dev"`
}

// TrainingConfig holds the default hyperparameters of the sentence embedding model.
type TrainingConfig struct {
	MaxSeqLength int `yaml:"max_seq_length"`
	BatchSize    int `yaml:"batch_size"`
	Epochs       int `yaml:"epochs"`
}

// OpenAIEmbedderConfig holds configuration for the OpenAI-compatible embedder.
type OpenAIEmbedderConfig struct {
	BaseURL     string `yaml:"base_url"`
	APIKeyEnv   string `yaml:"api_key_env"`
	Model       string `yaml:"model"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

// EmbedderConfig selects and configures the text embedder implementation.
type EmbedderConfig struct {
	Type      string                `yaml:"type"`
	ModelName string                `yaml:"model_name"`
	CachePath string                `yaml:"cache_path,omitempty"`
	OpenAI    *OpenAIEmbedderConfig `yaml:"openai,omitempty"`
}

// VectorStoreConfig selects and configures the key point index.
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

// EvaluationConfig configures scoring of labeled pairs.
type EvaluationConfig struct {
	Threshold float64 `yaml:"threshold"`
	TopK      int     `yaml:"top_k"`
}

// LogConfig configures the zap logger.
type LogConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

// AppConfig is the root application configuration structure.
type AppConfig struct {
	Paths       PathsConfig       `yaml:"paths"`
	Schema      SchemaConfig      `yaml:"schema"`
	Splits      SplitsConfig      `yaml:"splits"`
	Training    TrainingConfig    `yaml:"training"`
	Embedder    EmbedderConfig    `yaml:"embedder"`
	VectorStore VectorStoreConfig `yaml:"vector_store"`
	Evaluation  EvaluationConfig  `yaml:"evaluation"`
	Log         LogConfig         `yaml:"log"`
}

// Environment variables that override values read from the config file.
const (
	EnvDataDir   = "ARGMATCH_DATA_DIR"
	EnvModelsDir = "ARGMATCH_MODELS_DIR"
	EnvEvalDir   = "ARGMATCH_EVAL_DIR"
	EnvLogLevel  = "ARGMATCH_LOG_LEVEL"
)

// Load reads a config from a specified path. If the file does not exist, returns defaults.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			cfg := Default()
			applyEnvOverrides(cfg)
			return cfg, nil
		}
		return nil, err
	}
	var cfg AppConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	applyConfigDefaults(&cfg)
	applyEnvOverrides(&cfg)
	return &cfg, nil
}

// LoadDefault tries ./config.yaml first, then ~/.config/argmatch/config.yaml.
// If neither exists, it writes defaults to ~/.config/argmatch/config.yaml and returns them.
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
	applyEnvOverrides(cfg)
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

// Default returns the built-in configuration.
func Default() *AppConfig {
	cfg := &AppConfig{}
	applyConfigDefaults(cfg)
	return cfg
}

func defaultUserConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "argmatch", "config.yaml"), nil
}

func applyConfigDefaults(cfg *AppConfig) {
	setDefault(&cfg.Paths.DataDir, "./data/")
	setDefault(&cfg.Paths.ModelsDir, "./models/")
	setDefault(&cfg.Paths.EvalDir, "./eval/")

	setDefault(&cfg.Schema.Topic, "topic")
	setDefault(&cfg.Schema.KeyPoint, "key_point")
	setDefault(&cfg.Schema.Argument, "argument")
	setDefault(&cfg.Schema.Label, "label")
	setDefault(&cfg.Schema.TopicKeyPoint, "topic_key_point")
	setDefault(&cfg.Schema.Stance, "stance")
	setDefault(&cfg.Schema.Score, "score")

	setDefault(&cfg.Splits.Train, "train.csv")
	setDefault(&cfg.Splits.Test, "test.csv")
	setDefault(&cfg.Splits.Dev, "dev.csv")

	if cfg.Training.MaxSeqLength == 0 {
		cfg.Training.MaxSeqLength = 70
	}
	if cfg.Training.BatchSize == 0 {
		cfg.Training.BatchSize = 16
	}
	if cfg.Training.Epochs == 0 {
		cfg.Training.Epochs = 8
	}

	setDefault(&cfg.Embedder.Type, "tfidf")
	setDefault(&cfg.Embedder.ModelName, cfg.Embedder.Type)
	if cfg.Embedder.Type == "openai" {
		if cfg.Embedder.OpenAI == nil {
			cfg.Embedder.OpenAI = &OpenAIEmbedderConfig{}
		}
		setDefault(&cfg.Embedder.OpenAI.BaseURL, "https://api.openai.com/v1")
		setDefault(&cfg.Embedder.OpenAI.APIKeyEnv, "OPENAI_API_KEY")
		setDefault(&cfg.Embedder.OpenAI.Model, "text-embedding-3-small")
		if cfg.Embedder.OpenAI.TimeoutSecs == 0 {
			cfg.Embedder.OpenAI.TimeoutSecs = 30
		}
	}

	setDefault(&cfg.VectorStore.Type, "memory")
	if cfg.VectorStore.Type == "qdrant" && cfg.VectorStore.Qdrant != nil {
		setDefault(&cfg.VectorStore.Qdrant.URL, "http://localhost:6333")
		setDefault(&cfg.VectorStore.Qdrant.Collection, "key_points")
		if cfg.VectorStore.Qdrant.TimeoutSecs == 0 {
			cfg.VectorStore.Qdrant.TimeoutSecs = 15
		}
	}

	if cfg.Evaluation.Threshold == 0 {
		cfg.Evaluation.Threshold = 0.5
	}
	if cfg.Evaluation.TopK == 0 {
		cfg.Evaluation.TopK = 5
	}
	setDefault(&cfg.Log.Level, "info")
}

func applyEnvOverrides(cfg *AppConfig) {
	if v := os.Getenv(EnvDataDir); v != "" {
		cfg.Paths.DataDir = v
	}
	if v := os.Getenv(EnvModelsDir); v != "" {
		cfg.Paths.ModelsDir = v
	}
	if v := os.Getenv(EnvEvalDir); v != "" {
		cfg.Paths.EvalDir = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		cfg.Log.Level = v
	}
}

func setDefault(field *string, value string) {
	if *field == "" {
		*field = value
	}
}
