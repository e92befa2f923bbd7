package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// IndexConfig selects where and how the similarity index is persisted.
type IndexConfig struct {
	DataDir       string `yaml:"data_dir"`
	Backend       string `yaml:"backend"`
	Dimension     int    `yaml:"dimension"`
	MaxVocabulary int    `yaml:"max_vocabulary"`
}

// ChunkerConfig configures how documents are split into chunks.
type ChunkerConfig struct {
	Type              string `yaml:"type"`
	ChunkSize         int    `yaml:"chunk_size"`
	ChunkOverlap      int    `yaml:"chunk_overlap"`
	SentencesPerChunk int    `yaml:"sentences_per_chunk"`
	OverlapSentences  int    `yaml:"overlap_sentences"`
}

// SearchConfig holds retrieval defaults.
type SearchConfig struct {
	TopK int `yaml:"top_k"`
}

// OllamaConfig contains connection details for an Ollama server.
type OllamaConfig struct {
	BaseURL     string `yaml:"base_url"`
	Model       string `yaml:"model"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

// AnswerConfig selects how answers are produced from retrieved context.
type AnswerConfig struct {
	Type         string        `yaml:"type"`
	MaxSentences int           `yaml:"max_sentences"`
	Ollama       *OllamaConfig `yaml:"ollama,omitempty"`
}

// LoggingConfig configures the process logger.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// AppConfig is the root application configuration structure.
type AppConfig struct {
	Index   IndexConfig   `yaml:"index"`
	Chunker ChunkerConfig `yaml:"chunker"`
	Search  SearchConfig  `yaml:"search"`
	Answer  AnswerConfig  `yaml:"answer"`
	Logging LoggingConfig `yaml:"logging"`
}

// Load reads a config from a specified path. If the file does not exist, returns defaults.
// Environment overrides are applied in both cases.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			cfg := defaultConfig()
			applyEnv(cfg)
			return cfg, nil
		}
		return nil, err
	}
	var cfg AppConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	applyConfigDefaults(&cfg)
	applyEnv(&cfg)
	return &cfg, nil
}

// LoadDefault tries ./config.yaml first, then ~/.config/ragchat/config.yaml.
// If neither exists, it writes defaults to ~/.config/ragchat/config.yaml and returns them.
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
	cfg := defaultConfig()
	if err := Save(userPath, cfg); err != nil {
		return nil, "", err
	}
	applyEnv(cfg)
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

// Validate rejects values no component can work with.
func (c *AppConfig) Validate() error {
	var errs []error
	switch c.Index.Backend {
	case "file", "bolt", "sqlite":
	default:
		errs = append(errs, fmt.Errorf("index.backend: unknown backend %q", c.Index.Backend))
	}
	if c.Index.Dimension <= 0 {
		errs = append(errs, fmt.Errorf("index.dimension must be positive, got %d", c.Index.Dimension))
	}
	if c.Index.MaxVocabulary <= 0 {
		errs = append(errs, fmt.Errorf("index.max_vocabulary must be positive, got %d", c.Index.MaxVocabulary))
	}
	if c.Chunker.Type == "window" && c.Chunker.ChunkOverlap >= c.Chunker.ChunkSize {
		errs = append(errs, fmt.Errorf("chunker.chunk_overlap (%d) must be smaller than chunk_size (%d)", c.Chunker.ChunkOverlap, c.Chunker.ChunkSize))
	}
	if c.Search.TopK <= 0 {
		errs = append(errs, fmt.Errorf("search.top_k must be positive, got %d", c.Search.TopK))
	}
	switch c.Answer.Type {
	case "extractive", "ollama":
	default:
		errs = append(errs, fmt.Errorf("answer.type: unknown answer mode %q", c.Answer.Type))
	}
	return errors.Join(errs...)
}

func defaultUserConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "ragchat", "config.yaml"), nil
}

func defaultConfig() *AppConfig {
	cfg := &AppConfig{
		Index:   IndexConfig{DataDir: filepath.Join("data", "faiss_db"), Backend: "file", Dimension: 384, MaxVocabulary: 5000},
		Chunker: ChunkerConfig{Type: "window", ChunkSize: 1000, ChunkOverlap: 200, SentencesPerChunk: 5, OverlapSentences: 1},
		Search:  SearchConfig{TopK: 5},
		Answer:  AnswerConfig{Type: "extractive", MaxSentences: 5},
		Logging: LoggingConfig{Level: "info", Format: "text"},
	}
	applyConfigDefaults(cfg)
	return cfg
}

func applyConfigDefaults(cfg *AppConfig) {
	if cfg.Index.DataDir == "" {
		cfg.Index.DataDir = filepath.Join("data", "faiss_db")
	}
	if cfg.Index.Backend == "" {
		cfg.Index.Backend = "file"
	}
	if cfg.Index.Dimension == 0 {
		cfg.Index.Dimension = 384
	}
	if cfg.Index.MaxVocabulary == 0 {
		cfg.Index.MaxVocabulary = 5000
	}
	if cfg.Chunker.Type == "" {
		cfg.Chunker.Type = "window"
	}
	if cfg.Chunker.ChunkSize == 0 {
		cfg.Chunker.ChunkSize = 1000
		if cfg.Chunker.ChunkOverlap == 0 {
			cfg.Chunker.ChunkOverlap = 200
		}
	}
	if cfg.Chunker.SentencesPerChunk == 0 {
		cfg.Chunker.SentencesPerChunk = 5
	}
	if cfg.Search.TopK == 0 {
		cfg.Search.TopK = 5
	}
	if cfg.Answer.Type == "" {
		cfg.Answer.Type = "extractive"
	}
	if cfg.Answer.MaxSentences == 0 {
		cfg.Answer.MaxSentences = 5
	}
	if cfg.Answer.Type == "ollama" && cfg.Answer.Ollama == nil {
		cfg.Answer.Ollama = &OllamaConfig{}
	}
	if cfg.Answer.Ollama != nil {
		if cfg.Answer.Ollama.BaseURL == "" {
			cfg.Answer.Ollama.BaseURL = "http://localhost:11434"
		}
		if cfg.Answer.Ollama.Model == "" {
			cfg.Answer.Ollama.Model = "llama3.2"
		}
		if cfg.Answer.Ollama.TimeoutSecs == 0 {
			cfg.Answer.Ollama.TimeoutSecs = 120
		}
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "text"
	}
}

// applyEnv lets RAGCHAT_* variables (typically from .env) override the file.
func applyEnv(cfg *AppConfig) {
	if v := os.Getenv("RAGCHAT_DATA_DIR"); v != "" {
		cfg.Index.DataDir = v
	}
	if v := os.Getenv("RAGCHAT_BACKEND"); v != "" {
		cfg.Index.Backend = strings.ToLower(v)
	}
	if v := os.Getenv("RAGCHAT_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	url, model := os.Getenv("RAGCHAT_OLLAMA_URL"), os.Getenv("RAGCHAT_OLLAMA_MODEL")
	if url == "" && model == "" {
		return
	}
	if cfg.Answer.Ollama == nil {
		cfg.Answer.Ollama = &OllamaConfig{}
	}
	if url != "" {
		cfg.Answer.Ollama.BaseURL = url
	}
	if model != "" {
		cfg.Answer.Ollama.Model = model
	}
	applyConfigDefaults(cfg)
}
