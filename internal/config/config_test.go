package config

import (
	"os"
	"path/filepath"
	"testing"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"RAGCHAT_DATA_DIR", "RAGCHAT_BACKEND", "RAGCHAT_LOG_LEVEL", "RAGCHAT_OLLAMA_URL", "RAGCHAT_OLLAMA_MODEL"} {
		t.Setenv(k, "")
	}
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Index.DataDir != filepath.Join("data", "faiss_db") || cfg.Index.Backend != "file" {
		t.Errorf("index defaults = %+v", cfg.Index)
	}
	if cfg.Index.Dimension != 384 || cfg.Index.MaxVocabulary != 5000 {
		t.Errorf("encoder defaults = %+v", cfg.Index)
	}
	if cfg.Chunker.ChunkSize != 1000 || cfg.Chunker.ChunkOverlap != 200 {
		t.Errorf("chunker defaults = %+v", cfg.Chunker)
	}
	if cfg.Search.TopK != 5 || cfg.Answer.Type != "extractive" {
		t.Errorf("search/answer defaults = %+v %+v", cfg.Search, cfg.Answer)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestLoadPartialFileFillsDefaults(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := []byte("index:\n  backend: bolt\nanswer:\n  type: ollama\n")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Index.Backend != "bolt" || cfg.Index.Dimension != 384 {
		t.Errorf("index = %+v", cfg.Index)
	}
	if cfg.Answer.Ollama == nil || cfg.Answer.Ollama.BaseURL != "http://localhost:11434" || cfg.Answer.Ollama.Model != "llama3.2" {
		t.Fatalf("ollama defaults = %+v", cfg.Answer.Ollama)
	}
}

func TestLoadInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("index: [unclosed"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("RAGCHAT_DATA_DIR", "/srv/index")
	t.Setenv("RAGCHAT_BACKEND", "SQLITE")
	t.Setenv("RAGCHAT_LOG_LEVEL", "debug")
	t.Setenv("RAGCHAT_OLLAMA_MODEL", "mistral")
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Index.DataDir != "/srv/index" || cfg.Index.Backend != "sqlite" || cfg.Logging.Level != "debug" {
		t.Errorf("overrides not applied: %+v %+v", cfg.Index, cfg.Logging)
	}
	if cfg.Answer.Ollama == nil || cfg.Answer.Ollama.Model != "mistral" || cfg.Answer.Ollama.BaseURL == "" {
		t.Errorf("ollama override = %+v", cfg.Answer.Ollama)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := defaultConfig()
	cfg.Search.TopK = 9
	cfg.Index.Backend = "sqlite"
	if err := Save(path, cfg); err != nil {
		t.Fatal(err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if got.Search.TopK != 9 || got.Index.Backend != "sqlite" {
		t.Errorf("round trip lost values: %+v", got)
	}
}

func TestValidate(t *testing.T) {
	cfg := defaultConfig()
	cfg.Index.Backend = "faiss"
	cfg.Search.TopK = -1
	cfg.Chunker.ChunkOverlap = 1000
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation errors")
	}
}
