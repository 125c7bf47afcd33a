package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Ollama.Endpoint != DefaultEndpoint {
		t.Errorf("endpoint = %q, want %q", cfg.Ollama.Endpoint, DefaultEndpoint)
	}
	if cfg.Ollama.Prompt != DefaultPrompt {
		t.Errorf("prompt = %q", cfg.Ollama.Prompt)
	}
	if cfg.Ollama.Timeout != 0 {
		t.Errorf("timeout = %s, want 0", cfg.Ollama.Timeout)
	}
	if cfg.Dataset.Dir != DefaultDatasetDir {
		t.Errorf("dataset dir = %q", cfg.Dataset.Dir)
	}
}

func TestLoadFileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "imgclf.yaml")
	yml := `
ollama:
  endpoint: http://gpu-box:11434/api/generate
  timeout: 45s
dataset:
  dir: /data/mnist
log_level: debug
`
	if err := os.WriteFile(path, []byte(yml), 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("DATASET_DIR", "/override")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Ollama.Endpoint != "http://gpu-box:11434/api/generate" {
		t.Errorf("endpoint = %q", cfg.Ollama.Endpoint)
	}
	if cfg.Ollama.Timeout != 45*time.Second {
		t.Errorf("timeout = %s", cfg.Ollama.Timeout)
	}
	if cfg.Ollama.Prompt != DefaultPrompt {
		t.Errorf("prompt should keep its default, got %q", cfg.Ollama.Prompt)
	}
	if cfg.Dataset.Dir != "/override" {
		t.Errorf("dataset dir = %q, env should win", cfg.Dataset.Dir)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("log level = %q", cfg.LogLevel)
	}
}

func TestLoadRejectsBadLevel(t *testing.T) {
	t.Setenv("IMGCLF_LOG_LEVEL", "loud")
	if _, err := Load(""); err == nil {
		t.Fatal("expected error for unknown log level")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
