package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaultsWhenMissing(t *testing.T) {
	dir := t.TempDir()
	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Parallel != 1 {
		t.Errorf("Parallel = %d, want 1", cfg.Parallel)
	}
	if cfg.UsesExternalTarget() {
		t.Error("expected LocalTarget selection with no testRunners")
	}
}

func TestLoadYAML(t *testing.T) {
	dir := t.TempDir()
	body := `
files:
  - "suites/**/*.spec.js"
timeout: 2000
bail: true
testRunners:
  - id: a
    address: "http://runner-a:9000"
    concurrency: 4
`
	if err := os.WriteFile(filepath.Join(dir, "xjet.config.yaml"), []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(cfg.Files) != 1 || cfg.Files[0] != "suites/**/*.spec.js" {
		t.Errorf("Files = %v", cfg.Files)
	}
	if cfg.Timeout != 2000 {
		t.Errorf("Timeout = %d, want 2000", cfg.Timeout)
	}
	if !cfg.Bail {
		t.Error("expected Bail true")
	}
	if !cfg.UsesExternalTarget() {
		t.Fatal("expected ExternalTarget selection")
	}
	if cfg.TestRunners[0].Concurrency != 4 {
		t.Errorf("Concurrency = %d, want 4", cfg.TestRunners[0].Concurrency)
	}
}

func TestLoadJSONFallback(t *testing.T) {
	dir := t.TempDir()
	body := `{"files": ["a.test.js"], "parallel": 3}`
	if err := os.WriteFile(filepath.Join(dir, "xjet.config.json"), []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Parallel != 3 {
		t.Errorf("Parallel = %d, want 3", cfg.Parallel)
	}
}
