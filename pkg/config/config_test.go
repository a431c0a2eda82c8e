package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	_, err := Load("/nonexistent/path/vbtree.yaml")
	if err == nil {
		t.Fatal("expected error for nonexistent path")
	}
	// Load with empty path uses default search (may use defaults if no config file)
	cfg, _ := Load("")
	if cfg.Tree.MinCapacity != 1024 || cfg.Tree.MaxCapacity != 4096 {
		t.Errorf("default capacity: got [%d, %d]", cfg.Tree.MinCapacity, cfg.Tree.MaxCapacity)
	}
	if cfg.Storage.Backend != "memory" {
		t.Errorf("default backend: got %s", cfg.Storage.Backend)
	}
	if cfg.Sort.FanIn != 16 {
		t.Errorf("default fan_in: got %d", cfg.Sort.FanIn)
	}
	if cfg.System.LogLevel != "info" {
		t.Errorf("default log_level: got %s", cfg.System.LogLevel)
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.yaml")
	content := `
tree:
  min_capacity: 80
  max_capacity: 200
  unique: true
storage:
  backend: sqlite
  path: "test_data/tree.db"
  buffer_slots: 8
  eviction_policy: fifo
sort:
  memory_budget: 1024
system:
  log_level: debug
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Tree.MinCapacity != 80 || cfg.Tree.MaxCapacity != 200 || !cfg.Tree.Unique {
		t.Errorf("tree: got %+v", cfg.Tree)
	}
	if cfg.Storage.Backend != "sqlite" || cfg.Storage.BufferSlots != 8 {
		t.Errorf("storage: got %+v", cfg.Storage)
	}
	if cfg.Storage.EvictionPolicy != "fifo" {
		t.Errorf("eviction_policy: got %s", cfg.Storage.EvictionPolicy)
	}
	if cfg.Sort.MemoryBudget != 1024 || cfg.Sort.FanIn != 16 {
		t.Errorf("sort: got %+v", cfg.Sort)
	}
	if cfg.System.LogLevel != "debug" {
		t.Errorf("log_level: got %s", cfg.System.LogLevel)
	}
}

func TestApplyDefaultsFixesCapacity(t *testing.T) {
	cfg := &Config{Tree: TreeConfig{MinCapacity: 100, MaxCapacity: 150}}
	applyDefaults(cfg)
	if cfg.Tree.MaxCapacity != 400 {
		t.Errorf("expected max raised to 400, got %d", cfg.Tree.MaxCapacity)
	}
}
