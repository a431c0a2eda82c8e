package config

import (
	"os"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Tree    TreeConfig    `yaml:"tree"`
	Storage StorageConfig `yaml:"storage"`
	Sort    SortConfig    `yaml:"sort"`
	System  SystemConfig  `yaml:"system"`
}

type TreeConfig struct {
	MinCapacity  int  `yaml:"min_capacity"`  // bytes
	MaxCapacity  int  `yaml:"max_capacity"`  // bytes
	NodeOverhead int  `yaml:"node_overhead"` // bytes added to every node load
	Unique       bool `yaml:"unique"`
	DebugChecks  bool `yaml:"debug_checks"`
}

type StorageConfig struct {
	Backend        string `yaml:"backend"` // "memory" or "sqlite"
	Path           string `yaml:"path"`
	Namespace      string `yaml:"namespace"`
	BufferSlots    int    `yaml:"buffer_slots"`
	EvictionPolicy string `yaml:"eviction_policy"` // "lru" or "fifo"
}

type SortConfig struct {
	MemoryBudget int    `yaml:"memory_budget"` // bytes
	FanIn        int    `yaml:"fan_in"`
	TempDir      string `yaml:"temp_dir"`
}

type SystemConfig struct {
	LogLevel string `yaml:"log_level"`
}

func Default() *Config {
	return &Config{
		Tree: TreeConfig{
			MinCapacity: 1024,
			MaxCapacity: 4096,
		},
		Storage: StorageConfig{
			Backend:        "memory",
			Path:           "vbtree_data/tree.db",
			Namespace:      "default",
			BufferSlots:    256,
			EvictionPolicy: "lru",
		},
		Sort: SortConfig{
			MemoryBudget: 4 << 20,
			FanIn:        16,
		},
		System: SystemConfig{
			LogLevel: "info",
		},
	}
}

func Load(configPath string) (*Config, error) {
	cfg := Default()

	if configPath == "" {
		for _, p := range []string{"configs/vbtree.yaml", "vbtree.yaml"} {
			data, err := os.ReadFile(p)
			if err == nil {
				if err := yaml.Unmarshal(data, cfg); err != nil {
					return cfg, err
				}
				applyDefaults(cfg)
				return cfg, nil
			}
		}
		applyDefaults(cfg)
		return cfg, nil // no file found: use defaults
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return cfg, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return cfg, err
	}

	applyDefaults(cfg)
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Tree.MinCapacity <= 0 {
		cfg.Tree.MinCapacity = 1024
	}
	if cfg.Tree.MaxCapacity < 2*cfg.Tree.MinCapacity {
		cfg.Tree.MaxCapacity = 4 * cfg.Tree.MinCapacity
	}
	if cfg.Tree.NodeOverhead < 0 {
		cfg.Tree.NodeOverhead = 0
	}
	if cfg.Storage.Backend == "" {
		cfg.Storage.Backend = "memory"
	}
	if cfg.Storage.BufferSlots <= 0 {
		cfg.Storage.BufferSlots = 256
	}
	if cfg.Storage.EvictionPolicy == "" {
		cfg.Storage.EvictionPolicy = "lru"
	}
	if cfg.Sort.MemoryBudget <= 0 {
		cfg.Sort.MemoryBudget = 4 << 20
	}
	if cfg.Sort.FanIn < 2 {
		cfg.Sort.FanIn = 16
	}
	if cfg.System.LogLevel == "" {
		cfg.System.LogLevel = "info"
	}
}
