package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

const DefaultPath = "configs/config.yaml"

const (
	DefaultTrainRatio = 0.8
	DefaultSeed       = 42
	DefaultOutputDir  = "data/processed"
)

type Config struct {
	Corpus   CorpusConfig   `yaml:"corpus"`
	Split    SplitConfig    `yaml:"split"`
	Storage  StorageConfig  `yaml:"storage"`
	Registry RegistryConfig `yaml:"registry"`
	LLM      LLMConfig      `yaml:"llm"`
}

type CorpusConfig struct {
	Name        string            `yaml:"name"`
	Sources     map[string]string `yaml:"sources,omitempty"` // source name -> CSV path
	Variants    []string          `yaml:"variants,omitempty"`
	VariantsDir string            `yaml:"variants_dir,omitempty"`
	OutputDir   string            `yaml:"output_dir,omitempty"`
}

type SplitConfig struct {
	TrainRatio float64 `yaml:"train_ratio"`
	Seed       int64   `yaml:"seed"`
}

type StorageConfig struct {
	Type string `yaml:"type,omitempty"` // "sqlite" or "memory"
	Path string `yaml:"path,omitempty"` // SQLite file path
}

type RegistryConfig struct {
	BaseURL string `yaml:"base_url,omitempty"`
	Prefix  string `yaml:"prefix,omitempty"` // remote dataset name prefix
	APIKey  string `yaml:"api_key,omitempty"`
}

type LLMConfig struct {
	DefaultProvider string                    `yaml:"default_provider,omitempty"`
	Providers       map[string]ProviderConfig `yaml:"providers,omitempty"`
}

type ProviderConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url,omitempty"`
	Model   string `yaml:"model,omitempty"`
}

func Load(path string) (*Config, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		path = DefaultPath
	}

	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %q: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}

	applyDefaults(&cfg)
	applyEnv(&cfg)

	if cfg.Split.TrainRatio <= 0 || cfg.Split.TrainRatio >= 1 {
		return nil, fmt.Errorf("config: split.train_ratio must be between 0 and 1 exclusive (got %v)", cfg.Split.TrainRatio)
	}

	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if strings.TrimSpace(cfg.Corpus.Name) == "" {
		cfg.Corpus.Name = "corpus"
	}
	if cfg.Corpus.Sources == nil {
		cfg.Corpus.Sources = make(map[string]string)
	}
	if strings.TrimSpace(cfg.Corpus.OutputDir) == "" {
		cfg.Corpus.OutputDir = DefaultOutputDir
	}
	if cfg.Split.TrainRatio == 0 {
		cfg.Split.TrainRatio = DefaultTrainRatio
	}
	if cfg.Split.Seed == 0 {
		cfg.Split.Seed = DefaultSeed
	}
	if cfg.LLM.Providers == nil {
		cfg.LLM.Providers = make(map[string]ProviderConfig)
	}
	if strings.TrimSpace(cfg.LLM.DefaultProvider) == "" {
		cfg.LLM.DefaultProvider = "claude"
	}
}

func applyEnv(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv("ANTHROPIC_API_KEY")); v != "" {
		p := cfg.LLM.Providers["claude"]
		p.APIKey = v
		cfg.LLM.Providers["claude"] = p
	} else if v := strings.TrimSpace(os.Getenv("ANTHROPIC_AUTH_TOKEN")); v != "" {
		p := cfg.LLM.Providers["claude"]
		p.APIKey = v
		cfg.LLM.Providers["claude"] = p
	}

	if v := strings.TrimSpace(os.Getenv("OPENAI_API_KEY")); v != "" {
		p := cfg.LLM.Providers["openai"]
		p.APIKey = v
		cfg.LLM.Providers["openai"] = p
	}

	if v := strings.TrimSpace(os.Getenv("CORPUS_REGISTRY_API_KEY")); v != "" {
		cfg.Registry.APIKey = v
	}
}
