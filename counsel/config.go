package counsel

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// GenerationConfig holds the sampling parameters forwarded to the generation
// collaborator. BaseURL points at any OpenAI-compatible endpoint, which is how
// a locally served model is reached.
type GenerationConfig struct {
	Model           string  `yaml:"model"`
	BaseURL         string  `yaml:"base_url"`
	MaxOutputTokens int64   `yaml:"max_output_tokens"`
	Temperature     float64 `yaml:"temperature"`
	TopP            float64 `yaml:"top_p"`
}

// PromptConfig controls prompt assembly.
type PromptConfig struct {
	UseSocraticTemplate bool `yaml:"use_socratic_template"`
	IncludeAnalysis     bool `yaml:"include_analysis"`
	ContextWindowSize   int  `yaml:"context_window_size"`
}

// MemoryConfig controls the summary store and closure persistence.
type MemoryConfig struct {
	UseSummaryMemory  bool   `yaml:"use_summary_memory"`
	Driver            string `yaml:"driver"`
	DSN               string `yaml:"dsn"`
	MaxOpenConns      int    `yaml:"max_open_conns"`
	MaxIdleConns      int    `yaml:"max_idle_conns"`
	AutoSaveOnClosure bool   `yaml:"auto_save_on_closure"`
}

// Config is the application configuration tree.
type Config struct {
	Generation GenerationConfig `yaml:"generation"`
	Prompt     PromptConfig     `yaml:"prompt"`
	Memory     MemoryConfig     `yaml:"memory"`
}

func DefaultConfig() Config {
	return Config{
		Generation: GenerationConfig{
			Model:           "qwen2.5-3b-instruct",
			MaxOutputTokens: 128,
			Temperature:     0.7,
			TopP:            0.8,
		},
		Prompt: PromptConfig{
			UseSocraticTemplate: true,
			IncludeAnalysis:     true,
			ContextWindowSize:   DefaultContextWindow,
		},
		Memory: MemoryConfig{
			UseSummaryMemory:  true,
			Driver:            "sqlite",
			DSN:               "counsel.db",
			MaxOpenConns:      10,
			MaxIdleConns:      2,
			AutoSaveOnClosure: true,
		},
	}
}

// LoadConfig reads a YAML config file over the defaults. An empty path returns
// the defaults unchanged.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if c.Generation.Model == "" {
		return errors.New("generation.model must not be empty")
	}
	if c.Generation.MaxOutputTokens < 0 {
		return errors.New("generation.max_output_tokens must be >= 0")
	}
	if c.Generation.Temperature < 0 {
		return errors.New("generation.temperature must be >= 0")
	}
	if c.Generation.TopP < 0 || c.Generation.TopP > 1 {
		return errors.New("generation.top_p must be in [0, 1]")
	}
	if c.Prompt.ContextWindowSize < 0 {
		return errors.New("prompt.context_window_size must be >= 0")
	}
	if c.Memory.UseSummaryMemory {
		switch c.Memory.Driver {
		case "sqlite", "pgx":
		default:
			return fmt.Errorf("memory.driver must be sqlite or pgx, got %q", c.Memory.Driver)
		}
		if c.Memory.DSN == "" {
			return errors.New("memory.dsn must not be empty")
		}
		if c.Memory.MaxOpenConns <= 0 {
			return errors.New("memory.max_open_conns must be > 0")
		}
		if c.Memory.MaxIdleConns < 0 {
			return errors.New("memory.max_idle_conns must be >= 0")
		}
	}
	return nil
}
