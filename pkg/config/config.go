package config

import (
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// FixedSizeBinsEnv switches histograms to fixed-width bins when set to "true".
const FixedSizeBinsEnv = "EnforceFixedSizeBinsBehavior"

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Storage   StorageConfig   `yaml:"storage"`
	Search    SearchConfig    `yaml:"search"`
	Histogram HistogramConfig `yaml:"histogram"`
	System    SystemConfig    `yaml:"system"`
}

type ServerConfig struct {
	Addr    string `yaml:"addr"`     // HTTP Listen Address (e.g. :8080)
	TCPAddr string `yaml:"tcp_addr"` // TCP Listen Address (e.g. :9090)
}

type StorageConfig struct {
	Path string `yaml:"path"` // SQLite cost store, "" disables persistence
}

type SearchConfig struct {
	Model               string  `yaml:"model"`         // multinomial | hierarchical
	MaxGroups           int     `yaml:"max_groups"`    // 0: unbounded
	MaxIntervals        int     `yaml:"max_intervals"` // 0: unbounded
	HyperParametersCost float64 `yaml:"hyper_parameters_cost"`
	ExactThreshold      int     `yaml:"exact_threshold"` // tables up to this size are solved exactly
}

type HistogramConfig struct {
	MaxHierarchyLevel     int  `yaml:"max_hierarchy_level"`
	MinCentralBinExponent int  `yaml:"min_central_bin_exponent"`
	MaxCentralBinExponent int  `yaml:"max_central_bin_exponent"`
	MantissaBits          int  `yaml:"mantissa_bits"`
	EnforceFixedSizeBins  bool `yaml:"enforce_fixed_size_bins"`
}

type SystemConfig struct {
	Workers int `yaml:"workers"`
}

func Load(configPath string) (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Addr:    ":8080",
			TCPAddr: ":9090",
		},
		Storage: StorageConfig{
			Path: "modl_data/costs.db",
		},
		Search: SearchConfig{
			Model:          "multinomial",
			ExactThreshold: 64,
		},
		Histogram: HistogramConfig{
			MaxHierarchyLevel:     16,
			MinCentralBinExponent: -64,
			MaxCentralBinExponent: 64,
			MantissaBits:          10,
		},
		System: SystemConfig{
			Workers: 4,
		},
	}

	if configPath == "" {
		for _, p := range []string{"configs/modl.yaml", "modl.yaml"} {
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
	if cfg.Search.Model == "" {
		cfg.Search.Model = "multinomial"
	}
	if cfg.Search.MaxGroups < 0 {
		cfg.Search.MaxGroups = 0
	}
	if cfg.Search.MaxIntervals < 0 {
		cfg.Search.MaxIntervals = 0
	}
	if cfg.Search.ExactThreshold < 0 {
		cfg.Search.ExactThreshold = 0
	}
	if cfg.Histogram.MaxHierarchyLevel <= 0 {
		cfg.Histogram.MaxHierarchyLevel = 16
	}
	if cfg.Histogram.MinCentralBinExponent > cfg.Histogram.MaxCentralBinExponent {
		cfg.Histogram.MinCentralBinExponent = -64
		cfg.Histogram.MaxCentralBinExponent = 64
	}
	if cfg.Histogram.MantissaBits < 0 {
		cfg.Histogram.MantissaBits = 10
	}
	if cfg.System.Workers <= 0 {
		cfg.System.Workers = 4
	}
	applyEnvironment(cfg)
}

// applyEnvironment resolves the fixed-size bins switch once, at load time.
// Values other than "true" or "false" leave the file setting untouched.
func applyEnvironment(cfg *Config) {
	switch strings.ToLower(os.Getenv(FixedSizeBinsEnv)) {
	case "true":
		cfg.Histogram.EnforceFixedSizeBins = true
	case "false":
		cfg.Histogram.EnforceFixedSizeBins = false
	}
}
