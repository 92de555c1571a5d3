package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	internal "github.com/ZanzyTHEbar/nmt-denoise/nmt"
	"github.com/ZanzyTHEbar/nmt-denoise/nmt/noise"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config stores all configuration of the application.
// The values are read by viper from a config file, environment variables or bound flags.
type Config struct {
	Noise     NoiseConfig     `mapstructure:"noise"`
	Vocab     VocabConfig     `mapstructure:"vocab"`
	Embedding EmbeddingConfig `mapstructure:"embedding"`
	Log       LogConfig       `mapstructure:"log"`
}

// NoiseConfig stores the denoising autoencoder noise parameters.
type NoiseConfig struct {
	Permutation    int     `mapstructure:"permutation"`
	Deletion       float64 `mapstructure:"deletion"`
	Insertion      float64 `mapstructure:"insertion"`
	InsertionVocab int     `mapstructure:"insertionVocab"`
	Workers        int     `mapstructure:"workers"`
	// Seed makes noise reproducible; 0 draws a fresh seed.
	Seed uint64 `mapstructure:"seed"`
}

// VocabConfig stores vocabulary layout settings shared with the training host.
type VocabConfig struct {
	ReservedSymbols int `mapstructure:"reservedSymbols"`
}

// EmbeddingConfig stores replace-embedding defaults.
type EmbeddingConfig struct {
	Side string `mapstructure:"side"`
}

// LogConfig stores logging settings.
type LogConfig struct {
	Level string `mapstructure:"level"`
}

// Model converts the section to the noise package's value type.
func (n NoiseConfig) Model() noise.Config {
	return noise.Config{
		Permutation:    n.Permutation,
		Deletion:       n.Deletion,
		Insertion:      n.Insertion,
		InsertionVocab: n.InsertionVocab,
	}
}

// NoiseOptions returns the model options implied by the configuration.
func (c *Config) NoiseOptions() []noise.Option {
	opts := []noise.Option{
		noise.WithReservedSymbols(c.Vocab.ReservedSymbols),
		noise.WithWorkers(c.Noise.Workers),
	}
	if c.Noise.Seed != 0 {
		opts = append(opts, noise.WithSource(noise.NewSource(c.Noise.Seed)))
	}
	return opts
}

var AppConfig Config

// setDefaults registers defaults on v.
func setDefaults(v *viper.Viper) {
	v.SetDefault("noise.permutation", 3)
	v.SetDefault("noise.deletion", 0.1)
	v.SetDefault("noise.insertion", 0.0)
	v.SetDefault("noise.insertionVocab", 0)
	v.SetDefault("noise.workers", 1)
	v.SetDefault("noise.seed", 0)
	v.SetDefault("vocab.reservedSymbols", len(internal.VocabSymbols))
	v.SetDefault("embedding.side", internal.DefaultEmbeddingSide)
	v.SetDefault("log.level", internal.DefaultLogLevel)
}

// LoadConfig reads configuration from file or environment variables.
func LoadConfig(configPath string) (*Config, error) {
	return Load(configPath, nil)
}

// Load reads configuration like LoadConfig and lets flags override file and
// environment values. Flag names map to keys through FlagKeys.
func Load(configPath string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.AddConfigPath(".")
		v.AddConfigPath(filepath.Join("etc", internal.DefaultAppName))
		v.AddConfigPath(internal.DefaultConfigPath)
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	setDefaults(v)

	v.SetEnvPrefix(internal.DefaultEnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_")) // noise.deletion becomes NMT_NOISE_DELETION
	v.AutomaticEnv()

	if flags != nil {
		for name, key := range FlagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("failed to bind flag %s: %w", name, err)
				}
			}
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// No config file: defaults, env and flags still apply.
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode into struct: %w", err)
	}
	AppConfig = cfg
	return &cfg, nil
}

// FlagKeys maps CLI flag names to config keys.
var FlagKeys = map[string]string{
	"permutation":      "noise.permutation",
	"deletion":         "noise.deletion",
	"insertion":        "noise.insertion",
	"insertion-vocab":  "noise.insertionVocab",
	"workers":          "noise.workers",
	"seed":             "noise.seed",
	"reserved-symbols": "vocab.reservedSymbols",
	"side":             "embedding.side",
	"log-level":        "log.level",
}
