package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	internal "github.com/ZanzyTHEbar/nmt-denoise/nmt"
	"github.com/ZanzyTHEbar/nmt-denoise/nmt/noise"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

// ConfigTestSuite tests the config package functionality
type ConfigTestSuite struct {
	suite.Suite
	tempDir string
	origDir string
}

func TestConfigSuite(t *testing.T) {
	suite.Run(t, new(ConfigTestSuite))
}

func (suite *ConfigTestSuite) SetupTest() {
	var err error
	suite.origDir, err = os.Getwd()
	require.NoError(suite.T(), err)

	suite.tempDir = suite.T().TempDir()
	require.NoError(suite.T(), os.Chdir(suite.tempDir))
}

func (suite *ConfigTestSuite) TearDownTest() {
	if suite.origDir != "" {
		os.Chdir(suite.origDir)
	}
}

func (suite *ConfigTestSuite) TestLoadConfigWithDefaults() {
	cfg, err := LoadConfig("")
	require.NoError(suite.T(), err)
	require.NotNil(suite.T(), cfg)

	assert.Equal(suite.T(), 3, cfg.Noise.Permutation)
	assert.Equal(suite.T(), 0.1, cfg.Noise.Deletion)
	assert.Equal(suite.T(), 0.0, cfg.Noise.Insertion)
	assert.Equal(suite.T(), 1, cfg.Noise.Workers)
	assert.Equal(suite.T(), len(internal.VocabSymbols), cfg.Vocab.ReservedSymbols)
	assert.Equal(suite.T(), "source", cfg.Embedding.Side)
	assert.Equal(suite.T(), "info", cfg.Log.Level)
	assert.NoError(suite.T(), cfg.Noise.Model().Validate())
}

func (suite *ConfigTestSuite) TestLoadConfigWithFile() {
	configContent := `
noise:
  permutation: 0
  deletion: 0
  insertion: 0.25
  insertionVocab: 5000
  workers: 4
  seed: 42
vocab:
  reservedSymbols: 3
embedding:
  side: target
log:
  level: debug
`
	configFile := filepath.Join(suite.tempDir, "config.yaml")
	require.NoError(suite.T(), os.WriteFile(configFile, []byte(configContent), 0o644))

	cfg, err := LoadConfig(configFile)
	require.NoError(suite.T(), err)

	assert.Equal(suite.T(), noise.Config{Insertion: 0.25, InsertionVocab: 5000}, cfg.Noise.Model())
	assert.Equal(suite.T(), 4, cfg.Noise.Workers)
	assert.Equal(suite.T(), uint64(42), cfg.Noise.Seed)
	assert.Equal(suite.T(), 3, cfg.Vocab.ReservedSymbols)
	assert.Equal(suite.T(), "target", cfg.Embedding.Side)
	assert.Equal(suite.T(), "debug", cfg.Log.Level)
	assert.Equal(suite.T(), *cfg, AppConfig)

	m, err := noise.NewModel(cfg.Noise.Model(), cfg.NoiseOptions()...)
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), 3, m.ReservedSymbols())

	// Seeded configs reproduce the same noise.
	other, err := noise.NewModel(cfg.Noise.Model(), cfg.NoiseOptions()...)
	require.NoError(suite.T(), err)
	batch, err := noise.FromRows([][]int32{{5, 6, 7, 8, 9}}, 12)
	require.NoError(suite.T(), err)
	a, err := m.Apply(context.Background(), batch)
	require.NoError(suite.T(), err)
	b, err := other.Apply(context.Background(), batch)
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), a.Sequences(), b.Sequences())
}

func (suite *ConfigTestSuite) TestLoadConfigInvalidFile() {
	configFile := filepath.Join(suite.tempDir, "config.yaml")
	require.NoError(suite.T(), os.WriteFile(configFile, []byte("noise: [unterminated"), 0o644))

	_, err := LoadConfig(configFile)
	assert.Error(suite.T(), err)
}

func (suite *ConfigTestSuite) TestEnvironmentOverrides() {
	suite.T().Setenv("NMT_NOISE_DELETION", "0.3")
	suite.T().Setenv("NMT_LOG_LEVEL", "warn")

	cfg, err := LoadConfig("")
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), 0.3, cfg.Noise.Deletion)
	assert.Equal(suite.T(), "warn", cfg.Log.Level)
}

func (suite *ConfigTestSuite) TestFlagsOverrideFile() {
	configFile := filepath.Join(suite.tempDir, "config.yaml")
	require.NoError(suite.T(), os.WriteFile(configFile, []byte("noise:\n  permutation: 2\n  deletion: 0.2\n"), 0o644))

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.Int("permutation", 0, "")
	flags.Float64("deletion", 0, "")
	require.NoError(suite.T(), flags.Parse([]string{"--permutation=5"}))

	cfg, err := Load(configFile, flags)
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), 5, cfg.Noise.Permutation, "explicit flag wins")
	assert.Equal(suite.T(), 0.2, cfg.Noise.Deletion, "unset flag falls back to the file")
}
