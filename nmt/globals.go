package internal

import (
	"log"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
)

var (
	// DefaultAppName is used for the config directory and env prefix
	DefaultAppName       = "nmt"
	DefaultConfigPath    = filepath.Join(getHomeDir(), ".config", DefaultAppName)
	DefaultEnvPrefix     = "NMT"
	DefaultLogLevel      = "info"
	DefaultEmbeddingSide = "source"
)

// Reserved token ids. PAD fills unused trailing positions of a batch row.
const (
	PadID = 0
	UnkID = 1
	BosID = 2
	EosID = 3
)

// Special token strings in id order.
const (
	PadSymbol = "<pad>"
	UnkSymbol = "<unk>"
	BosSymbol = "<s>"
	EosSymbol = "</s>"
)

// VocabSymbols is the reserved block at the bottom of every vocabulary.
// Randomly inserted noise tokens are offset past it.
var VocabSymbols = []string{PadSymbol, UnkSymbol, BosSymbol, EosSymbol}

func getHomeDir() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		cwd, cwdErr := os.Getwd()
		if cwdErr != nil {
			log.Printf("Unable to get home or working directory, using /tmp: %v", err)
			return "/tmp"
		}
		log.Printf("Unable to get home directory, using current working directory: %v", err)
		return cwd
	}
	return homeDir
}

// GetLogger returns a properly configured zerolog logger instance
func GetLogger() zerolog.Logger {
	return zerolog.New(os.Stderr).With().Timestamp().Logger()
}

// GetLoggerWithLevel returns GetLogger filtered at the named level.
// Unknown level names fall back to info.
func GetLoggerWithLevel(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	return GetLogger().Level(lvl)
}
