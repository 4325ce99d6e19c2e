// Package logging constructs the process logger and sanitizes sensitive
// values before they reach log output.
package logging

import "go.uber.org/zap"

// New builds the process logger. Local environments get the human-readable
// development encoder; everything else logs structured JSON.
func New(env string, verbose bool) (*zap.Logger, error) {
	var cfg zap.Config
	if env == "local" {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
	}

	if verbose {
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	} else {
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}

	return cfg.Build()
}
