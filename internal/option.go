package internal

import "log/slog"

// Option configures the application before Run starts it.
type Option func(*application)

type application struct {
	config *Config
	logger *slog.Logger
}

// WithConfig supplies the application configuration. Required.
func WithConfig(cfg *Config) Option {
	return func(a *application) {
		a.config = cfg
	}
}

// WithLogger overrides the default stderr JSON logger, so tests and
// embedders can capture or silence output.
func WithLogger(l *slog.Logger) Option {
	return func(a *application) {
		a.logger = l
	}
}
