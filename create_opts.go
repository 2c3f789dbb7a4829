package tarball

import "log/slog"

// createConfig holds configuration for archive creation.
type createConfig struct {
	dereference   bool
	absoluteNames bool
	verbose       func(*Entry)
	logger        *slog.Logger
}

// CreateOption configures archive creation.
type CreateOption func(*createConfig)

// CreateWithDereference makes creation follow symbolic links, storing the
// target's content instead of the link.
func CreateWithDereference(dereference bool) CreateOption {
	return func(cfg *createConfig) {
		cfg.dereference = dereference
	}
}

// CreateWithAbsoluteNames keeps leading slashes in member names instead of
// stripping them.
func CreateWithAbsoluteNames(absolute bool) CreateOption {
	return func(cfg *createConfig) {
		cfg.absoluteNames = absolute
	}
}

// CreateWithVerboseFunc installs a per-entry notifier, called as each
// entry is written.
func CreateWithVerboseFunc(fn func(*Entry)) CreateOption {
	return func(cfg *createConfig) {
		cfg.verbose = fn
	}
}

// CreateWithLogger sets the logger for creation diagnostics.
func CreateWithLogger(logger *slog.Logger) CreateOption {
	return func(cfg *createConfig) {
		cfg.logger = logger
	}
}
