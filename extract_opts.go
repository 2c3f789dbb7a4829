package tarball

import "log/slog"

// extractConfig holds configuration for extraction.
type extractConfig struct {
	preservePermissions bool
	absoluteNames       bool
	overwrite           bool
	skipUnsupported     bool
	verbose             func(*Entry)
	logger              *slog.Logger
}

// ExtractOption configures extraction.
type ExtractOption func(*extractConfig)

// ExtractWithPreservePermissions restores recorded permission bits,
// including setuid, setgid, and sticky, instead of letting the process
// umask apply.
func ExtractWithPreservePermissions(preserve bool) ExtractOption {
	return func(cfg *extractConfig) {
		cfg.preservePermissions = preserve
	}
}

// ExtractWithAbsoluteNames allows member names with leading slashes to be
// written at their absolute locations. Without it such names are rejected
// as insecure.
func ExtractWithAbsoluteNames(absolute bool) ExtractOption {
	return func(cfg *extractConfig) {
		cfg.absoluteNames = absolute
	}
}

// ExtractWithOverwrite controls whether existing files are replaced.
// Overwriting is on by default; disabling it makes an existing
// destination an error.
func ExtractWithOverwrite(overwrite bool) ExtractOption {
	return func(cfg *extractConfig) {
		cfg.overwrite = overwrite
	}
}

// ExtractWithSkipUnsupported skips entry types that cannot be
// materialized (device nodes, fifos, unknown typeflags) instead of
// failing on them.
func ExtractWithSkipUnsupported(skip bool) ExtractOption {
	return func(cfg *extractConfig) {
		cfg.skipUnsupported = skip
	}
}

// ExtractWithVerboseFunc installs a per-entry notifier, called before
// each entry is applied.
func ExtractWithVerboseFunc(fn func(*Entry)) ExtractOption {
	return func(cfg *extractConfig) {
		cfg.verbose = fn
	}
}

// ExtractWithLogger sets the logger for extraction diagnostics.
func ExtractWithLogger(logger *slog.Logger) ExtractOption {
	return func(cfg *extractConfig) {
		cfg.logger = logger
	}
}
