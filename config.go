package loader

import (
	"log/slog"

	"github.com/ygrebnov/errorc"

	"github.com/imgview/loader/metrics"
)

// config holds Loader configuration assembled from options.
type config struct {
	// recursive controls whether directory requests descend into
	// subdirectories.
	recursive bool

	// priority maps a load ID to the pool priority of its decode. The
	// default returns the ID itself, so more recently submitted requests
	// preempt older ones in the queue.
	priority func(loadID int) int

	// notify, when set, is invoked after at least one completion was
	// published (a redraw/refresh hook).
	notify func()

	logger  *slog.Logger
	metrics metrics.Provider
}

func defaultConfig() config {
	return config{
		recursive: false,
		priority:  func(loadID int) int { return loadID },
		logger:    slog.Default(),
		metrics:   metrics.NewNoopProvider(),
	}
}

// Option configures a Loader. Use New(pool, decode, opts...) to construct.
type Option func(*config) error

// WithRecursiveDirectories makes directory requests descend into
// subdirectories when listing files.
func WithRecursiveDirectories() Option {
	return func(cfg *config) error { cfg.recursive = true; return nil }
}

// WithPriority overrides how a load ID maps to its decode's pool priority.
func WithPriority(fn func(loadID int) int) Option {
	return func(cfg *config) error {
		if fn == nil {
			return errorc.With(ErrInvalidConfig, errorc.String("", "WithPriority requires a non-nil function"))
		}
		cfg.priority = fn
		return nil
	}
}

// WithNotify registers a hook invoked whenever publishing made at least one
// new completion available to the consumer.
func WithNotify(fn func()) Option {
	return func(cfg *config) error {
		if fn == nil {
			return errorc.With(ErrInvalidConfig, errorc.String("", "WithNotify requires a non-nil function"))
		}
		cfg.notify = fn
		return nil
	}
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(cfg *config) error {
		if l == nil {
			return errorc.With(ErrInvalidConfig, errorc.String("", "WithLogger requires a non-nil logger"))
		}
		cfg.logger = l
		return nil
	}
}

// WithMetrics sets the metrics provider.
func WithMetrics(m metrics.Provider) Option {
	return func(cfg *config) error {
		if m == nil {
			return errorc.With(ErrInvalidConfig, errorc.String("", "WithMetrics requires a non-nil provider"))
		}
		cfg.metrics = m
		return nil
	}
}
