package state

import (
	"context"
	"log/slog"
	"strings"
)

const (
	defaultLargeGuildThreshold = 250
	defaultMessageLimit        = 100
)

// config stores resolved engine settings after option application.
type config struct {
	disabledEvents        map[string]struct{}
	emitRawEvents         bool
	loadAllMembers        bool
	guildSubscriptions    bool
	storeOfflinePresences bool
	retainOfflineMembers  bool
	largeGuildThreshold   int
	messageLimit          int
	logger                *slog.Logger
	metrics               *Metrics
	onAsyncError          func(ctx context.Context, scope string, err error)
}

// Option mutates engine construction configuration.
type Option func(*config)

// defaultConfig returns production-safe engine defaults.
func defaultConfig() config {
	logger := slog.Default()

	return config{
		disabledEvents:      make(map[string]struct{}),
		largeGuildThreshold: defaultLargeGuildThreshold,
		messageLimit:        defaultMessageLimit,
		guildSubscriptions:  true,
		logger:              logger,
		onAsyncError: func(ctx context.Context, scope string, err error) {
			logger.ErrorContext(ctx, "disgate async error", "scope", scope, "error", err)
		},
	}
}

// WithDisabledEvents suppresses dispatching for the named gateway events.
// Matching is case-insensitive.
func WithDisabledEvents(events ...string) Option {
	return func(cfg *config) {
		for _, event := range events {
			cfg.disabledEvents[strings.ToUpper(event)] = struct{}{}
		}
	}
}

// WithRawEvents re-emits every dispatch packet as an untyped raw
// notification before routing.
func WithRawEvents(enabled bool) Option {
	return func(cfg *config) {
		cfg.emitRawEvents = enabled
	}
}

// WithLoadAllMembers enables bulk roster fetching for large guilds. It is
// additionally gated by the transport's guild-subscriptions capability.
func WithLoadAllMembers(enabled bool) Option {
	return func(cfg *config) {
		cfg.loadAllMembers = enabled
	}
}

// WithGuildSubscriptions declares the transport-level guild-subscriptions
// capability that bulk member loading depends on.
func WithGuildSubscriptions(enabled bool) Option {
	return func(cfg *config) {
		cfg.guildSubscriptions = enabled
	}
}

// WithOfflinePresences keeps presence entries whose status resolves to
// offline instead of evicting them after merge.
func WithOfflinePresences(store bool) Option {
	return func(cfg *config) {
		cfg.storeOfflinePresences = store
	}
}

// WithOfflineMembers keeps roster members whose presence goes offline
// instead of evicting them alongside the presence.
func WithOfflineMembers(retain bool) Option {
	return func(cfg *config) {
		cfg.retainOfflineMembers = retain
	}
}

// WithLargeGuildThreshold sets the roster size above which scope
// availability triggers a bulk member fetch.
func WithLargeGuildThreshold(threshold int) Option {
	return func(cfg *config) {
		if threshold > 0 {
			cfg.largeGuildThreshold = threshold
		}
	}
}

// WithMessageLimit bounds the message repository; older messages are evicted
// first. A non-positive limit keeps it unbounded.
func WithMessageLimit(limit int) Option {
	return func(cfg *config) {
		cfg.messageLimit = limit
	}
}

// WithLogger injects the engine logger.
func WithLogger(logger *slog.Logger) Option {
	return func(cfg *config) {
		if logger != nil {
			cfg.logger = logger
			cfg.onAsyncError = func(ctx context.Context, scope string, err error) {
				logger.ErrorContext(ctx, "disgate async error", "scope", scope, "error", err)
			}
		}
	}
}

// WithMetrics attaches dispatch and cache metrics collection.
func WithMetrics(metrics *Metrics) Option {
	return func(cfg *config) {
		cfg.metrics = metrics
	}
}

// WithAsyncErrorSink overrides where background failures are reported.
func WithAsyncErrorSink(sink func(ctx context.Context, scope string, err error)) Option {
	return func(cfg *config) {
		if sink != nil {
			cfg.onAsyncError = sink
		}
	}
}
