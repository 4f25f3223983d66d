// Package story provides story workflow infrastructure and Fx modules.
package story

import (
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/inkwell-ai/inkwell/internal/completion"
	"github.com/inkwell-ai/inkwell/internal/config"
)

// Module provides story workflow dependencies.
var Module = fx.Module("story",
	fx.Provide(
		NewCompleterProvider,
		NewModelSelector,
		NewTitleGenerator,
		NewSessionStoreProvider,
		NewNegativeSessionCacheProvider,
		NewService,
	),
)

// NewCompleterProvider exposes the completion client through the
// workflow-facing Completer interface.
func NewCompleterProvider(client *completion.Client) Completer {
	return client
}

// NewSessionStoreProvider creates a SessionStore with config-derived size.
func NewSessionStoreProvider(cfg *config.Config, logger *zap.Logger) *SessionStore {
	size := cfg.Story.SessionCacheSize
	if size <= 0 {
		logger.Warn("Story SessionCacheSize is not configured or is invalid, defaulting to 100",
			zap.Int("configuredSize", size))
		size = 100
	}

	return NewSessionStore(size)
}

// NewNegativeSessionCacheProvider creates a NegativeSessionCache with config-derived size.
func NewNegativeSessionCacheProvider(cfg *config.Config, logger *zap.Logger) *NegativeSessionCache {
	size := cfg.Story.NegativeCacheSize
	if size <= 0 {
		logger.Warn("Story NegativeCacheSize is not configured or is invalid, defaulting to 1000",
			zap.Int("configuredSize", size))
		size = 1000
	}

	return NewNegativeSessionCache(size)
}
