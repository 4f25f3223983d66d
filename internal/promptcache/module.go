// Package promptcache provides prompt cache infrastructure and Fx modules.
package promptcache

import (
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/inkwell-ai/inkwell/internal/config"
)

const defaultCachePath = "prompt-cache.json"

// Module provides prompt cache dependencies.
var Module = fx.Module("promptcache",
	fx.Provide(NewStoreProvider),
)

// NewStoreProvider creates a file-backed Store with config-derived path and TTL.
func NewStoreProvider(cfg *config.Config, logger *zap.Logger) *Store {
	path := cfg.Cache.Path
	if path == "" {
		logger.Warn("cache path is not configured, using default",
			zap.String("default", defaultCachePath))
		path = defaultCachePath
	}

	return NewStore(NewFileStorage(path), cfg.Cache.TTL, logger)
}
