// Package completion provides completion client infrastructure and Fx modules.
package completion

import (
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/inkwell-ai/inkwell/internal/config"
	"github.com/inkwell-ai/inkwell/internal/promptcache"
)

// Module provides completion client dependencies.
var Module = fx.Module("completion",
	fx.Provide(NewClientProvider),
)

// NewClientProvider creates a completion Client from application config,
// backed by the prompt cache store.
func NewClientProvider(cfg *config.Config, store *promptcache.Store, logger *zap.Logger) (*Client, error) {
	return NewClient(Config{
		BaseURL:        cfg.Provider.BaseURL,
		APIKey:         cfg.Provider.APIKey,
		RequestTimeout: cfg.Provider.RequestTimeout,
	}, store, logger)
}
