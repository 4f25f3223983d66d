// Package server provides HTTP server infrastructure and Fx modules.
package server

import (
	"net/http"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/inkwell-ai/inkwell/internal/completion"
	"github.com/inkwell-ai/inkwell/internal/config"
	"github.com/inkwell-ai/inkwell/internal/promptcache"
	"github.com/inkwell-ai/inkwell/internal/story"
)

const defaultAddr = ":8080"

// Module provides HTTP server dependencies.
var Module = fx.Module("server",
	fx.Provide(
		NewHandlerProvider,
		NewHTTPServer,
	),
)

// NewHandlerProvider creates the API handler from the concrete services.
func NewHandlerProvider(
	logger *zap.Logger,
	client *completion.Client,
	store *promptcache.Store,
	stories *story.Service,
) *Handler {
	return NewHandler(logger, client, store, stories)
}

// NewHTTPServer builds the http.Server serving the API router.
func NewHTTPServer(cfg *config.Config, logger *zap.Logger, h *Handler) *http.Server {
	addr := cfg.Server.Addr
	if addr == "" {
		logger.Warn("server address is not configured, using default", zap.String("default", defaultAddr))
		addr = defaultAddr
	}

	return &http.Server{
		Addr:    addr,
		Handler: NewRouter(logger, h, cfg.Server.RequestTimeout),
	}
}
