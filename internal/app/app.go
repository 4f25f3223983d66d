// Package app provides the main application structure and lifecycle management.
package app

import (
	"context"
	"errors"
	"net"
	"net/http"

	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Application represents the main application with its lifecycle.
type Application struct {
	app *fx.App
}

// New creates a new Application with the provided modules and options.
func New(modules ...fx.Option) *Application {
	options := append(modules, fx.Invoke(registerLifecycleHooks))

	return &Application{
		app: fx.New(options...),
	}
}

// Run starts the application and blocks until it's stopped.
func (a *Application) Run() {
	a.app.Run()
}

// Stop gracefully stops the application.
func (a *Application) Stop(ctx context.Context) error {
	return a.app.Stop(ctx)
}

// registerLifecycleHooks ties the HTTP server to the application lifecycle.
func registerLifecycleHooks(lc fx.Lifecycle, srv *http.Server, logger *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			ln, err := net.Listen("tcp", srv.Addr)
			if err != nil {
				logger.Error("Failed to bind server address", zap.Error(err), zap.String("addr", srv.Addr))

				return err
			}

			go func() {
				if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Error("HTTP server stopped unexpectedly", zap.Error(err))
				}
			}()
			logger.Info("Application started", zap.String("addr", srv.Addr))

			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Info("Stopping application: shutting down HTTP server")

			if err := srv.Shutdown(ctx); err != nil {
				logger.Error("Failed to shut down HTTP server", zap.Error(err))

				return err
			}

			logger.Info("Application stopped successfully")

			return nil
		},
	})
}
