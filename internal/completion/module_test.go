package completion

import (
	"path/filepath"
	"testing"

	"go.uber.org/fx"
	"go.uber.org/fx/fxtest"
	"go.uber.org/zap"

	"github.com/inkwell-ai/inkwell/internal/config"
	"github.com/inkwell-ai/inkwell/internal/promptcache"
)

func TestModule(t *testing.T) {
	testConfig := &config.Config{
		Provider: config.ProviderConfig{
			APIKey:  "test-api-key",
			BaseURL: "https://api.example.com/v1",
		},
		Cache: config.CacheConfig{
			Path: filepath.Join(t.TempDir(), "cache.json"),
		},
	}

	logger := zap.NewNop()

	app := fxtest.New(t,
		fx.Supply(testConfig, logger),
		promptcache.Module,
		Module,
		fx.Invoke(func(client *Client) {
			if client == nil {
				t.Error("completion client should not be nil")
			}
		}),
	)

	app.RequireStart()
	app.RequireStop()
}

func TestNewClientProvider_MissingAPIKey(t *testing.T) {
	cfg := &config.Config{
		Cache: config.CacheConfig{Path: filepath.Join(t.TempDir(), "cache.json")},
	}
	logger := zap.NewNop()
	store := promptcache.NewStoreProvider(cfg, logger)

	_, err := NewClientProvider(cfg, store, logger)
	if err == nil {
		t.Error("expected an error for empty API key")
	}
}
