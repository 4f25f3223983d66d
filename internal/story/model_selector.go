package story

import (
	"errors"

	"go.uber.org/zap"

	"github.com/inkwell-ai/inkwell/internal/config"
)

// ModelSelector defines the interface for selecting an AI model.
type ModelSelector interface {
	SelectModel(userPreference string) (modelName string, err error)
}

// NewModelSelector creates a new ModelSelector based on application configuration.
func NewModelSelector(logger *zap.Logger, cfg *config.Config) ModelSelector {
	return &configModelSelector{
		logger: logger.Named("model_selector"),
		cfg:    cfg,
	}
}

type configModelSelector struct {
	logger *zap.Logger
	cfg    *config.Config
}

// SelectModel validates model configuration and selects the model to use.
func (cms *configModelSelector) SelectModel(userPreference string) (string, error) {
	if len(cms.cfg.Provider.Models) == 0 {
		return "", errors.New("no provider models configured")
	}

	if userPreference != "" {
		for _, configuredModel := range cms.cfg.Provider.Models {
			if userPreference == configuredModel {
				cms.logger.Debug("Using user-specified model", zap.String("model", userPreference))

				return userPreference, nil
			}
		}
		cms.logger.Warn("User specified an invalid model, defaulting.",
			zap.String("specifiedModel", userPreference),
			zap.Strings("availableModels", cms.cfg.Provider.Models),
		)
	}

	defaultModel := cms.cfg.Provider.Models[0]
	cms.logger.Debug("Using default model", zap.String("model", defaultModel))

	return defaultModel, nil // Default to the first configured model
}
