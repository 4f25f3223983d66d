package story

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/inkwell-ai/inkwell/internal/completion"
)

const maxTitleLength = 60

// TitleGenerator produces a short display title for a new story.
type TitleGenerator interface {
	GenerateTitle(ctx context.Context, premise, model string) (string, error)
}

// NewTitleGenerator creates a completion-backed title generator.
func NewTitleGenerator(completer Completer, logger *zap.Logger) TitleGenerator {
	return &completionTitleGenerator{
		completer: completer,
		logger:    logger.Named("title_generator"),
	}
}

type completionTitleGenerator struct {
	completer Completer
	logger    *zap.Logger
}

// GenerateTitle asks the model for a single short title based on the premise.
func (g *completionTitleGenerator) GenerateTitle(ctx context.Context, premise, model string) (string, error) {
	temperature := float32(0.2) // low randomness

	title, err := g.completer.Complete(ctx, completion.Request{
		Model:       model,
		Temperature: &temperature,
		Messages: []completion.Message{
			{
				Role: completion.RoleSystem,
				Content: "You are a helpful assistant that crafts a single-sentence story title. " +
					"The title must be no longer than 60 characters, contain no quotes, " +
					"and be in the same language as the input.",
			},
			{
				Role:    completion.RoleUser,
				Content: premise,
			},
		},
	})
	if err != nil {
		g.logger.Warn("Failed to generate story title", zap.Error(err))

		return "", err
	}

	// Keep the first line only and cap the length.
	if i := strings.IndexByte(title, '\n'); i >= 0 {
		title = title[:i]
	}
	title = strings.TrimSpace(title)
	if len(title) > maxTitleLength {
		title = title[:maxTitleLength]
	}
	g.logger.Debug("Generated story title", zap.String("title", title))

	return title, nil
}
