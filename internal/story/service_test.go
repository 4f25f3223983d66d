package story_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/inkwell-ai/inkwell/internal/completion"
	"github.com/inkwell-ai/inkwell/internal/config"
	"github.com/inkwell-ai/inkwell/internal/story"
)

// fakeCompleter is a Completer double with scriptable behavior.
type fakeCompleter struct {
	completeFn func(ctx context.Context, req completion.Request) (string, error)
	streamFn   func(ctx context.Context, req completion.Request, onChunk func(string)) (string, error)

	completeCalls int
	streamCalls   int
}

func (f *fakeCompleter) Complete(ctx context.Context, req completion.Request) (string, error) {
	f.completeCalls++
	if f.completeFn == nil {
		return "", errors.New("unexpected Complete call")
	}

	return f.completeFn(ctx, req)
}

func (f *fakeCompleter) CompleteStream(ctx context.Context, req completion.Request, onChunk func(string)) (string, error) {
	f.streamCalls++
	if f.streamFn == nil {
		return "", errors.New("unexpected CompleteStream call")
	}

	return f.streamFn(ctx, req, onChunk)
}

func newTestService(t *testing.T, completer *fakeCompleter) *story.Service {
	t.Helper()

	logger := zaptest.NewLogger(t)
	cfg := &config.Config{
		Provider: config.ProviderConfig{
			Models: []string{"gpt-4", "gpt-3.5-turbo"},
		},
	}

	return story.NewService(
		logger,
		completer,
		story.NewModelSelector(logger, cfg),
		story.NewTitleGenerator(completer, logger),
		story.NewSessionStore(10),
		story.NewNegativeSessionCache(10),
	)
}

func TestService_StartCreatesTitledSession(t *testing.T) {
	completer := &fakeCompleter{
		completeFn: func(_ context.Context, req completion.Request) (string, error) {
			require.NotNil(t, req.Temperature, "title generation uses a pinned low temperature")
			assert.InDelta(t, 0.2, float64(*req.Temperature), 0.001)

			return "The Clockwork Garden\nsecond line ignored", nil
		},
	}
	svc := newTestService(t, completer)

	session, err := svc.Start(context.Background(), "A gardener discovers her roses are machines.", "")
	require.NoError(t, err)

	assert.Equal(t, "The Clockwork Garden", session.Title)
	assert.Equal(t, "gpt-4", session.Model, "defaults to the first configured model")
	assert.NotEmpty(t, session.ID)
	require.Len(t, session.Messages, 2)
	assert.Equal(t, completion.RoleSystem, session.Messages[0].Role)
	assert.Contains(t, session.Messages[1].Content, "A gardener discovers her roses are machines.")

	stored, found := svc.Get(session.ID)
	require.True(t, found)
	assert.Equal(t, session.ID, stored.ID)
}

func TestService_StartUsesValidModelPreference(t *testing.T) {
	completer := &fakeCompleter{
		completeFn: func(context.Context, completion.Request) (string, error) {
			return "Title", nil
		},
	}
	svc := newTestService(t, completer)

	session, err := svc.Start(context.Background(), "premise", "gpt-3.5-turbo")
	require.NoError(t, err)
	assert.Equal(t, "gpt-3.5-turbo", session.Model)
}

func TestService_StartFallsBackWhenTitleGenerationFails(t *testing.T) {
	completer := &fakeCompleter{
		completeFn: func(context.Context, completion.Request) (string, error) {
			return "", &completion.NetworkError{Err: errors.New("provider down")}
		},
	}
	svc := newTestService(t, completer)

	session, err := svc.Start(context.Background(), "A very short premise", "")
	require.NoError(t, err, "starting a story never depends on the title call")
	assert.Equal(t, "A very short premise", session.Title)
}

func TestService_StartRejectsEmptyPremise(t *testing.T) {
	svc := newTestService(t, &fakeCompleter{})

	_, err := svc.Start(context.Background(), "   ", "")
	assert.Error(t, err)
}

func TestService_AdvanceStreamsAndAppendsHistory(t *testing.T) {
	completer := &fakeCompleter{
		completeFn: func(context.Context, completion.Request) (string, error) {
			return "Title", nil
		},
		streamFn: func(_ context.Context, req completion.Request, onChunk func(string)) (string, error) {
			// The step message is the last one appended.
			last := req.Messages[len(req.Messages)-1]
			assert.Equal(t, completion.RoleUser, last.Role)
			assert.Contains(t, last.Content, "outline")

			for _, d := range []string{"Chapter 1: ", "The Garden"} {
				onChunk(d)
			}

			return "Chapter 1: The Garden", nil
		},
	}
	svc := newTestService(t, completer)

	session, err := svc.Start(context.Background(), "premise", "")
	require.NoError(t, err)

	var chunks []string
	text, err := svc.Advance(context.Background(), session.ID, story.StepOutline, "three chapters", func(d string) {
		chunks = append(chunks, d)
	})

	require.NoError(t, err)
	assert.Equal(t, "Chapter 1: The Garden", text)
	assert.Equal(t, []string{"Chapter 1: ", "The Garden"}, chunks)

	stored, found := svc.Get(session.ID)
	require.True(t, found)
	require.Len(t, stored.Messages, 4)
	assert.Equal(t, completion.RoleAssistant, stored.Messages[3].Role)
	assert.Equal(t, "Chapter 1: The Garden", stored.Messages[3].Content)
}

func TestService_AdvanceFailureLeavesHistoryUntouched(t *testing.T) {
	completer := &fakeCompleter{
		completeFn: func(context.Context, completion.Request) (string, error) {
			return "Title", nil
		},
		streamFn: func(context.Context, completion.Request, func(string)) (string, error) {
			return "", completion.ErrCanceled
		},
	}
	svc := newTestService(t, completer)

	session, err := svc.Start(context.Background(), "premise", "")
	require.NoError(t, err)

	_, err = svc.Advance(context.Background(), session.ID, story.StepChapter, "", nil)
	require.ErrorIs(t, err, completion.ErrCanceled)

	stored, found := svc.Get(session.ID)
	require.True(t, found)
	assert.Len(t, stored.Messages, 2, "cancelled step must not grow the history")
}

func TestService_AdvanceRejectsConcurrentStepForSameSession(t *testing.T) {
	streaming := make(chan struct{})
	release := make(chan struct{})
	completer := &fakeCompleter{
		completeFn: func(context.Context, completion.Request) (string, error) {
			return "Title", nil
		},
		streamFn: func(context.Context, completion.Request, func(string)) (string, error) {
			close(streaming)
			<-release

			return "Chapter 1", nil
		},
	}
	svc := newTestService(t, completer)

	session, err := svc.Start(context.Background(), "premise", "")
	require.NoError(t, err)

	firstErr := make(chan error, 1)
	go func() {
		_, err := svc.Advance(context.Background(), session.ID, story.StepChapter, "", nil)
		firstErr <- err
	}()
	<-streaming

	_, err = svc.Advance(context.Background(), session.ID, story.StepChapter, "", nil)
	require.ErrorIs(t, err, story.ErrStepInProgress)

	close(release)
	require.NoError(t, <-firstErr)

	stored, found := svc.Get(session.ID)
	require.True(t, found)
	assert.Len(t, stored.History(), 4, "only the first step may touch the history")
}

func TestService_AdvanceUnknownSessionUsesNegativeCache(t *testing.T) {
	completer := &fakeCompleter{}
	svc := newTestService(t, completer)

	_, err := svc.Advance(context.Background(), "no-such-id", story.StepChapter, "", nil)
	require.ErrorIs(t, err, story.ErrSessionNotFound)

	// The second call short-circuits on the negative cache.
	_, err = svc.Advance(context.Background(), "no-such-id", story.StepChapter, "", nil)
	require.ErrorIs(t, err, story.ErrSessionNotFound)
	assert.Equal(t, 0, completer.streamCalls)
}

func TestService_AdvanceUnknownStep(t *testing.T) {
	completer := &fakeCompleter{
		completeFn: func(context.Context, completion.Request) (string, error) {
			return "Title", nil
		},
	}
	svc := newTestService(t, completer)

	session, err := svc.Start(context.Background(), "premise", "")
	require.NoError(t, err)

	_, err = svc.Advance(context.Background(), session.ID, story.Step("interpretive-dance"), "", nil)
	assert.ErrorIs(t, err, story.ErrUnknownStep)
}
