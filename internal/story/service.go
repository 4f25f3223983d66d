package story

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/inkwell-ai/inkwell/internal/completion"
)

// Completer is the slice of the completion client the workflow needs.
type Completer interface {
	Complete(ctx context.Context, req completion.Request) (string, error)
	CompleteStream(ctx context.Context, req completion.Request, onChunk func(delta string)) (string, error)
}

// Step identifies one stage of the story-writing workflow.
type Step string

const (
	// StepOutline turns the premise into a chapter outline.
	StepOutline Step = "outline"
	// StepChapter drafts the next chapter.
	StepChapter Step = "chapter"
	// StepRevise reworks the most recent draft per the user's notes.
	StepRevise Step = "revise"
)

var stepPrompts = map[Step]string{
	StepOutline: "Produce a chapter-by-chapter outline for the story so far. Number each chapter and give it a one-paragraph summary.",
	StepChapter: "Write the next chapter of the story, consistent with the outline and everything written so far.",
	StepRevise:  "Revise the most recent draft according to the following notes. Return the full revised text.",
}

const storytellerPrompt = "You are a skilled collaborative fiction writer. " +
	"Stay consistent with the story's established premise, characters, and tone."

// ErrSessionNotFound is returned when no session exists for the given ID.
var ErrSessionNotFound = errors.New("story session not found")

// ErrUnknownStep is returned for a step outside the workflow vocabulary.
var ErrUnknownStep = errors.New("unknown workflow step")

// ErrStepInProgress is returned when a session already has a step running.
var ErrStepInProgress = errors.New("a step is already in progress for this session")

// Service drives the multi-step story workflow on top of the completion
// client, keeping per-story conversation state in an LRU session store.
type Service struct {
	logger    *zap.Logger
	completer Completer
	selector  ModelSelector
	titles    TitleGenerator
	sessions  *SessionStore
	negative  *NegativeSessionCache
}

// NewService creates a new story Service.
func NewService(
	logger *zap.Logger,
	completer Completer,
	selector ModelSelector,
	titles TitleGenerator,
	sessions *SessionStore,
	negative *NegativeSessionCache,
) *Service {
	return &Service{
		logger:    logger.Named("story_service"),
		completer: completer,
		selector:  selector,
		titles:    titles,
		sessions:  sessions,
		negative:  negative,
	}
}

// Start creates a new story session from a premise. The title comes from
// a short atomic completion; if that fails, a truncation of the premise
// is used instead so starting a story never depends on the title call.
func (s *Service) Start(ctx context.Context, premise, modelPreference string) (*Session, error) {
	if strings.TrimSpace(premise) == "" {
		return nil, errors.New("premise is empty")
	}

	model, err := s.selector.SelectModel(modelPreference)
	if err != nil {
		return nil, fmt.Errorf("select model: %w", err)
	}

	title, err := s.titles.GenerateTitle(ctx, premise, model)
	if err != nil || title == "" {
		title = fallbackTitle(premise)
	}

	session := &Session{
		ID:        newSessionID(),
		Title:     title,
		Model:     model,
		CreatedAt: time.Now(),
		Messages: []completion.Message{
			{Role: completion.RoleSystem, Content: storytellerPrompt},
			{Role: completion.RoleUser, Content: "Premise: " + premise},
		},
	}
	s.sessions.Add(session.ID, session)

	s.logger.Info("Started story session",
		zap.String("sessionID", session.ID),
		zap.String("title", title),
		zap.String("model", model),
	)

	return session, nil
}

// Advance runs one workflow step for the session, streaming the draft
// through onChunk. On success the assistant reply is appended to the
// session history; a cancelled or failed step leaves the history untouched.
func (s *Service) Advance(ctx context.Context, sessionID string, step Step, input string, onChunk func(delta string)) (string, error) {
	if s.negative.Contains(sessionID) {
		s.logger.Debug("Session is in negative cache, ignoring", zap.String("sessionID", sessionID))

		return "", ErrSessionNotFound
	}

	session, found := s.sessions.Get(sessionID)
	if !found {
		s.negative.Add(sessionID)
		s.logger.Info("Session not found, adding to negative cache", zap.String("sessionID", sessionID))

		return "", ErrSessionNotFound
	}

	prompt, ok := stepPrompts[step]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownStep, step)
	}

	// One step at a time per session; a concurrent advance for the same
	// story is rejected rather than racing on the shared history.
	if !session.mu.TryLock() {
		s.logger.Warn("Rejecting concurrent story step", zap.String("sessionID", sessionID))

		return "", ErrStepInProgress
	}
	defer session.mu.Unlock()

	content := prompt
	if strings.TrimSpace(input) != "" {
		content = prompt + "\n\n" + input
	}

	messages := append(append([]completion.Message{}, session.Messages...), completion.Message{
		Role:    completion.RoleUser,
		Content: content,
	})

	s.logger.Info("Advancing story",
		zap.String("sessionID", sessionID),
		zap.String("step", string(step)),
		zap.Int("historyLength", len(messages)),
	)

	text, err := s.completer.CompleteStream(ctx, completion.Request{
		Model:    session.Model,
		Messages: messages,
	}, onChunk)
	if err != nil {
		if errors.Is(err, completion.ErrCanceled) {
			s.logger.Info("Story step cancelled", zap.String("sessionID", sessionID))
		} else {
			s.logger.Error("Story step failed", zap.Error(err), zap.String("sessionID", sessionID))
		}

		return "", err
	}

	session.Messages = append(messages, completion.Message{
		Role:    completion.RoleAssistant,
		Content: text,
	})
	s.sessions.Add(sessionID, session)

	s.logger.Info("Story step completed",
		zap.String("sessionID", sessionID),
		zap.String("step", string(step)),
		zap.Int("contentLength", len(text)),
	)

	return text, nil
}

// Get returns the session for the given ID.
func (s *Service) Get(sessionID string) (*Session, bool) {
	return s.sessions.Get(sessionID)
}

func fallbackTitle(premise string) string {
	premise = strings.TrimSpace(premise)
	if i := strings.IndexByte(premise, '\n'); i >= 0 {
		premise = premise[:i]
	}
	if len(premise) > maxTitleLength {
		premise = premise[:maxTitleLength-3] + "..."
	}

	return premise
}

func newSessionID() string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		// crypto/rand only fails when the platform entropy source is broken
		panic(err)
	}

	return hex.EncodeToString(b)
}
