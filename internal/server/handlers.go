// Package server exposes the completion client and story workflow over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/inkwell-ai/inkwell/internal/completion"
	"github.com/inkwell-ai/inkwell/internal/story"
)

// CompletionClient is the slice of the completion client the API serves.
type CompletionClient interface {
	Complete(ctx context.Context, req completion.Request) (string, error)
	CompleteStream(ctx context.Context, req completion.Request, onChunk func(delta string)) (string, error)
	ListModels(ctx context.Context) ([]string, error)
	Cancel(fingerprint string) bool
	CancelAll() int
}

// CacheAdmin is the diagnostics surface of the prompt cache.
type CacheAdmin interface {
	Clear()
	Size() int
}

// StoryService is the workflow surface of the API.
type StoryService interface {
	Start(ctx context.Context, premise, modelPreference string) (*story.Session, error)
	Advance(ctx context.Context, sessionID string, step story.Step, input string, onChunk func(delta string)) (string, error)
	Get(sessionID string) (*story.Session, bool)
}

// Handler holds dependencies for the API endpoints.
type Handler struct {
	logger  *zap.Logger
	client  CompletionClient
	cache   CacheAdmin
	stories StoryService
}

// NewHandler creates the API handler.
func NewHandler(logger *zap.Logger, client CompletionClient, cache CacheAdmin, stories StoryService) *Handler {
	return &Handler{
		logger:  logger.Named("api"),
		client:  client,
		cache:   cache,
		stories: stories,
	}
}

type completionRequestBody struct {
	Model       string               `json:"model"`
	Messages    []completion.Message `json:"messages"`
	Temperature *float32             `json:"temperature,omitempty"`
}

func (b *completionRequestBody) toRequest() completion.Request {
	return completion.Request{
		Model:       b.Model,
		Messages:    b.Messages,
		Temperature: b.Temperature,
	}
}

// handleComplete serves POST /api/v1/completions.
func (h *Handler) handleComplete(w http.ResponseWriter, r *http.Request) {
	var body completionRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid JSON body")

		return
	}
	req := body.toRequest()

	content, err := h.client.Complete(r.Context(), req)
	if err != nil {
		h.respondCompletionError(w, err)

		return
	}

	h.respondJSON(w, http.StatusOK, map[string]string{
		"content":     content,
		"fingerprint": completion.Fingerprint(req.Messages, req.Temperature),
	})
}

// handleCompleteStream serves POST /api/v1/completions/stream, relaying
// upstream deltas to the browser as SSE data lines. Closing the
// connection cancels the upstream call through the request context.
func (h *Handler) handleCompleteStream(w http.ResponseWriter, r *http.Request) {
	var body completionRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid JSON body")

		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		h.respondError(w, http.StatusInternalServerError, "streaming unsupported")

		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	err := h.streamSSE(w, flusher, func(onChunk func(string)) (string, error) {
		return h.client.CompleteStream(r.Context(), body.toRequest(), onChunk)
	})
	if err != nil {
		h.logger.Debug("completion stream ended with error", zap.Error(err))
	}
}

// handleModels serves GET /api/v1/models.
func (h *Handler) handleModels(w http.ResponseWriter, r *http.Request) {
	models, err := h.client.ListModels(r.Context())
	if err != nil {
		h.respondCompletionError(w, err)

		return
	}
	h.respondJSON(w, http.StatusOK, map[string][]string{"models": models})
}

// handleCancel serves DELETE /api/v1/completions/{fingerprint}.
func (h *Handler) handleCancel(w http.ResponseWriter, r *http.Request) {
	fingerprint := chi.URLParam(r, "fingerprint")
	if !h.client.Cancel(fingerprint) {
		h.respondError(w, http.StatusNotFound, "no in-flight completion for fingerprint")

		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleCancelAll serves DELETE /api/v1/completions.
func (h *Handler) handleCancelAll(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, map[string]int{"cancelled": h.client.CancelAll()})
}

// handleCacheSize serves GET /api/v1/cache.
func (h *Handler) handleCacheSize(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, map[string]int{"size": h.cache.Size()})
}

// handleCacheClear serves DELETE /api/v1/cache.
func (h *Handler) handleCacheClear(w http.ResponseWriter, r *http.Request) {
	h.cache.Clear()
	w.WriteHeader(http.StatusNoContent)
}

type storyStartBody struct {
	Premise string `json:"premise"`
	Model   string `json:"model,omitempty"`
}

type storyAdvanceBody struct {
	Step  string `json:"step"`
	Input string `json:"input,omitempty"`
}

// handleStoryStart serves POST /api/v1/stories.
func (h *Handler) handleStoryStart(w http.ResponseWriter, r *http.Request) {
	var body storyStartBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid JSON body")

		return
	}

	session, err := h.stories.Start(r.Context(), body.Premise, body.Model)
	if err != nil {
		if errors.Is(err, completion.ErrCanceled) {
			h.respondError(w, http.StatusConflict, "canceled")

			return
		}
		h.respondError(w, http.StatusBadRequest, err.Error())

		return
	}

	h.respondJSON(w, http.StatusCreated, map[string]string{
		"id":    session.ID,
		"title": session.Title,
		"model": session.Model,
	})
}

// handleStoryGet serves GET /api/v1/stories/{id}.
func (h *Handler) handleStoryGet(w http.ResponseWriter, r *http.Request) {
	session, found := h.stories.Get(chi.URLParam(r, "id"))
	if !found {
		h.respondError(w, http.StatusNotFound, "story session not found")

		return
	}

	h.respondJSON(w, http.StatusOK, map[string]any{
		"id":       session.ID,
		"title":    session.Title,
		"model":    session.Model,
		"messages": session.History(),
	})
}

// handleStoryAdvance serves POST /api/v1/stories/{id}/advance as SSE.
func (h *Handler) handleStoryAdvance(w http.ResponseWriter, r *http.Request) {
	var body storyAdvanceBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid JSON body")

		return
	}

	sessionID := chi.URLParam(r, "id")
	flusher, ok := w.(http.Flusher)
	if !ok {
		h.respondError(w, http.StatusInternalServerError, "streaming unsupported")

		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	err := h.streamSSE(w, flusher, func(onChunk func(string)) (string, error) {
		return h.stories.Advance(r.Context(), sessionID, story.Step(body.Step), body.Input, onChunk)
	})
	if err != nil {
		h.logger.Debug("story advance stream ended with error", zap.Error(err))
	}
}

// streamSSE runs a streaming operation and relays its deltas as SSE data
// lines, terminating with the [DONE] sentinel on success or an error
// event otherwise.
func (h *Handler) streamSSE(w http.ResponseWriter, flusher http.Flusher, run func(onChunk func(string)) (string, error)) error {
	_, err := run(func(delta string) {
		payload, merr := json.Marshal(map[string]string{"content": delta})
		if merr != nil {
			return
		}
		fmt.Fprintf(w, "data: %s\n\n", payload)
		flusher.Flush()
	})
	if err != nil {
		kind := "error"
		if errors.Is(err, completion.ErrCanceled) {
			kind = "canceled"
		}
		payload, _ := json.Marshal(map[string]string{kind: err.Error()})
		fmt.Fprintf(w, "data: %s\n\n", payload)
		flusher.Flush()

		return err
	}

	fmt.Fprint(w, "data: [DONE]\n\n")
	flusher.Flush()

	return nil
}

func (h *Handler) respondCompletionError(w http.ResponseWriter, err error) {
	var httpErr *completion.HTTPError
	switch {
	case errors.Is(err, completion.ErrCanceled):
		h.respondError(w, http.StatusConflict, "canceled")
	case errors.As(err, &httpErr):
		h.respondJSON(w, http.StatusBadGateway, map[string]any{
			"error":           "upstream error",
			"upstream_status": httpErr.Status,
			"upstream_body":   httpErr.Body,
		})
	default:
		var netErr *completion.NetworkError
		if errors.As(err, &netErr) {
			h.respondError(w, http.StatusBadGateway, netErr.Error())

			return
		}
		h.respondError(w, http.StatusBadRequest, err.Error())
	}
}

func (h *Handler) respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Warn("failed to encode response", zap.Error(err))
	}
}

func (h *Handler) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, map[string]string{"error": message})
}
