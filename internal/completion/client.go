package completion

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/inkwell-ai/inkwell/internal/metrics"
)

// ResponseCache is the prompt cache consulted before and updated after
// completions. Implementations must be safe for concurrent use.
type ResponseCache interface {
	Get(key string) (content string, ok bool)
	Put(key, content string)
}

// Config holds the provider connection settings for a Client.
type Config struct {
	BaseURL string
	APIKey  string

	// RequestTimeout bounds atomic completions and model listing.
	// Streaming calls are bounded only by the caller's context.
	RequestTimeout time.Duration

	// HTTPClient overrides the default transport, mainly for tests.
	HTTPClient *http.Client
}

// Validate checks required fields only.
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return errors.New("BaseURL is required")
	}
	if c.APIKey == "" {
		return errors.New("APIKey is required")
	}

	return nil
}

func (c *Config) withDefaults() Config {
	cfg := *c
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 60 * time.Second
	}

	return cfg
}

// Client serves atomic and streaming chat completions against one
// provider endpoint. Each in-flight request is individually cancellable
// through its fingerprint; results of successful completions land in the
// injected ResponseCache under the same fingerprint.
type Client struct {
	cfg        Config
	logger     *zap.Logger
	httpClient *http.Client
	cache      ResponseCache

	// fingerprint -> context.CancelFunc for every in-flight request.
	inflight sync.Map
}

// NewClient creates a completion client with the given configuration.
func NewClient(cfg Config, cache ResponseCache, logger *zap.Logger) (*Client, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Transport: defaultTransport()}
	}

	return &Client{
		cfg:        cfg,
		logger:     logger.Named("completion_client"),
		httpClient: httpClient,
		cache:      cache,
	}, nil
}

func defaultTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   100,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
}

// Complete performs one atomic completion. A fresh cache entry for the
// request fingerprint short-circuits the call with no network activity;
// otherwise the result of a successful call replaces the entry.
func (c *Client) Complete(ctx context.Context, req Request) (string, error) {
	if err := req.Validate(); err != nil {
		return "", fmt.Errorf("invalid request: %w", err)
	}

	key := Fingerprint(req.Messages, req.Temperature)
	if content, ok := c.cache.Get(key); ok {
		metrics.CacheHitsTotal.Inc()
		c.logger.Debug("serving completion from cache", zap.String("fingerprint", key))

		return content, nil
	}
	metrics.CacheMissesTotal.Inc()

	opCtx, release := c.track(ctx, key)
	defer release()

	opCtx, timeoutCancel := context.WithTimeout(opCtx, c.cfg.RequestTimeout)
	defer timeoutCancel()

	start := time.Now()
	c.logger.Info("sending completion request",
		zap.String("model", req.Model),
		zap.Int("messageCount", len(req.Messages)),
		zap.String("fingerprint", key),
	)

	resp, err := c.postChatCompletion(opCtx, req, false)
	if err != nil {
		return "", c.classify(opCtx, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", c.httpError(resp)
	}

	var pResp providerChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&pResp); err != nil {
		return "", c.classify(opCtx, fmt.Errorf("decode upstream response: %w", err))
	}

	// Zero choices is an empty completion, not an error.
	var content string
	if len(pResp.Choices) > 0 {
		content = pResp.Choices[0].Message.Content
	}

	c.cache.Put(key, content)
	metrics.CompletionDurationSeconds.WithLabelValues("atomic").Observe(time.Since(start).Seconds())
	c.logger.Info("completion finished",
		zap.String("fingerprint", key),
		zap.Int("contentLength", len(content)),
		zap.Duration("duration", time.Since(start)),
	)

	return content, nil
}

// CompleteStream performs one streaming completion. Every decoded delta
// is handed to onChunk in stream order; the accumulated text is returned
// on normal completion and written to the cache. Streaming never consults
// the cache before connecting, only at the end. A cancelled stream
// returns ErrCanceled and leaves no cache entry.
func (c *Client) CompleteStream(ctx context.Context, req Request, onChunk func(delta string)) (string, error) {
	if err := req.Validate(); err != nil {
		return "", fmt.Errorf("invalid request: %w", err)
	}

	// Streaming never consults the cache, so it does not count toward
	// the hit/miss ratio either.
	key := Fingerprint(req.Messages, req.Temperature)

	opCtx, release := c.track(ctx, key)
	defer release()

	start := time.Now()
	c.logger.Info("starting completion stream",
		zap.String("model", req.Model),
		zap.Int("messageCount", len(req.Messages)),
		zap.String("fingerprint", key),
	)

	resp, err := c.postChatCompletion(opCtx, req, true)
	if err != nil {
		return "", c.classify(opCtx, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", c.httpError(resp)
	}

	decoder := NewChunkDecoder()
	var acc strings.Builder
	chunkCount := 0
	done := false

	emit := func(events []Event) {
		for _, ev := range events {
			if done {
				return
			}
			switch ev.Kind {
			case EventDelta:
				acc.WriteString(ev.Delta)
				chunkCount++
				if onChunk != nil {
					onChunk(ev.Delta)
				}
			case EventDone:
				done = true
			}
		}
	}

	buf := make([]byte, 4096)
	for !done {
		n, readErr := resp.Body.Read(buf)
		if n > 0 {
			emit(decoder.Feed(buf[:n]))
		}
		if readErr != nil {
			if errors.Is(readErr, io.EOF) {
				// Provider closed without an explicit sentinel; treat as
				// normal end after draining the carry-over buffer.
				emit(decoder.Flush())

				break
			}

			return "", c.classify(opCtx, readErr)
		}
	}

	content := acc.String()
	c.cache.Put(key, content)
	metrics.CompletionDurationSeconds.WithLabelValues("stream").Observe(time.Since(start).Seconds())
	c.logger.Info("completion stream finished",
		zap.String("fingerprint", key),
		zap.Int("chunks", chunkCount),
		zap.Int("contentLength", len(content)),
		zap.Duration("duration", time.Since(start)),
	)

	return content, nil
}

// ListModels fetches the identifiers of the models the provider offers.
func (c *Client) ListModels(ctx context.Context) ([]string, error) {
	reqCtx, cancel := context.WithTimeout(ctx, c.cfg.RequestTimeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(reqCtx, http.MethodGet, c.cfg.BaseURL+"/models", nil)
	if err != nil {
		return nil, &NetworkError{Err: fmt.Errorf("build models request: %w", err)}
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, c.classify(reqCtx, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, c.httpError(resp)
	}

	var pResp providerModelsResponse
	if err := json.NewDecoder(resp.Body).Decode(&pResp); err != nil {
		return nil, &NetworkError{Err: fmt.Errorf("decode models response: %w", err)}
	}

	models := make([]string, 0, len(pResp.Data))
	for _, m := range pResp.Data {
		models = append(models, m.ID)
	}
	c.logger.Debug("listed provider models", zap.Int("count", len(models)))

	return models, nil
}

// Cancel aborts the in-flight request for the given fingerprint.
// It reports whether such a request was outstanding.
func (c *Client) Cancel(fingerprint string) bool {
	tok, loaded := c.inflight.LoadAndDelete(fingerprint)
	if !loaded {
		return false
	}
	tok.(*inflightToken).cancel()
	c.logger.Info("cancelled in-flight completion", zap.String("fingerprint", fingerprint))

	return true
}

// CancelAll aborts every in-flight request and returns how many there were.
func (c *Client) CancelAll() int {
	count := 0
	c.inflight.Range(func(key, _ any) bool {
		if tok, loaded := c.inflight.LoadAndDelete(key); loaded {
			tok.(*inflightToken).cancel()
			count++
		}

		return true
	})
	if count > 0 {
		c.logger.Info("cancelled all in-flight completions", zap.Int("count", count))
	}

	return count
}

// InFlight reports the number of currently outstanding requests.
func (c *Client) InFlight() int {
	count := 0
	c.inflight.Range(func(_, _ any) bool {
		count++

		return true
	})

	return count
}

// inflightToken represents one tracked request. Tokens are compared by
// identity so a stale release never evicts a successor's entry.
type inflightToken struct {
	cancel context.CancelFunc
}

// track registers a cancellation token for one request. A second request
// with the same fingerprint cancels and replaces the previous one. The
// returned release func must run on every exit path; it removes the
// entry only while it still holds this request's token, so the unwind of
// a replaced request leaves the replacement cancellable.
func (c *Client) track(ctx context.Context, key string) (context.Context, func()) {
	opCtx, cancel := context.WithCancel(ctx)
	tok := &inflightToken{cancel: cancel}

	if prev, loaded := c.inflight.LoadAndDelete(key); loaded {
		c.logger.Info("cancelling previous in-flight request for fingerprint", zap.String("fingerprint", key))
		prev.(*inflightToken).cancel()
	}
	c.inflight.Store(key, tok)

	return opCtx, func() {
		c.inflight.CompareAndDelete(key, tok)
		cancel()
	}
}

func (c *Client) postChatCompletion(ctx context.Context, req Request, stream bool) (*http.Response, error) {
	body, err := json.Marshal(providerChatRequest{
		Model:       req.Model,
		Messages:    req.Messages,
		Stream:      stream,
		Temperature: req.Temperature,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build HTTP request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	httpReq.Header.Set("Content-Type", "application/json")

	return c.httpClient.Do(httpReq)
}

func (c *Client) httpError(resp *http.Response) error {
	body, _ := io.ReadAll(resp.Body)
	err := &HTTPError{Status: resp.StatusCode, Body: string(body)}
	c.logger.Error("upstream returned error status",
		zap.Int("status", resp.StatusCode),
		zap.String("body", truncate(string(body), 200)),
	)

	return err
}

// classify maps a transport failure to the surfaced error kind: a request
// aborted through its token becomes ErrCanceled, everything else wraps
// into NetworkError.
func (c *Client) classify(ctx context.Context, err error) error {
	if errors.Is(ctx.Err(), context.Canceled) {
		c.logger.Info("completion cancelled")

		return ErrCanceled
	}
	c.logger.Error("completion failed", zap.Error(err))

	return &NetworkError{Err: err}
}

// truncate limits string length for logging.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}

	return s[:maxLen] + "..."
}
