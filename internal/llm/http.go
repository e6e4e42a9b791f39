package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"
	"unicode/utf8"
)

// maxErrorBody caps how much of a failed reply is kept on an APIError.
const maxErrorBody = 512

// APIError is a non-2xx reply from a model backend.
type APIError struct {
	Provider string
	Status   int
	Body     string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s status %d: %s", e.Provider, e.Status, e.Body)
}

// Retryable reports whether another attempt can succeed: rate limits and
// server-side failures. Anything else (bad key, bad request, unknown model)
// fails the same way every time.
func (e *APIError) Retryable() bool {
	return e.Status == http.StatusTooManyRequests || e.Status == http.StatusRequestTimeout || e.Status >= 500
}

// IsPermanent reports whether err is an APIError that retrying cannot fix.
func IsPermanent(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && !apiErr.Retryable()
}

// PostJSON posts body to url and returns the 2xx response body. A non-2xx
// reply becomes *APIError; a client-side timeout wraps
// context.DeadlineExceeded so it is counted as a timed-out attempt.
func PostJSON(ctx context.Context, client *http.Client, provider, url string, body any, headers map[string]string, logger *slog.Logger) ([]byte, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if client == nil {
		client = http.DefaultClient
	}
	start := time.Now()

	bs, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("%s: encode request: %w", provider, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(bs))
	if err != nil {
		return nil, fmt.Errorf("%s: build request: %w", provider, err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		var netErr net.Error
		if ctx.Err() == nil && errors.As(err, &netErr) && netErr.Timeout() {
			return nil, fmt.Errorf("%s: %w: %v", provider, context.DeadlineExceeded, err)
		}
		return nil, fmt.Errorf("%s: send: %w", provider, err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			logger.Warn("llm.http.body_close_failed", "provider", provider, "error", err)
		}
	}()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%s: read response: %w", provider, err)
	}
	logger.Debug("llm.http.response",
		"provider", provider,
		"status", resp.StatusCode,
		"request_bytes", len(bs),
		"response_bytes", len(raw),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	if resp.StatusCode/100 != 2 {
		return nil, &APIError{Provider: provider, Status: resp.StatusCode, Body: TruncateRunes(string(raw), maxErrorBody)}
	}
	return raw, nil
}

// TruncateRunes cuts s to at most max bytes without splitting a UTF-8
// sequence, marking the cut.
func TruncateRunes(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return cutRunes(s, max) + "...(truncated)"
}

// cutRunes returns the longest prefix of s of at most max bytes that ends
// on a rune boundary.
func cutRunes(s string, max int) string {
	if len(s) <= max {
		return s
	}
	for max > 0 && !utf8.RuneStart(s[max]) {
		max--
	}
	return s[:max]
}
