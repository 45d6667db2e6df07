// Package azure adapts the Azure Face and Speaker Recognition REST APIs to the biometric channels.
package azure

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/odyssey-erp/odyssey-mfa/internal/biometric"
)

const (
	keyHeader = "Ocp-Apim-Subscription-Key"
	// DefaultTimeout bounds every provider call.
	DefaultTimeout = 20 * time.Second
)

// CallObserver receives the outcome of every provider call.
type CallObserver interface {
	ObserveProviderCall(channel, op string, err error, elapsed time.Duration)
}

// StatusError carries a non-2xx provider response.
type StatusError struct {
	Status  int
	Code    string
	Message string
}

func (e *StatusError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("status %d", e.Status)
	}
	return fmt.Sprintf("status %d: %s: %s", e.Status, e.Code, e.Message)
}

type errorEnvelope struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// transport is the shared HTTP plumbing of both clients.
type transport struct {
	channel    string
	baseURL    string
	key        string
	httpClient *http.Client
	observer   CallObserver
}

func newTransport(channel, baseURL, key string, timeout time.Duration, client *http.Client, observer CallObserver) transport {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if client == nil {
		client = &http.Client{Timeout: timeout}
	} else if client.Timeout <= 0 || client.Timeout > timeout {
		copied := *client
		copied.Timeout = timeout
		client = &copied
	}
	return transport{
		channel:    channel,
		baseURL:    strings.TrimRight(baseURL, "/"),
		key:        key,
		httpClient: client,
		observer:   observer,
	}
}

func (t transport) configured() error {
	if t.baseURL == "" || t.key == "" {
		return fmt.Errorf("%w: %s provider not configured", biometric.ErrProviderUnavailable, t.channel)
	}
	return nil
}

type request struct {
	op          string
	method      string
	path        string
	contentType string
	body        []byte
}

func jsonRequest(op, method, path string, payload any) (request, error) {
	req := request{op: op, method: method, path: path}
	if payload != nil {
		body, err := json.Marshal(payload)
		if err != nil {
			return req, err
		}
		req.body = body
		req.contentType = "application/json"
	}
	return req, nil
}

// do sends req and decodes a 2xx JSON body into out. Failures are classified as
// ErrProviderUnavailable (transport, 401/403, 408, 429, 5xx) or ErrSampleRejected (other 4xx).
func (t transport) do(ctx context.Context, req request, out any) (err error) {
	start := time.Now()
	defer func() {
		if t.observer != nil {
			t.observer.ObserveProviderCall(t.channel, req.op, err, time.Since(start))
		}
	}()
	if err := t.configured(); err != nil {
		return err
	}

	var body io.Reader
	if req.body != nil {
		body = bytes.NewReader(req.body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.method, t.baseURL+req.path, body)
	if err != nil {
		return fmt.Errorf("azure: build %s request: %w", req.op, err)
	}
	httpReq.Header.Set(keyHeader, t.key)
	if req.contentType != "" {
		httpReq.Header.Set("Content-Type", req.contentType)
	}

	resp, err := t.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %v", biometric.ErrProviderUnavailable, t.channel, req.op, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("%w: %s %s: read body: %v", biometric.ErrProviderUnavailable, t.channel, req.op, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		statusErr := &StatusError{Status: resp.StatusCode}
		var envelope errorEnvelope
		if json.Unmarshal(payload, &envelope) == nil {
			statusErr.Code = envelope.Error.Code
			statusErr.Message = envelope.Error.Message
		}
		return fmt.Errorf("%w: %s %s: %w", classify(resp.StatusCode), t.channel, req.op, statusErr)
	}

	if out == nil || len(bytes.TrimSpace(payload)) == 0 {
		return nil
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return fmt.Errorf("%w: %s %s: decode response: %v", biometric.ErrProviderUnavailable, t.channel, req.op, err)
	}
	return nil
}

func classify(status int) error {
	switch {
	case status == http.StatusUnauthorized, status == http.StatusForbidden,
		status == http.StatusRequestTimeout, status == http.StatusTooManyRequests,
		status >= 500:
		return biometric.ErrProviderUnavailable
	default:
		return biometric.ErrSampleRejected
	}
}

func statusOf(err error) int {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Status
	}
	return 0
}
