package shuttle

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"
)

// Version identifies the client in the User-Agent header.
const Version = "1.0.0"

const (
	// DefaultBaseURL is the official ShuttleAI API endpoint.
	DefaultBaseURL = "https://api.shuttleai.app"
	// DefaultChatModel is used when neither the client nor the request names one.
	DefaultChatModel = "shuttle-2-turbo"

	completionsPath = "v1/chat/completions"
)

// Client talks to the ShuttleAI chat completions API. It is safe to reuse
// across sequential requests; the underlying connections are pooled by the
// shared transport.
type Client struct {
	baseURL      string
	apiKey       string
	defaultModel string
	userAgent    string

	// httpClient enforces the overall per-request timeout on blocking calls.
	// Streaming requests go through streamClient, which has no client-level
	// timeout: the caller's context carries the deadline, otherwise a long
	// stream would be cut off mid-flight.
	httpClient   *http.Client
	streamClient *http.Client
	transport    *http.Transport

	closeOnce sync.Once
}

// NewClient constructs a Client. baseURL and defaultModel fall back to the
// package defaults when empty. timeout bounds one whole blocking request; it
// is not a per-line idle timeout.
func NewClient(baseURL, apiKey, defaultModel string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if defaultModel == "" {
		defaultModel = DefaultChatModel
	}
	if timeout == 0 {
		timeout = 120 * time.Second
	}

	transport := &http.Transport{Proxy: http.ProxyFromEnvironment}
	return &Client{
		baseURL:      strings.TrimRight(baseURL, "/"),
		apiKey:       apiKey,
		defaultModel: defaultModel,
		userAgent:    "shuttlebot/" + Version,
		httpClient:   &http.Client{Timeout: timeout, Transport: transport},
		streamClient: &http.Client{Transport: transport},
		transport:    transport,
	}
}

// Close releases idle connections. It is idempotent and safe to call on all
// exit paths.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		c.transport.CloseIdleConnections()
	})
}

// Create performs a blocking completion call and returns the single typed
// result. An empty 2xx body is ErrNoResponse, a hard failure.
func (c *Client) Create(ctx context.Context, req *ChatRequest) (*ChatCompletion, error) {
	call := *req
	call.Stream = false
	body, err := buildBody(&call, c.defaultModel)
	if err != nil {
		return nil, err
	}

	resp, err := c.do(ctx, http.MethodPost, completionsPath, body, false)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &ConnectionError{Err: err}
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, ErrNoResponse
	}
	if !json.Valid(raw) {
		return nil, &DecodeError{Raw: string(raw), Err: errInvalidJSON}
	}
	return typeCompletion(raw)
}

// CreateStream performs a streaming completion call. The returned channel
// yields one StreamEvent per meaningful frame and is closed when the stream
// terminates. Cancelling ctx closes the underlying connection promptly, so
// abandoning the channel mid-stream does not leak it.
func (c *Client) CreateStream(ctx context.Context, req *ChatRequest) (<-chan StreamEvent, error) {
	call := *req
	call.Stream = true
	body, err := buildBody(&call, c.defaultModel)
	if err != nil {
		return nil, err
	}

	resp, err := c.do(ctx, http.MethodPost, completionsPath, body, true)
	if err != nil {
		return nil, err
	}

	ch := make(chan StreamEvent, streamBufSize)
	go readStream(ctx, resp.Body, ch)
	return ch, nil
}

// do issues one HTTP call against the base URL and applies the status-code
// policy. On a non-2xx status the body is consumed into the returned
// StatusError; on success the caller owns resp.Body.
func (c *Client) do(ctx context.Context, method, path string, body []byte, stream bool) (*http.Response, error) {
	url := c.baseURL + "/" + strings.TrimLeft(path, "/")
	httpReq, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("shuttle: build request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("User-Agent", c.userAgent)
	if stream {
		httpReq.Header.Set("Accept", "text/event-stream")
	} else {
		httpReq.Header.Set("Accept", "application/json")
	}

	client := c.httpClient
	if stream {
		client = c.streamClient
	}
	resp, err := client.Do(httpReq)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("shuttle: request aborted: %w", err)
		}
		return nil, &ConnectionError{Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: string(raw)}
	}
	return resp, nil
}
