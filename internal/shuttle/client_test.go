package shuttle

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

// newMockAPI simulates the chat completions endpoint. Streaming requests get
// the answer split into word frames; blocking requests get a full completion.
func newMockAPI(t *testing.T, answer string) (*httptest.Server, *map[string]any) {
	t.Helper()
	lastRequest := &map[string]any{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" || r.Method != http.MethodPost {
			http.NotFound(w, r)
			return
		}
		if auth := r.Header.Get("Authorization"); !strings.HasPrefix(auth, "Bearer ") {
			http.Error(w, "missing bearer token", http.StatusUnauthorized)
			return
		}
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		*lastRequest = body

		if stream, _ := body["stream"].(bool); stream {
			w.Header().Set("Content-Type", "text/event-stream")
			flusher := w.(http.Flusher)
			words := strings.SplitAfter(answer, " ")
			for _, word := range words {
				chunk := map[string]any{
					"id":      "chatcmpl-1",
					"model":   body["model"],
					"created": time.Now().Unix(),
					"choices": []map[string]any{
						{"index": 0, "delta": map[string]any{"content": word}},
					},
				}
				data, _ := json.Marshal(chunk)
				fmt.Fprintf(w, "data: %s\n", data)
				flusher.Flush()
			}
			fmt.Fprint(w, "data: [DONE]\n")
			flusher.Flush()
			return
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":      "chatcmpl-1",
			"object":  "chat.completion",
			"created": time.Now().Unix(),
			"model":   body["model"],
			"choices": []map[string]any{
				{
					"index":         0,
					"message":       map[string]any{"role": "assistant", "content": answer},
					"finish_reason": "stop",
				},
			},
			"usage": map[string]any{"prompt_tokens": 5, "completion_tokens": 3, "total_charged": 0.002},
		})
	}))
	return srv, lastRequest
}

func testRequest() *ChatRequest {
	return &ChatRequest{Messages: []ChatMessage{Text(RoleUser, "Say hello")}}
}

func TestCreate_Blocking(t *testing.T) {
	srv, lastRequest := newMockAPI(t, "Hello from Shuttle")
	defer srv.Close()

	client := NewClient(srv.URL, "test-key", "test-model", 5*time.Second)
	defer client.Close()

	result, err := client.Create(context.Background(), testRequest())
	if err != nil {
		t.Fatal(err)
	}
	if got := result.Choices[0].Message.Content; got != "Hello from Shuttle" {
		t.Errorf("content = %v", got)
	}
	if (*lastRequest)["model"] != "test-model" {
		t.Errorf("default model not applied: %v", (*lastRequest)["model"])
	}
	if _, ok := (*lastRequest)["stream"]; ok {
		t.Error("blocking request must not set stream")
	}
}

func TestCreateStream_EndToEnd(t *testing.T) {
	srv, _ := newMockAPI(t, "Hello world")
	defer srv.Close()

	client := NewClient(srv.URL, "test-key", "test-model", 5*time.Second)
	defer client.Close()

	events, err := client.CreateStream(context.Background(), testRequest())
	if err != nil {
		t.Fatal(err)
	}
	var content strings.Builder
	for ev := range events {
		if ev.Err != nil {
			t.Fatalf("stream error: %v", ev.Err)
		}
		if ev.Chunk != nil {
			content.WriteString(ev.Chunk.DeltaContent())
		}
	}
	if content.String() != "Hello world" {
		t.Errorf("accumulated = %q", content.String())
	}
}

func TestStatusClassification(t *testing.T) {
	cases := []struct {
		status int
		kind   ErrorKind
	}{
		{429, KindRetryableStatus},
		{500, KindRetryableStatus},
		{502, KindRetryableStatus},
		{503, KindRetryableStatus},
		{504, KindRetryableStatus},
		{400, KindRequest},
		{401, KindRequest},
		{404, KindRequest},
		{501, KindGeneric},
	}
	for _, tc := range cases {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "upstream unhappy", tc.status)
		}))
		client := NewClient(srv.URL, "k", "m", 5*time.Second)

		_, err := client.Create(context.Background(), testRequest())
		var statusErr *StatusError
		if !errors.As(err, &statusErr) {
			t.Fatalf("status %d: expected *StatusError, got %v", tc.status, err)
		}
		if statusErr.Kind() != tc.kind {
			t.Errorf("status %d: kind = %v, want %v", tc.status, statusErr.Kind(), tc.kind)
		}
		if !strings.Contains(statusErr.Body, "upstream unhappy") {
			t.Errorf("status %d: raw body not preserved: %q", tc.status, statusErr.Body)
		}
		client.Close()
		srv.Close()
	}
}

func TestCreate_EmptyBodyIsNoResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "k", "m", 5*time.Second)
	defer client.Close()

	_, err := client.Create(context.Background(), testRequest())
	if !errors.Is(err, ErrNoResponse) {
		t.Errorf("expected ErrNoResponse, got %v", err)
	}
}

func TestCreate_GarbageBodyIsDecodeError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "<html>not json</html>")
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "k", "m", 5*time.Second)
	defer client.Close()

	_, err := client.Create(context.Background(), testRequest())
	var decodeErr *DecodeError
	if !errors.As(err, &decodeErr) {
		t.Errorf("expected *DecodeError, got %v", err)
	}
}

func TestCreate_ConnectionError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // nothing listens here any more

	client := NewClient(srv.URL, "k", "m", 2*time.Second)
	defer client.Close()

	_, err := client.Create(context.Background(), testRequest())
	var connErr *ConnectionError
	if !errors.As(err, &connErr) {
		t.Errorf("expected *ConnectionError, got %v", err)
	}
}

func TestCreateStream_CancelClosesConnection(t *testing.T) {
	release := make(chan struct{})
	bodyClosed := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		fmt.Fprint(w, `data: {"id":"c1","model":"m","choices":[{"index":0,"delta":{"content":"x"}}]}`+"\n")
		flusher.Flush()
		select {
		case <-r.Context().Done():
			close(bodyClosed)
		case <-release:
		}
	}))
	defer srv.Close()
	defer close(release)

	client := NewClient(srv.URL, "k", "m", time.Minute)
	defer client.Close()

	ctx, cancel := context.WithCancel(context.Background())
	events, err := client.CreateStream(ctx, testRequest())
	if err != nil {
		t.Fatal(err)
	}
	<-events // first chunk arrives
	cancel()

	select {
	case <-bodyClosed:
	case <-time.After(5 * time.Second):
		t.Fatal("cancelling the consumer did not close the connection")
	}
	for range events {
		// drain until closed
	}
}
