package shuttle

import (
	"encoding/json"
	"fmt"
)

// ChatRequest describes one completion call. Sampling parameters are pointers
// so that an unset parameter is omitted from the wire body entirely (omission
// is not the same as zero).
type ChatRequest struct {
	Model       string        `json:"model"`
	Messages    []ChatMessage `json:"messages"`
	Stream      bool          `json:"stream,omitempty"`
	Tools       []Tool        `json:"tools,omitempty"`
	ToolChoice  ToolChoice    `json:"tool_choice,omitempty"`
	Temperature *float64      `json:"temperature,omitempty"`
	MaxTokens   *int          `json:"max_tokens,omitempty"`
	TopP        *float64      `json:"top_p,omitempty"`
}

// Float64 returns a pointer to v, for setting sampling parameters inline.
func Float64(v float64) *float64 { return &v }

// Int returns a pointer to v.
func Int(v int) *int { return &v }

// buildBody serializes a ChatRequest into the wire body. The configured
// default model is applied only when the caller did not specify one. Both the
// blocking and the streaming path go through here, so request building stays
// a single pure function.
func buildBody(req *ChatRequest, defaultModel string) ([]byte, error) {
	if len(req.Messages) == 0 {
		return nil, fmt.Errorf("shuttle: messages must not be empty")
	}
	wire := *req
	if wire.Model == "" {
		wire.Model = defaultModel
	}
	body, err := json.Marshal(&wire)
	if err != nil {
		return nil, fmt.Errorf("shuttle: marshal request: %w", err)
	}
	return body, nil
}
