package shuttle

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"strings"
)

const (
	framePrefix   = "data:"
	doneSentinel  = "[DONE]"
	streamBufSize = 16
)

// StreamEvent is one typed value pulled from a streaming completion. Exactly
// one field is set, in preference order: Chunk (typed), ErrorRecord
// (structured server error), Raw (unrecognized but valid JSON), Err (the
// stream itself failed: transport or decode).
type StreamEvent struct {
	Chunk       *ChatChunk
	ErrorRecord *APIError
	Raw         json.RawMessage
	Err         error
}

// decodeFrame turns one raw line of the wire stream into at most one JSON
// payload. Lines without the "data:" prefix (including blank keep-alives)
// yield nothing. The "[DONE]" sentinel yields done=true and no payload.
// Malformed JSON after the prefix is a DecodeError, deliberately propagated
// rather than dropped.
func decodeFrame(line string) (payload json.RawMessage, done bool, err error) {
	rest, ok := strings.CutPrefix(strings.TrimSpace(line), framePrefix)
	if !ok {
		return nil, false, nil
	}
	rest = strings.TrimSpace(rest)
	if rest == doneSentinel {
		return nil, true, nil
	}
	if !json.Valid([]byte(rest)) {
		return nil, false, &DecodeError{Raw: rest, Err: errInvalidJSON}
	}
	return json.RawMessage(rest), false, nil
}

var errInvalidJSON = jsonSyntaxError("stream line is not valid JSON")

type jsonSyntaxError string

func (e jsonSyntaxError) Error() string { return string(e) }

// readStream consumes the response body line by line, decodes each frame, and
// sends typed events on ch until the sentinel, EOF, an error, or context
// cancellation. Closes both the channel and the body on all exit paths.
func readStream(ctx context.Context, body io.ReadCloser, ch chan<- StreamEvent) {
	defer body.Close()
	defer close(ch)

	emit := func(ev StreamEvent) bool {
		select {
		case ch <- ev:
			return true
		case <-ctx.Done():
			return false
		}
	}

	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		payload, done, err := decodeFrame(scanner.Text())
		if err != nil {
			emit(StreamEvent{Err: err})
			return
		}
		if done {
			return
		}
		if payload == nil {
			continue
		}
		if !emit(typeStreamFrame(payload)) {
			return
		}
	}
	if err := scanner.Err(); err != nil && ctx.Err() == nil {
		emit(StreamEvent{Err: err})
	}
}
