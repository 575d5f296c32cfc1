package bot

import (
	"context"
	"log/slog"
	"strings"
)

// MaxMessageLen is the hard per-message ceiling of the sink, counted in
// characters, not bytes.
const MaxMessageLen = 2000

// DeliveryBuffer turns a sequence of streamed text fragments into a bounded
// number of outgoing messages with visible incremental progress. One message
// is sent for the whole request; every later flush grows it via edits. The
// flushed slices concatenate exactly to the accumulated text: no separators
// are injected, nothing is dropped or duplicated.
type DeliveryBuffer struct {
	sink MessageSink
	log  *slog.Logger

	pending  string // accumulated but not yet delivered
	handle   string // "" until the first successful send
	sentText string // text already visible in the sent message
	chunks   int
	full     strings.Builder
}

// NewDeliveryBuffer creates a buffer for one in-flight completion.
func NewDeliveryBuffer(sink MessageSink, log *slog.Logger) *DeliveryBuffer {
	return &DeliveryBuffer{sink: sink, log: log}
}

// Add accumulates one fragment and flushes when the buffer exceeds the
// message ceiling or contains a paragraph break.
func (d *DeliveryBuffer) Add(ctx context.Context, content string) {
	if content == "" {
		return
	}
	d.chunks++
	d.full.WriteString(content)
	d.pending += content

	for {
		head, tail := cutRunes(d.pending, MaxMessageLen)
		if tail == "" {
			break
		}
		d.flush(ctx, head)
		d.pending = tail
	}
	if strings.Contains(d.pending, "\n\n") || strings.Contains(d.pending, "\r") {
		d.flush(ctx, d.pending)
		d.pending = ""
	}
}

// Finish drains whatever is still buffered, slicing at the message ceiling,
// and returns the full concatenated text plus the number of content chunks
// received.
func (d *DeliveryBuffer) Finish(ctx context.Context) (string, int) {
	for d.pending != "" {
		head, tail := cutRunes(d.pending, MaxMessageLen)
		d.flush(ctx, head)
		d.pending = tail
	}
	return d.full.String(), d.chunks
}

// cutRunes splits s after at most n characters. The cut lands on a rune
// boundary, never inside a multi-byte sequence, so both halves stay valid
// UTF-8. tail is empty when s fits within n.
func cutRunes(s string, n int) (head, tail string) {
	count := 0
	for i := range s {
		if count == n {
			return s[:i], s[i:]
		}
		count++
	}
	return s, ""
}

// flush delivers one slice: the first successful flush sends a new message,
// every later one appends to it via edit. Sink failures are logged, never
// fatal — already-flushed output stays visible.
func (d *DeliveryBuffer) flush(ctx context.Context, text string) {
	if text == "" {
		return
	}
	if d.handle == "" {
		handle, err := d.sink.Send(ctx, text)
		if err != nil {
			d.log.Warn("send failed", "error", err)
			return
		}
		d.handle = handle
		d.sentText = text
		return
	}

	grown := d.sentText + text
	if err := d.sink.Edit(ctx, d.handle, grown); err != nil {
		d.log.Warn("edit failed", "error", err)
		// The sink rejects messages past its own total-length limit; start a
		// fresh message with this slice so the remainder is not lost.
		if strings.Contains(err.Error(), "Must be") {
			d.handle = ""
			d.sentText = ""
			d.flush(ctx, text)
		}
		return
	}
	d.sentText = grown
}
