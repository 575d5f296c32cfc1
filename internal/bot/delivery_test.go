package bot

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"unicode/utf8"
)

// fakeSink records sends and edits and can be told to fail.
type fakeSink struct {
	sends    []string
	edits    []string
	failSend bool
	failEdit error
}

func (f *fakeSink) Send(ctx context.Context, text string) (string, error) {
	if f.failSend {
		return "", errors.New("send rejected")
	}
	f.sends = append(f.sends, text)
	return "msg-1", nil
}

func (f *fakeSink) Edit(ctx context.Context, handle string, fullText string) error {
	if f.failEdit != nil {
		return f.failEdit
	}
	f.edits = append(f.edits, fullText)
	return nil
}

// visible returns the final displayed text: the last edit, or the single send.
func (f *fakeSink) visible() string {
	if len(f.edits) > 0 {
		return f.edits[len(f.edits)-1]
	}
	if len(f.sends) > 0 {
		return f.sends[len(f.sends)-1]
	}
	return ""
}

func newTestBuffer(sink MessageSink) *DeliveryBuffer {
	return NewDeliveryBuffer(sink, slog.Default())
}

func TestDelivery_SingleFlushAtEnd(t *testing.T) {
	sink := &fakeSink{}
	d := newTestBuffer(sink)
	ctx := context.Background()

	d.Add(ctx, "Hello ")
	d.Add(ctx, "world")
	full, chunks := d.Finish(ctx)

	if full != "Hello world" {
		t.Errorf("full = %q", full)
	}
	if chunks != 2 {
		t.Errorf("chunks = %d, want 2", chunks)
	}
	if len(sink.sends) != 1 || sink.sends[0] != "Hello world" {
		t.Errorf("sends = %v, want one send of the whole text", sink.sends)
	}
	if len(sink.edits) != 0 {
		t.Errorf("edits = %v, want none", sink.edits)
	}
}

func TestDelivery_OversizedChunk(t *testing.T) {
	sink := &fakeSink{}
	d := newTestBuffer(sink)
	ctx := context.Background()

	text := strings.Repeat("a", 2500)
	d.Add(ctx, text)

	if len(sink.sends) != 1 || len(sink.sends[0]) != MaxMessageLen {
		t.Fatalf("expected immediate send of %d chars, got %v sends", MaxMessageLen, len(sink.sends))
	}

	full, _ := d.Finish(ctx)
	if full != text {
		t.Error("full text does not match input")
	}
	if len(sink.edits) != 1 {
		t.Fatalf("expected one edit at stream end, got %d", len(sink.edits))
	}
	if sink.visible() != text {
		t.Errorf("visible text length = %d, want %d", len(sink.visible()), len(text))
	}
}

func TestDelivery_ParagraphBreakFlushes(t *testing.T) {
	sink := &fakeSink{}
	d := newTestBuffer(sink)
	ctx := context.Background()

	d.Add(ctx, "first paragraph\n\n")
	if len(sink.sends) != 1 {
		t.Fatalf("paragraph break must flush, sends = %v", sink.sends)
	}
	d.Add(ctx, "second paragraph")
	full, _ := d.Finish(ctx)

	if full != "first paragraph\n\nsecond paragraph" {
		t.Errorf("full = %q", full)
	}
	if sink.visible() != full {
		t.Errorf("visible = %q, want %q", sink.visible(), full)
	}
}

func TestDelivery_NoSliceExceedsLimitAndNothingLost(t *testing.T) {
	sink := &fakeSink{}
	d := newTestBuffer(sink)
	ctx := context.Background()

	var want strings.Builder
	for i := 0; i < 90; i++ {
		fragment := strings.Repeat(string(rune('a'+i%26)), 100)
		want.WriteString(fragment)
		d.Add(ctx, fragment)
	}
	full, _ := d.Finish(ctx)

	if full != want.String() {
		t.Fatal("accumulated text mismatch")
	}
	if len(sink.sends) != 1 {
		t.Errorf("send called %d times, want exactly once", len(sink.sends))
	}
	if sink.visible() != want.String() {
		t.Error("flushed slices do not reassemble the full text")
	}
	// Each flush grew the message by at most MaxMessageLen characters.
	prev := len(sink.sends[0])
	if prev > MaxMessageLen {
		t.Errorf("initial send of %d chars exceeds limit", prev)
	}
	for _, e := range sink.edits {
		if len(e)-prev > MaxMessageLen {
			t.Errorf("edit appended %d chars, exceeds limit", len(e)-prev)
		}
		prev = len(e)
	}
}

func TestDelivery_MultiByteRunesNeverSplit(t *testing.T) {
	sink := &fakeSink{}
	d := newTestBuffer(sink)
	ctx := context.Background()

	// The character ceiling falls in the middle of the multi-byte tail.
	text := strings.Repeat("a", MaxMessageLen-1) + "世界"
	d.Add(ctx, text)

	if len(sink.sends) != 1 {
		t.Fatalf("sends = %d, want 1", len(sink.sends))
	}
	first := sink.sends[0]
	if !utf8.ValidString(first) {
		t.Fatalf("flushed slice is not valid UTF-8, tail bytes %x", first[len(first)-5:])
	}
	if n := utf8.RuneCountInString(first); n != MaxMessageLen {
		t.Errorf("first slice = %d characters, want %d", n, MaxMessageLen)
	}

	full, _ := d.Finish(ctx)
	if full != text {
		t.Error("full text mismatch")
	}
	if sink.visible() != text {
		t.Errorf("visible = %q, want the whole text", sink.visible())
	}
}

func TestDelivery_EmptyContentIgnored(t *testing.T) {
	sink := &fakeSink{}
	d := newTestBuffer(sink)
	ctx := context.Background()

	d.Add(ctx, "")
	full, chunks := d.Finish(ctx)
	if full != "" || chunks != 0 {
		t.Errorf("full=%q chunks=%d", full, chunks)
	}
	if len(sink.sends) != 0 {
		t.Errorf("nothing should be sent for an empty stream")
	}
}

func TestDelivery_SinkFailureDoesNotPanic(t *testing.T) {
	sink := &fakeSink{failSend: true}
	d := newTestBuffer(sink)
	ctx := context.Background()

	d.Add(ctx, "some content\n\n")
	full, _ := d.Finish(ctx)
	if full != "some content\n\n" {
		t.Errorf("accumulated text must survive sink failures, got %q", full)
	}
}

func TestDelivery_LengthRejectionStartsFreshMessage(t *testing.T) {
	sink := &fakeSink{}
	d := newTestBuffer(sink)
	ctx := context.Background()

	d.Add(ctx, strings.Repeat("a", 2500))
	sink.failEdit = errors.New("Must be 4000 or fewer in length")
	full, _ := d.Finish(ctx)

	if full != strings.Repeat("a", 2500) {
		t.Error("full text lost")
	}
	// The rejected edit falls back to a fresh send with the same slice.
	if len(sink.sends) != 2 {
		t.Errorf("expected fallback send, got %d sends", len(sink.sends))
	}
}
