package shuttle

import "encoding/json"

// Response typing: the backing API is not perfectly consistent about shapes on
// error paths, so decoded records are interpreted by ordered attempts —
// typed, then structured error, then the raw record unmodified. Data the
// caller might need is never thrown away.

// typeStreamFrame interprets one decoded frame of a streaming call.
func typeStreamFrame(raw json.RawMessage) StreamEvent {
	var chunk ChatChunk
	if err := json.Unmarshal(raw, &chunk); err == nil && chunk.ID != "" && len(chunk.Choices) > 0 {
		return StreamEvent{Chunk: &chunk}
	}
	if rec := typeErrorRecord(raw); rec != nil {
		return StreamEvent{ErrorRecord: rec}
	}
	return StreamEvent{Raw: raw}
}

// typeCompletion interprets the single decoded body of a blocking call. The
// fallback chain mirrors the streaming path: a structured error becomes an
// *APIError error value, anything else degrades to a DecodeError that still
// carries the raw payload.
func typeCompletion(raw json.RawMessage) (*ChatCompletion, error) {
	var result ChatCompletion
	if err := json.Unmarshal(raw, &result); err == nil && result.ID != "" && len(result.Choices) > 0 {
		return &result, nil
	}
	if rec := typeErrorRecord(raw); rec != nil {
		return nil, rec
	}
	return nil, &DecodeError{Raw: string(raw), Err: errUnknownShape}
}

var errUnknownShape = jsonSyntaxError("response matches no known shape")

// typeErrorRecord returns the structured error payload, or nil when the
// record does not carry an "error" key with a message.
func typeErrorRecord(raw json.RawMessage) *APIError {
	var probe struct {
		Error *ErrorDetail `json:"error"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil || probe.Error == nil || probe.Error.Message == "" {
		return nil
	}
	var rec APIError
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil
	}
	return &rec
}
