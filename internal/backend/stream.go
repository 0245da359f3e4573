package backend

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"rubricon/internal/logging"
)

// dataPrefix is the server-sent-event payload marker. The service emits
// one complete JSON object per data line.
var dataPrefix = []byte("data:")

// Sink receives decoded events in arrival order. A non-nil return stops
// consumption and is surfaced to the caller.
type Sink func(Event) error

// ConsumeStream reads the grading event stream from r and feeds decoded
// events to sink synchronously, so callers can apply decisions in order
// without extra buffering. Chunk boundaries carry no meaning: bytes are
// accumulated and split on newlines, and a trailing partial line is held
// until its terminator arrives or the stream ends. Lines that fail to
// decode are logged and skipped rather than aborting the stream.
func ConsumeStream(r io.Reader, sink Sink) error {
	buf := make([]byte, 4096)
	var pending []byte
	for {
		n, readErr := r.Read(buf)
		if n > 0 {
			pending = append(pending, buf[:n]...)
			for {
				nl := bytes.IndexByte(pending, '\n')
				if nl < 0 {
					break
				}
				line := pending[:nl]
				pending = pending[nl+1:]
				if err := dispatchLine(line, sink); err != nil {
					return err
				}
			}
		}
		if readErr == io.EOF {
			return dispatchLine(pending, sink)
		}
		if readErr != nil {
			return fmt.Errorf("reading grading stream: %w", readErr)
		}
	}
}

// eventEnvelope is the superset of fields across all event kinds.
type eventEnvelope struct {
	Type     string    `json:"type"`
	Decision *Decision `json:"decision"`
	Message  string    `json:"message"`
	Error    string    `json:"error"`
}

func dispatchLine(line []byte, sink Sink) error {
	ev, ok := parseLine(line)
	if !ok {
		return nil
	}
	return sink(ev)
}

func parseLine(line []byte) (Event, bool) {
	line = bytes.TrimSuffix(line, []byte("\r"))
	line = bytes.TrimSpace(line)
	if len(line) == 0 {
		return nil, false
	}
	if !bytes.HasPrefix(line, dataPrefix) {
		// Comment and event-name framing lines carry no payload.
		return nil, false
	}
	payload := bytes.TrimSpace(line[len(dataPrefix):])
	var env eventEnvelope
	if err := json.Unmarshal(payload, &env); err != nil {
		logging.StreamWarn("skipping undecodable stream line: %v", err)
		return nil, false
	}
	if env.Error != "" {
		return StreamError{Message: env.Error}, true
	}
	switch env.Type {
	case "partial_result":
		if env.Decision == nil {
			logging.StreamWarn("partial_result without decision payload")
			return nil, false
		}
		return PartialResult{Decision: *env.Decision}, true
	case "job_complete":
		return JobComplete{Message: env.Message}, true
	case "error":
		return StreamError{Message: env.Message}, true
	default:
		logging.StreamWarn("skipping unknown stream event type %q", env.Type)
		return nil, false
	}
}
