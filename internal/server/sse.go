package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
)

// Event names on the search stream.
const (
	eventState  = "state"
	eventResult = "result"
	eventError  = "error"
)

// eventStream writes numbered Server-Sent Events. Writes are serialized so
// progress callbacks from several goroutines interleave whole frames.
type eventStream struct {
	mu      sync.Mutex
	w       http.ResponseWriter
	flusher http.Flusher
	seq     int
}

// newEventStream switches the response to text/event-stream. It fails when the
// writer cannot flush.
func newEventStream(w http.ResponseWriter) (*eventStream, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("streaming not supported")
	}

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	return &eventStream{w: w, flusher: flusher}, nil
}

// send writes one frame carrying data as JSON.
func (s *eventStream) send(event string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to encode %s event: %w", event, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	if _, err := fmt.Fprintf(s.w, "id: %d\nevent: %s\ndata: %s\n\n", s.seq, event, payload); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}

// fail sends the terminal error frame with the status err maps to.
func (s *eventStream) fail(err error) error {
	return s.send(eventError, errorPayload{Error: err.Error(), Status: HTTPStatus(err)})
}

type errorPayload struct {
	Error  string `json:"error"`
	Status int    `json:"status"`
}
