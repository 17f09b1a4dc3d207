package pipeline

import (
	"fmt"
	"sync"
	"time"
)

// State is a step of the per-request ranking state machine.
type State string

// Search states in execution order.
const (
	StatePendingDataCheck State = "PENDING_DATA_CHECK"
	StateEmbedding        State = "EMBEDDING"
	StateRetrieving       State = "RETRIEVING"
	StateScoring          State = "SCORING"
	StateFusing           State = "FUSING"
	StateReranking        State = "RERANKING"
	StateResults          State = "RESULTS"
)

// Transitions lists the states reachable from each state. EMBEDDING and
// RERANKING are conditional and may be skipped.
var Transitions = map[State][]State{
	StatePendingDataCheck: {StateEmbedding, StateRetrieving},
	StateEmbedding:        {StateRetrieving},
	StateRetrieving:       {StateScoring},
	StateScoring:          {StateFusing},
	StateFusing:           {StateReranking, StateResults},
	StateReranking:        {StateResults},
	StateResults:          {},
}

// ProgressEvent reports a state transition.
type ProgressEvent struct {
	RequestID string        `json:"request_id"`
	State     State         `json:"state"`
	Message   string        `json:"message"`
	Elapsed   time.Duration `json:"elapsed"`
}

// ProgressCallback receives every transition of a search.
type ProgressCallback func(event ProgressEvent)

// machine records the visited states of one request and rejects transitions
// the Transitions table does not allow.
type machine struct {
	mu        sync.Mutex
	requestID string
	start     time.Time
	visited   []State
	onEvent   ProgressCallback
}

func newMachine(requestID string, onEvent ProgressCallback) *machine {
	m := &machine{requestID: requestID, start: time.Now(), onEvent: onEvent}
	m.visited = []State{StatePendingDataCheck}
	m.emit(StatePendingDataCheck, "checking job data")
	return m
}

func (m *machine) enter(next State, message string) error {
	m.mu.Lock()
	current := m.visited[len(m.visited)-1]
	allowed := false
	for _, s := range Transitions[current] {
		if s == next {
			allowed = true
			break
		}
	}
	if !allowed {
		m.mu.Unlock()
		return fmt.Errorf("invalid state transition %s -> %s", current, next)
	}
	m.visited = append(m.visited, next)
	m.mu.Unlock()

	m.emit(next, message)
	return nil
}

func (m *machine) emit(state State, message string) {
	if m.onEvent != nil {
		m.onEvent(ProgressEvent{
			RequestID: m.requestID,
			State:     state,
			Message:   message,
			Elapsed:   time.Since(m.start),
		})
	}
}

// States returns the visited states as strings.
func (m *machine) States() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.visited))
	for i, s := range m.visited {
		out[i] = string(s)
	}
	return out
}
