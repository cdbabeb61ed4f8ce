package chart

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/matzehuels/famtree/pkg/errors"
	"github.com/matzehuels/famtree/pkg/payload"
	"github.com/matzehuels/famtree/pkg/pipeline"
	"github.com/matzehuels/famtree/pkg/viewport"
)

// State is everything one open chart needs between events. It is plain
// data: sessions persist it as JSON and the last pipeline result is rebuilt
// on demand after a reload.
type State struct {
	ID   string `json:"id"`
	Root string `json:"root"`

	// Payload is the merged payload drawn so far.
	Payload payload.Payload `json:"payload"`

	Selection string         `json:"selection,omitempty"`
	View      *viewport.View `json:"view,omitempty"`

	// PendingAnchor is the anchor captured for an expansion in flight.
	PendingAnchor *viewport.Anchor `json:"pending_anchor,omitempty"`

	Busy   bool   `json:"busy"`
	Status string `json:"status,omitempty"`

	// Revision increases with every successful re-layout; Digest hashes the
	// payload of that revision.
	Revision  int       `json:"revision"`
	Digest    string    `json:"digest,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`

	// mu guards the fields above against an expansion committing while a
	// view event is applied.
	mu      sync.Mutex
	current *pipeline.Result
}

// NewState returns a state for a chart seeded from p.
func NewState(root string, p payload.Payload) *State {
	return &State{
		ID:        uuid.NewString(),
		Root:      root,
		Payload:   p,
		UpdatedAt: time.Now().UTC(),
	}
}

// Current returns the last pipeline result, or nil before the first render
// of a freshly loaded state.
func (s *State) Current() *pipeline.Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// SVG returns the last rendered document.
func (s *State) SVG() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return nil
	}
	return s.current.SVG
}

func (s *State) touch() { s.UpdatedAt = time.Now().UTC() }

// MarshalState encodes s for storage.
func MarshalState(s *State) ([]byte, error) {
	return json.Marshal(s)
}

// MarshalJSON encodes s under its lock, so a state can be saved while an
// expansion of it is still running.
func (s *State) MarshalJSON() ([]byte, error) {
	type plain State
	s.mu.Lock()
	defer s.mu.Unlock()
	return json.Marshal((*plain)(s))
}

// UnmarshalState decodes a stored state.
func UnmarshalState(data []byte) (*State, error) {
	var s State
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "decode chart state")
	}
	if s.ID == "" {
		return nil, errors.New(errors.ErrCodeInternal, "stored chart state has no id")
	}
	return &s, nil
}

// rootOf returns the person at distance zero, falling back to the
// requested id.
func rootOf(p payload.Payload, requested string) string {
	for _, n := range p.Nodes {
		if n.IsPerson() && n.Distance != nil && *n.Distance == 0 {
			return n.ID
		}
	}
	return requested
}
