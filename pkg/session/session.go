// Package session persists open charts between requests.
//
// A [Session] wraps a [chart.State] with an expiry. Four backends implement
// [Store]:
//   - memory: in-process storage for a single chart server
//   - file: JSON files, which is how the CLI continues a chart across runs
//   - redis: shared storage for multi-instance chart servers
//   - mongo: durable storage with a TTL index
//
// Every backend stores the encoded state, so a Get always returns a private
// copy and concurrent requests never share a *chart.State:
//
//	sess := session.New(st, session.DefaultTTL)
//	if err := store.Set(ctx, sess); err != nil {
//	    return err
//	}
//
//	sess, err := store.Get(ctx, id)
//	if err != nil {
//	    return err
//	}
//	if sess == nil {
//	    // Session not found or expired
//	}
package session

import (
	"context"
	"encoding/json"
	"time"

	"github.com/matzehuels/famtree/pkg/chart"
	"github.com/matzehuels/famtree/pkg/errors"
)

// DefaultTTL is the default session lifetime.
const DefaultTTL = 24 * time.Hour

// Session is a stored chart.
type Session struct {
	ID        string       `json:"id"`
	Chart     *chart.State `json:"chart"`
	ExpiresAt time.Time    `json:"expires_at"`
	CreatedAt time.Time    `json:"created_at"`
}

// New wraps st in a session that expires after ttl.
func New(st *chart.State, ttl time.Duration) *Session {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	now := time.Now().UTC()
	return &Session{
		ID:        st.ID,
		Chart:     st,
		ExpiresAt: now.Add(ttl),
		CreatedAt: now,
	}
}

// IsExpired returns true if the session has expired.
func (s *Session) IsExpired() bool {
	return time.Now().After(s.ExpiresAt)
}

// Touch extends the session by ttl from now.
func (s *Session) Touch(ttl time.Duration) {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	s.ExpiresAt = time.Now().UTC().Add(ttl)
}

// TTL returns the remaining lifetime, never negative.
func (s *Session) TTL() time.Duration {
	return max(0, time.Until(s.ExpiresAt))
}

// Store is the interface for session storage backends.
type Store interface {
	// Get retrieves a session by ID.
	// Returns nil, nil if the session doesn't exist or has expired.
	Get(ctx context.Context, id string) (*Session, error)

	// Set stores a session.
	Set(ctx context.Context, sess *Session) error

	// Delete removes a session.
	Delete(ctx context.Context, id string) error

	// Cleanup removes expired sessions (optional, may be no-op for Redis).
	Cleanup(ctx context.Context) error

	// Close releases backend resources.
	Close() error
}

// Load returns the chart stored under id, or a SESSION_NOT_FOUND error.
func Load(ctx context.Context, s Store, id string) (*Session, error) {
	if err := errors.ValidateID("session", id); err != nil {
		return nil, err
	}
	sess, err := s.Get(ctx, id)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "load session")
	}
	if sess == nil {
		return nil, errors.New(errors.ErrCodeSessionNotFound, "chart %s not found or expired", id)
	}
	return sess, nil
}

func encode(sess *Session) ([]byte, error) {
	if sess.Chart == nil {
		return nil, errors.New(errors.ErrCodeInternal, "session %s has no chart", sess.ID)
	}
	return json.Marshal(sess)
}

func decode(data []byte) (*Session, error) {
	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "parse session")
	}
	if sess.Chart == nil {
		return nil, errors.New(errors.ErrCodeInternal, "session %s has no chart", sess.ID)
	}
	return &sess, nil
}
