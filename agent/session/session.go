package session

import "time"

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one user query or one assistant answer. Immutable once appended.
type Turn struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// Session is the only durable record of a conversation. It is owned by the
// Store and mutated only while the Store holds that session's lock.
type Session struct {
	ID           string    `json:"session_id"`
	CreatedAt    time.Time `json:"created_at"`
	LastActivity time.Time `json:"last_activity"`
	Turns        []Turn    `json:"turns"`
}

func NewSession(id string, now time.Time) *Session {
	return &Session{
		ID:           id,
		CreatedAt:    now.UTC(),
		LastActivity: now.UTC(),
	}
}

func (s *Session) Touch(now time.Time) {
	s.LastActivity = now.UTC()
}

// Expired reports whether the session has sat idle past ttl.
func (s *Session) Expired(now time.Time, ttl time.Duration) bool {
	if ttl <= 0 {
		return false
	}
	return now.Sub(s.LastActivity) > ttl
}

// Window returns a copy of the most recent n turns (all turns when n <= 0
// or the history is shorter). The copy keeps callers from observing later
// appends through a shared backing array.
func (s *Session) Window(n int) []Turn {
	turns := s.Turns
	if n > 0 && len(turns) > n {
		turns = turns[len(turns)-n:]
	}
	out := make([]Turn, len(turns))
	copy(out, turns)
	return out
}

// trim drops the oldest turns so at most max remain.
func (s *Session) trim(max int) {
	if max <= 0 || len(s.Turns) <= max {
		return
	}
	kept := make([]Turn, max)
	copy(kept, s.Turns[len(s.Turns)-max:])
	s.Turns = kept
}

// View is a read-only snapshot of one session, safe to serialize after the
// store lock is released.
type View struct {
	SessionID    string    `json:"session_id"`
	CreatedAt    time.Time `json:"created_at"`
	LastActivity time.Time `json:"last_activity"`
	MessageCount int       `json:"message_count"`
	Turns        []Turn    `json:"turns"`
}

// Summary is the per-session line item for the active-session listing.
type Summary struct {
	SessionID    string    `json:"session_id"`
	CreatedAt    time.Time `json:"created_at"`
	LastActivity time.Time `json:"last_activity"`
	MessageCount int       `json:"message_count"`
}
