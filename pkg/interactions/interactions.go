// Package interactions mediates slash-command invocations between a
// user and the responding bot. The invocation creates a pending
// interaction; the bot's response consumes it. Entries are in-process
// only and expire lazily on access.
package interactions

import (
	"crypto/rand"
	"encoding/json"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// DefaultTTL bounds how long a bot has to respond to an invocation.
const DefaultTTL = 15 * time.Second

// Interaction is one pending slash-command invocation.
type Interaction struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	Command   string          `json:"command"`
	Params    json.RawMessage `json:"params,omitempty"`
	UserID    int64           `json:"user_id"`
	FeedID    *int64          `json:"feed_id,omitempty"`
	DMID      *int64          `json:"dm_id,omitempty"`
	BotID     int64           `json:"bot_id"`
	CreatedAt time.Time       `json:"created_at"`
}

// Store holds pending interactions keyed by ULID.
type Store struct {
	ttl time.Duration

	mu      sync.Mutex
	entries map[string]*Interaction
}

// NewStore creates a store. ttl <= 0 uses DefaultTTL.
func NewStore(ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Store{ttl: ttl, entries: make(map[string]*Interaction)}
}

// Create registers a pending interaction and returns its id.
func (s *Store) Create(interactionType, command string, params json.RawMessage, userID int64, feedID, dmID *int64, botID int64) *Interaction {
	now := time.Now()
	in := &Interaction{
		ID:        ulid.MustNew(ulid.Timestamp(now), rand.Reader).String(),
		Type:      interactionType,
		Command:   command,
		Params:    params,
		UserID:    userID,
		FeedID:    feedID,
		DMID:      dmID,
		BotID:     botID,
		CreatedAt: now,
	}

	s.mu.Lock()
	s.entries[in.ID] = in
	s.mu.Unlock()
	return in
}

// Get returns a pending interaction, or nil if unknown or expired.
// Expired entries are evicted on the way out.
func (s *Store) Get(id string) *Interaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lookup(id)
}

// Consume returns and removes a pending interaction. A second consume
// of the same id returns nil.
func (s *Store) Consume(id string) *Interaction {
	s.mu.Lock()
	defer s.mu.Unlock()

	in := s.lookup(id)
	if in != nil {
		delete(s.entries, id)
	}
	return in
}

// lookup evicts-on-read. Caller holds s.mu.
func (s *Store) lookup(id string) *Interaction {
	in, ok := s.entries[id]
	if !ok {
		return nil
	}
	if time.Since(in.CreatedAt) > s.ttl {
		delete(s.entries, id)
		return nil
	}
	return in
}

// Sweep evicts every expired entry and reports how many were removed.
// Lazy eviction only fires on access; the periodic sweep keeps entries
// for bots that never responded from accumulating.
func (s *Store) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, in := range s.entries {
		if time.Since(in.CreatedAt) > s.ttl {
			delete(s.entries, id)
			removed++
		}
	}
	return removed
}

// Reset drops all pending interactions.
func (s *Store) Reset() {
	s.mu.Lock()
	s.entries = make(map[string]*Interaction)
	s.mu.Unlock()
}

// Size reports the number of entries, including any not yet lazily
// evicted.
func (s *Store) Size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
