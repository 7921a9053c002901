package service

import (
	"sync"

	"chatzam/internal/models"
)

// Timeline is the in-memory view of one conversation's messages. Sends are
// applied optimistically before the write is acknowledged; when the
// authoritative list arrives, provisional entries are reconciled against it
// by client id so a message never shows twice.
type Timeline struct {
	mu       sync.Mutex
	messages []models.Message
}

// NewTimeline returns an empty timeline.
func NewTimeline() *Timeline {
	return &Timeline{}
}

// Snapshot is a point-in-time copy of the timeline, taken before an
// optimistic apply so a failed send can be rolled back exactly.
type Snapshot struct {
	messages []models.Message
}

// Apply appends a provisional message and returns the snapshot taken
// immediately before the append.
func (t *Timeline) Apply(msg models.Message) Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()

	snap := Snapshot{messages: make([]models.Message, len(t.messages))}
	copy(snap.messages, t.messages)
	t.messages = append(t.messages, msg)
	return snap
}

// Restore rewinds the timeline to a previous snapshot. Used on send failure;
// the provisional entry disappears and everything else is untouched.
func (t *Timeline) Restore(snap Snapshot) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.messages = make([]models.Message, len(snap.messages))
	copy(t.messages, snap.messages)
}

// Merge replaces the timeline with the authoritative message list, keeping
// any provisional entries whose client id has not yet appeared remotely.
// Those entries stay at the tail until their write is acknowledged.
func (t *Timeline) Merge(authoritative []models.Message) {
	t.mu.Lock()
	defer t.mu.Unlock()

	acked := make(map[string]struct{}, len(authoritative))
	for _, msg := range authoritative {
		if msg.ClientID != "" {
			acked[msg.ClientID] = struct{}{}
		}
	}

	merged := make([]models.Message, 0, len(authoritative)+len(t.messages))
	merged = append(merged, authoritative...)
	for _, msg := range t.messages {
		if msg.ClientID == "" {
			continue
		}
		if _, ok := acked[msg.ClientID]; ok {
			continue
		}
		if t.inAuthoritative(authoritative, msg.ID) {
			continue
		}
		merged = append(merged, msg)
	}
	t.messages = merged
}

func (t *Timeline) inAuthoritative(authoritative []models.Message, id string) bool {
	for _, msg := range authoritative {
		if msg.ID == id {
			return true
		}
	}
	return false
}

// Messages returns a copy of the current timeline contents.
func (t *Timeline) Messages() []models.Message {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]models.Message, len(t.messages))
	copy(out, t.messages)
	return out
}

// Len returns the number of entries, provisional included.
func (t *Timeline) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.messages)
}
