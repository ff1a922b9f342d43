package cache

import (
	"sync"
	"time"

	"github.com/fernwake/questlog/backend/internal/model/chat"
)

// memoryEntry pairs a cached session with its write time for the freshness
// window check.
type memoryEntry struct {
	session  *chat.Session
	storedAt time.Time
}

// Memory is the process-lifetime session cache, keyed by (mode, user).
// Reads never mutate; Put and Clear are the only writers.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	maxAge  time.Duration
	now     func() time.Time
}

// NewMemory creates the fast cache tier. maxAge bounds how long an entry is
// served before it is treated as a miss; zero disables expiry.
func NewMemory(maxAge time.Duration) *Memory {
	return &Memory{
		entries: make(map[string]memoryEntry),
		maxAge:  maxAge,
		now:     time.Now,
	}
}

func memoryKey(mode chat.Mode, userID string) string {
	return string(mode) + "|" + userID
}

// Get returns the cached session for (mode, userID), or nil on miss. Stale
// entries are dropped rather than served.
func (m *Memory) Get(mode chat.Mode, userID string) *chat.Session {
	m.mu.RLock()
	entry, ok := m.entries[memoryKey(mode, userID)]
	m.mu.RUnlock()

	if !ok {
		return nil
	}

	if m.maxAge > 0 && m.now().Sub(entry.storedAt) > m.maxAge {
		m.mu.Lock()
		delete(m.entries, memoryKey(mode, userID))
		m.mu.Unlock()
		return nil
	}

	return entry.session.Clone()
}

// Put stores a session under its (mode, userID) key, replacing any previous
// current session for that mode.
func (m *Memory) Put(session *chat.Session) {
	m.mu.Lock()
	m.entries[memoryKey(session.Mode, session.UserID)] = memoryEntry{
		session:  session.Clone(),
		storedAt: m.now(),
	}
	m.mu.Unlock()
}

// Clear drops every entry held for the given mode.
func (m *Memory) Clear(mode chat.Mode) {
	prefix := string(mode) + "|"

	m.mu.Lock()
	for key := range m.entries {
		if len(key) >= len(prefix) && key[:len(prefix)] == prefix {
			delete(m.entries, key)
		}
	}
	m.mu.Unlock()
}
