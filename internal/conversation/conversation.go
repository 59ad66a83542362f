// Package conversation keeps short-lived, per-session dialogue context so
// follow-up questions ("那日本呢?") can be resolved against the preceding
// exchange. Memory is process-local and intentionally not persisted.
package conversation

import (
	"strings"
	"sync"
	"time"
)

// DefaultMaxRounds is how many question/answer rounds a session retains.
const DefaultMaxRounds = 10

// contextTruncateAt caps how much of a long answer is replayed into prompts.
const contextTruncateAt = 500

// Role identifies the speaker of a turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one utterance in a session.
type Turn struct {
	Role    Role
	Content string
	At      time.Time
}

// Memory is one session's sliding window of turns.
type Memory struct {
	mu        sync.Mutex
	maxRounds int
	turns     []Turn
	now       func() time.Time
}

// NewMemory returns a memory retaining maxRounds question/answer rounds.
// Non-positive maxRounds means DefaultMaxRounds.
func NewMemory(maxRounds int) *Memory {
	if maxRounds <= 0 {
		maxRounds = DefaultMaxRounds
	}
	return &Memory{maxRounds: maxRounds, now: time.Now}
}

// Add appends a turn, evicting the oldest turns beyond the window. The window
// holds maxRounds*2 turns (a user and an assistant turn per round).
func (m *Memory) Add(role Role, content string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.turns = append(m.turns, Turn{Role: role, Content: content, At: m.now()})
	if limit := m.maxRounds * 2; len(m.turns) > limit {
		m.turns = append([]Turn(nil), m.turns[len(m.turns)-limit:]...)
	}
}

// Turns returns a copy of the current window.
func (m *Memory) Turns() []Turn {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Turn(nil), m.turns...)
}

// Len reports how many turns the window currently holds.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.turns)
}

// Clear empties the window.
func (m *Memory) Clear() {
	m.mu.Lock()
	m.turns = nil
	m.mu.Unlock()
}

// ContextString renders the window for inclusion in a prompt. Assistant turns
// longer than 500 runes are truncated with an ellipsis; full answers live in
// the history store, not here.
func (m *Memory) ContextString() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.turns) == 0 {
		return ""
	}
	parts := make([]string, 0, len(m.turns))
	for _, t := range m.turns {
		label := "使用者"
		content := t.Content
		if t.Role == RoleAssistant {
			label = "助手"
			if runes := []rune(content); len(runes) > contextTruncateAt {
				content = string(runes[:contextTruncateAt]) + "..."
			}
		}
		parts = append(parts, label+": "+content)
	}
	return strings.Join(parts, "\n\n")
}

// Registry maps session ids to memories, creating them on demand.
type Registry struct {
	mu        sync.Mutex
	maxRounds int
	sessions  map[string]*Memory
}

// NewRegistry returns a registry whose sessions retain maxRounds rounds each.
func NewRegistry(maxRounds int) *Registry {
	return &Registry{maxRounds: maxRounds, sessions: make(map[string]*Memory)}
}

// Get returns the memory for sessionID, creating it if absent.
func (r *Registry) Get(sessionID string) *Memory {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.sessions[sessionID]
	if !ok {
		m = NewMemory(r.maxRounds)
		r.sessions[sessionID] = m
	}
	return m
}

// Drop removes a session's memory entirely.
func (r *Registry) Drop(sessionID string) {
	r.mu.Lock()
	delete(r.sessions, sessionID)
	r.mu.Unlock()
}

// Len reports the number of live sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}
