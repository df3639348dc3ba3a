// Package convo holds per-user conversation history replayed to the language
// model. Sessions are bounded in size and expire after inactivity.
package convo

import (
	"log"
	"sync"
	"time"
)

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Turn is one logical message in a session. ToolCallID is set on assistant
// turns that invoked a tool and on the matching tool-result turn, so the
// model can correlate call and result on replay.
type Turn struct {
	Role       string
	Content    string
	ToolCallID string
	ToolName   string
	ToolArgs   string
}

type session struct {
	turns        []Turn
	lastActivity time.Time
	displayName  string
}

// PreambleFunc renders the system turn for a session. It receives the user's
// current display name and the current time so personalization always
// reflects the latest known name.
type PreambleFunc func(displayName string, now time.Time) string

// Store owns every session, keyed by user identifier. Turn-level ordering per
// user is the caller's responsibility (one turn in flight per user); the
// store itself is safe for concurrent use across users, including the expiry
// sweep.
type Store struct {
	mu          sync.RWMutex
	sessions    map[string]*session
	maxMessages int
	timeout     time.Duration
	preamble    PreambleFunc
	clock       func() time.Time
}

type Options struct {
	MaxMessages int
	Timeout     time.Duration
	Preamble    PreambleFunc
	Clock       func() time.Time
}

func NewStore(opts Options) *Store {
	if opts.MaxMessages <= 0 {
		opts.MaxMessages = 20
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Minute
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.Preamble == nil {
		opts.Preamble = func(string, time.Time) string { return "" }
	}
	return &Store{
		sessions:    make(map[string]*session),
		maxMessages: opts.MaxMessages,
		timeout:     opts.Timeout,
		preamble:    opts.Preamble,
		clock:       opts.Clock,
	}
}

// GetOrCreate returns a copy of the user's turns, creating a fresh session
// when none exists or the previous one expired. A non-empty displayName
// updates the stored name and re-renders the preamble in place.
func (s *Store) GetOrCreate(userID, displayName string) []Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess := s.getOrCreateLocked(userID, displayName)
	return copyTurns(sess.turns)
}

func (s *Store) getOrCreateLocked(userID, displayName string) *session {
	now := s.clock()

	sess, ok := s.sessions[userID]
	if ok && now.Sub(sess.lastActivity) < s.timeout {
		if displayName != "" && displayName != sess.displayName {
			sess.displayName = displayName
			if len(sess.turns) > 0 && sess.turns[0].Role == RoleSystem {
				sess.turns[0].Content = s.preamble(displayName, now)
			}
		}
		return sess
	}

	if ok {
		log.Printf("[convo] session expired for %s, creating new one", userID)
	}
	if displayName == "" && ok {
		displayName = sess.displayName
	}

	sess = &session{
		turns:        []Turn{{Role: RoleSystem, Content: s.preamble(displayName, now)}},
		lastActivity: now,
		displayName:  displayName,
	}
	s.sessions[userID] = sess
	return sess
}

// AddMessage appends a plain user or assistant turn.
func (s *Store) AddMessage(userID, role, content string) {
	s.append(userID, Turn{Role: role, Content: content})
}

// AddToolCall records the assistant turn that invoked a tool: empty visible
// content plus the call identifier, name and raw argument JSON.
func (s *Store) AddToolCall(userID, toolCallID, toolName, argsJSON string) {
	s.append(userID, Turn{
		Role:       RoleAssistant,
		ToolCallID: toolCallID,
		ToolName:   toolName,
		ToolArgs:   argsJSON,
	})
}

// AddToolResult appends a tool-result turn. toolCallID may be empty when the
// call was recovered from leaked text rather than the structured channel.
func (s *Store) AddToolResult(userID, toolName, content, toolCallID string) {
	s.append(userID, Turn{
		Role:       RoleTool,
		Content:    content,
		ToolName:   toolName,
		ToolCallID: toolCallID,
	})
}

func (s *Store) append(userID string, turn Turn) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess := s.getOrCreateLocked(userID, "")
	sess.turns = append(sess.turns, turn)

	// Keep the preamble plus only the most recent maxMessages turns.
	if len(sess.turns) > s.maxMessages+1 {
		trimmed := make([]Turn, 0, s.maxMessages+1)
		trimmed = append(trimmed, sess.turns[0])
		trimmed = append(trimmed, sess.turns[len(sess.turns)-s.maxMessages:]...)
		sess.turns = trimmed
	}

	sess.lastActivity = s.clock()
}

// Clear drops the user's session entirely.
func (s *Store) Clear(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, userID)
}

// SweepExpired removes every session idle longer than the timeout and
// returns how many were removed. Safe to run concurrently with per-user
// reads and writes.
func (s *Store) SweepExpired() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock()
	removed := 0
	for userID, sess := range s.sessions {
		if now.Sub(sess.lastActivity) >= s.timeout {
			delete(s.sessions, userID)
			removed++
		}
	}
	if removed > 0 {
		log.Printf("[convo] removed %d expired sessions", removed)
	}
	return removed
}

func copyTurns(turns []Turn) []Turn {
	out := make([]Turn, len(turns))
	copy(out, turns)
	return out
}
