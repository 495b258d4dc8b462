package chat

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/healthmate/coach-chat/internal/common"
	"github.com/healthmate/coach-chat/internal/store"
	"go.uber.org/zap"
)

const (
	sessionsKey = "healthmate:chat:sessions"
	activeKey   = "healthmate:chat:active"

	defaultTitle  = "New Chat"
	titleMaxChars = 30
)

// Store owns the session collection and the active-session selector. Every
// mutation re-sorts by UpdatedAt (most recently touched first) and serializes
// the full collection to the KV backend before returning; the mutex keeps the
// serialize-and-persist step from interleaving across concurrent turns.
type Store struct {
	mu  sync.Mutex
	kv  store.KV
	log *zap.Logger

	sessions []*Session
}

func NewStore(ctx context.Context, kv store.KV, log *zap.Logger) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Store{kv: kv, log: log}
	s.load(ctx)
	return s
}

// load reconstructs the collection from the backend. Corrupt stored data is
// cleared and treated as "no sessions".
func (s *Store) load(ctx context.Context) {
	raw, ok, err := s.kv.Get(ctx, sessionsKey)
	if err != nil {
		s.log.Warn("session load failed, starting empty", zap.Error(err))
		return
	}
	if !ok {
		return
	}
	var sessions []*Session
	if err := json.Unmarshal(raw, &sessions); err != nil {
		s.log.Warn("corrupt session record cleared", zap.Error(err))
		_ = s.kv.Delete(ctx, sessionsKey)
		_ = s.kv.Delete(ctx, activeKey)
		return
	}
	s.sessions = sessions
	s.sortLocked()

	activeID := ""
	if raw, ok, err := s.kv.Get(ctx, activeKey); err == nil && ok {
		activeID = string(raw)
	}
	found := false
	for _, sess := range s.sessions {
		sess.IsActive = !found && sess.ID == activeID
		if sess.IsActive {
			found = true
		}
	}
	if !found && len(s.sessions) > 0 {
		s.sessions[0].IsActive = true
	}
}

// Create allocates a fresh session, inserts it at the front and marks it
// active. It never fails.
func (s *Store) Create(ctx context.Context) Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	sess := &Session{
		ID:        common.NewSessionID(),
		Title:     defaultTitle,
		CreatedAt: now,
		UpdatedAt: now,
		Messages:  []Message{},
		IsActive:  true,
	}
	for _, other := range s.sessions {
		other.IsActive = false
	}
	s.sessions = append([]*Session{sess}, s.sessions...)
	s.persistLocked(ctx)
	return copySession(sess)
}

func (s *Store) SwitchActive(ctx context.Context, id string) (Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	target := s.findLocked(id)
	if target == nil {
		return Session{}, ErrSessionNotFound
	}
	for _, sess := range s.sessions {
		sess.IsActive = sess == target
	}
	s.persistLocked(ctx)
	return copySession(target), nil
}

// Delete removes the session. Unknown ids are a no-op. If the active session
// was removed the caller chooses a successor; the store leaves none active.
func (s *Store) Delete(ctx context.Context, id string) []Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.sessions[:0]
	removed := false
	for _, sess := range s.sessions {
		if sess.ID == id {
			removed = true
			continue
		}
		kept = append(kept, sess)
	}
	if !removed {
		return s.listLocked()
	}
	s.sessions = kept
	s.persistLocked(ctx)
	return s.listLocked()
}

// Rename updates the title. An empty title (after trimming) is a silent no-op,
// as is an unknown id.
func (s *Store) Rename(ctx context.Context, id, title string) []Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	title = strings.TrimSpace(title)
	if title == "" {
		return s.listLocked()
	}
	sess := s.findLocked(id)
	if sess == nil {
		return s.listLocked()
	}
	sess.Title = title
	sess.UpdatedAt = time.Now()
	s.persistLocked(ctx)
	return s.listLocked()
}

// UpsertMessage replaces a message with the same id in place, otherwise
// appends. The first message of a brand-new session also derives the title.
// ErrSessionNotFound is fatal for the caller's turn: it means the session was
// deleted while the turn was in flight.
func (s *Store) UpsertMessage(ctx context.Context, sessionID string, msg Message) ([]Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess := s.findLocked(sessionID)
	if sess == nil {
		return nil, ErrSessionNotFound
	}

	msg.SessionID = sessionID
	replaced := false
	for i := range sess.Messages {
		if sess.Messages[i].ID == msg.ID {
			sess.Messages[i] = msg
			replaced = true
			break
		}
	}
	if !replaced {
		sess.Messages = append(sess.Messages, msg)
		if len(sess.Messages) == 1 && sess.Title == defaultTitle {
			sess.Title = deriveTitle(msg.Content)
		}
	}
	sess.UpdatedAt = time.Now()
	s.persistLocked(ctx)
	return s.listLocked(), nil
}

func (s *Store) List() []Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listLocked()
}

// Active returns the currently selected session, if any.
func (s *Store) Active() (Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sess := range s.sessions {
		if sess.IsActive {
			return copySession(sess), true
		}
	}
	return Session{}, false
}

func (s *Store) Get(id string) (Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess := s.findLocked(id)
	if sess == nil {
		return Session{}, false
	}
	return copySession(sess), true
}

func (s *Store) findLocked(id string) *Session {
	for _, sess := range s.sessions {
		if sess.ID == id {
			return sess
		}
	}
	return nil
}

func (s *Store) sortLocked() {
	sort.SliceStable(s.sessions, func(i, j int) bool {
		return s.sessions[i].UpdatedAt.After(s.sessions[j].UpdatedAt)
	})
}

// persistLocked re-sorts and writes the full collection synchronously.
// Persistence failures are logged, not propagated: the in-memory collection
// stays authoritative for the rest of the run.
func (s *Store) persistLocked(ctx context.Context) {
	s.sortLocked()

	raw, err := json.Marshal(s.sessions)
	if err != nil {
		s.log.Error("session marshal failed", zap.Error(err))
		return
	}
	if err := s.kv.Put(ctx, sessionsKey, raw); err != nil {
		s.log.Error("session persist failed", zap.Error(err))
	}

	activeID := ""
	for _, sess := range s.sessions {
		if sess.IsActive {
			activeID = sess.ID
			break
		}
	}
	if err := s.kv.Put(ctx, activeKey, []byte(activeID)); err != nil {
		s.log.Error("active id persist failed", zap.Error(err))
	}
}

func (s *Store) listLocked() []Session {
	out := make([]Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		out = append(out, copySession(sess))
	}
	return out
}

func copySession(sess *Session) Session {
	cp := *sess
	cp.Messages = append([]Message(nil), sess.Messages...)
	return cp
}

func deriveTitle(content string) string {
	runes := []rune(strings.TrimSpace(content))
	if len(runes) == 0 {
		return defaultTitle
	}
	if len(runes) <= titleMaxChars {
		return string(runes)
	}
	return string(runes[:titleMaxChars]) + "..."
}
