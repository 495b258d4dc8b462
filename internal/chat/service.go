package chat

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/healthmate/coach-chat/internal/ai"
	"github.com/healthmate/coach-chat/internal/auth"
	"github.com/healthmate/coach-chat/internal/common"
	"go.uber.org/zap"
)

const (
	ProviderCoach  = "coach"
	ProviderBackup = "backup"

	// FallbackNotice annotates replies produced by the backup transport.
	FallbackNotice = "\n\n(sent via backup assistant)"
)

// DegradedSink receives a diagnostics event for every fallback invocation,
// successful or not.
type DegradedSink interface {
	PublishFallback(ctx context.Context, sessionID, reason string) error
}

// Service drives one complete user turn: record the user message, stream the
// assistant reply into an Accumulator, and fall back to the non-streaming
// backup transport if the primary stream fails before end-of-stream.
type Service struct {
	store    *Store
	registry *ai.Registry
	creds    auth.CredentialSource
	degraded DegradedSink
	locale   string
	log      *zap.Logger

	mu       sync.Mutex
	inflight map[string]struct{}
}

func NewService(store *Store, registry *ai.Registry, creds auth.CredentialSource, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		store:    store,
		registry: registry,
		creds:    creds,
		log:      log,
		inflight: make(map[string]struct{}),
	}
}

// WithDegradedSink attaches the diagnostics publisher. Optional.
func (s *Service) WithDegradedSink(sink DegradedSink) *Service {
	s.degraded = sink
	return s
}

func (s *Service) WithLocale(locale string) *Service {
	s.locale = locale
	return s
}

// Session collection operations. The store owns the data; the service owns
// the successor policy on deletion.

func (s *Service) CreateSession(ctx context.Context) Session {
	return s.store.Create(ctx)
}

func (s *Service) ListSessions() []Session {
	return s.store.List()
}

func (s *Service) SwitchSession(ctx context.Context, id string) (Session, error) {
	return s.store.SwitchActive(ctx, id)
}

func (s *Service) RenameSession(ctx context.Context, id, title string) []Session {
	return s.store.Rename(ctx, id, title)
}

// DeleteSession removes the session and, if it was the active one, promotes
// the most recently updated survivor — or creates a fresh session when the
// collection becomes empty.
func (s *Service) DeleteSession(ctx context.Context, id string) []Session {
	remaining := s.store.Delete(ctx, id)
	if _, ok := s.store.Active(); ok {
		return remaining
	}
	if len(remaining) == 0 {
		s.store.Create(ctx)
	} else {
		// remaining is sorted most-recently-updated first
		if _, err := s.store.SwitchActive(ctx, remaining[0].ID); err != nil {
			s.log.Warn("successor switch failed", zap.String("session_id", remaining[0].ID), zap.Error(err))
		}
	}
	return s.store.List()
}

func (s *Service) Messages(id string) ([]Message, error) {
	sess, ok := s.store.Get(id)
	if !ok {
		return nil, ErrSessionNotFound
	}
	return sess.Messages, nil
}

// Send runs one turn against the active session and blocks until the
// assistant message is final.
func (s *Service) Send(ctx context.Context, text string) (Message, error) {
	return s.runTurn(ctx, text, nil)
}

// SendStream runs one turn and surfaces deltas as they are applied. The final
// channel delivers the finalized assistant message; all channels close when
// the turn ends.
func (s *Service) SendStream(ctx context.Context, text string) (<-chan string, <-chan Message, <-chan error) {
	chunks := make(chan string, 16)
	final := make(chan Message, 1)
	errs := make(chan error, 1)

	go func() {
		defer close(chunks)
		defer close(final)
		defer close(errs)

		msg, err := s.runTurn(ctx, text, func(delta string) {
			select {
			case chunks <- delta:
			case <-ctx.Done():
			}
		})
		if err != nil {
			errs <- err
			return
		}
		final <- msg
	}()

	return chunks, final, errs
}

func (s *Service) runTurn(ctx context.Context, text string, onDelta func(string)) (Message, error) {
	// validation happens before any side effect
	text = strings.TrimSpace(text)
	if text == "" {
		return Message{}, ErrEmptyMessage
	}
	active, ok := s.store.Active()
	if !ok {
		return Message{}, ErrNoActiveSession
	}
	// The turn targets the session id captured here; switching the active
	// session mid-stream does not retarget it.
	sessionID := active.ID

	if !s.acquire(sessionID) {
		return Message{}, ErrTurnInFlight
	}
	defer s.release(sessionID)

	// 1) record the user message before any network activity
	userID, err := common.NewULID()
	if err != nil {
		return Message{}, err
	}
	if _, err := s.store.UpsertMessage(ctx, sessionID, Message{
		ID:        userID,
		Role:      RoleUser,
		Content:   text,
		Timestamp: time.Now(),
		SessionID: sessionID,
	}); err != nil {
		return Message{}, err
	}

	// 2) credential fetch; failure is fatal, no fallback
	token, err := s.creds.Credential(ctx)
	if err != nil || token == "" {
		s.log.Warn("credential fetch failed", zap.String("session_id", sessionID), zap.Error(err))
		return Message{}, ErrAuthentication
	}

	// 3) pending assistant message; the accumulator is the single writer
	acc := NewAccumulator(s.store, sessionID)
	if _, err := acc.Begin(ctx); err != nil {
		return Message{}, err
	}

	req := ai.ChatRequest{Prompt: text, SessionID: sessionID, Locale: s.locale}

	// 4) primary stream
	streamErr := s.consumeStream(ctx, token, req, acc, onDelta)
	if ctx.Err() != nil {
		return Message{}, ctx.Err()
	}
	if errors.Is(streamErr, ErrSessionNotFound) {
		// session deleted mid-turn: fatal, no fallback
		return Message{}, streamErr
	}

	// 5) fallback on any primary failure before end-of-stream
	if streamErr != nil {
		if err := s.fallback(ctx, token, req, acc, streamErr); err != nil {
			return Message{}, err
		}
	}

	content := acc.Finalize()
	return Message{
		ID:        acc.MessageID(),
		Role:      RoleAssistant,
		Content:   content,
		Timestamp: time.Now(),
		SessionID: sessionID,
	}, nil
}

// consumeStream feeds decoded deltas into the accumulator. A nil return means
// end-of-stream was reached cleanly.
func (s *Service) consumeStream(ctx context.Context, token string, req ai.ChatRequest, acc *Accumulator, onDelta func(string)) error {
	provider, err := s.registry.Get(ctx, ProviderCoach)
	if err != nil {
		return err
	}
	sp, ok := provider.(ai.StreamProvider)
	if !ok {
		return errors.New("chat: coach provider does not support streaming")
	}

	events, errs := sp.StreamChat(ctx, token, req)
	finished := false
	for ev := range events {
		switch ev.Kind {
		case ai.EventDelta:
			if err := acc.Append(ctx, ev.Text); err != nil {
				return err
			}
			if onDelta != nil {
				onDelta(ev.Text)
			}
		case ai.EventMalformed:
			// decode noise is dropped, never fatal
			s.log.Debug("dropping malformed stream line", zap.String("raw", ev.Raw))
		case ai.EventEnd:
			finished = true
		}
	}
	if err := <-errs; err != nil {
		return err
	}
	if !finished && ctx.Err() == nil {
		return errors.New("chat: stream ended before end-of-stream event")
	}
	return nil
}

// fallback invokes the backup transport once and writes its complete reply
// wholesale under the turn's message id. Its own failure is converted into a
// visible assistant-role apology; the turn never leaves a dangling pending
// message.
func (s *Service) fallback(ctx context.Context, token string, req ai.ChatRequest, acc *Accumulator, cause error) error {
	s.log.Warn("primary stream failed, invoking backup",
		zap.String("session_id", req.SessionID),
		zap.Error(cause),
	)
	if s.degraded != nil {
		if err := s.degraded.PublishFallback(ctx, req.SessionID, cause.Error()); err != nil {
			s.log.Warn("degraded event publish failed", zap.Error(err))
		}
	}

	reply, err := s.backupChat(ctx, token, req)
	if err != nil {
		s.log.Error("backup request failed",
			zap.String("session_id", req.SessionID),
			zap.Error(err),
		)
		return acc.Replace(ctx, apology(cause))
	}
	return acc.Replace(ctx, reply+FallbackNotice)
}

func (s *Service) backupChat(ctx context.Context, token string, req ai.ChatRequest) (string, error) {
	provider, err := s.registry.Get(ctx, ProviderBackup)
	if err != nil {
		return "", err
	}
	return provider.Chat(ctx, token, req)
}

func (s *Service) acquire(sessionID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.inflight[sessionID]; busy {
		return false
	}
	s.inflight[sessionID] = struct{}{}
	return true
}

func (s *Service) release(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inflight, sessionID)
}

func apology(cause error) string {
	reason := "the assistant service is unreachable"
	var e *ai.Error
	if errors.As(cause, &e) {
		switch e.Kind {
		case ai.ErrKindTimeout:
			reason = "the assistant took too long to answer"
		case ai.ErrKindUnavailable:
			reason = "the assistant service is temporarily unavailable"
		}
	}
	return "Sorry, I couldn't finish that reply because " + reason + ". Please try again in a moment."
}
