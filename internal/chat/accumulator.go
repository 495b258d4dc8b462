package chat

import (
	"context"
	"strings"
	"time"

	"github.com/healthmate/coach-chat/internal/common"
)

// Accumulator assembles the streamed deltas of exactly one assistant message.
// One instance per turn; the (sessionID, messageID) pair it is bound to is the
// single writer key, even if the UI's active session moves mid-stream.
type Accumulator struct {
	store     *Store
	sessionID string
	messageID string
	buf       strings.Builder
}

func NewAccumulator(store *Store, sessionID string) *Accumulator {
	return &Accumulator{store: store, sessionID: sessionID}
}

// Begin materializes an empty (pending) assistant message and returns its id.
func (a *Accumulator) Begin(ctx context.Context) (string, error) {
	id, err := common.NewULID()
	if err != nil {
		return "", err
	}
	a.messageID = id
	if err := a.push(ctx, ""); err != nil {
		return "", err
	}
	return id, nil
}

// Append concatenates delta onto the buffer and pushes the full accumulated
// string into the store. Deltas are applied in call order; the buffer, not the
// store, is the ordering authority.
func (a *Accumulator) Append(ctx context.Context, delta string) error {
	a.buf.WriteString(delta)
	return a.push(ctx, a.buf.String())
}

// Replace discards the accumulation and writes content wholesale under the
// same message id. Used by the fallback path.
func (a *Accumulator) Replace(ctx context.Context, content string) error {
	a.buf.Reset()
	a.buf.WriteString(content)
	return a.push(ctx, content)
}

// Finalize returns the final content. The instance is discarded afterwards.
func (a *Accumulator) Finalize() string {
	return a.buf.String()
}

func (a *Accumulator) MessageID() string {
	return a.messageID
}

func (a *Accumulator) push(ctx context.Context, content string) error {
	_, err := a.store.UpsertMessage(ctx, a.sessionID, Message{
		ID:        a.messageID,
		Role:      RoleAssistant,
		Content:   content,
		Timestamp: time.Now(),
		SessionID: a.sessionID,
	})
	return err
}
