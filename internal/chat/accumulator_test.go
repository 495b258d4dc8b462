package chat

import (
	"context"
	"strings"
	"testing"
)

func TestAccumulator_ConcatenatesInOrder(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	sess := s.Create(ctx)

	chunkings := [][]string{
		{"Hi", " there"},
		{"H", "i", " ", "t", "h", "e", "r", "e"},
		{"Hi there"},
	}
	for _, deltas := range chunkings {
		acc := NewAccumulator(s, sess.ID)
		if _, err := acc.Begin(ctx); err != nil {
			t.Fatalf("begin: %v", err)
		}
		for _, d := range deltas {
			if err := acc.Append(ctx, d); err != nil {
				t.Fatalf("append: %v", err)
			}
		}
		if got := acc.Finalize(); got != "Hi there" {
			t.Fatalf("chunking %v: finalize = %q", deltas, got)
		}
	}
}

func TestAccumulator_BeginWritesPendingMessage(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	sess := s.Create(ctx)

	acc := NewAccumulator(s, sess.ID)
	id, err := acc.Begin(ctx)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	if id == "" {
		t.Fatalf("expected a message id")
	}

	got, _ := s.Get(sess.ID)
	if len(got.Messages) != 1 {
		t.Fatalf("expected pending message, got %d messages", len(got.Messages))
	}
	if got.Messages[0].Role != RoleAssistant || got.Messages[0].Content != "" {
		t.Fatalf("unexpected pending message: %+v", got.Messages[0])
	}
}

func TestAccumulator_PushesFullStringNotFragment(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	sess := s.Create(ctx)

	acc := NewAccumulator(s, sess.ID)
	if _, err := acc.Begin(ctx); err != nil {
		t.Fatalf("begin: %v", err)
	}
	if err := acc.Append(ctx, "one "); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := acc.Append(ctx, "two"); err != nil {
		t.Fatalf("append: %v", err)
	}

	got, _ := s.Get(sess.ID)
	if got.Messages[0].Content != "one two" {
		t.Fatalf("store holds %q, expected the full accumulated string", got.Messages[0].Content)
	}
	if len(got.Messages) != 1 {
		t.Fatalf("appends created extra messages: %d", len(got.Messages))
	}
}

func TestAccumulator_ReplaceDiscardsAccumulation(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	sess := s.Create(ctx)

	acc := NewAccumulator(s, sess.ID)
	if _, err := acc.Begin(ctx); err != nil {
		t.Fatalf("begin: %v", err)
	}
	if err := acc.Append(ctx, "partial stream"); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := acc.Replace(ctx, "complete backup answer"); err != nil {
		t.Fatalf("replace: %v", err)
	}

	if got := acc.Finalize(); got != "complete backup answer" {
		t.Fatalf("finalize = %q", got)
	}
	got, _ := s.Get(sess.ID)
	if strings.Contains(got.Messages[0].Content, "partial") {
		t.Fatalf("partial accumulation survived replace: %q", got.Messages[0].Content)
	}
}

func TestAccumulator_AppendToDeletedSessionFails(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	sess := s.Create(ctx)

	acc := NewAccumulator(s, sess.ID)
	if _, err := acc.Begin(ctx); err != nil {
		t.Fatalf("begin: %v", err)
	}
	s.Delete(ctx, sess.ID)
	if err := acc.Append(ctx, "late delta"); err != ErrSessionNotFound {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}
