package ai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestCoachClient_StreamChat(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer tok" {
			t.Errorf("missing bearer token, got %q", got)
		}
		if got := r.Header.Get("X-Session-ID"); got != "sess-1" {
			t.Errorf("missing session correlation header, got %q", got)
		}
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: {\"type\":\"chunk\",\"delta\":\"Hi\"}\n")
		fmt.Fprint(w, "data: {\"type\":\"chunk\",\"delta\":\" there\"}\n")
		fmt.Fprint(w, "data: {\"type\":\"done\"}\n")
	}))
	defer srv.Close()

	c := NewCoachClient(srv.URL, "HealthMate")
	events, errs := c.StreamChat(context.Background(), "tok", ChatRequest{
		Prompt:    "hello",
		SessionID: "sess-1",
	})

	var text string
	ended := false
	for ev := range events {
		switch ev.Kind {
		case EventDelta:
			text += ev.Text
		case EventEnd:
			ended = true
		}
	}
	if err := <-errs; err != nil {
		t.Fatalf("stream err: %v", err)
	}
	if text != "Hi there" || !ended {
		t.Fatalf("text=%q ended=%v", text, ended)
	}
}

func TestCoachClient_StreamChatNonSuccessClassified(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "maintenance", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewCoachClient(srv.URL, "")
	events, errs := c.StreamChat(context.Background(), "tok", ChatRequest{Prompt: "x", SessionID: "s"})

	for range events {
	}
	err := <-errs
	var e *Error
	if !errors.As(err, &e) {
		t.Fatalf("expected classified error, got %v", err)
	}
	if e.Kind != ErrKindUnavailable || !e.Retryable {
		t.Fatalf("unexpected classification: %+v", e)
	}
}

func TestCoachClient_StreamChatRequiresToken(t *testing.T) {
	c := NewCoachClient("http://localhost:0", "")
	events, errs := c.StreamChat(context.Background(), "", ChatRequest{Prompt: "x", SessionID: "s"})
	for range events {
	}
	if err := <-errs; err == nil {
		t.Fatalf("expected error without bearer token")
	}
}

func TestBackupClient_Chat(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/backup" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"reply":"fallback answer"}`)
	}))
	defer srv.Close()

	c := NewBackupClient(srv.URL)
	reply, err := c.Chat(context.Background(), "tok", ChatRequest{Prompt: "hello", SessionID: "s"})
	if err != nil {
		t.Fatalf("chat: %v", err)
	}
	if reply != "fallback answer" {
		t.Fatalf("reply = %q", reply)
	}
}

func TestBackupClient_EmptyReplyIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"reply":""}`)
	}))
	defer srv.Close()

	c := NewBackupClient(srv.URL)
	if _, err := c.Chat(context.Background(), "tok", ChatRequest{Prompt: "x", SessionID: "s"}); err == nil {
		t.Fatalf("expected error on empty reply")
	}
}
