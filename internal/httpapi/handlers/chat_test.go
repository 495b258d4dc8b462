package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/healthmate/coach-chat/internal/ai"
	"github.com/healthmate/coach-chat/internal/auth"
	"github.com/healthmate/coach-chat/internal/chat"
	"github.com/healthmate/coach-chat/internal/config"
	"github.com/healthmate/coach-chat/internal/store"
	"go.uber.org/zap"
)

// replayProvider streams a fixed event sequence.
type replayProvider struct {
	events []ai.Event
}

func (p *replayProvider) Chat(ctx context.Context, token string, req ai.ChatRequest) (string, error) {
	_, _, _ = ctx, token, req
	return "", nil
}

func (p *replayProvider) StreamChat(ctx context.Context, token string, req ai.ChatRequest) (<-chan ai.Event, <-chan error) {
	_, _ = token, req
	events := make(chan ai.Event, len(p.events))
	errs := make(chan error, 1)
	go func() {
		defer close(events)
		defer close(errs)
		for _, ev := range p.events {
			select {
			case events <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()
	return events, errs
}

func newStreamRouter(t *testing.T, svc *chat.Service) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	h := NewHandler(nil, config.Config{}, zap.NewNop(), svc)
	r := gin.New()
	r.POST("/chat/messages/stream", h.SendChatMessageStream)
	return r
}

func postStream(r *gin.Engine) string {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/chat/messages/stream", strings.NewReader(`{"message":"hello"}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	return w.Body.String()
}

func TestSendChatMessageStream_DeltasThenDone(t *testing.T) {
	kv := store.NewMemory()
	sessions := chat.NewStore(context.Background(), kv, zap.NewNop())
	reg := ai.NewRegistry()
	reg.Register(chat.ProviderCoach, func(ctx context.Context) (ai.Provider, error) {
		_ = ctx
		return &replayProvider{events: []ai.Event{
			{Kind: ai.EventDelta, Text: "Hi"},
			{Kind: ai.EventDelta, Text: " there"},
			{Kind: ai.EventEnd},
		}}, nil
	})
	svc := chat.NewService(sessions, reg, auth.StaticSource("tok"), zap.NewNop())
	svc.CreateSession(context.Background())
	r := newStreamRouter(t, svc)

	body := postStream(r)

	first := strings.Index(body, `"delta":"Hi"`)
	second := strings.Index(body, `"delta":" there"`)
	done := strings.Index(body, "event: done")
	if first < 0 || second < 0 || done < 0 {
		t.Fatalf("missing events in stream:\n%s", body)
	}
	if !(first < second && second < done) {
		t.Fatalf("events out of order (delta1=%d delta2=%d done=%d):\n%s", first, second, done, body)
	}
	if !strings.Contains(body, `"content":"Hi there"`) {
		t.Fatalf("done event missing final content:\n%s", body)
	}
}

// A failing turn must surface exactly the error event. The channel close that
// follows the buffered error can race the select, so this is run many times.
func TestSendChatMessageStream_FailingTurnEmitsErrorNeverDone(t *testing.T) {
	kv := store.NewMemory()
	sessions := chat.NewStore(context.Background(), kv, zap.NewNop())
	// no active session: every turn fails before the provider is touched
	svc := chat.NewService(sessions, ai.NewRegistry(), auth.StaticSource("tok"), zap.NewNop())
	r := newStreamRouter(t, svc)

	for i := 0; i < 500; i++ {
		body := postStream(r)
		if !strings.Contains(body, "event: error") {
			t.Fatalf("iteration %d: error event missing:\n%s", i, body)
		}
		if !strings.Contains(body, "no active session") {
			t.Fatalf("iteration %d: error event lacks reason:\n%s", i, body)
		}
		if strings.Contains(body, "event: done") {
			t.Fatalf("iteration %d: done event emitted for a failing turn:\n%s", i, body)
		}
	}
}
