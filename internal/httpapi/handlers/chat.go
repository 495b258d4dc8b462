package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/healthmate/coach-chat/internal/chat"
	"github.com/healthmate/coach-chat/internal/common"
	"go.uber.org/zap"
)

func (h *Handler) CreateChatSession(c *gin.Context) {
	sess := h.ChatSvc.CreateSession(c.Request.Context())
	common.OK(c, gin.H{"session": sess})
}

func (h *Handler) ListChatSessions(c *gin.Context) {
	common.OK(c, gin.H{"sessions": h.ChatSvc.ListSessions()})
}

func (h *Handler) ActivateChatSession(c *gin.Context) {
	sess, err := h.ChatSvc.SwitchSession(c.Request.Context(), c.Param("session_id"))
	if err != nil {
		if errors.Is(err, chat.ErrSessionNotFound) {
			common.Fail(c, http.StatusNotFound, 40004, "session not found")
			return
		}
		common.Fail(c, http.StatusInternalServerError, 50001, "internal error")
		return
	}
	common.OK(c, gin.H{"session": sess})
}

type renameSessionReq struct {
	Title string `json:"title" binding:"required"`
}

func (h *Handler) RenameChatSession(c *gin.Context) {
	var req renameSessionReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}
	sessions := h.ChatSvc.RenameSession(c.Request.Context(), c.Param("session_id"), req.Title)
	common.OK(c, gin.H{"sessions": sessions})
}

func (h *Handler) DeleteChatSession(c *gin.Context) {
	sessions := h.ChatSvc.DeleteSession(c.Request.Context(), c.Param("session_id"))
	common.OK(c, gin.H{"sessions": sessions})
}

func (h *Handler) ListChatMessages(c *gin.Context) {
	msgs, err := h.ChatSvc.Messages(c.Param("session_id"))
	if err != nil {
		if errors.Is(err, chat.ErrSessionNotFound) {
			common.Fail(c, http.StatusNotFound, 40004, "session not found")
			return
		}
		common.Fail(c, http.StatusInternalServerError, 50002, "failed to list messages")
		return
	}
	common.OK(c, gin.H{"messages": msgs})
}

type sendMessageReq struct {
	Message string `json:"message" binding:"required"`
}

func (h *Handler) SendChatMessage(c *gin.Context) {
	var req sendMessageReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}

	msg, err := h.ChatSvc.Send(c.Request.Context(), req.Message)
	if err != nil {
		h.failTurn(c, err)
		return
	}

	common.OK(c, gin.H{
		"session_id": msg.SessionID,
		"message":    msg,
	})
}

func (h *Handler) failTurn(c *gin.Context, err error) {
	switch {
	case errors.Is(err, chat.ErrEmptyMessage):
		common.Fail(c, http.StatusBadRequest, 10005, "message must not be empty")
	case errors.Is(err, chat.ErrNoActiveSession):
		common.Fail(c, http.StatusConflict, 40901, "no active session")
	case errors.Is(err, chat.ErrTurnInFlight):
		common.Fail(c, http.StatusConflict, 40902, "a reply is still streaming for this session")
	case errors.Is(err, chat.ErrSessionNotFound):
		common.Fail(c, http.StatusNotFound, 40004, "session not found")
	case errors.Is(err, chat.ErrAuthentication):
		common.Fail(c, http.StatusUnauthorized, 40104, "please sign in again")
	default:
		h.Log.Error("turn failed", zap.Error(err))
		common.Fail(c, http.StatusInternalServerError, 50003, "failed to send message")
	}
}

// SendChatMessageStream re-emits the turn as SSE: chunk events per delta,
// periodic pings, one done event carrying the finalized message.
func (h *Handler) SendChatMessageStream(c *gin.Context) {
	var req sendMessageReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}

	// SSE headers
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no") // helpful if behind nginx

	c.Status(http.StatusOK)

	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		fmt.Fprintf(c.Writer, "event: error\ndata: flusher not supported\n\n")
		return
	}

	writeJSON := func(event string, payload any) {
		b, err := json.Marshal(payload)
		if err != nil {
			fmt.Fprintf(c.Writer, "event: error\ndata: {\"message\":\"json marshal failed\"}\n\n")
			flusher.Flush()
			return
		}
		if event != "" {
			fmt.Fprintf(c.Writer, "event: %s\n", event)
		}
		fmt.Fprintf(c.Writer, "data: %s\n\n", string(b))
		flusher.Flush()
	}

	ctx := c.Request.Context()
	chunks, final, errs := h.ChatSvc.SendStream(ctx, req.Message)

	// heartbeat ticker (keeps connections alive)
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()

	// All three channels close when the turn ends; a closed channel is always
	// ready, so every receive uses the comma-ok form and nils the channel out
	// instead of acting on its zero value. Otherwise a closed final can win the
	// select over a buffered error and emit an empty done event.
	for chunks != nil || final != nil || errs != nil {
		select {
		case ch, ok := <-chunks:
			if !ok {
				chunks = nil
				continue
			}
			writeJSON("chunk", gin.H{
				"type":  "chunk",
				"delta": ch,
			})

		case <-ticker.C:
			writeJSON("ping", gin.H{
				"type": "ping",
				"ts":   time.Now().Unix(),
			})

		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			writeJSON("error", gin.H{
				"type":    "error",
				"message": turnErrorText(err),
			})
			return

		case msg, ok := <-final:
			if !ok {
				final = nil
				continue
			}
			// deltas buffered behind the final message still belong before it
			if chunks != nil {
				for ch := range chunks {
					writeJSON("chunk", gin.H{
						"type":  "chunk",
						"delta": ch,
					})
				}
				chunks = nil
			}
			writeJSON("done", gin.H{
				"type":       "done",
				"message_id": msg.ID,
				"session_id": msg.SessionID,
				"content":    msg.Content,
			})
			return

		case <-ctx.Done():
			return
		}
	}
}

func turnErrorText(err error) string {
	switch {
	case errors.Is(err, chat.ErrEmptyMessage):
		return "message must not be empty"
	case errors.Is(err, chat.ErrNoActiveSession):
		return "no active session"
	case errors.Is(err, chat.ErrTurnInFlight):
		return "a reply is still streaming for this session"
	case errors.Is(err, chat.ErrSessionNotFound):
		return "session not found"
	case errors.Is(err, chat.ErrAuthentication):
		return "please sign in again"
	default:
		return err.Error()
	}
}
