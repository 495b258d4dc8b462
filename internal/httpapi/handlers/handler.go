package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/healthmate/coach-chat/internal/chat"
	"github.com/healthmate/coach-chat/internal/common"
	"github.com/healthmate/coach-chat/internal/config"
	"github.com/healthmate/coach-chat/internal/httpapi/middleware"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Handler struct {
	DB      *gorm.DB
	Cfg     config.Config
	Log     *zap.Logger
	ChatSvc *chat.Service
}

func NewHandler(db *gorm.DB, cfg config.Config, log *zap.Logger, svc *chat.Service) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{DB: db, Cfg: cfg, Log: log, ChatSvc: svc}
}

func (h *Handler) Ping(c *gin.Context) {
	common.OK(c, gin.H{"pong": true})
}

func userIDFromContext(c *gin.Context) (uint64, bool) {
	v, ok := c.Get(middleware.UserIDKey)
	if !ok {
		return 0, false
	}
	id, ok := v.(uint64)
	return id, ok
}
