package rest

import (
	"errors"
	"net/http"

	"github.com/arisefit/arise/server/game/activity"
	mw "github.com/arisefit/arise/server/middleware"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// TimerHandler exposes the timed activity session machine.
type TimerHandler struct {
	registry *activity.Registry
	logger   *zap.Logger
}

// NewTimerHandler creates a new TimerHandler.
func NewTimerHandler(registry *activity.Registry, logger *zap.Logger) *TimerHandler {
	return &TimerHandler{registry: registry, logger: logger}
}

type startTimerReq struct {
	Kind     string `json:"kind" binding:"required"`
	TargetID int64  `json:"target_id"`
	Duration string `json:"duration" binding:"required"`
}

func sessionView(s *activity.Session, minimized bool) gin.H {
	if s == nil {
		return nil
	}
	return gin.H{
		"id":           s.ID,
		"kind":         s.Kind,
		"target_id":    s.TargetID,
		"started_at":   s.StartedAt,
		"duration_ms":  s.DurationMs,
		"remaining_ms": s.RemainingMs,
		"ended_at":     s.EndedAt,
		"active":       s.Active,
		"minimized":    minimized,
	}
}

// Start handles POST /api/timer/start.
func (h *TimerHandler) Start(c *gin.Context) {
	accountID := mw.GetAccountID(c)

	var req startTimerReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	var kind activity.Kind
	switch req.Kind {
	case string(activity.KindWorkout):
		kind = activity.KindWorkout
	case string(activity.KindQuest):
		kind = activity.KindQuest
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid kind"})
		return
	}

	sess, err := h.registry.Get(accountID).Start(c.Request.Context(), kind, req.TargetID, req.Duration)
	if err != nil {
		switch {
		case errors.Is(err, activity.ErrBadDuration):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		case errors.Is(err, activity.ErrBusy):
			c.JSON(http.StatusConflict, gin.H{"error": "a session is already running"})
		default:
			h.logger.Error("timer start failed", zap.Int64("account_id", accountID), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		}
		return
	}
	c.JSON(http.StatusCreated, gin.H{"session": sessionView(sess, false)})
}

// Cancel handles POST /api/timer/cancel.
func (h *TimerHandler) Cancel(c *gin.Context) {
	accountID := mw.GetAccountID(c)

	if err := h.registry.Get(accountID).Cancel(c.Request.Context()); err != nil {
		if errors.Is(err, activity.ErrNoSession) {
			c.JSON(http.StatusNotFound, gin.H{"error": "no active session"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "session cancelled"})
}

// Minimize handles POST /api/timer/minimize.
func (h *TimerHandler) Minimize(c *gin.Context) {
	h.registry.Get(mw.GetAccountID(c)).Minimize()
	c.JSON(http.StatusOK, gin.H{"message": "minimized"})
}

// Restore handles POST /api/timer/restore.
func (h *TimerHandler) Restore(c *gin.Context) {
	h.registry.Get(mw.GetAccountID(c)).Restore()
	c.JSON(http.StatusOK, gin.H{"message": "restored"})
}

// Status handles GET /api/timer.
func (h *TimerHandler) Status(c *gin.Context) {
	sess, minimized := h.registry.Get(mw.GetAccountID(c)).Snapshot()
	c.JSON(http.StatusOK, gin.H{"session": sessionView(sess, minimized)})
}

// StartupCheck handles POST /api/timer/startup-check. A client calls this
// when it boots; any session left active by a previous run is invalidated
// and returned so the client can explain what happened.
func (h *TimerHandler) StartupCheck(c *gin.Context) {
	accountID := mw.GetAccountID(c)

	invalidated, err := h.registry.Get(accountID).StartupCheck(c.Request.Context())
	if err != nil {
		h.logger.Error("startup check failed", zap.Int64("account_id", accountID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"invalidated": sessionView(invalidated, false)})
}
