package rest

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/arisefit/arise/server/audit"
	"github.com/arisefit/arise/server/game/leveling"
	"github.com/arisefit/arise/server/game/notify"
	"github.com/arisefit/arise/server/game/progress"
	"github.com/arisefit/arise/server/game/quest"
	mw "github.com/arisefit/arise/server/middleware"
	"github.com/arisefit/arise/server/model"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// QuestHandler serves the daily quest endpoints.
type QuestHandler struct {
	db          *gorm.DB
	quests      *quest.Service
	progress    *progress.Service
	gate        *notify.Gate
	ledger      *audit.Service
	scalingStep float64
	logger      *zap.Logger
}

// NewQuestHandler creates a new QuestHandler.
func NewQuestHandler(db *gorm.DB, q *quest.Service, p *progress.Service, gate *notify.Gate, ledger *audit.Service, scalingStep float64, logger *zap.Logger) *QuestHandler {
	return &QuestHandler{
		db:          db,
		quests:      q,
		progress:    p,
		gate:        gate,
		ledger:      ledger,
		scalingStep: scalingStep,
		logger:      logger,
	}
}

// questView renders a quest with reps and duration scaled to the
// account's current level.
func (h *QuestHandler) questView(c *gin.Context, q *model.Quest, accountID int64, now time.Time) gin.H {
	level := 1
	var acct model.Account
	if err := h.db.WithContext(c.Request.Context()).First(&acct, accountID).Error; err == nil {
		level = leveling.FromXP(acct.XP)
	}

	return gin.H{
		"id":            q.ID,
		"quest_date":    q.QuestDate,
		"title":         q.Title,
		"description":   q.Description,
		"reps":          leveling.ScaledValue(q.BaseReps, level, h.scalingStep),
		"duration":      leveling.ScaledValue(q.BaseDuration, level, h.scalingStep),
		"base_reps":     q.BaseReps,
		"base_duration": q.BaseDuration,
		"completed":     q.Completed,
		"completed_at":  q.CompletedAt,
		"quote":         q.Quote,
		"next_unlock":   quest.NextUnlock(now),
	}
}

// Today handles GET /api/quests/today.
func (h *QuestHandler) Today(c *gin.Context) {
	accountID := mw.GetAccountID(c)
	now := time.Now()

	q, err := h.quests.Today(c.Request.Context(), accountID, now)
	if err != nil {
		h.logger.Error("today quest failed", zap.Int64("account_id", accountID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"quest": h.questView(c, q, accountID, now)})
}

// Update handles PUT /api/quests/:id.
func (h *QuestHandler) Update(c *gin.Context) {
	accountID := mw.GetAccountID(c)
	questID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid quest id"})
		return
	}

	var fields quest.UpdateFields
	if err := c.ShouldBindJSON(&fields); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	q, err := h.quests.Update(c.Request.Context(), accountID, questID, fields)
	if err != nil {
		if errors.Is(err, quest.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "quest not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"quest": h.questView(c, q, accountID, time.Now())})
}

// Complete handles POST /api/quests/:id/complete. Completing an already
// completed quest is a no-op that still returns the quest.
func (h *QuestHandler) Complete(c *gin.Context) {
	accountID := mw.GetAccountID(c)
	questID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid quest id"})
		return
	}

	now := time.Now()
	q, awarded, err := h.quests.Complete(c.Request.Context(), accountID, questID, now)
	if err != nil {
		if errors.Is(err, quest.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "quest not found"})
			return
		}
		h.logger.Error("quest complete failed",
			zap.Int64("account_id", accountID),
			zap.Int64("quest_id", questID),
			zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	var xpGain int64
	if awarded {
		xpGain = h.quests.QuestXP()
		h.progress.OnQuestCompleted(c.Request.Context(), accountID)
		h.ledger.Record(audit.Entry{
			TraceID:   mw.GetTraceID(c),
			AccountID: accountID,
			Action:    "quest_complete",
			XPDelta:   xpGain,
			Detail:    gin.H{"quest_id": q.ID, "title": q.Title},
			IP:        c.ClientIP(),
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"quest":   h.questView(c, q, accountID, now),
		"awarded": awarded,
		"xp_gain": xpGain,
	})
}

// Notify handles GET /api/quests/notify. When the gate decides the prompt
// is due it returns the quest; otherwise shown is false and quest is null.
func (h *QuestHandler) Notify(c *gin.Context) {
	accountID := mw.GetAccountID(c)
	now := time.Now()

	q, shown, err := h.gate.Evaluate(c.Request.Context(), accountID, now)
	if err != nil {
		h.logger.Error("notify evaluate failed", zap.Int64("account_id", accountID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	if !shown {
		c.JSON(http.StatusOK, gin.H{"shown": false, "quest": nil})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"shown": true,
		"quest": h.questView(c, q, accountID, now),
	})
}

// RemindLater handles POST /api/quests/remind-later.
func (h *QuestHandler) RemindLater(c *gin.Context) {
	accountID := mw.GetAccountID(c)

	at, err := h.gate.RemindLater(c.Request.Context(), accountID, time.Now())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"remind_at": at})
}
