package rest

import (
	"net/http"
	"time"

	"github.com/arisefit/arise/server/audit"
	"github.com/arisefit/arise/server/game/progress"
	mw "github.com/arisefit/arise/server/middleware"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// TrackerHandler logs workouts and meals and lists activity history.
type TrackerHandler struct {
	progress *progress.Service
	ledger   *audit.Service
	logger   *zap.Logger
}

// NewTrackerHandler creates a new TrackerHandler.
func NewTrackerHandler(p *progress.Service, ledger *audit.Service, logger *zap.Logger) *TrackerHandler {
	return &TrackerHandler{progress: p, ledger: ledger, logger: logger}
}

// LogWorkout handles POST /api/workouts.
func (h *TrackerHandler) LogWorkout(c *gin.Context) {
	accountID := mw.GetAccountID(c)

	var in progress.WorkoutInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	w, xpGain, err := h.progress.LogWorkout(c.Request.Context(), accountID, in, time.Now())
	if err != nil {
		h.logger.Error("log workout failed", zap.Int64("account_id", accountID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	h.ledger.Record(audit.Entry{
		TraceID:   mw.GetTraceID(c),
		AccountID: accountID,
		Action:    "log_workout",
		XPDelta:   xpGain,
		Detail:    gin.H{"workout_id": w.ID, "name": w.Name},
		IP:        c.ClientIP(),
	})
	c.JSON(http.StatusCreated, gin.H{
		"workout": w,
		"xp_gain": xpGain,
	})
}

// ListWorkouts handles GET /api/workouts.
func (h *TrackerHandler) ListWorkouts(c *gin.Context) {
	accountID := mw.GetAccountID(c)
	out, err := h.progress.ListWorkouts(c.Request.Context(), accountID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"workouts": out})
}

// LogMeal handles POST /api/meals.
func (h *TrackerHandler) LogMeal(c *gin.Context) {
	accountID := mw.GetAccountID(c)

	var in progress.MealInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	m, xpGain, err := h.progress.LogMeal(c.Request.Context(), accountID, in, time.Now())
	if err != nil {
		h.logger.Error("log meal failed", zap.Int64("account_id", accountID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	h.ledger.Record(audit.Entry{
		TraceID:   mw.GetTraceID(c),
		AccountID: accountID,
		Action:    "log_meal",
		XPDelta:   xpGain,
		Detail:    gin.H{"meal_id": m.ID, "name": m.Name},
		IP:        c.ClientIP(),
	})
	c.JSON(http.StatusCreated, gin.H{
		"meal":    m,
		"xp_gain": xpGain,
	})
}

// ListMeals handles GET /api/meals.
func (h *TrackerHandler) ListMeals(c *gin.Context) {
	accountID := mw.GetAccountID(c)
	out, err := h.progress.ListMeals(c.Request.Context(), accountID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"meals": out})
}

// ListAchievements handles GET /api/achievements.
func (h *TrackerHandler) ListAchievements(c *gin.Context) {
	accountID := mw.GetAccountID(c)
	out, err := h.progress.ListAchievements(c.Request.Context(), accountID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"achievements": out})
}
