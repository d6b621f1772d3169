package rest

import (
	"net/http"
	"strconv"
	"time"

	"github.com/arisefit/arise/server/game/chat"
	"github.com/arisefit/arise/server/game/quest"
	"github.com/arisefit/arise/server/model"
	"github.com/arisefit/arise/server/scheduler"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// AdminHandler serves operator endpoints guarded by the admin key.
type AdminHandler struct {
	db      *gorm.DB
	manager *chat.Manager
	sched   *scheduler.Scheduler
	logger  *zap.Logger
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(db *gorm.DB, manager *chat.Manager, sched *scheduler.Scheduler, logger *zap.Logger) *AdminHandler {
	return &AdminHandler{db: db, manager: manager, sched: sched, logger: logger}
}

// AdminAuth guards admin routes with the X-Admin-Key header. An empty
// configured key disables the admin surface entirely.
func AdminAuth(adminKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if adminKey == "" {
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "admin interface disabled"})
			return
		}
		if c.GetHeader("X-Admin-Key") != adminKey {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid admin key"})
			return
		}
		c.Next()
	}
}

// Metrics handles GET /admin/metrics.
func (h *AdminHandler) Metrics(c *gin.Context) {
	ctx := c.Request.Context()
	today := quest.DayKey(time.Now())

	var accounts, questsToday, completedToday int64
	h.db.WithContext(ctx).Model(&model.Account{}).Count(&accounts)
	h.db.WithContext(ctx).Model(&model.Quest{}).
		Where("quest_date = ?", today).Count(&questsToday)
	h.db.WithContext(ctx).Model(&model.Quest{}).
		Where("quest_date = ? AND completed = ?", today, true).Count(&completedToday)

	c.JSON(http.StatusOK, gin.H{
		"accounts":               accounts,
		"quests_today":           questsToday,
		"quests_completed_today": completedToday,
		"chat_online":            h.manager.Count(),
		"scheduler_tasks":        h.sched.ListTickers(),
	})
}

// BanAccount handles POST /admin/accounts/:id/ban. A connected chat
// session for the banned account is closed immediately.
func (h *AdminHandler) BanAccount(c *gin.Context) {
	accountID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid account id"})
		return
	}

	res := h.db.WithContext(c.Request.Context()).Model(&model.Account{}).
		Where("id = ?", accountID).
		Update("status", 0)
	if res.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	if res.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "account not found"})
		return
	}

	if s := h.manager.Get(accountID); s != nil {
		s.Close()
		h.manager.Unregister(accountID)
	}

	h.logger.Info("account banned", zap.Int64("account_id", accountID))
	c.JSON(http.StatusOK, gin.H{"message": "account banned"})
}

// ListTasks handles GET /admin/tasks.
func (h *AdminHandler) ListTasks(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"tickers": h.sched.ListTickers()})
}
