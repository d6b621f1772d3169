package rest

import (
	"net/http"

	"github.com/arisefit/arise/server/game/leveling"
	mw "github.com/arisefit/arise/server/middleware"
	"github.com/arisefit/arise/server/model"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// ProfileHandler serves the authenticated account's profile.
type ProfileHandler struct {
	db *gorm.DB
}

// NewProfileHandler creates a new ProfileHandler.
func NewProfileHandler(db *gorm.DB) *ProfileHandler {
	return &ProfileHandler{db: db}
}

// Get handles GET /api/profile.
func (h *ProfileHandler) Get(c *gin.Context) {
	accountID := mw.GetAccountID(c)

	var acct model.Account
	if err := h.db.WithContext(c.Request.Context()).First(&acct, accountID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "account not found"})
		return
	}

	level, into, needed := leveling.Progress(acct.XP)
	c.JSON(http.StatusOK, gin.H{
		"id":            acct.ID,
		"username":      acct.Username,
		"xp":            acct.XP,
		"level":         level,
		"xp_into_level": into,
		"xp_to_next":    needed,
		"progress":      leveling.Fraction(acct.XP),
		"streak":        acct.Streak,
		"created_at":    acct.CreatedAt,
		"last_login_at": acct.LastLoginAt,
	})
}
