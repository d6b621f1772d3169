package rest

import (
	"context"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/arisefit/arise/server/audit"
	"github.com/arisefit/arise/server/cache"
	"github.com/arisefit/arise/server/config"
	"github.com/arisefit/arise/server/game/notify"
	mw "github.com/arisefit/arise/server/middleware"
	"github.com/arisefit/arise/server/model"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var usernameRe = regexp.MustCompile(`^[a-zA-Z0-9_]+$`)

// AuthHandler handles register, login, logout and token refresh.
type AuthHandler struct {
	db     *gorm.DB
	cache  cache.Cache
	sec    config.SecurityConfig
	gate   *notify.Gate
	ledger *audit.Service
	logger *zap.Logger
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(db *gorm.DB, c cache.Cache, sec config.SecurityConfig, gate *notify.Gate, ledger *audit.Service, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{db: db, cache: c, sec: sec, gate: gate, ledger: ledger, logger: logger}
}

type registerReq struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type loginReq struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// validateUsername enforces 4-20 word characters.
func validateUsername(u string) string {
	if len(u) < 4 || len(u) > 20 {
		return "username must be 4-20 characters"
	}
	if !usernameRe.MatchString(u) {
		return "username may only contain letters, digits and underscores"
	}
	return ""
}

// validatePassword enforces 8-20 characters with upper, lower, digit and
// special character classes all present.
func validatePassword(p string) string {
	if len(p) < 8 || len(p) > 20 {
		return "password must be 8-20 characters"
	}
	var upper, lower, digit, special bool
	for _, r := range p {
		switch {
		case r >= 'A' && r <= 'Z':
			upper = true
		case r >= 'a' && r <= 'z':
			lower = true
		case r >= '0' && r <= '9':
			digit = true
		case strings.ContainsRune(`!@#$%^&*(),.?":{}|<>`, r):
			special = true
		}
	}
	if !upper || !lower || !digit || !special {
		return "password needs an uppercase letter, a lowercase letter, a digit and a special character"
	}
	return ""
}

// Register handles POST /api/auth/register.
func (h *AuthHandler) Register(c *gin.Context) {
	var req registerReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	if msg := validateUsername(req.Username); msg != "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": msg})
		return
	}
	if msg := validatePassword(req.Password); msg != "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": msg})
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), 12)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	acct := model.Account{
		Username:     req.Username,
		PasswordHash: string(hash),
		Status:       1,
	}
	if err := h.db.WithContext(c.Request.Context()).Create(&acct).Error; err != nil {
		if isUniqueViolation(err) {
			c.JSON(http.StatusConflict, gin.H{"error": "username already taken"})
			return
		}
		h.logger.Error("register failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	h.ledger.Record(audit.Entry{
		TraceID:   mw.GetTraceID(c),
		AccountID: acct.ID,
		Action:    "register",
		IP:        c.ClientIP(),
	})
	c.JSON(http.StatusCreated, gin.H{
		"id":       acct.ID,
		"username": acct.Username,
	})
}

// Login handles POST /api/auth/login. There is no auto-registration:
// unknown usernames fail with 401 like a bad password does.
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	var acct model.Account
	err := h.db.WithContext(c.Request.Context()).
		Where("username = ?", req.Username).
		First(&acct).Error
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}
	if acct.Status == 0 {
		c.JSON(http.StatusForbidden, gin.H{"error": "account banned"})
		return
	}
	if bcrypt.CompareHashAndPassword([]byte(acct.PasswordHash), []byte(req.Password)) != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}

	token, err := mw.GenerateToken(acct.ID, h.sec.JWTSecret, h.sec.JWTTTLH)
	if err != nil {
		h.logger.Error("token generation failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()
	if err := h.cache.Set(ctx, "session:"+token, "1", h.sec.JWTTTLH); err != nil {
		h.logger.Error("session cache write failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	// Best effort; login succeeds even if this bookkeeping write fails.
	now := time.Now()
	if err := h.db.Model(&model.Account{}).Where("id = ?", acct.ID).
		Updates(map[string]interface{}{
			"last_login_at": now,
			"last_login_ip": c.ClientIP(),
		}).Error; err != nil {
		h.logger.Warn("last login update failed", zap.Int64("account_id", acct.ID), zap.Error(err))
	}

	h.gate.QueueLoginSignal(acct.ID)
	h.ledger.Record(audit.Entry{
		TraceID:   mw.GetTraceID(c),
		AccountID: acct.ID,
		Action:    "login",
		IP:        c.ClientIP(),
	})

	c.JSON(http.StatusOK, gin.H{
		"token":    token,
		"id":       acct.ID,
		"username": acct.Username,
	})
}

// Logout handles POST /api/auth/logout. It invalidates the session token.
func (h *AuthHandler) Logout(c *gin.Context) {
	header := c.GetHeader("Authorization")
	tokenStr := strings.TrimPrefix(header, "Bearer ")

	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()
	if err := h.cache.Del(ctx, "session:"+tokenStr); err != nil {
		h.logger.Warn("session delete failed", zap.Error(err))
	}
	c.JSON(http.StatusOK, gin.H{"message": "logged out"})
}

// Refresh handles POST /api/auth/refresh. It issues a fresh token and
// retires the old session key.
func (h *AuthHandler) Refresh(c *gin.Context) {
	accountID := mw.GetAccountID(c)
	header := c.GetHeader("Authorization")
	oldToken := strings.TrimPrefix(header, "Bearer ")

	token, err := mw.GenerateToken(accountID, h.sec.JWTSecret, h.sec.JWTTTLH)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()
	if err := h.cache.Set(ctx, "session:"+token, "1", h.sec.JWTTTLH); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	_ = h.cache.Del(ctx, "session:"+oldToken)

	c.JSON(http.StatusOK, gin.H{"token": token})
}

// isUniqueViolation reports whether err is a unique-constraint error from
// any of the supported database backends.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique") ||
		strings.Contains(msg, "duplicate") ||
		strings.Contains(msg, "already exists")
}
