package rest_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/arisefit/arise/server/api/rest"
	"github.com/arisefit/arise/server/audit"
	"github.com/arisefit/arise/server/cache"
	"github.com/arisefit/arise/server/config"
	"github.com/arisefit/arise/server/game/notify"
	"github.com/arisefit/arise/server/game/quest"
	"github.com/arisefit/arise/server/model"
	"github.com/arisefit/arise/server/testutil"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newAuthRouter(t *testing.T) (*gin.Engine, *gorm.DB, cache.Cache) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	c, _ := testutil.SetupTestCache(t)
	logger := testLogger()

	sec := config.SecurityConfig{JWTSecret: "test-secret", JWTTTLH: time.Hour}
	quests := quest.NewService(db, nil, 50, logger)
	gate := notify.NewGate(c, quests, time.Hour, logger)
	ledger := audit.New(db, logger)
	t.Cleanup(func() { ledger.Stop(context.Background()) })

	h := rest.NewAuthHandler(db, c, sec, gate, ledger, logger)
	r := gin.New()
	r.POST("/api/auth/register", h.Register)
	r.POST("/api/auth/login", h.Login)
	r.POST("/api/auth/logout", h.Logout)
	return r, db, c
}

func TestRegister_Success(t *testing.T) {
	r, db, _ := newAuthRouter(t)

	w := doJSON(r, http.MethodPost, "/api/auth/register", gin.H{
		"username": "hunter_01",
		"password": "Str0ng!pass",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var acct model.Account
	require.NoError(t, db.Where("username = ?", "hunter_01").First(&acct).Error)
	assert.Equal(t, 1, acct.Status)
	assert.NotEqual(t, "Str0ng!pass", acct.PasswordHash)
}

func TestRegister_RejectsBadUsername(t *testing.T) {
	r, _, _ := newAuthRouter(t)

	for _, username := range []string{"ab", "has space", "no$symbols", "waaaaaaaaaaaaaaaaaaaytoolong"} {
		w := doJSON(r, http.MethodPost, "/api/auth/register", gin.H{
			"username": username,
			"password": "Str0ng!pass",
		})
		assert.Equal(t, http.StatusBadRequest, w.Code, "username %q", username)
	}
}

func TestRegister_RejectsWeakPassword(t *testing.T) {
	r, _, _ := newAuthRouter(t)

	for _, password := range []string{
		"short1!",         // too short
		"alllowercase1!",  // no uppercase
		"ALLUPPERCASE1!",  // no lowercase
		"NoDigitsHere!",   // no digit
		"NoSpecials123",   // no special character
	} {
		w := doJSON(r, http.MethodPost, "/api/auth/register", gin.H{
			"username": "hunter_01",
			"password": password,
		})
		assert.Equal(t, http.StatusBadRequest, w.Code, "password %q", password)
	}
}

func TestRegister_DuplicateUsername(t *testing.T) {
	r, _, _ := newAuthRouter(t)

	body := gin.H{"username": "hunter_01", "password": "Str0ng!pass"}
	w := doJSON(r, http.MethodPost, "/api/auth/register", body)
	require.Equal(t, http.StatusCreated, w.Code)

	w = doJSON(r, http.MethodPost, "/api/auth/register", body)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestLogin_Success(t *testing.T) {
	r, db, c := newAuthRouter(t)
	seedAccount(t, db, "hunter_01", "Str0ng!pass")

	w := doJSON(r, http.MethodPost, "/api/auth/login", gin.H{
		"username": "hunter_01",
		"password": "Str0ng!pass",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	body := decodeBody(t, w)
	token, _ := body["token"].(string)
	require.NotEmpty(t, token)

	exists, err := c.Exists(context.Background(), "session:"+token)
	require.NoError(t, err)
	assert.True(t, exists)

	var acct model.Account
	require.NoError(t, db.Where("username = ?", "hunter_01").First(&acct).Error)
	assert.NotNil(t, acct.LastLoginAt)
}

func TestLogin_InvalidCredentials(t *testing.T) {
	r, db, _ := newAuthRouter(t)
	seedAccount(t, db, "hunter_01", "Str0ng!pass")

	w := doJSON(r, http.MethodPost, "/api/auth/login", gin.H{
		"username": "hunter_01",
		"password": "Wrong!pass1",
	})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// Unknown usernames fail the same way; login never auto-registers.
	w = doJSON(r, http.MethodPost, "/api/auth/login", gin.H{
		"username": "nobody_here",
		"password": "Str0ng!pass",
	})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	var count int64
	db.Model(&model.Account{}).Count(&count)
	assert.Equal(t, int64(1), count)
}

func TestLogin_BannedAccount(t *testing.T) {
	r, db, _ := newAuthRouter(t)
	acct := seedAccount(t, db, "hunter_01", "Str0ng!pass")
	require.NoError(t, db.Model(acct).Update("status", 0).Error)

	w := doJSON(r, http.MethodPost, "/api/auth/login", gin.H{
		"username": "hunter_01",
		"password": "Str0ng!pass",
	})
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestLogout_InvalidatesSession(t *testing.T) {
	r, db, c := newAuthRouter(t)
	seedAccount(t, db, "hunter_01", "Str0ng!pass")

	w := doJSON(r, http.MethodPost, "/api/auth/login", gin.H{
		"username": "hunter_01",
		"password": "Str0ng!pass",
	})
	require.Equal(t, http.StatusOK, w.Code)
	token := decodeBody(t, w)["token"].(string)

	w = doJSON(r, http.MethodPost, "/api/auth/logout", nil,
		map[string]string{"Authorization": "Bearer " + token})
	require.Equal(t, http.StatusOK, w.Code)

	exists, err := c.Exists(context.Background(), "session:"+token)
	require.NoError(t, err)
	assert.False(t, exists)
}
