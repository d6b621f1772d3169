package rest_test

import (
	"net/http"
	"testing"

	"github.com/arisefit/arise/server/api/rest"
	"github.com/arisefit/arise/server/game/chat"
	"github.com/arisefit/arise/server/scheduler"
	"github.com/arisefit/arise/server/testutil"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const testAdminKey = "test-admin-key"

func newAdminRouter(t *testing.T, adminKey string) (*gin.Engine, *gorm.DB, *chat.Manager) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	logger := testLogger()
	manager := chat.NewManager(logger)
	sched := scheduler.New(logger)
	t.Cleanup(sched.Stop)

	h := rest.NewAdminHandler(db, manager, sched, logger)
	r := gin.New()
	admin := r.Group("/admin", rest.AdminAuth(adminKey))
	admin.GET("/metrics", h.Metrics)
	admin.POST("/accounts/:id/ban", h.BanAccount)
	admin.GET("/tasks", h.ListTasks)
	return r, db, manager
}

func adminHeader() map[string]string {
	return map[string]string{"X-Admin-Key": testAdminKey}
}

func TestAdminAuth(t *testing.T) {
	r, _, _ := newAdminRouter(t, testAdminKey)

	w := doJSON(r, http.MethodGet, "/admin/metrics", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = doJSON(r, http.MethodGet, "/admin/metrics", nil,
		map[string]string{"X-Admin-Key": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = doJSON(r, http.MethodGet, "/admin/metrics", nil, adminHeader())
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAdminAuth_DisabledWithoutKey(t *testing.T) {
	r, _, _ := newAdminRouter(t, "")

	w := doJSON(r, http.MethodGet, "/admin/metrics", nil, adminHeader())
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestAdminMetrics(t *testing.T) {
	r, db, _ := newAdminRouter(t, testAdminKey)
	seedAccount(t, db, "hunter_01", "Str0ng!pass")
	seedAccount(t, db, "hunter_02", "Str0ng!pass")

	w := doJSON(r, http.MethodGet, "/admin/metrics", nil, adminHeader())
	require.Equal(t, http.StatusOK, w.Code)

	body := decodeBody(t, w)
	assert.Equal(t, float64(2), body["accounts"])
	assert.Equal(t, float64(0), body["chat_online"])
}

func TestAdminBanAccount(t *testing.T) {
	r, db, _ := newAdminRouter(t, testAdminKey)
	acct := seedAccount(t, db, "hunter_01", "Str0ng!pass")

	w := doJSON(r, http.MethodPost, "/admin/accounts/9999/ban", nil, adminHeader())
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doJSON(r, http.MethodPost, "/admin/accounts/1/ban", nil, adminHeader())
	require.Equal(t, http.StatusOK, w.Code)

	require.NoError(t, db.First(acct, acct.ID).Error)
	assert.Equal(t, 0, acct.Status)
}
