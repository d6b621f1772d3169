package rest_test

import (
	"net/http"
	"testing"

	"github.com/arisefit/arise/server/api/rest"
	"github.com/arisefit/arise/server/testutil"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newProfileRouter(t *testing.T, accountID int64) (*gin.Engine, *gorm.DB) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	h := rest.NewProfileHandler(db)
	r := gin.New()
	r.GET("/api/profile", fakeAuth(accountID), h.Get)
	return r, db
}

func TestProfile_ReportsLevelProgress(t *testing.T) {
	r, db := newProfileRouter(t, 1)
	acct := seedAccount(t, db, "hunter_01", "Str0ng!pass")
	// 250 XP: 100 spent on level 2, 150 into the 200 needed for level 3.
	require.NoError(t, db.Model(acct).Update("xp", 250).Error)

	w := doJSON(r, http.MethodGet, "/api/profile", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	body := decodeBody(t, w)
	assert.Equal(t, "hunter_01", body["username"])
	assert.Equal(t, float64(250), body["xp"])
	assert.Equal(t, float64(2), body["level"])
	assert.Equal(t, float64(150), body["xp_into_level"])
	assert.Equal(t, float64(200), body["xp_to_next"])
	assert.Equal(t, 0.75, body["progress"])
}

func TestProfile_UnknownAccount(t *testing.T) {
	r, _ := newProfileRouter(t, 42)

	w := doJSON(r, http.MethodGet, "/api/profile", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
