package rest_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	mw "github.com/arisefit/arise/server/middleware"
	"github.com/arisefit/arise/server/model"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func testLogger() *zap.Logger {
	l, _ := zap.NewDevelopment()
	return l
}

// doJSON performs a request with an optional JSON body and returns the
// recorded response.
func doJSON(r http.Handler, method, path string, body interface{}, headers ...map[string]string) *httptest.ResponseRecorder {
	var buf *bytes.Buffer
	if body != nil {
		data, _ := json.Marshal(body)
		buf = bytes.NewBuffer(data)
	} else {
		buf = bytes.NewBuffer(nil)
	}
	req := httptest.NewRequest(method, path, buf)
	req.Header.Set("Content-Type", "application/json")
	for _, h := range headers {
		for k, v := range h {
			req.Header.Set(k, v)
		}
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

// fakeAuth injects an authenticated account ID without a real token.
func fakeAuth(accountID int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(mw.AccountIDKey, accountID)
		c.Next()
	}
}

// seedAccount creates an account with a known password.
func seedAccount(t *testing.T, db *gorm.DB, username, password string) *model.Account {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	acct := &model.Account{
		Username:     username,
		PasswordHash: string(hash),
		Status:       1,
	}
	require.NoError(t, db.Create(acct).Error)
	return acct
}
