package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func traceRouter() *gin.Engine {
	r := gin.New()
	r.Use(TraceID())
	r.GET("/api/profile", func(c *gin.Context) {
		c.String(http.StatusOK, GetTraceID(c))
	})
	return r
}

func TestTraceID_AssignedWhenAbsent(t *testing.T) {
	r := traceRouter()
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/profile", nil))
	require.Equal(t, http.StatusOK, w.Code)

	id := w.Body.String()
	assert.Len(t, id, 36) // uuid
	assert.Equal(t, id, w.Header().Get(TraceIDHeader))
}

func TestTraceID_ClientSuppliedIsKept(t *testing.T) {
	r := traceRouter()
	req := httptest.NewRequest(http.MethodGet, "/api/profile", nil)
	req.Header.Set(TraceIDHeader, "support-ticket-4711")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, "support-ticket-4711", w.Body.String())
	assert.Equal(t, "support-ticket-4711", w.Header().Get(TraceIDHeader))
}

func TestTraceID_FreshPerRequest(t *testing.T) {
	r := traceRouter()
	w1 := httptest.NewRecorder()
	r.ServeHTTP(w1, httptest.NewRequest(http.MethodGet, "/api/profile", nil))
	w2 := httptest.NewRecorder()
	r.ServeHTTP(w2, httptest.NewRequest(http.MethodGet, "/api/profile", nil))
	assert.NotEqual(t, w1.Body.String(), w2.Body.String())
}

func TestGetTraceID_OutsideMiddleware(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	assert.Equal(t, "", GetTraceID(c))
}
