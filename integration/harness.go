package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	apirest "github.com/arisefit/arise/server/api/rest"
	apows "github.com/arisefit/arise/server/api/ws"
	"github.com/arisefit/arise/server/audit"
	"github.com/arisefit/arise/server/cache"
	"github.com/arisefit/arise/server/config"
	"github.com/arisefit/arise/server/game/activity"
	"github.com/arisefit/arise/server/game/chat"
	"github.com/arisefit/arise/server/game/notify"
	"github.com/arisefit/arise/server/game/progress"
	"github.com/arisefit/arise/server/game/quest"
	mw "github.com/arisefit/arise/server/middleware"
	"github.com/arisefit/arise/server/scheduler"
	"github.com/arisefit/arise/server/testutil"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
	"gorm.io/gorm"
)

// TestServer wraps a real HTTP server with all subsystems wired together.
type TestServer struct {
	DB       *gorm.DB
	Cache    cache.Cache
	PubSub   cache.PubSub
	Manager  *chat.Manager
	Gate     *notify.Gate
	Registry *activity.Registry
	Quests   *quest.Service
	Progress *progress.Service
	Server   *httptest.Server
	URL      string // http://127.0.0.1:<port>
	WSURL    string // ws://127.0.0.1:<port>/ws
	Sec      config.SecurityConfig

	relayCancel context.CancelFunc
}

// NewTestServer creates a fully wired server for integration testing.
// It mirrors the dependency wiring in main.go.
func NewTestServer(t *testing.T) *TestServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	// ---- Infrastructure ----
	db := testutil.SetupTestDB(t)
	c, pubsub := testutil.SetupTestCache(t)
	logger := zap.NewNop()

	sec := config.SecurityConfig{
		JWTSecret:      "integration-test-secret",
		JWTTTLH:        72 * time.Hour,
		RateLimitRPS:   1000,
		RateLimitBurst: 2000,
		AllowedOrigins: []string{}, // allow all origins
	}

	// ---- Services ----
	ledger := audit.New(db, logger)
	t.Cleanup(func() { ledger.Stop(context.Background()) })

	quests := quest.NewService(db, nil, 50, logger)
	prog := progress.NewService(db, 15, 5, 200, logger)
	gate := notify.NewGate(c, quests, time.Hour, logger)

	store := activity.NewCacheStore(c)
	factory := func(accountID int64) activity.Callbacks {
		return activity.Callbacks{
			OnComplete: func(s *activity.Session) {
				ctx := context.Background()
				switch s.Kind {
				case activity.KindQuest:
					if _, awarded, err := quests.Complete(ctx, accountID, s.TargetID, time.Now()); err == nil && awarded {
						prog.OnQuestCompleted(ctx, accountID)
					}
				case activity.KindWorkout:
					_, _, _ = prog.LogWorkout(ctx, accountID, progress.WorkoutInput{
						Name:     "Timed Workout",
						Duration: int(s.DurationMs / 60000),
					}, time.Now())
				}
			},
		}
	}
	// A short tick makes timed-session completion observable in tests.
	registry := activity.NewRegistry(store, 5*time.Millisecond, factory, logger)

	manager := chat.NewManager(logger)
	chatH := chat.NewHandler(db, c, pubsub, manager, 100, 500, logger)

	relayCtx, relayCancel := context.WithCancel(context.Background())
	go func() { _ = chatH.RunRelay(relayCtx) }()

	sched := scheduler.New(logger)
	t.Cleanup(sched.Stop)

	// ---- WS Router ----
	wsRouter := apows.NewRouter(logger)
	wsRouter.On("chat_send", chatH.HandleSend)

	// ---- Gin HTTP server ----
	r := gin.New()
	r.Use(mw.TraceID(), mw.Recovery(logger))
	r.Use(mw.RateLimit(rate.Limit(sec.RateLimitRPS), sec.RateLimitBurst))

	r.GET("/health", func(ctx *gin.Context) {
		ctx.JSON(200, gin.H{"status": "ok"})
	})

	authH := apirest.NewAuthHandler(db, c, sec, gate, ledger, logger)
	profileH := apirest.NewProfileHandler(db)
	trackerH := apirest.NewTrackerHandler(prog, ledger, logger)
	questH := apirest.NewQuestHandler(db, quests, prog, gate, ledger, 0.1, logger)
	timerH := apirest.NewTimerHandler(registry, logger)
	messageH := apirest.NewMessageHandler(chatH)
	adminH := apirest.NewAdminHandler(db, manager, sched, logger)

	api := r.Group("/api")
	{
		authG := api.Group("/auth")
		authG.POST("/register", authH.Register)
		authG.POST("/login", authH.Login)
		authG.POST("/logout", mw.Auth(sec, c), authH.Logout)
		authG.POST("/refresh", mw.Auth(sec, c), authH.Refresh)

		api.GET("/messages", messageH.Recent)

		authed := api.Group("")
		authed.Use(mw.Auth(sec, c))
		authed.GET("/profile", profileH.Get)

		authed.POST("/workouts", trackerH.LogWorkout)
		authed.GET("/workouts", trackerH.ListWorkouts)
		authed.POST("/meals", trackerH.LogMeal)
		authed.GET("/meals", trackerH.ListMeals)
		authed.GET("/achievements", trackerH.ListAchievements)

		authed.GET("/quests/today", questH.Today)
		authed.PUT("/quests/:id", questH.Update)
		authed.POST("/quests/:id/complete", questH.Complete)
		authed.GET("/quests/notify", questH.Notify)
		authed.POST("/quests/remind-later", questH.RemindLater)

		authed.POST("/timer/start", timerH.Start)
		authed.POST("/timer/cancel", timerH.Cancel)
		authed.POST("/timer/minimize", timerH.Minimize)
		authed.POST("/timer/restore", timerH.Restore)
		authed.GET("/timer", timerH.Status)
		authed.POST("/timer/startup-check", timerH.StartupCheck)
	}

	admin := r.Group("/admin", apirest.AdminAuth("integration-admin-key"))
	admin.GET("/metrics", adminH.Metrics)
	admin.POST("/accounts/:id/ban", adminH.BanAccount)
	admin.GET("/tasks", adminH.ListTasks)

	// ---- WebSocket ----
	wsH := apows.NewHandler(db, c, sec, manager, chatH, wsRouter, logger)
	r.GET("/ws", wsH.ServeWS)

	// ---- Start server ----
	server := httptest.NewServer(r)
	url := server.URL
	wsURL := "ws" + url[len("http"):] + "/ws"

	return &TestServer{
		DB:          db,
		Cache:       c,
		PubSub:      pubsub,
		Manager:     manager,
		Gate:        gate,
		Registry:    registry,
		Quests:      quests,
		Progress:    prog,
		Server:      server,
		URL:         url,
		WSURL:       wsURL,
		Sec:         sec,
		relayCancel: relayCancel,
	}
}

// Close shuts down the test server and background workers.
func (ts *TestServer) Close() {
	ts.relayCancel()
	ts.Manager.CloseAll()
	ts.Server.Close()
}

// --- HTTP helpers ---

// PostJSON sends a POST request with JSON body and optional Bearer token.
func (ts *TestServer) PostJSON(t *testing.T, path string, body interface{}, token string) *http.Response {
	t.Helper()
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		bodyReader = bytes.NewReader(data)
	}
	req, err := http.NewRequest("POST", ts.URL+path, bodyReader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

// Get sends a GET request with optional Bearer token.
func (ts *TestServer) Get(t *testing.T, path string, token string) *http.Response {
	t.Helper()
	req, err := http.NewRequest("GET", ts.URL+path, nil)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

// Put sends a PUT request with JSON body and optional Bearer token.
func (ts *TestServer) Put(t *testing.T, path string, body interface{}, token string) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	req, err := http.NewRequest("PUT", ts.URL+path, bytes.NewReader(data))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

// ReadJSON reads and decodes a JSON response body into the given target.
func ReadJSON(t *testing.T, resp *http.Response, target interface{}) {
	t.Helper()
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, target), "body: %s", string(data))
}

// --- Auth helpers ---

// Register creates an account through the API.
func (ts *TestServer) Register(t *testing.T, username, password string) int64 {
	t.Helper()
	resp := ts.PostJSON(t, "/api/auth/register", map[string]string{
		"username": username,
		"password": password,
	}, "")
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var result map[string]interface{}
	ReadJSON(t, resp, &result)
	return int64(result["id"].(float64))
}

// Login logs in and returns the token and account ID.
func (ts *TestServer) Login(t *testing.T, username, password string) (token string, accountID int64) {
	t.Helper()
	resp := ts.PostJSON(t, "/api/auth/login", map[string]string{
		"username": username,
		"password": password,
	}, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var result map[string]interface{}
	ReadJSON(t, resp, &result)
	token = result["token"].(string)
	accountID = int64(result["id"].(float64))
	return
}

// RegisterAndLogin registers a fresh account and logs it in.
func (ts *TestServer) RegisterAndLogin(t *testing.T, username string) (string, int64) {
	t.Helper()
	password := "Str0ng!pass"
	ts.Register(t, username, password)
	return ts.Login(t, username, password)
}

// --- WebSocket client ---

// WSClient wraps a gorilla/websocket connection for integration testing.
type WSClient struct {
	Conn   *websocket.Conn
	t      *testing.T
	readCh chan readResult
}

type readResult struct {
	data []byte
	err  error
}

// ConnectWS dials the test server's WS endpoint with the given JWT token.
func (ts *TestServer) ConnectWS(t *testing.T, token string) *WSClient {
	t.Helper()
	url := ts.WSURL + "?token=" + token
	dialer := websocket.Dialer{}
	conn, resp, err := dialer.Dial(url, nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	require.NoError(t, err, "WS dial failed")
	wc := &WSClient{Conn: conn, t: t, readCh: make(chan readResult, 256)}
	go wc.readLoop()
	return wc
}

func (wc *WSClient) readLoop() {
	for {
		_, data, err := wc.Conn.ReadMessage()
		wc.readCh <- readResult{data, err}
		if err != nil {
			return
		}
	}
}

// Send writes a JSON message packet to the WebSocket.
func (wc *WSClient) Send(msgType string, payload interface{}) {
	wc.t.Helper()
	payloadJSON, err := json.Marshal(payload)
	require.NoError(wc.t, err)
	pkt := map[string]interface{}{
		"type":    msgType,
		"payload": json.RawMessage(payloadJSON),
	}
	data, err := json.Marshal(pkt)
	require.NoError(wc.t, err)
	require.NoError(wc.t, wc.Conn.WriteMessage(websocket.TextMessage, data))
}

// RecvAny reads one message from the WebSocket with a timeout.
func (wc *WSClient) RecvAny(timeout time.Duration) (map[string]interface{}, error) {
	select {
	case res := <-wc.readCh:
		if res.err != nil {
			return nil, res.err
		}
		var pkt map[string]interface{}
		if err := json.Unmarshal(res.data, &pkt); err != nil {
			return nil, err
		}
		return pkt, nil
	case <-time.After(timeout):
		return nil, &timeoutError{}
	}
}

type timeoutError struct{}

func (e *timeoutError) Error() string   { return "read timeout" }
func (e *timeoutError) Timeout() bool   { return true }
func (e *timeoutError) Temporary() bool { return true }

// RecvType reads messages until one with the given type is found (within timeout).
func (wc *WSClient) RecvType(msgType string, timeout time.Duration) map[string]interface{} {
	wc.t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			break
		}
		pkt, err := wc.RecvAny(remaining)
		if err != nil {
			wc.t.Fatalf("WS recv failed while waiting for %q: %v", msgType, err)
		}
		if pkt["type"] == msgType {
			return pkt
		}
	}
	wc.t.Fatalf("timed out waiting for message type %q", msgType)
	return nil
}

// Close closes the WebSocket connection.
func (wc *WSClient) Close() {
	_ = wc.Conn.Close()
}

// PayloadMap extracts the payload from a received WS packet as a map.
func PayloadMap(t *testing.T, pkt map[string]interface{}) map[string]interface{} {
	t.Helper()
	p := pkt["payload"]
	if p == nil {
		return map[string]interface{}{}
	}
	switch v := p.(type) {
	case map[string]interface{}:
		return v
	default:
		data, err := json.Marshal(v)
		require.NoError(t, err)
		var m map[string]interface{}
		require.NoError(t, json.Unmarshal(data, &m))
		return m
	}
}

// UniqueID returns a short unique string suitable for usernames.
var testCounter uint64

func UniqueID(prefix string) string {
	n := atomic.AddUint64(&testCounter, 1)
	return fmt.Sprintf("%s_%d_%d", prefix, time.Now().UnixNano()%100000, n)
}
