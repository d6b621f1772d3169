package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	apirest "github.com/arisefit/arise/server/api/rest"
	"github.com/arisefit/arise/server/api/sse"
	apows "github.com/arisefit/arise/server/api/ws"
	"github.com/arisefit/arise/server/audit"
	"github.com/arisefit/arise/server/cache"
	"github.com/arisefit/arise/server/config"
	dbadapter "github.com/arisefit/arise/server/db"
	"github.com/arisefit/arise/server/game/activity"
	"github.com/arisefit/arise/server/game/chat"
	"github.com/arisefit/arise/server/game/notify"
	"github.com/arisefit/arise/server/game/progress"
	"github.com/arisefit/arise/server/game/quest"
	mw "github.com/arisefit/arise/server/middleware"
	"github.com/arisefit/arise/server/model"
	"github.com/arisefit/arise/server/scheduler"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

func main() {
	cfgPath := "config/config.yaml"
	if len(os.Args) > 1 {
		cfgPath = os.Args[1]
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	// ---- Logger ----
	var logger *zap.Logger
	var logErr error
	if cfg.Server.Debug {
		logger, logErr = zap.NewDevelopment()
	} else {
		logger, logErr = zap.NewProduction()
	}
	if logErr != nil {
		log.Fatalf("logger: %v", logErr)
	}
	defer logger.Sync()

	// Warn loudly if admin endpoints will be disabled.
	if cfg.Server.AdminKey == "" {
		logger.Warn("server.admin_key is not set; admin endpoints are disabled")
	}

	// ---- Database ----
	db, err := dbadapter.Open(cfg.Database)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	if err := model.AutoMigrate(db); err != nil {
		log.Fatalf("db migrate: %v", err)
	}
	logger.Info("DB initialized")

	// ---- XP ledger ----
	ledger := audit.New(db, logger)
	defer ledger.Stop(context.Background())

	// ---- Cache / PubSub ----
	cacheConfig := cache.CacheConfig{
		RedisAddr:       cfg.Cache.RedisAddr,
		RedisPassword:   cfg.Cache.RedisPassword,
		RedisDB:         cfg.Cache.RedisDB,
		LocalGCInterval: cfg.Cache.LocalGCInterval,
		LocalPubSubBuf:  cfg.Cache.LocalPubSubBuf,
	}
	c, err := cache.NewCache(cacheConfig)
	if err != nil {
		log.Fatalf("cache: %v", err)
	}
	pubsub, err := cache.NewPubSub(cacheConfig)
	if err != nil {
		log.Fatalf("pubsub: %v", err)
	}
	logger.Info("Cache initialized")

	// ---- Scheduler ----
	sched := scheduler.New(logger)
	defer sched.Stop()

	// ---- Game services ----
	quests := quest.NewService(db, nil, int64(cfg.Game.QuestXP), logger)
	prog := progress.NewService(db, int64(cfg.Game.WorkoutBaseXP), int64(cfg.Game.MealXP), cfg.Game.HistoryLimit, logger)
	gate := notify.NewGate(c, quests, time.Duration(cfg.Game.SnoozeMinutes)*time.Minute, logger)

	// Completing a timed session feeds back into quest completion or
	// workout logging, depending on what the countdown was for.
	store := activity.NewCacheStore(c)
	factory := func(accountID int64) activity.Callbacks {
		return activity.Callbacks{
			OnComplete: func(s *activity.Session) {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				switch s.Kind {
				case activity.KindQuest:
					if _, awarded, err := quests.Complete(ctx, accountID, s.TargetID, time.Now()); err != nil {
						logger.Error("timed quest completion failed",
							zap.Int64("account_id", accountID), zap.Error(err))
					} else if awarded {
						prog.OnQuestCompleted(ctx, accountID)
						ledger.Record(audit.Entry{
							AccountID: accountID,
							Action:    "quest_complete_timed",
							XPDelta:   quests.QuestXP(),
							Detail:    map[string]interface{}{"quest_id": s.TargetID, "session_id": s.ID},
						})
					}
				case activity.KindWorkout:
					_, xpGain, err := prog.LogWorkout(ctx, accountID, progress.WorkoutInput{
						Name:     "Timed Workout",
						Duration: int(s.DurationMs / 60000),
					}, time.Now())
					if err != nil {
						logger.Error("timed workout logging failed",
							zap.Int64("account_id", accountID), zap.Error(err))
						return
					}
					ledger.Record(audit.Entry{
						AccountID: accountID,
						Action:    "log_workout_timed",
						XPDelta:   xpGain,
						Detail:    map[string]interface{}{"session_id": s.ID},
					})
				}
			},
		}
	}
	registry := activity.NewRegistry(store, time.Second, factory, logger)

	// ---- Chat ----
	manager := chat.NewManager(logger)
	defer manager.CloseAll()
	chatH := chat.NewHandler(db, c, pubsub, manager, cfg.Game.ChatHistory, cfg.Game.ChatMaxMsgLen, logger)

	relayCtx, relayCancel := context.WithCancel(context.Background())
	defer relayCancel()
	go func() {
		if err := chatH.RunRelay(relayCtx); err != nil && relayCtx.Err() == nil {
			logger.Error("chat relay stopped", zap.Error(err))
		}
	}()

	// ---- Periodic scheduler tasks ----
	sched.AddTicker("streak_sweep", time.Hour, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if _, err := prog.SweepStreaks(ctx, time.Now()); err != nil {
			logger.Error("streak sweep failed", zap.Error(err))
		}
	})

	// ---- WS Router ----
	wsRouter := apows.NewRouter(logger)
	wsRouter.On("chat_send", chatH.HandleSend)

	// ---- Gin HTTP Server ----
	if !cfg.Server.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(mw.TraceID(), mw.Logger(logger), mw.Recovery(logger))
	r.Use(mw.RateLimit(rate.Limit(cfg.Security.RateLimitRPS), cfg.Security.RateLimitBurst))

	// Health check
	r.GET("/health", func(ctx *gin.Context) {
		ctx.JSON(200, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// ---- REST API routes ----
	authH := apirest.NewAuthHandler(db, c, cfg.Security, gate, ledger, logger)
	profileH := apirest.NewProfileHandler(db)
	trackerH := apirest.NewTrackerHandler(prog, ledger, logger)
	questH := apirest.NewQuestHandler(db, quests, prog, gate, ledger, cfg.Game.ScalingStep, logger)
	timerH := apirest.NewTimerHandler(registry, logger)
	messageH := apirest.NewMessageHandler(chatH)
	adminH := apirest.NewAdminHandler(db, manager, sched, logger)
	sseH := sse.NewHandler(pubsub, c, cfg.Security, logger)

	api := r.Group("/api")
	{
		authG := api.Group("/auth")
		authG.POST("/register", authH.Register)
		authG.POST("/login", authH.Login)
		authG.POST("/logout", mw.Auth(cfg.Security, c), authH.Logout)
		authG.POST("/refresh", mw.Auth(cfg.Security, c), authH.Refresh)

		// Public chat history, no auth required.
		api.GET("/messages", messageH.Recent)

		authed := api.Group("")
		authed.Use(mw.Auth(cfg.Security, c))
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

		adminG := api.Group("/admin")
		adminG.Use(apirest.AdminAuth(cfg.Server.AdminKey))
		adminG.GET("/metrics", adminH.Metrics)
		adminG.POST("/accounts/:id/ban", adminH.BanAccount)
		adminG.GET("/scheduler", adminH.ListTasks)
		adminG.POST("/announce", func(ctx *gin.Context) {
			var body struct {
				Message string `json:"message" binding:"required"`
			}
			if err := ctx.ShouldBindJSON(&body); err != nil {
				ctx.JSON(400, gin.H{"error": "bad request"})
				return
			}
			if err := sseH.Announce(ctx.Request.Context(), body.Message); err != nil {
				ctx.JSON(500, gin.H{"error": "publish failed"})
				return
			}
			ctx.JSON(200, gin.H{"status": "sent"})
		})
	}

	// ---- WebSocket ----
	wsH := apows.NewHandler(db, c, cfg.Security, manager, chatH, wsRouter, logger)
	r.GET("/ws", wsH.ServeWS)

	// ---- SSE ----
	r.GET("/sse", sseH.ServeSSE)

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	logger.Info("Server listening", zap.String("addr", addr))
	if err := r.Run(addr); err != nil {
		log.Fatalf("server: %v", err)
	}
}
