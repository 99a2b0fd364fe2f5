package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/arenahq/bot-arena/internal/accountsvc"
	"github.com/arenahq/bot-arena/internal/analytics"
	"github.com/arenahq/bot-arena/internal/audit"
	"github.com/arenahq/bot-arena/internal/auth"
	"github.com/arenahq/bot-arena/internal/broadcast"
	"github.com/arenahq/bot-arena/internal/config"
	"github.com/arenahq/bot-arena/internal/database"
	"github.com/arenahq/bot-arena/internal/decisionloop"
	"github.com/arenahq/bot-arena/internal/httpapi/handlers"
	"github.com/arenahq/bot-arena/internal/httpapi/routes"
	"github.com/arenahq/bot-arena/internal/leaderboard"
	"github.com/arenahq/bot-arena/internal/llm"
	"github.com/arenahq/bot-arena/internal/market"
	"github.com/arenahq/bot-arena/internal/middleware"
	"github.com/arenahq/bot-arena/internal/observability"
	"github.com/arenahq/bot-arena/internal/scheduler"
	"github.com/arenahq/bot-arena/internal/summarizer"
	"github.com/arenahq/bot-arena/internal/tokentracker"
	"github.com/arenahq/bot-arena/internal/vault"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("config load failed: ", err)
	}

	db, err := database.Open(cfg)
	if err != nil {
		log.Fatal("db connection failed: ", err)
	}

	settings, err := config.NewSettings(db)
	if err != nil {
		log.Fatal("settings load failed: ", err)
	}

	v, err := vault.New(cfg.VaultMasterKey)
	if err != nil {
		log.Fatal("vault init failed: ", err)
	}

	shutdownTracing, err := observability.SetupTracing(context.Background())
	if err != nil {
		log.Fatal("tracing init failed: ", err)
	}

	// Repositories — the Persistence Store's full read/write surface,
	// shared by every service and handler constructed below.
	users := database.NewUserRepository(db)
	bots := database.NewBotRepository(db)
	providers := database.NewProviderRepository(db)
	wallets := database.NewWalletRepository(db)
	positions := database.NewPositionRepository(db)
	trades := database.NewTradeRepository(db)
	decisions := database.NewDecisionRepository(db)
	snapshots := database.NewSnapshotRepository(db)
	history := database.NewHistorySummaryRepository(db)
	tokenUsage := database.NewTokenUsageRepository(db)
	leaderboardRepo := database.NewLeaderboardRepository(db)
	auditRepo := database.NewAuditRepository(db)
	arenaState := database.NewArenaStateRepository(db)

	auditLog := audit.New(auditRepo)

	issuer := auth.NewIssuer(cfg.JWTSecret, cfg.JWTRefreshSecret)
	accounts := accountsvc.New(users, issuer)

	dispatch := llm.New(v)
	tracker := tokentracker.New(tokenUsage, providers)
	summarizerSvc := summarizer.New(decisions, history, dispatch, tracker, settings)
	loop := decisionloop.New(dispatch, tracker, decisions, trades, summarizerSvc, settings)

	hub := broadcast.NewHub(arenaState)
	if cfg.RedisAddr != "" {
		hub = hub.WithRedis(redis.NewClient(&redis.Options{Addr: cfg.RedisAddr}))
	}
	go hub.Run()

	marketSource := market.NewHTTPSource(cfg.MarketDataBaseURL, "")
	refresher := market.NewRefresher(marketSource, settings, hub)

	sched := scheduler.New(loop, bots, providers, users, positions, trades, snapshots, settings, v, wallets, refresher, hub, cfg.BinanceFuturesBaseURL)

	leaderboardSvc := leaderboard.New(bots, trades, snapshots, leaderboardRepo)
	analyticsSvc := analytics.New(bots, trades, snapshots)

	// Background tasks: market refresh and hourly leaderboard aggregation
	// tick independently of any bot's own per-turn cadence (§4.8.2, §4.10).
	ctx, cancel := context.WithCancel(context.Background())
	bgDone := make(chan struct{})
	go func() { refresher.Run(bgDone) }()
	go runLeaderboardTicker(ctx, leaderboardSvc, time.Hour)
	go hub.RunRedisSubscriber(ctx)

	if err := sched.Start(ctx); err != nil {
		log.Fatal("scheduler start failed: ", err)
	}

	h := &routes.Handlers{
		Auth:        handlers.NewAuthHandler(accounts, auditLog),
		Bots:        handlers.NewBotsHandler(bots, providers, positions, trades, decisions, snapshots, history, settings, sched, auditLog),
		Providers:   handlers.NewProvidersHandler(providers, bots, users, v, dispatch, auditLog),
		Wallets:     handlers.NewWalletsHandler(wallets, bots, users, v, auditLog),
		Settings:    handlers.NewSettingsHandler(settings, auditLog),
		Leaderboard: handlers.NewLeaderboardHandler(leaderboardRepo, leaderboardSvc, auditLog),
		Analytics:   handlers.NewAnalyticsHandler(analyticsSvc),
		Admin:       handlers.NewAdminHandler(users, bots, auditRepo, auditLog, sched),
		WS:          handlers.NewWSHandler(hub),
	}

	if cfg.GinMode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(cors.Default())
	engine.Use(middleware.Tracing())
	routes.Register(engine, issuer, h)

	srv := &http.Server{
		Addr:           ":" + cfg.Port,
		Handler:        engine,
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   10 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("shutting down server...")

	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()
	if err := srv.Shutdown(ctxShutdown); err != nil {
		log.Fatal("server forced to shutdown: ", err)
	}
	close(bgDone)
	cancel()
	sched.Shutdown()
	if err := shutdownTracing(ctxShutdown); err != nil {
		log.Printf("tracing shutdown: %v", err)
	}
	log.Println("server exiting")
}

// runLeaderboardTicker recomputes every period on a fixed cadence until ctx
// is cancelled, plus once immediately at startup so rankings aren't empty
// until the first hour elapses (§4.10).
func runLeaderboardTicker(ctx context.Context, svc *leaderboard.Service, interval time.Duration) {
	svc.RecomputeAll(time.Now())
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			svc.RecomputeAll(now)
		}
	}
}
