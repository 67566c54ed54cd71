package main

import (
	"bufio"
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"callbridge/internal/audit"
	"callbridge/internal/auth"
	"callbridge/internal/bridge"
	"callbridge/internal/cdr"
	"callbridge/internal/config"
	"callbridge/internal/routing"
	"callbridge/internal/telephony"
	"callbridge/pkg/logger"
	"callbridge/pkg/utils"

	"github.com/gin-gonic/gin"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	// Root context that cancels on shutdown
	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}
	if err := cfg.ValidateServer(); err != nil {
		slog.Error("config invalid", "err", err)
		os.Exit(1)
	}

	log := logger.New(cfg.App.Env, "server")
	slog.SetDefault(log)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	authManager, err := auth.NewManager(cfg.Auth)
	if err != nil {
		log.Error("auth init failed", "err", err)
		os.Exit(1)
	}

	agents, err := routing.ParsePool(cfg.Bridge.AgentPool)
	if err != nil {
		log.Error("agent pool invalid", "err", err)
		os.Exit(1)
	}

	// Call records go to Postgres when configured, memory otherwise.
	var db *sql.DB
	var cdrRepo cdr.Repository
	if cfg.StorageEnabled() {
		db, err = utils.OpenPostgres(rootCtx, "pgx", cfg.PostgresDSN(), utils.PostgresPoolConfig{})
		if err != nil {
			log.Error("postgres init failed", "err", err)
			os.Exit(1)
		}
		defer db.Close()
		cdrRepo = &cdr.PostgresRepo{DB: db}
	} else {
		log.Warn("DB_HOST not set, call records held in memory")
		cdrRepo = cdr.NewMemoryRepo()
	}

	// Per-agent line caps need redis; without it every agent is assumed free.
	var guard routing.LineGuard = routing.NoopGuard{}
	if cfg.LineCapsEnabled() {
		rdb, err := utils.OpenRedis(rootCtx, utils.RedisConfig{
			Addr:     cfg.RedisAddr(),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			log.Error("redis init failed", "err", err)
			os.Exit(1)
		}
		defer rdb.Close()
		guard = &routing.RedisGuard{RDB: rdb, Limit: cfg.Bridge.AgentLineLimit, TTL: cfg.Bridge.LineSlotTTL}
	} else {
		log.Warn("REDIS_HOST not set, agent line caps disabled")
	}

	auditRepo := audit.NewMemoryRepo()
	auditSvc := audit.NewService(auditRepo)

	pins := routing.NewMemoryPinStore()
	selector := routing.NewSelector(agents, guard, nil)
	selector.Pins = routing.NewPinEngine(pins, &routing.AuditAdapter{Audit: auditSvc})

	cdrSvc := cdr.NewService(cdrRepo)

	orch := &bridge.Orchestrator{
		Registry:          bridge.NewRegistry(),
		Selector:          selector,
		CDRs:              cdrSvc,
		Log:               log,
		Greeting:          cfg.Media.GreetingSound,
		HoldMusic:         cfg.Media.HoldMusic,
		ConferenceProfile: cfg.Media.ConferenceProfile,
		RecordingDir:      cfg.Media.RecordingDir,
		CallerIDNumber:    cfg.Bridge.CallerIDNumber,
		CallerIDName:      cfg.Bridge.CallerIDName,
		OriginateTimeout:  cfg.Switch.OriginateTimeout,
	}

	// Control connection for API-started calls.
	ctl, err := telephony.Connect(rootCtx, cfg.SwitchAddr(), cfg.Switch.Password, log)
	if err != nil {
		log.Error("switch connect failed", "addr", cfg.SwitchAddr(), "err", err)
		os.Exit(1)
	}
	defer ctl.Close()
	go orch.Observe(rootCtx, ctl)

	// Outbound-socket listener: the switch connects here for calls routed
	// to the bridge from the dialplan.
	go func() {
		err := telephony.ListenAndServe(cfg.Bridge.ListenAddr, log, func(ctx context.Context, c telephony.Controller, in telephony.InboundCall) {
			go orch.Observe(ctx, c)
			_ = orch.RunInbound(ctx, c, in)
		})
		if err != nil {
			log.Error("event socket listener failed", "err", err)
			stop()
		}
	}()

	// Gin router
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.Middleware(log))

	h := httpHandlers(cfg, authManager, orch, cdrSvc, auditSvc, auditRepo, pins, ctl, db)
	registerRoutes(r, h, authManager)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("api listening", "addr", srv.Addr, "env", cfg.App.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", "err", err)
			stop()
		}
	}()

	go watchStdin(stop, log)

	<-rootCtx.Done()
	log.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", "err", err)
	}

	// Leave no channel behind on the switch.
	if n := orch.Registry.HangupAll(shutdownCtx); n > 0 {
		log.Info("hangup attempted for active legs", "count", n)
	}

	_ = logger.ShutdownFlush(shutdownCtx, 2*time.Second)
}

// watchStdin makes console runs stoppable with q + enter, matching the
// dialer. Under a service manager stdin is closed and this returns at
// once.
func watchStdin(stop context.CancelFunc, log *slog.Logger) {
	sc := bufio.NewScanner(os.Stdin)
	for sc.Scan() {
		if strings.TrimSpace(sc.Text()) == "q" {
			log.Info("quit requested from console")
			stop()
			return
		}
	}
}
