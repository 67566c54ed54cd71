package main

import (
	"bufio"
	"context"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"callbridge/internal/bridge"
	"callbridge/internal/cdr"
	"callbridge/internal/config"
	"callbridge/internal/routing"
	"callbridge/internal/telephony"
	"callbridge/pkg/logger"

	"github.com/joho/godotenv"
)

// The dialer runs one bridge from the console: dial the configured
// customer, play the greeting, bridge an agent in over a recorded
// conference, and tear down on q + enter or when either side hangs up.
func main() {
	_ = godotenv.Load()

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}
	if err := cfg.ValidateDialer(); err != nil {
		slog.Error("config invalid", "err", err)
		os.Exit(1)
	}

	log := logger.New(cfg.App.Env, "dialer")
	slog.SetDefault(log)

	agents, err := routing.ParsePool(cfg.Bridge.AgentPool)
	if err != nil {
		log.Error("agent pool invalid", "err", err)
		os.Exit(1)
	}

	ctl, err := telephony.Connect(rootCtx, cfg.SwitchAddr(), cfg.Switch.Password, log)
	if err != nil {
		log.Error("switch connect failed", "addr", cfg.SwitchAddr(), "err", err)
		os.Exit(1)
	}
	defer ctl.Close()

	cdrSvc := cdr.NewService(cdr.NewMemoryRepo())

	orch := &bridge.Orchestrator{
		Registry:          bridge.NewRegistry(),
		Selector:          routing.NewSelector(agents, nil, nil),
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
	go orch.Observe(rootCtx, ctl)

	go func() {
		sc := bufio.NewScanner(os.Stdin)
		for sc.Scan() {
			if strings.TrimSpace(sc.Text()) == "q" {
				log.Info("quit requested, hanging up")
				stop()
				return
			}
		}
	}()

	s := orch.NewOutboundSession(ctl)
	done := make(chan error, 1)
	go func() { done <- orch.Run(rootCtx, s, cfg.Bridge.CustomerURI) }()

	log.Info("bridge running",
		"session_id", s.ID(),
		"customer_uri", cfg.Bridge.CustomerURI,
		"hint", "press q + enter to hang up",
	)

	select {
	case err := <-done:
		if err != nil {
			log.Error("bridge failed", "err", err)
			os.Exit(1)
		}
		log.Info("bridge finished")
	case <-rootCtx.Done():
		// The running scenario observes the cancellation and tears the
		// legs down itself; wait for that, then sweep anything left.
		select {
		case <-done:
		case <-time.After(10 * time.Second):
			log.Warn("teardown timed out")
		}
		if n := orch.Registry.HangupAll(context.Background()); n > 0 {
			log.Info("hangup attempted for remaining legs", "count", n)
		}
	}

	if sum, err := cdrSvc.Summarize(context.Background()); err == nil {
		log.Info("call summary",
			"legs", sum.TotalLegs,
			"answered", sum.Answered,
			"bill_seconds", sum.TotalBillSeconds,
			"recorded", sum.RecordedLegs,
		)
	}
}
