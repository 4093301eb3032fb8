// Package app wires the server components together and owns their
// lifecycle.
package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"chatrelay/internal/sweep"
	"chatrelay/pkg/auth"
	"chatrelay/pkg/banner"
	"chatrelay/pkg/config"
	"chatrelay/pkg/delivery"
	"chatrelay/pkg/gateway"
	"chatrelay/pkg/logger"
	"chatrelay/pkg/notify"
	"chatrelay/pkg/presence"
	"chatrelay/pkg/registry"
	"chatrelay/pkg/state"
	"chatrelay/pkg/store"
	"chatrelay/pkg/tasks"
	"chatrelay/pkg/unread"
	"chatrelay/pkg/validation"
)

// App encapsulates the server components and lifecycle.
type App struct {
	eff       config.EffectiveConfigResult
	version   string
	commit    string
	buildDate string

	reg        registry.Registry
	runner     *tasks.Runner
	notifier   *presence.Notifier
	reconciler *unread.Reconciler
	pipeline   *delivery.Pipeline
	gw         *gateway.Gateway
	authn      *auth.Authenticator

	srv *http.Server
}

// New initializes resources that do not require a running context (DB,
// state dirs, validation rules, component graph). It does not start the
// HTTP server or the sweeper; call Run to start those and block until
// shutdown.
func New(eff config.EffectiveConfigResult, version, commit, buildDate string) (*App, error) {
	// validate effective config early and fail fast
	if err := validateConfig(eff); err != nil {
		return nil, err
	}

	if err := state.EnsureStateDirs(eff.DBPath); err != nil {
		return nil, fmt.Errorf("failed to prepare state dirs: %w", err)
	}

	// runtime secrets
	secrets := map[string]struct{}{}
	for _, s := range eff.Config.Security.SigningSecrets {
		secrets[s] = struct{}{}
	}
	config.SetRuntime(&config.RuntimeConfig{SigningSecrets: secrets})

	validation.SetRules(validation.Rules{MaxBodyLen: eff.Config.Gateway.MaxBodyLength})

	if err := store.Open(eff.DBPath); err != nil {
		return nil, fmt.Errorf("failed to open pebble at %s: %w", eff.DBPath, err)
	}

	a := &App{eff: eff, version: version, commit: commit, buildDate: buildDate}
	a.buildComponents()
	return a, nil
}

// buildComponents assembles the component graph: registry, presence,
// unread reconciler, delivery pipeline, and the socket gateway on top.
func (a *App) buildComponents() {
	sec := a.eff.Config.Security

	var fallback auth.Verifier
	if sec.VerifierURL != "" {
		fallback = auth.NewHTTPVerifier(sec.VerifierURL, sec.VerifierTimeout.Duration())
	}
	a.authn = auth.NewAuthenticator(config.GetSigningSecrets(), fallback)

	a.reg = registry.NewMemory()
	a.runner = tasks.NewRunner(a.eff.Config.Tasks.Workers, a.eff.Config.Tasks.Capacity)

	notifications := notify.NewService(a.runner)
	a.notifier = presence.NewNotifier(a.reg)
	a.reconciler = unread.NewReconciler(a.reg, notifications)
	a.pipeline = delivery.NewPipeline(a.reg, a.reconciler, notifications, a.runner)

	gw := a.eff.Config.Gateway
	a.gw = gateway.New(a.reg, a.notifier, a.pipeline, a.reconciler, a.authn,
		auth.NewLimiterPool(sec.RateLimit.RPS, sec.RateLimit.Burst),
		gateway.Options{
			HeartbeatInterval: gw.HeartbeatInterval.Duration(),
			PongGrace:         gw.PongGrace.Duration(),
			ReadLimit:         gw.ReadLimit,
			SendBuffer:        gw.SendBuffer,
			AllowedOrigins:    sec.CORS.AllowedOrigins,
		})
}

// Run starts the sweeper and the HTTP server, and blocks until ctx is
// canceled or a fatal server error occurs.
func (a *App) Run(ctx context.Context) error {
	sweepCancel, err := sweep.Start(ctx, a.eff.Config.Sweep, a.reg)
	if err != nil {
		return err
	}
	defer sweepCancel()

	a.printBanner()

	errCh := a.startHTTP()

	select {
	case <-ctx.Done():
		a.shutdown()
		return nil
	case err := <-errCh:
		return err
	}
}

func (a *App) shutdown() {
	if a.srv != nil {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = a.srv.Shutdown(sctx)
	}
	a.runner.Close()
	if err := store.Close(); err != nil {
		logger.Error("store_close_failed", "error", err)
	}
}

func (a *App) printBanner() {
	verStr := a.version
	if a.commit != "none" {
		verStr += " (" + a.commit + ")"
	}
	if a.buildDate != "unknown" {
		verStr += " @ " + a.buildDate
	}
	banner.PrintWithEff(a.eff, verStr)
}
