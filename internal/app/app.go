// Package app wires the sync engine together: credentials, REST transport,
// session store, push connections, observe server and the retention sweep.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/joho/godotenv"

	"hubsync/internal/retention"
	"hubsync/pkg/banner"
	"hubsync/pkg/config"
	"hubsync/pkg/logger"
	"hubsync/pkg/observe"
	"hubsync/pkg/push"
	"hubsync/pkg/session"
	"hubsync/pkg/transport"
)

const defaultTimeout = 15 * time.Second

// App encapsulates the daemon components and lifecycle.
type App struct {
	cfg     *config.Config
	source  string
	version string

	creds   *transport.Credentials
	api     *transport.Client
	store   *session.Store
	manager *push.Manager
	observe *observe.Server

	retCancel context.CancelFunc
}

// New builds every component but starts nothing; call Run to start the
// schedulers and the observe server and block until shutdown.
func New(cfg *config.Config, source, version string) (*App, error) {
	_ = godotenv.Load(".env")

	if cfg.Backend.BaseURL == "" {
		return nil, fmt.Errorf("backend base URL is required (flag -backend or HUBSYNC_BACKEND_URL)")
	}

	timeout := defaultTimeout
	if cfg.Backend.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.Backend.TimeoutSeconds) * time.Second
	}

	creds := transport.NewCredentials(cfg.Backend.AccessToken, cfg.Backend.RefreshToken)
	api := transport.NewClient(cfg.Backend.BaseURL, creds, timeout)
	store := session.NewStore(api, cfg.PageSize())
	manager := push.NewManager(cfg.Backend.BaseURL, cfg.Backend.WSBaseURL, creds, store)
	store.SetConnector(manager)

	return &App{
		cfg:     cfg,
		source:  source,
		version: version,
		creds:   creds,
		api:     api,
		store:   store,
		manager: manager,
		observe: observe.NewServer(cfg, store, version),
	}, nil
}

// Store exposes the session store for embedding callers.
func (a *App) Store() *session.Store { return a.store }

// Run starts the retention sweep, opens the configured group sessions and
// serves the observe API until ctx is cancelled or the server fails.
func (a *App) Run(ctx context.Context) error {
	banner.Print(a.cfg, a.source, a.version)

	cancel, err := retention.Start(ctx, a.cfg, a.store)
	if err != nil {
		return err
	}
	a.retCancel = cancel

	for _, g := range a.cfg.Chat.Groups {
		go a.bootstrapGroup(ctx, g)
	}

	errCh := a.observe.Start()
	select {
	case <-ctx.Done():
		a.shutdown()
		return nil
	case err := <-errCh:
		a.shutdown()
		return err
	}
}

// bootstrapGroup opens the push channel and loads the newest history page
// for a configured group. Failures land in the session record; the push
// manager keeps retrying on its own.
func (a *App) bootstrapGroup(ctx context.Context, groupID string) {
	if _, err := a.store.FetchMessages(ctx, groupID, session.FetchOptions{}); err != nil {
		logger.Warn("bootstrap_fetch_failed", "group", groupID, "error", err)
	}
}

func (a *App) shutdown() {
	if a.retCancel != nil {
		a.retCancel()
	}
	a.manager.CloseAll()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.observe.Shutdown(ctx); err != nil {
		logger.Warn("observe_shutdown_failed", "error", err)
	}
	logger.Info("shutdown_complete")
}
