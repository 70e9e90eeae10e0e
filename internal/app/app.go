package app

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"fabricmcp/internal/cache"
	"fabricmcp/internal/config"
	"fabricmcp/internal/proxy"
	"fabricmcp/internal/query"
	"fabricmcp/internal/sliceop"
	"fabricmcp/internal/token"
	"fabricmcp/internal/upstream"
	"fabricmcp/pkg/logging"
)

// Application wires the proxy together: config, logging, upstream client,
// credential manager, resource cache, query dispatcher, slice writer, and
// the MCP shell.
type Application struct {
	cfg    config.Config
	cache  *cache.ResourceCache
	server *proxy.Server
}

// New loads configuration, initializes logging, and assembles the proxy.
func New(configPath string, debug bool) (*Application, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	level := logging.ParseLevel(cfg.Log.Level)
	if debug {
		level = logging.LevelDebug
	}
	logging.Init(level, cfg.Log.Format, os.Stderr)

	client := upstream.NewHTTPClient(upstream.HTTPClientConfig{
		OrchestratorHost: cfg.Upstream.OrchestratorHost,
		CoreAPIHost:      cfg.Upstream.CoreAPIHost,
		CredmgrHost:      cfg.Upstream.CredmgrHost,
		Timeout:          time.Duration(cfg.Upstream.CallTimeoutSecs) * time.Second,
	})

	tokens := token.NewManager(client, time.Duration(cfg.Token.ExpiryMarginSecs)*time.Second)

	resourceCache := cache.New(client,
		time.Duration(cfg.Cache.RefreshIntervalSecs)*time.Second,
		cfg.Cache.MaxFetch)

	dispatcher := query.NewDispatcher(resourceCache, client, query.Limits{
		DefaultLimit: cfg.Query.DefaultLimit,
		MaxUnsorted:  cfg.Query.MaxUnsorted,
		MaxSorted:    cfg.Query.MaxSorted,
	}, cfg.Cache.MaxFetch)

	writer := sliceop.NewWriter(sliceop.NewMachine(), client, tokens)

	server := proxy.NewServer(cfg.Server, proxy.Deps{
		Query:     dispatcher,
		Directory: client,
		Writer:    writer,
		Tokens:    tokens,
		TokenSink: resourceCache,
	})

	return &Application{
		cfg:    cfg,
		cache:  resourceCache,
		server: server,
	}, nil
}

// Run starts the background cache and the MCP server, then blocks until the
// context is cancelled or a termination signal arrives.
func (a *Application) Run(ctx context.Context, version string) error {
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	a.cache.Start(ctx)
	defer a.cache.Stop()

	if err := a.server.Start(ctx, version); err != nil {
		return err
	}
	logging.Info("App", "proxy is up (transport %s)", a.cfg.Server.Transport)

	<-ctx.Done()
	logging.Info("App", "shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	return a.server.Stop(shutdownCtx)
}
