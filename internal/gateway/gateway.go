// ABOUTME: Gateway orchestrator that wires the credential store, SRP engine, handshake registry and tokens
// ABOUTME: Runs the HTTP API (and optional gRPC health listener) until the context is canceled

package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"tailscale.com/tsnet"

	"github.com/2389/petition-gateway/internal/account"
	"github.com/2389/petition-gateway/internal/auth"
	"github.com/2389/petition-gateway/internal/config"
	"github.com/2389/petition-gateway/internal/handshake"
	"github.com/2389/petition-gateway/internal/srp"
	"github.com/2389/petition-gateway/internal/store"
)

// Gateway orchestrates the petition-gateway server components.
type Gateway struct {
	config     *config.Config
	store      store.Store
	engine     *srp.Engine
	handshakes *handshake.Registry
	tokens     *auth.TokenService
	accounts   *account.Service
	logger     *slog.Logger

	handler    http.Handler
	httpServer *http.Server

	// grpcServer is nil unless server.grpc_addr is set
	grpcServer   *grpc.Server
	healthServer *health.Server

	tsnetServer *tsnet.Server

	shutdownOnce sync.Once
	shutdownErr  error
}

// OpenStore opens the credential store selected by cfg.Database.
// PETITION_DB_PATH overrides the SQLite path.
func OpenStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	var (
		s   store.Store
		err error
	)
	switch cfg.Database.Driver {
	case config.DriverPostgres:
		s, err = store.NewPostgresStore(ctx, cfg.Database.DSN)
	case config.DriverSQLite, config.DriverSQLite3:
		dbPath := cfg.Database.Path
		if envPath := os.Getenv("PETITION_DB_PATH"); envPath != "" {
			dbPath = envPath
		}
		s, err = store.NewSQLiteStoreWithDriver(cfg.Database.Driver, dbPath)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Database.Driver)
	}
	if err != nil {
		return nil, fmt.Errorf("initializing store: %w", err)
	}
	return s, nil
}

// NewTokenService builds the session token service described by cfg.
func NewTokenService(cfg *config.Config) (*auth.TokenService, error) {
	sameSite, err := auth.ParseSameSite(cfg.Auth.SameSite)
	if err != nil {
		return nil, err
	}

	var denylist *auth.Denylist
	if cfg.Auth.Revocation.Enabled {
		denylist = auth.NewDenylist(cfg.Auth.Revocation.MaxEntries, cfg.Auth.TokenLifetime)
	}

	return auth.NewTokenService(auth.TokenConfig{
		Secret:   []byte(cfg.Auth.JWTSecret),
		Lifetime: cfg.Auth.TokenLifetime,
		Issuer:   cfg.Auth.Issuer,
		Cookie: auth.CookieConfig{
			Name:     cfg.Auth.CookieName,
			Domain:   cfg.Auth.CookieDomain,
			Secure:   !cfg.Server.IsLocal() || cfg.Tailscale.HTTPS || cfg.Tailscale.Funnel,
			SameSite: sameSite,
		},
		Denylist: denylist,
	})
}

// New creates a new Gateway instance with the given configuration.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Gateway, error) {
	s, err := OpenStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	gw, err := NewWithStore(cfg, s, logger)
	if err != nil {
		_ = s.Close()
		return nil, err
	}
	return gw, nil
}

// NewWithStore creates a Gateway around an already opened store. The gateway
// takes ownership of s and closes it on shutdown.
func NewWithStore(cfg *config.Config, s store.Store, logger *slog.Logger) (*Gateway, error) {
	engine, err := srp.NewEngineByName(cfg.SRP.Group)
	if err != nil {
		return nil, fmt.Errorf("creating SRP engine: %w", err)
	}

	tokens, err := NewTokenService(cfg)
	if err != nil {
		return nil, fmt.Errorf("creating token service: %w", err)
	}

	var decoyKey []byte
	if cfg.SRP.DecoyKey != "" {
		decoyKey = []byte(cfg.SRP.DecoyKey)
	} else {
		logger.Warn("srp.decoy_key not set - decoy salts for unknown identities change on restart")
	}

	registry, err := handshake.New(engine, s, handshake.Config{
		TTL:           cfg.SRP.HandshakeTTL,
		SweepInterval: cfg.SRP.SweepInterval,
		MaxPending:    cfg.SRP.MaxPending,
		DecoyKey:      decoyKey,
		Logger:        logger.With("component", "handshake"),
	})
	if err != nil {
		return nil, fmt.Errorf("creating handshake registry: %w", err)
	}

	gw := &Gateway{
		config:     cfg,
		store:      s,
		engine:     engine,
		handshakes: registry,
		tokens:     tokens,
		accounts: account.New(account.Config{
			Engine:     engine,
			Store:      s,
			Handshakes: registry,
			Tokens:     tokens,
			Logger:     logger,
		}),
		logger: logger.With("component", "gateway"),
	}

	gw.handler = gw.newRouter()
	gw.httpServer = &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           gw.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	if cfg.Server.GRPCAddr != "" {
		gw.grpcServer, gw.healthServer = newGRPCServer()
	}

	gw.logger.Info("gateway configured",
		"srp_group", engine.Group().Name,
		"database", cfg.Database.Driver,
		"token_lifetime", tokens.Lifetime(),
		"revocation", tokens.RevocationEnabled(),
		"grpc_health", gw.grpcServer != nil,
	)
	return gw, nil
}

// Handler returns the HTTP handler serving the API.
func (g *Gateway) Handler() http.Handler {
	return g.handler
}

// setupTCPListeners creates standard TCP listeners for HTTP and, when enabled, gRPC.
func (g *Gateway) setupTCPListeners() (httpLn, grpcLn net.Listener, err error) {
	httpLn, err = net.Listen("tcp", g.config.Server.HTTPAddr)
	if err != nil {
		return nil, nil, fmt.Errorf("listening on HTTP address: %w", err)
	}

	if g.grpcServer != nil {
		grpcLn, err = net.Listen("tcp", g.config.Server.GRPCAddr)
		if err != nil {
			_ = httpLn.Close()
			return nil, nil, fmt.Errorf("listening on gRPC address: %w", err)
		}
	}

	return httpLn, grpcLn, nil
}

// setupListeners creates listeners based on configuration (Tailscale or TCP).
func (g *Gateway) setupListeners(ctx context.Context) (httpLn, grpcLn net.Listener, err error) {
	if g.config.Tailscale.Enabled {
		return g.setupTailscaleListeners(ctx)
	}
	return g.setupTCPListeners()
}

// Run starts the servers and blocks until the context is canceled or a
// server fails. Returns nil on graceful shutdown.
func (g *Gateway) Run(ctx context.Context) error {
	httpLn, grpcLn, err := g.setupListeners(ctx)
	if err != nil {
		_ = g.Shutdown(context.Background())
		return err
	}

	eg, egCtx := errgroup.WithContext(ctx)

	eg.Go(func() error {
		g.logger.Info("HTTP server listening", "addr", httpLn.Addr().String())
		if err := g.httpServer.Serve(httpLn); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server: %w", err)
		}
		return nil
	})

	if grpcLn != nil {
		eg.Go(func() error {
			g.logger.Info("gRPC health server listening", "addr", grpcLn.Addr().String())
			if err := g.grpcServer.Serve(grpcLn); err != nil {
				return fmt.Errorf("gRPC server: %w", err)
			}
			return nil
		})
	}

	eg.Go(func() error {
		<-egCtx.Done()
		g.logger.Info("initiating shutdown")
		return g.gracefulShutdown()
	})

	return eg.Wait()
}

// gracefulShutdown performs shutdown with a fresh context and timeout since
// the run context is already canceled.
func (g *Gateway) gracefulShutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return g.Shutdown(ctx)
}

// appendCloseError appends an error with label if err is non-nil.
func appendCloseError(errs []error, label string, err error) []error {
	if err != nil {
		return append(errs, fmt.Errorf("%s: %w", label, err))
	}
	return errs
}

// Shutdown gracefully stops all servers and releases resources. It is safe
// to call more than once.
func (g *Gateway) Shutdown(ctx context.Context) error {
	g.shutdownOnce.Do(func() {
		g.logger.Info("shutting down gateway")

		var errs []error
		errs = appendCloseError(errs, "HTTP shutdown", g.httpServer.Shutdown(ctx))

		g.shutdownGRPCServer(ctx)

		if g.tsnetServer != nil {
			errs = appendCloseError(errs, "tailscale shutdown", g.tsnetServer.Close())
		}

		g.handshakes.Close()
		errs = appendCloseError(errs, "store close", g.store.Close())

		g.shutdownErr = errors.Join(errs...)
	})
	return g.shutdownErr
}
