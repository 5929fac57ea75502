package internal

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dgellow/gamefront/internal/catalog"
	"github.com/dgellow/gamefront/internal/config"
	"github.com/dgellow/gamefront/internal/crypto"
	"github.com/dgellow/gamefront/internal/handoff"
	"github.com/dgellow/gamefront/internal/idp"
	"github.com/dgellow/gamefront/internal/ledger"
	"github.com/dgellow/gamefront/internal/library"
	"github.com/dgellow/gamefront/internal/log"
	"github.com/dgellow/gamefront/internal/metrics"
	"github.com/dgellow/gamefront/internal/server"
	"github.com/dgellow/gamefront/internal/session"
	"github.com/redis/go-redis/v9"
)

// catalogFetchTimeout bounds one /api/games fan-out. Steam enrichment alone
// takes EnrichLimit*EnrichDelay.
const catalogFetchTimeout = 60 * time.Second

// GameFront represents the complete gamefront application
type GameFront struct {
	config     config.Config
	httpServer *server.HTTPServer
	closers    []io.Closer
}

// components are the collaborators the HTTP handler is built from
type components struct {
	providers *idp.Registry
	sessions  *session.Issuer
	mailbox   handoff.Mailbox
	ledger    ledger.Backend
	gateway   *library.Gateway
	metrics   *metrics.Metrics
	staticDir string
}

// New creates a gamefront application with all dependencies built
func New(ctx context.Context, cfg config.Config) (*GameFront, error) {
	log.LogInfoWithFields("gamefront", "Building gamefront application", map[string]any{
		"baseURL": cfg.Server.BaseURL,
		"ledger":  cfg.Ledger.Storage,
	})

	keys, err := crypto.DeriveKeys([]byte(cfg.Session.Secret))
	if err != nil {
		return nil, fmt.Errorf("failed to derive keys: %w", err)
	}
	encryptor, err := crypto.NewEncryptor(keys.Cookie)
	if err != nil {
		return nil, fmt.Errorf("failed to create encryptor: %w", err)
	}

	backend, closers, err := setupLedger(ctx, cfg, encryptor)
	if err != nil {
		return nil, fmt.Errorf("failed to setup ledger: %w", err)
	}

	handoffEncryptor, err := crypto.NewEncryptor(keys.Handoff)
	if err != nil {
		return nil, fmt.Errorf("failed to create handoff encryptor: %w", err)
	}

	m := metrics.New()
	mailbox := handoff.NewCookieMailbox(handoffEncryptor)

	c := components{
		providers: setupProviders(cfg),
		sessions:  session.NewIssuer(keys.Session, encryptor, mailbox, cfg.Session.TTL),
		mailbox:   mailbox,
		ledger:    backend,
		gateway:   library.NewGateway(setupCatalog(cfg, m), catalogFetchTimeout),
		metrics:   m,
		staticDir: cfg.Server.StaticDir,
	}

	return &GameFront{
		config:     cfg,
		httpServer: server.NewHTTPServer(buildHTTPHandler(c), cfg.Server.Addr),
		closers:    closers,
	}, nil
}

// Run starts and manages the application lifecycle until a signal or server error
func (g *GameFront) Run() error {
	log.LogInfoWithFields("gamefront", "Starting gamefront", map[string]any{
		"addr": g.config.Server.Addr,
	})

	errChan := make(chan error, 1)
	go func() {
		if err := g.httpServer.Start(); err != nil {
			errChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	var shutdownReason string
	select {
	case sig := <-sigChan:
		shutdownReason = fmt.Sprintf("signal %v", sig)
		log.LogInfoWithFields("gamefront", "Received shutdown signal", map[string]any{
			"signal": sig.String(),
		})
	case err := <-errChan:
		shutdownReason = fmt.Sprintf("error: %v", err)
		log.LogErrorWithFields("gamefront", "Shutting down due to error", map[string]any{
			"error": err.Error(),
		})
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := g.httpServer.Stop(shutdownCtx); err != nil {
		log.LogErrorWithFields("gamefront", "HTTP server shutdown error", map[string]any{
			"error": err.Error(),
		})
		return err
	}

	for _, c := range g.closers {
		if err := c.Close(); err != nil {
			log.LogWarnWithFields("gamefront", "Error closing ledger storage", map[string]any{
				"error": err.Error(),
			})
		}
	}

	log.LogInfoWithFields("gamefront", "Application shutdown complete", map[string]any{
		"reason": shutdownReason,
	})
	return nil
}

// setupLedger builds the linked-account backend selected by configuration
func setupLedger(ctx context.Context, cfg config.Config, encryptor crypto.Encryptor) (ledger.Backend, []io.Closer, error) {
	ttl := cfg.Ledger.TTL

	switch cfg.Ledger.Storage {
	case config.LedgerStorageMemory:
		log.LogInfoWithFields("ledger", "Using in-memory ledger", nil)
		return ledger.NewKeyedBackend(ledger.NewMemoryRepository(ttl), ttl), nil, nil

	case config.LedgerStorageRedis:
		log.LogInfoWithFields("ledger", "Using Redis ledger", map[string]any{
			"addr": cfg.Ledger.RedisAddr,
			"db":   cfg.Ledger.RedisDB,
		})
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Ledger.RedisAddr,
			Password: string(cfg.Ledger.RedisPassword),
			DB:       cfg.Ledger.RedisDB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("connecting to redis: %w", err)
		}
		repo := ledger.NewRedisRepository(client, encryptor, ttl)
		return ledger.NewKeyedBackend(repo, ttl), []io.Closer{repo}, nil

	case config.LedgerStorageFirestore:
		log.LogInfoWithFields("ledger", "Using Firestore ledger", map[string]any{
			"project":    cfg.Ledger.GCPProject,
			"database":   cfg.Ledger.FirestoreDatabase,
			"collection": cfg.Ledger.FirestoreCollection,
		})
		repo, err := ledger.NewFirestoreRepository(
			ctx,
			cfg.Ledger.GCPProject,
			cfg.Ledger.FirestoreDatabase,
			cfg.Ledger.FirestoreCollection,
			cfg.Ledger.CredentialsFile,
			encryptor,
			ttl,
		)
		if err != nil {
			return nil, nil, err
		}
		return ledger.NewKeyedBackend(repo, ttl), []io.Closer{repo}, nil

	default:
		log.LogInfoWithFields("ledger", "Using cookie ledger", nil)
		return ledger.NewCookieBackend(encryptor, ttl), nil, nil
	}
}

func setupProviders(cfg config.Config) *idp.Registry {
	epic := idp.NewEpicProvider(cfg.Epic.ClientID, string(cfg.Epic.ClientSecret), cfg.Server.BaseURL+"/api/epic/callback")
	if cfg.Epic.LauncherURL != "" {
		epic.WithLauncherURL(cfg.Epic.LauncherURL)
	}

	return idp.NewRegistry(
		idp.NewSteamProvider(cfg.Server.BaseURL, string(cfg.Steam.APIKey)),
		epic,
		idp.NewStubProvider(idp.ProviderGOG),
		idp.NewStubProvider(idp.ProviderPSN),
		idp.NewStubProvider(idp.ProviderXbox),
	)
}

func setupCatalog(cfg config.Config, m *metrics.Metrics) *catalog.Registry {
	ttl := cfg.Catalog.CacheTTL
	fetchers := map[idp.ProviderType]catalog.Fetcher{
		idp.ProviderSteam: catalog.NewSteamFetcher(string(cfg.Steam.APIKey), cfg.Catalog.EnrichLimit, cfg.Catalog.EnrichDelay),
		idp.ProviderEpic:  catalog.NewEpicFetcher(),
		idp.ProviderGOG:   catalog.NewGOGFetcher(),
		idp.ProviderPSN:   catalog.NewPSNFetcher(),
		idp.ProviderXbox:  catalog.NewXboxFetcher(),
	}

	registry := catalog.NewRegistry()
	for provider, f := range fetchers {
		registry.Register(provider, catalog.NewCachedFetcher(f, ttl, m))
	}
	return registry
}

func buildHTTPHandler(c components) http.Handler {
	mux := http.NewServeMux()

	authLogger := server.NewLoggerMiddleware("auth")
	apiLogger := server.NewLoggerMiddleware("api")
	authRecover := server.NewRecoverMiddleware("auth")
	apiRecover := server.NewRecoverMiddleware("api")

	authMiddleware := []server.MiddlewareFunc{authLogger, authRecover}
	apiMiddleware := []server.MiddlewareFunc{apiLogger, apiRecover}

	mux.Handle("GET /health", server.NewHealthHandler())
	mux.Handle("GET /metrics", c.metrics.Handler())

	authHandlers := server.NewAuthHandlers(c.providers, c.sessions, c.mailbox, c.ledger, c.metrics)
	mux.Handle("GET /api/{provider}/login", server.ChainMiddleware(http.HandlerFunc(authHandlers.LoginHandler), authMiddleware...))
	mux.Handle("GET /api/{provider}/callback", server.ChainMiddleware(http.HandlerFunc(authHandlers.CallbackHandler), authMiddleware...))
	for _, t := range c.providers.Types() {
		mux.Handle("GET /"+string(t)+"-signin", server.ChainMiddleware(authHandlers.SignInHandler(t), authMiddleware...))
	}
	mux.Handle("GET /api/auth/session", server.ChainMiddleware(http.HandlerFunc(authHandlers.SessionHandler), apiMiddleware...))
	mux.Handle("POST /api/auth/signout", server.ChainMiddleware(http.HandlerFunc(authHandlers.SignOutHandler), apiMiddleware...))

	libraryHandlers := server.NewLibraryHandlers(c.sessions, c.ledger, c.gateway)
	mux.Handle("GET /api/games", server.ChainMiddleware(http.HandlerFunc(libraryHandlers.GamesHandler), apiMiddleware...))
	mux.Handle("GET /api/linked-accounts", server.ChainMiddleware(http.HandlerFunc(libraryHandlers.LinkedAccountsHandler), apiMiddleware...))
	mux.Handle("DELETE /api/linked-accounts/{provider}/{providerId}", server.ChainMiddleware(http.HandlerFunc(libraryHandlers.UnlinkHandler), apiMiddleware...))

	if c.staticDir != "" {
		log.LogInfoWithFields("gamefront", "Serving static files", map[string]any{
			"dir": c.staticDir,
		})
		mux.Handle("GET /", http.FileServer(http.Dir(c.staticDir)))
	}

	return server.ChainMiddleware(mux, server.NewMetricsMiddleware(c.metrics))
}
