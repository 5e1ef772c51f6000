package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/popmap/popmap-api/config"
	httpx "github.com/popmap/popmap-api/internal/http"
	"github.com/popmap/popmap-api/internal/service"
	"github.com/redis/go-redis/v9"
)

// HTTPServerConfig contains configuration for HTTP server.
type HTTPServerConfig struct {
	Config      *config.AppConfig
	Services    ServiceContainer
	DB          *sql.DB
	RedisClient redis.UniversalClient
	Logger      *slog.Logger
}

// StartHTTPServer creates and starts the HTTP server.
// Returns the server instance for graceful shutdown. The API is unusable
// without sessions, so a missing auth stack is a startup error rather than a
// degraded server.
func StartHTTPServer(cfg *HTTPServerConfig) (*http.Server, error) {
	if cfg == nil {
		return nil, errors.New("http server config is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	appCfg := cfg.Config
	if appCfg == nil {
		appCfg = &config.AppConfig{}
	}

	stack := cfg.Services.Auth
	if stack == nil {
		return nil, errors.New("auth stack is not configured; check AUTH_MODE and related settings")
	}

	sessions := httpx.NewSessionAuth(httpx.SessionAuthOptions{
		Sessions:   stack.Auth,
		Verifier:   stack.Verifier,
		Profiles:   stack.Profiles,
		CookieName: appCfg.Auth.Session.CookieName,
		Logger:     logger,
	})

	services := httpx.RouterServices{
		Auth:           stack.Auth,
		Callback:       stack.Callback,
		Profiles:       stack.Profiles,
		Events:         cfg.Services.Events,
		RSVPs:          cfg.Services.RSVPs,
		Businesses:     cfg.Services.Businesses,
		Categories:     cfg.Services.Categories,
		Forms:          cfg.Services.Forms,
		Billing:        cfg.Services.Billing,
		BillingWebhook: cfg.Services.BillingWebhook,
		Analytics:      cfg.Services.Analytics,
		Instagram:      cfg.Services.Instagram,
		Jobs:           cfg.Services.Jobs,
		Sessions:       sessions,
		Provider:       providerConfigInfo(appCfg.Auth, stack),
		CookieDomain:   appCfg.HTTP.CookieDomain,
		FrontendURL:    appCfg.HTTP.FrontendURL,
		RootDomain:     appCfg.HTTP.RootDomain,
		AllowedOrigins: appCfg.HTTP.CORSAllowedOrigins,
		DBPing:         pingDB(cfg.DB),
		RedisPing:      pingRedis(cfg.RedisClient),
		Logger:         logger,
	}

	handler := buildHTTPHandler(httpHandlerConfig{
		Logger:   logger,
		Services: services,
		HTTP:     appCfg.HTTP,
	})

	// Start server (logs "starting HTTP server" internally)
	return startServer(logger, handler, appCfg.HTTP.Addr), nil
}

// providerConfigInfo shapes the public identity provider description served
// at /auth/config. Secrets never leave this function.
func providerConfigInfo(cfg config.AuthConfig, stack *AuthStack) httpx.ProviderConfigInfo {
	info := httpx.ProviderConfigInfo{Mode: string(cfg.Mode)}
	if cfg.Mode == config.AuthModeCognito {
		info.ClientID = cfg.Cognito.ClientID
		info.IssuerURL = cfg.Cognito.IssuerURL
		info.Domain = cfg.Cognito.Domain
		info.RedirectURL = cfg.Cognito.RedirectURL
		info.Scope = cfg.Cognito.Scope
	}
	if stack != nil {
		if provider, ok := stack.Provider.(interface{ LogoutURL() string }); ok {
			info.LogoutURL = provider.LogoutURL()
		}
	}
	return info
}

func pingDB(db *sql.DB) func(ctx context.Context) error {
	if db == nil {
		return nil
	}
	return db.PingContext
}

func pingRedis(client redis.UniversalClient) func(ctx context.Context) error {
	if client == nil {
		return nil
	}
	return func(ctx context.Context) error {
		return client.Ping(ctx).Err()
	}
}

type httpHandlerConfig struct {
	Logger   *slog.Logger
	Services httpx.RouterServices
	HTTP     config.HTTPConfig
}

func buildHTTPHandler(cfg httpHandlerConfig) http.Handler {
	router := httpx.NewRouter(cfg.Services)

	// Apply compression middleware first (innermost) so logging captures compressed sizes
	// Order: Recover -> Logging -> Compression -> Router
	h := router
	if cfg.HTTP.CompressionEnabled {
		cfg.Logger.Info("HTTP compression enabled", "level", cfg.HTTP.CompressionLevel)
		h = httpx.Compression(httpx.CompressionConfig{Level: cfg.HTTP.CompressionLevel})(h)
	}

	h = httpx.Logging(cfg.Logger)(h)
	h = httpx.Recover(cfg.Logger)(h)

	return h
}

func startServer(logger *slog.Logger, handler http.Handler, addr string) *http.Server {
	// Guard against empty addr to avoid listening on Go default
	if addr == "" {
		addr = ":8080"
	}

	server := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Info("starting HTTP server", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("HTTP server failed", "error", err)
		}
	}()

	return server
}

// ShutdownConfig contains dependencies for HTTP server shutdown.
type ShutdownConfig struct {
	Context    context.Context
	Server     *http.Server
	JobService *service.JobService
	Logger     *slog.Logger
}

// ShutdownHTTPServer gracefully shuts down the HTTP server.
func ShutdownHTTPServer(cfg ShutdownConfig) error {
	if cfg.Server == nil {
		return nil
	}

	if cfg.Logger != nil {
		cfg.Logger.Info("shutting down HTTP server")
	}

	// Stop job service listeners first
	if cfg.JobService != nil {
		cfg.JobService.StopAllListeners()
	}

	// Shutdown HTTP server with timeout
	shutdownCtx, cancel := context.WithTimeout(cfg.Context, 10*time.Second)
	defer cancel()

	if err := cfg.Server.Shutdown(shutdownCtx); err != nil {
		return err
	}

	if cfg.Logger != nil {
		cfg.Logger.Info("HTTP server stopped")
	}

	return nil
}
