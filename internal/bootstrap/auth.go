package bootstrap

import (
	"context"
	"log/slog"

	"github.com/popmap/popmap-api/config"
	"github.com/popmap/popmap-api/internal/adapters/authroles"
	"github.com/popmap/popmap-api/internal/adapters/cognito"
	"github.com/popmap/popmap-api/internal/adapters/devauth"
	redisadapter "github.com/popmap/popmap-api/internal/adapters/redis"
	"github.com/popmap/popmap-api/internal/core"
	"github.com/popmap/popmap-api/internal/data/cryptoutil"
	domainauth "github.com/popmap/popmap-api/internal/domain/auth"
	"github.com/popmap/popmap-api/internal/ports"
	"github.com/popmap/popmap-api/internal/service"
	"github.com/redis/go-redis/v9"
)

// AuthStackConfig contains dependencies for the auth stack.
type AuthStackConfig struct {
	Auth        config.AuthConfig
	RedisClient redis.UniversalClient
	Encryptor   cryptoutil.Encryptor
	Profiles    core.ProfileRepository
	RSVPs       core.RSVPRepository
	Logger      *slog.Logger
}

// AuthStack bundles the wired sign-in machinery: identity provider, session
// and flow stores, and the services the HTTP layer consumes.
type AuthStack struct {
	Provider ports.AuthProvider
	Verifier ports.TokenVerifier // nil in dev mode (no key set to verify against)
	Sessions ports.SessionStore
	Flows    ports.FlowStore
	Profiles *service.ProfileService
	Auth     *service.AuthService
	Callback *service.CallbackService
}

// BuildAuthStack wires the auth stack for the configured mode.
// Returns nil if auth is not configured or configuration is invalid; the
// HTTP layer treats a nil stack as auth disabled.
func BuildAuthStack(ctx context.Context, cfg AuthStackConfig) *AuthStack {
	if cfg.RedisClient == nil {
		if cfg.Logger != nil {
			cfg.Logger.Warn("auth disabled: redis client not configured", "mode", cfg.Auth.Mode)
		}
		return nil
	}
	if cfg.Profiles == nil {
		if cfg.Logger != nil {
			cfg.Logger.Warn("auth disabled: profile repository not configured")
		}
		return nil
	}

	var (
		provider ports.AuthProvider
		verifier ports.TokenVerifier
	)

	switch cfg.Auth.Mode {
	case config.AuthModeDev:
		prov, err := devauth.NewProvider(devauth.Config{
			Subject:  cfg.Auth.DevAuth.UserID,
			Email:    cfg.Auth.DevAuth.Email,
			Role:     domainauth.Role(cfg.Auth.DevAuth.Role),
			Groups:   cfg.Auth.DevAuth.Groups,
			TokenLag: cfg.Auth.DevAuth.TokenLag,
		})
		if err != nil {
			if cfg.Logger != nil {
				cfg.Logger.Warn("failed to create dev auth provider, auth disabled", "error", err)
			}
			return nil
		}
		provider = prov

	case config.AuthModeCognito:
		co := cfg.Auth.Cognito
		if co.ClientID == "" || co.IssuerURL == "" {
			if cfg.Logger != nil {
				cfg.Logger.Warn("cognito auth selected but required config missing; auth disabled",
					"client_id_empty", co.ClientID == "",
					"issuer_url_empty", co.IssuerURL == "",
				)
			}
			return nil
		}
		prov, err := cognito.NewProvider(ctx, cognito.ProviderConfig{
			ClientID:           co.ClientID,
			ClientSecret:       co.ClientSecret,
			IssuerURL:          co.IssuerURL,
			Domain:             co.Domain,
			RedirectURL:        co.RedirectURL,
			Scope:              co.Scope,
			SignOutRedirectURL: co.SignOutRedirectURL,
			RoleClaim:          co.RoleClaim,
		})
		if err != nil {
			if cfg.Logger != nil {
				cfg.Logger.Warn("failed to create cognito provider, auth disabled", "error", err)
			}
			return nil
		}
		provider = prov
		verifier = prov.NewVerifier()

	default:
		if cfg.Logger != nil {
			cfg.Logger.Warn("unknown auth mode, auth disabled", "mode", cfg.Auth.Mode)
		}
		return nil
	}

	sessions := redisadapter.NewSessionStore(cfg.RedisClient, resolveEncryptor(cfg.Encryptor, cfg.Logger))
	flows := redisadapter.NewFlowStore(cfg.RedisClient, redisadapter.FlowStoreConfig{
		PendingRoleTTL: cfg.Auth.Callback.PendingRoleTTL,
		MarkerWindow:   cfg.Auth.Callback.MarkerWindow,
		SuspendTTL:     cfg.Auth.Callback.SuspendTTL,
	})

	profiles := service.NewProfileService(service.ProfileServiceOptions{
		Profiles: cfg.Profiles,
		RSVPs:    cfg.RSVPs,
		Roles: authroles.StaticRoleMapper{
			AdminGroup: cfg.Auth.AdminGroup,
			Fallback:   domainauth.RoleAttendee,
		},
		Logger: cfg.Logger,
	})

	auth := service.NewAuthService(service.AuthServiceOptions{
		Provider:   provider,
		Sessions:   sessions,
		Flows:      flows,
		Profiles:   profiles,
		SessionTTL: cfg.Auth.Session.TTL,
		Logger:     cfg.Logger,
	})

	callback := service.NewCallbackService(service.CallbackServiceOptions{
		Provider: provider,
		Auth:     auth,
		Profiles: profiles,
		Flows:    flows,
		Timing: service.CallbackTiming{
			SettleDelay:       cfg.Auth.Callback.SettleDelay,
			TokenPollAttempts: cfg.Auth.Callback.TokenPollAttempts,
			TokenPollInterval: cfg.Auth.Callback.TokenPollInterval,
		},
		Logger: cfg.Logger,
	})

	return &AuthStack{
		Provider: provider,
		Verifier: verifier,
		Sessions: sessions,
		Flows:    flows,
		Profiles: profiles,
		Auth:     auth,
		Callback: callback,
	}
}
