package bootstrap

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/popmap/popmap-api/config"
	"github.com/popmap/popmap-api/internal/adapters/instagramapi"
	"github.com/popmap/popmap-api/internal/adapters/stripeapi"
	"github.com/popmap/popmap-api/internal/core"
	"github.com/popmap/popmap-api/internal/data"
	"github.com/popmap/popmap-api/internal/domain"
	"github.com/popmap/popmap-api/internal/observability/notify"
	"github.com/popmap/popmap-api/internal/observability/notify/pagerduty"
	"github.com/popmap/popmap-api/internal/observability/notify/slack"
	"github.com/popmap/popmap-api/internal/observability/statsd"
	"github.com/popmap/popmap-api/internal/service"
	"github.com/popmap/popmap-api/internal/service/failurenotifier"
	"github.com/popmap/popmap-api/internal/service/mailer"
	"github.com/redis/go-redis/v9"
)

// ServiceContainer holds all application services.
type ServiceContainer struct {
	Jobs           *service.JobService
	Events         *service.EventService
	RSVPs          *service.RSVPService
	Businesses     *service.BusinessService
	Categories     *service.CategoryService
	Forms          *service.FormService
	Billing        *service.BillingService
	BillingWebhook *service.BillingWebhookService // nil when Stripe is not configured
	Analytics      *service.AnalyticsService
	Reminders      *service.ReminderService
	Instagram      *service.InstagramService // nil when the import integration is not configured
	Mailer         *mailer.Service
	Auth           *AuthStack // nil when auth is not configured
	Observability  ObservabilityContainer
}

// ObservabilityContainer groups shared observability dependencies.
type ObservabilityContainer struct {
	MetricsSink     *statsd.Client
	MetricsConfig   config.ObservabilityMetricsConfig
	FailureNotifier *failurenotifier.Service
	NotifierConfig  config.ObservabilityNotificationsConfig
}

// ServiceDeps groups dependencies for service initialization.
type ServiceDeps struct {
	Config      *config.AppConfig
	DB          *sql.DB
	RedisClient redis.UniversalClient
	Logger      *slog.Logger
}

// serviceRepositories groups data adapters backing service ports.
type serviceRepositories struct {
	DB                  *sql.DB
	Redis               redis.UniversalClient
	JobRepo             *data.JobRepo
	EventRepo           *data.EventRepo
	ProfileRepo         *data.ProfileRepo
	BusinessRepo        *data.BusinessRepo
	CategoryRepo        *data.CategoryRepo
	RSVPRepo            *data.RSVPRepo
	GuestPreferenceRepo *data.GuestPreferenceRepo
	PlanRepo            *data.PlanRepo
	SubscriptionRepo    *data.SubscriptionRepo
	FormTemplateRepo    *data.FormTemplateRepo
	FormSubmissionRepo  *data.FormSubmissionRepo
	AnalyticsRepo       *data.AnalyticsRepo
	ReminderRepo        *data.ReminderRepo
	InstagramLogRepo    *data.InstagramPostLogRepo
	CacheRepo           *data.RedisCacheRepo
}

// buildObservability configures metrics and notification adapters.
func buildObservability(logger *slog.Logger, cfg config.ObservabilityConfig) ObservabilityContainer {
	obsLogger := logger
	if obsLogger == nil {
		obsLogger = slog.Default()
	}

	var metricsSink *statsd.Client
	if cfg.Metrics.IsEnabled() {
		client, err := statsd.NewClient(statsd.Config{
			Enabled: true,
			Address: cfg.Metrics.StatsdAddress,
			Prefix:  "popmap",
			Logger:  obsLogger,
		})
		if err != nil {
			obsLogger.Error("failed to initialise statsd client", "error", err)
		} else {
			metricsSink = client
		}
	}

	failureNotifier := buildFailureNotifier(obsLogger, cfg.Notifications)

	return ObservabilityContainer{
		MetricsSink:     metricsSink,
		MetricsConfig:   cfg.Metrics,
		FailureNotifier: failureNotifier,
		NotifierConfig:  cfg.Notifications,
	}
}

// buildRepositories builds repositories backing service ports; no business rules here.
func buildRepositories(db *sql.DB, redisClient redis.UniversalClient) *serviceRepositories {
	repos := &serviceRepositories{
		DB:                  db,
		Redis:               redisClient,
		JobRepo:             data.NewJobRepo(db, data.RepoConfig{}),
		EventRepo:           data.NewEventRepo(db),
		ProfileRepo:         data.NewProfileRepo(db),
		BusinessRepo:        data.NewBusinessRepo(db),
		CategoryRepo:        data.NewCategoryRepo(db),
		RSVPRepo:            data.NewRSVPRepo(db),
		GuestPreferenceRepo: data.NewGuestPreferenceRepo(db),
		PlanRepo:            data.NewPlanRepo(db),
		SubscriptionRepo:    data.NewSubscriptionRepo(db),
		FormTemplateRepo:    data.NewFormTemplateRepo(db),
		FormSubmissionRepo:  data.NewFormSubmissionRepo(db),
		AnalyticsRepo:       data.NewAnalyticsRepo(db),
		ReminderRepo:        data.NewReminderRepo(db),
		InstagramLogRepo:    data.NewInstagramPostLogRepo(db),
	}
	if redisClient != nil {
		repos.CacheRepo = data.NewRedisCacheRepo(redisClient)
	}
	return repos
}

func newJobService(repos *serviceRepositories, observability ObservabilityContainer, logger *slog.Logger) *service.JobService {
	return service.MustNewJobService(service.JobServiceOptions{
		Repo:            repos.JobRepo,
		DefaultLease:    30 * time.Second,
		Logger:          logger,
		FailureNotifier: observability.FailureNotifier,
	})
}

// newStripeGateway builds the Stripe adapter, or nil when billing is not
// configured. The nil stays untyped so services checking the interface see it.
func newStripeGateway(cfg config.BillingConfig, logger *slog.Logger) core.StripeGateway {
	if !cfg.IsConfigured() {
		logger.Info("stripe not configured; checkout and webhooks disabled")
		return nil
	}
	gateway, err := stripeapi.New(stripeapi.Options{
		SecretKey:     cfg.SecretKey,
		WebhookSecret: cfg.WebhookSecret,
	})
	if err != nil {
		logger.Error("failed to initialise stripe gateway; billing degraded", "error", err)
		return nil
	}
	return gateway
}

// newInstagramService builds the Instagram import service, or nil when the
// scraper or extractor endpoints are not configured.
func newInstagramService(
	repos *serviceRepositories,
	billing *service.BillingService,
	cfg config.InstagramConfig,
	logger *slog.Logger,
) *service.InstagramService {
	if !cfg.IsConfigured() {
		logger.Info("instagram import not configured; endpoints disabled")
		return nil
	}
	scraper, err := instagramapi.NewScraper(instagramapi.ScraperConfig{
		BaseURL: cfg.ScraperBaseURL,
		APIKey:  cfg.ScraperAPIKey,
		Timeout: cfg.Timeout,
	})
	if err != nil {
		logger.Error("failed to initialise instagram scraper; import disabled", "error", err)
		return nil
	}
	extractor, err := instagramapi.NewExtractor(instagramapi.ExtractorConfig{
		URL:     cfg.ExtractorURL,
		Token:   cfg.ExtractorToken,
		Timeout: cfg.Timeout,
	})
	if err != nil {
		logger.Error("failed to initialise caption extractor; import disabled", "error", err)
		return nil
	}
	svc, err := service.NewInstagramService(service.InstagramServiceOptions{
		Businesses:      repos.BusinessRepo,
		Events:          repos.EventRepo,
		Logs:            repos.InstagramLogRepo,
		Source:          scraper,
		Extractor:       extractor,
		Billing:         billing,
		Logger:          logger,
		Hashtag:         cfg.Hashtag,
		FetchLimit:      cfg.FetchLimit,
		ConfidenceFloor: cfg.ConfidenceFloor,
	})
	if err != nil {
		logger.Error("failed to initialise instagram import service", "error", err)
		return nil
	}
	return svc
}

func newMailerService(cfg config.EmailConfig, logger *slog.Logger) *mailer.Service {
	var transport core.Mailer
	switch cfg.Mode {
	case config.EmailModeRelay:
		relay, err := mailer.NewRelay(mailer.RelayConfig{
			URL:         cfg.RelayURL,
			Token:       cfg.RelayToken,
			FromAddress: cfg.FromAddress,
			FromName:    cfg.FromName,
			Timeout:     cfg.Timeout,
			RetryLimit:  cfg.RetryLimit,
		})
		if err != nil {
			logger.Error("failed to initialise mail relay; falling back to log transport", "error", err)
			transport = mailer.NewLogTransport(logger)
		} else {
			transport = relay
		}
	default:
		transport = mailer.NewLogTransport(logger)
	}

	svc, err := mailer.NewService(mailer.Options{Transport: transport, Logger: logger})
	if err != nil {
		logger.Error("failed to initialise mailer; email jobs will fail", "error", err)
		return nil
	}
	return svc
}

func newBillingWebhookService(
	repos *serviceRepositories,
	observability ObservabilityContainer,
	gateway core.StripeGateway,
	logger *slog.Logger,
) *service.BillingWebhookService {
	if gateway == nil {
		return nil
	}

	var notifier notify.Sink
	if fn := observability.FailureNotifier; fn != nil && fn.Enabled() {
		notifier = notify.SinkFunc(func(ctx context.Context, payload notify.JobFailurePayload) error {
			fn.NotifyJobFailure(ctx, payload)
			return nil
		})
	}

	// Assign through a local so a missing Redis leaves the interface nil
	// instead of wrapping a nil pointer.
	var claims core.CacheRepository
	if repos.CacheRepo != nil {
		claims = repos.CacheRepo
	}

	webhook, err := service.NewBillingWebhookService(service.BillingWebhookServiceOptions{
		Subscriptions: repos.SubscriptionRepo,
		Plans:         repos.PlanRepo,
		Stripe:        gateway,
		Notifier:      notifier,
		Cache:         claims,
		Logger:        logger,
	})
	if err != nil {
		logger.Error("failed to initialise billing webhook service", "error", err)
		return nil
	}
	return webhook
}

func newMapCache(repos *serviceRepositories, cfg config.CacheConfig) *core.MapCache {
	if repos.CacheRepo == nil {
		return nil
	}
	return core.NewMapCache(core.MapCacheOptions{
		Cache:  repos.CacheRepo,
		Config: core.MapCacheConfig{TTL: cfg.MapDataTTL},
	})
}

// DomainServicesOptions groups inputs for buildDomainServices.
type DomainServicesOptions struct {
	Repos         *serviceRepositories
	Observability ObservabilityContainer
	Config        *config.AppConfig
	Logger        *slog.Logger
}

// buildDomainServices wires business services using repositories and observability adapters.
func buildDomainServices(ctx context.Context, opts *DomainServicesOptions) ServiceContainer {
	if opts == nil {
		return ServiceContainer{}
	}
	svcLogger := opts.Logger
	if svcLogger == nil {
		svcLogger = slog.Default()
	}

	appCfg := opts.Config
	if appCfg == nil {
		appCfg = &config.AppConfig{}
	}
	repos := opts.Repos

	jobService := newJobService(repos, opts.Observability, svcLogger)
	stripeGateway := newStripeGateway(appCfg.Billing, svcLogger)

	billing := service.MustNewBillingService(service.BillingServiceOptions{
		Plans:         repos.PlanRepo,
		Subscriptions: repos.SubscriptionRepo,
		Profiles:      repos.ProfileRepo,
		Stripe:        stripeGateway,
		Config:        appCfg.Billing,
		Logger:        svcLogger,
	})
	billingWebhook := newBillingWebhookService(repos, opts.Observability, stripeGateway, svcLogger)

	businesses := service.MustNewBusinessService(service.BusinessServiceOptions{
		Businesses: repos.BusinessRepo,
		Billing:    billing,
		Logger:     svcLogger,
	})
	events := service.MustNewEventService(service.EventServiceOptions{
		Events:     repos.EventRepo,
		Businesses: repos.BusinessRepo,
		Billing:    billing,
		Jobs:       repos.JobRepo,
		Cache:      newMapCache(repos, appCfg.Cache),
		Logger:     svcLogger,
	})
	rsvps := service.MustNewRSVPService(service.RSVPServiceOptions{
		RSVPs:      repos.RSVPRepo,
		Events:     repos.EventRepo,
		GuestPrefs: repos.GuestPreferenceRepo,
		Logger:     svcLogger,
	})
	categories := service.MustNewCategoryService(service.CategoryServiceOptions{
		Categories: repos.CategoryRepo,
		Logger:     svcLogger,
	})
	forms := service.MustNewFormService(service.FormServiceOptions{
		Templates:   repos.FormTemplateRepo,
		Submissions: repos.FormSubmissionRepo,
		Businesses:  repos.BusinessRepo,
		Jobs:        repos.JobRepo,
		Logger:      svcLogger,
	})
	analytics := service.MustNewAnalyticsService(service.AnalyticsServiceOptions{
		Analytics:  repos.AnalyticsRepo,
		Businesses: repos.BusinessRepo,
		Billing:    billing,
		RootDomain: appCfg.HTTP.RootDomain,
		Logger:     svcLogger,
	})
	reminders := service.MustNewReminderService(service.ReminderServiceOptions{
		Reminders:  repos.ReminderRepo,
		Jobs:       repos.JobRepo,
		Window:     appCfg.Reminders.LeadTime,
		BatchLimit: appCfg.Reminders.BatchSize,
		BaseURL:    appCfg.HTTP.FrontendURL,
		Logger:     svcLogger,
	})

	authStack := BuildAuthStack(ctx, AuthStackConfig{
		Auth:        appCfg.Auth,
		RedisClient: repos.Redis,
		Encryptor:   CreateEncryptor(appCfg.SessionEncryptionKey, svcLogger),
		Profiles:    repos.ProfileRepo,
		RSVPs:       repos.RSVPRepo,
		Logger:      svcLogger,
	})

	return ServiceContainer{
		Jobs:           jobService,
		Events:         events,
		RSVPs:          rsvps,
		Businesses:     businesses,
		Categories:     categories,
		Forms:          forms,
		Billing:        billing,
		BillingWebhook: billingWebhook,
		Analytics:      analytics,
		Reminders:      reminders,
		Instagram:      newInstagramService(repos, billing, appCfg.Instagram, svcLogger),
		Mailer:         newMailerService(appCfg.Email, svcLogger),
		Auth:           authStack,
		Observability:  opts.Observability,
	}
}

// NewServices wires repositories, observability, and domain services. The
// context bounds provider discovery during auth stack construction.
func NewServices(ctx context.Context, deps *ServiceDeps) ServiceContainer {
	if deps == nil {
		return ServiceContainer{}
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var obsCfg config.ObservabilityConfig
	if deps.Config != nil {
		obsCfg = deps.Config.Observability
	}
	observability := buildObservability(logger, obsCfg)
	repos := buildRepositories(deps.DB, deps.RedisClient)
	return buildDomainServices(ctx, &DomainServicesOptions{
		Repos:         repos,
		Observability: observability,
		Config:        deps.Config,
		Logger:        logger,
	})
}

func buildFailureNotifier(logger *slog.Logger, cfg config.ObservabilityNotificationsConfig) *failurenotifier.Service {
	baseLogger := logger
	if baseLogger == nil {
		baseLogger = slog.Default()
	}

	if !cfg.Enabled {
		return failurenotifier.NewService(failurenotifier.Options{
			Logger: baseLogger.With("component", "failure_notifier"),
		})
	}

	sinks := make([]failurenotifier.SinkRegistration, 0, 2)

	if cfg.Slack.Enabled {
		client, err := slack.NewClient(slack.Config{
			WebhookURL:     cfg.Slack.WebhookURL,
			Channel:        cfg.Slack.Channel,
			Username:       cfg.Slack.Username,
			Timeout:        cfg.Timeout,
			RetryLimit:     cfg.RetryLimit,
			EventURLPrefix: cfg.Slack.EventURLPrefix,
		})
		if err != nil {
			baseLogger.Error("failed to initialise slack notifier", "error", err)
		} else {
			sinks = append(sinks, failurenotifier.SinkRegistration{
				Name: "slack",
				Sink: client,
			})
		}
	}

	if cfg.PagerDuty.Enabled {
		client, err := pagerduty.NewClient(pagerduty.Config{
			RoutingKey: cfg.PagerDuty.RoutingKey,
			Source:     cfg.PagerDuty.Source,
			Component:  cfg.PagerDuty.Component,
			Timeout:    cfg.Timeout,
			RetryLimit: cfg.RetryLimit,
		})
		if err != nil {
			baseLogger.Error("failed to initialise pagerduty notifier", "error", err)
		} else {
			sinks = append(sinks, failurenotifier.SinkRegistration{
				Name: "pagerduty",
				Sink: client,
			})
		}
	}

	return failurenotifier.NewService(failurenotifier.Options{
		Logger: baseLogger.With("component", "failure_notifier"),
		Sinks:  sinks,
	})
}

// ServiceOrchestrationConfig contains configuration for service orchestration.
type ServiceOrchestrationConfig struct {
	Config      *config.AppConfig
	Services    ServiceContainer
	DB          *sql.DB
	RedisClient redis.UniversalClient
	Logger      *slog.Logger
}

const (
	// shutdownWaitTimeout is the maximum time to wait for services to stop gracefully.
	shutdownWaitTimeout = 15 * time.Second
)

// serviceStartupDeps groups dependencies for service startup.
type serviceStartupDeps struct {
	ctx             context.Context
	cfg             *ServiceOrchestrationConfig
	logger          *slog.Logger
	enabledServices map[config.ServiceMode]bool
	errCh           chan error
}

// backgroundService describes a startable background component.
type backgroundService struct {
	mode  config.ServiceMode
	name  string
	start func(context.Context) error
}

// backgroundServiceHandle tracks a running background service.
type backgroundServiceHandle struct {
	mode config.ServiceMode
	name string
	done <-chan struct{}
}

// startHTTPServerIfEnabled starts the HTTP server if enabled.
func startHTTPServerIfEnabled(deps *serviceStartupDeps) (*http.Server, error) {
	if deps == nil || deps.cfg == nil || !deps.enabledServices[config.ServiceModeHTTP] {
		return nil, nil
	}
	return StartHTTPServer(&HTTPServerConfig{
		Config:      deps.cfg.Config,
		Services:    deps.cfg.Services,
		DB:          deps.cfg.DB,
		RedisClient: deps.cfg.RedisClient,
		Logger:      deps.logger,
	})
}

func launchBackground(ctx context.Context, deps *serviceStartupDeps, descriptor backgroundService) <-chan struct{} {
	if deps == nil || !deps.enabledServices[descriptor.mode] {
		return nil
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := descriptor.start(ctx); err != nil {
			errMsg := fmt.Errorf("%s failed: %w", descriptor.name, err)
			select {
			case deps.errCh <- errMsg:
			case <-ctx.Done():
			default:
				if deps.logger != nil {
					deps.logger.WarnContext(
						ctx,
						"dropping background service error",
						"service",
						descriptor.name,
						"error",
						errMsg,
					)
				} else {
					slog.Default().WarnContext(ctx, "dropping background service error", "service", descriptor.name, "error", errMsg)
				}
			}
		}
	}()

	if deps.logger != nil {
		deps.logger.InfoContext(ctx, "background service started", "service", descriptor.name, "mode", descriptor.mode)
	} else {
		slog.Default().InfoContext(ctx, "background service started", "service", descriptor.name, "mode", descriptor.mode)
	}

	return done
}

func startBackgroundServices(deps *serviceStartupDeps, services []backgroundService) []backgroundServiceHandle {
	if deps == nil {
		return nil
	}
	handles := make([]backgroundServiceHandle, 0, len(services))

	for _, svc := range services {
		done := launchBackground(deps.ctx, deps, svc)
		if done == nil {
			continue
		}

		handles = append(handles, backgroundServiceHandle{
			mode: svc.mode,
			name: svc.name,
			done: done,
		})
	}

	return handles
}

// scheduledTaskDefaults lists the recurring tasks and their configured
// cadences. The scheduler syncs these into scheduled_jobs at startup.
func scheduledTaskDefaults(cfg *config.AppConfig) []domain.UpsertTaskParams {
	if cfg == nil {
		return nil
	}
	return []domain.UpsertTaskParams{
		{
			TaskName: "reminders:scan",
			Payload:  json.RawMessage(`{}`),
			Interval: cfg.Reminders.Interval,
		},
		{
			TaskName: "rollup:daily",
			Payload:  json.RawMessage(`{}`),
			Interval: cfg.Analytics.RollupInterval,
		},
	}
}

func newWorkerBackgroundService(deps *serviceStartupDeps) backgroundService {
	return backgroundService{
		mode: config.ServiceModeWorker,
		name: "worker",
		start: func(ctx context.Context) error {
			if deps == nil || deps.cfg == nil {
				return nil
			}
			var workerCfg config.WorkerConfig
			if deps.cfg.Config != nil {
				workerCfg = deps.cfg.Config.Worker
			}
			return RunWorker(ctx, WorkerConfig{
				DB:              deps.cfg.DB,
				Logger:          deps.logger,
				Lease:           workerCfg.JobLease,
				Concurrency:     workerCfg.Concurrency,
				Mailer:          deps.cfg.Services.Mailer,
				Reminders:       deps.cfg.Services.Reminders,
				Analytics:       deps.cfg.Services.Analytics,
				Metrics:         deps.cfg.Services.Observability.MetricsSink,
				FailureNotifier: deps.cfg.Services.Observability.FailureNotifier,
			})
		},
	}
}

func newSchedulerBackgroundService(deps *serviceStartupDeps) backgroundService {
	return backgroundService{
		mode: config.ServiceModeScheduler,
		name: "scheduler",
		start: func(ctx context.Context) error {
			if deps == nil || deps.cfg == nil {
				return nil
			}
			var schedulerCfg config.SchedulerConfig
			if deps.cfg.Config != nil {
				schedulerCfg = deps.cfg.Config.Scheduler
			}
			return RunScheduler(ctx, SchedulerConfig{
				DB:      deps.cfg.DB,
				Logger:  deps.logger,
				Config:  schedulerCfg,
				Tasks:   scheduledTaskDefaults(deps.cfg.Config),
				Metrics: deps.cfg.Services.Observability.MetricsSink,
			})
		},
	}
}

func newReaperBackgroundService(deps *serviceStartupDeps) backgroundService {
	return backgroundService{
		mode: config.ServiceModeReaper,
		name: "reaper",
		start: func(ctx context.Context) error {
			if deps == nil || deps.cfg == nil {
				return nil
			}
			var reaperCfg config.ReaperConfig
			var rawRetention time.Duration
			if deps.cfg.Config != nil {
				reaperCfg = deps.cfg.Config.Reaper
				rawRetention = deps.cfg.Config.Analytics.RawRetention
			}
			return RunReaper(ctx, ReaperConfig{
				DB:           deps.cfg.DB,
				Logger:       deps.logger,
				Config:       reaperCfg,
				RawRetention: rawRetention,
				Metrics:      deps.cfg.Services.Observability.MetricsSink,
			})
		},
	}
}

func buildBackgroundServices(deps *serviceStartupDeps) []backgroundService {
	if deps == nil {
		return nil
	}
	return []backgroundService{
		newWorkerBackgroundService(deps),
		newSchedulerBackgroundService(deps),
		newReaperBackgroundService(deps),
	}
}

// ServiceStartupResult holds the results of starting all services.
type ServiceStartupResult struct {
	HTTPServer *http.Server
	Background []backgroundServiceHandle
}

// startServices starts all enabled services and returns their completion channels.
func startServices(deps *serviceStartupDeps) (ServiceStartupResult, error) {
	httpServer, err := startHTTPServerIfEnabled(deps)
	if err != nil {
		return ServiceStartupResult{}, err
	}
	return ServiceStartupResult{
		HTTPServer: httpServer,
		Background: startBackgroundServices(deps, buildBackgroundServices(deps)),
	}, nil
}

// RunServicesWithShutdown starts all enabled services and manages their lifecycle.
// This function blocks until a shutdown signal is received or a service fails.
func RunServicesWithShutdown(cfg *ServiceOrchestrationConfig) error {
	if cfg == nil {
		return errors.New("service orchestration config is required")
	}
	ctx := context.Background()
	serviceCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	if cfg.Config == nil {
		return errors.New("service orchestration config missing AppConfig")
	}

	// Determine which services are enabled
	enabledServices, err := cfg.Config.GetEnabledServices()
	if err != nil {
		return fmt.Errorf("determine enabled services: %w", err)
	}
	errCh := make(chan error, errorChannelBufferSize(enabledServices))

	// Start all enabled services
	result, err := startServices(&serviceStartupDeps{
		ctx:             serviceCtx,
		cfg:             cfg,
		logger:          logger,
		enabledServices: enabledServices,
		errCh:           errCh,
	})
	if err != nil {
		return fmt.Errorf("start services: %w", err)
	}

	// Wait for shutdown signal or error
	return waitForShutdown(shutdownConfig{
		ctx:         serviceCtx,
		cancel:      cancel,
		errCh:       errCh,
		httpServer:  result.HTTPServer,
		jobService:  cfg.Services.Jobs,
		logger:      logger,
		backgrounds: result.Background,
	})
}

func errorChannelCapacity(enabled map[config.ServiceMode]bool) int {
	modes := []config.ServiceMode{
		config.ServiceModeHTTP,
		config.ServiceModeWorker,
		config.ServiceModeScheduler,
		config.ServiceModeReaper,
	}

	count := 0
	for _, mode := range modes {
		if enabled[mode] {
			count++
		}
	}
	return count
}

func errorChannelBufferSize(enabled map[config.ServiceMode]bool) int {
	size := errorChannelCapacity(enabled) + 1
	if size < 1 {
		return 1
	}
	return size
}

// shutdownConfig contains dependencies for graceful shutdown.
type shutdownConfig struct {
	ctx         context.Context
	cancel      context.CancelFunc
	errCh       <-chan error
	httpServer  *http.Server
	jobService  *service.JobService
	logger      *slog.Logger
	backgrounds []backgroundServiceHandle
}

// waitForShutdown waits for shutdown signal or service error.
func waitForShutdown(cfg shutdownConfig) error {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case <-quit:
		cfg.logger.Info("shutting down services...")
		cfg.cancel() // Cancel service context before waiting
		return gracefulStop(cfg)
	case err := <-cfg.errCh:
		cfg.logger.Error("service error", "error", err)
		cfg.cancel() // Cancel service context before waiting
		if stopErr := gracefulStop(cfg); stopErr != nil {
			cfg.logger.Error("graceful stop failed", "error", stopErr)
		}
		return err
	}
}

// gracefulStop attempts to gracefully stop all services.
func gracefulStop(cfg shutdownConfig) error {
	// Gracefully stop HTTP server if running
	if cfg.httpServer != nil {
		// Create a timeout context for HTTP shutdown
		shutdownCtx, cancel := context.WithTimeout(cfg.ctx, shutdownWaitTimeout)
		defer cancel()

		if err := ShutdownHTTPServer(ShutdownConfig{
			Context:    shutdownCtx,
			Server:     cfg.httpServer,
			JobService: cfg.jobService,
			Logger:     cfg.logger,
		}); err != nil {
			return err
		}
	}

	// Wait for background services to finish
	for _, svc := range cfg.backgrounds {
		waitForService(svc.done, svc.name, cfg.logger)
	}

	return nil
}

// waitForService waits for a service to finish with timeout.
func waitForService(done <-chan struct{}, name string, logger *slog.Logger) {
	if done == nil {
		return
	}
	select {
	case <-done:
		logger.Info(name + " stopped")
	case <-time.After(shutdownWaitTimeout):
		logger.Warn("timeout waiting for " + name + " to stop")
	}
}
