package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"cloud.google.com/go/pubsub"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/termitepreston/wigvana/internal/di"
	"github.com/termitepreston/wigvana/internal/handlers"
	"github.com/termitepreston/wigvana/internal/platform/auth"
	"github.com/termitepreston/wigvana/internal/platform/carttoken"
	"github.com/termitepreston/wigvana/internal/platform/config"
	"github.com/termitepreston/wigvana/internal/platform/events"
	pfirestore "github.com/termitepreston/wigvana/internal/platform/firestore"
	"github.com/termitepreston/wigvana/internal/platform/idempotency"
	"github.com/termitepreston/wigvana/internal/platform/observability"
	"github.com/termitepreston/wigvana/internal/platform/secrets"
	"github.com/termitepreston/wigvana/internal/repositories"
	firestoreRepo "github.com/termitepreston/wigvana/internal/repositories/firestore"
	"github.com/termitepreston/wigvana/internal/repositories/memory"
	"github.com/termitepreston/wigvana/internal/services"
)

func main() {
	ctx := context.Background()
	startedAt := time.Now().UTC()

	baseLogger, err := observability.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialise logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = baseLogger.Sync()
	}()

	logger := baseLogger.Named("api")
	ctx = observability.WithLogger(ctx, logger)

	envValues, err := config.EnvironmentValues()
	if err != nil {
		logger.Fatal("failed to read environment values", zap.Error(err))
	}

	fetcher, err := newSecretFetcher(ctx, logger, envValues)
	if err != nil {
		logger.Fatal("failed to initialise secret fetcher", zap.Error(err))
	}
	defer func() {
		if err := fetcher.Close(); err != nil {
			logger.Warn("secret fetcher close error", zap.Error(err))
		}
	}()

	cfg, err := config.Load(ctx,
		config.WithSecretResolver(config.SecretResolverFunc(fetcher.Resolve)),
		config.WithRequiredSecrets(requiredSecretNames(envValues)...),
	)
	if err != nil {
		var missing *config.MissingSecretsError
		if errors.As(err, &missing) {
			logger.Fatal("missing required secrets", zap.Strings("secrets", missing.RedactedNames()))
		}
		logger.Fatal("failed to load configuration", zap.Error(err))
	}

	buildInfo := buildInfoFromEnv(envValues, cfg, startedAt)

	registry, err := newRegistry(cfg, logger)
	if err != nil {
		logger.Fatal("failed to initialise repositories", zap.Error(err))
	}

	publisher, err := newEventPublisher(ctx, cfg, logger.Named("events"))
	if err != nil {
		logger.Fatal("failed to initialise event publisher", zap.Error(err))
	}
	defer func() {
		if err := publisher.Close(); err != nil {
			logger.Warn("event publisher close error", zap.Error(err))
		}
	}()

	var redisClient *redis.Client
	if cfg.Idempotency.Backend == config.IdempotencyBackendRedis {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Warn("redis close error", zap.Error(err))
			}
		}()
	}

	container, err := di.NewContainer(ctx, cfg, registry,
		di.WithLogger(logger.Named("services")),
		di.WithEventPublisher(publisher),
		di.WithBuildInfo(buildInfo),
		di.WithHealthProbes(healthProbes(cfg, publisher, redisClient, fetcher)...),
	)
	if err != nil {
		logger.Fatal("failed to initialise services", zap.Error(err))
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := container.Close(closeCtx); err != nil {
			logger.Warn("repository close error", zap.Error(err))
		}
	}()

	var idempotencyStore idempotency.Store
	if redisClient != nil {
		idempotencyStore = idempotency.NewRedisStore(redisClient)
	} else {
		idempotencyStore = idempotency.NewMemoryStore()
	}
	idempotencyOptions := []idempotency.MiddlewareOption{
		idempotency.WithHeader(cfg.Idempotency.Header),
		idempotency.WithTTL(cfg.Idempotency.TTL),
		idempotency.WithOptionalKey(),
		idempotency.WithLogger(observability.NewPrintfAdapter(logger.Named("idempotency"))),
	}
	orderIdempotency := idempotency.Middleware(idempotencyStore, idempotencyOptions...)
	cartIdempotency := idempotency.Middleware(idempotencyStore, append(idempotencyOptions,
		idempotency.WithScope(idempotency.ClientScope(handlers.CartSessionHeader)))...)

	cleanupCtx, cleanupCancel := context.WithCancel(context.Background())
	var cleanupWG sync.WaitGroup
	var cleanupTicker *time.Ticker
	if cfg.Idempotency.CleanupInterval > 0 && redisClient == nil {
		cleanupTicker = time.NewTicker(cfg.Idempotency.CleanupInterval)
		cleanupWG.Add(1)
		go func() {
			defer cleanupWG.Done()
			cleanupLogger := logger.Named("idempotency")
			for {
				select {
				case <-cleanupTicker.C:
					runCtx, cancel := context.WithTimeout(cleanupCtx, time.Minute)
					removed, err := idempotencyStore.CleanupExpired(runCtx, time.Now().UTC(), cfg.Idempotency.CleanupBatchSize)
					cancel()
					if err != nil {
						cleanupLogger.Error("idempotency cleanup error", zap.Error(err))
						continue
					}
					if removed > 0 {
						cleanupLogger.Info("idempotency cleanup removed records", zap.Int("count", removed))
					}
				case <-cleanupCtx.Done():
					return
				}
			}
		}()
	}

	var verifierOpts []auth.FirebaseOption
	if cfg.Firebase.CheckRevoked {
		verifierOpts = append(verifierOpts, auth.WithRevocationCheck())
	}
	firebaseVerifier, err := auth.NewFirebaseVerifier(ctx, cfg.Firebase, verifierOpts...)
	if err != nil {
		logger.Fatal("failed to initialise firebase verifier", zap.Error(err))
	}
	authenticator := auth.NewAuthenticator(firebaseVerifier)

	cartTokens, err := carttoken.NewIssuer(cfg.CartToken)
	if err != nil {
		logger.Fatal("failed to initialise cart token issuer", zap.Error(err))
	}

	svc := container.Services
	cartHandlers := handlers.NewCartHandlers(authenticator, svc.Cart, cartTokens,
		handlers.WithCartIdempotency(cartIdempotency),
	)
	orderHandlers := handlers.NewOrderHandlers(authenticator, svc.Placement, svc.Orders,
		handlers.WithOrderIdempotency(orderIdempotency),
	)
	storeHandlers := handlers.NewStoreOrderHandlers(authenticator, svc.Orders)
	adminHandlers := handlers.NewAdminOrderHandlers(authenticator, svc.Orders)

	projectID := traceProjectID(cfg)
	middlewares := []func(http.Handler) http.Handler{
		observability.InjectLoggerMiddleware(logger.Named("http")),
		observability.TraceMiddleware(projectID),
		observability.RecoveryMiddleware(logger.Named("http")),
		observability.RequestLoggerMiddleware(projectID),
	}

	healthHandlers := handlers.NewHealthHandlers(
		handlers.WithHealthBuildInfo(buildInfo),
		handlers.WithHealthSystemService(svc.System),
	)

	router := handlers.NewRouter(
		handlers.WithMiddlewares(middlewares...),
		handlers.WithHealthHandlers(healthHandlers),
		handlers.WithCartRoutes(cartHandlers.AnonymousRoutes),
		handlers.WithMeRoutes(cartHandlers.MeRoutes, orderHandlers.Routes, storeHandlers.Routes),
		handlers.WithAdminRoutes(adminHandlers.Routes),
	)
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	serverLogger := logger.Named("http").With(
		zap.String("addr", server.Addr),
		zap.String("storage", cfg.Storage.Backend),
		zap.String("events", cfg.Events.Backend),
		zap.String("idempotency", cfg.Idempotency.Backend),
	)
	go func() {
		serverLogger.Info("commerce api listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverLogger.Fatal("http server error", zap.Error(err))
		}
	}()

	<-shutdown
	logger.Info("shutdown signal received; draining requests")

	if cleanupTicker != nil {
		cleanupTicker.Stop()
	}
	cleanupCancel()
	cleanupWG.Wait()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}

func newRegistry(cfg config.Config, logger *zap.Logger) (repositories.Registry, error) {
	switch cfg.Storage.Backend {
	case config.StorageBackendMemory:
		store := memory.NewStore()
		if cfg.Storage.SeedDemo {
			memory.SeedDemoCatalog(store, cfg.Storage.DemoUser)
			logger.Info("seeded in-memory demo catalog", zap.String("demoUser", cfg.Storage.DemoUser))
		}
		return store, nil
	case config.StorageBackendFirestore:
		reg, err := firestoreRepo.NewRegistry(pfirestore.NewProvider(cfg.Firestore))
		if err != nil {
			return nil, err
		}
		return reg, nil
	default:
		return nil, fmt.Errorf("unsupported storage backend %q", cfg.Storage.Backend)
	}
}

// newEventPublisher selects the transport and wraps it in a circuit breaker. Closing the result also
// closes the pubsub client.
func newEventPublisher(ctx context.Context, cfg config.Config, logger *zap.Logger) (*events.BreakerPublisher, error) {
	var transport events.Publisher
	switch cfg.Events.Backend {
	case config.EventsBackendPubSub:
		client, err := pubsub.NewClient(ctx, cfg.Events.ProjectID)
		if err != nil {
			return nil, fmt.Errorf("pubsub client: %w", err)
		}
		pub, err := events.NewPubSubPublisher(client.Topic(cfg.Events.Topic))
		if err != nil {
			_ = client.Close()
			return nil, err
		}
		transport = closeBoth{Publisher: pub, client: client}
	case config.EventsBackendKafka:
		pub, err := events.NewKafkaPublisher(cfg.Events.KafkaBrokers, cfg.Events.Topic)
		if err != nil {
			return nil, err
		}
		transport = pub
	case config.EventsBackendLog:
		transport = events.NewLogPublisher(logger)
	default:
		return nil, fmt.Errorf("unsupported events backend %q", cfg.Events.Backend)
	}

	maxFailures := cfg.Events.BreakerMaxFailures
	if maxFailures < 0 {
		maxFailures = 0
	}
	return events.NewBreakerPublisher(transport, events.BreakerSettings{
		Name:        "order-events-" + cfg.Events.Backend,
		MaxFailures: uint32(maxFailures),
		OpenTimeout: cfg.Events.BreakerOpenTimeout,
		Timeout:     cfg.Events.PublishTimeout,
		Logger:      logger,
	})
}

type closeBoth struct {
	events.Publisher
	client *pubsub.Client
}

func (c closeBoth) Close() error {
	return errors.Join(c.Publisher.Close(), c.client.Close())
}

func healthProbes(cfg config.Config, publisher *events.BreakerPublisher, redisClient *redis.Client, fetcher *secrets.Fetcher) []repositories.Probe {
	probes := make([]repositories.Probe, 0, 3)
	if publisher != nil {
		probes = append(probes, repositories.Probe{
			Name: "events",
			Check: func(context.Context) error {
				if state := publisher.State(); state == "open" {
					return fmt.Errorf("%s publisher breaker %s", cfg.Events.Backend, state)
				}
				return nil
			},
		})
	}
	if redisClient != nil {
		probes = append(probes, repositories.Probe{
			Name:    "redis",
			Timeout: time.Second,
			Check: func(ctx context.Context) error {
				return redisClient.Ping(ctx).Err()
			},
		})
	}
	if fetcher != nil && strings.TrimSpace(cfg.Firebase.ProjectID) != "" {
		const secretHealthReference = "secret://system-healthz"
		probes = append(probes, repositories.Probe{
			Name:    "secretManager",
			Timeout: time.Second,
			Check: func(ctx context.Context) error {
				_, err := fetcher.Resolve(ctx, secretHealthReference)
				if err == nil {
					return nil
				}
				if st, ok := status.FromError(errors.Unwrap(err)); ok && st.Code() == codes.NotFound {
					return nil
				}
				return err
			},
		})
	}
	return probes
}

func buildInfoFromEnv(env map[string]string, cfg config.Config, started time.Time) services.BuildInfo {
	version := strings.TrimSpace(env["API_BUILD_VERSION"])
	if version == "" {
		version = "dev"
	}
	commit := strings.TrimSpace(env["API_BUILD_COMMIT_SHA"])
	if commit == "" {
		commit = "unknown"
	}
	environment := strings.TrimSpace(cfg.Server.Environment)
	if environment == "" {
		environment = "local"
	}
	return services.BuildInfo{
		Version:     version,
		CommitSHA:   commit,
		Environment: environment,
		StartedAt:   started,
	}
}

func traceProjectID(cfg config.Config) string {
	if id := strings.TrimSpace(cfg.Firestore.ProjectID); id != "" {
		return id
	}
	return strings.TrimSpace(cfg.Firebase.ProjectID)
}

func newSecretFetcher(ctx context.Context, logger *zap.Logger, env map[string]string) (*secrets.Fetcher, error) {
	lookup := func(key string) string {
		if env == nil {
			return ""
		}
		return strings.TrimSpace(env[key])
	}

	project := lookup("API_SECRET_PROJECT_ID")
	if project == "" {
		project = lookup("API_FIREBASE_PROJECT_ID")
	}
	fallbackPath := lookup("API_SECRET_FALLBACK_FILE")
	if fallbackPath == "" {
		fallbackPath = ".secrets.local"
	}

	opts := []secrets.Option{
		secrets.WithLogger(logger.Named("secrets")),
		secrets.WithFallbackFile(fallbackPath),
	}
	if project != "" {
		opts = append(opts, secrets.WithProject(project))
	}
	if raw := lookup("API_SECRET_FETCH_TIMEOUT"); raw != "" {
		if timeout, err := time.ParseDuration(raw); err == nil {
			opts = append(opts, secrets.WithTimeout(timeout))
		}
	}
	return secrets.NewFetcher(ctx, opts...)
}

// requiredSecretNames lists the config fields that must resolve to a non-empty value. The redis
// password is only demanded when the environment points it at a secret reference.
func requiredSecretNames(env map[string]string) []string {
	required := []string{"CartToken.Secret"}
	if env != nil && isSecretRef(env["API_REDIS_PASSWORD"]) {
		required = append(required, "Redis.Password")
	}
	return required
}

func isSecretRef(value string) bool {
	value = strings.TrimSpace(value)
	return strings.HasPrefix(value, "secret://") || strings.HasPrefix(value, "sm://")
}
