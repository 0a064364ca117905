package bootstrap

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/google/wire"
	"go.uber.org/zap"

	"gitlab.com/timkado/api/site-freshness-service/internal/adapters/config"
	appgrpc "gitlab.com/timkado/api/site-freshness-service/internal/adapters/grpc"
	apphttp "gitlab.com/timkado/api/site-freshness-service/internal/adapters/http"
	"gitlab.com/timkado/api/site-freshness-service/internal/adapters/logger"
	appnats "gitlab.com/timkado/api/site-freshness-service/internal/adapters/nats"
	appredis "gitlab.com/timkado/api/site-freshness-service/internal/adapters/redis"
	"gitlab.com/timkado/api/site-freshness-service/internal/adapters/sqlite"
	wsadapter "gitlab.com/timkado/api/site-freshness-service/internal/adapters/websocket"
	"gitlab.com/timkado/api/site-freshness-service/internal/application"
	"gitlab.com/timkado/api/site-freshness-service/internal/domain"
)

// Distinct types so Wire can tell the handlers apart.
type BadgeSocketHandler http.Handler
type RootHandler http.Handler

// InitialZapLoggerProvider provides a basic *zap.Logger instance, primarily for config initialization.
// It returns the logger, a cleanup function (for syncing), and an error if creation fails.
func InitialZapLoggerProvider() (*zap.Logger, func(), error) {
	logger, err := zap.NewProduction()
	if err != nil {
		logger, err = zap.NewDevelopment()
		if err != nil {
			// NewExample never fails.
			logger = zap.NewExample()
			fmt.Fprintf(os.Stderr, "Failed to create initial zap logger (production and development failed, falling back to example): %v\n", err)
		}
	}

	cleanup := func() {
		if syncErr := logger.Sync(); syncErr != nil {
			fmt.Fprintf(os.Stderr, "Failed to sync initial zap logger: %v\n", syncErr)
		}
	}
	return logger, cleanup, nil
}

// App holds the long-running parts of the service.
type App struct {
	configProvider config.Provider
	logger         domain.Logger
	httpServer     *http.Server
	grpcServer     *appgrpc.Server
	aggregator     *application.UnreadAggregator
}

// NewApp is the constructor for App, also for Wire.
func NewApp(
	cfgProvider config.Provider,
	appLogger domain.Logger,
	server *http.Server,
	grpcSrv *appgrpc.Server,
	aggregator *application.UnreadAggregator,
) (*App, func(), error) {
	app := &App{
		configProvider: cfgProvider,
		logger:         appLogger,
		httpServer:     server,
		grpcServer:     grpcSrv,
		aggregator:     aggregator,
	}

	cleanup := func() {
		app.logger.Info(context.Background(), "Running app cleanup...")
		if app.aggregator != nil {
			app.aggregator.Stop()
		}
		if app.grpcServer != nil {
			app.grpcServer.GracefulStop()
		}
	}
	return app, cleanup, nil
}

// ConfigProvider provides the application configuration. appCtx bounds the
// lifetime of the reload goroutines.
func ConfigProvider(appCtx context.Context, logger *zap.Logger) (config.Provider, error) {
	return config.NewViperProvider(appCtx, logger)
}

// LoggerProvider provides the application logger.
func LoggerProvider(cfgProvider config.Provider) (domain.Logger, error) {
	appCfg := cfgProvider.Get()
	return logger.NewZapAdapter(cfgProvider, appCfg.App.ServiceName)
}

// SQLiteStoreProvider opens the backend database and closes it on cleanup.
func SQLiteStoreProvider(ctx context.Context, cfgProvider config.Provider, appLogger domain.Logger) (*sqlite.Store, func(), error) {
	path := cfgProvider.Get().Storage.SQLitePath
	store, err := sqlite.Open(ctx, path)
	if err != nil {
		appLogger.Error(ctx, "Failed to open sqlite store", "path", path, "error", err.Error())
		return nil, nil, fmt.Errorf("failed to open sqlite store at %s: %w", path, err)
	}
	cleanup := func() {
		if err := store.Close(); err != nil {
			appLogger.Error(context.Background(), "Failed to close sqlite store", "error", err.Error())
			return
		}
		appLogger.Info(context.Background(), "SQLite store closed")
	}
	appLogger.Info(ctx, "SQLite store opened", "path", path)
	return store, cleanup, nil
}

// ChangeFeedProvider connects the change feed selected by unread.change_driver.
func ChangeFeedProvider(ctx context.Context, cfgProvider config.Provider, appLogger domain.Logger) (domain.ChangeFeed, func(), error) {
	cfg := cfgProvider.Get()
	switch cfg.Unread.ChangeDriver {
	case config.ChangeDriverNATS:
		return appnats.NewChangeFeedAdapter(ctx, cfgProvider, appLogger)
	case config.ChangeDriverRedis:
		client, cleanup, err := appredis.NewClient(ctx, cfgProvider, appLogger)
		if err != nil {
			return nil, nil, err
		}
		return appredis.NewChangeFeedPubSubAdapter(client, cfg.Redis.ChannelPrefix, appLogger), cleanup, nil
	default:
		return nil, nil, fmt.Errorf("unknown unread.change_driver %q", cfg.Unread.ChangeDriver)
	}
}

// RouteTableProvider builds the admin route table from config.
func RouteTableProvider(cfgProvider config.Provider) (*application.RouteTable, error) {
	return application.NewRouteTable(cfgProvider.Get().Unread.Routes)
}

// QueryCacheProvider provides the process-wide query cache.
func QueryCacheProvider(cfgProvider config.Provider) *application.QueryCache {
	ttl := time.Duration(cfgProvider.Get().Cache.DefaultTTLMinutes) * time.Minute
	return application.NewQueryCache(application.WithDefaultTTL(ttl))
}

// UnreadStoreProvider announces every mark-read on the change feed so other
// consoles refresh too.
func UnreadStoreProvider(store *sqlite.Store, feed domain.ChangeFeed, appLogger domain.Logger) domain.UnreadStore {
	return application.NewChangeNotifyingUnreadStore(store, feed, appLogger)
}

// UnreadAggregatorProvider provides the unread counter aggregator.
func UnreadAggregatorProvider(
	appLogger domain.Logger,
	cfgProvider config.Provider,
	store domain.UnreadStore,
	feed domain.ChangeFeed,
	routes *application.RouteTable,
) *application.UnreadAggregator {
	cfg := cfgProvider.Get().Unread
	return application.NewUnreadAggregator(appLogger, store, feed, routes, application.AggregatorConfig{
		QueryTimeout:      time.Duration(cfg.QueryTimeoutSeconds) * time.Second,
		SubscribeRetryMax: time.Duration(cfg.SubscribeRetryMaxSeconds) * time.Second,
	})
}

// ContentServiceProvider provides the cached content service.
func ContentServiceProvider(appLogger domain.Logger, store *sqlite.Store, cache *application.QueryCache) *application.ContentService {
	return application.NewContentService(appLogger, store, cache, 0)
}

// SubmissionServiceProvider provides the public form intake service.
func SubmissionServiceProvider(appLogger domain.Logger, store *sqlite.Store, feed domain.ChangeFeed) *application.SubmissionService {
	return application.NewSubmissionService(appLogger, store, feed)
}

// BadgeSocketProvider provides the websocket handler that pushes unread badges.
func BadgeSocketProvider(appLogger domain.Logger, cfgProvider config.Provider, aggregator *application.UnreadAggregator) BadgeSocketHandler {
	return wsadapter.NewBadgeHandler(appLogger, cfgProvider, aggregator)
}

// ReadinessChecksProvider lists the dependencies /ready probes.
func ReadinessChecksProvider(cfgProvider config.Provider, store *sqlite.Store, feed domain.ChangeFeed) map[string]apphttp.ReadinessCheck {
	return map[string]apphttp.ReadinessCheck{
		"sqlite":                             store.Ping,
		cfgProvider.Get().Unread.ChangeDriver: feed.Ping,
	}
}

// RootHandlerProvider assembles the HTTP surface.
func RootHandlerProvider(
	appLogger domain.Logger,
	cfgProvider config.Provider,
	cache *application.QueryCache,
	content *application.ContentService,
	submissions *application.SubmissionService,
	aggregator *application.UnreadAggregator,
	badgeSocket BadgeSocketHandler,
	readiness map[string]apphttp.ReadinessCheck,
) RootHandler {
	return apphttp.NewRouter(apphttp.RouterDeps{
		Logger:      appLogger,
		Config:      cfgProvider,
		Cache:       cache,
		Content:     content,
		Submissions: submissions,
		Unread:      aggregator,
		BadgeSocket: badgeSocket,
		Readiness:   readiness,
	})
}

// HTTPGracefulServerProvider provides a new HTTP server configured for graceful shutdown.
func HTTPGracefulServerProvider(cfgProvider config.Provider, handler RootHandler) *http.Server {
	appCfg := cfgProvider.Get()

	readTimeout := 10 * time.Second
	writeTimeout := 10 * time.Second
	idleTimeout := 60 * time.Second

	if appCfg.App.WriteTimeoutSeconds > 0 {
		writeTimeout = time.Duration(appCfg.App.WriteTimeoutSeconds) * time.Second
	}

	return &http.Server{
		Addr:         fmt.Sprintf(":%d", appCfg.Server.HTTPPort),
		Handler:      handler,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
		IdleTimeout:  idleTimeout,
	}
}

// GRPCServerProvider provides the gRPC health server.
func GRPCServerProvider(appCtx context.Context, appLogger domain.Logger, cfgProvider config.Provider) *appgrpc.Server {
	return appgrpc.NewServer(appCtx, appLogger, cfgProvider)
}

// ProviderSet is the Wire provider set for the entire application.
var ProviderSet = wire.NewSet(
	InitialZapLoggerProvider,
	ConfigProvider,
	LoggerProvider,

	// Infrastructure Adapters
	SQLiteStoreProvider,
	ChangeFeedProvider,

	// Application Services
	RouteTableProvider,
	QueryCacheProvider,
	UnreadStoreProvider,
	UnreadAggregatorProvider,
	ContentServiceProvider,
	SubmissionServiceProvider,

	// Transport
	BadgeSocketProvider,
	ReadinessChecksProvider,
	RootHandlerProvider,
	HTTPGracefulServerProvider,
	GRPCServerProvider,

	NewApp,
)
