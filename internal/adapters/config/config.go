package config

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime/debug"
	"strings"
	"sync/atomic"
	"syscall"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const envPrefix = "SITE_FRESHNESS"

// Change feed drivers.
const (
	ChangeDriverNATS  = "nats"
	ChangeDriverRedis = "redis"
)

// ServerConfig holds server-related configurations.
// Note: Fields should be exported (start with uppercase) to be unmarshalled by Viper.
type ServerConfig struct {
	HTTPPort   int    `mapstructure:"http_port"`
	GRPCPort   int    `mapstructure:"grpc_port"`
	InstanceID string `mapstructure:"instance_id"` // Used in NATS connection names, expected from ENV
}

// StorageConfig points at the backend database.
type StorageConfig struct {
	SQLitePath string `mapstructure:"sqlite_path"`
}

// NATSConfig holds NATS-related configurations.
type NATSConfig struct {
	URL           string `mapstructure:"url"`
	SubjectPrefix string `mapstructure:"subject_prefix"`
}

// RedisConfig holds Redis-related configurations.
type RedisConfig struct {
	Address       string `mapstructure:"address"`
	Password      string `mapstructure:"password"` // Optional
	DB            int    `mapstructure:"db"`       // Optional
	ChannelPrefix string `mapstructure:"channel_prefix"`
}

// LogConfig holds logging-related configurations.
type LogConfig struct {
	Level string `mapstructure:"level"`
}

// AuthConfig holds authentication-related configurations.
type AuthConfig struct {
	AdminAPIKey string `mapstructure:"admin_api_key"` // Should primarily come from ENV
}

// CacheConfig holds query cache settings.
type CacheConfig struct {
	DefaultTTLMinutes int `mapstructure:"default_ttl_minutes"`
}

// UnreadConfig holds the unread badge aggregator settings.
type UnreadConfig struct {
	ChangeDriver             string            `mapstructure:"change_driver"`
	Routes                   map[string]string `mapstructure:"routes"` // admin path -> section
	QueryTimeoutSeconds      int               `mapstructure:"query_timeout_seconds"`
	SubscribeRetryMaxSeconds int               `mapstructure:"subscribe_retry_max_seconds"`
}

// AppConfig holds application-specific configurations.
type AppConfig struct {
	ServiceName            string `mapstructure:"service_name"`
	Version                string `mapstructure:"version"`
	ShutdownTimeoutSeconds int    `mapstructure:"shutdown_timeout_seconds"`
	WriteTimeoutSeconds    int    `mapstructure:"write_timeout_seconds"`
	WSPingIntervalSeconds  int    `mapstructure:"ws_ping_interval_seconds"`
}

// Config holds all configuration for the application.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Storage StorageConfig `mapstructure:"storage"`
	NATS    NATSConfig    `mapstructure:"nats"`
	Redis   RedisConfig   `mapstructure:"redis"`
	Log     LogConfig     `mapstructure:"log"`
	Auth    AuthConfig    `mapstructure:"auth"`
	Cache   CacheConfig   `mapstructure:"cache"`
	Unread  UnreadConfig  `mapstructure:"unread"`
	App     AppConfig     `mapstructure:"app"`
}

// DefaultRoutes is the admin console path for every unread section.
func DefaultRoutes() map[string]string {
	return map[string]string{
		"/admin/messages":             "messages",
		"/admin/vacancy-applications": "vacancy_applications",
		"/admin/tender-submissions":   "tender_submissions",
		"/admin/commercial-offers":    "commercial_offers",
	}
}

// ApplyDefaults fills zero values with the service defaults.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.HTTPPort == 0 {
		cfg.Server.HTTPPort = 8080
	}
	if cfg.Storage.SQLitePath == "" {
		cfg.Storage.SQLitePath = "site.db"
	}
	if cfg.NATS.SubjectPrefix == "" {
		cfg.NATS.SubjectPrefix = "site"
	}
	if cfg.Redis.ChannelPrefix == "" {
		cfg.Redis.ChannelPrefix = "site"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Cache.DefaultTTLMinutes <= 0 {
		cfg.Cache.DefaultTTLMinutes = 60
	}
	if cfg.Unread.ChangeDriver == "" {
		cfg.Unread.ChangeDriver = ChangeDriverNATS
	}
	if len(cfg.Unread.Routes) == 0 {
		cfg.Unread.Routes = DefaultRoutes()
	}
	if cfg.Unread.QueryTimeoutSeconds <= 0 {
		cfg.Unread.QueryTimeoutSeconds = 10
	}
	if cfg.Unread.SubscribeRetryMaxSeconds <= 0 {
		cfg.Unread.SubscribeRetryMaxSeconds = 300
	}
	if cfg.App.ServiceName == "" {
		cfg.App.ServiceName = "site-freshness-service"
	}
	if cfg.App.ShutdownTimeoutSeconds <= 0 {
		cfg.App.ShutdownTimeoutSeconds = 30
	}
	if cfg.App.WSPingIntervalSeconds <= 0 {
		cfg.App.WSPingIntervalSeconds = 30
	}
}

// Provider defines an interface for accessing application configuration.
// This allows for easy mocking in tests and decouples the app from Viper.
type Provider interface {
	Get() *Config
}

// StaticProvider serves a fixed configuration. Used by tests and tooling.
type StaticProvider struct {
	Config *Config
}

// Get returns the wrapped configuration.
func (p StaticProvider) Get() *Config {
	return p.Config
}

// viperProvider implements the Provider interface using Viper.
type viperProvider struct {
	config atomic.Pointer[Config]
	logger *zap.Logger // Using zap.Logger directly for config internal logging, not domain.Logger to avoid circular deps
}

// NewViperProvider creates and initializes a new configuration provider using Viper.
// It loads configuration from file and environment variables, and sets up hot-reloading.
// appCtx is the application lifecycle context used for graceful shutdown of background tasks.
func NewViperProvider(appCtx context.Context, logger *zap.Logger) (Provider, error) {
	v := viper.New()

	v.SetConfigName(getEnv("VIPER_CONFIG_NAME", "config"))
	v.SetConfigType("yaml")
	v.AddConfigPath(os.Getenv("VIPER_CONFIG_PATH")) // e.g., "/app/config" or "./config" for local dev
	v.AddConfigPath(".")

	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_")) // e.g., server.http_port becomes SITE_FRESHNESS_SERVER_HTTP_PORT

	// AutomaticEnv only applies to keys viper already knows about.
	for _, key := range []string{
		"server.http_port", "server.grpc_port", "server.instance_id",
		"storage.sqlite_path",
		"nats.url", "nats.subject_prefix",
		"redis.address", "redis.password", "redis.db", "redis.channel_prefix",
		"log.level", "auth.admin_api_key", "cache.default_ttl_minutes",
		"unread.change_driver", "unread.query_timeout_seconds", "unread.subscribe_retry_max_seconds",
		"app.service_name", "app.version", "app.shutdown_timeout_seconds",
		"app.write_timeout_seconds", "app.ws_ping_interval_seconds",
	} {
		_ = v.BindEnv(key)
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			logger.Warn("Config file not found; relying on defaults and environment variables", zap.Error(err))
		} else {
			logger.Error("Failed to read config file", zap.Error(err))
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg, err := unmarshal(v)
	if err != nil {
		logger.Error("Failed to unmarshal config", zap.Error(err))
		return nil, err
	}

	p := &viperProvider{logger: logger}
	p.config.Store(cfg)

	// SIGHUP reloads the configuration in place.
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGHUP)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				p.logger.Error("Panic recovered in SIGHUP handler goroutine",
					zap.String("goroutine_name", "SIGHUPConfigReloader"),
					zap.Any("panic_info", r),
					zap.String("stacktrace", string(debug.Stack())),
				)
			}
		}()
		defer signal.Stop(sigChan)
		for {
			select {
			case sig := <-sigChan:
				p.logger.Info("SIGHUP received, attempting to reload configuration...", zap.String("signal", sig.String()))
				if err := v.ReadInConfig(); err != nil {
					p.logger.Error("Failed to re-read config file on SIGHUP", zap.Error(err))
					continue
				}
				p.reload(v, "sighup")
			case <-appCtx.Done():
				p.logger.Info("SIGHUPConfigReloader goroutine shutting down due to context cancellation.")
				return
			}
		}
	}()

	if v.ConfigFileUsed() != "" {
		v.WatchConfig()
		v.OnConfigChange(func(e fsnotify.Event) {
			defer func() {
				if r := recover(); r != nil {
					p.logger.Error("Panic recovered in OnConfigChange callback",
						zap.String("event_name", e.Name),
						zap.String("event_op", e.Op.String()),
						zap.Any("panic_info", r),
						zap.String("stacktrace", string(debug.Stack())),
					)
				}
			}()
			p.logger.Info("Config file changed", zap.String("name", e.Name), zap.String("op", e.Op.String()))
			p.reload(v, "file_change")
		})
	}

	p.logger.Info("Configuration loaded successfully", zap.String("config_file_used", v.ConfigFileUsed()))
	return p, nil
}

func unmarshal(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	ApplyDefaults(cfg)
	return cfg, nil
}

func (p *viperProvider) reload(v *viper.Viper, trigger string) {
	newCfg, err := unmarshal(v)
	if err != nil {
		p.logger.Error("Failed to unmarshal reloaded config", zap.String("trigger", trigger), zap.Error(err))
		return
	}
	p.config.Store(newCfg)
	p.logger.Info("Configuration reloaded successfully", zap.String("trigger", trigger))
}

// Get returns the current configuration.
func (p *viperProvider) Get() *Config {
	return p.config.Load()
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}
