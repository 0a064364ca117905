package mocks

import (
	"sync"

	"gitlab.com/timkado/api/site-freshness-service/internal/adapters/config"
)

// MockConfigProvider implements config.Provider for tests
type MockConfigProvider struct {
	mu     sync.RWMutex
	config *config.Config
}

// NewMockConfigProvider creates a mock config provider with test settings
func NewMockConfigProvider() *MockConfigProvider {
	cfg := &config.Config{
		Server: config.ServerConfig{
			HTTPPort:   0,
			GRPCPort:   0,
			InstanceID: "test-instance",
		},
		Storage: config.StorageConfig{SQLitePath: ":memory:"},
		NATS:    config.NATSConfig{URL: "nats://mock-nats:4222", SubjectPrefix: "test"},
		Redis:   config.RedisConfig{Address: "mock-redis:6379", ChannelPrefix: "test"},
		Log:     config.LogConfig{Level: "error"},
		Auth:    config.AuthConfig{AdminAPIKey: "test-admin-key"},
		App: config.AppConfig{
			ServiceName:            "site-freshness-service-test",
			Version:                "test",
			ShutdownTimeoutSeconds: 1,
			WSPingIntervalSeconds:  1,
		},
	}
	config.ApplyDefaults(cfg)
	return &MockConfigProvider{config: cfg}
}

// Get implements config.Provider
func (m *MockConfigProvider) Get() *config.Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.config
}

// UpdateConfig allows updating config during tests
func (m *MockConfigProvider) UpdateConfig(cfg *config.Config) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.config = cfg
}
