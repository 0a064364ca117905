package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"

	"gitlab.com/timkado/api/site-freshness-service/internal/adapters/config"
	"gitlab.com/timkado/api/site-freshness-service/internal/adapters/metrics"
	"gitlab.com/timkado/api/site-freshness-service/internal/domain"
	"gitlab.com/timkado/api/site-freshness-service/pkg/changekeys"
	"gitlab.com/timkado/api/site-freshness-service/pkg/safego"
)

// ChangeFeedPubSubAdapter carries row change notifications over Redis pub/sub.
// It implements domain.ChangeSubscriber and domain.ChangePublisher.
type ChangeFeedPubSubAdapter struct {
	redisClient *redis.Client
	logger      domain.Logger
	prefix      string
}

// NewChangeFeedPubSubAdapter creates a new adapter for Redis pub/sub.
func NewChangeFeedPubSubAdapter(redisClient *redis.Client, channelPrefix string, logger domain.Logger) *ChangeFeedPubSubAdapter {
	return &ChangeFeedPubSubAdapter{
		redisClient: redisClient,
		logger:      logger,
		prefix:      channelPrefix,
	}
}

// Ping reports whether Redis answers.
func (a *ChangeFeedPubSubAdapter) Ping(ctx context.Context) error {
	return a.redisClient.Ping(ctx).Err()
}

// PublishChange implements domain.ChangePublisher.
func (a *ChangeFeedPubSubAdapter) PublishChange(ctx context.Context, event domain.ChangeEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal change event: %w", err)
	}
	channel := changekeys.RedisChannel(a.prefix, event.Section)
	if err := a.redisClient.Publish(ctx, channel, string(payload)).Err(); err != nil {
		a.logger.Error(ctx, "Failed to publish change event to Redis", "channel", channel, "error", err.Error())
		return fmt.Errorf("failed to publish to Redis channel '%s': %w", channel, err)
	}
	return nil
}

// SubscribeChanges implements domain.ChangeSubscriber. The subscription is
// confirmed before returning; go-redis resubscribes on its own after a
// dropped connection.
func (a *ChangeFeedPubSubAdapter) SubscribeChanges(ctx context.Context, section domain.Section, handler domain.ChangeHandler) (domain.ChangeSubscription, error) {
	channel := changekeys.RedisChannel(a.prefix, section)

	pubsub := a.redisClient.Subscribe(ctx, channel)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe to channel '%s': %w", channel, err)
	}
	a.logger.Info(ctx, "Subscribed to Redis change channel", "channel", channel)

	sub := &changeSubscription{pubsub: pubsub, section: section}
	ch := pubsub.Channel()
	safego.Execute(ctx, a.logger, "RedisChangeFeed:"+string(section), func() {
		for msg := range ch {
			metrics.IncrementChangeEventReceived(string(section), config.ChangeDriverRedis)
			handler(context.Background(), domain.DecodeChangeEvent([]byte(msg.Payload), section))
		}
		a.logger.Debug(context.Background(), "Redis change channel closed", "channel", channel)
	})
	return sub, nil
}

type changeSubscription struct {
	pubsub  *redis.PubSub
	section domain.Section
	once    sync.Once
	err     error
}

func (s *changeSubscription) Unsubscribe() error {
	s.once.Do(func() {
		s.err = s.pubsub.Close()
	})
	return s.err
}

func (s *changeSubscription) Section() domain.Section {
	return s.section
}

// NewClient connects to Redis and verifies the connection. The returned
// cleanup closes the client.
func NewClient(ctx context.Context, cfgProvider config.Provider, appLogger domain.Logger) (*redis.Client, func(), error) {
	redisCfg := cfgProvider.Get().Redis
	client := redis.NewClient(&redis.Options{
		Addr:     redisCfg.Address,
		Password: redisCfg.Password,
		DB:       redisCfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		appLogger.Error(ctx, "Failed to connect to Redis", "error", err.Error(), "address", redisCfg.Address)
		_ = client.Close()
		return nil, nil, fmt.Errorf("failed to connect to Redis at %s: %w", redisCfg.Address, err)
	}
	cleanup := func() {
		if err := client.Close(); err != nil {
			appLogger.Error(context.Background(), "Error closing Redis client", "error", err.Error())
			return
		}
		appLogger.Info(context.Background(), "Redis connection closed")
	}
	appLogger.Info(ctx, "Successfully connected to Redis", "address", redisCfg.Address)
	return client, cleanup, nil
}
