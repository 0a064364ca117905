package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go"

	"gitlab.com/timkado/api/site-freshness-service/internal/adapters/config"
	"gitlab.com/timkado/api/site-freshness-service/internal/adapters/metrics"
	"gitlab.com/timkado/api/site-freshness-service/internal/domain"
	"gitlab.com/timkado/api/site-freshness-service/pkg/changekeys"
)

// ChangeFeedAdapter carries row change notifications over core NATS subjects.
// It implements domain.ChangeSubscriber and domain.ChangePublisher.
type ChangeFeedAdapter struct {
	nc     *nats.Conn
	logger domain.Logger
	prefix string
}

// NewChangeFeedAdapter connects to the NATS server. The returned cleanup
// drains the connection.
func NewChangeFeedAdapter(ctx context.Context, cfgProvider config.Provider, appLogger domain.Logger) (*ChangeFeedAdapter, func(), error) {
	cfg := cfgProvider.Get()
	natsCfg := cfg.NATS

	appLogger.Info(ctx, "Attempting to connect to NATS server", "url", natsCfg.URL)

	nc, err := nats.Connect(natsCfg.URL,
		nats.Name(fmt.Sprintf("%s-changes-%s", cfg.App.ServiceName, cfg.Server.InstanceID)),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.Timeout(5*time.Second),
		nats.ErrorHandler(func(c *nats.Conn, s *nats.Subscription, err error) {
			subject := ""
			if s != nil {
				subject = s.Subject
			}
			appLogger.Error(ctx, "NATS error", "subject", subject, "error", err.Error())
		}),
		nats.ClosedHandler(func(c *nats.Conn) {
			appLogger.Info(ctx, "NATS connection closed")
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			appLogger.Info(ctx, "NATS reconnected", "url", c.ConnectedUrl())
		}),
		nats.DisconnectErrHandler(func(c *nats.Conn, err error) {
			appLogger.Warn(ctx, "NATS disconnected", "error", err)
		}),
	)
	if err != nil {
		appLogger.Error(ctx, "Failed to connect to NATS", "url", natsCfg.URL, "error", err.Error())
		return nil, nil, fmt.Errorf("failed to connect to NATS at %s: %w", natsCfg.URL, err)
	}
	appLogger.Info(ctx, "Connected to NATS server", "url", nc.ConnectedUrl())

	adapter := &ChangeFeedAdapter{nc: nc, logger: appLogger, prefix: natsCfg.SubjectPrefix}
	cleanup := func() {
		appLogger.Info(context.Background(), "Closing NATS connection...")
		adapter.Close()
	}
	return adapter, cleanup, nil
}

// Close drains and closes the NATS connection.
func (a *ChangeFeedAdapter) Close() {
	if a.nc == nil || a.nc.IsClosed() {
		return
	}
	if err := a.nc.Drain(); err != nil {
		a.logger.Error(context.Background(), "Error draining NATS connection", "error", err.Error())
	}
}

// Ping reports whether the connection is up. RetryOnFailedConnect lets
// Connect succeed before the server is reachable, so readiness asks here.
func (a *ChangeFeedAdapter) Ping(ctx context.Context) error {
	if !a.nc.IsConnected() {
		return fmt.Errorf("nats connection status %s", a.nc.Status())
	}
	return nil
}

// SubscribeChanges implements domain.ChangeSubscriber.
func (a *ChangeFeedAdapter) SubscribeChanges(ctx context.Context, section domain.Section, handler domain.ChangeHandler) (domain.ChangeSubscription, error) {
	subject := changekeys.NATSSubject(a.prefix, section)

	sub, err := a.nc.Subscribe(subject, func(msg *nats.Msg) {
		metrics.IncrementChangeEventReceived(string(section), config.ChangeDriverNATS)
		event := domain.DecodeChangeEvent(msg.Data, section)
		handler(context.Background(), event)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to NATS subject %s: %w", subject, err)
	}
	// Surface a subscription the server rejects now rather than on first use.
	if err := a.nc.FlushTimeout(2 * time.Second); err != nil {
		_ = sub.Unsubscribe()
		return nil, fmt.Errorf("failed to confirm NATS subscription %s: %w", subject, err)
	}

	a.logger.Info(ctx, "Subscribed to change subject", "subject", subject)
	return &changeSubscription{sub: sub, section: section}, nil
}

// PublishChange implements domain.ChangePublisher.
func (a *ChangeFeedAdapter) PublishChange(ctx context.Context, event domain.ChangeEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal change event: %w", err)
	}
	subject := changekeys.NATSSubject(a.prefix, event.Section)
	if err := a.nc.Publish(subject, data); err != nil {
		return fmt.Errorf("publish to %s: %w", subject, err)
	}
	return nil
}

type changeSubscription struct {
	sub     *nats.Subscription
	section domain.Section
	once    sync.Once
	err     error
}

func (s *changeSubscription) Unsubscribe() error {
	s.once.Do(func() {
		if s.sub.IsValid() {
			s.err = s.sub.Unsubscribe()
		}
	})
	return s.err
}

func (s *changeSubscription) Section() domain.Section {
	return s.section
}
