package application

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v5"
	"golang.org/x/sync/errgroup"

	"gitlab.com/timkado/api/site-freshness-service/internal/adapters/metrics"
	"gitlab.com/timkado/api/site-freshness-service/internal/domain"
	"gitlab.com/timkado/api/site-freshness-service/pkg/contextkeys"
	"gitlab.com/timkado/api/site-freshness-service/pkg/safego"
)

// AggregatorConfig tunes the UnreadAggregator.
type AggregatorConfig struct {
	// QueryTimeout bounds each count query and each mark-read update.
	QueryTimeout time.Duration
	// SubscribeRetryInitial is the first backoff delay after a failed subscribe.
	SubscribeRetryInitial time.Duration
	// SubscribeRetryMax bounds the total time spent retrying one subscription.
	SubscribeRetryMax time.Duration
}

func (c AggregatorConfig) withDefaults() AggregatorConfig {
	if c.QueryTimeout <= 0 {
		c.QueryTimeout = 10 * time.Second
	}
	if c.SubscribeRetryInitial <= 0 {
		c.SubscribeRetryInitial = 500 * time.Millisecond
	}
	if c.SubscribeRetryMax <= 0 {
		c.SubscribeRetryMax = 5 * time.Minute
	}
	return c
}

// UnreadAggregator keeps the four unread counters in line with the backend.
//
// Any change notification refreshes all four counters together. Each refresh
// carries a sequence number, and a section only accepts results newer than the
// last one it applied, so a slow refresh can never overwrite a later one.
// Visiting the page that owns a section clears that section's unread rows.
type UnreadAggregator struct {
	logger     domain.Logger
	store      domain.UnreadStore
	subscriber domain.ChangeSubscriber
	routes     *RouteTable
	cfg        AggregatorConfig

	issued  atomic.Uint64
	trigger chan struct{}
	wg      sync.WaitGroup

	mu          sync.Mutex
	counts      domain.UnreadCounts
	applied     map[domain.Section]uint64
	pending     map[domain.Section]int
	marking     map[domain.Section]bool
	currentPath string
	subs        []domain.ChangeSubscription
	watchers    map[int]chan domain.UnreadCounts
	nextWatcher int
	started     bool
	stopped     bool
	cancel      context.CancelFunc
}

// NewUnreadAggregator creates an aggregator with every counter Unknown and zero.
func NewUnreadAggregator(
	logger domain.Logger,
	store domain.UnreadStore,
	subscriber domain.ChangeSubscriber,
	routes *RouteTable,
	cfg AggregatorConfig,
) *UnreadAggregator {
	return &UnreadAggregator{
		logger:     logger,
		store:      store,
		subscriber: subscriber,
		routes:     routes,
		cfg:        cfg.withDefaults(),
		trigger:    make(chan struct{}, 1),
		applied:    make(map[domain.Section]uint64),
		pending:    make(map[domain.Section]int),
		marking:    make(map[domain.Section]bool),
		watchers:   make(map[int]chan domain.UnreadCounts),
	}
}

// Start subscribes to the change feed of every section, performs the initial
// refresh and starts the background refresh loop. Subscriptions that cannot be
// opened are retried with exponential backoff in the background.
func (a *UnreadAggregator) Start(ctx context.Context) error {
	a.mu.Lock()
	if a.started {
		a.mu.Unlock()
		return errors.New("unread aggregator already started")
	}
	a.started = true
	runCtx, cancel := context.WithCancel(ctx)
	a.cancel = cancel
	a.mu.Unlock()

	a.wg.Add(1)
	safego.Execute(runCtx, a.logger, "UnreadRefreshLoop", func() {
		defer a.wg.Done()
		a.refreshLoop(runCtx)
	})

	for _, section := range domain.AllSections {
		if err := a.subscribe(runCtx, section); err != nil {
			a.wg.Add(1)
			safego.Execute(runCtx, a.logger, "UnreadSubscribeRetry:"+string(section), func() {
				defer a.wg.Done()
				a.retrySubscribe(runCtx, section)
			})
		}
	}

	counts := a.RefreshAll(runCtx)
	a.logger.Info(runCtx, "Unread aggregator started", "counts", counts)
	return nil
}

// Stop tears every subscription down and waits for background work to exit.
// Results of calls still in flight are discarded. Stop is idempotent.
func (a *UnreadAggregator) Stop() {
	a.mu.Lock()
	if a.stopped {
		a.mu.Unlock()
		return
	}
	a.stopped = true
	subs := a.subs
	a.subs = nil
	cancel := a.cancel
	for id, ch := range a.watchers {
		close(ch)
		delete(a.watchers, id)
	}
	a.mu.Unlock()

	for _, sub := range subs {
		if err := sub.Unsubscribe(); err != nil {
			a.logger.Warn(context.Background(), "Failed to unsubscribe from change feed", "section", string(sub.Section()), "error", err)
		}
	}
	if cancel != nil {
		cancel()
	}
	a.wg.Wait()
	a.logger.Info(context.Background(), "Unread aggregator stopped")
}

func (a *UnreadAggregator) subscribe(ctx context.Context, section domain.Section) error {
	sub, err := a.subscriber.SubscribeChanges(ctx, section, a.onChange)
	if err != nil {
		metrics.IncrementSubscribeFailure(string(section))
		a.logger.Error(ctx, "Failed to subscribe to change feed", "section", string(section), "error", err)
		return fmt.Errorf("subscribe %s: %w", section, err)
	}

	a.mu.Lock()
	if a.stopped {
		a.mu.Unlock()
		_ = sub.Unsubscribe()
		return nil
	}
	a.subs = append(a.subs, sub)
	a.mu.Unlock()

	a.logger.Debug(ctx, "Subscribed to change feed", "section", string(section))
	return nil
}

func (a *UnreadAggregator) retrySubscribe(ctx context.Context, section domain.Section) {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = a.cfg.SubscribeRetryInitial

	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		return struct{}{}, a.subscribe(ctx, section)
	},
		backoff.WithBackOff(eb),
		backoff.WithMaxElapsedTime(a.cfg.SubscribeRetryMax),
		backoff.WithNotify(func(err error, next time.Duration) {
			a.logger.Warn(ctx, "Retrying change feed subscription", "section", string(section), "next_attempt_in", next.String())
		}),
	)
	if err != nil {
		if ctx.Err() == nil {
			a.logger.Error(ctx, "Giving up on change feed subscription", "section", string(section), "error", err)
		}
		return
	}
	// Notifications may have been missed while the channel was down.
	a.TriggerRefresh()
}

func (a *UnreadAggregator) onChange(ctx context.Context, event domain.ChangeEvent) {
	a.mu.Lock()
	stopped := a.stopped
	a.mu.Unlock()
	if stopped {
		return
	}
	a.logger.Debug(ctx, "Change notification received", "section", string(event.Section), "op", string(event.Op))
	a.TriggerRefresh()
}

// TriggerRefresh schedules a RefreshAll on the background loop. Triggers that
// arrive while one is already pending are coalesced into it.
func (a *UnreadAggregator) TriggerRefresh() {
	select {
	case a.trigger <- struct{}{}:
	default:
	}
}

func (a *UnreadAggregator) refreshLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-a.trigger:
			a.RefreshAll(ctx)
		}
	}
}

type countResult struct {
	n   int
	err error
}

// RefreshAll queries the unread count of all four sections concurrently and
// applies the results in one step. A failed query is logged and leaves that
// counter at its previous value. It returns the counters after the update.
func (a *UnreadAggregator) RefreshAll(ctx context.Context) domain.UnreadCounts {
	seq := a.issued.Add(1)

	a.mu.Lock()
	if a.stopped {
		counts := a.counts
		a.mu.Unlock()
		return counts
	}
	for _, s := range domain.AllSections {
		a.pending[s]++
	}
	a.mu.Unlock()

	qctx, cancel := context.WithTimeout(ctx, a.cfg.QueryTimeout)
	defer cancel()

	results := make([]countResult, len(domain.AllSections))
	var g errgroup.Group
	for i, section := range domain.AllSections {
		g.Go(func() error {
			n, err := a.store.CountUnread(qctx, section)
			results[i] = countResult{n: n, err: err}
			return nil
		})
	}
	_ = g.Wait()

	var failed []int
	changed, anyApplied := false, false

	a.mu.Lock()
	for i, section := range domain.AllSections {
		a.pending[section]--
		r := results[i]
		switch {
		case r.err != nil:
			failed = append(failed, i)
			metrics.IncrementUnreadRefresh(string(section), "error")
		case a.stopped || seq <= a.applied[section]:
			metrics.IncrementUnreadRefresh(string(section), "stale")
		default:
			a.applied[section] = seq
			anyApplied = true
			if a.counts.Get(section) != r.n {
				a.counts = a.counts.Set(section, r.n)
				changed = true
			}
			metrics.IncrementUnreadRefresh(string(section), "ok")
			metrics.SetUnreadCount(string(section), r.n)
		}
	}
	counts := a.counts
	path := a.currentPath
	stopped := a.stopped
	if changed {
		a.broadcastLocked(counts)
	}
	a.mu.Unlock()

	for _, i := range failed {
		a.logger.Warn(context.WithValue(ctx, contextkeys.SectionKey, string(domain.AllSections[i])),
			"Unread count query failed; keeping previous value", "error", results[i].err)
	}

	if anyApplied && !stopped {
		a.evaluateRoute(ctx, path)
	}
	return counts
}

// MarkSectionAsRead marks every unread row of section as read on the backend
// and, on success, zeroes the local counter. On failure the counter is left
// unchanged so it keeps reflecting the true unread state.
func (a *UnreadAggregator) MarkSectionAsRead(ctx context.Context, section domain.Section) error {
	if _, err := domain.ParseSection(string(section)); err != nil {
		return err
	}
	ctx = context.WithValue(ctx, contextkeys.SectionKey, string(section))

	qctx, cancel := context.WithTimeout(ctx, a.cfg.QueryTimeout)
	defer cancel()

	if err := a.store.MarkAllRead(qctx, section); err != nil {
		metrics.IncrementMarkRead(string(section), "error")
		a.logger.Error(ctx, "Failed to mark section as read", "error", err)
		return fmt.Errorf("mark %s as read: %w", section, err)
	}
	metrics.IncrementMarkRead(string(section), "ok")

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.stopped {
		return nil
	}
	// The write defines the new truth; refreshes issued before it are outdated.
	a.applied[section] = a.issued.Add(1)
	if a.counts.Get(section) != 0 {
		a.counts = a.counts.Set(section, 0)
		a.broadcastLocked(a.counts)
	}
	metrics.SetUnreadCount(string(section), 0)
	a.logger.Info(ctx, "Section marked as read")
	return nil
}

// HandleRoute records the admin console's active route. When the route owns a
// section with a nonzero counter, that section is marked as read. It reports
// whether a mark-read was performed.
func (a *UnreadAggregator) HandleRoute(ctx context.Context, path string) bool {
	a.mu.Lock()
	a.currentPath = path
	a.mu.Unlock()

	return a.evaluateRoute(context.WithValue(ctx, contextkeys.RouteKey, path), path)
}

func (a *UnreadAggregator) evaluateRoute(ctx context.Context, path string) bool {
	section, ok := a.routes.Lookup(path)
	if !ok {
		return false
	}

	a.mu.Lock()
	if a.stopped || a.marking[section] || a.counts.Get(section) == 0 {
		a.mu.Unlock()
		return false
	}
	a.marking[section] = true
	a.mu.Unlock()

	err := a.MarkSectionAsRead(ctx, section)

	a.mu.Lock()
	a.marking[section] = false
	a.mu.Unlock()

	return err == nil
}

// Counts returns a snapshot of the counters.
func (a *UnreadAggregator) Counts() domain.UnreadCounts {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.counts
}

// States reports Unknown, Loading or Known(n) for every section.
func (a *UnreadAggregator) States() map[domain.Section]domain.CounterState {
	a.mu.Lock()
	defer a.mu.Unlock()

	states := make(map[domain.Section]domain.CounterState, len(domain.AllSections))
	for _, s := range domain.AllSections {
		st := domain.CounterState{Status: domain.CounterUnknown, Count: a.counts.Get(s)}
		switch {
		case a.pending[s] > 0:
			st.Status = domain.CounterLoading
		case a.applied[s] > 0:
			st.Status = domain.CounterKnown
		}
		states[s] = st
	}
	return states
}

// Watch returns a channel that always holds the latest counters, starting
// with the current ones, and a cancel func that closes it. Slow readers skip
// intermediate values. The channel is closed when the aggregator stops.
func (a *UnreadAggregator) Watch() (<-chan domain.UnreadCounts, func()) {
	ch := make(chan domain.UnreadCounts, 1)

	a.mu.Lock()
	if a.stopped {
		a.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	id := a.nextWatcher
	a.nextWatcher++
	a.watchers[id] = ch
	ch <- a.counts
	a.mu.Unlock()

	cancel := func() {
		a.mu.Lock()
		defer a.mu.Unlock()
		if _, ok := a.watchers[id]; ok {
			delete(a.watchers, id)
			close(ch)
		}
	}
	return ch, cancel
}

// broadcastLocked replaces whatever each watcher has not read yet. a.mu must be held.
func (a *UnreadAggregator) broadcastLocked(counts domain.UnreadCounts) {
	for _, ch := range a.watchers {
		select {
		case <-ch:
		default:
		}
		ch <- counts
	}
}
