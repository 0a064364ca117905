package domain

import (
	"context"
	"encoding/json"
	"time"
)

// ChangeOp is the kind of row mutation carried by a change notification.
type ChangeOp string

const (
	ChangeInsert ChangeOp = "INSERT"
	ChangeUpdate ChangeOp = "UPDATE"
	ChangeDelete ChangeOp = "DELETE"
)

// ChangeEvent is published whenever a row in a monitored collection changes.
// Subscribers only use it as a trigger; the payload is informational.
type ChangeEvent struct {
	Section    Section   `json:"section"`
	Op         ChangeOp  `json:"op"`
	RowID      int64     `json:"row_id,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// ChangeHandler is invoked for every notification received on a subscription.
type ChangeHandler func(ctx context.Context, event ChangeEvent)

// ChangeSubscription is a live change channel for one section.
type ChangeSubscription interface {
	// Unsubscribe tears the channel down. Calling it more than once is a no-op.
	Unsubscribe() error
	Section() Section
}

// ChangeSubscriber opens change channels on the backend.
type ChangeSubscriber interface {
	SubscribeChanges(ctx context.Context, section Section, handler ChangeHandler) (ChangeSubscription, error)
}

// ChangePublisher announces row changes to every subscriber.
type ChangePublisher interface {
	PublishChange(ctx context.Context, event ChangeEvent) error
}

// UnreadStore is the count-only query and bulk "mark read" update over the
// monitored collections.
type UnreadStore interface {
	// CountUnread returns the number of rows in section with is_read = false.
	CountUnread(ctx context.Context, section Section) (int, error)

	// MarkAllRead sets is_read = true on every unread row in section.
	MarkAllRead(ctx context.Context, section Section) error
}

// DecodeChangeEvent parses a change payload received for section. Malformed
// payloads still count as a change of that section since the event is only a
// trigger, and the section always comes from the channel, not the payload.
func DecodeChangeEvent(data []byte, section Section) ChangeEvent {
	var event ChangeEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return ChangeEvent{Section: section, Op: ChangeUpdate}
	}
	event.Section = section
	if event.Op == "" {
		event.Op = ChangeUpdate
	}
	return event
}

// ChangeFeed is a change transport usable for both directions. Ping backs the
// readiness probe.
type ChangeFeed interface {
	ChangeSubscriber
	ChangePublisher
	Ping(ctx context.Context) error
}
