package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/alanyoungcy/shadowmarket/internal/domain"
)

// Activity channel and stream names.
const (
	ActivityChannel = keyPrefix + "activity"
	ActivityStream  = keyPrefix + "activity:stream"
)

// ActivityPublisher is an activity sink that fans items out over the signal
// bus: live subscribers get them on ActivityChannel and ActivityStream keeps
// a bounded history for late joiners.
type ActivityPublisher struct {
	bus *SignalBus
}

// NewActivityPublisher creates an ActivityPublisher over bus.
func NewActivityPublisher(bus *SignalBus) *ActivityPublisher {
	return &ActivityPublisher{bus: bus}
}

// Name implements domain.ActivitySink.
func (p *ActivityPublisher) Name() string { return "redis" }

// Record implements domain.ActivitySink.
func (p *ActivityPublisher) Record(ctx context.Context, item domain.ActivityItem) error {
	payload, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("redis: encode activity %s: %w", item.ID, err)
	}
	if err := p.bus.StreamAppend(ctx, ActivityStream, payload); err != nil {
		return err
	}
	return p.bus.Publish(ctx, ActivityChannel, payload)
}

// Recent returns up to n of the newest streamed items, newest first.
// Entries that fail to decode are skipped.
func (p *ActivityPublisher) Recent(ctx context.Context, n int) ([]domain.ActivityItem, error) {
	msgs, err := p.bus.StreamTail(ctx, ActivityStream, n)
	if err != nil {
		return nil, err
	}
	items := make([]domain.ActivityItem, 0, len(msgs))
	for _, m := range msgs {
		var item domain.ActivityItem
		if err := json.Unmarshal(m.Payload, &item); err != nil {
			continue
		}
		items = append(items, item)
	}
	return items, nil
}

// Compile-time interface check.
var _ domain.ActivitySink = (*ActivityPublisher)(nil)
