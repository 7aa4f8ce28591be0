package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/redis/go-redis/v9"

	"github.com/MatterDesk/MatterDesk/internal/pkg/cache"
)

const (
	// Channel carries live notification events for connected clients.
	Channel = "notifications:events"

	// replayKey is a sorted set of recent events scored by unix
	// milliseconds, kept so reconnecting clients can catch up.
	replayKey = "notifications:replay"

	// ReplayWindow is how far back the replay buffer reaches.
	ReplayWindow = 5 * time.Minute
)

const (
	EventCreated = "notification:created"
	EventRead    = "notification:read"
)

// Event is one published notification event.
type Event struct {
	Type             string    `json:"type"`
	NotificationID   uint      `json:"notification_id"`
	RecipientID      uint      `json:"recipient_id"`
	NotificationType string    `json:"notification_type"`
	At               time.Time `json:"at"`
}

// Publisher fans notification events out over Redis pub/sub and keeps
// the short replay buffer current.
type Publisher struct {
	client *redis.Client
}

// NewPublisher creates a publisher on the shared cache client.
func NewPublisher() *Publisher {
	return &Publisher{client: cache.GetClient()}
}

// NewPublisherWithClient creates a publisher on an explicit client.
func NewPublisherWithClient(client *redis.Client) *Publisher {
	return &Publisher{client: client}
}

// Publish emits the event and records it in the replay buffer. A
// publish failure is logged, never surfaced: live updates are
// best-effort.
func (p *Publisher) Publish(event Event) {
	if event.At.IsZero() {
		event.At = time.Now()
	}
	data, err := json.Marshal(event)
	if err != nil {
		log.Errorf("[Realtime] Failed to marshal event: %v", err)
		return
	}

	ctx := context.Background()
	score := float64(event.At.UnixMilli())

	pipe := p.client.Pipeline()
	pipe.ZAdd(ctx, replayKey, redis.Z{Score: score, Member: string(data)})
	cutoff := strconv.FormatInt(time.Now().Add(-ReplayWindow).UnixMilli(), 10)
	pipe.ZRemRangeByScore(ctx, replayKey, "-inf", cutoff)
	pipe.Publish(ctx, Channel, string(data))
	if _, err := pipe.Exec(ctx); err != nil {
		log.Warnf("[Realtime] Failed to publish %s: %v", event.Type, err)
	}
}

// Replay returns buffered events at or after the given time, oldest
// first, for clients reconnecting within the replay window.
func (p *Publisher) Replay(since time.Time) ([]Event, error) {
	ctx := context.Background()
	min := strconv.FormatInt(since.UnixMilli(), 10)

	raw, err := p.client.ZRangeByScore(ctx, replayKey, &redis.ZRangeBy{
		Min: min,
		Max: "+inf",
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("replay range: %w", err)
	}

	events := make([]Event, 0, len(raw))
	for _, entry := range raw {
		var event Event
		if err := json.Unmarshal([]byte(entry), &event); err != nil {
			log.Warnf("[Realtime] Skipping unparseable replay entry: %v", err)
			continue
		}
		events = append(events, event)
	}
	return events, nil
}

// Subscribe opens a pub/sub subscription on the event channel. The
// caller owns the returned subscription and must close it.
func (p *Publisher) Subscribe(ctx context.Context) *redis.PubSub {
	return p.client.Subscribe(ctx, Channel)
}
