package messaging

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/nursetrack/clinical-hours/internal/domain/shared"
)

const defaultEventChannel = "clinical-hours:events"

// RedisEventBusConfig configures NewRedisEventBus.
type RedisEventBusConfig struct {
	Client      *redis.Client
	ChannelName string
	// InstanceID tags outgoing envelopes so an instance skips its own events
	// on the way back. Generated when empty.
	InstanceID     string
	LocalBusConfig InMemoryEventBusConfig
	Logger         *slog.Logger
}

// RedisEventBus delivers every event locally and also publishes it to a
// Redis channel. Events arriving from other instances are replayed to the
// local handlers as envelopes, so handlers must read Payload rather than
// assert concrete event types.
type RedisEventBus struct {
	local      *InMemoryEventBus
	client     *redis.Client
	pubsub     *redis.PubSub
	channel    string
	instanceID string
	logger     *slog.Logger

	stop context.CancelFunc
	done chan struct{}
	once sync.Once
}

// NewRedisEventBus subscribes to the channel and starts the relay loop. It
// fails when the subscription cannot be confirmed within ctx.
func NewRedisEventBus(ctx context.Context, cfg RedisEventBusConfig) (*RedisEventBus, error) {
	if cfg.Client == nil {
		return nil, errors.New("redis event bus: nil client")
	}
	if cfg.ChannelName == "" {
		cfg.ChannelName = defaultEventChannel
	}
	if cfg.InstanceID == "" {
		cfg.InstanceID = uuid.NewString()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.LocalBusConfig.Logger == nil {
		cfg.LocalBusConfig.Logger = cfg.Logger
	}

	pubsub := cfg.Client.Subscribe(ctx, cfg.ChannelName)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("subscribe %s: %w", cfg.ChannelName, err)
	}

	loopCtx, stop := context.WithCancel(context.Background())
	b := &RedisEventBus{
		local:      NewInMemoryEventBus(cfg.LocalBusConfig),
		client:     cfg.Client,
		pubsub:     pubsub,
		channel:    cfg.ChannelName,
		instanceID: cfg.InstanceID,
		logger:     cfg.Logger.With("component", "redis_event_bus", "instance_id", cfg.InstanceID),
		stop:       stop,
		done:       make(chan struct{}),
	}
	go b.relay(loopCtx, pubsub.Channel())
	return b, nil
}

func (b *RedisEventBus) Subscribe(eventType shared.EventType, handler shared.EventHandler) error {
	return b.local.Subscribe(eventType, handler)
}

func (b *RedisEventBus) SubscribeAll(handler shared.EventHandler) error {
	return b.local.SubscribeAll(handler)
}

// Publish runs local handlers even when Redis is unreachable; only the other
// instances miss the event then.
func (b *RedisEventBus) Publish(event shared.Event) error {
	if event == nil {
		return errors.New("nil event")
	}
	if err := b.local.Publish(event); err != nil {
		return err
	}

	data, err := encodeEnvelope(b.instanceID, event)
	if err != nil {
		b.logger.Error("encode event", "event_type", event.EventType(), "error", err)
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := b.client.Publish(ctx, b.channel, data).Err(); err != nil {
		b.logger.Warn("relay event to redis", "event_type", event.EventType(), "error", err)
	}
	return nil
}

func (b *RedisEventBus) relay(ctx context.Context, messages <-chan *redis.Message) {
	defer close(b.done)
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-messages:
			if !ok {
				return
			}
			env, err := decodeEnvelope(msg.Payload)
			if err != nil {
				b.logger.Warn("drop malformed event", "error", err)
				continue
			}
			if env.InstanceID == b.instanceID {
				continue
			}
			if err := b.local.Publish(env.event()); err != nil {
				b.logger.Error("replay remote event", "event_type", env.EventType, "error", err)
			}
		}
	}
}

// Close stops the relay, then drains the local bus.
func (b *RedisEventBus) Close() error {
	var err error
	b.once.Do(func() {
		b.stop()
		err = b.pubsub.Close()
		<-b.done
		if cerr := b.local.Close(); err == nil {
			err = cerr
		}
	})
	return err
}

// Metrics returns the counters of the local bus.
func (b *RedisEventBus) Metrics() *EventBusMetrics {
	return b.local.Metrics()
}

var _ shared.EventBus = (*RedisEventBus)(nil)

// ══════════════════════════════════════════════════════════════════════════════
// ENVELOPE
// ══════════════════════════════════════════════════════════════════════════════

type envelope struct {
	InstanceID  string           `json:"instance_id"`
	EventType   shared.EventType `json:"event_type"`
	AggregateID string           `json:"aggregate_id"`
	OccurredAt  time.Time        `json:"occurred_at"`
	Payload     map[string]any   `json:"payload"`
}

func encodeEnvelope(instanceID string, event shared.Event) (string, error) {
	s, err := sonic.MarshalString(envelope{
		InstanceID:  instanceID,
		EventType:   event.EventType(),
		AggregateID: event.AggregateID(),
		OccurredAt:  event.OccurredAt(),
		Payload:     event.Payload(),
	})
	if err != nil {
		return "", fmt.Errorf("encode %s envelope: %w", event.EventType(), err)
	}
	return s, nil
}

func decodeEnvelope(s string) (envelope, error) {
	var env envelope
	if err := sonic.UnmarshalString(s, &env); err != nil {
		return envelope{}, err
	}
	if env.EventType == "" {
		return envelope{}, errors.New("envelope without event_type")
	}
	return env, nil
}

func (e envelope) event() shared.Event { return replayedEvent{e} }

// replayedEvent exposes a decoded envelope as a shared.Event.
type replayedEvent struct{ env envelope }

func (e replayedEvent) EventType() shared.EventType { return e.env.EventType }
func (e replayedEvent) AggregateID() string         { return e.env.AggregateID }
func (e replayedEvent) OccurredAt() time.Time       { return e.env.OccurredAt }
func (e replayedEvent) Payload() map[string]any     { return e.env.Payload }
