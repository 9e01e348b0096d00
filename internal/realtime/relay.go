package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/yungbote/nearby-backend/internal/pkg/logger"
)

const (
	DefaultRelayChannel = "nearby-events"
	relayQueueSize      = 256
)

type RelayConfig struct {
	Addr    string
	Channel string
}

type relayEnvelope struct {
	Origin string `json:"origin"`
	Event  Event  `json:"event"`
}

// RedisRelay forwards locally published events to other processes and
// delivers their events into the local hub. Events a process published
// itself are skipped on the way back; its own hub already has them.
type RedisRelay struct {
	log     *logger.Logger
	rdb     *goredis.Client
	channel string
	origin  string
	hub     *Hub

	queue     chan []byte
	wg        sync.WaitGroup
	closeOnce sync.Once
	cancel    context.CancelFunc
}

func NewRedisRelay(log *logger.Logger, cfg RelayConfig, hub *Hub) (*RedisRelay, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if hub == nil {
		return nil, fmt.Errorf("hub required")
	}
	addr := strings.TrimSpace(cfg.Addr)
	if addr == "" {
		return nil, fmt.Errorf("missing redis addr")
	}
	ch := strings.TrimSpace(cfg.Channel)
	if ch == "" {
		ch = DefaultRelayChannel
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return newRelay(log, rdb, ch, hub), nil
}

func newRelay(log *logger.Logger, rdb *goredis.Client, channel string, hub *Hub) *RedisRelay {
	return &RedisRelay{
		log:     log.With("component", "RedisRelay"),
		rdb:     rdb,
		channel: channel,
		origin:  uuid.NewString(),
		hub:     hub,
		queue:   make(chan []byte, relayQueueSize),
	}
}

// Handle is the bus subscriber. It never waits on redis.
func (r *RedisRelay) Handle(_ context.Context, ev Event) {
	raw, err := json.Marshal(relayEnvelope{Origin: r.origin, Event: ev})
	if err != nil {
		r.log.Warn("Failed to encode relay event", "kind", ev.Kind, "error", err)
		return
	}
	select {
	case r.queue <- raw:
	default:
		r.log.Warn("Relay queue full, dropping event", "kind", ev.Kind)
	}
}

// Start subscribes to the channel and launches the publisher and forwarder.
func (r *RedisRelay) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	r.cancel = cancel

	sub := r.rdb.Subscribe(ctx, r.channel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		cancel()
		return fmt.Errorf("redis subscribe: %w", err)
	}

	r.wg.Add(2)
	go func() {
		defer r.wg.Done()
		r.publishLoop(ctx)
	}()
	go func() {
		defer r.wg.Done()
		defer sub.Close()
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case m, ok := <-ch:
				if !ok || m == nil {
					return
				}
				r.deliver([]byte(m.Payload))
			}
		}
	}()
	return nil
}

func (r *RedisRelay) publishLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case raw := <-r.queue:
			pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
			if err := r.rdb.Publish(pctx, r.channel, raw).Err(); err != nil {
				r.log.Warn("Redis publish failed", "error", err)
			}
			cancel()
		}
	}
}

func (r *RedisRelay) deliver(raw []byte) bool {
	var env relayEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		r.log.Warn("Bad relay payload", "error", err)
		return false
	}
	if env.Origin == r.origin {
		return false
	}
	r.hub.Deliver(env.Event)
	return true
}

func (r *RedisRelay) Close() error {
	var err error
	r.closeOnce.Do(func() {
		if r.cancel != nil {
			r.cancel()
		}
		r.wg.Wait()
		err = r.rdb.Close()
	})
	return err
}
