// Package notify broadcasts generation lifecycle events over redis pub/sub.
// Events are fire-and-forget: publish failures are logged by callers and
// never influence pipeline outcomes.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

// Event kinds.
const (
	EventModelReady     = "model_ready"
	EventModelGenerated = "model_generated"
	EventModelFailed    = "model_failed"
)

// GeneralTopic receives every product-update event; per-product observers
// subscribe to ProductTopic(id) instead.
const GeneralTopic = "products:updates"

func ProductTopic(productID int64) string {
	return fmt.Sprintf("product:%d", productID)
}

// Event is the wire format published on both topics.
type Event struct {
	ID        string `json:"id"`
	Kind      string `json:"kind"`
	ProductID int64  `json:"product_id,omitempty"`
	ModelURL  string `json:"model_url,omitempty"`
	Error     string `json:"error,omitempty"`
	At        int64  `json:"at"`
}

// Notifier is the pipeline-facing notification surface.
type Notifier interface {
	PublishModelReady(ctx context.Context, productID int64, modelURL string) error
	PublishModelFailed(ctx context.Context, productID int64, errMsg string) error
	Close() error
}

// RedisNotifier publishes events over redis pub/sub.
type RedisNotifier struct {
	rdb *goredis.Client
}

var _ Notifier = (*RedisNotifier)(nil)

func NewRedisNotifier(addr, password string, db int) (*RedisNotifier, error) {
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		Password:    password,
		DB:          db,
		DialTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &RedisNotifier{rdb: rdb}, nil
}

// PublishModelReady emits the success pair: model_ready on the product topic
// and model_generated on the general updates topic.
func (n *RedisNotifier) PublishModelReady(ctx context.Context, productID int64, modelURL string) error {
	ready := Event{
		ID:        uuid.NewString(),
		Kind:      EventModelReady,
		ProductID: productID,
		ModelURL:  modelURL,
		At:        time.Now().Unix(),
	}
	if err := n.publish(ctx, ProductTopic(productID), ready); err != nil {
		return err
	}
	generated := Event{
		ID:       uuid.NewString(),
		Kind:     EventModelGenerated,
		ModelURL: modelURL,
		At:       time.Now().Unix(),
	}
	return n.publish(ctx, GeneralTopic, generated)
}

// PublishModelFailed emits model_failed on both topics.
func (n *RedisNotifier) PublishModelFailed(ctx context.Context, productID int64, errMsg string) error {
	ev := Event{
		ID:        uuid.NewString(),
		Kind:      EventModelFailed,
		ProductID: productID,
		Error:     errMsg,
		At:        time.Now().Unix(),
	}
	if err := n.publish(ctx, ProductTopic(productID), ev); err != nil {
		return err
	}
	return n.publish(ctx, GeneralTopic, ev)
}

func (n *RedisNotifier) publish(ctx context.Context, topic string, ev Event) error {
	raw, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", ev.Kind, err)
	}
	if err := n.rdb.Publish(ctx, topic, raw).Err(); err != nil {
		return fmt.Errorf("publish %s to %s: %w", ev.Kind, topic, err)
	}
	return nil
}

// Subscribe forwards events from a topic to onEvent until ctx is cancelled.
// Used by the API layer's SSE endpoint.
func (n *RedisNotifier) Subscribe(ctx context.Context, topic string, onEvent func(Event)) error {
	sub := n.rdb.Subscribe(ctx, topic)

	// ensures the subscription actually started
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("redis subscribe %s: %w", topic, err)
	}

	go func() {
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				_ = sub.Close()
				return
			case m, ok := <-ch:
				if !ok || m == nil {
					_ = sub.Close()
					return
				}
				var ev Event
				if err := json.Unmarshal([]byte(m.Payload), &ev); err != nil {
					log.WithError(err).Warn("bad notification payload")
					continue
				}
				onEvent(ev)
			}
		}
	}()

	return nil
}

func (n *RedisNotifier) Close() error {
	return n.rdb.Close()
}
