package redis

import (
	"context"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/campus-portal/portal-core/internal/infrastructure/messaging"
)

// PubSub adapts a go-redis client to messaging.PubSubClient.
type PubSub struct {
	client *redis.Client

	mu   sync.Mutex
	subs []*redis.PubSub
}

// NewPubSub creates an adapter over client. Closing the adapter closes its
// subscriptions but not the client.
func NewPubSub(client *redis.Client) *PubSub {
	return &PubSub{client: client}
}

// Publish implements messaging.PubSubClient.
func (p *PubSub) Publish(ctx context.Context, channel string, message string) error {
	return p.client.Publish(ctx, channel, message).Err()
}

// Subscribe implements messaging.PubSubClient. The returned channel closes
// when ctx is done or the adapter is closed.
func (p *PubSub) Subscribe(ctx context.Context, channels ...string) (<-chan messaging.PubSubMessage, error) {
	sub := p.client.Subscribe(ctx, channels...)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, err
	}

	p.mu.Lock()
	p.subs = append(p.subs, sub)
	p.mu.Unlock()

	out := make(chan messaging.PubSubMessage)
	go func() {
		defer close(out)
		in := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-in:
				if !ok {
					return
				}
				select {
				case out <- messaging.PubSubMessage{Channel: msg.Channel, Payload: msg.Payload}:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}

// Close implements messaging.PubSubClient.
func (p *PubSub) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var firstErr error
	for _, sub := range p.subs {
		if err := sub.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	p.subs = nil
	return firstErr
}
