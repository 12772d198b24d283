package redis

import (
	"context"
	"errors"
	"fmt"

	backend "github.com/redis/go-redis/v9"
)

const (
	// DefaultKey holds the assembly document.
	DefaultKey = "flow:assembly"
	// DefaultChannel carries change notifications for the document.
	DefaultChannel = "flow:assembly:changed"
)

// ErrNotFound is returned when the assembly key does not exist.
var ErrNotFound = errors.New("assembly not found in redis")

// Loader implements ports.AssemblyLoader and ports.Watchable using Redis.
// The document is stored as a plain string; writers publish on a channel to
// trigger reloads on every engine subscribed to it.
type Loader struct {
	client  *backend.Client
	key     string
	channel string
}

// Option configures the Redis Loader.
type Option func(*Loader)

// WithKey sets the key holding the document.
func WithKey(key string) Option {
	return func(l *Loader) {
		if key != "" {
			l.key = key
		}
	}
}

// WithChannel sets the pub/sub channel used for change notifications.
func WithChannel(channel string) Option {
	return func(l *Loader) {
		if channel != "" {
			l.channel = channel
		}
	}
}

// New creates a new Redis loader connected to addr.
func New(addr string, opts ...Option) *Loader {
	client := backend.NewClient(&backend.Options{
		Addr: addr,
	})
	return NewFromClient(client, opts...)
}

// NewFromClient creates a new Redis loader using an existing client.
func NewFromClient(client *backend.Client, opts ...Option) *Loader {
	l := &Loader{
		client:  client,
		key:     DefaultKey,
		channel: DefaultChannel,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load fetches the document.
func (l *Loader) Load(ctx context.Context) ([]byte, error) {
	data, err := l.client.Get(ctx, l.key).Bytes()
	if errors.Is(err, backend.Nil) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, l.key)
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed for %s: %w", l.key, err)
	}
	return data, nil
}

// Publish stores doc and notifies subscribers in a single transaction.
func (l *Loader) Publish(ctx context.Context, doc []byte) error {
	pipe := l.client.TxPipeline()
	pipe.Set(ctx, l.key, doc, 0)
	pipe.Publish(ctx, l.channel, l.key)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to publish assembly: %w", err)
	}
	return nil
}

// Watch subscribes to the change channel. The subscription is confirmed
// before Watch returns, so no notification published afterwards is lost.
func (l *Loader) Watch(ctx context.Context) (<-chan struct{}, error) {
	sub := l.client.Subscribe(ctx, l.channel)
	if _, err := sub.Receive(ctx); err != nil {
		sub.Close()
		return nil, fmt.Errorf("failed to subscribe to %s: %w", l.channel, err)
	}

	msgs := sub.Channel()
	ch := make(chan struct{}, 1)
	go func() {
		defer close(ch)
		defer sub.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-msgs:
				if !ok {
					return
				}
				select {
				case ch <- struct{}{}:
				default:
				}
			}
		}
	}()
	return ch, nil
}

// Close closes the underlying client.
func (l *Loader) Close() error {
	return l.client.Close()
}
