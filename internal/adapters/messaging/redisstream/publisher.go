package redisstream

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/SscSPs/exchange_rate_api/internal/adapters/messaging"
	"github.com/SscSPs/exchange_rate_api/internal/core/domain"
	portsmsg "github.com/SscSPs/exchange_rate_api/internal/core/ports/messaging"
	"github.com/redis/go-redis/v9"
)

// defaultMaxLen caps the stream; older entries are trimmed approximately.
const defaultMaxLen = 10000

// Publisher appends rate change events to a Redis stream.
type Publisher struct {
	opts   *redis.Options
	stream string
	maxLen int64
	now    func() time.Time

	mu     sync.Mutex
	client *redis.Client
	closed bool
}

// NewPublisher creates a publisher for stream. The client is created and
// pinged on first use.
func NewPublisher(addr, password string, db int, stream string) *Publisher {
	return &Publisher{
		opts:   &redis.Options{Addr: addr, Password: password, DB: db},
		stream: stream,
		maxLen: defaultMaxLen,
		now:    time.Now,
	}
}

var (
	_ portsmsg.ChangePublisher = (*Publisher)(nil)
	_ portsmsg.Closer          = (*Publisher)(nil)
)

// Publish appends one event with XADD.
func (p *Publisher) Publish(ctx context.Context, kind domain.ChangeKind, quote domain.RateQuote) error {
	client, err := p.connect(ctx)
	if err != nil {
		return err
	}
	args, err := p.addArgs(kind, quote)
	if err != nil {
		return err
	}
	if err := client.XAdd(ctx, args).Err(); err != nil {
		return fmt.Errorf("redis stream publisher: xadd to %s failed: %w", p.stream, err)
	}
	return nil
}

func (p *Publisher) addArgs(kind domain.ChangeKind, quote domain.RateQuote) (*redis.XAddArgs, error) {
	event := messaging.NewRateChangedEvent(kind, quote, p.now())
	body, err := event.Encode()
	if err != nil {
		return nil, fmt.Errorf("redis stream publisher: marshal failed: %w", err)
	}
	return &redis.XAddArgs{
		Stream: p.stream,
		MaxLen: p.maxLen,
		Approx: true,
		Values: map[string]any{
			messaging.EventTypeHeader: string(kind),
			"key":                     event.Key(),
			"payload":                 string(body),
		},
	}, nil
}

// connect returns the shared client, creating it on first use. A client
// that fails its ping is discarded so the next call tries again.
func (p *Publisher) connect(ctx context.Context) (*redis.Client, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil, errors.New("redis stream publisher: closed")
	}
	if p.client != nil {
		return p.client, nil
	}

	client := redis.NewClient(p.opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis stream publisher: connection failed: %w", err)
	}
	p.client = client
	return client, nil
}

// Close releases the client if one was created.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.closed = true
	if p.client == nil {
		return nil
	}
	err := p.client.Close()
	p.client = nil
	return err
}
