package kafka

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/SscSPs/exchange_rate_api/internal/adapters/messaging"
	"github.com/SscSPs/exchange_rate_api/internal/core/domain"
	portsmsg "github.com/SscSPs/exchange_rate_api/internal/core/ports/messaging"
	"github.com/segmentio/kafka-go"
)

// Publisher sends rate change events to a Kafka topic. The writer is created
// on first use and reused afterwards; the topic is declared once.
type Publisher struct {
	brokers []string
	topic   string
	now     func() time.Time

	mu      sync.Mutex
	writer  *kafka.Writer
	declare func(ctx context.Context) error
	closed  bool
}

// NewPublisher creates a publisher for topic. No connection is made until
// the first Publish.
func NewPublisher(brokers []string, topic string) *Publisher {
	p := &Publisher{
		brokers: brokers,
		topic:   topic,
		now:     time.Now,
	}
	p.declare = p.ensureTopic
	return p
}

var (
	_ portsmsg.ChangePublisher = (*Publisher)(nil)
	_ portsmsg.Closer          = (*Publisher)(nil)
)

// Publish writes one event keyed by the currency pair.
func (p *Publisher) Publish(ctx context.Context, kind domain.ChangeKind, quote domain.RateQuote) error {
	w, err := p.connect(ctx)
	if err != nil {
		return err
	}
	msg, err := p.message(kind, quote)
	if err != nil {
		return err
	}
	if err := w.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("kafka publisher: write to %s failed: %w", p.topic, err)
	}
	return nil
}

func (p *Publisher) message(kind domain.ChangeKind, quote domain.RateQuote) (kafka.Message, error) {
	event := messaging.NewRateChangedEvent(kind, quote, p.now())
	body, err := event.Encode()
	if err != nil {
		return kafka.Message{}, fmt.Errorf("kafka publisher: marshal failed: %w", err)
	}
	return kafka.Message{
		Key:     []byte(event.Key()),
		Value:   body,
		Time:    event.OccurredAt,
		Headers: []kafka.Header{{Key: messaging.EventTypeHeader, Value: []byte(kind)}},
	}, nil
}

// connect returns the shared writer, declaring the topic the first time.
func (p *Publisher) connect(ctx context.Context) (*kafka.Writer, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil, errors.New("kafka publisher: closed")
	}
	if p.writer != nil {
		return p.writer, nil
	}
	if len(p.brokers) == 0 {
		return nil, errors.New("kafka publisher: no brokers configured")
	}
	if err := p.declare(ctx); err != nil {
		return nil, err
	}

	p.writer = &kafka.Writer{
		Addr:         kafka.TCP(p.brokers...),
		Topic:        p.topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
	}
	return p.writer, nil
}

// ensureTopic creates the topic through the cluster controller if missing.
func (p *Publisher) ensureTopic(ctx context.Context) error {
	conn, err := kafka.DialContext(ctx, "tcp", p.brokers[0])
	if err != nil {
		return fmt.Errorf("kafka publisher: dial %s failed: %w", p.brokers[0], err)
	}
	defer conn.Close()

	controller, err := conn.Controller()
	if err != nil {
		return fmt.Errorf("kafka publisher: controller lookup failed: %w", err)
	}
	ctrlConn, err := kafka.DialContext(ctx, "tcp", net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	if err != nil {
		return fmt.Errorf("kafka publisher: dial controller failed: %w", err)
	}
	defer ctrlConn.Close()

	err = ctrlConn.CreateTopics(kafka.TopicConfig{
		Topic:             p.topic,
		NumPartitions:     1,
		ReplicationFactor: 1,
	})
	if err != nil && !errors.Is(err, kafka.TopicAlreadyExists) {
		return fmt.Errorf("kafka publisher: create topic %s failed: %w", p.topic, err)
	}
	return nil
}

// Close flushes and closes the writer if one was created.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.closed = true
	if p.writer == nil {
		return nil
	}
	err := p.writer.Close()
	p.writer = nil
	return err
}
