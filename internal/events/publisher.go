package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/fjod/gomarketplace/internal/domain"
	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
)

const (
	EventTypeCartChanged = "cart.changed"

	queueSize    = 64
	writeTimeout = 5 * time.Second
)

// MessageWriter is the part of *kafka.Writer the publisher needs.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type CartChanged struct {
	EventID    string            `json:"event_id"`
	CartKey    string            `json:"cart_key"`
	Items      domain.Collection `json:"items"`
	ItemCount  int               `json:"item_count"`
	OccurredAt time.Time         `json:"occurred_at"`
}

func NewKafkaWriter(topic string, brokers ...string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
	}
}

// Publisher turns cart snapshots into CartChanged events. Observe never
// blocks the cart: events go through a bounded queue drained by one
// goroutine, and are dropped with a warning when the queue is full.
type Publisher struct {
	writer  MessageWriter
	cartKey string
	logger  *slog.Logger
	now     func() time.Time

	queue chan CartChanged
	wg    sync.WaitGroup
	once  sync.Once
}

func NewPublisher(writer MessageWriter, cartKey string, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	p := &Publisher{
		writer:  writer,
		cartKey: cartKey,
		logger:  logger.With("component", "events"),
		now:     time.Now,
		queue:   make(chan CartChanged, queueSize),
	}

	p.wg.Add(1)
	go p.run()
	return p
}

// Observe has the cart.Observer signature.
func (p *Publisher) Observe(products domain.Collection) {
	event := CartChanged{
		EventID:    uuid.New().String(),
		CartKey:    p.cartKey,
		Items:      products,
		ItemCount:  products.Count(),
		OccurredAt: p.now().UTC(),
	}

	select {
	case p.queue <- event:
	default:
		p.logger.Warn("event queue full, dropping cart event", "event_id", event.EventID)
	}
}

func (p *Publisher) run() {
	defer p.wg.Done()
	for event := range p.queue {
		if err := p.publish(event); err != nil {
			p.logger.Error("failed to publish cart event", "event_id", event.EventID, "error", err)
		}
	}
}

func (p *Publisher) publish(event CartChanged) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	msg := kafka.Message{
		Key:   []byte(event.CartKey), // one partition per cart keeps events ordered
		Value: payload,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(EventTypeCartChanged)},
			{Key: "event_id", Value: []byte(event.EventID)},
		},
	}

	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	return p.writer.WriteMessages(ctx, msg)
}

// Close publishes what is already queued and closes the writer. Observe must
// not be called after Close.
func (p *Publisher) Close() error {
	var err error
	p.once.Do(func() {
		close(p.queue)
		p.wg.Wait()
		err = p.writer.Close()
	})
	return err
}
