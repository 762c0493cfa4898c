// Package rabbitmq publishes step events to a RabbitMQ topic exchange.
package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/chainsafe/anchor-orchestrator/pkg/workflow"
)

const publishTimeout = 5 * time.Second

// Channel is the subset of *amqp091.Channel the publisher uses.
type Channel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp091.Table) error
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp091.Publishing) error
	Close() error
}

// Config configures the AMQP connection.
type Config struct {
	URL         string
	Exchange    string
	Buffer      int
	DialTimeout time.Duration
}

// Publisher is an asynchronous workflow.Observer. Events are queued and
// published by a single goroutine; when the queue is full they are dropped.
type Publisher struct {
	ch       Channel
	conn     *amqp091.Connection
	exchange string
	logger   *zap.Logger

	mu      sync.RWMutex
	closed  bool
	events  chan workflow.StepEvent
	done    chan struct{}
	dropped atomic.Int64
}

var _ workflow.Observer = (*Publisher)(nil)

func sanitizeAMQPURL(raw string) (string, error) {
	clean := strings.Trim(strings.TrimSpace(raw), "\"'")
	u, err := url.Parse(clean)
	if err != nil {
		return "", err
	}
	if u.Scheme != "amqp" && u.Scheme != "amqps" {
		return "", errors.New("AMQP scheme must be either 'amqp://' or 'amqps://'")
	}
	return clean, nil
}

// Dial connects to the broker and returns a running publisher.
func Dial(cfg Config, logger *zap.Logger) (*Publisher, error) {
	cleanURL, err := sanitizeAMQPURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid amqp url: %w", err)
	}
	timeout := cfg.DialTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	conn, err := amqp091.DialConfig(cleanURL, amqp091.Config{Dial: amqp091.DefaultDial(timeout)})
	if err != nil {
		return nil, fmt.Errorf("dial amqp: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open amqp channel: %w", err)
	}
	p, err := NewPublisher(ch, cfg.Exchange, cfg.Buffer, logger)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	p.conn = conn
	return p, nil
}

// NewPublisher declares the topic exchange on ch and starts publishing.
func NewPublisher(ch Channel, exchange string, buffer int, logger *zap.Logger) (*Publisher, error) {
	if exchange == "" {
		return nil, errors.New("exchange name is required")
	}
	if buffer <= 0 {
		buffer = 256
	}
	err := ch.ExchangeDeclare(
		exchange, // name
		"topic",  // type
		true,     // durable
		false,    // auto-deleted
		false,    // internal
		false,    // no-wait
		nil,      // arguments
	)
	if err != nil {
		return nil, fmt.Errorf("declare exchange %s: %w", exchange, err)
	}

	p := &Publisher{
		ch:       ch,
		exchange: exchange,
		logger:   logger,
		events:   make(chan workflow.StepEvent, buffer),
		done:     make(chan struct{}),
	}
	go p.loop()
	return p, nil
}

// RoutingKey returns "run.<phase>.<outcome>".
func RoutingKey(ev workflow.StepEvent) string {
	outcome := "succeeded"
	switch {
	case ev.Informational:
		outcome = "info"
	case !ev.Success:
		outcome = "failed"
	}
	phase := string(ev.Phase)
	if phase == "" {
		phase = "unknown"
	}
	return "run." + phase + "." + outcome
}

// OnStep queues ev without blocking.
func (p *Publisher) OnStep(ev workflow.StepEvent) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return
	}
	select {
	case p.events <- ev:
	default:
		n := p.dropped.Add(1)
		p.logger.Warn("event queue full, dropping event",
			zap.String("run_id", ev.RunID.String()),
			zap.Int64("dropped", n))
	}
}

// Dropped returns the number of events dropped because the queue was full.
func (p *Publisher) Dropped() int64 {
	return p.dropped.Load()
}

func (p *Publisher) loop() {
	defer close(p.done)
	for ev := range p.events {
		if err := p.publish(ev); err != nil {
			p.logger.Warn("failed to publish event",
				zap.String("run_id", ev.RunID.String()),
				zap.String("routing_key", RoutingKey(ev)),
				zap.Error(err))
		}
	}
}

func (p *Publisher) publish(ev workflow.StepEvent) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	return p.ch.PublishWithContext(ctx,
		p.exchange,     // exchange
		RoutingKey(ev), // routing key
		false,          // mandatory
		false,          // immediate
		amqp091.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp091.Persistent,
			MessageId:    ev.RunID.String(),
			Timestamp:    ev.Time,
			Body:         body,
		})
}

// Close drains queued events and closes the channel and connection.
func (p *Publisher) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.events)
	p.mu.Unlock()

	<-p.done
	err := p.ch.Close()
	if p.conn != nil {
		err = errors.Join(err, p.conn.Close())
	}
	return err
}
