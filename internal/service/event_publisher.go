// Package service holds outbound integrations used by the allocation
// engine.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/iliyamo/hostel-management/internal/queue"
)

const (
	dialTimeout = 3 * time.Second
	// redialPause is how long publishes fail fast after a failed dial.
	redialPause = 10 * time.Second
	heartbeat   = 10 * time.Second
)

// ErrBrokerUnavailable is returned without dialing while a previous dial
// failure is recent.
var ErrBrokerUnavailable = errors.New("rabbitmq unavailable")

// EventPublisher sends allocation events to the durable allocation.events
// queue.  The broker connection is opened on first use and reopened after
// a failure.
type EventPublisher struct {
	url  string
	log  *zap.Logger
	dial func(url string, timeout time.Duration) (*amqp.Connection, error)
	now  func() time.Time

	mu      sync.Mutex
	conn    *amqp.Connection
	ch      *amqp.Channel
	retryAt time.Time
}

func NewEventPublisher(url string, log *zap.Logger) *EventPublisher {
	return &EventPublisher{url: url, log: log, dial: dialBroker, now: time.Now}
}

func dialBroker(url string, timeout time.Duration) (*amqp.Connection, error) {
	return amqp.DialConfig(url, amqp.Config{
		Heartbeat: heartbeat,
		Locale:    "en_US",
		Dial:      amqp.DefaultDial(timeout),
	})
}

// PublishAllocationEvent publishes ev as a persistent JSON message.
func (p *EventPublisher) PublishAllocationEvent(ctx context.Context, ev queue.AllocationEvent) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.ensureChannel(ctx); err != nil {
		return err
	}
	err = p.ch.PublishWithContext(ctx, "", queue.QueueName, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Type:         ev.Type,
		Body:         body,
	})
	if err != nil {
		p.reset()
		return fmt.Errorf("publish %s: %w", ev.Type, err)
	}
	return nil
}

// ensureChannel opens the connection when needed.  The dial is bounded
// by ctx and by dialTimeout, and a failure makes later calls fail fast
// until redialPause has passed.
func (p *EventPublisher) ensureChannel(ctx context.Context) error {
	if p.ch != nil && !p.ch.IsClosed() {
		return nil
	}
	p.reset()
	if now := p.now(); now.Before(p.retryAt) {
		return fmt.Errorf("%w: next dial in %s", ErrBrokerUnavailable, p.retryAt.Sub(now).Round(time.Second))
	}
	timeout := dialTimeout
	if dl, ok := ctx.Deadline(); ok {
		if left := time.Until(dl); left < timeout {
			timeout = left
		}
	}
	if timeout <= 0 {
		return context.DeadlineExceeded
	}
	conn, err := p.dial(p.url, timeout)
	if err != nil {
		p.retryAt = p.now().Add(redialPause)
		return fmt.Errorf("rabbitmq dial: %w", err)
	}
	p.retryAt = time.Time{}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("rabbitmq channel: %w", err)
	}
	if _, err := ch.QueueDeclare(queue.QueueName, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return fmt.Errorf("queue declare: %w", err)
	}
	p.conn, p.ch = conn, ch
	p.log.Debug("rabbitmq publisher connected", zap.String("queue", queue.QueueName))
	return nil
}

func (p *EventPublisher) reset() {
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		_ = p.conn.Close()
	}
	p.ch, p.conn = nil, nil
}

// Close releases the broker connection.
func (p *EventPublisher) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.reset()
}
