package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// Consumer appends every allocation event to a log file, one line per
// event.
type Consumer struct {
	url  string
	path string
	log  *zap.Logger
}

// NewConsumer returns a consumer writing to path (logs/allocation.log
// when empty).
func NewConsumer(url, path string, log *zap.Logger) *Consumer {
	if path == "" {
		path = filepath.Join("logs", "allocation.log")
	}
	return &Consumer{url: url, path: path, log: log}
}

// Run consumes until ctx is cancelled, reconnecting with exponential
// backoff when the broker is unreachable or the channel closes.
func (c *Consumer) Run(ctx context.Context) error {
	backoff := time.Second
	for {
		conn, err := amqp.Dial(c.url)
		if err == nil {
			backoff = time.Second
			err = c.consume(ctx, conn)
			_ = conn.Close()
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.log.Warn("allocation consumer disconnected", zap.Error(err), zap.Duration("retry_in", backoff))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		if backoff < 30*time.Second {
			backoff *= 2
		}
	}
}

func (c *Consumer) consume(ctx context.Context, conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		c.log.Warn("set qos failed", zap.Error(err))
	}
	if _, err := ch.QueueDeclare(QueueName, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	msgs, err := ch.ConsumeWithContext(ctx, QueueName, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	for d := range msgs {
		if err := c.handle(d.Body); err != nil {
			c.log.Error("allocation event rejected", zap.Error(err))
			_ = d.Nack(false, false)
			continue
		}
		_ = d.Ack(false)
	}
	return errors.New("deliveries channel closed")
}

func (c *Consumer) handle(body []byte) error {
	var ev AllocationEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	if ev.Type == "" {
		return errors.New("event without type")
	}
	if err := os.MkdirAll(filepath.Dir(c.path), 0o755); err != nil {
		return fmt.Errorf("mkdir: %w", err)
	}
	f, err := os.OpenFile(c.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()

	if _, err := f.WriteString(formatEvent(ev)); err != nil {
		return fmt.Errorf("write log: %w", err)
	}
	if ev.Type == EventRoomsExhausted {
		c.log.Warn("rooms exhausted", zap.Int("students_without_room", ev.Remaining))
	}
	return nil
}

func formatEvent(ev AllocationEvent) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "[%s] %s", ev.OccurredAt, ev.Type)
	field := func(k string, v any) { fmt.Fprintf(&sb, " | %s=%v", k, v) }
	switch ev.Type {
	case EventRoomsExhausted:
		field("students_without_room", ev.Remaining)
	default:
		field("allocation_id", ev.AllocationID)
		field("student_id", ev.StudentID)
		if ev.FromRoom != "" {
			field("from", ev.FromRoom)
		}
		if ev.RoomLabel != "" {
			field("room", ev.RoomLabel)
		}
		if ev.FeeAmount != "" {
			field("fee", ev.FeeAmount)
		}
	}
	sb.WriteByte('\n')
	return sb.String()
}
