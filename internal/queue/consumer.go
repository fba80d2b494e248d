package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// Consumer appends one audit line per reservation event to a log file.
type Consumer struct {
	url     string
	queue   string
	logPath string
	log     *zap.Logger
}

// NewConsumer returns a Consumer reading queue on the broker at url and
// writing to logPath (logs/reservations.log when empty).
func NewConsumer(url, queue, logPath string, log *zap.Logger) *Consumer {
	if logPath == "" {
		logPath = filepath.Join("logs", "reservations.log")
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Consumer{url: url, queue: queue, logPath: logPath, log: log}
}

// Run consumes until ctx is cancelled, reconnecting with exponential
// backoff whenever the broker goes away. Messages that cannot be handled
// are rejected without requeue so a poison message cannot spin the loop.
func (c *Consumer) Run(ctx context.Context) error {
	backoff := time.Second
	for {
		conn, err := amqp.Dial(c.url)
		if err != nil {
			c.log.Warn("event-consumer: dial failed", zap.Error(err), zap.Duration("retry_in", backoff))
			if !sleep(ctx, backoff) {
				return ctx.Err()
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		err = c.consume(ctx, conn)
		_ = conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.log.Warn("event-consumer: loop ended, reconnecting", zap.Error(err))
		if !sleep(ctx, 2*time.Second) {
			return ctx.Err()
		}
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func (c *Consumer) consume(ctx context.Context, conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		c.log.Warn("event-consumer: set QoS failed", zap.Error(err))
	}
	if err := declare(ch, c.queue); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	msgs, err := ch.Consume(c.queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-msgs:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			if err := c.Handle(d.Body); err != nil {
				c.log.Warn("event-consumer: handle message failed", zap.Error(err))
				_ = d.Nack(false, false)
				continue
			}
			_ = d.Ack(false)
		}
	}
}

// Handle decodes one message body and appends its audit line.
func (c *Consumer) Handle(body []byte) error {
	var ev ReservationEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(c.logPath), 0o755); err != nil {
		return fmt.Errorf("mkdir logs: %w", err)
	}
	f, err := os.OpenFile(c.logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()
	if err := WriteAuditLine(f, ev); err != nil {
		return fmt.Errorf("write log: %w", err)
	}
	return nil
}

// WriteAuditLine renders ev as a single human-readable line.
func WriteAuditLine(w io.Writer, ev ReservationEvent) error {
	line := fmt.Sprintf("[%s] %s | reservation_id=%d | requester_id=%d | item_id=%d | qty=%d | dates=%s..%s | status=%s",
		ev.OccurredAt, ev.Type, ev.ReservationID, ev.RequesterID, ev.ItemID, ev.Quantity, ev.StartDate, ev.EndDate, ev.Status)
	if ev.Note != "" {
		line += fmt.Sprintf(" | note=%q", ev.Note)
	}
	_, err := io.WriteString(w, line+"\n")
	return err
}
