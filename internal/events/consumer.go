package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"
)

// Handler processes one decoded event
type Handler func(ev TransactionEvent) error

// LogHandler writes each event as a structured log line
func LogHandler(log logrus.FieldLogger) Handler {
	return func(ev TransactionEvent) error {
		log.WithFields(logrus.Fields{
			"event_id":       ev.ID,
			"type":           ev.Type,
			"transaction_id": ev.TransactionID,
			"user_id":        ev.UserID,
			"book_id":        ev.BookID,
			"status":         ev.Status,
			"fine":           ev.Fine,
			"occurred_at":    ev.OccurredAt,
		}).Info("Lending event")
		return nil
	}
}

// Consume connects to the broker and feeds events to h until ctx is done.
// Lost connections are redialed with exponential backoff capped at 30s.
func Consume(ctx context.Context, url string, h Handler, log logrus.FieldLogger) error {
	backoff := time.Second
	for {
		conn, err := amqp.Dial(url)
		if err != nil {
			log.WithError(err).Warnf("event consumer: dial failed, retrying in %s", backoff)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second // reset after successful connect

		err = consumeLoop(ctx, conn, h, log)
		_ = conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log.WithError(err).Warn("event consumer: loop ended, reconnecting")
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(2 * time.Second):
		}
	}
}

func consumeLoop(ctx context.Context, conn *amqp.Connection, h Handler, log logrus.FieldLogger) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		log.WithError(err).Warn("event consumer: set QoS failed")
	}
	if err := declareQueue(ch); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	msgs, err := ch.Consume(QueueName, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-msgs:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			if err := handleDelivery(d.Body, h); err != nil {
				log.WithError(err).Error("event consumer: handle message failed")
				_ = d.Nack(false, false) // reject, do not requeue to avoid tight loops
				continue
			}
			_ = d.Ack(false)
		}
	}
}

func handleDelivery(body []byte, h Handler) error {
	var ev TransactionEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	return h(ev)
}
