package events

import (
	"context"
	"errors"
	"fmt"
	"time"

	"taskhub/config"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
)

const handleTimeout = 5 * time.Second

type Client struct {
	Conn *nats.Conn
	JS   nats.JetStreamContext
}

// ConnectJetStream keeps retrying until the server answers and the event
// stream exists, or until cfg.ConnectTimeout passes.
func ConnectJetStream(ctx context.Context, cfg config.NATSConfig, log zerolog.Logger) (*Client, error) {
	deadline := time.Now().Add(cfg.ConnectTimeout)
	var lastErr error
	for time.Now().Before(deadline) {
		client, err := connect(cfg)
		if err == nil {
			return client, nil
		}
		lastErr = err
		log.Warn().Err(err).Str("url", cfg.URL).Msg("waiting for nats")
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(500 * time.Millisecond):
		}
	}
	return nil, fmt.Errorf("connect jetstream timeout after %s: %w", cfg.ConnectTimeout, lastErr)
}

func connect(cfg config.NATSConfig) (*Client, error) {
	conn, err := nats.Connect(cfg.URL, nats.Name("taskhub-realtime"))
	if err != nil {
		return nil, err
	}
	js, err := conn.JetStream()
	if err != nil {
		conn.Close()
		return nil, err
	}
	if err := EnsureStream(js, cfg.Stream, cfg.Subject); err != nil {
		conn.Close()
		return nil, err
	}
	return &Client{Conn: conn, JS: js}, nil
}

// EnsureStream creates the stream if it does not exist yet.
func EnsureStream(js nats.JetStreamContext, name, subject string) error {
	_, err := js.StreamInfo(name)
	if err == nil {
		return nil
	}
	if !errors.Is(err, nats.ErrStreamNotFound) {
		return err
	}
	_, err = js.AddStream(&nats.StreamConfig{
		Name:      name,
		Subjects:  []string{subject},
		Retention: nats.LimitsPolicy,
		Storage:   nats.FileStorage,
		Replicas:  1,
	})
	return err
}

func (c *Client) Close() {
	if c == nil || c.Conn == nil {
		return
	}
	_ = c.Conn.Drain()
	c.Conn.Close()
}

// Subscribe joins the consumer queue group so several replicas share the
// stream. Each message is acked only after its notifications are stored.
func (c *Client) Subscribe(ctx context.Context, cfg config.NATSConfig, consumer *Consumer) (*nats.Subscription, error) {
	return c.JS.QueueSubscribe(cfg.Subject, cfg.Queue, func(msg *nats.Msg) {
		handleCtx, cancel := context.WithTimeout(ctx, handleTimeout)
		defer cancel()
		settle(msg, consumer.Handle(handleCtx, msg.Data), consumer.log)
	}, nats.ManualAck())
}

type acker interface {
	Ack(opts ...nats.AckOpt) error
	Nak(opts ...nats.AckOpt) error
	Term(opts ...nats.AckOpt) error
}

// settle acks handled messages, terminates ones that can never succeed and
// naks the rest for redelivery.
func settle(msg acker, err error, log zerolog.Logger) {
	switch {
	case err == nil:
		_ = msg.Ack()
	case errors.Is(err, ErrInvalidEventPayload), errors.Is(err, ErrUnsupportedEventType):
		log.Warn().Err(err).Msg("discarding event")
		_ = msg.Term()
	default:
		log.Error().Err(err).Msg("event handling failed")
		_ = msg.Nak()
	}
}
