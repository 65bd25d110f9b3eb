// Package mail hands password reset links to a delivery backend.
package mail

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"forum/internal/middleware"
	"forum/internal/observability"

	"github.com/redis/go-redis/v9"
)

// OutboxChannel is the Redis channel an external delivery worker consumes.
const OutboxChannel = "mail:outbox"

// Message is a single outbound email.
type Message struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Subject string `json:"subject"`
	HTML    string `json:"html"`
}

// Sender delivers a message or hands it off for delivery.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// ResetPasswordMessage builds the reset link email for to.
func ResetPasswordMessage(from, to, link string) Message {
	return Message{
		From:    from,
		To:      to,
		Subject: "Change password",
		HTML:    fmt.Sprintf(`<a href="%s">reset password</a>`, link),
	}
}

// LogSender writes messages to the application log. Used in development.
type LogSender struct {
	logger *slog.Logger
}

// NewLogSender creates a LogSender using the global logger when logger is nil.
func NewLogSender(logger *slog.Logger) *LogSender {
	if logger == nil {
		logger = middleware.Logger
	}
	return &LogSender{logger: logger}
}

func (s *LogSender) Send(ctx context.Context, msg Message) error {
	s.logger.InfoContext(ctx, "outbound mail",
		slog.String("to", msg.To),
		slog.String("subject", msg.Subject),
		slog.String("html", msg.HTML),
	)
	observability.MailOutboundTotal.WithLabelValues("log", "ok").Inc()
	return nil
}

// RedisOutbox publishes messages as JSON on OutboxChannel.
type RedisOutbox struct {
	rdb *redis.Client
}

// NewRedisOutbox creates an outbox sender on rdb.
func NewRedisOutbox(rdb *redis.Client) *RedisOutbox {
	return &RedisOutbox{rdb: rdb}
}

func (o *RedisOutbox) Send(ctx context.Context, msg Message) error {
	b, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal mail: %w", err)
	}
	if err := o.rdb.Publish(ctx, OutboxChannel, b).Err(); err != nil {
		observability.MailOutboundTotal.WithLabelValues("redis", "error").Inc()
		return fmt.Errorf("publish mail: %w", err)
	}
	observability.MailOutboundTotal.WithLabelValues("redis", "ok").Inc()
	return nil
}

// NewSender picks the sender for driver ("log" or "redis").
func NewSender(driver string, rdb *redis.Client) (Sender, error) {
	switch driver {
	case "", "log":
		return NewLogSender(nil), nil
	case "redis":
		if rdb == nil {
			return nil, fmt.Errorf("mail driver redis requires a redis client")
		}
		return NewRedisOutbox(rdb), nil
	default:
		return nil, fmt.Errorf("unsupported mail driver %q", driver)
	}
}
