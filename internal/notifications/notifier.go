// Package notifications publishes forum events into Redis pub/sub channels.
package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"runtime/debug"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// BroadcastChannel carries events every client may see.
	BroadcastChannel   = "notifications:broadcast"
	userChannelPattern = "notifications:user:*"
)

// Event types published for posts.
const (
	EventPostCreated = "post_created"
	EventPostVoted   = "post_voted"
	EventPostDeleted = "post_deleted"
)

// Event is the JSON envelope written to every channel.
type Event struct {
	Type      string    `json:"type"`
	Payload   any       `json:"payload"`
	Timestamp time.Time `json:"timestamp"`
}

// PostVotedPayload describes a vote that changed or created a post's tally.
type PostVotedPayload struct {
	PostID  uint   `json:"post_id"`
	VoterID uint   `json:"voter_id"`
	Value   int    `json:"value"`
	Points  int    `json:"points"`
	Outcome string `json:"outcome"`
}

// PostPayload identifies a post and its author.
type PostPayload struct {
	PostID           uint   `json:"post_id"`
	OriginalPosterID uint   `json:"original_poster_id"`
	Title            string `json:"title,omitempty"`
}

// Notifier provides helpers to publish notifications into Redis channels
type Notifier struct {
	rdb *redis.Client
}

// NewNotifier creates a new Notifier instance using the provided Redis client.
func NewNotifier(rdb *redis.Client) *Notifier {
	return &Notifier{rdb: rdb}
}

// PublishUser sends a notification payload to a user's channel.
func (n *Notifier) PublishUser(ctx context.Context, userID uint, payload string) error {
	if n == nil || n.rdb == nil {
		return nil
	}
	return n.rdb.Publish(ctx, UserChannel(userID), payload).Err()
}

// PublishBroadcast sends a notification payload to all connected users.
func (n *Notifier) PublishBroadcast(ctx context.Context, payload string) error {
	if n == nil || n.rdb == nil {
		return nil
	}
	return n.rdb.Publish(ctx, BroadcastChannel, payload).Err()
}

// Broadcast wraps payload in an Event envelope and publishes it on the broadcast channel.
func (n *Notifier) Broadcast(ctx context.Context, eventType string, payload any) error {
	msg, err := encodeEvent(eventType, payload)
	if err != nil {
		return err
	}
	return n.PublishBroadcast(ctx, msg)
}

// NotifyUser wraps payload in an Event envelope and publishes it on the user's channel.
func (n *Notifier) NotifyUser(ctx context.Context, userID uint, eventType string, payload any) error {
	msg, err := encodeEvent(eventType, payload)
	if err != nil {
		return err
	}
	return n.PublishUser(ctx, userID, msg)
}

func encodeEvent(eventType string, payload any) (string, error) {
	b, err := json.Marshal(Event{Type: eventType, Payload: payload, Timestamp: time.Now().UTC()})
	if err != nil {
		return "", fmt.Errorf("marshal %s event: %w", eventType, err)
	}
	return string(b), nil
}

// StartPatternSubscriber subscribes to the broadcast and per-user channels and calls onMessage
// for each incoming message until ctx is cancelled.
func (n *Notifier) StartPatternSubscriber(
	ctx context.Context, onMessage func(channel string, payload string),
) error {
	if n == nil || n.rdb == nil {
		return nil
	}
	sub := n.rdb.PSubscribe(ctx, userChannelPattern, BroadcastChannel)
	// wait for the subscription so callers do not miss the first publish
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("subscribe: %w", err)
	}
	ch := sub.Channel()

	go func() {
		defer func() { _ = sub.Close() }()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				func() {
					defer func() {
						if r := recover(); r != nil {
							log.Printf("PANIC in PatternSubscriber: %v\n%s", r, debug.Stack())
						}
					}()
					onMessage(msg.Channel, msg.Payload)
				}()
			}
		}
	}()

	return nil
}

// UserChannel derives the Redis channel name for a user.
func UserChannel(userID uint) string {
	return "notifications:user:" + strconv.FormatUint(uint64(userID), 10)
}
