// Package redis publishes heritage lifecycle events to Redis pub/sub.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/swadeshi/heritage/pkg/heritage"
)

// Event type names; the channel is <prefix>.<type>.
const (
	EventEntrySubmitted     = "entry.submitted"
	EventEntryStatusChanged = "entry.status_changed"
	EventEntryDeleted       = "entry.deleted"
	EventEntryLiked         = "entry.liked"
)

// Publisher is the part of a redis client the sink needs.
type Publisher interface {
	Publish(ctx context.Context, channel string, message interface{}) *goredis.IntCmd
}

// Event is the JSON payload published on every channel.
type Event struct {
	Type       string          `json:"type"`
	EntryID    uuid.UUID       `json:"entry_id"`
	CategoryID *uuid.UUID      `json:"category_id,omitempty"`
	Status     heritage.Status `json:"status,omitempty"`
	From       heritage.Status `json:"from,omitempty"`
	UserID     *uuid.UUID      `json:"user_id,omitempty"`
	Likes      *int            `json:"likes,omitempty"`
	Liked      *bool           `json:"liked,omitempty"`
	OccurredAt time.Time       `json:"occurred_at"`
}

// Sink implements heritage.EventSink over Redis PUBLISH.
type Sink struct {
	client Publisher
	prefix string
	now    func() time.Time
}

// New creates a sink publishing on channels under prefix.
func New(client Publisher, prefix string) *Sink {
	if prefix == "" {
		prefix = "heritage"
	}
	return &Sink{client: client, prefix: prefix, now: func() time.Time { return time.Now().UTC() }}
}

// Channel returns the channel an event type is published on.
func (s *Sink) Channel(eventType string) string {
	return s.prefix + "." + eventType
}

func (s *Sink) publish(ctx context.Context, ev Event) error {
	ev.OccurredAt = s.now()
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to encode %s event: %w", ev.Type, err)
	}
	if err := s.client.Publish(ctx, s.Channel(ev.Type), payload).Err(); err != nil {
		return fmt.Errorf("failed to publish %s event: %w", ev.Type, err)
	}
	return nil
}

func (s *Sink) EntrySubmitted(ctx context.Context, entry *heritage.Entry) error {
	category := entry.CategoryID
	user := entry.ContributedBy
	return s.publish(ctx, Event{
		Type:       EventEntrySubmitted,
		EntryID:    entry.ID,
		CategoryID: &category,
		Status:     entry.Status,
		UserID:     &user,
	})
}

func (s *Sink) EntryStatusChanged(ctx context.Context, entry *heritage.Entry, from heritage.Status) error {
	return s.publish(ctx, Event{
		Type:    EventEntryStatusChanged,
		EntryID: entry.ID,
		Status:  entry.Status,
		From:    from,
	})
}

func (s *Sink) EntryDeleted(ctx context.Context, entryID uuid.UUID) error {
	return s.publish(ctx, Event{Type: EventEntryDeleted, EntryID: entryID})
}

func (s *Sink) EntryLiked(ctx context.Context, entryID, userID uuid.UUID, result heritage.LikeResult) error {
	likes, liked := result.Likes, result.Liked
	return s.publish(ctx, Event{
		Type:    EventEntryLiked,
		EntryID: entryID,
		UserID:  &userID,
		Likes:   &likes,
		Liked:   &liked,
	})
}
