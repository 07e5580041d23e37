package heritage

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// NoopEventSink is a no-operation implementation of EventSink
type NoopEventSink struct{}

// NewNoopEventSink creates a new no-operation event sink
func NewNoopEventSink() EventSink {
	return &NoopEventSink{}
}

func (n *NoopEventSink) EntrySubmitted(ctx context.Context, entry *Entry) error { return nil }

func (n *NoopEventSink) EntryStatusChanged(ctx context.Context, entry *Entry, from Status) error {
	return nil
}

func (n *NoopEventSink) EntryDeleted(ctx context.Context, entryID uuid.UUID) error { return nil }

func (n *NoopEventSink) EntryLiked(ctx context.Context, entryID, userID uuid.UUID, result LikeResult) error {
	return nil
}

// LoggingEventSink is an event sink that logs events but takes no other action
// Useful for development and debugging
type LoggingEventSink struct {
	logger Logger
}

// NewLoggingEventSink creates a new logging event sink
func NewLoggingEventSink(logger Logger) EventSink {
	return &LoggingEventSink{logger: logger}
}

// EntrySubmitted logs the submission
func (l *LoggingEventSink) EntrySubmitted(ctx context.Context, entry *Entry) error {
	l.logger.Infof("Entry submitted: ID=%s, Title=%s, Status=%s", entry.ID, entry.Title, entry.Status)
	return nil
}

// EntryStatusChanged logs the moderation transition
func (l *LoggingEventSink) EntryStatusChanged(ctx context.Context, entry *Entry, from Status) error {
	l.logger.Infof("Entry status changed: ID=%s, %s -> %s", entry.ID, from, entry.Status)
	return nil
}

// EntryDeleted logs the deletion
func (l *LoggingEventSink) EntryDeleted(ctx context.Context, entryID uuid.UUID) error {
	l.logger.Infof("Entry deleted: ID=%s", entryID)
	return nil
}

// EntryLiked logs the toggle result
func (l *LoggingEventSink) EntryLiked(ctx context.Context, entryID, userID uuid.UUID, result LikeResult) error {
	l.logger.Infof("Entry like toggled: ID=%s, User=%s, Liked=%t, Likes=%d", entryID, userID, result.Liked, result.Likes)
	return nil
}

// MultiEventSink fans every event out to each sink. All sinks are called;
// their errors are joined.
type MultiEventSink struct {
	sinks []EventSink
}

// NewMultiEventSink combines sinks into one
func NewMultiEventSink(sinks ...EventSink) EventSink {
	if len(sinks) == 1 {
		return sinks[0]
	}
	return &MultiEventSink{sinks: sinks}
}

func (m *MultiEventSink) each(fn func(EventSink) error) error {
	var errs []error
	for _, s := range m.sinks {
		if err := fn(s); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m *MultiEventSink) EntrySubmitted(ctx context.Context, entry *Entry) error {
	return m.each(func(s EventSink) error { return s.EntrySubmitted(ctx, entry) })
}

func (m *MultiEventSink) EntryStatusChanged(ctx context.Context, entry *Entry, from Status) error {
	return m.each(func(s EventSink) error { return s.EntryStatusChanged(ctx, entry, from) })
}

func (m *MultiEventSink) EntryDeleted(ctx context.Context, entryID uuid.UUID) error {
	return m.each(func(s EventSink) error { return s.EntryDeleted(ctx, entryID) })
}

func (m *MultiEventSink) EntryLiked(ctx context.Context, entryID, userID uuid.UUID, result LikeResult) error {
	return m.each(func(s EventSink) error { return s.EntryLiked(ctx, entryID, userID, result) })
}

// nopLogger discards everything.
type nopLogger struct{}

func (nopLogger) Infof(string, ...interface{})  {}
func (nopLogger) Warnf(string, ...interface{})  {}
func (nopLogger) Errorf(string, ...interface{}) {}
