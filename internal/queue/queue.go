// Package queue implements the submission queue: a Redis stream drained by a
// consumer group, so every entry is delivered to exactly one live consumer.
//
// Entries carry a single field, request_id, holding the 4-byte wire form of a
// requestid.ID. Producers trim the stream approximately to a maximum length.
// Consumers read one entry at a time and acknowledge every delivered entry
// exactly once, whether or not processing succeeded.
package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/fabseal/fabseal/internal/requestid"
	"github.com/redis/go-redis/v9"
)

const (
	// DefaultStream is the stream shared by the producer and every worker.
	DefaultStream = "fabseal:submissions"
	// DefaultGroup is the consumer group every worker joins.
	DefaultGroup = "fabseal:converters"
	// DefaultBlockTimeout bounds one blocking read.
	DefaultBlockTimeout = time.Second
	// DefaultMaxLen is the approximate stream length kept by the producer.
	DefaultMaxLen = 50

	// RequestIDField is the only field of a queue entry.
	RequestIDField = "request_id"
)

var (
	// ErrAckMismatch is returned when XACK reports a count other than one.
	ErrAckMismatch = errors.New("unexpected acknowledgement count")
	// ErrMissingField is returned when an entry has no request_id field.
	ErrMissingField = errors.New("entry has no request_id field")
	// ErrUnexpectedValue is returned when request_id has an unexpected shape.
	ErrUnexpectedValue = errors.New("unexpected request_id value")
)

// Config names the stream and group and tunes reads and trimming.
type Config struct {
	Stream       string
	Group        string
	BlockTimeout time.Duration
	MaxLen       int64
}

func (c Config) withDefaults() Config {
	if c.Stream == "" {
		c.Stream = DefaultStream
	}
	if c.Group == "" {
		c.Group = DefaultGroup
	}
	if c.BlockTimeout <= 0 {
		c.BlockTimeout = DefaultBlockTimeout
	}
	if c.MaxLen <= 0 {
		c.MaxLen = DefaultMaxLen
	}
	return c
}

// Entry is one delivered stream entry.
type Entry struct {
	ID     string
	Values map[string]any
}

// RequestID decodes the request_id field into an ID. Any error here means
// the producer broke the wire contract.
func (e Entry) RequestID() (requestid.ID, error) {
	raw, ok := e.Values[RequestIDField]
	if !ok {
		return 0, fmt.Errorf("entry %s: %w", e.ID, ErrMissingField)
	}

	var b []byte
	switch v := raw.(type) {
	case string:
		b = []byte(v)
	case []byte:
		b = v
	default:
		return 0, fmt.Errorf("entry %s: %w: %T", e.ID, ErrUnexpectedValue, raw)
	}

	id, err := requestid.FromBytes(b)
	if err != nil {
		return 0, fmt.Errorf("entry %s: %w", e.ID, err)
	}
	return id, nil
}

// Queue is a handle on the submission stream and its consumer group.
type Queue struct {
	rdb    redis.UniversalClient
	cfg    Config
	logger *slog.Logger
}

// New creates a Queue, filling unset config fields with defaults.
func New(rdb redis.UniversalClient, cfg Config, logger *slog.Logger) *Queue {
	return &Queue{
		rdb:    rdb,
		cfg:    cfg.withDefaults(),
		logger: logger,
	}
}

// Config returns the effective configuration.
func (q *Queue) Config() Config {
	return q.cfg
}

// Enqueue appends an entry for id, trimming the stream to roughly MaxLen
// entries, and returns the server-assigned entry id.
func (q *Queue) Enqueue(ctx context.Context, id requestid.ID) (string, error) {
	entryID, err := q.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: q.cfg.Stream,
		MaxLen: q.cfg.MaxLen,
		Approx: true,
		Values: []any{RequestIDField, id.Bytes()},
	}).Result()
	if err != nil {
		return "", fmt.Errorf("failed to append to %s: %w", q.cfg.Stream, err)
	}

	q.logger.Debug("Submission queued",
		slog.String("request_id", id.String()),
		slog.String("entry_id", entryID),
		slog.String("stream", q.cfg.Stream),
	)
	return entryID, nil
}

// EnsureGroup creates the consumer group at the end of the stream unless it
// already exists. Losing a creation race to another worker is not an error.
func (q *Queue) EnsureGroup(ctx context.Context) error {
	exists, err := q.groupExists(ctx)
	if err != nil {
		return fmt.Errorf("failed to query consumer groups of %s: %w", q.cfg.Stream, err)
	}
	if exists {
		q.logger.Info("Consumer group already exists",
			slog.String("stream", q.cfg.Stream),
			slog.String("group", q.cfg.Group),
		)
		return nil
	}

	return q.createGroup(ctx)
}

func (q *Queue) groupExists(ctx context.Context) (bool, error) {
	groups, err := q.rdb.XInfoGroups(ctx, q.cfg.Stream).Result()
	if err != nil {
		if isNoSuchKey(err) {
			return false, nil
		}
		return false, err
	}

	for _, g := range groups {
		if g.Name == q.cfg.Group {
			return true, nil
		}
	}
	return false, nil
}

// createGroup anchors the group at "$": entries appended before the fleet
// starts are never delivered.
func (q *Queue) createGroup(ctx context.Context) error {
	err := q.rdb.XGroupCreateMkStream(ctx, q.cfg.Stream, q.cfg.Group, "$").Err()
	if err == nil {
		q.logger.Info("Consumer group created",
			slog.String("stream", q.cfg.Stream),
			slog.String("group", q.cfg.Group),
		)
		return nil
	}

	if isBusyGroup(err) {
		q.logger.Info("Consumer group was created concurrently by another worker",
			slog.String("stream", q.cfg.Stream),
			slog.String("group", q.cfg.Group),
		)
		return nil
	}

	return fmt.Errorf("failed to create consumer group %s on %s: %w", q.cfg.Group, q.cfg.Stream, err)
}

// Read blocks for up to BlockTimeout waiting for at most one new entry for
// consumer. An idle timeout returns no entries and no error.
func (q *Queue) Read(ctx context.Context, consumer string) ([]Entry, error) {
	streams, err := q.rdb.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    q.cfg.Group,
		Consumer: consumer,
		Streams:  []string{q.cfg.Stream, ">"},
		Count:    1,
		Block:    q.cfg.BlockTimeout,
	}).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read from %s: %w", q.cfg.Stream, err)
	}

	var entries []Entry
	for _, s := range streams {
		for _, m := range s.Messages {
			entries = append(entries, Entry{ID: m.ID, Values: m.Values})
		}
	}
	return entries, nil
}

// Ack removes entryID from the group's pending entries list.
func (q *Queue) Ack(ctx context.Context, entryID string) error {
	n, err := q.rdb.XAck(ctx, q.cfg.Stream, q.cfg.Group, entryID).Result()
	if err != nil {
		return fmt.Errorf("failed to acknowledge %s: %w", entryID, err)
	}
	if n != 1 {
		return fmt.Errorf("acknowledging %s: %w: %d", entryID, ErrAckMismatch, n)
	}
	return nil
}

// RemoveConsumer deregisters consumer from the group and returns the number
// of entries that were still pending for it. The group itself is left intact.
func (q *Queue) RemoveConsumer(ctx context.Context, consumer string) (int64, error) {
	pending, err := q.rdb.XGroupDelConsumer(ctx, q.cfg.Stream, q.cfg.Group, consumer).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to remove consumer %s from %s: %w", consumer, q.cfg.Group, err)
	}
	return pending, nil
}

func isBusyGroup(err error) bool {
	return err != nil && strings.HasPrefix(err.Error(), "BUSYGROUP")
}

func isNoSuchKey(err error) bool {
	return err != nil && strings.Contains(strings.ToLower(err.Error()), "no such key")
}
