package queue

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/fabseal/fabseal/internal/requestid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestQueue(t *testing.T) (*Queue, *redis.Client, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	q := New(rdb, Config{
		Stream:       "test:submissions",
		Group:        "test:converters",
		BlockTimeout: 20 * time.Millisecond,
		MaxLen:       5,
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	return q, rdb, mr
}

func TestNew_Defaults(t *testing.T) {
	q := New(nil, Config{}, slog.New(slog.NewTextHandler(io.Discard, nil)))

	cfg := q.Config()
	assert.Equal(t, DefaultStream, cfg.Stream)
	assert.Equal(t, DefaultGroup, cfg.Group)
	assert.Equal(t, DefaultBlockTimeout, cfg.BlockTimeout)
	assert.Equal(t, int64(DefaultMaxLen), cfg.MaxLen)
}

func TestEnsureGroup_CreatesStreamAndGroup(t *testing.T) {
	q, rdb, _ := newTestQueue(t)
	ctx := context.Background()

	require.NoError(t, q.EnsureGroup(ctx))

	groups, err := rdb.XInfoGroups(ctx, "test:submissions").Result()
	require.NoError(t, err)
	require.Len(t, groups, 1)
	assert.Equal(t, "test:converters", groups[0].Name)
}

func TestEnsureGroup_Idempotent(t *testing.T) {
	q, _, _ := newTestQueue(t)
	ctx := context.Background()

	require.NoError(t, q.EnsureGroup(ctx))
	assert.NoError(t, q.EnsureGroup(ctx))
}

func TestEnsureGroup_LostRace(t *testing.T) {
	q, _, _ := newTestQueue(t)
	ctx := context.Background()

	// Both workers saw no group and both try to create it.
	require.NoError(t, q.createGroup(ctx))
	assert.NoError(t, q.createGroup(ctx))
}

func TestEnsureGroup_WrongType(t *testing.T) {
	q, _, mr := newTestQueue(t)
	require.NoError(t, mr.Set("test:submissions", "not a stream"))

	assert.Error(t, q.EnsureGroup(context.Background()))
}

func TestEnsureGroup_AnchoredAtEnd(t *testing.T) {
	q, _, _ := newTestQueue(t)
	ctx := context.Background()

	_, err := q.Enqueue(ctx, 0x01)
	require.NoError(t, err)
	require.NoError(t, q.EnsureGroup(ctx))

	entries, err := q.Read(ctx, "c1")
	require.NoError(t, err)
	assert.Empty(t, entries)

	_, err = q.Enqueue(ctx, 0x02)
	require.NoError(t, err)

	entries, err = q.Read(ctx, "c1")
	require.NoError(t, err)
	require.Len(t, entries, 1)

	id, err := entries[0].RequestID()
	require.NoError(t, err)
	assert.Equal(t, requestid.ID(0x02), id)
}

func TestEnqueue_Wire(t *testing.T) {
	q, rdb, _ := newTestQueue(t)
	ctx := context.Background()

	entryID, err := q.Enqueue(ctx, 0xDEADBEEF)
	require.NoError(t, err)
	assert.NotEmpty(t, entryID)

	msgs, err := rdb.XRange(ctx, "test:submissions", "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, entryID, msgs[0].ID)
	assert.Equal(t, map[string]any{"request_id": string([]byte{0xEF, 0xBE, 0xAD, 0xDE})}, msgs[0].Values)
}

func TestEnqueue_Trims(t *testing.T) {
	q, rdb, _ := newTestQueue(t)
	ctx := context.Background()

	for i := 0; i < 20; i++ {
		_, err := q.Enqueue(ctx, requestid.ID(i))
		require.NoError(t, err)
	}

	n, err := rdb.XLen(ctx, "test:submissions").Result()
	require.NoError(t, err)
	assert.Less(t, n, int64(20))
}

func TestRead_Idle(t *testing.T) {
	q, _, _ := newTestQueue(t)
	ctx := context.Background()
	require.NoError(t, q.EnsureGroup(ctx))

	entries, err := q.Read(ctx, "c1")
	assert.NoError(t, err)
	assert.Empty(t, entries)
}

func TestRead_NoGroup(t *testing.T) {
	q, _, _ := newTestQueue(t)

	_, err := q.Read(context.Background(), "c1")
	assert.Error(t, err)
}

func TestRead_OneAtATime(t *testing.T) {
	q, _, _ := newTestQueue(t)
	ctx := context.Background()
	require.NoError(t, q.EnsureGroup(ctx))

	for _, id := range []requestid.ID{1, 2, 3} {
		_, err := q.Enqueue(ctx, id)
		require.NoError(t, err)
	}

	var got []requestid.ID
	for i := 0; i < 3; i++ {
		entries, err := q.Read(ctx, "c1")
		require.NoError(t, err)
		require.Len(t, entries, 1)

		id, err := entries[0].RequestID()
		require.NoError(t, err)
		got = append(got, id)
	}
	assert.Equal(t, []requestid.ID{1, 2, 3}, got)
}

func TestRead_CompetingConsumers(t *testing.T) {
	q, _, _ := newTestQueue(t)
	ctx := context.Background()
	require.NoError(t, q.EnsureGroup(ctx))

	_, err := q.Enqueue(ctx, 0xAA)
	require.NoError(t, err)

	first, err := q.Read(ctx, "c1")
	require.NoError(t, err)
	second, err := q.Read(ctx, "c2")
	require.NoError(t, err)

	assert.Len(t, first, 1)
	assert.Empty(t, second)
}

func TestAck(t *testing.T) {
	q, rdb, _ := newTestQueue(t)
	ctx := context.Background()
	require.NoError(t, q.EnsureGroup(ctx))

	_, err := q.Enqueue(ctx, 0xAA)
	require.NoError(t, err)
	entries, err := q.Read(ctx, "c1")
	require.NoError(t, err)
	require.Len(t, entries, 1)

	require.NoError(t, q.Ack(ctx, entries[0].ID))

	groups, err := rdb.XInfoGroups(ctx, "test:submissions").Result()
	require.NoError(t, err)
	require.Len(t, groups, 1)
	assert.Equal(t, int64(0), groups[0].Pending)

	err = q.Ack(ctx, entries[0].ID)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrAckMismatch))
}

func TestRemoveConsumer(t *testing.T) {
	q, rdb, _ := newTestQueue(t)
	ctx := context.Background()
	require.NoError(t, q.EnsureGroup(ctx))

	_, err := q.Enqueue(ctx, 0xAA)
	require.NoError(t, err)
	entries, err := q.Read(ctx, "c1")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.NoError(t, q.Ack(ctx, entries[0].ID))

	pending, err := q.RemoveConsumer(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, int64(0), pending)

	groups, err := rdb.XInfoGroups(ctx, "test:submissions").Result()
	require.NoError(t, err)
	require.Len(t, groups, 1)
	assert.Equal(t, int64(0), groups[0].Consumers)
}

func TestEntry_RequestID(t *testing.T) {
	tests := []struct {
		name    string
		values  map[string]any
		want    requestid.ID
		wantErr error
	}{
		{
			name:   "string value",
			values: map[string]any{"request_id": string([]byte{0x04, 0x03, 0x02, 0x01})},
			want:   0x01020304,
		},
		{
			name:   "byte slice value",
			values: map[string]any{"request_id": []byte{0xEF, 0xBE, 0xAD, 0xDE}},
			want:   0xDEADBEEF,
		},
		{
			name:    "missing field",
			values:  map[string]any{"other": "x"},
			wantErr: ErrMissingField,
		},
		{
			name:    "unexpected type",
			values:  map[string]any{"request_id": 42},
			wantErr: ErrUnexpectedValue,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, err := Entry{ID: "1-0", Values: tt.values}.RequestID()
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, id)
		})
	}
}

func TestEntry_RequestID_WrongLength(t *testing.T) {
	for _, raw := range []string{"", "abc", "abcde"} {
		_, err := Entry{ID: "1-0", Values: map[string]any{"request_id": raw}}.RequestID()

		var lenErr *requestid.LengthError
		require.True(t, errors.As(err, &lenErr), "value %q", raw)
		assert.Equal(t, len(raw), lenErr.Len)
	}
}
