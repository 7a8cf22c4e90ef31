package worker

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"sync"

	"github.com/fabseal/fabseal/internal/keyspace"
	"github.com/fabseal/fabseal/internal/queue"
	"github.com/fabseal/fabseal/internal/requestid"
	"github.com/fabseal/fabseal/internal/store"
	"github.com/fabseal/fabseal/internal/worker/domain"
)

func newTestLogger() (*slog.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	return slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})), &buf
}

func entryFor(entryID string, id requestid.ID) queue.Entry {
	return queue.Entry{
		ID:     entryID,
		Values: map[string]any{queue.RequestIDField: string(id.Bytes())},
	}
}

type fakeQueue struct {
	mu       sync.Mutex
	entries  []queue.Entry
	readErrs []error
	reads    int
	acked    []string
	ackErr   error
	removed  []string
	onEmpty  func()
}

func (q *fakeQueue) Read(_ context.Context, _ string) ([]queue.Entry, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.reads++

	if len(q.readErrs) > 0 {
		err := q.readErrs[0]
		q.readErrs = q.readErrs[1:]
		return nil, err
	}
	if len(q.entries) == 0 {
		if q.onEmpty != nil {
			q.onEmpty()
		}
		return nil, nil
	}

	e := q.entries[0]
	q.entries = q.entries[1:]
	return []queue.Entry{e}, nil
}

func (q *fakeQueue) Ack(_ context.Context, entryID string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.acked = append(q.acked, entryID)
	return q.ackErr
}

func (q *fakeQueue) RemoveConsumer(_ context.Context, consumer string) (int64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.removed = append(q.removed, consumer)
	return 0, nil
}

type fakeStore struct {
	keys   keyspace.Keyspace
	data   map[string][]byte
	getErr error
	putErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{keys: keyspace.New(""), data: map[string][]byte{}}
}

func (s *fakeStore) Get(_ context.Context, c keyspace.Category, id requestid.ID) ([]byte, error) {
	if s.getErr != nil {
		return nil, s.getErr
	}
	v, ok := s.data[s.keys.Key(c, id)]
	if !ok {
		return nil, store.ErrNotFound
	}
	return v, nil
}

func (s *fakeStore) Put(_ context.Context, c keyspace.Category, id requestid.ID, data []byte) error {
	if s.putErr != nil {
		return s.putErr
	}
	s.data[s.keys.Key(c, id)] = data
	return nil
}

func (s *fakeStore) has(c keyspace.Category, id requestid.ID) bool {
	_, ok := s.data[s.keys.Key(c, id)]
	return ok
}

// fakeEngine records the staged paths and lets the test decide the result.
type fakeEngine struct {
	calls   int
	inputs  []string
	outputs []string
	run     func(input, output string) error
}

func (e *fakeEngine) Convert(_ context.Context, input, output string) error {
	e.calls++
	e.inputs = append(e.inputs, input)
	e.outputs = append(e.outputs, output)
	if e.run == nil {
		return nil
	}
	return e.run(input, output)
}

func writeOutput(data string) func(string, string) error {
	return func(_, output string) error {
		return os.WriteFile(output, []byte(data), 0o600)
	}
}

type fakeReporter struct {
	outcomes []domain.Outcome
	err      error
}

func (r *fakeReporter) Report(_ context.Context, o domain.Outcome) error {
	r.outcomes = append(r.outcomes, o)
	return r.err
}

type fakeArchiver struct {
	archived map[requestid.ID][]byte
	err      error
}

func (a *fakeArchiver) Archive(_ context.Context, id requestid.ID, data []byte) error {
	if a.archived == nil {
		a.archived = map[requestid.ID][]byte{}
	}
	a.archived[id] = data
	return a.err
}

var errUnreachable = errors.New("connection refused")
