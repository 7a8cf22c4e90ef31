package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/fabseal/fabseal/internal/keyspace"
	"github.com/fabseal/fabseal/internal/queue"
	"github.com/fabseal/fabseal/internal/requestid"
	"github.com/fabseal/fabseal/internal/worker/domain"
)

// Queue is the consumer side of the submission queue.
type Queue interface {
	Read(ctx context.Context, consumer string) ([]queue.Entry, error)
	Ack(ctx context.Context, entryID string) error
	RemoveConsumer(ctx context.Context, consumer string) (int64, error)
}

// ArtifactStore reads images and writes results.
type ArtifactStore interface {
	Get(ctx context.Context, c keyspace.Category, id requestid.ID) ([]byte, error)
	Put(ctx context.Context, c keyspace.Category, id requestid.ID, data []byte) error
}

// Converter turns the staged input file into the output file.
type Converter interface {
	Convert(ctx context.Context, input, output string) error
}

// Reporter receives the outcome of every acknowledged job.
type Reporter interface {
	Report(ctx context.Context, outcome domain.Outcome) error
}

// Archiver keeps an extra copy of successful results.
type Archiver interface {
	Archive(ctx context.Context, id requestid.ID, data []byte) error
}

// Config holds worker configuration
type Config struct {
	Logger       *slog.Logger
	Queue        Queue
	Store        ArtifactStore
	Engine       Converter
	Reporters    []Reporter
	Archiver     Archiver
	Shutdown     *ShutdownFlag
	ConsumerName string
	RetryDelay   time.Duration
	TempDir      string
}

// Worker drains the submission queue one entry at a time.
type Worker struct {
	logger     *slog.Logger
	queue      Queue
	store      ArtifactStore
	engine     Converter
	reporters  []Reporter
	archiver   Archiver
	shutdown   *ShutdownFlag
	consumer   string
	retryDelay time.Duration
	tempDir    string
}

// NewWorker creates a new worker instance
func NewWorker(cfg *Config) *Worker {
	consumer := cfg.ConsumerName
	if consumer == "" {
		consumer = NewConsumerName()
	}

	shutdown := cfg.Shutdown
	if shutdown == nil {
		shutdown = &ShutdownFlag{}
	}

	retryDelay := cfg.RetryDelay
	if retryDelay <= 0 {
		retryDelay = queue.DefaultBlockTimeout
	}

	return &Worker{
		logger:     cfg.Logger.With(slog.String("consumer", consumer)),
		queue:      cfg.Queue,
		store:      cfg.Store,
		engine:     cfg.Engine,
		reporters:  cfg.Reporters,
		archiver:   cfg.Archiver,
		shutdown:   shutdown,
		consumer:   consumer,
		retryDelay: retryDelay,
		tempDir:    cfg.TempDir,
	}
}

// Consumer returns the worker's consumer name within the group.
func (w *Worker) Consumer() string {
	return w.consumer
}

// Start runs the read loop until shutdown is requested or ctx is done, then
// removes this worker's consumer from the group.
func (w *Worker) Start(ctx context.Context) error {
	w.logger.Info("Starting worker",
		slog.Duration("retry_delay", w.retryDelay),
		slog.Int("reporters", len(w.reporters)),
		slog.Bool("archive", w.archiver != nil),
	)

	defer w.deregister(ctx)

	w.run(ctx)
	return nil
}

// Stop asks the loop to exit after the current job.
func (w *Worker) Stop() {
	w.logger.Info("Stopping worker...")
	w.shutdown.Set()
}
