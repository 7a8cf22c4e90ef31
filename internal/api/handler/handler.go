package handler

import (
	"context"
	"log/slog"
	"time"

	"github.com/fabseal/fabseal/internal/keyspace"
	"github.com/fabseal/fabseal/internal/requestid"
)

// ArtifactStore reads and writes artifacts by category and request id
type ArtifactStore interface {
	Get(ctx context.Context, c keyspace.Category, id requestid.ID) ([]byte, error)
	Put(ctx context.Context, c keyspace.Category, id requestid.ID, data []byte) error
}

// Enqueuer appends a request to the submission queue
type Enqueuer interface {
	Enqueue(ctx context.Context, id requestid.ID) (string, error)
}

// Dependencies holds all dependencies needed by handlers
type Dependencies struct {
	Logger        *slog.Logger
	Store         ArtifactStore
	Queue         Enqueuer
	Preprocess    func([]byte) ([]byte, error)
	HealthCheck   func(context.Context) error
	SessionTTL    time.Duration
	MaxUploadSize int64
	SecureCookie  bool

	// AllowedOrigins lists origins permitted to call the API with credentials
	AllowedOrigins []string
}

// CreateHandler handles the upload, start and result flow of one request
type CreateHandler struct {
	logger        *slog.Logger
	store         ArtifactStore
	queue         Enqueuer
	preprocess    func([]byte) ([]byte, error)
	sessionTTL    time.Duration
	maxUploadSize int64
	secureCookie  bool
}

// NewCreateHandler creates a new CreateHandler instance
func NewCreateHandler(deps *Dependencies) *CreateHandler {
	return &CreateHandler{
		logger:        deps.Logger,
		store:         deps.Store,
		queue:         deps.Queue,
		preprocess:    deps.Preprocess,
		sessionTTL:    deps.SessionTTL,
		maxUploadSize: deps.MaxUploadSize,
		secureCookie:  deps.SecureCookie,
	}
}
