package worker

import (
	"context"
	"fmt"

	"github.com/fabseal/fabseal/internal/requestid"
	"github.com/fabseal/fabseal/internal/worker/domain"
)

// ObjectPutter uploads a blob under a key.
type ObjectPutter interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
}

// ObjectArchive copies results into object storage as results/<HEX>.stl.
type ObjectArchive struct {
	objects ObjectPutter
}

// NewObjectArchive creates an archive on top of objects.
func NewObjectArchive(objects ObjectPutter) *ObjectArchive {
	return &ObjectArchive{objects: objects}
}

// ObjectKey returns the object key used for id.
func ObjectKey(id requestid.ID) string {
	return fmt.Sprintf("results/%s.stl", id)
}

// Archive uploads data for id.
func (a *ObjectArchive) Archive(ctx context.Context, id requestid.ID, data []byte) error {
	return a.objects.Put(ctx, ObjectKey(id), data, domain.ResultContentType)
}
