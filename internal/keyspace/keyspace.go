// Package keyspace maps (category, request id) pairs to store keys.
//
// Keys have the shape {namespace}:{category}:{HEX}. The mapping is pure, so the
// producer and every worker derive identical keys without coordination.
package keyspace

import (
	"fmt"
	"time"

	"github.com/fabseal/fabseal/internal/requestid"
)

// DefaultNamespace prefixes every key written by this system.
const DefaultNamespace = "fsdata_v1"

// Category selects the kind of artifact stored under a key.
type Category string

const (
	Input          Category = "input"
	Image          Category = "image"
	ProcessedImage Category = "processed_image"
	Result         Category = "result"
)

// Categories lists every known category.
var Categories = []Category{Input, Image, ProcessedImage, Result}

// Expirations holds the time-to-live of each category.
type Expirations struct {
	Input          time.Duration
	Image          time.Duration
	ProcessedImage time.Duration
	Result         time.Duration
}

// TTL returns the expiration configured for c, or zero for unknown categories.
func (e Expirations) TTL(c Category) time.Duration {
	switch c {
	case Input:
		return e.Input
	case Image:
		return e.Image
	case ProcessedImage:
		return e.ProcessedImage
	case Result:
		return e.Result
	default:
		return 0
	}
}

// Keyspace builds keys under one namespace.
type Keyspace struct {
	namespace string
}

// New returns a Keyspace for namespace, falling back to DefaultNamespace.
func New(namespace string) Keyspace {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	return Keyspace{namespace: namespace}
}

// Namespace returns the key prefix.
func (k Keyspace) Namespace() string {
	if k.namespace == "" {
		return DefaultNamespace
	}
	return k.namespace
}

// Key returns the store key for category c and id.
func (k Keyspace) Key(c Category, id requestid.ID) string {
	return fmt.Sprintf("%s:%s:%s", k.Namespace(), c, id)
}

// ImageKey is Key(Image, id).
func (k Keyspace) ImageKey(id requestid.ID) string { return k.Key(Image, id) }

// ProcessedImageKey is Key(ProcessedImage, id).
func (k Keyspace) ProcessedImageKey(id requestid.ID) string { return k.Key(ProcessedImage, id) }

// ResultKey is Key(Result, id).
func (k Keyspace) ResultKey(id requestid.ID) string { return k.Key(Result, id) }

// InputKey is Key(Input, id).
func (k Keyspace) InputKey(id requestid.ID) string { return k.Key(Input, id) }
