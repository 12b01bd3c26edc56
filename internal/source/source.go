// Package source fetches contract documents from external object storage.
// Sources are read-only.
package source

import (
	"context"
	"errors"
)

var (
	ErrNotFound  = errors.New("source object not found")
	ErrForbidden = errors.New("source object not allowed")
	ErrTooLarge  = errors.New("source object too large")
)

// Object is a fetched document body with the metadata needed to detect its format.
type Object struct {
	Bucket      string
	Key         string
	ContentType string
	Data        []byte
}

// Source fetches a single document.
type Source interface {
	Fetch(ctx context.Context, bucket, key string) (Object, error)
}
