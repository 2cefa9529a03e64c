package docstore

import (
	"context"
	"errors"
	"io"
)

// ErrUnavailable signals that no object store is configured; handlers
// map it to 503.
var ErrUnavailable = errors.New("document store not configured")

// Store is the external object-store collaborator. Document bytes never
// live in the backoffice database; only the returned URL is persisted.
type Store interface {
	Put(ctx context.Context, key string, contentType string, body io.Reader) (string, error)
	Delete(ctx context.Context, objectURL string) error
	ProviderID() string
}

type NoopStore struct{}

func NewNoopStore() *NoopStore {
	return &NoopStore{}
}

func (s *NoopStore) ProviderID() string {
	return "docstore-noop"
}

func (s *NoopStore) Put(_ context.Context, _ string, _ string, _ io.Reader) (string, error) {
	return "", ErrUnavailable
}

func (s *NoopStore) Delete(_ context.Context, _ string) error {
	return ErrUnavailable
}
