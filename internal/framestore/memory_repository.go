package framestore

import (
	"context"
	"sync"

	"github.com/breatheroute/wxoverlay/internal/layers"
)

// InMemoryRepository is an in-memory implementation of Repository.
// It keeps only the latest catalog and is intended for single-process
// deployments and tests. Production should use PostgresRepository.
type InMemoryRepository struct {
	mu     sync.RWMutex
	latest *StoredCatalog
}

// NewInMemoryRepository creates a new in-memory frame store.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{}
}

// Save stores a catalog if it is not older than the current one.
func (r *InMemoryRepository) Save(_ context.Context, catalog *layers.Catalog) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored := FromCatalog(catalog)
	if r.latest != nil && stored.FetchedAt.Before(r.latest.FetchedAt) {
		return nil
	}
	r.latest = stored
	return nil
}

// Latest returns the most recently fetched catalog.
func (r *InMemoryRepository) Latest(_ context.Context) (*StoredCatalog, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.latest == nil {
		return nil, ErrCatalogNotFound
	}

	// Return a copy
	cpy := *r.latest
	return &cpy, nil
}
