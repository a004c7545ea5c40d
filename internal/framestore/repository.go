package framestore

import (
	"context"

	"github.com/breatheroute/wxoverlay/internal/layers"
)

// Repository defines the interface for frame catalog persistence.
type Repository interface {
	// Save stores a catalog. Saving the same catalog ID twice overwrites it.
	Save(ctx context.Context, catalog *layers.Catalog) error

	// Latest returns the most recently fetched catalog.
	// Returns ErrCatalogNotFound if nothing has been stored.
	Latest(ctx context.Context) (*StoredCatalog, error)
}
