// Package framestore persists frame catalogs so processes can warm-start
// from the last successful refresh.
package framestore

import (
	"errors"
	"time"

	"github.com/breatheroute/wxoverlay/internal/layers"
)

// ErrCatalogNotFound is returned when no catalog has been stored yet.
var ErrCatalogNotFound = errors.New("frame catalog not found")

// StoredCatalog is the persisted form of a layers.Catalog.
type StoredCatalog struct {
	ID          string                         `json:"id"`
	GeneratedAt time.Time                      `json:"generatedAt"`
	FetchedAt   time.Time                      `json:"fetchedAt"`
	Issues      map[layers.Type]string         `json:"issues,omitempty"`
	Frames      map[layers.Type][]layers.Frame `json:"frames"`
}

// FromCatalog converts a catalog to its persisted form.
func FromCatalog(c *layers.Catalog) *StoredCatalog {
	s := &StoredCatalog{
		ID:          c.ID,
		GeneratedAt: c.GeneratedAt,
		FetchedAt:   c.FetchedAt,
		Issues:      make(map[layers.Type]string, len(c.Issues)),
		Frames:      make(map[layers.Type][]layers.Frame, len(layers.AllTypes())),
	}
	for t, issue := range c.Issues {
		s.Issues[t] = issue
	}
	for _, t := range layers.AllTypes() {
		s.Frames[t] = c.Set(t).Frames()
	}
	return s
}

// Catalog rebuilds the catalog, keeping its original ID and fetch time.
func (s *StoredCatalog) Catalog() *layers.Catalog {
	sets := make(map[layers.Type]layers.FrameSet, len(s.Frames))
	for t, frames := range s.Frames {
		if !t.Valid() {
			continue
		}
		sets[t] = layers.NewFrameSet(t, frames)
	}

	c := layers.NewCatalog(sets, s.GeneratedAt)
	c.ID = s.ID
	c.FetchedAt = s.FetchedAt
	for t, issue := range s.Issues {
		c.Issues[t] = issue
	}
	return c
}

// Age returns how long ago the catalog was fetched.
func (s *StoredCatalog) Age(now time.Time) time.Duration {
	return now.Sub(s.FetchedAt)
}
