// Package store persists the prepared dataset for the dashboard.
package store

import (
	"context"
	"time"

	"github.com/sells-group/crime-atlas/internal/model"
)

// Build records one completed prepare run.
type Build struct {
	ID         string    `json:"id"`
	CreatedAt  time.Time `json:"created_at"`
	Areas      int       `json:"areas"`
	Incidents  int       `json:"incidents"`
	Venues     int       `json:"venues"`
	FirstMonth string    `json:"first_month,omitempty"`
	LastMonth  string    `json:"last_month,omitempty"`
}

// Store defines the persistence interface for the prepared dataset.
type Store interface {
	// SaveDataset replaces the stored dataset and records a build.
	SaveDataset(ctx context.Context, ds *model.Dataset) (*Build, error)
	// LoadDataset returns the stored dataset without geometry.
	LoadDataset(ctx context.Context) (*model.Dataset, error)
	// LatestBuild returns the most recent build, or nil when none exists.
	LatestBuild(ctx context.Context) (*Build, error)

	Migrate(ctx context.Context) error
	Close() error
}
