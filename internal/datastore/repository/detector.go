package repository

import (
	"context"

	"github.com/Project-OSmOSE/osmose-app-sub000/internal/datastore/entities"
)

// DetectorRepository provides access to detectors and their configurations.
type DetectorRepository interface {
	// GetOrCreate retrieves an existing detector or creates a new one.
	GetOrCreate(ctx context.Context, name string) (*entities.Detector, error)

	// GetOrCreateConfiguration retrieves or creates the configuration text of a detector.
	GetOrCreateConfiguration(ctx context.Context, detectorID uint, configuration string) (*entities.DetectorConfiguration, error)

	// GetByName retrieves a detector with its configurations.
	// Returns ErrDetectorNotFound if not found.
	GetByName(ctx context.Context, name string) (*entities.Detector, error)

	// List returns every detector with its configurations ordered by name.
	List(ctx context.Context) ([]*entities.Detector, error)
}
