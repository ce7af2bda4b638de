package repository

import (
	"context"

	"github.com/Project-OSmOSE/osmose-app-sub000/internal/datastore/entities"
)

// DatasetRepository provides access to datasets and their files.
type DatasetRepository interface {
	// Create inserts a dataset together with its audio metadata,
	// spectrogram configurations and files.
	Create(ctx context.Context, dataset *entities.Dataset, files []entities.DatasetFile) error

	// GetByID retrieves a dataset with its audio metadata.
	// Returns ErrDatasetNotFound if not found.
	GetByID(ctx context.Context, id uint) (*entities.Dataset, error)

	// GetByName retrieves a dataset with its audio metadata.
	// Returns ErrDatasetNotFound if not found.
	GetByName(ctx context.Context, name string) (*entities.Dataset, error)

	// ExistsByName reports whether a dataset with that name exists.
	ExistsByName(ctx context.Context, name string) (bool, error)

	// List returns every dataset ordered by name.
	List(ctx context.Context) ([]*entities.Dataset, error)

	// Files returns the files of the given datasets ordered by (start, id),
	// each with its dataset and audio metadata loaded.
	Files(ctx context.Context, datasetIDs []uint) ([]entities.DatasetFile, error)

	// GetFile retrieves one file with its dataset and audio metadata.
	// Returns ErrDatasetFileNotFound if not found.
	GetFile(ctx context.Context, id uint) (*entities.DatasetFile, error)
}
