package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/Project-OSmOSE/osmose-app-sub000/internal/datastore/entities"
)

// fileBatchSize bounds the number of rows per INSERT to stay below the
// SQLite parameter limit.
const fileBatchSize = 500

// datasetRepository implements DatasetRepository.
type datasetRepository struct {
	db *gorm.DB
}

// NewDatasetRepository creates a new DatasetRepository.
func NewDatasetRepository(db *gorm.DB) DatasetRepository {
	return &datasetRepository{db: db}
}

func (r *datasetRepository) Create(ctx context.Context, dataset *entities.Dataset, files []entities.DatasetFile) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(dataset).Error; err != nil {
			return translate(err, nil)
		}
		if len(files) == 0 {
			return nil
		}
		for i := range files {
			files[i].DatasetID = dataset.ID
		}
		return translate(tx.Omit("Dataset").CreateInBatches(files, fileBatchSize).Error, nil)
	})
}

func (r *datasetRepository) GetByID(ctx context.Context, id uint) (*entities.Dataset, error) {
	var dataset entities.Dataset
	err := r.db.WithContext(ctx).Preload("AudioMetadata").First(&dataset, id).Error
	if err != nil {
		return nil, translate(err, ErrDatasetNotFound)
	}
	return &dataset, nil
}

func (r *datasetRepository) GetByName(ctx context.Context, name string) (*entities.Dataset, error) {
	var dataset entities.Dataset
	err := r.db.WithContext(ctx).Preload("AudioMetadata").
		Where("name = ?", name).
		First(&dataset).Error
	if err != nil {
		return nil, translate(err, ErrDatasetNotFound)
	}
	return &dataset, nil
}

func (r *datasetRepository) ExistsByName(ctx context.Context, name string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&entities.Dataset{}).Where("name = ?", name).Count(&count).Error
	return count > 0, err
}

func (r *datasetRepository) List(ctx context.Context) ([]*entities.Dataset, error) {
	var datasets []*entities.Dataset
	err := r.db.WithContext(ctx).Preload("AudioMetadata").Preload("SpectrogramConfigurations").
		Order("name").
		Find(&datasets).Error
	if err != nil {
		return nil, err
	}
	return datasets, nil
}

func (r *datasetRepository) Files(ctx context.Context, datasetIDs []uint) ([]entities.DatasetFile, error) {
	var files []entities.DatasetFile
	if len(datasetIDs) == 0 {
		return files, nil
	}
	err := r.db.WithContext(ctx).
		Preload("Dataset").Preload("Dataset.AudioMetadata").
		Where("dataset_id IN ?", datasetIDs).
		Order("start_datetime ASC, id ASC").
		Find(&files).Error
	if err != nil {
		return nil, err
	}
	return files, nil
}

func (r *datasetRepository) GetFile(ctx context.Context, id uint) (*entities.DatasetFile, error) {
	var file entities.DatasetFile
	err := r.db.WithContext(ctx).
		Preload("Dataset").Preload("Dataset.AudioMetadata").
		First(&file, id).Error
	if err != nil {
		return nil, translate(err, ErrDatasetFileNotFound)
	}
	return &file, nil
}
