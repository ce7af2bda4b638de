package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/Project-OSmOSE/osmose-app-sub000/internal/datastore/entities"
	"github.com/Project-OSmOSE/osmose-app-sub000/internal/errors"
)

// detectorRepository implements DetectorRepository.
type detectorRepository struct {
	db *gorm.DB
}

// NewDetectorRepository creates a new DetectorRepository.
func NewDetectorRepository(db *gorm.DB) DetectorRepository {
	return &detectorRepository{db: db}
}

func (r *detectorRepository) GetOrCreate(ctx context.Context, name string) (*entities.Detector, error) {
	var detector entities.Detector
	err := r.db.WithContext(ctx).Where("name = ?", name).First(&detector).Error
	if err == nil {
		return &detector, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	detector = entities.Detector{Name: name}
	if createErr := r.db.WithContext(ctx).Create(&detector).Error; createErr != nil {
		// Handle race condition - another request may have created it.
		if findErr := r.db.WithContext(ctx).Where("name = ?", name).First(&detector).Error; findErr != nil {
			return nil, createErr
		}
	}
	return &detector, nil
}

func (r *detectorRepository) GetOrCreateConfiguration(ctx context.Context, detectorID uint, configuration string) (*entities.DetectorConfiguration, error) {
	var cfg entities.DetectorConfiguration
	err := r.db.WithContext(ctx).
		Where("detector_id = ? AND configuration = ?", detectorID, configuration).
		First(&cfg).Error
	if err == nil {
		return &cfg, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	cfg = entities.DetectorConfiguration{DetectorID: detectorID, Configuration: configuration}
	if err := r.db.WithContext(ctx).Omit("Detector").Create(&cfg).Error; err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (r *detectorRepository) GetByName(ctx context.Context, name string) (*entities.Detector, error) {
	var detector entities.Detector
	err := r.db.WithContext(ctx).Preload("Configurations").Where("name = ?", name).First(&detector).Error
	if err != nil {
		return nil, translate(err, ErrDetectorNotFound)
	}
	return &detector, nil
}

func (r *detectorRepository) List(ctx context.Context) ([]*entities.Detector, error) {
	var detectors []*entities.Detector
	if err := r.db.WithContext(ctx).Preload("Configurations").Order("name").Find(&detectors).Error; err != nil {
		return nil, err
	}
	return detectors, nil
}
