package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/Project-OSmOSE/osmose-app-sub000/internal/datastore/entities"
	"github.com/Project-OSmOSE/osmose-app-sub000/internal/errors"
)

// campaignRepository implements CampaignRepository.
type campaignRepository struct {
	db *gorm.DB
}

// NewCampaignRepository creates a new CampaignRepository.
func NewCampaignRepository(db *gorm.DB) CampaignRepository {
	return &campaignRepository{db: db}
}

func (r *campaignRepository) Create(ctx context.Context, campaign *entities.AnnotationCampaign, datasetIDs, spectrogramConfigurationIDs []uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Owner", "LabelSet", "ConfidenceIndicatorSet", "Archive", "Datasets", "SpectrogramConfigurations", "Phases").
			Create(campaign).Error; err != nil {
			return translate(err, nil)
		}

		if len(datasetIDs) > 0 {
			var datasets []entities.Dataset
			if err := tx.Where("id IN ?", datasetIDs).Find(&datasets).Error; err != nil {
				return err
			}
			if len(datasets) != len(datasetIDs) {
				return ErrDatasetNotFound
			}
			if err := tx.Model(campaign).Omit("Datasets.*").Association("Datasets").Append(&datasets); err != nil {
				return err
			}
			campaign.Datasets = datasets
		}

		if len(spectrogramConfigurationIDs) > 0 {
			var configs []entities.SpectrogramConfiguration
			if err := tx.Where("id IN ?", spectrogramConfigurationIDs).Find(&configs).Error; err != nil {
				return err
			}
			if err := tx.Model(campaign).Omit("SpectrogramConfigurations.*").
				Association("SpectrogramConfigurations").Append(&configs); err != nil {
				return err
			}
			campaign.SpectrogramConfigurations = configs
		}
		return nil
	})
}

func (r *campaignRepository) GetByID(ctx context.Context, id uint) (*entities.AnnotationCampaign, error) {
	var campaign entities.AnnotationCampaign
	err := r.db.WithContext(ctx).
		Preload("Owner").
		Preload("LabelSet.Labels", func(db *gorm.DB) *gorm.DB { return db.Order("labels.name") }).
		Preload("ConfidenceIndicatorSet.Indicators", func(db *gorm.DB) *gorm.DB { return db.Order("level") }).
		Preload("Archive").
		Preload("Datasets", func(db *gorm.DB) *gorm.DB { return db.Order("datasets.name") }).
		Preload("Datasets.AudioMetadata").
		Preload("SpectrogramConfigurations").
		Preload("Phases", func(db *gorm.DB) *gorm.DB { return db.Order("id") }).
		First(&campaign, id).Error
	if err != nil {
		return nil, translate(err, ErrCampaignNotFound)
	}
	return &campaign, nil
}

func (r *campaignRepository) List(ctx context.Context) ([]*entities.AnnotationCampaign, error) {
	var campaigns []*entities.AnnotationCampaign
	err := r.db.WithContext(ctx).
		Preload("Owner").
		Preload("Archive").
		Preload("Phases", func(db *gorm.DB) *gorm.DB { return db.Order("id") }).
		Order("name").
		Find(&campaigns).Error
	if err != nil {
		return nil, err
	}
	return campaigns, nil
}

func (r *campaignRepository) ListForUser(ctx context.Context, userID uint) ([]*entities.AnnotationCampaign, error) {
	assigned := r.db.Model(&entities.AnnotationCampaignPhase{}).
		Select("annotation_campaign_phases.campaign_id").
		Joins("JOIN annotation_file_ranges ON annotation_file_ranges.phase_id = annotation_campaign_phases.id").
		Where("annotation_file_ranges.annotator_id = ?", userID)

	var campaigns []*entities.AnnotationCampaign
	err := r.db.WithContext(ctx).
		Preload("Owner").
		Preload("Archive").
		Preload("Phases", func(db *gorm.DB) *gorm.DB { return db.Order("id") }).
		Where("owner_id = ? OR id IN (?)", userID, assigned).
		Order("name").
		Find(&campaigns).Error
	if err != nil {
		return nil, err
	}
	return campaigns, nil
}

func (r *campaignRepository) GetPhase(ctx context.Context, campaignID uint, phase entities.PhaseType) (*entities.AnnotationCampaignPhase, error) {
	var p entities.AnnotationCampaignPhase
	err := r.db.WithContext(ctx).
		Where("campaign_id = ? AND phase = ?", campaignID, phase).
		First(&p).Error
	if err != nil {
		return nil, translate(err, ErrPhaseNotFound)
	}
	return &p, nil
}

func (r *campaignRepository) CreatePhase(ctx context.Context, phase *entities.AnnotationCampaignPhase) error {
	return translate(r.db.WithContext(ctx).Omit("Campaign", "CreatedBy", "EndedBy").Create(phase).Error, nil)
}

func (r *campaignRepository) EndPhase(ctx context.Context, phaseID, userID uint, at time.Time) error {
	result := r.db.WithContext(ctx).Model(&entities.AnnotationCampaignPhase{}).
		Where("id = ? AND ended_at IS NULL", phaseID).
		Updates(map[string]any{"ended_at": at, "ended_by_id": userID})
	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		var current entities.AnnotationCampaignPhase
		if err := r.db.WithContext(ctx).First(&current, phaseID).Error; err != nil {
			return translate(err, ErrPhaseNotFound)
		}
		return errors.Newf("cannot end phase: phase %s already ended at %s", current.Phase, current.EndedAt.Format(time.RFC3339)).
			Category(errors.CategoryState).
			Context("phase_id", phaseID).
			Build()
	}
	return nil
}

func (r *campaignRepository) SetArchive(ctx context.Context, campaignID uint, archive *entities.Archive) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("ByUser").Create(archive).Error; err != nil {
			return err
		}
		result := tx.Model(&entities.AnnotationCampaign{}).
			Where("id = ? AND archive_id IS NULL", campaignID).
			Update("archive_id", archive.ID)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return errors.Newf("cannot archive campaign %d: already archived", campaignID).
				Category(errors.CategoryState).
				Context("campaign_id", campaignID).
				Build()
		}
		return nil
	})
}

func (r *campaignRepository) ClearArchive(ctx context.Context, campaignID uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var campaign entities.AnnotationCampaign
		if err := tx.First(&campaign, campaignID).Error; err != nil {
			return translate(err, ErrCampaignNotFound)
		}
		if campaign.ArchiveID == nil {
			return nil
		}
		archiveID := *campaign.ArchiveID
		if err := tx.Model(&entities.AnnotationCampaign{}).Where("id = ?", campaignID).
			Update("archive_id", nil).Error; err != nil {
			return err
		}
		return tx.Delete(&entities.Archive{}, archiveID).Error
	})
}

func (r *campaignRepository) SetVocabulary(ctx context.Context, campaignID, labelSetID uint, confidenceSetID *uint) error {
	return r.db.WithContext(ctx).Model(&entities.AnnotationCampaign{}).
		Where("id = ?", campaignID).
		Updates(map[string]any{
			"label_set_id":                labelSetID,
			"confidence_indicator_set_id": confidenceSetID,
		}).Error
}
