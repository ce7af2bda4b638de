package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/Project-OSmOSE/osmose-app-sub000/internal/datastore/entities"
	"github.com/Project-OSmOSE/osmose-app-sub000/internal/errors"
)

// vocabularyRepository implements VocabularyRepository.
type vocabularyRepository struct {
	db *gorm.DB
}

// NewVocabularyRepository creates a new VocabularyRepository.
func NewVocabularyRepository(db *gorm.DB) VocabularyRepository {
	return &vocabularyRepository{db: db}
}

func (r *vocabularyRepository) GetOrCreateLabel(ctx context.Context, name string) (*entities.Label, error) {
	var label entities.Label
	err := r.db.WithContext(ctx).Where("name = ?", name).First(&label).Error
	if err == nil {
		return &label, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	label = entities.Label{Name: name}
	if createErr := r.db.WithContext(ctx).Create(&label).Error; createErr != nil {
		// Another request may have created it; fall back to the stored row.
		if findErr := r.db.WithContext(ctx).Where("name = ?", name).First(&label).Error; findErr != nil {
			return nil, createErr
		}
	}
	return &label, nil
}

func (r *vocabularyRepository) CreateLabelSet(ctx context.Context, name, description string, labelNames []string) (*entities.LabelSet, error) {
	set := &entities.LabelSet{Name: name, Description: description}
	seen := make(map[string]bool, len(labelNames))
	for _, labelName := range labelNames {
		if seen[labelName] {
			continue
		}
		seen[labelName] = true
		label, err := r.GetOrCreateLabel(ctx, labelName)
		if err != nil {
			return nil, err
		}
		set.Labels = append(set.Labels, *label)
	}
	if err := r.db.WithContext(ctx).Omit("Labels.*").Create(set).Error; err != nil {
		return nil, translate(err, nil)
	}
	return set, nil
}

func (r *vocabularyRepository) GetLabelSet(ctx context.Context, id uint) (*entities.LabelSet, error) {
	var set entities.LabelSet
	err := r.db.WithContext(ctx).
		Preload("Labels", func(db *gorm.DB) *gorm.DB { return db.Order("labels.name") }).
		First(&set, id).Error
	if err != nil {
		return nil, translate(err, ErrLabelSetNotFound)
	}
	return &set, nil
}

func (r *vocabularyRepository) ListLabelSets(ctx context.Context) ([]*entities.LabelSet, error) {
	var sets []*entities.LabelSet
	err := r.db.WithContext(ctx).
		Preload("Labels", func(db *gorm.DB) *gorm.DB { return db.Order("labels.name") }).
		Order("name").
		Find(&sets).Error
	if err != nil {
		return nil, err
	}
	return sets, nil
}

func (r *vocabularyRepository) AddLabelToSet(ctx context.Context, set *entities.LabelSet, label *entities.Label) error {
	if err := r.db.WithContext(ctx).Model(set).Omit("Labels.*").Association("Labels").Append(label); err != nil {
		return errors.New(err).
			Category(errors.CategoryDatabase).
			Context("operation", "add_label_to_set").
			Context("label_set_id", set.ID).
			Build()
	}
	return nil
}

func (r *vocabularyRepository) CloneLabelSet(ctx context.Context, set *entities.LabelSet) (*entities.LabelSet, error) {
	name, err := r.uniqueName(ctx, &entities.LabelSet{}, set.Name)
	if err != nil {
		return nil, err
	}
	clone := &entities.LabelSet{
		Name:        name,
		Description: set.Description,
		Labels:      append([]entities.Label(nil), set.Labels...),
	}
	if err := r.db.WithContext(ctx).Omit("Labels.*").Create(clone).Error; err != nil {
		return nil, translate(err, nil)
	}
	return clone, nil
}

func (r *vocabularyRepository) CreateConfidenceSet(ctx context.Context, set *entities.ConfidenceIndicatorSet) error {
	return translate(r.db.WithContext(ctx).Create(set).Error, nil)
}

func (r *vocabularyRepository) GetConfidenceSet(ctx context.Context, id uint) (*entities.ConfidenceIndicatorSet, error) {
	var set entities.ConfidenceIndicatorSet
	err := r.db.WithContext(ctx).
		Preload("Indicators", func(db *gorm.DB) *gorm.DB { return db.Order("level") }).
		First(&set, id).Error
	if err != nil {
		return nil, translate(err, ErrConfidenceSetNotFound)
	}
	return &set, nil
}

func (r *vocabularyRepository) ListConfidenceSets(ctx context.Context) ([]*entities.ConfidenceIndicatorSet, error) {
	var sets []*entities.ConfidenceIndicatorSet
	err := r.db.WithContext(ctx).
		Preload("Indicators", func(db *gorm.DB) *gorm.DB { return db.Order("level") }).
		Order("name").
		Find(&sets).Error
	if err != nil {
		return nil, err
	}
	return sets, nil
}

func (r *vocabularyRepository) AddConfidenceIndicator(ctx context.Context, indicator *entities.ConfidenceIndicator) error {
	return translate(r.db.WithContext(ctx).Omit("Set").Create(indicator).Error, nil)
}

func (r *vocabularyRepository) CloneConfidenceSet(ctx context.Context, set *entities.ConfidenceIndicatorSet) (*entities.ConfidenceIndicatorSet, error) {
	name, err := r.uniqueName(ctx, &entities.ConfidenceIndicatorSet{}, set.Name)
	if err != nil {
		return nil, err
	}
	clone := &entities.ConfidenceIndicatorSet{Name: name, Description: set.Description}
	for _, indicator := range set.Indicators {
		clone.Indicators = append(clone.Indicators, entities.ConfidenceIndicator{
			Label:     indicator.Label,
			Level:     indicator.Level,
			IsDefault: indicator.IsDefault,
		})
	}
	if err := r.db.WithContext(ctx).Create(clone).Error; err != nil {
		return nil, translate(err, nil)
	}
	return clone, nil
}

func (r *vocabularyRepository) CountCampaignsUsingLabelSet(ctx context.Context, setID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&entities.AnnotationCampaign{}).
		Where("label_set_id = ?", setID).
		Count(&count).Error
	return count, err
}

func (r *vocabularyRepository) CountCampaignsUsingConfidenceSet(ctx context.Context, setID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&entities.AnnotationCampaign{}).
		Where("confidence_indicator_set_id = ?", setID).
		Count(&count).Error
	return count, err
}

// uniqueName returns "<base> (copy)", "<base> (copy 2)", ... the first name not used by model.
func (r *vocabularyRepository) uniqueName(ctx context.Context, model any, base string) (string, error) {
	for i := 1; ; i++ {
		name := base + " (copy)"
		if i > 1 {
			name = fmt.Sprintf("%s (copy %d)", base, i)
		}
		var count int64
		if err := r.db.WithContext(ctx).Model(model).Where("name = ?", name).Count(&count).Error; err != nil {
			return "", err
		}
		if count == 0 {
			return name, nil
		}
	}
}
