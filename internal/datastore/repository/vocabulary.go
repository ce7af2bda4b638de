package repository

import (
	"context"

	"github.com/Project-OSmOSE/osmose-app-sub000/internal/datastore/entities"
)

// VocabularyRepository provides access to labels, label sets and confidence indicator sets.
type VocabularyRepository interface {
	// GetOrCreateLabel retrieves an existing label or creates a new one.
	GetOrCreateLabel(ctx context.Context, name string) (*entities.Label, error)

	// CreateLabelSet creates a label set with the named labels, creating missing labels.
	// Returns ErrDuplicateKey when the set name is taken.
	CreateLabelSet(ctx context.Context, name, description string, labelNames []string) (*entities.LabelSet, error)

	// GetLabelSet retrieves a label set with its labels.
	// Returns ErrLabelSetNotFound if not found.
	GetLabelSet(ctx context.Context, id uint) (*entities.LabelSet, error)

	// ListLabelSets returns every label set with its labels ordered by name.
	ListLabelSets(ctx context.Context) ([]*entities.LabelSet, error)

	// AddLabelToSet links label to the set.
	AddLabelToSet(ctx context.Context, set *entities.LabelSet, label *entities.Label) error

	// CloneLabelSet copies a label set and its labels under a new unique name.
	CloneLabelSet(ctx context.Context, set *entities.LabelSet) (*entities.LabelSet, error)

	// CreateConfidenceSet creates a set with its indicators.
	// Returns ErrDuplicateKey on duplicate set names, labels or levels.
	CreateConfidenceSet(ctx context.Context, set *entities.ConfidenceIndicatorSet) error

	// GetConfidenceSet retrieves a set with its indicators ordered by level.
	// Returns ErrConfidenceSetNotFound if not found.
	GetConfidenceSet(ctx context.Context, id uint) (*entities.ConfidenceIndicatorSet, error)

	// ListConfidenceSets returns every confidence set with its indicators.
	ListConfidenceSets(ctx context.Context) ([]*entities.ConfidenceIndicatorSet, error)

	// AddConfidenceIndicator inserts an indicator into its set.
	AddConfidenceIndicator(ctx context.Context, indicator *entities.ConfidenceIndicator) error

	// CloneConfidenceSet copies a set and its indicators under a new unique name.
	CloneConfidenceSet(ctx context.Context, set *entities.ConfidenceIndicatorSet) (*entities.ConfidenceIndicatorSet, error)

	// CountCampaignsUsingLabelSet counts campaigns referencing the label set.
	CountCampaignsUsingLabelSet(ctx context.Context, setID uint) (int64, error)

	// CountCampaignsUsingConfidenceSet counts campaigns referencing the confidence set.
	CountCampaignsUsingConfidenceSet(ctx context.Context, setID uint) (int64, error)
}
