package repository

import (
	"context"
	"time"

	"github.com/Project-OSmOSE/osmose-app-sub000/internal/datastore/entities"
)

// CampaignRepository provides access to campaigns, their phases and archives.
type CampaignRepository interface {
	// Create inserts a campaign linked to existing datasets and spectrogram configurations.
	// Returns ErrDuplicateKey when the name is taken.
	Create(ctx context.Context, campaign *entities.AnnotationCampaign, datasetIDs, spectrogramConfigurationIDs []uint) error

	// GetByID retrieves a campaign with owner, vocabularies, archive, datasets and phases.
	// Returns ErrCampaignNotFound if not found.
	GetByID(ctx context.Context, id uint) (*entities.AnnotationCampaign, error)

	// List returns every campaign with owner, archive and phases ordered by name.
	List(ctx context.Context) ([]*entities.AnnotationCampaign, error)
	// ListForUser returns the campaigns the user owns or has file ranges in.
	ListForUser(ctx context.Context, userID uint) ([]*entities.AnnotationCampaign, error)

	// GetPhase retrieves the phase of the given type.
	// Returns ErrPhaseNotFound if the campaign has none.
	GetPhase(ctx context.Context, campaignID uint, phase entities.PhaseType) (*entities.AnnotationCampaignPhase, error)

	// CreatePhase inserts a phase. Returns ErrDuplicateKey if the campaign already has one of that type.
	CreatePhase(ctx context.Context, phase *entities.AnnotationCampaignPhase) error

	// EndPhase sets ended_at/ended_by on an open phase.
	// Ending an already ended phase is a state error.
	EndPhase(ctx context.Context, phaseID, userID uint, at time.Time) error

	// SetArchive records the archive and links it to the campaign.
	SetArchive(ctx context.Context, campaignID uint, archive *entities.Archive) error

	// ClearArchive unlinks and deletes the archive of a campaign.
	ClearArchive(ctx context.Context, campaignID uint) error

	// SetVocabulary repoints the campaign at another label set and confidence set.
	SetVocabulary(ctx context.Context, campaignID, labelSetID uint, confidenceSetID *uint) error
}
