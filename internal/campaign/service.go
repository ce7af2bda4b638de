package campaign

import (
	"context"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/Project-OSmOSE/osmose-app-sub000/internal/datastore/entities"
	"github.com/Project-OSmOSE/osmose-app-sub000/internal/datastore/repository"
	"github.com/Project-OSmOSE/osmose-app-sub000/internal/errors"
	"github.com/Project-OSmOSE/osmose-app-sub000/internal/events"
	"github.com/Project-OSmOSE/osmose-app-sub000/internal/logger"
)

// GetLogger returns the campaign module logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("campaign")
}

// Service loads campaign contexts and runs the campaign level lifecycle.
type Service struct {
	db        *gorm.DB
	files     *FileCache
	publisher events.Publisher
}

// NewService creates a campaign service. publisher may be nil.
func NewService(db *gorm.DB, files *FileCache, publisher events.Publisher) *Service {
	if files == nil {
		files = NewFileCache(0)
	}
	return &Service{db: db, files: files, publisher: publisher}
}

// FileCache returns the sorted file cache of the service.
func (s *Service) FileCache() *FileCache {
	return s.files
}

// Load builds the Context of a campaign. phaseType may be empty for campaign
// level operations; otherwise the campaign must have that phase.
func (s *Service) Load(ctx context.Context, campaignID uint, phaseType entities.PhaseType, user *entities.User) (*Context, error) {
	c, err := repository.NewCampaignRepository(s.db).GetByID(ctx, campaignID)
	if err != nil {
		return nil, mapRepositoryError(err, "campaign")
	}

	var phase *entities.AnnotationCampaignPhase
	if phaseType != "" {
		if phase = PhaseOf(c, phaseType); phase == nil {
			return nil, errors.NotFoundError(phaseType.Slug() + " phase")
		}
	}

	files, err := s.Files(ctx, c)
	if err != nil {
		return nil, err
	}

	return NewContext(c, phase, files, user), nil
}

// Files returns the sorted files of a campaign through the cache.
func (s *Service) Files(ctx context.Context, c *entities.AnnotationCampaign) ([]entities.DatasetFile, error) {
	return s.files.Get(ctx, c, repository.NewDatasetRepository(s.db).Files)
}

// List returns every campaign for staff, otherwise the campaigns the user
// owns or annotates.
func (s *Service) List(ctx context.Context, user *entities.User) ([]*entities.AnnotationCampaign, error) {
	repo := repository.NewCampaignRepository(s.db)
	if user.IsAdmin() {
		return repo.List(ctx)
	}
	return repo.ListForUser(ctx, user.ID)
}

// CheckView returns a not-found error when the user of cc neither manages the
// campaign nor holds a range in one of its phases.
func (s *Service) CheckView(ctx context.Context, cc *Context) error {
	if cc.IsOwnerOrAdmin() {
		return nil
	}
	if cc.User == nil {
		return errors.NotFoundError("campaign")
	}

	var n int64
	err := s.db.WithContext(ctx).Model(&entities.AnnotationFileRange{}).
		Joins("JOIN annotation_campaign_phases ON annotation_campaign_phases.id = annotation_file_ranges.phase_id").
		Where("annotation_campaign_phases.campaign_id = ? AND annotation_file_ranges.annotator_id = ?", cc.Campaign.ID, cc.User.ID).
		Count(&n).Error
	if err != nil {
		return errors.New(err).
			Category(errors.CategoryDatabase).
			Context("operation", "check_view").
			Context("campaign_id", cc.Campaign.ID).
			Build()
	}
	if n == 0 {
		return errors.NotFoundError("campaign")
	}
	return nil
}

// CreateInput holds the fields of a new campaign.
type CreateInput struct {
	Name                        string                   `json:"name"`
	Description                 string                   `json:"description"`
	InstructionsURL             string                   `json:"instructions_url"`
	Deadline                    *time.Time               `json:"deadline"`
	LabelSetID                  uint                     `json:"label_set"`
	ConfidenceIndicatorSetID    *uint                    `json:"confidence_indicator_set"`
	AnnotationScope             entities.AnnotationScope `json:"annotation_scope"`
	AllowPointAnnotation        bool                     `json:"allow_point_annotation"`
	DatasetIDs                  []uint                   `json:"datasets"`
	SpectrogramConfigurationIDs []uint                   `json:"spectro_configs"`
}

// CreateCampaign validates and stores a campaign owned by user.
func (s *Service) CreateCampaign(ctx context.Context, user *entities.User, in *CreateInput) (*entities.AnnotationCampaign, error) {
	fe := errors.FieldErrors{}

	name := strings.TrimSpace(in.Name)
	if name == "" {
		fe.Add("name", errors.CodeBlank, "This field may not be blank.")
	}

	scope := in.AnnotationScope
	if scope == "" {
		scope = entities.ScopeRectangle
	}
	if scope != entities.ScopeRectangle && scope != entities.ScopeWhole {
		fe.Addf("annotation_scope", errors.CodeInvalid, "%q is not a valid choice.", scope)
	}

	vocab := repository.NewVocabularyRepository(s.db)
	if in.LabelSetID == 0 {
		fe.Add("label_set", errors.CodeRequired, "This field is required.")
	} else if _, err := vocab.GetLabelSet(ctx, in.LabelSetID); err != nil {
		if !errors.Is(err, repository.ErrLabelSetNotFound) {
			return nil, err
		}
		fe.Addf("label_set", errors.CodeDoesNotExist, "Invalid pk \"%d\" - object does not exist.", in.LabelSetID)
	}

	if in.ConfidenceIndicatorSetID != nil {
		if _, err := vocab.GetConfidenceSet(ctx, *in.ConfidenceIndicatorSetID); err != nil {
			if !errors.Is(err, repository.ErrConfidenceSetNotFound) {
				return nil, err
			}
			fe.Addf("confidence_indicator_set", errors.CodeDoesNotExist, "Invalid pk \"%d\" - object does not exist.", *in.ConfidenceIndicatorSetID)
		}
	}

	allowedSpectros := map[uint]bool{}
	if len(in.DatasetIDs) == 0 {
		fe.Add("datasets", errors.CodeRequired, "This field is required.")
	}
	datasets := repository.NewDatasetRepository(s.db)
	for _, id := range in.DatasetIDs {
		dataset, err := datasets.GetByID(ctx, id)
		if err != nil {
			if !errors.Is(err, repository.ErrDatasetNotFound) {
				return nil, err
			}
			fe.Addf("datasets", errors.CodeDoesNotExist, "Invalid pk \"%d\" - object does not exist.", id)
			continue
		}
		var configs []entities.SpectrogramConfiguration
		if err := s.db.WithContext(ctx).Where("dataset_id = ?", dataset.ID).Find(&configs).Error; err != nil {
			return nil, err
		}
		for i := range configs {
			allowedSpectros[configs[i].ID] = true
		}
	}
	for _, id := range in.SpectrogramConfigurationIDs {
		if !allowedSpectros[id] {
			fe.Addf("spectro_configs", errors.CodeDoesNotExist, "Invalid pk \"%d\" - object does not exist in the campaign datasets.", id)
		}
	}

	if !fe.Empty() {
		return nil, errors.New(fe).Category(errors.CategoryValidation).Build()
	}

	c := &entities.AnnotationCampaign{
		Name:                     name,
		Description:              in.Description,
		InstructionsURL:          in.InstructionsURL,
		Deadline:                 in.Deadline,
		OwnerID:                  user.ID,
		LabelSetID:               in.LabelSetID,
		ConfidenceIndicatorSetID: in.ConfidenceIndicatorSetID,
		AnnotationScope:          scope,
		AllowPointAnnotation:     in.AllowPointAnnotation,
	}
	if err := repository.NewCampaignRepository(s.db).Create(ctx, c, in.DatasetIDs, in.SpectrogramConfigurationIDs); err != nil {
		if errors.Is(err, repository.ErrDuplicateKey) {
			return nil, errors.Fields("name", errors.CodeUnique, "annotation campaign with this name already exists.")
		}
		return nil, err
	}

	GetLogger().Info("campaign created",
		logger.Uint("campaign_id", c.ID),
		logger.String("name", c.Name),
		logger.Uint("owner_id", user.ID))

	return c, nil
}

// CreatePhase opens a new phase on the campaign of cc. A verification phase
// needs an annotation phase.
func (s *Service) CreatePhase(ctx context.Context, cc *Context, phaseType entities.PhaseType) (*entities.AnnotationCampaignPhase, error) {
	if err := cc.CheckManage(); err != nil {
		return nil, err
	}
	if phaseType == entities.PhaseVerification && PhaseOf(cc.Campaign, entities.PhaseAnnotation) == nil {
		return nil, errors.Fields("phase", errors.CodeInvalid, "A verification phase requires an annotation phase.")
	}

	phase := &entities.AnnotationCampaignPhase{
		CampaignID:  cc.Campaign.ID,
		Phase:       phaseType,
		CreatedByID: cc.User.ID,
	}
	if err := repository.NewCampaignRepository(s.db).CreatePhase(ctx, phase); err != nil {
		if errors.Is(err, repository.ErrDuplicateKey) {
			return nil, errors.Fields("phase", errors.CodeUnique, "The campaign already has a "+phaseType.Slug()+" phase.")
		}
		return nil, err
	}

	cc.Campaign.Phases = append(cc.Campaign.Phases, *phase)
	GetLogger().Info("phase created",
		logger.Uint("campaign_id", cc.Campaign.ID),
		logger.String("phase", string(phaseType)))

	return phase, nil
}

// EndPhase ends the phase of cc. Ending is irreversible.
func (s *Service) EndPhase(ctx context.Context, cc *Context) error {
	if err := cc.RequirePhase(); err != nil {
		return err
	}
	if err := cc.CheckManage(); err != nil {
		return err
	}

	now := time.Now().UTC()
	if err := repository.NewCampaignRepository(s.db).EndPhase(ctx, cc.Phase.ID, cc.User.ID, now); err != nil {
		return err
	}
	cc.Phase.EndedAt = &now
	cc.Phase.EndedByID = &cc.User.ID

	events.Publish(s.publisher, events.New(events.PhaseEnded, cc.Campaign.ID, cc.Phase.ID, cc.User.ID,
		map[string]any{"phase": cc.Phase.Phase}))
	return nil
}

// Archive freezes the campaign and ends its open phases.
func (s *Service) Archive(ctx context.Context, cc *Context) error {
	if !cc.IsOwnerOrAdmin() {
		return errors.ForbiddenError("only the campaign owner or staff can archive this campaign")
	}
	if cc.Campaign.IsArchived() {
		return errors.Newf("campaign %q is already archived", cc.Campaign.Name).
			Category(errors.CategoryState).
			Context("campaign_id", cc.Campaign.ID).
			Build()
	}

	now := time.Now().UTC()
	archive := &entities.Archive{Date: now, ByUserID: &cc.User.ID}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := repository.NewCampaignRepository(tx)
		for i := range cc.Campaign.Phases {
			phase := &cc.Campaign.Phases[i]
			if !phase.IsOpen() {
				continue
			}
			if err := repo.EndPhase(ctx, phase.ID, cc.User.ID, now); err != nil {
				return err
			}
			phase.EndedAt = &now
			phase.EndedByID = &cc.User.ID
		}
		return repo.SetArchive(ctx, cc.Campaign.ID, archive)
	})
	if err != nil {
		return err
	}

	cc.Campaign.ArchiveID = &archive.ID
	cc.Campaign.Archive = archive

	GetLogger().Info("campaign archived",
		logger.Uint("campaign_id", cc.Campaign.ID),
		logger.Uint("by_user_id", cc.User.ID))
	events.Publish(s.publisher, events.New(events.CampaignArchived, cc.Campaign.ID, 0, cc.User.ID, nil))
	return nil
}

// Unarchive removes the archive of a campaign. Phases stay ended.
func (s *Service) Unarchive(ctx context.Context, campaignID uint) error {
	repo := repository.NewCampaignRepository(s.db)
	c, err := repo.GetByID(ctx, campaignID)
	if err != nil {
		return mapRepositoryError(err, "campaign")
	}
	if !c.IsArchived() {
		return errors.Newf("campaign %q is not archived", c.Name).
			Category(errors.CategoryState).
			Build()
	}
	if err := repo.ClearArchive(ctx, campaignID); err != nil {
		return err
	}
	GetLogger().Warn("campaign unarchived", logger.Uint("campaign_id", campaignID))
	return nil
}

// mapRepositoryError turns repository not-found sentinels into not-found errors.
func mapRepositoryError(err error, resource string) error {
	switch {
	case errors.Is(err, repository.ErrCampaignNotFound),
		errors.Is(err, repository.ErrPhaseNotFound),
		errors.Is(err, repository.ErrDatasetNotFound),
		errors.Is(err, repository.ErrDatasetFileNotFound),
		errors.Is(err, repository.ErrUserNotFound):
		return errors.New(err).
			Category(errors.CategoryNotFound).
			Context("resource", resource).
			Build()
	}
	return err
}
