// Package annotation handles the interactive submission of results, comments
// and validations for one file of a campaign phase.
package annotation

import (
	"context"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Project-OSmOSE/osmose-app-sub000/internal/campaign"
	"github.com/Project-OSmOSE/osmose-app-sub000/internal/datastore/entities"
	"github.com/Project-OSmOSE/osmose-app-sub000/internal/errors"
	"github.com/Project-OSmOSE/osmose-app-sub000/internal/events"
	"github.com/Project-OSmOSE/osmose-app-sub000/internal/logger"
	"github.com/Project-OSmOSE/osmose-app-sub000/internal/observability/metrics"
	"github.com/Project-OSmOSE/osmose-app-sub000/internal/tasks"
)

// GetLogger returns the annotation module logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("annotation")
}

// Service stores annotator submissions.
type Service struct {
	tasks     *tasks.Manager
	recorder  metrics.Recorder
	publisher events.Publisher
	logger    logger.Logger
}

// NewService creates an annotation service. recorder and publisher may be nil.
func NewService(taskManager *tasks.Manager, recorder metrics.Recorder, publisher events.Publisher) *Service {
	if taskManager == nil {
		taskManager = tasks.NewManager(recorder)
	}
	return &Service{
		tasks:     taskManager,
		recorder:  metrics.OrNop(recorder),
		publisher: publisher,
		logger:    GetLogger(),
	}
}

// Submit replaces the work of the user of cc on fileID with sub and finishes
// the task. The user needs a task on the file. Validation failures are
// returned as errors.NestedErrors keyed by results, task_comments and
// validations.
func (s *Service) Submit(ctx context.Context, db *gorm.DB, cc *campaign.Context, fileID uint, sub *Submission) (fr *FileResults, err error) {
	start := time.Now()
	defer func() {
		s.recorder.RecordDuration(metrics.OpSubmitResults, time.Since(start).Seconds())
		if err != nil {
			s.recorder.RecordOperation(metrics.OpSubmitResults, metrics.StatusError)
			s.recorder.RecordError(metrics.OpSubmitResults, string(errors.CategoryOf(err)))
			return
		}
		s.recorder.RecordOperation(metrics.OpSubmitResults, metrics.StatusSuccess)
	}()

	if err := cc.RequirePhase(); err != nil {
		return nil, err
	}
	if err := cc.CheckWritable(); err != nil {
		return nil, err
	}
	file, ok := cc.File(fileID)
	if !ok {
		return nil, errors.NotFoundError("dataset file")
	}
	if sub == nil {
		sub = &Submission{}
	}

	var changed bool
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := requireTask(tx, cc, fileID); err != nil {
			return err
		}

		var existing []entities.AnnotationResult
		if err := tx.Where("phase_id = ? AND dataset_file_id = ? AND annotator_id = ?", cc.Phase.ID, fileID, cc.User.ID).
			Find(&existing).Error; err != nil {
			return dbError(err, "load_results")
		}

		var reviewed map[uint]bool
		if cc.Phase.Phase == entities.PhaseVerification {
			var err error
			if reviewed, err = reviewableResults(tx, cc, fileID); err != nil {
				return err
			}
		}

		results, verr := s.validate(cc, file, sub, existing, reviewed)
		if verr != nil {
			return verr
		}

		if err := replaceResults(tx, cc, existing, results); err != nil {
			return err
		}
		if err := replaceTaskComments(tx, cc, fileID, sub.TaskComments); err != nil {
			return err
		}
		if err := upsertValidations(tx, cc, sub.Validations); err != nil {
			return err
		}

		var err error
		changed, err = s.tasks.MarkFinished(ctx, tx, cc.Phase.ID, cc.User.ID, fileID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.recorder.AddCount(metrics.OpSubmitResults, metrics.ActionCreated, len(sub.Results))
	s.logger.Info("results submitted",
		logger.Uint("campaign_id", cc.Campaign.ID),
		logger.Uint("phase_id", cc.Phase.ID),
		logger.Uint("dataset_file_id", fileID),
		logger.Uint("annotator_id", cc.User.ID),
		logger.Int("results", len(sub.Results)),
		logger.Bool("task_finished", changed))

	events.Publish(s.publisher, events.New(events.TaskFinished, cc.Campaign.ID, cc.Phase.ID, cc.User.ID, map[string]any{
		"dataset_file_id": fileID,
		"results":         len(sub.Results),
		"changed":         changed,
	}))

	return s.ForFile(ctx, db, cc, fileID)
}

// ForFile returns the caller's results and task comments on a file, and the
// annotation phase results under review on a verification phase.
func (s *Service) ForFile(ctx context.Context, db *gorm.DB, cc *campaign.Context, fileID uint) (*FileResults, error) {
	if err := cc.RequirePhase(); err != nil {
		return nil, err
	}
	if _, ok := cc.File(fileID); !ok {
		return nil, errors.NotFoundError("dataset file")
	}

	tx := db.WithContext(ctx)
	out := &FileResults{}

	var task entities.AnnotationTask
	res := tx.Where("phase_id = ? AND annotator_id = ? AND dataset_file_id = ?", cc.Phase.ID, cc.User.ID, fileID).Limit(1).Find(&task)
	if res.Error != nil {
		return nil, dbError(res.Error, "load_task")
	}
	if res.RowsAffected == 0 && !cc.IsOwnerOrAdmin() {
		return nil, errors.ForbiddenError("no annotation task on this file")
	}
	out.Status = task.Status

	if err := withResultRelations(tx).
		Where("phase_id = ? AND dataset_file_id = ? AND annotator_id = ?", cc.Phase.ID, fileID, cc.User.ID).
		Order("id").Find(&out.Results).Error; err != nil {
		return nil, dbError(err, "load_results")
	}
	if err := tx.Where("phase_id = ? AND dataset_file_id = ? AND author_id = ? AND annotation_result_id IS NULL", cc.Phase.ID, fileID, cc.User.ID).
		Order("id").Find(&out.TaskComments).Error; err != nil {
		return nil, dbError(err, "load_task_comments")
	}

	if cc.Phase.Phase == entities.PhaseVerification {
		if annotation := campaign.PhaseOf(cc.Campaign, entities.PhaseAnnotation); annotation != nil {
			if err := withResultRelations(tx).Preload("Annotator").Preload("DetectorConfiguration.Detector").
				Where("phase_id = ? AND dataset_file_id = ?", annotation.ID, fileID).
				Order("id").Find(&out.Reviewed).Error; err != nil {
				return nil, dbError(err, "load_reviewed_results")
			}
		}
	}
	return out, nil
}

func withResultRelations(tx *gorm.DB) *gorm.DB {
	return tx.Preload("Label").Preload("ConfidenceIndicator").
		Preload("Comments", func(db *gorm.DB) *gorm.DB { return db.Order("id") }).
		Preload("Validations")
}

// validate checks the whole submission and returns the results to store,
// aligned with sub.Results.
func (s *Service) validate(cc *campaign.Context, file *entities.DatasetFile, sub *Submission, existing []entities.AnnotationResult, reviewed map[uint]bool) ([]*entities.AnnotationResult, error) {
	own := make(map[uint]bool, len(existing))
	for i := range existing {
		own[existing[i].ID] = true
	}
	verification := cc.Phase.Phase == entities.PhaseVerification
	rules := RulesFor(cc.Campaign, file)

	resultErrs := errors.NewListErrors(len(sub.Results))
	results := make([]*entities.AnnotationResult, len(sub.Results))
	seen := make(map[uint]bool)
	for i := range sub.Results {
		in := &sub.Results[i]
		fe := resultErrs[i]

		r := BuildResult(fe, in, rules)
		r.PhaseID = cc.Phase.ID
		r.DatasetFileID = file.ID
		r.AnnotatorID = &cc.User.ID

		if in.ID != nil {
			switch {
			case !own[*in.ID]:
				fe.Addf("id", errors.CodeDoesNotExist, "Invalid pk \"%d\" - object does not exist.", *in.ID)
			case seen[*in.ID]:
				fe.Addf("id", errors.CodeUnique, "Result %d is submitted more than once.", *in.ID)
			default:
				r.ID = *in.ID
			}
			seen[*in.ID] = true
		}

		if in.IsUpdateOf != nil {
			switch {
			case !verification:
				fe.Add("is_update_of", errors.CodeInvalid, "Only verification results can update another result.")
			case !reviewed[*in.IsUpdateOf]:
				fe.Addf("is_update_of", errors.CodeDoesNotExist, "Invalid pk \"%d\" - object does not exist.", *in.IsUpdateOf)
			default:
				r.IsUpdateOfID = in.IsUpdateOf
			}
		}

		for _, c := range in.Comments {
			r.Comments = append(r.Comments, entities.AnnotationComment{
				Comment:       strings.TrimSpace(c.Comment),
				PhaseID:       cc.Phase.ID,
				DatasetFileID: file.ID,
				AuthorID:      cc.User.ID,
			})
		}
		results[i] = r
	}

	commentErrs := errors.NewListErrors(len(sub.TaskComments))
	for i, c := range sub.TaskComments {
		if strings.TrimSpace(c.Comment) == "" {
			commentErrs[i].Add("comment", errors.CodeBlank, "This field may not be blank.")
		}
	}

	validationErrs := errors.NewListErrors(len(sub.Validations))
	for i, v := range sub.Validations {
		switch {
		case !verification:
			validationErrs[i].Add("result", errors.CodeInvalid, "Validations are only accepted on a verification phase.")
		case !reviewed[v.ResultID]:
			validationErrs[i].Addf("result", errors.CodeDoesNotExist, "Invalid pk \"%d\" - object does not exist.", v.ResultID)
		}
	}

	nested := errors.NestedErrors{
		"results":       resultErrs,
		"task_comments": commentErrs,
		"validations":   validationErrs,
	}
	if nested.HasErrors() {
		return nil, errors.New(nested.Compact()).
			Category(errors.CategoryValidation).
			Context("operation", "submit_results").
			Context("dataset_file_id", file.ID).
			Build()
	}
	return results, nil
}

// requireTask fails with a forbidden error when the user has no task on the file.
func requireTask(tx *gorm.DB, cc *campaign.Context, fileID uint) error {
	var count int64
	if err := tx.Model(&entities.AnnotationTask{}).
		Where("phase_id = ? AND annotator_id = ? AND dataset_file_id = ?", cc.Phase.ID, cc.User.ID, fileID).
		Count(&count).Error; err != nil {
		return dbError(err, "load_task")
	}
	if count == 0 {
		return errors.New(errors.NewStd("no annotation task on this file")).
			Category(errors.CategoryForbidden).
			Context("phase_id", cc.Phase.ID).
			Context("dataset_file_id", fileID).
			Build()
	}
	return nil
}

// reviewableResults returns the IDs of the annotation phase results of a file.
func reviewableResults(tx *gorm.DB, cc *campaign.Context, fileID uint) (map[uint]bool, error) {
	annotation := campaign.PhaseOf(cc.Campaign, entities.PhaseAnnotation)
	if annotation == nil {
		return map[uint]bool{}, nil
	}
	var ids []uint
	if err := tx.Model(&entities.AnnotationResult{}).
		Where("phase_id = ? AND dataset_file_id = ?", annotation.ID, fileID).
		Pluck("id", &ids).Error; err != nil {
		return nil, dbError(err, "load_reviewed_results")
	}
	out := make(map[uint]bool, len(ids))
	for _, id := range ids {
		out[id] = true
	}
	return out, nil
}

// resultColumns are the columns a resubmission may change.
var resultColumns = []string{
	"label_id", "confidence_indicator_id", "start_time", "end_time",
	"start_frequency", "end_frequency", "type", "is_update_of_id",
}

// replaceResults updates the results that kept their ID, creates the new ones
// and deletes the caller's results that were not resubmitted.
func replaceResults(tx *gorm.DB, cc *campaign.Context, existing []entities.AnnotationResult, results []*entities.AnnotationResult) error {
	kept := make(map[uint]bool, len(results))
	for _, r := range results {
		if r.ID != 0 {
			kept[r.ID] = true
		}
	}
	var dropped []uint
	for i := range existing {
		if !kept[existing[i].ID] {
			dropped = append(dropped, existing[i].ID)
		}
	}
	if err := DeleteResults(tx, dropped); err != nil {
		return err
	}

	for _, r := range results {
		comments := r.Comments
		r.Comments = nil
		if r.ID == 0 {
			if err := tx.Omit(clause.Associations).Create(r).Error; err != nil {
				return dbError(err, "create_result")
			}
		} else {
			if err := tx.Model(r).Select(resultColumns).Updates(r).Error; err != nil {
				return dbError(err, "update_result")
			}
			if err := tx.Where("annotation_result_id = ? AND author_id = ?", r.ID, cc.User.ID).
				Delete(&entities.AnnotationComment{}).Error; err != nil {
				return dbError(err, "delete_result_comments")
			}
		}
		for i := range comments {
			comments[i].AnnotationResultID = &r.ID
		}
		if len(comments) > 0 {
			if err := tx.Omit(clause.Associations).Create(&comments).Error; err != nil {
				return dbError(err, "create_result_comments")
			}
		}
		r.Comments = comments
	}
	return nil
}

// DeleteResults removes results with their comments and validations and
// clears the corrections pointing at them.
func DeleteResults(tx *gorm.DB, ids []uint) error {
	if len(ids) == 0 {
		return nil
	}
	if err := tx.Model(&entities.AnnotationResult{}).Where("is_update_of_id IN ?", ids).
		Update("is_update_of_id", nil).Error; err != nil {
		return dbError(err, "clear_corrections")
	}
	if err := tx.Where("result_id IN ?", ids).Delete(&entities.AnnotationResultValidation{}).Error; err != nil {
		return dbError(err, "delete_validations")
	}
	if err := tx.Where("annotation_result_id IN ?", ids).Delete(&entities.AnnotationComment{}).Error; err != nil {
		return dbError(err, "delete_result_comments")
	}
	if err := tx.Delete(&entities.AnnotationResult{}, ids).Error; err != nil {
		return dbError(err, "delete_results")
	}
	return nil
}

func replaceTaskComments(tx *gorm.DB, cc *campaign.Context, fileID uint, in []CommentInput) error {
	if err := tx.Where("phase_id = ? AND dataset_file_id = ? AND author_id = ? AND annotation_result_id IS NULL", cc.Phase.ID, fileID, cc.User.ID).
		Delete(&entities.AnnotationComment{}).Error; err != nil {
		return dbError(err, "delete_task_comments")
	}
	if len(in) == 0 {
		return nil
	}
	comments := make([]entities.AnnotationComment, len(in))
	for i, c := range in {
		comments[i] = entities.AnnotationComment{
			Comment:       strings.TrimSpace(c.Comment),
			PhaseID:       cc.Phase.ID,
			DatasetFileID: fileID,
			AuthorID:      cc.User.ID,
		}
	}
	if err := tx.Omit(clause.Associations).Create(&comments).Error; err != nil {
		return dbError(err, "create_task_comments")
	}
	return nil
}

func upsertValidations(tx *gorm.DB, cc *campaign.Context, in []ValidationInput) error {
	if len(in) == 0 {
		return nil
	}
	rows := make([]entities.AnnotationResultValidation, len(in))
	for i, v := range in {
		rows[i] = entities.AnnotationResultValidation{
			ResultID:    v.ResultID,
			AnnotatorID: cc.User.ID,
			PhaseID:     cc.Phase.ID,
			IsValid:     v.IsValid,
		}
	}
	err := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "result_id"}, {Name: "annotator_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"is_valid", "phase_id"}),
	}).Omit(clause.Associations).Create(&rows).Error
	if err != nil {
		return dbError(err, "upsert_validations")
	}
	return nil
}

func dbError(err error, operation string) error {
	return errors.New(err).
		Category(errors.CategoryDatabase).
		Context("operation", operation).
		Build()
}
