// Package tasks keeps annotation tasks consistent with the file ranges of a
// phase and drives the task status transitions.
//
// Tasks are a derived view: one row per (phase, annotator, file) covered by a
// range of that annotator in that phase. Status moves CREATED -> FINISHED when
// the annotator submits a file, and FINISHED -> CREATED only when an import
// invalidates a verification task.
package tasks

import (
	"cmp"
	"context"
	"iter"
	"slices"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Project-OSmOSE/osmose-app-sub000/internal/datastore/entities"
	"github.com/Project-OSmOSE/osmose-app-sub000/internal/errors"
	"github.com/Project-OSmOSE/osmose-app-sub000/internal/logger"
	"github.com/Project-OSmOSE/osmose-app-sub000/internal/observability/metrics"
)

// batchSize bounds the number of rows or bound variables per statement.
const batchSize = 500

// GetLogger returns the tasks module logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("tasks")
}

// Manager runs the task operations inside the caller's transaction.
type Manager struct {
	recorder metrics.Recorder
	logger   logger.Logger
}

// NewManager creates a task manager. recorder may be nil.
func NewManager(recorder metrics.Recorder) *Manager {
	return &Manager{
		recorder: metrics.OrNop(recorder),
		logger:   GetLogger(),
	}
}

func (m *Manager) observe(operation string, start time.Time, err error) {
	m.recorder.RecordDuration(operation, time.Since(start).Seconds())
	if err != nil {
		m.recorder.RecordOperation(operation, metrics.StatusError)
		m.recorder.RecordError(operation, string(errors.CategoryOf(err)))
		return
	}
	m.recorder.RecordOperation(operation, metrics.StatusSuccess)
}

// SyncOrphans deletes every task of the phase whose file is not covered by a
// range of the same annotator. It rescans the whole phase.
func (m *Manager) SyncOrphans(ctx context.Context, tx *gorm.DB, phaseID uint) (deleted int64, err error) {
	start := time.Now()
	defer func() { m.observe(metrics.OpSyncOrphans, start, err) }()

	db := tx.WithContext(ctx)

	var ranges []entities.AnnotationFileRange
	if err := db.Where("phase_id = ?", phaseID).Find(&ranges).Error; err != nil {
		return 0, dbError(err, "load_ranges", phaseID)
	}
	byAnnotator := make(map[uint][]*entities.AnnotationFileRange)
	for i := range ranges {
		r := &ranges[i]
		byAnnotator[r.AnnotatorID] = append(byAnnotator[r.AnnotatorID], r)
	}

	var tasks []entities.AnnotationTask
	if err := db.Preload("DatasetFile").Where("phase_id = ?", phaseID).Find(&tasks).Error; err != nil {
		return 0, dbError(err, "load_tasks", phaseID)
	}

	var orphans []uint
	for i := range tasks {
		if !covered(byAnnotator[tasks[i].AnnotatorID], tasks[i].DatasetFile) {
			orphans = append(orphans, tasks[i].ID)
		}
	}

	for chunk := range chunks(orphans) {
		result := db.Where("id IN ?", chunk).Delete(&entities.AnnotationTask{})
		if result.Error != nil {
			return deleted, dbError(result.Error, "delete_orphans", phaseID)
		}
		deleted += result.RowsAffected
	}

	if deleted > 0 {
		m.recorder.AddCount(metrics.OpSyncOrphans, metrics.ActionDeleted, int(deleted))
		m.logger.Debug("deleted orphan tasks",
			logger.Uint("phase_id", phaseID),
			logger.Int64("count", deleted))
	}
	return deleted, nil
}

func covered(ranges []*entities.AnnotationFileRange, file *entities.DatasetFile) bool {
	if file == nil {
		return false
	}
	for _, r := range ranges {
		if r.Covers(file) {
			return true
		}
	}
	return false
}

// EnsureTasksForRange creates a CREATED task for every file of the range that
// has none. files is the sorted file list the range indexes into.
func (m *Manager) EnsureTasksForRange(ctx context.Context, tx *gorm.DB, files []entities.DatasetFile, r *entities.AnnotationFileRange) (created int64, err error) {
	start := time.Now()
	defer func() { m.observe(metrics.OpEnsureTasks, start, err) }()

	if r.FirstFileIndex < 0 || r.LastFileIndex >= len(files) || r.FirstFileIndex > r.LastFileIndex {
		return 0, errors.Newf("range %d..%d is outside the %d campaign files", r.FirstFileIndex, r.LastFileIndex, len(files)).
			Category(errors.CategoryTaskLifecycle).
			Context("range_id", r.ID).
			Build()
	}

	rows := make([]entities.AnnotationTask, 0, r.LastFileIndex-r.FirstFileIndex+1)
	for i := r.FirstFileIndex; i <= r.LastFileIndex; i++ {
		rows = append(rows, entities.AnnotationTask{
			PhaseID:       r.PhaseID,
			AnnotatorID:   r.AnnotatorID,
			DatasetFileID: files[i].ID,
			Status:        entities.TaskCreated,
		})
	}

	// Existing (phase, annotator, file) rows are left untouched.
	result := tx.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Omit("DatasetFile", "Annotator").
		CreateInBatches(rows, batchSize)
	if result.Error != nil {
		return 0, dbError(result.Error, "ensure_tasks", r.PhaseID)
	}

	m.recorder.AddCount(metrics.OpEnsureTasks, metrics.ActionCreated, int(result.RowsAffected))
	return result.RowsAffected, nil
}

// MarkFinished moves the task of (phase, annotator, file) to FINISHED.
// Finishing a finished task is a no-op; changed reports whether the status
// moved. A missing task is a not-found error.
func (m *Manager) MarkFinished(ctx context.Context, tx *gorm.DB, phaseID, annotatorID, fileID uint) (changed bool, err error) {
	start := time.Now()
	defer func() { m.observe(metrics.OpMarkFinished, start, err) }()

	db := tx.WithContext(ctx)
	result := db.Model(&entities.AnnotationTask{}).
		Where("phase_id = ? AND annotator_id = ? AND dataset_file_id = ? AND status = ?",
			phaseID, annotatorID, fileID, entities.TaskCreated).
		Update("status", entities.TaskFinished)
	if result.Error != nil {
		return false, dbError(result.Error, "mark_finished", phaseID)
	}
	if result.RowsAffected > 0 {
		m.recorder.AddCount(metrics.OpMarkFinished, metrics.ActionFinished, 1)
		return true, nil
	}

	var count int64
	if err := db.Model(&entities.AnnotationTask{}).
		Where("phase_id = ? AND annotator_id = ? AND dataset_file_id = ?", phaseID, annotatorID, fileID).
		Count(&count).Error; err != nil {
		return false, dbError(err, "mark_finished", phaseID)
	}
	if count == 0 {
		return false, errors.New(errors.NewStd("annotation task not found")).
			Category(errors.CategoryNotFound).
			Context("phase_id", phaseID).
			Context("annotator_id", annotatorID).
			Context("dataset_file_id", fileID).
			Build()
	}
	return false, nil
}

// InvalidateForVerification resets the FINISHED verification tasks of the
// given files to CREATED. Validations already recorded are kept.
func (m *Manager) InvalidateForVerification(ctx context.Context, tx *gorm.DB, campaignID uint, fileIDs []uint) (reset int64, err error) {
	start := time.Now()
	defer func() { m.observe(metrics.OpInvalidate, start, err) }()

	if len(fileIDs) == 0 {
		return 0, nil
	}

	db := tx.WithContext(ctx)
	var phase entities.AnnotationCampaignPhase
	result := db.Where("campaign_id = ? AND phase = ?", campaignID, entities.PhaseVerification).Limit(1).Find(&phase)
	if result.Error != nil {
		return 0, dbError(result.Error, "load_verification_phase", 0)
	}
	if result.RowsAffected == 0 {
		return 0, nil
	}

	for chunk := range chunks(fileIDs) {
		res := db.Model(&entities.AnnotationTask{}).
			Where("phase_id = ? AND status = ? AND dataset_file_id IN ?", phase.ID, entities.TaskFinished, chunk).
			Update("status", entities.TaskCreated)
		if res.Error != nil {
			return reset, dbError(res.Error, "invalidate_verification", phase.ID)
		}
		reset += res.RowsAffected
	}

	if reset > 0 {
		m.recorder.AddCount(metrics.OpInvalidate, metrics.ActionInvalidated, int(reset))
		m.logger.Info("verification tasks reset",
			logger.Uint("campaign_id", campaignID),
			logger.Uint("phase_id", phase.ID),
			logger.Int64("count", reset))
	}
	return reset, nil
}

// List returns the tasks of an annotator in a phase with their files,
// ordered by file start then file ID.
func List(ctx context.Context, db *gorm.DB, phaseID, annotatorID uint) ([]entities.AnnotationTask, error) {
	var tasks []entities.AnnotationTask
	if err := db.WithContext(ctx).
		Preload("DatasetFile.Dataset").
		Where("phase_id = ? AND annotator_id = ?", phaseID, annotatorID).
		Find(&tasks).Error; err != nil {
		return nil, dbError(err, "list_tasks", phaseID)
	}
	slices.SortFunc(tasks, func(a, b entities.AnnotationTask) int {
		return cmp.Or(a.DatasetFile.Start.Compare(b.DatasetFile.Start), cmp.Compare(a.DatasetFileID, b.DatasetFileID))
	})
	return tasks, nil
}

// chunks yields ids in slices of at most batchSize.
func chunks(ids []uint) iter.Seq[[]uint] {
	return func(yield func([]uint) bool) {
		for start := 0; start < len(ids); start += batchSize {
			if !yield(ids[start:min(start+batchSize, len(ids))]) {
				return
			}
		}
	}
}

func dbError(err error, operation string, phaseID uint) error {
	return errors.New(err).
		Category(errors.CategoryDatabase).
		Context("operation", operation).
		Context("phase_id", phaseID).
		Build()
}
