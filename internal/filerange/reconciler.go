// Package filerange assigns contiguous slices of a campaign's sorted file
// list to annotators and keeps the stored ranges merged.
//
// A reconciliation merges desired ranges with overlapping or adjacent stored
// ranges of the same annotator, or replaces the stored set outright for the
// annotators a caller lists. Stored ranges nobody kept are deleted and the
// tasks of the phase are brought back in line in the same transaction.
package filerange

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"time"

	"gorm.io/gorm"

	"github.com/Project-OSmOSE/osmose-app-sub000/internal/campaign"
	"github.com/Project-OSmOSE/osmose-app-sub000/internal/datastore/entities"
	"github.com/Project-OSmOSE/osmose-app-sub000/internal/errors"
	"github.com/Project-OSmOSE/osmose-app-sub000/internal/events"
	"github.com/Project-OSmOSE/osmose-app-sub000/internal/logger"
	"github.com/Project-OSmOSE/osmose-app-sub000/internal/observability/metrics"
	"github.com/Project-OSmOSE/osmose-app-sub000/internal/tasks"
)

// GetLogger returns the filerange module logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("filerange")
}

// Outcome summarizes a reconciliation.
type Outcome struct {
	// Ranges are the stored ranges of the reconciled annotators afterwards,
	// ordered by annotator then first index.
	Ranges       []entities.AnnotationFileRange
	Created      int
	Updated      int
	Deleted      int
	TasksCreated int64
	TasksDeleted int64
}

// Reconciler applies desired range sets to a phase.
type Reconciler struct {
	tasks     *tasks.Manager
	recorder  metrics.Recorder
	publisher events.Publisher
	logger    logger.Logger
}

// NewReconciler creates a reconciler. recorder and publisher may be nil.
func NewReconciler(taskManager *tasks.Manager, recorder metrics.Recorder, publisher events.Publisher) *Reconciler {
	if taskManager == nil {
		taskManager = tasks.NewManager(recorder)
	}
	return &Reconciler{
		tasks:     taskManager,
		recorder:  metrics.OrNop(recorder),
		publisher: publisher,
		logger:    GetLogger(),
	}
}

// Submit checks that the user of cc may manage the phase, reconciles in a
// new transaction and publishes a RangesReconciled event on success.
func (r *Reconciler) Submit(ctx context.Context, db *gorm.DB, cc *campaign.Context, desired []DesiredRange, annotators []uint) (*Outcome, error) {
	if err := cc.RequirePhase(); err != nil {
		return nil, err
	}
	if err := cc.CheckManage(); err != nil {
		return nil, err
	}

	var outcome *Outcome
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		outcome, err = r.Reconcile(ctx, tx, cc, desired, annotators)
		return err
	})
	if err != nil {
		return nil, err
	}

	events.Publish(r.publisher, events.New(events.RangesReconciled, cc.Campaign.ID, cc.Phase.ID, cc.User.ID, map[string]any{
		"created":       outcome.Created,
		"updated":       outcome.Updated,
		"deleted":       outcome.Deleted,
		"tasks_created": outcome.TasksCreated,
		"tasks_deleted": outcome.TasksDeleted,
	}))
	return outcome, nil
}

// Reconcile applies desired to every annotator it names and to every
// annotator in annotators. Ranges of annotators in annotators are replaced
// by the desired set (see PlanReplace); other annotators have their desired
// ranges merged with the stored ones (see Plan). It runs inside tx and does
// not check permissions.
//
// Validation failures are returned as an errors.ListErrors aligned with
// desired.
func (r *Reconciler) Reconcile(ctx context.Context, tx *gorm.DB, cc *campaign.Context, desired []DesiredRange, annotators []uint) (outcome *Outcome, err error) {
	start := time.Now()
	defer func() {
		r.recorder.RecordDuration(metrics.OpReconcile, time.Since(start).Seconds())
		if err != nil {
			r.recorder.RecordOperation(metrics.OpReconcile, metrics.StatusError)
			r.recorder.RecordError(metrics.OpReconcile, string(errors.CategoryOf(err)))
			return
		}
		r.recorder.RecordOperation(metrics.OpReconcile, metrics.StatusSuccess)
	}()

	if err := cc.RequirePhase(); err != nil {
		return nil, err
	}
	phaseID := cc.Phase.ID
	db := tx.WithContext(ctx)

	scope := make(map[uint]bool, len(annotators)+len(desired))
	replace := make(map[uint]bool, len(annotators))
	for _, id := range annotators {
		scope[id] = true
		replace[id] = true
	}
	for _, d := range desired {
		if d.AnnotatorID != 0 {
			scope[d.AnnotatorID] = true
		}
	}
	annotatorIDs := slices.Sorted(maps.Keys(scope))

	outcome = &Outcome{}
	if len(annotatorIDs) == 0 {
		return outcome, nil
	}

	var existing []entities.AnnotationFileRange
	if err := db.Where("phase_id = ? AND annotator_id IN ?", phaseID, annotatorIDs).
		Order("id").Find(&existing).Error; err != nil {
		return nil, dbError(err, "load_ranges", phaseID)
	}

	if err := r.validate(db, cc, desired, annotatorIDs, existing); err != nil {
		return nil, err
	}

	desiredBy := make(map[uint][]DesiredRange)
	for _, d := range desired {
		desiredBy[d.AnnotatorID] = append(desiredBy[d.AnnotatorID], d)
	}
	storedBy := make(map[uint][]entities.AnnotationFileRange)
	for i := range existing {
		storedBy[existing[i].AnnotatorID] = append(storedBy[existing[i].AnnotatorID], existing[i])
	}

	var touched []*entities.AnnotationFileRange
	for _, annotatorID := range annotatorIDs {
		plan := Plan
		if replace[annotatorID] {
			plan = PlanReplace
		}
		for _, g := range plan(desiredBy[annotatorID], storedBy[annotatorID]) {
			if obsolete := g.Obsolete(); len(obsolete) > 0 {
				if err := db.Delete(&entities.AnnotationFileRange{}, obsolete).Error; err != nil {
					return nil, dbError(err, "delete_ranges", phaseID)
				}
				outcome.Deleted += len(obsolete)
			}
			if !g.Desired {
				continue
			}
			if g.Last >= cc.TotalFiles() {
				return nil, errors.Newf("merged range [%d, %d] is outside the %d files of the campaign", g.First, g.Last, cc.TotalFiles()).
					Category(errors.CategoryRangeReconcile).
					Context("phase_id", phaseID).
					Context("annotator_id", annotatorID).
					Build()
			}

			row := &entities.AnnotationFileRange{
				ID:             g.Survivor(),
				PhaseID:        phaseID,
				AnnotatorID:    annotatorID,
				FirstFileIndex: g.First,
				LastFileIndex:  g.Last,
			}
			ApplyDerived(row, cc.Files)
			if row.ID == 0 {
				err = db.Omit("Annotator").Create(row).Error
				outcome.Created++
			} else {
				err = db.Omit("Annotator").Save(row).Error
				outcome.Updated++
			}
			if err != nil {
				return nil, dbError(err, "save_range", phaseID)
			}
			touched = append(touched, row)
		}
	}

	for _, row := range touched {
		created, err := r.tasks.EnsureTasksForRange(ctx, tx, cc.Files, row)
		if err != nil {
			return nil, err
		}
		outcome.TasksCreated += created
		outcome.Ranges = append(outcome.Ranges, *row)
	}

	if outcome.TasksDeleted, err = r.tasks.SyncOrphans(ctx, tx, phaseID); err != nil {
		return nil, err
	}

	r.recorder.AddCount(metrics.OpReconcile, metrics.ActionCreated, outcome.Created)
	r.recorder.AddCount(metrics.OpReconcile, metrics.ActionUpdated, outcome.Updated)
	r.recorder.AddCount(metrics.OpReconcile, metrics.ActionDeleted, outcome.Deleted)

	r.logger.Info("file ranges reconciled",
		logger.Uint("campaign_id", cc.Campaign.ID),
		logger.Uint("phase_id", phaseID),
		logger.Int("annotators", len(annotatorIDs)),
		logger.Int("created", outcome.Created),
		logger.Int("updated", outcome.Updated),
		logger.Int("deleted", outcome.Deleted),
		logger.Int64("tasks_created", outcome.TasksCreated),
		logger.Int64("tasks_deleted", outcome.TasksDeleted))

	return outcome, nil
}

// validate checks every desired item and returns positional errors.
func (r *Reconciler) validate(db *gorm.DB, cc *campaign.Context, desired []DesiredRange, annotatorIDs []uint, existing []entities.AnnotationFileRange) error {
	var found []uint
	if err := db.Model(&entities.User{}).Where("id IN ?", annotatorIDs).Pluck("id", &found).Error; err != nil {
		return dbError(err, "load_annotators", cc.Phase.ID)
	}
	known := make(map[uint]bool, len(found))
	for _, id := range found {
		known[id] = true
	}
	owner := make(map[uint]uint, len(existing))
	for i := range existing {
		owner[existing[i].ID] = existing[i].AnnotatorID
	}

	maxIndex := cc.TotalFiles() - 1
	claimed := make(map[uint]bool)
	le := errors.NewListErrors(len(desired))
	for i, d := range desired {
		fe := le[i]

		switch {
		case d.AnnotatorID == 0:
			fe.Add("annotator", errors.CodeRequired, "This field is required.")
		case !known[d.AnnotatorID]:
			fe.Addf("annotator", errors.CodeDoesNotExist, "Invalid pk \"%d\" - object does not exist.", d.AnnotatorID)
		}

		checkIndex(fe, "first_file_index", d.FirstFileIndex, maxIndex)
		checkIndex(fe, "last_file_index", d.LastFileIndex, maxIndex)
		if d.FirstFileIndex > d.LastFileIndex {
			fe.Add("last_file_index", errors.CodeValueOrder, "last_file_index must be greater than or equal to first_file_index.")
		}

		if d.ID != nil {
			switch annotatorID, ok := owner[*d.ID]; {
			case !ok || annotatorID != d.AnnotatorID:
				fe.Addf("id", errors.CodeDoesNotExist, "Invalid pk \"%d\" - object does not exist.", *d.ID)
			case claimed[*d.ID]:
				fe.Addf("id", errors.CodeUnique, "Range %d is submitted more than once.", *d.ID)
			}
			claimed[*d.ID] = true
		}
	}

	if le.HasErrors() {
		return errors.New(le).
			Category(errors.CategoryValidation).
			Context("operation", "reconcile").
			Context("phase_id", cc.Phase.ID).
			Build()
	}
	return nil
}

func checkIndex(fe errors.FieldErrors, field string, value, maxIndex int) {
	switch {
	case value < 0:
		fe.Add(field, errors.CodeMinValue, "Ensure this value is greater than or equal to 0.")
	case value > maxIndex:
		fe.Add(field, errors.CodeMaxValue, fmt.Sprintf("Ensure this value is less than or equal to %d.", maxIndex))
	}
}

// ApplyDerived recomputes the cached datetimes and file count of a range
// from the sorted file list. Indices must be in bounds.
func ApplyDerived(r *entities.AnnotationFileRange, files []entities.DatasetFile) {
	from, to := files[r.FirstFileIndex].Start, files[r.LastFileIndex].End
	if to.Before(from) {
		from, to = to, from
	}
	r.FromDatetime = from
	r.ToDatetime = to
	r.FilesCount = r.LastFileIndex - r.FirstFileIndex + 1
}

// ListRanges returns the ranges of a phase with their annotators, optionally
// restricted to one annotator.
func ListRanges(ctx context.Context, db *gorm.DB, phaseID uint, annotatorID *uint) ([]entities.AnnotationFileRange, error) {
	q := db.WithContext(ctx).Preload("Annotator").Where("phase_id = ?", phaseID)
	if annotatorID != nil {
		q = q.Where("annotator_id = ?", *annotatorID)
	}
	var ranges []entities.AnnotationFileRange
	if err := q.Order("annotator_id").Order("first_file_index").Find(&ranges).Error; err != nil {
		return nil, dbError(err, "list_ranges", phaseID)
	}
	return ranges, nil
}

func dbError(err error, operation string, phaseID uint) error {
	return errors.New(err).
		Category(errors.CategoryDatabase).
		Context("operation", operation).
		Context("phase_id", phaseID).
		Build()
}
