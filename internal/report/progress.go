package report

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/Project-OSmOSE/osmose-app-sub000/internal/datastore/entities"
	"github.com/Project-OSmOSE/osmose-app-sub000/internal/errors"
	"github.com/Project-OSmOSE/osmose-app-sub000/internal/observability/metrics"
)

// Progress counts files assigned and finished in a phase. The user counts
// are zero when no user is given.
type Progress struct {
	GlobalTotal    int64 `json:"global_total"`
	GlobalProgress int64 `json:"global_progress"`
	UserTotal      int64 `json:"user_total"`
	UserProgress   int64 `json:"user_progress"`
}

// Aggregator computes progress and reports against one database.
type Aggregator struct {
	db       *gorm.DB
	recorder metrics.Recorder
}

// NewAggregator creates an aggregator. recorder may be nil.
func NewAggregator(db *gorm.DB, recorder metrics.Recorder) *Aggregator {
	return &Aggregator{db: db, recorder: metrics.OrNop(recorder)}
}

func (a *Aggregator) observe(operation string, start time.Time, err error) {
	a.recorder.RecordDuration(operation, time.Since(start).Seconds())
	if err != nil {
		a.recorder.RecordOperation(operation, metrics.StatusError)
		a.recorder.RecordError(operation, string(errors.CategoryOf(err)))
		return
	}
	a.recorder.RecordOperation(operation, metrics.StatusSuccess)
}

// ProgressCounts returns the range file totals and the FINISHED task counts
// of a phase, globally and for userID when set.
func (a *Aggregator) ProgressCounts(ctx context.Context, phaseID uint, userID *uint) (p *Progress, err error) {
	start := time.Now()
	defer func() { a.observe(metrics.OpProgress, start, err) }()

	p = &Progress{}
	if p.GlobalTotal, p.GlobalProgress, err = a.counts(ctx, phaseID, nil); err != nil {
		return nil, err
	}
	if userID != nil {
		if p.UserTotal, p.UserProgress, err = a.counts(ctx, phaseID, userID); err != nil {
			return nil, err
		}
	}
	return p, nil
}

func (a *Aggregator) counts(ctx context.Context, phaseID uint, userID *uint) (total, finished int64, err error) {
	ranges := a.db.WithContext(ctx).Model(&entities.AnnotationFileRange{}).Where("phase_id = ?", phaseID)
	tasks := a.db.WithContext(ctx).Model(&entities.AnnotationTask{}).
		Where("phase_id = ? AND status = ?", phaseID, entities.TaskFinished)
	if userID != nil {
		ranges = ranges.Where("annotator_id = ?", *userID)
		tasks = tasks.Where("annotator_id = ?", *userID)
	}

	if err := ranges.Select("COALESCE(SUM(files_count), 0)").Scan(&total).Error; err != nil {
		return 0, 0, dbError(err, "sum_files_count", phaseID)
	}
	if err := tasks.Count(&finished).Error; err != nil {
		return 0, 0, dbError(err, "count_finished_tasks", phaseID)
	}
	return total, finished, nil
}

// CampaignProgress returns the progress of every phase of a campaign, keyed
// by phase type.
func (a *Aggregator) CampaignProgress(ctx context.Context, c *entities.AnnotationCampaign, userID *uint) (map[entities.PhaseType]*Progress, error) {
	out := make(map[entities.PhaseType]*Progress, len(c.Phases))
	for i := range c.Phases {
		p, err := a.ProgressCounts(ctx, c.Phases[i].ID, userID)
		if err != nil {
			return nil, err
		}
		out[c.Phases[i].Phase] = p
	}
	return out, nil
}

func dbError(err error, operation string, phaseID uint) error {
	return errors.New(err).
		Category(errors.CategoryDatabase).
		Context("operation", operation).
		Context("phase_id", phaseID).
		Build()
}
