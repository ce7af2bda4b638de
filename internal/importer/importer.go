// Package importer loads detector results from CSV into the annotation phase
// of a campaign.
//
// An import is all-or-nothing: every row is validated first and any failure
// aborts the batch with one FieldErrors entry per row. Labels and confidence
// indicators the campaign does not know yet are provisioned, cloning the
// campaign vocabulary first when another campaign shares it.
package importer

import (
	"context"
	"io"
	"slices"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Project-OSmOSE/osmose-app-sub000/internal/campaign"
	"github.com/Project-OSmOSE/osmose-app-sub000/internal/datastore/entities"
	"github.com/Project-OSmOSE/osmose-app-sub000/internal/datastore/repository"
	"github.com/Project-OSmOSE/osmose-app-sub000/internal/errors"
	"github.com/Project-OSmOSE/osmose-app-sub000/internal/events"
	"github.com/Project-OSmOSE/osmose-app-sub000/internal/logger"
	"github.com/Project-OSmOSE/osmose-app-sub000/internal/observability/metrics"
	"github.com/Project-OSmOSE/osmose-app-sub000/internal/tasks"
)

const batchSize = 500

// GetLogger returns the importer module logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("importer")
}

// DetectorMapping renames a raw annotator column value.
type DetectorMapping struct {
	Detector      string `json:"detector"`
	Configuration string `json:"configuration"`
}

// Options tune an import.
type Options struct {
	// DatasetName is used for rows without a dataset; rows of another
	// dataset are skipped.
	DatasetName string
	// DetectorsMap maps raw annotators to detectors. When set, rows whose
	// annotator is not a key are skipped.
	DetectorsMap map[string]DetectorMapping
	// ForceDatetime clamps timestamps to the dataset timeline.
	ForceDatetime bool
	// ForceMaxFrequency clamps frequencies to the Nyquist frequency.
	ForceMaxFrequency bool
	// Force implies both.
	Force bool
}

// Outcome summarizes a successful import.
type Outcome struct {
	Rows                 int   `json:"rows"`
	Skipped              int   `json:"skipped"`
	Results              int   `json:"results"`
	Files                int   `json:"files"`
	TasksReset           int64 `json:"tasks_reset"`
	LabelSetCloned       bool  `json:"label_set_cloned"`
	ConfidenceSetCloned  bool  `json:"confidence_set_cloned"`
	ConfidenceSetCreated bool  `json:"confidence_set_created"`
	LabelSetID           uint  `json:"label_set"`
	ConfidenceSetID      *uint `json:"confidence_indicator_set,omitempty"`
}

// Importer writes detector results.
type Importer struct {
	tasks     *tasks.Manager
	recorder  metrics.Recorder
	publisher events.Publisher
	logger    logger.Logger
}

// NewImporter creates an importer. recorder and publisher may be nil.
func NewImporter(taskManager *tasks.Manager, recorder metrics.Recorder, publisher events.Publisher) *Importer {
	if taskManager == nil {
		taskManager = tasks.NewManager(recorder)
	}
	return &Importer{
		tasks:     taskManager,
		recorder:  metrics.OrNop(recorder),
		publisher: publisher,
		logger:    GetLogger(),
	}
}

// ImportCSV parses r and imports its rows.
func (im *Importer) ImportCSV(ctx context.Context, db *gorm.DB, cc *campaign.Context, r io.Reader, opts Options) (*Outcome, error) {
	rows, err := ParseCSV(r)
	if err != nil {
		return nil, err
	}
	return im.Import(ctx, db, cc, rows, opts)
}

// Import validates rows and writes their results into the annotation phase of
// cc in one transaction. Failures are returned as errors.ListErrors indexed
// by row.
func (im *Importer) Import(ctx context.Context, db *gorm.DB, cc *campaign.Context, rows []Row, opts Options) (out *Outcome, err error) {
	start := time.Now()
	defer func() {
		im.recorder.RecordDuration(metrics.OpImport, time.Since(start).Seconds())
		if err != nil {
			im.recorder.RecordOperation(metrics.OpImport, metrics.StatusError)
			im.recorder.RecordError(metrics.OpImport, string(errors.CategoryOf(err)))
			return
		}
		im.recorder.RecordOperation(metrics.OpImport, metrics.StatusSuccess)
	}()

	if err := cc.RequirePhase(); err != nil {
		return nil, err
	}
	if cc.Phase.Phase != entities.PhaseAnnotation {
		return nil, errors.Fields("phase", errors.CodeInvalid, "Results can only be imported into the annotation phase.")
	}
	if err := cc.CheckManage(); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, errors.Fields(errors.NonFieldKey, errors.CodeRequired, "No row to import.")
	}

	chk := newChecker(opts, timelinesOf(cc), cc.Campaign.ConfidenceIndicatorSet)
	le := errors.NewListErrors(len(rows))
	out = &Outcome{Rows: len(rows)}
	var plans []*plannedRow
	for i, row := range rows {
		plan, handled := chk.check(le[i], row)
		switch {
		case !handled:
			out.Skipped++
		case plan != nil:
			plans = append(plans, plan)
		}
	}
	if le.HasErrors() {
		return nil, errors.New(le).
			Category(errors.CategoryValidation).
			Context("campaign_id", cc.Campaign.ID).
			Build()
	}
	if len(plans) == 0 {
		return out, nil
	}

	var vocab *vocabulary
	var fileIDs []uint
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		if vocab, err = provision(ctx, tx, cc.Campaign, plans, out); err != nil {
			return err
		}
		configurations, err := resolveDetectors(ctx, tx, plans)
		if err != nil {
			return err
		}

		results := make([]entities.AnnotationResult, 0, len(plans))
		for _, plan := range plans {
			configurationID := configurations[detectorKey{plan.detector, plan.configuration}]
			for _, p := range plan.pieces {
				results = append(results, vocab.result(cc.Phase.ID, configurationID, plan, p))
				fileIDs = append(fileIDs, p.File.ID)
			}
		}
		if err := tx.Omit(clause.Associations).CreateInBatches(&results, batchSize).Error; err != nil {
			return errors.New(err).
				Category(errors.CategoryDatabase).
				Context("operation", "create_imported_results").
				Context("phase_id", cc.Phase.ID).
				Build()
		}
		out.Results = len(results)

		slices.Sort(fileIDs)
		fileIDs = slices.Compact(fileIDs)
		out.Files = len(fileIDs)
		out.TasksReset, err = im.tasks.InvalidateForVerification(ctx, tx, cc.Campaign.ID, fileIDs)
		return err
	})
	if err != nil {
		return nil, importError(err, cc.Phase.ID)
	}

	vocab.apply(cc.Campaign)
	out.LabelSetID = cc.Campaign.LabelSetID
	out.ConfidenceSetID = cc.Campaign.ConfidenceIndicatorSetID

	im.recorder.AddCount(metrics.OpImport, metrics.ActionImported, out.Results)
	im.logger.Info("results imported",
		logger.Uint("campaign_id", cc.Campaign.ID),
		logger.Uint("phase_id", cc.Phase.ID),
		logger.Int("rows", out.Rows),
		logger.Int("skipped", out.Skipped),
		logger.Int("results", out.Results),
		logger.Int64("tasks_reset", out.TasksReset))
	events.Publish(im.publisher, events.New(events.ResultsImported, cc.Campaign.ID, cc.Phase.ID, cc.User.ID, map[string]any{
		"results":     out.Results,
		"files":       out.Files,
		"tasks_reset": out.TasksReset,
	}))
	return out, nil
}

// timelinesOf groups the sorted campaign files by dataset name.
func timelinesOf(cc *campaign.Context) map[string]Timeline {
	names := make(map[uint]string, len(cc.Campaign.Datasets))
	for i := range cc.Campaign.Datasets {
		names[cc.Campaign.Datasets[i].ID] = cc.Campaign.Datasets[i].Name
	}
	timelines := make(map[string]Timeline, len(names))
	for i := range cc.Files {
		f := &cc.Files[i]
		name, ok := names[f.DatasetID]
		if !ok {
			continue
		}
		timelines[name] = append(timelines[name], f)
	}
	return timelines
}

type detectorKey struct {
	name          string
	configuration string
}

func resolveDetectors(ctx context.Context, tx *gorm.DB, plans []*plannedRow) (map[detectorKey]uint, error) {
	repo := repository.NewDetectorRepository(tx)
	ids := make(map[detectorKey]uint)
	for _, plan := range plans {
		key := detectorKey{plan.detector, plan.configuration}
		if _, ok := ids[key]; ok {
			continue
		}
		detector, err := repo.GetOrCreate(ctx, key.name)
		if err != nil {
			return nil, err
		}
		configuration, err := repo.GetOrCreateConfiguration(ctx, detector.ID, key.configuration)
		if err != nil {
			return nil, err
		}
		ids[key] = configuration.ID
	}
	return ids, nil
}

// importError tags a failed import transaction with CategoryImport unless an
// inner step already categorized it.
func importError(err error, phaseID uint) error {
	var ee *errors.EnhancedError
	if errors.As(err, &ee) {
		return err
	}
	return errors.New(err).
		Category(errors.CategoryImport).
		Context("operation", "import_results").
		Context("phase_id", phaseID).
		Build()
}
