package report

import (
	"cmp"
	"context"
	"slices"
	"strings"
	"time"

	"github.com/Project-OSmOSE/osmose-app-sub000/internal/datastore/entities"
	"github.com/Project-OSmOSE/osmose-app-sub000/internal/observability/metrics"
)

// Task states of the status report.
const (
	StatusFinished   = "FINISHED"
	StatusCreated    = "CREATED"
	StatusUnassigned = "UNASSIGNED"
)

// Status returns one row per file of the scope sorted by dataset then
// filename, with one column per annotator holding the state of that file.
func (a *Aggregator) Status(ctx context.Context, scope *Scope) (t *Table, err error) {
	start := time.Now()
	defer func() { a.observe(metrics.OpReportStatus, start, err) }()

	db := a.db.WithContext(ctx)
	var ranges []entities.AnnotationFileRange
	if err := db.Preload("Annotator").Where("phase_id = ?", scope.Phase.ID).Find(&ranges).Error; err != nil {
		return nil, dbError(err, "load_ranges", scope.Phase.ID)
	}
	var finished []entities.AnnotationTask
	if err := db.Where("phase_id = ? AND status = ?", scope.Phase.ID, entities.TaskFinished).Find(&finished).Error; err != nil {
		return nil, dbError(err, "load_finished_tasks", scope.Phase.ID)
	}

	names := map[uint]string{}
	byAnnotator := map[uint][]*entities.AnnotationFileRange{}
	for i := range ranges {
		r := &ranges[i]
		names[r.AnnotatorID] = username(r.Annotator)
		byAnnotator[r.AnnotatorID] = append(byAnnotator[r.AnnotatorID], r)
	}
	type key struct{ annotator, file uint }
	done := make(map[key]bool, len(finished))
	for _, task := range finished {
		done[key{task.AnnotatorID, task.DatasetFileID}] = true
	}

	usernames := make([]string, 0, len(names))
	ids := make(map[string]uint, len(names))
	for id, name := range names {
		usernames = append(usernames, name)
		ids[name] = id
	}
	sortNames(usernames)

	files := make([]*entities.DatasetFile, len(scope.Files))
	for i := range scope.Files {
		files[i] = &scope.Files[i]
	}
	slices.SortFunc(files, func(x, y *entities.DatasetFile) int {
		return cmp.Or(strings.Compare(datasetName(x), datasetName(y)), strings.Compare(x.Filename, y.Filename))
	})

	t = &Table{Header: append([]string{"dataset", "filename"}, usernames...)}
	for _, file := range files {
		row := make([]string, 0, len(t.Header))
		row = append(row, datasetName(file), file.Filename)
		for _, name := range usernames {
			annotator := ids[name]
			switch {
			case done[key{annotator, file.ID}]:
				row = append(row, StatusFinished)
			case covered(byAnnotator[annotator], file):
				row = append(row, StatusCreated)
			default:
				row = append(row, StatusUnassigned)
			}
		}
		t.Rows = append(t.Rows, row)
	}
	return t, nil
}

func covered(ranges []*entities.AnnotationFileRange, file *entities.DatasetFile) bool {
	for _, r := range ranges {
		if r.Covers(file) {
			return true
		}
	}
	return false
}
