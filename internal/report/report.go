package report

import (
	"cmp"
	"context"
	"math"
	"slices"
	"strconv"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/Project-OSmOSE/osmose-app-sub000/internal/datastore/entities"
	"github.com/Project-OSmOSE/osmose-app-sub000/internal/logger"
	"github.com/Project-OSmOSE/osmose-app-sub000/internal/observability/metrics"
)

// ReportHeader is the fixed column list of the result report. Verification
// reports append one column per validating annotator.
var ReportHeader = []string{
	"dataset",
	"filename",
	"annotation_id",
	"is_update_of",
	"start_time",
	"end_time",
	"start_frequency",
	"end_frequency",
	"annotation",
	"annotator",
	"annotator_expertise",
	"start_datetime",
	"end_datetime",
	"is_box",
	"type",
	"confidence_indicator_label",
	"confidence_indicator_level",
	"comments",
}

const (
	datetimeLayout   = "2006-01-02T15:04:05.000"
	utcSuffix        = "+00:00"
	commentSeparator = "; "
)

// Table is a header-first row set.
type Table struct {
	Header []string
	Rows   [][]string
}

// Report returns one row per result of the scope ordered by file start, file
// ID then result ID, followed by one row per task comment.
func (a *Aggregator) Report(ctx context.Context, scope *Scope) (t *Table, err error) {
	start := time.Now()
	defer func() { a.observe(metrics.OpReport, start, err) }()

	files := make(map[uint]*entities.DatasetFile, len(scope.Files))
	for i := range scope.Files {
		files[scope.Files[i].ID] = &scope.Files[i]
	}
	phaseIDs := scope.PhaseIDs()
	db := a.db.WithContext(ctx)

	var results []entities.AnnotationResult
	if err := db.
		Preload("Label").
		Preload("ConfidenceIndicator.Set.Indicators").
		Preload("Annotator").
		Preload("DetectorConfiguration.Detector").
		Preload("Comments", func(db *gorm.DB) *gorm.DB { return db.Order("id") }).
		Preload("Comments.Author").
		Preload("Validations.Annotator").
		Where("phase_id IN ?", phaseIDs).
		Find(&results).Error; err != nil {
		return nil, dbError(err, "load_results", scope.Phase.ID)
	}
	results = slices.DeleteFunc(results, func(r entities.AnnotationResult) bool { return files[r.DatasetFileID] == nil })
	slices.SortFunc(results, func(x, y entities.AnnotationResult) int {
		return cmp.Or(compareFiles(files[x.DatasetFileID], files[y.DatasetFileID]), cmp.Compare(x.ID, y.ID))
	})

	var comments []entities.AnnotationComment
	if err := db.Preload("Author").
		Where("phase_id IN ? AND annotation_result_id IS NULL", phaseIDs).
		Find(&comments).Error; err != nil {
		return nil, dbError(err, "load_task_comments", scope.Phase.ID)
	}
	comments = slices.DeleteFunc(comments, func(c entities.AnnotationComment) bool { return files[c.DatasetFileID] == nil })
	slices.SortFunc(comments, func(x, y entities.AnnotationComment) int {
		return cmp.Or(compareFiles(files[x.DatasetFileID], files[y.DatasetFileID]), cmp.Compare(x.ID, y.ID))
	})

	var validators []string
	if scope.IsVerification() {
		seen := map[string]bool{}
		for i := range results {
			for _, v := range results[i].Validations {
				if name := username(v.Annotator); name != "" && !seen[name] {
					seen[name] = true
					validators = append(validators, name)
				}
			}
		}
		sortNames(validators)
	}

	t = &Table{Header: append(slices.Clone(ReportHeader), validators...)}
	for i := range results {
		row := resultRow(&results[i], files[results[i].DatasetFileID])
		t.Rows = append(t.Rows, append(row, verdicts(&results[i], validators)...))
	}
	for i := range comments {
		t.Rows = append(t.Rows, commentRow(&comments[i], files[comments[i].DatasetFileID], len(t.Header)))
	}

	GetLogger().Debug("report built",
		logger.Uint("campaign_id", scope.Campaign.ID),
		logger.Uint("phase_id", scope.Phase.ID),
		logger.Int("results", len(results)),
		logger.Int("task_comments", len(comments)))
	return t, nil
}

func compareFiles(a, b *entities.DatasetFile) int {
	return cmp.Or(a.Start.Compare(b.Start), cmp.Compare(a.ID, b.ID))
}

// bounds are the effective offsets of a result: weak results span the whole
// file and points have no extent.
type bounds struct {
	startTime, endTime           float64
	startFrequency, endFrequency float64
}

func fullFile(file *entities.DatasetFile) bounds {
	return bounds{endTime: file.Duration(), endFrequency: file.Dataset.Nyquist()}
}

func effectiveBounds(r *entities.AnnotationResult, file *entities.DatasetFile) bounds {
	switch r.Type {
	case entities.ResultWeak:
		return fullFile(file)
	case entities.ResultPoint:
		b := bounds{startTime: deref(r.StartTime), startFrequency: deref(r.StartFrequency)}
		b.endTime, b.endFrequency = b.startTime, b.startFrequency
		return b
	default:
		return bounds{
			startTime:      deref(r.StartTime),
			endTime:        deref(r.EndTime),
			startFrequency: deref(r.StartFrequency),
			endFrequency:   deref(r.EndFrequency),
		}
	}
}

// IsBox reports whether a result is exported as a box: weak results and
// boxes spanning the whole file are not.
func IsBox(r *entities.AnnotationResult, file *entities.DatasetFile) bool {
	switch r.Type {
	case entities.ResultWeak:
		return false
	case entities.ResultBox:
		return effectiveBounds(r, file) != fullFile(file)
	}
	return true
}

func resultRow(r *entities.AnnotationResult, file *entities.DatasetFile) []string {
	b := effectiveBounds(r, file)

	author, expertise := "", ""
	switch {
	case r.Annotator != nil:
		author, expertise = r.Annotator.Username, r.Annotator.Expertise()
	case r.DetectorConfiguration != nil && r.DetectorConfiguration.Detector != nil:
		author = r.DetectorConfiguration.Detector.Name
	}

	confidenceLabel, confidenceLevel := "", ""
	if ci := r.ConfidenceIndicator; ci != nil {
		maxLevel := ci.Level
		if ci.Set != nil {
			maxLevel = ci.Set.MaxLevel()
		}
		confidenceLabel = ci.Label
		confidenceLevel = strconv.Itoa(ci.Level) + "/" + strconv.Itoa(maxLevel)
	}

	label := ""
	if r.Label != nil {
		label = r.Label.Name
	}
	isBox := "0"
	if IsBox(r, file) {
		isBox = "1"
	}

	parts := make([]string, 0, len(r.Comments))
	for i := range r.Comments {
		parts = append(parts, formatComment(&r.Comments[i]))
	}

	return []string{
		datasetName(file),
		file.Filename,
		strconv.FormatUint(uint64(r.ID), 10),
		optionalID(r.IsUpdateOfID),
		formatNumber(b.startTime),
		formatNumber(b.endTime),
		formatNumber(b.startFrequency),
		formatNumber(b.endFrequency),
		label,
		author,
		expertise,
		FormatDatetime(offset(file.Start, b.startTime)),
		FormatDatetime(offset(file.Start, b.endTime)),
		isBox,
		string(r.Type),
		confidenceLabel,
		confidenceLevel,
		strings.Join(parts, commentSeparator),
	}
}

func verdicts(r *entities.AnnotationResult, validators []string) []string {
	if len(validators) == 0 {
		return nil
	}
	byUser := make(map[string]bool, len(r.Validations))
	for _, v := range r.Validations {
		byUser[username(v.Annotator)] = v.IsValid
	}
	out := make([]string, len(validators))
	for i, name := range validators {
		if valid, ok := byUser[name]; ok {
			out[i] = verdict(valid)
		}
	}
	return out
}

func commentRow(c *entities.AnnotationComment, file *entities.DatasetFile, width int) []string {
	row := make([]string, width)
	row[0] = datasetName(file)
	row[1] = file.Filename
	row[9] = username(c.Author)
	row[11] = FormatDatetime(file.Start)
	row[12] = FormatDatetime(file.End)
	row[17] = formatComment(c)
	return row
}

func formatComment(c *entities.AnnotationComment) string {
	return c.Comment + " |- " + username(c.Author)
}

// FormatDatetime renders t in UTC with millisecond precision and an explicit
// offset, e.g. 2024-01-01T00:00:42.000+00:00.
func FormatDatetime(t time.Time) string {
	return t.UTC().Format(datetimeLayout) + utcSuffix
}

func offset(t time.Time, seconds float64) time.Time {
	return t.Add(time.Duration(math.Round(seconds * float64(time.Second))))
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func optionalID(id *uint) string {
	if id == nil {
		return ""
	}
	return strconv.FormatUint(uint64(*id), 10)
}

func verdict(v bool) string {
	if v {
		return "True"
	}
	return "False"
}

func username(u *entities.User) string {
	if u == nil {
		return ""
	}
	return u.Username
}

func datasetName(f *entities.DatasetFile) string {
	if f.Dataset == nil {
		return ""
	}
	return f.Dataset.Name
}

func deref(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}
