package importer

import (
	"strconv"
	"time"

	"github.com/Project-OSmOSE/osmose-app-sub000/internal/datastore/entities"
	"github.com/Project-OSmOSE/osmose-app-sub000/internal/errors"
)

// datetimeLayouts are tried in order when parsing row timestamps. Layouts
// without a zone are read as UTC.
var datetimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
}

// confidenceRef names a confidence indicator by label and level.
type confidenceRef struct {
	Label string
	Level int
}

// plannedRow is a validated row ready to be written.
type plannedRow struct {
	detector      string
	configuration string
	label         string
	confidence    *confidenceRef
	pieces        []Piece
}

// checker validates rows against the campaign and the options of one import.
type checker struct {
	opts      Options
	timelines map[string]Timeline
	set       *entities.ConfidenceIndicatorSet

	// confidence levels claimed by earlier rows of the batch
	levelOf map[string]int
	labelOf map[int]string
}

func newChecker(opts Options, timelines map[string]Timeline, set *entities.ConfidenceIndicatorSet) *checker {
	c := &checker{
		opts:      opts,
		timelines: timelines,
		set:       set,
		levelOf:   map[string]int{},
		labelOf:   map[int]string{},
	}
	if set != nil {
		for _, ind := range set.Indicators {
			c.levelOf[ind.Label] = ind.Level
			c.labelOf[ind.Level] = ind.Label
		}
	}
	return c
}

// check validates row into fe. It returns nil, false when the row is skipped
// and nil, true when it failed.
func (c *checker) check(fe errors.FieldErrors, row Row) (*plannedRow, bool) {
	plan := &plannedRow{}

	annotator := row.Get(colAnnotator)
	if len(c.opts.DetectorsMap) > 0 {
		mapping, ok := c.opts.DetectorsMap[annotator]
		if !ok {
			return nil, false
		}
		plan.detector = mapping.Detector
		if plan.detector == "" {
			plan.detector = annotator
		}
		plan.configuration = mapping.Configuration
	} else {
		if annotator == "" {
			fe.Add(colAnnotator, errors.CodeRequired, "This field is required.")
		}
		plan.detector = annotator
		plan.configuration = row.Get(colConfiguration)
	}

	dataset := row.Get(colDataset)
	switch {
	case dataset == "":
		dataset = c.opts.DatasetName
	case c.opts.DatasetName != "" && dataset != c.opts.DatasetName:
		return nil, false
	}
	var tl Timeline
	if dataset == "" {
		fe.Add(colDataset, errors.CodeRequired, "This field is required.")
	} else if tl = c.timelines[dataset]; len(tl) == 0 {
		fe.Addf(colDataset, errors.CodeDoesNotExist, "Dataset %q is not part of the campaign.", dataset)
	}

	plan.label = row.Get(colLabel)
	if plan.label == "" {
		fe.Add(colLabel, errors.CodeRequired, "This field is required.")
	}
	plan.confidence = c.checkConfidence(fe, row)

	box, boxOK := parseBool(fe, row, colIsBox)
	var low, high *float64
	if boxOK && box {
		low = parseFloat(fe, row, colMinFrequency)
		high = parseFloat(fe, row, colMaxFrequency)
	}
	start := parseDatetime(fe, row, colStartDatetime)
	end := parseDatetime(fe, row, colEndDatetime)

	if start != nil && end != nil && end.Before(*start) {
		fe.Add(colEndDatetime, errors.CodeValueOrder, "end_datetime must not be before start_datetime.")
	}
	if !fe.Empty() || len(tl) == 0 {
		return nil, true
	}

	if !c.checkFrequencies(fe, tl, low, high) {
		return nil, true
	}
	from, to, ok := c.checkTimes(fe, tl, row.Get(colFilename), *start, *end)
	if !ok {
		return nil, true
	}

	plan.pieces = tl.Split(from, to, box, low, high)
	if len(plan.pieces) == 0 {
		fe.Add(colStartDatetime, errors.CodeInvalid, "The detection does not overlap any file of the dataset.")
		return nil, true
	}
	return plan, true
}

func (c *checker) checkConfidence(fe errors.FieldErrors, row Row) *confidenceRef {
	label := row.Get(colConfidenceLabel)
	rawLevel := row.Get(colConfidenceLevel)
	if label == "" && rawLevel == "" {
		return nil
	}
	if label == "" {
		fe.Add(colConfidenceLabel, errors.CodeRequired, "This field is required when a confidence level is given.")
		return nil
	}
	if rawLevel == "" {
		fe.Add(colConfidenceLevel, errors.CodeRequired, "This field is required when a confidence label is given.")
		return nil
	}
	level, err := strconv.Atoi(rawLevel)
	if err != nil {
		fe.Addf(colConfidenceLevel, errors.CodeInvalid, "%q is not a valid integer.", rawLevel)
		return nil
	}
	if level < 0 {
		fe.Add(colConfidenceLevel, errors.CodeMinValue, "Ensure this value is greater than or equal to 0.")
		return nil
	}

	if known, ok := c.levelOf[label]; ok && known != level {
		fe.Addf(colConfidenceLevel, errors.CodeInvalid, "Confidence %q already has level %d.", label, known)
		return nil
	}
	if other, ok := c.labelOf[level]; ok && other != label {
		fe.Addf(colConfidenceLevel, errors.CodeUnique, "Level %d is already used by confidence %q.", level, other)
		return nil
	}
	c.levelOf[label] = level
	c.labelOf[level] = label
	return &confidenceRef{Label: label, Level: level}
}

func (c *checker) checkFrequencies(fe errors.FieldErrors, tl Timeline, low, high *float64) bool {
	if low == nil || high == nil {
		return true
	}
	clamp := c.opts.Force || c.opts.ForceMaxFrequency

	if *low < 0 {
		fe.Add(colMinFrequency, errors.CodeMinValue, "Ensure this value is greater than or equal to 0.")
	}
	if nyquist := nyquistOf(tl); nyquist > 0 {
		if *high > nyquist {
			if clamp {
				*high = nyquist
			} else {
				fe.Addf(colMaxFrequency, errors.CodeMaxValue, "Ensure this value is less than or equal to %s.", formatFloat(nyquist))
			}
		}
		if *low > nyquist {
			if clamp {
				*low = nyquist
			} else {
				fe.Addf(colMinFrequency, errors.CodeMaxValue, "Ensure this value is less than or equal to %s.", formatFloat(nyquist))
			}
		}
	}
	if *low > *high {
		fe.Add(colMaxFrequency, errors.CodeValueOrder, "max_frequency must not be below min_frequency.")
	}
	return fe.Empty()
}

// checkTimes places [start, end] on the timeline, clamping when forced.
func (c *checker) checkTimes(fe errors.FieldErrors, tl Timeline, filename string, start, end time.Time) (time.Time, time.Time, bool) {
	clamp := c.opts.Force || c.opts.ForceDatetime

	if end.Before(tl.Start()) {
		fe.Add(colStartDatetime, errors.CodeMinValue, "The detection ends before the dataset timeline.")
		return start, end, false
	}
	if !start.Before(tl.End()) {
		fe.Add(colStartDatetime, errors.CodeMaxValue, "The detection starts after the dataset timeline.")
		return start, end, false
	}
	if start.Before(tl.Start()) {
		if !clamp {
			fe.Addf(colStartDatetime, errors.CodeMinValue, "Ensure this value is not before the dataset start %s.", tl.Start().Format(time.RFC3339))
			return start, end, false
		}
		start = tl.Start()
	}
	if end.After(tl.End()) {
		if !clamp {
			fe.Addf(colEndDatetime, errors.CodeMaxValue, "Ensure this value is not after the dataset end %s.", tl.End().Format(time.RFC3339))
			return start, end, false
		}
		end = tl.End()
	}

	var file *entities.DatasetFile
	if filename != "" {
		if file = tl.ByName(filename); file == nil {
			fe.Addf(colFilename, errors.CodeDoesNotExist, "File %q does not exist in the dataset.", filename)
			return start, end, false
		}
		if start.Before(file.Start) || !start.Before(file.End) {
			if !clamp || !end.After(file.Start) || !start.Before(file.End) {
				fe.Addf(colStartDatetime, errors.CodeInvalid, "start_datetime is not within file %q.", filename)
				return start, end, false
			}
			start = file.Start
		}
		return start, end, true
	}

	if tl.Containing(start) == nil {
		next := tl.Next(start)
		if !clamp || next == nil || end.Before(next.Start) {
			fe.Add(colStartDatetime, errors.CodeInvalid, "start_datetime is not within any file of the dataset.")
			return start, end, false
		}
		start = next.Start
	}
	return start, end, true
}

func nyquistOf(tl Timeline) float64 {
	if tl[0].Dataset == nil {
		return 0
	}
	return tl[0].Dataset.Nyquist()
}

func parseBool(fe errors.FieldErrors, row Row, column string) (bool, bool) {
	raw := row.Get(column)
	if raw == "" {
		fe.Add(column, errors.CodeRequired, "This field is required.")
		return false, false
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		fe.Addf(column, errors.CodeInvalid, "%q is not a valid boolean.", raw)
		return false, false
	}
	return v, true
}

func parseFloat(fe errors.FieldErrors, row Row, column string) *float64 {
	raw := row.Get(column)
	if raw == "" {
		fe.Add(column, errors.CodeRequired, "This field is required for box detections.")
		return nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		fe.Addf(column, errors.CodeInvalid, "%q is not a valid number.", raw)
		return nil
	}
	return &v
}

func parseDatetime(fe errors.FieldErrors, row Row, column string) *time.Time {
	raw := row.Get(column)
	if raw == "" {
		fe.Add(column, errors.CodeRequired, "This field is required.")
		return nil
	}
	for _, layout := range datetimeLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			t = t.UTC()
			return &t
		}
	}
	fe.Addf(column, errors.CodeInvalid, "%q is not a valid ISO 8601 datetime.", raw)
	return nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
