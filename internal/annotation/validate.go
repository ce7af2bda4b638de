package annotation

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/Project-OSmOSE/osmose-app-sub000/internal/datastore/entities"
	"github.com/Project-OSmOSE/osmose-app-sub000/internal/errors"
)

// Field names of the result payload.
const (
	fieldStartTime      = "start_time"
	fieldEndTime        = "end_time"
	fieldStartFrequency = "start_frequency"
	fieldEndFrequency   = "end_frequency"
)

// Rules are the campaign settings a result is checked against.
type Rules struct {
	Scope         entities.AnnotationScope
	AllowPoint    bool
	LabelSet      *entities.LabelSet
	ConfidenceSet *entities.ConfidenceIndicatorSet
	// Duration and Nyquist bound the time and frequency offsets. A zero
	// Nyquist disables the frequency upper bound.
	Duration float64
	Nyquist  float64
}

// RulesFor returns the rules of a campaign for one of its files.
func RulesFor(c *entities.AnnotationCampaign, file *entities.DatasetFile) Rules {
	return Rules{
		Scope:         c.AnnotationScope,
		AllowPoint:    c.AllowPointAnnotation,
		LabelSet:      c.LabelSet,
		ConfidenceSet: c.ConfidenceIndicatorSet,
		Duration:      file.Duration(),
		Nyquist:       file.Dataset.Nyquist(),
	}
}

// SortBounds swaps reversed bounds in place so that start <= end.
func SortBounds(start, end *float64) {
	if start != nil && end != nil && *start > *end {
		*start, *end = *end, *start
	}
}

// CheckShape verifies that the nullity of the four bounds matches the type
// derived from the time bounds: WEAK has none, POINT has start time and start
// frequency, BOX has all four.
func CheckShape(fe errors.FieldErrors, startTime, endTime, startFrequency, endFrequency *float64) entities.ResultType {
	resultType := entities.InferResultType(startTime, endTime)

	expected := map[string]bool{}
	switch resultType {
	case entities.ResultPoint:
		expected[fieldStartTime] = true
		expected[fieldStartFrequency] = true
	case entities.ResultBox:
		expected[fieldStartTime] = true
		expected[fieldEndTime] = true
		expected[fieldStartFrequency] = true
		expected[fieldEndFrequency] = true
	}

	values := []struct {
		field string
		value *float64
	}{
		{fieldStartTime, startTime},
		{fieldEndTime, endTime},
		{fieldStartFrequency, startFrequency},
		{fieldEndFrequency, endFrequency},
	}
	for _, v := range values {
		switch {
		case expected[v.field] && v.value == nil:
			fe.Add(v.field, errors.CodeNull, "This field may not be null.")
		case !expected[v.field] && v.value != nil:
			fe.Addf(v.field, errors.CodeInvalid, "This field must be null for a %s result.", strings.ToLower(string(resultType)))
		}
	}
	return resultType
}

// CheckRange records min_value/max_value failures of an optional value.
// A negative upper bound disables the upper check.
func CheckRange(fe errors.FieldErrors, field string, value *float64, upper float64) {
	if value == nil {
		return
	}
	switch {
	case *value < 0:
		fe.Add(field, errors.CodeMinValue, "Ensure this value is greater than or equal to 0.")
	case upper >= 0 && *value > upper:
		fe.Add(field, errors.CodeMaxValue, fmt.Sprintf("Ensure this value is less than or equal to %s.", formatFloat(upper)))
	}
}

// BuildResult validates in against the rules and returns the result to
// store. Reversed bounds are swapped before any check. PhaseID, DatasetFileID,
// authorship and IsUpdateOfID are left to the caller.
func BuildResult(fe errors.FieldErrors, in *ResultInput, rules Rules) *entities.AnnotationResult {
	result := &entities.AnnotationResult{}

	label := strings.TrimSpace(in.Label)
	switch {
	case label == "":
		fe.Add("label", errors.CodeRequired, "This field is required.")
	case rules.LabelSet == nil:
		fe.Addf("label", errors.CodeDoesNotExist, "Label %q does not exist in the campaign label set.", label)
	default:
		found := false
		for i := range rules.LabelSet.Labels {
			if rules.LabelSet.Labels[i].Name == label {
				result.LabelID = rules.LabelSet.Labels[i].ID
				result.Label = &rules.LabelSet.Labels[i]
				found = true
				break
			}
		}
		if !found {
			fe.Addf("label", errors.CodeDoesNotExist, "Label %q does not exist in the campaign label set.", label)
		}
	}

	if indicator := resolveConfidence(fe, in.ConfidenceIndicator, rules.ConfidenceSet); indicator != nil {
		result.ConfidenceIndicatorID = &indicator.ID
		result.ConfidenceIndicator = indicator
	}

	startTime, endTime := copyFloat(in.StartTime), copyFloat(in.EndTime)
	startFrequency, endFrequency := copyFloat(in.StartFrequency), copyFloat(in.EndFrequency)
	SortBounds(startTime, endTime)
	SortBounds(startFrequency, endFrequency)

	result.Type = CheckShape(fe, startTime, endTime, startFrequency, endFrequency)
	result.StartTime, result.EndTime = startTime, endTime
	result.StartFrequency, result.EndFrequency = startFrequency, endFrequency

	switch {
	case rules.Scope == entities.ScopeWhole && result.Type != entities.ResultWeak:
		fe.Add(errors.NonFieldKey, errors.CodeInvalid, "This campaign only accepts weak annotations.")
	case result.Type == entities.ResultPoint && !rules.AllowPoint:
		fe.Add(errors.NonFieldKey, errors.CodeInvalid, "This campaign does not accept point annotations.")
	}

	nyquist := rules.Nyquist
	if nyquist <= 0 {
		nyquist = -1
	}
	CheckRange(fe, fieldStartTime, startTime, rules.Duration)
	CheckRange(fe, fieldEndTime, endTime, rules.Duration)
	CheckRange(fe, fieldStartFrequency, startFrequency, nyquist)
	CheckRange(fe, fieldEndFrequency, endFrequency, nyquist)

	for _, c := range in.Comments {
		if strings.TrimSpace(c.Comment) == "" {
			fe.Add("comments", errors.CodeBlank, "This field may not be blank.")
		}
	}
	return result
}

// resolveConfidence returns the indicator named by label, or the default
// indicator of the set when label is nil.
func resolveConfidence(fe errors.FieldErrors, label *string, set *entities.ConfidenceIndicatorSet) *entities.ConfidenceIndicator {
	if set == nil {
		if label != nil {
			fe.Add("confidence_indicator", errors.CodeInvalid, "This campaign has no confidence indicator set.")
		}
		return nil
	}

	if label == nil {
		for i := range set.Indicators {
			if set.Indicators[i].IsDefault {
				return &set.Indicators[i]
			}
		}
		if len(set.Indicators) > 0 {
			fe.Add("confidence_indicator", errors.CodeRequired, "This field is required.")
		}
		return nil
	}

	for i := range set.Indicators {
		if set.Indicators[i].Label == *label {
			return &set.Indicators[i]
		}
	}
	fe.Addf("confidence_indicator", errors.CodeDoesNotExist, "Confidence indicator %q does not exist in the campaign set.", *label)
	return nil
}

func copyFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
