package entities

import "strings"

// ExpertiseLevel is the self-declared annotation expertise of a user.
type ExpertiseLevel string

const (
	ExpertiseExpert  ExpertiseLevel = "EXPERT"
	ExpertiseAverage ExpertiseLevel = "AVERAGE"
	ExpertiseNovice  ExpertiseLevel = "NOVICE"
)

// Valid reports whether the level is one of the known values.
func (e ExpertiseLevel) Valid() bool {
	switch e {
	case ExpertiseExpert, ExpertiseAverage, ExpertiseNovice:
		return true
	}
	return false
}

// AnnotationScope restricts the kind of results a campaign accepts.
type AnnotationScope string

const (
	ScopeRectangle AnnotationScope = "RECTANGLE"
	ScopeWhole     AnnotationScope = "WHOLE"
)

// PhaseType identifies a campaign phase.
type PhaseType string

const (
	PhaseAnnotation   PhaseType = "ANNOTATION"
	PhaseVerification PhaseType = "VERIFICATION"
)

// ParsePhaseType accepts "annotation"/"verification" in any case.
func ParsePhaseType(s string) (PhaseType, bool) {
	switch PhaseType(strings.ToUpper(strings.TrimSpace(s))) {
	case PhaseAnnotation:
		return PhaseAnnotation, true
	case PhaseVerification:
		return PhaseVerification, true
	}
	return "", false
}

// Slug returns the lower case form used in URLs.
func (p PhaseType) Slug() string {
	return strings.ToLower(string(p))
}

// TaskStatus is the lifecycle state of an AnnotationTask.
type TaskStatus string

const (
	TaskCreated  TaskStatus = "CREATED"
	TaskFinished TaskStatus = "FINISHED"
)

// ResultType is derived from the nullity of the result bounds.
type ResultType string

const (
	ResultWeak  ResultType = "WEAK"
	ResultPoint ResultType = "POINT"
	ResultBox   ResultType = "BOX"
)
