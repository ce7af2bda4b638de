package annotation

import "github.com/Project-OSmOSE/osmose-app-sub000/internal/datastore/entities"

// CommentInput is a submitted comment.
type CommentInput struct {
	Comment string `json:"comment"`
}

// ResultInput is one submitted result. ID names a result of the caller on the
// same file and phase to update in place; without it a new result is created.
type ResultInput struct {
	ID                  *uint          `json:"id,omitempty"`
	Label               string         `json:"label"`
	ConfidenceIndicator *string        `json:"confidence_indicator"`
	StartTime           *float64       `json:"start_time"`
	EndTime             *float64       `json:"end_time"`
	StartFrequency      *float64       `json:"start_frequency"`
	EndFrequency        *float64       `json:"end_frequency"`
	IsUpdateOf          *uint          `json:"is_update_of"`
	Comments            []CommentInput `json:"comments"`
}

// ValidationInput is a verdict on an annotation phase result.
type ValidationInput struct {
	ResultID uint `json:"result"`
	IsValid  bool `json:"is_valid"`
}

// Submission is everything an annotator sends for one file. It replaces the
// caller's previous work on that file and phase.
type Submission struct {
	Results      []ResultInput     `json:"results"`
	TaskComments []CommentInput    `json:"task_comments"`
	Validations  []ValidationInput `json:"validations"`
}

// FileResults is the caller's view of one file in one phase.
type FileResults struct {
	Results      []entities.AnnotationResult  `json:"results"`
	TaskComments []entities.AnnotationComment `json:"task_comments"`
	// Reviewed holds the annotation phase results of the file when the
	// phase is a verification phase.
	Reviewed []entities.AnnotationResult `json:"reviewed,omitempty"`
	Status   entities.TaskStatus         `json:"status"`
}
