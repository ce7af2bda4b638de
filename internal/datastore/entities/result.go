package entities

import "time"

// AnnotationResult is an annotation on one file. Exactly one of AnnotatorID
// and DetectorConfigurationID is set. Bounds are offsets in seconds from the
// file start and frequencies in Hz.
type AnnotationResult struct {
	ID                      uint  `gorm:"primaryKey"`
	PhaseID                 uint  `gorm:"not null;index:idx_result_phase_file"`
	DatasetFileID           uint  `gorm:"not null;index:idx_result_phase_file"`
	LabelID                 uint  `gorm:"not null;index"`
	ConfidenceIndicatorID   *uint `gorm:"index"`
	AnnotatorID             *uint `gorm:"index"`
	DetectorConfigurationID *uint `gorm:"index"`
	StartTime               *float64
	EndTime                 *float64
	StartFrequency          *float64
	EndFrequency            *float64
	Type                    ResultType `gorm:"type:varchar(5);not null"`
	IsUpdateOfID            *uint      `gorm:"index"`
	CreatedAt               time.Time  `gorm:"autoCreateTime"`

	// Relationships
	DatasetFile           *DatasetFile                 `gorm:"foreignKey:DatasetFileID"`
	Label                 *Label                       `gorm:"foreignKey:LabelID"`
	ConfidenceIndicator   *ConfidenceIndicator         `gorm:"foreignKey:ConfidenceIndicatorID"`
	Annotator             *User                        `gorm:"foreignKey:AnnotatorID"`
	DetectorConfiguration *DetectorConfiguration       `gorm:"foreignKey:DetectorConfigurationID"`
	Comments              []AnnotationComment          `gorm:"foreignKey:AnnotationResultID"`
	Validations           []AnnotationResultValidation `gorm:"foreignKey:ResultID"`
}

// TableName returns the table name for GORM.
func (AnnotationResult) TableName() string {
	return "annotation_results"
}

// InferResultType derives the result type from the time bounds: a missing
// end time means POINT when the start time is set and WEAK otherwise.
func InferResultType(startTime, endTime *float64) ResultType {
	switch {
	case endTime != nil:
		return ResultBox
	case startTime != nil:
		return ResultPoint
	default:
		return ResultWeak
	}
}

// DeriveType sets Type from the current bounds.
func (r *AnnotationResult) DeriveType() {
	r.Type = InferResultType(r.StartTime, r.EndTime)
}

// AnnotationComment is a free text comment on a result, or on the task of
// (phase, file, author) when AnnotationResultID is null.
type AnnotationComment struct {
	ID                 uint      `gorm:"primaryKey"`
	Comment            string    `gorm:"type:text;not null"`
	PhaseID            uint      `gorm:"not null;index:idx_comment_phase_file"`
	DatasetFileID      uint      `gorm:"not null;index:idx_comment_phase_file"`
	AuthorID           uint      `gorm:"not null;index"`
	AnnotationResultID *uint     `gorm:"index"`
	CreatedAt          time.Time `gorm:"autoCreateTime"`

	// Relationships
	Author *User `gorm:"foreignKey:AuthorID"`
}

// TableName returns the table name for GORM.
func (AnnotationComment) TableName() string {
	return "annotation_comments"
}

// AnnotationResultValidation records whether an annotator agrees with a result
// during the verification phase.
type AnnotationResultValidation struct {
	ID          uint `gorm:"primaryKey"`
	ResultID    uint `gorm:"not null;uniqueIndex:idx_validation_identity"`
	AnnotatorID uint `gorm:"not null;uniqueIndex:idx_validation_identity"`
	PhaseID     uint `gorm:"not null;index"`
	IsValid     bool `gorm:"not null"`

	// Relationships
	Annotator *User `gorm:"foreignKey:AnnotatorID"`
}

// TableName returns the table name for GORM.
func (AnnotationResultValidation) TableName() string {
	return "annotation_result_validations"
}
