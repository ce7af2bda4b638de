package entities

import "time"

// AnnotationCampaign is a collaborative annotation effort over one or more datasets.
type AnnotationCampaign struct {
	ID                       uint            `gorm:"primaryKey"`
	Name                     string          `gorm:"size:255;not null;uniqueIndex"`
	Description              string          `gorm:"type:text"`
	InstructionsURL          string          `gorm:"size:512"`
	Deadline                 *time.Time      `gorm:"index"`
	OwnerID                  uint            `gorm:"not null;index"`
	LabelSetID               uint            `gorm:"not null;index"`
	ConfidenceIndicatorSetID *uint           `gorm:"index"`
	AnnotationScope          AnnotationScope `gorm:"type:varchar(10);not null;default:'RECTANGLE'"`
	AllowPointAnnotation     bool            `gorm:"not null;default:false"`
	ArchiveID                *uint           `gorm:"uniqueIndex"`
	CreatedAt                time.Time       `gorm:"autoCreateTime"`

	// Relationships
	Owner                     *User                      `gorm:"foreignKey:OwnerID"`
	LabelSet                  *LabelSet                  `gorm:"foreignKey:LabelSetID"`
	ConfidenceIndicatorSet    *ConfidenceIndicatorSet    `gorm:"foreignKey:ConfidenceIndicatorSetID"`
	Archive                   *Archive                   `gorm:"foreignKey:ArchiveID"`
	Datasets                  []Dataset                  `gorm:"many2many:annotation_campaign_datasets"`
	SpectrogramConfigurations []SpectrogramConfiguration `gorm:"many2many:annotation_campaign_spectrogram_configurations"`
	Phases                    []AnnotationCampaignPhase  `gorm:"foreignKey:CampaignID"`
}

// TableName returns the table name for GORM.
func (AnnotationCampaign) TableName() string {
	return "annotation_campaigns"
}

// IsArchived reports whether the campaign is read-only.
func (c *AnnotationCampaign) IsArchived() bool {
	return c.ArchiveID != nil
}

// Archive records when and by whom a campaign was archived.
type Archive struct {
	ID       uint      `gorm:"primaryKey"`
	Date     time.Time `gorm:"not null"`
	ByUserID *uint     `gorm:"index"`

	// Relationships
	ByUser *User `gorm:"foreignKey:ByUserID"`
}

// TableName returns the table name for GORM.
func (Archive) TableName() string {
	return "archives"
}

// AnnotationCampaignPhase is one stage of a campaign. A phase is open while EndedAt is null.
type AnnotationCampaignPhase struct {
	ID          uint      `gorm:"primaryKey"`
	CampaignID  uint      `gorm:"not null;uniqueIndex:idx_campaign_phase"`
	Phase       PhaseType `gorm:"type:varchar(20);not null;uniqueIndex:idx_campaign_phase"`
	CreatedAt   time.Time `gorm:"autoCreateTime"`
	CreatedByID uint      `gorm:"not null"`
	EndedAt     *time.Time
	EndedByID   *uint

	// Relationships
	Campaign  *AnnotationCampaign `gorm:"foreignKey:CampaignID"`
	CreatedBy *User               `gorm:"foreignKey:CreatedByID"`
	EndedBy   *User               `gorm:"foreignKey:EndedByID"`
}

// TableName returns the table name for GORM.
func (AnnotationCampaignPhase) TableName() string {
	return "annotation_campaign_phases"
}

// IsOpen reports whether the phase still accepts work.
func (p *AnnotationCampaignPhase) IsOpen() bool {
	return p.EndedAt == nil
}

// AnnotationFileRange assigns the inclusive slice [FirstFileIndex, LastFileIndex]
// of the campaign's sorted file list to an annotator for one phase.
// FromDatetime, ToDatetime and FilesCount are recomputed on every save.
type AnnotationFileRange struct {
	ID             uint      `gorm:"primaryKey"`
	PhaseID        uint      `gorm:"not null;index:idx_range_phase_annotator"`
	AnnotatorID    uint      `gorm:"not null;index:idx_range_phase_annotator"`
	FirstFileIndex int       `gorm:"not null"`
	LastFileIndex  int       `gorm:"not null"`
	FromDatetime   time.Time `gorm:"not null"`
	ToDatetime     time.Time `gorm:"not null"`
	FilesCount     int       `gorm:"not null"`

	// Relationships
	Annotator *User `gorm:"foreignKey:AnnotatorID"`
}

// TableName returns the table name for GORM.
func (AnnotationFileRange) TableName() string {
	return "annotation_file_ranges"
}

// Covers reports whether the range timeline contains the whole file.
func (r *AnnotationFileRange) Covers(f *DatasetFile) bool {
	return !r.FromDatetime.After(f.Start) && !f.End.After(r.ToDatetime)
}

// AnnotationTask is the unit of work for one annotator on one file in one phase.
type AnnotationTask struct {
	ID            uint       `gorm:"primaryKey"`
	PhaseID       uint       `gorm:"not null;uniqueIndex:idx_task_identity"`
	AnnotatorID   uint       `gorm:"not null;uniqueIndex:idx_task_identity;index"`
	DatasetFileID uint       `gorm:"not null;uniqueIndex:idx_task_identity;index"`
	Status        TaskStatus `gorm:"type:varchar(10);not null;default:'CREATED';index"`

	// Relationships
	DatasetFile *DatasetFile `gorm:"foreignKey:DatasetFileID"`
	Annotator   *User        `gorm:"foreignKey:AnnotatorID"`
}

// TableName returns the table name for GORM.
func (AnnotationTask) TableName() string {
	return "annotation_tasks"
}
