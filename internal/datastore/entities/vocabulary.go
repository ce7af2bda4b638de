package entities

// Label is an annotation label name.
type Label struct {
	ID   uint   `gorm:"primaryKey"`
	Name string `gorm:"size:255;not null;uniqueIndex"`
}

// TableName returns the table name for GORM.
func (Label) TableName() string {
	return "labels"
}

// LabelSet groups the labels a campaign may use.
type LabelSet struct {
	ID          uint    `gorm:"primaryKey"`
	Name        string  `gorm:"size:255;not null;uniqueIndex"`
	Description string  `gorm:"type:text"`
	Labels      []Label `gorm:"many2many:label_set_labels"`
}

// TableName returns the table name for GORM.
func (LabelSet) TableName() string {
	return "label_sets"
}

// HasLabel reports whether the loaded Labels contain labelID.
func (s *LabelSet) HasLabel(labelID uint) bool {
	for i := range s.Labels {
		if s.Labels[i].ID == labelID {
			return true
		}
	}
	return false
}

// ConfidenceIndicatorSet groups ordered confidence levels.
type ConfidenceIndicatorSet struct {
	ID          uint                  `gorm:"primaryKey"`
	Name        string                `gorm:"size:255;not null;uniqueIndex"`
	Description string                `gorm:"type:text"`
	Indicators  []ConfidenceIndicator `gorm:"foreignKey:SetID;constraint:OnDelete:CASCADE"`
}

// TableName returns the table name for GORM.
func (ConfidenceIndicatorSet) TableName() string {
	return "confidence_indicator_sets"
}

// MaxLevel returns the highest level of the loaded indicators.
func (s *ConfidenceIndicatorSet) MaxLevel() int {
	maxLevel := 0
	for i := range s.Indicators {
		maxLevel = max(maxLevel, s.Indicators[i].Level)
	}
	return maxLevel
}

// ConfidenceIndicator is one level of a ConfidenceIndicatorSet.
type ConfidenceIndicator struct {
	ID        uint   `gorm:"primaryKey"`
	SetID     uint   `gorm:"not null;uniqueIndex:idx_confidence_set_label;uniqueIndex:idx_confidence_set_level"`
	Label     string `gorm:"size:255;not null;uniqueIndex:idx_confidence_set_label"`
	Level     int    `gorm:"not null;uniqueIndex:idx_confidence_set_level"`
	IsDefault bool   `gorm:"not null;default:false"`

	// Relationships
	Set *ConfidenceIndicatorSet `gorm:"foreignKey:SetID"`
}

// TableName returns the table name for GORM.
func (ConfidenceIndicator) TableName() string {
	return "confidence_indicators"
}

// Detector is an automated annotator whose results are imported.
type Detector struct {
	ID             uint                    `gorm:"primaryKey"`
	Name           string                  `gorm:"size:255;not null;uniqueIndex"`
	Configurations []DetectorConfiguration `gorm:"foreignKey:DetectorID;constraint:OnDelete:CASCADE"`
}

// TableName returns the table name for GORM.
func (Detector) TableName() string {
	return "detectors"
}

// DetectorConfiguration is one parameter set of a detector.
// Uniqueness of (detector, configuration) is enforced by the repository
// because configurations are free text.
type DetectorConfiguration struct {
	ID            uint   `gorm:"primaryKey"`
	DetectorID    uint   `gorm:"not null;index"`
	Configuration string `gorm:"type:text;not null"`

	// Relationships
	Detector *Detector `gorm:"foreignKey:DetectorID"`
}

// TableName returns the table name for GORM.
func (DetectorConfiguration) TableName() string {
	return "detector_configurations"
}
