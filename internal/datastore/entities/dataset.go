package entities

import "time"

// Dataset is a folder of audio files sharing one AudioMetadata.
type Dataset struct {
	ID        uint      `gorm:"primaryKey"`
	Name      string    `gorm:"size:255;not null;uniqueIndex"`
	Path      string    `gorm:"size:512;not null"`
	FileType  string    `gorm:"size:10"`
	OwnerID   *uint     `gorm:"index"`
	CreatedAt time.Time `gorm:"autoCreateTime"`

	// Relationships
	Owner                     *User                      `gorm:"foreignKey:OwnerID"`
	AudioMetadata             *AudioMetadata             `gorm:"foreignKey:DatasetID;constraint:OnDelete:CASCADE"`
	SpectrogramConfigurations []SpectrogramConfiguration `gorm:"foreignKey:DatasetID;constraint:OnDelete:CASCADE"`
}

// TableName returns the table name for GORM.
func (Dataset) TableName() string {
	return "datasets"
}

// Nyquist returns half the sample rate, the highest representable frequency.
// It is 0 when the audio metadata is not loaded.
func (d *Dataset) Nyquist() float64 {
	if d == nil || d.AudioMetadata == nil {
		return 0
	}
	return d.AudioMetadata.SampleRate / 2
}

// AudioMetadata describes the audio files of a dataset.
type AudioMetadata struct {
	ID           uint    `gorm:"primaryKey"`
	DatasetID    uint    `gorm:"not null;uniqueIndex"`
	SampleRate   float64 `gorm:"not null"`
	SampleBits   int
	ChannelCount int
	FileDuration float64    // seconds
	Start        *time.Time `gorm:"column:start_datetime"`
	End          *time.Time `gorm:"column:end_datetime"`
}

// TableName returns the table name for GORM.
func (AudioMetadata) TableName() string {
	return "audio_metadata"
}

// SpectrogramConfiguration describes how the spectrograms of a dataset were computed.
type SpectrogramConfiguration struct {
	ID                  uint   `gorm:"primaryKey"`
	DatasetID           uint   `gorm:"not null;uniqueIndex:idx_spectro_identity"`
	Name                string `gorm:"size:255;not null;uniqueIndex:idx_spectro_identity"`
	NFFT                int
	WindowSize          int
	Overlap             float64
	ZoomLevel           int
	Colormap            string `gorm:"size:50"`
	FrequencyResolution float64
	TemporalResolution  float64
}

// TableName returns the table name for GORM.
func (SpectrogramConfiguration) TableName() string {
	return "spectrogram_configurations"
}

// DatasetFile is one audio file of a dataset with its absolute timeline.
// Files are ordered by (Start, ID).
type DatasetFile struct {
	ID        uint      `gorm:"primaryKey"`
	DatasetID uint      `gorm:"not null;uniqueIndex:idx_dataset_file_identity"`
	Filename  string    `gorm:"size:255;not null;uniqueIndex:idx_dataset_file_identity"`
	Filepath  string    `gorm:"size:512;not null"`
	Start     time.Time `gorm:"column:start_datetime;not null;index"`
	End       time.Time `gorm:"column:end_datetime;not null"`
	Size      int64

	// Relationships
	Dataset *Dataset `gorm:"foreignKey:DatasetID;constraint:OnDelete:CASCADE"`
}

// TableName returns the table name for GORM.
func (DatasetFile) TableName() string {
	return "dataset_files"
}

// Duration returns the file length in seconds.
func (f *DatasetFile) Duration() float64 {
	return f.End.Sub(f.Start).Seconds()
}
