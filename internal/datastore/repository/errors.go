package repository

import (
	"gorm.io/gorm"

	"github.com/Project-OSmOSE/osmose-app-sub000/internal/errors"
)

// Sentinel errors for repository operations.
var (
	// ErrUserNotFound indicates the requested user does not exist.
	ErrUserNotFound = errors.NewStd("user not found")

	// ErrDatasetNotFound indicates the requested dataset does not exist.
	ErrDatasetNotFound = errors.NewStd("dataset not found")

	// ErrDatasetFileNotFound indicates the requested dataset file does not exist.
	ErrDatasetFileNotFound = errors.NewStd("dataset file not found")

	// ErrLabelSetNotFound indicates the requested label set does not exist.
	ErrLabelSetNotFound = errors.NewStd("label set not found")

	// ErrConfidenceSetNotFound indicates the requested confidence indicator set does not exist.
	ErrConfidenceSetNotFound = errors.NewStd("confidence indicator set not found")

	// ErrDetectorNotFound indicates the requested detector does not exist.
	ErrDetectorNotFound = errors.NewStd("detector not found")

	// ErrCampaignNotFound indicates the requested campaign does not exist.
	ErrCampaignNotFound = errors.NewStd("campaign not found")

	// ErrPhaseNotFound indicates the campaign has no phase of the requested type.
	ErrPhaseNotFound = errors.NewStd("phase not found")

	// ErrDuplicateKey indicates a unique constraint violation.
	ErrDuplicateKey = errors.NewStd("duplicate key")
)

// translate maps GORM errors onto the repository sentinels.
func translate(err, notFound error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return notFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return ErrDuplicateKey
	default:
		return err
	}
}
