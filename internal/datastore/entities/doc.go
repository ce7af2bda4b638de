// Package entities defines the GORM entity models of the annotation database.
//
// # Accounts
//
//   - User: annotators, campaign owners and staff
//
// # Datasets
//
//   - Dataset: a named folder of audio files
//   - AudioMetadata: sample rate and duration shared by the files of a dataset
//   - DatasetFile: one audio file with its absolute [start, end) timeline
//   - SpectrogramConfiguration: spectrogram rendering parameters of a dataset
//
// # Vocabularies
//
//   - Label, LabelSet: annotation labels (many-to-many)
//   - ConfidenceIndicatorSet, ConfidenceIndicator: ordered confidence levels
//   - Detector, DetectorConfiguration: automated annotators used by result import
//
// # Campaigns
//
//   - AnnotationCampaign: the unit of collaborative annotation
//   - Archive: one-way read-only marker of a campaign
//   - AnnotationCampaignPhase: ANNOTATION or VERIFICATION stage of a campaign
//   - AnnotationFileRange: contiguous slice of the campaign files assigned to an annotator
//   - AnnotationTask: per (phase, annotator, file) unit of work derived from the ranges
//
// # Results
//
//   - AnnotationResult: weak, point or box annotation
//   - AnnotationComment: comment on a result, or on a task when the result is null
//   - AnnotationResultValidation: verification verdict of an annotator on a result
//
// Ranges carry no database uniqueness constraint. The reconciliation engine
// guarantees that ranges of one annotator and phase never overlap or touch.
package entities
