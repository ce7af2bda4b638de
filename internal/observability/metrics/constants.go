// Package metrics provides the Prometheus collectors of the APLOSE backend.
package metrics

import "time"

// Namespace prefixes every metric name.
const Namespace = "aplose"

// Operation label values.
const (
	// OpReconcile represents file range reconciliation.
	OpReconcile = "reconcile"
	// OpSyncOrphans represents orphan task cleanup.
	OpSyncOrphans = "sync_orphans"
	// OpEnsureTasks represents task materialization for a range.
	OpEnsureTasks = "ensure_tasks"
	// OpMarkFinished represents finishing a task.
	OpMarkFinished = "mark_finished"
	// OpInvalidate represents resetting verification tasks.
	OpInvalidate = "invalidate_verification"
	// OpSubmitResults represents interactive result submission.
	OpSubmitResults = "submit_results"
	// OpImport represents detector result import.
	OpImport = "import"
	// OpReport represents result report generation.
	OpReport = "report"
	// OpReportStatus represents status report generation.
	OpReportStatus = "report_status"
	// OpProgress represents progress aggregation.
	OpProgress = "progress"
	// OpDatasetImport represents dataset bootstrap import.
	OpDatasetImport = "dataset_import"
)

// Status label values.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Action label values for entity changes.
const (
	ActionCreated     = "created"
	ActionUpdated     = "updated"
	ActionDeleted     = "deleted"
	ActionFinished    = "finished"
	ActionInvalidated = "invalidated"
	ActionImported    = "imported"
)

// Histogram bucket configuration constants.
const (
	// BucketStart1ms is the starting bucket for 1ms histograms.
	BucketStart1ms = 0.001
	// BucketStart64B is the starting bucket for 64 byte histograms.
	BucketStart64B = 64.0
	// BucketStart100B is the starting bucket for 100 byte histograms (100B to ~100MB range).
	BucketStart100B = 100.0

	BucketFactor2  = 2
	BucketFactor10 = 10

	BucketCount6  = 6
	BucketCount10 = 10
	BucketCount12 = 12
)

// ShutdownTimeout is the timeout for graceful shutdown operations.
const ShutdownTimeout = 5 * time.Second
