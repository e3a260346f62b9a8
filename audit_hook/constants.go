package audithook

// Action constants for audit events.
const (
	// Counter actions
	ActionStatsIncremented = "stats.incremented"

	// Metadata actions
	ActionMetadataSet         = "metadata.set"
	ActionMetadataCleared     = "metadata.cleared"
	ActionMetadataWriteFailed = "metadata.write_failed"
	ActionMetadataReadFailed  = "metadata.read_failed"

	// Transaction guard actions
	ActionReadOnlySkipped   = "txn.read_only_skipped"
	ActionGuardUndetermined = "txn.guard_undetermined"
)

// Resource constants for audit events.
const (
	ResourceStats       = "stats"
	ResourceMetadata    = "metadata"
	ResourceTransaction = "transaction"
)

// Category constants for audit events.
const (
	CategoryUsage       = "usage"
	CategoryConnector   = "connector"
	CategoryConsistency = "consistency"
)

// Severity levels for audit events.
const (
	SeverityInfo    = "info"
	SeverityWarning = "warning"
	SeverityError   = "error"
)

// Outcome values for audit events.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomeSkipped = "skipped"
)
