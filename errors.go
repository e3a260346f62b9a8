package fdwledger

import (
	"errors"

	"github.com/xraph/fdwledger/catalog"
	"github.com/xraph/fdwledger/stats"
)

// Sentinel errors for common failure scenarios.
var (
	// Deployment errors: the ledger table cannot be located.
	ErrExtensionNotInstalled = catalog.ErrExtensionNotInstalled
	ErrStatsTableMissing     = catalog.ErrStatsTableMissing

	// Caller errors
	ErrInvalidName     = errors.New("fdwledger: connector name must not be empty")
	ErrUnknownMetric   = stats.ErrUnknownMetric
	ErrInvalidDocument = errors.New("fdwledger: metadata is not a valid JSON document")

	// Counter write errors
	ErrStatsWrite = errors.New("fdwledger: stats write failed")

	// Lookup errors
	ErrNotFound = errors.New("fdwledger: not found")

	// Store errors
	ErrStoreClosed     = errors.New("fdwledger: store is closed")
	ErrMigrationFailed = errors.New("fdwledger: migration failed")
)

// IsDeploymentError returns true if the error means the owning extension or
// the stats table is missing. These errors are not recoverable at runtime.
func IsDeploymentError(err error) bool {
	return catalog.IsDeploymentError(err)
}

// IsNotFound returns true if the error is a not found error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsFatal returns true if the error must abort the caller's operation:
// deployment errors and failed counter writes.
func IsFatal(err error) bool {
	return IsDeploymentError(err) || errors.Is(err, ErrStatsWrite)
}
