package metrics

import (
	"time"
)

// PrepareMetrics provides observability for preparation steps.
//
// This interface is optional - pass nil to disable metrics collection with
// zero overhead.
type PrepareMetrics interface {
	// RecordStep records a completed preparation step.
	//
	// Parameters:
	//   - step: Step name (e.g., "assets", "migrate")
	//   - duration: Time taken to run the step
	//   - err: Step error, nil on success
	RecordStep(step string, duration time.Duration, err error)

	// RecordAssetsCollected records the outcome of an asset collection pass.
	//
	// Parameters:
	//   - files: Number of files copied into the output directory
	//   - bytes: Total bytes copied
	RecordAssetsCollected(files int, bytes int64)

	// RecordSchemaVersion records the schema version after a migration pass.
	//
	// Parameters:
	//   - version: Current schema version
	//   - dirty: True if a previous migration failed mid-flight
	RecordSchemaVersion(version uint, dirty bool)
}
