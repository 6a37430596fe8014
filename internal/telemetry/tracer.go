package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Common attribute keys for startup and pool operations.
// These follow OpenTelemetry semantic conventions where applicable.
const (
	// Run attributes
	AttrRunID = "run.id"
	AttrPhase = "startup.phase"

	// Dependency probe attributes
	AttrTarget   = "dependency.target"
	AttrDBSystem = "db.system"

	// Preparation attributes
	AttrStep             = "prepare.step"
	AttrMigrationVersion = "migration.version"
	AttrMigrationDirty   = "migration.dirty"
	AttrAssetFiles       = "assets.files"
	AttrAssetBytes       = "assets.bytes"
	AttrAssetSource      = "assets.source"

	// Storage backend attributes (S3 asset sources)
	AttrBucket = "storage.bucket"
	AttrKey    = "storage.key"
	AttrRegion = "storage.region"

	// Worker pool attributes
	AttrWorkerID = "worker.id"
	AttrWorkers  = "pool.workers"
)

// Span names for operations.
// Format: <component>.<operation>
const (
	// Startup phases, in execution order
	SpanStartup = "startup"
	SpanProbe   = "startup.probe"
	SpanPrepare = "startup.prepare"

	// Individual preparation steps
	SpanCollect = "prepare.collect"
	SpanMigrate = "prepare.migrate"

	// Pool lifecycle
	SpanServe = "pool.serve"
	SpanDrain = "pool.drain"
)

// RunID returns an attribute for the journal run identifier
func RunID(id string) attribute.KeyValue {
	return attribute.String(AttrRunID, id)
}

// Phase returns an attribute for the startup phase name
func Phase(phase string) attribute.KeyValue {
	return attribute.String(AttrPhase, phase)
}

// Target returns an attribute for the probed dependency target.
// Callers must pass the redacted form, never credentials.
func Target(target string) attribute.KeyValue {
	return attribute.String(AttrTarget, target)
}

// DBSystem returns an attribute for the database driver in use
func DBSystem(system string) attribute.KeyValue {
	return attribute.String(AttrDBSystem, system)
}

// Step returns an attribute for a preparation step name
func Step(name string) attribute.KeyValue {
	return attribute.String(AttrStep, name)
}

// MigrationVersion returns an attribute for the applied schema version
func MigrationVersion(version uint) attribute.KeyValue {
	return attribute.Int64(AttrMigrationVersion, int64(version))
}

// MigrationDirty returns an attribute for the schema dirty flag
func MigrationDirty(dirty bool) attribute.KeyValue {
	return attribute.Bool(AttrMigrationDirty, dirty)
}

// AssetFiles returns an attribute for the number of collected assets
func AssetFiles(n int) attribute.KeyValue {
	return attribute.Int(AttrAssetFiles, n)
}

// AssetBytes returns an attribute for the collected asset volume
func AssetBytes(n int64) attribute.KeyValue {
	return attribute.Int64(AttrAssetBytes, n)
}

// AssetSource returns an attribute for an asset source directory or bucket
func AssetSource(source string) attribute.KeyValue {
	return attribute.String(AttrAssetSource, source)
}

// Bucket returns an attribute for an S3 bucket name
func Bucket(name string) attribute.KeyValue {
	return attribute.String(AttrBucket, name)
}

// StorageKey returns an attribute for an S3 object key
func StorageKey(key string) attribute.KeyValue {
	return attribute.String(AttrKey, key)
}

// Region returns an attribute for a cloud region
func Region(region string) attribute.KeyValue {
	return attribute.String(AttrRegion, region)
}

// WorkerID returns an attribute for a worker slot
func WorkerID(id int) attribute.KeyValue {
	return attribute.Int(AttrWorkerID, id)
}

// Workers returns an attribute for the configured worker count
func Workers(n int) attribute.KeyValue {
	return attribute.Int(AttrWorkers, n)
}

// StartPhaseSpan starts a span for a startup phase.
// This is a convenience function that sets the phase attribute.
func StartPhaseSpan(ctx context.Context, phase string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	allAttrs := []attribute.KeyValue{
		Phase(phase),
	}
	allAttrs = append(allAttrs, attrs...)

	return StartSpan(ctx, "startup."+phase, trace.WithAttributes(allAttrs...))
}

// StartStepSpan starts a span for a preparation step.
func StartStepSpan(ctx context.Context, step string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	allAttrs := []attribute.KeyValue{
		Step(step),
	}
	allAttrs = append(allAttrs, attrs...)

	return StartSpan(ctx, "prepare."+step, trace.WithAttributes(allAttrs...))
}
