package journal

import (
	"context"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/marmos91/stevedore/internal/logger"
)

// BeginRun opens a new run record and remembers its ID for subsequent
// writes. Call it once, before the preparation sequence starts. Returns
// the run ID, or "" when the journal is disabled or the write failed.
func (j *Journal) BeginRun(ctx context.Context) string {
	if j == nil {
		return ""
	}

	hostname, _ := os.Hostname()
	run := &Run{
		ID:        uuid.New().String(),
		StartedAt: time.Now(),
		Outcome:   OutcomeRunning,
		PID:       os.Getpid(),
		Hostname:  hostname,
	}

	if err := j.db.WithContext(ctx).Create(run).Error; err != nil {
		logger.Warn("Journal write failed", "table", run.TableName(), "error", err)
		return ""
	}

	j.runID = run.ID
	return run.ID
}

// RecordStep appends a preparation step outcome to the current run.
func (j *Journal) RecordStep(ctx context.Context, step string, duration time.Duration, stepErr error) {
	if j == nil || j.runID == "" {
		return
	}

	rec := &StepRecord{
		RunID:      j.runID,
		Step:       step,
		Outcome:    StepOutcomeOK,
		DurationMs: duration.Milliseconds(),
	}
	if stepErr != nil {
		rec.Outcome = StepOutcomeFailed
		rec.Error = stepErr.Error()
	}

	if err := j.db.WithContext(ctx).Create(rec).Error; err != nil {
		logger.Warn("Journal write failed", "table", rec.TableName(), "error", err)
	}
}

// MarkReady records that the worker pool came up and the run is serving.
// The run stays open until MarkStopped or MarkFailed.
func (j *Journal) MarkReady(ctx context.Context) {
	j.finishRun(ctx, map[string]any{
		"outcome": OutcomeReady,
	})
}

// MarkFailed closes the current run as failed. step and cause are
// recorded when set.
func (j *Journal) MarkFailed(ctx context.Context, step string, cause error) {
	updates := map[string]any{
		"outcome":     OutcomeFailed,
		"finished_at": time.Now(),
	}
	if step != "" {
		updates["failure_step"] = step
	}
	if cause != nil {
		updates["error"] = cause.Error()
	}
	j.finishRun(ctx, updates)
}

// MarkStopped closes the current run as gracefully shut down.
func (j *Journal) MarkStopped(ctx context.Context) {
	j.finishRun(ctx, map[string]any{
		"outcome":     OutcomeStopped,
		"finished_at": time.Now(),
	})
}

func (j *Journal) finishRun(ctx context.Context, updates map[string]any) {
	if j == nil || j.runID == "" {
		return
	}

	err := j.db.WithContext(ctx).
		Model(&Run{}).
		Where("id = ?", j.runID).
		Updates(updates).Error
	if err != nil {
		logger.Warn("Journal write failed", "table", Run{}.TableName(), "error", err)
	}
}

// WorkerStarted records a worker process launch.
func (j *Journal) WorkerStarted(ctx context.Context, workerID int) {
	j.recordWorkerEvent(ctx, workerID, EventStarted, "")
}

// WorkerExited records a worker exit with its reason.
func (j *Journal) WorkerExited(ctx context.Context, workerID int, reason string) {
	j.recordWorkerEvent(ctx, workerID, EventExited, reason)
}

// WorkerRestarted records a worker relaunch after a crash.
func (j *Journal) WorkerRestarted(ctx context.Context, workerID int) {
	j.recordWorkerEvent(ctx, workerID, EventRestarted, "")
}

func (j *Journal) recordWorkerEvent(ctx context.Context, workerID int, event, reason string) {
	if j == nil || j.runID == "" {
		return
	}

	rec := &WorkerEvent{
		RunID:    j.runID,
		WorkerID: workerID,
		Event:    event,
		Reason:   reason,
	}

	if err := j.db.WithContext(ctx).Create(rec).Error; err != nil {
		logger.Warn("Journal write failed", "table", rec.TableName(), "error", err)
	}
}

// RecentRuns returns the most recent runs, newest first.
func (j *Journal) RecentRuns(ctx context.Context, limit int) ([]Run, error) {
	if j == nil {
		return nil, nil
	}

	var runs []Run
	err := j.db.WithContext(ctx).
		Order("started_at DESC").
		Limit(limit).
		Find(&runs).Error
	if err != nil {
		return nil, err
	}
	return runs, nil
}
