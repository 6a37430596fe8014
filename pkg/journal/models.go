package journal

import "time"

// Run outcomes.
const (
	// OutcomeRunning marks a run that has not reached readiness yet.
	OutcomeRunning = "running"

	// OutcomeReady marks a run whose worker pool came up and is serving.
	OutcomeReady = "ready"

	// OutcomeFailed marks a run aborted before or during serving.
	OutcomeFailed = "failed"

	// OutcomeStopped marks a run that shut down gracefully.
	OutcomeStopped = "stopped"
)

// Step outcomes.
const (
	StepOutcomeOK     = "ok"
	StepOutcomeFailed = "failed"
)

// Worker lifecycle events.
const (
	EventStarted   = "started"
	EventExited    = "exited"
	EventRestarted = "restarted"
)

// Run records one startup sequence from launch to exit.
type Run struct {
	ID          string     `gorm:"primaryKey;size:36" json:"id"`
	StartedAt   time.Time  `json:"started_at"`
	FinishedAt  *time.Time `json:"finished_at,omitempty"`
	Outcome     string     `gorm:"index;size:20" json:"outcome"`
	FailureStep string     `gorm:"size:50" json:"failure_step,omitempty"`
	Error       string     `gorm:"type:text" json:"error,omitempty"`
	PID         int        `json:"pid"`
	Hostname    string     `gorm:"size:255" json:"hostname"`
}

// TableName returns the table name for Run.
func (Run) TableName() string {
	return "runs"
}

// StepRecord records one preparation step execution within a run.
type StepRecord struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	RunID      string    `gorm:"index;size:36" json:"run_id"`
	Step       string    `gorm:"size:50" json:"step"`
	Outcome    string    `gorm:"size:20" json:"outcome"`
	Error      string    `gorm:"type:text" json:"error,omitempty"`
	DurationMs int64     `json:"duration_ms"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// TableName returns the table name for StepRecord.
func (StepRecord) TableName() string {
	return "steps"
}

// WorkerEvent records a worker lifecycle transition within a run.
type WorkerEvent struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	RunID     string    `gorm:"index;size:36" json:"run_id"`
	WorkerID  int       `json:"worker_id"`
	Event     string    `gorm:"size:20" json:"event"`
	Reason    string    `gorm:"size:50" json:"reason,omitempty"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// TableName returns the table name for WorkerEvent.
func (WorkerEvent) TableName() string {
	return "worker_events"
}

// allModels returns all GORM models for auto-migration.
func allModels() []any {
	return []any{
		&Run{},
		&StepRecord{},
		&WorkerEvent{},
	}
}
