package schedule

import (
	"time"
)

// OverlapBehavior defines what to do if a previous run is still active
type OverlapBehavior string

const (
	OverlapSkip     OverlapBehavior = "skip"     // Don't start if previous still running
	OverlapQueue    OverlapBehavior = "queue"    // Queue for later (MVP: skip with warning)
	OverlapParallel OverlapBehavior = "parallel" // Allow concurrent execution
)

// Schedule represents a prompt sent to the agent on a cron schedule
type Schedule struct {
	ID              string          `json:"id"`
	Name            string          `json:"name"`
	CronExpr        string          `json:"cron_expr"` // Standard 5-field cron expression
	Prompt          string          `json:"prompt"`    // Message to send to agent
	Model           string          `json:"model,omitempty"`
	SessionID       string          `json:"session_id,omitempty"` // Pinned session to resume
	Enabled         bool            `json:"enabled"`              // Can be paused/resumed
	OverlapBehavior OverlapBehavior `json:"overlap_behavior"`     // What to do if previous run active
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
	LastRunAt       *time.Time      `json:"last_run_at,omitempty"`
	NextRunAt       *time.Time      `json:"next_run_at,omitempty"`
}

// ExecutionStatus represents the outcome of a schedule execution
type ExecutionStatus string

const (
	ExecutionSuccess ExecutionStatus = "success"
	ExecutionFailed  ExecutionStatus = "failed"
	ExecutionSkipped ExecutionStatus = "skipped"
)

// Execution represents a single execution of a scheduled prompt
type Execution struct {
	ID         string          `json:"id"`
	ScheduleID string          `json:"schedule_id"`
	SessionID  string          `json:"session_id,omitempty"`
	ExecutedAt time.Time       `json:"executed_at"`
	Status     ExecutionStatus `json:"status"`
	Error      string          `json:"error,omitempty"`
	DurationMs int64           `json:"duration_ms,omitempty"`
}

// ScheduleUpdate contains optional fields for updating a schedule
type ScheduleUpdate struct {
	Name            *string          `json:"name,omitempty"`
	CronExpr        *string          `json:"cron_expr,omitempty"`
	Prompt          *string          `json:"prompt,omitempty"`
	Model           *string          `json:"model,omitempty"`
	Enabled         *bool            `json:"enabled,omitempty"`
	OverlapBehavior *OverlapBehavior `json:"overlap_behavior,omitempty"`
}

// ListFilter contains optional filters for listing schedules
type ListFilter struct {
	Enabled *bool // Filter by enabled status
}

// IsValidOverlapBehavior checks if the overlap behavior is valid
func IsValidOverlapBehavior(b OverlapBehavior) bool {
	return b == OverlapSkip || b == OverlapQueue || b == OverlapParallel
}
