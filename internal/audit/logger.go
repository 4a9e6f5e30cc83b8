package audit

import (
	"encoding/json"
	"log/slog"
	"os"
	"sync"
	"time"
)

// Operation represents the type of auditable operation
type Operation string

const (
	OpToolCall       Operation = "tool.call"
	OpPromptSubmit   Operation = "prompt.submit"
	OpPromptCancel   Operation = "prompt.cancel"
	OpHistoryUndo    Operation = "history.undo"
	OpHistoryRedo    Operation = "history.redo"
	OpSceneExport    Operation = "scene.export"
	OpScheduleCreate Operation = "schedule.create"
	OpScheduleDelete Operation = "schedule.delete"
)

// Event represents an audit log entry
type Event struct {
	Timestamp  time.Time              `json:"timestamp"`
	Operation  Operation              `json:"operation"`
	Tool       string                 `json:"tool,omitempty"`
	SessionID  string                 `json:"session_id,omitempty"`
	ScheduleID string                 `json:"schedule_id,omitempty"`
	RequestID  string                 `json:"request_id,omitempty"`
	Success    bool                   `json:"success"`
	Error      string                 `json:"error,omitempty"`
	Details    map[string]interface{} `json:"details,omitempty"`
}

// Logger handles audit logging
type Logger struct {
	logger  *slog.Logger
	enabled bool
	mu      sync.RWMutex
}

var (
	defaultLogger *Logger
	once          sync.Once
)

// Default returns the default audit logger
func Default() *Logger {
	once.Do(func() {
		defaultLogger = New(true)
	})
	return defaultLogger
}

// New creates a new audit logger
func New(enabled bool) *Logger {
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})
	return &Logger{
		logger:  slog.New(handler),
		enabled: enabled,
	}
}

// SetEnabled enables or disables audit logging
func (l *Logger) SetEnabled(enabled bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.enabled = enabled
}

// Log records an audit event
func (l *Logger) Log(event *Event) {
	l.mu.RLock()
	enabled := l.enabled
	l.mu.RUnlock()

	if !enabled {
		return
	}

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	attrs := []any{
		slog.String("audit", "true"),
		slog.String("operation", string(event.Operation)),
		slog.Bool("success", event.Success),
	}

	if event.Tool != "" {
		attrs = append(attrs, slog.String("tool", event.Tool))
	}
	if event.SessionID != "" {
		attrs = append(attrs, slog.String("session_id", event.SessionID))
	}
	if event.ScheduleID != "" {
		attrs = append(attrs, slog.String("schedule_id", event.ScheduleID))
	}
	if event.RequestID != "" {
		attrs = append(attrs, slog.String("request_id", event.RequestID))
	}
	if event.Error != "" {
		attrs = append(attrs, slog.String("error", event.Error))
	}
	if event.Details != nil {
		detailsJSON, _ := json.Marshal(event.Details)
		attrs = append(attrs, slog.String("details", string(detailsJSON)))
	}

	l.logger.Info("AUDIT", attrs...)
}

// LogToolCall records one MCP tool invocation and whether it produced a
// user-facing error.
func (l *Logger) LogToolCall(tool string, success bool) {
	l.Log(&Event{Operation: OpToolCall, Tool: tool, Success: success})
}

// LogPrompt records a prompt submission
func (l *Logger) LogPrompt(sessionID string) {
	l.Log(&Event{Operation: OpPromptSubmit, SessionID: sessionID, Success: true})
}

// Convenience functions using default logger

func Log(event *Event) {
	Default().Log(event)
}

func LogToolCall(tool string, success bool) {
	Default().LogToolCall(tool, success)
}

func LogPrompt(sessionID string) {
	Default().LogPrompt(sessionID)
}
