// Package protocol defines the wire types exchanged between the frontend
// surface and the backend dispatcher.
package protocol

// FrontendCommand is a command sent by a frontend to the backend.
// Type selects the variant; the remaining fields are variant payload.
type FrontendCommand struct {
	Type      string `json:"type"`
	Prompt    string `json:"prompt,omitempty"`
	SessionID string `json:"session_id,omitempty"`
	Model     string `json:"model,omitempty"`
	RequestID string `json:"request_id,omitempty"`
	Response  string `json:"response,omitempty"`
	TestName  string `json:"test_name,omitempty"`
}

// FrontendCommand types
const (
	CmdReady             = "ready"
	CmdSendPrompt        = "send_prompt"
	CmdCancelRequest     = "cancel_request"
	CmdUserInputResponse = "user_input_response"
	CmdRunTest           = "run_test"
	CmdPlayGame          = "play_game"
	CmdPauseGame         = "pause_game"
	CmdStopGame          = "stop_game"
)

// BackendEvent is an event sent by the backend to frontends.
type BackendEvent struct {
	Type         string        `json:"type"`
	Text         string        `json:"text,omitempty"`
	ToolName     string        `json:"tool_name,omitempty"`
	ToolID       string        `json:"tool_id,omitempty"`
	PartialJSON  string        `json:"partial_json,omitempty"`
	SessionID    string        `json:"session_id,omitempty"`
	TotalCostUSD *float64      `json:"total_cost_usd,omitempty"`
	NumTurns     int           `json:"num_turns,omitempty"`
	Message      string        `json:"message,omitempty"`
	Status       *AgentStatus  `json:"status,omitempty"`
	Title        string        `json:"title,omitempty"`
	Body         string        `json:"body,omitempty"`
	Content      string        `json:"content,omitempty"`
	Format       ContentFormat `json:"format,omitempty"`
	RequestID    string        `json:"request_id,omitempty"`
	Prompt       string        `json:"prompt,omitempty"`
	Options      []string      `json:"options,omitempty"`
	TestName     string        `json:"test_name,omitempty"`
	Success      bool          `json:"success,omitempty"`
	DurationMS   int64         `json:"duration_ms,omitempty"`
	HasGame      bool          `json:"has_game,omitempty"`
	PlayState    PlayState     `json:"play_state,omitempty"`
	EditorOpen   bool          `json:"editor_window_open,omitempty"`
}

// BackendEvent types
const (
	EvtConnected         = "connected"
	EvtStreamingStarted  = "streaming_started"
	EvtTextDelta         = "text_delta"
	EvtThinkingDelta     = "thinking_delta"
	EvtToolUseStarted    = "tool_use_started"
	EvtToolUseInputDelta = "tool_use_input_delta"
	EvtToolUseFinished   = "tool_use_finished"
	EvtTurnComplete      = "turn_complete"
	EvtRequestComplete   = "request_complete"
	EvtError             = "error"
	EvtStatusUpdate      = "status_update"
	EvtNotification      = "notification"
	EvtContentDisplay    = "content_display"
	EvtUserInputRequest  = "user_input_request"
	EvtTestResult        = "test_result"
	EvtGameStateChanged  = "game_state_changed"
)

// AgentStatus describes what the agent is currently doing.
type AgentStatus struct {
	State    string `json:"state"`
	ToolName string `json:"tool_name,omitempty"`
}

// AgentStatus states
const (
	StateIdle      = "idle"
	StateThinking  = "thinking"
	StateStreaming = "streaming"
	StateUsingTool = "using_tool"
)

func StatusIdle() AgentStatus      { return AgentStatus{State: StateIdle} }
func StatusThinking() AgentStatus  { return AgentStatus{State: StateThinking} }
func StatusStreaming() AgentStatus { return AgentStatus{State: StateStreaming} }
func StatusUsingTool(tool string) AgentStatus {
	return AgentStatus{State: StateUsingTool, ToolName: tool}
}

// ContentFormat selects how display_content payloads should be rendered.
type ContentFormat string

const (
	FormatMarkdown ContentFormat = "markdown"
	FormatCode     ContentFormat = "code"
	FormatText     ContentFormat = "text"
)

// ParseContentFormat maps a format string to a ContentFormat.
// Unrecognized values fall back to plain text.
func ParseContentFormat(s string) ContentFormat {
	switch s {
	case "markdown":
		return FormatMarkdown
	case "code":
		return FormatCode
	default:
		return FormatText
	}
}

// PlayState is the run state of a loaded game.
type PlayState string

const (
	PlayStopped PlayState = "stopped"
	PlayPlaying PlayState = "playing"
	PlayPaused  PlayState = "paused"
)

// StatusUpdate builds a status_update event.
func StatusUpdate(status AgentStatus) BackendEvent {
	return BackendEvent{Type: EvtStatusUpdate, Status: &status}
}
