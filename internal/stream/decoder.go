// Package stream decodes the line-delimited JSON emitted by the claude CLI
// in stream-json mode into typed events.
package stream

import (
	"bytes"
	"encoding/json"
)

// EventType identifies a decoded CLI event.
type EventType string

const (
	EventSessionStarted    EventType = "session_started"
	EventTextDelta         EventType = "text_delta"
	EventThinkingDelta     EventType = "thinking_delta"
	EventToolUseStarted    EventType = "tool_use_started"
	EventToolUseInputDelta EventType = "tool_use_input_delta"
	EventToolUseFinished   EventType = "tool_use_finished"
	EventTurnComplete      EventType = "turn_complete"
	EventComplete          EventType = "complete"
	EventError             EventType = "error"
)

// Event is one decoded CLI event.
type Event struct {
	Type         EventType
	SessionID    string
	Text         string
	ToolName     string
	ToolID       string
	PartialJSON  string
	TotalCostUSD *float64
	NumTurns     int
	Message      string
}

// Decoder maps CLI stdout lines to events. It carries the session ID and the
// ID of the tool block currently being streamed, since delta and stop lines
// do not repeat them.
type Decoder struct {
	sessionID     string
	currentToolID string
}

// SessionID returns the session ID seen on the most recent system or result
// line, or the empty string if none has been seen.
func (d *Decoder) SessionID() string {
	return d.sessionID
}

// envelope covers every line shape the CLI emits that we care about.
// Unknown fields are ignored.
type envelope struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id"`
	Event     *struct {
		Type         string `json:"type"`
		ContentBlock *struct {
			Type string `json:"type"`
			ID   string `json:"id"`
			Name string `json:"name"`
		} `json:"content_block"`
		Delta *struct {
			Type        string `json:"type"`
			Text        string `json:"text"`
			Thinking    string `json:"thinking"`
			PartialJSON string `json:"partial_json"`
		} `json:"delta"`
	} `json:"event"`
	TotalCostUSD *float64 `json:"total_cost_usd"`
	NumTurns     *int     `json:"num_turns"`
}

// DecodeLine decodes one stdout line into zero or more events. Blank and
// malformed lines produce no events and leave carried state untouched.
func (d *Decoder) DecodeLine(line []byte) []Event {
	line = bytes.TrimSpace(line)
	if len(line) == 0 {
		return nil
	}

	var env envelope
	if err := json.Unmarshal(line, &env); err != nil {
		return nil
	}

	switch env.Type {
	case "system":
		// Only the init line carries a session_id; other system lines
		// (status updates and the like) announce nothing.
		if env.SessionID == "" {
			return nil
		}
		d.sessionID = env.SessionID
		return []Event{{Type: EventSessionStarted, SessionID: d.sessionID}}

	case "stream_event":
		if env.Event == nil {
			return nil
		}
		return d.decodeStreamEvent(env)

	case "result":
		if env.SessionID != "" {
			d.sessionID = env.SessionID
		}
		ev := Event{Type: EventComplete, SessionID: d.sessionID, TotalCostUSD: env.TotalCostUSD}
		if env.NumTurns != nil {
			ev.NumTurns = *env.NumTurns
		}
		return []Event{ev}
	}

	return nil
}

func (d *Decoder) decodeStreamEvent(env envelope) []Event {
	inner := env.Event
	switch inner.Type {
	case "content_block_start":
		if inner.ContentBlock != nil && inner.ContentBlock.Type == "tool_use" {
			d.currentToolID = inner.ContentBlock.ID
			return []Event{{
				Type:     EventToolUseStarted,
				ToolName: inner.ContentBlock.Name,
				ToolID:   inner.ContentBlock.ID,
			}}
		}
		return nil

	case "content_block_delta":
		if inner.Delta == nil {
			return nil
		}
		switch inner.Delta.Type {
		case "text_delta":
			return []Event{{Type: EventTextDelta, Text: inner.Delta.Text}}
		case "thinking_delta":
			return []Event{{Type: EventThinkingDelta, Text: inner.Delta.Thinking}}
		case "input_json_delta":
			return []Event{{
				Type:        EventToolUseInputDelta,
				ToolID:      d.currentToolID,
				PartialJSON: inner.Delta.PartialJSON,
			}}
		}
		return nil

	case "content_block_stop":
		id := d.currentToolID
		d.currentToolID = ""
		return []Event{{Type: EventToolUseFinished, ToolID: id}}

	case "message_stop":
		return []Event{{Type: EventTurnComplete, SessionID: d.sessionID}}
	}

	return nil
}
