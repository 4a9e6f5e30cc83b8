package mcp

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/matthewjberger/summoner/internal/bridge"
	"github.com/matthewjberger/summoner/internal/frontend"
	"github.com/matthewjberger/summoner/internal/protocol"
	mcp_sdk "github.com/modelcontextprotocol/go-sdk/mcp"
)

// fakeFrontend implements Frontend for testing
type fakeFrontend struct {
	submitted []protocol.FrontendCommand
	submitErr error
	events    []*frontend.BufferedEvent
	nextIndex int
	eventsErr error
	dropped   int64
}

func (f *fakeFrontend) SubmitCommand(cmd protocol.FrontendCommand) error {
	if f.submitErr != nil {
		return f.submitErr
	}
	f.submitted = append(f.submitted, cmd)
	return nil
}

func (f *fakeFrontend) EventsAfter(after int) ([]*frontend.BufferedEvent, int, error) {
	if f.eventsErr != nil {
		return nil, 0, f.eventsErr
	}
	return f.events, f.nextIndex, nil
}

func (f *fakeFrontend) DroppedEvents() int64 { return f.dropped }

func TestNewServer_RegistersAllTools(t *testing.T) {
	s := NewServer(bridge.New(), &fakeFrontend{}, nil)

	tools := s.GetRegistry().GetAllTools()
	if len(tools) != 26 {
		t.Fatalf("expected 26 tools, got %d", len(tools))
	}

	for _, name := range []string{
		"show_notification", "request_user_input", "spawn_entity",
		"create_game", "undo", "redo", "get_history", "export_scene",
	} {
		if _, ok := s.GetRegistry().GetTool(name); !ok {
			t.Errorf("tool %q not registered", name)
		}
	}
}

func TestHandleFrontendCommand(t *testing.T) {
	fe := &fakeFrontend{}
	s := NewServer(bridge.New(), fe, nil)

	body := `{"type":"send_prompt","prompt":"build a game"}`
	req := httptest.NewRequest(http.MethodPost, "/frontend/command", strings.NewReader(body))
	rec := httptest.NewRecorder()
	s.handleFrontendCommand(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body.String())
	}
	if len(fe.submitted) != 1 || fe.submitted[0].Type != protocol.CmdSendPrompt {
		t.Errorf("command not submitted: %+v", fe.submitted)
	}
}

func TestHandleFrontendCommand_Errors(t *testing.T) {
	tests := []struct {
		name       string
		method     string
		body       string
		submitErr  error
		wantStatus int
	}{
		{"wrong method", http.MethodGet, "", nil, http.StatusMethodNotAllowed},
		{"malformed body", http.MethodPost, "{not json", nil, http.StatusBadRequest},
		{"rejected command", http.MethodPost, `{"type":"bogus"}`, errors.New("unknown command type"), http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewServer(bridge.New(), &fakeFrontend{submitErr: tt.submitErr}, nil)
			req := httptest.NewRequest(tt.method, "/frontend/command", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()
			s.handleFrontendCommand(rec, req)
			if rec.Code != tt.wantStatus {
				t.Errorf("expected %d, got %d", tt.wantStatus, rec.Code)
			}
		})
	}
}

func TestHandleFrontendEvents(t *testing.T) {
	fe := &fakeFrontend{
		events: []*frontend.BufferedEvent{
			{Index: 3, Event: protocol.BackendEvent{Type: protocol.EvtConnected}},
		},
		nextIndex: 3,
		dropped:   2,
	}
	s := NewServer(bridge.New(), fe, nil)

	req := httptest.NewRequest(http.MethodGet, "/frontend/events?after=2", nil)
	rec := httptest.NewRecorder()
	s.handleFrontendEvents(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var body struct {
		Events    []json.RawMessage `json:"events"`
		NextIndex int               `json:"next_index"`
		Dropped   int64             `json:"dropped"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid response body: %v", err)
	}
	if len(body.Events) != 1 || body.NextIndex != 3 || body.Dropped != 2 {
		t.Errorf("unexpected response: events=%d next_index=%d dropped=%d", len(body.Events), body.NextIndex, body.Dropped)
	}
}

func TestHandleFrontendEvents_BadAfter(t *testing.T) {
	s := NewServer(bridge.New(), &fakeFrontend{}, nil)
	req := httptest.NewRequest(http.MethodGet, "/frontend/events?after=xyz", nil)
	rec := httptest.NewRecorder()
	s.handleFrontendEvents(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func TestHandleFrontendEvents_PurgedIndex(t *testing.T) {
	s := NewServer(bridge.New(), &fakeFrontend{eventsErr: errors.New("events before index 10 have been purged")}, nil)
	req := httptest.NewRequest(http.MethodGet, "/frontend/events?after=2", nil)
	rec := httptest.NewRecorder()
	s.handleFrontendEvents(rec, req)
	if rec.Code != http.StatusGone {
		t.Errorf("expected 410, got %d", rec.Code)
	}
}

// respond drains the bridge until a command appears, then writes resp.
func respond(t *testing.T, b *bridge.Bridge, resp bridge.Response) {
	t.Helper()
	go func() {
		deadline := time.Now().Add(5 * time.Second)
		for time.Now().Before(deadline) {
			if cmds := b.DrainCommands(); len(cmds) > 0 {
				b.Respond(resp)
				return
			}
			time.Sleep(5 * time.Millisecond)
		}
	}()
}

func toolText(t *testing.T, result *mcp_sdk.CallToolResult) string {
	t.Helper()
	if result == nil || len(result.Content) == 0 {
		t.Fatal("empty tool result")
	}
	text, ok := result.Content[0].(*mcp_sdk.TextContent)
	if !ok {
		t.Fatalf("expected text content, got %T", result.Content[0])
	}
	return text.Text
}

func TestCallBridge_RoundTrip(t *testing.T) {
	b := bridge.New()
	s := NewServer(b, &fakeFrontend{}, nil)

	respond(t, b, bridge.Success("Spawned cube entity 'box'"))

	result, _, err := s.callBridge("spawn_entity", SpawnEntityParams{Name: "box", Shape: "cube"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := toolText(t, result); got != "Spawned cube entity 'box'" {
		t.Errorf("unexpected result text: %q", got)
	}
}

func TestCallBridge_UserInputRendering(t *testing.T) {
	b := bridge.New()
	s := NewServer(b, &fakeFrontend{}, nil)

	respond(t, b, bridge.UserInput("req_1", "blue"))

	result, _, err := s.callBridge("request_user_input", UserInputParams{Prompt: "Pick a color"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := toolText(t, result); got != "User responded: blue" {
		t.Errorf("unexpected result text: %q", got)
	}
}

func TestCallBridge_Timeout(t *testing.T) {
	b := bridge.New()
	s := NewServer(b, &fakeFrontend{}, nil)

	result, _, err := s.callBridgeWithWindow("list_entities", EmptyParams{}, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := toolText(t, result); got != bridge.TimeoutText {
		t.Errorf("expected timeout text, got %q", got)
	}
}
