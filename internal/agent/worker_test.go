package agent

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/matthewjberger/summoner/internal/stream"
)

func TestBuildArgs(t *testing.T) {
	tests := []struct {
		name      string
		prompt    string
		sessionID string
		model     string
		want      []string
	}{
		{
			name:   "prompt only",
			prompt: "hello",
			want: []string{
				"-p", "hello",
				"--output-format", "stream-json",
				"--verbose",
				"--include-partial-messages",
			},
		},
		{
			name:      "resume session",
			prompt:    "continue",
			sessionID: "sess-1",
			want: []string{
				"-p", "continue",
				"--output-format", "stream-json",
				"--verbose",
				"--include-partial-messages",
				"--resume", "sess-1",
			},
		},
		{
			name:   "model override",
			prompt: "hi",
			model:  "sonnet",
			want: []string{
				"-p", "hi",
				"--output-format", "stream-json",
				"--verbose",
				"--include-partial-messages",
				"--model", "sonnet",
			},
		},
		{
			name:      "resume and model",
			prompt:    "hi",
			sessionID: "s",
			model:     "opus",
			want: []string{
				"-p", "hi",
				"--output-format", "stream-json",
				"--verbose",
				"--include-partial-messages",
				"--resume", "s",
				"--model", "opus",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := buildArgs(tt.prompt, tt.sessionID, tt.model)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("buildArgs() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFilterEnv(t *testing.T) {
	env := []string{"PATH=/bin", "CLAUDECODE=1", "HOME=/home/u"}
	got := filterEnv(env)
	want := []string{"PATH=/bin", "HOME=/home/u"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("filterEnv() = %v, want %v", got, want)
	}
}

// writeStubCLI writes a shell script that emits a fixed stream-json session
// regardless of arguments.
func writeStubCLI(t *testing.T) string {
	t.Helper()
	script := `#!/bin/sh
echo '{"type":"system","subtype":"init","session_id":"stub-session"}'
echo '{"type":"stream_event","event":{"type":"content_block_delta","delta":{"type":"text_delta","text":"hello"}}}'
echo '{"type":"result","session_id":"stub-session","num_turns":1}'
`
	path := filepath.Join(t.TempDir(), "stub-cli")
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatalf("writing stub CLI: %v", err)
	}
	return path
}

func collectEvents(t *testing.T, w *Worker, n int) []stream.Event {
	t.Helper()
	var events []stream.Event
	deadline := time.After(5 * time.Second)
	for len(events) < n {
		select {
		case ev := <-w.Events():
			events = append(events, ev)
		case <-deadline:
			t.Fatalf("timed out with %d of %d events: %+v", len(events), n, events)
		}
	}
	return events
}

func TestWorkerQuery(t *testing.T) {
	w := NewWorker(writeStubCLI(t))
	go w.Run()
	defer w.Close()

	w.StartQuery("say hello", "", "")

	events := collectEvents(t, w, 3)
	if events[0].Type != stream.EventSessionStarted || events[0].SessionID != "stub-session" {
		t.Errorf("first event = %+v, want session_started stub-session", events[0])
	}
	if events[1].Type != stream.EventTextDelta || events[1].Text != "hello" {
		t.Errorf("second event = %+v, want text_delta hello", events[1])
	}
	if events[2].Type != stream.EventComplete {
		t.Errorf("third event = %+v, want complete", events[2])
	}
}

func TestWorkerCancelEmitsTurnComplete(t *testing.T) {
	w := NewWorker(writeStubCLI(t))
	go w.Run()
	defer w.Close()

	w.StartQuery("q", "", "")
	collectEvents(t, w, 3)

	w.Cancel()
	events := collectEvents(t, w, 1)
	if events[0].Type != stream.EventTurnComplete {
		t.Errorf("cancel event = %+v, want turn_complete", events[0])
	}
	if events[0].SessionID != "stub-session" {
		t.Errorf("cancel session id = %q, want last seen stub-session", events[0].SessionID)
	}
}

func TestWorkerLaunchFailure(t *testing.T) {
	w := NewWorker(filepath.Join(t.TempDir(), "does-not-exist"))
	go w.Run()
	defer w.Close()

	w.StartQuery("q", "", "")
	events := collectEvents(t, w, 1)
	if events[0].Type != stream.EventError {
		t.Errorf("launch failure event = %+v, want error", events[0])
	}
}
