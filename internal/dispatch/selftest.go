package dispatch

import (
	"bytes"
	"fmt"
	"net/http"
	"time"

	"github.com/matthewjberger/summoner/internal/logger"
	"github.com/matthewjberger/summoner/internal/protocol"
)

// cliTestTimeout bounds how long the cli_prompt self-test waits for the CLI
// to answer.
const cliTestTimeout = 60 * time.Second

const cliTestPrompt = "Say hello in exactly 3 words"

// startTest launches a named self-test. Results arrive on the test result
// channel and are emitted as test_result events on a later tick.
func (d *Dispatcher) startTest(name string) {
	logger.Info("running self-test %q", name)
	start := time.Now()

	switch name {
	case "ipc_echo":
		// The command made it through the frontend queue to this handler,
		// which is the whole round trip.
		d.postResult(name, true, "command queue round trip ok", start)

	case "mcp_round_trip":
		go d.testMCPRoundTrip(start)

	case "show_notification":
		d.emit(protocol.BackendEvent{
			Type:  protocol.EvtNotification,
			Title: "Test Notification",
			Body:  "If you can read this, notifications are working",
		})
		d.postResult(name, true, "notification emitted", start)

	case "display_content":
		d.emit(protocol.BackendEvent{
			Type:    protocol.EvtContentDisplay,
			Content: "# Test Content\n\nThis is **markdown** sent through the display pipeline.\n\n- one\n- two\n",
			Format:  protocol.FormatMarkdown,
		})
		d.postResult(name, true, "content emitted", start)

	case "status_cycle":
		go d.testStatusCycle(start)

	case "cli_prompt":
		d.mu.Lock()
		d.cliTest = &cliTestState{start: start}
		d.mu.Unlock()
		d.setStatus(protocol.StatusThinking())
		d.worker.StartQuery(cliTestPrompt, "", "")
		go d.cliTestWatchdog()

	default:
		d.postResult(name, false, "Unknown test: "+name, start)
	}
}

func (d *Dispatcher) testMCPRoundTrip(start time.Time) {
	body := []byte(`{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"protocolVersion":"2024-11-05","capabilities":{},"clientInfo":{"name":"summoner-selftest","version":"0.1.0"}}}`)

	req, err := http.NewRequest(http.MethodPost, d.cfg.MCPEndpoint, bytes.NewReader(body))
	if err != nil {
		d.postResult("mcp_round_trip", false, fmt.Sprintf("building request: %v", err), start)
		return
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json, text/event-stream")

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		d.postResult("mcp_round_trip", false, fmt.Sprintf("initialize failed: %v", err), start)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		d.postResult("mcp_round_trip", false, fmt.Sprintf("initialize returned HTTP %d", resp.StatusCode), start)
		return
	}
	d.postResult("mcp_round_trip", true, fmt.Sprintf("initialize returned HTTP %d", resp.StatusCode), start)
}

func (d *Dispatcher) testStatusCycle(start time.Time) {
	statuses := []protocol.AgentStatus{
		protocol.StatusIdle(),
		protocol.StatusThinking(),
		protocol.StatusStreaming(),
		protocol.StatusUsingTool("test_tool"),
		protocol.StatusIdle(),
	}
	for _, status := range statuses {
		d.setStatus(status)
		time.Sleep(500 * time.Millisecond)
	}
	d.postResult("status_cycle", true, "cycled through all agent states", start)
}

func (d *Dispatcher) cliTestWatchdog() {
	time.Sleep(cliTestTimeout)
	d.mu.Lock()
	pending := d.cliTest
	d.cliTest = nil
	d.mu.Unlock()
	if pending != nil {
		d.postResult("cli_prompt", false, "timed out waiting for CLI response", pending.start)
	}
}

// resolveCLITest settles a pending cli_prompt test when the query finishes.
func (d *Dispatcher) resolveCLITest(success bool, message string) {
	d.mu.Lock()
	pending := d.cliTest
	d.cliTest = nil
	d.mu.Unlock()
	if pending == nil {
		return
	}
	d.postResult("cli_prompt", success, message, pending.start)
}

func (d *Dispatcher) postResult(name string, success bool, message string, start time.Time) {
	result := protocol.BackendEvent{
		Type:       protocol.EvtTestResult,
		TestName:   name,
		Success:    success,
		Message:    message,
		DurationMS: time.Since(start).Milliseconds(),
	}
	select {
	case d.testResults <- result:
	default:
		logger.Error("test result channel full, dropping result for %s", name)
	}
}
