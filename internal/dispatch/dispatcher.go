// Package dispatch runs the coordinator tick: it drains frontend commands,
// CLI events, bridged tool commands, and self-test results, applying each
// against the scene, the history, and the event buffer it owns.
package dispatch

import (
	"fmt"
	"sync"
	"time"

	"github.com/matthewjberger/summoner/internal/agent"
	"github.com/matthewjberger/summoner/internal/audit"
	"github.com/matthewjberger/summoner/internal/bridge"
	"github.com/matthewjberger/summoner/internal/frontend"
	"github.com/matthewjberger/summoner/internal/game"
	"github.com/matthewjberger/summoner/internal/history"
	"github.com/matthewjberger/summoner/internal/logger"
	"github.com/matthewjberger/summoner/internal/metrics"
	"github.com/matthewjberger/summoner/internal/protocol"
	"github.com/matthewjberger/summoner/internal/stream"
)

// DefaultTickInterval is how often the dispatcher drains its queues.
const DefaultTickInterval = 10 * time.Millisecond

// Config holds dispatcher settings.
type Config struct {
	TickInterval time.Duration
	ExportDir    string
	// MCPEndpoint is the local MCP URL used by the mcp_round_trip self-test.
	MCPEndpoint string
}

// Dispatcher owns the scene and the history. Everything it touches is
// mutated only on its own goroutine; the queues at its edges are the
// concurrency boundary.
type Dispatcher struct {
	cfg    Config
	worker *agent.Worker
	bridge *bridge.Bridge
	events *frontend.EventBuffer
	scene  *game.Scene
	hist   *history.History

	mu      sync.Mutex
	pending []protocol.FrontendCommand
	cliTest *cliTestState

	testResults chan protocol.BackendEvent

	stopOnce sync.Once
	stopped  chan struct{}
}

type cliTestState struct {
	start time.Time
}

// New wires a dispatcher over its collaborators.
func New(worker *agent.Worker, b *bridge.Bridge, events *frontend.EventBuffer, cfg Config) *Dispatcher {
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = DefaultTickInterval
	}
	return &Dispatcher{
		cfg:         cfg,
		worker:      worker,
		bridge:      b,
		events:      events,
		scene:       game.NewScene(),
		hist:        history.New(),
		testResults: make(chan protocol.BackendEvent, 16),
		stopped:     make(chan struct{}),
	}
}

// SubmitCommand queues a frontend command for the next tick.
func (d *Dispatcher) SubmitCommand(cmd protocol.FrontendCommand) error {
	switch cmd.Type {
	case protocol.CmdReady, protocol.CmdSendPrompt, protocol.CmdCancelRequest,
		protocol.CmdUserInputResponse, protocol.CmdRunTest,
		protocol.CmdPlayGame, protocol.CmdPauseGame, protocol.CmdStopGame:
	default:
		return fmt.Errorf("unknown command type %q", cmd.Type)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.pending = append(d.pending, cmd)
	return nil
}

// EventsAfter returns buffered backend events after the given index.
func (d *Dispatcher) EventsAfter(after int) ([]*frontend.BufferedEvent, int, error) {
	events, err := d.events.After(after)
	if err != nil {
		return nil, 0, err
	}
	next := after
	if len(events) > 0 {
		next = events[len(events)-1].Index
	}
	return events, next, nil
}

// DroppedEvents reports how many events have aged out of the buffer unread.
func (d *Dispatcher) DroppedEvents() int64 {
	return d.events.DroppedEvents()
}

// Run ticks until Close is called. Call in a goroutine.
func (d *Dispatcher) Run() {
	ticker := time.NewTicker(d.cfg.TickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			d.Tick()
		case <-d.stopped:
			return
		}
	}
}

// Close stops the tick loop.
func (d *Dispatcher) Close() {
	d.stopOnce.Do(func() { close(d.stopped) })
}

// Tick drains every queue once, in a fixed order: frontend commands, CLI
// events, bridged tool commands, self-test results.
func (d *Dispatcher) Tick() {
	for _, cmd := range d.drainFrontend() {
		d.handleFrontend(cmd)
	}

	d.drainAgentEvents()

	for _, cmd := range d.bridge.DrainCommands() {
		resp, respond := d.handleCommand(cmd)
		if respond {
			d.bridge.Respond(resp)
		}
	}

	d.drainTestResults()
}

func (d *Dispatcher) drainFrontend() []protocol.FrontendCommand {
	d.mu.Lock()
	defer d.mu.Unlock()
	cmds := d.pending
	d.pending = nil
	return cmds
}

func (d *Dispatcher) handleFrontend(cmd protocol.FrontendCommand) {
	switch cmd.Type {
	case protocol.CmdReady:
		d.emit(protocol.BackendEvent{Type: protocol.EvtConnected})
		d.setStatus(protocol.StatusIdle())

	case protocol.CmdSendPrompt:
		d.setStatus(protocol.StatusThinking())
		metrics.RecordQueryStart()
		audit.LogPrompt(cmd.SessionID)
		d.worker.StartQuery(cmd.Prompt, cmd.SessionID, cmd.Model)

	case protocol.CmdCancelRequest:
		d.worker.Cancel()
		d.setStatus(protocol.StatusIdle())
		metrics.RecordQueryEnd("cancelled", nil)
		audit.Log(&audit.Event{Operation: audit.OpPromptCancel, Success: true})

	case protocol.CmdUserInputResponse:
		d.bridge.Respond(bridge.UserInput(cmd.RequestID, cmd.Response))

	case protocol.CmdRunTest:
		d.startTest(cmd.TestName)

	case protocol.CmdPlayGame:
		d.scene.SetPlay(protocol.PlayPlaying)
		d.emitGameStateChanged()
	case protocol.CmdPauseGame:
		d.scene.SetPlay(protocol.PlayPaused)
		d.emitGameStateChanged()
	case protocol.CmdStopGame:
		d.scene.SetPlay(protocol.PlayStopped)
		d.emitGameStateChanged()
	}
}

func (d *Dispatcher) drainAgentEvents() {
	for {
		select {
		case ev := <-d.worker.Events():
			d.handleAgentEvent(ev)
		default:
			return
		}
	}
}

func (d *Dispatcher) handleAgentEvent(ev stream.Event) {
	switch ev.Type {
	case stream.EventSessionStarted:
		d.emit(protocol.BackendEvent{Type: protocol.EvtStreamingStarted, SessionID: ev.SessionID})
		d.setStatus(protocol.StatusStreaming())

	case stream.EventTextDelta:
		d.emit(protocol.BackendEvent{Type: protocol.EvtTextDelta, Text: ev.Text})

	case stream.EventThinkingDelta:
		d.emit(protocol.BackendEvent{Type: protocol.EvtThinkingDelta, Text: ev.Text})

	case stream.EventToolUseStarted:
		d.emit(protocol.BackendEvent{Type: protocol.EvtToolUseStarted, ToolName: ev.ToolName, ToolID: ev.ToolID})
		d.setStatus(protocol.StatusUsingTool(ev.ToolName))

	case stream.EventToolUseInputDelta:
		d.emit(protocol.BackendEvent{Type: protocol.EvtToolUseInputDelta, ToolID: ev.ToolID, PartialJSON: ev.PartialJSON})

	case stream.EventToolUseFinished:
		d.emit(protocol.BackendEvent{Type: protocol.EvtToolUseFinished, ToolID: ev.ToolID})
		d.setStatus(protocol.StatusStreaming())

	case stream.EventTurnComplete:
		d.emit(protocol.BackendEvent{Type: protocol.EvtTurnComplete, SessionID: ev.SessionID})

	case stream.EventComplete:
		d.emit(protocol.BackendEvent{
			Type:         protocol.EvtRequestComplete,
			SessionID:    ev.SessionID,
			TotalCostUSD: ev.TotalCostUSD,
			NumTurns:     ev.NumTurns,
		})
		d.setStatus(protocol.StatusIdle())
		metrics.RecordQueryEnd("complete", ev.TotalCostUSD)
		d.resolveCLITest(true, fmt.Sprintf("CLI responded (%d turns)", ev.NumTurns))

	case stream.EventError:
		d.emit(protocol.BackendEvent{Type: protocol.EvtError, Message: ev.Message})
		d.setStatus(protocol.StatusIdle())
		metrics.RecordQueryEnd("error", nil)
		d.resolveCLITest(false, ev.Message)
	}
}

func (d *Dispatcher) drainTestResults() {
	for {
		select {
		case ev := <-d.testResults:
			d.emit(ev)
		default:
			return
		}
	}
}

// emit appends an event for the frontends. Safe from any goroutine.
func (d *Dispatcher) emit(ev protocol.BackendEvent) {
	d.events.Append(ev)
}

func (d *Dispatcher) setStatus(status protocol.AgentStatus) {
	d.emit(protocol.StatusUpdate(status))
}

func (d *Dispatcher) emitGameStateChanged() {
	d.emit(protocol.BackendEvent{
		Type:       protocol.EvtGameStateChanged,
		HasGame:    d.scene.HasGame(),
		PlayState:  d.scene.Play,
		EditorOpen: d.scene.ViewportOpen,
	})
	logger.Info("game state: has_game=%v play=%s", d.scene.HasGame(), d.scene.Play)
}
