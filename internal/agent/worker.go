// Package agent runs the claude CLI as a supervised subprocess and turns
// its stream-json output into decoded events.
package agent

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"

	"github.com/matthewjberger/summoner/internal/logger"
	"github.com/matthewjberger/summoner/internal/stream"
)

// DefaultBinary is the CLI launched for queries.
const DefaultBinary = "claude"

// CommandType selects a worker command variant.
type CommandType string

const (
	CommandStartQuery          CommandType = "start_query"
	CommandCancel              CommandType = "cancel"
	CommandSetWorkingDirectory CommandType = "set_working_directory"
)

// Command is one instruction for the worker goroutine.
type Command struct {
	Type      CommandType
	Prompt    string
	SessionID string
	Model     string
	Dir       string
}

// proc tracks one live subprocess. done closes after the reader goroutine
// has drained stdout and reaped the process.
type proc struct {
	cmd  *exec.Cmd
	done chan struct{}
}

// Worker owns at most one CLI subprocess at a time. Commands are consumed
// by a single goroutine; decoded events are delivered on Events.
type Worker struct {
	binary   string
	commands chan Command
	events   chan stream.Event
	stopOnce sync.Once
	stopped  chan struct{}

	mu            sync.Mutex
	dir           string
	current       *proc
	lastSessionID string
}

// NewWorker creates a worker for the given CLI binary. An empty binary
// selects the default.
func NewWorker(binary string) *Worker {
	if binary == "" {
		binary = DefaultBinary
	}
	return &Worker{
		binary:   binary,
		commands: make(chan Command, 16),
		events:   make(chan stream.Event, 256),
		stopped:  make(chan struct{}),
	}
}

// Events returns the decoded event channel. The dispatcher drains it each
// tick.
func (w *Worker) Events() <-chan stream.Event {
	return w.events
}

// StartQuery submits a query. Any in-flight query is superseded.
func (w *Worker) StartQuery(prompt, sessionID, model string) {
	w.commands <- Command{Type: CommandStartQuery, Prompt: prompt, SessionID: sessionID, Model: model}
}

// Cancel kills the in-flight query, if any, and reports the turn as
// complete.
func (w *Worker) Cancel() {
	w.commands <- Command{Type: CommandCancel}
}

// SetWorkingDirectory changes the directory used by subsequent queries.
func (w *Worker) SetWorkingDirectory(dir string) {
	w.commands <- Command{Type: CommandSetWorkingDirectory, Dir: dir}
}

// Run consumes commands until Close is called. Call in a goroutine.
func (w *Worker) Run() {
	for {
		select {
		case cmd := <-w.commands:
			w.handle(cmd)
		case <-w.stopped:
			w.killCurrent()
			return
		}
	}
}

// Close stops the worker and kills any live subprocess.
func (w *Worker) Close() {
	w.stopOnce.Do(func() { close(w.stopped) })
}

func (w *Worker) handle(cmd Command) {
	switch cmd.Type {
	case CommandStartQuery:
		w.killCurrent()
		w.launch(cmd)
	case CommandCancel:
		w.killCurrent()
		w.mu.Lock()
		sid := w.lastSessionID
		w.mu.Unlock()
		w.emit(stream.Event{Type: stream.EventTurnComplete, SessionID: sid})
	case CommandSetWorkingDirectory:
		w.mu.Lock()
		w.dir = cmd.Dir
		w.mu.Unlock()
	}
}

// buildArgs constructs the CLI argument list for a query.
func buildArgs(prompt, sessionID, model string) []string {
	args := []string{
		"-p", prompt,
		"--output-format", "stream-json",
		"--verbose",
		"--include-partial-messages",
	}
	if sessionID != "" {
		args = append(args, "--resume", sessionID)
	}
	if model != "" {
		args = append(args, "--model", model)
	}
	return args
}

// filterEnv strips the CLAUDECODE marker so the child does not treat itself
// as nested.
func filterEnv(env []string) []string {
	out := make([]string, 0, len(env))
	for _, kv := range env {
		if strings.HasPrefix(kv, "CLAUDECODE=") {
			continue
		}
		out = append(out, kv)
	}
	return out
}

func (w *Worker) launch(query Command) {
	w.mu.Lock()
	dir := w.dir
	w.mu.Unlock()

	cmd := exec.Command(w.binary, buildArgs(query.Prompt, query.SessionID, query.Model)...)
	cmd.Dir = dir
	cmd.Env = filterEnv(os.Environ())

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		w.emit(stream.Event{Type: stream.EventError, Message: fmt.Sprintf("failed to open stdout: %v", err)})
		return
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		w.emit(stream.Event{Type: stream.EventError, Message: fmt.Sprintf("failed to open stderr: %v", err)})
		return
	}

	if err := cmd.Start(); err != nil {
		w.emit(stream.Event{Type: stream.EventError, Message: fmt.Sprintf("failed to start %s: %v", w.binary, err)})
		return
	}

	logger.Info("launched %s (pid %d)", w.binary, cmd.Process.Pid)

	p := &proc{cmd: cmd, done: make(chan struct{})}
	w.mu.Lock()
	w.current = p
	w.mu.Unlock()

	// stderr is drained so the child never blocks on a full pipe; its
	// content is not part of the protocol.
	go func() {
		_, _ = io.Copy(io.Discard, stderr)
	}()

	go w.readEvents(p, stdout)
}

// readEvents decodes stdout lines until EOF, then reaps the process. It is
// the only goroutine that calls Wait for its process.
func (w *Worker) readEvents(p *proc, stdout io.Reader) {
	defer close(p.done)

	var dec stream.Decoder
	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 1024*1024), 1024*1024)

	for scanner.Scan() {
		for _, ev := range dec.DecodeLine(scanner.Bytes()) {
			if ev.SessionID != "" {
				w.mu.Lock()
				w.lastSessionID = ev.SessionID
				w.mu.Unlock()
			}
			w.emit(ev)
		}
	}
	if err := scanner.Err(); err != nil {
		logger.Error("reading %s output: %v", w.binary, err)
	}

	_ = p.cmd.Wait()

	w.mu.Lock()
	if w.current == p {
		w.current = nil
	}
	w.mu.Unlock()
}

// killCurrent kills the live subprocess, if any, and waits for its reader
// to finish reaping it.
func (w *Worker) killCurrent() {
	w.mu.Lock()
	p := w.current
	w.current = nil
	w.mu.Unlock()

	if p == nil {
		return
	}
	if p.cmd.Process != nil {
		_ = p.cmd.Process.Kill()
	}
	<-p.done
}

func (w *Worker) emit(ev stream.Event) {
	select {
	case w.events <- ev:
	case <-w.stopped:
	}
}
