// Package bridge carries tool commands from MCP handlers to the dispatcher
// and responses back. Handlers run on HTTP goroutines while the dispatcher
// processes commands on its own tick, so the bridge converts that async hop
// into a synchronous call: enqueue, then poll for the response.
package bridge

import (
	"encoding/json"
	"errors"
	"sync"
	"time"
)

// Poll defaults give roughly a ten second window per call.
const (
	DefaultPollInterval = 50 * time.Millisecond
	DefaultMaxAttempts  = 200
)

// TimeoutText is the client-facing message for an exhausted poll.
const TimeoutText = "Timeout waiting for response"

// ErrTimeout is returned when no response arrives within the poll window.
var ErrTimeout = errors.New("timed out waiting for bridge response")

// Command is a tool invocation forwarded to the dispatcher.
type Command struct {
	Name       string
	Args       json.RawMessage
	EnqueuedAt time.Time
}

// ResponseKind discriminates response payloads.
type ResponseKind string

const (
	ResponseSuccess   ResponseKind = "success"
	ResponseUserInput ResponseKind = "user_input"
)

// Response is the dispatcher's answer to the most recent command. The slot
// holds one response at a time; a later write replaces an unread one.
type Response struct {
	Kind      ResponseKind
	Text      string
	RequestID string
}

// Success builds a plain text response.
func Success(text string) Response {
	return Response{Kind: ResponseSuccess, Text: text}
}

// UserInput builds a user input response for a pending input request.
func UserInput(requestID, text string) Response {
	return Response{Kind: ResponseUserInput, RequestID: requestID, Text: text}
}

// Bridge is a FIFO command queue plus a single response slot, both guarded
// by one mutex. The dispatcher drains the queue each tick and writes the
// slot; handlers enqueue and poll.
type Bridge struct {
	mu       sync.Mutex
	queue    []Command
	response *Response
}

// New returns an empty bridge.
func New() *Bridge {
	return &Bridge{}
}

// Enqueue appends a command and returns immediately.
func (b *Bridge) Enqueue(cmd Command) {
	if cmd.EnqueuedAt.IsZero() {
		cmd.EnqueuedAt = time.Now()
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.queue = append(b.queue, cmd)
}

// DrainCommands atomically removes and returns all queued commands in FIFO
// order. Returns nil when the queue is empty.
func (b *Bridge) DrainCommands() []Command {
	b.mu.Lock()
	defer b.mu.Unlock()
	cmds := b.queue
	b.queue = nil
	return cmds
}

// Respond stores a response, replacing any unread one.
func (b *Bridge) Respond(resp Response) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.response = &resp
}

// AwaitResponse polls the response slot, sleeping one interval before each
// check. It consumes and returns the response if one appears; after
// maxAttempts empty checks it returns ErrTimeout.
func (b *Bridge) AwaitResponse(interval time.Duration, maxAttempts int) (Response, error) {
	for i := 0; i < maxAttempts; i++ {
		time.Sleep(interval)
		b.mu.Lock()
		if b.response != nil {
			resp := *b.response
			b.response = nil
			b.mu.Unlock()
			return resp, nil
		}
		b.mu.Unlock()
	}
	return Response{}, ErrTimeout
}
