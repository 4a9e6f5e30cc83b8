// Package history tracks game-mutating operations as a tree with undo/redo.
//
// Operations form a tree rather than a list: undoing and then performing a
// new operation starts a sibling branch instead of discarding the old one.
// Redo follows a flat stack of recently undone node indices, so it retraces
// the most recent undo chain, while abandoned branches stay visible in the
// snapshot document.
package history

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// OpType identifies an operation variant.
type OpType string

const (
	OpCreateGame   OpType = "create_game"
	OpAddEntity    OpType = "add_entity"
	OpRemoveEntity OpType = "remove_entity"
	OpUpdateScript OpType = "update_script"
	OpSetGameState OpType = "set_game_state"
	OpResetGame    OpType = "reset_game"
)

// Operation records one reversible change. Name is the entity name for
// entity operations; EntityJSON holds the definition needed to respawn a
// removed entity; Definition holds the full game document for create.
type Operation struct {
	Type       OpType
	Name       string
	EntityJSON json.RawMessage
	Definition json.RawMessage
	OldScript  *string
	NewScript  string
	Key        string
	OldValue   *float64
	NewValue   float64
}

// Description returns the human readable label shown in history listings.
func (o Operation) Description() string {
	switch o.Type {
	case OpCreateGame:
		return "Create game"
	case OpAddEntity:
		return fmt.Sprintf("Add entity '%s'", o.Name)
	case OpRemoveEntity:
		return fmt.Sprintf("Remove entity '%s'", o.Name)
	case OpUpdateScript:
		return fmt.Sprintf("Update script on '%s'", o.Name)
	case OpSetGameState:
		return fmt.Sprintf("Set state '%s' = %s", o.Key, formatValue(o.NewValue))
	case OpResetGame:
		return "Reset game"
	}
	return string(o.Type)
}

func formatValue(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

type node struct {
	op       Operation
	at       time.Time
	parent   *int
	children []int
}

// History is the operation tree plus a cursor and redo stack. Not safe for
// concurrent use; the dispatcher is the only caller.
type History struct {
	nodes     []node
	current   *int
	redoStack []int
}

// New returns an empty history.
func New() *History {
	return &History{}
}

// Push records an operation as a child of the current node, moves the cursor
// to it, and clears the redo stack.
func (h *History) Push(op Operation) {
	idx := len(h.nodes)
	n := node{op: op, at: time.Now(), parent: h.current}
	h.nodes = append(h.nodes, n)
	if h.current != nil {
		h.nodes[*h.current].children = append(h.nodes[*h.current].children, idx)
	}
	h.current = &idx
	h.redoStack = nil
}

// Undo returns the operation at the cursor and moves the cursor to its
// parent, remembering the node for redo. Returns nil when there is nothing
// to undo.
func (h *History) Undo() *Operation {
	if h.current == nil {
		return nil
	}
	idx := *h.current
	h.redoStack = append(h.redoStack, idx)
	h.current = h.nodes[idx].parent
	op := h.nodes[idx].op
	return &op
}

// Redo pops the most recently undone node, moves the cursor back to it, and
// returns its operation. Returns nil when the redo stack is empty.
func (h *History) Redo() *Operation {
	if len(h.redoStack) == 0 {
		return nil
	}
	idx := h.redoStack[len(h.redoStack)-1]
	h.redoStack = h.redoStack[:len(h.redoStack)-1]
	h.current = &idx
	op := h.nodes[idx].op
	return &op
}

// Clear drops everything. Used when a new game replaces the old one.
func (h *History) Clear() {
	h.nodes = nil
	h.current = nil
	h.redoStack = nil
}

// CanUndo reports whether the cursor is on a node.
func (h *History) CanUndo() bool {
	return h.current != nil
}

// CanRedo reports whether the redo stack is non-empty.
func (h *History) CanRedo() bool {
	return len(h.redoStack) > 0
}

// Len returns the total number of recorded operations.
func (h *History) Len() int {
	return len(h.nodes)
}

// SnapshotNode is one node in the snapshot document.
type SnapshotNode struct {
	ID          int    `json:"id"`
	Description string `json:"description"`
	SecondsAgo  int64  `json:"seconds_ago"`
	Current     bool   `json:"current"`
	CanRedo     bool   `json:"can_redo"`
	Parent      *int   `json:"parent,omitempty"`
	Children    []int  `json:"children,omitempty"`
}

// Snapshot is the JSON view of the whole tree.
type Snapshot struct {
	Current         *int           `json:"current"`
	TotalOperations int            `json:"total_operations"`
	CanUndo         bool           `json:"can_undo"`
	CanRedo         bool           `json:"can_redo"`
	Operations      []SnapshotNode `json:"operations"`
}

// Snapshot renders the tree for display.
func (h *History) Snapshot() Snapshot {
	now := time.Now()
	onRedo := make(map[int]bool, len(h.redoStack))
	for _, idx := range h.redoStack {
		onRedo[idx] = true
	}

	ops := make([]SnapshotNode, len(h.nodes))
	for i, n := range h.nodes {
		ops[i] = SnapshotNode{
			ID:          i,
			Description: n.op.Description(),
			SecondsAgo:  int64(now.Sub(n.at).Seconds()),
			Current:     h.current != nil && *h.current == i,
			CanRedo:     onRedo[i],
			Parent:      n.parent,
			Children:    n.children,
		}
	}

	return Snapshot{
		Current:         h.current,
		TotalOperations: len(h.nodes),
		CanUndo:         h.CanUndo(),
		CanRedo:         h.CanRedo(),
		Operations:      ops,
	}
}
