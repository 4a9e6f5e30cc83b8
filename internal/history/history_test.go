package history

import (
	"encoding/json"
	"testing"
)

func TestOperationDescription(t *testing.T) {
	old := "old script"
	tests := []struct {
		name string
		op   Operation
		want string
	}{
		{"create game", Operation{Type: OpCreateGame}, "Create game"},
		{"add entity", Operation{Type: OpAddEntity, Name: "player"}, "Add entity 'player'"},
		{"remove entity", Operation{Type: OpRemoveEntity, Name: "enemy_3"}, "Remove entity 'enemy_3'"},
		{"update script", Operation{Type: OpUpdateScript, Name: "paddle", OldScript: &old, NewScript: "x"}, "Update script on 'paddle'"},
		{"set state int", Operation{Type: OpSetGameState, Key: "score", NewValue: 5}, "Set state 'score' = 5"},
		{"set state float", Operation{Type: OpSetGameState, Key: "speed", NewValue: 1.5}, "Set state 'speed' = 1.5"},
		{"reset game", Operation{Type: OpResetGame}, "Reset game"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.op.Description(); got != tt.want {
				t.Errorf("Description() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestPushUndoRedo(t *testing.T) {
	h := New()
	if h.CanUndo() || h.CanRedo() {
		t.Fatal("fresh history should have nothing to undo or redo")
	}
	if op := h.Undo(); op != nil {
		t.Fatalf("Undo() on empty history = %+v, want nil", op)
	}
	if op := h.Redo(); op != nil {
		t.Fatalf("Redo() on empty history = %+v, want nil", op)
	}

	h.Push(Operation{Type: OpCreateGame})
	h.Push(Operation{Type: OpAddEntity, Name: "a"})
	h.Push(Operation{Type: OpAddEntity, Name: "b"})

	op := h.Undo()
	if op == nil || op.Name != "b" {
		t.Fatalf("Undo() = %+v, want add entity b", op)
	}
	if !h.CanRedo() {
		t.Fatal("CanRedo() = false after undo")
	}

	// Redo returns the same operation and restores the cursor.
	op = h.Redo()
	if op == nil || op.Name != "b" {
		t.Fatalf("Redo() = %+v, want add entity b", op)
	}
	if h.CanRedo() {
		t.Error("CanRedo() = true after redo exhausted the stack")
	}

	snap := h.Snapshot()
	if snap.Current == nil || *snap.Current != 2 {
		t.Errorf("current = %v, want 2", snap.Current)
	}
}

func TestUndoAllThenNothing(t *testing.T) {
	h := New()
	for _, name := range []string{"a", "b", "c"} {
		h.Push(Operation{Type: OpAddEntity, Name: name})
	}

	for i := 0; i < 3; i++ {
		if op := h.Undo(); op == nil {
			t.Fatalf("Undo() #%d = nil, want operation", i+1)
		}
	}
	if op := h.Undo(); op != nil {
		t.Errorf("Undo() past the root = %+v, want nil", op)
	}
	if h.CanUndo() {
		t.Error("CanUndo() = true after undoing everything")
	}
	if !h.CanRedo() {
		t.Error("CanRedo() = false with a full redo stack")
	}
}

func TestPushClearsRedoStack(t *testing.T) {
	h := New()
	h.Push(Operation{Type: OpCreateGame})
	h.Push(Operation{Type: OpAddEntity, Name: "a"})
	h.Undo()

	h.Push(Operation{Type: OpAddEntity, Name: "b"})
	if h.CanRedo() {
		t.Error("CanRedo() = true after a push, want redo stack cleared")
	}

	// The undone branch stays in the tree as a sibling.
	snap := h.Snapshot()
	if snap.TotalOperations != 3 {
		t.Errorf("total_operations = %d, want 3", snap.TotalOperations)
	}
	if len(snap.Operations[0].Children) != 2 {
		t.Errorf("root children = %v, want two branches", snap.Operations[0].Children)
	}
}

func TestClear(t *testing.T) {
	h := New()
	h.Push(Operation{Type: OpCreateGame})
	h.Push(Operation{Type: OpAddEntity, Name: "a"})
	h.Undo()

	h.Clear()
	if h.Len() != 0 || h.CanUndo() || h.CanRedo() {
		t.Errorf("Clear() left state: len=%d undo=%v redo=%v", h.Len(), h.CanUndo(), h.CanRedo())
	}
}

func TestSnapshotJSON(t *testing.T) {
	h := New()
	h.Push(Operation{Type: OpCreateGame})
	h.Push(Operation{Type: OpSetGameState, Key: "score", NewValue: 10})
	h.Undo()

	data, err := json.Marshal(h.Snapshot())
	if err != nil {
		t.Fatalf("Marshal(Snapshot()) error = %v", err)
	}

	var doc struct {
		Current         *int `json:"current"`
		TotalOperations int  `json:"total_operations"`
		CanUndo         bool `json:"can_undo"`
		CanRedo         bool `json:"can_redo"`
		Operations      []struct {
			ID          int    `json:"id"`
			Description string `json:"description"`
			Current     bool   `json:"current"`
			CanRedo     bool   `json:"can_redo"`
			Parent      *int   `json:"parent"`
		} `json:"operations"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("Unmarshal snapshot error = %v", err)
	}

	if doc.TotalOperations != 2 {
		t.Errorf("total_operations = %d, want 2", doc.TotalOperations)
	}
	if doc.Current == nil || *doc.Current != 0 {
		t.Errorf("current = %v, want 0", doc.Current)
	}
	if !doc.CanUndo || !doc.CanRedo {
		t.Errorf("can_undo/can_redo = %v/%v, want true/true", doc.CanUndo, doc.CanRedo)
	}
	if doc.Operations[0].Parent != nil {
		t.Errorf("root parent = %v, want absent", doc.Operations[0].Parent)
	}
	if doc.Operations[1].Parent == nil || *doc.Operations[1].Parent != 0 {
		t.Errorf("child parent = %v, want 0", doc.Operations[1].Parent)
	}
	if !doc.Operations[1].CanRedo {
		t.Error("undone node should be marked can_redo")
	}
	if doc.Operations[1].Description != "Set state 'score' = 10" {
		t.Errorf("description = %q", doc.Operations[1].Description)
	}
}
