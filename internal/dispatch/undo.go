package dispatch

import (
	"github.com/matthewjberger/summoner/internal/audit"
	"github.com/matthewjberger/summoner/internal/bridge"
	"github.com/matthewjberger/summoner/internal/game"
	"github.com/matthewjberger/summoner/internal/history"
)

func (d *Dispatcher) undo() bridge.Response {
	op := d.hist.Undo()
	if op == nil {
		return bridge.Success("Nothing to undo")
	}
	d.applyUndo(*op)
	audit.Log(&audit.Event{Operation: audit.OpHistoryUndo, Success: true,
		Details: map[string]any{"description": op.Description()}})
	return bridge.Success("Undone: " + op.Description())
}

func (d *Dispatcher) redo() bridge.Response {
	op := d.hist.Redo()
	if op == nil {
		return bridge.Success("Nothing to redo")
	}
	d.applyRedo(*op)
	audit.Log(&audit.Event{Operation: audit.OpHistoryRedo, Success: true,
		Details: map[string]any{"description": op.Description()}})
	return bridge.Success("Redone: " + op.Description())
}

// applyUndo reverses one operation against the scene.
func (d *Dispatcher) applyUndo(op history.Operation) {
	switch op.Type {
	case history.OpUpdateScript:
		if ge, ok := d.scene.GameEntities[op.Name]; ok {
			if op.OldScript != nil {
				ge.Script = *op.OldScript
				ge.Enabled = *op.OldScript != ""
			} else {
				ge.Script = ""
				ge.Enabled = false
			}
		}

	case history.OpAddEntity:
		delete(d.scene.GameEntities, op.Name)
		delete(d.scene.Definitions, op.Name)

	case history.OpRemoveEntity:
		if def, err := game.ParseEntityDefinition(op.EntityJSON); err == nil {
			d.scene.SpawnGameEntity(*def)
		}

	case history.OpSetGameState:
		if op.OldValue != nil {
			d.scene.State[op.Key] = *op.OldValue
		} else {
			delete(d.scene.State, op.Key)
		}

	case history.OpCreateGame:
		d.scene.TeardownGame()
		d.emitGameStateChanged()

	case history.OpResetGame:
		d.scene.TeardownGame()
		d.emitGameStateChanged()
	}
}

// applyRedo re-applies one undone operation.
func (d *Dispatcher) applyRedo(op history.Operation) {
	switch op.Type {
	case history.OpUpdateScript:
		if ge, ok := d.scene.GameEntities[op.Name]; ok {
			ge.Script = op.NewScript
			ge.Enabled = op.NewScript != ""
		}

	case history.OpAddEntity:
		if def, err := game.ParseEntityDefinition(op.EntityJSON); err == nil {
			d.scene.SpawnGameEntity(*def)
		}

	case history.OpRemoveEntity:
		delete(d.scene.GameEntities, op.Name)
		delete(d.scene.Definitions, op.Name)

	case history.OpSetGameState:
		d.scene.State[op.Key] = op.NewValue

	case history.OpCreateGame:
		if def, err := game.ParseGameDefinition(op.Definition); err == nil {
			d.scene.LoadGame(def)
			d.emitGameStateChanged()
		}

	case history.OpResetGame:
		d.scene.ResetGame()
		d.emitGameStateChanged()
	}
}
