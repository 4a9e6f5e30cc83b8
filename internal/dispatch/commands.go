package dispatch

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/matthewjberger/summoner/internal/audit"
	"github.com/matthewjberger/summoner/internal/bridge"
	"github.com/matthewjberger/summoner/internal/game"
	"github.com/matthewjberger/summoner/internal/history"
	"github.com/matthewjberger/summoner/internal/protocol"
	"github.com/matthewjberger/summoner/internal/validation"
)

// Default viewport size when open_3d_window omits dimensions.
const (
	defaultViewportWidth  = 800
	defaultViewportHeight = 600
)

// Argument payloads for bridged tool commands. Field names match the tool
// input schemas, so the raw arguments unmarshal directly.
type notificationArgs struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

type displayContentArgs struct {
	Content string `json:"content"`
	Format  string `json:"format"`
}

type userInputArgs struct {
	RequestID string   `json:"request_id"`
	Prompt    string   `json:"prompt"`
	Options   []string `json:"options"`
}

type statusMessageArgs struct {
	Message string `json:"message"`
}

type openWindowArgs struct {
	Width  uint32 `json:"width"`
	Height uint32 `json:"height"`
}

type spawnEntityArgs struct {
	Name     string    `json:"name"`
	Shape    string    `json:"shape"`
	Position []float64 `json:"position"`
	Scale    []float64 `json:"scale"`
}

type entityNameArgs struct {
	Name string `json:"name"`
}

type moveEntityArgs struct {
	Name     string    `json:"name"`
	Position []float64 `json:"position"`
}

type rotateEntityArgs struct {
	Name     string    `json:"name"`
	Rotation []float64 `json:"rotation"`
}

type scaleEntityArgs struct {
	Name  string    `json:"name"`
	Scale []float64 `json:"scale"`
}

type setCameraArgs struct {
	Focus  []float64 `json:"focus"`
	Radius float64   `json:"radius"`
	Yaw    float64   `json:"yaw"`
	Pitch  float64   `json:"pitch"`
}

type createGameArgs struct {
	GameJSON string `json:"game_json"`
}

type updateScriptArgs struct {
	EntityName string `json:"entity_name"`
	Script     string `json:"script"`
}

type addGameEntityArgs struct {
	EntityJSON string `json:"entity_json"`
}

type setGameStateArgs struct {
	Key   string  `json:"key"`
	Value float64 `json:"value"`
}

type getGameStateArgs struct {
	Key string `json:"key"`
}

type exportSceneArgs struct {
	Path string `json:"path"`
}

// handleCommand executes one bridged tool command. The second return value
// is false when the response will arrive later (user input requests).
func (d *Dispatcher) handleCommand(cmd bridge.Command) (bridge.Response, bool) {
	resp, respond := d.dispatchCommand(cmd)
	if respond {
		audit.LogToolCall(cmd.Name, !strings.HasPrefix(resp.Text, "Error:"))
	}
	return resp, respond
}

func (d *Dispatcher) dispatchCommand(cmd bridge.Command) (bridge.Response, bool) {
	switch cmd.Name {
	case "show_notification":
		var args notificationArgs
		if err := json.Unmarshal(cmd.Args, &args); err != nil {
			return argError(err), true
		}
		d.emit(protocol.BackendEvent{Type: protocol.EvtNotification, Title: args.Title, Body: args.Body})
		return bridge.Success("Notification sent"), true

	case "display_content":
		var args displayContentArgs
		if err := json.Unmarshal(cmd.Args, &args); err != nil {
			return argError(err), true
		}
		d.emit(protocol.BackendEvent{
			Type:    protocol.EvtContentDisplay,
			Content: args.Content,
			Format:  protocol.ParseContentFormat(args.Format),
		})
		return bridge.Success("Content displayed"), true

	case "request_user_input":
		var args userInputArgs
		if err := json.Unmarshal(cmd.Args, &args); err != nil {
			return argError(err), true
		}
		d.emit(protocol.BackendEvent{
			Type:      protocol.EvtUserInputRequest,
			RequestID: args.RequestID,
			Prompt:    args.Prompt,
			Options:   args.Options,
		})
		// The response slot is filled by the user's reply, not by us.
		return bridge.Response{}, false

	case "set_status_message":
		var args statusMessageArgs
		if err := json.Unmarshal(cmd.Args, &args); err != nil {
			return argError(err), true
		}
		d.scene.Status = args.Message
		return bridge.Success("Status message set"), true

	case "open_3d_window":
		return d.openViewport(cmd.Args), true
	case "close_3d_window":
		return d.closeViewport(), true

	case "spawn_entity":
		return d.spawnEntity(cmd.Args), true
	case "remove_entity":
		return d.removeEntity(cmd.Args), true
	case "move_entity":
		return d.moveEntity(cmd.Args), true
	case "rotate_entity":
		return d.rotateEntity(cmd.Args), true
	case "scale_entity":
		return d.scaleEntity(cmd.Args), true
	case "set_camera":
		return d.setCamera(cmd.Args), true
	case "list_entities":
		return d.listEntities(), true
	case "clear_scene":
		n := d.scene.ClearEntities()
		return bridge.Success(fmt.Sprintf("Cleared %d entities from scene", n)), true

	case "create_game":
		return d.createGame(cmd.Args), true
	case "update_entity_script":
		return d.updateEntityScript(cmd.Args), true
	case "add_game_entity":
		return d.addGameEntity(cmd.Args), true
	case "remove_game_entity":
		return d.removeGameEntity(cmd.Args), true
	case "set_game_state":
		return d.setGameState(cmd.Args), true
	case "get_game_state":
		return d.getGameState(cmd.Args), true
	case "get_scene_info":
		return d.sceneInfo(), true
	case "reset_game":
		return d.resetGame(), true

	case "undo":
		return d.undo(), true
	case "redo":
		return d.redo(), true
	case "get_history":
		return d.getHistory(), true
	case "export_scene":
		return d.exportScene(cmd.Args), true
	}

	return bridge.Success(fmt.Sprintf("Error: unknown command '%s'", cmd.Name)), true
}

func argError(err error) bridge.Response {
	return bridge.Success(fmt.Sprintf("Error: invalid arguments: %v", err))
}

func (d *Dispatcher) openViewport(raw json.RawMessage) bridge.Response {
	var args openWindowArgs
	if err := json.Unmarshal(raw, &args); err != nil {
		return argError(err)
	}
	if d.scene.ViewportOpen {
		return bridge.Success("3D window is already open")
	}
	if args.Width == 0 {
		args.Width = defaultViewportWidth
	}
	if args.Height == 0 {
		args.Height = defaultViewportHeight
	}
	d.scene.ViewportOpen = true
	d.scene.ViewportSize = [2]uint32{args.Width, args.Height}
	d.emitGameStateChanged()
	return bridge.Success(fmt.Sprintf("Opened 3D window (%dx%d)", args.Width, args.Height))
}

func (d *Dispatcher) closeViewport() bridge.Response {
	if !d.scene.ViewportOpen {
		return bridge.Success("3D window is not open")
	}
	d.scene.ViewportOpen = false
	d.emitGameStateChanged()
	return bridge.Success("Closed 3D window")
}

func (d *Dispatcher) spawnEntity(raw json.RawMessage) bridge.Response {
	var args spawnEntityArgs
	if err := json.Unmarshal(raw, &args); err != nil {
		return argError(err)
	}
	if err := validation.ValidateEntityName(args.Name); err != nil {
		return bridge.Success(fmt.Sprintf("Error: %v", err))
	}
	if !game.IsValidShape(args.Shape) {
		return bridge.Success(fmt.Sprintf("Error: unknown shape '%s'. Valid shapes: %s",
			args.Shape, strings.Join(game.ValidShapes, ", ")))
	}
	if _, exists := d.scene.Entities[args.Name]; exists {
		return bridge.Success(fmt.Sprintf("Error: entity '%s' already exists", args.Name))
	}

	scale := vec3(args.Scale)
	if args.Scale == nil {
		scale = [3]float64{1, 1, 1}
	}
	shape := strings.ToLower(args.Shape)
	d.scene.Entities[args.Name] = &game.Entity{
		Name:     args.Name,
		Shape:    shape,
		Position: vec3(args.Position),
		Scale:    scale,
	}
	return bridge.Success(fmt.Sprintf("Spawned %s entity '%s'", shape, args.Name))
}

func (d *Dispatcher) removeEntity(raw json.RawMessage) bridge.Response {
	var args entityNameArgs
	if err := json.Unmarshal(raw, &args); err != nil {
		return argError(err)
	}
	if _, ok := d.scene.Entities[args.Name]; !ok {
		return bridge.Success(fmt.Sprintf("Error: entity '%s' not found", args.Name))
	}
	delete(d.scene.Entities, args.Name)
	return bridge.Success(fmt.Sprintf("Removed entity '%s'", args.Name))
}

func (d *Dispatcher) moveEntity(raw json.RawMessage) bridge.Response {
	var args moveEntityArgs
	if err := json.Unmarshal(raw, &args); err != nil {
		return argError(err)
	}
	e, ok := d.scene.Entities[args.Name]
	if !ok {
		return bridge.Success(fmt.Sprintf("Error: entity '%s' not found", args.Name))
	}
	e.Position = vec3(args.Position)
	return bridge.Success(fmt.Sprintf("Moved entity '%s' to %s", args.Name, formatVec3(e.Position)))
}

func (d *Dispatcher) rotateEntity(raw json.RawMessage) bridge.Response {
	var args rotateEntityArgs
	if err := json.Unmarshal(raw, &args); err != nil {
		return argError(err)
	}
	e, ok := d.scene.Entities[args.Name]
	if !ok {
		return bridge.Success(fmt.Sprintf("Error: entity '%s' not found", args.Name))
	}
	e.Rotation = vec3(args.Rotation)
	return bridge.Success(fmt.Sprintf("Rotated entity '%s' to %s", args.Name, formatVec3(e.Rotation)))
}

func (d *Dispatcher) scaleEntity(raw json.RawMessage) bridge.Response {
	var args scaleEntityArgs
	if err := json.Unmarshal(raw, &args); err != nil {
		return argError(err)
	}
	e, ok := d.scene.Entities[args.Name]
	if !ok {
		return bridge.Success(fmt.Sprintf("Error: entity '%s' not found", args.Name))
	}
	e.Scale = vec3(args.Scale)
	return bridge.Success(fmt.Sprintf("Scaled entity '%s' to %s", args.Name, formatVec3(e.Scale)))
}

func (d *Dispatcher) setCamera(raw json.RawMessage) bridge.Response {
	var args setCameraArgs
	if err := json.Unmarshal(raw, &args); err != nil {
		return argError(err)
	}
	d.scene.Camera = game.Camera{
		Focus:  vec3(args.Focus),
		Radius: args.Radius,
		Yaw:    args.Yaw,
		Pitch:  args.Pitch,
	}
	return bridge.Success("Camera updated")
}

func (d *Dispatcher) listEntities() bridge.Response {
	names := d.scene.EntityNames()
	if len(names) == 0 {
		return bridge.Success("No entities in scene")
	}
	return bridge.Success(fmt.Sprintf("Entities in scene (%d): %s", len(names), strings.Join(names, ", ")))
}

func (d *Dispatcher) createGame(raw json.RawMessage) bridge.Response {
	var args createGameArgs
	if err := json.Unmarshal(raw, &args); err != nil {
		return argError(err)
	}
	def, err := game.ParseGameDefinition([]byte(args.GameJSON))
	if err != nil {
		return bridge.Success(fmt.Sprintf("Error: %v", err))
	}

	entities, scripts := d.scene.LoadGame(def)
	d.scene.ViewportOpen = true
	if d.scene.ViewportSize == [2]uint32{} {
		d.scene.ViewportSize = [2]uint32{defaultViewportWidth, defaultViewportHeight}
	}

	// A new game starts a fresh timeline.
	d.hist.Clear()
	d.hist.Push(history.Operation{Type: history.OpCreateGame, Definition: json.RawMessage(args.GameJSON)})

	d.emitGameStateChanged()
	return bridge.Success(fmt.Sprintf(
		"Game '%s' created with %d entities and %d active scripts. Editor window opened.",
		def.Title, entities, scripts))
}

func (d *Dispatcher) updateEntityScript(raw json.RawMessage) bridge.Response {
	var args updateScriptArgs
	if err := json.Unmarshal(raw, &args); err != nil {
		return argError(err)
	}
	ge, ok := d.scene.GameEntities[args.EntityName]
	if !ok {
		return bridge.Success(fmt.Sprintf("Error: entity '%s' not found", args.EntityName))
	}

	var old *string
	if ge.Enabled {
		prev := ge.Script
		old = &prev
	}
	ge.Script = args.Script
	ge.Enabled = args.Script != ""

	d.hist.Push(history.Operation{
		Type:      history.OpUpdateScript,
		Name:      args.EntityName,
		OldScript: old,
		NewScript: args.Script,
	})
	return bridge.Success(fmt.Sprintf("Updated script on '%s'", args.EntityName))
}

func (d *Dispatcher) addGameEntity(raw json.RawMessage) bridge.Response {
	var args addGameEntityArgs
	if err := json.Unmarshal(raw, &args); err != nil {
		return argError(err)
	}
	if !d.scene.HasGame() {
		return bridge.Success("Error: no game loaded (create one first)")
	}
	def, err := game.ParseEntityDefinition([]byte(args.EntityJSON))
	if err != nil {
		return bridge.Success(fmt.Sprintf("Error: %v", err))
	}
	if _, exists := d.scene.GameEntities[def.Name]; exists {
		return bridge.Success(fmt.Sprintf("Error: entity '%s' already exists", def.Name))
	}

	d.scene.SpawnGameEntity(*def)
	d.hist.Push(history.Operation{
		Type:       history.OpAddEntity,
		Name:       def.Name,
		EntityJSON: json.RawMessage(args.EntityJSON),
	})
	return bridge.Success(fmt.Sprintf("Added entity '%s' to game", def.Name))
}

func (d *Dispatcher) removeGameEntity(raw json.RawMessage) bridge.Response {
	var args entityNameArgs
	if err := json.Unmarshal(raw, &args); err != nil {
		return argError(err)
	}
	if !d.scene.HasGame() {
		return bridge.Success("Error: no game loaded (create one first)")
	}
	if _, ok := d.scene.GameEntities[args.Name]; !ok {
		return bridge.Success(fmt.Sprintf("Error: entity '%s' not found", args.Name))
	}

	entityJSON := d.scene.Definitions[args.Name]
	delete(d.scene.GameEntities, args.Name)
	delete(d.scene.Definitions, args.Name)

	d.hist.Push(history.Operation{
		Type:       history.OpRemoveEntity,
		Name:       args.Name,
		EntityJSON: entityJSON,
	})
	return bridge.Success(fmt.Sprintf("Removed entity '%s' from game", args.Name))
}

func (d *Dispatcher) setGameState(raw json.RawMessage) bridge.Response {
	var args setGameStateArgs
	if err := json.Unmarshal(raw, &args); err != nil {
		return argError(err)
	}
	if args.Key == "" {
		return bridge.Success("Error: state key is required")
	}

	var old *float64
	if prev, ok := d.scene.State[args.Key]; ok {
		v := prev
		old = &v
	}
	d.scene.State[args.Key] = args.Value

	d.hist.Push(history.Operation{
		Type:     history.OpSetGameState,
		Key:      args.Key,
		OldValue: old,
		NewValue: args.Value,
	})
	return bridge.Success(fmt.Sprintf("Set state '%s' = %s", args.Key, formatFloat(args.Value)))
}

func (d *Dispatcher) getGameState(raw json.RawMessage) bridge.Response {
	var args getGameStateArgs
	if err := json.Unmarshal(raw, &args); err != nil {
		return argError(err)
	}
	if args.Key != "" {
		v, ok := d.scene.State[args.Key]
		if !ok {
			return bridge.Success(fmt.Sprintf("State '%s' is not set", args.Key))
		}
		return bridge.Success(fmt.Sprintf("State '%s' = %s", args.Key, formatFloat(v)))
	}

	if len(d.scene.State) == 0 {
		return bridge.Success("No game state set")
	}
	keys := make([]string, 0, len(d.scene.State))
	for k := range d.scene.State {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	b.WriteString("Game state:")
	for _, k := range keys {
		fmt.Fprintf(&b, "\n  %s = %s", k, formatFloat(d.scene.State[k]))
	}
	return bridge.Success(b.String())
}

func (d *Dispatcher) sceneInfo() bridge.Response {
	info := map[string]any{
		"entities":      len(d.scene.Entities),
		"game_entities": len(d.scene.GameEntities),
		"has_game":      d.scene.HasGame(),
		"play_state":    d.scene.Play,
		"viewport_open": d.scene.ViewportOpen,
	}
	if d.scene.HasGame() {
		info["title"] = d.scene.Game.Title
		info["atmosphere"] = d.scene.Game.Atmosphere
	}
	data, err := json.MarshalIndent(info, "", "  ")
	if err != nil {
		return bridge.Success(fmt.Sprintf("Error: %v", err))
	}
	return bridge.Success(string(data))
}

func (d *Dispatcher) resetGame() bridge.Response {
	if !d.scene.HasGame() {
		return bridge.Success("Error: no game to reset (create one first)")
	}
	d.scene.ResetGame()
	d.hist.Push(history.Operation{Type: history.OpResetGame})
	d.emitGameStateChanged()
	return bridge.Success("Game reset")
}

func (d *Dispatcher) getHistory() bridge.Response {
	data, err := json.MarshalIndent(d.hist.Snapshot(), "", "  ")
	if err != nil {
		return bridge.Success(fmt.Sprintf("Error: %v", err))
	}
	return bridge.Success(string(data))
}

func (d *Dispatcher) exportScene(raw json.RawMessage) bridge.Response {
	var args exportSceneArgs
	if err := json.Unmarshal(raw, &args); err != nil {
		return argError(err)
	}
	if !d.scene.HasGame() {
		return bridge.Success("Error: no game to export (create one first)")
	}
	if args.Path == "" {
		args.Path = "game_export.json"
	}

	path, err := validation.SanitizeExportPath(d.cfg.ExportDir, args.Path)
	if err != nil {
		return bridge.Success(fmt.Sprintf("Error: %v", err))
	}
	data, err := d.scene.Export()
	if err != nil {
		return bridge.Success(fmt.Sprintf("Error: %v", err))
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return bridge.Success(fmt.Sprintf("Error: writing export: %v", err))
	}

	audit.Log(&audit.Event{Operation: audit.OpSceneExport, Success: true, Details: map[string]any{"path": path}})
	return bridge.Success(fmt.Sprintf("Exported scene to '%s' (%d bytes)", path, len(data)))
}

func vec3(v []float64) [3]float64 {
	var out [3]float64
	copy(out[:], v)
	return out
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func formatVec3(v [3]float64) string {
	return fmt.Sprintf("[%s, %s, %s]", formatFloat(v[0]), formatFloat(v[1]), formatFloat(v[2]))
}
