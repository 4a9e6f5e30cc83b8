package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/matthewjberger/summoner/internal/bridge"
	mcp_sdk "github.com/modelcontextprotocol/go-sdk/mcp"
)

// userInputMaxAttempts extends the poll window for request_user_input: the
// response only arrives after a human replies, so give them two minutes.
const userInputMaxAttempts = 2400

// callBridge enqueues a tool command and polls for the dispatcher's reply.
// Tool failures are reported as text so the agent can read and react to
// them; a timeout produces the standard timeout message rather than an
// MCP-level error.
func (s *Server) callBridge(name string, params any) (*mcp_sdk.CallToolResult, any, error) {
	return s.callBridgeWithWindow(name, params, bridge.DefaultMaxAttempts)
}

func (s *Server) callBridgeWithWindow(name string, params any, maxAttempts int) (*mcp_sdk.CallToolResult, any, error) {
	args, err := json.Marshal(params)
	if err != nil {
		return nil, nil, SanitizeError(err, name)
	}

	s.bridge.Enqueue(bridge.Command{Name: name, Args: args})

	resp, err := s.bridge.AwaitResponse(bridge.DefaultPollInterval, maxAttempts)
	if err != nil {
		return NewTextResult(bridge.TimeoutText), nil, nil
	}
	if resp.Kind == bridge.ResponseUserInput {
		return NewTextResult("User responded: " + resp.Text), nil, nil
	}
	return NewTextResult(resp.Text), nil, nil
}

// registerAllTools registers all MCP tools with the registry
func (s *Server) registerAllTools(r *Registry) {
	s.registerUITools(r)
	s.registerSceneTools(r)
	s.registerGameTools(r)
	s.registerHistoryTools(r)
}

// Tool parameter structs. Field names match the dispatcher's argument
// payloads, so the marshaled params unmarshal cleanly on the other side.

type NotificationParams struct {
	Title string `json:"title" description:"Notification title"`
	Body  string `json:"body" description:"Notification body text"`
}

type DisplayContentParams struct {
	Content string `json:"content" description:"Content to display in the frontend"`
	Format  string `json:"format,omitempty" description:"Content format: text, markdown, or code (default: text)"`
}

type UserInputParams struct {
	RequestID string   `json:"request_id,omitempty" description:"Generated automatically; do not set"`
	Prompt    string   `json:"prompt" description:"Question to show the user"`
	Options   []string `json:"options,omitempty" description:"Optional choices presented as buttons"`
}

type StatusMessageParams struct {
	Message string `json:"message" description:"Status bar message"`
}

type OpenWindowParams struct {
	Width  uint32 `json:"width,omitempty" description:"Window width in pixels (default: 800)"`
	Height uint32 `json:"height,omitempty" description:"Window height in pixels (default: 600)"`
}

type SpawnEntityParams struct {
	Name     string    `json:"name" description:"Unique entity name"`
	Shape    string    `json:"shape" description:"Primitive shape: cube, sphere, cylinder, cone, torus, or plane"`
	Position []float64 `json:"position,omitempty" description:"World position [x, y, z] (default: origin)"`
	Scale    []float64 `json:"scale,omitempty" description:"Scale factors [x, y, z] (default: [1, 1, 1])"`
}

type EntityNameParams struct {
	Name string `json:"name" description:"Entity name"`
}

type MoveEntityParams struct {
	Name     string    `json:"name" description:"Entity name"`
	Position []float64 `json:"position" description:"New world position [x, y, z]"`
}

type RotateEntityParams struct {
	Name     string    `json:"name" description:"Entity name"`
	Rotation []float64 `json:"rotation" description:"Euler rotation in radians [x, y, z]"`
}

type ScaleEntityParams struct {
	Name  string    `json:"name" description:"Entity name"`
	Scale []float64 `json:"scale" description:"New scale factors [x, y, z]"`
}

type SetCameraParams struct {
	Focus  []float64 `json:"focus,omitempty" description:"Orbit focus point [x, y, z]"`
	Radius float64   `json:"radius,omitempty" description:"Distance from focus"`
	Yaw    float64   `json:"yaw,omitempty" description:"Yaw angle in radians"`
	Pitch  float64   `json:"pitch,omitempty" description:"Pitch angle in radians"`
}

type EmptyParams struct{}

type CreateGameParams struct {
	GameJSON string `json:"game_json" description:"Complete game definition as a JSON string (see tool description for the schema)"`
}

type UpdateScriptParams struct {
	EntityName string `json:"entity_name" description:"Game entity to update"`
	Script     string `json:"script" description:"New Lua script body; empty string disables scripting for the entity"`
}

type AddGameEntityParams struct {
	EntityJSON string `json:"entity_json" description:"Entity definition as a JSON string (same shape as entries in the game definition's entities array)"`
}

type SetGameStateParams struct {
	Key   string  `json:"key" description:"State variable name"`
	Value float64 `json:"value" description:"Numeric value to store"`
}

type GetGameStateParams struct {
	Key string `json:"key,omitempty" description:"State variable name; omit to list all state"`
}

type ExportSceneParams struct {
	Path string `json:"path,omitempty" description:"Relative output path (default: game_export.json)"`
}

func (s *Server) registerUITools(r *Registry) {
	Register(r, ToolDef{
		Name: "show_notification",
		Description: `Show a desktop-style notification in the frontend.

Use for short, transient messages the user should notice: task finished,
something needs attention. For longer content use display_content instead.`,
	}, func(ctx context.Context, req *mcp_sdk.CallToolRequest, params NotificationParams) (*mcp_sdk.CallToolResult, any, error) {
		return s.callBridge("show_notification", params)
	})

	Register(r, ToolDef{
		Name: "display_content",
		Description: `Display a block of content in the frontend content panel.

Supports plain text, markdown (rendered), and code (monospace with no
rendering). Replaces whatever the panel currently shows.`,
	}, func(ctx context.Context, req *mcp_sdk.CallToolRequest, params DisplayContentParams) (*mcp_sdk.CallToolResult, any, error) {
		return s.callBridge("display_content", params)
	})

	Register(r, ToolDef{
		Name: "request_user_input",
		Description: `Ask the user a question and wait for their answer.

Blocks until the user responds or the wait times out (about two minutes).
Provide options to render clickable choices; otherwise the user gets a free
text field. The result text is the user's literal answer.`,
	}, func(ctx context.Context, req *mcp_sdk.CallToolRequest, params UserInputParams) (*mcp_sdk.CallToolResult, any, error) {
		params.RequestID = fmt.Sprintf("req_%d", time.Now().UnixMilli())
		return s.callBridgeWithWindow("request_user_input", params, userInputMaxAttempts)
	})

	Register(r, ToolDef{
		Name: "set_status_message",
		Description: `Set the status bar message shown in the frontend.

Persistent until replaced. Keep it short; it is a one line status strip.`,
	}, func(ctx context.Context, req *mcp_sdk.CallToolRequest, params StatusMessageParams) (*mcp_sdk.CallToolResult, any, error) {
		return s.callBridge("set_status_message", params)
	})

	Register(r, ToolDef{
		Name: "open_3d_window",
		Description: `Open the 3D viewport window.

No-op with a notice if it is already open. create_game opens it
automatically, so this is mainly for free-form scene building.`,
	}, func(ctx context.Context, req *mcp_sdk.CallToolRequest, params OpenWindowParams) (*mcp_sdk.CallToolResult, any, error) {
		return s.callBridge("open_3d_window", params)
	})

	Register(r, ToolDef{
		Name:        "close_3d_window",
		Description: `Close the 3D viewport window. No-op with a notice if it is not open.`,
	}, func(ctx context.Context, req *mcp_sdk.CallToolRequest, params EmptyParams) (*mcp_sdk.CallToolResult, any, error) {
		return s.callBridge("close_3d_window", params)
	})
}

func (s *Server) registerSceneTools(r *Registry) {
	Register(r, ToolDef{
		Name: "spawn_entity",
		Description: `Spawn a primitive entity in the 3D scene.

Shapes: cube, sphere, cylinder, cone, torus, plane. Names must be unique;
spawning a duplicate name fails. These are free-form scene entities, separate
from game entities created via create_game.`,
	}, func(ctx context.Context, req *mcp_sdk.CallToolRequest, params SpawnEntityParams) (*mcp_sdk.CallToolResult, any, error) {
		return s.callBridge("spawn_entity", params)
	})

	Register(r, ToolDef{
		Name:        "remove_entity",
		Description: `Remove a scene entity by name.`,
	}, func(ctx context.Context, req *mcp_sdk.CallToolRequest, params EntityNameParams) (*mcp_sdk.CallToolResult, any, error) {
		return s.callBridge("remove_entity", params)
	})

	Register(r, ToolDef{
		Name:        "move_entity",
		Description: `Move a scene entity to a new world position.`,
	}, func(ctx context.Context, req *mcp_sdk.CallToolRequest, params MoveEntityParams) (*mcp_sdk.CallToolResult, any, error) {
		return s.callBridge("move_entity", params)
	})

	Register(r, ToolDef{
		Name:        "rotate_entity",
		Description: `Set a scene entity's rotation (Euler angles in radians).`,
	}, func(ctx context.Context, req *mcp_sdk.CallToolRequest, params RotateEntityParams) (*mcp_sdk.CallToolResult, any, error) {
		return s.callBridge("rotate_entity", params)
	})

	Register(r, ToolDef{
		Name:        "scale_entity",
		Description: `Set a scene entity's scale factors.`,
	}, func(ctx context.Context, req *mcp_sdk.CallToolRequest, params ScaleEntityParams) (*mcp_sdk.CallToolResult, any, error) {
		return s.callBridge("scale_entity", params)
	})

	Register(r, ToolDef{
		Name: "set_camera",
		Description: `Position the orbit camera.

The camera orbits a focus point at a given radius; yaw and pitch are in
radians. Omitted fields default to zero, so pass every field you care about.`,
	}, func(ctx context.Context, req *mcp_sdk.CallToolRequest, params SetCameraParams) (*mcp_sdk.CallToolResult, any, error) {
		return s.callBridge("set_camera", params)
	})

	Register(r, ToolDef{
		Name:        "list_entities",
		Description: `List the names of all scene entities, sorted alphabetically.`,
	}, func(ctx context.Context, req *mcp_sdk.CallToolRequest, params EmptyParams) (*mcp_sdk.CallToolResult, any, error) {
		return s.callBridge("list_entities", params)
	})

	Register(r, ToolDef{
		Name:        "clear_scene",
		Description: `Remove all scene entities. Game entities are not affected.`,
	}, func(ctx context.Context, req *mcp_sdk.CallToolRequest, params EmptyParams) (*mcp_sdk.CallToolResult, any, error) {
		return s.callBridge("clear_scene", params)
	})
}

func (s *Server) registerGameTools(r *Registry) {
	Register(r, ToolDef{
		Name: "create_game",
		Description: `Create a complete game from a JSON definition and open the editor window.

Replaces any existing game and resets the operation history. The definition
is passed as a JSON string in game_json:

{
  "title": "Breakout",
  "atmosphere": "Space",
  "camera": { "position": [0, 5, 18], "fov": 1.0 },
  "sun": { "direction": [5, 10, 5], "intensity": 5.0 },
  "initial_state": { "score": 0, "lives": 3 },
  "entities": [
    {
      "name": "paddle",
      "mesh": "cube",
      "position": [0, -8, 0],
      "scale": [3, 0.5, 1],
      "color": [0.2, 0.6, 1.0, 1.0],
      "roughness": 0.5,
      "script": "entity.x = entity.x + input.axis_x * 10 * dt"
    },
    {
      "name": "brick",
      "mesh": "cube",
      "position": [0, 5, 0],
      "grid": { "count": [8, 3], "spacing": [2, 1] }
    }
  ]
}

Atmospheres: None, Sky, CloudySky, Space, Nebula, Sunset, DayNight
(unknown values fall back to Sky).

Meshes: cube, sphere, cylinder, cone, torus, plane.

Grid system: an entity with a "grid" block of "count": [cols, rows] expands
into cols*rows copies named name_0, name_1, ... laid out row by row, centered
horizontally on the entity's position. spacing is [horizontal, vertical].

Scripting: each entity may carry a Lua script run every frame. The script
sees "entity" (x/y/z, rotation, scale), "state" (shared numeric game state),
"input" (axis_x, axis_y, buttons), and "dt" (frame delta seconds). Scripts
on grid entities run per clone.

Only "title" is required; every other field has sensible defaults.`,
	}, func(ctx context.Context, req *mcp_sdk.CallToolRequest, params CreateGameParams) (*mcp_sdk.CallToolResult, any, error) {
		return s.callBridge("create_game", params)
	})

	Register(r, ToolDef{
		Name: "update_entity_script",
		Description: `Replace the Lua script on a game entity.

Pass an empty script to disable scripting for the entity. Recorded in the
operation history, so undo restores the previous script.`,
	}, func(ctx context.Context, req *mcp_sdk.CallToolRequest, params UpdateScriptParams) (*mcp_sdk.CallToolResult, any, error) {
		return s.callBridge("update_entity_script", params)
	})

	Register(r, ToolDef{
		Name: "add_game_entity",
		Description: `Add a single entity to the loaded game.

entity_json uses the same shape as entries in create_game's entities array
and adds one entity; a "grid" block is not expanded here. Requires a loaded
game.`,
	}, func(ctx context.Context, req *mcp_sdk.CallToolRequest, params AddGameEntityParams) (*mcp_sdk.CallToolResult, any, error) {
		return s.callBridge("add_game_entity", params)
	})

	Register(r, ToolDef{
		Name:        "remove_game_entity",
		Description: `Remove an entity from the loaded game. Undo restores it.`,
	}, func(ctx context.Context, req *mcp_sdk.CallToolRequest, params EntityNameParams) (*mcp_sdk.CallToolResult, any, error) {
		return s.callBridge("remove_game_entity", params)
	})

	Register(r, ToolDef{
		Name: "set_game_state",
		Description: `Set a numeric game state variable.

State is a flat string-to-number map shared with entity scripts. Changes are
recorded in the operation history.`,
	}, func(ctx context.Context, req *mcp_sdk.CallToolRequest, params SetGameStateParams) (*mcp_sdk.CallToolResult, any, error) {
		return s.callBridge("set_game_state", params)
	})

	Register(r, ToolDef{
		Name:        "get_game_state",
		Description: `Read one game state variable, or all of them when key is omitted.`,
	}, func(ctx context.Context, req *mcp_sdk.CallToolRequest, params GetGameStateParams) (*mcp_sdk.CallToolResult, any, error) {
		return s.callBridge("get_game_state", params)
	})

	Register(r, ToolDef{
		Name:        "get_scene_info",
		Description: `Summarize the current scene: entity counts, loaded game, play state, viewport.`,
	}, func(ctx context.Context, req *mcp_sdk.CallToolRequest, params EmptyParams) (*mcp_sdk.CallToolResult, any, error) {
		return s.callBridge("get_scene_info", params)
	})

	Register(r, ToolDef{
		Name: "reset_game",
		Description: `Reset the loaded game to its definition: entities respawn, state reverts.

The reset itself is recorded in the operation history.`,
	}, func(ctx context.Context, req *mcp_sdk.CallToolRequest, params EmptyParams) (*mcp_sdk.CallToolResult, any, error) {
		return s.callBridge("reset_game", params)
	})
}

func (s *Server) registerHistoryTools(r *Registry) {
	Register(r, ToolDef{
		Name:        "undo",
		Description: `Undo the most recent game operation. Returns what was undone.`,
	}, func(ctx context.Context, req *mcp_sdk.CallToolRequest, params EmptyParams) (*mcp_sdk.CallToolResult, any, error) {
		return s.callBridge("undo", params)
	})

	Register(r, ToolDef{
		Name:        "redo",
		Description: `Redo the most recently undone game operation.`,
	}, func(ctx context.Context, req *mcp_sdk.CallToolRequest, params EmptyParams) (*mcp_sdk.CallToolResult, any, error) {
		return s.callBridge("redo", params)
	})

	Register(r, ToolDef{
		Name: "get_history",
		Description: `Dump the operation history tree as JSON.

Operations form a tree: undoing and then doing something new creates a
branch. The dump marks the current position and which operations can be
redone.`,
	}, func(ctx context.Context, req *mcp_sdk.CallToolRequest, params EmptyParams) (*mcp_sdk.CallToolResult, any, error) {
		return s.callBridge("get_history", params)
	})

	Register(r, ToolDef{
		Name: "export_scene",
		Description: `Export the loaded game and scene to a JSON file.

The path is relative to the configured export directory; traversal outside
it is rejected.`,
	}, func(ctx context.Context, req *mcp_sdk.CallToolRequest, params ExportSceneParams) (*mcp_sdk.CallToolResult, any, error) {
		return s.callBridge("export_scene", params)
	})
}
