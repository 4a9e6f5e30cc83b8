// Package game holds the game definition model and the in-memory scene
// state the tool surface operates on.
package game

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Atmosphere names accepted by a game definition. Unknown values fall back
// to Sky.
var ValidAtmospheres = []string{"None", "Sky", "CloudySky", "Space", "Nebula", "Sunset", "DayNight"}

// NormalizeAtmosphere returns the canonical atmosphere name for s, or "Sky"
// when s is empty or unrecognized.
func NormalizeAtmosphere(s string) string {
	for _, a := range ValidAtmospheres {
		if strings.EqualFold(s, a) {
			return a
		}
	}
	return "Sky"
}

// ValidShapes are the mesh shapes spawn_entity accepts, in lowercase.
var ValidShapes = []string{"cube", "sphere", "cylinder", "cone", "torus", "plane"}

// CapitalizeMeshName maps a shape name of any case to its canonical
// capitalized form. Unknown names pass through unchanged.
func CapitalizeMeshName(name string) string {
	switch strings.ToLower(name) {
	case "cube":
		return "Cube"
	case "sphere":
		return "Sphere"
	case "cylinder":
		return "Cylinder"
	case "cone":
		return "Cone"
	case "torus":
		return "Torus"
	case "plane":
		return "Plane"
	}
	return name
}

// IsValidShape reports whether name is a known shape, case-insensitively.
func IsValidShape(name string) bool {
	lower := strings.ToLower(name)
	for _, s := range ValidShapes {
		if s == lower {
			return true
		}
	}
	return false
}

// CameraDefinition positions the game camera.
type CameraDefinition struct {
	Position [3]float64 `json:"position"`
	FOV      float64    `json:"fov"`
}

// SunDefinition configures the directional light.
type SunDefinition struct {
	Direction [3]float64 `json:"direction"`
	Intensity float64    `json:"intensity"`
}

// GridDefinition expands an entity into a grid of instances.
type GridDefinition struct {
	Count   [2]uint32  `json:"count"`
	Spacing [2]float64 `json:"spacing"`
}

// EntityDefinition describes one entity in a game document.
type EntityDefinition struct {
	Name      string          `json:"name"`
	Mesh      string          `json:"mesh"`
	Position  [3]float64      `json:"position"`
	Scale     [3]float64      `json:"scale"`
	Color     [4]float64      `json:"color"`
	Roughness float64         `json:"roughness"`
	Metallic  float64         `json:"metallic"`
	Emissive  [4]float64      `json:"emissive"`
	Script    *string         `json:"script,omitempty"`
	Grid      *GridDefinition `json:"grid,omitempty"`
}

// GameDefinition is a complete game document.
type GameDefinition struct {
	Title        string             `json:"title"`
	Atmosphere   string             `json:"atmosphere"`
	Camera       CameraDefinition   `json:"camera"`
	Sun          SunDefinition      `json:"sun"`
	InitialState map[string]float64 `json:"initial_state"`
	Entities     []EntityDefinition `json:"entities"`
}

// Defaults applied when a document omits fields. Absent is distinguished
// from an explicit zero via pointer fields in the raw structs below.

func (c *CameraDefinition) UnmarshalJSON(data []byte) error {
	var raw struct {
		Position *[3]float64 `json:"position"`
		FOV      *float64    `json:"fov"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	c.Position = [3]float64{0, 5, 18}
	c.FOV = 1.0
	if raw.Position != nil {
		c.Position = *raw.Position
	}
	if raw.FOV != nil {
		c.FOV = *raw.FOV
	}
	return nil
}

func (s *SunDefinition) UnmarshalJSON(data []byte) error {
	var raw struct {
		Direction *[3]float64 `json:"direction"`
		Intensity *float64    `json:"intensity"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	s.Direction = [3]float64{5, 10, 5}
	s.Intensity = 5.0
	if raw.Direction != nil {
		s.Direction = *raw.Direction
	}
	if raw.Intensity != nil {
		s.Intensity = *raw.Intensity
	}
	return nil
}

func (g *GridDefinition) UnmarshalJSON(data []byte) error {
	var raw struct {
		Count   [2]uint32   `json:"count"`
		Spacing *[2]float64 `json:"spacing"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	g.Count = raw.Count
	g.Spacing = [2]float64{2, 1}
	if raw.Spacing != nil {
		g.Spacing = *raw.Spacing
	}
	return nil
}

func (e *EntityDefinition) UnmarshalJSON(data []byte) error {
	var raw struct {
		Name      string          `json:"name"`
		Mesh      *string         `json:"mesh"`
		Position  [3]float64      `json:"position"`
		Scale     *[3]float64     `json:"scale"`
		Color     *[4]float64     `json:"color"`
		Roughness *float64        `json:"roughness"`
		Metallic  float64         `json:"metallic"`
		Emissive  [4]float64      `json:"emissive"`
		Script    *string         `json:"script"`
		Grid      *GridDefinition `json:"grid"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	e.Name = raw.Name
	e.Mesh = "Cube"
	if raw.Mesh != nil {
		e.Mesh = CapitalizeMeshName(*raw.Mesh)
	}
	e.Position = raw.Position
	e.Scale = [3]float64{1, 1, 1}
	if raw.Scale != nil {
		e.Scale = *raw.Scale
	}
	e.Color = [4]float64{1, 1, 1, 1}
	if raw.Color != nil {
		e.Color = *raw.Color
	}
	e.Roughness = 0.5
	if raw.Roughness != nil {
		e.Roughness = *raw.Roughness
	}
	e.Metallic = raw.Metallic
	e.Emissive = raw.Emissive
	e.Script = raw.Script
	e.Grid = raw.Grid
	return nil
}

func (g *GameDefinition) UnmarshalJSON(data []byte) error {
	var raw struct {
		Title        string             `json:"title"`
		Atmosphere   *string            `json:"atmosphere"`
		Camera       *CameraDefinition  `json:"camera"`
		Sun          *SunDefinition     `json:"sun"`
		InitialState map[string]float64 `json:"initial_state"`
		Entities     []EntityDefinition `json:"entities"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	g.Title = raw.Title
	g.Atmosphere = "Sky"
	if raw.Atmosphere != nil {
		g.Atmosphere = NormalizeAtmosphere(*raw.Atmosphere)
	}
	g.Camera = CameraDefinition{Position: [3]float64{0, 5, 18}, FOV: 1.0}
	if raw.Camera != nil {
		g.Camera = *raw.Camera
	}
	g.Sun = SunDefinition{Direction: [3]float64{5, 10, 5}, Intensity: 5.0}
	if raw.Sun != nil {
		g.Sun = *raw.Sun
	}
	g.InitialState = raw.InitialState
	if g.InitialState == nil {
		g.InitialState = map[string]float64{}
	}
	g.Entities = raw.Entities
	return nil
}

// ParseGameDefinition parses a game document, applying defaults.
func ParseGameDefinition(data []byte) (*GameDefinition, error) {
	var def GameDefinition
	if err := json.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("invalid game JSON: %w", err)
	}
	if def.Title == "" {
		return nil, fmt.Errorf("game definition requires a title")
	}
	return &def, nil
}

// ParseEntityDefinition parses a single entity document.
func ParseEntityDefinition(data []byte) (*EntityDefinition, error) {
	var def EntityDefinition
	if err := json.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("invalid entity JSON: %w", err)
	}
	if def.Name == "" {
		return nil, fmt.Errorf("entity definition requires a name")
	}
	return &def, nil
}

// ExpandEntityDefinitions replaces grid entities with their instances. An
// entity with a grid of cols x rows becomes cols*rows clones named
// Name_{row*cols+col}, laid out centered on the original x position and
// stacked upward per row. Non-grid entities pass through unchanged.
func ExpandEntityDefinitions(defs []EntityDefinition) []EntityDefinition {
	var out []EntityDefinition
	for _, def := range defs {
		if def.Grid == nil {
			out = append(out, def)
			continue
		}
		cols := int(def.Grid.Count[0])
		rows := int(def.Grid.Count[1])
		spacingX := def.Grid.Spacing[0]
		spacingY := def.Grid.Spacing[1]
		startX := def.Position[0] - float64(cols-1)*spacingX/2
		for row := 0; row < rows; row++ {
			for col := 0; col < cols; col++ {
				inst := def
				inst.Name = fmt.Sprintf("%s_%d", def.Name, row*cols+col)
				inst.Position = [3]float64{
					startX + float64(col)*spacingX,
					def.Position[1] + float64(row)*spacingY,
					def.Position[2],
				}
				inst.Grid = nil
				out = append(out, inst)
			}
		}
	}
	return out
}
