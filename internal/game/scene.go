package game

import (
	"encoding/json"
	"sort"

	"github.com/matthewjberger/summoner/internal/protocol"
)

// Entity is a sandbox entity spawned directly by the agent, outside any
// loaded game.
type Entity struct {
	Name     string     `json:"name"`
	Shape    string     `json:"shape"`
	Position [3]float64 `json:"position"`
	Rotation [3]float64 `json:"rotation"`
	Scale    [3]float64 `json:"scale"`
}

// GameEntity is a live instance of a game entity definition.
type GameEntity struct {
	Definition EntityDefinition
	Script     string
	Enabled    bool
}

// Camera is the orbit camera state set by set_camera.
type Camera struct {
	Focus  [3]float64 `json:"focus"`
	Radius float64    `json:"radius"`
	Yaw    float64    `json:"yaw"`
	Pitch  float64    `json:"pitch"`
}

// Scene is the whole mutable world: sandbox entities, the loaded game, its
// state values, and the viewport flag. Owned exclusively by the dispatcher
// goroutine; no internal locking.
type Scene struct {
	Entities     map[string]*Entity
	GameEntities map[string]*GameEntity
	Definitions  map[string]json.RawMessage
	Game         *GameDefinition
	State        map[string]float64
	Play         protocol.PlayState

	ViewportOpen bool
	ViewportSize [2]uint32
	Camera       Camera
	Status       string
}

// NewScene returns an empty scene.
func NewScene() *Scene {
	return &Scene{
		Entities:     make(map[string]*Entity),
		GameEntities: make(map[string]*GameEntity),
		Definitions:  make(map[string]json.RawMessage),
		State:        make(map[string]float64),
		Play:         protocol.PlayStopped,
		Camera:       Camera{Radius: 20},
	}
}

// HasGame reports whether a game is loaded.
func (s *Scene) HasGame() bool {
	return s.Game != nil
}

// SpawnGameEntity instantiates one entity definition, keeping the original
// JSON so a later removal can be undone.
func (s *Scene) SpawnGameEntity(def EntityDefinition) {
	script := ""
	enabled := false
	if def.Script != nil {
		script = *def.Script
		enabled = script != ""
	}
	s.GameEntities[def.Name] = &GameEntity{Definition: def, Script: script, Enabled: enabled}
	if raw, err := json.Marshal(def); err == nil {
		s.Definitions[def.Name] = raw
	}
}

// LoadGame replaces any current game with def, expanding grids and applying
// the initial state. Returns the entity and active script counts.
func (s *Scene) LoadGame(def *GameDefinition) (entities, scripts int) {
	s.TeardownGame()
	s.Game = def

	s.State = make(map[string]float64, len(def.InitialState))
	for k, v := range def.InitialState {
		s.State[k] = v
	}

	for _, e := range ExpandEntityDefinitions(def.Entities) {
		s.SpawnGameEntity(e)
		if e.Script != nil && *e.Script != "" {
			scripts++
		}
	}
	return len(s.GameEntities), scripts
}

// TeardownGame removes the loaded game, its entities, and its state.
func (s *Scene) TeardownGame() {
	s.Game = nil
	s.GameEntities = make(map[string]*GameEntity)
	s.Definitions = make(map[string]json.RawMessage)
	s.State = make(map[string]float64)
	s.Play = protocol.PlayStopped
}

// ResetGame restores the initial state and respawns every entity from the
// game definition. No-op without a game.
func (s *Scene) ResetGame() {
	if s.Game == nil {
		return
	}
	def := s.Game
	s.GameEntities = make(map[string]*GameEntity)
	s.Definitions = make(map[string]json.RawMessage)
	s.State = make(map[string]float64, len(def.InitialState))
	for k, v := range def.InitialState {
		s.State[k] = v
	}
	for _, e := range ExpandEntityDefinitions(def.Entities) {
		s.SpawnGameEntity(e)
	}
	s.Play = protocol.PlayStopped
}

// SetPlay transitions the play state. Playing requires a loaded game and
// pausing only applies mid-play; stopping always resets the game world and
// lands on Stopped.
func (s *Scene) SetPlay(state protocol.PlayState) {
	switch state {
	case protocol.PlayPlaying:
		if s.Game == nil {
			return
		}
		s.Play = protocol.PlayPlaying
	case protocol.PlayPaused:
		if s.Play != protocol.PlayPlaying {
			return
		}
		s.Play = protocol.PlayPaused
	case protocol.PlayStopped:
		s.ResetGame()
		s.Play = protocol.PlayStopped
	}
}

// EntityNames returns sandbox entity names in sorted order.
func (s *Scene) EntityNames() []string {
	names := make([]string, 0, len(s.Entities))
	for name := range s.Entities {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ClearEntities removes all sandbox entities and returns how many there were.
func (s *Scene) ClearEntities() int {
	n := len(s.Entities)
	s.Entities = make(map[string]*Entity)
	return n
}

// exportDocument is the JSON shape written by export_scene.
type exportDocument struct {
	Title      string             `json:"title"`
	Atmosphere string             `json:"atmosphere"`
	Camera     CameraDefinition   `json:"camera"`
	Sun        SunDefinition      `json:"sun"`
	State      map[string]float64 `json:"state"`
	Entities   []EntityDefinition `json:"entities"`
}

// Export renders the loaded game and its current entity set as a pretty
// printed JSON document.
func (s *Scene) Export() ([]byte, error) {
	doc := exportDocument{
		Title:      s.Game.Title,
		Atmosphere: s.Game.Atmosphere,
		Camera:     s.Game.Camera,
		Sun:        s.Game.Sun,
		State:      s.State,
	}

	names := make([]string, 0, len(s.GameEntities))
	for name := range s.GameEntities {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		ge := s.GameEntities[name]
		def := ge.Definition
		if ge.Enabled {
			script := ge.Script
			def.Script = &script
		} else {
			def.Script = nil
		}
		doc.Entities = append(doc.Entities, def)
	}

	return json.MarshalIndent(doc, "", "  ")
}
