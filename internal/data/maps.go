package data

import (
	"fmt"
	"math/rand"
	"os"

	"gopkg.in/yaml.v3"
)

// SpawnPoint is one tank spawn location with facing.
type SpawnPoint struct {
	Position Vec3    `yaml:"position"`
	Team     string  `yaml:"team"` // "", "red", "blue"
	Yaw      float64 `yaml:"yaw"`
}

// TeamColorOf resolves the spawn point's team tag.
func (s SpawnPoint) TeamColorOf() TeamColor {
	switch s.Team {
	case "red":
		return TeamRed
	case "blue":
		return TeamBlue
	default:
		return TeamNone
	}
}

// BonusRegion is one map region where a bonus box can spawn.
type BonusRegion struct {
	Type      string  `yaml:"type"` // repair, armor, damage, speed, gold
	Position  Vec3    `yaml:"position"`
	Parachute bool    `yaml:"parachute"`
	Cooldown  float64 `yaml:"cooldown"` // seconds, 0 = default
}

// BonusTypeOf resolves the region's bonus type tag.
func (b BonusRegion) BonusTypeOf() (BonusType, error) {
	switch b.Type {
	case "repair":
		return BonusRepair, nil
	case "armor":
		return BonusArmor, nil
	case "damage":
		return BonusDamage, nil
	case "speed":
		return BonusSpeed, nil
	case "gold":
		return BonusGold, nil
	default:
		return 0, fmt.Errorf("unknown bonus type %q", b.Type)
	}
}

// FlagPedestals holds the two CTF pedestal positions.
type FlagPedestals struct {
	Red  Vec3 `yaml:"red"`
	Blue Vec3 `yaml:"blue"`
}

// MapInfo holds static metadata for a single map, loaded from maps.yaml.
type MapInfo struct {
	ID          int64                    `yaml:"id"`
	Name        string                   `yaml:"name"`
	MatchMaking bool                     `yaml:"matchmaking"`
	MaxPlayers  int                      `yaml:"max_players"`
	HasMesh     bool                     `yaml:"has_mesh"`
	MeshFile    string                   `yaml:"mesh_file"`
	SpawnPoints map[string][]SpawnPoint  `yaml:"spawn_points"`  // keyed by mode
	BonusRegion map[string][]BonusRegion `yaml:"bonus_regions"` // keyed by mode
	Flags       *FlagPedestals           `yaml:"flags"`
}

// HasSpawnPoints reports whether the map can host the given mode.
func (m *MapInfo) HasSpawnPoints(mode BattleMode) bool {
	return len(m.SpawnPoints[mode.String()]) > 0
}

// SpawnPointsFor returns the map's spawn points for a mode and team.
// Team modes filter on the spawn's team tag; DM returns everything.
func (m *MapInfo) SpawnPointsFor(mode BattleMode, team TeamColor) []SpawnPoint {
	points := m.SpawnPoints[mode.String()]
	if team == TeamNone {
		return points
	}
	var filtered []SpawnPoint
	for _, p := range points {
		if p.TeamColorOf() == team {
			filtered = append(filtered, p)
		}
	}
	return filtered
}

// BonusRegionsFor returns the map's bonus regions for a mode.
func (m *MapInfo) BonusRegionsFor(mode BattleMode) []BonusRegion {
	return m.BonusRegion[mode.String()]
}

// MapCatalog provides map metadata lookups. Populated at startup and
// read-only afterwards.
type MapCatalog struct {
	maps []*MapInfo
	byID map[int64]*MapInfo
}

// LoadMapCatalog reads the map list from a YAML file.
func LoadMapCatalog(path string) (*MapCatalog, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read map catalog %s: %w", path, err)
	}

	var maps []*MapInfo
	if err := yaml.Unmarshal(raw, &maps); err != nil {
		return nil, fmt.Errorf("parse map catalog %s: %w", path, err)
	}

	return NewMapCatalog(maps)
}

// NewMapCatalog builds a catalog from already-decoded map entries.
func NewMapCatalog(maps []*MapInfo) (*MapCatalog, error) {
	byID := make(map[int64]*MapInfo, len(maps))
	for _, m := range maps {
		if _, dup := byID[m.ID]; dup {
			return nil, fmt.Errorf("duplicate map id %d (%s)", m.ID, m.Name)
		}
		byID[m.ID] = m
	}
	return &MapCatalog{maps: maps, byID: byID}, nil
}

// ByID returns the map with the given id, or nil.
func (c *MapCatalog) ByID(id int64) *MapInfo {
	return c.byID[id]
}

// All returns every map in the catalog.
func (c *MapCatalog) All() []*MapInfo {
	return c.maps
}

// MatchmakingMaps returns the maps eligible for matchmaking in a mode.
func (c *MapCatalog) MatchmakingMaps(mode BattleMode) []*MapInfo {
	var eligible []*MapInfo
	for _, m := range c.maps {
		if m.MatchMaking && m.HasSpawnPoints(mode) {
			eligible = append(eligible, m)
		}
	}
	return eligible
}

// RandomMatchmakingMap picks a random eligible map for a mode.
func (c *MapCatalog) RandomMatchmakingMap(rng *rand.Rand, mode BattleMode) (*MapInfo, error) {
	eligible := c.MatchmakingMaps(mode)
	if len(eligible) == 0 {
		return nil, fmt.Errorf("no matchmaking maps for mode %s", mode)
	}
	return eligible[rng.Intn(len(eligible))], nil
}

// Count returns the number of maps loaded.
func (c *MapCatalog) Count() int {
	return len(c.maps)
}
