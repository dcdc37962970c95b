package data

import (
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func catalogMaps() []*MapInfo {
	return []*MapInfo{
		{
			ID:          1,
			Name:        "Open",
			MatchMaking: true,
			MaxPlayers:  16,
			SpawnPoints: map[string][]SpawnPoint{
				"DM": {{Position: Vec3{X: 1}}},
				"TDM": {
					{Position: Vec3{X: -5}, Team: "red"},
					{Position: Vec3{X: 5}, Team: "blue"},
					{Position: Vec3{X: 0}},
				},
			},
		},
		{
			ID:          2,
			Name:        "Closed",
			MatchMaking: false,
			SpawnPoints: map[string][]SpawnPoint{
				"DM": {{Position: Vec3{}}},
			},
		},
	}
}

func TestMapCatalog(t *testing.T) {
	catalog, err := NewMapCatalog(catalogMaps())
	require.NoError(t, err)

	t.Run("lookup by id", func(t *testing.T) {
		require.Equal(t, "Open", catalog.ByID(1).Name)
		require.Nil(t, catalog.ByID(99))
		require.Equal(t, 2, catalog.Count())
	})

	t.Run("duplicate ids are rejected", func(t *testing.T) {
		_, err := NewMapCatalog([]*MapInfo{{ID: 1}, {ID: 1}})
		require.Error(t, err)
	})

	t.Run("matchmaking eligibility needs flag and spawns", func(t *testing.T) {
		require.Len(t, catalog.MatchmakingMaps(ModeDM), 1)
		require.Len(t, catalog.MatchmakingMaps(ModeTDM), 1)
		require.Empty(t, catalog.MatchmakingMaps(ModeCTF))

		rng := rand.New(rand.NewSource(1))
		m, err := catalog.RandomMatchmakingMap(rng, ModeDM)
		require.NoError(t, err)
		require.Equal(t, int64(1), m.ID)

		_, err = catalog.RandomMatchmakingMap(rng, ModeCTF)
		require.Error(t, err)
	})

	t.Run("spawn points filter by team", func(t *testing.T) {
		open := catalog.ByID(1)
		require.Len(t, open.SpawnPointsFor(ModeTDM, TeamNone), 3)

		red := open.SpawnPointsFor(ModeTDM, TeamRed)
		require.Len(t, red, 1)
		require.Equal(t, Vec3{X: -5}, red[0].Position)
	})
}

func TestLoadMapCatalog(t *testing.T) {
	const doc = `
- id: 7
  name: Yard
  matchmaking: true
  max_players: 12
  spawn_points:
    DM:
      - position: {x: 1.5, y: 0, z: -2}
  bonus_regions:
    DM:
      - type: gold
        position: {x: 0, y: 3, z: 0}
        parachute: true
        cooldown: 45
  flags:
    red: {x: -40, y: 0, z: 0}
    blue: {x: 40, y: 0, z: 0}
`
	path := filepath.Join(t.TempDir(), "maps.yaml")
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	catalog, err := LoadMapCatalog(path)
	require.NoError(t, err)
	require.Equal(t, 1, catalog.Count())

	m := catalog.ByID(7)
	require.NotNil(t, m)
	require.Equal(t, "Yard", m.Name)
	require.Equal(t, 12, m.MaxPlayers)
	require.Equal(t, Vec3{X: 1.5, Z: -2}, m.SpawnPoints["DM"][0].Position)

	regions := m.BonusRegionsFor(ModeDM)
	require.Len(t, regions, 1)
	bonusType, err := regions[0].BonusTypeOf()
	require.NoError(t, err)
	require.Equal(t, BonusGold, bonusType)
	require.True(t, regions[0].Parachute)

	require.NotNil(t, m.Flags)
	require.Equal(t, Vec3{X: -40}, m.Flags.Red)

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadMapCatalog(filepath.Join(t.TempDir(), "absent.yaml"))
		require.Error(t, err)
	})
}

func TestTagParsing(t *testing.T) {
	t.Run("battle modes", func(t *testing.T) {
		for _, s := range []string{"DM", "TDM", "CTF"} {
			m, err := ParseBattleMode(s)
			require.NoError(t, err)
			require.Equal(t, s, m.String())
		}
		_, err := ParseBattleMode("FFA")
		require.Error(t, err)
	})

	t.Run("spawn teams", func(t *testing.T) {
		require.Equal(t, TeamRed, SpawnPoint{Team: "red"}.TeamColorOf())
		require.Equal(t, TeamBlue, SpawnPoint{Team: "blue"}.TeamColorOf())
		require.Equal(t, TeamNone, SpawnPoint{}.TeamColorOf())
	})

	t.Run("bonus types", func(t *testing.T) {
		_, err := BonusRegion{Type: "teleport"}.BonusTypeOf()
		require.Error(t, err)
	})

	t.Run("team opposites", func(t *testing.T) {
		require.Equal(t, TeamBlue, TeamRed.Opposite())
		require.Equal(t, TeamRed, TeamBlue.Opposite())
		require.Equal(t, TeamNone, TeamNone.Opposite())
	})
}
