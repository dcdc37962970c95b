package battle

import (
	"math/rand"
	"testing"

	"github.com/kuraysdev/Vint/internal/data"
	"github.com/stretchr/testify/require"
)

func TestRandomDraws(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	const samples = 100000

	t.Run("gravity covers all four values", func(t *testing.T) {
		counts := map[data.GravityType]int{}
		for i := 0; i < samples; i++ {
			counts[randomGravity(rng)]++
		}
		require.Len(t, counts, 4)
		for g, n := range counts {
			require.InDelta(t, samples/4, n, samples/20, "gravity %v skewed", g)
		}
	})

	t.Run("mode covers all three values", func(t *testing.T) {
		counts := map[data.BattleMode]int{}
		for i := 0; i < samples; i++ {
			counts[randomMode(rng)]++
		}
		require.Len(t, counts, 3)
		for m, n := range counts {
			require.InDelta(t, samples/3, n, samples/20, "mode %v skewed", m)
		}
	})

	t.Run("max players is even and in range", func(t *testing.T) {
		for i := 0; i < samples; i++ {
			n := randomMaxPlayers(rng)
			require.Zero(t, n%2)
			require.GreaterOrEqual(t, n, 8)
			require.LessOrEqual(t, n, 20)
		}
	})

	t.Run("timer stays in range", func(t *testing.T) {
		for i := 0; i < samples; i++ {
			n := randomTimer(rng)
			require.GreaterOrEqual(t, n, 7)
			require.LessOrEqual(t, n, 20)
		}
	})
}

func TestGenerateArcadeProperties(t *testing.T) {
	catalog, err := data.NewMapCatalog([]*data.MapInfo{testMap()})
	require.NoError(t, err)
	rng := rand.New(rand.NewSource(7))

	t.Run("full random is self consistent", func(t *testing.T) {
		decoupled := false
		for i := 0; i < 200; i++ {
			props, info, err := GenerateArcadeProperties(rng, catalog, ArcadeFullRandom)
			require.NoError(t, err)
			require.Equal(t, info.ID, props.MapID)
			require.True(t, props.DamageEnabled)
			require.GreaterOrEqual(t, props.ScoreLimit, 70)
			require.LessOrEqual(t, props.ScoreLimit, 200)
			require.Zero(t, props.ScoreLimit%10)
			require.LessOrEqual(t, props.MaxPlayers, info.MaxPlayers)
			if props.ScoreLimit != props.TimeLimit*10 {
				decoupled = true
			}
		}
		// Time and score limits come from two separate draws.
		require.True(t, decoupled)
	})

	t.Run("quick play pins competitive settings", func(t *testing.T) {
		props, _, err := GenerateArcadeProperties(rng, catalog, ArcadeQuickPlay)
		require.NoError(t, err)
		require.Equal(t, data.GravityEarth, props.Gravity)
		require.Equal(t, 10, props.TimeLimit)
		require.Equal(t, 100, props.ScoreLimit)
		require.True(t, props.DamageEnabled)
	})

	t.Run("cosmic forces moon gravity", func(t *testing.T) {
		for i := 0; i < 50; i++ {
			props, _, err := GenerateArcadeProperties(rng, catalog, ArcadeCosmic)
			require.NoError(t, err)
			require.Equal(t, data.GravityMoon, props.Gravity)
		}
	})

	t.Run("without damage disables hits and friendly fire", func(t *testing.T) {
		for i := 0; i < 50; i++ {
			props, _, err := GenerateArcadeProperties(rng, catalog, ArcadeWithoutDamage)
			require.NoError(t, err)
			require.False(t, props.DamageEnabled)
			require.False(t, props.FriendlyFire)
		}
	})

	t.Run("unknown variant is rejected", func(t *testing.T) {
		_, _, err := GenerateArcadeProperties(rng, catalog, ArcadeMode(99))
		require.Error(t, err)
	})
}

func TestGenerateMatchmakingProperties(t *testing.T) {
	catalog, err := data.NewMapCatalog([]*data.MapInfo{testMap()})
	require.NoError(t, err)
	rng := rand.New(rand.NewSource(3))

	props, info, err := GenerateMatchmakingProperties(rng, catalog)
	require.NoError(t, err)
	require.Equal(t, info.ID, props.MapID)
	require.Equal(t, data.GravityEarth, props.Gravity)
	require.Equal(t, 10, props.TimeLimit)
	require.Equal(t, 100, props.ScoreLimit)
	require.Equal(t, info.MaxPlayers, props.MaxPlayers)
	require.True(t, info.MatchMaking)
}
