package battle

import (
	"fmt"
	"math/rand"

	"github.com/kuraysdev/Vint/internal/data"
)

// Arcade property generation. Every uniform switch over a continuous
// random value uses half-open bins with an explicit final catch-all
// bucket, so no draw can ever fall through unmatched.

func randomGravity(rng *rand.Rand) data.GravityType {
	switch v := rng.Float64(); {
	case v < 0.25:
		return data.GravityMoon
	case v < 0.5:
		return data.GravityMars
	case v < 0.75:
		return data.GravityEarth
	default:
		return data.GravitySuperEarth
	}
}

func randomMode(rng *rand.Rand) data.BattleMode {
	switch v := rng.Float64(); {
	case v < 1.0/3:
		return data.ModeDM
	case v < 2.0/3:
		return data.ModeTDM
	default:
		return data.ModeCTF
	}
}

func randomBool(rng *rand.Rand) bool {
	return rng.Float64() < 0.5
}

// randomMaxPlayers draws a uniform integer in [8,20] rounded up to the
// nearest even number.
func randomMaxPlayers(rng *rand.Rand) int {
	n := 8 + rng.Intn(13)
	if n%2 != 0 {
		n++
	}
	return n
}

// randomTimer draws a uniform integer in [7,20].
func randomTimer(rng *rand.Rand) int {
	return 7 + rng.Intn(14)
}

// GenerateArcadeProperties rolls the settings for one arcade battle and
// picks an eligible map.
func GenerateArcadeProperties(rng *rand.Rand, catalog *data.MapCatalog, mode ArcadeMode) (Properties, *data.MapInfo, error) {
	var props Properties

	switch mode {
	case ArcadeFullRandom:
		props = fullRandomProperties(rng)
	case ArcadeQuickPlay:
		props = Properties{
			Mode:          randomMode(rng),
			Gravity:       data.GravityEarth,
			TimeLimit:     10,
			ScoreLimit:    100,
			MaxPlayers:    randomMaxPlayers(rng),
			DamageEnabled: true,
		}
	case ArcadeCosmic:
		props = fullRandomProperties(rng)
		props.Gravity = data.GravityMoon
	case ArcadeWithoutDamage:
		props = fullRandomProperties(rng)
		props.DamageEnabled = false
		props.FriendlyFire = false
	default:
		return Properties{}, nil, fmt.Errorf("unhandled arcade mode %d", mode)
	}

	info, err := catalog.RandomMatchmakingMap(rng, props.Mode)
	if err != nil {
		return Properties{}, nil, err
	}
	props.MapID = info.ID
	if info.MaxPlayers > 0 && props.MaxPlayers > info.MaxPlayers {
		props.MaxPlayers = info.MaxPlayers
	}
	return props, info, nil
}

func fullRandomProperties(rng *rand.Rand) Properties {
	return Properties{
		Mode:            randomMode(rng),
		Gravity:         randomGravity(rng),
		MaxPlayers:      randomMaxPlayers(rng),
		TimeLimit:       randomTimer(rng),
		ScoreLimit:      randomTimer(rng) * 10,
		FriendlyFire:    randomBool(rng),
		DisabledModules: randomBool(rng),
		DamageEnabled:   true,
	}
}

// GenerateMatchmakingProperties rolls a mode and map for one matchmaking
// battle with standard competitive settings.
func GenerateMatchmakingProperties(rng *rand.Rand, catalog *data.MapCatalog) (Properties, *data.MapInfo, error) {
	mode := randomMode(rng)
	info, err := catalog.RandomMatchmakingMap(rng, mode)
	if err != nil {
		return Properties{}, nil, err
	}
	maxPlayers := info.MaxPlayers
	if maxPlayers <= 0 {
		maxPlayers = 20
	}
	return Properties{
		Mode:          mode,
		Gravity:       data.GravityEarth,
		MapID:         info.ID,
		MaxPlayers:    maxPlayers,
		TimeLimit:     10,
		ScoreLimit:    100,
		DamageEnabled: true,
	}, info, nil
}
