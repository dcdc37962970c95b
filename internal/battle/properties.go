package battle

import (
	"github.com/kuraysdev/Vint/internal/data"
	"github.com/kuraysdev/Vint/internal/ecs"
)

// BattleType distinguishes how a battle came to exist.
type BattleType int

const (
	TypeMatchmaking BattleType = iota
	TypeArcade
	TypeCustom
)

func (t BattleType) String() string {
	switch t {
	case TypeMatchmaking:
		return "matchmaking"
	case TypeArcade:
		return "arcade"
	case TypeCustom:
		return "custom"
	default:
		return "unknown"
	}
}

// ArcadeMode selects the random-property generator an arcade battle uses.
type ArcadeMode int

const (
	ArcadeFullRandom ArcadeMode = iota
	ArcadeQuickPlay
	ArcadeCosmic
	ArcadeWithoutDamage
)

func (m ArcadeMode) String() string {
	switch m {
	case ArcadeFullRandom:
		return "full_random"
	case ArcadeQuickPlay:
		return "quick_play"
	case ArcadeCosmic:
		return "cosmic"
	case ArcadeWithoutDamage:
		return "without_damage"
	default:
		return "unknown"
	}
}

// Properties are one battle's mutable settings. Custom battles edit them
// in the lobby; matchmaking and arcade battles generate them once.
type Properties struct {
	Mode            data.BattleMode
	Gravity         data.GravityType
	MapID           int64
	MaxPlayers      int
	TimeLimit       int // minutes, 0 = unlimited
	ScoreLimit      int // 0 = unlimited
	FriendlyFire    bool
	DamageEnabled   bool
	DisabledModules bool
}

// TeamMode reports whether the mode splits players into red and blue.
func (p Properties) TeamMode() bool {
	return p.Mode != data.ModeDM
}

// GravityFactor maps the preset to a vertical acceleration scale.
func (p Properties) GravityFactor() float64 {
	switch p.Gravity {
	case data.GravityMoon:
		return 0.17
	case data.GravityMars:
		return 0.38
	case data.GravityEarth:
		return 1.0
	case data.GravitySuperEarth:
		return 2.0
	default:
		return 1.0
	}
}

// ClientParams mirrors the properties into their component form.
func (p Properties) ClientParams() ecs.ClientBattleParamsComponent {
	return ecs.ClientBattleParamsComponent{
		Mode:           p.Mode,
		Gravity:        p.Gravity,
		MapID:          p.MapID,
		MaxPlayers:     int32(p.MaxPlayers),
		TimeLimit:      int32(p.TimeLimit),
		ScoreLimit:     int32(p.ScoreLimit),
		FriendlyFire:   p.FriendlyFire,
		DamageEnabled:  p.DamageEnabled,
		DisabledModule: p.DisabledModules,
	}
}
