package data

import (
	"fmt"
	"math"
)

// BattleMode is the scoring ruleset of a battle.
type BattleMode byte

const (
	ModeDM BattleMode = iota
	ModeTDM
	ModeCTF
)

func (m BattleMode) String() string {
	switch m {
	case ModeDM:
		return "DM"
	case ModeTDM:
		return "TDM"
	case ModeCTF:
		return "CTF"
	default:
		return fmt.Sprintf("Unknown(%d)", byte(m))
	}
}

// ParseBattleMode maps a catalog string to a BattleMode.
func ParseBattleMode(s string) (BattleMode, error) {
	switch s {
	case "DM":
		return ModeDM, nil
	case "TDM":
		return ModeTDM, nil
	case "CTF":
		return ModeCTF, nil
	default:
		return 0, fmt.Errorf("unknown battle mode %q", s)
	}
}

// GravityType selects the battle's gravity preset.
type GravityType byte

const (
	GravityMoon GravityType = iota
	GravityMars
	GravityEarth
	GravitySuperEarth
)

func (g GravityType) String() string {
	switch g {
	case GravityMoon:
		return "Moon"
	case GravityMars:
		return "Mars"
	case GravityEarth:
		return "Earth"
	case GravitySuperEarth:
		return "SuperEarth"
	default:
		return fmt.Sprintf("Unknown(%d)", byte(g))
	}
}

// TeamColor identifies a team in team modes. DM players carry TeamNone.
type TeamColor byte

const (
	TeamNone TeamColor = iota
	TeamRed
	TeamBlue
)

func (t TeamColor) String() string {
	switch t {
	case TeamNone:
		return "None"
	case TeamRed:
		return "Red"
	case TeamBlue:
		return "Blue"
	default:
		return fmt.Sprintf("Unknown(%d)", byte(t))
	}
}

// Opposite returns the other team. TeamNone has no opposite.
func (t TeamColor) Opposite() TeamColor {
	switch t {
	case TeamRed:
		return TeamBlue
	case TeamBlue:
		return TeamRed
	default:
		return TeamNone
	}
}

// BonusType identifies a pickup-item kind.
type BonusType byte

const (
	BonusRepair BonusType = iota
	BonusArmor
	BonusDamage
	BonusSpeed
	BonusGold
)

func (b BonusType) String() string {
	switch b {
	case BonusRepair:
		return "Repair"
	case BonusArmor:
		return "Armor"
	case BonusDamage:
		return "Damage"
	case BonusSpeed:
		return "Speed"
	case BonusGold:
		return "Gold"
	default:
		return fmt.Sprintf("Unknown(%d)", byte(b))
	}
}

// Vec3 is a map-space position.
type Vec3 struct {
	X float64 `yaml:"x"`
	Y float64 `yaml:"y"`
	Z float64 `yaml:"z"`
}

// DistanceTo returns the euclidean distance between two positions.
func (v Vec3) DistanceTo(o Vec3) float64 {
	dx := v.X - o.X
	dy := v.Y - o.Y
	dz := v.Z - o.Z
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}
