package ecs

import (
	"time"

	"github.com/kuraysdev/Vint/internal/data"
	"github.com/kuraysdev/Vint/internal/protocol"
)

// Component keys. A key is unique per entity: at most one component of a
// given key can be attached at a time.
const (
	KeyBattleMode uint16 = iota + 1
	KeyGravity
	KeyUserLimit
	KeyMapGroup
	KeyBattleGroup
	KeyBattleLobbyGroup
	KeyUserGroup
	KeyTeamGroup
	KeyUser
	KeyUserEquipment
	KeyMatchmakingUser
	KeyMatchmakingUserReady
	KeyBattleLeaveCounter
	KeyClientBattleParams
	KeyRoundStopTime
	KeyRoundRestartingState
	KeyHealth
	KeyPosition
	KeyTeamScore
	KeyUserResult
	KeyBonusConfig
	KeyFlagPosition
	KeyTankSpec
)

// Component is a typed value attached to exactly one entity. Components
// are treated as immutable once attached; replacing a value goes through
// Entity.ChangeComponent so observers see exactly one change event.
type Component interface {
	Key() uint16
	EncodeComponent(w *protocol.Writer)
}

// Snapshot encodes a component for the wire.
func Snapshot(c Component) protocol.ComponentSnapshot {
	w := protocol.NewWriter()
	c.EncodeComponent(w)
	return protocol.ComponentSnapshot{Key: c.Key(), Data: w.Bytes()}
}

// BattleModeComponent declares the battle's scoring ruleset.
type BattleModeComponent struct {
	Mode data.BattleMode
}

func (c BattleModeComponent) Key() uint16 { return KeyBattleMode }

func (c BattleModeComponent) EncodeComponent(w *protocol.Writer) {
	w.WriteByte(byte(c.Mode))
}

// GravityComponent declares the battle's gravity preset.
type GravityComponent struct {
	Gravity data.GravityType
}

func (c GravityComponent) Key() uint16 { return KeyGravity }

func (c GravityComponent) EncodeComponent(w *protocol.Writer) {
	w.WriteByte(byte(c.Gravity))
}

// UserLimitComponent bounds non-spectator membership of a lobby.
type UserLimitComponent struct {
	MaxPlayers int32
}

func (c UserLimitComponent) Key() uint16 { return KeyUserLimit }

func (c UserLimitComponent) EncodeComponent(w *protocol.Writer) {
	w.WriteInt32(c.MaxPlayers)
}

// GroupComponent variants point at an owning entity by id, never by
// structural reference.

type MapGroupComponent struct {
	MapEntityID int64
}

func (c MapGroupComponent) Key() uint16 { return KeyMapGroup }

func (c MapGroupComponent) EncodeComponent(w *protocol.Writer) {
	w.WriteInt64(c.MapEntityID)
}

type BattleGroupComponent struct {
	BattleEntityID int64
}

func (c BattleGroupComponent) Key() uint16 { return KeyBattleGroup }

func (c BattleGroupComponent) EncodeComponent(w *protocol.Writer) {
	w.WriteInt64(c.BattleEntityID)
}

type BattleLobbyGroupComponent struct {
	LobbyEntityID int64
}

func (c BattleLobbyGroupComponent) Key() uint16 { return KeyBattleLobbyGroup }

func (c BattleLobbyGroupComponent) EncodeComponent(w *protocol.Writer) {
	w.WriteInt64(c.LobbyEntityID)
}

type UserGroupComponent struct {
	UserEntityID int64
}

func (c UserGroupComponent) Key() uint16 { return KeyUserGroup }

func (c UserGroupComponent) EncodeComponent(w *protocol.Writer) {
	w.WriteInt64(c.UserEntityID)
}

type TeamGroupComponent struct {
	Team data.TeamColor
}

func (c TeamGroupComponent) Key() uint16 { return KeyTeamGroup }

func (c TeamGroupComponent) EncodeComponent(w *protocol.Writer) {
	w.WriteByte(byte(c.Team))
}

// UserComponent carries the player's public identity.
type UserComponent struct {
	PlayerID int64
	Username string
}

func (c UserComponent) Key() uint16 { return KeyUser }

func (c UserComponent) EncodeComponent(w *protocol.Writer) {
	w.WriteInt64(c.PlayerID)
	w.WriteString(c.Username)
}

// UserEquipmentComponent pins the weapon/hull pair a user brings into a
// battle lobby.
type UserEquipmentComponent struct {
	WeaponID int64
	HullID   int64
}

func (c UserEquipmentComponent) Key() uint16 { return KeyUserEquipment }

func (c UserEquipmentComponent) EncodeComponent(w *protocol.Writer) {
	w.WriteInt64(c.WeaponID)
	w.WriteInt64(c.HullID)
}

// MatchmakingUserComponent marks a user as seated in a matchmaking lobby.
type MatchmakingUserComponent struct{}

func (c MatchmakingUserComponent) Key() uint16 { return KeyMatchmakingUser }

func (c MatchmakingUserComponent) EncodeComponent(w *protocol.Writer) {}

// MatchmakingUserReadyComponent marks a ready-checked user.
type MatchmakingUserReadyComponent struct{}

func (c MatchmakingUserReadyComponent) Key() uint16 { return KeyMatchmakingUserReady }

func (c MatchmakingUserReadyComponent) EncodeComponent(w *protocol.Writer) {}

// BattleLeaveCounterComponent tracks desertion accounting used to gate
// matchmaking eligibility.
type BattleLeaveCounterComponent struct {
	Value           int64
	NeedGoodBattles int32
}

func (c BattleLeaveCounterComponent) Key() uint16 { return KeyBattleLeaveCounter }

func (c BattleLeaveCounterComponent) EncodeComponent(w *protocol.Writer) {
	w.WriteInt64(c.Value)
	w.WriteInt32(c.NeedGoodBattles)
}

// ClientBattleParamsComponent mirrors a custom battle's editable settings.
type ClientBattleParamsComponent struct {
	Mode           data.BattleMode
	Gravity        data.GravityType
	MapID          int64
	MaxPlayers     int32
	TimeLimit      int32
	ScoreLimit     int32
	FriendlyFire   bool
	DamageEnabled  bool
	DisabledModule bool
}

func (c ClientBattleParamsComponent) Key() uint16 { return KeyClientBattleParams }

func (c ClientBattleParamsComponent) EncodeComponent(w *protocol.Writer) {
	w.WriteByte(byte(c.Mode))
	w.WriteByte(byte(c.Gravity))
	w.WriteInt64(c.MapID)
	w.WriteInt32(c.MaxPlayers)
	w.WriteInt32(c.TimeLimit)
	w.WriteInt32(c.ScoreLimit)
	w.WriteBool(c.FriendlyFire)
	w.WriteBool(c.DamageEnabled)
	w.WriteBool(c.DisabledModule)
}

// RoundStopTimeComponent announces when the round will stop.
type RoundStopTimeComponent struct {
	StopTime time.Time
}

func (c RoundStopTimeComponent) Key() uint16 { return KeyRoundStopTime }

func (c RoundStopTimeComponent) EncodeComponent(w *protocol.Writer) {
	w.WriteInt64(c.StopTime.UnixMilli())
}

// RoundRestartingStateComponent marks a finished round awaiting restart.
type RoundRestartingStateComponent struct{}

func (c RoundRestartingStateComponent) Key() uint16 { return KeyRoundRestartingState }

func (c RoundRestartingStateComponent) EncodeComponent(w *protocol.Writer) {}

// HealthComponent carries a tank's current and maximum health.
type HealthComponent struct {
	Current float64
	Max     float64
}

func (c HealthComponent) Key() uint16 { return KeyHealth }

func (c HealthComponent) EncodeComponent(w *protocol.Writer) {
	w.WriteFloat64(c.Current)
	w.WriteFloat64(c.Max)
}

// PositionComponent carries an entity's map-space position.
type PositionComponent struct {
	Position data.Vec3
}

func (c PositionComponent) Key() uint16 { return KeyPosition }

func (c PositionComponent) EncodeComponent(w *protocol.Writer) {
	w.WriteFloat64(c.Position.X)
	w.WriteFloat64(c.Position.Y)
	w.WriteFloat64(c.Position.Z)
}

// TeamScoreComponent carries one team's current score.
type TeamScoreComponent struct {
	Score int32
}

func (c TeamScoreComponent) Key() uint16 { return KeyTeamScore }

func (c TeamScoreComponent) EncodeComponent(w *protocol.Writer) {
	w.WriteInt32(c.Score)
}

// UserResultComponent accumulates one player's in-battle results.
type UserResultComponent struct {
	Kills        int32
	Deaths       int32
	KillAssists  int32
	Score        int32
	BonusesTaken int32
	FlagDelivers int32
	FlagReturns  int32
}

func (c UserResultComponent) Key() uint16 { return KeyUserResult }

func (c UserResultComponent) EncodeComponent(w *protocol.Writer) {
	w.WriteInt32(c.Kills)
	w.WriteInt32(c.Deaths)
	w.WriteInt32(c.KillAssists)
	w.WriteInt32(c.Score)
	w.WriteInt32(c.BonusesTaken)
	w.WriteInt32(c.FlagDelivers)
	w.WriteInt32(c.FlagReturns)
}

// BonusConfigComponent carries a bonus box's static configuration.
type BonusConfigComponent struct {
	Type      data.BonusType
	Parachute bool
}

func (c BonusConfigComponent) Key() uint16 { return KeyBonusConfig }

func (c BonusConfigComponent) EncodeComponent(w *protocol.Writer) {
	w.WriteByte(byte(c.Type))
	w.WriteBool(c.Parachute)
}

// FlagPositionComponent carries a flag's current position and carrier.
type FlagPositionComponent struct {
	Position  data.Vec3
	CarrierID int64 // tank entity id, 0 when not carried
}

func (c FlagPositionComponent) Key() uint16 { return KeyFlagPosition }

func (c FlagPositionComponent) EncodeComponent(w *protocol.Writer) {
	w.WriteFloat64(c.Position.X)
	w.WriteFloat64(c.Position.Y)
	w.WriteFloat64(c.Position.Z)
	w.WriteInt64(c.CarrierID)
}

// TankSpecComponent carries a tank's combat parameters.
type TankSpecComponent struct {
	MaxHealth float64
	Damage    float64
}

func (c TankSpecComponent) Key() uint16 { return KeyTankSpec }

func (c TankSpecComponent) EncodeComponent(w *protocol.Writer) {
	w.WriteFloat64(c.MaxHealth)
	w.WriteFloat64(c.Damage)
}
