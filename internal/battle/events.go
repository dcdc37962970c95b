package battle

import (
	"time"

	"github.com/kuraysdev/Vint/internal/data"
	"github.com/kuraysdev/Vint/internal/protocol"
)

// Event keys for everything the battle core pushes at clients.
const (
	EvDamageInfo uint16 = iota + 1
	EvKill
	EvSelfDestruction
	EvBonusSpawned
	EvBonusTaken
	EvFlagCaptured
	EvFlagDropped
	EvFlagReturned
	EvFlagDelivered
	EvKickFromBattle
	EvBattleEnded
	EvLobbyStartTime
	EvRoundScoreUpdated
)

// DamageInfoEvent tells a shooter what their hit did. Heals reuse the
// same shape with the Heal flag set.
type DamageInfoEvent struct {
	HitPoint  data.Vec3
	Value     float64
	Critical  bool
	Backstab  bool
	TurretHit bool
	Heal      bool
}

func (e DamageInfoEvent) EventKey() uint16 { return EvDamageInfo }

func (e DamageInfoEvent) EncodeEvent(w *protocol.Writer) {
	w.WriteFloat64(e.HitPoint.X)
	w.WriteFloat64(e.HitPoint.Y)
	w.WriteFloat64(e.HitPoint.Z)
	w.WriteFloat64(e.Value)
	w.WriteBool(e.Critical)
	w.WriteBool(e.Backstab)
	w.WriteBool(e.TurretHit)
	w.WriteBool(e.Heal)
}

// KillEvent announces a kill by another tank.
type KillEvent struct {
	KillerID int64 // killer's battle-user entity id
}

func (e KillEvent) EventKey() uint16 { return EvKill }

func (e KillEvent) EncodeEvent(w *protocol.Writer) {
	w.WriteInt64(e.KillerID)
}

// SelfDestructionEvent announces a tank destroying itself.
type SelfDestructionEvent struct{}

func (e SelfDestructionEvent) EventKey() uint16 { return EvSelfDestruction }

func (e SelfDestructionEvent) EncodeEvent(w *protocol.Writer) {}

// BonusSpawnedEvent announces a bonus box appearing in its region.
type BonusSpawnedEvent struct {
	Type data.BonusType
}

func (e BonusSpawnedEvent) EventKey() uint16 { return EvBonusSpawned }

func (e BonusSpawnedEvent) EncodeEvent(w *protocol.Writer) {
	w.WriteByte(byte(e.Type))
}

// BonusTakenEvent announces who picked up a bonus.
type BonusTakenEvent struct {
	Type    data.BonusType
	TakerID int64 // taker's battle-user entity id
}

func (e BonusTakenEvent) EventKey() uint16 { return EvBonusTaken }

func (e BonusTakenEvent) EncodeEvent(w *protocol.Writer) {
	w.WriteByte(byte(e.Type))
	w.WriteInt64(e.TakerID)
}

// Flag transition announcements, addressed at the flag entity.

type FlagCapturedEvent struct {
	Team      data.TeamColor
	CarrierID int64
}

func (e FlagCapturedEvent) EventKey() uint16 { return EvFlagCaptured }

func (e FlagCapturedEvent) EncodeEvent(w *protocol.Writer) {
	w.WriteByte(byte(e.Team))
	w.WriteInt64(e.CarrierID)
}

type FlagDroppedEvent struct {
	Team     data.TeamColor
	Position data.Vec3
}

func (e FlagDroppedEvent) EventKey() uint16 { return EvFlagDropped }

func (e FlagDroppedEvent) EncodeEvent(w *protocol.Writer) {
	w.WriteByte(byte(e.Team))
	w.WriteFloat64(e.Position.X)
	w.WriteFloat64(e.Position.Y)
	w.WriteFloat64(e.Position.Z)
}

type FlagReturnedEvent struct {
	Team       data.TeamColor
	ReturnerID int64
}

func (e FlagReturnedEvent) EventKey() uint16 { return EvFlagReturned }

func (e FlagReturnedEvent) EncodeEvent(w *protocol.Writer) {
	w.WriteByte(byte(e.Team))
	w.WriteInt64(e.ReturnerID)
}

type FlagDeliveredEvent struct {
	Team        data.TeamColor
	DelivererID int64
}

func (e FlagDeliveredEvent) EventKey() uint16 { return EvFlagDelivered }

func (e FlagDeliveredEvent) EncodeEvent(w *protocol.Writer) {
	w.WriteByte(byte(e.Team))
	w.WriteInt64(e.DelivererID)
}

// KickFromBattleEvent tells a client it was removed from its battle.
type KickFromBattleEvent struct{}

func (e KickFromBattleEvent) EventKey() uint16 { return EvKickFromBattle }

func (e KickFromBattleEvent) EncodeEvent(w *protocol.Writer) {}

// BattleEndedEvent tells remaining players to show the end screen.
type BattleEndedEvent struct{}

func (e BattleEndedEvent) EventKey() uint16 { return EvBattleEnded }

func (e BattleEndedEvent) EncodeEvent(w *protocol.Writer) {}

// LobbyStartTimeEvent schedules a mid-match joiner's embodiment.
type LobbyStartTimeEvent struct {
	StartTime time.Time
}

func (e LobbyStartTimeEvent) EventKey() uint16 { return EvLobbyStartTime }

func (e LobbyStartTimeEvent) EncodeEvent(w *protocol.Writer) {
	w.WriteInt64(e.StartTime.UnixMilli())
}

// RoundScoreUpdatedEvent refreshes the scoreboard.
type RoundScoreUpdatedEvent struct {
	RedScore  int32
	BlueScore int32
}

func (e RoundScoreUpdatedEvent) EventKey() uint16 { return EvRoundScoreUpdated }

func (e RoundScoreUpdatedEvent) EncodeEvent(w *protocol.Writer) {
	w.WriteInt32(e.RedScore)
	w.WriteInt32(e.BlueScore)
}
