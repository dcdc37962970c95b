package ecs

import (
	"time"

	"github.com/kuraysdev/Vint/internal/data"
)

// Template ids identify the fixed component set an entity was created with.
const (
	TemplateMap uint16 = iota + 1
	TemplateLobby
	TemplateBattle
	TemplateRound
	TemplateUser
	TemplateBattleUser
	TemplateTank
	TemplateWeapon
	TemplateBonus
	TemplateBonusRegion
	TemplateFlag
	TemplateFlagPedestal
	TemplateChat
)

// LobbyProperties is the subset of battle properties a lobby entity shows.
type LobbyProperties struct {
	Mode       data.BattleMode
	Gravity    data.GravityType
	MaxPlayers int
}

// NewMapEntity registers a catalog map under its fixed id.
func NewMapEntity(reg *Registry, info *data.MapInfo) *Entity {
	e := reg.CreateWithID(info.ID, TemplateMap)
	return e
}

// NewLobbyEntity assembles a battle lobby.
func NewLobbyEntity(reg *Registry, props LobbyProperties, mapEntity *Entity) *Entity {
	e := reg.Create(TemplateLobby)
	e.AddComponentIfAbsent(BattleModeComponent{Mode: props.Mode})
	e.AddComponentIfAbsent(GravityComponent{Gravity: props.Gravity})
	e.AddComponentIfAbsent(UserLimitComponent{MaxPlayers: int32(props.MaxPlayers)})
	e.AddComponentIfAbsent(MapGroupComponent{MapEntityID: mapEntity.ID()})
	return e
}

// NewBattleEntity assembles the battle itself.
func NewBattleEntity(reg *Registry, mode data.BattleMode, lobby *Entity) *Entity {
	e := reg.Create(TemplateBattle)
	e.AddComponentIfAbsent(BattleModeComponent{Mode: mode})
	e.AddComponentIfAbsent(BattleLobbyGroupComponent{LobbyEntityID: lobby.ID()})
	return e
}

// NewRoundEntity assembles the round bound to a battle.
func NewRoundEntity(reg *Registry, battle *Entity, stopTime time.Time) *Entity {
	e := reg.Create(TemplateRound)
	e.AddComponentIfAbsent(BattleGroupComponent{BattleEntityID: battle.ID()})
	e.AddComponentIfAbsent(RoundStopTimeComponent{StopTime: stopTime})
	return e
}

// NewUserEntity assembles a connected player's user entity.
func NewUserEntity(reg *Registry, playerID int64, username string) *Entity {
	e := reg.Create(TemplateUser)
	e.AddComponentIfAbsent(UserComponent{PlayerID: playerID, Username: username})
	e.AddComponentIfAbsent(BattleLeaveCounterComponent{})
	return e
}

// NewBattleUserEntity assembles the per-battle user record.
func NewBattleUserEntity(reg *Registry, user, battle *Entity, team data.TeamColor) *Entity {
	e := reg.Create(TemplateBattleUser)
	e.AddComponentIfAbsent(UserGroupComponent{UserEntityID: user.ID()})
	e.AddComponentIfAbsent(BattleGroupComponent{BattleEntityID: battle.ID()})
	e.AddComponentIfAbsent(UserResultComponent{})
	if team != data.TeamNone {
		e.AddComponentIfAbsent(TeamGroupComponent{Team: team})
	}
	return e
}

// NewTankEntity assembles a controlled tank.
func NewTankEntity(reg *Registry, battleUser *Entity, spec TankSpecComponent, pos data.Vec3) *Entity {
	e := reg.Create(TemplateTank)
	e.AddComponentIfAbsent(UserGroupComponent{UserEntityID: battleUser.ID()})
	e.AddComponentIfAbsent(spec)
	e.AddComponentIfAbsent(HealthComponent{Current: spec.MaxHealth, Max: spec.MaxHealth})
	e.AddComponentIfAbsent(PositionComponent{Position: pos})
	return e
}

// NewWeaponEntity assembles a tank's mounted weapon.
func NewWeaponEntity(reg *Registry, tank *Entity) *Entity {
	e := reg.Create(TemplateWeapon)
	e.AddComponentIfAbsent(UserGroupComponent{UserEntityID: tank.ID()})
	return e
}

// NewBonusEntity assembles a spawned, takable bonus.
func NewBonusEntity(reg *Registry, bonusType data.BonusType, pos data.Vec3, parachute bool) *Entity {
	e := reg.Create(TemplateBonus)
	e.AddComponentIfAbsent(BonusConfigComponent{Type: bonusType, Parachute: parachute})
	e.AddComponentIfAbsent(PositionComponent{Position: pos})
	return e
}

// NewFlagEntity assembles a CTF flag.
func NewFlagEntity(reg *Registry, battle *Entity, team data.TeamColor, pedestal data.Vec3) *Entity {
	e := reg.Create(TemplateFlag)
	e.AddComponentIfAbsent(BattleGroupComponent{BattleEntityID: battle.ID()})
	e.AddComponentIfAbsent(TeamGroupComponent{Team: team})
	e.AddComponentIfAbsent(FlagPositionComponent{Position: pedestal})
	return e
}

// NewChatEntity assembles a battle or lobby chat share target.
func NewChatEntity(reg *Registry) *Entity {
	return reg.Create(TemplateChat)
}
