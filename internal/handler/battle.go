package handler

import (
	"github.com/kuraysdev/Vint/internal/battle"
	"github.com/kuraysdev/Vint/internal/data"
	"github.com/kuraysdev/Vint/internal/protocol"
	"go.uber.org/zap"
)

// Battle-kind selector carried by CmdCreateBattle.
const (
	createCustom byte = iota
	createArcadeFullRandom
	createArcadeQuickPlay
	createArcadeCosmic
	createArcadeWithoutDamage
)

func handleEnterBattle(deps Deps) protocol.HandlerFunc {
	return func(conn any, r *protocol.Reader) {
		c := asConnection(conn)
		lobbyID := r.ReadInt64()
		spectator := r.ReadBool()

		var (
			b   *battle.Battle
			err error
		)
		if lobbyID == 0 {
			// No target lobby means matchmaking.
			b, err = deps.Battles.FindOrCreateMatchmaking()
			if err != nil {
				deps.Log.Error("matchmaking battle unavailable", zap.Error(err))
				return
			}
		} else {
			b = deps.Battles.FindByLobby(lobbyID)
			if b == nil {
				c.Log().Warn("enter into unknown lobby", zap.Int64("lobby", lobbyID))
				return
			}
		}

		if _, err := b.AddPlayer(c, spectator); err != nil {
			c.Log().Warn("battle join rejected", zap.Error(err))
		}
	}
}

func handleCreateBattle(deps Deps) protocol.HandlerFunc {
	return func(conn any, r *protocol.Reader) {
		c := asConnection(conn)
		kind := r.ReadByte()

		var (
			b   *battle.Battle
			err error
		)
		switch kind {
		case createCustom:
			props := readProperties(r)
			b, err = deps.Battles.CreateCustom(props, c.PlayerID())
		case createArcadeFullRandom:
			b, err = deps.Battles.CreateArcade(battle.ArcadeFullRandom)
		case createArcadeQuickPlay:
			b, err = deps.Battles.CreateArcade(battle.ArcadeQuickPlay)
		case createArcadeCosmic:
			b, err = deps.Battles.CreateArcade(battle.ArcadeCosmic)
		case createArcadeWithoutDamage:
			b, err = deps.Battles.CreateArcade(battle.ArcadeWithoutDamage)
		default:
			c.Log().Warn("unknown battle kind", zap.Uint8("kind", kind))
			return
		}
		if err != nil {
			c.Log().Warn("battle creation rejected", zap.Error(err))
			return
		}

		if _, err := b.AddPlayer(c, false); err != nil {
			c.Log().Warn("creator join rejected", zap.Error(err))
		}
	}
}

func readProperties(r *protocol.Reader) battle.Properties {
	return battle.Properties{
		Mode:            data.BattleMode(r.ReadByte()),
		Gravity:         data.GravityType(r.ReadByte()),
		MapID:           r.ReadInt64(),
		MaxPlayers:      int(r.ReadInt32()),
		TimeLimit:       int(r.ReadInt32()),
		ScoreLimit:      int(r.ReadInt32()),
		FriendlyFire:    r.ReadBool(),
		DamageEnabled:   r.ReadBool(),
		DisabledModules: r.ReadBool(),
	}
}

func handleExitBattle(deps Deps) protocol.HandlerFunc {
	return func(conn any, r *protocol.Reader) {
		c := asConnection(conn)
		p := seat(c)
		if p == nil {
			c.Log().Debug("exit without a seat")
			return
		}
		if p.AsTank() || p.Spectator() {
			p.LeaveBattle()
		} else {
			p.LeaveLobby()
		}
	}
}

func handleReadyToSpawn(deps Deps) protocol.HandlerFunc {
	return func(conn any, r *protocol.Reader) {
		c := asConnection(conn)
		p := seat(c)
		if p == nil || p.Spectator() {
			return
		}
		if tank := p.Tank(); tank != nil {
			if !tank.Alive() {
				tank.Respawn()
			}
			return
		}
		// Custom battles embody through this command; the waiting-room
		// types embody on their own tick and make this a no-op there.
		if waiting, _ := p.Waiting(); !waiting {
			p.Init()
		}
	}
}

func handleUpdateBattleParams(deps Deps) protocol.HandlerFunc {
	return func(conn any, r *protocol.Reader) {
		c := asConnection(conn)
		p := seat(c)
		if p == nil {
			return
		}
		b := p.Battle()
		custom, ok := b.TypeHandler().(*battle.CustomHandler)
		if !ok || custom.OwnerID() != c.PlayerID() {
			c.Log().Warn("battle edit by non-owner rejected")
			return
		}
		if err := b.UpdateProperties(readProperties(r)); err != nil {
			c.Log().Warn("battle edit rejected", zap.Error(err))
		}
	}
}
