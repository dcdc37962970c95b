// Package handler wires inbound command types to the game logic that
// executes them. Every handler runs on its connection's execute
// goroutine; failures are logged and dropped, never fatal to the loop.
package handler

import (
	"github.com/kuraysdev/Vint/internal/battle"
	"github.com/kuraysdev/Vint/internal/data"
	"github.com/kuraysdev/Vint/internal/ecs"
	"github.com/kuraysdev/Vint/internal/persist"
	"github.com/kuraysdev/Vint/internal/protocol"
	"github.com/kuraysdev/Vint/internal/server"
	"go.uber.org/zap"
)

// Deps carries the collaborators handlers close over.
type Deps struct {
	Log      *zap.Logger
	Entities *ecs.Registry
	Players  *persist.PlayerRepo
	Battles  *battle.Service
	Catalog  *data.MapCatalog
}

// RegisterAll binds every inbound command type with its state gate.
func RegisterAll(reg *protocol.Registry, deps Deps) {
	anyState := []protocol.ConnState{
		protocol.StateConnected, protocol.StateLobby, protocol.StateInBattle,
	}
	lobbyOnly := []protocol.ConnState{protocol.StateLobby}
	battleOnly := []protocol.ConnState{protocol.StateInBattle}
	preLogin := []protocol.ConnState{protocol.StateConnected}

	reg.Register(protocol.CmdPong, anyState, handlePong(deps))
	reg.Register(protocol.CmdLogin, preLogin, handleLogin(deps))
	reg.Register(protocol.CmdRegister, preLogin, handleRegister(deps))
	reg.Register(protocol.CmdEnterBattle, lobbyOnly, handleEnterBattle(deps))
	reg.Register(protocol.CmdCreateBattle, lobbyOnly, handleCreateBattle(deps))
	reg.Register(protocol.CmdExitBattle, battleOnly, handleExitBattle(deps))
	reg.Register(protocol.CmdReadyToSpawn, battleOnly, handleReadyToSpawn(deps))
	reg.Register(protocol.CmdTakeBonus, battleOnly, handleTakeBonus(deps))
	reg.Register(protocol.CmdFlagCollision, battleOnly, handleFlagCollision(deps))
	reg.Register(protocol.CmdUpdateBattleParams, battleOnly, handleUpdateBattleParams(deps))
	reg.Register(protocol.CmdMove, battleOnly, handleMove(deps))
	reg.Register(protocol.CmdFire, battleOnly, handleFire(deps))
	reg.Register(protocol.CmdSelfDestruct, battleOnly, handleSelfDestruct(deps))
}

// asConnection narrows the registry's opaque connection. A mismatch is a
// wiring defect, surfaced through the registry's panic recovery.
func asConnection(conn any) *server.Connection {
	return conn.(*server.Connection)
}

// seat resolves the connection's battle membership. nil means the seat
// raced a removal; callers treat that as a consistency fault.
func seat(c *server.Connection) *battle.BattlePlayer {
	p, _ := c.Membership().(*battle.BattlePlayer)
	return p
}

func handlePong(deps Deps) protocol.HandlerFunc {
	return func(conn any, r *protocol.Reader) {
		c := asConnection(conn)
		c.Log().Debug("pong", zap.Int64("client_time", r.ReadInt64()))
	}
}
