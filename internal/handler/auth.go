package handler

import (
	"context"
	"errors"
	"time"

	"github.com/kuraysdev/Vint/internal/ecs"
	"github.com/kuraysdev/Vint/internal/persist"
	"github.com/kuraysdev/Vint/internal/protocol"
	"github.com/kuraysdev/Vint/internal/server"
	"go.uber.org/zap"
)

const authTimeout = 5 * time.Second

func handleLogin(deps Deps) protocol.HandlerFunc {
	return func(conn any, r *protocol.Reader) {
		c := asConnection(conn)
		username := r.ReadString()
		password := r.ReadString()

		ctx, cancel := context.WithTimeout(context.Background(), authTimeout)
		defer cancel()

		row, err := deps.Players.Authenticate(ctx, username, password)
		if err != nil {
			if errors.Is(err, persist.ErrBadCredentials) || errors.Is(err, persist.ErrPlayerNotFound) {
				c.Kick("invalid credentials")
				return
			}
			deps.Log.Error("login lookup failed", zap.Error(err))
			c.Kick("login unavailable")
			return
		}

		bindUser(deps, c, row)
	}
}

func handleRegister(deps Deps) protocol.HandlerFunc {
	return func(conn any, r *protocol.Reader) {
		c := asConnection(conn)
		username := r.ReadString()
		email := r.ReadString()
		password := r.ReadString()

		ctx, cancel := context.WithTimeout(context.Background(), authTimeout)
		defer cancel()

		row, err := deps.Players.Register(ctx, username, email, password)
		if err != nil {
			deps.Log.Warn("registration rejected",
				zap.String("username", username), zap.Error(err))
			c.Kick("registration rejected")
			return
		}

		bindUser(deps, c, row)
	}
}

// bindUser creates the connection's user entity from the persisted record
// and moves the connection into the lobby.
func bindUser(deps Deps, c *server.Connection, row *persist.PlayerRow) {
	user := ecs.NewUserEntity(deps.Entities, row.ID, row.Username)
	if err := user.ChangeComponent(ecs.BattleLeaveCounterComponent{
		Value:           row.DesertedBattles,
		NeedGoodBattles: row.NeedGoodBattles,
	}); err != nil {
		deps.Log.Debug("leave counter seed lost", zap.Error(err))
	}

	c.SetUser(user, row.ID)
	c.Share(user)
	c.SetState(protocol.StateLobby)

	c.Log().Info("player logged in",
		zap.Int64("player", row.ID),
		zap.String("username", row.Username))
}
