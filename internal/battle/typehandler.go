package battle

import (
	"context"
	"time"

	"github.com/kuraysdev/Vint/internal/data"
	"github.com/kuraysdev/Vint/internal/ecs"
	"go.uber.org/zap"
)

// TypeHandler is the battle-origin strategy: how players enter, what the
// per-tick join bookkeeping looks like, and what leaving costs.
type TypeHandler interface {
	Type() BattleType
	Setup()
	Tick(now time.Time)
	PlayerEntered(p *BattlePlayer)
	PlayerExited(p *BattlePlayer)
}

// waitingRoom parks mid-match joiners until their scheduled join time,
// then embodies them on a later tick. Matchmaking and arcade battles
// share this join policy.
type waitingRoom struct {
	battle *Battle
}

func (w *waitingRoom) playerEntered(p *BattlePlayer) {
	if p.Spectator() {
		return
	}
	switch w.battle.State() {
	case StateRunning, StateDomination:
		p.ScheduleJoin(time.Now().Add(w.battle.cfg.MidJoinDelay))
	case StateWarmUp:
		p.Init()
	case StateLobby:
		// Embodied together when warm-up opens.
	case StateEnded:
		// AddPlayer already rejects non-spectators here.
	}
}

func (w *waitingRoom) tick(now time.Time) {
	state := w.battle.State()
	if state != StateRunning && state != StateDomination {
		return
	}
	for _, p := range w.battle.Players() {
		if waiting, due := p.Waiting(); waiting && !now.Before(due) {
			p.Init()
		}
	}
}

// MatchmakingHandler runs server-assembled battles. Leaving one early
// counts against the player's desertion record, persisted through the
// player store.
type MatchmakingHandler struct {
	battle *Battle
	room   waitingRoom
}

func NewMatchmakingHandler(b *Battle) *MatchmakingHandler {
	return &MatchmakingHandler{battle: b, room: waitingRoom{battle: b}}
}

func (h *MatchmakingHandler) Type() BattleType { return TypeMatchmaking }

func (h *MatchmakingHandler) Setup() {}

func (h *MatchmakingHandler) Tick(now time.Time) {
	h.room.tick(now)
}

func (h *MatchmakingHandler) PlayerEntered(p *BattlePlayer) {
	if user := p.Conn().User(); user != nil {
		user.AddComponentIfAbsent(ecs.MatchmakingUserComponent{})
	}
	h.room.playerEntered(p)
}

func (h *MatchmakingHandler) PlayerExited(p *BattlePlayer) {
	if user := p.Conn().User(); user != nil {
		user.RemoveComponentIfPresent(ecs.KeyMatchmakingUser)
		user.RemoveComponentIfPresent(ecs.KeyMatchmakingUserReady)
	}
	if !p.Spectator() {
		h.settleDesertion(p)
	}
}

// settleDesertion updates the leaver's desertion streak and probation
// counters. Finishing battles works streaks off; abandoning live enemies
// builds them up.
func (h *MatchmakingHandler) settleDesertion(p *BattlePlayer) {
	conn := p.Conn()
	user := conn.User()
	if user == nil {
		return
	}
	c, ok := user.GetComponent(ecs.KeyBattleLeaveCounter)
	if !ok {
		h.battle.Log().Debug("leave counter missing", zap.Int64("entity", user.ID()))
		return
	}
	counter := c.(ecs.BattleLeaveCounterComponent)

	battleEnded := h.battle.State() == StateEnded

	if battleEnded {
		conn.SetBattleSeries(conn.BattleSeries() + 1)
		switch {
		case counter.NeedGoodBattles > 0:
			counter.NeedGoodBattles--
			if counter.NeedGoodBattles == 0 {
				counter.Value = 0
			}
		case counter.Value > 0 && conn.BattleSeries() >= 3:
			counter.Value--
		}
	} else if h.hasLiveEnemies(p) {
		conn.SetBattleSeries(0)
		counter.Value++
		if counter.Value >= 3 {
			if counter.NeedGoodBattles > 0 {
				counter.NeedGoodBattles += int32(counter.Value / 2)
			} else {
				counter.NeedGoodBattles = 3
			}
		}
	}

	if err := user.ChangeComponent(counter); err != nil {
		h.battle.Log().Debug("leave counter update lost", zap.Error(err))
	}

	// Persistence is best effort: a storage fault must not corrupt the
	// in-memory battle.
	if store := h.battle.store; store != nil && conn.PlayerID() != 0 {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := store.UpdateDeserterStatus(ctx, conn.PlayerID(), counter.Value, counter.NeedGoodBattles); err != nil {
			h.battle.Log().Error("deserter status not persisted", zap.Error(err))
		}
	}
}

// hasLiveEnemies reports whether anyone the leaver could have fought
// remains embodied.
func (h *MatchmakingHandler) hasLiveEnemies(p *BattlePlayer) bool {
	for _, other := range h.battle.Players() {
		if other == p || other.Spectator() || !other.AsTank() {
			continue
		}
		if p.Team() == data.TeamNone || other.Team() != p.Team() {
			return true
		}
	}
	return false
}

// ArcadeHandler runs event battles with generated properties. Joining
// follows the matchmaking waiting-room pattern; leaving costs nothing.
type ArcadeHandler struct {
	battle *Battle
	mode   ArcadeMode
	room   waitingRoom
}

func NewArcadeHandler(b *Battle, mode ArcadeMode) *ArcadeHandler {
	return &ArcadeHandler{battle: b, mode: mode, room: waitingRoom{battle: b}}
}

func (h *ArcadeHandler) Type() BattleType { return TypeArcade }

func (h *ArcadeHandler) ArcadeMode() ArcadeMode { return h.mode }

func (h *ArcadeHandler) Setup() {}

func (h *ArcadeHandler) Tick(now time.Time) {
	h.room.tick(now)
}

func (h *ArcadeHandler) PlayerEntered(p *BattlePlayer) {
	h.room.playerEntered(p)
}

func (h *ArcadeHandler) PlayerExited(p *BattlePlayer) {}

// CustomHandler runs player-hosted battles. Properties come from the
// host, never from a generator, and players embody themselves through an
// explicit ready command rather than a waiting room.
type CustomHandler struct {
	battle  *Battle
	ownerID int64 // hosting player id
}

func NewCustomHandler(b *Battle, ownerID int64) *CustomHandler {
	return &CustomHandler{battle: b, ownerID: ownerID}
}

func (h *CustomHandler) Type() BattleType { return TypeCustom }

func (h *CustomHandler) OwnerID() int64 { return h.ownerID }

func (h *CustomHandler) Setup() {}

func (h *CustomHandler) Tick(now time.Time) {}

func (h *CustomHandler) PlayerEntered(p *BattlePlayer) {}

// PlayerExited keeps the lobby seat of a disconnected-but-reconnecting
// player; custom lobbies do not force-remove them.
func (h *CustomHandler) PlayerExited(p *BattlePlayer) {}
