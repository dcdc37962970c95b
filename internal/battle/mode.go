package battle

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/kuraysdev/Vint/internal/data"
	"go.uber.org/zap"
)

// ModeHandler is the scoring ruleset strategy of one battle.
type ModeHandler interface {
	Mode() data.BattleMode

	// Setup builds the mode's world objects (team scores, flags).
	Setup() error
	Tick(now time.Time)

	// SetupBattlePlayer assigns mode-specific join state (team choice).
	SetupBattlePlayer(p *BattlePlayer)
	PlayerExited(p *BattlePlayer)
	RemoveBattlePlayer(p *BattlePlayer)

	// SortPlayers returns the scoreboard order, best first.
	SortPlayers() []*BattlePlayer
	OnFinished()

	// TransferParameters carries score/time accounting across a custom
	// battle's lobby reconfiguration.
	TransferParameters(from ModeHandler)

	TankKilled(killer, victim *BattleTank)
	TankDisabled(t *BattleTank)

	// Dominated reports a one-sided score that can open the domination
	// window.
	Dominated() bool

	// Winner names the leading team, TeamNone for DM or a tie.
	Winner() data.TeamColor
}

// NewModeHandler builds the handler for a closed set of modes.
func NewModeHandler(b *Battle, mode data.BattleMode) (ModeHandler, error) {
	switch mode {
	case data.ModeDM:
		return &DMHandler{battle: b}, nil
	case data.ModeTDM:
		return &TDMHandler{teamHandler: teamHandler{battle: b}}, nil
	case data.ModeCTF:
		return &CTFHandler{teamHandler: teamHandler{battle: b}}, nil
	default:
		return nil, fmt.Errorf("unhandled battle mode %d", mode)
	}
}

// sortByScore orders players by score, then kills, descending.
func sortByScore(players []*BattlePlayer) []*BattlePlayer {
	sort.SliceStable(players, func(i, j int) bool {
		a, b := players[i].Result(), players[j].Result()
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		return a.Kills > b.Kills
	})
	return players
}

// DMHandler scores every tank for itself.
type DMHandler struct {
	battle *Battle
}

func (h *DMHandler) Mode() data.BattleMode { return data.ModeDM }

func (h *DMHandler) Setup() error { return nil }

func (h *DMHandler) Tick(now time.Time) {}

func (h *DMHandler) SetupBattlePlayer(p *BattlePlayer) {
	p.SetTeam(data.TeamNone)
}

func (h *DMHandler) PlayerExited(p *BattlePlayer) {}

func (h *DMHandler) RemoveBattlePlayer(p *BattlePlayer) {}

func (h *DMHandler) SortPlayers() []*BattlePlayer {
	return sortByScore(h.battle.Players())
}

func (h *DMHandler) OnFinished() {
	top := h.SortPlayers()
	if len(top) > 0 && top[0].Conn().User() != nil {
		h.battle.Log().Info("deathmatch finished",
			zap.Int32("top_score", top[0].Result().Score))
	}
}

func (h *DMHandler) TransferParameters(from ModeHandler) {}

func (h *DMHandler) TankKilled(killer, victim *BattleTank) {
	limit := h.battle.Properties().ScoreLimit
	if limit <= 0 || killer == nil {
		return
	}
	if int(killer.player.Result().Kills) >= limit {
		h.battle.Finish()
	}
}

func (h *DMHandler) TankDisabled(t *BattleTank) {}

func (h *DMHandler) Dominated() bool { return false }

func (h *DMHandler) Winner() data.TeamColor { return data.TeamNone }

// teamHandler holds what TDM and CTF share: two team scores and the
// balancing rule for joins.
type teamHandler struct {
	battle *Battle

	mu        sync.Mutex
	redScore  int32
	blueScore int32
}

func (h *teamHandler) Scores() (red, blue int32) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.redScore, h.blueScore
}

func (h *teamHandler) addScore(team data.TeamColor, delta int32) {
	h.mu.Lock()
	switch team {
	case data.TeamRed:
		h.redScore += delta
	case data.TeamBlue:
		h.blueScore += delta
	default:
		h.mu.Unlock()
		h.battle.Log().Error("score for teamless player dropped")
		return
	}
	red, blue := h.redScore, h.blueScore
	h.mu.Unlock()

	h.battle.broadcast(RoundScoreUpdatedEvent{RedScore: red, BlueScore: blue}, h.battle.BattleEntity())

	limit := int32(h.battle.Properties().ScoreLimit)
	if limit > 0 && (red >= limit || blue >= limit) {
		h.battle.Finish()
	}
}

// pickTeam balances a joiner onto the smaller team, red on ties.
func (h *teamHandler) pickTeam() data.TeamColor {
	var red, blue int
	for _, p := range h.battle.Players() {
		if p.Spectator() {
			continue
		}
		switch p.Team() {
		case data.TeamRed:
			red++
		case data.TeamBlue:
			blue++
		}
	}
	if blue < red {
		return data.TeamBlue
	}
	return data.TeamRed
}

func (h *teamHandler) dominated() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	gap := h.redScore - h.blueScore
	if gap < 0 {
		gap = -gap
	}
	return int(gap) >= h.battle.cfg.DominationScoreGap
}

func (h *teamHandler) winner() data.TeamColor {
	h.mu.Lock()
	defer h.mu.Unlock()
	switch {
	case h.redScore > h.blueScore:
		return data.TeamRed
	case h.blueScore > h.redScore:
		return data.TeamBlue
	default:
		return data.TeamNone
	}
}

// transferScores copies team accounting from a previous handler when a
// custom lobby is reconfigured between compatible team modes.
func (h *teamHandler) transferScores(from ModeHandler) {
	type scorer interface{ Scores() (int32, int32) }
	prev, ok := from.(scorer)
	if !ok {
		return
	}
	red, blue := prev.Scores()
	h.mu.Lock()
	h.redScore = red
	h.blueScore = blue
	h.mu.Unlock()
}

// TDMHandler scores team kills.
type TDMHandler struct {
	teamHandler
}

func (h *TDMHandler) Mode() data.BattleMode { return data.ModeTDM }

func (h *TDMHandler) Setup() error { return nil }

func (h *TDMHandler) Tick(now time.Time) {}

func (h *TDMHandler) SetupBattlePlayer(p *BattlePlayer) {
	if p.Team() == data.TeamNone {
		p.SetTeam(h.pickTeam())
	}
}

func (h *TDMHandler) PlayerExited(p *BattlePlayer) {}

func (h *TDMHandler) RemoveBattlePlayer(p *BattlePlayer) {}

func (h *TDMHandler) SortPlayers() []*BattlePlayer {
	return sortByScore(h.battle.Players())
}

func (h *TDMHandler) OnFinished() {
	red, blue := h.Scores()
	h.battle.Log().Info("team deathmatch finished",
		zap.Int32("red", red), zap.Int32("blue", blue))
}

func (h *TDMHandler) TransferParameters(from ModeHandler) {
	h.transferScores(from)
}

func (h *TDMHandler) TankKilled(killer, victim *BattleTank) {
	if killer == nil {
		return
	}
	team := killer.player.Team()
	if team == data.TeamNone || team == victim.player.Team() {
		// Friendly fire and self kills score nothing.
		return
	}
	h.addScore(team, 1)
}

func (h *TDMHandler) TankDisabled(t *BattleTank) {}

func (h *TDMHandler) Dominated() bool { return h.dominated() }

func (h *TDMHandler) Winner() data.TeamColor { return h.winner() }

// CTFHandler scores flag deliveries and owns the two flags.
type CTFHandler struct {
	teamHandler
	flags [2]*Flag // red, blue
}

func (h *CTFHandler) Mode() data.BattleMode { return data.ModeCTF }

func (h *CTFHandler) Setup() error {
	info := h.battle.MapInfo()
	if info.Flags == nil {
		return fmt.Errorf("map %s has no flag pedestals", info.Name)
	}
	h.flags[0] = newFlag(h, data.TeamRed, info.Flags.Red)
	h.flags[1] = newFlag(h, data.TeamBlue, info.Flags.Blue)
	return nil
}

func (h *CTFHandler) Tick(now time.Time) {}

func (h *CTFHandler) SetupBattlePlayer(p *BattlePlayer) {
	if p.Team() == data.TeamNone {
		p.SetTeam(h.pickTeam())
	}
}

func (h *CTFHandler) PlayerExited(p *BattlePlayer) {
	// A leaver cannot keep carrying.
	if tank := p.Tank(); tank != nil {
		h.dropCarried(tank)
	}
}

func (h *CTFHandler) RemoveBattlePlayer(p *BattlePlayer) {
	h.PlayerExited(p)
}

func (h *CTFHandler) SortPlayers() []*BattlePlayer {
	return sortByScore(h.battle.Players())
}

func (h *CTFHandler) OnFinished() {
	for _, f := range h.flags {
		if f != nil {
			f.reset()
		}
	}
	red, blue := h.Scores()
	h.battle.Log().Info("capture the flag finished",
		zap.Int32("red", red), zap.Int32("blue", blue))
}

func (h *CTFHandler) TransferParameters(from ModeHandler) {
	h.transferScores(from)
}

// CTF team score counts deliveries only; kills already feed the
// personal score.
func (h *CTFHandler) TankKilled(killer, victim *BattleTank) {}

func (h *CTFHandler) TankDisabled(t *BattleTank) {
	h.dropCarried(t)
}

func (h *CTFHandler) dropCarried(t *BattleTank) {
	for _, f := range h.flags {
		if f != nil && f.Carrier() == t {
			f.Drop()
		}
	}
}

func (h *CTFHandler) Dominated() bool { return h.dominated() }

func (h *CTFHandler) Winner() data.TeamColor { return h.winner() }

// Flags returns the red and blue flags.
func (h *CTFHandler) Flags() [2]*Flag { return h.flags }

// FlagByEntity resolves a collision command's target flag.
func (h *CTFHandler) FlagByEntity(entityID int64) *Flag {
	for _, f := range h.flags {
		if f != nil && f.Entity().ID() == entityID {
			return f
		}
	}
	return nil
}

// OppositeFlag returns the other flag.
func (h *CTFHandler) OppositeFlag(f *Flag) *Flag {
	if h.flags[0] == f {
		return h.flags[1]
	}
	return h.flags[0]
}

// teamScored credits a delivery to the scoring team.
func (h *CTFHandler) teamScored(team data.TeamColor) {
	h.addScore(team, 1)
}
