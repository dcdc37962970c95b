package battle

import (
	"sync"
	"time"

	"github.com/kuraysdev/Vint/internal/ecs"
	"go.uber.org/zap"
)

// BattleState is one lifecycle stage of a match.
type BattleState int

const (
	StateLobby BattleState = iota
	StateWarmUp
	StateRunning
	StateDomination
	StateEnded
)

func (s BattleState) String() string {
	switch s {
	case StateLobby:
		return "lobby"
	case StateWarmUp:
		return "warmup"
	case StateRunning:
		return "running"
	case StateDomination:
		return "domination"
	case StateEnded:
		return "ended"
	default:
		return "unknown"
	}
}

const dominationDuration = 45 * time.Second

// StateManager drives a battle through its lifecycle. Transitions happen
// on the battle's tick thread except Finish, which may arrive from a
// command handler; field access is mutex-guarded for that reason, and
// enter hooks run outside the lock.
type StateManager struct {
	battle *Battle

	mu        sync.Mutex
	current   BattleState
	enteredAt time.Time

	// Domination runs at most once per match.
	dominationStarted bool
	dominationEndsAt  time.Time
	savedStopTime     time.Time
}

func newStateManager(b *Battle) *StateManager {
	return &StateManager{battle: b, current: StateLobby, enteredAt: time.Now()}
}

func (m *StateManager) State() BattleState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// DominationCanBegin holds while no domination window has run yet and the
// remaining time sits inside the eligible band: more than 120 seconds
// left, and more than 60 seconds already played.
func (m *StateManager) DominationCanBegin() bool {
	m.mu.Lock()
	started := m.dominationStarted
	m.mu.Unlock()
	if started {
		return false
	}
	limit := m.battle.Properties().TimeLimit
	if limit <= 0 {
		return false
	}
	timer := m.battle.Timer()
	return timer > 120 && timer < float64(limit*60-60)
}

// setState performs exit/enter work for a transition.
func (m *StateManager) setState(next BattleState, now time.Time) {
	m.mu.Lock()
	if m.current == next {
		m.mu.Unlock()
		return
	}
	prev := m.current
	m.current = next
	m.enteredAt = now
	if next == StateDomination {
		m.dominationStarted = true
		m.dominationEndsAt = now.Add(dominationDuration)
	}
	m.mu.Unlock()

	m.battle.Log().Info("battle state changed",
		zap.Stringer("from", prev),
		zap.Stringer("to", next))

	switch next {
	case StateWarmUp:
		m.battle.onWarmUpStarted(now)
	case StateRunning:
		if prev == StateDomination {
			m.restoreStopTime()
		} else if prev == StateWarmUp {
			m.battle.onRoundStarted(now)
		}
	case StateDomination:
		m.snapshotStopTime(now)
	case StateEnded:
		// Terminal. Battle.Finish does the eviction work.
	}
}

// snapshotStopTime saves the round's announced stop time and announces
// the domination deadline in its place.
func (m *StateManager) snapshotStopTime(now time.Time) {
	round := m.battle.RoundEntity()
	if round == nil {
		return
	}
	m.mu.Lock()
	endsAt := m.dominationEndsAt
	m.mu.Unlock()
	if c, ok := round.GetComponent(ecs.KeyRoundStopTime); ok {
		m.mu.Lock()
		m.savedStopTime = c.(ecs.RoundStopTimeComponent).StopTime
		m.mu.Unlock()
	}
	if err := round.ChangeComponent(ecs.RoundStopTimeComponent{StopTime: endsAt}); err != nil {
		m.battle.Log().Debug("stop time update lost", zap.Error(err))
	}
}

// restoreStopTime puts the pre-domination stop time back.
func (m *StateManager) restoreStopTime() {
	round := m.battle.RoundEntity()
	m.mu.Lock()
	saved := m.savedStopTime
	m.mu.Unlock()
	if round == nil || saved.IsZero() {
		return
	}
	if err := round.ChangeComponent(ecs.RoundStopTimeComponent{StopTime: saved}); err != nil {
		m.battle.Log().Debug("stop time update lost", zap.Error(err))
	}
}

// Tick advances the lifecycle. dt is the seconds elapsed since the
// previous tick.
func (m *StateManager) Tick(now time.Time, dt float64) {
	m.mu.Lock()
	current := m.current
	enteredAt := m.enteredAt
	dominationEndsAt := m.dominationEndsAt
	m.mu.Unlock()

	switch current {
	case StateLobby:
		if m.battle.TankCount() >= m.battle.cfg.MinPlayersToStart {
			m.setState(StateWarmUp, now)
		}
	case StateWarmUp:
		if m.battle.TankCount() < m.battle.cfg.MinPlayersToStart {
			m.setState(StateLobby, now)
			return
		}
		if now.Sub(enteredAt) >= m.battle.cfg.WarmUpDuration {
			m.setState(StateRunning, now)
		}
	case StateRunning:
		m.battle.advanceTimer(dt)
		if m.battle.Timer() <= 0 && m.battle.Properties().TimeLimit > 0 {
			m.battle.Finish()
			return
		}
		if m.DominationCanBegin() && m.battle.modeHandler.Dominated() {
			m.setState(StateDomination, now)
		}
	case StateDomination:
		m.battle.advanceTimer(dt)
		// The window closes on balance restored or on expiry; either way
		// the round resumes with its original stop time. A second window
		// never opens.
		if !m.battle.modeHandler.Dominated() || now.After(dominationEndsAt) {
			m.setState(StateRunning, now)
		}
	case StateEnded:
		// Nothing left to drive.
	}
}
