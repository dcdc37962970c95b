package battle

import (
	"testing"
	"time"

	"github.com/kuraysdev/Vint/internal/data"
	"github.com/kuraysdev/Vint/internal/ecs"
	"github.com/stretchr/testify/require"
)

// setTimer rewinds the round clock to the given remaining seconds.
func setTimer(b *Battle, remaining float64) {
	b.advanceTimer(b.Timer() - remaining)
}

func TestLifecycle(t *testing.T) {
	t.Run("lobby waits for enough tanks", func(t *testing.T) {
		b, reg := newTestBattle(t, data.ModeDM)
		now := time.Now()

		b.Tick(now, 0.1)
		require.Equal(t, StateLobby, b.State())

		joinTank(t, b, newFakeConn(reg, 1, "one"))
		b.Tick(now, 0.1)
		require.Equal(t, StateLobby, b.State())

		joinTank(t, b, newFakeConn(reg, 2, "two"))
		b.Tick(now, 0.1)
		require.Equal(t, StateWarmUp, b.State())
	})

	t.Run("warmup regresses when a tank leaves", func(t *testing.T) {
		b, reg := newTestBattle(t, data.ModeDM)
		now := time.Now()

		p := joinTank(t, b, newFakeConn(reg, 1, "one"))
		joinTank(t, b, newFakeConn(reg, 2, "two"))
		b.Tick(now, 0.1)
		require.Equal(t, StateWarmUp, b.State())

		b.RemovePlayer(p)
		b.Tick(now.Add(time.Second), 0.1)
		require.Equal(t, StateLobby, b.State())
	})

	t.Run("warmup opens the round after its duration", func(t *testing.T) {
		b, reg := newTestBattle(t, data.ModeDM)
		now := time.Now()

		joinTank(t, b, newFakeConn(reg, 1, "one"))
		joinTank(t, b, newFakeConn(reg, 2, "two"))
		b.Tick(now, 0.1)
		require.Equal(t, StateWarmUp, b.State())

		b.Tick(now.Add(b.cfg.WarmUpDuration/2), 0.1)
		require.Equal(t, StateWarmUp, b.State())

		b.Tick(now.Add(b.cfg.WarmUpDuration+time.Second), 0.1)
		require.Equal(t, StateRunning, b.State())
		require.NotNil(t, b.RoundEntity())
	})

	t.Run("round ends when the clock runs out", func(t *testing.T) {
		b, reg := newTestBattle(t, data.ModeDM)
		joinTank(t, b, newFakeConn(reg, 1, "one"))
		now := time.Now()
		b.states.setState(StateRunning, now)

		setTimer(b, 1)
		b.Tick(now.Add(time.Second), 2)
		require.Equal(t, StateEnded, b.State())
	})
}

func TestDominationWindow(t *testing.T) {
	runningTDM := func(t *testing.T) (*Battle, *TDMHandler) {
		t.Helper()
		b, reg := newTestBattle(t, data.ModeTDM)
		joinTank(t, b, newFakeConn(reg, 1, "red"))
		joinTank(t, b, newFakeConn(reg, 2, "blue"))
		b.states.setState(StateRunning, time.Now())
		return b, b.ModeHandler().(*TDMHandler)
	}

	t.Run("eligibility band", func(t *testing.T) {
		b, _ := runningTDM(t)

		// A 10 minute round opens the window strictly between the first
		// and last minute of play, with at least two minutes remaining.
		require.False(t, b.states.DominationCanBegin()) // 600s left, nothing played
		setTimer(b, 539)
		require.True(t, b.states.DominationCanBegin())
		setTimer(b, 121)
		require.True(t, b.states.DominationCanBegin())
		setTimer(b, 120)
		require.False(t, b.states.DominationCanBegin())
	})

	t.Run("opens on a one-sided score and reverts on balance", func(t *testing.T) {
		b, h := runningTDM(t)
		now := time.Now()
		setTimer(b, 300)

		b.Tick(now, 0.1)
		require.Equal(t, StateRunning, b.State())

		h.addScore(data.TeamRed, int32(b.cfg.DominationScoreGap))
		b.Tick(now.Add(time.Second), 0.1)
		require.Equal(t, StateDomination, b.State())

		// The losing team closes the gap inside the window.
		h.addScore(data.TeamBlue, int32(b.cfg.DominationScoreGap))
		b.Tick(now.Add(2*time.Second), 0.1)
		require.Equal(t, StateRunning, b.State())

		// One window per match: the same gap no longer re-opens it.
		h.addScore(data.TeamRed, int32(b.cfg.DominationScoreGap))
		b.Tick(now.Add(3*time.Second), 0.1)
		require.Equal(t, StateRunning, b.State())
	})

	t.Run("window expires back into the round", func(t *testing.T) {
		b, h := runningTDM(t)
		now := time.Now()
		setTimer(b, 300)

		h.addScore(data.TeamRed, int32(b.cfg.DominationScoreGap))
		b.Tick(now, 0.1)
		require.Equal(t, StateDomination, b.State())

		b.Tick(now.Add(dominationDuration/2), 0.1)
		require.Equal(t, StateDomination, b.State())

		// The gap persists past the deadline, but the window only lasts
		// 45 seconds and never ends the match by itself.
		b.Tick(now.Add(dominationDuration+time.Second), 0.1)
		require.Equal(t, StateRunning, b.State())

		b.Tick(now.Add(dominationDuration+2*time.Second), 0.1)
		require.Equal(t, StateRunning, b.State())
	})

	t.Run("no window without a time limit", func(t *testing.T) {
		deps, reg := testDeps(t)
		b, err := NewCustomBattle(deps, Properties{
			Mode: data.ModeTDM, MapID: 1, MaxPlayers: 8, TimeLimit: 0,
			ScoreLimit: 100, DamageEnabled: true,
		}, 1)
		require.NoError(t, err)
		joinTank(t, b, newFakeConn(reg, 1, "red"))
		require.False(t, b.states.DominationCanBegin())
	})
}

func TestRoundStopTimeSnapshot(t *testing.T) {
	b, reg := newTestBattle(t, data.ModeTDM)
	h := b.ModeHandler().(*TDMHandler)
	joinTank(t, b, newFakeConn(reg, 1, "red"))
	joinTank(t, b, newFakeConn(reg, 2, "blue"))

	now := time.Now()
	b.states.setState(StateWarmUp, now)
	b.states.setState(StateRunning, now)
	round := b.RoundEntity()
	require.NotNil(t, round)
	original := roundStopTime(t, b)

	setTimer(b, 300)
	h.addScore(data.TeamRed, int32(b.cfg.DominationScoreGap))
	b.Tick(now, 0.1)
	require.Equal(t, StateDomination, b.State())

	// The announced stop time now points at the domination deadline.
	require.True(t, roundStopTime(t, b).Before(original))

	h.addScore(data.TeamBlue, int32(b.cfg.DominationScoreGap))
	b.Tick(now.Add(time.Second), 0.1)
	require.Equal(t, StateRunning, b.State())
	require.Equal(t, original, roundStopTime(t, b))
}

func TestRoundStopTimeRestoredOnExpiry(t *testing.T) {
	b, reg := newTestBattle(t, data.ModeTDM)
	h := b.ModeHandler().(*TDMHandler)
	joinTank(t, b, newFakeConn(reg, 1, "red"))
	joinTank(t, b, newFakeConn(reg, 2, "blue"))

	now := time.Now()
	b.states.setState(StateWarmUp, now)
	b.states.setState(StateRunning, now)
	original := roundStopTime(t, b)

	setTimer(b, 300)
	h.addScore(data.TeamRed, int32(b.cfg.DominationScoreGap))
	b.Tick(now, 0.1)
	require.Equal(t, StateDomination, b.State())

	b.Tick(now.Add(dominationDuration+time.Second), 0.1)
	require.Equal(t, StateRunning, b.State())
	require.Equal(t, original, roundStopTime(t, b))
}

func roundStopTime(t *testing.T, b *Battle) time.Time {
	t.Helper()
	c, ok := b.RoundEntity().GetComponent(ecs.KeyRoundStopTime)
	require.True(t, ok)
	return c.(ecs.RoundStopTimeComponent).StopTime
}
