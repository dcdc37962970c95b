package battle

import (
	"testing"
	"time"

	"github.com/kuraysdev/Vint/internal/data"
	"github.com/stretchr/testify/require"
)

// ctfMatch seats one red and one blue combatant in a running CTF battle.
func ctfMatch(t *testing.T) (*Battle, *CTFHandler, *BattlePlayer, *BattlePlayer) {
	t.Helper()
	b, reg := newTestBattle(t, data.ModeCTF)
	red := joinTank(t, b, newFakeConn(reg, 1, "red"))
	blue := joinTank(t, b, newFakeConn(reg, 2, "blue"))
	require.Equal(t, data.TeamRed, red.Team())
	require.Equal(t, data.TeamBlue, blue.Team())
	b.states.setState(StateRunning, time.Now())
	return b, b.ModeHandler().(*CTFHandler), red, blue
}

func redFlag(h *CTFHandler) *Flag  { return h.Flags()[0] }
func blueFlag(h *CTFHandler) *Flag { return h.Flags()[1] }

func TestFlagCollisionGating(t *testing.T) {
	t.Run("ignored before the round runs", func(t *testing.T) {
		b, h, _, blue := ctfMatch(t)
		b.states.setState(StateLobby, time.Now())

		blue.Tank().SetPosition(redFlag(h).Position())
		redFlag(h).HandleCollision(blue.Tank())
		require.Equal(t, FlagOnPedestal, redFlag(h).State())
	})

	t.Run("ignored outside the interaction radius", func(t *testing.T) {
		_, h, _, blue := ctfMatch(t)

		pos := redFlag(h).Position()
		pos.X += flagInteractRadius + 1
		blue.Tank().SetPosition(pos)
		redFlag(h).HandleCollision(blue.Tank())
		require.Equal(t, FlagOnPedestal, redFlag(h).State())

		// Just inside the radius works.
		pos.X -= 2
		blue.Tank().SetPosition(pos)
		redFlag(h).HandleCollision(blue.Tank())
		require.Equal(t, FlagCaptured, redFlag(h).State())
	})

	t.Run("ignored for dead tanks", func(t *testing.T) {
		_, h, _, blue := ctfMatch(t)

		blue.Tank().SetPosition(redFlag(h).Position())
		blue.Tank().Disable()
		redFlag(h).HandleCollision(blue.Tank())
		require.Equal(t, FlagOnPedestal, redFlag(h).State())
	})
}

func TestFlagCaptureCycle(t *testing.T) {
	t.Run("enemy takes the pedestal flag", func(t *testing.T) {
		_, h, _, blue := ctfMatch(t)
		f := redFlag(h)

		blue.Tank().SetPosition(f.Position())
		f.HandleCollision(blue.Tank())
		require.Equal(t, FlagCaptured, f.State())
		require.Same(t, blue.Tank(), f.Carrier())

		// A carried flag tracks its carrier.
		blue.Tank().SetPosition(data.Vec3{X: 7, Z: 3})
		require.Equal(t, data.Vec3{X: 7, Z: 3}, f.Position())

		// And collides with nothing further.
		f.HandleCollision(blue.Tank())
		require.Equal(t, FlagCaptured, f.State())
	})

	t.Run("ally returns a grounded flag", func(t *testing.T) {
		_, h, red, blue := ctfMatch(t)
		f := redFlag(h)

		blue.Tank().SetPosition(f.Position())
		f.HandleCollision(blue.Tank())
		blue.Tank().SetPosition(data.Vec3{X: 0})
		f.Drop()
		require.Equal(t, FlagOnGround, f.State())
		require.Equal(t, data.Vec3{X: 0}, f.Position())

		red.Tank().SetPosition(f.Position())
		f.HandleCollision(red.Tank())
		require.Equal(t, FlagOnPedestal, f.State())
		require.Equal(t, int32(1), red.Result().FlagReturns)
		require.Equal(t, int32(flagReturnScore), red.Result().Score)
	})

	t.Run("enemy recaptures a grounded flag", func(t *testing.T) {
		_, h, _, blue := ctfMatch(t)
		f := redFlag(h)

		blue.Tank().SetPosition(f.Position())
		f.HandleCollision(blue.Tank())
		f.Drop()

		blue.Tank().SetPosition(f.Position())
		f.HandleCollision(blue.Tank())
		require.Equal(t, FlagCaptured, f.State())
	})

	t.Run("ally touch on own pedestal flag is nothing without a carry", func(t *testing.T) {
		_, h, red, _ := ctfMatch(t)
		f := redFlag(h)

		red.Tank().SetPosition(f.Position())
		f.HandleCollision(red.Tank())
		require.Equal(t, FlagOnPedestal, f.State())
		require.Equal(t, int32(0), red.Result().FlagDelivers)
	})
}

func TestFlagDelivery(t *testing.T) {
	b, h, _, blue := ctfMatch(t)
	enemy, own := redFlag(h), blueFlag(h)

	blue.Tank().SetPosition(enemy.Position())
	enemy.HandleCollision(blue.Tank())
	require.Equal(t, FlagCaptured, enemy.State())

	// Hauling the red flag to the blue pedestal scores.
	blue.Tank().SetPosition(own.Position())
	own.HandleCollision(blue.Tank())

	require.Equal(t, FlagOnPedestal, enemy.State())
	require.Nil(t, enemy.Carrier())
	require.Equal(t, int32(1), blue.Result().FlagDelivers)
	require.Equal(t, int32(flagScore), blue.Result().Score)

	red, blueScore := h.Scores()
	require.Equal(t, int32(0), red)
	require.Equal(t, int32(1), blueScore)
	require.Equal(t, data.TeamBlue, b.ModeHandler().Winner())
}

func TestFlagDropsOnDeathAndLeave(t *testing.T) {
	t.Run("killed carrier drops where it died", func(t *testing.T) {
		b, h, red, blue := ctfMatch(t)
		f := redFlag(h)

		blue.Tank().SetPosition(f.Position())
		f.HandleCollision(blue.Tank())
		blue.Tank().SetPosition(data.Vec3{X: 12})

		b.DamageProcessor().Damage(red.Tank(), blue.Tank(), CalculatedDamage{Value: 2000})
		require.Equal(t, FlagOnGround, f.State())
		require.Equal(t, data.Vec3{X: 12}, f.Position())
	})

	t.Run("leaving carrier drops the flag", func(t *testing.T) {
		b, h, _, blue := ctfMatch(t)
		f := redFlag(h)

		blue.Tank().SetPosition(f.Position())
		f.HandleCollision(blue.Tank())

		b.RemovePlayer(blue)
		require.Equal(t, FlagOnGround, f.State())
	})
}

func TestFlagsResetOnFinish(t *testing.T) {
	b, h, _, blue := ctfMatch(t)
	f := redFlag(h)

	blue.Tank().SetPosition(f.Position())
	f.HandleCollision(blue.Tank())
	require.Equal(t, FlagCaptured, f.State())

	b.Finish()
	require.Equal(t, FlagOnPedestal, f.State())
	require.Nil(t, f.Carrier())
}
