package battle

import (
	"testing"
	"time"

	"github.com/kuraysdev/Vint/internal/data"
	"github.com/kuraysdev/Vint/internal/ecs"
	"github.com/stretchr/testify/require"
)

func TestService(t *testing.T) {
	t.Run("create and look up", func(t *testing.T) {
		deps, _ := testDeps(t)
		s := NewService(deps)
		defer s.Stop()

		b, err := s.CreateCustom(Properties{
			Mode: data.ModeDM, MapID: 1, MaxPlayers: 8, TimeLimit: 10, DamageEnabled: true,
		}, 1)
		require.NoError(t, err)
		require.Equal(t, 1, s.Count())
		require.Same(t, b, s.Get(b.ID()))
		require.Same(t, b, s.FindByLobby(b.LobbyEntity().ID()))
		require.Nil(t, s.Get(-1))
		require.Nil(t, s.FindByLobby(-1))
	})

	t.Run("matchmaking reuses open battles", func(t *testing.T) {
		deps, _ := testDeps(t)
		s := NewService(deps)
		defer s.Stop()

		first, err := s.FindOrCreateMatchmaking()
		require.NoError(t, err)
		again, err := s.FindOrCreateMatchmaking()
		require.NoError(t, err)
		require.Same(t, first, again)

		// A finished battle is no longer a candidate.
		first.Finish()
		fresh, err := s.FindOrCreateMatchmaking()
		require.NoError(t, err)
		require.NotSame(t, first, fresh)
	})

	t.Run("ended battles are disposed by their tick loop", func(t *testing.T) {
		deps, reg := testDeps(t)
		deps.Config.TickRate = time.Millisecond
		s := NewService(deps)
		defer s.Stop()

		b, err := s.CreateCustom(Properties{
			Mode: data.ModeDM, MapID: 1, MaxPlayers: 8, TimeLimit: 10, DamageEnabled: true,
		}, 1)
		require.NoError(t, err)
		lobbyID := b.LobbyEntity().ID()

		// An idle embodied player must not keep the battle alive past its
		// end: Finish evicts everyone, and the loop then retires it.
		joinTank(t, b, newFakeConn(reg, 1, "idler"))

		b.Finish()
		require.Eventually(t, func() bool { return s.Count() == 0 }, time.Second, 5*time.Millisecond)
		_, err = reg.Get(lobbyID)
		require.ErrorIs(t, err, ecs.ErrEntityNotFound)
	})

	t.Run("stop finishes everything", func(t *testing.T) {
		deps, _ := testDeps(t)
		s := NewService(deps)

		b, err := s.CreateMatchmaking()
		require.NoError(t, err)
		s.Stop()
		require.Equal(t, StateEnded, b.State())
		require.Equal(t, 0, s.Count())

		// Launching after Stop finishes the battle instead of leaking a
		// tick loop.
		late, err := s.CreateMatchmaking()
		require.NoError(t, err)
		require.Equal(t, StateEnded, late.State())
	})
}
