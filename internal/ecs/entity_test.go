package ecs

import (
	"testing"

	"github.com/google/uuid"
	"github.com/kuraysdev/Vint/internal/protocol"
	"github.com/stretchr/testify/require"
)

type recordingSharer struct {
	id   uuid.UUID
	cmds []protocol.Outbound
}

func newRecordingSharer() *recordingSharer {
	return &recordingSharer{id: uuid.New()}
}

func (s *recordingSharer) SharerID() uuid.UUID { return s.id }

func (s *recordingSharer) Push(cmd protocol.Outbound) {
	s.cmds = append(s.cmds, cmd)
}

func TestEntityComponents(t *testing.T) {
	reg := NewRegistry()

	t.Run("duplicate add fails", func(t *testing.T) {
		e := reg.Create(TemplateTank)
		require.NoError(t, e.AddComponent(HealthComponent{Current: 10, Max: 10}))
		require.ErrorIs(t, e.AddComponent(HealthComponent{Current: 5, Max: 10}), ErrComponentExists)
	})

	t.Run("change requires presence", func(t *testing.T) {
		e := reg.Create(TemplateTank)
		require.ErrorIs(t, e.ChangeComponent(HealthComponent{Current: 5, Max: 10}), ErrComponentNotFound)

		require.NoError(t, e.AddComponent(HealthComponent{Current: 10, Max: 10}))
		require.NoError(t, e.ChangeComponent(HealthComponent{Current: 5, Max: 10}))

		c, ok := e.GetComponent(KeyHealth)
		require.True(t, ok)
		require.Equal(t, 5.0, c.(HealthComponent).Current)
	})

	t.Run("change is one event to sharers", func(t *testing.T) {
		e := reg.Create(TemplateTank)
		require.NoError(t, e.AddComponent(HealthComponent{Current: 10, Max: 10}))

		s := newRecordingSharer()
		e.Share(s)
		before := len(s.cmds)

		require.NoError(t, e.ChangeComponent(HealthComponent{Current: 7, Max: 10}))
		require.Len(t, s.cmds, before+1)
		_, isChange := s.cmds[len(s.cmds)-1].(protocol.ComponentChangeCommand)
		require.True(t, isChange)
	})
}

func TestEntityShare(t *testing.T) {
	reg := NewRegistry()

	t.Run("share pushes full snapshot once", func(t *testing.T) {
		e := reg.Create(TemplateTank)
		require.NoError(t, e.AddComponent(HealthComponent{Current: 10, Max: 10}))
		require.NoError(t, e.AddComponent(PositionComponent{}))

		s := newRecordingSharer()
		require.True(t, e.Share(s))
		require.Len(t, s.cmds, 1)

		share, ok := s.cmds[0].(protocol.ShareEntityCommand)
		require.True(t, ok)
		require.Equal(t, e.ID(), share.EntityID)
		require.Len(t, share.Components, 2)

		// Idempotent: second share sends nothing.
		require.False(t, e.Share(s))
		require.Len(t, s.cmds, 1)
	})

	t.Run("unshare removes whole entity", func(t *testing.T) {
		e := reg.Create(TemplateTank)
		s := newRecordingSharer()
		e.Share(s)

		require.True(t, e.Unshare(s))
		unshare, ok := s.cmds[len(s.cmds)-1].(protocol.UnshareEntityCommand)
		require.True(t, ok)
		require.Equal(t, e.ID(), unshare.EntityID)

		// Idempotent.
		require.False(t, e.Unshare(s))
	})

	t.Run("mutations fan out to every sharer in order", func(t *testing.T) {
		e := reg.Create(TemplateTank)
		a, b := newRecordingSharer(), newRecordingSharer()
		e.Share(a)
		e.Share(b)

		require.NoError(t, e.AddComponent(HealthComponent{Current: 1, Max: 1}))
		require.NoError(t, e.ChangeComponent(HealthComponent{Current: 2, Max: 2}))
		require.NoError(t, e.RemoveComponent(KeyHealth))

		for _, s := range []*recordingSharer{a, b} {
			tail := s.cmds[len(s.cmds)-3:]
			_, isAdd := tail[0].(protocol.ComponentAddCommand)
			_, isChange := tail[1].(protocol.ComponentChangeCommand)
			_, isRemove := tail[2].(protocol.ComponentRemoveCommand)
			require.True(t, isAdd)
			require.True(t, isChange)
			require.True(t, isRemove)
		}
	})
}

func TestRegistryLifecycle(t *testing.T) {
	reg := NewRegistry()

	t.Run("get after remove is not found", func(t *testing.T) {
		e := reg.Create(TemplateBonus)
		_, err := reg.Get(e.ID())
		require.NoError(t, err)

		require.NoError(t, reg.Remove(e.ID()))
		_, err = reg.Get(e.ID())
		require.ErrorIs(t, err, ErrEntityNotFound)
	})

	t.Run("remove if unshared respects refcounts", func(t *testing.T) {
		e := reg.Create(TemplateBonus)
		s := newRecordingSharer()
		e.Share(s)

		require.False(t, reg.RemoveIfUnshared(e))
		_, err := reg.Get(e.ID())
		require.NoError(t, err)

		e.Unshare(s)
		require.True(t, reg.RemoveIfUnshared(e))
		_, err = reg.Get(e.ID())
		require.ErrorIs(t, err, ErrEntityNotFound)
	})

	t.Run("groups resolve by id", func(t *testing.T) {
		e := reg.Create(TemplateMap)
		reg.AddToGroup("maps", e)

		got, err := reg.GroupEntity("maps", e.ID())
		require.NoError(t, err)
		require.Equal(t, e, got)

		_, err = reg.GroupEntity("maps", -1)
		require.Error(t, err)
	})
}
