package battle

import (
	"sync"
	"testing"
	"time"

	"github.com/kuraysdev/Vint/internal/data"
	"github.com/stretchr/testify/require"
)

func TestBonusBoxCycle(t *testing.T) {
	b, reg := newTestBattle(t, data.ModeDM)
	p := joinTank(t, b, newFakeConn(reg, 1, "tank"))

	require.NotNil(t, b.Bonuses())
	boxes := b.Bonuses().Boxes()
	require.Len(t, boxes, 1)
	box := boxes[0]

	// Start armed the first cooldown.
	require.Equal(t, BonusCooldown, box.State())
	require.Nil(t, box.Entity())

	// Before the cooldown elapses, ticking does nothing.
	box.tick(time.Now())
	require.Equal(t, BonusCooldown, box.State())

	box.tick(time.Now().Add(defaultBonusCooldown + time.Second))
	require.Equal(t, BonusSpawned, box.State())
	require.NotNil(t, box.Entity())
	require.NotNil(t, b.Bonuses().FindByEntity(box.Entity().ID()))

	// Taking starts the next cooldown.
	require.True(t, box.Take(p.Tank()))
	require.Equal(t, BonusCooldown, box.State())
	require.Nil(t, box.Entity())
	require.Equal(t, int32(1), p.Result().BonusesTaken)
}

func TestBonusBoxTakeOnce(t *testing.T) {
	b, reg := newTestBattle(t, data.ModeDM)
	p1 := joinTank(t, b, newFakeConn(reg, 1, "one"))
	p2 := joinTank(t, b, newFakeConn(reg, 2, "two"))

	box := b.Bonuses().Boxes()[0]
	box.spawn()

	var wg sync.WaitGroup
	results := make([]bool, 2)
	tanks := []*BattleTank{p1.Tank(), p2.Tank()}
	for i := range tanks {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = box.Take(tanks[i])
		}(i)
	}
	wg.Wait()

	require.NotEqual(t, results[0], results[1], "exactly one taker must win")
	require.Equal(t, int32(1), p1.Result().BonusesTaken+p2.Result().BonusesTaken)
	require.Nil(t, box.Entity())
}

func TestBonusEffects(t *testing.T) {
	t.Run("repair heals to full", func(t *testing.T) {
		b, reg := newTestBattle(t, data.ModeDM)
		p := joinTank(t, b, newFakeConn(reg, 1, "tank"))
		p.Tank().SetHealth(50)

		box := b.Bonuses().Boxes()[0]
		box.spawn()
		require.True(t, box.Take(p.Tank()))
		require.Equal(t, defaultMaxHealth, p.Tank().Health())
	})

	t.Run("gold pays score", func(t *testing.T) {
		b, reg := newTestBattle(t, data.ModeDM)
		p := joinTank(t, b, newFakeConn(reg, 1, "tank"))

		box := b.Bonuses().Boxes()[0]
		box.bonusType = data.BonusGold
		box.spawn()
		require.True(t, box.Take(p.Tank()))
		require.Equal(t, int32(goldReward), p.Result().Score)
	})
}

func TestBonusVisibility(t *testing.T) {
	b, reg := newTestBattle(t, data.ModeDM)
	first := newFakeConn(reg, 1, "first")
	joinTank(t, b, first)

	box := b.Bonuses().Boxes()[0]
	box.spawn()
	entityID := box.Entity().ID()
	require.Contains(t, first.shared, entityID)
	require.Equal(t, 1, first.pushedEventsOf(EvBonusSpawned))

	// A late embodied player sees the standing box too.
	second := newFakeConn(reg, 2, "second")
	joinTank(t, b, second)
	require.Contains(t, second.shared, entityID)
}
