package battle

import (
	"sync"

	"github.com/kuraysdev/Vint/internal/data"
	"github.com/kuraysdev/Vint/internal/ecs"
	"go.uber.org/zap"
)

// flagInteractRadius gates every flag transition on tank proximity.
const flagInteractRadius = 10.0

// FlagState is one flag's lifecycle stage.
type FlagState int

const (
	FlagOnPedestal FlagState = iota
	FlagOnGround
	FlagCaptured
)

func (s FlagState) String() string {
	switch s {
	case FlagOnPedestal:
		return "on_pedestal"
	case FlagOnGround:
		return "on_ground"
	case FlagCaptured:
		return "captured"
	default:
		return "unknown"
	}
}

// Flag is one team's capture point. Transitions arrive from connection
// execute stages, so state is mutex-guarded.
type Flag struct {
	handler  *CTFHandler
	team     data.TeamColor
	pedestal data.Vec3
	entity   *ecs.Entity

	mu       sync.Mutex
	state    FlagState
	position data.Vec3
	carrier  *BattleTank // non-nil only while captured
}

func newFlag(h *CTFHandler, team data.TeamColor, pedestal data.Vec3) *Flag {
	entity := ecs.NewFlagEntity(h.battle.reg, h.battle.BattleEntity(), team, pedestal)
	return &Flag{
		handler:  h,
		team:     team,
		pedestal: pedestal,
		entity:   entity,
		state:    FlagOnPedestal,
		position: pedestal,
	}
}

func (f *Flag) Team() data.TeamColor { return f.team }

func (f *Flag) Entity() *ecs.Entity { return f.entity }

func (f *Flag) State() FlagState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func (f *Flag) Carrier() *BattleTank {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.carrier
}

// Position is the pedestal, the drop point, or the carrier's position
// depending on state.
func (f *Flag) Position() data.Vec3 {
	f.mu.Lock()
	state := f.state
	pos := f.position
	carrier := f.carrier
	f.mu.Unlock()
	if state == FlagCaptured && carrier != nil {
		return carrier.Position()
	}
	return pos
}

func (f *Flag) setComponent(pos data.Vec3, carrierID int64) {
	if err := f.entity.ChangeComponent(ecs.FlagPositionComponent{Position: pos, CarrierID: carrierID}); err != nil {
		f.handler.battle.Log().Debug("flag position update lost", zap.Error(err))
	}
}

// capture hands the pedestal or ground flag to an enemy tank.
func (f *Flag) capture(tank *BattleTank) {
	f.mu.Lock()
	f.state = FlagCaptured
	f.carrier = tank
	f.mu.Unlock()

	f.setComponent(tank.Position(), tank.Entity().ID())
	f.entity.Send(FlagCapturedEvent{Team: f.team, CarrierID: tank.Entity().ID()})
}

// Drop puts a carried flag on the ground where the carrier stood.
// No-op unless captured.
func (f *Flag) Drop() {
	f.mu.Lock()
	if f.state != FlagCaptured {
		f.mu.Unlock()
		return
	}
	carrier := f.carrier
	f.state = FlagOnGround
	f.carrier = nil
	pos := f.position
	if carrier != nil {
		pos = carrier.Position()
	}
	f.position = pos
	f.mu.Unlock()

	f.setComponent(pos, 0)
	f.entity.Send(FlagDroppedEvent{Team: f.team, Position: pos})
}

// returnToPedestal settles an ally reclaiming a grounded flag.
func (f *Flag) returnToPedestal(tank *BattleTank) {
	f.mu.Lock()
	f.state = FlagOnPedestal
	f.carrier = nil
	f.position = f.pedestal
	f.mu.Unlock()

	f.setComponent(f.pedestal, 0)
	tank.player.mutateResult(func(r *ecs.UserResultComponent) {
		r.FlagReturns++
		r.Score += flagReturnScore
	})
	f.entity.Send(FlagReturnedEvent{Team: f.team, ReturnerID: tank.Entity().ID()})
}

// reset puts the flag back on its pedestal without crediting anyone.
func (f *Flag) reset() {
	f.mu.Lock()
	f.state = FlagOnPedestal
	f.carrier = nil
	f.position = f.pedestal
	f.mu.Unlock()
	f.setComponent(f.pedestal, 0)
}

// deliver settles a carrier scoring with this (enemy) flag at their own
// pedestal.
func (f *Flag) deliver(tank *BattleTank) {
	f.mu.Lock()
	f.state = FlagOnPedestal
	f.carrier = nil
	f.position = f.pedestal
	f.mu.Unlock()

	f.setComponent(f.pedestal, 0)
	tank.player.mutateResult(func(r *ecs.UserResultComponent) {
		r.FlagDelivers++
		r.Score += flagScore
	})
	f.entity.Send(FlagDeliveredEvent{Team: f.team.Opposite(), DelivererID: tank.Entity().ID()})
}

// HandleCollision resolves one tank touching this flag. Ignored outside
// Running state, for dead tanks, and outside the interaction radius.
func (f *Flag) HandleCollision(tank *BattleTank) {
	battle := f.handler.battle
	if s := battle.State(); s != StateRunning && s != StateDomination {
		return
	}
	if tank == nil || !tank.Alive() {
		return
	}
	if tank.Position().DistanceTo(f.Position()) > flagInteractRadius {
		return
	}

	ally := tank.player.Team() == f.team

	f.mu.Lock()
	state := f.state
	carrier := f.carrier
	f.mu.Unlock()

	switch state {
	case FlagOnPedestal:
		if ally {
			// Scoring touch only while hauling the enemy flag home.
			opposite := f.handler.OppositeFlag(f)
			if opposite.State() == FlagCaptured && opposite.Carrier() == tank {
				opposite.deliver(tank)
				f.handler.teamScored(tank.player.Team())
			}
			return
		}
		f.capture(tank)
	case FlagOnGround:
		if ally {
			f.returnToPedestal(tank)
			return
		}
		f.capture(tank)
	case FlagCaptured:
		_ = carrier // carried flags collide with nothing
	default:
		battle.Log().Error("unhandled flag state", zap.Stringer("state", state))
	}
}
