package handler

import (
	"github.com/kuraysdev/Vint/internal/battle"
	"github.com/kuraysdev/Vint/internal/data"
	"github.com/kuraysdev/Vint/internal/ecs"
	"github.com/kuraysdev/Vint/internal/protocol"
	"go.uber.org/zap"
)

func handleMove(deps Deps) protocol.HandlerFunc {
	return func(conn any, r *protocol.Reader) {
		c := asConnection(conn)
		p := seat(c)
		if p == nil {
			return
		}
		tank := p.Tank()
		if tank == nil || !tank.Alive() {
			return
		}
		pos := data.Vec3{X: r.ReadFloat64(), Y: r.ReadFloat64(), Z: r.ReadFloat64()}
		tank.SetPosition(pos)
	}
}

func handleFire(deps Deps) protocol.HandlerFunc {
	return func(conn any, r *protocol.Reader) {
		c := asConnection(conn)
		p := seat(c)
		if p == nil {
			return
		}
		source := p.Tank()
		if source == nil || !source.Alive() {
			return
		}

		b := p.Battle()
		if s := b.State(); s != battle.StateRunning && s != battle.StateDomination {
			return
		}

		targetID := r.ReadInt64()
		hit := data.Vec3{X: r.ReadFloat64(), Y: r.ReadFloat64(), Z: r.ReadFloat64()}
		critical := r.ReadBool()
		backstab := r.ReadBool()
		turretHit := r.ReadBool()

		target := findTank(b, targetID)
		if target == nil || !target.Alive() {
			c.Log().Debug("shot at missing tank", zap.Int64("target", targetID))
			return
		}

		props := b.Properties()
		if !props.FriendlyFire && target != source {
			if t := p.Team(); t != data.TeamNone && t == target.Player().Team() {
				return
			}
		}

		value := sourceDamage(source)
		if critical {
			value *= 2
		}
		b.DamageProcessor().Damage(source, target, battle.CalculatedDamage{
			HitPoint:  hit,
			Value:     value,
			Critical:  critical,
			Backstab:  backstab,
			TurretHit: turretHit,
		})
	}
}

func handleSelfDestruct(deps Deps) protocol.HandlerFunc {
	return func(conn any, r *protocol.Reader) {
		c := asConnection(conn)
		p := seat(c)
		if p == nil {
			return
		}
		tank := p.Tank()
		if tank == nil || !tank.Alive() {
			return
		}
		b := p.Battle()
		b.DamageProcessor().Damage(tank, tank, battle.CalculatedDamage{
			HitPoint: tank.Position(),
			Value:    tank.Health() + 1,
		})
	}
}

func handleTakeBonus(deps Deps) protocol.HandlerFunc {
	return func(conn any, r *protocol.Reader) {
		c := asConnection(conn)
		p := seat(c)
		if p == nil {
			return
		}
		tank := p.Tank()
		if tank == nil || !tank.Alive() {
			return
		}
		b := p.Battle()
		if b.Bonuses() == nil {
			return
		}

		bonusID := r.ReadInt64()
		box := b.Bonuses().FindByEntity(bonusID)
		if box == nil {
			// Raced another taker or a despawn.
			c.Log().Debug("bonus not takable", zap.Int64("bonus", bonusID))
			return
		}
		box.Take(tank)
	}
}

func handleFlagCollision(deps Deps) protocol.HandlerFunc {
	return func(conn any, r *protocol.Reader) {
		c := asConnection(conn)
		p := seat(c)
		if p == nil {
			return
		}
		tank := p.Tank()
		if tank == nil {
			return
		}

		ctf, ok := p.Battle().ModeHandler().(*battle.CTFHandler)
		if !ok {
			c.Log().Debug("flag collision outside CTF")
			return
		}

		flagID := r.ReadInt64()
		flag := ctf.FlagByEntity(flagID)
		if flag == nil {
			c.Log().Debug("collision with unknown flag", zap.Int64("flag", flagID))
			return
		}
		flag.HandleCollision(tank)
	}
}

// findTank resolves a tank entity id to its live occupant.
func findTank(b *battle.Battle, entityID int64) *battle.BattleTank {
	for _, p := range b.Players() {
		if tank := p.Tank(); tank != nil && tank.Entity().ID() == entityID {
			return tank
		}
	}
	return nil
}

// sourceDamage reads the shooter's per-hit damage from its tank spec.
func sourceDamage(tank *battle.BattleTank) float64 {
	if c, ok := tank.Entity().GetComponent(ecs.KeyTankSpec); ok {
		return c.(ecs.TankSpecComponent).Damage
	}
	return 0
}
