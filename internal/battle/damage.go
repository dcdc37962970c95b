package battle

import (
	"github.com/kuraysdev/Vint/internal/data"
	"go.uber.org/zap"
)

// DamageType classifies the outcome of one damage application.
type DamageType int

const (
	DamageNormal DamageType = iota
	DamageCritical
	DamageKill
)

func (t DamageType) String() string {
	switch t {
	case DamageNormal:
		return "normal"
	case DamageCritical:
		return "critical"
	case DamageKill:
		return "kill"
	default:
		return "unknown"
	}
}

// CalculatedDamage is the ephemeral result of weapon logic for one hit.
type CalculatedDamage struct {
	HitPoint  data.Vec3
	Value     float64
	Critical  bool
	Backstab  bool
	TurretHit bool
}

// IDamageProcessor applies health mutation and classifies the result.
// Implementations hold no state of their own between calls: all side
// effects land on entities or go out as events.
type IDamageProcessor interface {
	// Damage applies an attributed hit. source may equal target.
	Damage(source, target *BattleTank, dmg CalculatedDamage) DamageType
	// DamageUnattributed applies environmental damage with no source.
	DamageUnattributed(target *BattleTank, dmg CalculatedDamage) DamageType
	// Heal applies an attributed heal.
	Heal(source, target *BattleTank, heal CalculatedDamage)
	// HealUnattributed applies a sourceless heal.
	HealUnattributed(target *BattleTank, heal CalculatedDamage)
}

// DamageProcessor is the standard implementation.
type DamageProcessor struct {
	battle *Battle
}

func NewDamageProcessor(b *Battle) *DamageProcessor {
	return &DamageProcessor{battle: b}
}

func (p *DamageProcessor) Damage(source, target *BattleTank, dmg CalculatedDamage) DamageType {
	if dmg.Value <= 0 {
		return DamageNormal
	}

	health := target.Health() - dmg.Value
	target.SetHealth(health)

	var result DamageType
	switch {
	case health <= 0:
		result = DamageKill
		if source == nil || source == target {
			target.SelfDestruct()
		} else {
			target.KillBy(source)
		}
	case dmg.Critical:
		result = DamageCritical
	default:
		result = DamageNormal
	}

	if result != DamageKill && source != nil && source != target {
		target.AddKillAssist(source, dmg.Value)
	}

	p.notify(source, target, dmg, false)
	return result
}

func (p *DamageProcessor) DamageUnattributed(target *BattleTank, dmg CalculatedDamage) DamageType {
	return p.Damage(nil, target, dmg)
}

func (p *DamageProcessor) Heal(source, target *BattleTank, heal CalculatedDamage) {
	if heal.Value <= 0 {
		return
	}

	health := target.Health() + heal.Value
	if max := target.MaxHealth(); health > max {
		health = max
	}
	target.SetHealth(health)

	p.notify(source, target, heal, true)
}

func (p *DamageProcessor) HealUnattributed(target *BattleTank, heal CalculatedDamage) {
	p.Heal(nil, target, heal)
}

// notify describes the hit to the connection that caused it, addressed
// at the target's tank. Sourceless heals notify the target instead, so
// repair pickups still surface client-side; sourceless damage stays
// silent.
func (p *DamageProcessor) notify(source, target *BattleTank, dmg CalculatedDamage, isHeal bool) {
	recipient := source
	if recipient == nil {
		if !isHeal {
			return
		}
		recipient = target
	}
	recipient.player.Conn().Send(DamageInfoEvent{
		HitPoint:  dmg.HitPoint,
		Value:     dmg.Value,
		Critical:  dmg.Critical,
		Backstab:  dmg.Backstab,
		TurretHit: dmg.TurretHit,
		Heal:      isHeal,
	}, target.Entity())
}

// NoDamageProcessor drops every hit, used by the without-damage arcade
// variant. Heals still apply.
type NoDamageProcessor struct {
	inner *DamageProcessor
}

func NewNoDamageProcessor(b *Battle) *NoDamageProcessor {
	return &NoDamageProcessor{inner: NewDamageProcessor(b)}
}

func (p *NoDamageProcessor) Damage(source, target *BattleTank, dmg CalculatedDamage) DamageType {
	if dmg.Value > 0 {
		p.inner.battle.Log().Debug("damage suppressed",
			zap.Float64("value", dmg.Value))
	}
	return DamageNormal
}

func (p *NoDamageProcessor) DamageUnattributed(target *BattleTank, dmg CalculatedDamage) DamageType {
	return p.Damage(nil, target, dmg)
}

func (p *NoDamageProcessor) Heal(source, target *BattleTank, heal CalculatedDamage) {
	p.inner.Heal(source, target, heal)
}

func (p *NoDamageProcessor) HealUnattributed(target *BattleTank, heal CalculatedDamage) {
	p.inner.HealUnattributed(target, heal)
}
