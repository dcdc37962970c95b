package battle

import (
	"sync"
	"time"

	"github.com/kuraysdev/Vint/internal/data"
	"github.com/kuraysdev/Vint/internal/ecs"
	"go.uber.org/zap"
)

const (
	defaultBonusCooldown = 2 * time.Minute
	parachuteSpawnHeight = 30.0

	goldReward      = 1000
	repairHealValue = 1000.0
)

// BonusBoxState is one spawn region's lifecycle stage.
type BonusBoxState int

const (
	BonusNone BonusBoxState = iota
	BonusCooldown
	BonusSpawned
)

func (s BonusBoxState) String() string {
	switch s {
	case BonusNone:
		return "none"
	case BonusCooldown:
		return "cooldown"
	case BonusSpawned:
		return "spawned"
	default:
		return "unknown"
	}
}

// BonusBox runs one region's spawn/cooldown/taken cycle. Take can arrive
// from any connection's execute stage, so the box is internally locked.
type BonusBox struct {
	processor *BonusProcessor
	bonusType data.BonusType
	position  data.Vec3
	parachute bool
	cooldown  time.Duration

	mu          sync.Mutex
	state       BonusBoxState
	cooldownEnd time.Time
	entity      *ecs.Entity // present only while spawned and takable
}

func newBonusBox(p *BonusProcessor, region data.BonusRegion) (*BonusBox, error) {
	bonusType, err := region.BonusTypeOf()
	if err != nil {
		return nil, err
	}
	cooldown := defaultBonusCooldown
	if region.Cooldown > 0 {
		cooldown = time.Duration(region.Cooldown * float64(time.Second))
	}
	return &BonusBox{
		processor: p,
		bonusType: bonusType,
		position:  region.Position,
		parachute: region.Parachute,
		cooldown:  cooldown,
	}, nil
}

func (b *BonusBox) State() BonusBoxState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

func (b *BonusBox) Entity() *ecs.Entity {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.entity
}

// startCooldown schedules the next spawn.
func (b *BonusBox) startCooldown(now time.Time) {
	b.mu.Lock()
	b.state = BonusCooldown
	b.cooldownEnd = now.Add(b.cooldown)
	b.mu.Unlock()
}

// tick spawns the box when its cooldown elapses.
func (b *BonusBox) tick(now time.Time) {
	b.mu.Lock()
	due := b.state == BonusCooldown && now.After(b.cooldownEnd)
	b.mu.Unlock()
	if due {
		b.spawn()
	}
}

// spawn creates the bonus entity and shares it with every tank occupant.
func (b *BonusBox) spawn() {
	battle := b.processor.battle
	pos := b.position
	if b.parachute {
		pos.Y += parachuteSpawnHeight
		if battle.HasMesh() {
			pos.Y = battle.GroundHeight(pos.X, pos.Z, pos.Y) + parachuteSpawnHeight
		}
	}

	entity := ecs.NewBonusEntity(battle.reg, b.bonusType, pos, b.parachute)

	b.mu.Lock()
	b.state = BonusSpawned
	b.entity = entity
	b.mu.Unlock()

	for _, p := range battle.Players() {
		if p.AsTank() {
			p.Conn().Share(entity)
		}
	}
	entity.Send(BonusSpawnedEvent{Type: b.bonusType})
}

// shareWith makes an already-spawned box visible to a late joiner.
func (b *BonusBox) shareWith(conn Conn) {
	b.mu.Lock()
	entity := b.entity
	b.mu.Unlock()
	if entity != nil {
		conn.Share(entity)
	}
}

// Take resolves one pickup attempt. Exactly one concurrent taker wins;
// losers see false and nothing else happens to them.
func (b *BonusBox) Take(tank *BattleTank) bool {
	b.mu.Lock()
	entity := b.entity
	if entity == nil {
		b.mu.Unlock()
		b.processor.battle.Log().Debug("bonus already taken",
			zap.Stringer("type", b.bonusType))
		return false
	}
	b.entity = nil
	b.state = BonusCooldown
	b.cooldownEnd = time.Now().Add(b.cooldown)
	b.mu.Unlock()

	battle := b.processor.battle

	tank.player.mutateResult(func(r *ecs.UserResultComponent) {
		r.BonusesTaken++
	})

	var takerID int64
	if battleUser := tank.player.BattleUser(); battleUser != nil {
		takerID = battleUser.ID()
	}
	battle.broadcast(BonusTakenEvent{Type: b.bonusType, TakerID: takerID}, battle.BattleEntity())

	for _, p := range battle.Players() {
		p.Conn().Unshare(entity)
	}
	battle.reg.RemoveIfUnshared(entity)

	b.applyEffect(tank)
	return true
}

// applyEffect resolves the pickup's gameplay effect. The enum is closed;
// an unknown type is a programming defect.
func (b *BonusBox) applyEffect(tank *BattleTank) {
	battle := b.processor.battle
	switch b.bonusType {
	case data.BonusRepair:
		battle.damage.HealUnattributed(tank, CalculatedDamage{
			HitPoint: tank.Position(),
			Value:    repairHealValue,
		})
	case data.BonusArmor, data.BonusDamage, data.BonusSpeed:
		// Timed supply effects run client-side off the taken event.
	case data.BonusGold:
		tank.player.mutateResult(func(r *ecs.UserResultComponent) {
			r.Score += goldReward
		})
	default:
		battle.Log().Error("unhandled bonus type, dropping effect",
			zap.Stringer("type", b.bonusType))
	}
}

// BonusProcessor owns every bonus box of one battle.
type BonusProcessor struct {
	battle *Battle
	boxes  []*BonusBox
}

func NewBonusProcessor(b *Battle, regions []data.BonusRegion) (*BonusProcessor, error) {
	p := &BonusProcessor{battle: b}
	for _, region := range regions {
		box, err := newBonusBox(p, region)
		if err != nil {
			return nil, err
		}
		p.boxes = append(p.boxes, box)
	}
	return p, nil
}

func (p *BonusProcessor) Boxes() []*BonusBox { return p.boxes }

// Start arms every region's first cooldown.
func (p *BonusProcessor) Start(now time.Time) {
	for _, box := range p.boxes {
		box.startCooldown(now)
	}
}

func (p *BonusProcessor) Tick(now time.Time) {
	for _, box := range p.boxes {
		box.tick(now)
	}
}

// ShareSpawned makes every currently-spawned box visible to a newly
// embodied player.
func (p *BonusProcessor) ShareSpawned(conn Conn) {
	for _, box := range p.boxes {
		box.shareWith(conn)
	}
}

// FindByEntity locates the box currently owning the given bonus entity.
func (p *BonusProcessor) FindByEntity(entityID int64) *BonusBox {
	for _, box := range p.boxes {
		if e := box.Entity(); e != nil && e.ID() == entityID {
			return box
		}
	}
	return nil
}
