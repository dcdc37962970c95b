package battle

import (
	"sync"
	"time"

	"github.com/kuraysdev/Vint/internal/data"
	"github.com/kuraysdev/Vint/internal/ecs"
	"go.uber.org/zap"
)

// BattlePlayer binds one connection to one battle, as a spectator or a
// tank occupant. It satisfies the connection's Membership so teardown can
// route through the battle.
type BattlePlayer struct {
	battle *Battle
	conn   Conn

	mu         sync.Mutex
	team       data.TeamColor
	spectator  bool
	battleUser *ecs.Entity
	tank       *BattleTank
	embodied   bool

	// Mid-match joiners wait in the lobby until joinAt elapses.
	waiting bool
	joinAt  time.Time
}

func newBattlePlayer(b *Battle, conn Conn, spectator bool, team data.TeamColor) *BattlePlayer {
	return &BattlePlayer{
		battle:    b,
		conn:      conn,
		spectator: spectator,
		team:      team,
	}
}

func (p *BattlePlayer) Battle() *Battle { return p.battle }

func (p *BattlePlayer) Conn() Conn { return p.conn }

func (p *BattlePlayer) Team() data.TeamColor {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.team
}

func (p *BattlePlayer) SetTeam(team data.TeamColor) {
	p.mu.Lock()
	p.team = team
	p.mu.Unlock()
}

func (p *BattlePlayer) Spectator() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.spectator
}

// AsTank reports whether the player is currently embodied.
func (p *BattlePlayer) AsTank() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.tank != nil
}

func (p *BattlePlayer) Tank() *BattleTank {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.tank
}

func (p *BattlePlayer) BattleUser() *ecs.Entity {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.battleUser
}

// ScheduleJoin parks the player in the lobby until at, then a later tick
// embodies them.
func (p *BattlePlayer) ScheduleJoin(at time.Time) {
	p.mu.Lock()
	p.waiting = true
	p.joinAt = at
	p.mu.Unlock()
	p.conn.Send(LobbyStartTimeEvent{StartTime: at}, p.battle.LobbyEntity())
}

// Waiting reports whether the player is parked awaiting embodiment, and
// if so when that is due.
func (p *BattlePlayer) Waiting() (bool, time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.waiting, p.joinAt
}

// Init embodies the player as a tank. Runs at most once; repeated calls
// are no-ops so promotion races stay harmless.
func (p *BattlePlayer) Init() {
	p.mu.Lock()
	if p.embodied || p.spectator {
		p.mu.Unlock()
		return
	}
	p.embodied = true
	p.waiting = false
	team := p.team
	p.mu.Unlock()

	b := p.battle
	user := p.conn.User()
	if user == nil {
		b.Log().Warn("cannot embody player without user entity")
		return
	}

	battleUser := ecs.NewBattleUserEntity(b.reg, user, b.BattleEntity(), team)

	spawn := b.pickSpawn(team)
	spec := ecs.TankSpecComponent{MaxHealth: defaultMaxHealth, Damage: defaultDamage}
	tankEntity := ecs.NewTankEntity(b.reg, battleUser, spec, spawn)
	weapon := ecs.NewWeaponEntity(b.reg, tankEntity)

	tank := &BattleTank{
		player:      p,
		entity:      tankEntity,
		weapon:      weapon,
		active:      true,
		killAssists: make(map[int64]float64),
	}

	p.mu.Lock()
	p.battleUser = battleUser
	p.tank = tank
	p.mu.Unlock()

	b.shareWithAll(battleUser, tankEntity, weapon)
	b.onEmbodied(p)
	b.Log().Info("player embodied",
		zap.Int64("battle_user", battleUser.ID()),
		zap.Int64("tank", tankEntity.ID()))
}

// Tick advances per-player work. The battle calls this last in its tick
// sequence.
func (p *BattlePlayer) Tick(now time.Time) {
	if tank := p.Tank(); tank != nil {
		tank.Tick(now)
	}
}

// LeaveBattle removes the player from the battle whether they hold a
// tank or spectate. Part of the connection's Membership.
func (p *BattlePlayer) LeaveBattle() {
	p.battle.RemovePlayer(p)
}

// LeaveLobby removes a lobby-only seat, no battle-world state involved.
func (p *BattlePlayer) LeaveLobby() {
	p.battle.RemovePlayerFromLobby(p)
}

// releaseEntities drops the player's battle-world entities from every
// viewer. Caller must have already detached the player from the battle.
func (p *BattlePlayer) releaseEntities() {
	p.mu.Lock()
	battleUser := p.battleUser
	tank := p.tank
	p.battleUser = nil
	p.tank = nil
	p.embodied = false
	p.mu.Unlock()

	if tank != nil {
		tank.Disable()
		p.battle.unshareFromAll(tank.entity, tank.weapon)
	}
	if battleUser != nil {
		p.battle.unshareFromAll(battleUser)
	}
}

// mutateResult replaces the per-battle result component through one
// observable change event. Missing entity or component is a logged no-op:
// teardown races here are expected.
func (p *BattlePlayer) mutateResult(fn func(*ecs.UserResultComponent)) {
	battleUser := p.BattleUser()
	if battleUser == nil {
		return
	}
	c, ok := battleUser.GetComponent(ecs.KeyUserResult)
	if !ok {
		p.battle.Log().Debug("result component missing", zap.Int64("entity", battleUser.ID()))
		return
	}
	result := c.(ecs.UserResultComponent)
	fn(&result)
	if err := battleUser.ChangeComponent(result); err != nil {
		p.battle.Log().Debug("result update lost", zap.Error(err))
	}
}

// Result returns a copy of the player's current battle results.
func (p *BattlePlayer) Result() ecs.UserResultComponent {
	battleUser := p.BattleUser()
	if battleUser == nil {
		return ecs.UserResultComponent{}
	}
	if c, ok := battleUser.GetComponent(ecs.KeyUserResult); ok {
		return c.(ecs.UserResultComponent)
	}
	return ecs.UserResultComponent{}
}

const (
	defaultMaxHealth = 1000.0
	defaultDamage    = 85.0

	killScore       = 10
	killAssistScore = 5
	flagScore       = 25
	flagReturnScore = 4
)

// BattleTank is the controlled vehicle of an embodied player.
type BattleTank struct {
	player *BattlePlayer
	entity *ecs.Entity
	weapon *ecs.Entity

	mu          sync.Mutex
	active      bool
	killAssists map[int64]float64 // damage per attacker battle-user id
}

func (t *BattleTank) Player() *BattlePlayer { return t.player }

func (t *BattleTank) Entity() *ecs.Entity { return t.entity }

func (t *BattleTank) Weapon() *ecs.Entity { return t.weapon }

// Alive reports whether the tank participates in combat.
func (t *BattleTank) Alive() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.active
}

func (t *BattleTank) Position() data.Vec3 {
	if c, ok := t.entity.GetComponent(ecs.KeyPosition); ok {
		return c.(ecs.PositionComponent).Position
	}
	return data.Vec3{}
}

func (t *BattleTank) SetPosition(pos data.Vec3) {
	if err := t.entity.ChangeComponent(ecs.PositionComponent{Position: pos}); err != nil {
		t.player.battle.Log().Debug("position update lost", zap.Error(err))
	}
}

func (t *BattleTank) Health() float64 {
	if c, ok := t.entity.GetComponent(ecs.KeyHealth); ok {
		return c.(ecs.HealthComponent).Current
	}
	return 0
}

func (t *BattleTank) MaxHealth() float64 {
	if c, ok := t.entity.GetComponent(ecs.KeyHealth); ok {
		return c.(ecs.HealthComponent).Max
	}
	return 0
}

func (t *BattleTank) SetHealth(health float64) {
	max := t.MaxHealth()
	if health < 0 {
		health = 0
	}
	if err := t.entity.ChangeComponent(ecs.HealthComponent{Current: health, Max: max}); err != nil {
		t.player.battle.Log().Debug("health update lost", zap.Error(err))
	}
}

// AddKillAssist folds a non-fatal attributed hit into the assist ledger.
func (t *BattleTank) AddKillAssist(source *BattleTank, value float64) {
	battleUser := source.player.BattleUser()
	if battleUser == nil {
		return
	}
	t.mu.Lock()
	t.killAssists[battleUser.ID()] += value
	t.mu.Unlock()
}

// KillBy settles a kill by another tank: scoring, assist credit, death
// announcement, then respawn scheduling.
func (t *BattleTank) KillBy(killer *BattleTank) {
	b := t.player.battle

	killer.player.mutateResult(func(r *ecs.UserResultComponent) {
		r.Kills++
		r.Score += killScore
	})
	t.player.mutateResult(func(r *ecs.UserResultComponent) {
		r.Deaths++
	})

	t.creditAssists(killer.player)
	b.modeHandler.TankKilled(killer, t)

	if killerUser := killer.player.BattleUser(); killerUser != nil {
		t.entity.Send(KillEvent{KillerID: killerUser.ID()})
	}
	t.Disable()
}

// SelfDestruct settles an unattributed or self-inflicted death.
func (t *BattleTank) SelfDestruct() {
	t.player.mutateResult(func(r *ecs.UserResultComponent) {
		r.Deaths++
	})
	t.creditAssists(nil)
	t.player.battle.modeHandler.TankKilled(nil, t)
	t.entity.Send(SelfDestructionEvent{})
	t.Disable()
}

// creditAssists converts the accumulated damage ledger into assist credit
// for every contributor except the killer, then clears it.
func (t *BattleTank) creditAssists(killer *BattlePlayer) {
	t.mu.Lock()
	ledger := t.killAssists
	t.killAssists = make(map[int64]float64)
	t.mu.Unlock()

	var killerID int64
	if killer != nil {
		if e := killer.BattleUser(); e != nil {
			killerID = e.ID()
		}
	}

	for _, p := range t.player.battle.Players() {
		battleUser := p.BattleUser()
		if battleUser == nil || battleUser.ID() == killerID {
			continue
		}
		if _, hit := ledger[battleUser.ID()]; !hit {
			continue
		}
		p.mutateResult(func(r *ecs.UserResultComponent) {
			r.KillAssists++
			r.Score += killAssistScore
		})
	}
}

// Disable takes the tank out of combat. Idempotent.
func (t *BattleTank) Disable() {
	t.mu.Lock()
	was := t.active
	t.active = false
	t.mu.Unlock()
	if !was {
		return
	}
	t.player.battle.modeHandler.TankDisabled(t)
}

// Respawn puts the tank back into combat at a fresh spawn point.
func (t *BattleTank) Respawn() {
	b := t.player.battle
	spawn := b.pickSpawn(t.player.Team())
	t.SetPosition(spawn)
	t.SetHealth(t.MaxHealth())
	t.mu.Lock()
	t.active = true
	t.mu.Unlock()
}

func (t *BattleTank) Tick(now time.Time) {}
