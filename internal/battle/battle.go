package battle

import (
	"context"
	"fmt"
	"math/rand"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kuraysdev/Vint/internal/config"
	"github.com/kuraysdev/Vint/internal/data"
	"github.com/kuraysdev/Vint/internal/ecs"
	"github.com/kuraysdev/Vint/internal/persist"
	"github.com/kuraysdev/Vint/internal/physics"
	"github.com/kuraysdev/Vint/internal/protocol"
	"github.com/kuraysdev/Vint/internal/server"
	"go.uber.org/zap"
)

// Conn is the battle core's view of one client connection. Satisfied by
// the server package's connection; tests substitute their own.
type Conn interface {
	SharerID() uuid.UUID
	User() *ecs.Entity
	PlayerID() int64
	Share(entities ...*ecs.Entity)
	Unshare(entities ...*ecs.Entity)
	Send(ev protocol.Event, targets ...*ecs.Entity)
	Push(cmd protocol.Outbound)
	BattleSeries() int
	SetBattleSeries(n int)
	SetMembership(m server.Membership)
	Online() bool
	Kick(reason string)
}

// PlayerStore is the persistence capability the battle core consumes.
// Calls are synchronous and best effort: failures are logged, never
// allowed to corrupt battle state.
type PlayerStore interface {
	UpdateDeserterStatus(ctx context.Context, playerID int64, deserted int64, needGood int32) error
	RecordBattleResult(ctx context.Context, playerID int64, res persist.BattleResultRow, reward int64) error
}

// Deps carries everything a battle needs from the outside.
type Deps struct {
	Registry *ecs.Registry
	Catalog  *data.MapCatalog
	Config   config.BattleConfig
	Store    PlayerStore
	MeshDir  string
	Log      *zap.Logger
	Rng      *rand.Rand
}

// Battle is one match instance: its properties, lifecycle, handlers, and
// the set of seated players. The tick loop is the battle's single logical
// thread; command handlers interleave with it, so shared collections are
// locked.
type Battle struct {
	typ     BattleType
	cfg     config.BattleConfig
	log     *zap.Logger
	reg     *ecs.Registry
	catalog *data.MapCatalog
	store   PlayerStore
	rng     *rand.Rand
	meshDir string

	propsMu sync.RWMutex
	props   Properties
	mapInfo *data.MapInfo

	states      *StateManager
	typeHandler TypeHandler
	modeHandler ModeHandler
	bonuses     *BonusProcessor
	damage      IDamageProcessor

	timerMu sync.Mutex
	timer   float64 // seconds remaining

	lobbyEntity  *ecs.Entity
	battleEntity *ecs.Entity
	chatEntity   *ecs.Entity

	roundMu     sync.Mutex
	roundEntity *ecs.Entity

	mesh *physics.Mesh

	mu      sync.RWMutex
	players map[uuid.UUID]*BattlePlayer

	finishOnce sync.Once
}

// NewMatchmakingBattle assembles a server-made battle with a generated
// mode and map.
func NewMatchmakingBattle(deps Deps) (*Battle, error) {
	props, info, err := GenerateMatchmakingProperties(deps.Rng, deps.Catalog)
	if err != nil {
		return nil, err
	}
	b := newBattle(deps, TypeMatchmaking, props, info)
	b.typeHandler = NewMatchmakingHandler(b)
	if err := b.Setup(); err != nil {
		return nil, err
	}
	return b, nil
}

// NewArcadeBattle assembles an event battle with generated properties.
func NewArcadeBattle(deps Deps, mode ArcadeMode) (*Battle, error) {
	props, info, err := GenerateArcadeProperties(deps.Rng, deps.Catalog, mode)
	if err != nil {
		return nil, err
	}
	b := newBattle(deps, TypeArcade, props, info)
	b.typeHandler = NewArcadeHandler(b, mode)
	if err := b.Setup(); err != nil {
		return nil, err
	}
	return b, nil
}

// NewCustomBattle assembles a player-hosted battle from explicit
// properties.
func NewCustomBattle(deps Deps, props Properties, ownerID int64) (*Battle, error) {
	info := deps.Catalog.ByID(props.MapID)
	if info == nil {
		return nil, fmt.Errorf("unknown map %d", props.MapID)
	}
	if !info.HasSpawnPoints(props.Mode) {
		return nil, fmt.Errorf("map %s cannot host %s", info.Name, props.Mode)
	}
	b := newBattle(deps, TypeCustom, props, info)
	b.typeHandler = NewCustomHandler(b, ownerID)
	if err := b.Setup(); err != nil {
		return nil, err
	}
	return b, nil
}

func newBattle(deps Deps, typ BattleType, props Properties, info *data.MapInfo) *Battle {
	b := &Battle{
		typ:     typ,
		cfg:     deps.Config,
		reg:     deps.Registry,
		catalog: deps.Catalog,
		store:   deps.Store,
		rng:     deps.Rng,
		meshDir: deps.MeshDir,
		props:   props,
		mapInfo: info,
		players: make(map[uuid.UUID]*BattlePlayer),
		timer:   float64(props.TimeLimit * 60),
	}
	b.log = deps.Log.Named("battle").With(
		zap.Stringer("type", typ),
		zap.Stringer("mode", props.Mode),
		zap.String("map", info.Name))
	b.states = newStateManager(b)
	return b
}

// Setup builds the battle's world entities and gameplay sub-objects from
// its properties.
func (b *Battle) Setup() error {
	props := b.Properties()

	mapEntity, err := b.reg.GroupEntity("maps", props.MapID)
	if err != nil {
		// Catalog maps are registered at startup; a miss here means a
		// custom id raced a reload. Create the reference on demand.
		mapEntity = ecs.NewMapEntity(b.reg, b.mapInfo)
	}

	b.lobbyEntity = ecs.NewLobbyEntity(b.reg, ecs.LobbyProperties{
		Mode:       props.Mode,
		Gravity:    props.Gravity,
		MaxPlayers: props.MaxPlayers,
	}, mapEntity)
	b.lobbyEntity.AddComponentIfAbsent(props.ClientParams())

	b.battleEntity = ecs.NewBattleEntity(b.reg, props.Mode, b.lobbyEntity)
	b.chatEntity = ecs.NewChatEntity(b.reg)

	mode, err := NewModeHandler(b, props.Mode)
	if err != nil {
		return err
	}
	b.modeHandler = mode
	if err := mode.Setup(); err != nil {
		return err
	}

	if props.DamageEnabled {
		b.damage = NewDamageProcessor(b)
	} else {
		b.damage = NewNoDamageProcessor(b)
	}

	if regions := b.mapInfo.BonusRegionsFor(props.Mode); len(regions) > 0 {
		bonuses, err := NewBonusProcessor(b, regions)
		if err != nil {
			return err
		}
		b.bonuses = bonuses
	}

	b.typeHandler.Setup()
	return nil
}

// Start loads the collision mesh and arms bonus spawning.
func (b *Battle) Start() error {
	if b.mapInfo.HasMesh && b.mapInfo.MeshFile != "" {
		mesh, err := physics.LoadMesh(filepath.Join(b.meshDir, b.mapInfo.MeshFile))
		if err != nil {
			return fmt.Errorf("load mesh for %s: %w", b.mapInfo.Name, err)
		}
		b.mesh = mesh
	}
	if b.bonuses != nil {
		b.bonuses.Start(time.Now())
	}
	b.log.Info("battle started", zap.Int64("battle", b.battleEntity.ID()))
	return nil
}

// Tick advances one simulation step. dt is seconds since the last tick.
// Per-tick order is fixed: mode, type, state machine, bonuses, players.
func (b *Battle) Tick(now time.Time, dt float64) {
	if b.State() == StateEnded {
		return
	}
	b.modeHandler.Tick(now)
	b.typeHandler.Tick(now)
	b.states.Tick(now, dt)
	if b.bonuses != nil {
		if s := b.State(); s == StateRunning || s == StateDomination {
			b.bonuses.Tick(now)
		}
	}
	for _, p := range b.Players() {
		p.Tick(now)
	}
}

// Finish ends the match. Idempotent: only the first caller acts.
func (b *Battle) Finish() {
	b.finishOnce.Do(b.finish)
}

func (b *Battle) finish() {
	b.states.setState(StateEnded, time.Now())
	b.modeHandler.OnFinished()

	var embodied, toEvict []*BattlePlayer
	for _, p := range b.Players() {
		if tank := p.Tank(); tank != nil {
			tank.Disable()
			embodied = append(embodied, p)
		} else {
			toEvict = append(toEvict, p)
		}
	}

	for _, p := range toEvict {
		p.Conn().Send(KickFromBattleEvent{}, b.battleEntity)
		b.RemovePlayer(p)
	}
	// Embodied players hear the result for their end screen, then leave
	// too; an ended battle must empty out so the service can dispose it.
	for _, p := range embodied {
		p.Conn().Send(BattleEndedEvent{}, b.battleEntity)
		b.persistResult(p)
		b.RemovePlayer(p)
	}

	b.log.Info("battle finished", zap.Stringer("winner", b.modeHandler.Winner()))
}

// persistResult writes one embodied player's battle statistics. Failures
// are logged; the battle does not care.
func (b *Battle) persistResult(p *BattlePlayer) {
	if b.store == nil {
		return
	}
	playerID := p.Conn().PlayerID()
	if playerID == 0 {
		return
	}
	r := p.Result()
	row := persist.BattleResultRow{
		Kills:         int64(r.Kills),
		Deaths:        int64(r.Deaths),
		KillAssists:   int64(r.KillAssists),
		Score:         int64(r.Score),
		BonusesTaken:  int64(r.BonusesTaken),
		FlagsTaken:    int64(r.FlagDelivers),
		FlagsReturned: int64(r.FlagReturns),
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := b.store.RecordBattleResult(ctx, playerID, row, int64(r.Score)); err != nil {
		b.log.Error("battle result not persisted",
			zap.Int64("player", playerID), zap.Error(err))
	}
}

// AddPlayer seats a connection in the battle. Non-spectators are bounded
// by MaxPlayers and rejected once the battle has ended.
func (b *Battle) AddPlayer(conn Conn, spectator bool) (*BattlePlayer, error) {
	if !spectator {
		if b.State() == StateEnded {
			return nil, fmt.Errorf("battle has ended")
		}
		if b.CombatantCount() >= b.Properties().MaxPlayers {
			return nil, fmt.Errorf("battle is full")
		}
	}

	p := newBattlePlayer(b, conn, spectator, data.TeamNone)
	if !spectator {
		b.modeHandler.SetupBattlePlayer(p)
	}

	b.mu.Lock()
	if _, seated := b.players[conn.SharerID()]; seated {
		b.mu.Unlock()
		return nil, fmt.Errorf("connection already seated")
	}
	b.players[conn.SharerID()] = p
	b.mu.Unlock()

	conn.SetMembership(p)
	b.shareWorldWith(conn)
	b.typeHandler.PlayerEntered(p)

	b.log.Info("player joined",
		zap.Bool("spectator", spectator),
		zap.Stringer("team", p.Team()))
	return p, nil
}

// shareWorldWith pushes the battle's standing entities plus every seated
// player's visible state to a fresh connection.
func (b *Battle) shareWorldWith(conn Conn) {
	conn.Share(b.lobbyEntity, b.battleEntity, b.chatEntity)
	if round := b.RoundEntity(); round != nil {
		conn.Share(round)
	}
	if ctf, ok := b.modeHandler.(*CTFHandler); ok {
		for _, f := range ctf.Flags() {
			if f != nil {
				conn.Share(f.Entity())
			}
		}
	}
	for _, other := range b.Players() {
		if battleUser := other.BattleUser(); battleUser != nil {
			conn.Share(battleUser)
		}
		if tank := other.Tank(); tank != nil {
			conn.Share(tank.Entity(), tank.Weapon())
		}
	}
	if b.bonuses != nil {
		b.bonuses.ShareSpawned(conn)
	}
}

// RemovePlayer unseats a player entirely: battle-world entities released,
// handlers notified, membership cleared. Idempotent.
func (b *Battle) RemovePlayer(p *BattlePlayer) {
	conn := p.Conn()

	b.mu.Lock()
	if _, seated := b.players[conn.SharerID()]; !seated {
		b.mu.Unlock()
		return
	}
	delete(b.players, conn.SharerID())
	b.mu.Unlock()

	b.modeHandler.RemoveBattlePlayer(p)
	b.typeHandler.PlayerExited(p)
	b.modeHandler.PlayerExited(p)

	p.releaseEntities()
	b.unshareWorldFrom(conn)
	conn.SetMembership(nil)

	b.log.Info("player left", zap.Bool("spectator", p.Spectator()))
	b.sweepSpectators()
}

// RemovePlayerFromLobby unseats a lobby-only player without touching
// battle-world state.
func (b *Battle) RemovePlayerFromLobby(p *BattlePlayer) {
	conn := p.Conn()

	b.mu.Lock()
	if _, seated := b.players[conn.SharerID()]; !seated {
		b.mu.Unlock()
		return
	}
	delete(b.players, conn.SharerID())
	b.mu.Unlock()

	b.typeHandler.PlayerExited(p)
	b.unshareWorldFrom(conn)
	conn.SetMembership(nil)
	b.sweepSpectators()
}

func (b *Battle) unshareWorldFrom(conn Conn) {
	if !conn.Online() {
		// Teardown already dropped its shares; pushing unshare commands
		// at a dead transport is pointless.
		return
	}
	if round := b.RoundEntity(); round != nil {
		conn.Unshare(round)
	}
	if ctf, ok := b.modeHandler.(*CTFHandler); ok {
		for _, f := range ctf.Flags() {
			if f != nil {
				conn.Unshare(f.Entity())
			}
		}
	}
	for _, other := range b.Players() {
		if battleUser := other.BattleUser(); battleUser != nil {
			conn.Unshare(battleUser)
		}
		if tank := other.Tank(); tank != nil {
			conn.Unshare(tank.Entity(), tank.Weapon())
		}
	}
	conn.Unshare(b.lobbyEntity, b.battleEntity, b.chatEntity)
}

// sweepSpectators kicks every spectator once no combatant remains. A
// battle of watchers with nothing to watch is over.
func (b *Battle) sweepSpectators() {
	var spectators []*BattlePlayer
	hasCombatant := false
	for _, p := range b.Players() {
		if p.Spectator() {
			spectators = append(spectators, p)
		} else {
			hasCombatant = true
		}
	}
	if hasCombatant || len(spectators) == 0 {
		return
	}
	for _, s := range spectators {
		// RemovePlayer sweeps again, so later spectators may already be
		// unseated by the time this loop reaches them.
		if b.PlayerByConn(s.Conn()) == nil {
			continue
		}
		s.Conn().Send(KickFromBattleEvent{}, b.battleEntity)
		b.RemovePlayer(s)
	}
}

// UpdateProperties applies a host's lobby edit to a custom battle. A
// mode or map change rebuilds the mode handler and battle entity while
// TransferParameters keeps score/time accounting.
func (b *Battle) UpdateProperties(props Properties) error {
	if b.typ != TypeCustom {
		return fmt.Errorf("only custom battles are editable")
	}
	if b.State() != StateLobby {
		return fmt.Errorf("battle already underway")
	}

	info := b.catalog.ByID(props.MapID)
	if info == nil {
		return fmt.Errorf("unknown map %d", props.MapID)
	}
	if !info.HasSpawnPoints(props.Mode) {
		return fmt.Errorf("map %s cannot host %s", info.Name, props.Mode)
	}
	if props.Mode == data.ModeCTF && info.Flags == nil {
		return fmt.Errorf("map %s has no flag pedestals", info.Name)
	}

	b.propsMu.Lock()
	prev := b.props
	b.props = props
	b.mapInfo = info
	b.propsMu.Unlock()

	b.timerMu.Lock()
	b.timer = float64(props.TimeLimit * 60)
	b.timerMu.Unlock()

	b.refreshLobbyComponents(props, prev)

	if props.Mode != prev.Mode {
		old := b.modeHandler
		mode, err := NewModeHandler(b, props.Mode)
		if err != nil {
			return err
		}
		if err := mode.Setup(); err != nil {
			return err
		}
		mode.TransferParameters(old)
		b.modeHandler = mode

		// Teams follow the new mode's rules.
		for _, p := range b.Players() {
			if !p.Spectator() {
				p.SetTeam(data.TeamNone)
				b.modeHandler.SetupBattlePlayer(p)
			}
		}
	}

	if props.DamageEnabled != prev.DamageEnabled {
		if props.DamageEnabled {
			b.damage = NewDamageProcessor(b)
		} else {
			b.damage = NewNoDamageProcessor(b)
		}
	}

	b.log.Info("battle properties updated", zap.Stringer("mode", props.Mode))
	return nil
}

func (b *Battle) refreshLobbyComponents(props, prev Properties) {
	replace := func(c ecs.Component) {
		if err := b.lobbyEntity.ChangeComponent(c); err != nil {
			b.log.Debug("lobby component update lost", zap.Error(err))
		}
	}
	if props.Mode != prev.Mode {
		replace(ecs.BattleModeComponent{Mode: props.Mode})
	}
	if props.Gravity != prev.Gravity {
		replace(ecs.GravityComponent{Gravity: props.Gravity})
	}
	if props.MaxPlayers != prev.MaxPlayers {
		replace(ecs.UserLimitComponent{MaxPlayers: int32(props.MaxPlayers)})
	}
	replace(props.ClientParams())
}

// onWarmUpStarted embodies everyone already seated and waiting in the
// lobby.
func (b *Battle) onWarmUpStarted(now time.Time) {
	for _, p := range b.Players() {
		if !p.Spectator() {
			p.Init()
		}
	}
}

// onRoundStarted opens the scoring round: round entity with a stop time,
// fresh tanks at spawn points.
func (b *Battle) onRoundStarted(now time.Time) {
	stopTime := now.Add(time.Duration(b.Properties().TimeLimit) * time.Minute)

	round := ecs.NewRoundEntity(b.reg, b.battleEntity, stopTime)
	b.roundMu.Lock()
	b.roundEntity = round
	b.roundMu.Unlock()

	for _, p := range b.Players() {
		p.Conn().Share(round)
		if tank := p.Tank(); tank != nil {
			tank.Respawn()
		}
	}
}

// onEmbodied gives a freshly embodied player sight of the takable world.
func (b *Battle) onEmbodied(p *BattlePlayer) {
	if b.bonuses != nil {
		b.bonuses.ShareSpawned(p.Conn())
	}
}

// Players returns a point-in-time snapshot of every seated player.
func (b *Battle) Players() []*BattlePlayer {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]*BattlePlayer, 0, len(b.players))
	for _, p := range b.players {
		out = append(out, p)
	}
	return out
}

// PlayerByConn returns the seat of a connection, nil if not seated.
func (b *Battle) PlayerByConn(conn Conn) *BattlePlayer {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.players[conn.SharerID()]
}

// TankCount counts intended combatants: seated, not spectating, not
// parked in the waiting room.
func (b *Battle) TankCount() int {
	n := 0
	for _, p := range b.Players() {
		if p.Spectator() {
			continue
		}
		if waiting, _ := p.Waiting(); waiting {
			continue
		}
		n++
	}
	return n
}

// CombatantCount counts every non-spectator seat, waiting-room joiners
// included. MaxPlayers bounds this count, not TankCount, so mid-match
// joiners cannot overcommit the battle before they embody.
func (b *Battle) CombatantCount() int {
	n := 0
	for _, p := range b.Players() {
		if !p.Spectator() {
			n++
		}
	}
	return n
}

func (b *Battle) PlayerCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.players)
}

func (b *Battle) Properties() Properties {
	b.propsMu.RLock()
	defer b.propsMu.RUnlock()
	return b.props
}

func (b *Battle) MapInfo() *data.MapInfo {
	b.propsMu.RLock()
	defer b.propsMu.RUnlock()
	return b.mapInfo
}

func (b *Battle) Type() BattleType { return b.typ }

func (b *Battle) TypeHandler() TypeHandler { return b.typeHandler }

func (b *Battle) ModeHandler() ModeHandler { return b.modeHandler }

func (b *Battle) DamageProcessor() IDamageProcessor { return b.damage }

func (b *Battle) Bonuses() *BonusProcessor { return b.bonuses }

func (b *Battle) States() *StateManager { return b.states }

func (b *Battle) State() BattleState { return b.states.State() }

func (b *Battle) Log() *zap.Logger { return b.log }

func (b *Battle) LobbyEntity() *ecs.Entity { return b.lobbyEntity }

func (b *Battle) BattleEntity() *ecs.Entity { return b.battleEntity }

func (b *Battle) ChatEntity() *ecs.Entity { return b.chatEntity }

func (b *Battle) RoundEntity() *ecs.Entity {
	b.roundMu.Lock()
	defer b.roundMu.Unlock()
	return b.roundEntity
}

// ID is the battle entity's id, usable as the battle's public identity.
func (b *Battle) ID() int64 { return b.battleEntity.ID() }

func (b *Battle) Timer() float64 {
	b.timerMu.Lock()
	defer b.timerMu.Unlock()
	return b.timer
}

func (b *Battle) advanceTimer(dt float64) {
	b.timerMu.Lock()
	b.timer -= dt
	b.timerMu.Unlock()
}

// HasMesh reports whether ground-height queries are available.
func (b *Battle) HasMesh() bool { return b.mesh != nil }

// GroundHeight queries the collision mesh below (x, startY, z); startY
// comes back unchanged when nothing is hit or no mesh is loaded.
func (b *Battle) GroundHeight(x, z, startY float64) float64 {
	if b.mesh == nil {
		return startY
	}
	if y, hit := b.mesh.GroundHeight(x, z, startY); hit {
		return y
	}
	return startY
}

// pickSpawn draws a spawn position for a team, mesh-snapped when
// possible.
func (b *Battle) pickSpawn(team data.TeamColor) data.Vec3 {
	props := b.Properties()
	info := b.MapInfo()

	points := info.SpawnPointsFor(props.Mode, team)
	if len(points) == 0 {
		points = info.SpawnPointsFor(props.Mode, data.TeamNone)
	}
	if len(points) == 0 {
		b.log.Error("map has no usable spawn points",
			zap.String("map", info.Name), zap.Stringer("mode", props.Mode))
		return data.Vec3{}
	}

	pos := points[b.rng.Intn(len(points))].Position
	if b.HasMesh() {
		pos.Y = b.GroundHeight(pos.X, pos.Z, pos.Y)
	}
	return pos
}

// shareWithAll grants every seated connection sight of the entities.
func (b *Battle) shareWithAll(entities ...*ecs.Entity) {
	for _, p := range b.Players() {
		p.Conn().Share(entities...)
	}
}

// unshareFromAll revokes every seated connection's sight of the entities
// and drops the last references from the store.
func (b *Battle) unshareFromAll(entities ...*ecs.Entity) {
	for _, p := range b.Players() {
		p.Conn().Unshare(entities...)
	}
	for _, e := range entities {
		b.reg.RemoveIfUnshared(e)
	}
}

// broadcast sends an event addressed at targets to every seated
// connection.
func (b *Battle) broadcast(ev protocol.Event, targets ...*ecs.Entity) {
	for _, p := range b.Players() {
		p.Conn().Send(ev, targets...)
	}
}
