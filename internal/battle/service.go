package battle

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// Service owns every live battle and runs each one's tick loop on its
// own goroutine. Battles share nothing with each other except the entity
// store.
type Service struct {
	deps Deps
	log  *zap.Logger

	mu      sync.Mutex
	battles map[int64]*Battle
	stops   map[int64]chan struct{}
	stopped bool

	wg sync.WaitGroup
}

func NewService(deps Deps) *Service {
	return &Service{
		deps:    deps,
		log:     deps.Log.Named("battles"),
		battles: make(map[int64]*Battle),
		stops:   make(map[int64]chan struct{}),
	}
}

// CreateMatchmaking builds and launches a fresh matchmaking battle.
func (s *Service) CreateMatchmaking() (*Battle, error) {
	b, err := NewMatchmakingBattle(s.deps)
	if err != nil {
		return nil, err
	}
	return b, s.launch(b)
}

// CreateArcade builds and launches an arcade battle of the given mode.
func (s *Service) CreateArcade(mode ArcadeMode) (*Battle, error) {
	b, err := NewArcadeBattle(s.deps, mode)
	if err != nil {
		return nil, err
	}
	return b, s.launch(b)
}

// CreateCustom builds and launches a player-hosted battle.
func (s *Service) CreateCustom(props Properties, ownerID int64) (*Battle, error) {
	b, err := NewCustomBattle(s.deps, props, ownerID)
	if err != nil {
		return nil, err
	}
	return b, s.launch(b)
}

// FindOrCreateMatchmaking returns an open matchmaking battle with room,
// or spins up a new one.
func (s *Service) FindOrCreateMatchmaking() (*Battle, error) {
	s.mu.Lock()
	for _, b := range s.battles {
		if b.Type() != TypeMatchmaking || b.State() == StateEnded {
			continue
		}
		if b.CombatantCount() < b.Properties().MaxPlayers {
			s.mu.Unlock()
			return b, nil
		}
	}
	s.mu.Unlock()
	return s.CreateMatchmaking()
}

// Get returns a live battle by id, nil if unknown.
func (s *Service) Get(id int64) *Battle {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.battles[id]
}

// FindByLobby resolves a battle from its lobby entity id.
func (s *Service) FindByLobby(lobbyID int64) *Battle {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, b := range s.battles {
		if b.LobbyEntity().ID() == lobbyID {
			return b
		}
	}
	return nil
}

// Battles returns a snapshot of every live battle.
func (s *Service) Battles() []*Battle {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Battle, 0, len(s.battles))
	for _, b := range s.battles {
		out = append(out, b)
	}
	return out
}

func (s *Service) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.battles)
}

func (s *Service) launch(b *Battle) error {
	if err := b.Start(); err != nil {
		return err
	}

	stop := make(chan struct{})
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		b.Finish()
		return nil
	}
	s.battles[b.ID()] = b
	s.stops[b.ID()] = stop
	s.mu.Unlock()

	s.wg.Add(1)
	go s.run(b, stop)
	return nil
}

// run is one battle's tick loop. The loop is the battle's single logical
// thread; it keeps its cadence no matter how slow any client is.
func (s *Service) run(b *Battle, stop chan struct{}) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.deps.Config.TickRate)
	defer ticker.Stop()

	last := time.Now()
	for {
		select {
		case now := <-ticker.C:
			dt := now.Sub(last).Seconds()
			last = now
			b.Tick(now, dt)

			if b.State() == StateEnded && b.PlayerCount() == 0 {
				s.dispose(b)
				return
			}
		case <-stop:
			return
		}
	}
}

// dispose retires an ended, empty battle and drops its standing entities.
func (s *Service) dispose(b *Battle) {
	s.mu.Lock()
	delete(s.battles, b.ID())
	delete(s.stops, b.ID())
	s.mu.Unlock()

	reg := s.deps.Registry
	for _, e := range []int64{b.LobbyEntity().ID(), b.BattleEntity().ID(), b.ChatEntity().ID()} {
		if err := reg.Remove(e); err != nil {
			s.log.Debug("battle entity already gone", zap.Int64("entity", e))
		}
	}
	if round := b.RoundEntity(); round != nil {
		if err := reg.Remove(round.ID()); err != nil {
			s.log.Debug("round entity already gone", zap.Int64("entity", round.ID()))
		}
	}
	s.log.Info("battle disposed", zap.Int64("battle", b.ID()))
}

// Stop finishes every battle and waits for the tick loops to exit.
func (s *Service) Stop() {
	s.mu.Lock()
	s.stopped = true
	battles := make([]*Battle, 0, len(s.battles))
	stops := make([]chan struct{}, 0, len(s.stops))
	for _, b := range s.battles {
		battles = append(battles, b)
	}
	for _, c := range s.stops {
		stops = append(stops, c)
	}
	s.battles = make(map[int64]*Battle)
	s.stops = make(map[int64]chan struct{})
	s.mu.Unlock()

	for _, b := range battles {
		b.Finish()
	}
	for _, c := range stops {
		close(c)
	}
	s.wg.Wait()
	s.log.Info("battle service stopped", zap.Int("battles", len(battles)))
}
