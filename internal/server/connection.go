package server

import (
	"errors"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/kuraysdev/Vint/internal/ecs"
	"github.com/kuraysdev/Vint/internal/protocol"
	"go.uber.org/zap"
)

// Membership is the connection's view of its battle seat. Implemented by
// the battle package; nil while the connection is not in any lobby.
type Membership interface {
	Spectator() bool
	AsTank() bool
	LeaveBattle()
	LeaveLobby()
}

// Connection binds one client socket to the entity store. Network I/O and
// command execution run on three dedicated goroutines coordinated only
// through bounded FIFO channels: receive→execute and outbound→send.
type Connection struct {
	id   uuid.UUID
	conn net.Conn
	log  *zap.Logger

	registry *protocol.Registry
	entities *ecs.Registry

	state atomic.Int32 // protocol.ConnState

	executeQ chan []byte // raw command buffers, receive → execute
	sendQ    chan protocol.Outbound

	closeCh   chan struct{}
	closeOnce sync.Once
	closed    atomic.Bool

	writeTimeout time.Duration

	mu           sync.RWMutex
	user         *ecs.Entity
	member       Membership
	battleSeries int
	playerID     int64

	shared   map[int64]*ecs.Entity
	sharedMu sync.Mutex
}

func NewConnection(conn net.Conn, registry *protocol.Registry, entities *ecs.Registry,
	executeSize, sendSize int, writeTimeout time.Duration, log *zap.Logger) *Connection {
	id := uuid.New()
	c := &Connection{
		id:           id,
		conn:         conn,
		registry:     registry,
		entities:     entities,
		executeQ:     make(chan []byte, executeSize),
		sendQ:        make(chan protocol.Outbound, sendSize),
		closeCh:      make(chan struct{}),
		writeTimeout: writeTimeout,
		shared:       make(map[int64]*ecs.Entity),
		log:          log.With(zap.String("conn", id.String())),
	}
	c.state.Store(int32(protocol.StateConnected))
	return c
}

// Start sends the init-time command and launches the three pipeline
// goroutines.
func (c *Connection) Start() {
	c.Push(protocol.InitTimeCommand{ServerTimeMillis: time.Now().UnixMilli()})

	go c.receiveLoop()
	go c.executeLoop()
	go c.sendLoop()
}

func (c *Connection) SharerID() uuid.UUID { return c.id }

func (c *Connection) Log() *zap.Logger { return c.log }

func (c *Connection) State() protocol.ConnState {
	return protocol.ConnState(c.state.Load())
}

func (c *Connection) SetState(s protocol.ConnState) {
	c.state.Store(int32(s))
}

// Online reports whether the connection can still carry traffic.
func (c *Connection) Online() bool {
	return !c.closed.Load()
}

// User returns the connection's user entity, nil before login.
func (c *Connection) User() *ecs.Entity {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.user
}

func (c *Connection) SetUser(user *ecs.Entity, playerID int64) {
	c.mu.Lock()
	c.user = user
	c.playerID = playerID
	c.mu.Unlock()
}

// PlayerID returns the persisted player id bound at login, 0 for guests.
func (c *Connection) PlayerID() int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.playerID
}

// Membership returns the connection's battle seat, nil outside lobbies.
func (c *Connection) Membership() Membership {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.member
}

func (c *Connection) SetMembership(m Membership) {
	c.mu.Lock()
	c.member = m
	c.mu.Unlock()
	if m != nil {
		c.SetState(protocol.StateInBattle)
	} else if !c.closed.Load() {
		c.SetState(protocol.StateLobby)
	}
}

// InLobby reports whether the connection currently holds a battle seat.
func (c *Connection) InLobby() bool {
	return c.Membership() != nil
}

// BattleSeries is the count of consecutive completed matchmaking battles,
// fed into the desertion decay rule.
func (c *Connection) BattleSeries() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.battleSeries
}

func (c *Connection) SetBattleSeries(n int) {
	c.mu.Lock()
	c.battleSeries = n
	c.mu.Unlock()
}

// Push queues an outbound command for the send stage. A full queue means
// the client cannot keep up; the connection is dropped rather than letting
// it stall a battle tick.
func (c *Connection) Push(cmd protocol.Outbound) {
	if c.closed.Load() {
		return
	}
	select {
	case c.sendQ <- cmd:
	default:
		c.log.Warn("send queue full, dropping slow connection")
		c.Close()
	}
}

// Share grants this connection visibility of the entities and pushes each
// one's full snapshot. Sharing an already-shared entity is a no-op.
func (c *Connection) Share(entities ...*ecs.Entity) {
	for _, e := range entities {
		if e.Share(c) {
			c.sharedMu.Lock()
			c.shared[e.ID()] = e
			c.sharedMu.Unlock()
		}
	}
}

func (c *Connection) ShareIfUnshared(entities ...*ecs.Entity) {
	c.Share(entities...)
}

// Unshare revokes visibility of the entities, notifying removal of each
// whole entity. Entities left with no sharers are dropped from the store.
func (c *Connection) Unshare(entities ...*ecs.Entity) {
	for _, e := range entities {
		if e.Unshare(c) {
			c.sharedMu.Lock()
			delete(c.shared, e.ID())
			c.sharedMu.Unlock()
			c.entities.RemoveIfUnshared(e)
		}
	}
}

func (c *Connection) UnshareIfShared(entities ...*ecs.Entity) {
	c.Unshare(entities...)
}

// Send addresses an event at the target entities and queues it for this
// connection.
func (c *Connection) Send(ev protocol.Event, targets ...*ecs.Entity) {
	ids := make([]int64, 0, len(targets))
	for _, e := range targets {
		ids = append(ids, e.ID())
	}
	c.Push(protocol.SendEventCommand{Event: ev, EntityIDs: ids})
}

// Kick logs the reason and tears the connection down.
func (c *Connection) Kick(reason string) {
	c.log.Warn("player kicked", zap.String("reason", reason))
	c.Close()
}

// Close tears the connection down. Safe to call at any time, from any
// goroutine, any number of times. In-flight execute work drains on its
// own; Close only stops new work and releases resources.
func (c *Connection) Close() {
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		c.SetState(protocol.StateClosing)
		close(c.closeCh)
		c.conn.Close()
		c.teardown()
	})
}

// teardown releases everything the connection holds in the entity store
// and leaves its battle. Runs exactly once, from Close.
func (c *Connection) teardown() {
	user := c.User()
	if user != nil {
		// Everyone outside a battle loses sight of this user immediately;
		// in-battle viewers are handled by the battle's own removal path.
		for _, s := range user.Sharers() {
			other, ok := s.(*Connection)
			if !ok || other == c {
				continue
			}
			if !other.InLobby() {
				other.Unshare(user)
			}
		}
		if err := c.entities.Remove(user.ID()); err != nil {
			c.log.Debug("user already removed from registry", zap.Error(err))
		}
	}

	if m := c.Membership(); m != nil {
		if m.AsTank() || m.Spectator() {
			m.LeaveBattle()
		} else {
			m.LeaveLobby()
		}
	}

	// Drop the reference counts this connection held. No notifications:
	// the transport is already gone.
	c.sharedMu.Lock()
	remaining := make([]*ecs.Entity, 0, len(c.shared))
	for _, e := range c.shared {
		remaining = append(remaining, e)
	}
	c.shared = make(map[int64]*ecs.Entity)
	c.sharedMu.Unlock()

	for _, e := range remaining {
		e.DropSharer(c)
		c.entities.RemoveIfUnshared(e)
	}

	c.log.Info("connection closed")
}

// receiveLoop blocks on the transport for length-prefixed frames, splits
// out the batched commands, and pushes each onto the execute queue in
// arrival order. Decode corruption is fatal for the connection only.
func (c *Connection) receiveLoop() {
	defer c.Close()

	for {
		select {
		case <-c.closeCh:
			return
		default:
		}

		payload, err := protocol.ReadFrame(c.conn)
		if err != nil {
			if !c.closed.Load() && !isDisconnect(err) {
				c.log.Error("protocol fault, closing connection", zap.Error(err))
			}
			return
		}

		commands, err := protocol.SplitCommands(payload)
		if err != nil {
			c.log.Error("corrupt frame, closing connection", zap.Error(err))
			return
		}

		for _, cmd := range commands {
			select {
			case c.executeQ <- cmd:
			case <-c.closeCh:
				return
			}
		}
	}
}

// executeLoop pops commands in FIFO order and runs each synchronously
// against game state. One bad command is logged and dropped; the loop and
// the battle are unaffected.
func (c *Connection) executeLoop() {
	for {
		select {
		case data := <-c.executeQ:
			if err := c.registry.Dispatch(c, c.State(), data); err != nil {
				c.log.Error("command failed", zap.Error(err))
			}
		case <-c.closeCh:
			return
		}
	}
}

// sendLoop pops outbound commands in FIFO order, encodes, and writes each
// as one frame. Encode/transport failures are logged and the loop
// continues; a broken client only ever stalls its own queue.
func (c *Connection) sendLoop() {
	for {
		select {
		case cmd := <-c.sendQ:
			frame := protocol.JoinCommands(protocol.EncodeOutbound(cmd))
			c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
			if err := protocol.WriteFrame(c.conn, frame); err != nil {
				if !c.closed.Load() {
					c.log.Debug("write error", zap.Error(err))
				}
			}
		case <-c.closeCh:
			return
		}
	}
}

// isDisconnect classifies transport-level teardown signals that are a
// normal disconnect, not an error worth shouting about.
func isDisconnect(err error) bool {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, net.ErrClosed) {
		return true
	}
	var netErr *net.OpError
	return errors.As(err, &netErr)
}
