package protocol

import (
	"fmt"

	"go.uber.org/zap"
)

// ConnState represents a connection's current lifecycle phase.
type ConnState int32

const (
	StateConnected ConnState = iota // socket up, not yet logged in
	StateLobby                      // logged in, not in any battle
	StateInBattle                   // member of a battle (spectator or tank)
	StateClosing
)

func (s ConnState) String() string {
	switch s {
	case StateConnected:
		return "Connected"
	case StateLobby:
		return "Lobby"
	case StateInBattle:
		return "InBattle"
	case StateClosing:
		return "Closing"
	default:
		return fmt.Sprintf("Unknown(%d)", int32(s))
	}
}

// HandlerFunc is the callback signature for inbound command handlers.
// The connection is passed as an opaque interface to avoid import cycles.
type HandlerFunc func(conn any, r *Reader)

type handlerEntry struct {
	fn            HandlerFunc
	allowedStates map[ConnState]bool
}

// Registry maps command types to handlers with state-based access control.
// It is the opaque codec boundary: the execute stage hands it raw command
// buffers and never inspects the encoding itself.
type Registry struct {
	handlers map[byte]*handlerEntry
	log      *zap.Logger
}

func NewRegistry(log *zap.Logger) *Registry {
	return &Registry{
		handlers: make(map[byte]*handlerEntry),
		log:      log,
	}
}

// Register maps a command type to a handler, restricted to the given states.
func (reg *Registry) Register(commandType byte, states []ConnState, fn HandlerFunc) {
	allowed := make(map[ConnState]bool, len(states))
	for _, s := range states {
		allowed[s] = true
	}
	reg.handlers[commandType] = &handlerEntry{
		fn:            fn,
		allowedStates: allowed,
	}
}

// Dispatch finds the handler for the command type in data[0], validates the
// connection state, and calls the handler. Unknown command types are ignored;
// a handler panic is recovered and returned as an error so one bad command
// cannot take down the execute loop.
func (reg *Registry) Dispatch(conn any, state ConnState, data []byte) error {
	if len(data) == 0 {
		return fmt.Errorf("empty command")
	}
	commandType := data[0]
	reg.log.Debug("command received",
		zap.Uint8("type", commandType),
		zap.Int("size", len(data)),
		zap.String("state", state.String()),
	)

	entry, ok := reg.handlers[commandType]
	if !ok {
		reg.log.Debug("unknown command type", zap.Uint8("type", commandType))
		return nil
	}

	if !entry.allowedStates[state] {
		reg.log.Warn("command not allowed in state",
			zap.Uint8("type", commandType),
			zap.String("state", state.String()),
		)
		return fmt.Errorf("command %d not allowed in state %s", commandType, state)
	}

	return reg.safeCall(entry.fn, conn, NewReader(data), commandType)
}

func (reg *Registry) safeCall(fn HandlerFunc, conn any, r *Reader, commandType byte) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			reg.log.Error("handler panic recovered",
				zap.Uint8("type", commandType),
				zap.Any("panic", rec),
			)
			err = fmt.Errorf("handler panic for command %d: %v", commandType, rec)
		}
	}()
	fn(conn, r)
	return nil
}
