package protocol

// Server→client command types.
const (
	CmdInitTime        byte = 1
	CmdShareEntity     byte = 2
	CmdUnshareEntity   byte = 3
	CmdComponentAdd    byte = 4
	CmdComponentChange byte = 5
	CmdComponentRemove byte = 6
	CmdSendEvent       byte = 7
)

// Client→server command types.
const (
	CmdPong               byte = 128
	CmdEnterBattle        byte = 129
	CmdExitBattle         byte = 130
	CmdReadyToSpawn       byte = 131
	CmdTakeBonus          byte = 132
	CmdFlagCollision      byte = 133
	CmdLogin              byte = 134
	CmdRegister           byte = 135
	CmdCreateBattle       byte = 136
	CmdUpdateBattleParams byte = 137
	CmdMove               byte = 138
	CmdFire               byte = 139
	CmdSelfDestruct       byte = 140
)

// Outbound is a command queued on a connection's send stage. Encode writes
// the full command buffer including the leading type byte.
type Outbound interface {
	CommandType() byte
	Encode(w *Writer)
}

// Event is a gameplay notification fanned out to the connections sharing
// its target entities. It travels inside a SendEventCommand.
type Event interface {
	EventKey() uint16
	EncodeEvent(w *Writer)
}

// ComponentSnapshot is one encoded component inside a ShareEntityCommand.
type ComponentSnapshot struct {
	Key  uint16
	Data []byte
}

// InitTimeCommand is the first command sent on a new connection.
type InitTimeCommand struct {
	ServerTimeMillis int64
}

func (c InitTimeCommand) CommandType() byte { return CmdInitTime }

func (c InitTimeCommand) Encode(w *Writer) {
	w.WriteByte(CmdInitTime)
	w.WriteInt64(c.ServerTimeMillis)
}

// ShareEntityCommand carries a full entity snapshot to a connection that
// just gained visibility of it.
type ShareEntityCommand struct {
	EntityID   int64
	Template   uint16
	Components []ComponentSnapshot
}

func (c ShareEntityCommand) CommandType() byte { return CmdShareEntity }

func (c ShareEntityCommand) Encode(w *Writer) {
	w.WriteByte(CmdShareEntity)
	w.WriteInt64(c.EntityID)
	w.WriteUint16(c.Template)
	w.WriteUint16(uint16(len(c.Components)))
	for _, snap := range c.Components {
		w.WriteUint16(snap.Key)
		w.WriteUint16(uint16(len(snap.Data)))
		w.WriteBytes(snap.Data)
	}
}

// UnshareEntityCommand removes the whole entity from the client, never
// per-component.
type UnshareEntityCommand struct {
	EntityID int64
}

func (c UnshareEntityCommand) CommandType() byte { return CmdUnshareEntity }

func (c UnshareEntityCommand) Encode(w *Writer) {
	w.WriteByte(CmdUnshareEntity)
	w.WriteInt64(c.EntityID)
}

// ComponentAddCommand announces a component attached to a shared entity.
type ComponentAddCommand struct {
	EntityID  int64
	Component ComponentSnapshot
}

func (c ComponentAddCommand) CommandType() byte { return CmdComponentAdd }

func (c ComponentAddCommand) Encode(w *Writer) {
	w.WriteByte(CmdComponentAdd)
	w.WriteInt64(c.EntityID)
	w.WriteUint16(c.Component.Key)
	w.WriteUint16(uint16(len(c.Component.Data)))
	w.WriteBytes(c.Component.Data)
}

// ComponentChangeCommand replaces a component's value as one observable
// change event.
type ComponentChangeCommand struct {
	EntityID  int64
	Component ComponentSnapshot
}

func (c ComponentChangeCommand) CommandType() byte { return CmdComponentChange }

func (c ComponentChangeCommand) Encode(w *Writer) {
	w.WriteByte(CmdComponentChange)
	w.WriteInt64(c.EntityID)
	w.WriteUint16(c.Component.Key)
	w.WriteUint16(uint16(len(c.Component.Data)))
	w.WriteBytes(c.Component.Data)
}

// ComponentRemoveCommand announces a component detached from a shared entity.
type ComponentRemoveCommand struct {
	EntityID int64
	Key      uint16
}

func (c ComponentRemoveCommand) CommandType() byte { return CmdComponentRemove }

func (c ComponentRemoveCommand) Encode(w *Writer) {
	w.WriteByte(CmdComponentRemove)
	w.WriteInt64(c.EntityID)
	w.WriteUint16(c.Key)
}

// SendEventCommand fans a gameplay event out to a connection, addressed to
// the entities the event concerns.
type SendEventCommand struct {
	Event     Event
	EntityIDs []int64
}

func (c SendEventCommand) CommandType() byte { return CmdSendEvent }

func (c SendEventCommand) Encode(w *Writer) {
	w.WriteByte(CmdSendEvent)
	w.WriteUint16(c.Event.EventKey())

	payload := NewWriter()
	c.Event.EncodeEvent(payload)
	w.WriteUint16(uint16(payload.Len()))
	w.WriteBytes(payload.Bytes())

	w.WriteUint16(uint16(len(c.EntityIDs)))
	for _, id := range c.EntityIDs {
		w.WriteInt64(id)
	}
}

// EncodeOutbound wraps one outbound command into its raw buffer. Encode
// writes the type byte itself, so the writer starts empty.
func EncodeOutbound(cmd Outbound) []byte {
	w := NewWriter()
	cmd.Encode(w)
	return w.Bytes()
}
