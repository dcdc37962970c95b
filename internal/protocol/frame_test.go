package protocol

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFrameRoundTrip(t *testing.T) {
	var buf bytes.Buffer

	payload := []byte{1, 2, 3, 4, 5}
	require.NoError(t, WriteFrame(&buf, payload))

	got, err := ReadFrame(&buf)
	require.NoError(t, err)
	require.Equal(t, payload, got)
}

func TestReadFrameRejectsOversize(t *testing.T) {
	var buf bytes.Buffer
	buf.Write([]byte{0xFF, 0xFF, 0xFF, 0xFF})

	_, err := ReadFrame(&buf)
	require.Error(t, err)
}

func TestSplitCommands(t *testing.T) {
	t.Run("batched commands keep order", func(t *testing.T) {
		a := NewWriterWithType(CmdPong)
		a.WriteInt64(42)
		b := NewWriterWithType(CmdExitBattle)

		frame := JoinCommands(a.Bytes(), b.Bytes())
		commands, err := SplitCommands(frame)
		require.NoError(t, err)
		require.Len(t, commands, 2)
		require.Equal(t, CmdPong, commands[0][0])
		require.Equal(t, CmdExitBattle, commands[1][0])

		r := NewReader(commands[0])
		require.Equal(t, int64(42), r.ReadInt64())
	})

	t.Run("empty frame is an error", func(t *testing.T) {
		_, err := SplitCommands(nil)
		require.Error(t, err)
	})

	t.Run("truncated length is an error", func(t *testing.T) {
		_, err := SplitCommands([]byte{0x00})
		require.Error(t, err)
	})

	t.Run("length past end is an error", func(t *testing.T) {
		_, err := SplitCommands([]byte{0x00, 0x09, 0x01})
		require.Error(t, err)
	})
}

func TestReaderFields(t *testing.T) {
	w := NewWriterWithType(CmdLogin)
	w.WriteString("tanker")
	w.WriteString("секрет")
	w.WriteBool(true)
	w.WriteFloat64(13.5)

	r := NewReader(w.Bytes())
	require.Equal(t, CmdLogin, r.CommandType())
	require.Equal(t, "tanker", r.ReadString())
	require.Equal(t, "секрет", r.ReadString())
	require.True(t, r.ReadBool())
	require.Equal(t, 13.5, r.ReadFloat64())
	require.Equal(t, 0, r.Remaining())
}

func TestEncodeOutboundCarriesType(t *testing.T) {
	data := EncodeOutbound(InitTimeCommand{ServerTimeMillis: 1000})
	require.Len(t, data, 9) // type byte + int64, nothing extra
	require.Equal(t, CmdInitTime, data[0])

	r := NewReader(data)
	require.Equal(t, int64(1000), r.ReadInt64())
	require.Equal(t, 0, r.Remaining())
}

func TestEncodeOutboundWritesTypeOnce(t *testing.T) {
	for _, cmd := range []Outbound{
		InitTimeCommand{ServerTimeMillis: 7},
		UnshareEntityCommand{EntityID: 9},
		ComponentRemoveCommand{EntityID: 9, Key: 3},
	} {
		data := EncodeOutbound(cmd)
		require.Equal(t, cmd.CommandType(), data[0])
		// The first payload byte must not echo the type: an int64 or
		// entity id this small starts with zero bytes.
		require.NotEqual(t, cmd.CommandType(), data[1])
	}
}
