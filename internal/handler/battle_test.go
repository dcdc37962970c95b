package handler

import (
	"testing"

	"github.com/kuraysdev/Vint/internal/battle"
	"github.com/kuraysdev/Vint/internal/data"
	"github.com/kuraysdev/Vint/internal/protocol"
	"github.com/stretchr/testify/require"
)

func TestReadProperties(t *testing.T) {
	w := protocol.NewWriterWithType(protocol.CmdCreateBattle)
	w.WriteByte(byte(data.ModeCTF))
	w.WriteByte(byte(data.GravityMars))
	w.WriteInt64(3)
	w.WriteInt32(12)
	w.WriteInt32(15)
	w.WriteInt32(150)
	w.WriteBool(true)
	w.WriteBool(true)
	w.WriteBool(false)

	props := readProperties(protocol.NewReader(w.Bytes()))
	require.Equal(t, battle.Properties{
		Mode:          data.ModeCTF,
		Gravity:       data.GravityMars,
		MapID:         3,
		MaxPlayers:    12,
		TimeLimit:     15,
		ScoreLimit:    150,
		FriendlyFire:  true,
		DamageEnabled: true,
	}, props)
}

func TestReadPropertiesTruncated(t *testing.T) {
	// Short reads fall back to zero values instead of panicking the
	// execute loop.
	w := protocol.NewWriterWithType(protocol.CmdCreateBattle)
	w.WriteByte(byte(data.ModeTDM))

	props := readProperties(protocol.NewReader(w.Bytes()))
	require.Equal(t, data.ModeTDM, props.Mode)
	require.Zero(t, props.MapID)
	require.Zero(t, props.MaxPlayers)
	require.False(t, props.DamageEnabled)
}
