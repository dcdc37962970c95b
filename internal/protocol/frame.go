package protocol

import (
	"encoding/binary"
	"fmt"
	"io"
)

// maxFrameLen bounds a single frame. Anything larger is treated as a
// protocol fault and kills the connection.
const maxFrameLen = 1 << 20

// ReadFrame reads one frame from r.
// Wire format: [4 bytes BE: payload length][payload].
// A frame's payload holds one or more commands, each wrapped as
// [2 bytes BE: command length][1 byte: command type][fields].
func ReadFrame(r io.Reader) ([]byte, error) {
	var header [4]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, fmt.Errorf("read frame header: %w", err)
	}

	payloadLen := int(binary.BigEndian.Uint32(header[:]))
	if payloadLen <= 0 || payloadLen > maxFrameLen {
		return nil, fmt.Errorf("invalid frame length: %d", payloadLen)
	}

	payload := make([]byte, payloadLen)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, fmt.Errorf("read frame payload (%d bytes): %w", payloadLen, err)
	}
	return payload, nil
}

// WriteFrame writes one frame to w.
func WriteFrame(w io.Writer, payload []byte) error {
	var header [4]byte
	binary.BigEndian.PutUint32(header[:], uint32(len(payload)))

	if _, err := w.Write(header[:]); err != nil {
		return fmt.Errorf("write frame header: %w", err)
	}
	if _, err := w.Write(payload); err != nil {
		return fmt.Errorf("write frame payload: %w", err)
	}
	return nil
}

// SplitCommands slices a frame payload into the raw command buffers it
// batches. Each returned buffer starts with the command type byte.
func SplitCommands(payload []byte) ([][]byte, error) {
	var commands [][]byte
	for off := 0; off < len(payload); {
		if off+2 > len(payload) {
			return nil, fmt.Errorf("truncated command header at offset %d", off)
		}
		cmdLen := int(binary.BigEndian.Uint16(payload[off : off+2]))
		off += 2
		if cmdLen < 1 || off+cmdLen > len(payload) {
			return nil, fmt.Errorf("invalid command length %d at offset %d", cmdLen, off)
		}
		commands = append(commands, payload[off:off+cmdLen])
		off += cmdLen
	}
	if len(commands) == 0 {
		return nil, fmt.Errorf("empty frame")
	}
	return commands, nil
}

// JoinCommands wraps raw command buffers into a single frame payload.
func JoinCommands(commands ...[]byte) []byte {
	size := 0
	for _, cmd := range commands {
		size += 2 + len(cmd)
	}
	payload := make([]byte, 0, size)
	var hdr [2]byte
	for _, cmd := range commands {
		binary.BigEndian.PutUint16(hdr[:], uint16(len(cmd)))
		payload = append(payload, hdr[:]...)
		payload = append(payload, cmd...)
	}
	return payload
}
