package statedb

import (
	"encoding/binary"
	"fmt"

	"github.com/git-pkgs/mossmeta/internal/core"
)

// entryHeaderSize is the fixed portion of a StateEntryBinary blob: stateID(8)
// + idLen(2) + flags(4) + type(1) + reserved(1).
const entryHeaderSize = 8 + 2 + 4 + 1 + 1

// encodeEntry serializes a StateEntry to its wire form: a 16-byte fixed
// header followed by the NUL-terminated identifier.
func encodeEntry(e core.StateEntry) []byte {
	idBytes := append([]byte(e.Identifier), 0)
	buf := make([]byte, entryHeaderSize+len(idBytes))

	binary.BigEndian.PutUint64(buf[0:8], e.StateID)
	binary.BigEndian.PutUint16(buf[8:10], uint16(len(idBytes)))
	binary.BigEndian.PutUint32(buf[10:14], uint32(e.Flags))
	buf[14] = byte(e.Type)
	buf[15] = 0 // reserved

	copy(buf[entryHeaderSize:], idBytes)
	return buf
}

// decodeEntry parses a StateEntryBinary blob back into a StateEntry.
func decodeEntry(b []byte) (core.StateEntry, error) {
	if len(b) < entryHeaderSize {
		return core.StateEntry{}, fmt.Errorf("statedb: truncated entry header (%d bytes)", len(b))
	}

	stateID := binary.BigEndian.Uint64(b[0:8])
	idLen := int(binary.BigEndian.Uint16(b[8:10]))
	flags := binary.BigEndian.Uint32(b[10:14])
	stype := b[14]

	if len(b) < entryHeaderSize+idLen {
		return core.StateEntry{}, fmt.Errorf("statedb: entry identifier overruns blob")
	}
	if idLen == 0 {
		return core.StateEntry{}, fmt.Errorf("statedb: zero-length identifier")
	}

	idBytes := b[entryHeaderSize : entryHeaderSize+idLen]
	if idBytes[idLen-1] != 0 {
		return core.StateEntry{}, fmt.Errorf("statedb: identifier missing NUL terminator")
	}

	return core.StateEntry{
		StateID:    stateID,
		Identifier: string(idBytes[:idLen-1]),
		Type:       core.SelectionType(stype),
		Flags:      core.SelectionFlags(flags),
	}, nil
}

// selectionKey builds the composite (stateID, identifier) key used in the
// selections table; the stateID prefix keeps each state's rows contiguous
// under a key-ordered scan.
func selectionKey(stateID uint64, identifier string) string {
	var prefix [8]byte
	binary.BigEndian.PutUint64(prefix[:], stateID)
	return string(prefix[:]) + identifier
}

func stateKey(stateID uint64) string {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], stateID)
	return string(b[:])
}

func decodeStateKey(k []byte) uint64 {
	if len(k) < 8 {
		return 0
	}
	return binary.BigEndian.Uint64(k[:8])
}
