// Package savestate encodes and decodes the opaque save-state blob
// described by the system's external interfaces: a version byte
// followed by a gob-encoded snapshot of every component's runtime
// state.
package savestate

import (
	"bytes"
	"encoding/gob"
	"fmt"

	"github.com/RedCastSoftware/nespresso-nes-emulator/internal/bus"
)

// Version identifies the blob layout. A mismatched version is
// rejected rather than partially decoded.
const Version = 1

// Snapshotter is the bus's save/load surface; internal/bus.Bus
// implements it.
type Snapshotter interface {
	SaveState() bus.State
	LoadState(bus.State)
}

// Encode produces a versioned, opaque save-state blob for sys.
func Encode(sys Snapshotter) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte(Version)
	if err := gob.NewEncoder(&buf).Encode(sys.SaveState()); err != nil {
		return nil, &Error{Kind: ResourceExhaustion, Err: fmt.Errorf("encoding state: %w", err)}
	}
	return buf.Bytes(), nil
}

// Decode restores sys from a blob produced by Encode. On any error,
// sys is left untouched (all-or-nothing).
func Decode(sys Snapshotter, blob []byte) error {
	if len(blob) == 0 {
		return &Error{Kind: StateCompatibility, Err: fmt.Errorf("empty save state")}
	}
	if blob[0] != Version {
		return &Error{Kind: StateCompatibility, Err: fmt.Errorf("save state version %d, want %d", blob[0], Version)}
	}

	var state bus.State
	if err := gob.NewDecoder(bytes.NewReader(blob[1:])).Decode(&state); err != nil {
		return &Error{Kind: StateCompatibility, Err: fmt.Errorf("decoding state: %w", err)}
	}
	sys.LoadState(state)
	return nil
}
