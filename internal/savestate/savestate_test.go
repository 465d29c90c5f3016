package savestate_test

import (
	"bytes"
	"testing"

	"github.com/RedCastSoftware/nespresso-nes-emulator/internal/bus"
	"github.com/RedCastSoftware/nespresso-nes-emulator/internal/cartridge"
	"github.com/RedCastSoftware/nespresso-nes-emulator/internal/savestate"
)

func newTestBus(t *testing.T) *bus.Bus {
	t.Helper()
	prg := make([]byte, 16*1024)
	for i := range prg {
		prg[i] = 0xEA
	}
	prg[0x3FFC], prg[0x3FFD] = 0x00, 0x80

	header := []byte{'N', 'E', 'S', 0x1A, 1, 1, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0}
	data := append(append([]byte{}, header...), prg...)
	data = append(data, make([]byte, 8*1024)...)

	cart, err := cartridge.LoadFromReader(bytes.NewReader(data))
	if err != nil {
		t.Fatal(err)
	}
	return bus.New(cart)
}

func TestEncodeDecodeRoundTripIsIdentity(t *testing.T) {
	sys := newTestBus(t)
	sys.Mem.Write(0x0000, 0x77)
	sys.Frame()

	blob, err := savestate.Encode(sys)
	if err != nil {
		t.Fatal(err)
	}

	dest := newTestBus(t)
	if err := savestate.Decode(dest, blob); err != nil {
		t.Fatal(err)
	}

	if dest.CPU.PC != sys.CPU.PC {
		t.Fatalf("PC = %#04x, want %#04x", dest.CPU.PC, sys.CPU.PC)
	}
	if dest.CPUCycles() != sys.CPUCycles() {
		t.Fatalf("CPUCycles = %d, want %d", dest.CPUCycles(), sys.CPUCycles())
	}
	if dest.Mem.Read(0x0000) != sys.Mem.Read(0x0000) {
		t.Fatal("RAM did not survive an encode/decode round trip")
	}
}

func TestDecodeRejectsEmptyBlob(t *testing.T) {
	dest := newTestBus(t)
	if err := savestate.Decode(dest, nil); err == nil {
		t.Fatal("expected an error decoding an empty blob")
	}
}

func TestDecodeRejectsVersionMismatch(t *testing.T) {
	sys := newTestBus(t)
	blob, err := savestate.Encode(sys)
	if err != nil {
		t.Fatal(err)
	}
	blob[0] = savestate.Version + 1

	dest := newTestBus(t)
	beforePC := dest.CPU.PC
	if err := savestate.Decode(dest, blob); err == nil {
		t.Fatal("expected an error for a version mismatch")
	}
	if dest.CPU.PC != beforePC {
		t.Fatal("a failed Decode must leave the destination untouched")
	}
}

func TestDecodeRejectsTruncatedBlob(t *testing.T) {
	sys := newTestBus(t)
	blob, err := savestate.Encode(sys)
	if err != nil {
		t.Fatal(err)
	}

	dest := newTestBus(t)
	beforePC := dest.CPU.PC
	if err := savestate.Decode(dest, blob[:len(blob)/2]); err == nil {
		t.Fatal("expected an error for a truncated blob")
	}
	if dest.CPU.PC != beforePC {
		t.Fatal("a failed Decode must leave the destination untouched")
	}
}
