package cartridge

import (
	"bytes"
	"hash/crc32"
	"testing"
)

// buildINES assembles a minimal iNES image: a 16-byte header followed
// by prgBanks*16KiB of PRG-ROM and chrBanks*8KiB of CHR-ROM. fill, if
// non-nil, is called to seed distinguishing bytes into the payload
// before the header is prepended.
func buildINES(prgBanks, chrBanks, flags6, flags7 uint8, fill func(prg, chr []byte)) []byte {
	prg := make([]byte, int(prgBanks)*prgBankSize)
	chr := make([]byte, int(chrBanks)*chrBankSize)
	if fill != nil {
		fill(prg, chr)
	}

	h := []byte{'N', 'E', 'S', 0x1A, prgBanks, chrBanks, flags6, flags7, 0, 0, 0, 0, 0, 0, 0, 0}
	buf := append([]byte{}, h...)
	buf = append(buf, prg...)
	buf = append(buf, chr...)
	return buf
}

func TestLoadRejectsBadMagic(t *testing.T) {
	data := buildINES(1, 1, 0, 0, nil)
	data[0] = 'X'
	if _, err := LoadFromReader(bytes.NewReader(data)); err == nil {
		t.Fatal("expected an error for bad magic bytes")
	}
}

func TestLoadRejectsZeroPRGBanks(t *testing.T) {
	data := buildINES(0, 1, 0, 0, nil)
	if _, err := LoadFromReader(bytes.NewReader(data)); err == nil {
		t.Fatal("expected an error for zero PRG banks")
	}
}

func TestLoadRejectsUnsupportedMapper(t *testing.T) {
	data := buildINES(1, 1, 0xF0, 0xF0, nil) // mapper 255
	_, err := LoadFromReader(bytes.NewReader(data))
	if err == nil {
		t.Fatal("expected an error for an unsupported mapper")
	}
	loadErr, ok := err.(*LoadError)
	if !ok || loadErr.Kind != UnsupportedMapper {
		t.Fatalf("err = %v, want *LoadError{Kind: UnsupportedMapper}", err)
	}
}

func TestMirroringDecodedFromHeaderFlags(t *testing.T) {
	vert := buildINES(1, 1, 0x01, 0, nil)
	cart, err := LoadFromReader(bytes.NewReader(vert))
	if err != nil {
		t.Fatal(err)
	}
	if cart.Mirroring() != MirrorVertical {
		t.Fatalf("mirroring = %v, want vertical", cart.Mirroring())
	}

	horiz := buildINES(1, 1, 0x00, 0, nil)
	cart, err = LoadFromReader(bytes.NewReader(horiz))
	if err != nil {
		t.Fatal(err)
	}
	if cart.Mirroring() != MirrorHorizontal {
		t.Fatalf("mirroring = %v, want horizontal", cart.Mirroring())
	}

	four := buildINES(1, 1, 0x08, 0, nil)
	cart, err = LoadFromReader(bytes.NewReader(four))
	if err != nil {
		t.Fatal(err)
	}
	if cart.Mirroring() != MirrorFourScreen {
		t.Fatalf("mirroring = %v, want four-screen (overrides the H/V bit)", cart.Mirroring())
	}
}

func TestNES20FlagSuppressesPALDetection(t *testing.T) {
	// Flags7 bits 2-3 == 10 marks NES 2.0; Flags9 bit 0 would normally
	// mean PAL under iNES 1.0 rules but must be ignored under NES 2.0.
	data := buildINES(1, 1, 0, 0x08, nil)
	data[13] = 0x01 // Flags9
	cart, err := LoadFromReader(bytes.NewReader(data))
	if err != nil {
		t.Fatal(err)
	}
	if cart.IsPAL {
		t.Fatal("NES 2.0 image should not fall back to the iNES 1.0 PAL bit")
	}
}

func TestCHRRAMWhenNoCHRBanks(t *testing.T) {
	data := buildINES(1, 0, 0, 0, nil)
	cart, err := LoadFromReader(bytes.NewReader(data))
	if err != nil {
		t.Fatal(err)
	}
	cart.WriteCHR(0x0000, 0x42)
	if got := cart.ReadCHR(0x0000); got != 0x42 {
		t.Fatalf("CHR-RAM write/read = %#02x, want $42", got)
	}
}

func TestCRC32CoversPRGAndCHR(t *testing.T) {
	data := buildINES(1, 1, 0, 0, func(prg, chr []byte) {
		prg[0] = 0xAA
		chr[0] = 0xBB
	})
	cart, err := LoadFromReader(bytes.NewReader(data))
	if err != nil {
		t.Fatal(err)
	}
	want := crc32.ChecksumIEEE(data[16:])
	if cart.CRC32 != want {
		t.Fatalf("CRC32 = %#08x, want %#08x", cart.CRC32, want)
	}
}

func TestBytesRoundTripsPayload(t *testing.T) {
	original := buildINES(2, 1, 0x02, 0, func(prg, chr []byte) {
		prg[0], prg[prgBankSize] = 0x11, 0x22
		chr[0] = 0x33
	})
	cart, err := LoadFromReader(bytes.NewReader(original))
	if err != nil {
		t.Fatal(err)
	}

	reloaded, err := LoadFromReader(bytes.NewReader(cart.Bytes()))
	if err != nil {
		t.Fatalf("re-loading Bytes() output: %v", err)
	}
	if reloaded.PRGBanks != cart.PRGBanks || reloaded.CHRBanks != cart.CHRBanks {
		t.Fatalf("bank counts changed across round-trip: got %d/%d, want %d/%d",
			reloaded.PRGBanks, reloaded.CHRBanks, cart.PRGBanks, cart.CHRBanks)
	}
	if reloaded.HasBattery != cart.HasBattery {
		t.Fatal("battery flag did not survive round-trip")
	}
	if reloaded.ReadPRG(0x8000) != cart.ReadPRG(0x8000) || reloaded.ReadCHR(0x0000) != cart.ReadCHR(0x0000) {
		t.Fatal("PRG/CHR payload bytes did not survive round-trip")
	}
}

func TestSaveRAMRoundTripsOnlyWithBattery(t *testing.T) {
	battery := buildINES(1, 1, 0x02, 0, nil)
	cart, err := LoadFromReader(bytes.NewReader(battery))
	if err != nil {
		t.Fatal(err)
	}
	cart.prgRAM[0] = 0x55
	saved := cart.SaveRAM()
	if saved == nil || saved[0] != 0x55 {
		t.Fatal("battery-backed cartridge should expose SaveRAM")
	}

	noBattery := buildINES(1, 1, 0, 0, nil)
	cart2, err := LoadFromReader(bytes.NewReader(noBattery))
	if err != nil {
		t.Fatal(err)
	}
	if cart2.SaveRAM() != nil {
		t.Fatal("non-battery cartridge should return nil from SaveRAM")
	}
}

func TestMapper0MirrorsSinglePRGBank(t *testing.T) {
	data := buildINES(1, 1, 0, 0, func(prg, chr []byte) { prg[0] = 0x7A })
	cart, err := LoadFromReader(bytes.NewReader(data))
	if err != nil {
		t.Fatal(err)
	}
	if cart.ReadPRG(0x8000) != cart.ReadPRG(0xC000) {
		t.Fatal("16KiB NROM should mirror into both PRG windows")
	}
}

func TestMapper2BankSwitching(t *testing.T) {
	data := buildINES(2, 1, 0x20, 0, func(prg, chr []byte) {
		prg[0] = 0xAA              // bank 0
		prg[prgBankSize] = 0xBB    // bank 1
	})
	cart, err := LoadFromReader(bytes.NewReader(data))
	if err != nil {
		t.Fatal(err)
	}
	if got := cart.ReadPRG(0xC000); got != 0xBB {
		t.Fatalf("fixed last bank = %#02x, want $BB", got)
	}

	cart.WritePRG(0x8000, 0x01) // select bank 1
	if got := cart.ReadPRG(0x8000); got != 0xBB {
		t.Fatalf("switchable window after selecting bank 1 = %#02x, want $BB", got)
	}
	cart.WritePRG(0x8000, 0x00) // select bank 0
	if got := cart.ReadPRG(0x8000); got != 0xAA {
		t.Fatalf("switchable window after selecting bank 0 = %#02x, want $AA", got)
	}
}

func TestMapper3CHRBankSwitching(t *testing.T) {
	data := buildINES(1, 4, 0x30, 0, func(prg, chr []byte) {
		for i := 0; i < 4; i++ {
			chr[i*chrBankSize] = byte(0x10 + i)
		}
	})
	cart, err := LoadFromReader(bytes.NewReader(data))
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 4; i++ {
		cart.WritePRG(0x8000, uint8(i))
		if got := cart.ReadCHR(0x0000); got != byte(0x10+i) {
			t.Fatalf("CHR bank %d = %#02x, want %#02x", i, got, 0x10+i)
		}
	}
}

func TestMapper7PRGBankAndMirrorSelect(t *testing.T) {
	data := buildINES(4, 1, 0x70, 0x00, func(prg, chr []byte) {
		prg[0] = 0x01              // 32KiB bank 0
		prg[2*prgBankSize] = 0x02  // 32KiB bank 1
	})
	cart, err := LoadFromReader(bytes.NewReader(data))
	if err != nil {
		t.Fatal(err)
	}

	cart.WritePRG(0x8000, 0x01) // select 32KiB bank 1
	if got := cart.ReadPRG(0x8000); got != 0x02 {
		t.Fatalf("bank 1 select = %#02x, want $02", got)
	}

	cart.WritePRG(0x8000, 0x10) // bit 4 selects single-screen high
	if cart.Mirroring() != MirrorSingleHigh {
		t.Fatalf("mirroring = %v, want single-high", cart.Mirroring())
	}
	cart.WritePRG(0x8000, 0x00)
	if cart.Mirroring() != MirrorSingleLow {
		t.Fatalf("mirroring = %v, want single-low", cart.Mirroring())
	}
}

func TestMaskBankPowerOfTwoUsesBitmask(t *testing.T) {
	if got := maskBank(5, 4); got != 1 {
		t.Fatalf("maskBank(5,4) = %d, want 1", got)
	}
	if got := maskBank(0, 1); got != 0 {
		t.Fatalf("maskBank(0,1) = %d, want 0", got)
	}
}

func TestMaskBankNonPowerOfTwoUsesModulo(t *testing.T) {
	if got := maskBank(5, 3); got != 2 {
		t.Fatalf("maskBank(5,3) = %d, want 2", got)
	}
}

func TestCartridgeSaveStateRoundTrip(t *testing.T) {
	// Mapper 1 (MMC1) exercises the statefulMapper path through Cartridge.
	data := buildINES(4, 1, 0x10, 0x00, nil)
	cart, err := LoadFromReader(bytes.NewReader(data))
	if err != nil {
		t.Fatal(err)
	}
	cart.prgRAM[0] = 0x9A
	// Commit a value into MMC1's CHR0 register via 5 serial writes.
	for i := 0; i < 5; i++ {
		cart.WritePRG(0xA000, 0x01)
	}

	snap := cart.SaveState()

	cart2, err := LoadFromReader(bytes.NewReader(data))
	if err != nil {
		t.Fatal(err)
	}
	cart2.LoadState(snap)

	if cart2.prgRAM[0] != 0x9A {
		t.Fatal("PRG-RAM did not round-trip through SaveState/LoadState")
	}
	if cart2.mapper.(*mapper1).chr0 != cart.mapper.(*mapper1).chr0 {
		t.Fatal("mapper register state did not round-trip through SaveState/LoadState")
	}
}
