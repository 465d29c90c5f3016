// Package cartridge implements iNES ROM loading and cartridge-address
// routing (mappers) for the NES emulator core.
package cartridge

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"io"
)

// MirrorMode represents nametable mirroring mode.
type MirrorMode uint8

const (
	MirrorHorizontal MirrorMode = iota
	MirrorVertical
	MirrorSingleLow
	MirrorSingleHigh
	MirrorFourScreen
)

func (m MirrorMode) String() string {
	switch m {
	case MirrorHorizontal:
		return "horizontal"
	case MirrorVertical:
		return "vertical"
	case MirrorSingleLow:
		return "single-low"
	case MirrorSingleHigh:
		return "single-high"
	case MirrorFourScreen:
		return "four-screen"
	default:
		return "unknown"
	}
}

// Mapper is the common contract every bank-switching variant implements.
// The cartridge owns exactly one instance for the lifetime of the ROM.
type Mapper interface {
	CPURead(addr uint16) uint8
	CPUWrite(addr uint16, value uint8)
	PPURead(addr uint16) uint8
	PPUWrite(addr uint16, value uint8)
	// StepScanline is called once per rendered scanline (visible or
	// pre-render) by the PPU. Only mapper 4 does anything with it.
	StepScanline()
}

// irqSource is implemented by mappers that can assert the CPU IRQ line
// (currently only MMC3's scanline counter).
type irqSource interface {
	IRQPending() bool
	ClearIRQ()
}

const (
	prgBankSize = 16 * 1024
	chrBankSize = 8 * 1024
	prgRAMSize  = 8 * 1024
	trainerSize = 512
)

// Cartridge owns the raw PRG/CHR/PRG-RAM buffers and the mapper that
// routes accesses into them.
type Cartridge struct {
	MapperID   uint8
	PRGBanks   int
	CHRBanks   int // 0 means CHR-RAM
	HasBattery bool
	HasTrainer bool
	IsPAL      bool
	CRC32      uint32

	trainer   []uint8
	prgROM    []uint8
	chr       []uint8 // ROM or RAM, 8KiB*max(chrBanks,1)
	prgRAM    [prgRAMSize]uint8
	hasCHRRAM bool

	mirror MirrorMode
	mapper Mapper
}

// header is the 16-byte iNES header, laid out exactly as the file format.
type header struct {
	Magic      [4]byte
	PRGBanks   uint8
	CHRBanks   uint8
	Flags6     uint8
	Flags7     uint8
	PRGRAMSize uint8
	Flags9     uint8
	Flags10    uint8
	Padding    [5]byte
}

// LoadFromReader parses an iNES (or NES 2.0, to the extent this core
// needs) ROM image and wires up the appropriate mapper.
func LoadFromReader(r io.Reader) (*Cartridge, error) {
	var h header
	if err := binary.Read(r, binary.LittleEndian, &h); err != nil {
		return nil, &LoadError{Kind: RomFormat, Err: fmt.Errorf("reading header: %w", err)}
	}
	if !bytes.Equal(h.Magic[:], []byte("NES\x1A")) {
		return nil, &LoadError{Kind: RomFormat, Err: fmt.Errorf("bad magic %q", h.Magic[:])}
	}
	if h.PRGBanks == 0 {
		return nil, &LoadError{Kind: RomFormat, Err: fmt.Errorf("zero PRG-ROM banks")}
	}

	isNES20 := h.Flags7&0x0C == 0x08

	cart := &Cartridge{
		PRGBanks:   int(h.PRGBanks),
		CHRBanks:   int(h.CHRBanks),
		HasBattery: h.Flags6&0x02 != 0,
		HasTrainer: h.Flags6&0x04 != 0,
	}

	cart.MapperID = (h.Flags6 >> 4) | (h.Flags7 & 0xF0)
	if !isNES20 {
		cart.IsPAL = h.Flags9&0x01 != 0
	}

	switch {
	case h.Flags6&0x08 != 0:
		cart.mirror = MirrorFourScreen
	case h.Flags6&0x01 != 0:
		cart.mirror = MirrorVertical
	default:
		cart.mirror = MirrorHorizontal
	}

	if cart.HasTrainer {
		cart.trainer = make([]uint8, trainerSize)
		if _, err := io.ReadFull(r, cart.trainer); err != nil {
			return nil, &LoadError{Kind: RomFormat, Err: fmt.Errorf("reading trainer: %w", err)}
		}
	}

	cart.prgROM = make([]uint8, cart.PRGBanks*prgBankSize)
	if _, err := io.ReadFull(r, cart.prgROM); err != nil {
		return nil, &LoadError{Kind: RomFormat, Err: fmt.Errorf("reading PRG-ROM: %w", err)}
	}

	if cart.CHRBanks > 0 {
		cart.chr = make([]uint8, cart.CHRBanks*chrBankSize)
		if _, err := io.ReadFull(r, cart.chr); err != nil {
			return nil, &LoadError{Kind: RomFormat, Err: fmt.Errorf("reading CHR-ROM: %w", err)}
		}
	} else {
		cart.chr = make([]uint8, chrBankSize)
		cart.hasCHRRAM = true
	}

	cart.CRC32 = crc32.ChecksumIEEE(append(append([]uint8{}, cart.prgROM...), cart.chr...))

	mapper, err := newMapper(cart)
	if err != nil {
		return nil, err
	}
	cart.mapper = mapper

	return cart, nil
}

// Bytes reproduces the original iNES byte stream's PRG+CHR payload
// (trainer included when present) exactly, for the round-trip law in §8.
func (c *Cartridge) Bytes() []uint8 {
	var flags6 uint8
	switch c.mirror {
	case MirrorVertical:
		flags6 |= 0x01
	case MirrorFourScreen:
		flags6 |= 0x08
	}
	if c.HasBattery {
		flags6 |= 0x02
	}
	if c.HasTrainer {
		flags6 |= 0x04
	}
	flags6 |= (c.MapperID & 0x0F) << 4

	h := header{
		Magic:    [4]byte{'N', 'E', 'S', 0x1A},
		PRGBanks: uint8(c.PRGBanks),
		CHRBanks: uint8(c.CHRBanks),
		Flags6:   flags6,
		Flags7:   c.MapperID & 0xF0,
	}

	buf := &bytes.Buffer{}
	binary.Write(buf, binary.LittleEndian, &h)
	if c.HasTrainer {
		buf.Write(c.trainer)
	}
	buf.Write(c.prgROM)
	if !c.hasCHRRAM {
		buf.Write(c.chr)
	}
	return buf.Bytes()
}

// Mirroring returns the cartridge's current nametable mirroring mode.
// Mapper writes that change mirroring mutate this immediately.
func (c *Cartridge) Mirroring() MirrorMode { return c.mirror }

func (c *Cartridge) setMirror(m MirrorMode) { c.mirror = m }

// ReadPRG/WritePRG/ReadCHR/WriteCHR route through the mapper.
func (c *Cartridge) ReadPRG(addr uint16) uint8     { return c.mapper.CPURead(addr) }
func (c *Cartridge) WritePRG(addr uint16, v uint8) { c.mapper.CPUWrite(addr, v) }
func (c *Cartridge) ReadCHR(addr uint16) uint8     { return c.mapper.PPURead(addr) }
func (c *Cartridge) WriteCHR(addr uint16, v uint8) { c.mapper.PPUWrite(addr, v) }

// StepScanline notifies the mapper of a rendered scanline edge.
func (c *Cartridge) StepScanline() { c.mapper.StepScanline() }

// IRQPending reports whether the mapper currently asserts the CPU IRQ line.
func (c *Cartridge) IRQPending() bool {
	if s, ok := c.mapper.(irqSource); ok {
		return s.IRQPending()
	}
	return false
}

// ClearIRQ acknowledges/clears the mapper's IRQ line, if it has one.
func (c *Cartridge) ClearIRQ() {
	if s, ok := c.mapper.(irqSource); ok {
		s.ClearIRQ()
	}
}

// SaveRAM returns the battery-backed PRG-RAM contents, or nil when the
// cartridge has no battery.
func (c *Cartridge) SaveRAM() []uint8 {
	if !c.HasBattery {
		return nil
	}
	out := make([]uint8, len(c.prgRAM))
	copy(out, c.prgRAM[:])
	return out
}

// LoadSaveRAM restores previously-saved battery-backed PRG-RAM.
func (c *Cartridge) LoadSaveRAM(data []uint8) {
	copy(c.prgRAM[:], data)
}

// MapperState is a union of every bank-switching register any mapper
// variant uses, wide enough for mappers 0-4 and 7. Unused fields are
// simply left zero for mappers that don't have them.
type MapperState struct {
	Shift, ShiftCount                       uint8
	Control, CHR0, CHR1, PRG                uint8
	Bank                                    uint8
	Banks                                   [8]uint8
	BankSelect, PRGRAMProtect               uint8
	IRQLatch, IRQCounter                    uint8
	IRQReload, IRQEnable, IRQPendingLatched bool
}

// statefulMapper is implemented by every mapper variant.
type statefulMapper interface {
	saveMapperState() MapperState
	loadMapperState(MapperState)
}

// State is an opaque snapshot of everything about the cartridge that
// can change after load: PRG-RAM, CHR-RAM (if present), current
// mirroring, and mapper bank-switch registers.
type State struct {
	PRGRAM   [prgRAMSize]uint8
	CHR      []uint8
	Mirror   MirrorMode
	MapperSt MapperState
}

// SaveState snapshots the cartridge's mutable runtime state.
func (c *Cartridge) SaveState() State {
	s := State{PRGRAM: c.prgRAM, Mirror: c.mirror}
	if c.hasCHRRAM {
		s.CHR = append([]uint8{}, c.chr...)
	}
	if m, ok := c.mapper.(statefulMapper); ok {
		s.MapperSt = m.saveMapperState()
	}
	return s
}

// LoadState restores a snapshot produced by SaveState.
func (c *Cartridge) LoadState(s State) {
	c.prgRAM = s.PRGRAM
	c.mirror = s.Mirror
	if c.hasCHRRAM && s.CHR != nil {
		copy(c.chr, s.CHR)
	}
	if m, ok := c.mapper.(statefulMapper); ok {
		m.loadMapperState(s.MapperSt)
	}
}

func newMapper(cart *Cartridge) (Mapper, error) {
	switch cart.MapperID {
	case 0:
		return newMapper0(cart), nil
	case 1:
		return newMapper1(cart), nil
	case 2:
		return newMapper2(cart), nil
	case 3:
		return newMapper3(cart), nil
	case 4:
		return newMapper4(cart), nil
	case 7:
		return newMapper7(cart), nil
	default:
		return nil, &LoadError{Kind: UnsupportedMapper, Err: fmt.Errorf("mapper %d is not supported", cart.MapperID)}
	}
}

// maskBank masks a bank index to the available bank count: a
// power-of-two mask when count is a power of two, modulo otherwise.
func maskBank(index, count int) int {
	if count <= 0 {
		return 0
	}
	if count&(count-1) == 0 {
		return index & (count - 1)
	}
	return index % count
}
