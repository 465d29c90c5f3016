// Package memory implements the NES CPU and PPU address-space decoding:
// RAM mirroring, register windows, and cartridge routing. It holds no
// hardware behavior of its own beyond the decode table.
package memory

import "github.com/RedCastSoftware/nespresso-nes-emulator/internal/cartridge"

// PPURegisters is the CPU-visible PPU register window ($2000-$2007,
// mirrored through $3FFF).
type PPURegisters interface {
	ReadRegister(address uint16) uint8
	WriteRegister(address uint16, value uint8)
}

// APURegisters is the CPU-visible APU/frame-counter register window.
type APURegisters interface {
	WriteRegister(address uint16, value uint8)
	ReadStatus() uint8
}

// InputDevice is the CPU-visible controller port window ($4016/$4017).
type InputDevice interface {
	Read(address uint16) uint8
	Write(address uint16, value uint8)
}

// CartridgePRG is the CPU-visible cartridge window ($6000-$FFFF).
type CartridgePRG interface {
	ReadPRG(address uint16) uint8
	WritePRG(address uint16, value uint8)
}

// CartridgeCHR is the PPU-visible cartridge window ($0000-$1FFF) plus
// the current nametable mirroring mode.
type CartridgeCHR interface {
	ReadCHR(address uint16) uint8
	WriteCHR(address uint16, value uint8)
	Mirroring() cartridge.MirrorMode
}

// DMATrigger is invoked on a $4014 write; the bus owns the actual
// 513/514-cycle stall and byte copy.
type DMATrigger interface {
	TriggerOAMDMA(page uint8)
}

// Memory implements the NES's $0000-$FFFF CPU address decode.
type Memory struct {
	ram [0x800]uint8

	ppu   PPURegisters
	apu   APURegisters
	input InputDevice
	cart  CartridgePRG
	dma   DMATrigger

	openBus uint8
}

// New creates a CPU memory map wired to the given components. SetDMA
// and SetInput may be called afterward to complete wiring order.
func New(ppu PPURegisters, apu APURegisters, cart CartridgePRG) *Memory {
	return &Memory{ppu: ppu, apu: apu, cart: cart}
}

func (m *Memory) SetInput(input InputDevice) { m.input = input }
func (m *Memory) SetDMA(dma DMATrigger)      { m.dma = dma }

// SaveState snapshots the CPU-visible 2KiB work RAM.
func (m *Memory) SaveState() [0x800]uint8 { return m.ram }

// LoadState restores a snapshot produced by SaveState.
func (m *Memory) LoadState(ram [0x800]uint8) { m.ram = ram }

// Read implements the CPU's $0000-$FFFF decode table.
func (m *Memory) Read(addr uint16) uint8 {
	var value uint8
	switch {
	case addr < 0x2000:
		value = m.ram[addr&0x07FF]
	case addr < 0x4000:
		value = m.ppu.ReadRegister(0x2000 + (addr & 0x0007))
	case addr == 0x4015:
		value = m.apu.ReadStatus()
	case addr == 0x4016 || addr == 0x4017:
		if m.input != nil {
			value = m.input.Read(addr)
		}
	case addr < 0x4020:
		value = m.openBus
	case addr >= 0x6000:
		value = m.cart.ReadPRG(addr)
	default: // $4020-$5FFF: cartridge expansion area, unmapped
		value = m.openBus
	}
	m.openBus = value
	return value
}

// Write implements the CPU's $0000-$FFFF decode table.
func (m *Memory) Write(addr uint16, value uint8) {
	switch {
	case addr < 0x2000:
		m.ram[addr&0x07FF] = value
	case addr < 0x4000:
		m.ppu.WriteRegister(0x2000+(addr&0x0007), value)
	case addr == 0x4014:
		if m.dma != nil {
			m.dma.TriggerOAMDMA(value)
		}
	case addr == 0x4016:
		if m.input != nil {
			m.input.Write(addr, value)
		}
	case addr >= 0x4000 && addr <= 0x4013, addr == 0x4015, addr == 0x4017:
		m.apu.WriteRegister(addr, value)
	case addr < 0x4020:
		// test-mode registers, ignored
	case addr >= 0x6000:
		m.cart.WritePRG(addr, value)
	default:
		// cartridge expansion area, unmapped
	}
}

// PPUMemory implements the PPU's $0000-$3FFF address decode: pattern
// tables via the cartridge, nametables with mirroring, and palette RAM.
type PPUMemory struct {
	vram       [0x1000]uint8
	paletteRAM [32]uint8
	cart       CartridgeCHR
}

// NewPPUMemory creates a PPU memory map. Palette entries 0,4,8,12 power
// on to black per hardware convention.
func NewPPUMemory(cart CartridgeCHR) *PPUMemory {
	pm := &PPUMemory{cart: cart}
	for i := 0; i < 32; i += 4 {
		pm.paletteRAM[i] = 0x0F
	}
	return pm
}

func (pm *PPUMemory) Read(addr uint16) uint8 {
	addr &= 0x3FFF
	switch {
	case addr < 0x2000:
		return pm.cart.ReadCHR(addr)
	case addr < 0x3F00:
		return pm.vram[pm.nametableIndex(addr&0x2FFF)]
	default:
		return pm.paletteRAM[paletteIndex(addr)]
	}
}

func (pm *PPUMemory) Write(addr uint16, value uint8) {
	addr &= 0x3FFF
	switch {
	case addr < 0x2000:
		pm.cart.WriteCHR(addr, value)
	case addr < 0x3F00:
		pm.vram[pm.nametableIndex(addr&0x2FFF)] = value
	default:
		pm.paletteRAM[paletteIndex(addr)] = value
	}
}

// PPUMemoryState is a snapshot of the PPU's nametable VRAM and palette
// RAM, for use by internal/savestate.
type PPUMemoryState struct {
	VRAM    [0x1000]uint8
	Palette [32]uint8
}

// SaveState snapshots the PPU's nametable VRAM and palette RAM.
func (pm *PPUMemory) SaveState() PPUMemoryState {
	return PPUMemoryState{VRAM: pm.vram, Palette: pm.paletteRAM}
}

// LoadState restores a snapshot produced by SaveState.
func (pm *PPUMemory) LoadState(s PPUMemoryState) {
	pm.vram, pm.paletteRAM = s.VRAM, s.Palette
}

// PaletteEntry exposes a palette RAM byte by index (0-31) for rendering,
// without going through the full PPU address decode; the
// $10/$14/$18/$1C -> $00/$04/$08/$0C fold still applies.
func (pm *PPUMemory) PaletteEntry(index uint8) uint8 {
	return pm.paletteRAM[paletteIndex(0x3F00+uint16(index))]
}

func paletteIndex(addr uint16) uint16 {
	index := (addr - 0x3F00) & 0x1F
	if index == 0x10 || index == 0x14 || index == 0x18 || index == 0x1C {
		index &= 0x0F
	}
	return index
}

// nametableIndex maps a $2000-$2FFF address (or its $3000-$3EFF mirror,
// already folded by the caller) to a physical VRAM offset according to
// the cartridge's current mirroring mode.
func (pm *PPUMemory) nametableIndex(addr uint16) uint16 {
	addr &= 0x0FFF
	table := (addr >> 10) & 3
	offset := addr & 0x3FF

	switch pm.cart.Mirroring() {
	case cartridge.MirrorHorizontal:
		if table >= 2 {
			return 0x400 + offset
		}
		return offset
	case cartridge.MirrorVertical:
		if table == 1 || table == 3 {
			return 0x400 + offset
		}
		return offset
	case cartridge.MirrorSingleLow:
		return offset
	case cartridge.MirrorSingleHigh:
		return 0x400 + offset
	case cartridge.MirrorFourScreen:
		return table*0x400 + offset
	default:
		return offset
	}
}
