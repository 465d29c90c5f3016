// Package bus wires the CPU, PPU, APU, memory decoder, cartridge, and
// controllers into a single NTSC NES system and drives the fixed 3:1
// PPU:CPU lockstep.
package bus

import (
	"github.com/RedCastSoftware/nespresso-nes-emulator/internal/apu"
	"github.com/RedCastSoftware/nespresso-nes-emulator/internal/cartridge"
	"github.com/RedCastSoftware/nespresso-nes-emulator/internal/cpu"
	"github.com/RedCastSoftware/nespresso-nes-emulator/internal/input"
	"github.com/RedCastSoftware/nespresso-nes-emulator/internal/memory"
	"github.com/RedCastSoftware/nespresso-nes-emulator/internal/ppu"
)

// cpuCyclesPerFrame is the NTSC average; the PPU's own odd-frame dot
// skip is the authoritative source of frame timing, this is only used
// for Frame's cycle budget.
const cpuCyclesPerFrame = 29781

// Bus owns every hardware component and the glue between them.
type Bus struct {
	CPU    *cpu.CPU
	PPU    *ppu.PPU
	APU    *apu.APU
	Mem    *memory.Memory
	PPUMem *memory.PPUMemory
	Input  *input.InputState
	Cart   *cartridge.Cartridge

	cpuCycles uint64

	dmaActive bool
	dmaCycles int
}

// New creates a Bus with the given cartridge already loaded.
func New(cart *cartridge.Cartridge) *Bus {
	b := &Bus{Cart: cart, Input: input.NewInputState()}

	b.PPUMem = memory.NewPPUMemory(cart)
	b.PPU = ppu.New(b.PPUMem, cart)

	b.APU = apu.New()

	b.Mem = memory.New(b.PPU, b.APU, cart)
	b.Mem.SetInput(b.Input)
	b.Mem.SetDMA(b)

	b.CPU = cpu.New(b.Mem)
	b.APU.SetMemory(b.Mem, b.CPU)

	b.Reset()
	return b
}

// Reset brings every component back to its power-on state.
func (b *Bus) Reset() {
	b.CPU.Reset()
	b.PPU.Reset()
	b.APU.Reset()
	b.Input.Reset()
	b.cpuCycles = 0
	b.dmaActive = false
	b.dmaCycles = 0
}

// Step advances the system by one CPU instruction (or one stalled CPU
// cycle, during DMA), keeping the PPU and APU in lockstep at their
// fixed clock ratios.
func (b *Bus) Step() {
	var cycles uint64
	if b.dmaActive {
		cycles = 1
		b.dmaCycles--
		if b.dmaCycles <= 0 {
			b.dmaActive = false
		}
	} else {
		cycles = b.CPU.Step()
	}

	for i := uint64(0); i < cycles; i++ {
		b.stepPPUOnce()
		b.stepPPUOnce()
		b.stepPPUOnce()
		b.APU.Step()
	}

	b.cpuCycles += cycles
}

func (b *Bus) stepPPUOnce() {
	b.PPU.Step()
	b.CPU.SetNMILine(b.PPU.NMIAsserted())
	b.CPU.SetIRQLine(b.APU.IRQPending() || b.Cart.IRQPending())
}

// TriggerOAMDMA implements memory.DMATrigger: a $4014 write stalls the
// CPU for 513 (or 514, on an odd cycle) cycles while 256 bytes are
// copied from CPU memory into OAM.
func (b *Bus) TriggerOAMDMA(page uint8) {
	base := uint16(page) << 8
	for i := 0; i < 256; i++ {
		b.PPU.WriteOAM(uint8(i), b.Mem.Read(base+uint16(i)))
	}
	b.dmaActive = true
	if b.cpuCycles%2 == 1 {
		b.dmaCycles = 514
	} else {
		b.dmaCycles = 513
	}
}

// Frame runs the system for approximately one NTSC frame's worth of
// CPU cycles.
func (b *Bus) Frame() {
	target := b.cpuCycles + cpuCyclesPerFrame
	for b.cpuCycles < target {
		b.Step()
	}
}

// FrameBuffer exposes the PPU's current frame, valid until the next
// frame boundary.
func (b *Bus) FrameBuffer() *[256 * 240]uint32 { return b.PPU.FrameBuffer() }

// AudioSamples drains the APU's pending output buffer.
func (b *Bus) AudioSamples() []float32 { return b.APU.GetSamples() }

// CPUCycles reports the total CPU cycles executed since reset.
func (b *Bus) CPUCycles() uint64 { return b.cpuCycles }

// State is the full snapshot internal/savestate encodes into its
// opaque blob: every component's runtime state except the frame
// buffer and audio queue, which are presentation artifacts rather
// than emulation state, and the controller latches, which are not
// saved.
type State struct {
	CPU       cpu.State
	PPU       ppu.State
	APU       apu.State
	RAM       [0x800]uint8
	PPUMemory memory.PPUMemoryState
	Cart      cartridge.State
	CPUCycles uint64
}

// SaveState snapshots every component.
func (b *Bus) SaveState() State {
	return State{
		CPU:       b.CPU.SaveState(),
		PPU:       b.PPU.SaveState(),
		APU:       b.APU.SaveState(),
		RAM:       b.Mem.SaveState(),
		PPUMemory: b.PPUMem.SaveState(),
		Cart:      b.Cart.SaveState(),
		CPUCycles: b.cpuCycles,
	}
}

// LoadState restores a snapshot produced by SaveState. DMA stall state
// is not preserved; mid-transfer saves resume as if the transfer had
// just completed.
func (b *Bus) LoadState(s State) {
	b.CPU.LoadState(s.CPU)
	b.PPU.LoadState(s.PPU)
	b.APU.LoadState(s.APU)
	b.Mem.LoadState(s.RAM)
	b.PPUMem.LoadState(s.PPUMemory)
	b.Cart.LoadState(s.Cart)
	b.cpuCycles = s.CPUCycles
	b.dmaActive = false
	b.dmaCycles = 0
}
