// Package cpu implements the 6502 CPU core used by the NES (decimal
// mode is never consulted, matching the console's CPU variant).
package cpu

// AddressingMode names the operand-fetch strategy for an instruction.
type AddressingMode int

const (
	Implied AddressingMode = iota
	Accumulator
	Immediate
	ZeroPage
	ZeroPageX
	ZeroPageY
	Relative
	Absolute
	AbsoluteX
	AbsoluteY
	Indirect
	IndexedIndirect // (zp,X)
	IndirectIndexed // (zp),Y
)

const (
	stackBase = 0x0100

	nFlagMask = 0x80
	vFlagMask = 0x40
	uFlagMask = 0x20
	bFlagMask = 0x10
	dFlagMask = 0x08
	iFlagMask = 0x04
	zFlagMask = 0x02
	cFlagMask = 0x01

	zeroPageMask = 0xFF
	pageMask     = 0xFF00

	nmiVector   = 0xFFFA
	resetVector = 0xFFFC
	irqVector   = 0xFFFE
)

// Instruction is one entry of the opcode/addressing-mode matrix.
type Instruction struct {
	Name   string
	Bytes  uint8
	Cycles uint8
	Mode   AddressingMode
}

// Memory is the bus interface the CPU reads and writes through. It
// never sees PPU/APU/mapper internals directly.
type Memory interface {
	Read(addr uint16) uint8
	Write(addr uint16, value uint8)
}

// CPU is the NES's 6502 (Ricoh 2A03) register file and execution engine.
type CPU struct {
	A, X, Y uint8
	SP      uint8
	PC      uint16

	C, Z, I, D, B, V, N bool // U (bit 5) is always reported as 1

	memory Memory

	cyclesConsumed uint64
	stallCycles    int

	nmiPending  bool
	nmiPrevious bool
	irqLine     bool

	instructions [256]Instruction
}

// New creates a CPU wired to the given bus. Call Reset before stepping.
func New(memory Memory) *CPU {
	cpu := &CPU{memory: memory}
	cpu.initInstructions()
	return cpu
}

// Reset performs the 6502 reset sequence: SP=$FD, P=$24, PC from the
// reset vector. No bytes are pushed to the stack.
func (cpu *CPU) Reset() {
	cpu.A, cpu.X, cpu.Y = 0, 0, 0
	cpu.SP = 0xFD
	cpu.setStatusByte(0x24)
	cpu.PC = cpu.readWord(resetVector)
	cpu.stallCycles = 0
	cpu.nmiPending = false
	cpu.nmiPrevious = false
	cpu.irqLine = false
}

// Stall adds cycles the CPU will burn (returning 1 per Step call)
// before its next fetch, used by the APU's DMC sample fetches. OAM-DMA
// stalls are counted by the bus, not here.
func (cpu *CPU) Stall(cycles int) { cpu.stallCycles += cycles }

// StatusByte/SetStatus/CyclesConsumed expose the packed P register and
// the cycle count to test harnesses and hosts.
func (cpu *CPU) StatusByte() uint8    { return cpu.statusByte(false) }
func (cpu *CPU) SetStatus(s uint8)    { cpu.setStatusByte(s) }
func (cpu *CPU) CyclesConsumed() uint64 { return cpu.cyclesConsumed }

// SetNMILine latches an NMI request on the low-to-high (asserted) edge,
// matching the PPU's "NMI wanted" signal: NMI fires once, edge
// triggered, and is consumed at the next instruction boundary.
func (cpu *CPU) SetNMILine(asserted bool) {
	if asserted && !cpu.nmiPrevious {
		cpu.nmiPending = true
	}
	cpu.nmiPrevious = asserted
}

// SetIRQLine sets the level-triggered IRQ line state.
func (cpu *CPU) SetIRQLine(asserted bool) { cpu.irqLine = asserted }

// State is an exported snapshot of the CPU's registers and latched
// interrupt lines, for use by internal/savestate.
type State struct {
	A, X, Y        uint8
	SP             uint8
	PC             uint16
	Status         uint8
	CyclesConsumed uint64
	StallCycles    int
	NMIPending     bool
	NMIPrevious    bool
	IRQLine        bool
}

// SaveState snapshots the CPU's registers and interrupt latches.
func (cpu *CPU) SaveState() State {
	return State{
		A: cpu.A, X: cpu.X, Y: cpu.Y, SP: cpu.SP, PC: cpu.PC,
		Status:         cpu.statusByte(false),
		CyclesConsumed: cpu.cyclesConsumed,
		StallCycles:    cpu.stallCycles,
		NMIPending:     cpu.nmiPending,
		NMIPrevious:    cpu.nmiPrevious,
		IRQLine:        cpu.irqLine,
	}
}

// LoadState restores a snapshot produced by SaveState.
func (cpu *CPU) LoadState(s State) {
	cpu.A, cpu.X, cpu.Y, cpu.SP, cpu.PC = s.A, s.X, s.Y, s.SP, s.PC
	cpu.setStatusByte(s.Status)
	cpu.cyclesConsumed = s.CyclesConsumed
	cpu.stallCycles = s.StallCycles
	cpu.nmiPending = s.NMIPending
	cpu.nmiPrevious = s.NMIPrevious
	cpu.irqLine = s.IRQLine
}

// Step executes one stall cycle, or one full instruction (including
// any interrupt service that precedes it), returning cycles consumed.
func (cpu *CPU) Step() uint64 {
	if cpu.stallCycles > 0 {
		cpu.stallCycles--
		cpu.cyclesConsumed++
		return 1
	}

	if cpu.nmiPending {
		cpu.nmiPending = false
		cpu.serviceInterrupt(nmiVector, false)
		cpu.cyclesConsumed += 7
		return 7
	}
	if cpu.irqLine && !cpu.I {
		cpu.serviceInterrupt(irqVector, false)
		cpu.cyclesConsumed += 7
		return 7
	}

	opcode := cpu.memory.Read(cpu.PC)
	inst := cpu.instructions[opcode]
	if inst.Bytes == 0 {
		inst = Instruction{Name: "NOP", Bytes: 1, Cycles: 2, Mode: Implied}
	}

	addr, pageCrossed := cpu.operandAddress(inst.Mode)
	extra := cpu.execute(opcode, inst.Mode, addr, pageCrossed)

	total := uint64(inst.Cycles) + uint64(extra)
	cpu.cyclesConsumed += total
	return total
}

func (cpu *CPU) readWord(addr uint16) uint16 {
	lo := uint16(cpu.memory.Read(addr))
	hi := uint16(cpu.memory.Read(addr + 1))
	return hi<<8 | lo
}

// operandAddress advances PC past the instruction's operand bytes and
// returns the effective address (0 for Implied/Accumulator) plus
// whether an indexed/relative fetch crossed a page boundary.
func (cpu *CPU) operandAddress(mode AddressingMode) (uint16, bool) {
	switch mode {
	case Implied, Accumulator:
		cpu.PC++
		return 0, false

	case Immediate:
		addr := cpu.PC + 1
		cpu.PC += 2
		return addr, false

	case ZeroPage:
		addr := uint16(cpu.memory.Read(cpu.PC + 1))
		cpu.PC += 2
		return addr, false

	case ZeroPageX:
		base := cpu.memory.Read(cpu.PC + 1)
		cpu.PC += 2
		return uint16((base + cpu.X) & zeroPageMask), false

	case ZeroPageY:
		base := cpu.memory.Read(cpu.PC + 1)
		cpu.PC += 2
		return uint16((base + cpu.Y) & zeroPageMask), false

	case Relative:
		offset := int8(cpu.memory.Read(cpu.PC + 1))
		base := cpu.PC + 2
		target := uint16(int32(base) + int32(offset))
		cpu.PC = base
		return target, (base & pageMask) != (target & pageMask)

	case Absolute:
		addr := cpu.readWord(cpu.PC + 1)
		cpu.PC += 3
		return addr, false

	case AbsoluteX:
		base := cpu.readWord(cpu.PC + 1)
		addr := base + uint16(cpu.X)
		cpu.PC += 3
		return addr, (base & pageMask) != (addr & pageMask)

	case AbsoluteY:
		base := cpu.readWord(cpu.PC + 1)
		addr := base + uint16(cpu.Y)
		cpu.PC += 3
		return addr, (base & pageMask) != (addr & pageMask)

	case Indirect:
		ptr := cpu.readWord(cpu.PC + 1)
		cpu.PC += 3
		if ptr&zeroPageMask == zeroPageMask {
			lo := uint16(cpu.memory.Read(ptr))
			hi := uint16(cpu.memory.Read(ptr & pageMask))
			return hi<<8 | lo, false
		}
		return cpu.readWord(ptr), false

	case IndexedIndirect:
		base := cpu.memory.Read(cpu.PC + 1)
		cpu.PC += 2
		ptr := (base + cpu.X) & zeroPageMask
		lo := uint16(cpu.memory.Read(uint16(ptr)))
		hi := uint16(cpu.memory.Read(uint16((ptr + 1) & zeroPageMask)))
		return hi<<8 | lo, false

	case IndirectIndexed:
		ptr := uint16(cpu.memory.Read(cpu.PC + 1))
		cpu.PC += 2
		lo := uint16(cpu.memory.Read(ptr))
		hi := uint16(cpu.memory.Read((ptr + 1) & zeroPageMask))
		base := hi<<8 | lo
		addr := base + uint16(cpu.Y)
		return addr, (base & pageMask) != (addr & pageMask)

	default:
		return 0, false
	}
}

func (cpu *CPU) push(v uint8) {
	cpu.memory.Write(stackBase+uint16(cpu.SP), v)
	cpu.SP--
}

func (cpu *CPU) pop() uint8 {
	cpu.SP++
	return cpu.memory.Read(stackBase + uint16(cpu.SP))
}

func (cpu *CPU) pushWord(v uint16) {
	cpu.push(uint8(v >> 8))
	cpu.push(uint8(v))
}

func (cpu *CPU) popWord() uint16 {
	lo := uint16(cpu.pop())
	hi := uint16(cpu.pop())
	return hi<<8 | lo
}

func (cpu *CPU) setZN(v uint8) {
	cpu.Z = v == 0
	cpu.N = v&nFlagMask != 0
}

func (cpu *CPU) statusByte(breakBit bool) uint8 {
	var s uint8
	if cpu.N {
		s |= nFlagMask
	}
	if cpu.V {
		s |= vFlagMask
	}
	s |= uFlagMask
	if breakBit {
		s |= bFlagMask
	}
	if cpu.D {
		s |= dFlagMask
	}
	if cpu.I {
		s |= iFlagMask
	}
	if cpu.Z {
		s |= zFlagMask
	}
	if cpu.C {
		s |= cFlagMask
	}
	return s
}

func (cpu *CPU) setStatusByte(s uint8) {
	cpu.N = s&nFlagMask != 0
	cpu.V = s&vFlagMask != 0
	cpu.B = s&bFlagMask != 0
	cpu.D = s&dFlagMask != 0
	cpu.I = s&iFlagMask != 0
	cpu.Z = s&zFlagMask != 0
	cpu.C = s&cFlagMask != 0
}

// serviceInterrupt pushes PC and P (with B set only for BRK) and jumps
// through vector.
func (cpu *CPU) serviceInterrupt(vector uint16, brk bool) {
	cpu.pushWord(cpu.PC)
	cpu.push(cpu.statusByte(brk))
	cpu.I = true
	cpu.PC = cpu.readWord(vector)
}
