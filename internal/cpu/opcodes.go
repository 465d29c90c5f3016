package cpu

// initInstructions populates the 256-entry opcode/addressing-mode
// matrix. Slots left zero-valued fall back to an implied 2-cycle NOP
// at execution time; the NES never needs the unofficial opcode set to
// run an official ROM's documented behavior.
func (cpu *CPU) initInstructions() {
	set := func(op uint8, name string, bytes, cycles uint8, mode AddressingMode) {
		cpu.instructions[op] = Instruction{Name: name, Bytes: bytes, Cycles: cycles, Mode: mode}
	}

	set(0x69, "ADC", 2, 2, Immediate)
	set(0x65, "ADC", 2, 3, ZeroPage)
	set(0x75, "ADC", 2, 4, ZeroPageX)
	set(0x6D, "ADC", 3, 4, Absolute)
	set(0x7D, "ADC", 3, 4, AbsoluteX)
	set(0x79, "ADC", 3, 4, AbsoluteY)
	set(0x61, "ADC", 2, 6, IndexedIndirect)
	set(0x71, "ADC", 2, 5, IndirectIndexed)

	set(0x29, "AND", 2, 2, Immediate)
	set(0x25, "AND", 2, 3, ZeroPage)
	set(0x35, "AND", 2, 4, ZeroPageX)
	set(0x2D, "AND", 3, 4, Absolute)
	set(0x3D, "AND", 3, 4, AbsoluteX)
	set(0x39, "AND", 3, 4, AbsoluteY)
	set(0x21, "AND", 2, 6, IndexedIndirect)
	set(0x31, "AND", 2, 5, IndirectIndexed)

	set(0x0A, "ASL", 1, 2, Accumulator)
	set(0x06, "ASL", 2, 5, ZeroPage)
	set(0x16, "ASL", 2, 6, ZeroPageX)
	set(0x0E, "ASL", 3, 6, Absolute)
	set(0x1E, "ASL", 3, 7, AbsoluteX)

	set(0x90, "BCC", 2, 2, Relative)
	set(0xB0, "BCS", 2, 2, Relative)
	set(0xF0, "BEQ", 2, 2, Relative)
	set(0x30, "BMI", 2, 2, Relative)
	set(0xD0, "BNE", 2, 2, Relative)
	set(0x10, "BPL", 2, 2, Relative)
	set(0x50, "BVC", 2, 2, Relative)
	set(0x70, "BVS", 2, 2, Relative)

	set(0x24, "BIT", 2, 3, ZeroPage)
	set(0x2C, "BIT", 3, 4, Absolute)

	set(0x00, "BRK", 1, 7, Implied)

	set(0x18, "CLC", 1, 2, Implied)
	set(0xD8, "CLD", 1, 2, Implied)
	set(0x58, "CLI", 1, 2, Implied)
	set(0xB8, "CLV", 1, 2, Implied)
	set(0x38, "SEC", 1, 2, Implied)
	set(0xF8, "SED", 1, 2, Implied)
	set(0x78, "SEI", 1, 2, Implied)

	set(0xC9, "CMP", 2, 2, Immediate)
	set(0xC5, "CMP", 2, 3, ZeroPage)
	set(0xD5, "CMP", 2, 4, ZeroPageX)
	set(0xCD, "CMP", 3, 4, Absolute)
	set(0xDD, "CMP", 3, 4, AbsoluteX)
	set(0xD9, "CMP", 3, 4, AbsoluteY)
	set(0xC1, "CMP", 2, 6, IndexedIndirect)
	set(0xD1, "CMP", 2, 5, IndirectIndexed)

	set(0xE0, "CPX", 2, 2, Immediate)
	set(0xE4, "CPX", 2, 3, ZeroPage)
	set(0xEC, "CPX", 3, 4, Absolute)

	set(0xC0, "CPY", 2, 2, Immediate)
	set(0xC4, "CPY", 2, 3, ZeroPage)
	set(0xCC, "CPY", 3, 4, Absolute)

	set(0xC6, "DEC", 2, 5, ZeroPage)
	set(0xD6, "DEC", 2, 6, ZeroPageX)
	set(0xCE, "DEC", 3, 6, Absolute)
	set(0xDE, "DEC", 3, 7, AbsoluteX)
	set(0xCA, "DEX", 1, 2, Implied)
	set(0x88, "DEY", 1, 2, Implied)

	set(0x49, "EOR", 2, 2, Immediate)
	set(0x45, "EOR", 2, 3, ZeroPage)
	set(0x55, "EOR", 2, 4, ZeroPageX)
	set(0x4D, "EOR", 3, 4, Absolute)
	set(0x5D, "EOR", 3, 4, AbsoluteX)
	set(0x59, "EOR", 3, 4, AbsoluteY)
	set(0x41, "EOR", 2, 6, IndexedIndirect)
	set(0x51, "EOR", 2, 5, IndirectIndexed)

	set(0xE6, "INC", 2, 5, ZeroPage)
	set(0xF6, "INC", 2, 6, ZeroPageX)
	set(0xEE, "INC", 3, 6, Absolute)
	set(0xFE, "INC", 3, 7, AbsoluteX)
	set(0xE8, "INX", 1, 2, Implied)
	set(0xC8, "INY", 1, 2, Implied)

	set(0x4C, "JMP", 3, 3, Absolute)
	set(0x6C, "JMP", 3, 5, Indirect)
	set(0x20, "JSR", 3, 6, Absolute)

	set(0xA9, "LDA", 2, 2, Immediate)
	set(0xA5, "LDA", 2, 3, ZeroPage)
	set(0xB5, "LDA", 2, 4, ZeroPageX)
	set(0xAD, "LDA", 3, 4, Absolute)
	set(0xBD, "LDA", 3, 4, AbsoluteX)
	set(0xB9, "LDA", 3, 4, AbsoluteY)
	set(0xA1, "LDA", 2, 6, IndexedIndirect)
	set(0xB1, "LDA", 2, 5, IndirectIndexed)

	set(0xA2, "LDX", 2, 2, Immediate)
	set(0xA6, "LDX", 2, 3, ZeroPage)
	set(0xB6, "LDX", 2, 4, ZeroPageY)
	set(0xAE, "LDX", 3, 4, Absolute)
	set(0xBE, "LDX", 3, 4, AbsoluteY)

	set(0xA0, "LDY", 2, 2, Immediate)
	set(0xA4, "LDY", 2, 3, ZeroPage)
	set(0xB4, "LDY", 2, 4, ZeroPageX)
	set(0xAC, "LDY", 3, 4, Absolute)
	set(0xBC, "LDY", 3, 4, AbsoluteX)

	set(0x4A, "LSR", 1, 2, Accumulator)
	set(0x46, "LSR", 2, 5, ZeroPage)
	set(0x56, "LSR", 2, 6, ZeroPageX)
	set(0x4E, "LSR", 3, 6, Absolute)
	set(0x5E, "LSR", 3, 7, AbsoluteX)

	set(0xEA, "NOP", 1, 2, Implied)

	set(0x09, "ORA", 2, 2, Immediate)
	set(0x05, "ORA", 2, 3, ZeroPage)
	set(0x15, "ORA", 2, 4, ZeroPageX)
	set(0x0D, "ORA", 3, 4, Absolute)
	set(0x1D, "ORA", 3, 4, AbsoluteX)
	set(0x19, "ORA", 3, 4, AbsoluteY)
	set(0x01, "ORA", 2, 6, IndexedIndirect)
	set(0x11, "ORA", 2, 5, IndirectIndexed)

	set(0x48, "PHA", 1, 3, Implied)
	set(0x08, "PHP", 1, 3, Implied)
	set(0x68, "PLA", 1, 4, Implied)
	set(0x28, "PLP", 1, 4, Implied)

	set(0x2A, "ROL", 1, 2, Accumulator)
	set(0x26, "ROL", 2, 5, ZeroPage)
	set(0x36, "ROL", 2, 6, ZeroPageX)
	set(0x2E, "ROL", 3, 6, Absolute)
	set(0x3E, "ROL", 3, 7, AbsoluteX)

	set(0x6A, "ROR", 1, 2, Accumulator)
	set(0x66, "ROR", 2, 5, ZeroPage)
	set(0x76, "ROR", 2, 6, ZeroPageX)
	set(0x6E, "ROR", 3, 6, Absolute)
	set(0x7E, "ROR", 3, 7, AbsoluteX)

	set(0x40, "RTI", 1, 6, Implied)
	set(0x60, "RTS", 1, 6, Implied)

	set(0xE9, "SBC", 2, 2, Immediate)
	set(0xE5, "SBC", 2, 3, ZeroPage)
	set(0xF5, "SBC", 2, 4, ZeroPageX)
	set(0xED, "SBC", 3, 4, Absolute)
	set(0xFD, "SBC", 3, 4, AbsoluteX)
	set(0xF9, "SBC", 3, 4, AbsoluteY)
	set(0xE1, "SBC", 2, 6, IndexedIndirect)
	set(0xF1, "SBC", 2, 5, IndirectIndexed)

	set(0x85, "STA", 2, 3, ZeroPage)
	set(0x95, "STA", 2, 4, ZeroPageX)
	set(0x8D, "STA", 3, 4, Absolute)
	set(0x9D, "STA", 3, 5, AbsoluteX)
	set(0x99, "STA", 3, 5, AbsoluteY)
	set(0x81, "STA", 2, 6, IndexedIndirect)
	set(0x91, "STA", 2, 6, IndirectIndexed)

	set(0x86, "STX", 2, 3, ZeroPage)
	set(0x96, "STX", 2, 4, ZeroPageY)
	set(0x8E, "STX", 3, 4, Absolute)

	set(0x84, "STY", 2, 3, ZeroPage)
	set(0x94, "STY", 2, 4, ZeroPageX)
	set(0x8C, "STY", 3, 4, Absolute)

	set(0xAA, "TAX", 1, 2, Implied)
	set(0xA8, "TAY", 1, 2, Implied)
	set(0xBA, "TSX", 1, 2, Implied)
	set(0x8A, "TXA", 1, 2, Implied)
	set(0x9A, "TXS", 1, 2, Implied)
	set(0x98, "TYA", 1, 2, Implied)
}

// execute runs the decoded instruction, returning any extra cycles
// (page-cross and taken-branch penalties) beyond the base opcode cost.
// Opcodes with no registered instruction fall through to a 2-cycle NOP.
func (cpu *CPU) execute(opcode uint8, mode AddressingMode, addr uint16, pageCrossed bool) uint8 {
	inst := cpu.instructions[opcode]
	if inst.Bytes == 0 {
		return 0
	}

	readOperand := func() uint8 {
		if mode == Accumulator {
			return cpu.A
		}
		return cpu.memory.Read(addr)
	}
	writeOperand := func(v uint8) {
		if mode == Accumulator {
			cpu.A = v
		} else {
			cpu.memory.Write(addr, v)
		}
	}
	pageCrossPenalty := func() uint8 {
		switch mode {
		case AbsoluteX, AbsoluteY, IndirectIndexed:
			if pageCrossed {
				return 1
			}
		}
		return 0
	}

	switch inst.Name {
	case "ADC":
		m := readOperand()
		cpu.adc(m)
		return pageCrossPenalty()
	case "SBC":
		m := readOperand()
		cpu.adc(^m)
		return pageCrossPenalty()
	case "AND":
		cpu.A &= readOperand()
		cpu.setZN(cpu.A)
		return pageCrossPenalty()
	case "ORA":
		cpu.A |= readOperand()
		cpu.setZN(cpu.A)
		return pageCrossPenalty()
	case "EOR":
		cpu.A ^= readOperand()
		cpu.setZN(cpu.A)
		return pageCrossPenalty()

	case "ASL":
		v := readOperand()
		cpu.C = v&0x80 != 0
		v <<= 1
		writeOperand(v)
		cpu.setZN(v)
	case "LSR":
		v := readOperand()
		cpu.C = v&0x01 != 0
		v >>= 1
		writeOperand(v)
		cpu.setZN(v)
	case "ROL":
		v := readOperand()
		carryIn := uint8(0)
		if cpu.C {
			carryIn = 1
		}
		cpu.C = v&0x80 != 0
		v = (v << 1) | carryIn
		writeOperand(v)
		cpu.setZN(v)
	case "ROR":
		v := readOperand()
		carryIn := uint8(0)
		if cpu.C {
			carryIn = 0x80
		}
		cpu.C = v&0x01 != 0
		v = (v >> 1) | carryIn
		writeOperand(v)
		cpu.setZN(v)

	case "BIT":
		m := readOperand()
		cpu.Z = cpu.A&m == 0
		cpu.N = m&nFlagMask != 0
		cpu.V = m&vFlagMask != 0

	case "CMP":
		return cpu.compare(cpu.A, readOperand()) + pageCrossPenalty()
	case "CPX":
		return cpu.compare(cpu.X, readOperand())
	case "CPY":
		return cpu.compare(cpu.Y, readOperand())

	case "INC":
		v := readOperand() + 1
		writeOperand(v)
		cpu.setZN(v)
	case "DEC":
		v := readOperand() - 1
		writeOperand(v)
		cpu.setZN(v)
	case "INX":
		cpu.X++
		cpu.setZN(cpu.X)
	case "INY":
		cpu.Y++
		cpu.setZN(cpu.Y)
	case "DEX":
		cpu.X--
		cpu.setZN(cpu.X)
	case "DEY":
		cpu.Y--
		cpu.setZN(cpu.Y)

	case "LDA":
		cpu.A = readOperand()
		cpu.setZN(cpu.A)
		return pageCrossPenalty()
	case "LDX":
		cpu.X = readOperand()
		cpu.setZN(cpu.X)
		return pageCrossPenalty()
	case "LDY":
		cpu.Y = readOperand()
		cpu.setZN(cpu.Y)
		return pageCrossPenalty()
	case "STA":
		cpu.memory.Write(addr, cpu.A)
	case "STX":
		cpu.memory.Write(addr, cpu.X)
	case "STY":
		cpu.memory.Write(addr, cpu.Y)

	case "TAX":
		cpu.X = cpu.A
		cpu.setZN(cpu.X)
	case "TAY":
		cpu.Y = cpu.A
		cpu.setZN(cpu.Y)
	case "TXA":
		cpu.A = cpu.X
		cpu.setZN(cpu.A)
	case "TYA":
		cpu.A = cpu.Y
		cpu.setZN(cpu.A)
	case "TSX":
		cpu.X = cpu.SP
		cpu.setZN(cpu.X)
	case "TXS":
		cpu.SP = cpu.X

	case "PHA":
		cpu.push(cpu.A)
	case "PHP":
		cpu.push(cpu.statusByte(true))
	case "PLA":
		cpu.A = cpu.pop()
		cpu.setZN(cpu.A)
	case "PLP":
		cpu.setStatusByte(cpu.pop())

	case "JMP":
		cpu.PC = addr
	case "JSR":
		cpu.pushWord(cpu.PC - 1)
		cpu.PC = addr
	case "RTS":
		cpu.PC = cpu.popWord() + 1
	case "RTI":
		cpu.setStatusByte(cpu.pop())
		cpu.PC = cpu.popWord()

	case "BRK":
		cpu.PC++ // BRK is a 2-byte instruction; PC already advanced by 1
		cpu.serviceInterrupt(irqVector, true)

	case "BCC":
		return cpu.branch(!cpu.C, addr)
	case "BCS":
		return cpu.branch(cpu.C, addr)
	case "BEQ":
		return cpu.branch(cpu.Z, addr)
	case "BNE":
		return cpu.branch(!cpu.Z, addr)
	case "BMI":
		return cpu.branch(cpu.N, addr)
	case "BPL":
		return cpu.branch(!cpu.N, addr)
	case "BVC":
		return cpu.branch(!cpu.V, addr)
	case "BVS":
		return cpu.branch(cpu.V, addr)

	case "CLC":
		cpu.C = false
	case "SEC":
		cpu.C = true
	case "CLI":
		cpu.I = false
	case "SEI":
		cpu.I = true
	case "CLV":
		cpu.V = false
	case "CLD":
		cpu.D = false
	case "SED":
		cpu.D = true

	case "NOP":
		// no-op
	}
	return 0
}

// adc implements binary-mode add-with-carry; sbc feeds it the
// one's-complement of the operand so carry/overflow fall out the
// same way. Decimal mode is never consulted on the NES's 2A03.
func (cpu *CPU) adc(m uint8) {
	carryIn := uint16(0)
	if cpu.C {
		carryIn = 1
	}
	sum := uint16(cpu.A) + uint16(m) + carryIn
	result := uint8(sum)
	cpu.V = (^(cpu.A ^ m) & (cpu.A ^ result) & 0x80) != 0
	cpu.C = sum > 0xFF
	cpu.A = result
	cpu.setZN(cpu.A)
}

func (cpu *CPU) compare(reg, m uint8) uint8 {
	result := reg - m
	cpu.C = reg >= m
	cpu.setZN(result)
	return 0
}

// branch evaluates a conditional branch, returning the extra cycles
// (1 if taken, +1 more if the branch crosses a page).
func (cpu *CPU) branch(condition bool, target uint16) uint8 {
	if !condition {
		return 0
	}
	oldPC := cpu.PC
	cpu.PC = target
	if oldPC&pageMask != target&pageMask {
		return 2
	}
	return 1
}
