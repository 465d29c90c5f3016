package cpu

import "testing"

// mockMemory is a flat 64KB address space for CPU unit tests.
type mockMemory struct {
	data [0x10000]uint8
}

func newMockMemory() *mockMemory { return &mockMemory{} }

func (m *mockMemory) Read(addr uint16) uint8     { return m.data[addr] }
func (m *mockMemory) Write(addr uint16, v uint8) { m.data[addr] = v }

func (m *mockMemory) setBytes(addr uint16, values ...uint8) {
	for i, v := range values {
		m.data[addr+uint16(i)] = v
	}
}

func newTestCPU() (*CPU, *mockMemory) {
	mem := newMockMemory()
	c := New(mem)
	mem.setBytes(0xFFFC, 0x00, 0x80)
	c.Reset()
	return c, mem
}

func TestResetVector(t *testing.T) {
	_, mem := newTestCPU()
	mem.setBytes(0xFFFC, 0x00, 0x80)
	cpu := New(mem)
	cpu.Reset()
	if cpu.PC != 0x8000 {
		t.Fatalf("PC = %#04x, want $8000", cpu.PC)
	}
	if cpu.SP != 0xFD {
		t.Fatalf("SP = %#02x, want $FD", cpu.SP)
	}
	if cpu.StatusByte() != 0x24 {
		t.Fatalf("P = %#02x, want $24", cpu.StatusByte())
	}
}

// TestADCBinary exercises the ADC-binary scenario from the spec:
// A=$50, C=0, V=0; ADC #$50 -> A=$A0, C=0, V=1, N=1, Z=0.
func TestADCBinary(t *testing.T) {
	cpu, mem := newTestCPU()
	cpu.PC = 0x8000
	cpu.A = 0x50
	cpu.C, cpu.V = false, false
	mem.setBytes(0x8000, 0x69, 0x50)

	cpu.Step()

	if cpu.A != 0xA0 {
		t.Fatalf("A = %#02x, want $A0", cpu.A)
	}
	if cpu.C {
		t.Fatal("C set, want clear")
	}
	if !cpu.V {
		t.Fatal("V clear, want set")
	}
	if !cpu.N {
		t.Fatal("N clear, want set")
	}
	if cpu.Z {
		t.Fatal("Z set, want clear")
	}
}

func TestSBCBorrow(t *testing.T) {
	cpu, mem := newTestCPU()
	cpu.PC = 0x8000
	cpu.A = 0x00
	cpu.C = true // no borrow in
	mem.setBytes(0x8000, 0xE9, 0x01)

	cpu.Step()

	if cpu.A != 0xFF {
		t.Fatalf("A = %#02x, want $FF", cpu.A)
	}
	if cpu.C {
		t.Fatal("C set after borrow, want clear")
	}
}

// TestJMPIndirectWrapBug reproduces the page-boundary bug: the high
// byte wraps within the same page instead of crossing it.
func TestJMPIndirectWrapBug(t *testing.T) {
	cpu, mem := newTestCPU()
	cpu.PC = 0x8000
	mem.setBytes(0x02FF, 0x34)
	mem.setBytes(0x0200, 0x12)
	mem.setBytes(0x8000, 0x6C, 0xFF, 0x02)

	cpu.Step()

	if cpu.PC != 0x1234 {
		t.Fatalf("PC = %#04x, want $1234", cpu.PC)
	}
}

func TestBranchTakenAndPageCrossCycles(t *testing.T) {
	cpu, mem := newTestCPU()
	cpu.PC = 0x80FE
	cpu.Z = true
	mem.setBytes(0x80FE, 0xF0, 0x02) // BEQ +2: base $8100, target $8102, same page

	cycles := cpu.Step()
	if cycles != 3 {
		t.Fatalf("taken branch within page = %d cycles, want 3", cycles)
	}

	cpu2, mem2 := newTestCPU()
	cpu2.PC = 0x8000
	cpu2.Z = true
	mem2.setBytes(0x8000, 0xF0, 0x80) // base $8002, offset -128 -> $7F82: crosses page
	cycles2 := cpu2.Step()
	if cycles2 != 4 {
		t.Fatalf("taken branch across page = %d cycles, want 4", cycles2)
	}
}

func TestBranchNotTaken(t *testing.T) {
	cpu, mem := newTestCPU()
	cpu.PC = 0x8000
	cpu.Z = false
	mem.setBytes(0x8000, 0xF0, 0x10) // BEQ, not taken

	cycles := cpu.Step()
	if cycles != 2 {
		t.Fatalf("not-taken branch = %d cycles, want 2", cycles)
	}
	if cpu.PC != 0x8002 {
		t.Fatalf("PC = %#04x, want $8002", cpu.PC)
	}
}

func TestStackPushPopOrder(t *testing.T) {
	cpu, mem := newTestCPU()
	cpu.PC = 0x8000
	cpu.A = 0x42
	mem.setBytes(0x8000, 0x48, 0x68) // PHA, PLA

	cpu.Step()
	if cpu.SP != 0xFC {
		t.Fatalf("SP after push = %#02x, want $FC", cpu.SP)
	}
	cpu.A = 0
	cpu.Step()
	if cpu.A != 0x42 {
		t.Fatalf("A after pop = %#02x, want $42", cpu.A)
	}
	if cpu.SP != 0xFD {
		t.Fatalf("SP after pop = %#02x, want $FD", cpu.SP)
	}
}

func TestUStatusBitAlwaysSet(t *testing.T) {
	cpu, _ := newTestCPU()
	cpu.SetStatus(0x00)
	if cpu.StatusByte()&0x20 == 0 {
		t.Fatal("U bit not forced to 1")
	}
}

func TestBRKPushesBWithUSet(t *testing.T) {
	cpu, mem := newTestCPU()
	cpu.PC = 0x8000
	mem.setBytes(0x8000, 0x00) // BRK
	mem.setBytes(0xFFFE, 0x00, 0x90)

	cpu.Step()

	pushed := mem.Read(0x0100 + uint16(cpu.SP) + 1)
	if pushed&0x10 == 0 {
		t.Fatal("B bit not set on pushed status after BRK")
	}
	if pushed&0x20 == 0 {
		t.Fatal("U bit not set on pushed status after BRK")
	}
	if !cpu.I {
		t.Fatal("I not set after BRK")
	}
	if cpu.PC != 0x9000 {
		t.Fatalf("PC = %#04x, want $9000 (IRQ vector)", cpu.PC)
	}
}

func TestNMIEdgeTriggered(t *testing.T) {
	cpu, mem := newTestCPU()
	mem.setBytes(0xFFFA, 0x00, 0xA0)
	cpu.PC = 0x8000
	mem.setBytes(0x8000, 0xEA) // NOP

	cpu.SetNMILine(true)
	cycles := cpu.Step()
	if cycles != 7 {
		t.Fatalf("NMI service = %d cycles, want 7", cycles)
	}
	if cpu.PC != 0xA000 {
		t.Fatalf("PC = %#04x, want $A000", cpu.PC)
	}

	// NMI is one-shot: holding the line high doesn't refire without a
	// new rising edge.
	mem.setBytes(0xA000, 0xEA)
	cpu.Step()
	if cpu.PC == 0xA000 {
		t.Fatal("NMI refired without a new edge")
	}
}

func TestIRQSuppressedByI(t *testing.T) {
	cpu, mem := newTestCPU()
	cpu.PC = 0x8000
	cpu.I = true
	mem.setBytes(0x8000, 0xEA)
	cpu.SetIRQLine(true)

	cycles := cpu.Step()
	if cycles != 2 {
		t.Fatalf("IRQ serviced while I set: %d cycles, want 2 (plain NOP)", cycles)
	}
}

func TestOAMDMAStallAccounting(t *testing.T) {
	cpu, _ := newTestCPU()
	cpu.cyclesConsumed = 100
	cpu.Stall(513)

	total := uint64(0)
	for i := 0; i < 513; i++ {
		total += cpu.Step()
	}
	if total != 513 {
		t.Fatalf("stall cycles consumed = %d, want 513", total)
	}
}

func TestUnofficialOpcodeFallsBackToNOP(t *testing.T) {
	cpu, mem := newTestCPU()
	cpu.PC = 0x8000
	mem.setBytes(0x8000, 0x04) // unofficial/undefined opcode slot

	cycles := cpu.Step()
	if cycles != 2 {
		t.Fatalf("unofficial opcode cycles = %d, want 2", cycles)
	}
	if cpu.PC != 0x8001 {
		t.Fatalf("PC after unofficial opcode = %#04x, want $8001", cpu.PC)
	}
}

func TestCompareFlags(t *testing.T) {
	cpu, mem := newTestCPU()
	cpu.PC = 0x8000
	cpu.A = 0x10
	mem.setBytes(0x8000, 0xC9, 0x10) // CMP #$10

	cpu.Step()
	if !cpu.C {
		t.Fatal("C clear, want set (A >= M)")
	}
	if !cpu.Z {
		t.Fatal("Z clear, want set (A == M)")
	}
}
