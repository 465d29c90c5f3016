package cartridge

// mapper1 implements MMC1: a 5-bit serial shift register feeding four
// target registers (control, chr0, chr1, prg) selected by the address
// of the 5th write.
type mapper1 struct {
	cart *Cartridge

	shift      uint8
	shiftCount uint8

	control uint8 // mirror(0-1) prgMode(2-3) chrMode(4)
	chr0    uint8
	chr1    uint8
	prg     uint8 // bank(0-3) prgRAMDisable(4)
}

func newMapper1(cart *Cartridge) *mapper1 {
	m := &mapper1{cart: cart}
	m.control = 0x0C // power-on: PRG mode 3 (fix last bank at $C000)
	m.applyMirror()
	return m
}

func (m *mapper1) CPURead(addr uint16) uint8 {
	switch {
	case addr >= 0x8000:
		return m.cart.prgROM[m.prgOffset(addr)]
	case addr >= 0x6000:
		if m.prg&0x10 != 0 {
			return 0
		}
		return m.cart.prgRAM[addr-0x6000]
	default:
		return 0
	}
}

func (m *mapper1) CPUWrite(addr uint16, v uint8) {
	if addr < 0x8000 {
		if addr >= 0x6000 && m.prg&0x10 == 0 {
			m.cart.prgRAM[addr-0x6000] = v
		}
		return
	}

	if v&0x80 != 0 {
		m.shift = 0
		m.shiftCount = 0
		m.control |= 0x0C
		m.applyMirror()
		return
	}

	m.shift |= (v & 1) << m.shiftCount
	m.shiftCount++
	if m.shiftCount < 5 {
		return
	}

	committed := m.shift
	switch (addr >> 13) & 0x3 {
	case 0:
		m.control = committed
		m.applyMirror()
	case 1:
		m.chr0 = committed
	case 2:
		m.chr1 = committed
	case 3:
		m.prg = committed
	}
	m.shift = 0
	m.shiftCount = 0
}

func (m *mapper1) applyMirror() {
	switch m.control & 0x03 {
	case 0:
		m.cart.setMirror(MirrorSingleLow)
	case 1:
		m.cart.setMirror(MirrorSingleHigh)
	case 2:
		m.cart.setMirror(MirrorVertical)
	case 3:
		m.cart.setMirror(MirrorHorizontal)
	}
}

func (m *mapper1) prgOffset(addr uint16) int {
	total16k := m.cart.PRGBanks
	switch (m.control >> 2) & 0x3 {
	case 0, 1:
		bank32 := maskBank(int(m.prg&0x0E)>>1, total16k/2)
		return bank32*32768 + int(addr-0x8000)
	case 2:
		if addr < 0xC000 {
			return int(addr - 0x8000)
		}
		bank := maskBank(int(m.prg&0x0F), total16k)
		return bank*prgBankSize + int(addr-0xC000)
	default: // 3
		if addr >= 0xC000 {
			lastBank := total16k - 1
			return lastBank*prgBankSize + int(addr-0xC000)
		}
		bank := maskBank(int(m.prg&0x0F), total16k)
		return bank*prgBankSize + int(addr-0x8000)
	}
}

// chrOffset maps a PPU pattern-table address through the current CHR
// bank registers. 8KiB mode forces the low bit of chr0 to zero, per
// the canonical MMC1 rule (the source's two divergent masks are not
// followed — see DESIGN.md).
func (m *mapper1) chrOffset(addr uint16) int {
	total4k := len(m.cart.chr) / 4096
	if m.control&0x10 == 0 {
		bank := maskBank(int(m.chr0&0x1E), total4k)
		return bank*4096 + int(addr&0x1FFF)
	}
	if addr < 0x1000 {
		bank := maskBank(int(m.chr0&0x1F), total4k)
		return bank*4096 + int(addr&0x0FFF)
	}
	bank := maskBank(int(m.chr1&0x1F), total4k)
	return bank*4096 + int(addr&0x0FFF)
}

func (m *mapper1) PPURead(addr uint16) uint8 {
	return m.cart.chr[m.chrOffset(addr)]
}

func (m *mapper1) PPUWrite(addr uint16, v uint8) {
	if m.cart.hasCHRRAM {
		m.cart.chr[m.chrOffset(addr)] = v
	}
}

func (m *mapper1) StepScanline() {}

func (m *mapper1) saveMapperState() MapperState {
	return MapperState{
		Shift: m.shift, ShiftCount: m.shiftCount,
		Control: m.control, CHR0: m.chr0, CHR1: m.chr1, PRG: m.prg,
	}
}

func (m *mapper1) loadMapperState(s MapperState) {
	m.shift, m.shiftCount = s.Shift, s.ShiftCount
	m.control, m.chr0, m.chr1, m.prg = s.Control, s.CHR0, s.CHR1, s.PRG
}
