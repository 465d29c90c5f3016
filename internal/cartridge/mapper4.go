package cartridge

// mapper4 implements MMC3: eight bank registers selected by an
// even/odd address pair, two switchable 8KiB PRG windows plus two
// fixed at the last two banks, six CHR windows, and a scanline IRQ
// counter. IRQ clocking runs at scanline granularity (§1 non-goals),
// not per PPU dot.
type mapper4 struct {
	cart *Cartridge

	bankSelect uint8 // bit0-2 target register, bit6 prg mode, bit7 chr mode
	bank       [8]uint8

	prgRAMProtect uint8

	irqLatch      uint8
	irqCounter    uint8
	irqReload     bool
	irqEnable     bool
	irqPending    bool
}

func newMapper4(cart *Cartridge) *mapper4 {
	return &mapper4{cart: cart}
}

func (m *mapper4) CPURead(addr uint16) uint8 {
	switch {
	case addr >= 0x8000:
		return m.cart.prgROM[m.prgOffset(addr)]
	case addr >= 0x6000:
		return m.cart.prgRAM[addr-0x6000]
	default:
		return 0
	}
}

func (m *mapper4) CPUWrite(addr uint16, v uint8) {
	switch {
	case addr >= 0x6000 && addr < 0x8000:
		m.cart.prgRAM[addr-0x6000] = v
	case addr >= 0x8000 && addr < 0xA000:
		if addr%2 == 0 {
			m.bankSelect = v
		} else {
			m.bank[m.bankSelect&0x07] = v
		}
	case addr >= 0xA000 && addr < 0xC000:
		if addr%2 == 0 {
			if v&0x01 != 0 {
				m.cart.setMirror(MirrorHorizontal)
			} else {
				m.cart.setMirror(MirrorVertical)
			}
		} else {
			m.prgRAMProtect = v
		}
	case addr >= 0xC000 && addr < 0xE000:
		if addr%2 == 0 {
			m.irqLatch = v
		} else {
			m.irqCounter = 0
			m.irqReload = true
		}
	default: // 0xE000-0xFFFF
		if addr%2 == 0 {
			m.irqEnable = false
			m.irqPending = false
		} else {
			m.irqEnable = true
		}
	}
}

func (m *mapper4) prgOffset(addr uint16) int {
	total8k := m.cart.PRGBanks * 2
	lastBank := total8k - 1
	secondLast := total8k - 2
	window := int(addr-0x8000) / 0x2000
	offsetInWindow := int(addr&0x1FFF)

	var bank int
	if m.bankSelect&0x40 == 0 {
		switch window {
		case 0:
			bank = maskBank(int(m.bank[6]), total8k)
		case 1:
			bank = maskBank(int(m.bank[7]), total8k)
		case 2:
			bank = maskBank(secondLast, total8k)
		default:
			bank = maskBank(lastBank, total8k)
		}
	} else {
		switch window {
		case 0:
			bank = maskBank(secondLast, total8k)
		case 1:
			bank = maskBank(int(m.bank[7]), total8k)
		case 2:
			bank = maskBank(int(m.bank[6]), total8k)
		default:
			bank = maskBank(lastBank, total8k)
		}
	}
	return bank*0x2000 + offsetInWindow
}

func (m *mapper4) chrOffset(addr uint16) int {
	total1k := len(m.cart.chr) / 1024
	addr &= 0x1FFF

	// windows: six entries (two 2KiB, four 1KiB) described as (lowBound, register, is2k)
	type win struct {
		lo  uint16
		reg uint8
		two bool
	}
	var layout [6]win
	if m.bankSelect&0x80 == 0 {
		layout = [6]win{
			{0x0000, m.bank[0] & 0xFE, true},
			{0x0800, m.bank[1] & 0xFE, true},
			{0x1000, m.bank[2], false},
			{0x1400, m.bank[3], false},
			{0x1800, m.bank[4], false},
			{0x1C00, m.bank[5], false},
		}
	} else {
		layout = [6]win{
			{0x0000, m.bank[2], false},
			{0x0400, m.bank[3], false},
			{0x0800, m.bank[4], false},
			{0x0C00, m.bank[5], false},
			{0x1000, m.bank[0] & 0xFE, true},
			{0x1800, m.bank[1] & 0xFE, true},
		}
	}

	for i := len(layout) - 1; i >= 0; i-- {
		w := layout[i]
		if addr >= w.lo {
			bank := maskBank(int(w.reg), total1k)
			return bank*1024 + int(addr-w.lo)
		}
	}
	return 0
}

func (m *mapper4) PPURead(addr uint16) uint8 {
	return m.cart.chr[m.chrOffset(addr)]
}

func (m *mapper4) PPUWrite(addr uint16, v uint8) {
	if m.cart.hasCHRRAM {
		m.cart.chr[m.chrOffset(addr)] = v
	}
}

// StepScanline clocks the IRQ counter once per rendered scanline.
func (m *mapper4) StepScanline() {
	if m.irqCounter == 0 || m.irqReload {
		m.irqCounter = m.irqLatch
		m.irqReload = false
	} else {
		m.irqCounter--
	}
	if m.irqCounter == 0 && m.irqEnable {
		m.irqPending = true
	}
}

func (m *mapper4) IRQPending() bool { return m.irqPending }
func (m *mapper4) ClearIRQ()        { m.irqPending = false }

func (m *mapper4) saveMapperState() MapperState {
	return MapperState{
		BankSelect: m.bankSelect, Banks: m.bank, PRGRAMProtect: m.prgRAMProtect,
		IRQLatch: m.irqLatch, IRQCounter: m.irqCounter,
		IRQReload: m.irqReload, IRQEnable: m.irqEnable, IRQPendingLatched: m.irqPending,
	}
}

func (m *mapper4) loadMapperState(s MapperState) {
	m.bankSelect, m.bank, m.prgRAMProtect = s.BankSelect, s.Banks, s.PRGRAMProtect
	m.irqLatch, m.irqCounter = s.IRQLatch, s.IRQCounter
	m.irqReload, m.irqEnable, m.irqPending = s.IRQReload, s.IRQEnable, s.IRQPendingLatched
}
