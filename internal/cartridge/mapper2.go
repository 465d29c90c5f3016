package cartridge

// mapper2 implements UxROM: a single switchable 16KiB bank at
// $8000-$BFFF, the last bank fixed at $C000-$FFFF. CHR is always 8KiB
// of writable RAM.
type mapper2 struct {
	cart   *Cartridge
	bank   uint8
}

func newMapper2(cart *Cartridge) *mapper2 {
	return &mapper2{cart: cart}
}

func (m *mapper2) CPURead(addr uint16) uint8 {
	switch {
	case addr >= 0xC000:
		lastBank := m.cart.PRGBanks - 1
		return m.cart.prgROM[lastBank*prgBankSize+int(addr-0xC000)]
	case addr >= 0x8000:
		bank := maskBank(int(m.bank), m.cart.PRGBanks)
		return m.cart.prgROM[bank*prgBankSize+int(addr-0x8000)]
	case addr >= 0x6000:
		return m.cart.prgRAM[addr-0x6000]
	default:
		return 0
	}
}

func (m *mapper2) CPUWrite(addr uint16, v uint8) {
	switch {
	case addr >= 0x8000:
		m.bank = v
	case addr >= 0x6000:
		m.cart.prgRAM[addr-0x6000] = v
	}
}

func (m *mapper2) PPURead(addr uint16) uint8 {
	return m.cart.chr[addr&0x1FFF]
}

func (m *mapper2) PPUWrite(addr uint16, v uint8) {
	m.cart.chr[addr&0x1FFF] = v
}

func (m *mapper2) StepScanline() {}

func (m *mapper2) saveMapperState() MapperState { return MapperState{Bank: m.bank} }
func (m *mapper2) loadMapperState(s MapperState) { m.bank = s.Bank }
