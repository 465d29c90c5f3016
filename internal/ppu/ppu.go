// Package ppu implements the 2C02 Picture Processing Unit: the
// per-dot background/sprite pipeline, the CPU-visible register
// window, and RGBA frame output.
package ppu

const (
	screenWidth  = 256
	screenHeight = 240

	dotsPerScanline    = 341
	scanlinesPerFrame  = 262
	preRenderScanline  = 261
	postRenderScanline = 240
	vblankScanline     = 241
)

// Bus is the PPU's view of its $0000-$3FFF address space, implemented
// by internal/memory.PPUMemory.
type Bus interface {
	Read(addr uint16) uint8
	Write(addr uint16, value uint8)
	PaletteEntry(index uint8) uint8
}

// MapperNotifier is the cartridge's scanline-edge hook, used by MMC3's
// IRQ counter. Most mappers implement it as a no-op.
type MapperNotifier interface {
	StepScanline()
}

// PPU is the NES's 2C02: it owns register state, OAM, the loopy
// scroll/address registers, the background/sprite shift pipeline and
// the assembled frame buffer.
type PPU struct {
	bus    Bus
	mapper MapperNotifier

	ctrl   uint8
	mask   uint8
	status uint8

	oamAddr uint8
	oam     [256]uint8

	v, t uint16
	x    uint8
	w    bool

	readBuffer uint8

	scanline int
	dot      int
	frame    uint64
	oddFrame bool

	nextTileID   uint8
	nextTileAttr uint8
	nextTileLo   uint8
	nextTileHi   uint8

	bgShiftPatternLo uint16
	bgShiftPatternHi uint16
	bgShiftAttrLo    uint16
	bgShiftAttrHi    uint16

	secondaryOAM     [32]uint8
	secondaryIndexes [8]uint8
	spriteCount      int
	spritePatternLo  [8]uint8
	spritePatternHi  [8]uint8
	spriteAttr       [8]uint8
	spriteX          [8]uint8
	sprite0Present   bool

	frameBuffer [screenWidth * screenHeight]uint32
}

// New creates a PPU wired to the given memory map and mapper IRQ
// notifier.
func New(bus Bus, mapper MapperNotifier) *PPU {
	return &PPU{bus: bus, mapper: mapper, scanline: preRenderScanline}
}

// Reset returns the PPU to its power-on register state.
func (p *PPU) Reset() {
	p.ctrl, p.mask = 0, 0
	p.status = 0xA0
	p.oamAddr = 0
	p.v, p.t, p.x, p.w = 0, 0, 0, false
	p.readBuffer = 0
	p.scanline = preRenderScanline
	p.dot = 0
	p.frame = 0
	p.oddFrame = false
	p.spriteCount = 0
	p.sprite0Present = false
}

// ReadRegister services a CPU read of $2000-$2007 (mirrored through $3FFF).
func (p *PPU) ReadRegister(addr uint16) uint8 {
	switch addr & 0x2007 {
	case 0x2002:
		v := p.status
		p.status &^= 0x80
		p.w = false
		return v
	case 0x2004:
		return p.oam[p.oamAddr]
	case 0x2007:
		return p.readData()
	default:
		return p.status & 0x1F
	}
}

// WriteRegister services a CPU write of $2000-$2007 (mirrored through $3FFF).
func (p *PPU) WriteRegister(addr uint16, value uint8) {
	switch addr & 0x2007 {
	case 0x2000:
		p.ctrl = value
		p.t = (p.t &^ 0x0C00) | (uint16(value&0x03) << 10)
	case 0x2001:
		p.mask = value
	case 0x2003:
		p.oamAddr = value
	case 0x2004:
		p.oam[p.oamAddr] = value
		p.oamAddr++
	case 0x2005:
		if !p.w {
			p.t = (p.t &^ 0x001F) | uint16(value>>3)
			p.x = value & 0x07
		} else {
			p.t = (p.t &^ 0x73E0) | (uint16(value&0x07) << 12) | (uint16(value&0xF8) << 2)
		}
		p.w = !p.w
	case 0x2006:
		if !p.w {
			p.t = (p.t &^ 0x7F00) | (uint16(value&0x3F) << 8)
		} else {
			p.t = (p.t &^ 0x00FF) | uint16(value)
			p.v = p.t
		}
		p.w = !p.w
	case 0x2007:
		p.bus.Write(p.v, value)
		p.v += p.vramIncrement()
	}
}

// WriteOAM writes one byte into OAM during OAM-DMA.
func (p *PPU) WriteOAM(index uint8, value uint8) { p.oam[index] = value }

func (p *PPU) vramIncrement() uint16 {
	if p.ctrl&0x04 != 0 {
		return 32
	}
	return 1
}

func (p *PPU) readData() uint8 {
	var data uint8
	if p.v >= 0x3F00 {
		data = p.bus.Read(p.v)
		p.readBuffer = p.bus.Read(p.v - 0x1000)
	} else {
		data = p.readBuffer
		p.readBuffer = p.bus.Read(p.v)
	}
	p.v += p.vramIncrement()
	p.v &= 0x3FFF
	return data
}

func (p *PPU) renderingEnabled() bool { return p.mask&0x18 != 0 }

// Scanline and Dot expose the current beam position to callers such as
// tests; the bus itself uses NMIAsserted rather than these.
func (p *PPU) Scanline() int { return p.scanline }
func (p *PPU) Dot() int      { return p.dot }

// NMIAsserted reports whether the PPU currently wants the CPU's NMI
// line held low: VBlank flag set and PPUCTRL bit 7 enabled.
func (p *PPU) NMIAsserted() bool {
	return p.status&0x80 != 0 && p.ctrl&0x80 != 0
}

// FrameBuffer returns a pointer to the PPU's internal frame buffer,
// valid to read only until the next call to Step crosses into a new
// frame.
func (p *PPU) FrameBuffer() *[screenWidth * screenHeight]uint32 { return &p.frameBuffer }

// Step advances the PPU by exactly one dot.
func (p *PPU) Step() {
	if p.scanline < postRenderScanline || p.scanline == preRenderScanline {
		p.renderDot()
	}
	if p.scanline == vblankScanline && p.dot == 1 {
		p.status |= 0x80
	}
	if p.scanline == preRenderScanline && p.dot == 1 {
		p.status &^= 0xE0 // clear VBlank, sprite 0 hit, sprite overflow
	}

	p.dot++
	// Odd-frame dot skip: the last idle cycle of the pre-render
	// scanline is dropped once every other frame while rendering.
	if p.scanline == preRenderScanline && p.dot == dotsPerScanline-1 && p.oddFrame && p.renderingEnabled() {
		p.dot++
	}
	if p.dot >= dotsPerScanline {
		p.dot = 0
		p.scanline++
		if p.scanline > preRenderScanline {
			p.scanline = 0
			p.frame++
			p.oddFrame = !p.oddFrame
		}
	}
}

func (p *PPU) renderDot() {
	if p.scanline < postRenderScanline {
		if p.dot >= 1 && p.dot <= 256 {
			p.drawPixel()
		}
		if p.dot == 256 {
			p.evaluateSprites()
		}
	}

	if p.renderingEnabled() {
		switch {
		case (p.dot >= 2 && p.dot <= 257) || (p.dot >= 322 && p.dot <= 337):
			p.updateShifters()
			switch (p.dot - 1) % 8 {
			case 0:
				p.loadShifters()
				p.nextTileID = p.bus.Read(0x2000 | (p.v & 0x0FFF))
			case 2:
				addr := 0x23C0 | (p.v & 0x0C00) | ((p.v >> 4) & 0x38) | ((p.v >> 2) & 0x07)
				attr := p.bus.Read(addr)
				if p.coarseY()&0x02 != 0 {
					attr >>= 4
				}
				if p.coarseX()&0x02 != 0 {
					attr >>= 2
				}
				p.nextTileAttr = attr & 0x03
			case 4:
				base := uint16(p.ctrl&0x10) << 8
				p.nextTileLo = p.bus.Read(base + uint16(p.nextTileID)<<4 + p.fineY())
			case 6:
				base := uint16(p.ctrl&0x10) << 8
				p.nextTileHi = p.bus.Read(base + uint16(p.nextTileID)<<4 + p.fineY() + 8)
			case 7:
				p.incrementCoarseX()
			}
		}
		if p.dot == 256 {
			p.incrementY()
		}
		if p.dot == 257 {
			p.v = (p.v &^ 0x041F) | (p.t & 0x041F)
			p.loadSprites()
		}
		if p.scanline == preRenderScanline && p.dot >= 280 && p.dot <= 304 {
			p.v = (p.v &^ 0x7BE0) | (p.t & 0x7BE0)
		}
	}

	// Scanline-granularity mapper IRQ clocking (MMC3): real hardware
	// clocks on the PPU address bus's A12 rising edge during sprite
	// pattern fetches, approximated here at a fixed per-scanline dot.
	if p.dot == 260 && p.renderingEnabled() {
		p.mapper.StepScanline()
	}
}

func (p *PPU) coarseX() uint16 { return p.v & 0x1F }
func (p *PPU) coarseY() uint16 { return (p.v >> 5) & 0x1F }
func (p *PPU) fineY() uint16   { return (p.v >> 12) & 0x07 }

func (p *PPU) incrementCoarseX() {
	if !p.renderingEnabled() {
		return
	}
	if p.v&0x001F == 31 {
		p.v &^= 0x001F
		p.v ^= 0x0400
	} else {
		p.v++
	}
}

func (p *PPU) incrementY() {
	if !p.renderingEnabled() {
		return
	}
	if p.v&0x7000 != 0x7000 {
		p.v += 0x1000
		return
	}
	p.v &^= 0x7000
	y := (p.v & 0x03E0) >> 5
	switch y {
	case 29:
		y = 0
		p.v ^= 0x0800
	case 31:
		y = 0
	default:
		y++
	}
	p.v = (p.v &^ 0x03E0) | (y << 5)
}

func (p *PPU) loadShifters() {
	p.bgShiftPatternLo = (p.bgShiftPatternLo &^ 0x00FF) | uint16(p.nextTileLo)
	p.bgShiftPatternHi = (p.bgShiftPatternHi &^ 0x00FF) | uint16(p.nextTileHi)
	var lo, hi uint16
	if p.nextTileAttr&0x01 != 0 {
		lo = 0xFF
	}
	if p.nextTileAttr&0x02 != 0 {
		hi = 0xFF
	}
	p.bgShiftAttrLo = (p.bgShiftAttrLo &^ 0x00FF) | lo
	p.bgShiftAttrHi = (p.bgShiftAttrHi &^ 0x00FF) | hi
}

func (p *PPU) updateShifters() {
	if p.mask&0x08 == 0 {
		return
	}
	p.bgShiftPatternLo <<= 1
	p.bgShiftPatternHi <<= 1
	p.bgShiftAttrLo <<= 1
	p.bgShiftAttrHi <<= 1
}

// evaluateSprites scans primary OAM for up to 8 sprites intersecting
// the NEXT scanline, setting the overflow flag on the 9th hit, per the
// hardware's end-of-visible-scanline evaluation.
func (p *PPU) evaluateSprites() {
	height := 8
	if p.ctrl&0x20 != 0 {
		height = 16
	}
	targetLine := p.scanline + 1

	p.spriteCount = 0
	p.sprite0Present = false
	var secondary [32]uint8
	for i := 0; i < 64 && p.spriteCount < 8; i++ {
		y := int(p.oam[i*4])
		if targetLine < y || targetLine >= y+height {
			continue
		}
		base := p.spriteCount * 4
		secondary[base] = p.oam[i*4]
		secondary[base+1] = p.oam[i*4+1]
		secondary[base+2] = p.oam[i*4+2]
		secondary[base+3] = p.oam[i*4+3]
		p.secondaryIndexes[p.spriteCount] = uint8(i)
		if i == 0 {
			p.sprite0Present = true
		}
		p.spriteCount++
	}
	p.secondaryOAM = secondary

	if p.mask&0x10 != 0 {
		overflow := false
		for i := p.spriteCount; i < 64; i++ {
			y := int(p.oam[i*4])
			if targetLine >= y && targetLine < y+height {
				overflow = true
				break
			}
		}
		if overflow {
			p.status |= 0x20
		}
	}
}

func (p *PPU) loadSprites() {
	height := 8
	if p.ctrl&0x20 != 0 {
		height = 16
	}
	for i := 0; i < p.spriteCount; i++ {
		y := p.secondaryOAM[i*4]
		tile := p.secondaryOAM[i*4+1]
		attr := p.secondaryOAM[i*4+2]
		x := p.secondaryOAM[i*4+3]

		row := p.scanline + 1 - int(y)
		if row < 0 {
			row = 0
		}
		if attr&0x80 != 0 {
			row = height - 1 - row
		}

		var addr uint16
		if height == 16 {
			table := uint16(tile&0x01) << 12
			cell := uint16(tile &^ 0x01)
			if row >= 8 {
				cell++
				row -= 8
			}
			addr = table + cell<<4 + uint16(row)
		} else {
			table := uint16(p.ctrl&0x08) << 9
			addr = table + uint16(tile)<<4 + uint16(row)
		}

		lo := p.bus.Read(addr)
		hi := p.bus.Read(addr + 8)
		if attr&0x40 != 0 {
			lo = reverseBits(lo)
			hi = reverseBits(hi)
		}

		p.spritePatternLo[i] = lo
		p.spritePatternHi[i] = hi
		p.spriteAttr[i] = attr
		p.spriteX[i] = x
	}
	for i := p.spriteCount; i < 8; i++ {
		p.spritePatternLo[i] = 0
		p.spritePatternHi[i] = 0
	}
}

func reverseBits(b uint8) uint8 {
	var r uint8
	for i := 0; i < 8; i++ {
		r <<= 1
		r |= b & 1
		b >>= 1
	}
	return r
}

func (p *PPU) drawPixel() {
	x := p.dot - 1
	y := p.scanline

	bgPixel, bgPalette := p.backgroundPixelAt(x)
	fgPixel, fgPalette, fgPriority, isSprite0 := p.spritePixelAt(x)

	if isSprite0 && bgPixel != 0 && fgPixel != 0 && x != 255 &&
		p.mask&0x18 == 0x18 && !(x < 8 && p.mask&0x06 != 0x06) {
		p.status |= 0x40
	}

	var finalPixel, finalPalette uint8
	switch {
	case bgPixel == 0 && fgPixel == 0:
		finalPixel, finalPalette = 0, 0
	case bgPixel == 0:
		finalPixel, finalPalette = fgPixel, fgPalette
	case fgPixel == 0:
		finalPixel, finalPalette = bgPixel, bgPalette
	case fgPriority:
		finalPixel, finalPalette = bgPixel, bgPalette
	default:
		finalPixel, finalPalette = fgPixel, fgPalette
	}

	var colorIndex uint8
	if finalPixel == 0 {
		colorIndex = p.bus.PaletteEntry(0)
	} else {
		colorIndex = p.bus.PaletteEntry(finalPalette*4 + finalPixel)
	}
	p.frameBuffer[y*screenWidth+x] = nesColorPalette[colorIndex&0x3F]
}

func (p *PPU) backgroundPixelAt(x int) (pixel, palette uint8) {
	if p.mask&0x08 == 0 || (x < 8 && p.mask&0x02 == 0) {
		return 0, 0
	}
	mux := uint16(0x8000) >> p.x
	lo := uint8(0)
	hi := uint8(0)
	if p.bgShiftPatternLo&mux != 0 {
		lo = 1
	}
	if p.bgShiftPatternHi&mux != 0 {
		hi = 1
	}
	pixel = hi<<1 | lo
	lo, hi = 0, 0
	if p.bgShiftAttrLo&mux != 0 {
		lo = 1
	}
	if p.bgShiftAttrHi&mux != 0 {
		hi = 1
	}
	palette = hi<<1 | lo
	return pixel, palette
}

func (p *PPU) spritePixelAt(x int) (pixel, palette uint8, priority bool, isSprite0 bool) {
	if p.mask&0x10 == 0 || (x < 8 && p.mask&0x04 == 0) {
		return 0, 0, false, false
	}
	for i := 0; i < p.spriteCount; i++ {
		offset := x - int(p.spriteX[i])
		if offset < 0 || offset > 7 {
			continue
		}
		shift := uint(7 - offset)
		lo := (p.spritePatternLo[i] >> shift) & 1
		hi := (p.spritePatternHi[i] >> shift) & 1
		px := hi<<1 | lo
		if px == 0 {
			continue
		}
		return px, p.spriteAttr[i]&0x03 + 4, p.spriteAttr[i]&0x20 != 0, p.secondaryIndexes[i] == 0 && p.sprite0Present
	}
	return 0, 0, false, false
}

// nesColorPalette is the canonical 2C02 NTSC master palette, stored as
// 0xAARRGGBB.
var nesColorPalette = [64]uint32{
	0xFF666666, 0xFF002A88, 0xFF1412A7, 0xFF3B00A4, 0xFF5C007E, 0xFF6E0040, 0xFF6C0600, 0xFF561D00,
	0xFF333500, 0xFF0B4800, 0xFF005200, 0xFF004F08, 0xFF00404D, 0xFF000000, 0xFF000000, 0xFF000000,
	0xFFADADAD, 0xFF155FD9, 0xFF4240FF, 0xFF7527FE, 0xFFA01ACC, 0xFFB71E7B, 0xFFB53120, 0xFF994E00,
	0xFF6B6D00, 0xFF388700, 0xFF0C9300, 0xFF008F32, 0xFF007C8D, 0xFF000000, 0xFF000000, 0xFF000000,
	0xFFFFFEFF, 0xFF64B0FF, 0xFF9290FF, 0xFFC676FF, 0xFFF36AFF, 0xFFFE6ECC, 0xFFFE8170, 0xFFEA9E22,
	0xFFBCBE00, 0xFF88D800, 0xFF5CE430, 0xFF45E082, 0xFF48CDDE, 0xFF4F4F4F, 0xFF000000, 0xFF000000,
	0xFFFFFEFF, 0xFFC0DFFF, 0xFFD3D2FF, 0xFFE8C8FF, 0xFFFBC2FF, 0xFFFEC4EA, 0xFFFECCC5, 0xFFF7D8A5,
	0xFFE4E594, 0xFFCFF29B, 0xFFBEFBB3, 0xFFB8F8D8, 0xFFB8F8F8, 0xFF000000, 0xFF000000, 0xFF000000,
}

// RenderRGBA copies the current frame buffer into out as tightly
// packed RGBA8888 bytes (256x240x4). The caller supplies the backing
// slice so repeated frames can reuse one allocation.
func (p *PPU) RenderRGBA(out []byte) {
	for i, argb := range p.frameBuffer {
		out[i*4+0] = uint8(argb >> 16)
		out[i*4+1] = uint8(argb >> 8)
		out[i*4+2] = uint8(argb)
		out[i*4+3] = 0xFF
	}
}

// State is an exported snapshot of the PPU's register and pipeline
// state, for use by internal/savestate. The frame buffer is excluded;
// it is regenerated by the next frame's rendering rather than stored.
type State struct {
	Ctrl, Mask, Status uint8
	OAMAddr            uint8
	OAM                [256]uint8

	V, T uint16
	X    uint8
	W    bool

	ReadBuffer uint8

	Scanline int
	Dot      int
	Frame    uint64
	OddFrame bool

	NextTileID, NextTileAttr, NextTileLo, NextTileHi uint8

	BGShiftPatternLo, BGShiftPatternHi uint16
	BGShiftAttrLo, BGShiftAttrHi       uint16

	SecondaryOAM     [32]uint8
	SecondaryIndexes [8]uint8
	SpriteCount      int
	SpritePatternLo  [8]uint8
	SpritePatternHi  [8]uint8
	SpriteAttr       [8]uint8
	SpriteX          [8]uint8
	Sprite0Present   bool
}

// SaveState snapshots the PPU's full register and pipeline state.
func (p *PPU) SaveState() State {
	return State{
		Ctrl: p.ctrl, Mask: p.mask, Status: p.status,
		OAMAddr: p.oamAddr, OAM: p.oam,
		V: p.v, T: p.t, X: p.x, W: p.w,
		ReadBuffer: p.readBuffer,
		Scanline:   p.scanline, Dot: p.dot, Frame: p.frame, OddFrame: p.oddFrame,
		NextTileID: p.nextTileID, NextTileAttr: p.nextTileAttr,
		NextTileLo: p.nextTileLo, NextTileHi: p.nextTileHi,
		BGShiftPatternLo: p.bgShiftPatternLo, BGShiftPatternHi: p.bgShiftPatternHi,
		BGShiftAttrLo: p.bgShiftAttrLo, BGShiftAttrHi: p.bgShiftAttrHi,
		SecondaryOAM: p.secondaryOAM, SecondaryIndexes: p.secondaryIndexes,
		SpriteCount:     p.spriteCount,
		SpritePatternLo: p.spritePatternLo, SpritePatternHi: p.spritePatternHi,
		SpriteAttr: p.spriteAttr, SpriteX: p.spriteX,
		Sprite0Present: p.sprite0Present,
	}
}

// LoadState restores a snapshot produced by SaveState.
func (p *PPU) LoadState(s State) {
	p.ctrl, p.mask, p.status = s.Ctrl, s.Mask, s.Status
	p.oamAddr, p.oam = s.OAMAddr, s.OAM
	p.v, p.t, p.x, p.w = s.V, s.T, s.X, s.W
	p.readBuffer = s.ReadBuffer
	p.scanline, p.dot, p.frame, p.oddFrame = s.Scanline, s.Dot, s.Frame, s.OddFrame
	p.nextTileID, p.nextTileAttr = s.NextTileID, s.NextTileAttr
	p.nextTileLo, p.nextTileHi = s.NextTileLo, s.NextTileHi
	p.bgShiftPatternLo, p.bgShiftPatternHi = s.BGShiftPatternLo, s.BGShiftPatternHi
	p.bgShiftAttrLo, p.bgShiftAttrHi = s.BGShiftAttrLo, s.BGShiftAttrHi
	p.secondaryOAM, p.secondaryIndexes = s.SecondaryOAM, s.SecondaryIndexes
	p.spriteCount = s.SpriteCount
	p.spritePatternLo, p.spritePatternHi = s.SpritePatternLo, s.SpritePatternHi
	p.spriteAttr, p.spriteX = s.SpriteAttr, s.SpriteX
	p.sprite0Present = s.Sprite0Present
}
