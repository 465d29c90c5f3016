package main

import (
	"encoding/binary"
	"image"
	"image/color"
	"sync"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/audio"
	"github.com/hajimehoshi/ebiten/v2/inpututil"

	"github.com/RedCastSoftware/nespresso-nes-emulator/internal/bus"
	"github.com/RedCastSoftware/nespresso-nes-emulator/internal/config"
	"github.com/RedCastSoftware/nespresso-nes-emulator/internal/input"
)

// ebitenDriver is the only collaborator that sees the NES core: it
// blits the PPU's frame buffer, reads the keyboard for both
// controllers, and streams APU samples through ebiten's audio player.
type ebitenDriver struct {
	bus    *bus.Bus
	cfg    *config.Config
	image  *ebiten.Image
	pixels *image.RGBA
	source *sampleSource
	player *audio.Player

	width, height int
}

var player1Keys = map[ebiten.Key]input.Button{
	ebiten.KeyArrowUp:    input.ButtonUp,
	ebiten.KeyArrowDown:  input.ButtonDown,
	ebiten.KeyArrowLeft:  input.ButtonLeft,
	ebiten.KeyArrowRight: input.ButtonRight,
	ebiten.KeyZ:          input.ButtonA,
	ebiten.KeyX:          input.ButtonB,
	ebiten.KeyEnter:      input.ButtonStart,
	ebiten.KeySpace:      input.ButtonSelect,
}

var player2Keys = map[ebiten.Key]input.Button{
	ebiten.KeyI: input.ButtonUp,
	ebiten.KeyK: input.ButtonDown,
	ebiten.KeyJ: input.ButtonLeft,
	ebiten.KeyL: input.ButtonRight,
	ebiten.Key1: input.ButtonA,
	ebiten.Key2: input.ButtonB,
	ebiten.Key3: input.ButtonStart,
	ebiten.Key4: input.ButtonSelect,
}

func newEbitenDriver(b *bus.Bus, cfg *config.Config) (*ebitenDriver, error) {
	width, height := cfg.WindowResolution()

	d := &ebitenDriver{
		bus:    b,
		cfg:    cfg,
		image:  ebiten.NewImage(256, 240),
		pixels: image.NewRGBA(image.Rect(0, 0, 256, 240)),
		width:  width,
		height: height,
	}

	if cfg.Audio.Enabled {
		ctx := audio.NewContext(cfg.Audio.SampleRate)
		d.source = &sampleSource{}
		player, err := ctx.NewPlayer(d.source)
		if err != nil {
			return nil, err
		}
		player.SetVolume(float64(cfg.Audio.Volume))
		player.Play()
		d.player = player
	}

	ebiten.SetWindowTitle("nespresso")
	ebiten.SetWindowSize(width, height)
	ebiten.SetWindowResizingMode(ebiten.WindowResizingModeEnabled)
	ebiten.SetVsyncEnabled(cfg.Window.VSync)
	if cfg.Window.Fullscreen {
		ebiten.SetFullscreen(true)
	}

	return d, nil
}

func (d *ebitenDriver) Update() error {
	var pressed [8]bool
	order := [8]input.Button{
		input.ButtonA, input.ButtonB, input.ButtonSelect, input.ButtonStart,
		input.ButtonUp, input.ButtonDown, input.ButtonLeft, input.ButtonRight,
	}
	held := map[input.Button]bool{}
	for key, button := range player1Keys {
		if ebiten.IsKeyPressed(key) {
			held[button] = true
		}
	}
	for i, b := range order {
		pressed[i] = held[b]
	}
	d.bus.Input.Controller1.SetButtons(pressed)

	if d.cfg.Input.Player2Enabled {
		var pressed2 [8]bool
		held2 := map[input.Button]bool{}
		for key, button := range player2Keys {
			if ebiten.IsKeyPressed(key) {
				held2[button] = true
			}
		}
		for i, b := range order {
			pressed2[i] = held2[b]
		}
		d.bus.Input.Controller2.SetButtons(pressed2)
	}

	if inpututil.IsKeyJustPressed(ebiten.KeyEscape) {
		return ebiten.Termination
	}

	d.bus.Frame()
	if d.source != nil {
		d.source.push(d.bus.AudioSamples())
	}
	return nil
}

func (d *ebitenDriver) Draw(screen *ebiten.Image) {
	frame := d.bus.FrameBuffer()
	for i, argb := range frame {
		r := uint8(argb >> 16)
		g := uint8(argb >> 8)
		b := uint8(argb)
		d.pixels.Pix[i*4+0] = r
		d.pixels.Pix[i*4+1] = g
		d.pixels.Pix[i*4+2] = b
		d.pixels.Pix[i*4+3] = 0xFF
	}
	d.image.ReplacePixels(d.pixels.Pix)

	screen.Fill(color.RGBA{A: 0xFF})
	op := &ebiten.DrawImageOptions{}
	scale := float64(d.width) / 256
	if alt := float64(d.height) / 240; alt < scale {
		scale = alt
	}
	op.GeoM.Scale(scale, scale)
	screen.DrawImage(d.image, op)
}

func (d *ebitenDriver) Layout(outsideWidth, outsideHeight int) (int, int) {
	d.width, d.height = outsideWidth, outsideHeight
	return outsideWidth, outsideHeight
}

// sampleSource adapts the APU's lazily-produced float32 samples into
// the 16-bit stereo PCM stream ebiten's audio.Player reads from.
// Underruns are filled with silence rather than blocking.
type sampleSource struct {
	mu      sync.Mutex
	pending []float32
}

func (s *sampleSource) push(samples []float32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = append(s.pending, samples...)
}

func (s *sampleSource) Read(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	frames := len(p) / 4
	for i := 0; i < frames; i++ {
		var v float32
		if len(s.pending) > 0 {
			v = s.pending[0]
			s.pending = s.pending[1:]
		}
		if v > 1 {
			v = 1
		} else if v < -1 {
			v = -1
		}
		sample := uint16(int16(v * 32767))
		binary.LittleEndian.PutUint16(p[i*4:], sample)
		binary.LittleEndian.PutUint16(p[i*4+2:], sample)
	}
	return frames * 4, nil
}
