// Command nespresso is the presentation host for the NES emulator
// core: it parses flags, loads a ROM, and drives either an ebiten
// window or a headless frame loop.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/hajimehoshi/ebiten/v2"

	"github.com/RedCastSoftware/nespresso-nes-emulator/internal/bus"
	"github.com/RedCastSoftware/nespresso-nes-emulator/internal/cartridge"
	"github.com/RedCastSoftware/nespresso-nes-emulator/internal/config"
	"github.com/RedCastSoftware/nespresso-nes-emulator/internal/version"
)

func main() {
	var (
		romPath    = flag.String("rom", "", "path to an iNES ROM file")
		configPath = flag.String("config", "", "path to a JSON config file (default: "+config.DefaultPath()+")")
		headless   = flag.Bool("nogui", false, "run without a window, for smoke-testing a ROM")
		frames     = flag.Int("frames", 120, "frames to run in -nogui mode")
		showVer    = flag.Bool("version", false, "print version information and exit")
	)
	flag.Parse()

	if *showVer {
		version.PrintBuildInfo()
		return
	}

	if *romPath == "" {
		log.Fatal("nespresso: -rom is required")
	}

	cfgPath := *configPath
	if cfgPath == "" {
		cfgPath = config.DefaultPath()
	}
	cfg := config.New()
	if err := cfg.LoadFromFile(cfgPath); err != nil {
		log.Printf("nespresso: config: %v (using defaults)", err)
	}

	cart, err := loadCartridge(*romPath)
	if err != nil {
		log.Fatalf("nespresso: loading ROM: %v", err)
	}
	log.Printf("nespresso: loaded %s (mapper %d, %s, %d PRG bank(s), %d CHR bank(s))",
		*romPath, cart.MapperID, cart.Mirroring(), cart.PRGBanks, cart.CHRBanks)

	nes := bus.New(cart)

	if *headless {
		runHeadless(nes, *frames)
		return
	}

	driver, err := newEbitenDriver(nes, cfg)
	if err != nil {
		log.Fatalf("nespresso: audio init: %v", err)
	}
	if err := ebiten.RunGame(driver); err != nil {
		log.Fatalf("nespresso: %v", err)
	}
}

func loadCartridge(path string) (*cartridge.Cartridge, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return cartridge.LoadFromReader(f)
}

// runHeadless steps the core for a fixed number of frames without any
// presentation surface, for quick ROM-compatibility smoke tests.
func runHeadless(nes *bus.Bus, frames int) {
	for i := 0; i < frames; i++ {
		nes.Frame()
	}
	log.Printf("nespresso: ran %d frames, %d CPU cycles", frames, nes.CPUCycles())
}
