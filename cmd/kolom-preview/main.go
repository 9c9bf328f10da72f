// kolom-preview drives the real candidate window against a fixed
// candidate list, without an IBus daemon or a suggestion engine. It
// exists to eyeball layout, colors and fonts while editing the
// configuration.
//
//	kolom-preview -vertical -candidates "আমার,আমি,অামার"
//
// The highlight cycles once a second so every paint path gets
// exercised.
package main

import (
	"flag"
	"log"
	"os"
	"strings"
	"time"

	"gioui.org/app"

	"kolom/internal/candidate"
	"kolom/internal/config"
	"kolom/internal/logging"
	"kolom/internal/render/giowin"
)

func main() {
	vertical := flag.Bool("vertical", false, "Vertical candidate list")
	list := flag.String("candidates", "আমার,আমি,আমরা,অমর", "Comma-separated candidate list")
	x := flag.Int("x", 200, "Window X position")
	y := flag.Int("y", 200, "Window Y position")
	configPath := flag.String("config", "", "Configuration file path (default: auto-detect)")
	flag.Parse()

	candidates := strings.Split(*list, ",")
	if len(candidates) == 0 {
		log.Fatal("empty candidate list")
	}

	go func() {
		if err := run(*configPath, *vertical, candidates, *x, *y); err != nil {
			log.Fatalf("kolom-preview: %v", err)
		}
		os.Exit(0)
	}()
	app.Main()
}

func run(configPath string, vertical bool, candidates []string, x, y int) error {
	logger := logging.Default()

	cfg, err := config.Load(configPath)
	if err != nil {
		logger.Warn("config load failed, using defaults", "err", err)
		cfg = config.DefaultConfig()
	}
	cfg.Layout.Vertical = vertical

	snap, err := config.SnapshotFrom(cfg)
	if err != nil {
		return err
	}

	backend := giowin.New(giowin.Options{
		Title:  "kolom preview",
		Logger: logger.WithComponent("render").Logger,
	})
	window, err := candidate.Create(candidate.Options{
		Backend: backend,
		Config:  snap,
		Logger:  logger.WithComponent("candidate").Logger,
	})
	if err != nil {
		return err
	}
	defer window.Destroy()

	window.Locate(x, y)
	window.Show(candidates)
	logger.Info("preview up",
		"candidates", len(candidates), "vertical", vertical)

	for range time.Tick(time.Second) {
		window.MoveHighlightNext()
	}
	return nil
}
