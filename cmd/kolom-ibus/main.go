//go:build linux

// kolom-ibus is the Linux IBus glue for the kolom composing core.
//
// It registers a phonetic Bengali engine with the IBus daemon over the
// session bus, forwards key events into the composing session, and
// mirrors the session's candidate window and preedit back to the
// panel.
//
// Installation:
//  1. Copy binary to /usr/local/bin/kolom-ibus
//  2. kolom-ibus --install
//  3. Restart IBus: ibus restart
//  4. Enable via ibus-setup or GNOME Settings > Keyboard > Input Sources
package main

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/godbus/dbus/v5"

	"kolom/internal/candidate"
	"kolom/internal/config"
	"kolom/internal/engine"
	"kolom/internal/history"
	"kolom/internal/layouts"
	"kolom/internal/lockfile"
	"kolom/internal/logging"
	"kolom/internal/render/giowin"
)

const (
	kolomBusName = "org.kolom.IBus"

	engineInterface = "org.freedesktop.IBus.Engine"
	enginePath      = "/org/freedesktop/IBus/Engine/Kolom"
)

func main() {
	installFlag := flag.Bool("install", false, "Install the IBus component and exit")
	uninstallFlag := flag.Bool("uninstall", false, "Uninstall the IBus component and exit")
	configPath := flag.String("config", "", "Configuration file path (default: auto-detect)")
	verbose := flag.Bool("verbose", false, "Force debug logging")
	flag.Parse()

	if *installFlag {
		if err := installComponent(); err != nil {
			log.Fatalf("install component: %v", err)
		}
		fmt.Println("Installed. Run 'ibus restart' to load.")
		return
	}
	if *uninstallFlag {
		if err := uninstallComponent(); err != nil {
			log.Fatalf("uninstall component: %v", err)
		}
		fmt.Println("Uninstalled.")
		return
	}

	if err := run(*configPath, *verbose); err != nil {
		log.Fatalf("kolom-ibus: %v", err)
	}
}

func run(configPath string, verbose bool) error {
	cfg, created, err := config.LoadOrCreate(configPath)
	if err != nil {
		logging.Warn("config load failed, using defaults", "err", err)
		cfg = config.DefaultConfig()
	}
	cfg.ApplyEnvOverrides()
	if err := cfg.EnsureDirectories(); err != nil {
		return fmt.Errorf("prepare state directories: %w", err)
	}

	logger, err := newLogger(cfg, verbose)
	if err != nil {
		return fmt.Errorf("initialize logging: %w", err)
	}
	defer logger.Close()
	logging.SetDefault(logger)
	if created {
		logger.Info("wrote default configuration", "path", config.ConfigPath())
	}

	lock, err := lockfile.Acquire(filepath.Join(config.KolomDir(), "kolom-ibus.lock"))
	if err != nil {
		if errors.Is(err, lockfile.ErrLocked) {
			return fmt.Errorf("another kolom-ibus is already running")
		}
		return fmt.Errorf("acquire instance lock: %w", err)
	}
	defer lock.Release()

	snap, err := config.SnapshotFrom(cfg)
	if err != nil {
		logger.Warn("config resolve failed, using defaults", "err", err)
		snap = config.Current()
	}

	layout, err := layouts.Find(cfg.Engine.LayoutDir, cfg.Engine.LayoutName)
	if err != nil {
		logger.Warn("layout lookup failed", "layout", cfg.Engine.LayoutName, "err", err)
	} else {
		logger.Info("active layout",
			"layout", layout.Name, "version", layout.Version,
			"fingerprint", layout.Fingerprint[:12])
	}

	bus, err := engine.DialSession(engine.BusOptions{
		BusName:     cfg.Engine.BusName,
		ObjectPath:  cfg.Engine.ObjectPath,
		CallTimeout: time.Duration(cfg.Engine.CallTimeoutMs) * time.Millisecond,
		Logger:      logger.WithComponent("engine").Logger,
	})
	if err != nil {
		return fmt.Errorf("dial suggestion engine: %w", err)
	}
	defer bus.Close()

	if err := bus.SetSessionOptions(cfg.Engine.LayoutName, snap.IncludeEnglish, snap.SmartQuote); err != nil {
		logger.Warn("set session options", "err", err)
	}

	var suggester engine.Engine = bus
	if cfg.History.Enabled {
		store, err := history.Open(cfg.History.Path)
		if err != nil {
			logger.Warn("history store unavailable", "err", err)
		} else {
			defer store.Close()
			if cfg.History.RetainDays > 0 {
				retain := time.Duration(cfg.History.RetainDays) * 24 * time.Hour
				if n, err := store.Prune(retain); err != nil {
					logger.Warn("history prune", "err", err)
				} else if n > 0 {
					logger.Info("pruned selection history", "removed", n)
				}
			}
			suggester = history.NewRecordingEngine(bus, store, logger.WithComponent("history").Logger)
		}
	}

	backend := giowin.New(giowin.Options{
		Title:  "kolom candidates",
		Logger: logger.WithComponent("render").Logger,
	})
	window, err := candidate.Create(candidate.Options{
		Backend: backend,
		Config:  snap,
		Logger:  logger.WithComponent("candidate").Logger,
	})
	if err != nil {
		return fmt.Errorf("create candidate window: %w", err)
	}
	defer window.Destroy()

	conn, err := dbus.SessionBus()
	if err != nil {
		return fmt.Errorf("connect session bus: %w", err)
	}
	defer conn.Close()

	reply, err := conn.RequestName(kolomBusName, dbus.NameFlagDoNotQueue)
	if err != nil {
		return fmt.Errorf("request bus name: %w", err)
	}
	if reply != dbus.RequestNameReplyPrimaryOwner {
		return fmt.Errorf("bus name %s already taken", kolomBusName)
	}

	eng := newIBusEngine(conn, suggester, window, snap, logger.WithComponent("ibus").Logger)
	defer eng.shutdown()
	if err := conn.Export(eng, enginePath, engineInterface); err != nil {
		return fmt.Errorf("export engine object: %w", err)
	}

	logger.Info("kolom IBus engine started", "bus_name", kolomBusName)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	logger.Info("shutting down", "signal", sig.String())

	return nil
}

func newLogger(cfg *config.Config, verbose bool) (*logging.Logger, error) {
	lc := logging.DefaultConfig()

	if level, err := logging.ParseLevel(cfg.Logging.Level); err == nil {
		lc.Level = level
	}
	if verbose {
		lc.Level = logging.LevelDebug
	}
	if cfg.Logging.Format == "json" {
		lc.Format = logging.FormatJSON
	}
	if cfg.Logging.Output != "" {
		lc.Output = cfg.Logging.Output
	}
	if cfg.Logging.FilePath != "" {
		lc.FilePath = cfg.Logging.FilePath
	}
	if cfg.Logging.MaxSizeMB > 0 {
		lc.MaxSizeMB = int64(cfg.Logging.MaxSizeMB)
	}
	if cfg.Logging.MaxBackups > 0 {
		lc.MaxBackups = cfg.Logging.MaxBackups
	}
	lc.LogTypedText = cfg.Logging.LogTypedText
	lc.Component = "kolom-ibus"

	return logging.New(lc)
}

func installComponent() error {
	home, err := os.UserHomeDir()
	if err != nil {
		return err
	}

	componentDir := filepath.Join(home, ".local", "share", "ibus", "component")
	if err := os.MkdirAll(componentDir, 0o755); err != nil {
		return err
	}

	binPath, err := os.Executable()
	if err != nil {
		binPath = "/usr/local/bin/kolom-ibus"
	}

	componentXML := `<?xml version="1.0" encoding="utf-8"?>
<component>
    <name>org.kolom.ibus</name>
    <description>Kolom Bengali phonetic input</description>
    <exec>` + binPath + `</exec>
    <version>1.0.0</version>
    <author>Kolom</author>
    <license>MIT</license>
    <homepage>https://github.com/kolom-im/kolom</homepage>
    <textdomain>kolom</textdomain>
    <engines>
        <engine>
            <name>kolom</name>
            <language>bn</language>
            <license>MIT</license>
            <author>Kolom</author>
            <icon>kolom</icon>
            <layout>us</layout>
            <longname>Kolom</longname>
            <description>Bengali phonetic keyboard</description>
            <rank>99</rank>
            <symbol>ক</symbol>
        </engine>
    </engines>
</component>`

	return os.WriteFile(filepath.Join(componentDir, "kolom.xml"), []byte(componentXML), 0o644)
}

func uninstallComponent() error {
	home, err := os.UserHomeDir()
	if err != nil {
		return err
	}
	return os.Remove(filepath.Join(home, ".local", "share", "ibus", "component", "kolom.xml"))
}
