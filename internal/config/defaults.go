// Package config handles configuration loading, validation, and management for kolom.
package config

import (
	"os"
	"path/filepath"
	"runtime"
)

// PlatformDataDir returns the platform-specific data directory.
//
// Platform paths:
//   - macOS:   ~/Library/Application Support/kolom/
//   - Linux:   ~/.local/share/kolom/
//   - Windows: %APPDATA%\kolom\
//
// Falls back to ~/.kolom if platform detection fails.
func PlatformDataDir() string {
	switch runtime.GOOS {
	case "darwin":
		home := homeDir()
		return filepath.Join(home, "Library", "Application Support", "kolom")
	case "linux":
		if xdgData := os.Getenv("XDG_DATA_HOME"); xdgData != "" {
			return filepath.Join(xdgData, "kolom")
		}
		return filepath.Join(homeDir(), ".local", "share", "kolom")
	case "windows":
		if appData := os.Getenv("APPDATA"); appData != "" {
			return filepath.Join(appData, "kolom")
		}
		return filepath.Join(homeDir(), "AppData", "Roaming", "kolom")
	default:
		return fallbackDir()
	}
}

// PlatformConfigDir returns the platform-specific config directory.
//
// Platform paths:
//   - macOS:   ~/Library/Application Support/kolom/
//   - Linux:   ~/.config/kolom/
//   - Windows: %APPDATA%\kolom\
func PlatformConfigDir() string {
	switch runtime.GOOS {
	case "linux":
		if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
			return filepath.Join(xdgConfig, "kolom")
		}
		return filepath.Join(homeDir(), ".config", "kolom")
	case "darwin", "windows":
		// Both keep config next to data.
		return PlatformDataDir()
	default:
		return fallbackDir()
	}
}

// PlatformCacheDir returns the platform-specific cache directory.
//
// Platform paths:
//   - macOS:   ~/Library/Caches/kolom/
//   - Linux:   ~/.cache/kolom/
//   - Windows: %LOCALAPPDATA%\kolom\cache\
func PlatformCacheDir() string {
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(homeDir(), "Library", "Caches", "kolom")
	case "linux":
		if xdgCache := os.Getenv("XDG_CACHE_HOME"); xdgCache != "" {
			return filepath.Join(xdgCache, "kolom")
		}
		return filepath.Join(homeDir(), ".cache", "kolom")
	case "windows":
		if localAppData := os.Getenv("LOCALAPPDATA"); localAppData != "" {
			return filepath.Join(localAppData, "kolom", "cache")
		}
		return filepath.Join(homeDir(), "AppData", "Local", "kolom", "cache")
	default:
		return filepath.Join(fallbackDir(), "cache")
	}
}

func homeDir() string {
	if home := os.Getenv("HOME"); home != "" {
		return home
	}
	home, _ := os.UserHomeDir()
	return home
}

func fallbackDir() string {
	return filepath.Join(homeDir(), ".kolom")
}
