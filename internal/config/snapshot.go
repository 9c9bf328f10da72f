// Package config handles configuration loading, validation, and management for kolom.
package config

import (
	"fmt"
	"image/color"
	"strconv"
	"strings"
	"sync"

	"github.com/lucasb-eyer/go-colorful"

	"kolom/internal/logging"
)

// Palette holds the resolved candidate window colors.
type Palette struct {
	// Candidate is the text color of unhighlighted candidates.
	Candidate color.NRGBA
	// Index is the text color of the numeric index labels.
	Index color.NRGBA
	// Background is the window background fill.
	Background color.NRGBA
	// Clip is the strip along the window edge.
	Clip color.NRGBA
	// Highlight is the fill behind the highlighted candidate.
	Highlight color.NRGBA
	// Highlighted is the text color of the highlighted candidate.
	Highlighted color.NRGBA
}

// Snapshot is the immutable view of the configuration the composing
// core works against. It is taken once, on first access, and never
// changes for the process lifetime; live reloads only reach consumers
// that go through a Loader.
type Snapshot struct {
	FontFamily    string
	FontPointSize float64

	Colors   Palette
	Vertical bool

	IncludeEnglish   bool
	SmartQuote       bool
	RestoreSelection bool
}

var (
	snapshotOnce sync.Once
	snapshot     *Snapshot
)

// Current returns the process-wide configuration snapshot, loading the
// configuration file on the first call. Load failures fall back to the
// built-in defaults and are logged once; Current itself never fails.
func Current() *Snapshot {
	snapshotOnce.Do(func() {
		cfg, err := Load("")
		if err != nil {
			logging.Warn("config load failed, using defaults", "err", err)
			cfg = DefaultConfig()
		}

		snap, err := SnapshotFrom(cfg)
		if err != nil {
			logging.Warn("config resolve failed, using defaults", "err", err)
			snap = defaultSnapshot()
		}
		snapshot = snap
	})
	return snapshot
}

// SnapshotFrom resolves a Config into a Snapshot, parsing colors and
// deriving the highlighted text color when it is left empty.
func SnapshotFrom(cfg *Config) (*Snapshot, error) {
	pal := Palette{}

	colors := []struct {
		name  string
		value string
		dst   *color.NRGBA
	}{
		{"colors.candidate", cfg.Colors.Candidate, &pal.Candidate},
		{"colors.index", cfg.Colors.Index, &pal.Index},
		{"colors.background", cfg.Colors.Background, &pal.Background},
		{"colors.clip", cfg.Colors.Clip, &pal.Clip},
		{"colors.highlight", cfg.Colors.Highlight, &pal.Highlight},
	}
	for _, c := range colors {
		parsed, err := ParseColor(c.value)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", c.name, err)
		}
		*c.dst = parsed
	}

	if cfg.Colors.Highlighted == "" {
		pal.Highlighted = autoTextColor(pal.Highlight)
	} else {
		parsed, err := ParseColor(cfg.Colors.Highlighted)
		if err != nil {
			return nil, fmt.Errorf("colors.highlighted: %w", err)
		}
		pal.Highlighted = parsed
	}

	return &Snapshot{
		FontFamily:       cfg.Font.Family,
		FontPointSize:    cfg.Font.PointSize,
		Colors:           pal,
		Vertical:         cfg.Layout.Vertical,
		IncludeEnglish:   cfg.Behavior.IncludeEnglish,
		SmartQuote:       cfg.Behavior.SmartQuote,
		RestoreSelection: cfg.Behavior.RestoreSelection,
	}, nil
}

// ParseColor parses "#RGB", "#RRGGBB" or "#RRGGBBAA" into an NRGBA color.
func ParseColor(s string) (color.NRGBA, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return color.NRGBA{}, fmt.Errorf("empty color")
	}
	if !strings.HasPrefix(s, "#") {
		s = "#" + s
	}

	alpha := uint8(0xFF)
	hexPart := s
	if len(s) == 9 {
		a, err := strconv.ParseUint(s[7:9], 16, 8)
		if err != nil {
			return color.NRGBA{}, fmt.Errorf("invalid alpha in %q", s)
		}
		alpha = uint8(a)
		hexPart = s[:7]
	}

	c, err := colorful.Hex(hexPart)
	if err != nil {
		return color.NRGBA{}, fmt.Errorf("invalid color %q", s)
	}

	r, g, b := c.RGB255()
	return color.NRGBA{R: r, G: g, B: b, A: alpha}, nil
}

// autoTextColor picks near-black or near-white for legibility against bg.
func autoTextColor(bg color.NRGBA) color.NRGBA {
	c := colorful.Color{
		R: float64(bg.R) / 255.0,
		G: float64(bg.G) / 255.0,
		B: float64(bg.B) / 255.0,
	}
	l, _, _ := c.Luv()
	if l > 0.5 {
		return color.NRGBA{R: 0x10, G: 0x10, B: 0x10, A: 0xFF}
	}
	return color.NRGBA{R: 0xF5, G: 0xF5, B: 0xF5, A: 0xFF}
}

// defaultSnapshot mirrors DefaultConfig without going through parsing,
// so the fallback path cannot itself fail.
func defaultSnapshot() *Snapshot {
	return &Snapshot{
		FontFamily:    "Kalpurush",
		FontPointSize: 12,
		Colors: Palette{
			Candidate:   color.NRGBA{R: 0x1A, G: 0x1A, B: 0x1A, A: 0xFF},
			Index:       color.NRGBA{R: 0x7A, G: 0x7A, B: 0x7A, A: 0xFF},
			Background:  color.NRGBA{R: 0xFC, G: 0xFC, B: 0xFC, A: 0xFF},
			Clip:        color.NRGBA{R: 0x21, G: 0x7A, B: 0x52, A: 0xFF},
			Highlight:   color.NRGBA{R: 0xD3, G: 0xE8, B: 0xDE, A: 0xFF},
			Highlighted: color.NRGBA{R: 0x10, G: 0x10, B: 0x10, A: 0xFF},
		},
		Vertical:         false,
		IncludeEnglish:   false,
		SmartQuote:       true,
		RestoreSelection: true,
	}
}
