// Package candidate implements the floating candidate window: an
// always-on-top, never-focused overlay listing up to nine labeled
// interpretations of the text being composed, one of them highlighted.
//
// The window owns its own copy of the display strings and the
// highlight index, decoupled from the suggestion engine's candidate
// set, so highlight navigation never touches the engine. Layout is
// recomputed from fresh text measurements on every show and every
// highlight change; nothing geometric is cached across repaints.
package candidate

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"kolom/internal/config"
	"kolom/internal/render"
)

// MaxCandidates is the page size of the window. Labels run "1".."9".
const MaxCandidates = 9

var indexLabels = [MaxCandidates]string{"1", "2", "3", "4", "5", "6", "7", "8", "9"}

// Index label suffixes. Monospace families get a trailing space, which
// reads better with their fixed advance widths.
const (
	indexSuffix     = "."
	indexSuffixMono = ". "
)

// Layout constants in device-independent pixels. They are multiplied
// by the DPI scale captured at window creation.
const (
	clipWidth = 3
	padTop    = 4
	padBottom = 4
	padLeft   = 5
	padRight  = 6
	indexGap  = 6

	offsetX = 2
	offsetY = 2
)

// indexFontRatio sizes the numeric labels relative to the candidates.
const indexFontRatio = 0.7

// widthFloorRatio keeps tall vertical windows from getting needle-thin:
// the window is never narrower than this fraction of its height.
const widthFloorRatio = 0.8

// Options configures a Window.
type Options struct {
	// Backend creates the overlay surface.
	Backend render.Backend

	// Config is the configuration snapshot. Nil uses the process-wide
	// snapshot.
	Config *config.Snapshot

	// Logger receives repaint and measurement failures. Nil uses the
	// process default.
	Logger *slog.Logger
}

// Window is one candidate window over one overlay surface.
type Window struct {
	surface render.Surface
	log     *slog.Logger

	family      string
	suffix      string
	fontPx      float64
	indexFontPx float64
	scale       float64
	colors      config.Palette
	vertical    bool

	mu          sync.Mutex
	candidates  []string
	highlighted int
	visible     bool
	frame       *frame
}

// Create allocates the overlay surface and derives the window's fixed
// font sizes from the configured point size and the surface's DPI
// scale, both captured once here. Surface creation failure is fatal to
// the component: without a surface no candidates can ever be shown.
func Create(opts Options) (*Window, error) {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Current()
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}

	surface, err := opts.Backend.CreateOverlaySurface()
	if err != nil {
		return nil, fmt.Errorf("create overlay surface: %w", err)
	}

	scale := surface.DPIScale()
	if scale <= 0 {
		scale = 1
	}
	fontPx := cfg.FontPointSize * scale

	suffix := indexSuffix
	family := strings.ToLower(cfg.FontFamily)
	if strings.Contains(family, "mono") || strings.Contains(family, "fairfax") {
		suffix = indexSuffixMono
	}

	w := &Window{
		surface:     surface,
		log:         log,
		family:      cfg.FontFamily,
		suffix:      suffix,
		fontPx:      fontPx,
		indexFontPx: fontPx * indexFontRatio,
		scale:       scale,
		colors:      cfg.Colors,
		vertical:    cfg.Vertical,
	}
	surface.SetRedraw(w.paint)
	return w, nil
}

// Locate moves the window near the given screen point, nudged by a
// small margin so it does not sit on the caret itself. No resize, no
// focus change.
func (w *Window) Locate(x, y int) {
	w.surface.Position(x+offsetX, y+offsetY)
}

// Show replaces the candidate list, resets the highlight to the first
// entry, recomputes the full layout and reveals the window. Lists
// longer than MaxCandidates are truncated.
func (w *Window) Show(candidates []string) {
	if len(candidates) == 0 {
		w.Hide()
		return
	}
	if len(candidates) > MaxCandidates {
		candidates = candidates[:MaxCandidates]
	}

	w.mu.Lock()
	w.candidates = append(w.candidates[:0], candidates...)
	w.highlighted = 0
	f := w.relayoutLocked()
	if f == nil {
		// Measurement failed; keep whatever frame is on screen.
		w.mu.Unlock()
		return
	}
	w.frame = f
	w.visible = true
	w.mu.Unlock()

	w.surface.ResizeAndShow(ceilPx(f.w), ceilPx(f.h))
	w.surface.Invalidate()
}

// MoveHighlightNext advances the highlight by one, wrapping at the
// end. No-op while the candidate list is empty.
func (w *Window) MoveHighlightNext() {
	w.stepHighlight(1)
}

// MoveHighlightPrev retreats the highlight by one, wrapping at the
// start. No-op while the candidate list is empty.
func (w *Window) MoveHighlightPrev() {
	w.stepHighlight(-1)
}

func (w *Window) stepHighlight(delta int) {
	w.mu.Lock()
	n := len(w.candidates)
	if n == 0 {
		w.mu.Unlock()
		return
	}
	w.highlighted = (w.highlighted + delta + n) % n
	if f := w.relayoutLocked(); f != nil {
		w.frame = f
	}
	w.mu.Unlock()

	w.surface.Invalidate()
}

// SetHighlight moves the highlight directly to index. It reports false
// and changes nothing when index is outside the candidate list.
func (w *Window) SetHighlight(index int) bool {
	w.mu.Lock()
	if index < 0 || index >= len(w.candidates) {
		w.mu.Unlock()
		return false
	}
	w.highlighted = index
	if f := w.relayoutLocked(); f != nil {
		w.frame = f
	}
	w.mu.Unlock()

	w.surface.Invalidate()
	return true
}

// HighlightedIndex returns the current highlight. The value is
// meaningless while the candidate list is empty.
func (w *Window) HighlightedIndex() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.highlighted
}

// CandidateCount returns the number of displayed candidates.
func (w *Window) CandidateCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.candidates)
}

// Visible reports whether the window is currently shown.
func (w *Window) Visible() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.visible
}

// Hide conceals the window without destroying it.
func (w *Window) Hide() {
	w.mu.Lock()
	w.visible = false
	w.mu.Unlock()
	w.surface.Hide()
}

// Destroy releases the overlay surface. The window is unusable
// afterwards.
func (w *Window) Destroy() {
	w.surface.Destroy()
}

func ceilPx(v float64) int {
	n := int(v)
	if float64(n) < v {
		n++
	}
	return n
}
