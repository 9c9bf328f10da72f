// Package giowin implements the rendering backend on gio. Each
// overlay surface is an undecorated gio window with its own event
// loop goroutine; text measurement goes through gio's shaper so the
// numbers the layout sees match the glyphs the frame draws.
//
// Window positioning is best effort: not every compositor lets a
// client place a toplevel, and on those the overlay appears where the
// window manager puts it. Everything else in the surface contract is
// honored.
package giowin

import (
	"image"
	"image/color"
	"log/slog"
	"sync"

	"gioui.org/app"
	"gioui.org/font"
	"gioui.org/font/gofont"
	"gioui.org/io/system"
	"gioui.org/layout"
	"gioui.org/op"
	"gioui.org/op/clip"
	"gioui.org/op/paint"
	"gioui.org/text"
	"gioui.org/unit"
	"gioui.org/widget"
	"golang.org/x/image/math/fixed"

	"kolom/internal/render"
)

// Options configures a Backend.
type Options struct {
	// Title names the overlay windows, mostly for window-manager
	// debugging tools.
	Title string

	// Logger receives frame failures. Nil uses the process default.
	Logger *slog.Logger
}

// Backend creates gio overlay surfaces.
type Backend struct {
	title string
	log   *slog.Logger
}

// New returns a gio backend.
func New(opts Options) *Backend {
	if opts.Title == "" {
		opts.Title = "kolom"
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Backend{title: opts.Title, log: opts.Logger}
}

// CreateOverlaySurface allocates a window and blocks until its first
// frame has delivered the display metric, so the DPI scale is fixed
// from the moment the surface is handed out.
func (b *Backend) CreateOverlaySurface() (render.Surface, error) {
	s := &surface{
		log:    b.log,
		shaper: text.NewShaper(text.WithCollection(gofont.Collection())),
		scale:  1,
	}
	s.win = new(app.Window)
	s.win.Option(
		app.Title(b.title),
		app.Decorated(false),
		app.Size(unit.Dp(1), unit.Dp(1)),
	)

	ready := make(chan struct{})
	go s.loop(ready)
	<-ready
	return s, nil
}

type surface struct {
	win *app.Window
	log *slog.Logger

	// shaper is not safe for concurrent use; measurement calls and
	// frame drawing share it under shaperMu.
	shaperMu sync.Mutex
	shaper   *text.Shaper

	mu      sync.Mutex
	redraw  render.PaintFunc
	scale   float64
	visible bool
	pos     image.Point
}

func (s *surface) loop(ready chan struct{}) {
	var ops op.Ops
	first := true
	for {
		switch e := s.win.Event().(type) {
		case app.DestroyEvent:
			if e.Err != nil {
				s.log.Warn("overlay surface destroyed", "err", e.Err)
			}
			return
		case app.FrameEvent:
			if first {
				s.mu.Lock()
				s.scale = float64(e.Metric.PxPerDp)
				s.mu.Unlock()
				close(ready)
				first = false
			}
			gtx := app.NewContext(&ops, e)
			s.paintFrame(gtx)
			e.Frame(gtx.Ops)
		}
	}
}

// paintFrame runs the installed frame producer. A failed producer
// abandons the rest of the frame's draw operations and is logged;
// the composition state machine never sees rendering errors.
func (s *surface) paintFrame(gtx layout.Context) {
	s.mu.Lock()
	redraw := s.redraw
	visible := s.visible
	s.mu.Unlock()

	if redraw == nil || !visible {
		return
	}
	if err := redraw(&painter{gtx: gtx, surface: s}); err != nil {
		s.log.Warn("repaint abandoned", "err", err)
	}
}

// DPIScale implements render.Surface.
func (s *surface) DPIScale() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scale
}

// MeasureText implements render.Surface. Width is the summed glyph
// advance, height the line's ascent plus descent.
func (s *surface) MeasureText(str string, f render.Font) (render.Size, error) {
	s.shaperMu.Lock()
	defer s.shaperMu.Unlock()

	s.shaper.LayoutString(text.Parameters{
		Font:     font.Font{Typeface: font.Typeface(f.Family)},
		PxPerEm:  fixed.Int26_6(f.SizePx * 64),
		MaxWidth: 1 << 20,
	}, str)

	var width, ascent, descent fixed.Int26_6
	for {
		g, ok := s.shaper.NextGlyph()
		if !ok {
			break
		}
		width += g.Advance
		if g.Ascent > ascent {
			ascent = g.Ascent
		}
		if g.Descent > descent {
			descent = g.Descent
		}
	}

	return render.Size{
		W: float64(width) / 64,
		H: float64(ascent+descent) / 64,
	}, nil
}

// SetRedraw implements render.Surface.
func (s *surface) SetRedraw(fn render.PaintFunc) {
	s.mu.Lock()
	s.redraw = fn
	s.mu.Unlock()
}

// Invalidate implements render.Surface.
func (s *surface) Invalidate() {
	s.win.Invalidate()
}

// Position implements render.Surface. See the package comment for the
// compositor caveat.
func (s *surface) Position(x, y int) {
	s.mu.Lock()
	s.pos = image.Pt(x, y)
	s.mu.Unlock()
}

// ResizeAndShow implements render.Surface.
func (s *surface) ResizeAndShow(w, h int) {
	s.mu.Lock()
	s.visible = true
	scale := s.scale
	s.mu.Unlock()

	wd := unit.Dp(float64(w) / scale)
	hd := unit.Dp(float64(h) / scale)
	s.win.Option(
		app.Windowed.Option(),
		app.Size(wd, hd),
		app.MinSize(wd, hd),
		app.MaxSize(wd, hd),
	)
	s.win.Invalidate()
}

// Hide implements render.Surface.
func (s *surface) Hide() {
	s.mu.Lock()
	s.visible = false
	s.mu.Unlock()
	s.win.Option(app.Minimized.Option())
}

// Destroy implements render.Surface.
func (s *surface) Destroy() {
	s.win.Perform(system.ActionClose)
}

// painter draws into one frame.
type painter struct {
	gtx     layout.Context
	surface *surface
}

func (p *painter) FillRect(r render.Rect, c color.NRGBA) {
	rect := clip.Rect{
		Min: image.Pt(int(r.X), int(r.Y)),
		Max: image.Pt(int(r.X+r.W+0.5), int(r.Y+r.H+0.5)),
	}
	paint.FillShape(p.gtx.Ops, c, rect.Op())
}

func (p *painter) DrawText(str string, r render.Rect, f render.Font, c color.NRGBA) error {
	defer op.Offset(image.Pt(int(r.X), int(r.Y))).Push(p.gtx.Ops).Pop()

	macro := op.Record(p.gtx.Ops)
	paint.ColorOp{Color: c}.Add(p.gtx.Ops)
	material := macro.Stop()

	gtx := p.gtx
	gtx.Constraints = layout.Exact(image.Pt(int(r.W+1), int(r.H+1)))
	sizeSp := unit.Sp(float32(f.SizePx) / p.gtx.Metric.PxPerSp)

	p.surface.shaperMu.Lock()
	widget.Label{MaxLines: 1}.Layout(gtx, p.surface.shaper,
		font.Font{Typeface: font.Typeface(f.Family)}, sizeSp, str, material)
	p.surface.shaperMu.Unlock()
	return nil
}
