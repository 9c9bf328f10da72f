// Package render defines the drawing and text-measurement surface the
// candidate window runs on. Implementations own a real window system
// (package giowin); tests substitute fixed-metric stubs.
//
// Surfaces and their factories are confined to the goroutine that
// created them. The candidate window creates its surface lazily and
// destroys it with itself.
package render

import "image/color"

// Font selects a typeface at a device pixel size. The size is already
// DPI-scaled; nothing downstream rescales it.
type Font struct {
	Family string
	SizePx float64
}

// Size is a measured text extent in device pixels.
type Size struct {
	W float64
	H float64
}

// Rect is a rectangle in device pixels, origin top-left.
type Rect struct {
	X float64
	Y float64
	W float64
	H float64
}

// Painter draws one frame. It is only valid inside a redraw callback.
type Painter interface {
	// FillRect fills r with c.
	FillRect(r Rect, c color.NRGBA)

	// DrawText draws s into r, vertically centered, left-aligned.
	DrawText(s string, r Rect, f Font, c color.NRGBA) error
}

// PaintFunc produces one frame. Returning an error abandons the frame;
// the previously painted frame stays visible.
type PaintFunc func(Painter) error

// Surface is one overlay window: borderless, always on top, never
// focused. A surface must only be used from the goroutine that created
// it, except where noted.
type Surface interface {
	// DPIScale is the device pixel ratio captured when the surface
	// was created.
	DPIScale() float64

	// MeasureText measures s at f without drawing it.
	MeasureText(s string, f Font) (Size, error)

	// SetRedraw installs the frame producer consumed by the surface's
	// own redraw notifications.
	SetRedraw(fn PaintFunc)

	// Invalidate schedules a redraw. Safe from any goroutine.
	Invalidate()

	// Position moves the surface so its top-left corner sits at the
	// given screen point. No resize, no focus change.
	Position(x, y int)

	// ResizeAndShow sets the surface size and reveals it.
	ResizeAndShow(w, h int)

	// Hide conceals the surface without destroying it.
	Hide()

	// Destroy releases the surface. No calls are valid afterwards.
	Destroy()
}

// Backend creates overlay surfaces. Creation failure is the one fatal
// error class in the rendering path: without a surface no candidates
// can ever be shown, so it surfaces to the caller instead of being
// swallowed.
type Backend interface {
	CreateOverlaySurface() (Surface, error)
}
