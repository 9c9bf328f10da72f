package candidate

import (
	"kolom/internal/config"
	"kolom/internal/render"
)

// frame is one immutable paint snapshot: everything a repaint needs,
// captured at layout time. The surface's redraw notification consumes
// the current frame; two paints of the same frame produce identical
// geometry.
type frame struct {
	w, h        float64
	vertical    bool
	highlighted int

	labels     []string
	candidates []string

	rowHeight   float64
	labelHeight float64
	indexWidth  float64
	indexHeight float64
	candiHeight float64
	candiWidths []float64
	highlight   render.Rect

	font      render.Font
	indexFont render.Font
	colors    config.Palette
	scale     float64
}

// paint is the surface's redraw callback. It draws the current frame,
// or nothing when no frame has been laid out yet.
func (w *Window) paint(p render.Painter) error {
	w.mu.Lock()
	f := w.frame
	visible := w.visible
	w.mu.Unlock()

	if f == nil || !visible {
		return nil
	}
	return f.paint(p)
}

func (f *frame) paint(p render.Painter) error {
	p.FillRect(render.Rect{X: 0, Y: 0, W: f.w, H: f.h}, f.colors.Background)

	// Clip strip: in a vertical list it rides beside the highlighted
	// row; in a horizontal row it spans the left edge.
	clipRect := render.Rect{X: 0, Y: 0, W: f.px(clipWidth), H: f.labelHeight}
	if f.vertical {
		clipRect.Y = float64(f.highlighted) * f.labelHeight
	}
	p.FillRect(clipRect, f.colors.Clip)

	p.FillRect(f.highlight, f.colors.Highlight)

	indexX := f.px(clipWidth) + f.px(padLeft)
	candiX := indexX + f.indexWidth + f.px(indexGap)
	textY := f.px(padTop)

	for i := range f.candidates {
		if i > 0 {
			if f.vertical {
				textY += f.labelHeight
			} else {
				indexX += f.indexWidth + f.px(indexGap) + f.candiWidths[i-1] + f.px(padLeft) + f.px(padRight)
				candiX = indexX + f.indexWidth + f.px(indexGap)
			}
		}

		indexRect := render.Rect{
			X: indexX,
			Y: textY + (f.rowHeight-f.indexHeight)/2,
			W: f.indexWidth,
			H: f.indexHeight,
		}
		if err := p.DrawText(f.labels[i], indexRect, f.indexFont, f.colors.Index); err != nil {
			return err
		}

		textColor := f.colors.Candidate
		if i == f.highlighted {
			textColor = f.colors.Highlighted
		}
		candiRect := render.Rect{
			X: candiX,
			Y: textY + (f.rowHeight-f.candiHeight)/2,
			W: f.candiWidths[i],
			H: f.candiHeight,
		}
		if err := p.DrawText(f.candidates[i], candiRect, f.font, textColor); err != nil {
			return err
		}
	}

	return nil
}

func (f *frame) px(v float64) float64 {
	return v * f.scale
}
