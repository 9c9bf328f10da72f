package candidate

import "kolom/internal/render"

// relayoutLocked measures every label and candidate at the window's
// fixed font sizes and computes fresh geometry for the current list
// and highlight. It returns nil when a measurement fails, in which
// case the caller keeps the previous frame on screen. Callers hold
// w.mu.
func (w *Window) relayoutLocked() *frame {
	font := render.Font{Family: w.family, SizePx: w.fontPx}
	indexFont := render.Font{Family: w.family, SizePx: w.indexFontPx}

	labels := make([]string, len(w.candidates))
	candiWidths := make([]float64, len(w.candidates))
	var indexW, indexH, candiH float64

	for i, candi := range w.candidates {
		labels[i] = indexLabels[i] + w.suffix

		sz, err := w.surface.MeasureText(labels[i], indexFont)
		if err != nil {
			w.log.Warn("measure index label", "err", err)
			return nil
		}
		indexW = max(indexW, sz.W)
		indexH = max(indexH, sz.H)

		sz, err = w.surface.MeasureText(candi, font)
		if err != nil {
			w.log.Warn("measure candidate", "err", err)
			return nil
		}
		candiWidths[i] = sz.W
		candiH = max(candiH, sz.H)
	}

	rowH := max(candiH, indexH)
	labelH := w.px(padTop) + rowH + w.px(padBottom)

	var wndW, wndH float64
	if w.vertical {
		wndH = float64(len(w.candidates)) * labelH
		var maxCandiW float64
		for _, cw := range candiWidths {
			maxCandiW = max(maxCandiW, cw)
		}
		wndW = w.px(clipWidth) + w.px(padLeft) + indexW + w.px(indexGap) + maxCandiW + w.px(padRight)
		wndW = max(wndW, wndH*widthFloorRatio)
	} else {
		wndH = labelH
		wndW = w.px(clipWidth)
		for _, cw := range candiWidths {
			wndW += w.px(padLeft) + indexW + w.px(indexGap) + cw + w.px(padRight)
		}
	}

	return &frame{
		w:           wndW,
		h:           wndH,
		vertical:    w.vertical,
		highlighted: w.highlighted,
		labels:      labels,
		candidates:  append([]string(nil), w.candidates...),
		rowHeight:   rowH,
		labelHeight: labelH,
		indexWidth:  indexW,
		indexHeight: indexH,
		candiHeight: candiH,
		candiWidths: candiWidths,
		highlight:   w.highlightRect(wndW, labelH, indexW, candiWidths),
		font:        font,
		indexFont:   indexFont,
		colors:      w.colors,
		scale:       w.scale,
	}
}

// highlightRect computes the rectangle filled behind the highlighted
// item. Vertical lists span the full content width and slide down with
// the highlight; horizontal rows size the rectangle to exactly the
// highlighted item's content width and slide right past the items
// before it.
func (w *Window) highlightRect(wndW, labelH, indexW float64, candiWidths []float64) render.Rect {
	if len(candiWidths) == 0 {
		return render.Rect{}
	}

	if w.vertical {
		return render.Rect{
			X: w.px(clipWidth),
			Y: float64(w.highlighted) * labelH,
			W: wndW - w.px(clipWidth),
			H: labelH,
		}
	}

	itemW := func(i int) float64 {
		return w.px(padLeft) + indexW + w.px(indexGap) + candiWidths[i] + w.px(padRight)
	}
	x := w.px(clipWidth)
	for i := 0; i < w.highlighted; i++ {
		x += itemW(i)
	}
	return render.Rect{X: x, Y: 0, W: itemW(w.highlighted), H: labelH}
}

// px scales a device-independent layout constant by the DPI capture.
func (w *Window) px(v float64) float64 {
	return v * w.scale
}
