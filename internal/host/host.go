// Package host defines the bridge between the composing core and the
// text-editing surface that hosts it (an IBus panel, a TSF edit
// session, a test double). The core only ever talks to these
// interfaces; each host glue binary supplies the implementation.
package host

// Point is a screen position in device pixels.
type Point struct {
	X int
	Y int
}

// TextAttribute describes how written text should be displayed.
type TextAttribute int

const (
	// AttrNone writes plain text.
	AttrNone TextAttribute = iota

	// AttrInput marks text as in-progress composition, typically
	// rendered with an underline.
	AttrInput

	// AttrConverted marks text as a converted-but-uncommitted span.
	AttrConverted
)

// Composition is one open composition transaction. All methods are
// fallible: the host document can disappear underneath the IME at any
// time, and callers treat failures as no-ops for the affected sub-step.
type Composition interface {
	// SetText replaces the composition extent with text.
	SetText(text string, attr TextAttribute) error

	// CaretPosition reports the screen position of the composition
	// caret, if the host can provide one.
	CaretPosition() (Point, bool)

	// Close ends the transaction. The composed text stays in the
	// document as written by the last SetText.
	Close() error
}

// Bridge opens composition transactions against the host document.
type Bridge interface {
	OpenComposition() (Composition, error)
}
