//go:build linux

package main

import (
	"log/slog"
	"sync"

	"github.com/godbus/dbus/v5"
	"github.com/rivo/uniseg"
	"golang.org/x/text/unicode/norm"

	"kolom/internal/candidate"
	"kolom/internal/compose"
	"kolom/internal/config"
	"kolom/internal/engine"
	"kolom/internal/host"
)

// IBus keyval constants (X11 keysyms).
const (
	keyBackSpace = 0xff08
	keyTab       = 0xff09
	keyReturn    = 0xff0d
	keyEscape    = 0xff1b
	keyLeft      = 0xff51
	keyUp        = 0xff52
	keyRight     = 0xff53
	keyDown      = 0xff54
	keyPageUp    = 0xff55
	keyPageDown  = 0xff56
)

// IBus modifier state bits.
const (
	ibusShiftMask   = 1 << 0
	ibusControlMask = 1 << 2
	ibusMod1Mask    = 1 << 3
	ibusSuperMask   = 1 << 26
	ibusReleaseMask = 1 << 30
)

// composer is the slice of the composing session the key router
// drives. *compose.Session satisfies it.
type composer interface {
	State() compose.State
	Start() error
	Keypress(key engine.Key, mods engine.Modifiers) error
	Pop(deleteWord bool) error
	Commit(appended rune) error
	Select(index int, appended rune) error
	Release() error
	Abort() error
	Terminated()
	Close()
}

// highlighter is the slice of the candidate window the key router
// drives. *candidate.Window satisfies it.
type highlighter interface {
	Visible() bool
	MoveHighlightNext()
	MoveHighlightPrev()
}

// ibusEngine implements the org.freedesktop.IBus.Engine D-Bus
// interface and owns the composing session for one input context.
type ibusEngine struct {
	conn    *dbus.Conn
	session composer
	window  highlighter
	log     *slog.Logger

	mu       sync.Mutex
	caret    host.Point
	hasCaret bool
}

func newIBusEngine(conn *dbus.Conn, suggester engine.Engine, window *candidate.Window, snap *config.Snapshot, log *slog.Logger) *ibusEngine {
	e := &ibusEngine{
		conn:   conn,
		window: window,
		log:    log,
	}
	e.session = compose.New(compose.Options{
		Engine:           suggester,
		Bridge:           e,
		Window:           window,
		RestoreSelection: snap.RestoreSelection,
		Logger:           log,
	})
	return e
}

func (e *ibusEngine) shutdown() {
	e.session.Abort()
	e.session.Close()
}

// OpenComposition implements host.Bridge. Each composing episode maps
// onto one preedit lifecycle in the panel.
func (e *ibusEngine) OpenComposition() (host.Composition, error) {
	return &ibusComposition{engine: e}, nil
}

// ProcessKeyEvent routes one key event. Returning true consumes the
// key; false passes it through to the application.
func (e *ibusEngine) ProcessKeyEvent(keyval, keycode, state uint32) (bool, *dbus.Error) {
	if state&ibusReleaseMask != 0 {
		return false, nil
	}

	composing := e.session.State() == compose.Composing
	ctrl := state&ibusControlMask != 0

	// Backspace routes into the composition before the generic chord
	// flush: with Ctrl held it deletes a whole word from the preedit,
	// it must not fall through and erase committed document text.
	if keyval == keyBackSpace {
		if !composing {
			return false, nil
		}
		e.session.Pop(ctrl)
		return true, nil
	}

	// Other modifier chords are application shortcuts. Flush any
	// pending composition as-is and let the chord through.
	if ctrl || state&ibusMod1Mask != 0 || state&ibusSuperMask != 0 {
		if composing {
			e.session.Release()
		}
		return false, nil
	}

	switch keyval {
	case keyEscape:
		if !composing {
			return false, nil
		}
		e.session.Release()
		return true, nil

	case keyReturn:
		if composing {
			// Commit the choice but let the newline reach the app.
			e.session.Commit(0)
		}
		return false, nil

	case keyTab, keyDown, keyRight:
		if e.window.Visible() {
			if keyval == keyTab && state&ibusShiftMask != 0 {
				e.window.MoveHighlightPrev()
			} else {
				e.window.MoveHighlightNext()
			}
			return true, nil
		}
		return false, nil

	case keyUp, keyLeft:
		if e.window.Visible() {
			e.window.MoveHighlightPrev()
			return true, nil
		}
		return false, nil

	case keyPageUp:
		if e.window.Visible() {
			e.window.MoveHighlightPrev()
			return true, nil
		}
		return false, nil

	case keyPageDown:
		if e.window.Visible() {
			e.window.MoveHighlightNext()
			return true, nil
		}
		return false, nil
	}

	ch := keyvalToRune(keyval)
	if ch == 0 {
		// Non-character key while composing commits what we have.
		if composing {
			e.session.Commit(0)
		}
		return false, nil
	}

	// Digit keys pick from the open candidate window directly.
	if ch >= '1' && ch <= '9' && e.window.Visible() {
		e.session.Select(int(ch-'1'), 0)
		return true, nil
	}

	if isComposable(ch) {
		if !composing {
			if err := e.session.Start(); err != nil {
				e.log.Warn("start composition", "err", err)
				return false, nil
			}
		}
		mods := engine.Modifiers(0)
		if state&ibusShiftMask != 0 {
			mods |= engine.ModShift
		}
		e.session.Keypress(engine.Key{Code: uint16(keycode + 8), Char: ch}, mods)
		return true, nil
	}

	// Separator: commit the current choice with the separator
	// appended, consuming the key.
	if composing {
		e.session.Commit(ch)
		return true, nil
	}
	return false, nil
}

// FocusIn is called when the input context gains focus.
func (e *ibusEngine) FocusIn() *dbus.Error {
	e.log.Debug("focus in")
	return nil
}

// FocusOut aborts any open composition; the preedit written so far
// stays in the document.
func (e *ibusEngine) FocusOut() *dbus.Error {
	e.log.Debug("focus out")
	e.session.Abort()
	return nil
}

// Reset is the host's asynchronous termination notification; it can
// arrive while a key event is still being processed.
func (e *ibusEngine) Reset() *dbus.Error {
	e.session.Terminated()
	return nil
}

// SetCursorLocation remembers where the caret is on screen so the
// candidate window can be parked next to it.
func (e *ibusEngine) SetCursorLocation(x, y, w, h int32) *dbus.Error {
	e.mu.Lock()
	e.caret = host.Point{X: int(x), Y: int(y + h)}
	e.hasCaret = true
	e.mu.Unlock()
	return nil
}

// CursorUp moves the highlight to the previous candidate.
func (e *ibusEngine) CursorUp() *dbus.Error {
	e.window.MoveHighlightPrev()
	return nil
}

// CursorDown moves the highlight to the next candidate.
func (e *ibusEngine) CursorDown() *dbus.Error {
	e.window.MoveHighlightNext()
	return nil
}

// CandidateClicked commits the clicked candidate.
func (e *ibusEngine) CandidateClicked(index, button, state uint32) *dbus.Error {
	e.session.Select(int(index), 0)
	return nil
}

// PageUp and PageDown step the highlight; the window shows all
// candidates on one page.
func (e *ibusEngine) PageUp() *dbus.Error {
	e.window.MoveHighlightPrev()
	return nil
}

func (e *ibusEngine) PageDown() *dbus.Error {
	e.window.MoveHighlightNext()
	return nil
}

// Enable is called when the engine is switched to.
func (e *ibusEngine) Enable() *dbus.Error {
	e.log.Debug("enabled")
	return nil
}

// Disable aborts any open composition when the user switches away.
func (e *ibusEngine) Disable() *dbus.Error {
	e.log.Debug("disabled")
	e.session.Abort()
	return nil
}

// SetContentType informs about the kind of field being edited.
func (e *ibusEngine) SetContentType(purpose, hints uint32) *dbus.Error {
	return nil
}

// SetSurroundingText provides context around the cursor.
func (e *ibusEngine) SetSurroundingText(text string, cursorPos, anchorPos uint32) *dbus.Error {
	return nil
}

func (e *ibusEngine) caretPosition() (host.Point, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.caret, e.hasCaret
}

// ibusComposition writes composition text back to the panel. Preedit
// updates become UpdatePreeditText signals; committed text becomes a
// CommitText signal, normalized to NFC at this one boundary so
// applications always receive canonical Bengali.
type ibusComposition struct {
	engine *ibusEngine
	closed bool
}

func (c *ibusComposition) SetText(text string, attr host.TextAttribute) error {
	if c.closed {
		return nil
	}
	switch attr {
	case host.AttrNone:
		committed := norm.NFC.String(text)
		c.engine.log.Debug("commit", "graphemes", graphemeLen(committed))
		if committed != "" {
			if err := c.engine.conn.Emit(enginePath,
				engineInterface+".CommitText",
				dbus.MakeVariant(committed)); err != nil {
				return err
			}
		}
		return c.engine.conn.Emit(enginePath,
			engineInterface+".UpdatePreeditText",
			dbus.MakeVariant(""), uint32(0), false)

	default:
		return c.engine.conn.Emit(enginePath,
			engineInterface+".UpdatePreeditText",
			dbus.MakeVariant(text), graphemeLen(text), text != "")
	}
}

// graphemeLen counts grapheme clusters, so the preedit cursor lands
// after whole Bengali conjuncts instead of between a consonant and
// its vowel sign the way a rune count would.
func graphemeLen(s string) uint32 {
	return uint32(uniseg.GraphemeClusterCount(s))
}

func (c *ibusComposition) CaretPosition() (host.Point, bool) {
	return c.engine.caretPosition()
}

func (c *ibusComposition) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	return c.engine.conn.Emit(enginePath,
		engineInterface+".UpdatePreeditText",
		dbus.MakeVariant(""), uint32(0), false)
}

// isComposable reports whether ch participates in phonetic
// transliteration rather than acting as a separator.
func isComposable(ch rune) bool {
	switch {
	case ch >= 'a' && ch <= 'z':
		return true
	case ch >= 'A' && ch <= 'Z':
		return true
	case ch == '`' || ch == '\'':
		// Backtick and apostrophe carry phonetic meaning in Avro-style
		// layouts (explicit vowel split, zero-width joiner).
		return true
	default:
		return false
	}
}

// keyvalToRune converts an X11 keysym to a Unicode rune.
func keyvalToRune(keyval uint32) rune {
	if keyval >= 0x20 && keyval <= 0x7e {
		return rune(keyval)
	}
	if keyval >= 0xa0 && keyval <= 0xff {
		return rune(keyval)
	}
	if keyval >= 0x01000000 {
		return rune(keyval - 0x01000000)
	}
	return 0
}
