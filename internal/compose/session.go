// Package compose implements the composition session: the state
// machine that turns keystrokes into suggestions and suggestions into
// committed text, mediating between the suggestion engine, the host
// document and the candidate window.
//
// A session is either Idle or Composing. While Composing it owns a
// host composition transaction, the current preedit text and the
// engine's latest candidate set; all three are empty exactly when the
// session is Idle.
//
// All session state is owned by a single goroutine. Ordinary
// operations are synchronous request/reply messages to that goroutine,
// which serializes them. The one concurrent entry point is
// Terminated, the host's own composition-termination notification: it
// can be raised nested inside an in-flight operation (erasing the last
// preedit character makes some hosts tear the composition down while
// Pop is still running), so it posts its cleanup with a non-blocking
// send and simply skips when the session is busy. The in-flight
// operation performs the same cleanup anyway.
package compose

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"kolom/internal/engine"
	"kolom/internal/host"
)

// State is the composition session state.
type State int

const (
	// Idle means no composition is open.
	Idle State = iota

	// Composing means a preedit buffer is active and a host
	// composition transaction is open.
	Composing
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Composing:
		return "composing"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

var (
	// ErrClosed is returned by operations on a closed session.
	ErrClosed = errors.New("session closed")

	// ErrNotComposing is returned by operations that need an open
	// composition while the session is Idle.
	ErrNotComposing = errors.New("no composition open")
)

// Window is the slice of the candidate window the session drives.
// *candidate.Window satisfies it; tests substitute recorders.
type Window interface {
	Show(candidates []string)
	Hide()
	Locate(x, y int)
	SetHighlight(index int) bool
	HighlightedIndex() int
	CandidateCount() int
}

// Options configures a Session.
type Options struct {
	// Engine produces candidate sets. Required.
	Engine engine.Engine

	// Bridge opens composition transactions on the host. Required.
	Bridge host.Bridge

	// Window is the candidate window. Required.
	Window Window

	// RestoreSelection re-highlights the engine's previously selected
	// candidate after an undo.
	RestoreSelection bool

	// Logger receives swallowed host and engine failures. Nil uses
	// the process default.
	Logger *slog.Logger
}

// Session is one composition session actor.
type Session struct {
	engine  engine.Engine
	bridge  host.Bridge
	window  Window
	restore bool
	log     *slog.Logger

	reqs      chan request
	done      chan struct{}
	closeOnce sync.Once

	// Owned by the actor goroutine.
	state       State
	preedit     string
	suggestions engine.CandidateSet
	composition host.Composition
}

type request struct {
	fn    func() error
	reply chan error
}

// New starts a session actor. Close releases it.
func New(opts Options) *Session {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	s := &Session{
		engine:  opts.Engine,
		bridge:  opts.Bridge,
		window:  opts.Window,
		restore: opts.RestoreSelection,
		log:     log,
		// Unbuffered on purpose: Terminated's non-blocking send can
		// only land while the actor is parked here, never while it is
		// mid-operation.
		reqs: make(chan request),
		done: make(chan struct{}),
	}
	go s.run()
	return s
}

func (s *Session) run() {
	for {
		select {
		case req := <-s.reqs:
			req.reply <- req.fn()
		case <-s.done:
			return
		}
	}
}

// Close stops the actor. An open composition is not aborted; call
// Abort first if the session may still be Composing.
func (s *Session) Close() {
	s.closeOnce.Do(func() { close(s.done) })
}

func (s *Session) do(fn func() error) error {
	req := request{fn: fn, reply: make(chan error, 1)}
	select {
	case s.reqs <- req:
		return <-req.reply
	case <-s.done:
		return ErrClosed
	}
}

// Start opens a composition transaction and moves the session to
// Composing. If the host can report a caret position the candidate
// window is parked there immediately.
func (s *Session) Start() error {
	return s.do(s.start)
}

// Keypress feeds one keystroke through the engine and updates preedit
// and candidate window from the result.
func (s *Session) Keypress(key engine.Key, mods engine.Modifiers) error {
	return s.do(func() error { return s.keypress(key, mods) })
}

// Pop undoes one unit of input, or a whole word when deleteWord is
// set. An empty result clears the preedit and aborts the session.
func (s *Session) Pop(deleteWord bool) error {
	return s.do(func() error { return s.pop(deleteWord) })
}

// Commit finalizes the current choice: the sole interpretation when
// the set is lonely, the highlighted candidate otherwise. A non-zero
// appended rune is written after the candidate text.
func (s *Session) Commit(appended rune) error {
	return s.do(func() error { return s.commit(appended) })
}

// Select finalizes the candidate at index. On a non-lonely set an
// out-of-range index is a no-op: nothing changes and the window stays
// open.
func (s *Session) Select(index int, appended rune) error {
	return s.do(func() error { return s.selectIndex(index, appended) })
}

// ForceCommit commits the first candidate unconditionally, ignoring
// the highlight. With no suggestions at all it appends ch to the
// preedit and releases that literal text instead.
func (s *Session) ForceCommit(ch rune) error {
	return s.do(func() error { return s.forceCommit(ch) })
}

// Release writes the raw, unconverted preedit into the host document
// and ends composition.
func (s *Session) Release() error {
	return s.do(s.release)
}

// Abort best-effort writes the preedit and collapses the session to
// Idle. It is the sole cancellation primitive and never fails over a
// host write error.
func (s *Session) Abort() error {
	return s.do(s.abort)
}

// Terminated handles the host's asynchronous composition-termination
// notification. When the actor is mid-operation the cleanup is
// skipped rather than queued: the in-flight operation is already
// tearing the composition down, and blocking here would deadlock
// against it.
func (s *Session) Terminated() {
	req := request{fn: s.abort, reply: make(chan error, 1)}
	select {
	case s.reqs <- req:
		<-req.reply
	default:
		s.log.Debug("termination notification skipped, session busy")
	}
}

// State reports the current session state.
func (s *Session) State() State {
	var st State
	s.do(func() error { st = s.state; return nil })
	return st
}

// Preedit reports the current preedit text.
func (s *Session) Preedit() string {
	var p string
	s.do(func() error { p = s.preedit; return nil })
	return p
}

// The transition implementations below run on the actor goroutine.

func (s *Session) start() error {
	if s.state == Composing {
		return nil
	}
	comp, err := s.bridge.OpenComposition()
	if err != nil {
		return fmt.Errorf("open composition: %w", err)
	}
	s.composition = comp
	s.state = Composing
	if pt, ok := s.caretPosition(); ok {
		s.window.Locate(pt.X, pt.Y)
	}
	return nil
}

func (s *Session) keypress(key engine.Key, mods engine.Modifiers) error {
	if s.state != Composing {
		return ErrNotComposing
	}

	highlighted := 0
	if s.window.CandidateCount() > 0 {
		highlighted = s.window.HighlightedIndex()
	}
	sugg, err := s.engine.SuggestionForKey(key, mods, highlighted)
	if err != nil {
		return fmt.Errorf("suggestion for key: %w", err)
	}

	if sugg.IsLonely() {
		s.preedit = sugg.PreeditText(0)
		s.suggestions = sugg
		s.updatePreedit()
		s.window.Hide()
		return nil
	}

	s.preedit = sugg.AuxiliaryText()
	prev := sugg.PreviouslySelectedIndex()
	s.suggestions = sugg
	s.updatePreedit()
	s.updateCandidateWindow()
	if s.restore && prev != 0 {
		s.window.SetHighlight(prev)
	}
	return nil
}

func (s *Session) pop(deleteWord bool) error {
	if s.state != Composing {
		return ErrNotComposing
	}

	sugg, err := s.engine.Backspace(deleteWord)
	if err != nil {
		return fmt.Errorf("backspace: %w", err)
	}

	if sugg.IsEmpty() {
		s.preedit = ""
		return s.abort()
	}

	if sugg.IsLonely() {
		s.preedit = sugg.PreeditText(0)
		s.suggestions = sugg
		s.updatePreedit()
		s.window.Hide()
		return nil
	}

	// Unlike keypress, undo never restores a previous-selection hint.
	s.preedit = sugg.AuxiliaryText()
	s.suggestions = sugg
	s.updatePreedit()
	s.updateCandidateWindow()
	return nil
}

func (s *Session) commit(appended rune) error {
	if s.state != Composing || s.suggestions == nil {
		return ErrNotComposing
	}
	index := 0
	if !s.suggestions.IsLonely() {
		index = s.window.HighlightedIndex()
	}
	return s.selectIndex(index, appended)
}

func (s *Session) selectIndex(index int, appended rune) error {
	if s.state != Composing || s.suggestions == nil {
		return ErrNotComposing
	}
	if !s.suggestions.IsLonely() && (index < 0 || index >= s.suggestions.Len()) {
		// Out of range: leave the window open, change nothing.
		return nil
	}

	text := s.suggestions.PreeditText(index)
	if err := s.engine.CandidateCommitted(index); err != nil {
		s.log.Warn("candidate committed", "index", index, "err", err)
	}
	if appended != 0 {
		text += string(appended)
	}
	s.setText(text)
	return s.endComposition()
}

func (s *Session) forceCommit(ch rune) error {
	if s.state != Composing {
		return ErrNotComposing
	}
	if s.suggestions == nil || s.suggestions.IsEmpty() {
		return s.forceRelease(ch)
	}
	s.setText(s.suggestions.PreeditText(0))
	return s.endComposition()
}

func (s *Session) forceRelease(ch rune) error {
	if ch != 0 {
		s.preedit += string(ch)
	}
	s.setText(s.preedit)
	return s.endComposition()
}

func (s *Session) release() error {
	if s.state != Composing {
		return ErrNotComposing
	}
	s.setText(s.preedit)
	return s.endComposition()
}

func (s *Session) abort() error {
	if s.state != Composing {
		return nil
	}
	// Best effort: abort must never itself fail the caller.
	s.setText(s.preedit)
	return s.endComposition()
}

// endComposition closes the host transaction, tells the engine the
// input session is over, drops all per-episode state and hides the
// candidate window.
func (s *Session) endComposition() error {
	if s.composition != nil {
		if err := s.composition.Close(); err != nil {
			s.log.Warn("close composition", "err", err)
		}
	}
	if err := s.engine.FinishInputSession(); err != nil {
		s.log.Warn("finish input session", "err", err)
	}
	s.composition = nil
	s.preedit = ""
	s.suggestions = nil
	s.window.Hide()
	s.state = Idle
	return nil
}

// setText writes text into the host document as plain committed text.
// Host failures are logged and swallowed.
func (s *Session) setText(text string) {
	if s.composition == nil {
		return
	}
	if err := s.composition.SetText(text, host.AttrNone); err != nil {
		s.log.Warn("set text", "err", err)
	}
}

// updatePreedit pushes the current preedit to the host with the
// in-progress display attribute. Host failures are logged and
// swallowed; the preedit simply stays stale for this step.
func (s *Session) updatePreedit() {
	if s.composition == nil {
		return
	}
	if err := s.composition.SetText(s.preedit, host.AttrInput); err != nil {
		s.log.Warn("update preedit", "err", err)
	}
}

func (s *Session) updateCandidateWindow() {
	if s.suggestions == nil || s.suggestions.IsEmpty() {
		s.window.Hide()
		return
	}
	list := make([]string, s.suggestions.Len())
	for i := range list {
		list[i] = s.suggestions.PreeditText(i)
	}
	s.window.Show(list)
	if pt, ok := s.caretPosition(); ok {
		s.window.Locate(pt.X, pt.Y)
	}
}

// caretPosition asks the host for the composition caret. An
// unavailable or abnormal position skips window repositioning.
func (s *Session) caretPosition() (host.Point, bool) {
	if s.composition == nil {
		return host.Point{}, false
	}
	pt, ok := s.composition.CaretPosition()
	if !ok {
		return host.Point{}, false
	}
	if pt.X <= 0 && pt.Y <= 0 {
		s.log.Debug("abnormal caret position", "x", pt.X, "y", pt.Y)
		return host.Point{}, false
	}
	return pt, true
}
