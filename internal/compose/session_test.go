package compose

import (
	"errors"
	"testing"
	"time"

	"kolom/internal/engine"
	"kolom/internal/host"
)

// fakeEngine serves scripted candidate sets and records calls.
type fakeEngine struct {
	keyResults  []*engine.Suggestion
	backResults []*engine.Suggestion

	committed []int
	finished  int

	// backspaceEntered/backspaceRelease let a test hold Backspace
	// open to simulate an in-flight operation.
	backspaceEntered chan struct{}
	backspaceRelease chan struct{}
}

func (e *fakeEngine) SuggestionForKey(key engine.Key, mods engine.Modifiers, highlighted int) (engine.CandidateSet, error) {
	if len(e.keyResults) == 0 {
		return nil, errors.New("no scripted result")
	}
	r := e.keyResults[0]
	e.keyResults = e.keyResults[1:]
	return r, nil
}

func (e *fakeEngine) Backspace(deleteWord bool) (engine.CandidateSet, error) {
	if e.backspaceEntered != nil {
		e.backspaceEntered <- struct{}{}
		<-e.backspaceRelease
	}
	if len(e.backResults) == 0 {
		return nil, errors.New("no scripted result")
	}
	r := e.backResults[0]
	e.backResults = e.backResults[1:]
	return r, nil
}

func (e *fakeEngine) CandidateCommitted(index int) error {
	e.committed = append(e.committed, index)
	return nil
}

func (e *fakeEngine) FinishInputSession() error {
	e.finished++
	return nil
}

// fakeComposition records host writes.
type fakeComposition struct {
	texts      []string
	attrs      []host.TextAttribute
	caret      host.Point
	caretOK    bool
	closed     int
	setTextErr error
	onClose    func()
}

func (c *fakeComposition) SetText(text string, attr host.TextAttribute) error {
	if c.setTextErr != nil {
		return c.setTextErr
	}
	c.texts = append(c.texts, text)
	c.attrs = append(c.attrs, attr)
	return nil
}

func (c *fakeComposition) CaretPosition() (host.Point, bool) {
	return c.caret, c.caretOK
}

func (c *fakeComposition) Close() error {
	c.closed++
	if c.onClose != nil {
		c.onClose()
	}
	return nil
}

type fakeBridge struct {
	comp    *fakeComposition
	openErr error
}

func (b *fakeBridge) OpenComposition() (host.Composition, error) {
	if b.openErr != nil {
		return nil, b.openErr
	}
	return b.comp, nil
}

// fakeWindow records window calls.
type fakeWindow struct {
	candidates  []string
	highlighted int
	visible     bool
	locates     [][2]int
	highlights  []int
}

func (w *fakeWindow) Show(candidates []string) {
	w.candidates = append([]string(nil), candidates...)
	w.highlighted = 0
	w.visible = true
}

func (w *fakeWindow) Hide() { w.visible = false }

func (w *fakeWindow) Locate(x, y int) { w.locates = append(w.locates, [2]int{x, y}) }

func (w *fakeWindow) SetHighlight(index int) bool {
	if index < 0 || index >= len(w.candidates) {
		return false
	}
	w.highlighted = index
	w.highlights = append(w.highlights, index)
	return true
}

func (w *fakeWindow) HighlightedIndex() int { return w.highlighted }
func (w *fakeWindow) CandidateCount() int   { return len(w.candidates) }

type fixture struct {
	session *Session
	engine  *fakeEngine
	comp    *fakeComposition
	window  *fakeWindow
}

func newFixture(t *testing.T, restore bool) *fixture {
	t.Helper()
	eng := &fakeEngine{}
	comp := &fakeComposition{}
	win := &fakeWindow{}
	s := New(Options{
		Engine:           eng,
		Bridge:           &fakeBridge{comp: comp},
		Window:           win,
		RestoreSelection: restore,
	})
	t.Cleanup(s.Close)
	return &fixture{session: s, engine: eng, comp: comp, window: win}
}

func lonely(text string) *engine.Suggestion {
	return &engine.Suggestion{Candidates: []string{text}, Lonely: true, Auxiliary: text}
}

func multi(aux string, prev int, candidates ...string) *engine.Suggestion {
	return &engine.Suggestion{Candidates: candidates, Auxiliary: aux, PrevIndex: prev}
}

func TestStartOpensCompositionAndLocates(t *testing.T) {
	f := newFixture(t, false)
	f.comp.caret = host.Point{X: 40, Y: 60}
	f.comp.caretOK = true

	if err := f.session.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if f.session.State() != Composing {
		t.Errorf("state = %v, want composing", f.session.State())
	}
	if len(f.window.locates) != 1 || f.window.locates[0] != [2]int{40, 60} {
		t.Errorf("locates = %v, want one at caret", f.window.locates)
	}
}

func TestStartWithoutCaretSkipsLocate(t *testing.T) {
	f := newFixture(t, false)

	if err := f.session.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if len(f.window.locates) != 0 {
		t.Errorf("locates = %v, want none", f.window.locates)
	}
}

func TestKeypressLonelyHidesWindow(t *testing.T) {
	f := newFixture(t, false)
	f.session.Start()
	f.engine.keyResults = []*engine.Suggestion{lonely("আমি")}

	if err := f.session.Keypress(engine.Key{Char: 'a'}, 0); err != nil {
		t.Fatalf("Keypress: %v", err)
	}
	if got := f.session.Preedit(); got != "আমি" {
		t.Errorf("preedit = %q, want the sole interpretation", got)
	}
	if f.window.visible {
		t.Error("candidate window should stay hidden for a lonely set")
	}
	if len(f.comp.texts) != 1 || f.comp.attrs[0] != host.AttrInput {
		t.Errorf("preedit write = %v %v, want one AttrInput write", f.comp.texts, f.comp.attrs)
	}
}

func TestKeypressMultiShowsWindow(t *testing.T) {
	f := newFixture(t, false)
	f.session.Start()
	f.engine.keyResults = []*engine.Suggestion{multi("ami", 0, "ami", "aami", "amii")}

	if err := f.session.Keypress(engine.Key{Char: 'i'}, 0); err != nil {
		t.Fatalf("Keypress: %v", err)
	}
	if got := f.session.Preedit(); got != "ami" {
		t.Errorf("preedit = %q, want auxiliary text", got)
	}
	if !f.window.visible {
		t.Error("candidate window should be shown")
	}
	if len(f.window.candidates) != 3 {
		t.Errorf("window got %d candidates, want 3", len(f.window.candidates))
	}
}

func TestKeypressRestoresPreviousSelection(t *testing.T) {
	f := newFixture(t, true)
	f.session.Start()
	f.engine.keyResults = []*engine.Suggestion{multi("ami", 2, "ami", "aami", "amii")}

	f.session.Keypress(engine.Key{Char: 'i'}, 0)
	if f.window.highlighted != 2 {
		t.Errorf("highlight = %d, want restored index 2", f.window.highlighted)
	}
}

func TestKeypressRestoreDisabled(t *testing.T) {
	f := newFixture(t, false)
	f.session.Start()
	f.engine.keyResults = []*engine.Suggestion{multi("ami", 2, "ami", "aami", "amii")}

	f.session.Keypress(engine.Key{Char: 'i'}, 0)
	if f.window.highlighted != 0 {
		t.Errorf("highlight = %d, want 0 with restore disabled", f.window.highlighted)
	}
}

func TestPopEmptyAborts(t *testing.T) {
	f := newFixture(t, false)
	f.session.Start()
	f.engine.keyResults = []*engine.Suggestion{multi("ami", 0, "ami", "aami")}
	f.session.Keypress(engine.Key{Char: 'i'}, 0)

	f.engine.backResults = []*engine.Suggestion{{}}
	if err := f.session.Pop(false); err != nil {
		t.Fatalf("Pop: %v", err)
	}

	if f.session.State() != Idle {
		t.Errorf("state = %v, want idle after empty backspace", f.session.State())
	}
	if f.session.Preedit() != "" {
		t.Errorf("preedit = %q, want empty", f.session.Preedit())
	}
	if f.window.visible {
		t.Error("window should be hidden")
	}
	if f.engine.finished != 1 {
		t.Errorf("finished = %d, want 1", f.engine.finished)
	}
}

func TestPopNeverRestoresSelectionHint(t *testing.T) {
	f := newFixture(t, true)
	f.session.Start()
	f.engine.keyResults = []*engine.Suggestion{multi("ami", 0, "ami", "aami")}
	f.session.Keypress(engine.Key{Char: 'i'}, 0)

	f.engine.backResults = []*engine.Suggestion{multi("am", 1, "am", "aam")}
	f.session.Pop(false)

	if len(f.window.highlights) != 0 {
		t.Errorf("pop restored a selection hint: %v", f.window.highlights)
	}
}

func TestSelectOutOfRangeIsNoOp(t *testing.T) {
	f := newFixture(t, false)
	f.session.Start()
	f.engine.keyResults = []*engine.Suggestion{multi("ami", 0, "ami", "aami")}
	f.session.Keypress(engine.Key{Char: 'i'}, 0)
	preedit := f.session.Preedit()

	if err := f.session.Select(5, 0); err != nil {
		t.Fatalf("Select: %v", err)
	}

	if f.session.State() != Composing {
		t.Error("out-of-range select must not end composition")
	}
	if f.session.Preedit() != preedit {
		t.Error("out-of-range select must not touch preedit")
	}
	if !f.window.visible {
		t.Error("out-of-range select must leave the window open")
	}
	if len(f.engine.committed) != 0 {
		t.Error("out-of-range select must not reach the engine")
	}
}

func TestSelectCommitsCandidate(t *testing.T) {
	f := newFixture(t, false)
	f.session.Start()
	f.engine.keyResults = []*engine.Suggestion{multi("ami", 0, "ami", "aami", "amii")}
	f.session.Keypress(engine.Key{Char: 'i'}, 0)

	if err := f.session.Select(1, ' '); err != nil {
		t.Fatalf("Select: %v", err)
	}

	if f.session.State() != Idle {
		t.Errorf("state = %v, want idle", f.session.State())
	}
	last := f.comp.texts[len(f.comp.texts)-1]
	if last != "aami " {
		t.Errorf("committed text = %q, want %q", last, "aami ")
	}
	if f.comp.attrs[len(f.comp.attrs)-1] != host.AttrNone {
		t.Error("final write should be plain text")
	}
	if len(f.engine.committed) != 1 || f.engine.committed[0] != 1 {
		t.Errorf("committed = %v, want [1]", f.engine.committed)
	}
	if f.comp.closed != 1 {
		t.Errorf("composition closed %d times, want 1", f.comp.closed)
	}
}

func TestCommitUsesHighlightedIndex(t *testing.T) {
	f := newFixture(t, false)
	f.session.Start()
	f.engine.keyResults = []*engine.Suggestion{multi("ami", 0, "ami", "aami", "amii")}
	f.session.Keypress(engine.Key{Char: 'i'}, 0)
	f.window.SetHighlight(2)

	if err := f.session.Commit(0); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	last := f.comp.texts[len(f.comp.texts)-1]
	if last != "amii" {
		t.Errorf("committed text = %q, want highlighted candidate", last)
	}
}

func TestCommitLonelyIgnoresHighlight(t *testing.T) {
	f := newFixture(t, false)
	f.session.Start()
	f.engine.keyResults = []*engine.Suggestion{lonely("আমি")}
	f.session.Keypress(engine.Key{Char: 'a'}, 0)
	f.window.candidates = []string{"stale", "stale2"}
	f.window.highlighted = 1

	if err := f.session.Commit(0); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	last := f.comp.texts[len(f.comp.texts)-1]
	if last != "আমি" {
		t.Errorf("committed text = %q, want the lonely interpretation", last)
	}
}

func TestForceCommitWithSuggestions(t *testing.T) {
	f := newFixture(t, false)
	f.session.Start()
	f.engine.keyResults = []*engine.Suggestion{multi("ami", 0, "ami", "aami")}
	f.session.Keypress(engine.Key{Char: 'i'}, 0)
	f.window.SetHighlight(1)

	if err := f.session.ForceCommit('!'); err != nil {
		t.Fatalf("ForceCommit: %v", err)
	}
	last := f.comp.texts[len(f.comp.texts)-1]
	if last != "ami" {
		t.Errorf("force commit wrote %q, want first candidate regardless of highlight", last)
	}
	if f.session.State() != Idle {
		t.Error("force commit must end composition")
	}
}

func TestForceCommitWithoutSuggestionsReleasesLiteral(t *testing.T) {
	f := newFixture(t, false)
	f.session.Start()

	if err := f.session.ForceCommit('x'); err != nil {
		t.Fatalf("ForceCommit: %v", err)
	}
	last := f.comp.texts[len(f.comp.texts)-1]
	if last != "x" {
		t.Errorf("force release wrote %q, want literal char", last)
	}
	if f.session.State() != Idle {
		t.Error("force release must end composition")
	}
}

func TestReleaseWritesRawPreedit(t *testing.T) {
	f := newFixture(t, false)
	f.session.Start()
	f.engine.keyResults = []*engine.Suggestion{multi("kkhgh", 0, "kkhgh", "kkh")}
	f.session.Keypress(engine.Key{Char: 'k'}, 0)

	if err := f.session.Release(); err != nil {
		t.Fatalf("Release: %v", err)
	}
	last := f.comp.texts[len(f.comp.texts)-1]
	if last != "kkhgh" {
		t.Errorf("release wrote %q, want raw preedit", last)
	}
	if f.session.State() != Idle {
		t.Error("release must end composition")
	}
}

func TestAbortAlwaysLandsIdle(t *testing.T) {
	f := newFixture(t, false)
	f.session.Start()

	// Empty preedit, no suggestions.
	if err := f.session.Abort(); err != nil {
		t.Fatalf("Abort: %v", err)
	}
	if f.session.State() != Idle {
		t.Errorf("state = %v, want idle", f.session.State())
	}

	// Abort while already idle stays idle and does not error.
	if err := f.session.Abort(); err != nil {
		t.Fatalf("Abort while idle: %v", err)
	}
	if f.session.State() != Idle {
		t.Error("second abort left idle state")
	}
}

func TestAbortSwallowsHostWriteFailure(t *testing.T) {
	f := newFixture(t, false)
	f.session.Start()
	f.comp.setTextErr = errors.New("host gone")

	if err := f.session.Abort(); err != nil {
		t.Fatalf("Abort must swallow write failures, got %v", err)
	}
	if f.session.State() != Idle {
		t.Error("abort with failing host must still land idle")
	}
}

func TestOperationsWhileIdle(t *testing.T) {
	f := newFixture(t, false)

	if err := f.session.Keypress(engine.Key{Char: 'a'}, 0); !errors.Is(err, ErrNotComposing) {
		t.Errorf("Keypress while idle = %v, want ErrNotComposing", err)
	}
	if err := f.session.Pop(false); !errors.Is(err, ErrNotComposing) {
		t.Errorf("Pop while idle = %v, want ErrNotComposing", err)
	}
	if err := f.session.Commit(0); !errors.Is(err, ErrNotComposing) {
		t.Errorf("Commit while idle = %v, want ErrNotComposing", err)
	}
}

func TestTerminatedWhileParkedAborts(t *testing.T) {
	f := newFixture(t, false)
	f.session.Start()

	f.session.Terminated()
	if f.session.State() != Idle {
		t.Errorf("state = %v, want idle after termination", f.session.State())
	}
}

func TestTerminatedDuringInFlightOperationIsSkipped(t *testing.T) {
	f := newFixture(t, false)
	f.session.Start()
	f.engine.backspaceEntered = make(chan struct{})
	f.engine.backspaceRelease = make(chan struct{})
	f.engine.backResults = []*engine.Suggestion{{}}

	popDone := make(chan error, 1)
	go func() { popDone <- f.session.Pop(false) }()

	// Wait until Pop is inside the engine call, then deliver the
	// termination notification. It must return without blocking.
	<-f.engine.backspaceEntered
	terminated := make(chan struct{})
	go func() {
		f.session.Terminated()
		close(terminated)
	}()

	select {
	case <-terminated:
	case <-time.After(2 * time.Second):
		t.Fatal("Terminated blocked against the in-flight operation")
	}

	close(f.engine.backspaceRelease)
	select {
	case err := <-popDone:
		if err != nil {
			t.Fatalf("Pop: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Pop never completed")
	}

	if f.session.State() != Idle {
		t.Errorf("state = %v, want idle", f.session.State())
	}
	if f.engine.finished != 1 {
		t.Errorf("finished = %d, want exactly one teardown", f.engine.finished)
	}
}

func TestTerminatedNestedInsideHostCloseIsSkipped(t *testing.T) {
	f := newFixture(t, false)
	// The host raises its termination notification from inside the
	// close call of the teardown the session itself initiated.
	f.comp.onClose = func() { f.session.Terminated() }
	f.session.Start()

	done := make(chan error, 1)
	go func() { done <- f.session.Abort() }()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Abort: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("nested termination deadlocked the session")
	}

	if f.session.State() != Idle {
		t.Errorf("state = %v, want idle", f.session.State())
	}
	if f.comp.closed != 1 {
		t.Errorf("closed = %d, want 1", f.comp.closed)
	}
}

func TestClosedSession(t *testing.T) {
	f := newFixture(t, false)
	f.session.Close()

	if err := f.session.Start(); !errors.Is(err, ErrClosed) {
		t.Errorf("Start on closed session = %v, want ErrClosed", err)
	}
}
