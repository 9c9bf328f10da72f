//go:build linux

package main

import (
	"log/slog"
	"testing"

	"kolom/internal/compose"
	"kolom/internal/engine"
)

type fakeComposer struct {
	state    compose.State
	calls    []string
	popWords []bool
	selected []int
	keys     []engine.Key
	commits  []rune
}

func (f *fakeComposer) State() compose.State { return f.state }

func (f *fakeComposer) Start() error {
	f.calls = append(f.calls, "start")
	f.state = compose.Composing
	return nil
}

func (f *fakeComposer) Keypress(key engine.Key, mods engine.Modifiers) error {
	f.calls = append(f.calls, "keypress")
	f.keys = append(f.keys, key)
	return nil
}

func (f *fakeComposer) Pop(deleteWord bool) error {
	f.calls = append(f.calls, "pop")
	f.popWords = append(f.popWords, deleteWord)
	return nil
}

func (f *fakeComposer) Commit(appended rune) error {
	f.calls = append(f.calls, "commit")
	f.commits = append(f.commits, appended)
	f.state = compose.Idle
	return nil
}

func (f *fakeComposer) Select(index int, appended rune) error {
	f.calls = append(f.calls, "select")
	f.selected = append(f.selected, index)
	f.state = compose.Idle
	return nil
}

func (f *fakeComposer) Release() error {
	f.calls = append(f.calls, "release")
	f.state = compose.Idle
	return nil
}

func (f *fakeComposer) Abort() error {
	f.calls = append(f.calls, "abort")
	f.state = compose.Idle
	return nil
}

func (f *fakeComposer) Terminated() { f.calls = append(f.calls, "terminated") }
func (f *fakeComposer) Close()      {}

type fakeHighlighter struct {
	visible bool
	nexts   int
	prevs   int
}

func (f *fakeHighlighter) Visible() bool      { return f.visible }
func (f *fakeHighlighter) MoveHighlightNext() { f.nexts++ }
func (f *fakeHighlighter) MoveHighlightPrev() { f.prevs++ }

func newRouterFixture(composing, windowVisible bool) (*ibusEngine, *fakeComposer, *fakeHighlighter) {
	fc := &fakeComposer{}
	if composing {
		fc.state = compose.Composing
	}
	fw := &fakeHighlighter{visible: windowVisible}
	e := &ibusEngine{
		session: fc,
		window:  fw,
		log:     slog.Default(),
	}
	return e, fc, fw
}

func TestBackspaceRouting(t *testing.T) {
	testCases := []struct {
		name         string
		composing    bool
		state        uint32
		wantConsumed bool
		wantPops     []bool
	}{
		{"plain deletes one unit", true, 0, true, []bool{false}},
		{"ctrl deletes whole word", true, ibusControlMask, true, []bool{true}},
		{"idle passes through", false, 0, false, nil},
		{"idle ctrl passes through", false, ibusControlMask, false, nil},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			e, fc, _ := newRouterFixture(tc.composing, tc.composing)

			consumed, derr := e.ProcessKeyEvent(keyBackSpace, 14, tc.state)
			if derr != nil {
				t.Fatalf("ProcessKeyEvent returned D-Bus error: %v", derr)
			}
			if consumed != tc.wantConsumed {
				t.Errorf("consumed = %v, want %v", consumed, tc.wantConsumed)
			}
			if len(fc.popWords) != len(tc.wantPops) {
				t.Fatalf("pop calls = %v, want %v", fc.popWords, tc.wantPops)
			}
			for i, want := range tc.wantPops {
				if fc.popWords[i] != want {
					t.Errorf("pop[%d] deleteWord = %v, want %v", i, fc.popWords[i], want)
				}
			}
			// Backspace must never be treated as a chord flush.
			for _, call := range fc.calls {
				if call == "release" {
					t.Errorf("backspace flushed the composition: calls %v", fc.calls)
				}
			}
		})
	}
}

func TestCtrlChordFlushesAndPassesThrough(t *testing.T) {
	e, fc, _ := newRouterFixture(true, false)

	consumed, _ := e.ProcessKeyEvent('c', 54, ibusControlMask)
	if consumed {
		t.Error("chord was consumed, want pass-through")
	}
	if len(fc.calls) != 1 || fc.calls[0] != "release" {
		t.Errorf("calls = %v, want [release]", fc.calls)
	}
}

func TestLetterStartsComposition(t *testing.T) {
	e, fc, _ := newRouterFixture(false, false)

	consumed, _ := e.ProcessKeyEvent('k', 45, 0)
	if !consumed {
		t.Error("letter not consumed")
	}
	if len(fc.calls) != 2 || fc.calls[0] != "start" || fc.calls[1] != "keypress" {
		t.Fatalf("calls = %v, want [start keypress]", fc.calls)
	}
	if fc.keys[0].Char != 'k' || fc.keys[0].Code != 45+8 {
		t.Errorf("key = %+v, want Char 'k' Code %d", fc.keys[0], 45+8)
	}
}

func TestDigitSelectsWhileWindowVisible(t *testing.T) {
	e, fc, _ := newRouterFixture(true, true)

	consumed, _ := e.ProcessKeyEvent('3', 12, 0)
	if !consumed {
		t.Error("digit not consumed")
	}
	if len(fc.selected) != 1 || fc.selected[0] != 2 {
		t.Errorf("selected = %v, want [2]", fc.selected)
	}
}

func TestSeparatorCommitsWithAppendedRune(t *testing.T) {
	e, fc, _ := newRouterFixture(true, false)

	consumed, _ := e.ProcessKeyEvent(' ', 57, 0)
	if !consumed {
		t.Error("separator not consumed while composing")
	}
	if len(fc.commits) != 1 || fc.commits[0] != ' ' {
		t.Errorf("commits = %v, want [' ']", fc.commits)
	}
}

func TestReleaseEventPassesThrough(t *testing.T) {
	e, fc, _ := newRouterFixture(true, true)

	consumed, _ := e.ProcessKeyEvent('k', 45, ibusReleaseMask)
	if consumed {
		t.Error("key release was consumed")
	}
	if len(fc.calls) != 0 {
		t.Errorf("calls = %v, want none", fc.calls)
	}
}

func TestTabMovesHighlight(t *testing.T) {
	e, _, fw := newRouterFixture(true, true)

	if consumed, _ := e.ProcessKeyEvent(keyTab, 15, 0); !consumed {
		t.Error("tab not consumed with window visible")
	}
	if consumed, _ := e.ProcessKeyEvent(keyTab, 15, ibusShiftMask); !consumed {
		t.Error("shift+tab not consumed with window visible")
	}
	if fw.nexts != 1 || fw.prevs != 1 {
		t.Errorf("nexts=%d prevs=%d, want 1 and 1", fw.nexts, fw.prevs)
	}
}

func TestGraphemeLen(t *testing.T) {
	testCases := []struct {
		text string
		want uint32
	}{
		{"", 0},
		{"ami", 3},
		// Consonant plus vowel sign is one cluster, two runes.
		{"কি", 1},
		{"আমি", 2},
	}

	for _, tc := range testCases {
		if got := graphemeLen(tc.text); got != tc.want {
			t.Errorf("graphemeLen(%q) = %d, want %d", tc.text, got, tc.want)
		}
	}
}
