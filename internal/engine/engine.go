// Package engine defines the contract between the composing core and
// the phonetic suggestion engine, together with a session-bus client
// for engines that run out of process.
//
// The engine is a black box to the rest of kolom: it receives key
// events and answers with ranked candidate sets. All calls are
// synchronous and expected to return in well under a millisecond.
package engine

// Modifiers is a bitmask of modifier keys held during a key event.
type Modifiers uint8

// Modifier keys.
const (
	ModShift Modifiers = 1 << iota
	ModCtrl
	ModAlt
	ModMeta
)

// Has reports whether all given modifiers are set.
func (m Modifiers) Has(mods Modifiers) bool {
	return m&mods == mods
}

// Key is one keystroke as the host delivered it.
type Key struct {
	// Code is the hardware-level key code.
	Code uint16

	// Char is the printable character for the key, or 0 if none.
	Char rune
}

// CandidateSet is one ranked answer from the engine. Sets are immutable
// once returned; the composing session owns the returned value for the
// duration of one composing episode.
type CandidateSet interface {
	// IsLonely reports that exactly one valid interpretation exists
	// and no selection UI is needed. Implies Len() <= 1.
	IsLonely() bool

	// IsEmpty reports that no characters were recognized at all.
	IsEmpty() bool

	// Len is the number of candidates.
	Len() int

	// PreeditText returns the text to show (or commit) for the
	// candidate at index. Out-of-range indexes yield "".
	PreeditText(index int) string

	// AuxiliaryText is the single display string summarizing the
	// ambiguous options, shown as preedit while the window is open.
	AuxiliaryText() string

	// PreviouslySelectedIndex is the entry the engine recommends
	// re-highlighting, or 0.
	PreviouslySelectedIndex() int
}

// Engine produces candidate sets from key events.
type Engine interface {
	// SuggestionForKey feeds one keystroke to the engine. The
	// currently highlighted candidate index (0 if none) travels along
	// so the engine can track what the user is pointing at.
	SuggestionForKey(key Key, mods Modifiers, highlighted int) (CandidateSet, error)

	// Backspace undoes one unit of input, or a whole word.
	Backspace(deleteWord bool) (CandidateSet, error)

	// CandidateCommitted tells the engine which candidate won, for
	// future ranking.
	CandidateCommitted(index int) error

	// FinishInputSession closes the engine's per-composition state.
	FinishInputSession() error
}

// Suggestion is a plain CandidateSet value. The bus client decodes
// engine replies into it; tests script it directly.
type Suggestion struct {
	Candidates []string
	Lonely     bool
	Auxiliary  string
	PrevIndex  int
}

// IsLonely implements CandidateSet.
func (s *Suggestion) IsLonely() bool { return s.Lonely }

// IsEmpty implements CandidateSet.
func (s *Suggestion) IsEmpty() bool { return len(s.Candidates) == 0 }

// Len implements CandidateSet.
func (s *Suggestion) Len() int { return len(s.Candidates) }

// PreeditText implements CandidateSet.
func (s *Suggestion) PreeditText(index int) string {
	if index < 0 || index >= len(s.Candidates) {
		return ""
	}
	return s.Candidates[index]
}

// AuxiliaryText implements CandidateSet.
func (s *Suggestion) AuxiliaryText() string { return s.Auxiliary }

// PreviouslySelectedIndex implements CandidateSet.
func (s *Suggestion) PreviouslySelectedIndex() int { return s.PrevIndex }
