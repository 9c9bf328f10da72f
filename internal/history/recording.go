package history

import (
	"log/slog"
	"time"

	"kolom/internal/engine"
)

// RecordingEngine decorates an engine so that every committed
// candidate is teed into the selection store. All other calls pass
// through untouched. Recording failures are logged and never surface
// to the composing session: a broken history database must not block
// typing.
type RecordingEngine struct {
	inner engine.Engine
	store *Store
	log   *slog.Logger

	// last is the most recent candidate set the inner engine
	// produced, kept so a commit can be recorded with its text.
	last engine.CandidateSet
}

// NewRecordingEngine wraps inner. A nil logger uses the process
// default.
func NewRecordingEngine(inner engine.Engine, store *Store, log *slog.Logger) *RecordingEngine {
	if log == nil {
		log = slog.Default()
	}
	return &RecordingEngine{inner: inner, store: store, log: log}
}

var _ engine.Engine = (*RecordingEngine)(nil)

// SuggestionForKey implements engine.Engine.
func (r *RecordingEngine) SuggestionForKey(key engine.Key, mods engine.Modifiers, highlighted int) (engine.CandidateSet, error) {
	set, err := r.inner.SuggestionForKey(key, mods, highlighted)
	if err == nil {
		r.last = set
	}
	return set, err
}

// Backspace implements engine.Engine.
func (r *RecordingEngine) Backspace(deleteWord bool) (engine.CandidateSet, error) {
	set, err := r.inner.Backspace(deleteWord)
	if err == nil {
		r.last = set
	}
	return set, err
}

// CandidateCommitted implements engine.Engine.
func (r *RecordingEngine) CandidateCommitted(index int) error {
	if r.last != nil {
		sel := &Selection{
			Text:        r.last.PreeditText(index),
			Auxiliary:   r.last.AuxiliaryText(),
			Index:       index,
			CommittedAt: time.Now().UnixNano(),
		}
		if _, err := r.store.Insert(sel); err != nil {
			r.log.Warn("record selection", "err", err)
		}
	}
	return r.inner.CandidateCommitted(index)
}

// FinishInputSession implements engine.Engine.
func (r *RecordingEngine) FinishInputSession() error {
	r.last = nil
	return r.inner.FinishInputSession()
}
