// Package theme models the client-side theme state machine and generates the
// scripts that run it in the browser. The Go model is the single source of
// truth for the transition rules; the generated scripts mirror it exactly,
// and the tests here pin the semantics the scripts must follow.
package theme

import (
	"git.home.luguber.info/inful/themekit/internal/ferrors"
)

// Mode is the visible theme state.
type Mode string

const (
	ModeLight Mode = "light"
	ModeDark  Mode = "dark"
)

// PreferenceKey is the storage key for the persisted theme preference. The
// stored value is the bare string "light" or "dark"; absence means "follow
// system".
const PreferenceKey = "themekit-theme"

// Msg is a user interaction handled by the runtime.
type Msg interface{ isMsg() }

// ToggleTheme flips light/dark and persists the result.
type ToggleTheme struct{}

// ToggleNav flips the navigation drawer. Never persisted.
type ToggleNav struct{}

func (ToggleTheme) isMsg() {}
func (ToggleNav) isMsg()   {}

// Runtime is the owned state object behind all theme and UI toggles. All
// reads go through accessors and all writes go through Update, which also
// performs persistence, so no handler ever touches shared state directly.
type Runtime struct {
	mode    Mode
	navOpen bool
	store   PreferenceStore
}

// NewRuntime resolves the initial mode: persisted preference first, the
// system preference otherwise. The resolution happens before anything is
// painted, which is what prevents a flash of the wrong theme.
func NewRuntime(store PreferenceStore, systemDark bool) *Runtime {
	r := &Runtime{store: store, mode: ModeLight}
	if systemDark {
		r.mode = ModeDark
	}
	if store != nil {
		if stored, ok := store.Load(); ok {
			if m, err := ParseMode(stored); err == nil {
				r.mode = m
			}
		}
	}
	return r
}

// ParseMode validates a persisted preference string.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeLight, ModeDark:
		return Mode(s), nil
	}
	return "", ferrors.ValidationError("unknown theme mode: " + s).Build()
}

// Mode returns the current visible theme.
func (r *Runtime) Mode() Mode {
	return r.mode
}

// NavOpen returns whether the navigation drawer is open.
func (r *Runtime) NavOpen() bool {
	return r.navOpen
}

// Update applies one message. Theme toggles persist synchronously before
// returning, so a second toggle can never observe a half-applied state. A
// failed persistence write is swallowed: the in-memory state still flips and
// the preference simply does not survive the page view.
func (r *Runtime) Update(msg Msg) {
	switch msg.(type) {
	case ToggleTheme:
		if r.mode == ModeLight {
			r.mode = ModeDark
		} else {
			r.mode = ModeLight
		}
		if r.store != nil {
			_ = r.store.Save(string(r.mode))
		}
	case ToggleNav:
		r.navOpen = !r.navOpen
	}
}
