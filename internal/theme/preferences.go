package theme

import (
	"fmt"

	"github.com/felixgeelhaar/codeburst/internal/storage/local"
)

// Preferences persists the CLI theme choice in the local preference store
type Preferences struct {
	store      *local.Store
	configured *bool
	getenv     func(string) string
}

// NewPreferences creates CLI preferences. configured is the config file
// override; it is used when the store holds no choice yet.
func NewPreferences(store *local.Store, configured *bool, getenv func(string) string) *Preferences {
	return &Preferences{store: store, configured: configured, getenv: getenv}
}

// Stored returns the explicit choice, if any
func (p *Preferences) Stored() (*bool, error) {
	v, err := p.store.GetBool(Key)
	if err != nil {
		return nil, fmt.Errorf("read theme preference: %w", err)
	}
	if v == nil {
		return p.configured, nil
	}
	return v, nil
}

// Dark returns the effective preference. A broken store degrades to the
// system preference.
func (p *Preferences) Dark() bool {
	stored, err := p.Stored()
	if err != nil {
		stored = nil
	}
	return Resolve(stored, TerminalPrefersDark(p.getenv))
}

// Set stores an explicit choice
func (p *Preferences) Set(dark bool) error {
	if err := p.store.Set(Key, dark); err != nil {
		return fmt.Errorf("save theme preference: %w", err)
	}
	return nil
}

// Toggle flips and stores the effective preference
func (p *Preferences) Toggle() (bool, error) {
	dark := !p.Dark()
	return dark, p.Set(dark)
}
