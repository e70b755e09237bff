package service

import (
	"fmt"
	"sync"
	"time"

	"challengetracker/internal/models"
)

// OverrideRegister holds the selections made on one public screen. They are
// laid over every freshly polled snapshot shown on that screen until cleared.
type OverrideRegister struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewOverrideRegister creates an empty register
func NewOverrideRegister() *OverrideRegister {
	return &OverrideRegister{values: make(map[string]string)}
}

// Set records a user-chosen value for field
func (o *OverrideRegister) Set(field, value string) error {
	switch field {
	case models.SettingPublicClassID, models.SettingPublicThemeName:
	default:
		return fmt.Errorf("field %q cannot be overridden", field)
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	o.values[field] = value
	return nil
}

// Get returns the override for field
func (o *OverrideRegister) Get(field string) (string, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	v, ok := o.values[field]
	return v, ok
}

// Clear drops the override for field
func (o *OverrideRegister) Clear(field string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.values, field)
}

// ClearAll drops every override
func (o *OverrideRegister) ClearAll() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.values = make(map[string]string)
}

// Apply lays the overrides over state. A theme override is applied only when
// the theme exists and a class override only when the public theme has that class.
func (o *OverrideRegister) Apply(state *models.AppState) {
	o.mu.RLock()
	defer o.mu.RUnlock()

	if name, ok := o.values[models.SettingPublicThemeName]; ok && state.ThemeByName(name) != nil {
		state.PublicThemeName = name
	}
	if classID, ok := o.values[models.SettingPublicClassID]; ok {
		if theme := state.ThemeByName(state.PublicThemeName); theme != nil && theme.Class(classID) != nil {
			state.PublicClassID = classID
		}
	}
}

// DisplayRegistry keeps one OverrideRegister per public display, so a choice
// made on one screen never moves another. Registers idle for longer than ttl
// are dropped.
type DisplayRegistry struct {
	ttl time.Duration
	now func() time.Time

	mu        sync.Mutex
	displays  map[string]*displayOverrides
	lastPrune time.Time
}

type displayOverrides struct {
	register *OverrideRegister
	lastSeen time.Time
}

// NewDisplayRegistry creates an empty registry
func NewDisplayRegistry(ttl time.Duration) *DisplayRegistry {
	return &DisplayRegistry{
		ttl:      ttl,
		now:      time.Now,
		displays: make(map[string]*displayOverrides),
	}
}

// For returns the register of displayID, creating it on first use
func (d *DisplayRegistry) For(displayID string) *OverrideRegister {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	if now.Sub(d.lastPrune) >= d.ttl {
		for id, entry := range d.displays {
			if now.Sub(entry.lastSeen) > d.ttl {
				delete(d.displays, id)
			}
		}
		d.lastPrune = now
	}

	entry, ok := d.displays[displayID]
	if !ok {
		entry = &displayOverrides{register: NewOverrideRegister()}
		d.displays[displayID] = entry
	}
	entry.lastSeen = now
	return entry.register
}

// Len returns the number of displays with a live register
func (d *DisplayRegistry) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.displays)
}
