package profile

import (
	"fmt"
	"sync"
)

// NumSlots is the fixed number of profile bindings.
const NumSlots = 4

// Slots holds the profile bindings; exactly one is active at a time.
// Switching the active slot is what atomically swaps the running
// profile in the scheduler.
type Slots struct {
	mu       sync.RWMutex
	profiles [NumSlots]*Profile
	active   int
}

// NewSlots binds every slot to def.
func NewSlots(def *Profile) *Slots {
	s := &Slots{}
	for i := range s.profiles {
		s.profiles[i] = def
	}
	return s
}

// Active returns the active slot index and its profile.
func (s *Slots) Active() (int, *Profile) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.active, s.profiles[s.active]
}

// Get returns the profile bound to slot i.
func (s *Slots) Get(i int) (*Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i < 0 || i >= NumSlots {
		return nil, fmt.Errorf("slot index %d out of range", i)
	}
	return s.profiles[i], nil
}

// Assign binds profile p to slot i without activating it.
func (s *Slots) Assign(i int, p *Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i < 0 || i >= NumSlots {
		return fmt.Errorf("slot index %d out of range", i)
	}
	s.profiles[i] = p
	return nil
}

// SetActive marks slot i active and returns its profile.
func (s *Slots) SetActive(i int) (*Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i < 0 || i >= NumSlots {
		return nil, fmt.Errorf("slot index %d out of range", i)
	}
	s.active = i
	return s.profiles[i], nil
}

// Names lists the bound profile names in slot order.
func (s *Slots) Names() [NumSlots]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out [NumSlots]string
	for i, p := range s.profiles {
		if p != nil {
			out[i] = p.Name
		}
	}
	return out
}
