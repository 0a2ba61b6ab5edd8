package state

import (
	"fmt"
	"sync"
	"time"

	"github.com/five82/olhovivo/internal/sptrans"
)

// Snapshot represents the latest vehicle data available to the UI.
type Snapshot struct {
	Line                sptrans.Line
	Tracking            bool
	Vehicles            []sptrans.Vehicle
	HasVehicles         bool // at least one successful poll since Track
	LastUpdated         time.Time
	LastError           error
	ConsecutiveFailures int
}

// IsStale returns true when the last two or more polls failed.
func (s Snapshot) IsStale() bool {
	return s.ConsecutiveFailures >= 2
}

// Store holds the tracked line and its latest vehicle positions.
// The zero value is ready to use.
type Store struct {
	mu       sync.RWMutex
	snapshot Snapshot
}

// Track switches the store to line, discarding data of the previous line.
func (s *Store) Track(line sptrans.Line) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshot = Snapshot{Line: line, Tracking: true}
}

// Untrack stops tracking and clears all data.
func (s *Store) Untrack() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshot = Snapshot{}
}

// Tracked returns the tracked line, if any.
func (s *Store) Tracked() (sptrans.Line, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshot.Line, s.snapshot.Tracking
}

// Update records a poll result for lineCode. Results for a line that is no
// longer tracked are dropped and Update returns false. When err is non-nil
// the previous vehicles are kept and the failure is counted.
func (s *Store) Update(lineCode int, vehicles []sptrans.Vehicle, err error) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.snapshot.Tracking || s.snapshot.Line.Code != lineCode {
		return false
	}

	s.snapshot.LastUpdated = time.Now()
	if err != nil {
		s.snapshot.LastError = err
		s.snapshot.ConsecutiveFailures++
		return true
	}

	s.snapshot.Vehicles = cloneVehicles(vehicles)
	s.snapshot.HasVehicles = true
	s.snapshot.LastError = nil
	s.snapshot.ConsecutiveFailures = 0
	return true
}

// Snapshot returns a copy of the current snapshot.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := s.snapshot
	snap.Vehicles = cloneVehicles(s.snapshot.Vehicles)
	if s.snapshot.LastError != nil {
		snap.LastError = fmt.Errorf("%w", s.snapshot.LastError)
	}
	return snap
}

func cloneVehicles(items []sptrans.Vehicle) []sptrans.Vehicle {
	if len(items) == 0 {
		return nil
	}
	dup := make([]sptrans.Vehicle, len(items))
	copy(dup, items)
	return dup
}
