// Package hoist holds cross-screen state that must survive navigation.
//
// The store is constructed once at the process root and passed by pointer
// into each screen; there is no package-level singleton. Each field has a
// single writing screen, but any screen may read, so access is serialized
// with a mutex and reads hand out copies.
package hoist

import (
	"log/slog"
	"sync"

	"github.com/mediflow/triagecore/internal/models"
)

// Store is the hoisted application state: the current symptom selection, the
// in-memory patient roster and the roster status filter. Lifetime equals
// process lifetime; nothing here is persisted.
type Store struct {
	mu           sync.Mutex
	symptoms     []string
	roster       []models.PatientSummary
	statusFilter models.PatientStatus
}

// NewStore creates an empty hoisted state store.
func NewStore() *Store {
	return &Store{}
}

// AddSymptom appends a symptom to the ordered selection. Duplicates are
// ignored so the selection behaves as an ordered set.
func (s *Store) AddSymptom(symptom string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.symptoms {
		if existing == symptom {
			return
		}
	}
	s.symptoms = append(s.symptoms, symptom)
	slog.Debug("Store symptom added", "symptom", symptom, "count", len(s.symptoms))
}

// RemoveSymptom deletes a symptom from the selection, preserving the order
// of the remaining entries. Unknown symptoms are ignored.
func (s *Store) RemoveSymptom(symptom string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, existing := range s.symptoms {
		if existing == symptom {
			s.symptoms = append(s.symptoms[:i], s.symptoms[i+1:]...)
			slog.Debug("Store symptom removed", "symptom", symptom, "count", len(s.symptoms))
			return
		}
	}
}

// ToggleSymptom adds the symptom if absent and removes it if present,
// returning true when the symptom is selected afterwards.
func (s *Store) ToggleSymptom(symptom string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, existing := range s.symptoms {
		if existing == symptom {
			s.symptoms = append(s.symptoms[:i], s.symptoms[i+1:]...)
			return false
		}
	}
	s.symptoms = append(s.symptoms, symptom)
	return true
}

// ClearSymptoms empties the selection.
func (s *Store) ClearSymptoms() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.symptoms = nil
}

// Symptoms returns a copy of the ordered symptom selection.
func (s *Store) Symptoms() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.symptoms))
	copy(out, s.symptoms)
	return out
}

// SetRoster replaces the patient roster wholesale, as happens after a
// server refresh on the patients screen.
func (s *Store) SetRoster(patients []models.PatientSummary) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.roster = make([]models.PatientSummary, len(patients))
	copy(s.roster, patients)
	slog.Debug("Store roster replaced", "count", len(s.roster))
}

// UpsertPatient inserts or updates a single roster row, matched by ID.
func (s *Store) UpsertPatient(p models.PatientSummary) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, existing := range s.roster {
		if existing.ID == p.ID {
			s.roster[i] = p
			return
		}
	}
	s.roster = append(s.roster, p)
}

// Roster returns a copy of the roster, restricted to the current status
// filter when one is set.
func (s *Store) Roster() []models.PatientSummary {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.PatientSummary, 0, len(s.roster))
	for _, p := range s.roster {
		if s.statusFilter != "" && p.Status != s.statusFilter {
			continue
		}
		out = append(out, p)
	}
	return out
}

// SetStatusFilter restricts Roster to the given status. An empty status or
// an unsupported value clears the filter.
func (s *Store) SetStatusFilter(status models.PatientStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if status == "" || !models.IsValidPatientStatus(status) {
		s.statusFilter = ""
		return
	}
	s.statusFilter = status
}

// StatusFilter returns the active roster filter, empty when unset.
func (s *Store) StatusFilter() models.PatientStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.statusFilter
}
