package viz

import (
	"fmt"
	"log"
	"sync"
)

// ChangeYears is the pair of years compared in change detection
type ChangeYears struct {
	YearA int `json:"year1"`
	YearB int `json:"year2"`
}

// Params holds the embedding visualization parameters picked in the UI
type Params struct {
	Year                int      `json:"year"`
	Bands               []string `json:"bands"`
	Min                 float64  `json:"min"`
	Max                 float64  `json:"max"`
	TerrainExaggeration float64  `json:"terrainExaggeration"`
	ShowLabels          bool     `json:"showLabels"`
}

// DefaultParams mirrors the initial state of the control panel
func DefaultParams() Params {
	return Params{
		Year:                MaxYear,
		Bands:               []string{"A01", "A16", "A09"},
		Min:                 -0.3,
		Max:                 0.3,
		TerrainExaggeration: 1.5,
		ShowLabels:          true,
	}
}

// Validate checks the parameters against the dataset
func (p Params) Validate() error {
	if err := ValidateYear(p.Year); err != nil {
		return err
	}
	if err := ValidateBands(p.Bands); err != nil {
		return err
	}
	if p.Min >= p.Max {
		return fmt.Errorf("min (%g) must be less than max (%g)", p.Min, p.Max)
	}
	if p.TerrainExaggeration < 0 || p.TerrainExaggeration > 10 {
		return fmt.Errorf("terrain exaggeration %g out of range 0-10", p.TerrainExaggeration)
	}
	return nil
}

// Snapshot is a consistent copy of the whole visualization state
type Snapshot struct {
	Mode        Mode        `json:"mode"`
	ChangeYears ChangeYears `json:"changeYears"`
	Params      Params      `json:"params"`
}

// State is the application-wide visualization state. The measurement core
// only reads it; the UI layer owns the writes.
type State struct {
	mu          sync.RWMutex
	mode        Mode
	changeYears ChangeYears
	params      Params
}

// NewState starts in embeddings mode with the given defaults
func NewState(years ChangeYears, params Params) *State {
	if years.YearA == 0 {
		years.YearA = DefaultYearA
	}
	if years.YearB == 0 {
		years.YearB = DefaultYearB
	}
	return &State{
		mode:        ModeEmbeddings,
		changeYears: years,
		params:      params,
	}
}

// Mode returns the current mode
func (s *State) Mode() Mode {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.mode
}

// ChangeYears returns the configured comparison years
func (s *State) ChangeYears() ChangeYears {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.changeYears
}

// SetMode switches the visualization mode. Change detection may carry the
// comparison years; they are stored only when both are given.
func (s *State) SetMode(mode Mode, years *ChangeYears) error {
	if mode == ModeChangeDetection && years != nil && years.YearA != 0 && years.YearB != 0 {
		if err := ValidateYear(years.YearA); err != nil {
			return err
		}
		if err := ValidateYear(years.YearB); err != nil {
			return err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.mode = mode
	if mode == ModeChangeDetection && years != nil && years.YearA != 0 && years.YearB != 0 {
		s.changeYears = *years
	}
	log.Printf("[Viz] Mode set to: %s (years %d-%d)", s.mode, s.changeYears.YearA, s.changeYears.YearB)
	return nil
}

// SetChangeYears updates the comparison years without touching the mode
func (s *State) SetChangeYears(years ChangeYears) error {
	if err := ValidateYear(years.YearA); err != nil {
		return err
	}
	if err := ValidateYear(years.YearB); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.changeYears = years
	return nil
}

// SetParams replaces the embedding visualization parameters
func (s *State) SetParams(p Params) error {
	if err := p.Validate(); err != nil {
		return err
	}
	p.Bands = append([]string(nil), p.Bands...)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.params = p
	return nil
}

// Snapshot returns a copy of the state
func (s *State) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	params := s.params
	params.Bands = append([]string(nil), s.params.Bands...)
	return Snapshot{
		Mode:        s.mode,
		ChangeYears: s.changeYears,
		Params:      params,
	}
}
