package viz

import (
	"fmt"
	"regexp"
	"strings"
)

// Mode is the visualization mode the map is currently showing
type Mode string

const (
	ModeEmbeddings      Mode = "embeddings"
	ModeChangeDetection Mode = "change"
	ModeClustering      Mode = "clustering"
)

// ParseMode accepts the mode identifiers used by the front end
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case ModeEmbeddings:
		return ModeEmbeddings, nil
	case ModeChangeDetection, "change_detection", "changedetection":
		return ModeChangeDetection, nil
	case ModeClustering:
		return ModeClustering, nil
	}
	return "", fmt.Errorf("unknown visualization mode: %q", s)
}

// Label returns the name shown in the UI
func (m Mode) Label() string {
	switch m {
	case ModeEmbeddings:
		return "Embeddings"
	case ModeChangeDetection:
		return "Change Detection"
	case ModeClustering:
		return "Clustering"
	}
	return string(m)
}

// AlphaEarth annual embedding dataset constants
const (
	MinYear  = 2017
	MaxYear  = 2024
	NumBands = 64

	DefaultYearA = 2017
	DefaultYearB = 2024
)

var bandPattern = regexp.MustCompile(`^A(0[1-9]|[1-5][0-9]|6[0-4])$`)

// ValidateYear checks that a year is covered by the embedding dataset
func ValidateYear(year int) error {
	if year < MinYear || year > MaxYear {
		return fmt.Errorf("year %d must be between %d and %d", year, MinYear, MaxYear)
	}
	return nil
}

// AvailableYears lists every year in the dataset
func AvailableYears() []int {
	years := make([]int, 0, MaxYear-MinYear+1)
	for y := MinYear; y <= MaxYear; y++ {
		years = append(years, y)
	}
	return years
}

// BandName formats a 1-based band number as A01..A64
func BandName(n int) (string, error) {
	if n < 1 || n > NumBands {
		return "", fmt.Errorf("band number %d must be between 1 and %d", n, NumBands)
	}
	return fmt.Sprintf("A%02d", n), nil
}

// ValidateBands checks an RGB band mapping
func ValidateBands(bands []string) error {
	if len(bands) != 3 {
		return fmt.Errorf("expected 3 bands for RGB, got %d", len(bands))
	}
	for _, b := range bands {
		if !bandPattern.MatchString(b) {
			return fmt.Errorf("invalid band name: %q", b)
		}
	}
	return nil
}
