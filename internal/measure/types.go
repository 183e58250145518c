package measure

import (
	"context"
	"errors"
	"fmt"
	"time"

	"alphaearth-desktop/internal/geometry"
	"alphaearth-desktop/internal/viz"
)

// DefaultSimilarityThreshold is used when no threshold is configured
const DefaultSimilarityThreshold = 0.7

// ErrClientUnavailable is returned (or wrapped) by an AnalysisClient that is
// not configured or cannot be reached at all.
var ErrClientUnavailable = errors.New("analysis client unavailable")

// Request is one change-area measurement, built fresh for every polygon
type Request struct {
	ID                  string           `json:"id"`
	Polygon             geometry.Polygon `json:"-"`
	YearA               int              `json:"year1"`
	YearB               int              `json:"year2"`
	SimilarityThreshold float64          `json:"threshold"`
}

// AnalysisClient computes the area, in km², of the polygon whose embedding
// similarity between the two years falls below the threshold.
type AnalysisClient interface {
	CalculateChangeArea(ctx context.Context, req Request) (float64, error)
}

// Presenter renders measurement feedback
type Presenter interface {
	ShowLoading(req Request)
	HideLoading()
	// SetBusy marks the draw control while a computation is running
	SetBusy(busy bool)
	ShowResult(result Result)
	ShowError(failure Failure)
}

// Session is the part of the draw session the controller cleans up
type Session interface {
	Clear()
}

// ModeFunc reads the current visualization mode
type ModeFunc func() viz.Mode

// Config is the measurement configuration read when a polygon is processed
type Config struct {
	YearA               int
	YearB               int
	SimilarityThreshold float64
}

// ConfigFunc reads the current measurement configuration
type ConfigFunc func() Config

// Kind classifies a measurement failure
type Kind string

const (
	KindModeMismatch      Kind = "mode_mismatch"
	KindClientUnavailable Kind = "client_unavailable"
	KindComputationFailed Kind = "computation_failed"
	KindUnknown           Kind = "unknown"
)

// Failure is a user-facing measurement failure. Err keeps the underlying
// cause for logs and is never shown.
type Failure struct {
	Kind    Kind   `json:"kind"`
	Title   string `json:"title"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

func (f *Failure) Error() string {
	if f.Err != nil {
		return fmt.Sprintf("%s: %v", f.Kind, f.Err)
	}
	return string(f.Kind)
}

func (f *Failure) Unwrap() error {
	return f.Err
}

func newFailure(kind Kind, err error) *Failure {
	f := &Failure{Kind: kind, Title: "Unable to Measure", Err: err}
	switch kind {
	case KindModeMismatch:
		f.Title = "Mode Mismatch"
		f.Message = "Please switch the visualization mode to 'Change Detection' before measuring."
	case KindClientUnavailable:
		f.Message = "The analysis service is unavailable. Check your connection and the service settings."
	case KindComputationFailed:
		f.Message = "Unable to calculate area. Please try again."
	default:
		f.Message = "Something went wrong while measuring. Check the logs for details."
	}
	return f
}

// Result is a successful measurement
type Result struct {
	MeasurementID  string        `json:"measurementId"`
	SessionID      string        `json:"sessionId"`
	AreaKm2        float64       `json:"areaKm2"`
	PolygonAreaKm2 float64       `json:"polygonAreaKm2"`
	ChangedPercent float64       `json:"changedPercent"`
	YearA          int           `json:"year1"`
	YearB          int           `json:"year2"`
	Threshold      float64       `json:"threshold"`
	Message        string        `json:"message"`
	Duration       time.Duration `json:"duration"`
}

// Outcome is the terminal state of one Process call. Exactly one of
// Result or Failure is set.
type Outcome struct {
	Request Request  `json:"request"`
	Result  *Result  `json:"result,omitempty"`
	Failure *Failure `json:"failure,omitempty"`
}

// OK reports whether the measurement produced a result
func (o Outcome) OK() bool {
	return o.Result != nil
}
