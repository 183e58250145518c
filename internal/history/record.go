package history

import (
	"time"

	"github.com/paulmach/orb/geojson"

	"alphaearth-desktop/internal/measure"
)

// RecordStatus represents how a measurement ended
type RecordStatus string

const (
	RecordStatusCompleted RecordStatus = "completed"
	RecordStatusFailed    RecordStatus = "failed"
)

// Record is one finished measurement
type Record struct {
	ID             string           `json:"id"`
	SessionID      string           `json:"sessionId"`
	Status         RecordStatus     `json:"status"`
	CreatedAt      string           `json:"createdAt"` // ISO 8601 format
	YearA          int              `json:"year1,omitempty"`
	YearB          int              `json:"year2,omitempty"`
	Threshold      float64          `json:"threshold,omitempty"`
	AreaKm2        float64          `json:"areaKm2,omitempty"`
	PolygonAreaKm2 float64          `json:"polygonAreaKm2,omitempty"`
	ChangedPercent float64          `json:"changedPercent,omitempty"`
	FailureKind    measure.Kind     `json:"failureKind,omitempty"`
	Message        string           `json:"message"`
	DurationMs     int64            `json:"durationMs,omitempty"`
	Polygon        *geojson.Feature `json:"polygon,omitempty"`
}

// NewRecord converts a measurement outcome into a history record
func NewRecord(o measure.Outcome) Record {
	rec := Record{
		ID:        o.Request.ID,
		SessionID: o.Request.Polygon.ID(),
		CreatedAt: time.Now().Format(time.RFC3339),
		YearA:     o.Request.YearA,
		YearB:     o.Request.YearB,
		Threshold: o.Request.SimilarityThreshold,
	}
	if !o.Request.Polygon.IsZero() {
		rec.Polygon = o.Request.Polygon.Feature()
	}

	if o.Result != nil {
		rec.Status = RecordStatusCompleted
		rec.AreaKm2 = o.Result.AreaKm2
		rec.PolygonAreaKm2 = o.Result.PolygonAreaKm2
		rec.ChangedPercent = o.Result.ChangedPercent
		rec.Message = o.Result.Message
		rec.DurationMs = o.Result.Duration.Milliseconds()
		return rec
	}

	rec.Status = RecordStatusFailed
	if o.Failure != nil {
		rec.FailureKind = o.Failure.Kind
		rec.Message = o.Failure.Message
	}
	return rec
}
