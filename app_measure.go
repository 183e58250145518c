package main

import (
	"log"

	"github.com/paulmach/orb"

	"alphaearth-desktop/internal/draw"
	"alphaearth-desktop/internal/geometry"
	"alphaearth-desktop/internal/history"
	"alphaearth-desktop/internal/measure"
	"alphaearth-desktop/internal/viz"
)

// Frontend events
const (
	EventDrawState      = "measure-draw-state"
	EventMeasureLoading = "measure-loading"
	EventMeasureBusy    = "measure-busy"
	EventMeasureResult  = "measure-result"
	EventMeasureError   = "measure-error"
	EventVizState       = "viz-state"
)

// Toggle control hints
const (
	drawingTitle = "Click map to draw polygon vertices. Click first point to close."
	idleTitle    = "Measure Area of Change"
)

// MeasureState is the draw control state shown by the frontend
type MeasureState struct {
	State     string       `json:"state"`
	Active    bool         `json:"active"`
	InFlight  bool         `json:"inFlight"`
	SessionID string       `json:"sessionId"`
	Title     string       `json:"title"`
	Vertices  [][2]float64 `json:"vertices"`
}

// ===================
// Drawing
// ===================

// ToggleMeasure switches polygon drawing on or off
func (a *App) ToggleMeasure() (MeasureState, error) {
	err := a.session.Toggle()
	return a.GetMeasureState(), err
}

// StartMeasure enters drawing mode. Calling it while drawing keeps the current session.
func (a *App) StartMeasure() error {
	return a.session.Activate()
}

// CancelMeasure leaves drawing mode and discards the vertices drawn so far
func (a *App) CancelMeasure() {
	a.session.Deactivate()
}

// AddMeasureVertex adds a clicked map point. Returns true when the click closed the ring.
func (a *App) AddMeasureVertex(lon, lat, zoom float64) (bool, error) {
	closed, err := a.session.AddVertex(orb.Point{lon, lat}, zoom)
	if err != nil {
		a.emitLog("Vertex refused: " + err.Error())
	}
	return closed, err
}

// CloseMeasureRing finishes the polygon explicitly (double click)
func (a *App) CloseMeasureRing() error {
	return a.session.Close()
}

// GetMeasureState returns the current draw control state
func (a *App) GetMeasureState() MeasureState {
	state := a.session.State()
	return newMeasureState(state, a.session.SessionID(), a.session.InFlight(), a.session.Vertices())
}

func newMeasureState(state draw.State, sessionID string, inFlight bool, vertices []orb.Point) MeasureState {
	ms := MeasureState{
		State:     state.String(),
		Active:    state == draw.StateDrawing,
		InFlight:  inFlight,
		SessionID: sessionID,
		Title:     idleTitle,
		Vertices:  make([][2]float64, 0, len(vertices)),
	}
	if ms.Active {
		ms.Title = drawingTitle
	}
	for _, v := range vertices {
		ms.Vertices = append(ms.Vertices, [2]float64{v.Lon(), v.Lat()})
	}
	return ms
}

func (a *App) onDrawStateChange(state draw.State, sessionID string, inFlight bool) {
	a.emit(EventDrawState, newMeasureState(state, sessionID, inFlight, nil))
}

// handlePolygonComplete is the only consumer of completed polygons. The mode
// and request configuration are captured here, when the ring closes; only the
// remote computation runs in the background so the bound method that closed
// the ring returns immediately.
func (a *App) handlePolygonComplete(polygon geometry.Polygon) {
	m := a.controller.Prepare(polygon)
	if m.Failure == nil {
		a.TrackEvent("measure_started", map[string]interface{}{
			"vertices":  len(polygon.Vertices()),
			"year1":     m.Request.YearA,
			"year2":     m.Request.YearB,
			"threshold": m.Request.SimilarityThreshold,
		})
	}

	a.measurements.Add(1)
	go func() {
		defer a.measurements.Done()
		outcome := a.controller.Run(a.baseContext(), m)
		a.recordOutcome(outcome)
	}()
}

// recordOutcome stores a finished measurement and reports it to analytics
func (a *App) recordOutcome(outcome measure.Outcome) {
	if outcome.Failure != nil && outcome.Failure.Kind == measure.KindModeMismatch {
		// Nothing was measured
		a.TrackEvent("measure_failed", map[string]interface{}{
			"kind": string(outcome.Failure.Kind),
		})
		return
	}

	if err := a.history.Add(history.NewRecord(outcome)); err != nil {
		log.Printf("[History] Failed to record measurement: %v", err)
	}

	if outcome.OK() {
		a.TrackEvent("measure_completed", map[string]interface{}{
			"year1":       outcome.Result.YearA,
			"year2":       outcome.Result.YearB,
			"threshold":   outcome.Result.Threshold,
			"duration_ms": outcome.Result.Duration.Milliseconds(),
		})
		return
	}
	a.TrackEvent("measure_failed", map[string]interface{}{
		"kind": string(outcome.Failure.Kind),
	})
}

// waitForMeasurements blocks until running measurements have finished
func (a *App) waitForMeasurements() {
	a.measurements.Wait()
}

// eventPresenter renders measurement feedback as frontend events
type eventPresenter struct {
	app *App
}

func (p eventPresenter) ShowLoading(req measure.Request) {
	p.app.emit(EventMeasureLoading, req)
}

func (p eventPresenter) HideLoading() {
	p.app.emit(EventMeasureLoading, nil)
}

func (p eventPresenter) SetBusy(busy bool) {
	p.app.emit(EventMeasureBusy, busy)
}

func (p eventPresenter) ShowResult(result measure.Result) {
	p.app.emit(EventMeasureResult, result)
}

func (p eventPresenter) ShowError(failure measure.Failure) {
	p.app.emit(EventMeasureError, failure)
}

// ===================
// Visualization
// ===================

// SetMode switches the visualization mode. Years are only used for change detection;
// pass zero to keep the current pair.
func (a *App) SetMode(mode string, year1, year2 int) error {
	m, err := viz.ParseMode(mode)
	if err != nil {
		return err
	}
	var years *viz.ChangeYears
	if year1 != 0 && year2 != 0 {
		years = &viz.ChangeYears{YearA: year1, YearB: year2}
	}
	if err := a.state.SetMode(m, years); err != nil {
		return err
	}
	a.emit(EventVizState, a.state.Snapshot())
	return nil
}

// SetChangeYears updates the compared years without changing mode
func (a *App) SetChangeYears(year1, year2 int) error {
	if err := a.state.SetChangeYears(viz.ChangeYears{YearA: year1, YearB: year2}); err != nil {
		return err
	}
	a.emit(EventVizState, a.state.Snapshot())
	return nil
}

// SetVisualization updates the embedding display parameters
func (a *App) SetVisualization(params viz.Params) error {
	if err := a.state.SetParams(params); err != nil {
		return err
	}
	a.emit(EventVizState, a.state.Snapshot())
	return nil
}

// GetVisualization returns the current visualization state
func (a *App) GetVisualization() viz.Snapshot {
	return a.state.Snapshot()
}

// GetAvailableYears returns the years covered by the embedding dataset
func (a *App) GetAvailableYears() []int {
	return viz.AvailableYears()
}
