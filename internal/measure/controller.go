package measure

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"time"

	"github.com/google/uuid"

	"alphaearth-desktop/internal/geometry"
	"alphaearth-desktop/internal/viz"
)

// DefaultTimeout bounds a single remote computation
const DefaultTimeout = 2 * time.Minute

// Controller turns a completed polygon into a displayed result or error.
// Every exit path hides the loading indicator and clears the draw session.
type Controller struct {
	client    AnalysisClient
	presenter Presenter
	session   Session
	mode      ModeFunc
	config    ConfigFunc
	timeout   time.Duration
}

// NewController wires the controller to its collaborators. client may be nil,
// in which case every eligible polygon fails as ClientUnavailable.
func NewController(client AnalysisClient, presenter Presenter, session Session, mode ModeFunc, config ConfigFunc) *Controller {
	return &Controller{
		client:    client,
		presenter: presenter,
		session:   session,
		mode:      mode,
		config:    config,
		timeout:   DefaultTimeout,
	}
}

// SetTimeout overrides the per-request timeout; zero disables it
func (c *Controller) SetTimeout(d time.Duration) {
	c.timeout = d
}

// Measurement is a completed polygon whose mode gate and request
// configuration were decided at completion time
type Measurement struct {
	Request Request
	Failure *Failure
}

// Process measures one completed polygon synchronously
func (c *Controller) Process(ctx context.Context, polygon geometry.Polygon) Outcome {
	return c.Run(ctx, c.Prepare(polygon))
}

// Prepare checks the mode and captures the request configuration. It must be
// called from the completion handler, before any other state can change.
func (c *Controller) Prepare(polygon geometry.Polygon) (m Measurement) {
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("panic while preparing measurement: %v", r)
			log.Printf("[Measure] %s: %v", polygon, err)
			m = Measurement{Request: Request{Polygon: polygon}, Failure: newFailure(KindUnknown, err)}
		}
	}()

	if mode := c.mode(); mode != viz.ModeChangeDetection {
		log.Printf("[Measure] Discarding %s: mode is %s", polygon, mode)
		return Measurement{Failure: newFailure(KindModeMismatch, nil)}
	}
	return Measurement{Request: c.newRequest(polygon)}
}

// Run performs a prepared measurement and presents the outcome. The draw
// session is cleared on every path and panics never escape.
func (c *Controller) Run(ctx context.Context, m Measurement) (outcome Outcome) {
	defer c.session.Clear()
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("panic during measurement: %v", r)
			log.Printf("[Measure] %s failed unexpectedly: %v", m.Request.ID, err)
			outcome = Outcome{Request: m.Request, Failure: newFailure(KindUnknown, err)}
			c.presentRecovered(outcome)
		}
	}()

	outcome = c.measure(ctx, m)
	c.present(outcome)
	return outcome
}

func (c *Controller) measure(ctx context.Context, m Measurement) (outcome Outcome) {
	if m.Failure != nil {
		return Outcome{Request: m.Request, Failure: m.Failure}
	}

	req := m.Request
	outcome.Request = req

	loading := false
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("panic during measurement: %v", r)
			log.Printf("[Measure] %s failed unexpectedly: %v", req.ID, err)
			outcome = Outcome{Request: req, Failure: newFailure(KindUnknown, err)}
		}
		if loading {
			c.presenter.HideLoading()
			c.presenter.SetBusy(false)
		}
	}()

	c.presenter.ShowLoading(req)
	loading = true
	c.presenter.SetBusy(true)
	started := time.Now()

	if c.client == nil {
		log.Printf("[Measure] %s: no analysis client configured", req.ID)
		return Outcome{Request: req, Failure: newFailure(KindClientUnavailable, ErrClientUnavailable)}
	}

	callCtx := ctx
	if c.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	log.Printf("[Measure] Starting change area calculation %s (%d-%d, threshold %.2f) for %s",
		req.ID, req.YearA, req.YearB, req.SimilarityThreshold, req.Polygon)

	area, err := c.client.CalculateChangeArea(callCtx, req)
	if err != nil {
		return Outcome{Request: req, Failure: classify(req, err)}
	}
	if math.IsNaN(area) || math.IsInf(area, 0) || area < 0 {
		err := fmt.Errorf("analysis returned invalid area %v", area)
		log.Printf("[Measure] %s: %v", req.ID, err)
		return Outcome{Request: req, Failure: newFailure(KindUnknown, err)}
	}

	result := newResult(req, area, time.Since(started))
	log.Printf("[Measure] %s: change area %.2f km² in %s", req.ID, area, result.Duration)
	return Outcome{Request: req, Result: &result}
}

func (c *Controller) newRequest(polygon geometry.Polygon) Request {
	cfg := c.config()
	if cfg.YearA == 0 {
		cfg.YearA = viz.DefaultYearA
	}
	if cfg.YearB == 0 {
		cfg.YearB = viz.DefaultYearB
	}
	if cfg.SimilarityThreshold <= 0 {
		cfg.SimilarityThreshold = DefaultSimilarityThreshold
	}
	return Request{
		ID:                  uuid.NewString(),
		Polygon:             polygon,
		YearA:               cfg.YearA,
		YearB:               cfg.YearB,
		SimilarityThreshold: cfg.SimilarityThreshold,
	}
}

func (c *Controller) present(outcome Outcome) {
	if outcome.Result != nil {
		c.presenter.ShowResult(*outcome.Result)
		return
	}
	c.presenter.ShowError(*outcome.Failure)
}

// presentRecovered shows the failure of a recovered panic; a second panic is
// only logged
func (c *Controller) presentRecovered(outcome Outcome) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[Measure] Failed to present error: %v", r)
		}
	}()
	c.present(outcome)
}

func classify(req Request, err error) *Failure {
	if errors.Is(err, ErrClientUnavailable) {
		log.Printf("[Measure] %s: analysis service unavailable: %v", req.ID, err)
		return newFailure(KindClientUnavailable, err)
	}
	log.Printf("[Measure] %s: area calculation failed: %v", req.ID, err)
	return newFailure(KindComputationFailed, err)
}

func newResult(req Request, area float64, elapsed time.Duration) Result {
	polygonArea := req.Polygon.AreaKm2()
	var pct float64
	if polygonArea > 0 {
		pct = math.Min(100, area/polygonArea*100)
	}
	return Result{
		MeasurementID:  req.ID,
		SessionID:      req.Polygon.ID(),
		AreaKm2:        area,
		PolygonAreaKm2: polygonArea,
		ChangedPercent: pct,
		YearA:          req.YearA,
		YearB:          req.YearB,
		Threshold:      req.SimilarityThreshold,
		Message: fmt.Sprintf("Area of significant change: %.2f km² (%d → %d, similarity < %g)",
			area, req.YearA, req.YearB, req.SimilarityThreshold),
		Duration: elapsed,
	}
}
