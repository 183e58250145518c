package measure

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"alphaearth-desktop/internal/geometry"
	"alphaearth-desktop/internal/viz"
)

// MockAnalysisClient is a mock implementation of the AnalysisClient interface
type MockAnalysisClient struct {
	mock.Mock
}

func (m *MockAnalysisClient) CalculateChangeArea(ctx context.Context, req Request) (float64, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(float64), args.Error(1)
}

// eventLog records presenter and session calls in order
type eventLog struct {
	events  []string
	result  *Result
	failure *Failure
	loading bool
	busy    bool
}

func (l *eventLog) ShowLoading(req Request) {
	l.loading = true
	l.events = append(l.events, "loading")
}

func (l *eventLog) HideLoading() {
	l.loading = false
	l.events = append(l.events, "hide-loading")
}

func (l *eventLog) SetBusy(busy bool) {
	l.busy = busy
	l.events = append(l.events, fmt.Sprintf("busy=%t", busy))
}

func (l *eventLog) ShowResult(r Result) {
	l.result = &r
	l.events = append(l.events, "result")
}

func (l *eventLog) ShowError(f Failure) {
	l.failure = &f
	l.events = append(l.events, "error:"+string(f.Kind))
}

func (l *eventLog) Clear() {
	l.events = append(l.events, "clear")
}

func squarePolygon(t *testing.T) geometry.Polygon {
	t.Helper()
	p, err := geometry.NewPolygon("session-1", []orb.Point{
		{31.20, 30.00},
		{31.30, 30.00},
		{31.30, 30.10},
		{31.20, 30.10},
	})
	require.NoError(t, err)
	return p
}

func newTestController(client AnalysisClient, mode viz.Mode, cfg Config) (*Controller, *eventLog) {
	log := &eventLog{}
	c := NewController(client, log, log,
		func() viz.Mode { return mode },
		func() Config { return cfg },
	)
	return c, log
}

func TestProcessModeMismatch(t *testing.T) {
	for _, mode := range []viz.Mode{viz.ModeEmbeddings, viz.ModeClustering} {
		t.Run(string(mode), func(t *testing.T) {
			client := new(MockAnalysisClient)
			c, log := newTestController(client, mode, Config{})

			outcome := c.Process(context.Background(), squarePolygon(t))

			require.NotNil(t, outcome.Failure)
			assert.Equal(t, KindModeMismatch, outcome.Failure.Kind)
			assert.Contains(t, outcome.Failure.Message, "Change Detection")
			assert.Equal(t, []string{"error:mode_mismatch", "clear"}, log.events)
			client.AssertNotCalled(t, "CalculateChangeArea", mock.Anything, mock.Anything)
		})
	}
}

func TestProcessHappyPath(t *testing.T) {
	client := new(MockAnalysisClient)
	client.On("CalculateChangeArea", mock.Anything, mock.MatchedBy(func(req Request) bool {
		return req.YearA == 2017 && req.YearB == 2024 && req.SimilarityThreshold == 0.7 &&
			req.Polygon.ID() == "session-1" && req.ID != ""
	})).Return(42.75, nil).Once()

	c, log := newTestController(client, viz.ModeChangeDetection,
		Config{YearA: 2017, YearB: 2024, SimilarityThreshold: 0.7})

	outcome := c.Process(context.Background(), squarePolygon(t))

	require.True(t, outcome.OK())
	require.NotNil(t, log.result)
	assert.Equal(t, 42.75, log.result.AreaKm2)
	assert.Contains(t, log.result.Message, "42.75")
	assert.Contains(t, log.result.Message, "2017")
	assert.Contains(t, log.result.Message, "2024")
	assert.Contains(t, log.result.Message, "0.7")
	assert.Equal(t, "session-1", log.result.SessionID)
	assert.Greater(t, log.result.PolygonAreaKm2, 42.75)
	assert.InDelta(t, 42.75/log.result.PolygonAreaKm2*100, log.result.ChangedPercent, 1e-9)

	assert.Equal(t, []string{"loading", "busy=true", "hide-loading", "busy=false", "result", "clear"}, log.events)
	assert.False(t, log.loading)
	assert.False(t, log.busy)
	client.AssertExpectations(t)
}

func TestProcessAppliesDefaults(t *testing.T) {
	client := new(MockAnalysisClient)
	client.On("CalculateChangeArea", mock.Anything, mock.MatchedBy(func(req Request) bool {
		return req.YearA == viz.DefaultYearA && req.YearB == viz.DefaultYearB &&
			req.SimilarityThreshold == DefaultSimilarityThreshold
	})).Return(1.0, nil).Once()

	c, _ := newTestController(client, viz.ModeChangeDetection, Config{})
	outcome := c.Process(context.Background(), squarePolygon(t))

	assert.True(t, outcome.OK())
	client.AssertExpectations(t)
}

func TestProcessReadsConfigAtCompletion(t *testing.T) {
	client := new(MockAnalysisClient)
	client.On("CalculateChangeArea", mock.Anything, mock.MatchedBy(func(req Request) bool {
		return req.YearA == 2019 && req.YearB == 2022
	})).Return(3.0, nil).Once()

	cfg := Config{YearA: 2017, YearB: 2024}
	log := &eventLog{}
	c := NewController(client, log, log,
		func() viz.Mode { return viz.ModeChangeDetection },
		func() Config { return cfg },
	)

	// configuration changed while the polygon was being drawn
	cfg = Config{YearA: 2019, YearB: 2022}
	outcome := c.Process(context.Background(), squarePolygon(t))

	assert.True(t, outcome.OK())
	assert.Equal(t, 2019, outcome.Request.YearA)
	client.AssertExpectations(t)
}

func TestProcessComputationFailed(t *testing.T) {
	client := new(MockAnalysisClient)
	client.On("CalculateChangeArea", mock.Anything, mock.Anything).
		Return(0.0, errors.New("dial tcp 10.0.0.1:443: connection refused")).Once()

	c, log := newTestController(client, viz.ModeChangeDetection,
		Config{YearA: 2017, YearB: 2024, SimilarityThreshold: 0.7})

	outcome := c.Process(context.Background(), squarePolygon(t))

	require.NotNil(t, outcome.Failure)
	assert.Equal(t, KindComputationFailed, outcome.Failure.Kind)
	assert.Contains(t, outcome.Failure.Message, "try again")
	assert.False(t, strings.Contains(outcome.Failure.Message, "connection refused"), "transport details must not leak")
	assert.Equal(t, []string{"loading", "busy=true", "hide-loading", "busy=false", "error:computation_failed", "clear"}, log.events)
	assert.False(t, log.loading)
	client.AssertExpectations(t)
}

func TestProcessClientUnavailable(t *testing.T) {
	t.Run("nil client", func(t *testing.T) {
		c, log := newTestController(nil, viz.ModeChangeDetection, Config{})
		outcome := c.Process(context.Background(), squarePolygon(t))

		require.NotNil(t, outcome.Failure)
		assert.Equal(t, KindClientUnavailable, outcome.Failure.Kind)
		assert.Equal(t, []string{"loading", "busy=true", "hide-loading", "busy=false", "error:client_unavailable", "clear"}, log.events)
	})

	t.Run("wrapped sentinel", func(t *testing.T) {
		client := new(MockAnalysisClient)
		client.On("CalculateChangeArea", mock.Anything, mock.Anything).
			Return(0.0, fmt.Errorf("service url not set: %w", ErrClientUnavailable)).Once()

		c, _ := newTestController(client, viz.ModeChangeDetection, Config{})
		outcome := c.Process(context.Background(), squarePolygon(t))

		require.NotNil(t, outcome.Failure)
		assert.Equal(t, KindClientUnavailable, outcome.Failure.Kind)
		assert.ErrorIs(t, outcome.Failure, ErrClientUnavailable)
	})
}

type panickingClient struct{}

func (panickingClient) CalculateChangeArea(context.Context, Request) (float64, error) {
	panic("nil geometry")
}

func TestProcessRecoversFromPanic(t *testing.T) {
	c, log := newTestController(panickingClient{}, viz.ModeChangeDetection, Config{})

	outcome := c.Process(context.Background(), squarePolygon(t))

	require.NotNil(t, outcome.Failure)
	assert.Equal(t, KindUnknown, outcome.Failure.Kind)
	assert.Equal(t, []string{"loading", "busy=true", "hide-loading", "busy=false", "error:unknown", "clear"}, log.events)
}

func TestProcessRejectsInvalidArea(t *testing.T) {
	for _, area := range []float64{math.NaN(), math.Inf(1), -1} {
		client := new(MockAnalysisClient)
		client.On("CalculateChangeArea", mock.Anything, mock.Anything).Return(area, nil).Once()

		c, _ := newTestController(client, viz.ModeChangeDetection, Config{})
		outcome := c.Process(context.Background(), squarePolygon(t))

		require.NotNil(t, outcome.Failure)
		assert.Equal(t, KindUnknown, outcome.Failure.Kind)
	}
}

type slowClient struct{}

func (slowClient) CalculateChangeArea(ctx context.Context, _ Request) (float64, error) {
	<-ctx.Done()
	return 0, ctx.Err()
}

func TestProcessTimeout(t *testing.T) {
	c, log := newTestController(slowClient{}, viz.ModeChangeDetection, Config{})
	c.SetTimeout(10 * time.Millisecond)

	outcome := c.Process(context.Background(), squarePolygon(t))

	require.NotNil(t, outcome.Failure)
	assert.Equal(t, KindComputationFailed, outcome.Failure.Kind)
	assert.ErrorIs(t, outcome.Failure, context.DeadlineExceeded)
	assert.Equal(t, "clear", log.events[len(log.events)-1])
}

type panickingPresenter struct {
	eventLog
}

func (p *panickingPresenter) ShowError(Failure) {
	panic("renderer gone")
}

func TestProcessClearsSessionWhenPresenterPanics(t *testing.T) {
	p := &panickingPresenter{}
	c := NewController(nil, p, &p.eventLog,
		func() viz.Mode { return viz.ModeEmbeddings },
		func() Config { return Config{} },
	)

	var outcome Outcome
	assert.NotPanics(t, func() {
		outcome = c.Process(context.Background(), squarePolygon(t))
	})
	require.NotNil(t, outcome.Failure)
	assert.Equal(t, KindUnknown, outcome.Failure.Kind)
	assert.Equal(t, []string{"clear"}, p.events)
}

func TestProcessRecoversFromPanickingModeFunc(t *testing.T) {
	client := new(MockAnalysisClient)
	log := &eventLog{}
	c := NewController(client, log, log,
		func() viz.Mode { panic("state not initialised") },
		func() Config { return Config{} },
	)

	var outcome Outcome
	assert.NotPanics(t, func() {
		outcome = c.Process(context.Background(), squarePolygon(t))
	})
	require.NotNil(t, outcome.Failure)
	assert.Equal(t, KindUnknown, outcome.Failure.Kind)
	assert.Equal(t, "session-1", outcome.Request.Polygon.ID())
	// loading was never shown, so it is not hidden either
	assert.Equal(t, []string{"error:unknown", "clear"}, log.events)
	client.AssertNotCalled(t, "CalculateChangeArea", mock.Anything, mock.Anything)
}

func TestProcessRecoversFromPanickingConfig(t *testing.T) {
	log := &eventLog{}
	c := NewController(new(MockAnalysisClient), log, log,
		func() viz.Mode { return viz.ModeChangeDetection },
		func() Config { panic("settings gone") },
	)

	outcome := c.Process(context.Background(), squarePolygon(t))
	require.NotNil(t, outcome.Failure)
	assert.Equal(t, KindUnknown, outcome.Failure.Kind)
	assert.Equal(t, []string{"error:unknown", "clear"}, log.events)
}

type panickingLoadingPresenter struct {
	eventLog
}

func (p *panickingLoadingPresenter) ShowLoading(Request) {
	panic("overlay missing")
}

func TestProcessDoesNotHideLoadingThatNeverShowed(t *testing.T) {
	p := &panickingLoadingPresenter{}
	c := NewController(new(MockAnalysisClient), p, &p.eventLog,
		func() viz.Mode { return viz.ModeChangeDetection },
		func() Config { return Config{} },
	)

	outcome := c.Process(context.Background(), squarePolygon(t))
	require.NotNil(t, outcome.Failure)
	assert.Equal(t, KindUnknown, outcome.Failure.Kind)
	assert.Equal(t, []string{"error:unknown", "clear"}, p.events)
}

func TestPrepareFreezesModeAndConfig(t *testing.T) {
	client := new(MockAnalysisClient)
	client.On("CalculateChangeArea", mock.Anything, mock.MatchedBy(func(req Request) bool {
		return req.YearA == 2018 && req.YearB == 2021 && req.SimilarityThreshold == 0.6
	})).Return(5.0, nil).Once()

	mode := viz.ModeChangeDetection
	cfg := Config{YearA: 2018, YearB: 2021, SimilarityThreshold: 0.6}
	log := &eventLog{}
	c := NewController(client, log, log,
		func() viz.Mode { return mode },
		func() Config { return cfg },
	)

	m := c.Prepare(squarePolygon(t))
	require.Nil(t, m.Failure)

	// the user switches away before the measurement runs
	mode = viz.ModeEmbeddings
	cfg = Config{YearA: 2017, YearB: 2024, SimilarityThreshold: 0.9}

	outcome := c.Run(context.Background(), m)
	require.True(t, outcome.OK())
	assert.Equal(t, 2018, outcome.Result.YearA)
	client.AssertExpectations(t)
}
