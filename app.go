package main

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	goruntime "runtime"
	"sync"

	"github.com/google/uuid"
	"github.com/posthog/posthog-go"
	wailsRuntime "github.com/wailsapp/wails/v2/pkg/runtime"

	"alphaearth-desktop/internal/analysis"
	"alphaearth-desktop/internal/cache"
	"alphaearth-desktop/internal/config"
	"alphaearth-desktop/internal/draw"
	"alphaearth-desktop/internal/history"
	"alphaearth-desktop/internal/measure"
	"alphaearth-desktop/internal/ratelimit"
	"alphaearth-desktop/internal/viz"
)

// Linker flags
var (
	PostHogKey  string
	PostHogHost string
	AppVersion  string = "0.0.0-dev"
)

// App struct
type App struct {
	ctx          context.Context
	settings     *config.UserSettings
	settingsPath string // empty means the OS default
	mu           sync.Mutex
	devMode      bool // Enable verbose logging in dev mode only
	phClient     posthog.Client

	state            *viz.State
	session          *draw.Session
	controller       *measure.Controller
	analysis         *analysis.Client
	results          *cache.ResultCache
	rateLimitHandler *ratelimit.Handler
	history          *history.Store

	// emit sends an event to the frontend; replaced in tests
	emit func(event string, data ...interface{})

	measurements sync.WaitGroup
}

// NewApp creates a new App application struct
func NewApp() *App {
	config.LoadEnvFiles(".env", filepath.Join(config.BaseDir(), ".env"))

	// Load user settings
	settings, err := config.LoadSettings()
	if err != nil {
		log.Printf("Failed to load settings, using defaults: %v", err)
		settings = config.DefaultSettings()
	}
	if err := config.ApplyEnv(settings); err != nil {
		log.Printf("Ignoring environment overrides: %v", err)
	}
	if settings.InstallID == "" {
		settings.InstallID = uuid.NewString()
		if err := config.SaveSettings(settings); err != nil {
			log.Printf("Failed to persist install ID: %v", err)
		}
	}
	log.Printf("Settings loaded from: %s", config.GetSettingsPath())

	// Initialize PostHog
	var phClient posthog.Client
	if PostHogKey != "" && !settings.DisableAnalytics {
		phConfig := posthog.Config{
			Endpoint: PostHogHost,
		}
		client, err := posthog.NewWithConfig(PostHogKey, phConfig)
		if err != nil {
			log.Printf("Failed to initialize PostHog: %v", err)
		} else {
			phClient = client
		}
	}

	app := newApp(settings, filepath.Join(config.BaseDir(), "history"))
	app.phClient = phClient
	return app
}

// newApp wires the measurement core from settings
func newApp(settings *config.UserSettings, historyDir string) *App {
	a := &App{
		settings:         settings,
		state:            viz.NewState(viz.ChangeYears{YearA: settings.ChangeYearA, YearB: settings.ChangeYearB}, settings.VizParams()),
		results:          cache.NewResultCache(settings.ResultCacheSize, settings.ResultCacheTTL()),
		rateLimitHandler: ratelimit.NewHandler(nil),
		history:          history.NewStore(historyDir, settings.MaxHistoryRecords),
	}
	a.emit = a.emitToFrontend
	a.analysis = a.newAnalysisClient(settings)

	a.session = draw.NewSession(draw.Options{PointerDistance: settings.PointerDistance})
	a.session.OnStateChange(a.onDrawStateChange)

	a.controller = measure.NewController(
		liveAnalysis{app: a},
		eventPresenter{app: a},
		a.session,
		a.state.Mode,
		a.measureConfig,
	)

	// The only consumer of completed polygons
	if err := a.session.OnComplete(a.handlePolygonComplete); err != nil {
		log.Printf("[Draw] %v", err)
	}

	a.rateLimitHandler.SetOnRateLimit(func(event ratelimit.RateLimitEvent) {
		a.emit("rate-limit", event)
	})
	a.rateLimitHandler.SetOnRecovered(func(provider string) {
		a.emit("rate-limit-recovered", provider)
	})

	log.Printf("Analysis service: %q (cache %d entries, ttl %s)",
		settings.AnalysisServiceURL, settings.ResultCacheSize, settings.ResultCacheTTL())
	return a
}

func (a *App) newAnalysisClient(settings *config.UserSettings) *analysis.Client {
	return analysis.NewClient(analysis.Config{
		BaseURL: settings.AnalysisServiceURL,
		APIKey:  settings.AnalysisAPIKey,
		Timeout: settings.AnalysisTimeout(),
	}, a.results, a.rateLimitHandler)
}

// startup is called when the app starts
func (a *App) startup(ctx context.Context) {
	a.ctx = ctx

	if a.analysisClient().IsReady() {
		wailsRuntime.LogInfo(ctx, "Analysis service configured")
	} else {
		wailsRuntime.LogWarning(ctx, "Analysis service URL not set; area measurement is unavailable")
	}

	// Track app start
	a.TrackEvent("app_started", map[string]interface{}{
		"version": a.GetAppVersion(),
		"os":      goruntime.GOOS,
		"arch":    goruntime.GOARCH,
	})
}

// TrackEvent sends an event to PostHog
func (a *App) TrackEvent(event string, props map[string]interface{}) {
	if a.phClient != nil {
		a.mu.Lock()
		distinctID := a.settings.InstallID
		a.mu.Unlock()
		a.phClient.Enqueue(posthog.Capture{
			DistinctId: distinctID,
			Event:      event,
			Properties: props,
		})
	}
}

// Shutdown cleans up resources
func (a *App) Shutdown(ctx context.Context) {
	// Let a running measurement finish writing its history record
	a.measurements.Wait()
	if a.phClient != nil {
		a.phClient.Close()
	}
}

// GetAppVersion returns the current application version
func (a *App) GetAppVersion() string {
	return AppVersion
}

// emitToFrontend sends an event through the Wails runtime once it is up
func (a *App) emitToFrontend(event string, data ...interface{}) {
	if a.ctx == nil {
		return
	}
	wailsRuntime.EventsEmit(a.ctx, event, data...)
}

// emitLog sends a log message to the frontend (only in dev mode)
func (a *App) emitLog(message string) {
	if a.devMode {
		a.emit("log", message)
	}
}

// baseContext is the parent context for remote calls
func (a *App) baseContext() context.Context {
	if a.ctx != nil {
		return a.ctx
	}
	return context.Background()
}

func (a *App) analysisClient() *analysis.Client {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.analysis
}

// measureConfig is read by the controller when a polygon completes
func (a *App) measureConfig() measure.Config {
	years := a.state.ChangeYears()
	a.mu.Lock()
	threshold := a.settings.SimilarityThreshold
	a.mu.Unlock()
	return measure.Config{
		YearA:               years.YearA,
		YearB:               years.YearB,
		SimilarityThreshold: threshold,
	}
}

// liveAnalysis forwards to the analysis client built from the current settings
type liveAnalysis struct {
	app *App
}

func (l liveAnalysis) CalculateChangeArea(ctx context.Context, req measure.Request) (float64, error) {
	client := l.app.analysisClient()
	if client == nil {
		return 0, fmt.Errorf("analysis client not initialized: %w", measure.ErrClientUnavailable)
	}
	return client.CalculateChangeArea(ctx, req)
}
