package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	goruntime "runtime"
	"sync"

	"github.com/posthog/posthog-go"
	wailsRuntime "github.com/wailsapp/wails/v2/pkg/runtime"

	"globe-overlay/internal/bridge"
	"globe-overlay/internal/config"
	"globe-overlay/internal/handlers/debugserver"
	"globe-overlay/internal/labels"
	"globe-overlay/internal/logger"
	"globe-overlay/internal/overlay"
	"globe-overlay/internal/poitile"
	"globe-overlay/internal/ratelimit"
)

// Linker flags
var (
	PostHogKey  string
	PostHogHost string
	AppVersion  string = "0.0.0-dev"
)

// App struct
type App struct {
	ctx      context.Context
	settings *config.Settings
	mu       sync.Mutex
	devMode  bool
	log      *slog.Logger

	bridge           *bridge.Bridge
	overlay          *overlay.Overlay
	rateLimitHandler *ratelimit.Handler
	debugServer      *debugserver.Server
	phClient         posthog.Client
}

// NewApp creates a new App application struct
func NewApp() *App {
	log := logger.With("app")

	settings, err := config.LoadSettings()
	if err != nil {
		log.Warn("Failed to load settings, using defaults", "err", err)
		settings = config.DefaultSettings()
	}
	log.Info("Loaded settings", "path", config.GetSettingsPath(), "datasets", len(settings.Datasets))

	key, host := telemetryConfig(settings)
	var phClient posthog.Client
	if key != "" {
		client, err := posthog.NewWithConfig(key, posthog.Config{Endpoint: host})
		if err != nil {
			log.Warn("Failed to initialize PostHog client", "err", err)
		} else {
			phClient = client
		}
	}

	return &App{
		settings:         settings,
		log:              log,
		rateLimitHandler: ratelimit.NewHandler(nil),
		phClient:         phClient,
	}
}

// telemetryConfig prefers linker flags, then the environment, then settings
func telemetryConfig(s *config.Settings) (key, host string) {
	key, host = PostHogKey, PostHogHost
	if key == "" {
		key = os.Getenv("POSTHOG_KEY")
	}
	if key == "" {
		key = s.Telemetry.PosthogKey
	}
	if host == "" {
		host = os.Getenv("POSTHOG_HOST")
	}
	if host == "" {
		host = s.Telemetry.PosthogHost
	}
	return key, host
}

// startup is called when the app starts
func (a *App) startup(ctx context.Context) {
	a.ctx = ctx

	a.bridge = bridge.New(func(event string, data ...any) {
		wailsRuntime.EventsEmit(ctx, event, data...)
	})

	a.rateLimitHandler.SetOnRateLimit(func(event ratelimit.Event) {
		wailsRuntime.EventsEmit(ctx, "rate-limit", event)
	})
	a.rateLimitHandler.SetOnRecovered(func(dataset string) {
		wailsRuntime.EventsEmit(ctx, "rate-limit-cleared", dataset)
	})

	// Camera signals arrive as events as well as bound calls
	wailsRuntime.EventsOn(ctx, "camera:moveEnd", func(...any) { a.CameraMoveEnd() })
	wailsRuntime.EventsOn(ctx, "camera:changed", func(...any) { a.CameraChanged() })

	if a.settings.DebugServer || a.devMode {
		a.debugServer = debugserver.NewServer(a.currentOverlay)
		if err := a.debugServer.Start(); err != nil {
			wailsRuntime.LogError(ctx, fmt.Sprintf("Failed to start debug server: %v", err))
		} else {
			wailsRuntime.LogInfo(ctx, fmt.Sprintf("Debug server started on %s", a.debugServer.URL()))
		}
	}

	a.TrackEvent("app_started", map[string]interface{}{
		"version": a.GetAppVersion(),
		"os":      goruntime.GOOS,
		"arch":    goruntime.GOARCH,
	})
}

// TrackEvent sends an event to PostHog
func (a *App) TrackEvent(event string, props map[string]interface{}) {
	if a.phClient != nil {
		a.phClient.Enqueue(posthog.Capture{
			DistinctId: "backend_user",
			Event:      event,
			Properties: props,
		})
	}
}

// shutdown cleans up resources
func (a *App) shutdown(ctx context.Context) {
	a.DeactivateOverlay()
	if a.debugServer != nil {
		a.debugServer.Shutdown(ctx)
	}
	if a.phClient != nil {
		a.phClient.Close()
	}
}

// GetAppVersion returns the current application version
func (a *App) GetAppVersion() string {
	return AppVersion
}

func (a *App) currentOverlay() *overlay.Overlay {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.overlay
}

// ===================
// Overlay lifecycle
// ===================

// ActivateOverlay creates the label overlay from the current settings and
// bootstraps it with the frame the globe is rendering now
func (a *App) ActivateOverlay(frame bridge.Frame) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.overlay != nil {
		return a.overlay.ID(), nil
	}
	if len(a.settings.Datasets) == 0 {
		return "", errors.New("no datasets configured")
	}

	opts, err := overlay.OptionsFromSettings(a.settings)
	if err != nil {
		return "", err
	}
	opts.Limiter = a.rateLimitHandler

	a.bridge.PushFrame(frame)
	o, err := overlay.New(a.bridge, opts)
	if err != nil {
		return "", fmt.Errorf("failed to create overlay: %w", err)
	}
	o.Controller().SetOnError(a.reportPipelineError)
	a.overlay = o

	o.Activate(a.ctx, frame.RenderedTiles())
	wailsRuntime.LogInfo(a.ctx, fmt.Sprintf("Overlay %s activated with %d datasets", o.ID(), len(opts.Datasets)))
	a.TrackEvent("overlay_activated", map[string]interface{}{
		"datasets":         len(opts.Datasets),
		"serverFirstStyle": a.settings.ServerFirstStyle,
		"autoCollide":      a.settings.AutoCollide,
	})
	return o.ID(), nil
}

// DeactivateOverlay removes every label of the overlay and drops its caches
func (a *App) DeactivateOverlay() {
	a.mu.Lock()
	o := a.overlay
	a.overlay = nil
	a.mu.Unlock()

	if o == nil {
		return
	}
	o.Deactivate()
	a.TrackEvent("overlay_deactivated", nil)
}

func (a *App) reportPipelineError(err error) {
	var decodeErr *poitile.SchemaDecodeError
	if errors.As(err, &decodeErr) {
		wailsRuntime.LogError(a.ctx, fmt.Sprintf("Tile decode failed: %v", err))
		a.TrackEvent("tile_decode_failed", map[string]interface{}{
			"attempts": len(decodeErr.Attempts),
		})
	}
}

// ===================
// Renderer bridge
// ===================

// PushFrame stores the globe's latest camera and tile snapshot
func (a *App) PushFrame(frame bridge.Frame) {
	a.bridge.PushFrame(frame)
}

// CameraMoveEnd signals that the camera stopped moving
func (a *App) CameraMoveEnd() bool {
	if o := a.currentOverlay(); o != nil {
		return o.MoveEnd()
	}
	return false
}

// CameraChanged signals that the camera moved
func (a *App) CameraChanged() bool {
	if o := a.currentOverlay(); o != nil {
		return o.Changed()
	}
	return false
}

// PickLabels returns the visible labels under a window point
func (a *App) PickLabels(x, y float64) []*labels.Record {
	if o := a.currentOverlay(); o != nil {
		return o.Pick(x, y)
	}
	return nil
}

// GetOverlayStats returns the active overlay's counters
func (a *App) GetOverlayStats() *overlay.Stats {
	if o := a.currentOverlay(); o != nil {
		stats := o.Stats()
		return &stats
	}
	return nil
}

// GetDebugServerURL returns the debug server base URL, or "" when disabled
func (a *App) GetDebugServerURL() string {
	if a.debugServer == nil {
		return ""
	}
	return a.debugServer.URL()
}

// RenderedTileCount is a helper for the frontend status bar
func (a *App) RenderedTileCount() int {
	return len(a.bridge.RenderedTiles())
}
