package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"gopkg.in/yaml.v3"

	"globe-overlay/internal/cache"
	"globe-overlay/internal/common"
)

// Bounds is a coverage rectangle in degrees
type Bounds struct {
	West  float64 `json:"west" yaml:"west"`
	South float64 `json:"south" yaml:"south"`
	East  float64 `json:"east" yaml:"east"`
	North float64 `json:"north" yaml:"north"`
}

// DatasetSettings describes one tiled label source
type DatasetSettings struct {
	Name       string   `json:"name" yaml:"name"`
	Kind       string   `json:"kind" yaml:"kind"` // "point" or "road"
	URL        string   `json:"url" yaml:"url"`   // {x} {y} {z} {s} placeholders
	Subdomains []string `json:"subdomains,omitempty" yaml:"subdomains,omitempty"`
	Bounds     *Bounds  `json:"bounds,omitempty" yaml:"bounds,omitempty"`
	MinZoom    int      `json:"minZoom,omitempty" yaml:"minZoom,omitempty"`
	MaxZoom    int      `json:"maxZoom,omitempty" yaml:"maxZoom,omitempty"`
}

// LabelStyleSettings is the default text style
type LabelStyleSettings struct {
	FontSize         float64 `json:"fontSize" yaml:"fontSize"`
	FontFamily       string  `json:"fontFamily" yaml:"fontFamily"`
	Bold             bool    `json:"bold,omitempty" yaml:"bold,omitempty"`
	Italic           bool    `json:"italic,omitempty" yaml:"italic,omitempty"`
	FillColor        string  `json:"fillColor" yaml:"fillColor"`
	OutlineColor     string  `json:"outlineColor" yaml:"outlineColor"`
	OutlineWidth     float64 `json:"outlineWidth" yaml:"outlineWidth"`
	ShowBackground   bool    `json:"showBackground,omitempty" yaml:"showBackground,omitempty"`
	BackgroundColor  string  `json:"backgroundColor,omitempty" yaml:"backgroundColor,omitempty"`
	Scale            float64 `json:"scale" yaml:"scale"`
	HorizontalOrigin string  `json:"horizontalOrigin" yaml:"horizontalOrigin"` // "left", "center", "right"
	VerticalOrigin   string  `json:"verticalOrigin" yaml:"verticalOrigin"`     // "center", "bottom", "top"
}

// IconStyleSettings is the default icon style
type IconStyleSettings struct {
	Image         string  `json:"image,omitempty" yaml:"image,omitempty"`
	ImageTemplate string  `json:"imageTemplate,omitempty" yaml:"imageTemplate,omitempty"` // "{icon}" placeholder
	Size          float64 `json:"size" yaml:"size"`
	Scale         float64 `json:"scale" yaml:"scale"`
}

// ScheduleSettings holds the refresh and collision cadences
type ScheduleSettings struct {
	RefreshInterval   Duration `json:"refreshInterval" yaml:"refreshInterval"`
	CollisionInterval Duration `json:"collisionInterval" yaml:"collisionInterval"`
	BootstrapInterval Duration `json:"bootstrapInterval" yaml:"bootstrapInterval"`
	BootstrapTicks    int      `json:"bootstrapTicks" yaml:"bootstrapTicks"`
	PollInterval      Duration `json:"pollInterval" yaml:"pollInterval"`
	MaxQuiescenceWait Duration `json:"maxQuiescenceWait" yaml:"maxQuiescenceWait"`
	MaxZoomBands      int      `json:"maxZoomBands" yaml:"maxZoomBands"`
	TrailingCollision Duration `json:"trailingCollision" yaml:"trailingCollision"`
	TrailingRefresh   Duration `json:"trailingRefresh" yaml:"trailingRefresh"`
}

// FetchSettings controls tile downloads
type FetchSettings struct {
	MaxConcurrent int      `json:"maxConcurrent" yaml:"maxConcurrent"`
	Timeout       Duration `json:"timeout" yaml:"timeout"`
	UserAgent     string   `json:"userAgent,omitempty" yaml:"userAgent,omitempty"`
}

// QuiescenceSettings are the queue depths at which the renderer counts as settled
type QuiescenceSettings struct {
	MaxPendingRender    int `json:"maxPendingRender" yaml:"maxPendingRender"`
	MaxHighPriorityLoad int `json:"maxHighPriorityLoad" yaml:"maxHighPriorityLoad"`
}

// TelemetrySettings configures product analytics; an empty key disables it
type TelemetrySettings struct {
	PosthogKey  string `json:"posthogKey,omitempty" yaml:"posthogKey,omitempty"`
	PosthogHost string `json:"posthogHost,omitempty" yaml:"posthogHost,omitempty"`
}

// Settings is the overlay configuration
type Settings struct {
	Datasets []DatasetSettings `json:"datasets" yaml:"datasets"`

	LabelStyle LabelStyleSettings `json:"labelStyle" yaml:"labelStyle"`
	IconStyle  IconStyleSettings  `json:"iconStyle" yaml:"iconStyle"`

	// ServerFirstStyle lets per-feature style fields override the defaults
	ServerFirstStyle bool `json:"serverFirstStyle" yaml:"serverFirstStyle"`
	// AutoCollide runs decluttering right after each sweep
	AutoCollide bool `json:"autoCollide" yaml:"autoCollide"`
	// CollisionPadding is [top, right, bottom, left] in pixels
	CollisionPadding []float64 `json:"collisionPadding" yaml:"collisionPadding"`

	Cache      cache.Config       `json:"cache" yaml:"cache"`
	Schedule   ScheduleSettings   `json:"schedule" yaml:"schedule"`
	Fetch      FetchSettings      `json:"fetch" yaml:"fetch"`
	Quiescence QuiescenceSettings `json:"quiescence" yaml:"quiescence"`

	DebugServer bool              `json:"debugServer" yaml:"debugServer"`
	Telemetry   TelemetrySettings `json:"telemetry" yaml:"telemetry"`
}

// DefaultSettings returns default settings
func DefaultSettings() *Settings {
	return &Settings{
		Datasets: []DatasetSettings{},
		LabelStyle: LabelStyleSettings{
			FontSize:         14,
			FontFamily:       "sans-serif",
			FillColor:        "#FFFFFF",
			OutlineColor:     "#000000",
			OutlineWidth:     2,
			Scale:            1,
			HorizontalOrigin: "left",
			VerticalOrigin:   "center",
		},
		IconStyle: IconStyleSettings{
			ImageTemplate: "{icon}",
			Size:          16,
			Scale:         1,
		},
		AutoCollide:      true,
		CollisionPadding: []float64{0, 0, 0, 0},
		Cache:            *cache.DefaultConfig(),
		Schedule: ScheduleSettings{
			RefreshInterval:   Duration(300 * time.Millisecond),
			CollisionInterval: Duration(150 * time.Millisecond),
			BootstrapInterval: Duration(600 * time.Millisecond),
			BootstrapTicks:    4,
			PollInterval:      Duration(100 * time.Millisecond),
			MaxQuiescenceWait: Duration(5 * time.Second),
			MaxZoomBands:      4,
			TrailingCollision: Duration(200 * time.Millisecond),
			TrailingRefresh:   Duration(300 * time.Millisecond),
		},
		Fetch: FetchSettings{
			MaxConcurrent: 8,
			Timeout:       Duration(30 * time.Second),
		},
	}
}

// GetSettingsPath returns the settings file path: $OVERLAY_CONFIG, or
// settings.json under ~/.globe-overlay
func GetSettingsPath() string {
	if p := os.Getenv("OVERLAY_CONFIG"); p != "" {
		return p
	}
	homeDir, _ := os.UserHomeDir()
	return filepath.Join(homeDir, ".globe-overlay", "settings.json")
}

func isYAML(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}

// Load reads settings from path. A missing file yields the defaults.
// Fields absent from the file keep their default values.
func Load(path string) (*Settings, error) {
	settings := DefaultSettings()

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return settings, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read settings file: %w", err)
	}

	if isYAML(path) {
		err = yaml.Unmarshal(data, settings)
	} else {
		err = json.Unmarshal(data, settings)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse settings: %w", err)
	}

	settings.mergeDefaults(DefaultSettings())
	if err := settings.Validate(); err != nil {
		return nil, fmt.Errorf("invalid settings %s: %w", path, err)
	}
	return settings, nil
}

// LoadSettings loads settings from GetSettingsPath
func LoadSettings() (*Settings, error) {
	return Load(GetSettingsPath())
}

func (s *Settings) mergeDefaults(defaults *Settings) {
	s.Cache.Merge(&defaults.Cache)

	if s.LabelStyle.FontSize == 0 {
		s.LabelStyle.FontSize = defaults.LabelStyle.FontSize
	}
	if s.LabelStyle.Scale == 0 {
		s.LabelStyle.Scale = defaults.LabelStyle.Scale
	}
	if s.IconStyle.Scale == 0 {
		s.IconStyle.Scale = defaults.IconStyle.Scale
	}
	if len(s.CollisionPadding) == 0 {
		s.CollisionPadding = defaults.CollisionPadding
	}

	sd, dd := &s.Schedule, defaults.Schedule
	if sd.RefreshInterval <= 0 {
		sd.RefreshInterval = dd.RefreshInterval
	}
	if sd.CollisionInterval <= 0 {
		sd.CollisionInterval = dd.CollisionInterval
	}
	if sd.BootstrapInterval <= 0 {
		sd.BootstrapInterval = dd.BootstrapInterval
	}
	if sd.PollInterval <= 0 {
		sd.PollInterval = dd.PollInterval
	}
	if sd.MaxZoomBands <= 0 {
		sd.MaxZoomBands = dd.MaxZoomBands
	}

	if s.Fetch.MaxConcurrent <= 0 {
		s.Fetch.MaxConcurrent = defaults.Fetch.MaxConcurrent
	}
	if s.Fetch.Timeout <= 0 {
		s.Fetch.Timeout = defaults.Fetch.Timeout
	}
}

// Validate checks the settings for values the overlay cannot run with
func (s *Settings) Validate() error {
	var errs []error

	names := make(map[string]bool)
	kinds := make(map[string]bool)
	for i := range s.Datasets {
		if err := ValidateDataset(&s.Datasets[i]); err != nil {
			errs = append(errs, fmt.Errorf("dataset %d: %w", i, err))
			continue
		}
		ds := s.Datasets[i]
		if names[ds.Name] {
			errs = append(errs, fmt.Errorf("dataset %d: duplicate name %s", i, ds.Name))
		}
		// tiles are cached per (coordinate, kind)
		if kinds[ds.Kind] {
			errs = append(errs, fmt.Errorf("dataset %d: more than one %s dataset", i, ds.Kind))
		}
		names[ds.Name], kinds[ds.Kind] = true, true
	}

	if len(s.CollisionPadding) != 4 {
		errs = append(errs, fmt.Errorf("collisionPadding needs 4 values [top,right,bottom,left], got %d", len(s.CollisionPadding)))
	}
	if s.Schedule.BootstrapTicks < 0 {
		errs = append(errs, fmt.Errorf("schedule.bootstrapTicks must not be negative"))
	}
	if s.Cache.TileTrim > s.Cache.TileLimit || s.Cache.LabelTrim > s.Cache.LabelLimit {
		errs = append(errs, fmt.Errorf("cache trim sizes must not exceed their limits"))
	}
	return errors.Join(errs...)
}

// ValidateDataset validates a dataset configuration
func ValidateDataset(ds *DatasetSettings) error {
	if ds.Name == "" {
		return fmt.Errorf("dataset name is required")
	}
	if ds.URL == "" {
		return fmt.Errorf("dataset url is required")
	}
	if _, err := common.ParseDatasetKind(ds.Kind); err != nil {
		return err
	}
	if ds.MaxZoom > 0 && ds.MinZoom > ds.MaxZoom {
		return fmt.Errorf("minZoom %d is greater than maxZoom %d", ds.MinZoom, ds.MaxZoom)
	}
	if b := ds.Bounds; b != nil && (b.West > b.East || b.South > b.North) {
		return fmt.Errorf("bounds must have west <= east and south <= north")
	}
	return nil
}

// Save writes settings to path as JSON, or YAML for .yaml/.yml paths
func Save(path string, settings *Settings) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create settings directory: %w", err)
	}

	var (
		data []byte
		err  error
	)
	if isYAML(path) {
		data, err = yaml.Marshal(settings)
	} else {
		data, err = json.MarshalIndent(settings, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("failed to marshal settings: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write settings file: %w", err)
	}
	return nil
}

// SaveSettings writes settings to GetSettingsPath
func SaveSettings(settings *Settings) error {
	return Save(GetSettingsPath(), settings)
}
