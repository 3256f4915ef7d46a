package overlay

import (
	"fmt"

	"globe-overlay/internal/collision"
	"globe-overlay/internal/common"
	"globe-overlay/internal/config"
	"globe-overlay/internal/fetch"
	"globe-overlay/internal/labels"
	"globe-overlay/internal/schedule"
	"globe-overlay/internal/viewport"
)

// OptionsFromSettings builds overlay options from validated settings
func OptionsFromSettings(s *config.Settings) (Options, error) {
	datasets := make([]*fetch.Dataset, 0, len(s.Datasets))
	for _, ds := range s.Datasets {
		kind, err := common.ParseDatasetKind(ds.Kind)
		if err != nil {
			return Options{}, fmt.Errorf("dataset %s: %w", ds.Name, err)
		}
		d := &fetch.Dataset{
			Name:       ds.Name,
			Kind:       kind,
			URL:        ds.URL,
			Subdomains: ds.Subdomains,
			MinZoom:    ds.MinZoom,
			MaxZoom:    ds.MaxZoom,
		}
		if b := ds.Bounds; b != nil {
			d.Bounds = common.NewBound(b.West, b.South, b.East, b.North)
		}
		datasets = append(datasets, d)
	}

	var padding collision.Padding
	copy(padding[:], s.CollisionPadding)

	ls := s.LabelStyle
	horizontal, ok := horizontalOrigins[ls.HorizontalOrigin]
	if !ok {
		return Options{}, fmt.Errorf("invalid labelStyle.horizontalOrigin %q", ls.HorizontalOrigin)
	}
	vertical, ok := verticalOrigins[ls.VerticalOrigin]
	if !ok {
		return Options{}, fmt.Errorf("invalid labelStyle.verticalOrigin %q", ls.VerticalOrigin)
	}
	cacheCfg := s.Cache

	return Options{
		Datasets: datasets,
		Labels: labels.Config{
			Defaults: labels.Style{
				Label: labels.LabelStyle{
					FontSize:        ls.FontSize,
					FontFamily:      ls.FontFamily,
					Bold:            ls.Bold,
					Italic:          ls.Italic,
					FillColor:       ls.FillColor,
					OutlineColor:    ls.OutlineColor,
					OutlineWidth:    ls.OutlineWidth,
					ShowBackground:  ls.ShowBackground,
					BackgroundColor: ls.BackgroundColor,
					Scale:           ls.Scale,
					Horizontal:      horizontal,
					Vertical:        vertical,
				},
				Icon: labels.IconStyle{
					Image: s.IconStyle.Image,
					Size:  s.IconStyle.Size,
					Scale: s.IconStyle.Scale,
				},
			},
			ServerFirstStyle: s.ServerFirstStyle,
			IconTemplate:     s.IconStyle.ImageTemplate,
		},
		Cache: &cacheCfg,
		Viewport: viewport.Config{
			PollInterval:        s.Schedule.PollInterval.Std(),
			MaxWait:             s.Schedule.MaxQuiescenceWait.Std(),
			MaxPendingRender:    s.Quiescence.MaxPendingRender,
			MaxHighPriorityLoad: s.Quiescence.MaxHighPriorityLoad,
			MaxZoomBands:        s.Schedule.MaxZoomBands,
		},
		Schedule: schedule.Config{
			RefreshInterval:   s.Schedule.RefreshInterval.Std(),
			CollisionInterval: s.Schedule.CollisionInterval.Std(),
			BootstrapInterval: s.Schedule.BootstrapInterval.Std(),
			BootstrapTicks:    s.Schedule.BootstrapTicks,
			TrailingCollision: s.Schedule.TrailingCollision.Std(),
			TrailingRefresh:   s.Schedule.TrailingRefresh.Std(),
		},
		Fetch: fetch.Config{
			MaxConcurrent: int64(s.Fetch.MaxConcurrent),
			Timeout:       s.Fetch.Timeout.Std(),
			UserAgent:     s.Fetch.UserAgent,
		},
		Padding:     padding,
		AutoCollide: s.AutoCollide,
	}, nil
}

var horizontalOrigins = map[string]labels.HorizontalOrigin{
	"":       labels.HorizontalCenter,
	"center": labels.HorizontalCenter,
	"left":   labels.HorizontalLeft,
	"right":  labels.HorizontalRight,
}

var verticalOrigins = map[string]labels.VerticalOrigin{
	"":       labels.VerticalCenter,
	"center": labels.VerticalCenter,
	"bottom": labels.VerticalBottom,
	"top":    labels.VerticalTop,
}
