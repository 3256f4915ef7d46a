package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	TileFetchesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "overlay_tile_fetches_total",
		Help: "Tile fetches by dataset and outcome (ok, negative, network_error, decode_error, throttled)",
	}, []string{"dataset", "outcome"})
	TileFetchDurationMs = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "overlay_tile_fetch_duration_ms",
		Help:    "Tile fetch round trip in milliseconds",
		Buckets: []float64{10, 25, 50, 100, 200, 500, 1000, 2000, 5000},
	}, []string{"dataset"})
	TileDecodeSchemaTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "overlay_tile_decode_schema_total",
		Help: "Point tiles decoded by schema version",
	}, []string{"schema"})
	CacheHitsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "overlay_cache_hits_total",
		Help: "Cache hits by cache (tile, label)",
	}, []string{"cache"})
	CacheMissesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "overlay_cache_misses_total",
		Help: "Cache misses by cache (tile, label)",
	}, []string{"cache"})
	CacheEvictionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "overlay_cache_evictions_total",
		Help: "Entries removed by batch trims",
	}, []string{"cache"})
	ViewportCyclesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "overlay_viewport_cycles_total",
		Help: "Viewport refresh cycles by result (changed, unchanged)",
	}, []string{"result"})
	SceneLabelsAddedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "overlay_scene_labels_added_total",
		Help: "Labels added to the scene",
	})
	SceneLabelsRemovedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "overlay_scene_labels_removed_total",
		Help: "Labels swept from the scene",
	})
	CollisionPassesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "overlay_collision_passes_total",
		Help: "Collision resolution passes",
	})
	CollisionPassDurationMs = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "overlay_collision_pass_duration_ms",
		Help:    "Collision pass duration in milliseconds",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 20, 50},
	})
	LabelsHiddenTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "overlay_labels_hidden_total",
		Help: "Labels hidden by collision resolution",
	})
)

func init() {
	prometheus.MustRegister(TileFetchesTotal)
	prometheus.MustRegister(TileFetchDurationMs)
	prometheus.MustRegister(TileDecodeSchemaTotal)
	prometheus.MustRegister(CacheHitsTotal)
	prometheus.MustRegister(CacheMissesTotal)
	prometheus.MustRegister(CacheEvictionsTotal)
	prometheus.MustRegister(ViewportCyclesTotal)
	prometheus.MustRegister(SceneLabelsAddedTotal)
	prometheus.MustRegister(SceneLabelsRemovedTotal)
	prometheus.MustRegister(CollisionPassesTotal)
	prometheus.MustRegister(CollisionPassDurationMs)
	prometheus.MustRegister(LabelsHiddenTotal)
}

// Handler exposes the registered metrics
func Handler() http.Handler { return promhttp.Handler() }
