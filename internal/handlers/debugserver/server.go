// Package debugserver exposes metrics and overlay cache views on a local port.
package debugserver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/goccy/go-json"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"globe-overlay/internal/logger"
	"globe-overlay/internal/metrics"
	"globe-overlay/internal/overlay"
)

// Provider returns the active overlay, or nil
type Provider func() *overlay.Overlay

// Server is the local debug HTTP server
type Server struct {
	current Provider
	echo    *echo.Echo
	http    *http.Server
	url     string
	log     *slog.Logger
}

// NewServer creates a debug server reading from current
func NewServer(current Provider) *Server {
	s := &Server{current: current, log: logger.With("debugserver")}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.JSONSerializer = goccySerializer{}
	// Wails serves the frontend from wails://wails on macOS/Linux
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodOptions},
		AllowHeaders: []string{echo.HeaderContentType, echo.HeaderAccept},
	}))

	e.GET("/metrics", echo.WrapHandler(metrics.Handler()))
	e.GET("/debug/stats", s.handleStats)
	e.GET("/debug/tiles", s.handleTiles)
	e.GET("/debug/labels", s.handleLabels)
	e.GET("/debug/pick", s.handlePick)

	s.echo = e
	return s
}

// Handler returns the router, for tests
func (s *Server) Handler() http.Handler { return s.echo }

// URL returns the base URL once started
func (s *Server) URL() string { return s.url }

// Start listens on a random loopback port and serves in the background
func (s *Server) Start() error {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return fmt.Errorf("failed to start debug server: %w", err)
	}

	port := listener.Addr().(*net.TCPAddr).Port
	s.url = fmt.Sprintf("http://127.0.0.1:%d", port)
	s.log.Info("Debug server started", "url", s.url)

	s.http = &http.Server{Handler: s.echo, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := s.http.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Warn("Debug server stopped", "err", err)
		}
	}()
	return nil
}

// Shutdown stops the server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}

func (s *Server) overlay() (*overlay.Overlay, error) {
	o := s.current()
	if o == nil {
		return nil, echo.NewHTTPError(http.StatusNotFound, "no active overlay")
	}
	return o, nil
}

func (s *Server) handleStats(c echo.Context) error {
	o, err := s.overlay()
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, o.Stats())
}

type tileView struct {
	Key       string    `json:"key"`
	Kind      string    `json:"kind"`
	Dataset   string    `json:"dataset"`
	FetchedAt time.Time `json:"fetchedAt"`
	Pois      int       `json:"pois"`
	Negative  bool      `json:"negative"`
	Schema    string    `json:"schema,omitempty"`
}

func (s *Server) handleTiles(c echo.Context) error {
	o, err := s.overlay()
	if err != nil {
		return err
	}

	records := o.TileRecords()
	out := make([]tileView, 0, len(records))
	for _, rec := range records {
		out = append(out, tileView{
			Key:       rec.Coord.Key(),
			Kind:      rec.Kind.String(),
			Dataset:   rec.Dataset,
			FetchedAt: rec.FetchedAt,
			Pois:      len(rec.Pois),
			Negative:  rec.Negative(),
			Schema:    rec.Schema,
		})
	}
	return c.JSON(http.StatusOK, out)
}

// handleLabels lists live labels; ?visible=true keeps only shown ones and
// ?cached=true lists the label cache instead
func (s *Server) handleLabels(c echo.Context) error {
	o, err := s.overlay()
	if err != nil {
		return err
	}

	if c.QueryParam("cached") == "true" {
		return c.JSON(http.StatusOK, o.LabelRecords())
	}

	live := o.Labels()
	if c.QueryParam("visible") == "true" {
		shown := live[:0:0]
		for _, l := range live {
			if l.Show {
				shown = append(shown, l)
			}
		}
		live = shown
	}
	return c.JSON(http.StatusOK, live)
}

func (s *Server) handlePick(c echo.Context) error {
	o, err := s.overlay()
	if err != nil {
		return err
	}

	x, errX := strconv.ParseFloat(c.QueryParam("x"), 64)
	y, errY := strconv.ParseFloat(c.QueryParam("y"), 64)
	if errX != nil || errY != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "x and y must be numbers")
	}
	return c.JSON(http.StatusOK, o.Pick(x, y))
}

// goccySerializer encodes echo responses with goccy/go-json
type goccySerializer struct{}

func (goccySerializer) Serialize(c echo.Context, i interface{}, indent string) error {
	enc := json.NewEncoder(c.Response())
	if indent != "" {
		enc.SetIndent("", indent)
	}
	return enc.Encode(i)
}

func (goccySerializer) Deserialize(c echo.Context, i interface{}) error {
	if err := json.NewDecoder(c.Request().Body).Decode(i); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error()).SetInternal(err)
	}
	return nil
}
