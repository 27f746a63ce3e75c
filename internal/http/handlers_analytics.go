package http

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"techbiz/internal/analytics"
	"techbiz/internal/auth"
	"techbiz/internal/charts"
	"techbiz/internal/charts/raster"
	"techbiz/internal/charts/svg"
	"techbiz/internal/core"
	"techbiz/internal/log"
)

const (
	contentTypeSVG = "image/svg+xml"
	contentTypePNG = "image/png"
	svgChartWidth  = 640
)

// analyticsResult is one computed analytics view, cached per store version
// and filter.
type analyticsResult struct {
	Summary  analytics.Summary
	Services []string // every service type in the store, for the filter form
	Version  int64
}

// summarize returns the analytics for f at the current store version. Equal
// concurrent requests share one computation.
func (s *Server) summarize(ctx context.Context, f core.Filter) (analyticsResult, error) {
	version, err := s.records.Version(ctx)
	if err != nil {
		return analyticsResult{}, err
	}
	key := strconv.FormatInt(version, 10) + "|" + f.Key()
	if res, ok := s.analyticsCache.Get(key); ok {
		return res, nil
	}

	v, err, _ := s.flight.Do(key, func() (any, error) {
		records, snapVersion, err := s.records.Snapshot(ctx)
		if err != nil {
			return analyticsResult{}, err
		}
		res := analyticsResult{
			Summary:  analytics.Summarize(records, f),
			Services: core.ServiceOptions(records),
			Version:  snapVersion,
		}
		s.analyticsCache.Set(strconv.FormatInt(snapVersion, 10)+"|"+f.Key(), res)
		log.FromContext(ctx).WithComponent(log.ComponentAnalytics).DebugContext(ctx, "Analytics computed",
			log.FieldVersion, snapVersion,
			log.FieldFilter, f.Key(),
			log.FieldCount, res.Summary.Count)
		return res, nil
	})
	if err != nil {
		return analyticsResult{}, err
	}
	return v.(analyticsResult), nil
}

func (s *Server) handleAnalytics(w http.ResponseWriter, r *http.Request) {
	sess, _ := auth.FromContext(r.Context())
	res, err := s.summarize(r.Context(), ParseFilter(r.URL.Query()))
	if err != nil {
		writeServiceError(w, r, err, log.OpRead)
		return
	}
	s.render(w, r, http.StatusOK, "analytics.html", newAnalyticsPage(sess, res))
}

// handleChart serves one series as a standalone image. The file name is the
// series name with an .svg or .png extension.
func (s *Server) handleChart(w http.ResponseWriter, r *http.Request) {
	name, ext, ok := strings.Cut(r.PathValue("file"), ".")
	if !ok {
		errorFragment(http.StatusNotFound, "Unknown chart").Write(w)
		return
	}
	f := ParseFilter(r.URL.Query())
	res, err := s.summarize(r.Context(), f)
	if err != nil {
		writeServiceError(w, r, err, log.OpRead)
		return
	}
	points, ok := res.Summary.Series(name)
	if !ok {
		errorFragment(http.StatusNotFound, "Unknown chart").Write(w)
		return
	}

	var (
		body        []byte
		contentType string
	)
	switch ext {
	case "svg":
		contentType = contentTypeSVG
		body, err = renderSVGChart(name, points)
	case "png":
		contentType = contentTypePNG
		key := fmt.Sprintf("%d|%s|%s", res.Version, f.Key(), name)
		if cached, hit := s.chartCache.Get(key); hit {
			body = cached
			break
		}
		body, err = renderPNGChart(name, points)
		if err == nil {
			s.chartCache.Set(key, body)
		}
	default:
		errorFragment(http.StatusNotFound, "Unknown chart format").Write(w)
		return
	}
	if err != nil {
		log.FromContext(r.Context()).WithComponent(log.ComponentCharts).ErrorContext(r.Context(), "Chart rendering failed",
			log.FieldChart, name,
			log.FieldError, err,
			"error_type", log.ErrorTypeInternal)
		errorFragment(http.StatusInternalServerError, "Error rendering chart").Write(w)
		return
	}

	NewHTMXResponse().Content(contentType, body).Write(w)
}

func renderSVGChart(name string, points []core.LabeledPoint) ([]byte, error) {
	var buf bytes.Buffer
	var err error
	if isPieChart(name) {
		err = svg.RenderPie(&buf, charts.LayoutPie(points, 0))
	} else {
		err = svg.RenderBar(&buf, charts.LayoutBars(points, 0), svgChartWidth)
	}
	return buf.Bytes(), err
}

func renderPNGChart(name string, points []core.LabeledPoint) ([]byte, error) {
	var buf bytes.Buffer
	var err error
	title := analytics.SeriesTitle(name)
	if isPieChart(name) {
		err = raster.Pie(&buf, title, points, 0)
	} else {
		err = raster.Bar(&buf, title, points, 0, 0)
	}
	return buf.Bytes(), err
}
