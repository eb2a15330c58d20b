package present

import (
	"sort"

	"github.com/respondr/respondr/internal/pkg/analyzer/api"
)

// ListedServicesLimit caps the textual service list
const ListedServicesLimit = 4

// default viewport - city level Miami
var defaultCenter = api.Coordinates{Lat: 25.7617, Lng: -80.1918}

const (
	defaultZoom      = 12
	singleMarkerZoom = 14
)

// PriorityClass is a renderable severity classification
type PriorityClass struct {
	Name  string
	Icon  string
	Color string
}

// Classify maps a raw priority value to its icon and color
func Classify(priority string) PriorityClass {
	switch priority {
	case "emergency":
		return PriorityClass{Name: "emergency", Icon: "🚨", Color: "#dc2626"}
	case "high":
		return PriorityClass{Name: "high", Icon: "⚠️", Color: "#f59e0b"}
	case "medium":
		return PriorityClass{Name: "medium", Icon: "📋", Color: "#3b82f6"}
	}
	return PriorityClass{Name: "default", Icon: "✅", Color: "#6b7280"}
}

var markerColors = map[string]string{
	"tire_shop":      "#f59e0b",
	"mechanic":       "#3b82f6",
	"tow_truck":      "#ef4444",
	"auto_body_shop": "#8b5cf6",
	"hospital":       "#dc2626",
}

// MarkerColor returns the pin color for a service type
func MarkerColor(serviceType string) string {
	if c, ok := markerColors[serviceType]; ok {
		return c
	}
	return "#6b7280"
}

// Marker is a plottable map pin
type Marker struct {
	Service api.ServiceRecord
	Color   string
}

// Viewport tells the map renderer where to look
type Viewport struct {
	Center api.Coordinates
	Zoom   int
	Bounds *api.Bounds
}

// AnalysisView is the renderable form of an analysis payload
type AnalysisView struct {
	Priority         PriorityClass
	Summary          string
	Explanation      string
	CarsInvolved     int
	Severity         string
	Damages          []string
	ImmediateActions []string
	GeneralAdvice    []string
	Tips             []string
	Services         []api.ServiceRecord
	Listed           []api.ServiceRecord
	Markers          []Marker
	Viewport         Viewport
}

// ReplyView is the renderable form of a chat reply
type ReplyView struct {
	Text     string
	Services []api.ServiceRecord
	Listed   []api.ServiceRecord
	Markers  []Marker
	Viewport *Viewport
}

// BuildAnalysisView maps a raw analysis payload into a renderable view.
// Absent optional fields produce defaults, never an error.
func BuildAnalysisView(r *api.AnalyzeResponse) AnalysisView {
	res := AnalysisView{}
	if r == nil {
		res.Priority = Classify("")
		res.Viewport = computeViewport(nil, nil)
		return res
	}
	res.Priority = Classify(r.Priority)
	if a := r.Analysis; a != nil && a.FinalAssessment != nil {
		fa := a.FinalAssessment
		res.Summary = fa.OverviewSummary
		res.Explanation = fa.DetailedExplanation
		res.CarsInvolved = fa.CarsInvolved
		res.Severity = fa.Severity
		res.Damages = fa.Damages
	}
	var cfg *api.MapConfig
	if rec := r.Recommendations; rec != nil {
		res.ImmediateActions = rec.ImmediateActions
		res.GeneralAdvice = rec.GeneralAdvice
		res.Tips = rec.ComprehensiveTips
		res.Services = append(res.Services, rec.Services...)
	}
	for _, tp := range sortedKeys(r.LocationServices) {
		ls := r.LocationServices[tp]
		res.Services = append(res.Services, ls.Services...)
		if cfg == nil {
			cfg = ls.MapConfig
		}
	}
	res.Listed = limitServices(res.Services)
	res.Markers = buildMarkers(res.Services)
	res.Viewport = computeViewport(cfg, res.Markers)
	return res
}

// BuildReplyView maps a raw chat payload into a renderable view
func BuildReplyView(r *api.ChatResponse) ReplyView {
	res := ReplyView{}
	if r == nil {
		return res
	}
	res.Text = r.Response
	if ld := r.LocationData; ld != nil {
		res.Services = ld.Services
		res.Listed = limitServices(ld.Services)
		res.Markers = buildMarkers(ld.Services)
		vp := computeViewport(ld.MapConfig, res.Markers)
		res.Viewport = &vp
	}
	return res
}

// PlottableServices filters records allowed on the map - a service without
// coordinates or not map ready stays in the textual list only
func PlottableServices(services []api.ServiceRecord) []api.ServiceRecord {
	var res []api.ServiceRecord
	for _, s := range services {
		if s.MapReady && s.Coordinates != nil {
			res = append(res, s)
		}
	}
	return res
}

func buildMarkers(services []api.ServiceRecord) []Marker {
	var res []Marker
	for _, s := range PlottableServices(services) {
		res = append(res, Marker{Service: s, Color: MarkerColor(s.Type)})
	}
	return res
}

// computeViewport applies the hint precedence: explicit bounds, then a single
// plotted service centered, then bounds over all plotted markers, then the
// city default
func computeViewport(cfg *api.MapConfig, markers []Marker) Viewport {
	if cfg != nil && cfg.Bounds != nil {
		return Viewport{Bounds: cfg.Bounds, Center: boundsCenter(cfg.Bounds), Zoom: zoomOr(cfg, defaultZoom)}
	}
	if len(markers) == 1 {
		return Viewport{Center: *markers[0].Service.Coordinates, Zoom: singleMarkerZoom}
	}
	if len(markers) > 1 {
		b := fitBounds(markers)
		return Viewport{Bounds: b, Center: boundsCenter(b), Zoom: defaultZoom}
	}
	if cfg != nil && cfg.Center != nil {
		return Viewport{Center: *cfg.Center, Zoom: zoomOr(cfg, defaultZoom)}
	}
	return Viewport{Center: defaultCenter, Zoom: defaultZoom}
}

func zoomOr(cfg *api.MapConfig, def int) int {
	if cfg != nil && cfg.ZoomLevel > 0 {
		return cfg.ZoomLevel
	}
	return def
}

func fitBounds(markers []Marker) *api.Bounds {
	c := markers[0].Service.Coordinates
	b := &api.Bounds{North: c.Lat, South: c.Lat, East: c.Lng, West: c.Lng}
	for _, m := range markers[1:] {
		c := m.Service.Coordinates
		if c.Lat > b.North {
			b.North = c.Lat
		}
		if c.Lat < b.South {
			b.South = c.Lat
		}
		if c.Lng > b.East {
			b.East = c.Lng
		}
		if c.Lng < b.West {
			b.West = c.Lng
		}
	}
	return b
}

func boundsCenter(b *api.Bounds) api.Coordinates {
	return api.Coordinates{Lat: (b.North + b.South) / 2, Lng: (b.East + b.West) / 2}
}

func limitServices(services []api.ServiceRecord) []api.ServiceRecord {
	if len(services) > ListedServicesLimit {
		return services[:ListedServicesLimit]
	}
	return services
}

func sortedKeys(m map[string]api.LocationService) []string {
	res := make([]string, 0, len(m))
	for k := range m {
		res = append(res, k)
	}
	sort.Strings(res)
	return res
}
