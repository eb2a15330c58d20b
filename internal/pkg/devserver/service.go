package devserver

import (
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/facebookgo/grace/gracehttp"
	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"github.com/pkg/errors"

	"github.com/airenas/go-app/pkg/goapp"

	"github.com/labstack/echo-contrib/prometheus"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/respondr/respondr/internal/pkg/analyzer/api"
	"github.com/respondr/respondr/internal/pkg/utils"
)

// prmFail lets a client force an error response for failure path testing
const prmFail = "fail"

// Data keeps data required for service work
type Data struct {
	Port     int
	Sessions *cache.Cache
}

// sessionData is what the dev backend remembers about one analysis
type sessionData struct {
	UserLocation string
	Note         string
	Created      time.Time
}

// NewSessionCache creates the TTL session store
func NewSessionCache() *cache.Cache {
	return cache.New(time.Hour, 10*time.Minute)
}

// StartWebServer starts echo web service
func StartWebServer(data *Data) error {
	goapp.Log.Info().Msgf("Starting HTTP respondr dev backend at %d", data.Port)
	if err := validate(data); err != nil {
		return err
	}

	portStr := strconv.Itoa(data.Port)

	e := initRoutes(data)

	e.Server.Addr = ":" + portStr
	e.Server.ReadHeaderTimeout = 5 * time.Second
	e.Server.ReadTimeout = 180 * time.Second
	e.Server.WriteTimeout = 30 * time.Second

	gracehttp.SetLogger(log.New(goapp.Log, "", 0))

	return gracehttp.Serve(e.Server)
}

func validate(data *Data) error {
	if data.Sessions == nil {
		return errors.New("no session cache")
	}
	return nil
}

var promMdlw *prometheus.Prometheus

func init() {
	promMdlw = prometheus.NewPrometheus("respondr_dev", nil)
}

func initRoutes(data *Data) *echo.Echo {
	e := echo.New()
	e.Use(middleware.Logger())
	promMdlw.Use(e)

	e.POST("/analyze", analyze(data))
	e.POST("/transcribe", transcribe(data))
	e.POST("/chat", chat(data))
	e.GET("/live", live(data))

	goapp.Log.Info().Msg("Routes:")
	for _, r := range e.Routes() {
		goapp.Log.Info().Msgf("  %s %s", r.Method, r.Path)
	}
	return e
}

func live(data *Data) func(echo.Context) error {
	return func(c echo.Context) error {
		return c.JSONBlob(http.StatusOK, []byte(`{"service":"OK"}`))
	}
}

func analyze(data *Data) func(echo.Context) error {
	return func(c echo.Context) error {
		defer goapp.Estimate("analyze method")()

		fh, err := c.FormFile(api.PrmVideo)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "no video file")
		}
		if fh.Header.Get("Content-Type") != "" && !utils.VideoMime(fh.Header.Get("Content-Type")) &&
			fh.Header.Get("Content-Type") != "application/octet-stream" {
			return echo.NewHTTPError(http.StatusBadRequest, "not a video")
		}

		if utils.ParamTrue(c.FormValue(prmFail)) {
			return echo.NewHTTPError(http.StatusInternalServerError, "simulated failure")
		}

		sd := sessionData{Created: time.Now()}
		sd.Note = c.FormValue(api.PrmNote)
		sd.UserLocation = c.FormValue(api.PrmUserLocation)
		if sd.UserLocation == "" {
			sd.UserLocation = "Miami, FL"
		}

		id := c.FormValue(api.PrmSessionID)
		if id == "" || id == api.SessionNew {
			id = uuid.New().String()
		}
		data.Sessions.SetDefault(id, &sd)
		goapp.Log.Info().Str("ID", id).Int64("size", fh.Size).Msg("analyze request")

		return c.JSON(http.StatusOK, sampleAnalysis(id, fh.Size))
	}
}

func transcribe(data *Data) func(echo.Context) error {
	return func(c echo.Context) error {
		defer goapp.Estimate("transcribe method")()

		fh, err := c.FormFile(api.PrmAudio)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "no audio file")
		}
		goapp.Log.Info().Int64("size", fh.Size).Msg("transcribe request")
		return c.JSON(http.StatusOK, api.TranscribeResponse{
			Transcription: "Two cars collided at the intersection, both drivers are okay."})
	}
}

func chat(data *Data) func(echo.Context) error {
	return func(c echo.Context) error {
		defer goapp.Estimate("chat method")()

		id := c.FormValue(api.PrmSessionID)
		if id == "" {
			return echo.NewHTTPError(http.StatusBadRequest, "no session_id")
		}
		msg := c.FormValue(api.PrmMessage)
		if msg == "" {
			return echo.NewHTTPError(http.StatusBadRequest, "no message")
		}
		if _, ok := data.Sessions.Get(id); !ok {
			return echo.NewHTTPError(http.StatusNotFound, fmt.Sprintf("unknown session: %s", id))
		}
		if utils.ParamTrue(c.FormValue(prmFail)) {
			return echo.NewHTTPError(http.StatusInternalServerError, "simulated failure")
		}
		goapp.Log.Info().Str("ID", id).Msg("chat request")
		return c.JSON(http.StatusOK, sampleReply(msg))
	}
}

func sampleAnalysis(id string, size int64) *api.AnalyzeResponse {
	return &api.AnalyzeResponse{
		SessionID: id,
		Priority:  "high",
		Analysis: &api.Analysis{FinalAssessment: &api.FinalAssessment{
			OverviewSummary:     "Moderate two-vehicle collision with visible front-end damage.",
			DetailedExplanation: fmt.Sprintf("Reviewed %d bytes of footage. Both vehicles sustained damage consistent with a low-speed impact.", size),
			CarsInvolved:        2,
			Severity:            "moderate",
			Damages:             []string{"front bumper", "left headlight"},
		}},
		Recommendations: &api.Recommendations{
			ImmediateActions: []string{"Move vehicles out of traffic if drivable", "Exchange insurance information"},
			GeneralAdvice:    []string{"Photograph all damage before moving the cars"},
			ComprehensiveTips: []string{
				"File the insurance claim within 24 hours",
				"Request a copy of the police report"},
			Services: sampleServices(),
		},
		LocationServices: map[string]api.LocationService{
			"mechanic": {Services: sampleServices(), MapConfig: &api.MapConfig{
				Center: &api.Coordinates{Lat: 25.7617, Lng: -80.1918}, ZoomLevel: 12}},
		},
	}
}

func sampleReply(msg string) *api.ChatResponse {
	res := &api.ChatResponse{Response: "I can help with that. Anything else about the accident?"}
	lower := strings.ToLower(msg)
	for _, kw := range []string{"mechanic", "tow", "repair", "shop", "hospital"} {
		if strings.Contains(lower, kw) {
			res.Response = "Here are nearby options that can help."
			res.LocationData = &api.LocationData{Services: sampleServices()}
			break
		}
	}
	return res
}

func sampleServices() []api.ServiceRecord {
	return []api.ServiceRecord{
		{Name: "Downtown Auto Care", Address: "150 SE 2nd Ave, Miami, FL",
			Coordinates: &api.Coordinates{Lat: 25.7722, Lng: -80.1893}, MapReady: true,
			Type: "mechanic", Phone: "+1 305-555-0140", Distance: "0.8 mi", Rating: 4.6,
			Hours: "8:00-18:00", AIAdvice: "Open now and handles insurance estimates on site."},
		{Name: "Bayside Towing", Address: "401 Biscayne Blvd, Miami, FL",
			Coordinates: &api.Coordinates{Lat: 25.7785, Lng: -80.1870}, MapReady: true,
			Type: "tow_truck", Phone: "+1 305-555-0188", Distance: "1.2 mi", Rating: 4.2,
			RecommendationReason: "Fastest average response time in the area."},
		{Name: "Little Havana Body Shop", Address: "1100 SW 8th St, Miami, FL",
			Type: "auto_body_shop", Phone: "+1 305-555-0102", Distance: "2.4 mi", Rating: 4.8},
	}
}
