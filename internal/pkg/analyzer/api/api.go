package api

import "io"

// multipart form param names of the analysis backend
const (
	PrmVideo        = "video"
	PrmAudio        = "audio"
	PrmNote         = "note"
	PrmSessionID    = "session_id"
	PrmUserLocation = "user_location"
	PrmMessage      = "message"
)

// SessionNew is the session_id value that asks the backend to start a new session
const SessionNew = "new"

// UploadData keeps structure for upload method
type UploadData struct {
	Params map[string]string
	Files  map[string]io.Reader
}

// Coordinates is a map point
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Bounds is an explicit map viewport
type Bounds struct {
	North float64 `json:"north"`
	South float64 `json:"south"`
	East  float64 `json:"east"`
	West  float64 `json:"west"`
}

// MapConfig is an optional viewport hint attached to location data
type MapConfig struct {
	Center    *Coordinates `json:"center,omitempty"`
	ZoomLevel int          `json:"zoom_level,omitempty"`
	Bounds    *Bounds      `json:"bounds,omitempty"`
}

// ServiceRecord is a recommended nearby business or resource.
// Everything besides name and address is optional on the wire.
type ServiceRecord struct {
	Name                 string       `json:"name"`
	Address              string       `json:"address,omitempty"`
	Coordinates          *Coordinates `json:"coordinates,omitempty"`
	MapReady             bool         `json:"map_ready,omitempty"`
	Type                 string       `json:"type,omitempty"`
	Phone                string       `json:"phone,omitempty"`
	Distance             string       `json:"distance,omitempty"`
	WaitTime             string       `json:"wait_time,omitempty"`
	PriceRange           string       `json:"price_range,omitempty"`
	Rating               float64      `json:"rating,omitempty"`
	Hours                string       `json:"hours,omitempty"`
	AIAdvice             string       `json:"ai_advice,omitempty"`
	RecommendationReason string       `json:"recommendation_reason,omitempty"`
}

// FinalAssessment is the summary block of an analysis
type FinalAssessment struct {
	OverviewSummary     string   `json:"overview_summary,omitempty"`
	DetailedExplanation string   `json:"detailed_explanation,omitempty"`
	CarsInvolved        int      `json:"cars_involved,omitempty"`
	Severity            string   `json:"severity,omitempty"`
	Damages             []string `json:"damages,omitempty"`
}

// Analysis keeps the assessment of one analyzed video
type Analysis struct {
	FinalAssessment *FinalAssessment `json:"final_assessment,omitempty"`
}

// Recommendations keeps advice blocks and service suggestions
type Recommendations struct {
	ImmediateActions  []string        `json:"immediate_actions,omitempty"`
	GeneralAdvice     []string        `json:"general_advice,omitempty"`
	ComprehensiveTips []string        `json:"comprehensive_tips,omitempty"`
	Services          []ServiceRecord `json:"services,omitempty"`
}

// LocationService groups services of one type with a viewport hint
type LocationService struct {
	Services  []ServiceRecord `json:"services,omitempty"`
	MapConfig *MapConfig      `json:"map_config,omitempty"`
}

// AnalyzeResponse is the POST /analyze payload
type AnalyzeResponse struct {
	SessionID        string                     `json:"session_id"`
	Priority         string                     `json:"priority,omitempty"`
	Analysis         *Analysis                  `json:"analysis,omitempty"`
	Recommendations  *Recommendations           `json:"recommendations,omitempty"`
	LocationServices map[string]LocationService `json:"location_services,omitempty"`
}

// TranscribeResponse is the POST /transcribe payload
type TranscribeResponse struct {
	Transcription string `json:"transcription"`
}

// LocationData is an optional service bundle on a chat reply
type LocationData struct {
	Services  []ServiceRecord `json:"services,omitempty"`
	MapConfig *MapConfig      `json:"map_config,omitempty"`
}

// ChatResponse is the POST /chat payload
type ChatResponse struct {
	Response     string        `json:"response"`
	LocationData *LocationData `json:"location_data,omitempty"`
}
