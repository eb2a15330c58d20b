package phase

// Phase represents analysis session phase
type Phase int

const (
	// Capturing - user records or selects a video
	Capturing Phase = iota + 1
	// Analyzing - video submitted, waiting for backend
	Analyzing
	// Chatting - follow-up conversation
	Chatting
	// LimitReached - chat turn cap hit, only reset available
	LimitReached
)

var phaseName = map[Phase]string{Capturing: "CAPTURING", Analyzing: "ANALYZING",
	Chatting: "CHATTING", LimitReached: "LIMIT_REACHED"}

func (ph Phase) String() string {
	return phaseName[ph]
}
