package event

import (
	"time"
)

// Payload is the assessment slice of an incoming packet, produced by
// the upstream extraction step. All of its fields replace the event's
// latest values wholesale on every merge.
type Payload struct {
	Cluster      string         `json:"cluster"`
	EventType    string         `json:"event_type"`
	Title        string         `json:"title"`
	Phase        string         `json:"phase"`
	BullishScore float64        `json:"bullish_score"`
	BearishScore float64        `json:"bearish_score"`
	Score        float64        `json:"score"`
	Confidence   string         `json:"confidence"`
	Indicators   map[string]any `json:"indicators"`
	Tripwires    []string       `json:"tripwires"`
	Rationale    []string       `json:"rationale"`
	Sources      []string       `json:"sources"`
}

// HistoryEntry is one append-only aggregate score observation.
type HistoryEntry struct {
	Date  string  `json:"date"`
	Score float64 `json:"score"`
}

// ArticleEntry is one append-only per-article observation. Source is
// the canonical reporter of that packet; Sources are the URLs attached
// to the packet itself, not the event-wide accumulated set.
type ArticleEntry struct {
	Date    string   `json:"date"`
	Title   string   `json:"title"`
	Source  string   `json:"source"`
	Sources []string `json:"sources"`
	Score   float64  `json:"score"`
}

// Event is the deduplicated aggregate record for one real-world
// occurrence. It is created once, mutated in place by every subsequent
// merge, and never deleted by the engine. History and ArticleHistory
// only ever grow; the remaining fields hold the latest assessment.
//
// The struct is not internally synchronized: the caller must serialize
// all create/merge operations against the same fingerprint mapping.
type Event struct {
	Fingerprint     Fingerprint `json:"fingerprint"`
	Cluster         string      `json:"cluster"`
	EventType       string      `json:"event_type"`
	Title           string      `json:"title"`
	CanonicalSource string      `json:"canonical_source"`
	Sources         []string    `json:"sources"`

	// Identity sets frozen at creation; similarity matching compares
	// incoming packets against these even as later merges drift.
	PrimaryEntities []string `json:"primary_entities"`
	Geography       []string `json:"geography"`
	Instruments     []string `json:"instruments"`
	Mechanism       string   `json:"mechanism"`

	Phase      string         `json:"phase"`
	Confidence string         `json:"confidence"`
	Indicators map[string]any `json:"indicators"`
	Tripwires  []string       `json:"tripwires"`
	Rationale  []string       `json:"rationale"`

	Score               float64 `json:"score"`
	BullishScore        float64 `json:"bullish_score"`
	BearishScore        float64 `json:"bearish_score"`
	SustainabilityIndex float64 `json:"sustainability_index"`

	History        []HistoryEntry `json:"history"`
	ArticleHistory []ArticleEntry `json:"article_history"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (e *Event) identityFields() CanonicalFields {
	return CanonicalFields{
		Cluster:         e.Cluster,
		EventType:       e.EventType,
		PrimaryEntities: e.PrimaryEntities,
		Geography:       e.Geography,
		Instruments:     e.Instruments,
		Mechanism:       e.Mechanism,
	}
}
