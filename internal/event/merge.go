package event

import (
	"math"

	"github.com/jd-d/ai-monitor/internal/globaltime"
)

// ComputeSustainabilityIndex maps a (bullish, bearish) score pair onto
// a 0..100 scale: 50 is balanced, each net sentiment point moves the
// index half a point. Monotonically non-decreasing in bullish,
// non-increasing in bearish, and stable for a given pair.
func ComputeSustainabilityIndex(bullish, bearish float64) float64 {
	index := 50 + (bullish-bearish)/2
	if index < 0 {
		index = 0
	}
	if index > 100 {
		index = 100
	}
	return math.Round(index*100) / 100
}

// CreateEvent builds a new aggregate from the first packet observed for
// a fingerprint. The event's source set starts as the packet's sources
// plus its canonical reporter, and both history logs open with a single
// entry for this packet.
func CreateEvent(fields CanonicalFields, fingerprint Fingerprint, payload Payload, date string) *Event {
	now := globaltime.UTC()
	sources := accumulateSources(nil, payload.Sources, fields.CanonicalSource)

	return &Event{
		Fingerprint:     fingerprint,
		Cluster:         fields.Cluster,
		EventType:       fields.EventType,
		Title:           payload.Title,
		CanonicalSource: fields.CanonicalSource,
		Sources:         sources,

		PrimaryEntities: fields.PrimaryEntities,
		Geography:       fields.Geography,
		Instruments:     fields.Instruments,
		Mechanism:       fields.Mechanism,

		Phase:      payload.Phase,
		Confidence: payload.Confidence,
		Indicators: payload.Indicators,
		Tripwires:  payload.Tripwires,
		Rationale:  payload.Rationale,

		Score:               payload.Score,
		BullishScore:        payload.BullishScore,
		BearishScore:        payload.BearishScore,
		SustainabilityIndex: ComputeSustainabilityIndex(payload.BullishScore, payload.BearishScore),

		History: []HistoryEntry{{Date: date, Score: payload.Score}},
		ArticleHistory: []ArticleEntry{{
			Date:    date,
			Title:   payload.Title,
			Source:  fields.CanonicalSource,
			Sources: normalizedSourceList(payload.Sources),
			Score:   payload.Score,
		}},

		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Merge folds a later packet into the event. Latest-value fields are
// overwritten wholesale, the source set grows by union, and one entry
// is appended to each history log. Identity fields (fingerprint,
// cluster, event type) never change, even when the matched packet's
// geography or instruments drifted.
//
// Merging the same payload twice appends two history entries; duplicate
// suppression is the caller's concern.
func (e *Event) Merge(payload Payload, fields CanonicalFields, _ Fingerprint, date string) {
	e.Title = payload.Title
	e.CanonicalSource = fields.CanonicalSource
	e.Sources = accumulateSources(e.Sources, payload.Sources, fields.CanonicalSource)

	e.Phase = payload.Phase
	e.Confidence = payload.Confidence
	e.Indicators = payload.Indicators
	e.Tripwires = payload.Tripwires
	e.Rationale = payload.Rationale

	e.Score = payload.Score
	e.BullishScore = payload.BullishScore
	e.BearishScore = payload.BearishScore
	e.SustainabilityIndex = ComputeSustainabilityIndex(payload.BullishScore, payload.BearishScore)

	e.History = append(e.History, HistoryEntry{Date: date, Score: payload.Score})
	e.ArticleHistory = append(e.ArticleHistory, ArticleEntry{
		Date:    date,
		Title:   payload.Title,
		Source:  fields.CanonicalSource,
		Sources: normalizedSourceList(payload.Sources),
		Score:   payload.Score,
	})

	e.UpdatedAt = globaltime.UTC()
}

// accumulateSources unions the packet's sources and canonical reporter
// into the existing set, preserving first-seen order.
func accumulateSources(existing, packetSources []string, canonicalSource string) []string {
	seen := make(map[string]struct{}, len(existing)+len(packetSources)+1)
	merged := make([]string, 0, len(existing)+len(packetSources)+1)

	add := func(raw string) {
		normalized := NormalizeSourceURL(raw)
		if normalized == "" {
			return
		}
		if _, dup := seen[normalized]; dup {
			return
		}
		seen[normalized] = struct{}{}
		merged = append(merged, normalized)
	}

	for _, source := range existing {
		add(source)
	}
	for _, source := range packetSources {
		add(source)
	}
	add(canonicalSource)

	return merged
}

func normalizedSourceList(sources []string) []string {
	if len(sources) == 0 {
		return nil
	}
	return accumulateSources(nil, sources, "")
}
