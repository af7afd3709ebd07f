package event

import (
	"strings"
	"unicode"
)

// Similarity weighting. Entities dominate because they most strongly
// identify "the same thing is happening"; geography and instruments are
// secondary; mechanism acts as a near-veto through the mismatch
// multiplier; the title is a weak tiebreaker. The 0.70 threshold and
// these weights are the tunables of the matcher.
const (
	similarityThreshold       = 0.70
	entityOverlapWeight       = 0.45
	geographyOverlapWeight    = 0.15
	instrumentsOverlapWeight  = 0.15
	mechanismMatchWeight      = 0.15
	titleOverlapWeight        = 0.10
	mechanismMismatchMultiple = 0.5
)

// FindSimilarEvent scans the fingerprint mapping for the best
// near-duplicate of the new fields. Candidates must share cluster and
// event type; the best candidate is returned only when its combined
// score reaches the decision threshold. Ties go to the most recently
// touched event, the likelier live thread of reporting.
func FindSimilarEvent(fields CanonicalFields, eventsByFingerprint map[Fingerprint]*Event, title string) (*Event, float64, bool) {
	var best *Event
	bestScore := -1.0

	for _, candidate := range eventsByFingerprint {
		if candidate == nil {
			continue
		}
		if candidate.Cluster != fields.Cluster || candidate.EventType != fields.EventType {
			continue
		}

		score := similarityScore(fields, candidate, title)
		if score > bestScore || (score == bestScore && best != nil && candidate.UpdatedAt.After(best.UpdatedAt)) {
			best = candidate
			bestScore = score
		}
	}

	if best == nil || bestScore < similarityThreshold {
		return nil, 0, false
	}
	return best, bestScore, true
}

// similarityScore combines the per-field signals into [0, 1]. The
// candidate's identity sets come from its creation-time canonical
// fields, which the engine reconstructs from the event record.
func similarityScore(fields CanonicalFields, candidate *Event, title string) float64 {
	candidateFields := candidate.identityFields()

	score := entityOverlapWeight*jaccard(fields.PrimaryEntities, candidateFields.PrimaryEntities) +
		geographyOverlapWeight*jaccard(fields.Geography, candidateFields.Geography) +
		instrumentsOverlapWeight*jaccard(fields.Instruments, candidateFields.Instruments)

	if fields.Mechanism == candidateFields.Mechanism {
		score += mechanismMatchWeight
	}

	if title != "" && candidate.Title != "" {
		score += titleOverlapWeight * titleTokenJaccard(title, candidate.Title)
	}

	if fields.Mechanism != candidateFields.Mechanism {
		score *= mechanismMismatchMultiple
	}

	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}

func jaccard(left, right []string) float64 {
	if len(left) == 0 || len(right) == 0 {
		return 0
	}

	leftSet := make(map[string]struct{}, len(left))
	for _, value := range left {
		leftSet[value] = struct{}{}
	}

	intersection := 0
	rightSet := make(map[string]struct{}, len(right))
	for _, value := range right {
		if _, dup := rightSet[value]; dup {
			continue
		}
		rightSet[value] = struct{}{}
		if _, ok := leftSet[value]; ok {
			intersection++
		}
	}

	union := len(leftSet) + len(rightSet) - intersection
	if union <= 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

func titleTokenJaccard(left, right string) float64 {
	leftSet := tokenSet(left)
	rightSet := tokenSet(right)
	if len(leftSet) == 0 || len(rightSet) == 0 {
		return 0
	}

	intersection := 0
	for token := range leftSet {
		if _, ok := rightSet[token]; ok {
			intersection++
		}
	}
	if intersection == 0 {
		return 0
	}

	union := len(leftSet) + len(rightSet) - intersection
	if union <= 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

func tokenSet(text string) map[string]struct{} {
	normalized := normalizeTag(text)
	if normalized == "" {
		return nil
	}

	parts := strings.FieldsFunc(normalized, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
	set := make(map[string]struct{}, len(parts))
	for _, part := range parts {
		if part == "" {
			continue
		}
		set[part] = struct{}{}
	}
	return set
}
