package event

import (
	"testing"
	"time"
)

func seedEvent(t *testing.T, raw RawFields, title string) *Event {
	t.Helper()

	fields := mustCanonicalize(t, raw)
	payload := Payload{
		Title:        title,
		Phase:        "expansion",
		Score:        55,
		BullishScore: 58,
		BearishScore: 40,
		Confidence:   "medium",
		Sources:      []string{"https://example.com/seed"},
	}
	return CreateEvent(fields, ComputeFingerprint(fields), payload, "2025-09-24")
}

func TestFindSimilarEventMatchesNearDuplicate(t *testing.T) {
	t.Parallel()

	existing := seedEvent(t, baseRawFields(), "Hyperscalers Expand AI Capex Amid Buildout")
	events := map[Fingerprint]*Event{existing.Fingerprint: existing}

	incoming := baseRawFields()
	incoming.Geography = append(incoming.Geography, "canada")
	incoming.Instruments = append(incoming.Instruments, "power_contracts")
	fields := mustCanonicalize(t, incoming)

	match, score, ok := FindSimilarEvent(fields, events, "Hyperscalers Signal AI Capex Discipline")
	if !ok {
		t.Fatalf("expected a similarity match, score %v", score)
	}
	if match != existing {
		t.Fatalf("matched the wrong event")
	}
	if score < similarityThreshold {
		t.Fatalf("score %v below threshold", score)
	}
}

func TestFindSimilarEventRequiresClusterAndEventType(t *testing.T) {
	t.Parallel()

	existing := seedEvent(t, baseRawFields(), "Hyperscalers Expand AI Capex")
	events := map[Fingerprint]*Event{existing.Fingerprint: existing}

	otherCluster := baseRawFields()
	otherCluster.Cluster = "semiconductors"
	if _, _, ok := FindSimilarEvent(mustCanonicalize(t, otherCluster), events, existing.Title); ok {
		t.Fatalf("match must not cross clusters")
	}

	otherType := baseRawFields()
	otherType.EventType = "regulatory_action"
	if _, _, ok := FindSimilarEvent(mustCanonicalize(t, otherType), events, existing.Title); ok {
		t.Fatalf("match must not cross event types")
	}
}

func TestFindSimilarEventMechanismMismatchVetoes(t *testing.T) {
	t.Parallel()

	existing := seedEvent(t, baseRawFields(), "Hyperscalers Expand AI Capex")
	events := map[Fingerprint]*Event{existing.Fingerprint: existing}

	incoming := baseRawFields()
	incoming.Mechanism = "ai_capex_contraction"
	fields := mustCanonicalize(t, incoming)

	if _, score, ok := FindSimilarEvent(fields, events, existing.Title); ok {
		t.Fatalf("mechanism mismatch should keep score below threshold, got %v", score)
	}
}

func TestFindSimilarEventTieBreaksOnRecency(t *testing.T) {
	t.Parallel()

	older := seedEvent(t, baseRawFields(), "Hyperscalers Expand AI Capex")
	newer := seedEvent(t, baseRawFields(), "Hyperscalers Expand AI Capex")

	older.Fingerprint = older.Fingerprint + "-a"
	newer.Fingerprint = newer.Fingerprint + "-b"
	older.UpdatedAt = time.Date(2025, 9, 20, 0, 0, 0, 0, time.UTC)
	newer.UpdatedAt = time.Date(2025, 9, 25, 0, 0, 0, 0, time.UTC)

	events := map[Fingerprint]*Event{
		older.Fingerprint: older,
		newer.Fingerprint: newer,
	}

	match, _, ok := FindSimilarEvent(mustCanonicalize(t, baseRawFields()), events, older.Title)
	if !ok {
		t.Fatalf("expected a match")
	}
	if match != newer {
		t.Fatalf("tie should break toward the most recently updated event")
	}
}

func TestFindSimilarEventEmptyIndex(t *testing.T) {
	t.Parallel()

	if _, _, ok := FindSimilarEvent(mustCanonicalize(t, baseRawFields()), nil, "anything"); ok {
		t.Fatalf("empty index must not match")
	}
}

func TestJaccard(t *testing.T) {
	t.Parallel()

	if got := jaccard([]string{"a", "b"}, []string{"a", "b"}); got != 1 {
		t.Fatalf("identical sets: got %v", got)
	}
	if got := jaccard([]string{"a", "b"}, []string{"b", "c", "d"}); got != 0.25 {
		t.Fatalf("partial overlap: got %v", got)
	}
	if got := jaccard(nil, []string{"a"}); got != 0 {
		t.Fatalf("empty set: got %v", got)
	}
}
