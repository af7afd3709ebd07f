package event

import (
	"slices"
	"testing"
)

func TestComputeSustainabilityIndex(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name     string
		bullish  float64
		bearish  float64
		expected float64
	}{
		{name: "balanced", bullish: 50, bearish: 50, expected: 50},
		{name: "net bullish", bullish: 60, bearish: 46, expected: 57},
		{name: "net bearish", bullish: 30, bearish: 80, expected: 25},
		{name: "clamped high", bullish: 100, bearish: 0, expected: 100},
		{name: "clamped low", bullish: 0, bearish: 100, expected: 0},
		{name: "rounded", bullish: 50.333, bearish: 50, expected: 50.17},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			if got := ComputeSustainabilityIndex(tc.bullish, tc.bearish); got != tc.expected {
				t.Fatalf("index(%v, %v) = %v, want %v", tc.bullish, tc.bearish, got, tc.expected)
			}
		})
	}
}

func TestSustainabilityIndexMonotonic(t *testing.T) {
	t.Parallel()

	for bearish := 0.0; bearish <= 100; bearish += 25 {
		previous := -1.0
		for bullish := 0.0; bullish <= 100; bullish += 10 {
			index := ComputeSustainabilityIndex(bullish, bearish)
			if index < previous {
				t.Fatalf("index decreased as bullish rose: bullish=%v bearish=%v", bullish, bearish)
			}
			previous = index
		}
	}
}

func TestCreateEventSeedsHistoryAndSources(t *testing.T) {
	t.Parallel()

	fields := mustCanonicalize(t, baseRawFields())
	payload := Payload{
		Title:        "Hyperscalers Expand AI Capex",
		Phase:        "expansion",
		Score:        55,
		BullishScore: 58,
		BearishScore: 40,
		Confidence:   "medium",
		Sources:      []string{"https://example.com/initial"},
	}

	created := CreateEvent(fields, ComputeFingerprint(fields), payload, "2025-09-24")

	if created.SustainabilityIndex != ComputeSustainabilityIndex(58, 40) {
		t.Fatalf("sustainability index not derived from scores: %v", created.SustainabilityIndex)
	}
	if len(created.History) != 1 || created.History[0].Date != "2025-09-24" || created.History[0].Score != 55 {
		t.Fatalf("unexpected history: %+v", created.History)
	}
	if len(created.ArticleHistory) != 1 {
		t.Fatalf("unexpected article history: %+v", created.ArticleHistory)
	}
	if created.ArticleHistory[0].Source != "https://newmark.com" {
		t.Fatalf("article entry must carry the canonical source: %q", created.ArticleHistory[0].Source)
	}
	if !slices.Contains(created.Sources, "https://newmark.com") {
		t.Fatalf("canonical source missing from source set: %v", created.Sources)
	}
	if !slices.Contains(created.Sources, "https://example.com/initial") {
		t.Fatalf("packet source missing from source set: %v", created.Sources)
	}
	if created.CreatedAt.IsZero() || !created.CreatedAt.Equal(created.UpdatedAt) {
		t.Fatalf("creation timestamps not initialized: created=%v updated=%v", created.CreatedAt, created.UpdatedAt)
	}
}

func TestMergeOverwritesLatestAndAppendsHistory(t *testing.T) {
	t.Parallel()

	fields := mustCanonicalize(t, baseRawFields())
	created := CreateEvent(fields, ComputeFingerprint(fields), Payload{
		Title:        "Hyperscalers Expand AI Capex",
		Phase:        "expansion",
		Score:        55,
		BullishScore: 58,
		BearishScore: 40,
		Confidence:   "medium",
		Sources:      []string{"https://example.com/initial"},
	}, "2025-09-24")

	followUp := baseRawFields()
	followUp.CanonicalSource = "https://reuters.com"
	mergedFields := mustCanonicalize(t, followUp)

	created.Merge(Payload{
		Title:        "Hyperscalers Signal AI Capex Discipline",
		Phase:        "expansion",
		Score:        58,
		BullishScore: 60,
		BearishScore: 46,
		Confidence:   "high",
		Sources:      []string{"https://reuters.com/technology/example"},
	}, mergedFields, created.Fingerprint, "2025-09-25")

	if created.CanonicalSource != "https://reuters.com" {
		t.Fatalf("canonical source should follow the latest packet: %q", created.CanonicalSource)
	}
	if created.Title != "Hyperscalers Signal AI Capex Discipline" {
		t.Fatalf("title not overwritten: %q", created.Title)
	}
	if created.Confidence != "high" {
		t.Fatalf("confidence not overwritten: %q", created.Confidence)
	}
	if created.SustainabilityIndex != ComputeSustainabilityIndex(60, 46) {
		t.Fatalf("sustainability index not recomputed: %v", created.SustainabilityIndex)
	}

	for _, source := range []string{
		"https://example.com/initial",
		"https://newmark.com",
		"https://reuters.com/technology/example",
		"https://reuters.com",
	} {
		if !slices.Contains(created.Sources, source) {
			t.Fatalf("source set missing %q: %v", source, created.Sources)
		}
	}

	if len(created.History) != 2 {
		t.Fatalf("expected 2 history entries, got %d", len(created.History))
	}
	last := created.History[len(created.History)-1]
	if last.Date != "2025-09-25" || last.Score != 58 {
		t.Fatalf("unexpected final history entry: %+v", last)
	}

	if len(created.ArticleHistory) != 2 {
		t.Fatalf("expected 2 article entries, got %d", len(created.ArticleHistory))
	}
	lastArticle := created.ArticleHistory[len(created.ArticleHistory)-1]
	if lastArticle.Source != "https://reuters.com" {
		t.Fatalf("article entry must carry the merged canonical source: %q", lastArticle.Source)
	}
	if !slices.Contains(lastArticle.Sources, "https://reuters.com/technology/example") {
		t.Fatalf("article entry missing packet sources: %v", lastArticle.Sources)
	}

	if !created.UpdatedAt.After(created.CreatedAt) && !created.UpdatedAt.Equal(created.CreatedAt) {
		t.Fatalf("updated_at moved backwards")
	}
}

func TestMergeSamePayloadTwiceAppendsTwice(t *testing.T) {
	t.Parallel()

	fields := mustCanonicalize(t, baseRawFields())
	payload := Payload{
		Title:        "Hyperscalers Expand AI Capex",
		Phase:        "expansion",
		Score:        55,
		BullishScore: 58,
		BearishScore: 40,
		Confidence:   "medium",
		Sources:      []string{"https://example.com/initial"},
	}
	created := CreateEvent(fields, ComputeFingerprint(fields), payload, "2025-09-24")

	created.Merge(payload, fields, created.Fingerprint, "2025-09-24")
	created.Merge(payload, fields, created.Fingerprint, "2025-09-24")

	if len(created.History) != 3 {
		t.Fatalf("expected 3 history entries, got %d", len(created.History))
	}
	if len(created.Sources) != 2 {
		t.Fatalf("source set should stay deduplicated: %v", created.Sources)
	}
}
