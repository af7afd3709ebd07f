package event

import (
	"errors"
	"testing"
)

func baseRawFields() RawFields {
	return RawFields{
		Cluster:         "ai_capex",
		EventType:       "investment_update",
		PrimaryEntities: []string{"Hyperscalers", "Microsoft"},
		Geography:       []string{"global", "united_states"},
		Instruments:     []string{"data_centers", "infrastructure"},
		Mechanism:       "ai_capex_expansion",
		CanonicalSource: "newmark.com",
	}
}

func TestCanonicalizeNormalizesSetFields(t *testing.T) {
	t.Parallel()

	raw := baseRawFields()
	raw.PrimaryEntities = []string{"  Microsoft ", "microsoft", "Hyperscalers"}
	raw.Geography = []string{"United_States", "GLOBAL", "global"}

	fields, err := CanonicalizeFingerprintFields(raw)
	if err != nil {
		t.Fatalf("canonicalize failed: %v", err)
	}

	if len(fields.PrimaryEntities) != 2 {
		t.Fatalf("expected 2 entities after dedup, got %v", fields.PrimaryEntities)
	}
	if fields.PrimaryEntities[0] != "hyperscalers" || fields.PrimaryEntities[1] != "microsoft" {
		t.Fatalf("entities not sorted case-folded: %v", fields.PrimaryEntities)
	}
	if len(fields.Geography) != 2 || fields.Geography[0] != "global" {
		t.Fatalf("geography not normalized: %v", fields.Geography)
	}
}

func TestCanonicalizeLiftsBareDomainToURL(t *testing.T) {
	t.Parallel()

	fields, err := CanonicalizeFingerprintFields(baseRawFields())
	if err != nil {
		t.Fatalf("canonicalize failed: %v", err)
	}
	if fields.CanonicalSource != "https://newmark.com" {
		t.Fatalf("unexpected canonical source: %q", fields.CanonicalSource)
	}
}

func TestCanonicalizeMissingRequiredField(t *testing.T) {
	t.Parallel()

	raw := baseRawFields()
	raw.Mechanism = "   "

	_, err := CanonicalizeFingerprintFields(raw)
	if err == nil {
		t.Fatalf("expected validation error for blank mechanism")
	}

	var validationErr *ValidationError
	if !errors.As(err, &validationErr) {
		t.Fatalf("expected *ValidationError, got %T (%v)", err, err)
	}
	if validationErr.Field != "mechanism" {
		t.Fatalf("unexpected field in validation error: %q", validationErr.Field)
	}
}

func TestCanonicalizeEmptyEntitySetFails(t *testing.T) {
	t.Parallel()

	raw := baseRawFields()
	raw.PrimaryEntities = []string{"  ", ""}

	if _, err := CanonicalizeFingerprintFields(raw); err == nil {
		t.Fatalf("expected validation error for empty entity set")
	}
}

func TestNormalizeSourceURL(t *testing.T) {
	t.Parallel()

	canonical := NormalizeSourceURL("https://Example.COM:443/news/path/?utm_source=abc&fbclid=123&b=2&a=1")
	if canonical != "https://example.com/news/path?a=1&b=2" {
		t.Fatalf("unexpected canonical url: %q", canonical)
	}

	if got := NormalizeSourceURL("reuters.com"); got != "https://reuters.com" {
		t.Fatalf("bare domain not lifted: %q", got)
	}

	if got := NormalizeSourceURL("not a url"); got != "" {
		t.Fatalf("expected empty result for invalid URL, got %q", got)
	}
}
