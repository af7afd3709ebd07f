package event

import "testing"

func mustCanonicalize(t *testing.T, raw RawFields) CanonicalFields {
	t.Helper()

	fields, err := CanonicalizeFingerprintFields(raw)
	if err != nil {
		t.Fatalf("canonicalize failed: %v", err)
	}
	return fields
}

func TestFingerprintStableAcrossSetOrdering(t *testing.T) {
	t.Parallel()

	first := mustCanonicalize(t, baseRawFields())

	permuted := baseRawFields()
	permuted.PrimaryEntities = []string{"Microsoft", "hyperscalers"}
	permuted.Geography = []string{"UNITED_STATES", "Global"}
	permuted.Instruments = []string{"infrastructure", "Data_Centers"}
	second := mustCanonicalize(t, permuted)

	if ComputeFingerprint(first) != ComputeFingerprint(second) {
		t.Fatalf("fingerprint changed under set reordering")
	}
}

func TestFingerprintIgnoresCanonicalSource(t *testing.T) {
	t.Parallel()

	first := mustCanonicalize(t, baseRawFields())

	other := baseRawFields()
	other.CanonicalSource = "https://reuters.com/technology/example"
	second := mustCanonicalize(t, other)

	if ComputeFingerprint(first) != ComputeFingerprint(second) {
		t.Fatalf("fingerprint must not depend on canonical_source")
	}
}

func TestFingerprintChangesWithIdentityFields(t *testing.T) {
	t.Parallel()

	base := mustCanonicalize(t, baseRawFields())

	mutated := baseRawFields()
	mutated.Mechanism = "ai_capex_contraction"
	other := mustCanonicalize(t, mutated)

	if ComputeFingerprint(base) == ComputeFingerprint(other) {
		t.Fatalf("fingerprint collision across different mechanisms")
	}

	if len(ComputeFingerprint(base)) != 64 {
		t.Fatalf("expected 64 hex characters, got %d", len(ComputeFingerprint(base)))
	}
}
