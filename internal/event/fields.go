package event

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
	"unicode"
)

var trackingQueryKeys = map[string]struct{}{
	"fbclid":  {},
	"gclid":   {},
	"mc_cid":  {},
	"mc_eid":  {},
	"ref":     {},
	"ref_src": {},
}

// RawFields is the fingerprint-relevant slice of an incoming packet,
// exactly as the extraction step emitted it.
type RawFields struct {
	Cluster         string   `json:"cluster"`
	EventType       string   `json:"event_type"`
	PrimaryEntities []string `json:"primary_entities"`
	Geography       []string `json:"geography"`
	Instruments     []string `json:"instruments"`
	Mechanism       string   `json:"mechanism"`
	CanonicalSource string   `json:"canonical_source"`
}

// CanonicalFields is the normalized form used for fingerprinting and
// similarity matching. Set-valued fields are case-folded, deduplicated
// and sorted. CanonicalSource is carried for source accumulation but is
// never part of the identity computation.
type CanonicalFields struct {
	Cluster         string   `json:"cluster"`
	EventType       string   `json:"event_type"`
	PrimaryEntities []string `json:"primary_entities"`
	Geography       []string `json:"geography"`
	Instruments     []string `json:"instruments"`
	Mechanism       string   `json:"mechanism"`
	CanonicalSource string   `json:"canonical_source"`
}

// ValidationError reports a missing or empty required identity field.
type ValidationError struct {
	Field string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("fingerprint field %q is required", e.Field)
}

// CanonicalizeFingerprintFields normalizes the raw identity fields into
// their canonical form. All six identity fields are required; the call
// fails with a *ValidationError when one is missing or empty after
// normalization.
func CanonicalizeFingerprintFields(raw RawFields) (CanonicalFields, error) {
	fields := CanonicalFields{
		Cluster:         normalizeTag(raw.Cluster),
		EventType:       normalizeTag(raw.EventType),
		PrimaryEntities: normalizeTagSet(raw.PrimaryEntities),
		Geography:       normalizeTagSet(raw.Geography),
		Instruments:     normalizeTagSet(raw.Instruments),
		Mechanism:       normalizeTag(raw.Mechanism),
		CanonicalSource: NormalizeSourceURL(raw.CanonicalSource),
	}

	switch {
	case fields.Cluster == "":
		return CanonicalFields{}, &ValidationError{Field: "cluster"}
	case fields.EventType == "":
		return CanonicalFields{}, &ValidationError{Field: "event_type"}
	case len(fields.PrimaryEntities) == 0:
		return CanonicalFields{}, &ValidationError{Field: "primary_entities"}
	case len(fields.Geography) == 0:
		return CanonicalFields{}, &ValidationError{Field: "geography"}
	case len(fields.Instruments) == 0:
		return CanonicalFields{}, &ValidationError{Field: "instruments"}
	case fields.Mechanism == "":
		return CanonicalFields{}, &ValidationError{Field: "mechanism"}
	}

	return fields, nil
}

func normalizeTag(input string) string {
	trimmed := strings.TrimSpace(strings.ToLower(input))
	if trimmed == "" {
		return ""
	}

	var b strings.Builder
	b.Grow(len(trimmed))
	lastSpace := false
	for _, r := range trimmed {
		if unicode.IsSpace(r) {
			if !lastSpace {
				b.WriteRune(' ')
				lastSpace = true
			}
			continue
		}
		if unicode.IsControl(r) {
			continue
		}
		b.WriteRune(r)
		lastSpace = false
	}
	return strings.TrimSpace(b.String())
}

func normalizeTagSet(values []string) []string {
	if len(values) == 0 {
		return nil
	}

	seen := make(map[string]struct{}, len(values))
	normalized := make([]string, 0, len(values))
	for _, value := range values {
		tag := normalizeTag(value)
		if tag == "" {
			continue
		}
		if _, dup := seen[tag]; dup {
			continue
		}
		seen[tag] = struct{}{}
		normalized = append(normalized, tag)
	}
	if len(normalized) == 0 {
		return nil
	}
	sort.Strings(normalized)
	return normalized
}

// NormalizeSourceURL lifts a source reference into a canonical absolute
// URL: bare domains gain an https scheme, hosts are lowercased, default
// ports, fragments, trailing slashes and tracking query parameters are
// dropped, and remaining query parameters are sorted. Returns "" when
// the input cannot be interpreted as a URL.
func NormalizeSourceURL(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ""
	}
	if !strings.Contains(trimmed, "://") {
		trimmed = "https://" + trimmed
	}

	parsed, err := url.Parse(trimmed)
	if err != nil {
		return ""
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return ""
	}

	parsed.Scheme = strings.ToLower(parsed.Scheme)
	parsed.Host = strings.ToLower(parsed.Hostname())
	if port := parsed.Port(); port != "" {
		defaultPort := (parsed.Scheme == "http" && port == "80") || (parsed.Scheme == "https" && port == "443")
		if !defaultPort {
			parsed.Host = parsed.Host + ":" + port
		}
	}

	parsed.Fragment = ""
	path := strings.TrimSpace(parsed.EscapedPath())
	path = strings.ReplaceAll(path, "//", "/")
	if strings.HasSuffix(path, "/") && path != "/" {
		path = strings.TrimSuffix(path, "/")
	}
	if path == "/" {
		path = ""
	}
	parsed.Path = path
	parsed.RawPath = ""

	q := parsed.Query()
	for key := range q {
		lower := strings.ToLower(key)
		if strings.HasPrefix(lower, "utm_") {
			q.Del(key)
			continue
		}
		if _, ok := trackingQueryKeys[lower]; ok {
			q.Del(key)
		}
	}
	if len(q) > 0 {
		keys := make([]string, 0, len(q))
		for key := range q {
			keys = append(keys, key)
		}
		sort.Strings(keys)

		reordered := url.Values{}
		for _, key := range keys {
			values := q[key]
			sort.Strings(values)
			for _, value := range values {
				reordered.Add(key, value)
			}
		}
		parsed.RawQuery = reordered.Encode()
	} else {
		parsed.RawQuery = ""
	}

	return parsed.String()
}
