package packetschema

import (
	"encoding/json"
	"strings"
	"testing"
)

func validPacketJSON(t *testing.T, mutate func(map[string]any)) json.RawMessage {
	t.Helper()

	packet := map[string]any{
		"payload_version":  "v1",
		"cluster":          "ai_capex",
		"event_type":       "investment_update",
		"primary_entities": []any{"hyperscalers", "microsoft"},
		"geography":        []any{"global", "united_states"},
		"instruments":      []any{"data_centers", "infrastructure"},
		"mechanism":        "ai_capex_expansion",
		"canonical_source": "newmark.com",
		"title":            "Hyperscalers Expand AI Capex",
		"phase":            "expansion",
		"bullish_score":    58,
		"bearish_score":    40,
		"score":            55,
		"confidence":       "medium",
		"sources":          []any{"https://example.com/initial"},
		"date":             "2025-09-24",
	}
	if mutate != nil {
		mutate(packet)
	}

	raw, err := json.Marshal(packet)
	if err != nil {
		t.Fatalf("marshal packet: %v", err)
	}
	return raw
}

func TestValidatePacketPayload(t *testing.T) {
	t.Parallel()

	packet, err := ValidatePacketPayload(validPacketJSON(t, nil))
	if err != nil {
		t.Fatalf("valid packet rejected: %v", err)
	}
	if packet.Cluster != "ai_capex" || packet.Score != 55 {
		t.Fatalf("packet fields not decoded: %+v", packet)
	}

	fields := packet.RawFields()
	if fields.Mechanism != "ai_capex_expansion" || len(fields.PrimaryEntities) != 2 {
		t.Fatalf("raw fields projection incomplete: %+v", fields)
	}

	payload := packet.MergePayload()
	if payload.BullishScore != 58 || payload.Confidence != "medium" {
		t.Fatalf("merge payload projection incomplete: %+v", payload)
	}
}

func TestValidatePacketPayloadRejections(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		payload json.RawMessage
		wantErr string
	}{
		{
			name:    "empty payload",
			payload: json.RawMessage("  "),
			wantErr: "empty",
		},
		{
			name:    "trailing content",
			payload: append(validPacketJSON(t, nil), []byte(" {}")...),
			wantErr: "trailing content",
		},
		{
			name: "missing mechanism",
			payload: validPacketJSON(t, func(p map[string]any) {
				delete(p, "mechanism")
			}),
			wantErr: "schema validation failed",
		},
		{
			name: "empty entity list",
			payload: validPacketJSON(t, func(p map[string]any) {
				p["primary_entities"] = []any{}
			}),
			wantErr: "schema validation failed",
		},
		{
			name: "unknown payload version",
			payload: validPacketJSON(t, func(p map[string]any) {
				p["payload_version"] = "v2"
			}),
			wantErr: "schema validation failed",
		},
		{
			name: "score out of range",
			payload: validPacketJSON(t, func(p map[string]any) {
				p["score"] = 140
			}),
			wantErr: "schema validation failed",
		},
		{
			name: "unknown confidence",
			payload: validPacketJSON(t, func(p map[string]any) {
				p["confidence"] = "certain"
			}),
			wantErr: "schema validation failed",
		},
		{
			name: "unusable source url",
			payload: validPacketJSON(t, func(p map[string]any) {
				p["sources"] = []any{"not a url"}
			}),
			wantErr: "not a usable URL",
		},
		{
			name: "malformed date",
			payload: validPacketJSON(t, func(p map[string]any) {
				p["date"] = "25-09-2025"
			}),
			wantErr: "schema validation failed",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			_, err := ValidatePacketPayload(tc.payload)
			if err == nil {
				t.Fatalf("expected rejection")
			}
			if !strings.Contains(err.Error(), tc.wantErr) {
				t.Fatalf("error %q does not mention %q", err, tc.wantErr)
			}
		})
	}
}
