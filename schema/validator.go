package packetschema

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/jd-d/ai-monitor/internal/event"
	"github.com/jd-d/ai-monitor/internal/globaltime"
)

//go:embed packet.schema.json
var packetSchemaJSON string

// Packet is one LLM-extracted structured record describing an event as
// reported by a single article. It carries the identity fields the
// fingerprint engine consumes and the assessment payload the merge
// engine applies.
type Packet struct {
	PayloadVersion  string         `json:"payload_version"`
	Cluster         string         `json:"cluster"`
	EventType       string         `json:"event_type"`
	PrimaryEntities []string       `json:"primary_entities"`
	Geography       []string       `json:"geography"`
	Instruments     []string       `json:"instruments"`
	Mechanism       string         `json:"mechanism"`
	CanonicalSource string         `json:"canonical_source,omitempty"`
	Title           string         `json:"title"`
	Phase           string         `json:"phase"`
	BullishScore    float64        `json:"bullish_score"`
	BearishScore    float64        `json:"bearish_score"`
	Score           float64        `json:"score"`
	Confidence      string         `json:"confidence"`
	Indicators      map[string]any `json:"indicators,omitempty"`
	Tripwires       []string       `json:"tripwires,omitempty"`
	Rationale       []string       `json:"rationale,omitempty"`
	Sources         []string       `json:"sources"`
	Date            string         `json:"date,omitempty"`
}

var (
	compileOnce       sync.Once
	compiledSchema    *jsonschema.Schema
	compiledSchemaErr error
)

// ValidatePacketPayload decodes and validates one packet against the v1
// schema plus semantic checks. The returned packet is ready for
// canonicalization.
func ValidatePacketPayload(payload json.RawMessage) (*Packet, error) {
	value, err := decodeStrictJSON(payload)
	if err != nil {
		return nil, fmt.Errorf("decode payload JSON: %w", err)
	}

	schema, err := loadSchema()
	if err != nil {
		return nil, fmt.Errorf("load schema: %w", err)
	}

	if err := schema.Validate(value); err != nil {
		return nil, fmt.Errorf("schema validation failed: %w", err)
	}

	normalized, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("normalize payload JSON: %w", err)
	}

	var packet Packet
	if err := json.Unmarshal(normalized, &packet); err != nil {
		return nil, fmt.Errorf("unmarshal payload: %w", err)
	}

	if err := validateSemantics(&packet); err != nil {
		return nil, err
	}

	return &packet, nil
}

// RawFields projects the packet onto the canonicalizer's input.
func (p *Packet) RawFields() event.RawFields {
	return event.RawFields{
		Cluster:         p.Cluster,
		EventType:       p.EventType,
		PrimaryEntities: p.PrimaryEntities,
		Geography:       p.Geography,
		Instruments:     p.Instruments,
		Mechanism:       p.Mechanism,
		CanonicalSource: p.CanonicalSource,
	}
}

// MergePayload projects the packet onto the merge engine's input.
func (p *Packet) MergePayload() event.Payload {
	return event.Payload{
		Cluster:      p.Cluster,
		EventType:    p.EventType,
		Title:        p.Title,
		Phase:        p.Phase,
		BullishScore: p.BullishScore,
		BearishScore: p.BearishScore,
		Score:        p.Score,
		Confidence:   p.Confidence,
		Indicators:   p.Indicators,
		Tripwires:    p.Tripwires,
		Rationale:    p.Rationale,
		Sources:      p.Sources,
	}
}

func loadSchema() (*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		compiler.Draft = jsonschema.Draft2020
		compiler.AssertFormat = true

		if err := compiler.AddResource("packet.schema.json", strings.NewReader(packetSchemaJSON)); err != nil {
			compiledSchemaErr = fmt.Errorf("add schema resource: %w", err)
			return
		}

		schema, err := compiler.Compile("packet.schema.json")
		if err != nil {
			compiledSchemaErr = fmt.Errorf("compile schema: %w", err)
			return
		}

		compiledSchema = schema
	})

	if compiledSchemaErr != nil {
		return nil, compiledSchemaErr
	}
	if compiledSchema == nil {
		return nil, fmt.Errorf("schema not initialized")
	}
	return compiledSchema, nil
}

func decodeStrictJSON(raw []byte) (any, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("payload is empty")
	}

	decoder := json.NewDecoder(bytes.NewReader(trimmed))
	decoder.UseNumber()

	var value any
	if err := decoder.Decode(&value); err != nil {
		return nil, err
	}

	if err := decoder.Decode(&struct{}{}); err != io.EOF {
		return nil, fmt.Errorf("payload contains trailing content")
	}

	return value, nil
}

func validateSemantics(packet *Packet) error {
	if packet == nil {
		return fmt.Errorf("payload is nil")
	}

	if strings.TrimSpace(packet.PayloadVersion) != "v1" {
		return fmt.Errorf("payload_version must be v1")
	}
	if strings.TrimSpace(packet.Title) == "" {
		return fmt.Errorf("title must not be empty")
	}

	for i, source := range packet.Sources {
		if event.NormalizeSourceURL(source) == "" {
			return fmt.Errorf("sources[%d] is not a usable URL", i)
		}
	}

	if packet.CanonicalSource != "" && event.NormalizeSourceURL(packet.CanonicalSource) == "" {
		return fmt.Errorf("canonical_source is not a usable URL")
	}

	if packet.Date != "" {
		if _, err := time.Parse(globaltime.DateLayout, packet.Date); err != nil {
			return fmt.Errorf("date must be YYYY-MM-DD: %w", err)
		}
	}

	return nil
}
