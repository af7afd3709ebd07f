package db

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jd-d/ai-monitor/internal/event"
)

// LoadEvents reads the whole ledger into the in-memory fingerprint
// mapping the merge engine operates on.
func (p *Pool) LoadEvents(ctx context.Context) (map[event.Fingerprint]*event.Event, error) {
	const q = `
SELECT
	fingerprint,
	cluster,
	event_type,
	title,
	canonical_source,
	sources,
	primary_entities,
	geography,
	instruments,
	mechanism,
	phase,
	confidence,
	indicators,
	tripwires,
	rationale,
	score,
	bullish_score,
	bearish_score,
	sustainability_index,
	history,
	article_history,
	created_at,
	updated_at
FROM events.events
`

	rows, err := p.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	events := make(map[event.Fingerprint]*event.Event)
	for rows.Next() {
		var (
			e              event.Event
			fingerprint    string
			sources        []byte
			entities       []byte
			geography      []byte
			instruments    []byte
			indicators     []byte
			tripwires      []byte
			rationale      []byte
			history        []byte
			articleHistory []byte
		)
		if err := rows.Scan(
			&fingerprint,
			&e.Cluster,
			&e.EventType,
			&e.Title,
			&e.CanonicalSource,
			&sources,
			&entities,
			&geography,
			&instruments,
			&e.Mechanism,
			&e.Phase,
			&e.Confidence,
			&indicators,
			&tripwires,
			&rationale,
			&e.Score,
			&e.BullishScore,
			&e.BearishScore,
			&e.SustainabilityIndex,
			&history,
			&articleHistory,
			&e.CreatedAt,
			&e.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan event row: %w", err)
		}

		e.Fingerprint = event.Fingerprint(fingerprint)
		jsonColumns := []struct {
			name string
			raw  []byte
			dest any
		}{
			{"sources", sources, &e.Sources},
			{"primary_entities", entities, &e.PrimaryEntities},
			{"geography", geography, &e.Geography},
			{"instruments", instruments, &e.Instruments},
			{"indicators", indicators, &e.Indicators},
			{"tripwires", tripwires, &e.Tripwires},
			{"rationale", rationale, &e.Rationale},
			{"history", history, &e.History},
			{"article_history", articleHistory, &e.ArticleHistory},
		}
		for _, column := range jsonColumns {
			if len(column.raw) == 0 {
				continue
			}
			if err := json.Unmarshal(column.raw, column.dest); err != nil {
				return nil, fmt.Errorf("decode event %s column %s: %w", fingerprint, column.name, err)
			}
		}

		eventCopy := e
		events[eventCopy.Fingerprint] = &eventCopy
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return events, nil
}

// UpsertEventTx writes the latest state of one event, replacing every
// mutable column and both history logs wholesale.
func UpsertEventTx(ctx context.Context, tx Tx, e *event.Event) error {
	if e == nil {
		return fmt.Errorf("event is nil")
	}

	const q = `
INSERT INTO events.events (
	fingerprint,
	cluster,
	event_type,
	title,
	canonical_source,
	sources,
	primary_entities,
	geography,
	instruments,
	mechanism,
	phase,
	confidence,
	indicators,
	tripwires,
	rationale,
	score,
	bullish_score,
	bearish_score,
	sustainability_index,
	history,
	article_history,
	created_at,
	updated_at
)
VALUES (
	$1, $2, $3, $4, $5,
	$6::jsonb, $7::jsonb, $8::jsonb, $9::jsonb,
	$10, $11, $12,
	$13::jsonb, $14::jsonb, $15::jsonb,
	$16, $17, $18, $19,
	$20::jsonb, $21::jsonb,
	$22, $23
)
ON CONFLICT (fingerprint) DO UPDATE
SET
	title = EXCLUDED.title,
	canonical_source = EXCLUDED.canonical_source,
	sources = EXCLUDED.sources,
	phase = EXCLUDED.phase,
	confidence = EXCLUDED.confidence,
	indicators = EXCLUDED.indicators,
	tripwires = EXCLUDED.tripwires,
	rationale = EXCLUDED.rationale,
	score = EXCLUDED.score,
	bullish_score = EXCLUDED.bullish_score,
	bearish_score = EXCLUDED.bearish_score,
	sustainability_index = EXCLUDED.sustainability_index,
	history = EXCLUDED.history,
	article_history = EXCLUDED.article_history,
	updated_at = EXCLUDED.updated_at
`

	args, err := upsertEventArgs(e)
	if err != nil {
		return err
	}

	if _, err := tx.Exec(ctx, q, args...); err != nil {
		return fmt.Errorf("upsert event %s: %w", e.Fingerprint, err)
	}
	return nil
}

func upsertEventArgs(e *event.Event) ([]any, error) {
	sources, err := marshalJSONColumn(e.Sources)
	if err != nil {
		return nil, fmt.Errorf("marshal sources: %w", err)
	}
	entities, err := marshalJSONColumn(e.PrimaryEntities)
	if err != nil {
		return nil, fmt.Errorf("marshal primary_entities: %w", err)
	}
	geography, err := marshalJSONColumn(e.Geography)
	if err != nil {
		return nil, fmt.Errorf("marshal geography: %w", err)
	}
	instruments, err := marshalJSONColumn(e.Instruments)
	if err != nil {
		return nil, fmt.Errorf("marshal instruments: %w", err)
	}
	indicators, err := marshalJSONColumn(e.Indicators)
	if err != nil {
		return nil, fmt.Errorf("marshal indicators: %w", err)
	}
	tripwires, err := marshalJSONColumn(e.Tripwires)
	if err != nil {
		return nil, fmt.Errorf("marshal tripwires: %w", err)
	}
	rationale, err := marshalJSONColumn(e.Rationale)
	if err != nil {
		return nil, fmt.Errorf("marshal rationale: %w", err)
	}
	history, err := marshalJSONColumn(e.History)
	if err != nil {
		return nil, fmt.Errorf("marshal history: %w", err)
	}
	articleHistory, err := marshalJSONColumn(e.ArticleHistory)
	if err != nil {
		return nil, fmt.Errorf("marshal article_history: %w", err)
	}

	return []any{
		string(e.Fingerprint),
		e.Cluster,
		e.EventType,
		e.Title,
		e.CanonicalSource,
		sources,
		entities,
		geography,
		instruments,
		e.Mechanism,
		e.Phase,
		e.Confidence,
		indicators,
		tripwires,
		rationale,
		e.Score,
		e.BullishScore,
		e.BearishScore,
		e.SustainabilityIndex,
		history,
		articleHistory,
		e.CreatedAt,
		e.UpdatedAt,
	}, nil
}

// ArrivalRecord is one accepted packet heading for the arrivals ledger.
type ArrivalRecord struct {
	PayloadHash   []byte
	Fingerprint   event.Fingerprint
	Decision      string
	MatchScore    *float64
	TitleLanguage *string
	RawPayload    json.RawMessage
	ReceivedAt    time.Time
}

// InsertPacketArrivalTx records one accepted packet. Returns false when
// an identical payload hash was already recorded, which callers treat
// as a duplicate submission.
func InsertPacketArrivalTx(ctx context.Context, tx Tx, record ArrivalRecord) (bool, error) {
	const q = `
INSERT INTO events.packet_arrivals (
	payload_hash,
	fingerprint,
	decision,
	match_score,
	title_language,
	raw_payload,
	received_at
)
VALUES ($1, $2, $3, $4, $5, $6::jsonb, $7)
ON CONFLICT (payload_hash) DO NOTHING
`

	commandTag, err := tx.Exec(
		ctx,
		q,
		record.PayloadHash,
		string(record.Fingerprint),
		record.Decision,
		record.MatchScore,
		record.TitleLanguage,
		string(record.RawPayload),
		record.ReceivedAt,
	)
	if err != nil {
		return false, fmt.Errorf("insert packet_arrival: %w", err)
	}
	return commandTag.RowsAffected() == 1, nil
}

// LedgerStats summarizes the ledger for the stats endpoint.
type LedgerStats struct {
	Events         int64
	PacketArrivals int64
	Decisions      map[string]int64
	LastReceivedAt *time.Time
	LastUpdatedAt  *time.Time
}

func (p *Pool) LoadStats(ctx context.Context) (LedgerStats, error) {
	stats := LedgerStats{Decisions: make(map[string]int64)}

	const counts = `
SELECT
	(SELECT COUNT(*) FROM events.events),
	(SELECT COUNT(*) FROM events.packet_arrivals),
	(SELECT MAX(received_at) FROM events.packet_arrivals),
	(SELECT MAX(updated_at) FROM events.events)
`
	if err := p.QueryRow(ctx, counts).Scan(
		&stats.Events,
		&stats.PacketArrivals,
		&stats.LastReceivedAt,
		&stats.LastUpdatedAt,
	); err != nil {
		return LedgerStats{}, fmt.Errorf("query ledger counts: %w", err)
	}

	const decisions = `
SELECT decision, COUNT(*)
FROM events.packet_arrivals
GROUP BY decision
`
	rows, err := p.Query(ctx, decisions)
	if err != nil {
		return LedgerStats{}, fmt.Errorf("query decision counts: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var decision string
		var count int64
		if err := rows.Scan(&decision, &count); err != nil {
			return LedgerStats{}, fmt.Errorf("scan decision count: %w", err)
		}
		stats.Decisions[decision] = count
	}
	if err := rows.Err(); err != nil {
		return LedgerStats{}, fmt.Errorf("iterate decision counts: %w", err)
	}

	return stats, nil
}

func marshalJSONColumn(value any) (string, error) {
	if value == nil {
		return "null", nil
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}
