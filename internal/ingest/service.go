package ingest

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"github.com/jd-d/ai-monitor/internal/db"
	"github.com/jd-d/ai-monitor/internal/event"
	"github.com/jd-d/ai-monitor/internal/globaltime"
	"github.com/jd-d/ai-monitor/internal/langdetect"
	packetschema "github.com/jd-d/ai-monitor/schema"
)

// Ingest decisions recorded on the packet arrivals ledger.
const (
	DecisionCreated       = "created"
	DecisionMergedExact   = "merged_exact"
	DecisionMergedSimilar = "merged_similar"
	DecisionDuplicate     = "duplicate"
)

// Service is the single-writer ingestion loop. It owns the in-memory
// fingerprint mapping and serializes every create/merge against it; the
// merge engine itself is not synchronized.
type Service struct {
	pool   *db.Pool
	logger zerolog.Logger

	mu     sync.Mutex
	events map[event.Fingerprint]*event.Event
}

type Result struct {
	Fingerprint   event.Fingerprint
	Decision      string
	MatchScore    float64
	TitleLanguage string
}

func NewService(pool *db.Pool, logger zerolog.Logger) *Service {
	return &Service{
		pool:   pool,
		logger: logger,
		events: make(map[event.Fingerprint]*event.Event),
	}
}

// LoadState populates the in-memory mapping from the ledger. Must be
// called once before the first IngestOne.
func (s *Service) LoadState(ctx context.Context) error {
	if s == nil || s.pool == nil {
		return fmt.Errorf("ingest service is not initialized")
	}

	events, err := s.pool.LoadEvents(ctx)
	if err != nil {
		return fmt.Errorf("load event ledger: %w", err)
	}

	s.mu.Lock()
	s.events = events
	s.mu.Unlock()

	s.logger.Info().Int("events", len(events)).Msg("event ledger loaded")
	return nil
}

// IngestOne validates one raw packet, resolves it against the known
// events by exact fingerprint and then by similarity, applies the
// create or merge, and persists the outcome. Packets whose canonical
// JSON was seen before are rejected as duplicates before any mutation.
func (s *Service) IngestOne(ctx context.Context, rawPacket json.RawMessage) (Result, error) {
	if s == nil || s.pool == nil {
		return Result{}, fmt.Errorf("ingest service is not initialized")
	}

	canonicalJSON, err := canonicalizeJSON(rawPacket)
	if err != nil {
		return Result{}, fmt.Errorf("canonicalize packet JSON: %w", err)
	}
	payloadHash := sha256.Sum256(canonicalJSON)

	packet, err := packetschema.ValidatePacketPayload(rawPacket)
	if err != nil {
		return Result{}, fmt.Errorf("validate packet: %w", err)
	}

	fields, err := event.CanonicalizeFingerprintFields(packet.RawFields())
	if err != nil {
		return Result{}, fmt.Errorf("canonicalize fingerprint fields: %w", err)
	}
	fingerprint := event.ComputeFingerprint(fields)

	date := packet.Date
	if date == "" {
		date = globaltime.Today()
	}

	titleLanguage := langdetect.DetectISO6391(packet.Title)
	if titleLanguage != "" && titleLanguage != "en" {
		s.logger.Warn().
			Str("language", titleLanguage).
			Str("title", packet.Title).
			Msg("packet title is not English; extraction quality may suffer")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	target, decision, matchScore := s.resolveTarget(fields, fingerprint, packet.Title)

	tx, err := s.pool.BeginTx(ctx, db.TxOptions{})
	if err != nil {
		return Result{}, fmt.Errorf("begin ingest tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	inserted, err := db.InsertPacketArrivalTx(ctx, tx, db.ArrivalRecord{
		PayloadHash:   payloadHash[:],
		Fingerprint:   fingerprint,
		Decision:      decision,
		MatchScore:    matchScorePtr(decision, matchScore),
		TitleLanguage: nullableString(titleLanguage),
		RawPayload:    canonicalJSON,
		ReceivedAt:    globaltime.UTC(),
	})
	if err != nil {
		return Result{}, err
	}
	if !inserted {
		s.logger.Info().
			Str("fingerprint", string(fingerprint)).
			Msg("duplicate packet suppressed")
		return Result{
			Fingerprint:   fingerprint,
			Decision:      DecisionDuplicate,
			TitleLanguage: titleLanguage,
		}, nil
	}

	payload := packet.MergePayload()
	switch decision {
	case DecisionCreated:
		target = event.CreateEvent(fields, fingerprint, payload, date)
		s.events[fingerprint] = target
	default:
		target.Merge(payload, fields, fingerprint, date)
	}

	if err := db.UpsertEventTx(ctx, tx, target); err != nil {
		return Result{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return Result{}, fmt.Errorf("commit ingest tx: %w", err)
	}

	s.logger.Info().
		Str("fingerprint", string(target.Fingerprint)).
		Str("decision", decision).
		Float64("match_score", matchScore).
		Str("date", date).
		Int("history_len", len(target.History)).
		Msg("packet ingested")

	return Result{
		Fingerprint:   target.Fingerprint,
		Decision:      decision,
		MatchScore:    matchScore,
		TitleLanguage: titleLanguage,
	}, nil
}

// resolveTarget decides where the packet lands: its exact fingerprint,
// the best near-duplicate above the threshold, or a fresh event.
// Callers must hold the service mutex.
func (s *Service) resolveTarget(fields event.CanonicalFields, fingerprint event.Fingerprint, title string) (*event.Event, string, float64) {
	if existing, ok := s.events[fingerprint]; ok {
		return existing, DecisionMergedExact, 1
	}
	if similar, score, ok := event.FindSimilarEvent(fields, s.events, title); ok {
		return similar, DecisionMergedSimilar, score
	}
	return nil, DecisionCreated, 0
}

// SnapshotList returns value copies of the known events, optionally
// filtered by cluster and event type, most recently touched first.
func (s *Service) SnapshotList(cluster, eventType string) []event.Event {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshots := make([]event.Event, 0, len(s.events))
	for _, e := range s.events {
		if cluster != "" && e.Cluster != cluster {
			continue
		}
		if eventType != "" && e.EventType != eventType {
			continue
		}
		snapshots = append(snapshots, *e)
	}

	sort.Slice(snapshots, func(i, j int) bool {
		return snapshots[i].UpdatedAt.After(snapshots[j].UpdatedAt)
	})
	return snapshots
}

// Snapshot returns a value copy of one event by fingerprint.
func (s *Service) Snapshot(fingerprint event.Fingerprint) (event.Event, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.events[fingerprint]
	if !ok {
		return event.Event{}, false
	}
	return *e, true
}

func canonicalizeJSON(raw []byte) ([]byte, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("JSON payload is empty")
	}

	decoder := json.NewDecoder(bytes.NewReader(trimmed))
	decoder.UseNumber()

	var value any
	if err := decoder.Decode(&value); err != nil {
		return nil, fmt.Errorf("decode JSON: %w", err)
	}

	if err := decoder.Decode(&struct{}{}); err != io.EOF {
		return nil, fmt.Errorf("JSON contains trailing content")
	}

	canonical, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("marshal canonical JSON: %w", err)
	}
	return canonical, nil
}

func matchScorePtr(decision string, score float64) *float64 {
	if decision != DecisionMergedSimilar && decision != DecisionMergedExact {
		return nil
	}
	value := score
	return &value
}

func nullableString(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}
