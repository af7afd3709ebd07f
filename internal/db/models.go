package db

import (
	"encoding/json"
	"time"
)

// EventRecord maps events.events, one row per deduplicated event keyed
// by fingerprint. Set- and log-valued fields are stored as jsonb.
type EventRecord struct {
	Fingerprint     string          `gorm:"column:fingerprint;type:text;primaryKey"`
	EventUUID       string          `gorm:"column:event_uuid;type:uuid;not null;default:gen_random_uuid();unique"`
	Cluster         string          `gorm:"column:cluster;type:text;not null"`
	EventType       string          `gorm:"column:event_type;type:text;not null"`
	Title           string          `gorm:"column:title;type:text;not null"`
	CanonicalSource string          `gorm:"column:canonical_source;type:text;not null;default:''"`
	Sources         json.RawMessage `gorm:"column:sources;type:jsonb;not null"`
	PrimaryEntities json.RawMessage `gorm:"column:primary_entities;type:jsonb;not null"`
	Geography       json.RawMessage `gorm:"column:geography;type:jsonb;not null"`
	Instruments     json.RawMessage `gorm:"column:instruments;type:jsonb;not null"`
	Mechanism       string          `gorm:"column:mechanism;type:text;not null"`
	Phase           string          `gorm:"column:phase;type:text;not null;default:''"`
	Confidence      string          `gorm:"column:confidence;type:text;not null;default:''"`
	Indicators      json.RawMessage `gorm:"column:indicators;type:jsonb"`
	Tripwires       json.RawMessage `gorm:"column:tripwires;type:jsonb"`
	Rationale       json.RawMessage `gorm:"column:rationale;type:jsonb"`

	Score               float64 `gorm:"column:score;type:double precision;not null;default:0"`
	BullishScore        float64 `gorm:"column:bullish_score;type:double precision;not null;default:0"`
	BearishScore        float64 `gorm:"column:bearish_score;type:double precision;not null;default:0"`
	SustainabilityIndex float64 `gorm:"column:sustainability_index;type:double precision;not null;default:0"`

	History        json.RawMessage `gorm:"column:history;type:jsonb;not null"`
	ArticleHistory json.RawMessage `gorm:"column:article_history;type:jsonb;not null"`

	CreatedAt time.Time `gorm:"column:created_at;type:timestamptz;not null;default:now()"`
	UpdatedAt time.Time `gorm:"column:updated_at;type:timestamptz;not null;default:now()"`
}

func (EventRecord) TableName() string { return "events.events" }

// PacketArrival maps events.packet_arrivals, the append-only ledger of
// accepted packets. The payload hash is unique so the same packet
// submitted twice never reaches the merge engine again.
type PacketArrival struct {
	ArrivalID     int64           `gorm:"column:arrival_id;primaryKey;autoIncrement"`
	ArrivalUUID   string          `gorm:"column:arrival_uuid;type:uuid;not null;default:gen_random_uuid();unique"`
	PayloadHash   []byte          `gorm:"column:payload_hash;type:bytea;not null;unique"`
	Fingerprint   string          `gorm:"column:fingerprint;type:text;not null"`
	Decision      string          `gorm:"column:decision;type:text;not null"`
	MatchScore    *float64        `gorm:"column:match_score;type:double precision"`
	TitleLanguage *string         `gorm:"column:title_language;type:text"`
	RawPayload    json.RawMessage `gorm:"column:raw_payload;type:jsonb;not null"`
	ReceivedAt    time.Time       `gorm:"column:received_at;type:timestamptz;not null;default:now()"`
}

func (PacketArrival) TableName() string { return "events.packet_arrivals" }

func autoMigrateModels() []any {
	return []any{
		&EventRecord{},
		&PacketArrival{},
	}
}
