package domain

import "time"

// Entity types a canonical event can attach to.
const (
	EntityStay    = "stay"
	EntityRoom    = "room"
	EntityZone    = "zone"
	EntityUnknown = "unknown"
)

// CanonicalEvent is the normalized, vendor-independent representation of a
// property-level occurrence. Created by the canonicalization engine, one or
// more per raw event, never mutated.
type CanonicalEvent struct {
	ID          int64          `json:"id,omitempty"`
	PropertyID  string         `json:"property_id"`
	ConnectorID string         `json:"connector_id"`
	System      string         `json:"system"`
	Vendor      string         `json:"vendor"`
	EventType   string         `json:"event_type"` // canonical, UPPER_SNAKE
	OccurredAt  time.Time      `json:"occurred_at"`
	EntityType  string         `json:"entity_type"`
	EntityID    string         `json:"entity_id"` // never empty
	RoomID      string         `json:"room_id,omitempty"`
	Data        map[string]any `json:"data,omitempty"` // sanitized
	RawEventID  string         `json:"raw_event_id"`
}
