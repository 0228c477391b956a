package domain

import "time"

// Connector is a configured (property, system, vendor) integration with a
// shared signing secret. Mapping is read-only at ingestion time; it is owned
// by the admin flow.
type Connector struct {
	ConnectorID   string            `json:"connector_id"`
	PropertyID    string            `json:"property_id"`
	System        string            `json:"system"` // "pms" | "housekeeping"
	Vendor        string            `json:"vendor"`
	SigningSecret string            `json:"-"`
	Enabled       bool              `json:"enabled"`
	Mapping       *ConnectorMapping `json:"mapping,omitempty"`
	LastSeenAt    *time.Time        `json:"last_seen_at,omitempty"`
}

// ConnectorMapping drives canonicalization for one connector.
type ConnectorMapping struct {
	// EventTypes maps vendor type spellings to canonical event types.
	EventTypes map[string]string `json:"event_types,omitempty"`
	// FieldPaths maps a canonical field to an ordered list of candidate JSON
	// paths; the first path yielding a non-empty value wins.
	FieldPaths map[string][]string `json:"field_paths,omitempty"`
	// RoomPrefixes are stripped from raw room ids before padding.
	RoomPrefixes []string `json:"room_prefixes,omitempty"`
	// RoomPadTo zero-pads normalized room ids to this width (0 = no padding).
	RoomPadTo int `json:"room_pad_to,omitempty"`
	// ValueMaps remaps categorical values per canonical field.
	ValueMaps map[string]map[string]string `json:"value_maps,omitempty"`
}

const (
	SystemPMS          = "pms"
	SystemHousekeeping = "housekeeping"
)

// ValidSystem reports whether s is a supported source system.
func ValidSystem(s string) bool {
	return s == SystemPMS || s == SystemHousekeeping
}
