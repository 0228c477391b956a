package domain

import (
	"encoding/json"
	"time"
)

// RawEvent is the immutable record of an authenticated but not-yet-interpreted
// vendor payload. A dedupe_key collision means "already processed", not an
// error. Rows are never mutated except to attach a later processing error.
type RawEvent struct {
	RawEventID     string          `json:"raw_event_id"`
	PropertyID     string          `json:"property_id"`
	ConnectorID    string          `json:"connector_id"`
	System         string          `json:"system"`
	Vendor         string          `json:"vendor"`
	OccurredAt     time.Time       `json:"occurred_at"`
	VendorEventID  string          `json:"vendor_event_id,omitempty"`
	DedupeKey      string          `json:"dedupe_key"`
	SignatureValid bool            `json:"signature_valid"`
	Payload        json.RawMessage `json:"payload"` // sanitized before persistence
	ErrorNote      string          `json:"error_note,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
}
