// Package canonical maps arbitrary vendor payloads onto the canonical event
// schema. It never returns errors: unmapped fields yield omitted canonical
// fields and callers decide whether that is acceptable.
package canonical

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"hotelguard-ingest/internal/domain"
	"hotelguard-ingest/internal/sign"
)

// Default candidate paths probed when the connector mapping does not
// configure a field. First match wins; paths are never merged.
var defaultFieldPaths = map[string][]string{
	"event_type":  {"event_type", "type", "event", "action"},
	"occurred_at": {"occurred_at", "timestamp", "created_at", "time", "event_time"},
	"room_id":     {"room_id", "room", "room_number", "roomNumber", "location.room"},
	"stay_id":     {"stay_id", "reservation_id", "reservationId", "booking_id", "confirmation_number"},
	"zone_id":     {"zone_id", "zone", "area"},
	"entity_id":   {"entity_id", "entityId"},
	"notes":       {"notes", "note", "comment", "comments", "description"},
}

// Canonicalize produces canonical events from one raw vendor payload.
// mapping may be nil, in which case defaults apply. The contract is a list
// to allow future fan-out; today exactly one event is returned.
func Canonicalize(
	payload map[string]any,
	mapping *domain.ConnectorMapping,
	system, vendor, propertyID, connectorID string,
	fallback time.Time,
) []domain.CanonicalEvent {
	if mapping == nil {
		mapping = &domain.ConnectorMapping{}
	}

	rawType, _ := probeField(payload, mapping, "event_type").(string)
	notes, _ := probeField(payload, mapping, "notes").(string)

	occurredAt := fallback
	if v := probeField(payload, mapping, "occurred_at"); v != nil {
		if ms, ok := sign.ParseTimestamp(stringify(v)); ok {
			occurredAt = time.UnixMilli(ms).UTC()
		}
	}

	roomID := NormalizeRoomID(stringify(probeField(payload, mapping, "room_id")), mapping)
	stayID := stringify(probeField(payload, mapping, "stay_id"))
	zoneID := stringify(probeField(payload, mapping, "zone_id"))
	explicitEntity := stringify(probeField(payload, mapping, "entity_id"))

	entityType, entityID := resolveEntity(explicitEntity, stayID, zoneID, roomID)

	eventType := ResolveEventType(rawType, notes, system, mapping)
	if remapped := remapValue(mapping, "event_type", eventType); remapped != "" {
		eventType = remapped
	}

	data, _ := Sanitize(payload).(map[string]any)

	ev := domain.CanonicalEvent{
		PropertyID:  propertyID,
		ConnectorID: connectorID,
		System:      system,
		Vendor:      vendor,
		EventType:   eventType,
		OccurredAt:  occurredAt,
		EntityType:  entityType,
		EntityID:    entityID,
		RoomID:      roomID,
		Data:        data,
	}
	return []domain.CanonicalEvent{ev}
}

// ResolveEventType maps a vendor type spelling to a canonical UPPER_SNAKE
// type. Resolution order: synonym table (case-sensitive, then lower-cased),
// housekeeping notes classifier, uppercase-and-underscore of the raw string,
// system default.
func ResolveEventType(rawType, notes, system string, mapping *domain.ConnectorMapping) string {
	if mapping != nil && len(mapping.EventTypes) > 0 {
		if t, ok := mapping.EventTypes[rawType]; ok && t != "" {
			return t
		}
		if t, ok := mapping.EventTypes[strings.ToLower(rawType)]; ok && t != "" {
			return t
		}
	}

	if system == domain.SystemHousekeeping {
		if t := ClassifyNotes(notes); t != "" {
			return t
		}
	}

	if rawType != "" {
		return upperSnake(rawType)
	}

	switch system {
	case domain.SystemHousekeeping:
		return "HOUSEKEEPING_EVENT"
	default:
		return "PMS_EVENT"
	}
}

// NormalizeRoomID strips configured prefixes then zero-pads to the configured
// width. An empty result means "no room".
func NormalizeRoomID(raw string, mapping *domain.ConnectorMapping) string {
	room := strings.TrimSpace(raw)
	if room == "" {
		return ""
	}
	if mapping != nil {
		for _, prefix := range mapping.RoomPrefixes {
			if prefix != "" && strings.HasPrefix(room, prefix) {
				room = strings.TrimPrefix(room, prefix)
				break
			}
		}
		room = strings.TrimSpace(room)
		if room == "" {
			return ""
		}
		if mapping.RoomPadTo > 0 && len(room) < mapping.RoomPadTo {
			room = strings.Repeat("0", mapping.RoomPadTo-len(room)) + room
		}
	}
	return room
}

// resolveEntity falls back, in order, to an explicit entity id, a stay id,
// a zone id, the normalized room id, or the literal "unknown". Entity id is
// never left empty.
func resolveEntity(explicit, stayID, zoneID, roomID string) (entityType, entityID string) {
	switch {
	case explicit != "":
		if stayID == explicit {
			return domain.EntityStay, explicit
		}
		if zoneID == explicit {
			return domain.EntityZone, explicit
		}
		return domain.EntityRoom, explicit
	case stayID != "":
		return domain.EntityStay, stayID
	case zoneID != "":
		return domain.EntityZone, zoneID
	case roomID != "":
		return domain.EntityRoom, roomID
	default:
		return domain.EntityUnknown, domain.EntityUnknown
	}
}

func probeField(payload map[string]any, mapping *domain.ConnectorMapping, field string) any {
	paths := defaultFieldPaths[field]
	if mapping != nil && len(mapping.FieldPaths[field]) > 0 {
		paths = mapping.FieldPaths[field]
	}
	return Probe(payload, paths)
}

// Probe evaluates candidate paths against a generic JSON tree and returns the
// first non-nil, non-empty value.
func Probe(payload map[string]any, paths []string) any {
	for _, path := range paths {
		if v := lookupPath(payload, path); !isEmpty(v) {
			return v
		}
	}
	return nil
}

func lookupPath(node any, path string) any {
	cur := node
	for _, seg := range strings.Split(path, ".") {
		switch v := cur.(type) {
		case map[string]any:
			cur = v[seg]
		case []any:
			idx, err := strconv.Atoi(seg)
			if err != nil || idx < 0 || idx >= len(v) {
				return nil
			}
			cur = v[idx]
		default:
			return nil
		}
	}
	return cur
}

func remapValue(mapping *domain.ConnectorMapping, field, value string) string {
	if mapping == nil || mapping.ValueMaps == nil {
		return ""
	}
	return mapping.ValueMaps[field][value]
}

func isEmpty(v any) bool {
	if v == nil {
		return true
	}
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s) == ""
	}
	return false
}

func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case float64:
		// JSON numbers decode as float64; room and stay ids are usually
		// integral, so avoid the ".000000" rendering.
		if t == float64(int64(t)) {
			return strconv.FormatInt(int64(t), 10)
		}
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return strings.TrimSpace(fmt.Sprintf("%v", t))
	}
}

func upperSnake(s string) string {
	var b strings.Builder
	lastUnderscore := false
	for _, r := range strings.TrimSpace(s) {
		switch {
		case r >= 'a' && r <= 'z':
			b.WriteRune(r - 32)
			lastUnderscore = false
		case (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9'):
			b.WriteRune(r)
			lastUnderscore = false
		default:
			if !lastUnderscore && b.Len() > 0 {
				b.WriteByte('_')
				lastUnderscore = true
			}
		}
	}
	return strings.Trim(b.String(), "_")
}
