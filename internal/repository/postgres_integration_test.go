// +build integration

package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"os"
	"strconv"
	"testing"
	"time"

	"hotelguard-ingest/internal/config"
	"hotelguard-ingest/internal/database"
	"hotelguard-ingest/internal/domain"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func getTestDB(t *testing.T) *sql.DB {
	cfg := &config.DatabaseConfig{
		Host:     testEnv("TEST_DB_HOST", "localhost"),
		Port:     testEnvInt("TEST_DB_PORT", 5432),
		User:     testEnv("TEST_DB_USER", "postgres"),
		Password: testEnv("TEST_DB_PASSWORD", "postgres"),
		Database: testEnv("TEST_DB_NAME", "hotelguard"),
		SSLMode:  testEnv("TEST_DB_SSLMODE", "disable"),
	}

	db, err := database.NewPostgresDB(cfg)
	if err != nil {
		t.Skipf("Skipping integration test: cannot connect to database: %v", err)
		return nil
	}
	return db
}

func testEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func testEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func seedConnector(t *testing.T, db *sql.DB, propertyID string) string {
	mapping, _ := json.Marshal(domain.ConnectorMapping{RoomPadTo: 4})
	connectorID := uuid.NewString()
	_, err := db.Exec(`
		INSERT INTO connectors (connector_id, property_id, system, vendor, signing_secret, enabled, mapping)
		VALUES ($1, $2, 'pms', 'testvendor', 'secret', TRUE, $3)`,
		connectorID, propertyID, mapping)
	require.NoError(t, err)
	return connectorID
}

func TestPostgresConnectorsRepo_FindEnabled(t *testing.T) {
	db := getTestDB(t)
	if db == nil {
		return
	}
	defer db.Close()

	propertyID := uuid.NewString()
	connectorID := seedConnector(t, db, propertyID)
	defer db.Exec(`DELETE FROM connectors WHERE connector_id = $1`, connectorID)

	repo := NewPostgresConnectorsRepo(db)
	ctx := context.Background()

	c, err := repo.FindEnabled(ctx, propertyID, "pms", "testvendor")
	require.NoError(t, err)
	require.Equal(t, connectorID, c.ConnectorID)
	require.Equal(t, "secret", c.SigningSecret)
	require.NotNil(t, c.Mapping)
	require.Equal(t, 4, c.Mapping.RoomPadTo)

	_, err = repo.FindEnabled(ctx, propertyID, "pms", "othervendor")
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, repo.TouchLastSeen(ctx, connectorID))
	c, err = repo.FindEnabled(ctx, propertyID, "pms", "testvendor")
	require.NoError(t, err)
	require.NotNil(t, c.LastSeenAt)
}

func TestPostgresRawEventsRepo_DedupeKeyCollision(t *testing.T) {
	db := getTestDB(t)
	if db == nil {
		return
	}
	defer db.Close()

	propertyID := uuid.NewString()
	connectorID := seedConnector(t, db, propertyID)
	defer db.Exec(`DELETE FROM connectors WHERE connector_id = $1`, connectorID)

	repo := NewPostgresRawEventsRepo(db)
	ctx := context.Background()

	ev := &domain.RawEvent{
		RawEventID:     uuid.NewString(),
		PropertyID:     propertyID,
		ConnectorID:    connectorID,
		System:         "pms",
		Vendor:         "testvendor",
		OccurredAt:     time.Now().UTC(),
		VendorEventID:  "evt-1",
		DedupeKey:      "pms:testvendor:" + uuid.NewString(),
		SignatureValid: true,
		Payload:        json.RawMessage(`{"event_type":"checkin"}`),
	}
	require.NoError(t, repo.Insert(ctx, ev))
	defer db.Exec(`DELETE FROM raw_events WHERE raw_event_id = $1`, ev.RawEventID)

	dup := *ev
	dup.RawEventID = uuid.NewString()
	require.ErrorIs(t, repo.Insert(ctx, &dup), ErrDuplicate)

	require.NoError(t, repo.AttachError(ctx, ev.RawEventID, "normalize failed"))
	var note string
	require.NoError(t, db.QueryRow(
		`SELECT error_note FROM raw_events WHERE raw_event_id = $1`, ev.RawEventID).Scan(&note))
	require.Equal(t, "normalize failed", note)
}

func TestPostgresCVRepo_ObservationsAndCounter(t *testing.T) {
	db := getTestDB(t)
	if db == nil {
		return
	}
	defer db.Close()

	repo := NewPostgresCVRepo(db)
	ctx := context.Background()

	roomID := "it-" + uuid.NewString()[:8]
	defer db.Exec(`DELETE FROM cv_events WHERE room_id = $1`, roomID)

	base := time.Now().UTC().Truncate(time.Second)
	obs := &domain.FrameObservation{RoomID: roomID, PersonCount: 1, EntryCount: 3, Timestamp: base}
	require.NoError(t, repo.InsertObservation(ctx, obs))

	require.ErrorIs(t, repo.InsertObservation(ctx, &domain.FrameObservation{
		RoomID: roomID, PersonCount: 2, EntryCount: 4, Timestamp: base,
	}), ErrDuplicate)

	exists, err := repo.ObservationExists(ctx, roomID, base)
	require.NoError(t, err)
	require.True(t, exists)

	max, err := repo.MaxEntryCountSince(ctx, roomID, base.Add(-time.Hour))
	require.NoError(t, err)
	require.Equal(t, 3, max)

	max, err = repo.MaxEntryCountSince(ctx, roomID, base.Add(time.Minute))
	require.NoError(t, err)
	require.Zero(t, max)
}
