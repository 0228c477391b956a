package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"hotelguard-ingest/internal/domain"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInsertBatch_CommitsAllEvents(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewPostgresCanonicalEventsRepo(db)

	events := []domain.CanonicalEvent{
		{
			PropertyID: "prop-1", ConnectorID: "conn-1", System: "pms", Vendor: "opera",
			EventType: "GUEST_CHECKED_IN", OccurredAt: time.Now().UTC(),
			EntityType: domain.EntityStay, EntityID: "R-1", RoomID: "0101",
			RawEventID: "raw-1",
		},
		{
			PropertyID: "prop-1", ConnectorID: "conn-1", System: "pms", Vendor: "opera",
			EventType: "GUEST_CHECKED_OUT", OccurredAt: time.Now().UTC(),
			EntityType: domain.EntityRoom, EntityID: "0102", RoomID: "0102",
			RawEventID: "raw-2",
		},
	}

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO canonical_events`).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(`INSERT INTO canonical_events`).
		WillReturnResult(sqlmock.NewResult(2, 1))
	mock.ExpectCommit()

	count, err := repo.InsertBatch(context.Background(), events)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertBatch_RollsBackOnFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewPostgresCanonicalEventsRepo(db)

	events := []domain.CanonicalEvent{
		{PropertyID: "prop-1", EventType: "A", EntityType: domain.EntityUnknown, EntityID: "unknown"},
		{PropertyID: "prop-1", EventType: "B", EntityType: domain.EntityUnknown, EntityID: "unknown"},
	}

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO canonical_events`).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(`INSERT INTO canonical_events`).
		WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	count, err := repo.InsertBatch(context.Background(), events)
	require.Error(t, err)
	assert.Zero(t, count)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertBatch_EmptyIsNoop(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewPostgresCanonicalEventsRepo(db)
	count, err := repo.InsertBatch(context.Background(), nil)
	require.NoError(t, err)
	assert.Zero(t, count)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestIsUniqueViolation(t *testing.T) {
	assert.True(t, isUniqueViolation(&pq.Error{Code: "23505"}))
	assert.False(t, isUniqueViolation(&pq.Error{Code: "23503"}))
	assert.False(t, isUniqueViolation(errors.New("plain")))
}
