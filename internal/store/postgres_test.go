package store

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var eventColumns = []string{"id", "device_id", "event_type", "payload", "occurred_at", "email_sent"}

func newMock(t *testing.T) (*PostgresStore, *PostgresStore, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewPostgresStore(db, false), NewPostgresStore(db, true), mock
}

func TestFetchUnsent_OrderedAndLimited(t *testing.T) {
	plain, _, mock := newMock(t)
	older := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	newer := older.Add(time.Minute)

	rows := sqlmock.NewRows(eventColumns).
		AddRow("evt-1", "dev-1", "motion_detected", []byte(`{"message":"hi"}`), older, false).
		AddRow("evt-2", "dev-2", "doorbell_ring", nil, newer, false)

	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY e.occurred_at ASC")).
		WithArgs(5).
		WillReturnRows(rows)

	events, err := plain.FetchUnsent(context.Background(), 5)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "evt-1", events[0].ID)
	assert.Equal(t, "hi", events[0].DecodePayload().Message)
	assert.Equal(t, older, events[0].OccurredAt)
	assert.Equal(t, "evt-2", events[1].ID)
	assert.Empty(t, events[1].Payload)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFetchUnsent_Empty(t *testing.T) {
	plain, _, mock := newMock(t)
	mock.ExpectQuery(regexp.QuoteMeta("FROM events e")).
		WithArgs(5).
		WillReturnRows(sqlmock.NewRows(eventColumns))

	events, err := plain.FetchUnsent(context.Background(), 5)
	require.NoError(t, err)
	assert.NotNil(t, events)
	assert.Empty(t, events)
}

func TestFetchUnsent_QueryError(t *testing.T) {
	plain, _, mock := newMock(t)
	mock.ExpectQuery(regexp.QuoteMeta("FROM events e")).
		WillReturnError(errors.New("connection refused"))

	_, err := plain.FetchUnsent(context.Background(), 5)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestFetchUnsent_WithPreferences(t *testing.T) {
	_, withPrefs, mock := newMock(t)
	mock.ExpectQuery(regexp.QuoteMeta("LEFT JOIN notification_preferences p ON p.user_id = d.owner_id")).
		WithArgs(10).
		WillReturnRows(sqlmock.NewRows(eventColumns).
			AddRow("evt-1", "dev-1", "motion_detected", []byte(`{}`), time.Now(), false))

	events, err := withPrefs.FetchUnsent(context.Background(), 10)
	require.NoError(t, err)
	assert.Len(t, events, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetUnsentEvent(t *testing.T) {
	plain, _, mock := newMock(t)
	mock.ExpectQuery(regexp.QuoteMeta("WHERE e.id = $1 AND e.email_sent = false")).
		WithArgs("evt-9").
		WillReturnRows(sqlmock.NewRows(eventColumns).
			AddRow("evt-9", "dev-1", "package_detected", []byte(`{}`), time.Now(), false))

	e, err := plain.GetUnsentEvent(context.Background(), "evt-9")
	require.NoError(t, err)
	assert.Equal(t, "package_detected", e.EventType)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE e.id = $1 AND e.email_sent = false")).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows(eventColumns))

	_, err = plain.GetUnsentEvent(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrEventNotFound)
}

func TestGetDevice(t *testing.T) {
	plain, _, mock := newMock(t)
	mock.ExpectQuery(regexp.QuoteMeta(selectDevice)).
		WithArgs("dev-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "location", "owner_id"}).
			AddRow("dev-1", "Porch Cam", nil, "user_1"))

	d, err := plain.GetDevice(context.Background(), "dev-1")
	require.NoError(t, err)
	assert.Equal(t, "Porch Cam", d.Name)
	assert.Empty(t, d.Location)
	assert.Equal(t, "user_1", d.OwnerID)

	mock.ExpectQuery(regexp.QuoteMeta(selectDevice)).
		WithArgs("dev-x").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "location", "owner_id"}))

	_, err = plain.GetDevice(context.Background(), "dev-x")
	assert.ErrorIs(t, err, ErrDeviceNotFound)
}

func TestNotificationsEnabled(t *testing.T) {
	plain, withPrefs, mock := newMock(t)

	enabled, err := plain.NotificationsEnabled(context.Background(), "user_1")
	require.NoError(t, err)
	assert.True(t, enabled)

	mock.ExpectQuery(regexp.QuoteMeta(selectEmailEnabled)).
		WithArgs("user_1").
		WillReturnRows(sqlmock.NewRows([]string{"email_enabled"}).AddRow(false))
	enabled, err = withPrefs.NotificationsEnabled(context.Background(), "user_1")
	require.NoError(t, err)
	assert.False(t, enabled)

	mock.ExpectQuery(regexp.QuoteMeta(selectEmailEnabled)).
		WithArgs("user_2").
		WillReturnRows(sqlmock.NewRows([]string{"email_enabled"}))
	enabled, err = withPrefs.NotificationsEnabled(context.Background(), "user_2")
	require.NoError(t, err)
	assert.True(t, enabled)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkSent(t *testing.T) {
	plain, _, mock := newMock(t)
	mock.ExpectExec(regexp.QuoteMeta(markSent)).
		WithArgs("evt-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, plain.MarkSent(context.Background(), "evt-1"))

	mock.ExpectExec(regexp.QuoteMeta(markSent)).
		WithArgs("evt-2").
		WillReturnError(errors.New("deadlock detected"))

	err := plain.MarkSent(context.Background(), "evt-2")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "evt-2")
	assert.NoError(t, mock.ExpectationsWereMet())
}
