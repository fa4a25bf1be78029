package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/franzego/eventmailer/internal/models"
	_ "github.com/lib/pq"
)

var (
	ErrEventNotFound  = errors.New("event not found or already notified")
	ErrDeviceNotFound = errors.New("device not found")
)

const (
	selectUnsent = `SELECT e.id, e.device_id, e.event_type, e.payload, e.occurred_at, e.email_sent
		FROM events e
		WHERE e.email_sent = false
		ORDER BY e.occurred_at ASC
		LIMIT $1`

	// Owners without a preferences row are treated as opted in.
	selectUnsentWithPreferences = `SELECT e.id, e.device_id, e.event_type, e.payload, e.occurred_at, e.email_sent
		FROM events e
		LEFT JOIN devices d ON d.id = e.device_id
		LEFT JOIN notification_preferences p ON p.user_id = d.owner_id
		WHERE e.email_sent = false AND COALESCE(p.email_enabled, true)
		ORDER BY e.occurred_at ASC
		LIMIT $1`

	selectUnsentByID = `SELECT e.id, e.device_id, e.event_type, e.payload, e.occurred_at, e.email_sent
		FROM events e
		WHERE e.id = $1 AND e.email_sent = false`

	selectDevice = `SELECT id, name, location, owner_id FROM devices WHERE id = $1`

	selectEmailEnabled = `SELECT email_enabled FROM notification_preferences WHERE user_id = $1`

	markSent = `UPDATE events SET email_sent = true WHERE id = $1`
)

// PostgresStore reads events and devices and flips the email_sent flag. It
// never touches any other column.
type PostgresStore struct {
	db                 *sql.DB
	respectPreferences bool
}

func NewPostgresStore(db *sql.DB, respectPreferences bool) *PostgresStore {
	return &PostgresStore{db: db, respectPreferences: respectPreferences}
}

// Open connects with lib/pq and verifies the connection.
func Open(ctx context.Context, databaseURL string) (*sql.DB, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return db, nil
}

// FetchUnsent returns up to limit unsent events, oldest first.
func (s *PostgresStore) FetchUnsent(ctx context.Context, limit int) ([]models.Event, error) {
	query := selectUnsent
	if s.respectPreferences {
		query = selectUnsentWithPreferences
	}

	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch unsent events: %w", err)
	}
	defer rows.Close()

	events := []models.Event{}
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to fetch unsent events: %w", err)
	}
	return events, nil
}

// GetUnsentEvent loads a single event that has not been notified yet.
func (s *PostgresStore) GetUnsentEvent(ctx context.Context, id string) (*models.Event, error) {
	e, err := scanEvent(s.db.QueryRowContext(ctx, selectUnsentByID, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrEventNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get event %s: %w", id, err)
	}
	return &e, nil
}

func (s *PostgresStore) GetDevice(ctx context.Context, id string) (*models.Device, error) {
	var (
		d        models.Device
		location sql.NullString
		ownerID  sql.NullString
	)
	err := s.db.QueryRowContext(ctx, selectDevice, id).Scan(&d.ID, &d.Name, &location, &ownerID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrDeviceNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get device %s: %w", id, err)
	}
	d.Location = location.String
	d.OwnerID = ownerID.String
	return &d, nil
}

// NotificationsEnabled reports the owner's email preference. Preferences are
// only consulted when the store was built with respectPreferences; otherwise,
// and for owners without a row, it reports true.
func (s *PostgresStore) NotificationsEnabled(ctx context.Context, ownerID string) (bool, error) {
	if !s.respectPreferences || ownerID == "" {
		return true, nil
	}
	var enabled bool
	err := s.db.QueryRowContext(ctx, selectEmailEnabled, ownerID).Scan(&enabled)
	if errors.Is(err, sql.ErrNoRows) {
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to get preferences for %s: %w", ownerID, err)
	}
	return enabled, nil
}

// MarkSent sets email_sent unconditionally; a concurrent run that already
// set it is not detected.
func (s *PostgresStore) MarkSent(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, markSent, id); err != nil {
		return fmt.Errorf("failed to mark event %s as sent: %w", id, err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEvent(row rowScanner) (models.Event, error) {
	var (
		e       models.Event
		payload []byte
	)
	if err := row.Scan(&e.ID, &e.DeviceID, &e.EventType, &payload, &e.OccurredAt, &e.EmailSent); err != nil {
		return models.Event{}, err
	}
	if len(payload) > 0 {
		e.Payload = append([]byte(nil), payload...)
	}
	return e, nil
}
