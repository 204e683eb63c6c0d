package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"trainee_notification_service/internal/domain/notification"

	"github.com/google/uuid"
)

// Custom errors specific to the notification repository
var ErrNotificationNotFound = fmt.Errorf("notification record not found")
var ErrDuplicateNotification = fmt.Errorf("duplicate notification record (recipient_identity, reference_type, reference_id, type)")
var ErrStaleRecord = fmt.Errorf("notification record holds a newer status event than the snapshot being written")

// PostgresNotificationRepository persists NotificationRecords in the
// 'notification_records' table. The table carries secondary indexes on
// (recipient_identity), (scheduled_for, status) and (reference_type,
// reference_id, type), plus the partial unique index
// 'notification_recipient_reference_unique' backing create-or-skip.
type PostgresNotificationRepository struct {
	db *sql.DB
}

func NewPostgresNotificationRepository(db *sql.DB) *PostgresNotificationRepository {
	return &PostgresNotificationRepository{db: db}
}

const recordColumns = `id, type, reference_type, reference_id, recipient_identity, recipient_channel, contact_address,
         template_name, template_version, template_variables, scheduled_for, sent_at, read_at,
         status, status_detail, latest_status_event_at, last_retry, created_at, updated_at`

func (r *PostgresNotificationRepository) Create(ctx context.Context, rec *notification.Record) error {
	variables, err := json.Marshal(rec.Template.Variables)
	if err != nil {
		return fmt.Errorf("error encoding template variables: %w", err)
	}

	var refType, refID sql.NullString
	if rec.TisReference != nil {
		refType = sql.NullString{String: string(rec.TisReference.Type), Valid: true}
		refID = sql.NullString{String: rec.TisReference.ID, Valid: true}
	}

	query := `INSERT INTO notification_records
               (id, type, reference_type, reference_id, recipient_identity, recipient_channel, contact_address,
                template_name, template_version, template_variables, scheduled_for, sent_at, read_at,
                status, status_detail, latest_status_event_at, last_retry)
               VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
               RETURNING created_at, updated_at`
	err = r.db.QueryRowContext(ctx, query,
		rec.ID, rec.Type, refType, refID,
		rec.Recipient.Identity, rec.Recipient.Channel, rec.Recipient.ContactAddress,
		rec.Template.Name, rec.Template.Version, variables,
		rec.ScheduledFor, rec.SentAt, rec.ReadAt,
		rec.Status, rec.StatusDetail, rec.LatestStatusEventAt, rec.LastRetry,
	).Scan(&rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		if strings.Contains(err.Error(), "notification_recipient_reference_unique") {
			return ErrDuplicateNotification
		}
		return fmt.Errorf("error creating notification record: %w", err)
	}
	return nil
}

func (r *PostgresNotificationRepository) GetByID(ctx context.Context, id uuid.UUID) (*notification.Record, error) {
	query := `SELECT ` + recordColumns + ` FROM notification_records WHERE id = $1`
	rec, err := r.scanRecord(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotificationNotFound
		}
		return nil, fmt.Errorf("error getting notification record by ID: %w", err)
	}
	return rec, nil
}

func (r *PostgresNotificationRepository) Update(ctx context.Context, rec *notification.Record) error {
	variables, err := json.Marshal(rec.Template.Variables)
	if err != nil {
		return fmt.Errorf("error encoding template variables: %w", err)
	}

	// The latest_status_event_at condition re-checks the monotonic guard at
	// write time: two instances can both load the record and both pass the
	// in-memory check, but only the snapshot still at least as new as the
	// stored row may win the write.
	query := `UPDATE notification_records
               SET recipient_identity = $1, recipient_channel = $2, contact_address = $3,
                   template_variables = $4, scheduled_for = $5, sent_at = $6, read_at = $7,
                   status = $8, status_detail = $9, latest_status_event_at = $10, last_retry = $11,
                   updated_at = NOW()
               WHERE id = $12
                 AND (latest_status_event_at IS NULL OR latest_status_event_at <= $10)
               RETURNING updated_at`
	err = r.db.QueryRowContext(ctx, query,
		rec.Recipient.Identity, rec.Recipient.Channel, rec.Recipient.ContactAddress,
		variables, rec.ScheduledFor, rec.SentAt, rec.ReadAt,
		rec.Status, rec.StatusDetail, rec.LatestStatusEventAt, rec.LastRetry,
		rec.ID,
	).Scan(&rec.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			if exists, existsErr := r.exists(ctx, rec.ID); existsErr == nil && exists {
				return ErrStaleRecord
			}
			return ErrNotificationNotFound
		}
		return fmt.Errorf("error updating notification record: %w", err)
	}
	return nil
}

func (r *PostgresNotificationRepository) exists(ctx context.Context, id uuid.UUID) (bool, error) {
	var found bool
	err := r.db.QueryRowContext(ctx, `SELECT true FROM notification_records WHERE id = $1`, id).Scan(&found)
	if err == sql.ErrNoRows {
		return false, nil
	}
	return found, err
}

func (r *PostgresNotificationRepository) FindDue(ctx context.Context, now time.Time) ([]*notification.Record, error) {
	query := `SELECT ` + recordColumns + `
               FROM notification_records
               WHERE status = $1 AND scheduled_for <= $2
               ORDER BY scheduled_for ASC`
	rows, err := r.db.QueryContext(ctx, query, notification.StatusScheduled, now)
	if err != nil {
		return nil, fmt.Errorf("error listing due notification records: %w", err)
	}
	defer rows.Close()
	return r.collectRecords(rows)
}

func (r *PostgresNotificationRepository) FindExisting(ctx context.Context, identity string, ref notification.TisReference, t notification.Type) (*notification.Record, error) {
	query := `SELECT ` + recordColumns + `
               FROM notification_records
               WHERE recipient_identity = $1 AND reference_type = $2 AND reference_id = $3 AND type = $4
               ORDER BY created_at DESC
               LIMIT 1`
	rec, err := r.scanRecord(r.db.QueryRowContext(ctx, query, identity, ref.Type, ref.ID, t))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotificationNotFound
		}
		return nil, fmt.Errorf("error finding existing notification record: %w", err)
	}
	return rec, nil
}

func (r *PostgresNotificationRepository) ListByRecipient(ctx context.Context, identity string) ([]*notification.Record, error) {
	query := `SELECT ` + recordColumns + `
               FROM notification_records
               WHERE recipient_identity = $1
               ORDER BY created_at ASC`
	rows, err := r.db.QueryContext(ctx, query, identity)
	if err != nil {
		return nil, fmt.Errorf("error listing notification records by recipient: %w", err)
	}
	defer rows.Close()
	return r.collectRecords(rows)
}

// rowScanner covers both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func (r *PostgresNotificationRepository) scanRecord(row rowScanner) (*notification.Record, error) {
	rec := notification.Record{}
	var refType, refID sql.NullString
	var variables []byte

	err := row.Scan(
		&rec.ID, &rec.Type, &refType, &refID,
		&rec.Recipient.Identity, &rec.Recipient.Channel, &rec.Recipient.ContactAddress,
		&rec.Template.Name, &rec.Template.Version, &variables,
		&rec.ScheduledFor, &rec.SentAt, &rec.ReadAt,
		&rec.Status, &rec.StatusDetail, &rec.LatestStatusEventAt, &rec.LastRetry,
		&rec.CreatedAt, &rec.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if refType.Valid {
		rec.TisReference = &notification.TisReference{
			Type: notification.ReferenceType(refType.String),
			ID:   refID.String,
		}
	}
	if len(variables) > 0 {
		if err := json.Unmarshal(variables, &rec.Template.Variables); err != nil {
			return nil, fmt.Errorf("error decoding template variables: %w", err)
		}
	}
	return &rec, nil
}

func (r *PostgresNotificationRepository) collectRecords(rows *sql.Rows) ([]*notification.Record, error) {
	var records []*notification.Record
	for rows.Next() {
		rec, err := r.scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning notification record: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating notification records: %w", err)
	}
	return records, nil
}
