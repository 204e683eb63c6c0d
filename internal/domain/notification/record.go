package notification

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// ReferenceType classifies the business entity a record points back at.
type ReferenceType string

const (
	RefProgrammeMembership ReferenceType = "PROGRAMME_MEMBERSHIP"
	RefDocument            ReferenceType = "DOCUMENT"
	RefForm                ReferenceType = "FORM"
	RefCredential          ReferenceType = "CREDENTIAL"
)

// TisReference points at the originating business entity. It is used
// together with the recipient identity and notification type to suppress
// duplicate scheduled notifications for the same entity.
type TisReference struct {
	Type ReferenceType
	ID   string
}

// Recipient is who receives a notification and how.
type Recipient struct {
	Identity       string // deliverable account identity
	Channel        Channel
	ContactAddress string // email address; empty for in-app
}

// Template holds the rendering inputs, stored verbatim so history can be
// replayed later without recomputation.
type Template struct {
	Name      string
	Version   string
	Variables map[string]any
}

// Record is the aggregate root: one persisted notification, scheduled,
// sent, or historical. Corresponds to the 'notification_records' table.
type Record struct {
	ID           uuid.UUID
	Type         Type
	TisReference *TisReference // optional
	Recipient    Recipient
	Template     Template
	ScheduledFor sql.NullTime
	SentAt       sql.NullTime
	ReadAt       sql.NullTime
	Status       Status
	StatusDetail string
	// LatestStatusEventAt is the timestamp of the last status event actually
	// applied. Any incoming event not strictly newer is discarded.
	LatestStatusEventAt sql.NullTime
	LastRetry           sql.NullTime
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// ApplyStatusEvent applies a status-changing event to the record in memory.
// It returns (false, nil) when the event is out of order or a duplicate
// (its timestamp is not strictly newer than LatestStatusEventAt); that is
// expected, not an error. It returns an *InvalidTransitionError when the
// state machine forbids the change, leaving the record untouched.
//
// SentAt is immutable once set: a later SENT event from a re-delivery
// updates LastRetry instead.
func (r *Record) ApplyStatusEvent(to Status, detail string, eventAt time.Time) (bool, error) {
	if r.LatestStatusEventAt.Valid && !eventAt.After(r.LatestStatusEventAt.Time) {
		return false, nil
	}
	if !CanTransition(r.Recipient.Channel, r.Status, to) {
		return false, &InvalidTransitionError{Channel: r.Recipient.Channel, From: r.Status, To: to}
	}

	r.Status = to
	r.StatusDetail = detail
	r.LatestStatusEventAt = sql.NullTime{Time: eventAt, Valid: true}

	switch to {
	case StatusSent:
		if r.SentAt.Valid {
			r.LastRetry = sql.NullTime{Time: eventAt, Valid: true}
		} else {
			r.SentAt = sql.NullTime{Time: eventAt, Valid: true}
		}
	case StatusRead:
		r.ReadAt = sql.NullTime{Time: eventAt, Valid: true}
	}
	return true, nil
}

// Dispatched reports whether the record has already been handed to its
// channel, i.e. it is past the PENDING/SCHEDULED half of its lifecycle.
// Used by the delivery worker to no-op on duplicate queue triggers.
func (r *Record) Dispatched() bool {
	switch r.Status {
	case StatusPending, StatusScheduled:
		return false
	}
	return true
}

// SentOrRetriedAt returns the retry-aware dispatch timestamp: LastRetry
// when present (a resend supersedes the original send for display
// purposes), otherwise SentAt.
func (r *Record) SentOrRetriedAt() sql.NullTime {
	if r.LastRetry.Valid {
		return r.LastRetry
	}
	return r.SentAt
}
