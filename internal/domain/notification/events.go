package notification

import (
	"fmt"
	"time"
)

// BusinessEventKind tags an inbound business event. Dispatch over the kind
// is an explicit switch in the event handler; every arm funnels into the
// same record-creation path.
type BusinessEventKind string

const (
	EventDocumentSigned    BusinessEventKind = "DOCUMENT_SIGNED"
	EventFormUpdated       BusinessEventKind = "FORM_UPDATED"
	EventCredentialRevoked BusinessEventKind = "CREDENTIAL_REVOKED"
	EventProgrammeCreated  BusinessEventKind = "PROGRAMME_MEMBERSHIP_CREATED"
	EventProgrammeUpdated  BusinessEventKind = "PROGRAMME_MEMBERSHIP_UPDATED"
	EventAccountChanged    BusinessEventKind = "ACCOUNT_CHANGED"
)

// AccountChange signals that a person's deliverable account identity was
// replaced (e.g. an account merge in the identity service). Notification
// history follows the person, so ownership migrates to the new identity.
type AccountChange struct {
	FromIdentity string
	ToIdentity   string
}

// ProgrammeMembership is the long-lived business entity reminder
// notifications are derived from.
type ProgrammeMembership struct {
	ID            string
	PersonID      string
	ProgrammeName string
	StartDate     time.Time
}

// BusinessEvent is an inbound event from the wider system. Programme is
// populated for the programme membership kinds only.
type BusinessEvent struct {
	Kind       BusinessEventKind
	PersonID   string
	Reference  TisReference
	OccurredAt time.Time
	Programme  *ProgrammeMembership
	// AccountChange is populated for EventAccountChanged only.
	AccountChange *AccountChange
	// Attributes carries event-specific template variables (document name,
	// form reference, credential type, ...). Stored verbatim on the record.
	Attributes map[string]any
}

// OutcomeKind classifies asynchronous delivery feedback from the email
// provider.
type OutcomeKind string

const (
	OutcomeDelivered OutcomeKind = "DELIVERED"
	OutcomeBounced   OutcomeKind = "BOUNCED"
	OutcomeComplaint OutcomeKind = "COMPLAINT"
)

// DeliveryOutcome is a provider callback about an earlier send. These
// arrive asynchronously and possibly out of order; EventAt is the sole
// ordering mechanism.
type DeliveryOutcome struct {
	NotificationID string
	Kind           OutcomeKind
	SubType        string
	Diagnostic     string
	FeedbackType   string
	EventAt        time.Time
}

// FailureDetail formats the diagnostic string recorded on the notification
// when a bounce or complaint is applied.
func (o DeliveryOutcome) FailureDetail() string {
	switch o.Kind {
	case OutcomeBounced:
		return fmt.Sprintf("Bounce: %s - %s", o.SubType, o.Diagnostic)
	case OutcomeComplaint:
		detail := o.SubType
		if detail == "" {
			detail = o.FeedbackType
		}
		if detail == "" {
			detail = "Undetermined"
		}
		return fmt.Sprintf("Complaint: %s", detail)
	default:
		return ""
	}
}

