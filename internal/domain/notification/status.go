package notification

import "fmt"

// Status is the lifecycle state of a NotificationRecord.
type Status string

const (
	StatusPending   Status = "PENDING"   // created, awaiting immediate dispatch
	StatusScheduled Status = "SCHEDULED" // deferred until ScheduledFor
	StatusSent      Status = "SENT"
	StatusFailed    Status = "FAILED"
	StatusUnread    Status = "UNREAD" // in-app only
	StatusRead      Status = "READ"   // in-app only
	StatusArchived  Status = "ARCHIVED"
)

// Channel identifies how a notification reaches its recipient.
type Channel string

const (
	ChannelEmail Channel = "EMAIL"
	ChannelInApp Channel = "IN_APP"
)

// transitions is the status state machine. SENT -> FAILED exists for the
// email channel only (asynchronous bounce/complaint reconciliation);
// SENT -> UNREAD exists for the in-app channel only. The channel masks
// below enforce the split. FAILED -> FAILED lets a newer provider callback
// (a complaint following a bounce) refresh the failure detail: the latest
// event wins.
var transitions = map[Status][]Status{
	StatusPending:   {StatusSent, StatusFailed},
	StatusScheduled: {StatusSent, StatusFailed},
	StatusSent:      {StatusFailed, StatusUnread},
	StatusFailed:    {StatusFailed},
	StatusUnread:    {StatusRead, StatusArchived},
	StatusRead:      {StatusUnread, StatusArchived},
}

// channelStatuses lists every status a record of a given channel may hold.
// In-app delivery is a database write, so in-app records never FAIL; email
// records have no read/archive lifecycle.
var channelStatuses = map[Channel][]Status{
	ChannelEmail: {StatusPending, StatusScheduled, StatusSent, StatusFailed},
	ChannelInApp: {StatusPending, StatusScheduled, StatusSent, StatusUnread, StatusRead, StatusArchived},
}

// InvalidTransitionError reports a status change the state machine forbids.
// The record's stored state is left untouched by the caller.
type InvalidTransitionError struct {
	Channel Channel
	From    Status
	To      Status
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid status transition %s -> %s for channel %s", e.From, e.To, e.Channel)
}

// StatusAllowedForChannel reports whether a record of the given channel may
// ever hold the given status.
func StatusAllowedForChannel(ch Channel, s Status) bool {
	for _, allowed := range channelStatuses[ch] {
		if allowed == s {
			return true
		}
	}
	return false
}

// CanTransition reports whether the state machine permits from -> to on the
// given channel.
func CanTransition(ch Channel, from, to Status) bool {
	if !StatusAllowedForChannel(ch, to) {
		return false
	}
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
