package action

import (
	"context"
	"database/sql"
)

// Action is one prerequisite task tracked for a person against a business
// entity (review programme data, sign conditions of joining, ...).
type Action struct {
	Type        string
	CompletedAt sql.NullTime
}

// Completed reports whether the action has been marked done.
func (a Action) Completed() bool {
	return a.CompletedAt.Valid
}

// StatusService is the external service that knows which prerequisite
// actions a person has completed for an entity. Calls are network-bound and
// must carry bounded timeouts; callers tolerate failures by treating them
// as "no information".
type StatusService interface {
	ListActions(ctx context.Context, personID, entityID string) ([]Action, error)
}

// AllComplete reports whether actions is non-empty and every entry is
// complete. An empty set means there is nothing the recipient could have
// self-resolved, so it is not "complete".
func AllComplete(actions []Action) bool {
	if len(actions) == 0 {
		return false
	}
	for _, a := range actions {
		if !a.Completed() {
			return false
		}
	}
	return true
}
