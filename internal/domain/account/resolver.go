package account

import "context"

// Account is one deliverable identity for a person, as known to the
// external identity service.
type Account struct {
	Identity    string // opaque account id, stored on notification records
	Email       string
	DisplayName string
}

// Resolver maps business person ids onto deliverable account identities.
// Implementations call the external identity service and should cache:
// the reminder planner resolves the same person repeatedly.
type Resolver interface {
	// Resolve returns zero or more accounts for a person. An empty slice is
	// not an error; the person may simply have no registered account yet.
	Resolve(ctx context.Context, personID string) ([]Account, error)

	// Details returns contact details for a single account identity.
	Details(ctx context.Context, identity string) (*Account, error)
}
