package notification

import "time"

// Type identifies a notification kind from the closed catalog. Each kind
// declares its channel and content template; reminder kinds additionally
// carry an offset from the programme membership start date.
type Type string

const (
	TypeProgrammeCreated  Type = "PROGRAMME_CREATED" // welcome message
	TypeProgrammeUpdated  Type = "PROGRAMME_UPDATED"
	TypeDocumentSigned    Type = "DOCUMENT_SIGNED"
	TypeFormUpdated       Type = "FORM_UPDATED"
	TypeCredentialRevoked Type = "CREDENTIAL_REVOKED"

	TypeProgrammeStart12Weeks Type = "PROGRAMME_START_12_WEEKS"
	TypeProgrammeStart8Weeks  Type = "PROGRAMME_START_8_WEEKS"
	TypeProgrammeDayOne       Type = "PROGRAMME_DAY_ONE"
)

// Definition is the catalog entry for a notification kind.
type Definition struct {
	Channel         Channel
	TemplateName    string
	TemplateVersion string
	// StartOffset is added to the programme start date to compute the due
	// date. Only meaningful when IsReminder is true.
	StartOffset time.Duration
	IsReminder  bool
}

const week = 7 * 24 * time.Hour

var catalog = map[Type]Definition{
	TypeProgrammeCreated:  {Channel: ChannelInApp, TemplateName: "programme-created", TemplateVersion: "v1.0.0"},
	TypeProgrammeUpdated:  {Channel: ChannelInApp, TemplateName: "programme-updated", TemplateVersion: "v1.0.0"},
	TypeDocumentSigned:    {Channel: ChannelInApp, TemplateName: "document-signed", TemplateVersion: "v1.0.0"},
	TypeFormUpdated:       {Channel: ChannelInApp, TemplateName: "form-updated", TemplateVersion: "v1.0.0"},
	TypeCredentialRevoked: {Channel: ChannelEmail, TemplateName: "credential-revoked", TemplateVersion: "v1.0.0"},

	TypeProgrammeStart12Weeks: {Channel: ChannelEmail, TemplateName: "programme-start-12-weeks", TemplateVersion: "v1.1.0", StartOffset: -12 * week, IsReminder: true},
	TypeProgrammeStart8Weeks:  {Channel: ChannelEmail, TemplateName: "programme-start-8-weeks", TemplateVersion: "v1.1.0", StartOffset: -8 * week, IsReminder: true},
	TypeProgrammeDayOne:       {Channel: ChannelEmail, TemplateName: "programme-day-one", TemplateVersion: "v1.0.0", StartOffset: 0, IsReminder: true},
}

// Definition returns the catalog entry for t. The second return value is
// false for types outside the catalog.
func (t Type) Definition() (Definition, bool) {
	def, ok := catalog[t]
	return def, ok
}

// ReminderTypes returns the reminder kinds in due-date order (earliest
// offset first).
func ReminderTypes() []Type {
	return []Type{
		TypeProgrammeStart12Weeks,
		TypeProgrammeStart8Weeks,
		TypeProgrammeDayOne,
	}
}
