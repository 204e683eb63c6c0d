package email

import (
	"context"
	"fmt"

	"trainee_notification_service/internal/domain/notification"

	"gopkg.in/gomail.v2"
)

// Gateway delivers email-channel notifications over SMTP. Rendering proper
// belongs to the template service; the gateway composes a minimal message
// around the stored snapshot so the record can be dispatched standalone.
type Gateway struct {
	dialer *gomail.Dialer
	from   string
}

func NewGateway(host string, port int, username, password, from string) *Gateway {
	return &Gateway{
		dialer: gomail.NewDialer(host, port, username, password),
		from:   from,
	}
}

func (g *Gateway) Send(ctx context.Context, rec *notification.Record) error {
	if rec.Recipient.ContactAddress == "" {
		return fmt.Errorf("notification %s has no contact address", rec.ID)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := gomail.NewMessage()
	msg.SetHeader("From", g.from)
	msg.SetHeader("To", rec.Recipient.ContactAddress)
	msg.SetHeader("Subject", subjectFor(rec.Type))
	msg.SetHeader("X-Notification-Id", rec.ID.String())
	msg.SetBody("text/html", renderBody(rec))

	if err := g.dialer.DialAndSend(msg); err != nil {
		return fmt.Errorf("smtp send failed: %w", err)
	}
	return nil
}

func subjectFor(t notification.Type) string {
	switch t {
	case notification.TypeProgrammeStart12Weeks, notification.TypeProgrammeStart8Weeks:
		return "Your training programme is starting soon"
	case notification.TypeProgrammeDayOne:
		return "Your training programme starts today"
	case notification.TypeCredentialRevoked:
		return "A credential on your record has changed"
	default:
		return "Notification from your training programme"
	}
}

// renderBody is a placeholder for the external template renderer: it emits
// the template name/version and the snapshot variables so end-to-end runs
// produce traceable mail.
func renderBody(rec *notification.Record) string {
	body := fmt.Sprintf("<p>Template %s (%s)</p>", rec.Template.Name, rec.Template.Version)
	if name, ok := rec.Template.Variables["programmeName"]; ok {
		body += fmt.Sprintf("<p>Programme: %v</p>", name)
	}
	return body
}
