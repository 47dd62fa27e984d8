package mail

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
)

var (
	verificationTemplate = template.Must(template.New("verification").Parse(
		`<a href="{{.URL}}">Verify your email address</a>`))

	resetPasswordTemplate = template.Must(template.New("reset_password").Parse(`<p>Hello {{.Username}},</p>
<p>Someone requested a password reset for your account. If this was you, follow the link below to choose a new password.</p>
<p><a href="{{.URL}}">Reset your password</a></p>
<p>If you did not request this, you can ignore this email.</p>`))

	invitationTemplate = template.Must(template.New("invitation").Parse(`<p>Hello {{.Username}},</p>
<p><strong>{{.InvitedByUsername}}</strong> ({{.InvitedByEmail}}) has invited you to join <strong>{{.TeamName}}</strong>.</p>
<p><a href="{{.URL}}">Join the team</a></p>`))
)

// Invitation holds what the invitation mail shows.
type Invitation struct {
	Email             string
	InvitedByUsername string
	InvitedByEmail    string
	TeamName          string
	URL               string
}

// Mailer renders and sends the auth and organization mails.
type Mailer struct {
	sender Sender
	from   string
	testTo string
}

func NewMailer(cfg Config, sender Sender) *Mailer {
	from := cfg.From
	if from == "" {
		from = DefaultFrom
	}

	return &Mailer{
		sender: sender,
		from:   from,
		testTo: cfg.TestTo,
	}
}

func (m *Mailer) SendVerification(ctx context.Context, email, url string) error {
	to := email
	if m.testTo != "" {
		to = m.testTo
	}

	return m.send(ctx, to, "Verify your email address", verificationTemplate, map[string]string{
		"URL": url,
	})
}

func (m *Mailer) SendResetPassword(ctx context.Context, email, url string) error {
	return m.send(ctx, email, "Reset your password", resetPasswordTemplate, map[string]string{
		"Username": email,
		"URL":      url,
	})
}

func (m *Mailer) SendInvitation(ctx context.Context, inv Invitation) error {
	return m.send(ctx, inv.Email, "You've been invited to join an organization", invitationTemplate, map[string]string{
		"Username":          inv.Email,
		"InvitedByUsername": inv.InvitedByUsername,
		"InvitedByEmail":    inv.InvitedByEmail,
		"TeamName":          inv.TeamName,
		"URL":               inv.URL,
	})
}

func (m *Mailer) send(ctx context.Context, to, subject string, tmpl *template.Template, data any) error {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return fmt.Errorf("failed to render %s mail: %w", tmpl.Name(), err)
	}

	return m.sender.Send(ctx, Message{
		From:    m.from,
		To:      to,
		Subject: subject,
		HTML:    buf.String(),
	})
}
