// Package mail renders and sends the transactional emails the core flows
// fire. Every send is fire-and-forget: the boolean result reaches the
// response as a delivery flag, failures are logged and never fail the
// triggering operation.
package mail

import (
	"context"
	"fmt"

	"github.com/cloudsecurityweb/echopad-app-sub000/pkg/config"
	"github.com/cloudsecurityweb/echopad-app-sub000/pkg/logx"
	"github.com/cloudsecurityweb/echopad-app-sub000/pkg/notifx"
)

const (
	tmplVerification = "email_verification"
	tmplInvitation   = "invitation"
	tmplMagicLink    = "magic_link"
)

const verificationTemplate = `
<p>Hi {{.Name}},</p>
<p>Confirm your email address to finish setting up your account:</p>
<p><a href="{{.Link}}">Verify email</a></p>
<p>If you did not create this account you can ignore this message.</p>`

const invitationTemplate = `
<p>Hi,</p>
<p>{{.Inviter}} invited you to join their workspace.</p>
<p><a href="{{.Link}}">Accept invitation</a></p>
<p>This invitation expires after a few days.</p>`

const magicLinkTemplate = `
<p>Hi,</p>
<p>Use this link to sign in. It works once and expires shortly:</p>
<p><a href="{{.Link}}">Sign in</a></p>`

// Mailer sends the application's transactional emails.
type Mailer struct {
	client      *notifx.Client
	fromAddress string
	fromName    string
	baseURL     string
}

// NewMailer builds the mailer and registers its templates. A bad built-in
// template is a programming error, hence the panic.
func NewMailer(client *notifx.Client, cfg config.NotifxConfig, baseURL string) *Mailer {
	for name, tmpl := range map[string]string{
		tmplVerification: verificationTemplate,
		tmplInvitation:   invitationTemplate,
		tmplMagicLink:    magicLinkTemplate,
	} {
		if err := client.RegisterTemplate(name, tmpl); err != nil {
			panic(fmt.Sprintf("mail: register template %s: %v", name, err))
		}
	}
	return &Mailer{
		client:      client,
		fromAddress: cfg.FromAddress,
		fromName:    cfg.FromName,
		baseURL:     baseURL,
	}
}

// SendVerificationEmail mails an email verification link.
func (m *Mailer) SendVerificationEmail(ctx context.Context, email, token, name string) bool {
	return m.send(ctx, tmplVerification, email, "Verify your email address", map[string]string{
		"Name": name,
		"Link": fmt.Sprintf("%s/auth/verify-email?token=%s", m.baseURL, token),
	})
}

// SendInvitationEmail mails an invitation link.
func (m *Mailer) SendInvitationEmail(ctx context.Context, email, token, inviterName string) bool {
	if inviterName == "" {
		inviterName = "An administrator"
	}
	return m.send(ctx, tmplInvitation, email, "You have been invited", map[string]string{
		"Inviter": inviterName,
		"Link":    fmt.Sprintf("%s/invitations/accept?token=%s", m.baseURL, token),
	})
}

// SendMagicLinkEmail mails a single-use sign-in link.
func (m *Mailer) SendMagicLinkEmail(ctx context.Context, email, link string) bool {
	return m.send(ctx, tmplMagicLink, email, "Your sign-in link", map[string]string{
		"Link": link,
	})
}

func (m *Mailer) send(ctx context.Context, template, to, subject string, data map[string]string) bool {
	msg := notifx.EmailMessage{
		From:    fmt.Sprintf("%s <%s>", m.fromName, m.fromAddress),
		To:      []string{to},
		Subject: subject,
	}
	if err := m.client.SendTemplatedEmail(ctx, template, data, msg); err != nil {
		logx.WithError(err).WithFields(logx.Fields{
			"template": template,
			"to":       to,
		}).Error("failed to send email")
		return false
	}
	return true
}
