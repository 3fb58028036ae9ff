// Package notifxconsole logs emails instead of sending them. For development
// and tests.
package notifxconsole

import (
	"context"
	"strings"

	"github.com/cloudsecurityweb/echopad-app-sub000/pkg/logx"
	"github.com/cloudsecurityweb/echopad-app-sub000/pkg/notifx"
)

type Provider struct{}

func NewProvider() *Provider {
	return &Provider{}
}

// SendEmail logs the email details instead of delivering anything.
func (p *Provider) SendEmail(_ context.Context, msg notifx.EmailMessage) error {
	logx.WithFields(logx.Fields{
		"from":    msg.From,
		"to":      strings.Join(msg.To, ", "),
		"subject": msg.Subject,
	}).Info("email sent (console provider)")

	if msg.TextBody != "" {
		logx.Debugf("email text body:\n%s", msg.TextBody)
	}
	if msg.HTMLBody != "" {
		logx.Debugf("email html body:\n%s", msg.HTMLBody)
	}
	return nil
}
