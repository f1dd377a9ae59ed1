package services

import (
	"context"
	"fmt"
	"html"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"go.uber.org/zap"
)

type Mailer interface {
	SendDashboardShare(ctx context.Context, toEmail, inviterName, dashboardTitle, link string) error
}

type SendGridMailer struct {
	client    *sendgrid.Client
	fromEmail string
}

func NewSendGridMailer(apiKey, fromEmail string) *SendGridMailer {
	return &SendGridMailer{client: sendgrid.NewSendClient(apiKey), fromEmail: fromEmail}
}

func (m *SendGridMailer) SendDashboardShare(ctx context.Context, toEmail, inviterName, dashboardTitle, link string) error {
	from := mail.NewEmail("Dash", m.fromEmail)
	subject := fmt.Sprintf("%s shared the dashboard %q with you", inviterName, dashboardTitle)
	to := mail.NewEmail("", toEmail)

	htmlContent := fmt.Sprintf(`
        <div style="font-family: Arial, sans-serif; line-height: 1.6; color: #333; max-width: 600px; margin: 0 auto; padding: 20px; background-color: #f4f4f4; text-align: center;">
			<div style="background-color: #ffffff; border-radius: 8px; padding: 30px; display: inline-block; text-align: center;">
				<h1 style="color: #2c3e50; margin-bottom: 20px;">A dashboard was shared with you</h1>
				<p><strong>%s</strong> wants you to see <strong>%s</strong>.</p>
				<a href="%s" style="display: inline-block; background-color: #3498db; color: #ffffff; text-decoration: none; padding: 12px 24px; border-radius: 4px; font-weight: bold; margin-top: 20px;">Open dashboard</a>
			</div>
		</div>
        `, html.EscapeString(inviterName), html.EscapeString(dashboardTitle), html.EscapeString(link))

	plainTextContent := fmt.Sprintf("%s shared the dashboard %q with you: %s", inviterName, dashboardTitle, link)

	message := mail.NewSingleEmail(from, subject, to, plainTextContent, htmlContent)
	resp, err := m.client.SendWithContext(ctx, message)
	if err != nil {
		return Upstream("Failed to send share email", err)
	}
	if resp.StatusCode >= 400 {
		return Upstream("Failed to send share email", fmt.Errorf("sendgrid responded %d: %s", resp.StatusCode, resp.Body))
	}
	return nil
}

// LogMailer logs share links instead of sending them.
type LogMailer struct {
	Logger *zap.Logger
}

func (m LogMailer) SendDashboardShare(ctx context.Context, toEmail, inviterName, dashboardTitle, link string) error {
	m.Logger.Info("Dashboard shared",
		zap.String("to", toEmail),
		zap.String("inviter", inviterName),
		zap.String("dashboard", dashboardTitle),
		zap.String("link", link),
	)
	return nil
}
