package services

import (
	"context"
	"fmt"
	"html"
	"time"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/purrfectstays/purrfect-neko-sub001/internal/models"
	"github.com/purrfectstays/purrfect-neko-sub001/internal/repositories"
	"github.com/purrfectstays/purrfect-neko-sub001/internal/utils"
)

// HTML template for the welcome email sent after the quiz.
const welcomeEmailHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="UTF-8">
<meta name="viewport" content="width=device-width, initial-scale=1.0">
<title>Welcome to Purrfect Stays!</title>
<style>
  body { font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, "Helvetica Neue", Arial, sans-serif; line-height: 1.6; color: #333; background-color: #fdf8f3; margin: 0; padding: 20px; }
  .container { max-width: 520px; margin: auto; background: #ffffff; border: 1px solid #f0e6da; border-radius: 8px; overflow: hidden; }
  .header { background-color: #e07a5f; color: white; padding: 20px; text-align: center; }
  .header h1 { margin: 0; font-size: 24px; }
  .content { padding: 30px; text-align: left; }
  .position { font-size: 32px; font-weight: bold; color: #e07a5f; text-align: center; margin: 20px 0; }
  .footer { background-color: #fdf8f3; padding: 20px; text-align: center; font-size: 12px; color: #6c757d; }
</style>
</head>
<body>
  <div class="container">
    <div class="header">
      <h1>You're on the list, %s!</h1>
    </div>
    <div class="content">
      <p>Thanks for joining the Purrfect Stays waitlist as a %s.</p>
      <div class="position">#%d</div>
      <p>That's your place in line. We'll email you as soon as early access opens.</p>
    </div>
    <div class="footer">
      © %d Purrfect Stays. Questions? %s
    </div>
  </div>
</body>
</html>`

// WelcomeNotifier sends the post-quiz welcome message.
type WelcomeNotifier interface {
	SendWelcome(ctx context.Context, u *models.WaitlistUser, position int) error
}

// edgeFunctionNotifier delegates to the backend's send-welcome-email function.
type edgeFunctionNotifier struct {
	repo repositories.WaitlistUserRepository
}

func NewEdgeFunctionNotifier(repo repositories.WaitlistUserRepository) WelcomeNotifier {
	return &edgeFunctionNotifier{repo: repo}
}

func (n *edgeFunctionNotifier) SendWelcome(ctx context.Context, u *models.WaitlistUser, position int) error {
	return n.repo.SendWelcomeEmail(ctx, repositories.WelcomeEmailPayload{
		Email:            u.Email,
		Name:             u.Name,
		WaitlistPosition: position,
		UserType:         string(u.UserType),
	})
}

type sendgridNotifier struct {
	client    *sendgrid.Client
	fromEmail string
}

func NewSendgridNotifier(apiKey, fromEmail string) WelcomeNotifier {
	return &sendgridNotifier{
		client:    sendgrid.NewSendClient(apiKey),
		fromEmail: fromEmail,
	}
}

func (n *sendgridNotifier) SendWelcome(_ context.Context, u *models.WaitlistUser, position int) error {
	from := mail.NewEmail(utils.OrganizationName, n.fromEmail)
	to := mail.NewEmail(u.Name, u.Email)

	subject := fmt.Sprintf("Welcome to %s, you're #%d on the waitlist", utils.OrganizationName, position)
	plainTextContent := fmt.Sprintf(
		"Hi %s,\n\nThanks for joining the %s waitlist. Your position is #%d.\n\nThe %s team",
		u.Name, utils.OrganizationName, position, utils.OrganizationName,
	)
	htmlContent := fmt.Sprintf(
		welcomeEmailHTML,
		html.EscapeString(u.Name),
		html.EscapeString(userTypeLabel(u.UserType)),
		position,
		time.Now().Year(),
		utils.SupportEmail,
	)

	msg := mail.NewSingleEmail(from, subject, to, plainTextContent, htmlContent)
	resp, err := n.client.Send(msg)
	if err != nil {
		return err
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("%w: sendgrid status %d: %s", utils.ErrExternalServiceFailure, resp.StatusCode, resp.Body)
	}
	return nil
}

func userTypeLabel(t models.UserType) string {
	switch t {
	case models.UserTypeCatteryOwner:
		return "cattery owner"
	default:
		return "cat parent"
	}
}
