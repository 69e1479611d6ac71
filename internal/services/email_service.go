package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
)

// LoginAlertSender notifies a user about a sign-in from an unrecognized
// device. Sending is best-effort; the orchestrator logs and swallows errors.
type LoginAlertSender interface {
	SendLoginAlert(ctx context.Context, email, ipAddress, userAgent string, at time.Time) error
}

// AWSSESEmailService sends alert emails using AWS SES
type AWSSESEmailService struct {
	sesClient   *ses.Client
	fromAddress string
	logger      *slog.Logger
}

// NewAWSSESEmailService creates a new AWS SES email service
func NewAWSSESEmailService(region, fromAddress string, logger *slog.Logger) (*AWSSESEmailService, error) {
	cfg, err := config.LoadDefaultConfig(context.Background(), config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return &AWSSESEmailService{
		sesClient:   ses.NewFromConfig(cfg),
		fromAddress: fromAddress,
		logger:      logger,
	}, nil
}

// SendLoginAlert emails the user about a login from a new device.
func (s *AWSSESEmailService) SendLoginAlert(ctx context.Context, email, ipAddress, userAgent string, at time.Time) error {
	when := at.UTC().Format(time.RFC1123)

	textBody := fmt.Sprintf(`New sign-in to your account

We noticed a sign-in to your account from a device we haven't seen before.

Time:       %s
IP address: %s
Device:     %s

If this was you, no action is needed.

If you don't recognize this activity, change your password immediately and
review your active sessions.

This is an automated message. Please do not reply to this email.
`, when, ipAddress, userAgent)

	htmlBody := fmt.Sprintf(`<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif; color: #333;">
  <h2>New sign-in to your account</h2>
  <p>We noticed a sign-in to your account from a device we haven't seen before.</p>
  <table>
    <tr><td><strong>Time</strong></td><td>%s</td></tr>
    <tr><td><strong>IP address</strong></td><td>%s</td></tr>
    <tr><td><strong>Device</strong></td><td>%s</td></tr>
  </table>
  <p>If this was you, no action is needed.</p>
  <p><strong>If you don't recognize this activity</strong>, change your password
  immediately and review your active sessions.</p>
  <p style="color: #666; font-size: 12px;">This is an automated message. Please do not reply to this email.</p>
</body>
</html>`, when, ipAddress, userAgent)

	input := &ses.SendEmailInput{
		Source: aws.String(s.fromAddress),
		Destination: &types.Destination{
			ToAddresses: []string{email},
		},
		Message: &types.Message{
			Subject: &types.Content{
				Data: aws.String("New sign-in to your account"),
			},
			Body: &types.Body{
				Html: &types.Content{
					Data: aws.String(htmlBody),
				},
				Text: &types.Content{
					Data: aws.String(textBody),
				},
			},
		},
	}

	result, err := s.sesClient.SendEmail(ctx, input)
	if err != nil {
		s.logger.Error("failed to send login alert via SES", slog.Any("error", err))
		return fmt.Errorf("failed to send email: %w", err)
	}

	s.logger.Info("login alert sent", slog.String("message_id", *result.MessageId))

	return nil
}
