// Package email provides the email client for sending session reports.
package email

import (
	"context"
	"fmt"

	"github.com/commxr/commxr-go/internal/domain/providers"
	"github.com/commxr/commxr-go/internal/infrastructure/email/templates"
	"github.com/commxr/commxr-go/internal/infrastructure/observability/logging"
	"github.com/resendlabs/resend-go"
)

// Sender is the subset of the Resend client used here, so tests can stub it
type Sender interface {
	Send(params *resend.SendEmailRequest) (resend.SendEmailResponse, error)
}

// ResendReporter delivers end-of-session transcripts through the Resend API
type ResendReporter struct {
	sender    Sender
	fromEmail string
	fromName  string
	logger    *logging.ChanneledLogger
}

var _ providers.SessionReporter = (*ResendReporter)(nil)

// NewResendReporter creates a reporter. The API key is required.
func NewResendReporter(apiKey, fromEmail, fromName string, logger *logging.ChanneledLogger) (*ResendReporter, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("RESEND_API_KEY is required for session reports")
	}
	client := resend.NewClient(apiKey)
	return NewReporterWithSender(client.Emails, fromEmail, fromName, logger), nil
}

// NewReporterWithSender creates a reporter over an arbitrary sender
func NewReporterWithSender(sender Sender, fromEmail, fromName string, logger *logging.ChanneledLogger) *ResendReporter {
	if fromEmail == "" {
		fromEmail = "noreply@commxr.app"
	}
	if fromName == "" {
		fromName = "Comm-XR"
	}
	return &ResendReporter{sender: sender, fromEmail: fromEmail, fromName: fromName, logger: logger}
}

// SendSessionReport renders the transcript and sends it to the session owner
func (r *ResendReporter) SendSessionReport(ctx context.Context, to, sessionID, transcript string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	htmlContent, err := templates.GetSessionReport(templates.SessionReportProps{
		SessionID:  sessionID,
		Transcript: transcript,
	})
	if err != nil {
		return fmt.Errorf("failed to render session report: %w", err)
	}

	params := &resend.SendEmailRequest{
		From:    fmt.Sprintf("%s <%s>", r.fromName, r.fromEmail),
		To:      []string{to},
		Subject: "Your conversation summary",
		Html:    htmlContent,
	}

	resp, err := r.sender.Send(params)
	if err != nil {
		return fmt.Errorf("failed to send session report via Resend: %w", err)
	}

	r.logger.WithSession(logging.ChannelEmail, sessionID).Info("Session report sent", "emailId", resp.Id)
	return nil
}
