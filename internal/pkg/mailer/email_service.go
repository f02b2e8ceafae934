// FILE: internal/pkg/mailer/email_service.go
package mailer

import (
	"fmt"
	"html"
	"strings"

	"ai-tutoring-be/internal/pkg/logger"

	"gopkg.in/gomail.v2"
)

// ReviewRequest summarises a job that is waiting for a teacher decision.
type ReviewRequest struct {
	JobID     string
	ScopeID   string
	Topic     string
	Generated int
	Requested int
	Failed    int
}

type IEmailService interface {
	SendReviewRequest(toEmail string, req ReviewRequest) error
}

type emailService struct {
	dialer      *gomail.Dialer
	senderEmail string
	senderName  string
	reviewURL   string
	logger      logger.ILogger
}

// NewEmailService returns a no-op sender when host is empty.
func NewEmailService(host string, port int, username, password, senderName, reviewURL string, log logger.ILogger) IEmailService {
	if strings.TrimSpace(host) == "" {
		return nopEmailService{}
	}
	return &emailService{
		dialer:      gomail.NewDialer(host, port, username, password),
		senderEmail: username,
		senderName:  senderName,
		reviewURL:   strings.TrimRight(reviewURL, "/"),
		logger:      log,
	}
}

func (s *emailService) SendReviewRequest(toEmail string, req ReviewRequest) error {
	m := buildReviewMessage(s.senderEmail, s.senderName, toEmail, s.reviewURL, req)

	if err := s.dialer.DialAndSend(m); err != nil {
		s.logger.Error("Mailer", "Failed to send review request", map[string]interface{}{
			"to":     toEmail,
			"job_id": req.JobID,
			"error":  err.Error(),
		})
		return err
	}

	s.logger.Info("Mailer", "Review request sent", map[string]interface{}{"to": toEmail, "job_id": req.JobID})
	return nil
}

func buildReviewMessage(from, fromName, to, reviewURL string, req ReviewRequest) *gomail.Message {
	m := gomail.NewMessage()
	m.SetAddressHeader("From", from, fromName)
	m.SetHeader("To", to)
	m.SetHeader("Subject", fmt.Sprintf("Exercises ready for review: %s (%d of %d)", req.Topic, req.Generated, req.Requested))
	m.SetBody("text/html", reviewBody(reviewURL, req))
	return m
}

func reviewBody(reviewURL string, req ReviewRequest) string {
	link := ""
	if reviewURL != "" {
		href := fmt.Sprintf("%s/%s", reviewURL, req.JobID)
		link = fmt.Sprintf(`<p><a href="%s" style="background-color: #007BFF; color: white; padding: 10px 20px; text-decoration: none; border-radius: 5px; display: inline-block;">Review drafts</a></p>`,
			html.EscapeString(href))
	}

	return fmt.Sprintf(`
		<div style="font-family: Arial, sans-serif; padding: 20px; color: #333;">
			<h2>New exercise drafts</h2>
			<p>Topic: <strong>%s</strong> (course %s)</p>
			<p>%d of %d exercises were generated; %d could not be produced.</p>
			%s
			<p>Job id: %s</p>
		</div>
	`, html.EscapeString(req.Topic), html.EscapeString(req.ScopeID), req.Generated, req.Requested, req.Failed, link, html.EscapeString(req.JobID))
}

type nopEmailService struct{}

func (nopEmailService) SendReviewRequest(string, ReviewRequest) error { return nil }
