package adapters

import (
	"fmt"
	"html"
	"net/smtp"

	"teamboard/microservices/collab-service/logging"
)

// SMTPMailer sends HTML mail over plain SMTP. Without a configured password it
// is a silent no-op so that environments without mail credentials keep working.
type SMTPMailer struct {
	host     string
	port     string
	from     string
	password string
}

func NewSMTPMailer(host, port, from, password string) *SMTPMailer {
	return &SMTPMailer{host: host, port: port, from: from, password: password}
}

func (m *SMTPMailer) Send(to, subject, htmlBody string) error {
	if m.password == "" {
		logging.Logger.Warn("Event ID: EMAIL_SKIPPED, Description: EMAIL_PASSWORD is not set, skipping email delivery")
		return nil
	}

	message := []byte("Subject: " + subject + "\r\n" +
		"From: " + m.from + "\r\n" +
		"To: " + to + "\r\n" +
		"Content-Type: text/html; charset=\"UTF-8\"\r\n\r\n" +
		htmlBody + "\r\n")

	auth := smtp.PlainAuth("", m.from, m.password, m.host)

	if err := smtp.SendMail(m.host+":"+m.port, auth, m.from, []string{to}, message); err != nil {
		return fmt.Errorf("failed to send email: %v", err)
	}

	return nil
}

// TaskAssignmentEmail renders the assignment notice. All interpolated values
// are escaped here so callers can pass raw user input.
func TaskAssignmentEmail(name, title, priority string) string {
	safeName := html.EscapeString(name)
	safeTitle := html.EscapeString(title)
	safePriority := html.EscapeString(priority)

	return fmt.Sprintf(`
    <div style="font-family: Arial, sans-serif; color: #333;">
      <h2>New Task Assignment</h2>
      <p>Hi <strong>%s</strong>,</p>
      <p>You have been assigned to a new task:</p>
      <blockquote style="border-left: 4px solid #2563eb; padding-left: 10px; margin: 20px 0;">
        <p><strong>Title:</strong> %s</p>
        <p><strong>Priority:</strong> %s</p>
      </blockquote>
      <p>Best regards,<br/>The Teamboard Team</p>
    </div>
  `, safeName, safeTitle, safePriority)
}
