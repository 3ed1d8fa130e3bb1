package notifier

import (
	"fmt"
	"net/smtp"

	"ingestion-service/internal/models"
)

// sendEmail delivers one alert over SMTP using the configured account.
func (d *Dispatcher) sendEmail(recipient string, alert models.Alert) error {
	smtpServer := d.cfg.Email.SMTPServer
	smtpPort := d.cfg.Email.SMTPPort
	username := d.cfg.Email.Username
	password := d.cfg.Email.Password

	if smtpServer == "" || smtpPort == 0 || username == "" || password == "" {
		return fmt.Errorf("missing email configuration: SMTPServer, SMTPPort, Username, or Password is empty")
	}

	message := fmt.Sprintf("Subject: [%s] %s\n\n%s", alert.Severity, alert.Title, alert.Message)

	auth := smtp.PlainAuth("", username, password, smtpServer)
	addr := fmt.Sprintf("%s:%d", smtpServer, smtpPort)

	if err := smtp.SendMail(addr, auth, username, []string{recipient}, []byte(message)); err != nil {
		return fmt.Errorf("failed to send email to %s: %w", recipient, err)
	}
	return nil
}
