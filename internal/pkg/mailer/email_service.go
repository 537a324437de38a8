// FILE: internal/pkg/mailer/email_service.go
package mailer

import (
	"fmt"
	"time"

	"gopkg.in/gomail.v2"
)

type IEmailService interface {
	SendSubscriptionActivated(toEmail, planName string, endTime time.Time) error
	SendSubscriptionRenewed(toEmail, planName string, endTime time.Time) error
}

type emailService struct {
	dialer      *gomail.Dialer
	senderEmail string
	senderName  string
	frontendURL string
}

func NewEmailService(host string, port int, username, password, senderName, frontendURL string) IEmailService {
	d := gomail.NewDialer(host, port, username, password)

	return &emailService{
		dialer:      d,
		senderEmail: username,
		senderName:  senderName,
		frontendURL: frontendURL,
	}
}

func (s *emailService) SendSubscriptionActivated(toEmail, planName string, endTime time.Time) error {
	body := fmt.Sprintf(`
		<div style="font-family: Arial, sans-serif; padding: 20px; color: #333;">
			<h2>Welcome to %s!</h2>
			<p>Your subscription is now active and runs until <strong>%s</strong>.</p>
			<p>You can start publishing offers right away from your <a href="%s/dashboard">dashboard</a>.</p>
		</div>
	`, planName, endTime.Format("02 Jan 2006"), s.frontendURL)

	return s.send(toEmail, "Your subscription is active", body)
}

func (s *emailService) SendSubscriptionRenewed(toEmail, planName string, endTime time.Time) error {
	body := fmt.Sprintf(`
		<div style="font-family: Arial, sans-serif; padding: 20px; color: #333;">
			<h2>%s renewed</h2>
			<p>We charged your saved card. Your subscription now runs until <strong>%s</strong>.</p>
		</div>
	`, planName, endTime.Format("02 Jan 2006"))

	return s.send(toEmail, "Your subscription was renewed", body)
}

func (s *emailService) send(toEmail, subject, body string) error {
	m := gomail.NewMessage()
	m.SetAddressHeader("From", s.senderEmail, s.senderName)
	m.SetHeader("To", toEmail)
	m.SetHeader("Subject", subject)
	m.SetBody("text/html", body)

	if err := s.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("send %q to %s: %w", subject, toEmail, err)
	}
	return nil
}
