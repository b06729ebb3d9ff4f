package email

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"net/smtp"

	"github.com/orgdesk/orgdesk-api/internal/logging"
)

// Service delivers account emails over SMTP. It is process-scoped state:
// constructed once at startup and handed to the auth service, never a
// package-level singleton.
type Service struct {
	smtpHost     string
	smtpPort     string
	smtpUser     string
	smtpPassword string
	fromEmail    string
	frontendURL  string
}

func NewService(smtpHost, smtpPort, smtpUser, smtpPassword, frontendURL string) *Service {
	return &Service{
		smtpHost:     smtpHost,
		smtpPort:     smtpPort,
		smtpUser:     smtpUser,
		smtpPassword: smtpPassword,
		fromEmail:    smtpUser,
		frontendURL:  frontendURL,
	}
}

// SendVerificationEmail sends an email verification link.
// Designed to be called from a goroutine; failures are the caller's to log.
func (s *Service) SendVerificationEmail(ctx context.Context, toEmail, token string) error {
	logger := logging.GetLoggerFromContext(ctx)

	verificationLink := fmt.Sprintf("%s/verify?token=%s", s.frontendURL, token)

	body, err := renderTemplate(verificationTmpl, map[string]string{"Link": verificationLink})
	if err != nil {
		return fmt.Errorf("render template: %w", err)
	}

	if err := s.sendEmail(toEmail, "Verify your email address", body); err != nil {
		return fmt.Errorf("send email: %w", err)
	}

	logger.Info("verification email sent", "email", toEmail)
	return nil
}

// SendPasswordResetEmail sends a password reset link.
func (s *Service) SendPasswordResetEmail(ctx context.Context, toEmail, token string) error {
	logger := logging.GetLoggerFromContext(ctx)

	resetLink := fmt.Sprintf("%s/reset-password?token=%s", s.frontendURL, token)

	body, err := renderTemplate(resetTmpl, map[string]string{"Link": resetLink})
	if err != nil {
		return fmt.Errorf("render template: %w", err)
	}

	if err := s.sendEmail(toEmail, "Reset your password", body); err != nil {
		return fmt.Errorf("send email: %w", err)
	}

	logger.Info("password reset email sent", "email", toEmail)
	return nil
}

func (s *Service) sendEmail(to, subject, body string) error {
	auth := smtp.PlainAuth("", s.smtpUser, s.smtpPassword, s.smtpHost)

	msg := []byte(fmt.Sprintf(
		"From: %s\r\n"+
			"To: %s\r\n"+
			"Subject: %s\r\n"+
			"MIME-Version: 1.0\r\n"+
			"Content-Type: text/html; charset=UTF-8\r\n"+
			"\r\n"+
			"%s\r\n",
		s.fromEmail, to, subject, body,
	))

	addr := fmt.Sprintf("%s:%s", s.smtpHost, s.smtpPort)
	return smtp.SendMail(addr, auth, s.fromEmail, []string{to}, msg)
}

func renderTemplate(tmpl string, data map[string]string) (string, error) {
	t, err := template.New("email").Parse(tmpl)
	if err != nil {
		return "", fmt.Errorf("parse template: %w", err)
	}

	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("execute template: %w", err)
	}

	return buf.String(), nil
}

const verificationTmpl = `
<!DOCTYPE html>
<html>
<head><meta charset="UTF-8"></head>
<body style="font-family: Arial, sans-serif; color: #333; max-width: 600px; margin: 0 auto; padding: 20px;">
    <h2>Verify your email address</h2>
    <p>Thanks for signing up. Click the button below to verify your email address and activate your account.</p>
    <p><a href="{{.Link}}" style="display: inline-block; background-color: #2563EB; color: #fff; padding: 12px 30px; text-decoration: none; border-radius: 5px;">Verify Email Address</a></p>
    <p>Or copy and paste this link into your browser:</p>
    <p style="word-break: break-all; color: #2563EB;">{{.Link}}</p>
    <p>If you didn't create an account, you can safely ignore this email.</p>
    <p style="font-size: 12px; color: #666;">This link will expire in 24 hours.</p>
</body>
</html>
`

const resetTmpl = `
<!DOCTYPE html>
<html>
<head><meta charset="UTF-8"></head>
<body style="font-family: Arial, sans-serif; color: #333; max-width: 600px; margin: 0 auto; padding: 20px;">
    <h2>Reset your password</h2>
    <p>You requested a password reset. Click the button below to choose a new password.</p>
    <p><a href="{{.Link}}" style="display: inline-block; background-color: #2563EB; color: #fff; padding: 12px 30px; text-decoration: none; border-radius: 5px;">Reset Password</a></p>
    <p>Or copy and paste this link into your browser:</p>
    <p style="word-break: break-all; color: #2563EB;">{{.Link}}</p>
    <p>If you didn't request a password reset, you can safely ignore this email. Your password will remain unchanged.</p>
    <p style="font-size: 12px; color: #666;">This link will expire in 1 hour.</p>
</body>
</html>
`
