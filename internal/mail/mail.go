// Package mail sends transactional mail over SMTP. When no SMTP host is
// configured the service degrades to logging, so a missing mail setup never
// blocks onboarding flows.
package mail

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/d9705996/checkin/internal/config"
	"github.com/d9705996/checkin/internal/onboarding"
	"gopkg.in/gomail.v2"
)

// Service sends onboarding invitation mail. It satisfies onboarding.Inviter.
type Service struct {
	cfg config.SMTPConfig
	log *slog.Logger
}

// New creates a mail Service from SMTP config.
func New(cfg config.SMTPConfig, log *slog.Logger) *Service {
	return &Service{cfg: cfg, log: log}
}

var invitationSubjects = map[string]string{
	"en": "Your onboarding at %s is ready",
	"es": "Su incorporación en %s está lista",
	"fr": "Votre intégration chez %s est prête",
}

// SendOnboardingInvitation mails the session link to the new hire. With no
// SMTP host configured it only logs the invitation.
func (s *Service) SendOnboardingInvitation(ctx context.Context, inv onboarding.Invitation) error {
	subjectFmt, ok := invitationSubjects[inv.Locale]
	if !ok {
		subjectFmt = invitationSubjects["en"]
	}
	subject := fmt.Sprintf(subjectFmt, inv.OrgName)

	if s.cfg.Host == "" {
		s.log.Info("smtp disabled; invitation not sent",
			"to", inv.ToEmail, "subject", subject, "url", inv.URL)
		return nil
	}

	body := fmt.Sprintf(
		"Hello %s,\n\nWelcome to %s! Your %s onboarding paperwork is ready.\n\n"+
			"Open the link below to get started:\n%s\n\n"+
			"The link expires, so please complete your paperwork promptly.\n",
		inv.EmployeeName, inv.OrgName, inv.Position, inv.URL,
	)

	m := gomail.NewMessage()
	m.SetHeader("From", s.cfg.From)
	m.SetHeader("To", inv.ToEmail)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", body)

	d := gomail.NewDialer(s.cfg.Host, s.cfg.Port, s.cfg.Username, s.cfg.Password)
	if err := d.DialAndSend(m); err != nil {
		return fmt.Errorf("send invitation mail: %w", err)
	}
	return nil
}
