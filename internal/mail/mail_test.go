package mail_test

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/d9705996/checkin/internal/config"
	"github.com/d9705996/checkin/internal/mail"
	"github.com/d9705996/checkin/internal/onboarding"
)

func TestSendOnboardingInvitation_SMTPDisabled(t *testing.T) {
	// With no SMTP host configured the invitation is logged, never an error.
	svc := mail.New(config.SMTPConfig{From: "onboarding@checkin.local"},
		slog.New(slog.NewTextHandler(io.Discard, nil)))

	err := svc.SendOnboardingInvitation(context.Background(), onboarding.Invitation{
		ToEmail:      "hire@example.com",
		EmployeeName: "New Hire",
		OrgName:      "Sunset Motel",
		URL:          "http://localhost:8080/onboarding?token=abc",
		Locale:       "de", // unknown locale falls back to English
	})
	require.NoError(t, err)
}
