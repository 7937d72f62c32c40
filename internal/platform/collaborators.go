package platform

import (
	"context"

	"github.com/google/uuid"

	"vahub-messaging/internal/domain"
	"vahub-messaging/pkg/logger"
)

// The messaging core consumes the rest of the marketplace through these
// narrow interfaces. Profile scoring, email delivery and the user
// directory are owned elsewhere; this package defines what the core
// needs and ships logging fallbacks for local runs.

// CompletionProvider exposes the profile-completion score that gates
// business-to-VA contact.
type CompletionProvider interface {
	CompletionPercentage(ctx context.Context, businessID uuid.UUID) (int, error)
}

// EmailSender delivers templated email. Failures are logged and
// swallowed by callers; email is best-effort.
type EmailSender interface {
	Send(ctx context.Context, template string, data map[string]any) error
}

// RoleDirectory resolves a user id to its marketplace role.
type RoleDirectory interface {
	RoleOf(ctx context.Context, userID uuid.UUID) (domain.Role, error)
}

// LoggingEmailSender logs instead of sending. Used in development and
// as the default wiring when no provider is configured.
type LoggingEmailSender struct {
	Log *logger.Logger
}

func (s *LoggingEmailSender) Send(ctx context.Context, template string, data map[string]any) error {
	if s.Log != nil {
		s.Log.Infof("email suppressed: template=%s data=%v", template, data)
	}
	return nil
}

// StaticCompletionProvider returns a fixed score; test and dev wiring.
type StaticCompletionProvider struct {
	Percentage int
}

func (p *StaticCompletionProvider) CompletionPercentage(ctx context.Context, businessID uuid.UUID) (int, error) {
	return p.Percentage, nil
}
