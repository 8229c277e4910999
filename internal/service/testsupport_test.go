package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/spec-kit/helpdesk/internal/auth"
	"github.com/spec-kit/helpdesk/internal/config"
	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/events"
	"github.com/spec-kit/helpdesk/internal/repository/memory"
	"github.com/spec-kit/helpdesk/internal/session"
)

type fixture struct {
	users    *memory.UserRepository
	tickets  *memory.TicketRepository
	comments *memory.CommentRepository
	history  *memory.TicketHistoryRepository
	sessions *session.MemoryStore

	authSvc    *AuthService
	ticketSvc  *TicketService
	commentSvc *CommentService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		users:    memory.NewUserRepository(),
		tickets:  memory.NewTicketRepository(),
		comments: memory.NewCommentRepository(),
		history:  memory.NewTicketHistoryRepository(),
		sessions: session.NewMemoryStore(),
	}

	cfg := config.AuthConfig{
		JWTSecret:             "test-secret",
		AccessTokenTTLMinutes: 15,
		RefreshTokenTTLHours:  24,
		BcryptCost:            4,
		MinPasswordLength:     8,
	}
	f.authSvc = NewAuthService(cfg, AuthDependencies{
		UserRepo:     f.users,
		SessionStore: f.sessions,
	})
	f.ticketSvc = NewTicketService(TicketDependencies{
		TicketRepo:  f.tickets,
		UserRepo:    f.users,
		HistoryRepo: f.history,
		Dispatcher:  events.NewInMemoryDispatcher(),
	})
	f.commentSvc = NewCommentService(f.comments, f.ticketSvc, nil)
	return f
}

// seedUser inserts a user directly with a known role and returns their
// principal.
func (f *fixture) seedUser(t *testing.T, name string, role domain.Role) *auth.Principal {
	t.Helper()
	user := &domain.User{
		Name:         name,
		Email:        name + "@example.com",
		PasswordHash: "x",
		Role:         role,
	}
	require.NoError(t, f.users.Create(context.Background(), user))
	return &auth.Principal{UserID: user.ID, Role: role}
}

func (f *fixture) createTicket(t *testing.T, creator *auth.Principal) *domain.Ticket {
	t.Helper()
	ticket, err := f.ticketSvc.Create(context.Background(), creator, TicketCreateInput{
		Subject:  "printer on fire",
		Body:     "it prints but also burns",
		Priority: domain.TicketPriorityHigh,
	})
	require.NoError(t, err)
	return ticket
}

func transition(event domain.TicketEvent, version int64) TransitionInput {
	return TransitionInput{Event: event, Version: version}
}

func assignInput(assigneeID string, version int64) TransitionInput {
	return TransitionInput{Event: domain.EventAssign, Version: version, AssigneeID: &assigneeID}
}
