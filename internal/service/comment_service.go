package service

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"time"

	"github.com/spec-kit/helpdesk/internal/auth"
	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/events"
	"github.com/spec-kit/helpdesk/internal/repository"
	apperrors "github.com/spec-kit/helpdesk/pkg/util"
)

// CommentService appends and lists the comment thread on a ticket. It
// relies on the ticket service to confirm the ticket exists and is
// visible to the caller.
type CommentService struct {
	comments   repository.CommentRepository
	tickets    *TicketService
	dispatcher events.Dispatcher
}

// NewCommentService constructs the service.
func NewCommentService(comments repository.CommentRepository, tickets *TicketService, dispatcher events.Dispatcher) *CommentService {
	return &CommentService{comments: comments, tickets: tickets, dispatcher: dispatcher}
}

// Add appends a comment with a server-assigned creation time. Comment
// inserts are additive and independently atomic; concurrent submissions
// on the same ticket may interleave but each succeeds.
func (s *CommentService) Add(ctx context.Context, principal *auth.Principal, ticketID, body string) (*domain.Comment, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, apperrors.NewValidationError("body required", nil)
	}

	ticket, err := s.tickets.VisibleTicket(ctx, principal, ticketID)
	if err != nil {
		return nil, err
	}
	if !auth.CanAccess(principal.UserID, principal.Role, auth.ActionComment, resourceFor(ticket)) {
		return nil, apperrors.NewForbidden("not permitted to comment on this ticket")
	}

	comment := &domain.Comment{
		TicketID: ticket.ID,
		AuthorID: principal.UserID,
		Body:     body,
	}
	if err := s.comments.Create(ctx, comment); err != nil {
		return nil, apperrors.NewUpstreamError("database", err)
	}

	if s.dispatcher != nil {
		_ = s.dispatcher.Publish(ctx, events.Event{
			ID:        uuid.NewString(),
			Type:      events.EventCommentAdded,
			TicketID:  ticket.ID,
			ActorID:   principal.UserID,
			ActorRole: principal.Role,
			Timestamp: time.Now(),
			Payload: events.CommentAddedPayload{
				CommentID:   comment.ID,
				BodyPreview: preview(comment.Body, 80),
			},
		})
	}
	return comment, nil
}

// List returns the thread in creation order.
func (s *CommentService) List(ctx context.Context, principal *auth.Principal, ticketID string) ([]domain.Comment, error) {
	ticket, err := s.tickets.VisibleTicket(ctx, principal, ticketID)
	if err != nil {
		return nil, err
	}
	if !auth.CanAccess(principal.UserID, principal.Role, auth.ActionComment, resourceFor(ticket)) {
		return nil, apperrors.NewForbidden("not permitted to view this thread")
	}

	comments, err := s.comments.ListByTicket(ctx, ticket.ID)
	if err != nil {
		return nil, apperrors.NewUpstreamError("database", err)
	}
	return comments, nil
}

func preview(body string, max int) string {
	body = strings.TrimSpace(body)
	if len(body) <= max {
		return body
	}
	if max <= 3 {
		return body[:max]
	}
	return body[:max-3] + "..."
}
