package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/helpdesk/internal/auth"
	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/events"
	"github.com/spec-kit/helpdesk/internal/repository"
	apperrors "github.com/spec-kit/helpdesk/pkg/util"
)

// TicketService owns the ticket lifecycle state machine.
type TicketService struct {
	tickets    repository.TicketRepository
	users      repository.UserRepository
	history    repository.TicketHistoryRepository
	dispatcher events.Dispatcher
}

// TicketDependencies bundles repositories for the ticket service.
type TicketDependencies struct {
	TicketRepo  repository.TicketRepository
	UserRepo    repository.UserRepository
	HistoryRepo repository.TicketHistoryRepository
	Dispatcher  events.Dispatcher
}

// TicketCreateInput describes ticket creation payload.
type TicketCreateInput struct {
	Subject  string
	Body     string
	Priority domain.TicketPriority
}

// TicketListFilter describes listing filters. Customer callers are always
// restricted to their own tickets regardless of these values.
type TicketListFilter struct {
	Statuses   []domain.TicketStatus
	Priorities []domain.TicketPriority
	AssigneeID *string
	Limit      int
	Offset     int
}

// TransitionInput carries a lifecycle event request. Version is the
// caller's known ticket version; AssigneeID is required for assign and
// reassign events.
type TransitionInput struct {
	Event      domain.TicketEvent
	Version    int64
	AssigneeID *string
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	return &TicketService{
		tickets:    deps.TicketRepo,
		users:      deps.UserRepo,
		history:    deps.HistoryRepo,
		dispatcher: deps.Dispatcher,
	}
}

// Create opens a new ticket for the caller, status Open, version 0.
func (s *TicketService) Create(ctx context.Context, principal *auth.Principal, input TicketCreateInput) (*domain.Ticket, error) {
	if !auth.CanAccess(principal.UserID, principal.Role, auth.ActionCreateTicket, auth.Resource{}) {
		return nil, apperrors.NewForbidden("not permitted to create tickets")
	}

	subject := strings.TrimSpace(input.Subject)
	body := strings.TrimSpace(input.Body)
	if subject == "" || body == "" {
		return nil, apperrors.NewValidationError("subject and body required", nil)
	}
	priority := input.Priority
	if priority == "" {
		priority = domain.TicketPriorityNormal
	}
	if !priority.Valid() {
		return nil, apperrors.NewValidationError("unknown priority", map[string]any{"priority": priority})
	}

	ticket := &domain.Ticket{
		CreatorID: principal.UserID,
		Subject:   subject,
		Body:      body,
		Status:    domain.TicketStatusOpen,
		Priority:  priority,
	}
	if err := s.tickets.Create(ctx, ticket); err != nil {
		return nil, apperrors.NewUpstreamError("database", err)
	}

	s.publishEvent(ctx, principal, events.Event{
		Type:     events.EventTicketCreated,
		TicketID: ticket.ID,
		Payload: events.TicketCreatedPayload{
			Subject:  ticket.Subject,
			Priority: ticket.Priority,
		},
	})
	return ticket, nil
}

// List returns tickets visible to the caller. Customers only ever see
// tickets they created; the restriction is applied here, server-side.
func (s *TicketService) List(ctx context.Context, principal *auth.Principal, filter TicketListFilter) ([]domain.Ticket, error) {
	repoFilter := repository.TicketFilter{
		Statuses:   filter.Statuses,
		Priorities: filter.Priorities,
		Limit:      filter.Limit,
		Offset:     filter.Offset,
	}
	if principal.Role.IsStaff() {
		repoFilter.AssigneeID = filter.AssigneeID
	} else {
		creatorID := principal.UserID
		repoFilter.CreatorID = &creatorID
	}

	tickets, err := s.tickets.ListWithFilter(ctx, repoFilter)
	if err != nil {
		return nil, apperrors.NewUpstreamError("database", err)
	}
	return tickets, nil
}

// Get fetches a single ticket. A ticket invisible to the caller is
// reported as absent, identically to one that does not exist.
func (s *TicketService) Get(ctx context.Context, principal *auth.Principal, ticketID string) (*domain.Ticket, error) {
	return s.getVisible(ctx, principal, ticketID)
}

// History returns the audit trail for a visible ticket.
func (s *TicketService) History(ctx context.Context, principal *auth.Principal, ticketID string) ([]domain.TicketHistory, error) {
	if _, err := s.getVisible(ctx, principal, ticketID); err != nil {
		return nil, err
	}
	entries, err := s.history.ListByTicket(ctx, ticketID)
	if err != nil {
		return nil, apperrors.NewUpstreamError("database", err)
	}
	return entries, nil
}

// ApplyTransition drives the lifecycle state machine. The order of checks
// is: existence/visibility, transition validity, caller role, then the
// optimistic-concurrency write. Exactly one of two racing transitions
// with the same starting version succeeds.
func (s *TicketService) ApplyTransition(ctx context.Context, principal *auth.Principal, ticketID string, input TransitionInput) (*domain.Ticket, error) {
	ticket, err := s.getVisible(ctx, principal, ticketID)
	if err != nil {
		return nil, err
	}

	next, ok := domain.NextStatus(ticket.Status, input.Event)
	if !ok {
		return nil, apperrors.NewInvalidTransition(string(ticket.Status), string(input.Event))
	}
	if err := s.checkTransitionRole(principal, ticket, input.Event); err != nil {
		return nil, err
	}

	oldStatus := ticket.Status
	oldAssignee := ticket.AssigneeID
	ticket.Status = next

	switch input.Event {
	case domain.EventAssign, domain.EventReassign:
		if input.AssigneeID == nil || *input.AssigneeID == "" {
			return nil, apperrors.NewValidationError("assignee_id required", nil)
		}
		if err := s.checkAssignable(ctx, *input.AssigneeID); err != nil {
			return nil, err
		}
		ticket.AssigneeID = input.AssigneeID
	}

	if err := s.writeVersioned(ctx, ticket, input.Version); err != nil {
		return nil, err
	}

	s.recordHistory(ctx, principal.UserID, ticket.ID, domain.ChangeTypeStatus,
		map[string]any{"status": oldStatus, "assignee_id": oldAssignee},
		map[string]any{"status": ticket.Status, "assignee_id": ticket.AssigneeID, "event": input.Event})

	s.publishEvent(ctx, principal, events.Event{
		Type:     events.EventTicketStatusChanged,
		TicketID: ticket.ID,
		Payload: events.TicketStatusChangedPayload{
			Event:     input.Event,
			OldStatus: oldStatus,
			NewStatus: ticket.Status,
		},
	})
	if input.Event == domain.EventAssign || input.Event == domain.EventReassign {
		s.publishEvent(ctx, principal, events.Event{
			Type:     events.EventTicketAssigned,
			TicketID: ticket.ID,
			Payload:  events.TicketAssignedPayload{AssigneeID: *ticket.AssigneeID},
		})
	}
	return ticket, nil
}

// Assign routes the dedicated assignment endpoint onto the state machine:
// assign from Open, reassign from Assigned or InProgress.
func (s *TicketService) Assign(ctx context.Context, principal *auth.Principal, ticketID, assigneeID string, version int64) (*domain.Ticket, error) {
	ticket, err := s.getVisible(ctx, principal, ticketID)
	if err != nil {
		return nil, err
	}

	event := domain.EventAssign
	if ticket.Status != domain.TicketStatusOpen {
		event = domain.EventReassign
	}
	return s.ApplyTransition(ctx, principal, ticketID, TransitionInput{
		Event:      event,
		Version:    version,
		AssigneeID: &assigneeID,
	})
}

// ChangePriority updates a ticket's priority; staff and admin only,
// version-checked like any other mutation.
func (s *TicketService) ChangePriority(ctx context.Context, principal *auth.Principal, ticketID string, priority domain.TicketPriority, version int64) (*domain.Ticket, error) {
	if !priority.Valid() {
		return nil, apperrors.NewValidationError("unknown priority", map[string]any{"priority": priority})
	}
	ticket, err := s.getVisible(ctx, principal, ticketID)
	if err != nil {
		return nil, err
	}
	if !auth.CanAccess(principal.UserID, principal.Role, auth.ActionChangePriority, resourceFor(ticket)) {
		return nil, apperrors.NewForbidden("staff role required")
	}

	oldPriority := ticket.Priority
	ticket.Priority = priority
	if err := s.writeVersioned(ctx, ticket, version); err != nil {
		return nil, err
	}

	s.recordHistory(ctx, principal.UserID, ticket.ID, domain.ChangeTypePriority,
		map[string]any{"priority": oldPriority},
		map[string]any{"priority": ticket.Priority})

	s.publishEvent(ctx, principal, events.Event{
		Type:     events.EventTicketPriorityChanged,
		TicketID: ticket.ID,
		Payload: events.TicketPriorityChangedPayload{
			OldPriority: oldPriority,
			NewPriority: ticket.Priority,
		},
	})
	return ticket, nil
}

// VisibleTicket resolves a ticket for dependent services (comments,
// attachments) applying the same existence-hiding rule.
func (s *TicketService) VisibleTicket(ctx context.Context, principal *auth.Principal, ticketID string) (*domain.Ticket, error) {
	return s.getVisible(ctx, principal, ticketID)
}

func (s *TicketService) getVisible(ctx context.Context, principal *auth.Principal, ticketID string) (*domain.Ticket, error) {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, mapStoreErr(err, "ticket")
	}
	if !auth.CanAccess(principal.UserID, principal.Role, auth.ActionViewTicket, resourceFor(ticket)) {
		// Report invisible tickets as absent so their existence does not leak.
		return nil, apperrors.NewNotFound("ticket", nil)
	}
	return ticket, nil
}

func (s *TicketService) checkTransitionRole(principal *auth.Principal, ticket *domain.Ticket, event domain.TicketEvent) error {
	switch event {
	case domain.EventAssign, domain.EventReassign:
		if !auth.CanAccess(principal.UserID, principal.Role, auth.ActionAssignTicket, resourceFor(ticket)) {
			return apperrors.NewForbidden("staff role required")
		}
	case domain.EventClose:
		if !auth.CanAccess(principal.UserID, principal.Role, auth.ActionCloseTicket, resourceFor(ticket)) {
			return apperrors.NewForbidden("staff role required")
		}
	case domain.EventStartWork, domain.EventResolve:
		if principal.Role == domain.RoleAdmin {
			return nil
		}
		if ticket.AssigneeID == nil || *ticket.AssigneeID != principal.UserID {
			return apperrors.NewForbidden("only the assignee may do this")
		}
	case domain.EventReopen:
		if principal.Role.IsStaff() || ticket.CreatorID == principal.UserID {
			return nil
		}
		return apperrors.NewForbidden("not permitted to reopen")
	default:
		return apperrors.NewValidationError("unknown event", map[string]any{"event": event})
	}
	return nil
}

// checkAssignable enforces the invariant that an assignee holds role
// staff or admin.
func (s *TicketService) checkAssignable(ctx context.Context, assigneeID string) error {
	assignee, err := s.users.GetByID(ctx, assigneeID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.NewValidationError("assignee not found", map[string]any{"assignee_id": assigneeID})
		}
		return apperrors.NewUpstreamError("database", err)
	}
	if !assignee.Role.IsStaff() {
		return apperrors.NewValidationError("assignee must be staff or admin", map[string]any{"assignee_id": assigneeID})
	}
	return nil
}

func (s *TicketService) writeVersioned(ctx context.Context, ticket *domain.Ticket, expectedVersion int64) error {
	err := s.tickets.UpdateVersioned(ctx, ticket, expectedVersion)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrVersionConflict):
		return apperrors.NewConflict("ticket was modified concurrently",
			map[string]any{"supplied_version": expectedVersion})
	case errors.Is(err, pgx.ErrNoRows):
		return apperrors.NewNotFound("ticket", nil)
	default:
		return apperrors.NewUpstreamError("database", err)
	}
}

func (s *TicketService) recordHistory(ctx context.Context, actorID, ticketID string, changeType domain.TicketChangeType, oldValue, newValue map[string]any) {
	if s.history == nil {
		return
	}
	entry := &domain.TicketHistory{
		TicketID:    ticketID,
		ChangedByID: actorID,
		ChangeType:  changeType,
		OldValue:    oldValue,
		NewValue:    newValue,
	}
	// History is an audit trail; a failed append must not roll back the
	// already-committed mutation.
	_ = s.history.Create(ctx, entry)
}

func (s *TicketService) publishEvent(ctx context.Context, principal *auth.Principal, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	event.ActorID = principal.UserID
	event.ActorRole = principal.Role
	_ = s.dispatcher.Publish(ctx, event)
}

func resourceFor(ticket *domain.Ticket) auth.Resource {
	return auth.Resource{
		TicketID:   ticket.ID,
		CreatorID:  ticket.CreatorID,
		AssigneeID: ticket.AssigneeID,
	}
}
