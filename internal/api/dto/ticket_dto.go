package dto

import (
	"time"

	"github.com/spec-kit/helpdesk/internal/domain"
)

// CreateTicketRequest payload.
type CreateTicketRequest struct {
	Subject  string                `json:"subject"`
	Body     string                `json:"body"`
	Priority domain.TicketPriority `json:"priority"`
}

// TransitionRequest applies a lifecycle event. Version is the caller's
// known ticket version for the optimistic-concurrency check.
type TransitionRequest struct {
	Event      domain.TicketEvent `json:"event"`
	Version    int64              `json:"version"`
	AssigneeID *string            `json:"assignee_id,omitempty"`
}

// AssignRequest payload for the dedicated assignment endpoint.
type AssignRequest struct {
	AssigneeID string `json:"assignee_id"`
	Version    int64  `json:"version"`
}

// PriorityRequest payload.
type PriorityRequest struct {
	Priority domain.TicketPriority `json:"priority"`
	Version  int64                 `json:"version"`
}

// TicketResponse is the standard ticket representation.
type TicketResponse struct {
	ID         string                `json:"id"`
	CreatorID  string                `json:"creator_id"`
	AssigneeID *string               `json:"assignee_id,omitempty"`
	Subject    string                `json:"subject"`
	Body       string                `json:"body"`
	Status     domain.TicketStatus   `json:"status"`
	Priority   domain.TicketPriority `json:"priority"`
	Version    int64                 `json:"version"`
	CreatedAt  time.Time             `json:"created_at"`
	UpdatedAt  time.Time             `json:"updated_at"`
}

// TicketHistoryResponse is an audit trail entry.
type TicketHistoryResponse struct {
	ID          string                  `json:"id"`
	ChangeType  domain.TicketChangeType `json:"change_type"`
	ChangedByID string                  `json:"changed_by_id"`
	OldValue    map[string]any          `json:"old_value"`
	NewValue    map[string]any          `json:"new_value"`
	CreatedAt   time.Time               `json:"created_at"`
}

// TicketDetailResponse carries the ticket plus its audit trail.
type TicketDetailResponse struct {
	TicketResponse
	History []TicketHistoryResponse `json:"history"`
}

// NewTicketResponse maps a domain ticket.
func NewTicketResponse(ticket *domain.Ticket) TicketResponse {
	return TicketResponse{
		ID:         ticket.ID,
		CreatorID:  ticket.CreatorID,
		AssigneeID: ticket.AssigneeID,
		Subject:    ticket.Subject,
		Body:       ticket.Body,
		Status:     ticket.Status,
		Priority:   ticket.Priority,
		Version:    ticket.Version,
		CreatedAt:  ticket.CreatedAt,
		UpdatedAt:  ticket.UpdatedAt,
	}
}

// NewTicketHistoryResponses maps audit entries.
func NewTicketHistoryResponses(entries []domain.TicketHistory) []TicketHistoryResponse {
	resp := make([]TicketHistoryResponse, 0, len(entries))
	for _, entry := range entries {
		resp = append(resp, TicketHistoryResponse{
			ID:          entry.ID,
			ChangeType:  entry.ChangeType,
			ChangedByID: entry.ChangedByID,
			OldValue:    entry.OldValue,
			NewValue:    entry.NewValue,
			CreatedAt:   entry.CreatedAt,
		})
	}
	return resp
}
