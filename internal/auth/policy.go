package auth

import "github.com/spec-kit/helpdesk/internal/domain"

// Action enumerates the operations guarded by the access policy.
type Action string

const (
	ActionCreateTicket   Action = "create_ticket"
	ActionViewTicket     Action = "view_ticket"
	ActionAssignTicket   Action = "assign_ticket"
	ActionCloseTicket    Action = "close_ticket"
	ActionChangePriority Action = "change_priority"
	ActionComment        Action = "comment"
	ActionAttach         Action = "attach"
	ActionListUsers      Action = "list_users"
)

// Resource is the slice of ticket state the policy needs to decide with.
// TicketID is empty for actions that do not target a ticket.
type Resource struct {
	TicketID   string
	CreatorID  string
	AssigneeID *string
}

// CanAccess is the pure access decision consulted before every mutation
// and every read not already scoped by listing. It depends only on its
// arguments; the role must come from a validated token, never from a
// client payload.
func CanAccess(callerID string, role domain.Role, action Action, resource Resource) bool {
	switch action {
	case ActionCreateTicket:
		return role.Valid()
	case ActionViewTicket:
		return role.IsStaff() || resource.CreatorID == callerID
	case ActionAssignTicket, ActionCloseTicket, ActionChangePriority:
		return role.IsStaff()
	case ActionComment, ActionAttach:
		if role.IsStaff() {
			return true
		}
		return resource.CreatorID == callerID
	case ActionListUsers:
		return role == domain.RoleAdmin
	}
	return false
}
