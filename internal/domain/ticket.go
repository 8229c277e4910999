package domain

import "time"

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusOpen       TicketStatus = "OPEN"
	TicketStatusAssigned   TicketStatus = "ASSIGNED"
	TicketStatusInProgress TicketStatus = "IN_PROGRESS"
	TicketStatusResolved   TicketStatus = "RESOLVED"
	TicketStatusClosed     TicketStatus = "CLOSED"
)

// TicketEvent names a requested lifecycle transition.
type TicketEvent string

const (
	EventAssign    TicketEvent = "assign"
	EventReassign  TicketEvent = "reassign"
	EventStartWork TicketEvent = "start_work"
	EventResolve   TicketEvent = "resolve"
	EventClose     TicketEvent = "close"
	EventReopen    TicketEvent = "reopen"
)

// TicketPriority enumerates urgency.
type TicketPriority string

const (
	TicketPriorityLow    TicketPriority = "LOW"
	TicketPriorityNormal TicketPriority = "NORMAL"
	TicketPriorityHigh   TicketPriority = "HIGH"
	TicketPriorityUrgent TicketPriority = "URGENT"
)

// Valid reports whether the priority is a known value.
func (p TicketPriority) Valid() bool {
	switch p {
	case TicketPriorityLow, TicketPriorityNormal, TicketPriorityHigh, TicketPriorityUrgent:
		return true
	}
	return false
}

// Ticket is the aggregate for support requests. Version increments by one
// on every successful mutation and backs the optimistic-concurrency check;
// tickets are never physically deleted.
type Ticket struct {
	ID         string
	CreatorID  string
	AssigneeID *string
	Subject    string
	Body       string
	Status     TicketStatus
	Priority   TicketPriority
	Version    int64
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// transitions is the authoritative lifecycle table: for each status, the
// events that may be applied and the resulting status. Closed is terminal.
var transitions = map[TicketStatus]map[TicketEvent]TicketStatus{
	TicketStatusOpen: {
		EventAssign: TicketStatusAssigned,
	},
	TicketStatusAssigned: {
		EventStartWork: TicketStatusInProgress,
		EventReassign:  TicketStatusAssigned,
	},
	TicketStatusInProgress: {
		EventResolve:  TicketStatusResolved,
		EventReassign: TicketStatusAssigned,
	},
	TicketStatusResolved: {
		EventClose:  TicketStatusClosed,
		EventReopen: TicketStatusAssigned,
	},
	TicketStatusClosed: {},
}

// NextStatus resolves the status reached by applying event in the current
// status. ok is false when the transition table has no such entry.
func NextStatus(current TicketStatus, event TicketEvent) (TicketStatus, bool) {
	next, ok := transitions[current][event]
	return next, ok
}
