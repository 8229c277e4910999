package domain

import "time"

// Comment is an immutable thread entry on a ticket. Comments are ordered
// by creation time; there is no edit or delete.
type Comment struct {
	ID        string
	TicketID  string
	AuthorID  string
	Body      string
	CreatedAt time.Time
}
