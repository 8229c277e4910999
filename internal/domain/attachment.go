package domain

import "time"

// Attachment is the metadata record for an uploaded file. The blob itself
// lives in an external store addressed by StorageKey.
type Attachment struct {
	ID         string
	TicketID   string
	UploaderID string
	FileName   string
	MimeType   string
	SizeBytes  int64
	StorageKey string
	CreatedAt  time.Time
}
