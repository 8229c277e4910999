package service

import (
	"context"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/helpdesk/internal/auth"
	"github.com/spec-kit/helpdesk/internal/config"
	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/events"
	"github.com/spec-kit/helpdesk/internal/repository"
	"github.com/spec-kit/helpdesk/internal/storage"
	apperrors "github.com/spec-kit/helpdesk/pkg/util"
)

// AttachmentService accepts uploads bound to a ticket and owns only the
// metadata record; the blob lives behind the storage boundary.
type AttachmentService struct {
	attachments repository.AttachmentRepository
	tickets     *TicketService
	blobs       storage.BlobStore
	policy      config.UploadConfig
	dispatcher  events.Dispatcher
}

// UploadInput describes an incoming file.
type UploadInput struct {
	FileName  string
	MimeType  string
	SizeBytes int64
	Content   io.Reader
}

// NewAttachmentService constructs the service.
func NewAttachmentService(attachments repository.AttachmentRepository, tickets *TicketService, blobs storage.BlobStore, policy config.UploadConfig, dispatcher events.Dispatcher) *AttachmentService {
	return &AttachmentService{
		attachments: attachments,
		tickets:     tickets,
		blobs:       blobs,
		policy:      policy,
		dispatcher:  dispatcher,
	}
}

// Upload stores the blob and its metadata after the visibility check and
// the configured size/content-type policy.
func (s *AttachmentService) Upload(ctx context.Context, principal *auth.Principal, ticketID string, input UploadInput) (*domain.Attachment, error) {
	if strings.TrimSpace(input.FileName) == "" {
		return nil, apperrors.NewValidationError("file name required", nil)
	}

	ticket, err := s.tickets.VisibleTicket(ctx, principal, ticketID)
	if err != nil {
		return nil, err
	}
	if !auth.CanAccess(principal.UserID, principal.Role, auth.ActionAttach, resourceFor(ticket)) {
		return nil, apperrors.NewForbidden("not permitted to attach to this ticket")
	}

	if s.policy.MaxSizeBytes > 0 && input.SizeBytes > s.policy.MaxSizeBytes {
		return nil, apperrors.NewFileTooLarge(s.policy.MaxSizeBytes)
	}
	if !s.mimeAllowed(input.MimeType) {
		return nil, apperrors.NewUnsupportedMediaType(input.MimeType)
	}

	key, err := s.blobs.Put(ctx, input.FileName, input.Content)
	if err != nil {
		return nil, apperrors.NewUpstreamError("blob store", err)
	}

	attachment := &domain.Attachment{
		TicketID:   ticket.ID,
		UploaderID: principal.UserID,
		FileName:   input.FileName,
		MimeType:   input.MimeType,
		SizeBytes:  input.SizeBytes,
		StorageKey: key,
	}
	if err := s.attachments.Create(ctx, attachment); err != nil {
		return nil, apperrors.NewUpstreamError("database", err)
	}

	if s.dispatcher != nil {
		_ = s.dispatcher.Publish(ctx, events.Event{
			ID:        uuid.NewString(),
			Type:      events.EventAttachmentAdded,
			TicketID:  ticket.ID,
			ActorID:   principal.UserID,
			ActorRole: principal.Role,
			Timestamp: time.Now(),
			Payload: events.AttachmentAddedPayload{
				AttachmentID: attachment.ID,
				FileName:     attachment.FileName,
				SizeBytes:    attachment.SizeBytes,
			},
		})
	}
	return attachment, nil
}

// List returns attachment metadata for a visible ticket.
func (s *AttachmentService) List(ctx context.Context, principal *auth.Principal, ticketID string) ([]domain.Attachment, error) {
	ticket, err := s.tickets.VisibleTicket(ctx, principal, ticketID)
	if err != nil {
		return nil, err
	}
	if !auth.CanAccess(principal.UserID, principal.Role, auth.ActionAttach, resourceFor(ticket)) {
		return nil, apperrors.NewForbidden("not permitted to view attachments")
	}

	attachments, err := s.attachments.ListByTicket(ctx, ticket.ID)
	if err != nil {
		return nil, apperrors.NewUpstreamError("database", err)
	}
	return attachments, nil
}

func (s *AttachmentService) mimeAllowed(mimeType string) bool {
	if len(s.policy.AllowedMimeTypes) == 0 {
		return true
	}
	for _, allowed := range s.policy.AllowedMimeTypes {
		if strings.EqualFold(allowed, mimeType) {
			return true
		}
	}
	return false
}
