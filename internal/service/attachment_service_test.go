package service

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/helpdesk/internal/config"
	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/repository/memory"
)

// fakeBlobStore records uploads in memory and can be forced to fail.
type fakeBlobStore struct {
	blobs    map[string]string
	failWith error
}

func newFakeBlobStore() *fakeBlobStore {
	return &fakeBlobStore{blobs: make(map[string]string)}
}

func (s *fakeBlobStore) Put(_ context.Context, fileName string, content io.Reader) (string, error) {
	if s.failWith != nil {
		return "", s.failWith
	}
	data, err := io.ReadAll(content)
	if err != nil {
		return "", err
	}
	key := "blob-" + fileName
	s.blobs[key] = string(data)
	return key, nil
}

func newAttachmentFixture(t *testing.T) (*fixture, *AttachmentService, *fakeBlobStore) {
	t.Helper()
	f := newFixture(t)
	blobs := newFakeBlobStore()
	svc := NewAttachmentService(memory.NewAttachmentRepository(), f.ticketSvc, blobs, config.UploadConfig{
		MaxSizeBytes:     1024,
		AllowedMimeTypes: []string{"image/png", "application/pdf"},
	}, nil)
	return f, svc, blobs
}

func TestUploadStoresBlobAndMetadata(t *testing.T) {
	f, svc, blobs := newAttachmentFixture(t)
	ctx := context.Background()
	customer := f.seedUser(t, "carol", domain.RoleCustomer)
	ticket := f.createTicket(t, customer)

	attachment, err := svc.Upload(ctx, customer, ticket.ID, UploadInput{
		FileName:  "smoke.png",
		MimeType:  "image/png",
		SizeBytes: 12,
		Content:   strings.NewReader("not-a-real-png"),
	})
	require.NoError(t, err)
	assert.Equal(t, customer.UserID, attachment.UploaderID)
	assert.Equal(t, "blob-smoke.png", attachment.StorageKey)
	assert.Equal(t, "not-a-real-png", blobs.blobs[attachment.StorageKey])

	listed, err := svc.List(ctx, customer, ticket.ID)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, attachment.ID, listed[0].ID)
}

func TestUploadRejectsOversizeFile(t *testing.T) {
	f, svc, _ := newAttachmentFixture(t)
	ctx := context.Background()
	customer := f.seedUser(t, "carol", domain.RoleCustomer)
	ticket := f.createTicket(t, customer)

	_, err := svc.Upload(ctx, customer, ticket.ID, UploadInput{
		FileName:  "dump.png",
		MimeType:  "image/png",
		SizeBytes: 4096,
		Content:   strings.NewReader("x"),
	})
	de := toDomain(t, err)
	assert.Equal(t, "FILE_TOO_LARGE", de.Code)
	assert.Equal(t, int64(1024), de.Details["max_size_bytes"])
}

func TestUploadRejectsDisallowedMimeType(t *testing.T) {
	f, svc, _ := newAttachmentFixture(t)
	ctx := context.Background()
	customer := f.seedUser(t, "carol", domain.RoleCustomer)
	ticket := f.createTicket(t, customer)

	_, err := svc.Upload(ctx, customer, ticket.ID, UploadInput{
		FileName:  "payload.exe",
		MimeType:  "application/x-msdownload",
		SizeBytes: 10,
		Content:   strings.NewReader("mz"),
	})
	assert.Equal(t, "UNSUPPORTED_MEDIA_TYPE", domainCode(t, err))
}

func TestUploadSurfacesBlobStoreFailure(t *testing.T) {
	f, svc, blobs := newAttachmentFixture(t)
	ctx := context.Background()
	customer := f.seedUser(t, "carol", domain.RoleCustomer)
	ticket := f.createTicket(t, customer)

	blobs.failWith = errors.New("disk full")
	_, err := svc.Upload(ctx, customer, ticket.ID, UploadInput{
		FileName:  "smoke.png",
		MimeType:  "image/png",
		SizeBytes: 10,
		Content:   strings.NewReader("x"),
	})
	assert.Equal(t, "UPSTREAM", domainCode(t, err))

	// No metadata row for a blob that never landed.
	listed, err := svc.List(ctx, customer, ticket.ID)
	require.NoError(t, err)
	assert.Empty(t, listed)
}

func TestUploadHiddenForForeignTicket(t *testing.T) {
	f, svc, _ := newAttachmentFixture(t)
	ctx := context.Background()
	carol := f.seedUser(t, "carol", domain.RoleCustomer)
	dave := f.seedUser(t, "dave", domain.RoleCustomer)
	ticket := f.createTicket(t, carol)

	_, err := svc.Upload(ctx, dave, ticket.ID, UploadInput{
		FileName:  "smoke.png",
		MimeType:  "image/png",
		SizeBytes: 10,
		Content:   strings.NewReader("x"),
	})
	assert.Equal(t, "NOT_FOUND", domainCode(t, err))
}
