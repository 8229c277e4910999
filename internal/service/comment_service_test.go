package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/helpdesk/internal/domain"
)

func TestAddCommentAndListRoundTrip(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	customer := f.seedUser(t, "carol", domain.RoleCustomer)
	agent := f.seedUser(t, "sam", domain.RoleStaff)

	ticket := f.createTicket(t, customer)

	first, err := f.commentSvc.Add(ctx, customer, ticket.ID, "it started smoking too")
	require.NoError(t, err)
	assert.Equal(t, customer.UserID, first.AuthorID)
	assert.False(t, first.CreatedAt.IsZero())

	second, err := f.commentSvc.Add(ctx, agent, ticket.ID, "  unplug it, looking now  ")
	require.NoError(t, err)
	assert.Equal(t, "unplug it, looking now", second.Body)

	thread, err := f.commentSvc.List(ctx, customer, ticket.ID)
	require.NoError(t, err)
	require.Len(t, thread, 2)
	assert.Equal(t, first.ID, thread[0].ID)
	assert.Equal(t, second.ID, thread[1].ID)
	assert.Equal(t, second.Body, thread[1].Body)
}

func TestAddCommentValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	customer := f.seedUser(t, "carol", domain.RoleCustomer)

	ticket := f.createTicket(t, customer)

	_, err := f.commentSvc.Add(ctx, customer, ticket.ID, "   ")
	assert.Equal(t, "VALIDATION_FAILED", domainCode(t, err))

	thread, err := f.commentSvc.List(ctx, customer, ticket.ID)
	require.NoError(t, err)
	assert.Empty(t, thread)
}

func TestCommentsHiddenWithForeignTicket(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	carol := f.seedUser(t, "carol", domain.RoleCustomer)
	dave := f.seedUser(t, "dave", domain.RoleCustomer)

	ticket := f.createTicket(t, carol)

	// An unrelated customer cannot tell the thread exists.
	_, err := f.commentSvc.Add(ctx, dave, ticket.ID, "let me in")
	assert.Equal(t, "NOT_FOUND", domainCode(t, err))

	_, err = f.commentSvc.List(ctx, dave, ticket.ID)
	assert.Equal(t, "NOT_FOUND", domainCode(t, err))
}

func TestPreviewTruncates(t *testing.T) {
	assert.Equal(t, "short", preview("short", 80))
	long := "aaaaaaaaaabbbbbbbbbb"
	assert.Equal(t, "aaaaaaa...", preview(long, 10))
	assert.Len(t, preview(long, 10), 10)
}
