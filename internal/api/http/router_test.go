package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	stdhttp "net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk/internal/api/http/handlers"
	"github.com/spec-kit/helpdesk/internal/auth"
	"github.com/spec-kit/helpdesk/internal/config"
	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/events"
	"github.com/spec-kit/helpdesk/internal/observability"
	"github.com/spec-kit/helpdesk/internal/repository/memory"
	"github.com/spec-kit/helpdesk/internal/service"
	"github.com/spec-kit/helpdesk/internal/session"
	"github.com/spec-kit/helpdesk/internal/storage"
)

type testServer struct {
	app     *fiber.App
	users   *memory.UserRepository
	authSvc *service.AuthService
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	users := memory.NewUserRepository()
	tickets := memory.NewTicketRepository()
	comments := memory.NewCommentRepository()
	attachments := memory.NewAttachmentRepository()
	history := memory.NewTicketHistoryRepository()
	dispatcher := events.NewInMemoryDispatcher()

	authSvc := service.NewAuthService(config.AuthConfig{
		JWTSecret:             "router-test-secret",
		AccessTokenTTLMinutes: 15,
		RefreshTokenTTLHours:  24,
		BcryptCost:            4,
		MinPasswordLength:     8,
	}, service.AuthDependencies{
		UserRepo:     users,
		SessionStore: session.NewMemoryStore(),
	})
	ticketSvc := service.NewTicketService(service.TicketDependencies{
		TicketRepo:  tickets,
		UserRepo:    users,
		HistoryRepo: history,
		Dispatcher:  dispatcher,
	})
	commentSvc := service.NewCommentService(comments, ticketSvc, dispatcher)
	attachmentSvc := service.NewAttachmentService(attachments, ticketSvc,
		storage.NewDiskStore(t.TempDir()), config.UploadConfig{
			MaxSizeBytes:     1 << 20,
			AllowedMimeTypes: []string{"image/png", "text/plain"},
		}, dispatcher)

	app := fiber.New()
	RegisterMiddlewares(app, zap.NewNop(), observability.NewMetrics(), 5*time.Second)
	RegisterRoutes(app, RouteConfig{
		Auth:           handlers.NewAuthHandler(authSvc),
		Users:          handlers.NewUsersHandler(authSvc),
		Tickets:        handlers.NewTicketsHandler(ticketSvc),
		Comments:       handlers.NewCommentsHandler(commentSvc),
		Attachments:    handlers.NewAttachmentsHandler(attachmentSvc),
		AuthMiddleware: auth.NewMiddleware(authSvc.TokenManager()),
	})
	return &testServer{app: app, users: users, authSvc: authSvc}
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) (*stdhttp.Response, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return s.send(t, req)
}

func (s *testServer) send(t *testing.T, req *stdhttp.Request) (*stdhttp.Response, map[string]any) {
	t.Helper()
	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)

	var decoded map[string]any
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &decoded), "body: %s", raw)
	}
	return resp, decoded
}

// seedLogin inserts an account with the given role and returns a valid
// access token plus the user id.
func (s *testServer) seedLogin(t *testing.T, name string, role domain.Role) (string, string) {
	t.Helper()
	user := &domain.User{
		Name:         name,
		Email:        name + "@example.com",
		PasswordHash: "x",
		Role:         role,
	}
	require.NoError(t, s.users.Create(context.Background(), user))

	pair, _, err := s.authSvc.TokenManager().IssuePair(user.ID, role)
	require.NoError(t, err)
	return pair.AccessToken, user.ID
}

func errCode(t *testing.T, body map[string]any) string {
	t.Helper()
	errObj, ok := body["error"].(map[string]any)
	require.True(t, ok, "expected error envelope, got %v", body)
	code, _ := errObj["code"].(string)
	return code
}

func data(t *testing.T, body map[string]any) map[string]any {
	t.Helper()
	d, ok := body["data"].(map[string]any)
	require.True(t, ok, "expected data envelope, got %v", body)
	return d
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	s := newTestServer(t)

	resp, body := s.do(t, fiber.MethodGet, "/tickets", "", nil)
	assert.Equal(t, stdhttp.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "UNAUTHORIZED", errCode(t, body))

	resp, body = s.do(t, fiber.MethodGet, "/tickets", "not-a-jwt", nil)
	assert.Equal(t, stdhttp.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "UNAUTHORIZED", errCode(t, body))
}

func TestRegisterLoginMeFlow(t *testing.T) {
	s := newTestServer(t)

	resp, body := s.do(t, fiber.MethodPost, "/auth/register", "", map[string]any{
		"name": "Ada", "email": "ada@example.com", "password": "sturdy-pass1",
	})
	require.Equal(t, stdhttp.StatusCreated, resp.StatusCode)
	assert.Equal(t, string(domain.RoleCustomer), data(t, body)["role"])

	resp, body = s.do(t, fiber.MethodPost, "/auth/login", "", map[string]any{
		"email": "ada@example.com", "password": "sturdy-pass1",
	})
	require.Equal(t, stdhttp.StatusOK, resp.StatusCode)
	tokens, ok := data(t, body)["tokens"].(map[string]any)
	require.True(t, ok)
	access, _ := tokens["access_token"].(string)
	require.NotEmpty(t, access)

	resp, body = s.do(t, fiber.MethodGet, "/auth/me", access, nil)
	require.Equal(t, stdhttp.StatusOK, resp.StatusCode)
	assert.Equal(t, "ada@example.com", data(t, body)["email"])
}

func TestLoginRejectsBadCredentialsOverHTTP(t *testing.T) {
	s := newTestServer(t)
	_, err := s.authSvc.Register(context.Background(), "Ada", "ada@example.com", "sturdy-pass1")
	require.NoError(t, err)

	resp, body := s.do(t, fiber.MethodPost, "/auth/login", "", map[string]any{
		"email": "ada@example.com", "password": "wrong-pass1",
	})
	assert.Equal(t, stdhttp.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "INVALID_CREDENTIALS", errCode(t, body))
}

func TestTicketVisibilityOverHTTP(t *testing.T) {
	s := newTestServer(t)
	carolToken, _ := s.seedLogin(t, "carol", domain.RoleCustomer)
	daveToken, _ := s.seedLogin(t, "dave", domain.RoleCustomer)

	resp, body := s.do(t, fiber.MethodPost, "/tickets", carolToken, map[string]any{
		"subject": "printer on fire", "body": "it prints but also burns",
	})
	require.Equal(t, stdhttp.StatusCreated, resp.StatusCode)
	ticketID, _ := data(t, body)["id"].(string)
	require.NotEmpty(t, ticketID)

	resp, _ = s.do(t, fiber.MethodGet, "/tickets/"+ticketID, carolToken, nil)
	assert.Equal(t, stdhttp.StatusOK, resp.StatusCode)

	// Another customer cannot observe the ticket at all.
	resp, body = s.do(t, fiber.MethodGet, "/tickets/"+ticketID, daveToken, nil)
	assert.Equal(t, stdhttp.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "NOT_FOUND", errCode(t, body))
}

func TestTransitionAndRoleGatesOverHTTP(t *testing.T) {
	s := newTestServer(t)
	carolToken, _ := s.seedLogin(t, "carol", domain.RoleCustomer)
	staffToken, staffID := s.seedLogin(t, "sam", domain.RoleStaff)

	resp, body := s.do(t, fiber.MethodPost, "/tickets", carolToken, map[string]any{
		"subject": "printer on fire", "body": "halp",
	})
	require.Equal(t, stdhttp.StatusCreated, resp.StatusCode)
	ticketID, _ := data(t, body)["id"].(string)

	// Dedicated assign endpoint is staff-only.
	resp, body = s.do(t, fiber.MethodPut, "/tickets/"+ticketID+"/assign", carolToken, map[string]any{
		"assignee_id": staffID, "version": 0,
	})
	assert.Equal(t, stdhttp.StatusForbidden, resp.StatusCode)
	assert.Equal(t, "FORBIDDEN", errCode(t, body))

	resp, body = s.do(t, fiber.MethodPut, "/tickets/"+ticketID+"/assign", staffToken, map[string]any{
		"assignee_id": staffID, "version": 0,
	})
	require.Equal(t, stdhttp.StatusOK, resp.StatusCode)
	assert.Equal(t, string(domain.TicketStatusAssigned), data(t, body)["status"])
	assert.Equal(t, float64(1), data(t, body)["version"])

	// Generic transition endpoint drives the state machine.
	resp, body = s.do(t, fiber.MethodPut, "/tickets/"+ticketID, staffToken, map[string]any{
		"event": string(domain.EventStartWork), "version": 1,
	})
	require.Equal(t, stdhttp.StatusOK, resp.StatusCode)
	assert.Equal(t, string(domain.TicketStatusInProgress), data(t, body)["status"])

	// Invalid transitions come back as 422 naming status and event.
	resp, body = s.do(t, fiber.MethodPut, "/tickets/"+ticketID, staffToken, map[string]any{
		"event": string(domain.EventClose), "version": 2,
	})
	assert.Equal(t, stdhttp.StatusUnprocessableEntity, resp.StatusCode)
	assert.Equal(t, "INVALID_TRANSITION", errCode(t, body))

	// A stale version loses with a conflict.
	resp, body = s.do(t, fiber.MethodPut, "/tickets/"+ticketID, staffToken, map[string]any{
		"event": string(domain.EventResolve), "version": 0,
	})
	assert.Equal(t, stdhttp.StatusConflict, resp.StatusCode)
	assert.Equal(t, "CONFLICT", errCode(t, body))
}

func TestCommentsOverHTTP(t *testing.T) {
	s := newTestServer(t)
	carolToken, _ := s.seedLogin(t, "carol", domain.RoleCustomer)

	resp, body := s.do(t, fiber.MethodPost, "/tickets", carolToken, map[string]any{
		"subject": "s", "body": "b",
	})
	require.Equal(t, stdhttp.StatusCreated, resp.StatusCode)
	ticketID, _ := data(t, body)["id"].(string)

	resp, body = s.do(t, fiber.MethodPost, "/tickets/"+ticketID+"/comments", carolToken, map[string]any{
		"body": "any update?",
	})
	require.Equal(t, stdhttp.StatusCreated, resp.StatusCode)
	assert.Equal(t, "any update?", data(t, body)["body"])

	resp, body = s.do(t, fiber.MethodGet, "/tickets/"+ticketID+"/comments", carolToken, nil)
	require.Equal(t, stdhttp.StatusOK, resp.StatusCode)
	items, ok := body["data"].([]any)
	require.True(t, ok)
	assert.Len(t, items, 1)
}

func TestUploadOverHTTP(t *testing.T) {
	s := newTestServer(t)
	carolToken, _ := s.seedLogin(t, "carol", domain.RoleCustomer)

	resp, body := s.do(t, fiber.MethodPost, "/tickets", carolToken, map[string]any{
		"subject": "s", "body": "b",
	})
	require.Equal(t, stdhttp.StatusCreated, resp.StatusCode)
	ticketID, _ := data(t, body)["id"].(string)

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	header := textproto.MIMEHeader{}
	header.Set("Content-Disposition", `form-data; name="file"; filename="notes.txt"`)
	header.Set("Content-Type", "text/plain")
	part, err := writer.CreatePart(header)
	require.NoError(t, err)
	_, err = part.Write([]byte("some notes"))
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(fiber.MethodPost, "/tickets/"+ticketID+"/upload", &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+carolToken)
	resp, body = s.send(t, req)
	require.Equal(t, stdhttp.StatusCreated, resp.StatusCode)
	assert.Equal(t, "notes.txt", data(t, body)["file_name"])

	resp, body = s.do(t, fiber.MethodGet, "/tickets/"+ticketID+"/attachments", carolToken, nil)
	require.Equal(t, stdhttp.StatusOK, resp.StatusCode)
	items, ok := body["data"].([]any)
	require.True(t, ok)
	assert.Len(t, items, 1)
}

func TestListUsersGateOverHTTP(t *testing.T) {
	s := newTestServer(t)
	staffToken, _ := s.seedLogin(t, "sam", domain.RoleStaff)
	adminToken, _ := s.seedLogin(t, "root", domain.RoleAdmin)

	resp, body := s.do(t, fiber.MethodGet, "/users", staffToken, nil)
	assert.Equal(t, stdhttp.StatusForbidden, resp.StatusCode)
	assert.Equal(t, "FORBIDDEN", errCode(t, body))

	resp, body = s.do(t, fiber.MethodGet, "/users", adminToken, nil)
	require.Equal(t, stdhttp.StatusOK, resp.StatusCode)
	items, ok := body["data"].([]any)
	require.True(t, ok)
	assert.NotEmpty(t, items)
}
