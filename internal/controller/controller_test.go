package controller

import (
	"context"
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"turion-be/internal/dto"
	"turion-be/internal/pkg/logger"
	"turion-be/internal/pkg/serverutils"
	"turion-be/internal/service"
	"turion-be/pkg/generation"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "controller-secret"

type fakeChatService struct {
	service.IChatService
	events  []generation.Event
	err     error
	gotMode generation.Mode
}

func (f *fakeChatService) SendMessage(ctx context.Context, userId, conversationId uuid.UUID, mode generation.Mode, content string) (<-chan generation.Event, error) {
	f.gotMode = mode
	if f.err != nil {
		return nil, f.err
	}
	ch := make(chan generation.Event, len(f.events))
	for _, ev := range f.events {
		ch <- ev
	}
	close(ch)
	return ch, nil
}

type fakeProjectService struct {
	service.IProjectService
	err error
}

func (f *fakeProjectService) Scaffold(ctx context.Context, userId, projectId uuid.UUID) (*dto.ProjectResponse, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &dto.ProjectResponse{Id: projectId, Status: "generating"}, nil
}

func newApp(t *testing.T, register func(r fiber.Router)) (*fiber.App, string) {
	t.Helper()
	serverutils.SetJwtSecret(testSecret)
	t.Cleanup(func() { serverutils.SetJwtSecret("") })

	app := fiber.New()
	app.Use(serverutils.ErrorHandlerMiddleware())
	register(app.Group("/api"))

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"user_id": uuid.NewString()}).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return app, token
}

func post(t *testing.T, app *fiber.App, token, path, body string) (int, string) {
	t.Helper()
	req := httptest.NewRequest("POST", path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(raw)
}

func TestSendMessageStreamsFrames(t *testing.T) {
	chat := &fakeChatService{events: []generation.Event{
		{Text: "Hel"},
		{Text: "lo"},
		{Done: &generation.Turn{Content: "Hello"}},
	}}
	app, token := newApp(t, NewConversationController(chat, logger.NewNopLogger()).RegisterRoutes)

	code, body := post(t, app, token, "/api/conversations/"+uuid.NewString()+"/messages?mode=deep", `{"content":"hi"}`)

	assert.Equal(t, 200, code)
	assert.Equal(t, generation.ModeDeep, chat.gotMode)
	assert.Equal(t,
		"data: {\"choices\":[{\"delta\":{\"content\":\"Hel\"}}]}\n\n"+
			"data: {\"choices\":[{\"delta\":{\"content\":\"lo\"}}]}\n\n"+
			"data: [DONE]\n\n",
		body)
}

func TestSendMessageStreamsGenericError(t *testing.T) {
	chat := &fakeChatService{events: []generation.Event{
		{Text: "part"},
		{Err: errors.New("openai: transport error: connection reset")},
		{Done: &generation.Turn{Content: "part"}},
	}}
	app, token := newApp(t, NewConversationController(chat, logger.NewNopLogger()).RegisterRoutes)

	_, body := post(t, app, token, "/api/conversations/"+uuid.NewString()+"/messages", `{"content":"hi"}`)

	assert.Contains(t, body, "data: {\"error\":\"generation failed\"}\n\n")
	assert.NotContains(t, body, "connection reset")
	assert.True(t, strings.HasSuffix(body, "data: [DONE]\n\n"))
	assert.Equal(t, generation.ModeChat, chat.gotMode)
}

func TestSendMessageErrorsBeforeStreamAreJSON(t *testing.T) {
	chat := &fakeChatService{err: service.ErrConversationNotFound}
	app, token := newApp(t, NewConversationController(chat, logger.NewNopLogger()).RegisterRoutes)

	code, body := post(t, app, token, "/api/conversations/"+uuid.NewString()+"/messages", `{"content":"hi"}`)
	assert.Equal(t, 404, code)
	assert.Contains(t, body, "conversation not found")

	code, _ = post(t, app, token, "/api/conversations/"+uuid.NewString()+"/messages", `{"content":""}`)
	assert.Equal(t, 400, code)
}

func TestScaffoldAccepted(t *testing.T) {
	app, token := newApp(t, NewProjectController(&fakeProjectService{}).RegisterRoutes)
	code, body := post(t, app, token, "/api/projects/"+uuid.NewString()+"/scaffold", "")
	assert.Equal(t, 202, code)
	assert.Contains(t, body, "generating")

	app, token = newApp(t, NewProjectController(&fakeProjectService{err: service.ErrScaffoldInProgress}).RegisterRoutes)
	code, _ = post(t, app, token, "/api/projects/"+uuid.NewString()+"/scaffold", "")
	assert.Equal(t, 409, code)
}

func TestRoutesRequireToken(t *testing.T) {
	app, _ := newApp(t, NewProjectController(&fakeProjectService{}).RegisterRoutes)
	code, _ := post(t, app, "", "/api/projects/"+uuid.NewString()+"/scaffold", "")
	assert.Equal(t, 401, code)
}
