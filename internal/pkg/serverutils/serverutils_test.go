package serverutils

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http/httptest"
	"testing"

	"turion-be/internal/dto"
	"turion-be/internal/service"
	"turion-be/pkg/llm"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorHandlerMiddlewareStatuses(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code int
	}{
		{"insufficient credits", &dto.InsufficientCreditError{Balance: decimal.NewFromInt(1), Amount: decimal.NewFromInt(5)}, 402},
		{"wrapped not found", fmt.Errorf("get project: %w", service.ErrProjectNotFound), 404},
		{"conversation not found", service.ErrConversationNotFound, 404},
		{"scaffold in progress", service.ErrScaffoldInProgress, 409},
		{"no reserved port", service.ErrNoPortReserved, 409},
		{"provider unavailable", llm.ErrProviderUnavailable, 503},
		{"provider error", &llm.ProviderError{Provider: "openai", Kind: llm.KindTransport, Err: errors.New("reset")}, 503},
		{"empty content", service.ErrEmptyContent, 400},
		{"fiber error", fiber.NewError(fiber.StatusTeapot, "tea"), 418},
		{"unknown", errors.New("boom"), 500},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := fiber.New()
			app.Use(ErrorHandlerMiddleware())
			app.Get("/", func(ctx *fiber.Ctx) error { return tt.err })

			resp, err := app.Test(httptest.NewRequest("GET", "/", nil), -1)
			require.NoError(t, err)
			assert.Equal(t, tt.code, resp.StatusCode)

			var body BaseResponse[any]
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
			assert.False(t, body.Success)
			assert.Equal(t, tt.code, body.Code)
		})
	}
}

func TestErrorHandlerHidesInternalDetails(t *testing.T) {
	app := fiber.New()
	app.Use(ErrorHandlerMiddleware())
	app.Get("/", func(ctx *fiber.Ctx) error { return errors.New("dial tcp 10.0.0.3:5432: refused") })

	resp, err := app.Test(httptest.NewRequest("GET", "/", nil), -1)
	require.NoError(t, err)

	var body BaseResponse[any]
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "Internal server error", body.Message)
}

func TestValidateRequest(t *testing.T) {
	err := ValidateRequest(dto.CreateProjectRequest{Name: "shop", ProjectType: "angular"})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "oneof", verr.Fields["ProjectType"])

	code, _, _ := StatusFor(err)
	assert.Equal(t, 400, code)

	assert.NoError(t, ValidateRequest(dto.CreateProjectRequest{Name: "shop", ProjectType: "nextjs"}))
}

func TestSSEFrames(t *testing.T) {
	var buf bytes.Buffer
	w := bufio.NewWriter(&buf)

	require.NoError(t, WriteSSEContent(w, "Hel\"lo"))
	require.NoError(t, WriteSSEError(w, "generation failed"))
	require.NoError(t, WriteSSEDone(w))

	assert.Equal(t,
		"data: {\"choices\":[{\"delta\":{\"content\":\"Hel\\\"lo\"}}]}\n\n"+
			"data: {\"error\":\"generation failed\"}\n\n"+
			"data: [DONE]\n\n",
		buf.String())
}

func signToken(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

func TestJwtMiddleware(t *testing.T) {
	SetJwtSecret("test-secret")
	t.Cleanup(func() { SetJwtSecret("") })

	userId := uuid.New()
	app := fiber.New()
	app.Get("/me", JwtMiddleware, func(ctx *fiber.Ctx) error {
		return ctx.SendString(ctx.Locals("user_id").(string))
	})

	call := func(header string) (int, string) {
		req := httptest.NewRequest("GET", "/me", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		resp, err := app.Test(req, -1)
		require.NoError(t, err)
		var buf bytes.Buffer
		_, _ = buf.ReadFrom(resp.Body)
		return resp.StatusCode, buf.String()
	}

	code, body := call("Bearer " + signToken(t, "test-secret", jwt.MapClaims{"user_id": userId.String()}))
	assert.Equal(t, 200, code)
	assert.Equal(t, userId.String(), body)

	code, _ = call("")
	assert.Equal(t, 401, code)

	code, _ = call("Bearer " + signToken(t, "other-secret", jwt.MapClaims{"user_id": userId.String()}))
	assert.Equal(t, 401, code)

	code, _ = call("Bearer " + signToken(t, "test-secret", jwt.MapClaims{"user_id": "not-a-uuid"}))
	assert.Equal(t, 401, code)
}
