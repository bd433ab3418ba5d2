package controller

import (
	"bufio"

	"turion-be/internal/dto"
	"turion-be/internal/pkg/logger"
	"turion-be/internal/pkg/serverutils"
	"turion-be/internal/service"
	"turion-be/pkg/generation"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type IConversationController interface {
	RegisterRoutes(r fiber.Router)
	GetAll(ctx *fiber.Ctx) error
	Create(ctx *fiber.Ctx) error
	Show(ctx *fiber.Ctx) error
	Rename(ctx *fiber.Ctx) error
	Delete(ctx *fiber.Ctx) error
	Messages(ctx *fiber.Ctx) error
	SendMessage(ctx *fiber.Ctx) error
}

type conversationController struct {
	service service.IChatService
	logger  logger.ILogger
}

func NewConversationController(service service.IChatService, log logger.ILogger) IConversationController {
	return &conversationController{service: service, logger: log}
}

func (c *conversationController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/conversations")
	h.Use(serverutils.JwtMiddleware)
	h.Get("", c.GetAll)
	h.Post("", c.Create)
	h.Get(":id", c.Show)
	h.Patch(":id", c.Rename)
	h.Delete(":id", c.Delete)
	h.Get(":id/messages", c.Messages)
	h.Post(":id/messages", c.SendMessage)
}

func (c *conversationController) GetAll(ctx *fiber.Ctx) error {
	userId, _ := uuid.Parse(ctx.Locals("user_id").(string))

	res, err := c.service.ListConversations(ctx.UserContext(), userId)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success get conversations", res))
}

func (c *conversationController) Create(ctx *fiber.Ctx) error {
	userId, _ := uuid.Parse(ctx.Locals("user_id").(string))

	var req dto.CreateConversationRequest
	if len(ctx.Body()) > 0 {
		if err := ctx.BodyParser(&req); err != nil {
			return fiber.ErrBadRequest
		}
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.service.CreateConversation(ctx.UserContext(), userId, &req)
	if err != nil {
		return err
	}

	return ctx.Status(fiber.StatusCreated).JSON(serverutils.SuccessResponse("Success create conversation", res))
}

func (c *conversationController) Show(ctx *fiber.Ctx) error {
	userId, _ := uuid.Parse(ctx.Locals("user_id").(string))
	id, _ := uuid.Parse(ctx.Params("id"))

	res, err := c.service.GetConversation(ctx.UserContext(), userId, id)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success show conversation", res))
}

func (c *conversationController) Rename(ctx *fiber.Ctx) error {
	userId, _ := uuid.Parse(ctx.Locals("user_id").(string))
	id, _ := uuid.Parse(ctx.Params("id"))

	var req dto.RenameConversationRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.ErrBadRequest
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.service.RenameConversation(ctx.UserContext(), userId, id, req.Title)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success rename conversation", res))
}

func (c *conversationController) Delete(ctx *fiber.Ctx) error {
	userId, _ := uuid.Parse(ctx.Locals("user_id").(string))
	id, _ := uuid.Parse(ctx.Params("id"))

	if err := c.service.DeleteConversation(ctx.UserContext(), userId, id); err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse[any]("Success delete conversation", nil))
}

func (c *conversationController) Messages(ctx *fiber.Ctx) error {
	userId, _ := uuid.Parse(ctx.Locals("user_id").(string))
	id, _ := uuid.Parse(ctx.Params("id"))

	res, err := c.service.ListMessages(ctx.UserContext(), userId, id)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success get messages", res))
}

// SendMessage streams one turn as server-sent events. Errors raised before
// the first byte go through the error middleware as JSON.
func (c *conversationController) SendMessage(ctx *fiber.Ctx) error {
	userId, _ := uuid.Parse(ctx.Locals("user_id").(string))
	id, _ := uuid.Parse(ctx.Params("id"))

	var req dto.SendMessageRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.ErrBadRequest
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	mode := generation.ParseMode(ctx.Query("mode"))
	events, err := c.service.SendMessage(ctx.UserContext(), userId, id, mode, req.Content)
	if err != nil {
		return err
	}

	serverutils.SetSSEHeaders(ctx)
	ctx.Status(fiber.StatusOK).Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		c.stream(w, id, events)
	})
	return nil
}

// stream writes events until the client goes away, then keeps draining so
// the turn still settles.
func (c *conversationController) stream(w *bufio.Writer, conversationId uuid.UUID, events <-chan generation.Event) {
	connected := true
	for ev := range events {
		if !connected {
			continue
		}

		var err error
		switch {
		case ev.Err != nil:
			err = serverutils.WriteSSEError(w, "generation failed")
		case ev.Done != nil:
			continue
		default:
			err = serverutils.WriteSSEContent(w, ev.Text)
		}
		if err != nil {
			connected = false
			c.logger.Info("CHAT", "Client disconnected mid-stream", map[string]interface{}{
				"conversation_id": conversationId.String(),
				"error":           err.Error(),
			})
		}
	}

	if connected {
		_ = serverutils.WriteSSEDone(w)
	}
}
