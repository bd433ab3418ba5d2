package controller

import (
	"turion-be/internal/pkg/serverutils"
	"turion-be/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type ICreditController interface {
	RegisterRoutes(r fiber.Router)
	Summary(ctx *fiber.Ctx) error
	History(ctx *fiber.Ctx) error
}

type creditController struct {
	service service.ICreditService
}

func NewCreditController(service service.ICreditService) ICreditController {
	return &creditController{service: service}
}

func (c *creditController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/credits")
	h.Use(serverutils.JwtMiddleware)
	h.Get("", c.Summary)
	h.Get("history", c.History)
}

func (c *creditController) Summary(ctx *fiber.Ctx) error {
	userId, _ := uuid.Parse(ctx.Locals("user_id").(string))

	res, err := c.service.Summary(ctx.UserContext(), userId)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success get credits", res))
}

func (c *creditController) History(ctx *fiber.Ctx) error {
	userId, _ := uuid.Parse(ctx.Locals("user_id").(string))

	txs, err := c.service.History(ctx.UserContext(), userId, ctx.QueryInt("limit", service.DefaultHistoryLimit))
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success get credit history", service.ToTransactionResponses(txs)))
}
