package controller

import (
	"ai-accelerator-be/internal/dto"
	"ai-accelerator-be/internal/pkg/serverutils"
	"ai-accelerator-be/internal/service"

	"github.com/gofiber/fiber/v2"
)

type IConfigController interface {
	RegisterRoutes(r fiber.Router)
	Create(ctx *fiber.Ctx) error
	List(ctx *fiber.Ctx) error
	Show(ctx *fiber.Ctx) error
}

type configController struct {
	configService service.IConfigService
}

func NewConfigController(configService service.IConfigService) IConfigController {
	return &configController{
		configService: configService,
	}
}

func (c *configController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/configuration-service")
	h.Use(serverutils.JwtMiddleware)
	h.Post("configs/:type", c.Create)
	h.Get("configs/:type", c.List)
	h.Get("configs/:type/:version", c.Show)
}

func (c *configController) Create(ctx *fiber.Ctx) error {
	var req dto.CreateConfigRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "malformed request body")
	}

	res, err := c.configService.Create(ctx.Context(), dto.ConfigType(ctx.Params("type")), &req)
	if err != nil {
		return err
	}
	return ctx.Status(fiber.StatusCreated).JSON(serverutils.SuccessResponse("Config created", res))
}

func (c *configController) List(ctx *fiber.Ctx) error {
	res, err := c.configService.List(ctx.Context(), dto.ConfigType(ctx.Params("type")))
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Success list configs", res))
}

func (c *configController) Show(ctx *fiber.Ctx) error {
	res, err := c.configService.Get(ctx.Context(), dto.ConfigType(ctx.Params("type")), ctx.Params("version"))
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Success show config", res))
}
