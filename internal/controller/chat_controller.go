package controller

import (
	"context"

	"ai-accelerator-be/internal/dto"
	"ai-accelerator-be/internal/pkg/logger"
	"ai-accelerator-be/internal/pkg/serverutils"
	"ai-accelerator-be/internal/service"
	ws "ai-accelerator-be/internal/websocket"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
)

type IChatController interface {
	RegisterRoutes(r fiber.Router)
	Chat(ctx *fiber.Ctx) error
	DeleteChatSession(ctx *fiber.Ctx) error
	ListUserProfiles(ctx *fiber.Ctx) error
	Healthz(ctx *fiber.Ctx) error
}

type chatController struct {
	sessionService service.ISessionService
	profileService service.IUserProfileService
	hub            *ws.Hub
	logger         logger.ILogger
}

func NewChatController(sessionService service.ISessionService, profileService service.IUserProfileService, hub *ws.Hub, log logger.ILogger) IChatController {
	return &chatController{
		sessionService: sessionService,
		profileService: profileService,
		hub:            hub,
		logger:         log,
	}
}

func (c *chatController) RegisterRoutes(r fiber.Router) {
	r.Get("/healthz", c.Healthz)
	r.Post("/chat", c.Chat)
	r.Delete("/chat-sessions/:user_id/:conversation_id", c.DeleteChatSession)
	r.Get("/user-profiles", c.ListUserProfiles)

	r.Use("/ws", func(ctx *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(ctx) {
			return ctx.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	r.Get("/ws/chat", websocket.New(c.serveChat))
}

// serveChat owns one websocket session from upgrade to close.
func (c *chatController) serveChat(conn *websocket.Conn) {
	connectionID := conn.Query("connection_id")
	if connectionID == "" {
		connectionID = uuid.NewString()
	}
	scenario := conn.Query("scenario", "rag")

	supervised := ws.NewConnection(connectionID, scenario, conn, c.logger)
	c.hub.Register(supervised)
	defer c.hub.Unregister(connectionID)

	supervised.Run(context.Background(), func(ctx context.Context, sc *ws.Connection, payload []byte) {
		c.sessionService.HandleTurn(ctx, sc, payload)
	})
}

// Chat serves the single-turn HTTP fallback.
func (c *chatController) Chat(ctx *fiber.Ctx) error {
	var req dto.ChatRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "malformed request body")
	}

	res, err := c.sessionService.ProcessHTTPTurn(ctx.Context(), &req)
	if err != nil {
		return err
	}
	return ctx.JSON(res)
}

func (c *chatController) DeleteChatSession(ctx *fiber.Ctx) error {
	err := c.sessionService.EndSession(ctx.Context(), ctx.Params("user_id"), ctx.Params("conversation_id"))
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Chat session cleared", nil))
}

func (c *chatController) ListUserProfiles(ctx *fiber.Ctx) error {
	res, err := c.profileService.GetAll(ctx.Context())
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Success list user profiles", res))
}

func (c *chatController) Healthz(ctx *fiber.Ctx) error {
	return ctx.JSON(fiber.Map{"status": "ok"})
}
