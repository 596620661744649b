package server

import (
	"keyshop/internal/client"
	"keyshop/internal/config"
	"keyshop/internal/handler"
	"keyshop/internal/middleware"
	"keyshop/internal/service"
	"keyshop/internal/stream"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
)

type Server struct {
	echo                *echo.Echo
	orderHandler        *handler.OrderHandler
	adminHandler        *handler.AdminHandler
	botHandler          *handler.BotHandler
	notificationHandler *handler.NotificationHandler
	eventsHandler       *handler.EventsHandler
}

func NewServer(
	cfg *config.Config,
	orderService service.OrderService,
	approvalService service.ApprovalService,
	notificationService service.NotificationService,
	botClient client.BotClient,
	hub *stream.Hub,
) *Server {
	e := echo.New()

	e.Use(echomw.RequestLogger())
	e.Use(echomw.Recover())
	e.Use(echomw.CORS())

	s := &Server{
		echo:                e,
		orderHandler:        handler.NewOrderHandler(orderService),
		adminHandler:        handler.NewAdminHandler(approvalService, orderService),
		botHandler:          handler.NewBotHandler(approvalService, botClient),
		notificationHandler: handler.NewNotificationHandler(notificationService),
		eventsHandler:       handler.NewEventsHandler(hub),
	}

	s.setupRoutes(cfg)
	return s
}

func (s *Server) setupRoutes(cfg *config.Config) {
	api := s.echo.Group("/api")

	api.GET("/health", func(c echo.Context) error {
		return c.JSON(200, map[string]string{"status": "ok"})
	})

	// -------- customer --------
	user := api.Group("", middleware.AuthMiddleware())
	user.GET("/products", s.orderHandler.Products)
	user.POST("/orders", s.orderHandler.Create)
	user.GET("/orders", s.orderHandler.List)
	user.GET("/orders/:orderNo", s.orderHandler.Get)
	user.GET("/notifications", s.notificationHandler.List)
	user.POST("/notifications/:id/read", s.notificationHandler.MarkRead)
	user.GET("/events", s.eventsHandler.Stream)
	user.POST("/account/anonymize", s.orderHandler.Anonymize)

	// -------- operator --------
	admin := api.Group("/admin", middleware.AdminAuthMiddleware(cfg.Admin.Token))
	admin.POST("/orders/decision", s.adminHandler.Decide)
	admin.POST("/orders/:orderNo/refund", s.adminHandler.Refund)
	admin.POST("/products/:id/keys", s.adminHandler.Restock)

	// -------- chat-bot callbacks --------
	api.POST("/bot/webhook", s.botHandler.Webhook, middleware.BotSecretMiddleware(cfg.Bot.WebhookSecret))
}

func (s *Server) Start(address string) error {
	return s.echo.Start(address)
}

func (s *Server) Shutdown() error {
	return s.echo.Close()
}
