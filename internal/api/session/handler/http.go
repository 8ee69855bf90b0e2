package sessionHandler

import (
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/sirupsen/logrus"

	sessionService "Unwarp/internal/api/session/service"
	"Unwarp/internal/middleware"
)

type SessionHandler struct {
	log            *logrus.Logger
	validator      *validator.Validate
	middleware     middleware.Middleware
	sessionService sessionService.ISessionService
}

func New(
	log *logrus.Logger,
	validate *validator.Validate,
	middleware middleware.Middleware,
	ss sessionService.ISessionService,
) *SessionHandler {
	return &SessionHandler{
		log:            log,
		validator:      validate,
		middleware:     middleware,
		sessionService: ss,
	}
}

func (h *SessionHandler) Start(srv fiber.Router) {
	wsMiddleware := func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	}

	sessions := srv.Group("/sessions")
	sessions.Post("", h.middleware.NewRateLimiter, h.CreateSession)

	sessions.Get("/:id", h.middleware.NewSessionTokenMiddleware, h.GetSession)
	sessions.Delete("/:id", h.middleware.NewSessionTokenMiddleware, h.DeleteSession)
	sessions.Post("/:id/events", h.middleware.NewSessionTokenMiddleware, h.ApplyGesture)
	sessions.Put("/:id/image", h.middleware.NewSessionTokenMiddleware, h.LoadImage)
	sessions.Post("/:id/process", h.middleware.NewSessionTokenMiddleware, h.middleware.NewRateLimiter, h.ProcessSession)

	sessions.Get("/:id/ws", wsMiddleware, h.middleware.NewSessionTokenMiddleware, websocket.New(h.handleWebSocket))
}
