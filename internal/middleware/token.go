package middleware

import (
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"

	"Unwarp/pkg/handlerUtil"
	jwtPkg "Unwarp/pkg/jwt"
)

// NewSessionTokenMiddleware admits requests carrying a session token, from
// the Authorization header or the token query parameter. When the route has
// an :id parameter the token must have been issued for that session.
func (m *middleware) NewSessionTokenMiddleware(ctx *fiber.Ctx) error {
	requestID := m.GetRequestID(ctx)
	errHandler := handlerUtil.New(m.log)

	raw, err := jwtPkg.TokenFromRequest(ctx)
	if err != nil {
		m.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"path":       ctx.Path(),
			"error":      err.Error(),
		}).Warn("Session token missing")
		return errHandler.HandleUnauthorized(ctx, requestID, "Unauthorized, session token invalid or expired")
	}

	sessionID, err := jwtPkg.SessionIDFromToken(raw)
	if err != nil {
		m.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"path":       ctx.Path(),
			"error":      err.Error(),
		}).Warn("Session token verification failed")
		return errHandler.HandleUnauthorized(ctx, requestID, "Unauthorized, session token invalid or expired")
	}

	if id := ctx.Params("id"); id != "" && id != sessionID {
		m.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"session_id": id,
		}).Warn("Session token used for another session")
		return ctx.Status(fiber.StatusForbidden).JSON(handlerUtil.ErrorResponse{
			Error: "Session token does not grant access to this session",
			Code:  "FORBIDDEN",
		})
	}

	ctx.Locals(jwtPkg.SessionLocalsKey, sessionID)
	return ctx.Next()
}
