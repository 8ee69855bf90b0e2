package context

import (
	"context"

	"github.com/gofiber/fiber/v2"
)

type key string

const (
	RequestIDKey key = "request_id"
	requestIDHdr     = "X-Request-ID"
)

func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

func GetRequestID(ctx context.Context) string {
	if ctx == nil {
		return "unknown"
	}
	requestID, ok := ctx.Value(RequestIDKey).(string)
	if !ok || requestID == "" {
		return "unknown"
	}
	return requestID
}

// FromFiberCtx builds a context for service calls carrying the request id
// assigned by the request id middleware.
func FromFiberCtx(c *fiber.Ctx) context.Context {
	requestID, ok := c.Locals(requestIDHdr).(string)
	if !ok || requestID == "" {
		requestID = c.Get(requestIDHdr)

		if requestID == "" {
			requestID = "unknown"
		}
	}

	return WithRequestID(c.UserContext(), requestID)
}

// Detach keeps the request id of ctx but drops its deadline and
// cancellation, for work that must outlive the request that started it.
func Detach(ctx context.Context) context.Context {
	return WithRequestID(context.Background(), GetRequestID(ctx))
}
