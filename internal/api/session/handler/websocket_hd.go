package sessionHandler

import (
	"time"

	"github.com/gofiber/websocket/v2"
	jsoniter "github.com/json-iterator/go"
	"golang.org/x/net/context"

	sessionApi "Unwarp/internal/api/session"
	"Unwarp/internal/middleware"
	contextPkg "Unwarp/pkg/context"
	"Unwarp/pkg/log"
)

const (
	maxReadTimeout = 60 * time.Second
	writeTimeout   = 10 * time.Second
	processTimeout = 2 * time.Minute
)

// handleWebSocket streams gestures in and session states out. A single
// writer goroutine owns the connection's write side; gesture replies and
// broadcast states both go through it.
func (h *SessionHandler) handleWebSocket(c *websocket.Conn) {
	id := c.Params("id")
	requestID, _ := c.Locals(middleware.RequestIDKey).(string)
	fields := log.Fields{"request_id": requestID, "session_id": id}

	h.log.WithFields(fields).Info("Session websocket connected")
	defer h.log.WithFields(fields).Info("Session websocket disconnected")

	updates, unsubscribe, err := h.sessionService.Subscribe(id)
	if err != nil {
		_ = c.WriteJSON(sessionApi.ErrorMessage(err))
		return
	}
	defer unsubscribe()

	out := make(chan sessionApi.Message, 16)
	done := make(chan struct{})
	defer close(done)

	send := func(msg sessionApi.Message) {
		select {
		case out <- msg:
		case <-done:
		}
	}

	go h.writeLoop(c, fields, updates, out, done)

	c.SetPingHandler(func(data string) error {
		if err := c.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(5*time.Second)); err != nil {
			h.log.WithFields(fields).Errorf("Error sending pong: %v", err)
		}
		return nil
	})

	ctx := contextPkg.WithRequestID(context.Background(), requestID)

	if state, err := h.sessionService.Get(ctx, id); err == nil {
		send(sessionApi.StateMessage(state))
	}

	for {
		if err := c.SetReadDeadline(time.Now().Add(maxReadTimeout)); err != nil {
			h.log.WithFields(fields).Errorf("Error setting read deadline: %v", err)
			break
		}

		messageType, message, err := c.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.WithFields(fields).Errorf("Session websocket error: %v", err)
			}
			break
		}

		if messageType != websocket.TextMessage {
			h.log.WithFields(fields).Warnf("Received unexpected message type: %d", messageType)
			continue
		}

		var g sessionApi.Gesture
		if err := jsoniter.Unmarshal(message, &g); err != nil {
			send(sessionApi.ErrorMessage(sessionApi.ErrInvalidGesture))
			continue
		}
		if err := h.validator.Struct(g); err != nil {
			send(sessionApi.ErrorMessage(sessionApi.ErrInvalidGesture))
			continue
		}

		if g.Type == sessionApi.GestureProcess {
			// Corrections run beside the read loop so gestures keep flowing;
			// the settled state reaches the client through updates.
			go func() {
				pctx, cancel := context.WithTimeout(ctx, processTimeout)
				defer cancel()
				if _, err := h.sessionService.Process(pctx, id); err != nil {
					send(sessionApi.ErrorMessage(err))
				}
			}()
			continue
		}

		if _, err := h.sessionService.Apply(ctx, id, g); err != nil {
			send(sessionApi.ErrorMessage(err))
		}
	}
}

func (h *SessionHandler) writeLoop(
	c *websocket.Conn,
	fields log.Fields,
	updates <-chan sessionApi.StateResponse,
	out <-chan sessionApi.Message,
	done <-chan struct{},
) {
	write := func(msg sessionApi.Message) bool {
		if err := c.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
			return false
		}
		if err := c.WriteJSON(msg); err != nil {
			h.log.WithFields(fields).Errorf("Error writing JSON response: %v", err)
			return false
		}
		return true
	}

	for {
		select {
		case <-done:
			return
		case msg := <-out:
			if !write(msg) {
				_ = c.Close()
				return
			}
		case state, ok := <-updates:
			if !ok {
				// Session deleted or expired.
				_ = c.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session closed"),
					time.Now().Add(time.Second))
				_ = c.Close()
				return
			}
			if !write(sessionApi.StateMessage(state)) {
				_ = c.Close()
				return
			}
		}
	}
}
