package http

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"exit-readiness-service/internal/app"
	"exit-readiness-service/internal/domain"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// WSHandler runs submissions over a websocket and streams pipeline state events.
type WSHandler struct {
	handler  *Handler
	upgrader websocket.Upgrader
}

func NewWSHandler(h *Handler) *WSHandler {
	return &WSHandler{
		handler: h,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

type resultPayload struct {
	Status int            `json:"status"`
	Result submitResponse `json:"result"`
}

// ServeWS upgrades the request; each "submit" message runs one submission.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	logger := h.handler.logger

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warn("ws upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()
	conn.SetReadLimit(maxJSONBody)

	send := make(chan outboundMessage[any], 16)
	writerDone := make(chan struct{})

	// Single writer; after a write error it keeps draining so producers never block.
	go func() {
		defer close(writerDone)
		failed := false
		for msg := range send {
			if failed {
				continue
			}
			_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := conn.WriteJSON(msg); err != nil {
				logger.Warn("ws write error", zap.Error(err))
				failed = true
			}
		}
	}()

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		switch inbound.Type {
		case "submit":
			h.submit(r.Context(), inbound.Payload, send)
		case "ping":
			send <- outboundMessage[any]{Type: "pong", Payload: struct{}{}}
		default:
			send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "unsupported message type"}}
		}
	}

	close(send)
	<-writerDone
}

func (h *WSHandler) submit(parent context.Context, raw json.RawMessage, send chan<- outboundMessage[any]) {
	var req submitRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "invalid submit payload"}}
		return
	}
	sub, err := req.toSubmission()
	if err != nil {
		status, resp := newSubmitResponse(domain.SubmissionResult{}, err)
		send <- outboundMessage[any]{Type: "result", Payload: resultPayload{Status: status, Result: resp}}
		return
	}

	ctx, cancel := h.handler.pipelineContext(parent)
	defer cancel()
	result, err := h.handler.pipeline.Submit(ctx, sub, func(ev app.Event) {
		send <- outboundMessage[any]{Type: "state", Payload: ev}
	})
	status, resp := newSubmitResponse(result, err)
	send <- outboundMessage[any]{Type: "result", Payload: resultPayload{Status: status, Result: resp}}
}
