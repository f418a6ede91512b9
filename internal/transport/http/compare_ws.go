package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"

	apierrors "rowmatch/internal/errors"
	"rowmatch/internal/matching"
	"rowmatch/internal/services"
	api "rowmatch/pkg/contracts/api/v1"
	"rowmatch/pkg/contracts/events"
)

func (h *CompareHandler) upgrader() websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  h.cfg.WebSocket.ReadBufferSize,
		WriteBufferSize: h.cfg.WebSocket.WriteBufferSize,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" || len(h.cfg.AllowedOrigins) == 0 {
				return true
			}
			for _, allowed := range h.cfg.AllowedOrigins {
				if allowed == "*" || strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// wsStream writes the messages of one streamed comparison
type wsStream struct {
	conn      *websocket.Conn
	traceID   string
	writeWait time.Duration
}

func (s *wsStream) send(kind events.MessageType, data any) error {
	if s.writeWait > 0 {
		s.conn.SetWriteDeadline(time.Now().Add(s.writeWait))
	}
	return s.conn.WriteJSON(events.NewMessage(kind, s.traceID, data))
}

func (s *wsStream) close(code int, text string) {
	deadline := time.Now().Add(time.Second)
	if s.writeWait > 0 {
		deadline = time.Now().Add(s.writeWait)
	}
	s.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, text), deadline)
}

// Stream handles GET /api/v1/compare/ws. The client sends one compare
// request; the server answers with progress messages followed by a single
// result or error message and closes the connection. Closing the
// connection early cancels the comparison.
func (h *CompareHandler) Stream(w http.ResponseWriter, r *http.Request) {
	upgrader := h.upgrader()
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.WarnContext(r.Context(), "WebSocket upgrade failed", slog.String("error", err.Error()))
		return
	}
	defer conn.Close()

	if h.cfg.WebSocket.MaxMessageBytes > 0 {
		conn.SetReadLimit(h.cfg.WebSocket.MaxMessageBytes)
	}
	stream := &wsStream{
		conn:      conn,
		traceID:   middleware.GetReqID(r.Context()),
		writeWait: h.cfg.WebSocket.WriteWait,
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	_, payload, err := conn.ReadMessage()
	if err != nil {
		h.logger.InfoContext(ctx, "WebSocket closed before request", slog.String("error", err.Error()))
		return
	}
	var req api.CompareRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		h.sendError(stream, r, apierrors.InvalidRequestWithError(err))
		return
	}

	// Any further frame, including a close, ends the comparison
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	if err := h.validator.ValidateStruct(req); err != nil {
		h.sendError(stream, r, err)
		return
	}

	var writeErr error
	res, err := h.service.Compare(ctx, services.CompareInput{
		Data:          req.Data,
		Lookup:        req.Lookup,
		DataColumns:   req.DataColumns,
		LookupColumns: req.LookupColumns,
		Progress: func(p matching.Progress) {
			if writeErr != nil {
				return
			}
			if writeErr = stream.send(events.MessageTypeProgress, events.NewProgress(p.Processed, p.Total)); writeErr != nil {
				cancel()
			}
		},
	})
	if writeErr != nil {
		h.logger.InfoContext(ctx, "WebSocket client went away", slog.String("error", writeErr.Error()))
		return
	}
	if err != nil {
		h.sendError(stream, r, err)
		return
	}

	if err := stream.send(events.MessageTypeResult, NewCompareResponse(res)); err != nil {
		h.logger.InfoContext(ctx, "failed to send result", slog.String("error", err.Error()))
		return
	}
	stream.close(websocket.CloseNormalClosure, "done")
}

func (h *CompareHandler) sendError(stream *wsStream, r *http.Request, err error) {
	problem := h.errorHandler.ErrorToProblem(err, r)
	h.logger.WarnContext(r.Context(), "streamed comparison failed",
		slog.String("error", err.Error()),
		slog.Int("status", problem.Status))

	code := problem.ErrorCode()
	if code == "" {
		code = apierrors.CodeInternal
	}
	data := events.ErrorData{Code: code, Message: problem.Detail, Status: problem.Status}
	if sendErr := stream.send(events.MessageTypeError, data); sendErr != nil {
		return
	}
	stream.close(websocket.CloseNormalClosure, code)
}
