package conversation

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"golang.org/x/net/websocket"

	"github.com/novadental/chairside/pkg/logging"
)

// ChatRequest is the wire format for one patient message, shared by the JSON
// endpoint and the WebSocket frames.
type ChatRequest struct {
	SessionID string `json:"sessionId"`
	Message   string `json:"message"`
	Language  string `json:"language"`
	Source    string `json:"source"`
}

// Handler exposes the conversation service over HTTP and WebSocket.
type Handler struct {
	service *Service
	logger  *logging.Logger
}

func NewHandler(service *Service, logger *logging.Logger) *Handler {
	if service == nil {
		panic("conversation: service cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{service: service, logger: logger.Component("chat_handler")}
}

// Routes mounts the chat endpoints.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/chat", h.handleChat)
	r.Handle("/chat/ws", websocket.Handler(h.handleWebSocket))
}

func (h *Handler) handleChat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Message == "" {
		h.writeError(w, http.StatusBadRequest, "message is required")
		return
	}

	reply, err := h.service.HandleMessage(r.Context(), req.SessionID, req.Message, req.Language, req.Source)
	if err != nil {
		h.logger.Error("chat turn failed", "error", err, "session_id", req.SessionID)
		h.writeError(w, http.StatusInternalServerError, "failed to process message")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(reply); err != nil {
		h.logger.Error("failed to encode chat reply", "error", err)
	}
}

// handleWebSocket runs a request/reply frame loop: each incoming JSON frame
// is one patient message, each outgoing frame one Reply.
func (h *Handler) handleWebSocket(ws *websocket.Conn) {
	defer ws.Close()
	ctx := ws.Request().Context()

	for {
		var req ChatRequest
		if err := websocket.JSON.Receive(ws, &req); err != nil {
			if !errors.Is(err, io.EOF) {
				h.logger.Warn("websocket receive failed", "error", err)
			}
			return
		}
		if req.Message == "" {
			continue
		}
		if req.Source == "" {
			req.Source = "websocket"
		}

		reply, err := h.service.HandleMessage(ctx, req.SessionID, req.Message, req.Language, req.Source)
		if err != nil {
			h.logger.Error("websocket chat turn failed", "error", err, "session_id", req.SessionID)
			reply = &Reply{
				SessionID: req.SessionID,
				Text:      packFor(req.Language).Apology,
			}
		}
		if err := websocket.JSON.Send(ws, reply); err != nil {
			h.logger.Warn("websocket send failed", "error", err)
			return
		}
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
