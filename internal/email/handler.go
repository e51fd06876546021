package email

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/joao-fontenele/cartflow/internal/respond"
)

// Handler accepts outgoing customer emails. Delivery is simulated with a fixed latency.
type Handler struct {
	logger  *slog.Logger
	latency time.Duration
}

func NewHandler(logger *slog.Logger, latency time.Duration) *Handler {
	return &Handler{
		logger:  logger,
		latency: latency,
	}
}

type sendRequest struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

type sendResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

func (h *Handler) HandleSend(w http.ResponseWriter, r *http.Request) {
	var req sendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.Message(w, h.logger, http.StatusBadRequest, "invalid request body")
		return
	}

	if _, err := mail.ParseAddress(req.To); err != nil {
		respond.Message(w, h.logger, http.StatusBadRequest, "invalid recipient address")
		return
	}
	if strings.TrimSpace(req.Subject) == "" {
		respond.Message(w, h.logger, http.StatusBadRequest, "subject is required")
		return
	}

	if h.latency > 0 {
		select {
		case <-r.Context().Done():
			return
		case <-time.After(h.latency):
		}
	}

	id := uuid.New().String()
	h.logger.Info("email sent", "id", id, "to", req.To, "subject", req.Subject)

	respond.JSON(w, h.logger, http.StatusOK, sendResponse{ID: id, Status: "sent"})
}
