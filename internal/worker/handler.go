package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/joao-fontenele/cartflow/internal/domain"
)

// NotificationHandler turns order events into customer emails sent through the email service.
type NotificationHandler struct {
	emailServiceURL string
	emailDomain     string
	httpClient      *http.Client
	logger          *slog.Logger
}

func NewNotificationHandler(emailServiceURL, emailDomain string, client *http.Client, logger *slog.Logger) *NotificationHandler {
	return &NotificationHandler{
		emailServiceURL: strings.TrimRight(emailServiceURL, "/"),
		emailDomain:     emailDomain,
		httpClient:      client,
		logger:          logger,
	}
}

type emailMessage struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

func (h *NotificationHandler) HandleOrderPlaced(ctx context.Context, payload []byte) error {
	var event domain.OrderPlacedEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return fmt.Errorf("unmarshal order placed event: %w", err)
	}

	h.logger.Info("processing order placed event", "order_id", event.OrderID, "user_id", event.UserID)

	units := 0
	for _, item := range event.Items {
		units += item.Quantity
	}

	msg := emailMessage{
		To:      h.recipient(event.UserID),
		Subject: "Order Confirmation: " + event.OrderID,
		Body: fmt.Sprintf("Thanks for your order %s. We received %d items totalling %s and will let you know when it ships.",
			event.OrderID, units, event.TotalAmount.StringFixed(2)),
	}

	if err := h.sendEmail(ctx, msg); err != nil {
		h.logger.Error("failed to send confirmation email", "error", err, "order_id", event.OrderID)
		return fmt.Errorf("send confirmation email: %w", err)
	}

	h.logger.Info("order confirmation sent", "order_id", event.OrderID)
	return nil
}

func (h *NotificationHandler) HandleStatusChanged(ctx context.Context, payload []byte) error {
	var event domain.OrderStatusChangedEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return fmt.Errorf("unmarshal order status changed event: %w", err)
	}

	if event.Status == event.PreviousStatus && event.Status != domain.OrderStatusShipped {
		h.logger.Info("skipping notification for unchanged status", "order_id", event.OrderID, "status", event.Status)
		return nil
	}

	msg := emailMessage{
		To:      h.recipient(event.UserID),
		Subject: fmt.Sprintf("Order %s: %s", event.OrderID, event.Status),
		Body:    statusBody(event),
	}

	if err := h.sendEmail(ctx, msg); err != nil {
		h.logger.Error("failed to send status email", "error", err, "order_id", event.OrderID, "status", event.Status)
		return fmt.Errorf("send status email: %w", err)
	}

	h.logger.Info("order status notification sent", "order_id", event.OrderID, "status", event.Status)
	return nil
}

func statusBody(event domain.OrderStatusChangedEvent) string {
	switch event.Status {
	case domain.OrderStatusProcessing:
		return fmt.Sprintf("Your order %s is being prepared.", event.OrderID)
	case domain.OrderStatusShipped:
		return fmt.Sprintf("Your order %s has shipped with %s. Tracking number: %s.",
			event.OrderID, event.CourierName, event.TrackingNumber)
	case domain.OrderStatusDelivered:
		return fmt.Sprintf("Your order %s has been delivered.", event.OrderID)
	}
	return fmt.Sprintf("Your order %s is now %s.", event.OrderID, event.Status)
}

func (h *NotificationHandler) recipient(userID string) string {
	return userID + "@" + h.emailDomain
}

func (h *NotificationHandler) sendEmail(ctx context.Context, msg emailMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.emailServiceURL+"/send", bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("email service returned status %d", resp.StatusCode)
	}

	return nil
}
