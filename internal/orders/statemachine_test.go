package orders

import (
	"errors"
	"testing"

	"github.com/joao-fontenele/cartflow/internal/domain"
)

func strPtr(s string) *string { return &s }

func TestStateMachine_Apply(t *testing.T) {
	machine := NewStateMachine(PolicyUnrestricted)

	t.Run("shipped without tracking fails and leaves order unchanged", func(t *testing.T) {
		order := &domain.Order{Status: domain.OrderStatusProcessing}

		err := machine.Apply(order, Transition{Status: domain.OrderStatusShipped})
		if !errors.Is(err, domain.ErrValidation) {
			t.Fatalf("expected validation error, got %v", err)
		}
		if order.Status != domain.OrderStatusProcessing {
			t.Errorf("expected status processing, got %s", order.Status)
		}
		if order.TrackingNumber != nil || order.CourierName != nil {
			t.Error("expected tracking fields to stay empty")
		}
	})

	t.Run("shipped with tracking only fails on courier", func(t *testing.T) {
		order := &domain.Order{Status: domain.OrderStatusPending}

		err := machine.Apply(order, Transition{Status: domain.OrderStatusShipped, TrackingNumber: "T1"})
		var ve *domain.ValidationError
		if !errors.As(err, &ve) || ve.Field != "courier_name" {
			t.Fatalf("expected courier_name validation error, got %v", err)
		}
		if order.TrackingNumber != nil {
			t.Error("expected no partial update of tracking number")
		}
	})

	t.Run("shipped with tracking succeeds", func(t *testing.T) {
		order := &domain.Order{Status: domain.OrderStatusPending}

		err := machine.Apply(order, Transition{Status: domain.OrderStatusShipped, TrackingNumber: " T1 ", CourierName: "DHL"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if order.Status != domain.OrderStatusShipped {
			t.Errorf("expected shipped, got %s", order.Status)
		}
		if order.TrackingNumber == nil || *order.TrackingNumber != "T1" {
			t.Errorf("expected tracking T1, got %v", order.TrackingNumber)
		}
		if order.CourierName == nil || *order.CourierName != "DHL" {
			t.Errorf("expected courier DHL, got %v", order.CourierName)
		}
	})

	t.Run("tracking persists after delivery", func(t *testing.T) {
		order := &domain.Order{
			Status:         domain.OrderStatusShipped,
			TrackingNumber: strPtr("T1"),
			CourierName:    strPtr("DHL"),
		}

		if err := machine.Apply(order, Transition{Status: domain.OrderStatusDelivered}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if *order.TrackingNumber != "T1" || *order.CourierName != "DHL" {
			t.Error("expected tracking fields to be kept")
		}
	})

	t.Run("unrestricted allows moving backward", func(t *testing.T) {
		order := &domain.Order{Status: domain.OrderStatusDelivered}

		if err := machine.Apply(order, Transition{Status: domain.OrderStatusPending}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if order.Status != domain.OrderStatusPending {
			t.Errorf("expected pending, got %s", order.Status)
		}
	})

	t.Run("unknown status is rejected", func(t *testing.T) {
		order := &domain.Order{Status: domain.OrderStatusPending}

		err := machine.Apply(order, Transition{Status: "cancelled"})
		if !errors.Is(err, domain.ErrValidation) {
			t.Fatalf("expected validation error, got %v", err)
		}
	})
}

func TestStateMachine_ForwardOnly(t *testing.T) {
	machine := NewStateMachine(PolicyForwardOnly)

	tests := []struct {
		name    string
		from    domain.OrderStatus
		to      Transition
		wantErr bool
	}{
		{"pending to processing", domain.OrderStatusPending, Transition{Status: domain.OrderStatusProcessing}, false},
		{"pending to delivered", domain.OrderStatusPending, Transition{Status: domain.OrderStatusDelivered}, false},
		{"shipped to shipped", domain.OrderStatusShipped, Transition{Status: domain.OrderStatusShipped, TrackingNumber: "T2", CourierName: "UPS"}, false},
		{"delivered to processing", domain.OrderStatusDelivered, Transition{Status: domain.OrderStatusProcessing}, true},
		{"shipped to pending", domain.OrderStatusShipped, Transition{Status: domain.OrderStatusPending}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			order := &domain.Order{Status: tt.from}
			err := machine.Apply(order, tt.to)
			if tt.wantErr {
				if !errors.Is(err, domain.ErrValidation) {
					t.Fatalf("expected validation error, got %v", err)
				}
				if order.Status != tt.from {
					t.Errorf("expected status to stay %s, got %s", tt.from, order.Status)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if order.Status != tt.to.Status {
				t.Errorf("expected %s, got %s", tt.to.Status, order.Status)
			}
		})
	}
}

func TestParsePolicy(t *testing.T) {
	if p, err := ParsePolicy(""); err != nil || p != PolicyUnrestricted {
		t.Errorf("expected unrestricted default, got %s %v", p, err)
	}
	if p, err := ParsePolicy("Forward-Only"); err != nil || p != PolicyForwardOnly {
		t.Errorf("expected forward-only, got %s %v", p, err)
	}
	if _, err := ParsePolicy("strict"); err == nil {
		t.Error("expected error for unknown policy")
	}
}
