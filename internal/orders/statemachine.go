package orders

import (
	"fmt"
	"strings"

	"github.com/joao-fontenele/cartflow/internal/domain"
)

// InitialStatus is the status every order is created with.
const InitialStatus = domain.OrderStatusPending

type Policy string

const (
	// PolicyUnrestricted allows moving from any status to any status.
	PolicyUnrestricted Policy = "unrestricted"
	// PolicyForwardOnly rejects moves to an earlier status. Re-applying the current status is
	// allowed so tracking details of a shipped order can be corrected.
	PolicyForwardOnly Policy = "forward-only"
)

func ParsePolicy(s string) (Policy, error) {
	switch p := Policy(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return PolicyUnrestricted, nil
	case PolicyUnrestricted, PolicyForwardOnly:
		return p, nil
	}
	return "", fmt.Errorf("unknown transition policy %q", s)
}

type Transition struct {
	Status         domain.OrderStatus `json:"order_status"`
	TrackingNumber string             `json:"tracking_number"`
	CourierName    string             `json:"courier_name"`
}

type StateMachine struct {
	policy Policy
}

func NewStateMachine(policy Policy) *StateMachine {
	return &StateMachine{policy: policy}
}

func (m *StateMachine) Validate(current domain.OrderStatus, t Transition) error {
	if !t.Status.Valid() {
		return domain.Invalid("order_status", fmt.Sprintf("unknown status %q", t.Status))
	}

	if t.Status == domain.OrderStatusShipped {
		if strings.TrimSpace(t.TrackingNumber) == "" {
			return domain.Invalid("tracking_number", "is required when shipping")
		}
		if strings.TrimSpace(t.CourierName) == "" {
			return domain.Invalid("courier_name", "is required when shipping")
		}
	}

	if m.policy == PolicyForwardOnly && t.Status.Rank() < current.Rank() {
		return domain.Invalid("order_status", fmt.Sprintf("cannot move from %s back to %s", current, t.Status))
	}

	return nil
}

// Apply validates t against the order's current status and only then updates the status and
// tracking fields. On error the order is left untouched. Tracking fields are never cleared.
func (m *StateMachine) Apply(order *domain.Order, t Transition) error {
	if err := m.Validate(order.Status, t); err != nil {
		return err
	}

	order.Status = t.Status
	if tracking := strings.TrimSpace(t.TrackingNumber); tracking != "" {
		order.TrackingNumber = &tracking
	}
	if courier := strings.TrimSpace(t.CourierName); courier != "" {
		order.CourierName = &courier
	}

	return nil
}
