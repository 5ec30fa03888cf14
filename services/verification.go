package services

import (
	"context"
	"strings"

	"github.com/kendall-kelly/servicehub-api/models"
	"gorm.io/gorm"
)

// VerifyInput is the customer's verdict on the provider's attendance and work.
type VerifyInput struct {
	Decision models.VerificationStatus
	Notes    string
}

// Verify stamps the customer's verification. A verified ACCEPTED order moves to
// IN_PROGRESS; a rejection always moves the order to DISPUTED, including after
// completion.
func (s *OrderService) Verify(ctx context.Context, actor Actor, orderID uint, in VerifyInput) (*models.Order, error) {
	if in.Decision != models.VerificationVerified && in.Decision != models.VerificationRejected {
		return nil, NewInvalidInput("INVALID_DECISION", "decision must be %q or %q",
			models.VerificationVerified, models.VerificationRejected)
	}

	var (
		order        *models.Order
		statusBefore models.OrderStatus
	)
	err := s.tx.WithinTx(ctx, func(tx *gorm.DB) error {
		var err error
		order, err = lockOrder(tx, orderID)
		if err != nil {
			return err
		}
		if order.CustomerID != actor.ID {
			return NewForbidden("FORBIDDEN", "only the customer can verify this order")
		}
		statusBefore = order.Status
		if err := s.apply(order, VerificationSubmitted{Decision: in.Decision}); err != nil {
			return err
		}

		now := s.clock.Now()
		notes := strings.TrimSpace(in.Notes)
		order.CustomerVerificationStatus = in.Decision
		order.CustomerVerificationNotes = notes
		order.CustomerVerificationTime = &now

		line := "Customer verified the provider's work"
		if in.Decision == models.VerificationRejected {
			line = "Customer rejected the provider's work"
		}
		if notes != "" {
			line += ": " + notes
		}
		order.AppendInformation(now, line)
		return saveOrder(tx, order)
	})
	if err != nil {
		return nil, err
	}

	if order.Status != statusBefore {
		s.notifyStatus(ctx, order, order.ProviderID)
	}
	return order, nil
}
