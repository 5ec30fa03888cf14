package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/kendall-kelly/servicehub-api/models"
	"gorm.io/gorm"
)

// AttendanceInput is a provider's on-site progress report.
type AttendanceInput struct {
	Status      models.AttendanceStatus
	ArrivalTime *time.Time
	Notes       string
}

// UpdateAttendance advances the provider's attendance one step. Reaching WORKING
// or COMPLETED drives the order status through an AttendanceChanged event.
func (s *OrderService) UpdateAttendance(ctx context.Context, actor Actor, orderID uint, in AttendanceInput) (*models.Order, error) {
	if !in.Status.Valid() {
		return nil, NewInvalidInput("INVALID_ATTENDANCE_STATUS", "unknown attendance status %q", in.Status)
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
		if order.ProviderID != actor.ID {
			return NewForbidden("FORBIDDEN", "only the assigned provider can report attendance")
		}
		statusBefore = order.Status

		if err := s.apply(order, AttendanceChanged{To: in.Status}); err != nil {
			return err
		}
		if next, ok := order.ProviderAttendanceStatus.Next(); !ok || next != in.Status {
			return NewPreconditionFailed("INVALID_ATTENDANCE_TRANSITION",
				"cannot move attendance from %s to %s", attendanceLabel(order.ProviderAttendanceStatus), in.Status)
		}

		now := s.clock.Now()
		order.ProviderAttendanceStatus = in.Status
		if in.Status == models.AttendanceArrived && order.ProviderArrivalTime == nil {
			arrived := now
			if in.ArrivalTime != nil {
				arrived = in.ArrivalTime.UTC()
			}
			order.ProviderArrivalTime = &arrived
		}
		if notes := strings.TrimSpace(in.Notes); notes != "" {
			order.ProviderNotes = notes
		}
		order.AppendInformation(now, fmt.Sprintf("Provider attendance: %s", in.Status))
		return saveOrder(tx, order)
	})
	if err != nil {
		return nil, err
	}

	if order.Status != statusBefore {
		s.notifyStatus(ctx, order, order.CustomerID)
	}
	return order, nil
}

func attendanceLabel(s models.AttendanceStatus) string {
	if s == models.AttendanceNone {
		return "NONE"
	}
	return string(s)
}
