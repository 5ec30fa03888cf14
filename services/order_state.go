package services

import (
	"github.com/kendall-kelly/servicehub-api/models"
)

// OrderEvent is an input to the order transition function. Every change to
// Order.Status goes through NextStatus with one of the event types below.
type OrderEvent interface {
	eventName() string
}

// ProviderDecided is a provider setting the order status directly.
type ProviderDecided struct {
	To models.OrderStatus
}

// CustomerCancelled is the customer withdrawing the order.
type CustomerCancelled struct{}

// AttendanceChanged is emitted by the attendance tracker after a provider
// reports on-site progress.
type AttendanceChanged struct {
	To models.AttendanceStatus
}

// VerificationSubmitted is the customer's verdict on the provider's work.
type VerificationSubmitted struct {
	Decision models.VerificationStatus
}

// AdminOverride force-sets any status.
type AdminOverride struct {
	To models.OrderStatus
}

func (ProviderDecided) eventName() string       { return "provider_decided" }
func (CustomerCancelled) eventName() string     { return "customer_cancelled" }
func (AttendanceChanged) eventName() string     { return "attendance_changed" }
func (VerificationSubmitted) eventName() string { return "verification_submitted" }
func (AdminOverride) eventName() string         { return "admin_override" }

// providerTransitions lists, per target status, the statuses a provider may move from.
var providerTransitions = map[models.OrderStatus][]models.OrderStatus{
	models.OrderStatusAccepted:           {models.OrderStatusPendingAcceptance},
	models.OrderStatusRejectedByProvider: {models.OrderStatusPendingAcceptance},
	models.OrderStatusInProgress:         {models.OrderStatusAccepted},
	models.OrderStatusCompleted:          {models.OrderStatusInProgress},
}

var cancellableStatuses = []models.OrderStatus{
	models.OrderStatusPendingAcceptance,
	models.OrderStatusAccepted,
}

var attendanceStatuses = []models.OrderStatus{
	models.OrderStatusAccepted,
	models.OrderStatusInProgress,
}

var verifiableStatuses = []models.OrderStatus{
	models.OrderStatusAccepted,
	models.OrderStatusInProgress,
	models.OrderStatusCompleted,
}

// NextStatus returns the status an order in current moves to when ev happens.
// It is pure: callers persist the result. A nil error with next == current means
// the event is accepted but leaves the status unchanged.
func NextStatus(current models.OrderStatus, ev OrderEvent) (models.OrderStatus, error) {
	switch e := ev.(type) {
	case ProviderDecided:
		allowedFrom, ok := providerTransitions[e.To]
		if !ok {
			return current, NewForbidden("FORBIDDEN_STATUS", "providers cannot set status %s", e.To)
		}
		if !statusIn(current, allowedFrom) {
			return current, invalidTransition(current, e.To)
		}
		return e.To, nil

	case CustomerCancelled:
		if !statusIn(current, cancellableStatuses) {
			return current, invalidTransition(current, models.OrderStatusCancelledByCustomer)
		}
		return models.OrderStatusCancelledByCustomer, nil

	case AttendanceChanged:
		if !statusIn(current, attendanceStatuses) {
			return current, NewPreconditionFailed("INVALID_ORDER_STATUS",
				"attendance cannot be reported while order is %s", current)
		}
		switch e.To {
		case models.AttendanceWorking:
			return models.OrderStatusInProgress, nil
		case models.AttendanceCompleted:
			return models.OrderStatusCompleted, nil
		case models.AttendanceOnTheWay, models.AttendanceArrived:
			return current, nil
		}
		return current, NewInvalidInput("INVALID_ATTENDANCE_STATUS", "unknown attendance status %q", e.To)

	case VerificationSubmitted:
		if !statusIn(current, verifiableStatuses) {
			return current, NewPreconditionFailed("INVALID_ORDER_STATUS",
				"order cannot be verified while %s", current)
		}
		switch e.Decision {
		case models.VerificationRejected:
			// Allowed even from COMPLETED: verification is the customer's own gate.
			return models.OrderStatusDisputed, nil
		case models.VerificationVerified:
			if current == models.OrderStatusAccepted {
				return models.OrderStatusInProgress, nil
			}
			return current, nil
		}
		return current, NewInvalidInput("INVALID_DECISION", "unknown verification decision %q", e.Decision)

	case AdminOverride:
		if !e.To.Valid() {
			return current, NewInvalidInput("INVALID_STATUS", "unknown order status %q", e.To)
		}
		return e.To, nil
	}

	return current, NewInvalidInput("UNKNOWN_EVENT", "unsupported order event")
}

func statusIn(status models.OrderStatus, set []models.OrderStatus) bool {
	for _, s := range set {
		if s == status {
			return true
		}
	}
	return false
}

func invalidTransition(from, to models.OrderStatus) error {
	return NewPreconditionFailed("INVALID_STATUS_TRANSITION", "cannot move order from %s to %s", from, to)
}
