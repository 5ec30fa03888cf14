package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/kendall-kelly/servicehub-api/models"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// OrderService owns Order.Status. Attendance, verification and provider/customer/admin
// actions all reach the status through NextStatus.
type OrderService struct {
	db       *gorm.DB
	tx       TransactionManager
	clock    Clock
	notifier Notifier
}

// NewOrderService creates an order service on db using the process clock and notifier
func NewOrderService(db *gorm.DB) *OrderService {
	return &OrderService{
		db:       db,
		tx:       NewTransactionManager(db),
		clock:    GetClock(),
		notifier: GetNotifier(),
	}
}

// CreateOrderInput is what a customer supplies when booking a service.
type CreateOrderInput struct {
	ProviderServiceID   uint
	ScheduledDate       time.Time
	JobAddress          string
	JobDistrict         string
	JobSubDistrict      string
	JobWard             string
	JobDescriptionNotes string
	PaymentMethod       models.PaymentMethod
}

// CreateOrder books a provider service. The service's base price is copied onto
// the order and the final amount starts at that base price.
func (s *OrderService) CreateOrder(ctx context.Context, actor Actor, in CreateOrderInput) (*models.Order, error) {
	if actor.Role != models.RoleCustomer {
		return nil, NewForbidden("FORBIDDEN", "only customers can create orders")
	}
	if strings.TrimSpace(in.JobAddress) == "" {
		return nil, NewInvalidInput("VALIDATION_ERROR", "job address is required")
	}
	if in.ScheduledDate.IsZero() {
		return nil, NewInvalidInput("VALIDATION_ERROR", "scheduled date is required")
	}
	switch in.PaymentMethod {
	case models.PaymentCash, models.PaymentBankTransfer, models.PaymentEWallet:
	default:
		return nil, NewInvalidInput("VALIDATION_ERROR", "unsupported payment method %q", in.PaymentMethod)
	}

	var service models.ProviderService
	if err := s.db.WithContext(ctx).First(&service, in.ProviderServiceID).Error; err != nil {
		return nil, notFoundOr(err, "SERVICE_NOT_FOUND", "Provider service")
	}
	if !service.IsActive {
		return nil, NewPreconditionFailed("SERVICE_INACTIVE", "provider service is not accepting orders")
	}
	if service.ProviderID == actor.ID {
		return nil, NewForbidden("FORBIDDEN", "cannot order your own service")
	}

	order := models.Order{
		CustomerID:          actor.ID,
		ProviderID:          service.ProviderID,
		ProviderServiceID:   service.ID,
		Status:              models.OrderStatusPendingAcceptance,
		ScheduledDate:       in.ScheduledDate.UTC(),
		JobAddress:          strings.TrimSpace(in.JobAddress),
		JobDistrict:         in.JobDistrict,
		JobSubDistrict:      in.JobSubDistrict,
		JobWard:             in.JobWard,
		JobDescriptionNotes: in.JobDescriptionNotes,
		BasePrice:           service.BasePrice,
		FinalAmount:         decimal.NewNullDecimal(service.BasePrice),
		ChosenPaymentMethod: in.PaymentMethod,
	}
	order.AppendInformation(s.clock.Now(), "Order created by customer")

	if err := s.db.WithContext(ctx).Create(&order).Error; err != nil {
		return nil, fmt.Errorf("failed to create order: %w", err)
	}

	s.notifyStatus(ctx, &order, order.ProviderID)
	return &order, nil
}

// GetOrder returns the order if the actor is a participant or an admin. Anyone
// else gets NotFound so order ids cannot be probed.
func (s *OrderService) GetOrder(ctx context.Context, actor Actor, orderID uint) (*models.Order, error) {
	order, err := loadOrder(s.db.WithContext(ctx), orderID)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin() && !order.IsParticipant(actor.ID) {
		return nil, NewNotFound("ORDER_NOT_FOUND", "Order not found")
	}
	return order, nil
}

// ListOrders returns the actor's own orders, newest first. Admins see every order.
func (s *OrderService) ListOrders(ctx context.Context, actor Actor, status models.OrderStatus) ([]models.Order, error) {
	query := s.db.WithContext(ctx).Model(&models.Order{})
	switch actor.Role {
	case models.RoleCustomer:
		query = query.Where("customer_id = ?", actor.ID)
	case models.RoleProvider:
		query = query.Where("provider_id = ?", actor.ID)
	case models.RoleAdmin:
	default:
		return nil, NewForbidden("FORBIDDEN", "unknown role")
	}
	if status != "" {
		if !status.Valid() {
			return nil, NewInvalidInput("INVALID_STATUS", "unknown order status %q", status)
		}
		query = query.Where("status = ?", status)
	}

	orders := []models.Order{}
	if err := query.Order("created_at DESC").Order("id DESC").Find(&orders).Error; err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	return orders, nil
}

// UpdateStatusByProvider applies a provider decision. Rejection requires a reason,
// which is appended to the order's information trail.
func (s *OrderService) UpdateStatusByProvider(ctx context.Context, actor Actor, orderID uint, to models.OrderStatus, reason string) (*models.Order, error) {
	reason = strings.TrimSpace(reason)
	if to == models.OrderStatusRejectedByProvider && reason == "" {
		return nil, NewInvalidInput("REASON_REQUIRED", "a reason is required to reject an order")
	}

	var order *models.Order
	err := s.tx.WithinTx(ctx, func(tx *gorm.DB) error {
		var err error
		order, err = lockOrder(tx, orderID)
		if err != nil {
			return err
		}
		if order.ProviderID != actor.ID {
			return NewForbidden("FORBIDDEN", "only the assigned provider can update this order")
		}
		if err := s.apply(order, ProviderDecided{To: to}); err != nil {
			return err
		}
		line := fmt.Sprintf("Provider set status to %s", to)
		if reason != "" {
			line += ": " + reason
		}
		order.AppendInformation(s.clock.Now(), line)
		return saveOrder(tx, order)
	})
	if err != nil {
		return nil, err
	}

	s.notifyStatus(ctx, order, order.CustomerID)
	return order, nil
}

// CancelOrder lets the customer withdraw an order that has not started.
func (s *OrderService) CancelOrder(ctx context.Context, actor Actor, orderID uint, reason string) (*models.Order, error) {
	var order *models.Order
	err := s.tx.WithinTx(ctx, func(tx *gorm.DB) error {
		var err error
		order, err = lockOrder(tx, orderID)
		if err != nil {
			return err
		}
		if order.CustomerID != actor.ID {
			return NewForbidden("FORBIDDEN", "only the customer can cancel this order")
		}
		if err := s.apply(order, CustomerCancelled{}); err != nil {
			return err
		}
		line := "Customer cancelled the order"
		if r := strings.TrimSpace(reason); r != "" {
			line += ": " + r
		}
		order.AppendInformation(s.clock.Now(), line)
		return saveOrder(tx, order)
	})
	if err != nil {
		return nil, err
	}

	s.notifyStatus(ctx, order, order.ProviderID)
	return order, nil
}

// OverrideStatus force-sets the status. Every override is written to the audit
// log in the same transaction and to the application log.
func (s *OrderService) OverrideStatus(ctx context.Context, admin Actor, orderID uint, to models.OrderStatus, note string) (*models.Order, error) {
	if !admin.IsAdmin() {
		return nil, NewForbidden("FORBIDDEN", "only admins can override order status")
	}

	var (
		order *models.Order
		from  models.OrderStatus
	)
	err := s.tx.WithinTx(ctx, func(tx *gorm.DB) error {
		var err error
		order, err = lockOrder(tx, orderID)
		if err != nil {
			return err
		}
		from = order.Status
		if err := s.apply(order, AdminOverride{To: to}); err != nil {
			return err
		}
		line := fmt.Sprintf("Admin #%d overrode status %s -> %s", admin.ID, from, to)
		if n := strings.TrimSpace(note); n != "" {
			line += ": " + n
		}
		order.AppendInformation(s.clock.Now(), line)
		if err := saveOrder(tx, order); err != nil {
			return err
		}
		return writeAudit(tx, s.clock.Now(), admin.ID, models.AuditActionOverrideOrderStatus,
			models.AuditResourceOrder, order.ID,
			map[string]interface{}{"status": from},
			map[string]interface{}{"status": to, "note": note})
	})
	if err != nil {
		return nil, err
	}

	zap.L().Info("admin order status override",
		zap.Uint("admin_id", admin.ID),
		zap.Uint("order_id", order.ID),
		zap.String("from", string(from)),
		zap.String("to", string(to)),
	)
	s.notifyStatus(ctx, order, order.CustomerID)
	s.notifyStatus(ctx, order, order.ProviderID)
	return order, nil
}

// AttachJobPhoto records the storage key of the customer's job photo.
func (s *OrderService) AttachJobPhoto(ctx context.Context, actor Actor, orderID uint, key string) (*models.Order, error) {
	order, err := loadOrder(s.db.WithContext(ctx), orderID)
	if err != nil {
		return nil, err
	}
	if order.CustomerID != actor.ID {
		return nil, NewForbidden("FORBIDDEN", "only the customer can attach a job photo")
	}
	if !order.Status.IsActive() {
		return nil, NewPreconditionFailed("ORDER_NOT_ACTIVE", "order is %s", order.Status)
	}
	if err := s.db.WithContext(ctx).Model(order).Update("job_photo_key", key).Error; err != nil {
		return nil, fmt.Errorf("failed to attach job photo: %w", err)
	}
	order.JobPhotoKey = &key
	return order, nil
}

// apply runs ev through the transition function and updates order in memory.
func (s *OrderService) apply(order *models.Order, ev OrderEvent) error {
	next, err := NextStatus(order.Status, ev)
	if err != nil {
		return err
	}
	if next != order.Status {
		zap.L().Debug("order status transition",
			zap.Uint("order_id", order.ID),
			zap.String("event", ev.eventName()),
			zap.String("from", string(order.Status)),
			zap.String("to", string(next)),
		)
		order.Status = next
	}
	return nil
}

func (s *OrderService) notifyStatus(ctx context.Context, order *models.Order, recipient uint) {
	s.notifier.Notify(ctx, Notification{
		Type:        NotifyOrderStatusChanged,
		RecipientID: recipient,
		OrderID:     order.ID,
		Payload:     map[string]interface{}{"status": order.Status},
		CreatedAt:   s.clock.Now(),
	})
}

func loadOrder(db *gorm.DB, orderID uint) (*models.Order, error) {
	var order models.Order
	if err := db.First(&order, orderID).Error; err != nil {
		return nil, notFoundOr(err, "ORDER_NOT_FOUND", "Order")
	}
	return &order, nil
}

// lockOrder loads the order with a row lock held until tx ends, so concurrent
// writers on one order run one after another. SQLite has no row locks; its
// driver drops the clause and its writers are already serialized.
func lockOrder(tx *gorm.DB, orderID uint) (*models.Order, error) {
	return loadOrder(forUpdate(tx), orderID)
}

func forUpdate(tx *gorm.DB) *gorm.DB {
	return tx.Clauses(clause.Locking{Strength: "UPDATE"})
}

func saveOrder(db *gorm.DB, order *models.Order) error {
	if err := db.Save(order).Error; err != nil {
		return fmt.Errorf("failed to save order: %w", err)
	}
	return nil
}

func writeAudit(db *gorm.DB, at time.Time, actorID uint, action models.AuditAction, resource models.AuditResourceType, resourceID uint, before, after interface{}) error {
	beforeJSON, err := json.Marshal(before)
	if err != nil {
		return fmt.Errorf("failed to encode audit snapshot: %w", err)
	}
	afterJSON, err := json.Marshal(after)
	if err != nil {
		return fmt.Errorf("failed to encode audit snapshot: %w", err)
	}
	entry := models.AuditLog{
		ActorUserID:  actorID,
		Action:       action,
		ResourceType: resource,
		ResourceID:   resourceID,
		BeforeJSON:   string(beforeJSON),
		AfterJSON:    string(afterJSON),
		CreatedAt:    at,
	}
	if err := db.Create(&entry).Error; err != nil {
		return fmt.Errorf("failed to write audit log: %w", err)
	}
	return nil
}
