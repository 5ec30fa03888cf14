package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/kendall-kelly/servicehub-api/models"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// CostLedger manages additive cost lines on an order and keeps Order.FinalAmount
// equal to basePrice + Σ(quantity × pricePerUnit) over APPROVED lines.
type CostLedger struct {
	db       *gorm.DB
	tx       TransactionManager
	clock    Clock
	notifier Notifier
}

// NewCostLedger creates a cost ledger on db using the process clock and notifier
func NewCostLedger(db *gorm.DB) *CostLedger {
	return &CostLedger{
		db:       db,
		tx:       NewTransactionManager(db),
		clock:    GetClock(),
		notifier: GetNotifier(),
	}
}

// ProposeCostInput describes one extra cost line.
type ProposeCostInput struct {
	Description  string
	Quantity     int
	PricePerUnit decimal.Decimal
}

// ProposeCost adds a PROPOSED line. Either party may propose while the order is
// still open.
func (l *CostLedger) ProposeCost(ctx context.Context, actor Actor, orderID uint, in ProposeCostInput) (*models.OrderDetail, error) {
	order, err := loadOrder(l.db.WithContext(ctx), orderID)
	if err != nil {
		return nil, err
	}
	if !order.IsParticipant(actor.ID) {
		return nil, NewForbidden("FORBIDDEN", "only the order's customer or provider can propose costs")
	}
	if !order.Status.IsActive() {
		return nil, NewForbidden("ORDER_NOT_ACTIVE", "costs cannot be proposed while order is %s", order.Status)
	}

	description := strings.TrimSpace(in.Description)
	if description == "" {
		return nil, NewInvalidInput("VALIDATION_ERROR", "description is required")
	}
	if in.Quantity <= 0 {
		return nil, NewInvalidInput("INVALID_QUANTITY", "quantity must be greater than zero")
	}
	if in.PricePerUnit.IsNegative() {
		return nil, NewInvalidInput("INVALID_PRICE", "price per unit cannot be negative")
	}

	detail := models.OrderDetail{
		OrderID:       order.ID,
		Description:   description,
		Quantity:      in.Quantity,
		PricePerUnit:  in.PricePerUnit,
		Status:        models.DetailProposed,
		AddedByUserID: actor.ID,
	}
	if err := l.db.WithContext(ctx).Create(&detail).Error; err != nil {
		return nil, fmt.Errorf("failed to create cost item: %w", err)
	}

	recipient := order.CustomerID
	if actor.ID == order.CustomerID {
		recipient = order.ProviderID
	}
	l.notifier.Notify(ctx, Notification{
		Type:        NotifyCostProposed,
		RecipientID: recipient,
		OrderID:     order.ID,
		Payload: map[string]interface{}{
			"detail_id":   detail.ID,
			"description": detail.Description,
			"line_total":  detail.LineTotal().String(),
		},
		CreatedAt: l.clock.Now(),
	})
	return &detail, nil
}

// DecideCost approves or rejects a line and recomputes the order's final amount
// in the same transaction. Only the customer decides. APPROVED lines are final.
func (l *CostLedger) DecideCost(ctx context.Context, actor Actor, orderID, detailID uint, decision models.DetailStatus) (*models.OrderDetail, *models.Order, error) {
	if decision != models.DetailApproved && decision != models.DetailRejected {
		return nil, nil, NewInvalidInput("INVALID_DECISION", "decision must be %s or %s",
			models.DetailApproved, models.DetailRejected)
	}

	var (
		detail *models.OrderDetail
		order  *models.Order
	)
	err := l.tx.WithinTx(ctx, func(tx *gorm.DB) error {
		var err error
		order, err = lockOrder(tx, orderID)
		if err != nil {
			return err
		}
		if order.CustomerID != actor.ID {
			return NewForbidden("FORBIDDEN", "only the customer can approve or reject costs")
		}
		detail, err = loadDetail(tx, orderID, detailID)
		if err != nil {
			return err
		}
		if !order.Status.IsActive() {
			return NewPreconditionFailed("ORDER_NOT_ACTIVE", "costs cannot be decided while order is %s", order.Status)
		}
		switch detail.Status {
		case models.DetailApproved:
			return NewPreconditionFailed("COST_ALREADY_APPROVED", "approved cost items cannot be changed")
		case decision:
			return NewPreconditionFailed("COST_ALREADY_DECIDED", "cost item is already %s", decision)
		}

		now := l.clock.Now()
		decidedBy := actor.ID
		detail.Status = decision
		detail.DecidedByUserID = &decidedBy
		detail.DecidedAt = &now
		if err := tx.Model(detail).Updates(map[string]interface{}{
			"status":             detail.Status,
			"decided_by_user_id": decidedBy,
			"decided_at":         now,
		}).Error; err != nil {
			return fmt.Errorf("failed to update cost item: %w", err)
		}

		_, err = recomputeFinalAmount(tx, order)
		return err
	})
	if err != nil {
		return nil, nil, err
	}

	zap.L().Info("cost item decided",
		zap.Uint("order_id", order.ID),
		zap.Uint("detail_id", detail.ID),
		zap.String("decision", string(decision)),
		zap.String("final_amount", order.FinalAmount.Decimal.String()),
	)
	l.notifier.Notify(ctx, Notification{
		Type:        NotifyCostDecided,
		RecipientID: detail.AddedByUserID,
		OrderID:     order.ID,
		Payload: map[string]interface{}{
			"detail_id":    detail.ID,
			"status":       detail.Status,
			"final_amount": order.FinalAmount.Decimal.String(),
		},
		CreatedAt: l.clock.Now(),
	})
	return detail, order, nil
}

// DeleteCost removes a line the actor proposed, provided it was never approved
// and the order is still open.
func (l *CostLedger) DeleteCost(ctx context.Context, actor Actor, orderID, detailID uint) error {
	return l.tx.WithinTx(ctx, func(tx *gorm.DB) error {
		order, err := lockOrder(tx, orderID)
		if err != nil {
			return err
		}
		detail, err := loadDetail(tx, orderID, detailID)
		if err != nil {
			return err
		}
		if detail.AddedByUserID != actor.ID {
			return NewForbidden("FORBIDDEN", "only the proposer can delete a cost item")
		}
		if detail.Status == models.DetailApproved {
			return NewPreconditionFailed("COST_ALREADY_APPROVED", "approved cost items cannot be deleted")
		}
		if !order.Status.IsActive() {
			return NewPreconditionFailed("ORDER_NOT_ACTIVE", "cost items cannot be deleted while order is %s", order.Status)
		}
		if err := tx.Delete(detail).Error; err != nil {
			return fmt.Errorf("failed to delete cost item: %w", err)
		}
		return nil
	})
}

// ListCosts returns every live cost line on the order.
func (l *CostLedger) ListCosts(ctx context.Context, actor Actor, orderID uint) ([]models.OrderDetail, error) {
	order, err := loadOrder(l.db.WithContext(ctx), orderID)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin() && !order.IsParticipant(actor.ID) {
		return nil, NewNotFound("ORDER_NOT_FOUND", "Order not found")
	}

	details := []models.OrderDetail{}
	if err := l.db.WithContext(ctx).Where("order_id = ?", orderID).Order("id ASC").Find(&details).Error; err != nil {
		return nil, fmt.Errorf("failed to list cost items: %w", err)
	}
	return details, nil
}

// ComputeFinalAmount is the pure recomputation: base plus every APPROVED line.
func ComputeFinalAmount(base decimal.Decimal, details []models.OrderDetail) decimal.Decimal {
	total := base
	for _, d := range details {
		if d.Status == models.DetailApproved {
			total = total.Add(d.LineTotal())
		}
	}
	return total
}

// recomputeFinalAmount re-reads approved lines through tx and persists the total.
// It must run inside the transaction that changed a line's status.
func recomputeFinalAmount(tx *gorm.DB, order *models.Order) (decimal.Decimal, error) {
	var approved []models.OrderDetail
	if err := tx.Where("order_id = ? AND status = ?", order.ID, models.DetailApproved).Find(&approved).Error; err != nil {
		return decimal.Zero, fmt.Errorf("failed to load approved cost items: %w", err)
	}

	total := ComputeFinalAmount(order.BasePrice, approved)
	if err := tx.Model(&models.Order{}).Where("id = ?", order.ID).
		Update("final_amount", decimal.NewNullDecimal(total)).Error; err != nil {
		return decimal.Zero, fmt.Errorf("failed to update final amount: %w", err)
	}
	order.FinalAmount = decimal.NewNullDecimal(total)
	return total, nil
}

func loadDetail(db *gorm.DB, orderID, detailID uint) (*models.OrderDetail, error) {
	var detail models.OrderDetail
	err := db.Where("id = ? AND order_id = ?", detailID, orderID).First(&detail).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, NewNotFound("COST_ITEM_NOT_FOUND", "Cost item not found on this order")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load cost item: %w", err)
	}
	return &detail, nil
}
