package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/kendall-kelly/servicehub-api/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// DefaultReviewEditWindow is how long an author may edit a review after posting it.
const DefaultReviewEditWindow = 7 * 24 * time.Hour

// ReviewService handles reviews and their moderation.
type ReviewService struct {
	db         *gorm.DB
	tx         TransactionManager
	clock      Clock
	notifier   Notifier
	editWindow time.Duration
}

// NewReviewService creates a review service on db. A non-positive editWindow
// falls back to DefaultReviewEditWindow.
func NewReviewService(db *gorm.DB, editWindow time.Duration) *ReviewService {
	if editWindow <= 0 {
		editWindow = DefaultReviewEditWindow
	}
	return &ReviewService{
		db:         db,
		tx:         NewTransactionManager(db),
		clock:      GetClock(),
		notifier:   GetNotifier(),
		editWindow: editWindow,
	}
}

// ReviewInput is the body of a new review.
type ReviewInput struct {
	Rating  int
	Comment string
}

// EditReviewInput carries the fields an author wants to change.
type EditReviewInput struct {
	Rating  *int
	Comment *string
}

// SubmitReview creates the single review allowed for a COMPLETED order.
func (s *ReviewService) SubmitReview(ctx context.Context, actor Actor, orderID uint, in ReviewInput) (*models.Review, error) {
	if err := validateRating(in.Rating); err != nil {
		return nil, err
	}

	order, err := loadOrder(s.db.WithContext(ctx), orderID)
	if err != nil {
		return nil, err
	}
	if order.CustomerID != actor.ID {
		return nil, NewForbidden("FORBIDDEN", "only the order's customer can review it")
	}
	if order.Status != models.OrderStatusCompleted {
		return nil, NewPreconditionFailed("ORDER_NOT_COMPLETED", "only completed orders can be reviewed")
	}

	var existing int64
	if err := s.db.WithContext(ctx).Model(&models.Review{}).Where("order_id = ?", orderID).Count(&existing).Error; err != nil {
		return nil, fmt.Errorf("failed to check existing review: %w", err)
	}
	if existing > 0 {
		return nil, NewConflict("REVIEW_EXISTS", "this order has already been reviewed")
	}

	review := models.Review{
		OrderID:    order.ID,
		CustomerID: order.CustomerID,
		ProviderID: order.ProviderID,
		Rating:     in.Rating,
		Comment:    strings.TrimSpace(in.Comment),
		IsShow:     true,
		CreatedAt:  s.clock.Now(),
	}
	if err := s.db.WithContext(ctx).Create(&review).Error; err != nil {
		if IsUniqueViolation(err) {
			return nil, NewConflict("REVIEW_EXISTS", "this order has already been reviewed")
		}
		return nil, fmt.Errorf("failed to create review: %w", err)
	}
	return &review, nil
}

// EditReview lets the author change rating or comment within the edit window.
func (s *ReviewService) EditReview(ctx context.Context, actor Actor, reviewID uint, in EditReviewInput) (*models.Review, error) {
	review, err := loadReview(s.db.WithContext(ctx), reviewID)
	if err != nil {
		return nil, err
	}
	if review.CustomerID != actor.ID {
		return nil, NewForbidden("FORBIDDEN", "only the author can edit this review")
	}
	if !s.clock.Now().Before(review.CreatedAt.Add(s.editWindow)) {
		return nil, NewPreconditionFailed("EDIT_WINDOW_CLOSED", "reviews can only be edited within %s of posting", s.editWindow)
	}

	updates := map[string]interface{}{}
	if in.Rating != nil {
		if err := validateRating(*in.Rating); err != nil {
			return nil, err
		}
		updates["rating"] = *in.Rating
		review.Rating = *in.Rating
	}
	if in.Comment != nil {
		comment := strings.TrimSpace(*in.Comment)
		updates["comment"] = comment
		review.Comment = comment
	}
	if len(updates) == 0 {
		return review, nil
	}
	if err := s.db.WithContext(ctx).Model(review).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("failed to update review: %w", err)
	}
	return review, nil
}

// GetReview returns a review. Hidden reviews are visible only to their author
// and to admins; everyone else gets NotFound.
func (s *ReviewService) GetReview(ctx context.Context, actor Actor, reviewID uint) (*models.Review, error) {
	review, err := loadReview(s.db.WithContext(ctx), reviewID)
	if err != nil {
		return nil, err
	}
	if !review.IsShow && !actor.IsAdmin() && review.CustomerID != actor.ID {
		return nil, NewNotFound("REVIEW_NOT_FOUND", "Review not found")
	}
	return review, nil
}

// ListProviderReviews returns the visible reviews about a provider, newest first.
func (s *ReviewService) ListProviderReviews(ctx context.Context, providerID uint) ([]models.Review, error) {
	reviews := []models.Review{}
	err := s.db.WithContext(ctx).
		Where("provider_id = ? AND is_show = ?", providerID, true).
		Order("created_at DESC").
		Find(&reviews).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list reviews: %w", err)
	}
	return reviews, nil
}

// ReportReview files a report and hides the review in the same transaction. The
// review stays hidden until an admin rules on the report.
func (s *ReviewService) ReportReview(ctx context.Context, actor Actor, reviewID uint, reason string) (*models.ReviewReport, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, NewInvalidInput("REASON_REQUIRED", "a reason is required to report a review")
	}

	var (
		report *models.ReviewReport
		review *models.Review
	)
	err := s.tx.WithinTx(ctx, func(tx *gorm.DB) error {
		var err error
		review, err = loadReview(tx, reviewID)
		if err != nil {
			return err
		}
		if review.CustomerID == actor.ID {
			return NewForbidden("FORBIDDEN", "you cannot report your own review")
		}

		var prior int64
		if err := tx.Model(&models.ReviewReport{}).
			Where("review_id = ? AND reported_by_user_id = ?", reviewID, actor.ID).
			Count(&prior).Error; err != nil {
			return fmt.Errorf("failed to check existing reports: %w", err)
		}
		if prior > 0 {
			return NewConflict("ALREADY_REPORTED", "you have already reported this review")
		}

		report = &models.ReviewReport{
			ReviewID:         reviewID,
			ReportedByUserID: actor.ID,
			Reason:           reason,
			Status:           models.ReportPendingReview,
		}
		if err := tx.Create(report).Error; err != nil {
			if IsUniqueViolation(err) {
				return NewConflict("ALREADY_REPORTED", "you have already reported this review")
			}
			return fmt.Errorf("failed to create report: %w", err)
		}

		review.IsShow = false
		review.IsReported = true
		return updateReviewVisibility(tx, review, map[string]interface{}{
			"is_show":     false,
			"is_reported": true,
		})
	})
	if err != nil {
		return nil, err
	}

	zap.L().Info("review reported",
		zap.Uint("review_id", reviewID),
		zap.Uint("report_id", report.ID),
		zap.Uint("reporter_id", actor.ID),
	)
	s.notifier.Notify(ctx, Notification{
		Type:        NotifyReviewReported,
		RecipientID: review.CustomerID,
		OrderID:     review.OrderID,
		Payload:     map[string]interface{}{"review_id": review.ID},
		CreatedAt:   s.clock.Now(),
	})
	return report, nil
}

func loadReview(db *gorm.DB, reviewID uint) (*models.Review, error) {
	var review models.Review
	if err := db.First(&review, reviewID).Error; err != nil {
		return nil, notFoundOr(err, "REVIEW_NOT_FOUND", "Review")
	}
	return &review, nil
}

func updateReviewVisibility(tx *gorm.DB, review *models.Review, updates map[string]interface{}) error {
	res := tx.Model(&models.Review{}).Where("id = ?", review.ID).Updates(updates)
	if res.Error != nil {
		return fmt.Errorf("failed to update review visibility: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return NewNotFound("REVIEW_NOT_FOUND", "Review not found")
	}
	return nil
}

func validateRating(rating int) error {
	if rating < 1 || rating > 5 {
		return NewInvalidInput("INVALID_RATING", "rating must be an integer between 1 and 5")
	}
	return nil
}
