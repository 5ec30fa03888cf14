package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/kendall-kelly/servicehub-api/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ModerationAction is an admin ruling on a review report.
type ModerationAction string

const (
	// ModerationApprove upholds the report: the review stays hidden for good.
	ModerationApprove ModerationAction = "approve"
	// ModerationDismiss rejects the report and restores the review.
	ModerationDismiss ModerationAction = "dismiss"
)

// ResolveReport rules on a pending report. Dismissing restores the review only
// when no other report on it is pending and none has been upheld.
func (s *ReviewService) ResolveReport(ctx context.Context, admin Actor, reportID uint, action ModerationAction, notes string) (*models.ReviewReport, *models.Review, error) {
	if !admin.IsAdmin() {
		return nil, nil, NewForbidden("FORBIDDEN", "only admins can resolve reports")
	}
	if action != ModerationApprove && action != ModerationDismiss {
		return nil, nil, NewInvalidInput("INVALID_ACTION", "action must be %q or %q", ModerationApprove, ModerationDismiss)
	}
	notes = strings.TrimSpace(notes)

	var (
		report *models.ReviewReport
		review *models.Review
	)
	err := s.tx.WithinTx(ctx, func(tx *gorm.DB) error {
		var r models.ReviewReport
		if err := tx.First(&r, reportID).Error; err != nil {
			return notFoundOr(err, "REPORT_NOT_FOUND", "Report")
		}
		report = &r
		if report.Status != models.ReportPendingReview {
			return NewPreconditionFailed("REPORT_ALREADY_RESOLVED", "report is already %s", report.Status)
		}

		var err error
		review, err = loadReview(tx, report.ReviewID)
		if err != nil {
			return err
		}
		before := map[string]interface{}{"report_status": report.Status, "is_show": review.IsShow}

		now := s.clock.Now()
		adminID := admin.ID
		report.ResolvedByAdminID = &adminID
		report.ResolvedAt = &now
		report.AdminNotes = notes

		restore := false
		if action == ModerationApprove {
			report.Status = models.ReportResolvedReviewRemoved
		} else {
			report.Status = models.ReportResolvedReviewKept
			var blocking int64
			if err := tx.Model(&models.ReviewReport{}).
				Where("review_id = ? AND id <> ? AND status IN ?", review.ID, report.ID,
					[]models.ReportStatus{models.ReportPendingReview, models.ReportResolvedReviewRemoved}).
				Count(&blocking).Error; err != nil {
				return fmt.Errorf("failed to check other reports: %w", err)
			}
			restore = blocking == 0
		}

		if err := tx.Model(report).Updates(map[string]interface{}{
			"status":               report.Status,
			"resolved_by_admin_id": adminID,
			"resolved_at":          now,
			"admin_notes":          notes,
		}).Error; err != nil {
			return fmt.Errorf("failed to update report: %w", err)
		}

		review.ModeratedAt = &now
		review.ModeratedBy = &adminID
		review.AdminNotes = notes
		updates := map[string]interface{}{
			"moderated_at": now,
			"moderated_by": adminID,
			"admin_notes":  notes,
		}
		if restore {
			review.IsShow = true
			review.IsReported = false
		} else {
			review.IsShow = false
			review.IsReported = true
		}
		updates["is_show"] = review.IsShow
		updates["is_reported"] = review.IsReported
		if err := updateReviewVisibility(tx, review, updates); err != nil {
			return err
		}

		return writeAudit(tx, now, admin.ID, models.AuditActionResolveReport,
			models.AuditResourceReviewReport, report.ID, before,
			map[string]interface{}{"report_status": report.Status, "is_show": review.IsShow, "action": action})
	})
	if err != nil {
		return nil, nil, err
	}

	zap.L().Info("review report resolved",
		zap.Uint("admin_id", admin.ID),
		zap.Uint("report_id", report.ID),
		zap.Uint("review_id", review.ID),
		zap.String("action", string(action)),
		zap.Bool("is_show", review.IsShow),
	)
	return report, review, nil
}

// SetVisibility lets an admin show or hide a review directly, with or without a
// pending report.
func (s *ReviewService) SetVisibility(ctx context.Context, admin Actor, reviewID uint, isShow bool, notes string) (*models.Review, error) {
	if !admin.IsAdmin() {
		return nil, NewForbidden("FORBIDDEN", "only admins can change review visibility")
	}
	notes = strings.TrimSpace(notes)

	var review *models.Review
	err := s.tx.WithinTx(ctx, func(tx *gorm.DB) error {
		var err error
		review, err = loadReview(tx, reviewID)
		if err != nil {
			return err
		}
		wasShown := review.IsShow

		now := s.clock.Now()
		adminID := admin.ID
		review.IsShow = isShow
		review.ModeratedAt = &now
		review.ModeratedBy = &adminID
		review.AdminNotes = notes
		if err := updateReviewVisibility(tx, review, map[string]interface{}{
			"is_show":      isShow,
			"moderated_at": now,
			"moderated_by": adminID,
			"admin_notes":  notes,
		}); err != nil {
			return err
		}
		return writeAudit(tx, now, admin.ID, models.AuditActionSetReviewVisibility,
			models.AuditResourceReview, review.ID,
			map[string]interface{}{"is_show": wasShown},
			map[string]interface{}{"is_show": isShow, "notes": notes})
	})
	if err != nil {
		return nil, err
	}

	zap.L().Info("review visibility set",
		zap.Uint("admin_id", admin.ID),
		zap.Uint("review_id", review.ID),
		zap.Bool("is_show", isShow),
	)
	return review, nil
}

// ListReports returns reports for the admin queue, oldest first, optionally
// filtered by status.
func (s *ReviewService) ListReports(ctx context.Context, status models.ReportStatus) ([]models.ReviewReport, error) {
	query := s.db.WithContext(ctx).Model(&models.ReviewReport{})
	if status != "" {
		if !status.Valid() {
			return nil, NewInvalidInput("INVALID_STATUS", "unknown report status %q", status)
		}
		query = query.Where("status = ?", status)
	}

	reports := []models.ReviewReport{}
	if err := query.Order("created_at ASC").Order("id ASC").Find(&reports).Error; err != nil {
		return nil, fmt.Errorf("failed to list reports: %w", err)
	}
	return reports, nil
}
