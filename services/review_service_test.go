package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kendall-kelly/servicehub-api/models"
	"github.com/kendall-kelly/servicehub-api/tests/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func submitReview(t *testing.T, env *testEnv) *models.Review {
	t.Helper()
	order := env.order(t, models.OrderStatusCompleted, "100.00")
	review, err := NewReviewService(env.db, 0).SubmitReview(context.Background(), env.asCustomer(), order.ID, ReviewInput{
		Rating:  4,
		Comment: "quick and tidy",
	})
	require.NoError(t, err)
	return review
}

func loadReviewRow(t *testing.T, env *testEnv, id uint) models.Review {
	t.Helper()
	var review models.Review
	require.NoError(t, env.db.First(&review, id).Error)
	return review
}

func TestSubmitReview(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	t.Run("order must be completed", func(t *testing.T) {
		order := env.order(t, models.OrderStatusAccepted, "100.00")
		_, err := NewReviewService(env.db, 0).SubmitReview(ctx, env.asCustomer(), order.ID, ReviewInput{Rating: 5})
		requireKind(t, err, KindPreconditionFailed, "ORDER_NOT_COMPLETED")
	})

	t.Run("one review per order", func(t *testing.T) {
		order := env.order(t, models.OrderStatusCompleted, "100.00")
		svc := NewReviewService(env.db, 0)
		review, err := svc.SubmitReview(ctx, env.asCustomer(), order.ID, ReviewInput{Rating: 5, Comment: " great "})
		require.NoError(t, err)
		assert.True(t, review.IsShow)
		assert.False(t, review.IsReported)
		assert.Equal(t, "great", review.Comment)
		assert.Equal(t, env.provider.ID, review.ProviderID)

		_, err = svc.SubmitReview(ctx, env.asCustomer(), order.ID, ReviewInput{Rating: 1})
		requireKind(t, err, KindConflict, "REVIEW_EXISTS")
	})

	t.Run("rating bounds", func(t *testing.T) {
		order := env.order(t, models.OrderStatusCompleted, "100.00")
		for _, rating := range []int{0, 6, -1} {
			_, err := NewReviewService(env.db, 0).SubmitReview(ctx, env.asCustomer(), order.ID, ReviewInput{Rating: rating})
			requireKind(t, err, KindInvalidInput, "INVALID_RATING")
		}
	})

	t.Run("only the customer", func(t *testing.T) {
		order := env.order(t, models.OrderStatusCompleted, "100.00")
		_, err := NewReviewService(env.db, 0).SubmitReview(ctx, env.asProvider(), order.ID, ReviewInput{Rating: 5})
		requireKind(t, err, KindForbidden, "FORBIDDEN")
	})
}

func TestEditReviewWindow(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	review := submitReview(t, env)

	rating := 2
	comment := "second visit was worse"
	svc := NewReviewService(env.db, 24*time.Hour)

	_, err := svc.EditReview(ctx, env.asStranger(), review.ID, EditReviewInput{Rating: &rating})
	requireKind(t, err, KindForbidden, "FORBIDDEN")

	env.clock.Advance(23 * time.Hour)
	edited, err := svc.EditReview(ctx, env.asCustomer(), review.ID, EditReviewInput{Rating: &rating, Comment: &comment})
	require.NoError(t, err)
	assert.Equal(t, 2, edited.Rating)
	assert.Equal(t, comment, loadReviewRow(t, env, review.ID).Comment)

	env.clock.Advance(time.Hour)
	_, err = svc.EditReview(ctx, env.asCustomer(), review.ID, EditReviewInput{Rating: &rating})
	requireKind(t, err, KindPreconditionFailed, "EDIT_WINDOW_CLOSED")
}

func TestReviewVisibility(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	review := submitReview(t, env)
	svc := NewReviewService(env.db, 0)

	listed, err := svc.ListProviderReviews(ctx, env.provider.ID)
	require.NoError(t, err)
	assert.Len(t, listed, 1)

	_, err = svc.ReportReview(ctx, env.asProvider(), review.ID, "contains my phone number")
	require.NoError(t, err)

	listed, err = svc.ListProviderReviews(ctx, env.provider.ID)
	require.NoError(t, err)
	assert.Empty(t, listed)

	_, err = svc.GetReview(ctx, env.asStranger(), review.ID)
	requireKind(t, err, KindNotFound, "REVIEW_NOT_FOUND")

	own, err := svc.GetReview(ctx, env.asCustomer(), review.ID)
	require.NoError(t, err)
	assert.False(t, own.IsShow)

	_, err = svc.GetReview(ctx, env.asAdmin(), review.ID)
	require.NoError(t, err)
}

func TestReportReview(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	review := submitReview(t, env)
	svc := NewReviewService(env.db, 0)

	_, err := svc.ReportReview(ctx, env.asProvider(), review.ID, "   ")
	requireKind(t, err, KindInvalidInput, "REASON_REQUIRED")

	_, err = svc.ReportReview(ctx, env.asCustomer(), review.ID, "regret")
	requireKind(t, err, KindForbidden, "FORBIDDEN")

	report, err := svc.ReportReview(ctx, env.asProvider(), review.ID, "abusive")
	require.NoError(t, err)
	assert.Equal(t, models.ReportPendingReview, report.Status)

	row := loadReviewRow(t, env, review.ID)
	assert.False(t, row.IsShow)
	assert.True(t, row.IsReported)

	_, err = svc.ReportReview(ctx, env.asProvider(), review.ID, "still abusive")
	requireKind(t, err, KindConflict, "ALREADY_REPORTED")

	// a ruling does not reopen reporting for the same user
	_, _, err = svc.ResolveReport(ctx, env.asAdmin(), report.ID, ModerationDismiss, "")
	require.NoError(t, err)
	_, err = svc.ReportReview(ctx, env.asProvider(), review.ID, "again")
	requireKind(t, err, KindConflict, "ALREADY_REPORTED")

	sent := env.notifier.OfType(NotifyReviewReported)
	require.Len(t, sent, 1)
	assert.Equal(t, env.customer.ID, sent[0].RecipientID)
}

func TestReportReview_RollsBackWhenTakedownFails(t *testing.T) {
	env := newTestEnv(t)
	review := submitReview(t, env)

	err := env.db.Callback().Update().Before("gorm:update").Register("test:fail_review_update", func(tx *gorm.DB) {
		if tx.Statement.Table == "reviews" {
			_ = tx.AddError(errors.New("reviews table is read-only"))
		}
	})
	require.NoError(t, err)

	_, err = NewReviewService(env.db, 0).ReportReview(context.Background(), env.asProvider(), review.ID, "abusive")
	require.Error(t, err)
	assert.Equal(t, KindInternal, KindOf(err))

	var reports int64
	require.NoError(t, env.db.Model(&models.ReviewReport{}).Where("review_id = ?", review.ID).Count(&reports).Error)
	assert.Zero(t, reports)

	row := loadReviewRow(t, env, review.ID)
	assert.True(t, row.IsShow)
	assert.False(t, row.IsReported)
	assert.Empty(t, env.notifier.OfType(NotifyReviewReported))
}

func TestResolveReport(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	t.Run("dismiss restores the review", func(t *testing.T) {
		review := submitReview(t, env)
		svc := NewReviewService(env.db, 0)
		report, err := svc.ReportReview(ctx, env.asProvider(), review.ID, "unfair")
		require.NoError(t, err)

		resolved, updated, err := svc.ResolveReport(ctx, env.asAdmin(), report.ID, ModerationDismiss, "fair criticism")
		require.NoError(t, err)
		assert.Equal(t, models.ReportResolvedReviewKept, resolved.Status)
		require.NotNil(t, resolved.ResolvedByAdminID)
		assert.Equal(t, env.admin.ID, *resolved.ResolvedByAdminID)
		assert.True(t, updated.IsShow)
		assert.False(t, updated.IsReported)

		row := loadReviewRow(t, env, review.ID)
		assert.True(t, row.IsShow)
		assert.Equal(t, "fair criticism", row.AdminNotes)
		require.NotNil(t, row.ModeratedBy)

		_, _, err = svc.ResolveReport(ctx, env.asAdmin(), report.ID, ModerationApprove, "")
		requireKind(t, err, KindPreconditionFailed, "REPORT_ALREADY_RESOLVED")
	})

	t.Run("approve keeps the review hidden", func(t *testing.T) {
		review := submitReview(t, env)
		svc := NewReviewService(env.db, 0)
		report, err := svc.ReportReview(ctx, env.asProvider(), review.ID, "slur")
		require.NoError(t, err)

		resolved, updated, err := svc.ResolveReport(ctx, env.asAdmin(), report.ID, ModerationApprove, "removed")
		require.NoError(t, err)
		assert.Equal(t, models.ReportResolvedReviewRemoved, resolved.Status)
		assert.False(t, updated.IsShow)
		assert.False(t, loadReviewRow(t, env, review.ID).IsShow)

		var audits int64
		require.NoError(t, env.db.Model(&models.AuditLog{}).
			Where("action = ? AND resource_id = ?", models.AuditActionResolveReport, report.ID).
			Count(&audits).Error)
		assert.Equal(t, int64(1), audits)
	})

	t.Run("dismiss waits for other pending reports", func(t *testing.T) {
		review := submitReview(t, env)
		svc := NewReviewService(env.db, 0)
		second := testutil.CreateUser(t, env.db, "auth0|second-reporter", models.RoleCustomer)

		first, err := svc.ReportReview(ctx, env.asProvider(), review.ID, "spam")
		require.NoError(t, err)
		other, err := svc.ReportReview(ctx, ActorFromUser(second), review.ID, "spam too")
		require.NoError(t, err)

		_, updated, err := svc.ResolveReport(ctx, env.asAdmin(), first.ID, ModerationDismiss, "")
		require.NoError(t, err)
		assert.False(t, updated.IsShow)

		_, updated, err = svc.ResolveReport(ctx, env.asAdmin(), other.ID, ModerationDismiss, "")
		require.NoError(t, err)
		assert.True(t, updated.IsShow)
	})

	t.Run("dismiss after an upheld report keeps it hidden", func(t *testing.T) {
		review := submitReview(t, env)
		svc := NewReviewService(env.db, 0)
		third := testutil.CreateUser(t, env.db, "auth0|third-reporter", models.RoleCustomer)

		upheld, err := svc.ReportReview(ctx, env.asProvider(), review.ID, "doxxing")
		require.NoError(t, err)
		later, err := svc.ReportReview(ctx, ActorFromUser(third), review.ID, "doxxing")
		require.NoError(t, err)

		_, _, err = svc.ResolveReport(ctx, env.asAdmin(), upheld.ID, ModerationApprove, "")
		require.NoError(t, err)
		_, updated, err := svc.ResolveReport(ctx, env.asAdmin(), later.ID, ModerationDismiss, "")
		require.NoError(t, err)
		assert.False(t, updated.IsShow)
	})

	t.Run("admins only", func(t *testing.T) {
		_, _, err := NewReviewService(env.db, 0).ResolveReport(ctx, env.asCustomer(), 1, ModerationDismiss, "")
		requireKind(t, err, KindForbidden, "FORBIDDEN")
	})

	t.Run("unknown action", func(t *testing.T) {
		_, _, err := NewReviewService(env.db, 0).ResolveReport(ctx, env.asAdmin(), 1, "ban", "")
		requireKind(t, err, KindInvalidInput, "INVALID_ACTION")
	})

	t.Run("unknown report", func(t *testing.T) {
		_, _, err := NewReviewService(env.db, 0).ResolveReport(ctx, env.asAdmin(), 9999, ModerationDismiss, "")
		requireKind(t, err, KindNotFound, "REPORT_NOT_FOUND")
	})
}

func TestSetVisibilityAndListReports(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	review := submitReview(t, env)
	svc := NewReviewService(env.db, 0)

	_, err := svc.SetVisibility(ctx, env.asProvider(), review.ID, false, "")
	requireKind(t, err, KindForbidden, "FORBIDDEN")

	hidden, err := svc.SetVisibility(ctx, env.asAdmin(), review.ID, false, "legal request")
	require.NoError(t, err)
	assert.False(t, hidden.IsShow)
	assert.False(t, loadReviewRow(t, env, review.ID).IsShow)

	var audit models.AuditLog
	require.NoError(t, env.db.Where("action = ?", models.AuditActionSetReviewVisibility).First(&audit).Error)
	assert.Contains(t, audit.AfterJSON, "legal request")

	_, err = svc.ReportReview(ctx, env.asProvider(), review.ID, "spam")
	require.NoError(t, err)

	pending, err := svc.ListReports(ctx, models.ReportPendingReview)
	require.NoError(t, err)
	assert.Len(t, pending, 1)

	kept, err := svc.ListReports(ctx, models.ReportResolvedReviewKept)
	require.NoError(t, err)
	assert.Empty(t, kept)

	_, err = svc.ListReports(ctx, "WHATEVER")
	requireKind(t, err, KindInvalidInput, "INVALID_STATUS")
}
