package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/kendall-kelly/servicehub-api/config"
	"github.com/kendall-kelly/servicehub-api/models"
	"github.com/kendall-kelly/servicehub-api/services"
)

// SubmitReviewRequest is a customer's review of a completed order
type SubmitReviewRequest struct {
	Rating  int    `json:"rating" binding:"required,min=1,max=5"`
	Comment string `json:"comment"`
}

// EditReviewRequest carries the fields an author wants to change
type EditReviewRequest struct {
	Rating  *int    `json:"rating" binding:"omitempty,min=1,max=5"`
	Comment *string `json:"comment"`
}

// ReportReviewRequest explains why a review should be taken down
type ReportReviewRequest struct {
	Reason string `json:"reason" binding:"required"`
}

// ResolveReportRequest is an admin ruling on a report
type ResolveReportRequest struct {
	Action string `json:"action" binding:"required,oneof=approve dismiss"`
	Notes  string `json:"notes"`
}

// SetVisibilityRequest shows or hides a review. IsShow is a pointer so an
// explicit false is distinguishable from a missing field.
type SetVisibilityRequest struct {
	IsShow *bool  `json:"is_show" binding:"required"`
	Notes  string `json:"notes"`
}

func reviewService() *services.ReviewService {
	return services.NewReviewService(config.GetDB(), reviewEditWindow())
}

// SubmitReview handles POST /api/v1/orders/:id/review (customers only)
func SubmitReview(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	orderID, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req SubmitReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidationError(c, err)
		return
	}

	review, err := reviewService().SubmitReview(c.Request.Context(), actor, orderID, services.ReviewInput{
		Rating:  req.Rating,
		Comment: req.Comment,
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondData(c, http.StatusCreated, review)
}

// GetReview handles GET /api/v1/reviews/:id
func GetReview(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	reviewID, ok := idParam(c, "id")
	if !ok {
		return
	}

	review, err := reviewService().GetReview(c.Request.Context(), actor, reviewID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondData(c, http.StatusOK, review)
}

// EditReview handles PATCH /api/v1/reviews/:id (author only, within the edit window)
func EditReview(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	reviewID, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req EditReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidationError(c, err)
		return
	}

	review, err := reviewService().EditReview(c.Request.Context(), actor, reviewID, services.EditReviewInput{
		Rating:  req.Rating,
		Comment: req.Comment,
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondData(c, http.StatusOK, review)
}

// ListProviderReviews handles GET /api/v1/providers/:id/reviews - visible reviews only
func ListProviderReviews(c *gin.Context) {
	providerID, ok := idParam(c, "id")
	if !ok {
		return
	}

	reviews, err := reviewService().ListProviderReviews(c.Request.Context(), providerID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondData(c, http.StatusOK, reviews)
}

// ReportReview handles POST /api/v1/reviews/:id/reports. The review is hidden
// until an admin rules on the report.
func ReportReview(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	reviewID, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req ReportReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidationError(c, err)
		return
	}

	report, err := reviewService().ReportReview(c.Request.Context(), actor, reviewID, req.Reason)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondData(c, http.StatusCreated, report)
}

// ListReports handles GET /api/v1/admin/reports?status=... (admins only)
func ListReports(c *gin.Context) {
	reports, err := reviewService().ListReports(c.Request.Context(), models.ReportStatus(c.Query("status")))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondData(c, http.StatusOK, reports)
}

// ResolveReport handles POST /api/v1/admin/reports/:id/resolve (admins only)
func ResolveReport(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	reportID, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req ResolveReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidationError(c, err)
		return
	}

	report, review, err := reviewService().ResolveReport(c.Request.Context(), actor, reportID,
		services.ModerationAction(req.Action), req.Notes)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondData(c, http.StatusOK, gin.H{
		"report": report,
		"review": review,
	})
}

// SetReviewVisibility handles PATCH /api/v1/admin/reviews/:id/visibility (admins only)
func SetReviewVisibility(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	reviewID, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req SetVisibilityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidationError(c, err)
		return
	}

	review, err := reviewService().SetVisibility(c.Request.Context(), actor, reviewID, *req.IsShow, req.Notes)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondData(c, http.StatusOK, review)
}
