package controllers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kendall-kelly/servicehub-api/config"
	"github.com/kendall-kelly/servicehub-api/models"
	"github.com/kendall-kelly/servicehub-api/services"
	"go.uber.org/zap"
)

// CreateOrderRequest represents the request body for booking a provider service
type CreateOrderRequest struct {
	ProviderServiceID   uint   `json:"provider_service_id" binding:"required"`
	ScheduledDate       string `json:"scheduled_date" binding:"required"`
	JobAddress          string `json:"job_address" binding:"required"`
	JobDistrict         string `json:"job_district"`
	JobSubDistrict      string `json:"job_sub_district"`
	JobWard             string `json:"job_ward"`
	JobDescriptionNotes string `json:"job_description_notes"`
	PaymentMethod       string `json:"payment_method" binding:"required,oneof=cash bank_transfer e_wallet"`
}

// UpdateOrderStatusRequest is a provider's status decision
type UpdateOrderStatusRequest struct {
	Status string `json:"status" binding:"required"`
	Reason string `json:"reason"`
}

// CancelOrderRequest carries the customer's optional reason
type CancelOrderRequest struct {
	Reason string `json:"reason"`
}

// AttendanceRequest is a provider's on-site progress report
type AttendanceRequest struct {
	Status      string     `json:"status" binding:"required,oneof=ON_THE_WAY ARRIVED WORKING COMPLETED"`
	ArrivalTime *time.Time `json:"arrival_time"`
	Notes       string     `json:"notes"`
}

// VerifyOrderRequest is the customer's verdict on the work
type VerifyOrderRequest struct {
	Decision string `json:"decision" binding:"required,oneof=verified rejected"`
	Notes    string `json:"notes"`
}

// OverrideStatusRequest is an admin's forced status change
type OverrideStatusRequest struct {
	Status string `json:"status" binding:"required"`
	Note   string `json:"note"`
}

func orderService() *services.OrderService {
	return services.NewOrderService(config.GetDB())
}

func jobPhotoService() *services.JobPhotoService {
	return services.NewJobPhotoService(services.GetObjectStore(), orderService())
}

// withPhotoURL fills the presigned job photo URL. A storage failure only costs
// the caller the URL.
func withPhotoURL(c *gin.Context, order *models.Order) *models.Order {
	if err := jobPhotoService().ResolveURL(c.Request.Context(), order); err != nil {
		zap.L().Warn("failed to resolve job photo url", zap.Uint("order_id", order.ID), zap.Error(err))
	}
	return order
}

// CreateOrder handles POST /api/v1/orders - books a provider service (customers only)
func CreateOrder(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	var req CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidationError(c, err)
		return
	}
	scheduled, err := time.Parse(time.RFC3339, req.ScheduledDate)
	if err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_DATE", "scheduled_date must be an RFC3339 timestamp")
		return
	}

	order, err := orderService().CreateOrder(c.Request.Context(), actor, services.CreateOrderInput{
		ProviderServiceID:   req.ProviderServiceID,
		ScheduledDate:       scheduled,
		JobAddress:          req.JobAddress,
		JobDistrict:         req.JobDistrict,
		JobSubDistrict:      req.JobSubDistrict,
		JobWard:             req.JobWard,
		JobDescriptionNotes: req.JobDescriptionNotes,
		PaymentMethod:       models.PaymentMethod(req.PaymentMethod),
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondData(c, http.StatusCreated, order)
}

// ListOrders handles GET /api/v1/orders?status=... - the caller's orders, all orders for admins
func ListOrders(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	orders, err := orderService().ListOrders(c.Request.Context(), actor, models.OrderStatus(c.Query("status")))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	for i := range orders {
		withPhotoURL(c, &orders[i])
	}
	respondData(c, http.StatusOK, orders)
}

// GetOrder handles GET /api/v1/orders/:id
func GetOrder(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	orderID, ok := idParam(c, "id")
	if !ok {
		return
	}

	order, err := orderService().GetOrder(c.Request.Context(), actor, orderID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondData(c, http.StatusOK, withPhotoURL(c, order))
}

// UpdateOrderStatus handles PATCH /api/v1/orders/:id/status (providers only)
func UpdateOrderStatus(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	orderID, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req UpdateOrderStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidationError(c, err)
		return
	}

	order, err := orderService().UpdateStatusByProvider(c.Request.Context(), actor, orderID,
		models.OrderStatus(req.Status), req.Reason)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondData(c, http.StatusOK, order)
}

// CancelOrder handles POST /api/v1/orders/:id/cancel (customers only)
func CancelOrder(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	orderID, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req CancelOrderRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}
	}

	order, err := orderService().CancelOrder(c.Request.Context(), actor, orderID, req.Reason)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondData(c, http.StatusOK, order)
}

// UpdateAttendance handles PATCH /api/v1/orders/:id/attendance (providers only)
func UpdateAttendance(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	orderID, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req AttendanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidationError(c, err)
		return
	}

	order, err := orderService().UpdateAttendance(c.Request.Context(), actor, orderID, services.AttendanceInput{
		Status:      models.AttendanceStatus(req.Status),
		ArrivalTime: req.ArrivalTime,
		Notes:       req.Notes,
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondData(c, http.StatusOK, order)
}

// VerifyOrder handles POST /api/v1/orders/:id/verification (customers only)
func VerifyOrder(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	orderID, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req VerifyOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidationError(c, err)
		return
	}

	order, err := orderService().Verify(c.Request.Context(), actor, orderID, services.VerifyInput{
		Decision: models.VerificationStatus(req.Decision),
		Notes:    req.Notes,
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondData(c, http.StatusOK, order)
}

// UploadJobPhoto handles POST /api/v1/orders/:id/photo - multipart field "image" (customers only)
func UploadJobPhoto(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	orderID, ok := idParam(c, "id")
	if !ok {
		return
	}
	if services.GetObjectStore() == nil {
		respondError(c, http.StatusServiceUnavailable, "STORAGE_UNAVAILABLE", "Photo storage is not configured")
		return
	}

	fileHeader, err := c.FormFile("image")
	if err != nil {
		respondError(c, http.StatusBadRequest, "MISSING_FILE", "An image file is required in the 'image' field")
		return
	}

	order, err := jobPhotoService().UploadJobPhoto(c.Request.Context(), actor, orderID, fileHeader)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondData(c, http.StatusOK, order)
}

// OverrideOrderStatus handles PUT /api/v1/admin/orders/:id/status (admins only)
func OverrideOrderStatus(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	orderID, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req OverrideStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidationError(c, err)
		return
	}

	order, err := orderService().OverrideStatus(c.Request.Context(), actor, orderID,
		models.OrderStatus(req.Status), req.Note)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondData(c, http.StatusOK, order)
}
