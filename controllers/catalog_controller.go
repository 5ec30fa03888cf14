package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/kendall-kelly/servicehub-api/config"
	"github.com/kendall-kelly/servicehub-api/services"
	"github.com/shopspring/decimal"
)

// CreateServiceRequest lists a new bookable service
type CreateServiceRequest struct {
	Name        string           `json:"name" binding:"required,max=200"`
	Description string           `json:"description"`
	BasePrice   *decimal.Decimal `json:"base_price" binding:"required"`
}

// SetServiceActiveRequest pauses or resumes bookings
type SetServiceActiveRequest struct {
	IsActive *bool `json:"is_active" binding:"required"`
}

func catalogService() *services.CatalogService {
	return services.NewCatalogService(config.GetDB())
}

// CreateProviderService handles POST /api/v1/services (providers only)
func CreateProviderService(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	var req CreateServiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidationError(c, err)
		return
	}

	service, err := catalogService().CreateProviderService(c.Request.Context(), actor, services.ProviderServiceInput{
		Name:        req.Name,
		Description: req.Description,
		BasePrice:   *req.BasePrice,
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondData(c, http.StatusCreated, service)
}

// SetProviderServiceActive handles PATCH /api/v1/services/:id (owning provider only)
func SetProviderServiceActive(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	serviceID, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req SetServiceActiveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidationError(c, err)
		return
	}

	service, err := catalogService().SetServiceActive(c.Request.Context(), actor, serviceID, *req.IsActive)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondData(c, http.StatusOK, service)
}

// ListProviderServices handles GET /api/v1/providers/:id/services
func ListProviderServices(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	providerID, ok := idParam(c, "id")
	if !ok {
		return
	}

	list, err := catalogService().ListProviderServices(c.Request.Context(), actor, providerID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondData(c, http.StatusOK, list)
}
