package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/kendall-kelly/servicehub-api/config"
	"github.com/kendall-kelly/servicehub-api/models"
	"github.com/kendall-kelly/servicehub-api/services"
	"github.com/shopspring/decimal"
)

// ProposeCostRequest is one extra cost line
type ProposeCostRequest struct {
	Description  string           `json:"description" binding:"required"`
	Quantity     int              `json:"quantity" binding:"required,gt=0"`
	PricePerUnit *decimal.Decimal `json:"price_per_unit" binding:"required"`
}

// DecideCostRequest is the customer's decision on a cost line
type DecideCostRequest struct {
	Decision string `json:"decision" binding:"required,oneof=APPROVED REJECTED"`
}

func costLedger() *services.CostLedger {
	return services.NewCostLedger(config.GetDB())
}

// ProposeCost handles POST /api/v1/orders/:id/costs (customer or provider of the order)
func ProposeCost(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	orderID, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req ProposeCostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidationError(c, err)
		return
	}

	detail, err := costLedger().ProposeCost(c.Request.Context(), actor, orderID, services.ProposeCostInput{
		Description:  req.Description,
		Quantity:     req.Quantity,
		PricePerUnit: *req.PricePerUnit,
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondData(c, http.StatusCreated, detail)
}

// ListCosts handles GET /api/v1/orders/:id/costs
func ListCosts(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	orderID, ok := idParam(c, "id")
	if !ok {
		return
	}

	details, err := costLedger().ListCosts(c.Request.Context(), actor, orderID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondData(c, http.StatusOK, details)
}

// DecideCost handles PATCH /api/v1/orders/:id/costs/:detailId (customers only).
// The response carries the updated line and the recomputed final amount.
func DecideCost(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	orderID, ok := idParam(c, "id")
	if !ok {
		return
	}
	detailID, ok := idParam(c, "detailId")
	if !ok {
		return
	}
	var req DecideCostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidationError(c, err)
		return
	}

	detail, order, err := costLedger().DecideCost(c.Request.Context(), actor, orderID, detailID,
		models.DetailStatus(req.Decision))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondData(c, http.StatusOK, gin.H{
		"detail":       detail,
		"final_amount": order.FinalAmount,
	})
}

// DeleteCost handles DELETE /api/v1/orders/:id/costs/:detailId (proposer only)
func DeleteCost(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	orderID, ok := idParam(c, "id")
	if !ok {
		return
	}
	detailID, ok := idParam(c, "detailId")
	if !ok {
		return
	}

	if err := costLedger().DeleteCost(c.Request.Context(), actor, orderID, detailID); err != nil {
		respondServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
