package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/kendall-kelly/servicehub-api/models"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// CatalogService manages the services providers offer for booking.
type CatalogService struct {
	db *gorm.DB
}

// NewCatalogService creates a catalog service on db
func NewCatalogService(db *gorm.DB) *CatalogService {
	return &CatalogService{db: db}
}

// ProviderServiceInput describes a service listing.
type ProviderServiceInput struct {
	Name        string
	Description string
	BasePrice   decimal.Decimal
}

// CreateProviderService lists a new active service for the calling provider.
func (c *CatalogService) CreateProviderService(ctx context.Context, actor Actor, in ProviderServiceInput) (*models.ProviderService, error) {
	if actor.Role != models.RoleProvider {
		return nil, NewForbidden("FORBIDDEN", "only providers can list services")
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, NewInvalidInput("VALIDATION_ERROR", "name is required")
	}
	if in.BasePrice.IsNegative() {
		return nil, NewInvalidInput("INVALID_PRICE", "base price cannot be negative")
	}

	service := models.ProviderService{
		ProviderID:  actor.ID,
		Name:        name,
		Description: strings.TrimSpace(in.Description),
		BasePrice:   in.BasePrice,
		IsActive:    true,
	}
	if err := c.db.WithContext(ctx).Create(&service).Error; err != nil {
		return nil, fmt.Errorf("failed to create provider service: %w", err)
	}
	return &service, nil
}

// SetServiceActive lets the owning provider pause or resume bookings.
func (c *CatalogService) SetServiceActive(ctx context.Context, actor Actor, serviceID uint, active bool) (*models.ProviderService, error) {
	var service models.ProviderService
	if err := c.db.WithContext(ctx).First(&service, serviceID).Error; err != nil {
		return nil, notFoundOr(err, "SERVICE_NOT_FOUND", "Provider service")
	}
	if service.ProviderID != actor.ID {
		return nil, NewForbidden("FORBIDDEN", "only the owning provider can change this service")
	}
	if err := c.db.WithContext(ctx).Model(&service).Update("is_active", active).Error; err != nil {
		return nil, fmt.Errorf("failed to update provider service: %w", err)
	}
	service.IsActive = active
	return &service, nil
}

// ListProviderServices returns a provider's services. Inactive ones are included
// only when the provider asks for their own catalogue.
func (c *CatalogService) ListProviderServices(ctx context.Context, actor Actor, providerID uint) ([]models.ProviderService, error) {
	query := c.db.WithContext(ctx).Where("provider_id = ?", providerID)
	if actor.ID != providerID {
		query = query.Where("is_active = ?", true)
	}

	services := []models.ProviderService{}
	if err := query.Order("id ASC").Find(&services).Error; err != nil {
		return nil, fmt.Errorf("failed to list provider services: %w", err)
	}
	return services, nil
}
