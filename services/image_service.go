package services

import (
	"context"
	"errors"
	"fmt"
	"mime/multipart"

	"github.com/google/uuid"
	"github.com/kendall-kelly/servicehub-api/models"
	"github.com/kendall-kelly/servicehub-api/utils"
	"go.uber.org/zap"
)

// JobPhotoService stores the customer's photo of the job site and hands out
// presigned URLs for it.
type JobPhotoService struct {
	store  ObjectStore
	orders *OrderService
}

// NewJobPhotoService creates a job photo service backed by store
func NewJobPhotoService(store ObjectStore, orders *OrderService) *JobPhotoService {
	return &JobPhotoService{store: store, orders: orders}
}

// UploadJobPhoto validates and stores the photo, then points the order at it.
// A photo it replaces is removed from storage.
func (s *JobPhotoService) UploadJobPhoto(ctx context.Context, actor Actor, orderID uint, fileHeader *multipart.FileHeader) (*models.Order, error) {
	if s.store == nil {
		return nil, fmt.Errorf("job photo storage is not configured")
	}
	if err := utils.ValidateImageFile(fileHeader); err != nil {
		var fileErr *utils.FileUploadError
		if errors.As(err, &fileErr) {
			return nil, NewInvalidInput(fileErr.Code, "%s", fileErr.Message)
		}
		return nil, err
	}

	// Check ownership before writing anything to storage.
	current, err := s.orders.GetOrder(ctx, actor, orderID)
	if err != nil {
		return nil, err
	}
	if current.CustomerID != actor.ID {
		return nil, NewForbidden("FORBIDDEN", "only the customer can attach a job photo")
	}

	contentType, _ := utils.ImageContentType(fileHeader.Filename)
	key := utils.JobPhotoKey(orderID, uuid.NewString(), fileHeader.Filename)

	file, err := fileHeader.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	if err := s.store.PutObject(ctx, key, contentType, file); err != nil {
		return nil, fmt.Errorf("failed to upload job photo: %w", err)
	}

	order, err := s.orders.AttachJobPhoto(ctx, actor, orderID, key)
	if err != nil {
		if delErr := s.store.DeleteObject(ctx, key); delErr != nil {
			zap.L().Warn("failed to remove orphaned job photo", zap.String("key", key), zap.Error(delErr))
		}
		return nil, err
	}

	if current.JobPhotoKey != nil && *current.JobPhotoKey != key {
		if err := s.store.DeleteObject(ctx, *current.JobPhotoKey); err != nil {
			zap.L().Warn("failed to remove replaced job photo", zap.String("key", *current.JobPhotoKey), zap.Error(err))
		}
	}

	if err := s.ResolveURL(ctx, order); err != nil {
		return nil, err
	}
	return order, nil
}

// ResolveURL fills order.JobPhotoURL from its stored key, if any.
func (s *JobPhotoService) ResolveURL(ctx context.Context, order *models.Order) error {
	if s.store == nil || order.JobPhotoKey == nil || *order.JobPhotoKey == "" {
		return nil
	}
	url, err := s.store.PresignGet(ctx, *order.JobPhotoKey)
	if err != nil {
		return fmt.Errorf("failed to generate job photo URL: %w", err)
	}
	order.JobPhotoURL = &url
	return nil
}
