package service

import (
	"context"
	"fmt"
	"strings"

	"bastportal/internal/apperror"
	"bastportal/internal/model"
	"bastportal/internal/repository"
	"bastportal/internal/validation"
	"bastportal/internal/workflow"

	"github.com/google/uuid"
)

type TrackingService interface {
	// GetTrackingLog returns the status history of a BAST or an invoice,
	// oldest first. Vendors only see their own documents.
	GetTrackingLog(ctx context.Context, parentType, parentID string, actor workflow.Actor) ([]model.TrackingLog, error)
}

type trackingService struct {
	basts    repository.BastRepository
	invoices repository.InvoiceRepository
	tracking repository.TrackingRepository
}

func NewTrackingService(basts repository.BastRepository, invoices repository.InvoiceRepository, tracking repository.TrackingRepository) TrackingService {
	return &trackingService{basts: basts, invoices: invoices, tracking: tracking}
}

func (s *trackingService) GetTrackingLog(ctx context.Context, parentType, parentID string, actor workflow.Actor) ([]model.TrackingLog, error) {
	switch strings.ToUpper(strings.TrimSpace(parentType)) {
	case model.ParentBast:
		b, err := s.basts.FindByID(ctx, parentID)
		if err != nil {
			return nil, err
		}
		if err := checkVisible(actor, b.VendorID, "bast "+parentID); err != nil {
			return nil, err
		}
		return s.tracking.ListByParent(ctx, model.ParentBast, b.ID)
	case model.ParentInvoice:
		id, err := uuid.Parse(parentID)
		if err != nil {
			return nil, fmt.Errorf("invoice %s: %w", parentID, apperror.ErrNotFound)
		}
		inv, err := s.invoices.FindByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if err := checkVisible(actor, inv.VendorID, "invoice "+parentID); err != nil {
			return nil, err
		}
		return s.tracking.ListByParent(ctx, model.ParentInvoice, inv.ID.String())
	default:
		return nil, validation.Field("type", validation.InvalidValue)
	}
}
