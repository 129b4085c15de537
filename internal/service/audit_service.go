package service

import (
	"context"
	"encoding/json"
	"fmt"

	"bastportal/internal/model"
	"bastportal/internal/repository"
	"bastportal/internal/workflow"

	"gorm.io/datatypes"
)

type AuditFilter struct {
	Action     string
	EntityID   string
	ActorEmail string
	Page       int
	Limit      int
}

type AuditService interface {
	GetAuditLogs(ctx context.Context, filter AuditFilter) ([]model.AuditLog, int64, error)
}

type auditService struct {
	auditRepo repository.AuditRepository
}

// NewAuditService creates a new AuditService instance
func NewAuditService(auditRepo repository.AuditRepository) AuditService {
	return &auditService{auditRepo: auditRepo}
}

// GetAuditLogs returns one page of audit entries, newest first.
func (s *auditService) GetAuditLogs(ctx context.Context, filter AuditFilter) ([]model.AuditLog, int64, error) {
	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.Limit <= 0 {
		filter.Limit = 20
	}
	logs, total, err := s.auditRepo.List(ctx, repository.AuditFilter{
		Action:     filter.Action,
		EntityID:   filter.EntityID,
		ActorEmail: filter.ActorEmail,
		Page:       filter.Page,
		Limit:      filter.Limit,
	})
	if err != nil {
		return nil, 0, fmt.Errorf("failed to fetch audit logs: %w", err)
	}
	return logs, total, nil
}

// writeAudit records a non-status action. Call it with the txCtx of the
// change it describes.
func writeAudit(ctx context.Context, repo repository.AuditRepository, actor workflow.Actor, action, entityID, entityName string, details map[string]interface{}) error {
	raw, err := json.Marshal(details)
	if err != nil {
		return fmt.Errorf("failed to encode audit details: %w", err)
	}
	entry := model.AuditLog{
		ActorEmail: actor.Email,
		ActorRole:  string(actor.Role),
		Action:     action,
		EntityID:   entityID,
		EntityName: entityName,
		Details:    datatypes.JSON(raw),
	}
	if err := repo.Log(ctx, &entry); err != nil {
		return fmt.Errorf("failed to write audit log: %w", err)
	}
	return nil
}
