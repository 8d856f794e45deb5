package services

import (
	"context"

	"github.com/baharkarakas/coinmatch/internal/models"
	repo "github.com/baharkarakas/coinmatch/internal/repository"
)

func audit(ctx context.Context, logs repo.AuditLogs, entityType, entityID, action string, details map[string]any) error {
	return logs.Create(ctx, models.AuditLog{
		EntityType: entityType,
		EntityID:   &entityID,
		Action:     action,
		Details:    details,
	})
}
