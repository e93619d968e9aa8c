package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/examflow/examflow-api/internal/models"
)

// AuditLogFilter narrows audit log queries.
type AuditLogFilter struct {
	Page       int
	PageSize   int
	ActorID    *uint
	Action     string
	EntityType string
}

// AuditLogRepository persists the append-only audit trail.
type AuditLogRepository interface {
	Create(ctx context.Context, entry *models.AuditLog) error
	List(ctx context.Context, filter AuditLogFilter) ([]models.AuditLog, int64, error)
	ListRecent(ctx context.Context, limit int) ([]models.AuditLog, error)
}

type auditLogRepository struct {
	db *gorm.DB
}

// NewAuditLogRepository constructs the audit log repository.
func NewAuditLogRepository(db *gorm.DB) AuditLogRepository {
	return &auditLogRepository{db: db}
}

func (r *auditLogRepository) Create(ctx context.Context, entry *models.AuditLog) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *auditLogRepository) List(ctx context.Context, filter AuditLogFilter) ([]models.AuditLog, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.AuditLog{})

	if filter.ActorID != nil {
		query = query.Where("actor_id = ?", *filter.ActorID)
	}

	if filter.Action != "" {
		query = query.Where("action = ?", filter.Action)
	}

	if filter.EntityType != "" {
		query = query.Where("entity_type = ?", filter.EntityType)
	}

	countQuery := query.Session(&gorm.Session{})
	var total int64
	if err := countQuery.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if filter.PageSize > 0 {
		page := filter.Page
		if page <= 0 {
			page = 1
		}
		offset := (page - 1) * filter.PageSize
		query = query.Offset(offset).Limit(filter.PageSize)
	}

	var entries []models.AuditLog
	if err := query.Order("created_at DESC").Find(&entries).Error; err != nil {
		return nil, 0, err
	}

	return entries, total, nil
}

func (r *auditLogRepository) ListRecent(ctx context.Context, limit int) ([]models.AuditLog, error) {
	if limit <= 0 {
		limit = 20
	}

	var entries []models.AuditLog
	if err := r.db.WithContext(ctx).
		Order("created_at DESC").
		Limit(limit).
		Find(&entries).Error; err != nil {
		return nil, err
	}

	return entries, nil
}
