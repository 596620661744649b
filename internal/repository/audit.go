package repository

import (
	"context"

	"gorm.io/gorm"

	"keyshop/internal/model"
)

type AuditRepository interface {
	Record(ctx context.Context, entry *model.AuditLog) error
	ListByOrder(ctx context.Context, orderNo string) ([]*model.AuditLog, error)
}

type auditRepoImpl struct {
	db *gorm.DB
}

func NewAuditRepository(db *gorm.DB) AuditRepository {
	return &auditRepoImpl{db: db}
}

func (r *auditRepoImpl) Record(ctx context.Context, entry *model.AuditLog) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *auditRepoImpl) ListByOrder(ctx context.Context, orderNo string) ([]*model.AuditLog, error) {
	var entries []*model.AuditLog
	err := r.db.WithContext(ctx).
		Where("order_no = ?", orderNo).
		Order("created_at").
		Find(&entries).Error

	if err != nil {
		return nil, err
	}

	return entries, nil
}
