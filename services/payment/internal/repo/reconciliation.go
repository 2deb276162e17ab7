package repo

import (
	"context"

	"github.com/Skotchmaster/shop_payments/services/payment/internal/models"
	"gorm.io/gorm"
)

func (r *GormRepo) CreateReconciliation(ctx context.Context, rec *models.Reconciliation) error {
	return r.DB.WithContext(ctx).Create(rec).Error
}

func (r *GormRepo) ListOpenReconciliations(ctx context.Context, limit, offset int) (int64, []models.Reconciliation, error) {
	open := func() *gorm.DB {
		return r.DB.WithContext(ctx).Model(&models.Reconciliation{}).Where("resolved = ?", false)
	}

	var total int64
	if err := open().Count(&total).Error; err != nil {
		return 0, nil, err
	}

	var recs []models.Reconciliation
	if err := open().Order("created_at ASC").Limit(limit).Offset(offset).Find(&recs).Error; err != nil {
		return 0, nil, err
	}
	return total, recs, nil
}
