package repo

import (
	"context"

	"github.com/Skotchmaster/shop_payments/services/payment/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

func itemsByPosition(db *gorm.DB) *gorm.DB {
	return db.Order("position ASC")
}

// CreateOrderIfAbsent inserts order unless an order with the same payment
// token exists. In that case the stored order is returned with created=false.
func (r *GormRepo) CreateOrderIfAbsent(ctx context.Context, order *models.Order) (*models.Order, bool, error) {
	var (
		result  *models.Order
		created bool
	)

	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		items := order.Items
		order.Items = nil

		res := tx.Omit(clause.Associations).
			Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "payment_token"}},
				DoNothing: true,
			}).
			Create(order)
		if res.Error != nil {
			order.Items = items
			return res.Error
		}

		if res.RowsAffected == 0 {
			order.Items = items
			var existing models.Order
			if err := tx.Preload("Items", itemsByPosition).
				Where("payment_token = ?", order.PaymentToken).
				Take(&existing).Error; err != nil {
				return err
			}
			result = &existing
			return nil
		}

		for i := range items {
			items[i].OrderID = order.ID
		}
		if len(items) > 0 {
			if err := tx.Create(&items).Error; err != nil {
				return err
			}
		}
		order.Items = items
		result = order
		created = true
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return result, created, nil
}

func (r *GormRepo) GetOrder(ctx context.Context, userID, orderID uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.DB.WithContext(ctx).
		Preload("Items", itemsByPosition).
		Where("id = ? AND user_id = ?", orderID, userID).
		Take(&order).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &order, nil
}

func (r *GormRepo) ListOrders(ctx context.Context, userID uuid.UUID, limit, offset int) (int64, []models.Order, error) {
	owned := func() *gorm.DB {
		return r.DB.WithContext(ctx).Model(&models.Order{}).Where("user_id = ?", userID)
	}

	var total int64
	if err := owned().Count(&total).Error; err != nil {
		return 0, nil, err
	}

	var orders []models.Order
	if err := owned().Preload("Items", itemsByPosition).
		Order("created_at DESC").Limit(limit).Offset(offset).
		Find(&orders).Error; err != nil {
		return 0, nil, err
	}
	return total, orders, nil
}
