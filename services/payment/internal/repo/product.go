package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/Skotchmaster/shop_payments/services/payment/internal/domain"
	"github.com/Skotchmaster/shop_payments/services/payment/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ProductPrice reads the stored price of a product as text.
func (r *GormRepo) ProductPrice(ctx context.Context, id uuid.UUID) (string, error) {
	var product models.Product
	err := r.DB.WithContext(ctx).Select("id", "price").Where("id = ?", id).Take(&product).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", fmt.Errorf("%w: %s", domain.ErrProductNotFound, id)
	}
	if err != nil {
		return "", fmt.Errorf("lookup product %s: %w", id, err)
	}
	return product.Price, nil
}
