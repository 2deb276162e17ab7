package pricing

import (
	"context"
	"fmt"
	"strings"

	"github.com/Skotchmaster/shop_payments/pkg/logging"
	"github.com/Skotchmaster/shop_payments/services/payment/internal/domain"
	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

// ProductLookup returns the stored price of a product as written in the
// catalog. Missing products are reported with domain.ErrProductNotFound.
type ProductLookup interface {
	ProductPrice(ctx context.Context, id uuid.UUID) (string, error)
}

type Validator struct {
	products ProductLookup
}

func NewValidator(products ProductLookup) *Validator {
	return &Validator{products: products}
}

// Validate reprices lines from the catalog and returns them in cart order
// together with the total.
func (v *Validator) Validate(ctx context.Context, lines []domain.CartLine) ([]domain.ValidatedLine, decimal.Decimal, error) {
	if len(lines) == 0 {
		return nil, decimal.Zero, domain.ErrEmptyCart
	}

	l := logging.FromContext(ctx)
	out := make([]domain.ValidatedLine, 0, len(lines))

	for i, line := range lines {
		if line.ProductID == uuid.Nil {
			return nil, decimal.Zero, fmt.Errorf("%w: line %d has no product id", domain.ErrProductNotFound, i)
		}
		if line.Quantity < 1 {
			return nil, decimal.Zero, fmt.Errorf("%w: product %s quantity %d", domain.ErrInvalidQuantity, line.ProductID, line.Quantity)
		}

		raw, err := v.products.ProductPrice(ctx, line.ProductID)
		if err != nil {
			return nil, decimal.Zero, err
		}

		price, err := ParsePrice(raw)
		if err != nil {
			return nil, decimal.Zero, fmt.Errorf("%w: product %s", err, line.ProductID)
		}

		if line.ClientPrice != nil && !line.ClientPrice.Equal(price) {
			l.Warn("client_price_mismatch",
				"product_id", line.ProductID,
				"client_price", line.ClientPrice.String(),
				"price", price.String(),
			)
		}

		out = append(out, domain.ValidatedLine{
			ProductID: line.ProductID,
			Quantity:  line.Quantity,
			UnitPrice: price,
		})
	}

	return out, Total(out), nil
}

func Total(lines []domain.ValidatedLine) decimal.Decimal {
	return lo.Reduce(lines, func(acc decimal.Decimal, l domain.ValidatedLine, _ int) decimal.Decimal {
		return acc.Add(l.Total())
	}, decimal.Zero)
}

// ParsePrice accepts plain non-negative decimal literals only.
func ParsePrice(raw string) (decimal.Decimal, error) {
	s := strings.TrimSpace(raw)
	if s == "" || strings.ContainsAny(s, "eE") {
		return decimal.Zero, fmt.Errorf("%w: %q", domain.ErrInvalidPrice, raw)
	}
	price, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q", domain.ErrInvalidPrice, raw)
	}
	if price.IsNegative() {
		return decimal.Zero, fmt.Errorf("%w: negative %q", domain.ErrInvalidPrice, raw)
	}
	return price, nil
}
