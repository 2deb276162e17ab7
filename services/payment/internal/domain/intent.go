package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CartLine is what the client sent. ClientPrice is never used for totals.
type CartLine struct {
	ProductID   uuid.UUID
	Quantity    int
	ClientPrice *decimal.Decimal
}

type ValidatedLine struct {
	ProductID uuid.UUID       `json:"product_id"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

func (l ValidatedLine) Total() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

type Address struct {
	Street     string `json:"street"`
	City       string `json:"city"`
	Region     string `json:"region"`
	PostalCode string `json:"postal_code"`
}

func (a Address) Normalize() Address {
	return Address{
		Street:     strings.TrimSpace(a.Street),
		City:       strings.TrimSpace(a.City),
		Region:     strings.TrimSpace(a.Region),
		PostalCode: strings.TrimSpace(a.PostalCode),
	}
}

func (a Address) Validate() error {
	fields := []struct{ name, value string }{
		{"street", a.Street},
		{"city", a.City},
		{"region", a.Region},
		{"postal_code", a.PostalCode},
	}
	for _, f := range fields {
		if f.value == "" {
			return fmt.Errorf("%w: %s required", ErrInvalidAddress, f.name)
		}
	}
	return nil
}

// PendingIntent is a priced cart waiting for the gateway callback.
// GatewayAmount is fixed at staging time and reused for verification.
type PendingIntent struct {
	Token         string          `json:"token"`
	UserID        uuid.UUID       `json:"user_id"`
	Lines         []ValidatedLine `json:"lines"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
	GatewayAmount int64           `json:"gateway_amount"`
	Address       Address         `json:"shipping_address"`
	CreatedAt     time.Time       `json:"created_at"`
	Deadline      time.Time       `json:"deadline"`
}

func (p PendingIntent) Expired(now time.Time) bool {
	return !now.Before(p.Deadline)
}
