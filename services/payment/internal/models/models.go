package models

import (
	"time"

	"github.com/Skotchmaster/shop_payments/services/payment/internal/domain"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const (
	OrderStatusProcessing = "processing"

	PaymentStatusCompleted = "completed"
)

const (
	ReasonVerificationIndeterminate = "verification_indeterminate"
	ReasonOrderPersistFailed        = "order_persist_failed"
)

// Product is the catalog row as this service reads it. Price is kept as
// text so a malformed stored value is reported instead of coerced.
type Product struct {
	ID    uuid.UUID `gorm:"type:uuid;primaryKey"     json:"id"`
	Name  string    `gorm:"not null"                 json:"name"`
	Price string    `gorm:"type:numeric(20,2);not null" json:"price"`
}

func (Product) TableName() string { return "products" }

type Order struct {
	ID              uuid.UUID       `gorm:"type:uuid;primaryKey"                            json:"id"`
	UserID          uuid.UUID       `gorm:"type:uuid;index;not null"                        json:"user_id"`
	StoreID         string          `gorm:"not null;default:''"                             json:"store_id"`
	Status          string          `gorm:"not null"                                        json:"status"`
	PaymentStatus   string          `gorm:"not null"                                        json:"payment_status"`
	TotalAmount     decimal.Decimal `gorm:"type:numeric(20,2);not null"                     json:"total_amount"`
	GatewayAmount   int64           `gorm:"not null"                                        json:"gateway_amount"`
	GatewayCurrency string          `gorm:"size:3;not null"                                 json:"gateway_currency"`
	ShippingAddress domain.Address  `gorm:"embedded;embeddedPrefix:shipping_"               json:"shipping_address"`
	PaymentToken    string          `gorm:"uniqueIndex;not null"                            json:"payment_token"`
	PaymentRefID    string          `gorm:"column:payment_reference_id;not null;default:''" json:"payment_reference_id"`
	CardMask        string          `gorm:"not null;default:''"                             json:"card_mask"`
	VerifiedAt      time.Time       `gorm:"not null"                                        json:"verified_at"`
	CreatedAt       time.Time       `gorm:"not null"                                        json:"created_at"`
	Items           []OrderItem     `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"  json:"items"`
}

func (o *Order) BeforeCreate(*gorm.DB) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	return nil
}

type OrderItem struct {
	ID        uint            `gorm:"primaryKey"                          json:"-"`
	OrderID   uuid.UUID       `gorm:"type:uuid;index;not null"            json:"-"`
	Position  int             `gorm:"not null"                            json:"position"`
	ProductID uuid.UUID       `gorm:"type:uuid;not null"                  json:"product_id"`
	Quantity  int             `gorm:"not null;check:quantity > 0"         json:"quantity"`
	UnitPrice decimal.Decimal `gorm:"type:numeric(20,2);not null"         json:"unit_price"`
	LineTotal decimal.Decimal `gorm:"type:numeric(20,2);not null"         json:"line_total"`
}

// Reconciliation records a payment that may have been charged without a
// matching order. Operators close it by hand.
type Reconciliation struct {
	ID            uint      `gorm:"primaryKey"                 json:"id"`
	PaymentToken  string    `gorm:"index;not null"             json:"payment_token"`
	UserID        uuid.UUID `gorm:"type:uuid;not null"         json:"user_id"`
	GatewayAmount int64     `gorm:"not null"                   json:"gateway_amount"`
	Reason        string    `gorm:"not null"                   json:"reason"`
	ReferenceID   string    `gorm:"not null;default:''"        json:"reference_id"`
	Detail        string    `gorm:"not null;default:''"        json:"detail"`
	Intent        string    `gorm:"type:text;not null"         json:"intent"`
	Resolved      bool      `gorm:"not null;default:false"     json:"resolved"`
	CreatedAt     time.Time `gorm:"not null"                   json:"created_at"`
}

func (Reconciliation) TableName() string { return "payment_reconciliations" }
