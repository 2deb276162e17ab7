package transport

import (
	"time"

	"github.com/Skotchmaster/shop_payments/services/payment/internal/domain"
	"github.com/Skotchmaster/shop_payments/services/payment/internal/models"
	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

type CartItem struct {
	ProductID uuid.UUID        `json:"product_id"`
	Quantity  int              `json:"quantity"`
	Price     *decimal.Decimal `json:"price,omitempty"`
}

type PaymentRequest struct {
	CartItems       []CartItem     `json:"cart_items"`
	ShippingAddress domain.Address `json:"shipping_address"`
}

func (r PaymentRequest) Lines() []domain.CartLine {
	return lo.Map(r.CartItems, func(it CartItem, _ int) domain.CartLine {
		return domain.CartLine{ProductID: it.ProductID, Quantity: it.Quantity, ClientPrice: it.Price}
	})
}

type PaymentResponse struct {
	Success    bool            `json:"success"`
	Authority  string          `json:"authority"`
	PaymentURL string          `json:"payment_url"`
	Amount     decimal.Decimal `json:"amount"`
}

// VerifyRequest is the client's relay of the gateway callback. An empty
// status means the client only forwarded the authority after a redirect
// that reported success.
type VerifyRequest struct {
	Authority string `json:"authority"`
	Status    string `json:"status"`
}

type OrderLine struct {
	ProductID uuid.UUID       `json:"product_id"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
}

type OrderSummary struct {
	ID          uuid.UUID       `json:"id"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	Products    []OrderLine     `json:"products"`
}

type VerifyResponse struct {
	Success         bool         `json:"success"`
	Verified        bool         `json:"verified"`
	AlreadyVerified bool         `json:"already_verified"`
	RefID           string       `json:"ref_id"`
	CardPan         string       `json:"card_pan"`
	Order           OrderSummary `json:"order"`
}

func NewOrderSummary(o *models.Order) OrderSummary {
	return OrderSummary{
		ID:          o.ID,
		TotalAmount: o.TotalAmount,
		Products: lo.Map(o.Items, func(it models.OrderItem, _ int) OrderLine {
			return OrderLine{ProductID: it.ProductID, Quantity: it.Quantity, Price: it.UnitPrice}
		}),
	}
}

type ErrorResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type Meta struct {
	Page       int   `json:"page"`
	Size       int   `json:"size"`
	Total      int64 `json:"total"`
	TotalPages int64 `json:"total_pages"`
	HasPrev    bool  `json:"has_prev"`
	HasNext    bool  `json:"has_next"`
}

func NewMeta(page, offset, limit int, total int64) Meta {
	return Meta{
		Page:       page,
		Size:       limit,
		Total:      total,
		TotalPages: (total + int64(limit) - 1) / int64(limit),
		HasPrev:    page > 1,
		HasNext:    int64(offset+limit) < total,
	}
}

type Page[T any] struct {
	Data []T  `json:"data"`
	Meta Meta `json:"meta"`
}

type OrderView struct {
	ID              uuid.UUID          `json:"id"`
	StoreID         string             `json:"store_id"`
	Status          string             `json:"status"`
	PaymentStatus   string             `json:"payment_status"`
	TotalAmount     decimal.Decimal    `json:"total_amount"`
	GatewayAmount   int64              `json:"gateway_amount"`
	GatewayCurrency string             `json:"gateway_currency"`
	ShippingAddress domain.Address     `json:"shipping_address"`
	RefID           string             `json:"ref_id"`
	CardPan         string             `json:"card_pan"`
	VerifiedAt      time.Time          `json:"verified_at"`
	Items           []models.OrderItem `json:"items"`
}

func NewOrderView(o *models.Order) OrderView {
	return OrderView{
		ID:              o.ID,
		StoreID:         o.StoreID,
		Status:          o.Status,
		PaymentStatus:   o.PaymentStatus,
		TotalAmount:     o.TotalAmount,
		GatewayAmount:   o.GatewayAmount,
		GatewayCurrency: o.GatewayCurrency,
		ShippingAddress: o.ShippingAddress,
		RefID:           o.PaymentRefID,
		CardPan:         o.CardMask,
		VerifiedAt:      o.VerifiedAt,
		Items:           o.Items,
	}
}
