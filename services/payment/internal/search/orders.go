package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/Skotchmaster/shop_payments/services/payment/internal/models"
	"github.com/elastic/go-elasticsearch/v9"
	"github.com/google/uuid"
)

const DefaultIndex = "orders"

// OrderDoc is what gets indexed for support lookups.
type OrderDoc struct {
	ID           uuid.UUID `json:"id"`
	UserID       uuid.UUID `json:"user_id"`
	StoreID      string    `json:"store_id"`
	Status       string    `json:"status"`
	TotalAmount  string    `json:"total_amount"`
	PaymentToken string    `json:"payment_token"`
	PaymentRefID string    `json:"payment_reference_id"`
	CardMask     string    `json:"card_mask"`
	City         string    `json:"city"`
	PostalCode   string    `json:"postal_code"`
	VerifiedAt   time.Time `json:"verified_at"`
}

func NewOrderDoc(o *models.Order) OrderDoc {
	return OrderDoc{
		ID:           o.ID,
		UserID:       o.UserID,
		StoreID:      o.StoreID,
		Status:       o.Status,
		TotalAmount:  o.TotalAmount.String(),
		PaymentToken: o.PaymentToken,
		PaymentRefID: o.PaymentRefID,
		CardMask:     o.CardMask,
		City:         o.ShippingAddress.City,
		PostalCode:   o.ShippingAddress.PostalCode,
		VerifiedAt:   o.VerifiedAt,
	}
}

type OrderIndex struct {
	ES    *elasticsearch.Client
	Index string
}

func NewOrderIndex(es *elasticsearch.Client, index string) *OrderIndex {
	if index == "" {
		index = DefaultIndex
	}
	return &OrderIndex{ES: es, Index: index}
}

func (s *OrderIndex) IndexOrder(ctx context.Context, o *models.Order) error {
	body, err := json.Marshal(NewOrderDoc(o))
	if err != nil {
		return fmt.Errorf("encode order doc: %w", err)
	}

	res, err := s.ES.Index(
		s.Index,
		bytes.NewReader(body),
		s.ES.Index.WithContext(ctx),
		s.ES.Index.WithDocumentID(o.ID.String()),
	)
	if err != nil {
		return fmt.Errorf("index order: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		msg, _ := io.ReadAll(res.Body)
		return fmt.Errorf("index order: %s: %s", res.Status(), msg)
	}
	return nil
}

// Search matches q against payment token, reference id, card mask and
// postal code.
func (s *OrderIndex) Search(ctx context.Context, q string, from, size int) (int64, []OrderDoc, error) {
	body := map[string]any{
		"query": map[string]any{
			"multi_match": map[string]any{
				"query":  q,
				"fields": []string{"payment_token^3", "payment_reference_id^3", "card_mask", "postal_code", "city"},
			},
		},
		"from": from,
		"size": size,
		"sort": []any{map[string]any{"verified_at": map[string]any{"order": "desc"}}},
	}

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		return 0, nil, fmt.Errorf("encode search: %w", err)
	}

	res, err := s.ES.Search(
		s.ES.Search.WithContext(ctx),
		s.ES.Search.WithIndex(s.Index),
		s.ES.Search.WithBody(&buf),
	)
	if err != nil {
		return 0, nil, fmt.Errorf("search orders: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		msg, _ := io.ReadAll(res.Body)
		return 0, nil, fmt.Errorf("search orders: %s: %s", res.Status(), msg)
	}

	var r struct {
		Hits struct {
			Total struct {
				Value int64 `json:"value"`
			} `json:"total"`
			Hits []struct {
				Source OrderDoc `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&r); err != nil {
		return 0, nil, fmt.Errorf("decode search: %w", err)
	}

	docs := make([]OrderDoc, len(r.Hits.Hits))
	for i, hit := range r.Hits.Hits {
		docs[i] = hit.Source
	}
	return r.Hits.Total.Value, docs, nil
}
