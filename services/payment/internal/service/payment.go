package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Skotchmaster/shop_payments/pkg/logging"
	"github.com/Skotchmaster/shop_payments/services/payment/internal/domain"
	"github.com/Skotchmaster/shop_payments/services/payment/internal/gateway"
	"github.com/Skotchmaster/shop_payments/services/payment/internal/intent"
	"github.com/Skotchmaster/shop_payments/services/payment/internal/models"
	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

const (
	EventIntentStaged              = "payment_intent_staged"
	EventOrderFinalized            = "order_finalized"
	EventVerificationIndeterminate = "payment_verification_indeterminate"
)

var ErrInternal = errors.New("internal error")

type Pricer interface {
	Validate(ctx context.Context, lines []domain.CartLine) ([]domain.ValidatedLine, decimal.Decimal, error)
}

type Gateway interface {
	RequestPayment(ctx context.Context, req gateway.PaymentRequest) (gateway.PaymentSession, error)
	VerifyPayment(ctx context.Context, amount int64, token string) (gateway.Verification, error)
}

type IntentStore interface {
	Put(ctx context.Context, p domain.PendingIntent) error
	TakeIfPresent(ctx context.Context, token string) (domain.PendingIntent, error)
}

type OrderStore interface {
	CreateOrderIfAbsent(ctx context.Context, order *models.Order) (*models.Order, bool, error)
	GetOrder(ctx context.Context, userID, orderID uuid.UUID) (*models.Order, error)
	ListOrders(ctx context.Context, userID uuid.UUID, limit, offset int) (int64, []models.Order, error)
	CreateReconciliation(ctx context.Context, rec *models.Reconciliation) error
	ListOpenReconciliations(ctx context.Context, limit, offset int) (int64, []models.Reconciliation, error)
}

type EventPublisher interface {
	PublishEvent(ctx context.Context, eventType, key string, event any) error
}

type OrderIndexer interface {
	IndexOrder(ctx context.Context, o *models.Order) error
}

type Config struct {
	CallbackURL    string
	IntentTTL      time.Duration
	StoreID        string
	// GatewayTimeout bounds each detached step that follows a consumed intent.
	GatewayTimeout time.Duration
}

type Deps struct {
	Pricer  Pricer
	Gateway Gateway
	Intents IntentStore
	Orders  OrderStore
	Events  EventPublisher // optional
	Index   OrderIndexer   // optional
	Now     func() time.Time
}

// PaymentService stages payment intents and turns verified ones into orders.
type PaymentService struct {
	cfg     Config
	pricer  Pricer
	gateway Gateway
	intents IntentStore
	orders  OrderStore
	events  EventPublisher
	index   OrderIndexer
	now     func() time.Time
}

func NewPaymentService(cfg Config, d Deps) *PaymentService {
	if cfg.IntentTTL <= 0 {
		cfg.IntentTTL = 15 * time.Minute
	}
	if cfg.GatewayTimeout <= 0 {
		cfg.GatewayTimeout = 10 * time.Second
	}
	now := d.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &PaymentService{
		cfg:     cfg,
		pricer:  d.Pricer,
		gateway: d.Gateway,
		intents: d.Intents,
		orders:  d.Orders,
		events:  d.Events,
		index:   d.Index,
		now:     now,
	}
}

type SubmitRequest struct {
	UserID  uuid.UUID
	Lines   []domain.CartLine
	Address domain.Address
}

type SubmitResult struct {
	Token         string
	RedirectURL   string
	Amount        decimal.Decimal
	GatewayAmount int64
}

// Submit prices the cart, opens a payment at the gateway and stages the
// intent under the token the gateway returned.
func (s *PaymentService) Submit(ctx context.Context, req SubmitRequest) (*SubmitResult, error) {
	l := logging.FromContext(ctx).With("op", "payment.submit", "user_id", req.UserID)

	addr := req.Address.Normalize()
	if err := addr.Validate(); err != nil {
		return nil, err
	}

	lines, total, err := s.pricer.Validate(ctx, req.Lines)
	if err != nil {
		return nil, err
	}

	amount := gateway.ToMinorUnits(total)

	session, err := s.gateway.RequestPayment(ctx, gateway.PaymentRequest{
		Amount:      amount,
		CallbackURL: s.cfg.CallbackURL,
		Description: fmt.Sprintf("Purchase of %d products", len(lines)),
		Metadata: map[string]string{
			"user_id":    req.UserID.String(),
			"order_hash": cartHash(req.UserID, lines, total),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrGateway, err)
	}

	now := s.now()
	pending := domain.PendingIntent{
		Token:         session.Token,
		UserID:        req.UserID,
		Lines:         lines,
		TotalAmount:   total,
		GatewayAmount: amount,
		Address:       addr,
		CreatedAt:     now,
		Deadline:      now.Add(s.cfg.IntentTTL),
	}
	// the gateway session exists now, so staging must not depend on the caller
	if err := s.intents.Put(context.WithoutCancel(ctx), pending); err != nil {
		l.Error("stage_intent_error", "token", session.Token, "error", err)
		return nil, fmt.Errorf("%w: stage intent: %w", ErrInternal, err)
	}

	l.Info("intent_staged", "token", session.Token, "amount", total.String(), "gateway_amount", amount, "deadline", pending.Deadline)
	s.publish(ctx, EventIntentStaged, session.Token, map[string]any{
		"type":           EventIntentStaged,
		"token":          session.Token,
		"user_id":        req.UserID,
		"total_amount":   total.String(),
		"gateway_amount": amount,
		"deadline":       pending.Deadline,
	})

	return &SubmitResult{
		Token:         session.Token,
		RedirectURL:   session.RedirectURL,
		Amount:        total,
		GatewayAmount: amount,
	}, nil
}

type VerifyRequest struct {
	Token  string
	Status string
}

type VerifyResult struct {
	Order           *models.Order
	Outcome         gateway.Outcome
	AlreadyVerified bool
}

// Verify consumes the staged intent for token, confirms the payment with the
// gateway and persists the order. A consumed intent is never put back.
func (s *PaymentService) Verify(ctx context.Context, req VerifyRequest) (*VerifyResult, error) {
	token := strings.TrimSpace(req.Token)
	l := logging.FromContext(ctx).With("op", "payment.verify", "token", token)

	if token == "" {
		return nil, fmt.Errorf("%w: missing token", domain.ErrIntentExpiredOrConsumed)
	}

	if !strings.EqualFold(strings.TrimSpace(req.Status), gateway.CallbackStatusOK) {
		if _, err := s.intents.TakeIfPresent(ctx, token); err != nil && !errors.Is(err, intent.ErrNotFound) {
			l.Warn("discard_intent_error", "error", err)
		}
		l.Info("payment_not_completed", "status", req.Status)
		return nil, domain.ErrPaymentNotCompleted
	}

	pending, err := s.intents.TakeIfPresent(ctx, token)
	if errors.Is(err, intent.ErrNotFound) {
		return nil, domain.ErrIntentExpiredOrConsumed
	}
	if err != nil {
		l.Error("take_intent_error", "error", err)
		return nil, fmt.Errorf("%w: take intent: %w", ErrInternal, err)
	}
	l = l.With("user_id", pending.UserID, "gateway_amount", pending.GatewayAmount)

	// The intent is gone from the store. From here on the outcome has to be
	// settled even if the caller disconnects.
	ctx = context.WithoutCancel(ctx)

	vctx, cancel := context.WithTimeout(ctx, s.cfg.GatewayTimeout)
	v, err := s.gateway.VerifyPayment(vctx, pending.GatewayAmount, token)
	cancel()
	if err != nil {
		if outcomeUnknown(err) {
			l.Error("payment_verification_indeterminate", "alert", true, "error", err)
			s.reconcile(ctx, pending, models.ReasonVerificationIndeterminate, "", err)
			s.publish(ctx, EventVerificationIndeterminate, token, map[string]any{
				"type":           EventVerificationIndeterminate,
				"token":          token,
				"user_id":        pending.UserID,
				"gateway_amount": pending.GatewayAmount,
			})
			return nil, fmt.Errorf("%w: %w", domain.ErrVerificationIndeterminate, err)
		}
		l.Warn("payment_verification_failed", "error", err)
		return nil, fmt.Errorf("%w: %w", domain.ErrVerificationFailed, err)
	}

	pctx, cancel := context.WithTimeout(ctx, s.cfg.GatewayTimeout)
	defer cancel()
	order, created, err := s.orders.CreateOrderIfAbsent(pctx, s.orderFromIntent(pending, v))
	if err != nil {
		l.Error("persist_order_error", "alert", true, "reference_id", v.ReferenceID, "error", err)
		s.reconcile(ctx, pending, models.ReasonOrderPersistFailed, v.ReferenceID, err)
		return nil, fmt.Errorf("%w: persist order: %w", ErrInternal, err)
	}

	if created {
		l.Info("order_finalized", "order_id", order.ID, "outcome", v.Outcome.String(), "reference_id", v.ReferenceID)
		s.publish(ctx, EventOrderFinalized, order.ID.String(), map[string]any{
			"type":           EventOrderFinalized,
			"order_id":       order.ID,
			"user_id":        order.UserID,
			"store_id":       order.StoreID,
			"total_amount":   order.TotalAmount.String(),
			"gateway_amount": order.GatewayAmount,
			"reference_id":   order.PaymentRefID,
			"items":          len(order.Items),
		})
		s.indexOrder(ctx, order)
	} else {
		l.Warn("order_already_exists", "order_id", order.ID)
	}

	return &VerifyResult{
		Order:           order,
		Outcome:         v.Outcome,
		AlreadyVerified: v.Outcome == gateway.OutcomeAlreadyVerified || !created,
	}, nil
}

// outcomeUnknown reports whether the gateway may have settled the payment
// even though no answer arrived.
func outcomeUnknown(err error) bool {
	return errors.Is(err, gateway.ErrTimeout) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}

func (s *PaymentService) GetOrder(ctx context.Context, userID, orderID uuid.UUID) (*models.Order, error) {
	return s.orders.GetOrder(ctx, userID, orderID)
}

func (s *PaymentService) ListOrders(ctx context.Context, userID uuid.UUID, limit, offset int) (int64, []models.Order, error) {
	return s.orders.ListOrders(ctx, userID, limit, offset)
}

func (s *PaymentService) ListReconciliations(ctx context.Context, limit, offset int) (int64, []models.Reconciliation, error) {
	return s.orders.ListOpenReconciliations(ctx, limit, offset)
}

func (s *PaymentService) orderFromIntent(p domain.PendingIntent, v gateway.Verification) *models.Order {
	items := lo.Map(p.Lines, func(line domain.ValidatedLine, i int) models.OrderItem {
		return models.OrderItem{
			Position:  i,
			ProductID: line.ProductID,
			Quantity:  line.Quantity,
			UnitPrice: line.UnitPrice,
			LineTotal: line.Total(),
		}
	})

	return &models.Order{
		UserID:          p.UserID,
		StoreID:         s.cfg.StoreID,
		Status:          models.OrderStatusProcessing,
		PaymentStatus:   models.PaymentStatusCompleted,
		TotalAmount:     p.TotalAmount,
		GatewayAmount:   p.GatewayAmount,
		GatewayCurrency: gateway.Currency.String(),
		ShippingAddress: p.Address,
		PaymentToken:    p.Token,
		PaymentRefID:    v.ReferenceID,
		CardMask:        v.CardMask,
		VerifiedAt:      s.now(),
		Items:           items,
	}
}

// reconcile must not be cut short by the caller going away.
func (s *PaymentService) reconcile(ctx context.Context, p domain.PendingIntent, reason, refID string, cause error) {
	ctx = context.WithoutCancel(ctx)
	l := logging.FromContext(ctx)

	snapshot, err := json.Marshal(p)
	if err != nil {
		l.Error("reconciliation_encode_error", "token", p.Token, "error", err)
		snapshot = []byte("{}")
	}

	rec := &models.Reconciliation{
		PaymentToken:  p.Token,
		UserID:        p.UserID,
		GatewayAmount: p.GatewayAmount,
		Reason:        reason,
		ReferenceID:   refID,
		Detail:        cause.Error(),
		Intent:        string(snapshot),
	}
	if err := s.orders.CreateReconciliation(ctx, rec); err != nil {
		l.Error("reconciliation_record_error", "alert", true, "token", p.Token, "reason", reason, "intent", string(snapshot), "error", err)
	}
}

func (s *PaymentService) publish(ctx context.Context, eventType, key string, event any) {
	if s.events == nil {
		return
	}
	if err := s.events.PublishEvent(context.WithoutCancel(ctx), eventType, key, event); err != nil {
		logging.FromContext(ctx).Warn("publish_event_error", "event", eventType, "key", key, "error", err)
	}
}

func (s *PaymentService) indexOrder(ctx context.Context, o *models.Order) {
	if s.index == nil {
		return
	}
	if err := s.index.IndexOrder(context.WithoutCancel(ctx), o); err != nil {
		logging.FromContext(ctx).Warn("index_order_error", "order_id", o.ID, "error", err)
	}
}

func cartHash(userID uuid.UUID, lines []domain.ValidatedLine, total decimal.Decimal) string {
	b, _ := json.Marshal(struct {
		UserID uuid.UUID              `json:"user_id"`
		Lines  []domain.ValidatedLine `json:"lines"`
		Total  decimal.Decimal        `json:"total"`
	}{userID, lines, total})
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}
