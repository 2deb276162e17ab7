package httpserver

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/Skotchmaster/shop_payments/pkg/logging"
	"github.com/Skotchmaster/shop_payments/services/payment/internal/domain"
	"github.com/Skotchmaster/shop_payments/services/payment/internal/gateway"
	"github.com/Skotchmaster/shop_payments/services/payment/internal/models"
	"github.com/Skotchmaster/shop_payments/services/payment/internal/repo"
	"github.com/Skotchmaster/shop_payments/services/payment/internal/search"
	"github.com/Skotchmaster/shop_payments/services/payment/internal/service"
	"github.com/Skotchmaster/shop_payments/services/payment/internal/transport"
	"github.com/Skotchmaster/shop_payments/services/payment/internal/util"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/samber/lo"
)

type OrderSearcher interface {
	Search(ctx context.Context, q string, from, size int) (int64, []search.OrderDoc, error)
}

type PaymentHTTP struct {
	Svc    *service.PaymentService
	Search OrderSearcher // nil when Elasticsearch is not configured
}

func fail(code int, msg string) *echo.HTTPError {
	return echo.NewHTTPError(code, transport.ErrorResponse{Success: false, Message: msg})
}

func (h *PaymentHTTP) GetID(c echo.Context) (uuid.UUID, error) {
	s, ok := c.Get("user_id").(string)
	if !ok || s == "" {
		return uuid.Nil, errors.New("unauthorized")
	}
	userID, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, errors.New("unauthorized")
	}
	return userID, nil
}

func (h *PaymentHTTP) Request(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "payment.request")

	userID, err := h.GetID(c)
	if err != nil {
		l.Warn("payment_request_error", "status", 401, "error", err)
		return fail(http.StatusUnauthorized, "authentication required")
	}

	var req transport.PaymentRequest
	if err := c.Bind(&req); err != nil {
		l.Warn("payment_request_error", "status", 400, "reason", "invalid body", "error", err)
		return fail(http.StatusBadRequest, "invalid body")
	}

	res, err := h.Svc.Submit(ctx, service.SubmitRequest{
		UserID:  userID,
		Lines:   req.Lines(),
		Address: req.ShippingAddress,
	})
	if err != nil {
		if domain.IsValidation(err) {
			l.Warn("payment_request_error", "status", 400, "reason", "validation", "error", err)
			return fail(http.StatusBadRequest, err.Error())
		}
		if errors.Is(err, domain.ErrGateway) {
			l.Error("payment_request_error", "status", 502, "reason", "gateway", "error", err)
			return fail(http.StatusBadGateway, gatewayMessage(err))
		}
		l.Error("payment_request_error", "status", 500, "error", err)
		return fail(http.StatusInternalServerError, "internal error")
	}

	l.Info("payment_request_success", "authority", res.Token, "gateway_amount", res.GatewayAmount)
	return c.JSON(http.StatusOK, transport.PaymentResponse{
		Success:    true,
		Authority:  res.Token,
		PaymentURL: res.RedirectURL,
		Amount:     res.Amount,
	})
}

// Verify handles the client relaying the callback as JSON.
func (h *PaymentHTTP) Verify(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "payment.verify")

	var req transport.VerifyRequest
	if err := c.Bind(&req); err != nil {
		l.Warn("payment_verify_error", "status", 400, "reason", "invalid body", "error", err)
		return fail(http.StatusBadRequest, "invalid body")
	}
	if strings.TrimSpace(req.Authority) == "" {
		l.Warn("payment_verify_error", "status", 400, "reason", "authority required")
		return fail(http.StatusBadRequest, "authority is required")
	}

	status := req.Status
	if strings.TrimSpace(status) == "" {
		status = gateway.CallbackStatusOK
	}
	return h.verify(c, l, req.Authority, status)
}

// Callback is the gateway redirect target.
func (h *PaymentHTTP) Callback(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "payment.callback")

	authority := c.QueryParam("Authority")
	if strings.TrimSpace(authority) == "" {
		l.Warn("payment_callback_error", "status", 400, "reason", "authority required")
		return fail(http.StatusBadRequest, "authority is required")
	}
	return h.verify(c, l, authority, c.QueryParam("Status"))
}

func (h *PaymentHTTP) verify(c echo.Context, l *slog.Logger, authority, status string) error {
	res, err := h.Svc.Verify(c.Request().Context(), service.VerifyRequest{Token: authority, Status: status})
	if err != nil {
		return verifyError(l, err)
	}

	l.Info("payment_verify_success", "order_id", res.Order.ID, "already_verified", res.AlreadyVerified)
	return c.JSON(http.StatusOK, transport.VerifyResponse{
		Success:         true,
		Verified:        res.Outcome == gateway.OutcomeVerified,
		AlreadyVerified: res.AlreadyVerified,
		RefID:           res.Order.PaymentRefID,
		CardPan:         res.Order.CardMask,
		Order:           transport.NewOrderSummary(res.Order),
	})
}

func verifyError(l *slog.Logger, err error) error {
	switch {
	case errors.Is(err, domain.ErrIntentExpiredOrConsumed):
		l.Warn("payment_verify_error", "status", 400, "reason", "intent expired or consumed", "error", err)
		return fail(http.StatusBadRequest, "order not found or expired")
	case errors.Is(err, domain.ErrPaymentNotCompleted):
		l.Warn("payment_verify_error", "status", 400, "reason", "payment not completed", "error", err)
		return fail(http.StatusBadRequest, "payment was not completed")
	case errors.Is(err, domain.ErrVerificationFailed):
		l.Warn("payment_verify_error", "status", 400, "reason", "gateway rejected", "error", err)
		return fail(http.StatusBadRequest, "payment verification failed")
	case errors.Is(err, domain.ErrVerificationIndeterminate):
		l.Error("payment_verify_error", "status", 502, "reason", "indeterminate", "alert", true, "error", err)
		return fail(http.StatusBadGateway, "payment status could not be confirmed, please contact support")
	}
	l.Error("payment_verify_error", "status", 500, "error", err)
	return fail(http.StatusInternalServerError, "internal error")
}

func gatewayMessage(err error) string {
	var gwErr *gateway.Error
	if errors.As(err, &gwErr) && gwErr.Message != "" {
		return "payment gateway error: " + gwErr.Message
	}
	return "payment gateway unavailable"
}

func (h *PaymentHTTP) ListOrders(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "payment.list_orders")

	userID, err := h.GetID(c)
	if err != nil {
		l.Warn("list_orders_error", "status", 401, "error", err)
		return fail(http.StatusUnauthorized, "authentication required")
	}

	page := util.ParseIntDefault(c.QueryParam("page"), 1)
	size := util.ParseIntDefault(c.QueryParam("size"), util.DefaultPageSize)
	offset, limit := util.Calculate(page, size)

	total, orders, err := h.Svc.ListOrders(ctx, userID, limit, offset)
	if err != nil {
		l.Error("list_orders_error", "status", 500, "error", err)
		return fail(http.StatusInternalServerError, "internal error")
	}

	return c.JSON(http.StatusOK, transport.Page[transport.OrderView]{
		Data: lo.Map(orders, func(o models.Order, _ int) transport.OrderView { return transport.NewOrderView(&o) }),
		Meta: transport.NewMeta(page, offset, limit, total),
	})
}

func (h *PaymentHTTP) GetOrder(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "payment.get_order")

	userID, err := h.GetID(c)
	if err != nil {
		l.Warn("get_order_error", "status", 401, "error", err)
		return fail(http.StatusUnauthorized, "authentication required")
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		l.Warn("get_order_error", "status", 400, "reason", "id not a uuid", "error", err)
		return fail(http.StatusBadRequest, "id not a uuid")
	}

	order, err := h.Svc.GetOrder(ctx, userID, id)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			l.Warn("get_order_error", "status", 404, "reason", "order not found", "error", err)
			return fail(http.StatusNotFound, "order not found")
		}
		l.Error("get_order_error", "status", 500, "error", err)
		return fail(http.StatusInternalServerError, "internal error")
	}

	return c.JSON(http.StatusOK, transport.NewOrderView(order))
}

func (h *PaymentHTTP) Reconciliations(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "payment.admin.reconciliations")

	page := util.ParseIntDefault(c.QueryParam("page"), 1)
	size := util.ParseIntDefault(c.QueryParam("size"), util.DefaultPageSize)
	offset, limit := util.Calculate(page, size)

	total, recs, err := h.Svc.ListReconciliations(ctx, limit, offset)
	if err != nil {
		l.Error("reconciliations_error", "status", 500, "error", err)
		return fail(http.StatusInternalServerError, "internal error")
	}

	return c.JSON(http.StatusOK, transport.Page[models.Reconciliation]{
		Data: recs,
		Meta: transport.NewMeta(page, offset, limit, total),
	})
}

func (h *PaymentHTTP) SearchOrders(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "payment.admin.search_orders")

	if h.Search == nil {
		l.Warn("search_orders_error", "status", 503, "reason", "search not configured")
		return fail(http.StatusServiceUnavailable, "order search unavailable")
	}

	q := strings.TrimSpace(c.QueryParam("q"))
	if q == "" {
		l.Warn("search_orders_error", "status", 400, "reason", "q required")
		return fail(http.StatusBadRequest, "q is required")
	}

	page := util.ParseIntDefault(c.QueryParam("page"), 1)
	size := util.ParseIntDefault(c.QueryParam("size"), util.DefaultPageSize)
	from, limit := util.Calculate(page, size)

	total, docs, err := h.Search.Search(ctx, q, from, limit)
	if err != nil {
		l.Error("search_orders_error", "status", 502, "error", err)
		return fail(http.StatusBadGateway, "order search failed")
	}

	return c.JSON(http.StatusOK, transport.Page[search.OrderDoc]{
		Data: docs,
		Meta: transport.NewMeta(page, from, limit, total),
	})
}
