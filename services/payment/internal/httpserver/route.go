package httpserver

import (
	"context"
	"net/http"

	"github.com/Skotchmaster/shop_payments/pkg/authclient"
	middleware "github.com/Skotchmaster/shop_payments/pkg/middleware/auth"
	"github.com/labstack/echo/v4"
)

type Deps struct {
	PaymentHandler *PaymentHTTP
	JWTSecret      []byte
	AuthClient     *authclient.Client
	Ready          func(ctx context.Context) error
}

func Register(e *echo.Echo, d *Deps) {
	e.GET("/health/live", func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	e.GET("/health/ready", func(c echo.Context) error {
		if d.Ready != nil {
			if err := d.Ready(c.Request().Context()); err != nil {
				return c.NoContent(http.StatusServiceUnavailable)
			}
		}
		return c.NoContent(http.StatusOK)
	})

	authMW := middleware.NewAutoRefreshMiddleware(d.JWTSecret, d.AuthClient)

	payment := e.Group("/payment")
	payment.POST("/verify", d.PaymentHandler.Verify)
	payment.GET("/callback", d.PaymentHandler.Callback)

	user := payment.Group("", authMW.RequireAuth)
	user.POST("/request", d.PaymentHandler.Request)
	user.GET("/orders", d.PaymentHandler.ListOrders)
	user.GET("/orders/:id", d.PaymentHandler.GetOrder)

	admin := payment.Group("/admin", authMW.RequireAdmin)
	admin.GET("/reconciliations", d.PaymentHandler.Reconciliations)
	admin.GET("/orders/search", d.PaymentHandler.SearchOrders)
}
