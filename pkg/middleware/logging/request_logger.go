package loggingmw

import (
	"log/slog"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/shop_payments/pkg/logging"
)

// RequestLogger attaches a request scoped logger to the request context and
// emits an access line after the handler returns. Probe paths under
// /health are not logged.
func RequestLogger(base *slog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			rid := requestID(c)

			l := base.With("request_id", rid, "method", req.Method, "route", c.Path())
			if rid != "" {
				c.Response().Header().Set(echo.HeaderXRequestID, rid)
			}
			c.SetRequest(req.WithContext(logging.IntoContext(req.Context(), l)))

			start := time.Now()
			if err := next(c); err != nil {
				c.Error(err)
				l = l.With("error", err.Error())
			}
			if strings.HasPrefix(req.URL.Path, "/health") {
				return nil
			}

			attrs := []any{
				"status", c.Response().Status,
				"took", time.Since(start),
				"remote_ip", c.RealIP(),
			}
			if uid, ok := c.Get("user_id").(string); ok && uid != "" {
				attrs = append(attrs, "user_id", uid)
			}
			l.Log(req.Context(), levelFor(c.Response().Status), "http_request", attrs...)
			return nil
		}
	}
}

func requestID(c echo.Context) string {
	if rid := c.Request().Header.Get(echo.HeaderXRequestID); rid != "" {
		return rid
	}
	return c.Response().Header().Get(echo.HeaderXRequestID)
}

func levelFor(status int) slog.Level {
	switch {
	case status >= 500:
		return slog.LevelError
	case status >= 400:
		return slog.LevelWarn
	}
	return slog.LevelInfo
}
