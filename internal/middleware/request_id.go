package middleware

import (
	"github.com/google/uuid"
	"github.com/grachmannico95/invoice-proof/pkg/logger"
	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel/trace"
)

const (
	HeaderTraceID = "X-Trace-ID"

	maxTraceIDLength = 128
)

// RequestID puts a trace id on the request context and echoes it back.
// The incoming X-Trace-ID wins, then the active span's trace id, then a
// fresh uuid.
func RequestID() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := c.Request().Context()

			traceID := c.Request().Header.Get(HeaderTraceID)
			if traceID == "" || len(traceID) > maxTraceIDLength {
				if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
					traceID = sc.TraceID().String()
				} else {
					traceID = uuid.New().String()
				}
			}

			c.SetRequest(c.Request().WithContext(logger.WithTraceID(ctx, traceID)))
			c.Response().Header().Set(HeaderTraceID, traceID)

			return next(c)
		}
	}
}
