package handler

import (
	"net/http"

	"github.com/grachmannico95/invoice-proof/internal/domain"
	"github.com/grachmannico95/invoice-proof/pkg/logger"
	"github.com/labstack/echo/v4"
)

type errorResponse struct {
	Error     string           `json:"error"`
	ErrorKind domain.ErrorKind `json:"error_kind"`
	Step      domain.Step      `json:"step,omitempty"`
	Retryable bool             `json:"retryable"`
}

func statusForKind(kind domain.ErrorKind) int {
	switch kind {
	case domain.KindInvalidPayer, domain.KindUnsupportedOperation, domain.KindMalformedInput:
		return http.StatusBadRequest
	case domain.KindNotFound:
		return http.StatusNotFound
	case domain.KindInvalidState, domain.KindAlreadyInProgress, domain.KindSessionAlreadyOpen, domain.KindCancelled:
		return http.StatusConflict
	case domain.KindInvalidSignature, domain.KindRejected:
		return http.StatusUnprocessableEntity
	case domain.KindUnreachable:
		return http.StatusServiceUnavailable
	case domain.KindTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes err with its kind and whether the caller may retry.
// Internal details are logged, not returned.
func respondError(c echo.Context, log *logger.Logger, msg string, err error) error {
	ctx := c.Request().Context()
	kind := domain.KindOf(err)
	status := statusForKind(kind)

	body := errorResponse{
		Error:     err.Error(),
		ErrorKind: kind,
		Step:      domain.StepOf(err),
		Retryable: domain.Retryable(kind),
	}
	if status == http.StatusInternalServerError {
		log.Error(ctx, msg, "error", err)
		body.Error = msg
	} else {
		log.Warn(ctx, msg, "error", err, "error_kind", kind)
	}

	return c.JSON(status, body)
}

func badRequest(c echo.Context, msg string) error {
	return c.JSON(http.StatusBadRequest, errorResponse{
		Error:     msg,
		ErrorKind: domain.KindMalformedInput,
	})
}
