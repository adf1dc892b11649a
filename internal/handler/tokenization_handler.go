package handler

import (
	"context"
	"io"
	"net/http"
	"strings"

	"github.com/grachmannico95/invoice-proof/internal/domain"
	"github.com/grachmannico95/invoice-proof/internal/pipeline"
	"github.com/grachmannico95/invoice-proof/pkg/logger"
	"github.com/labstack/echo/v4"
)

// TokenizationService is the part of the pipeline the HTTP layer drives.
type TokenizationService interface {
	StartTokenization(ctx context.Context, invoiceID, supplierAccountID string) (*pipeline.StartResult, error)
	SubmitSignedTransaction(ctx context.Context, attemptID string, signed []byte) (*pipeline.Outcome, error)
	ResumeTokenization(ctx context.Context, attemptID string) (*pipeline.Outcome, error)
	CancelTokenization(ctx context.Context, attemptID string) (*pipeline.Outcome, error)
	Get(ctx context.Context, attemptID string) (*pipeline.Outcome, error)
	PendingSigningRequest(accountID string) (domain.SigningRequest, bool)
}

type TokenizationHandler struct {
	service TokenizationService
	logger  *logger.Logger
}

func NewTokenizationHandler(service TokenizationService, log *logger.Logger) *TokenizationHandler {
	return &TokenizationHandler{
		service: service,
		logger:  log,
	}
}

type startTokenizationRequest struct {
	SupplierAccountID string `json:"supplier_account_id"`
}

type startTokenizationResponse struct {
	AttemptID      string                `json:"attempt_id"`
	InvoiceID      string                `json:"invoice_id"`
	Status         domain.PipelineState  `json:"status"`
	SigningRequest domain.SigningRequest `json:"signing_request"`
}

func (h *TokenizationHandler) Start(c echo.Context) error {
	ctx := logger.WithInvoiceID(c.Request().Context(), c.Param("id"))

	var req startTokenizationRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}

	res, err := h.service.StartTokenization(ctx, c.Param("id"), req.SupplierAccountID)
	if err != nil {
		return respondError(c, h.logger, "Failed to start tokenization", err)
	}

	h.logger.Info(logger.WithAttemptID(ctx, res.Attempt.ID), "Tokenization awaiting signature",
		"signing_request_id", res.SigningRequest.ID,
		"deadline", res.SigningRequest.Deadline,
	)

	return c.JSON(http.StatusAccepted, startTokenizationResponse{
		AttemptID:      res.Attempt.ID,
		InvoiceID:      res.Attempt.InvoiceID,
		Status:         res.Attempt.State,
		SigningRequest: res.SigningRequest,
	})
}

type submitSignatureRequest struct {
	SignedTransaction []byte `json:"signed_transaction_bytes"`
	TransactionID     string `json:"transaction_id"`
}

// SubmitSignature takes the wallet response as JSON with base64 bytes, or
// as a raw application/octet-stream body.
func (h *TokenizationHandler) SubmitSignature(c echo.Context) error {
	ctx := logger.WithAttemptID(c.Request().Context(), c.Param("id"))

	var signed []byte
	if strings.HasPrefix(c.Request().Header.Get(echo.HeaderContentType), echo.MIMEOctetStream) {
		body, err := io.ReadAll(io.LimitReader(c.Request().Body, maxDocumentSize))
		if err != nil {
			return badRequest(c, "failed to read body")
		}
		signed = body
	} else {
		var req submitSignatureRequest
		if err := c.Bind(&req); err != nil {
			return badRequest(c, "invalid request body")
		}
		signed = req.SignedTransaction
	}
	if len(signed) == 0 {
		return badRequest(c, "signed_transaction_bytes is required")
	}

	outcome, err := h.service.SubmitSignedTransaction(ctx, c.Param("id"), signed)
	if err != nil {
		return respondError(c, h.logger, "Failed to submit signed transaction", err)
	}
	return c.JSON(http.StatusOK, outcome)
}

func (h *TokenizationHandler) Resume(c echo.Context) error {
	outcome, err := h.service.ResumeTokenization(c.Request().Context(), c.Param("id"))
	if err != nil {
		return respondError(c, h.logger, "Failed to resume tokenization", err)
	}
	return c.JSON(http.StatusOK, outcome)
}

func (h *TokenizationHandler) Cancel(c echo.Context) error {
	outcome, err := h.service.CancelTokenization(c.Request().Context(), c.Param("id"))
	if err != nil {
		return respondError(c, h.logger, "Failed to cancel tokenization", err)
	}
	return c.JSON(http.StatusOK, outcome)
}

func (h *TokenizationHandler) Get(c echo.Context) error {
	outcome, err := h.service.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return respondError(c, h.logger, "Failed to get tokenization attempt", err)
	}
	return c.JSON(http.StatusOK, outcome)
}

// PendingSigningRequest is polled by the wallet of an account.
func (h *TokenizationHandler) PendingSigningRequest(c echo.Context) error {
	req, ok := h.service.PendingSigningRequest(c.Param("account"))
	if !ok {
		return c.NoContent(http.StatusNoContent)
	}
	return c.JSON(http.StatusOK, req)
}
