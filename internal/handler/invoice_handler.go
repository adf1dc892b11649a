package handler

import (
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/grachmannico95/invoice-proof/internal/invoice"
	"github.com/grachmannico95/invoice-proof/internal/proof"
	"github.com/grachmannico95/invoice-proof/pkg/logger"
	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
)

const maxDocumentSize = 10 << 20

type InvoiceHandler struct {
	service invoice.Service
	proofs  *proof.Ledger
	logger  *logger.Logger
}

func NewInvoiceHandler(service invoice.Service, proofs *proof.Ledger, log *logger.Logger) *InvoiceHandler {
	return &InvoiceHandler{
		service: service,
		proofs:  proofs,
		logger:  log,
	}
}

type createInvoiceRequest struct {
	SupplierRef string `json:"supplier_ref" form:"supplier_ref"`
	BuyerRef    string `json:"buyer_ref" form:"buyer_ref"`
	Amount      string `json:"amount" form:"amount"`
	Currency    string `json:"currency" form:"currency"`
	DueDate     string `json:"due_date" form:"due_date"`
}

// Create accepts JSON, or a multipart form whose optional "document" file
// is stored alongside the invoice.
func (h *InvoiceHandler) Create(c echo.Context) error {
	ctx := c.Request().Context()

	var req createInvoiceRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		return badRequest(c, "amount must be a decimal number")
	}
	dueDate, err := parseDate(req.DueDate)
	if err != nil {
		return badRequest(c, "due_date must be RFC3339 or YYYY-MM-DD")
	}

	in := invoice.CreateInvoiceInput{
		SupplierRef: req.SupplierRef,
		BuyerRef:    req.BuyerRef,
		Amount:      amount,
		Currency:    req.Currency,
		DueDate:     dueDate,
	}

	if strings.HasPrefix(c.Request().Header.Get(echo.HeaderContentType), echo.MIMEMultipartForm) {
		if file, err := c.FormFile("document"); err == nil {
			if file.Size > maxDocumentSize {
				return badRequest(c, "document is too large")
			}
			src, err := file.Open()
			if err != nil {
				h.logger.Error(ctx, "Failed to open document", "error", err)
				return c.JSON(http.StatusInternalServerError, map[string]string{
					"error": "failed to open document",
				})
			}
			defer src.Close()

			if in.Document, err = io.ReadAll(io.LimitReader(src, maxDocumentSize)); err != nil {
				return badRequest(c, "failed to read document")
			}
			in.ContentType = file.Header.Get(echo.HeaderContentType)
		}
	}

	inv, err := h.service.CreateInvoice(ctx, in)
	if err != nil {
		return respondError(c, h.logger, "Failed to create invoice", err)
	}

	return c.JSON(http.StatusCreated, inv)
}

func (h *InvoiceHandler) Get(c echo.Context) error {
	inv, err := h.service.GetInvoice(c.Request().Context(), c.Param("id"))
	if err != nil {
		return respondError(c, h.logger, "Failed to get invoice", err)
	}
	return c.JSON(http.StatusOK, inv)
}

func (h *InvoiceHandler) Cancel(c echo.Context) error {
	inv, err := h.service.CancelInvoice(c.Request().Context(), c.Param("id"))
	if err != nil {
		return respondError(c, h.logger, "Failed to cancel invoice", err)
	}
	return c.JSON(http.StatusOK, inv)
}

type fundInvoiceRequest struct {
	InvestorID string `json:"investor_id"`
	Amount     string `json:"amount"`
}

func (h *InvoiceHandler) Fund(c echo.Context) error {
	var req fundInvoiceRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		return badRequest(c, "amount must be a decimal number")
	}

	f, err := h.service.FundInvoice(c.Request().Context(), c.Param("id"), req.InvestorID, amount)
	if err != nil {
		return respondError(c, h.logger, "Failed to fund invoice", err)
	}
	return c.JSON(http.StatusCreated, f)
}

func (h *InvoiceHandler) ListFundings(c echo.Context) error {
	invoiceID := c.Param("id")
	fundings, err := h.service.ListFundings(c.Request().Context(), invoiceID)
	if err != nil {
		return respondError(c, h.logger, "Failed to list fundings", err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"invoice_id": invoiceID,
		"items":      fundings,
	})
}

func (h *InvoiceHandler) RefundFunding(c echo.Context) error {
	f, err := h.service.RefundFunding(c.Request().Context(), c.Param("id"))
	if err != nil {
		return respondError(c, h.logger, "Failed to refund funding", err)
	}
	return c.JSON(http.StatusOK, f)
}

func (h *InvoiceHandler) MarkPaid(c echo.Context) error {
	inv, err := h.service.MarkPaid(c.Request().Context(), c.Param("id"))
	if err != nil {
		return respondError(c, h.logger, "Failed to mark invoice paid", err)
	}
	return c.JSON(http.StatusOK, inv)
}

// Proofs is the polling interface of the proof stream.
func (h *InvoiceHandler) Proofs(c echo.Context) error {
	summary, err := h.proofs.Summary(c.Request().Context(), c.Param("id"))
	if err != nil {
		return respondError(c, h.logger, "Failed to read proofs", err)
	}
	return c.JSON(http.StatusOK, summary)
}

func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", s)
}
