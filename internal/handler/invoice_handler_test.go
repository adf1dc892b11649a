package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"testing"

	"github.com/grachmannico95/invoice-proof/internal/document"
	"github.com/grachmannico95/invoice-proof/internal/domain"
	"github.com/grachmannico95/invoice-proof/internal/invoice"
	"github.com/grachmannico95/invoice-proof/internal/proof"
	"github.com/grachmannico95/invoice-proof/internal/storage"
	"github.com/grachmannico95/invoice-proof/pkg/logger"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type invoiceFixture struct {
	e         *echo.Echo
	repo      *storage.MemoryStore
	documents *document.MemoryStore
}

func newInvoiceRouter(t *testing.T) *invoiceFixture {
	t.Helper()
	log := logger.NewNop()
	repo := storage.NewMemoryStore()
	documents := document.NewMemoryStore()

	h := NewInvoiceHandler(invoice.NewService(repo, documents, log), proof.NewLedger(repo), log)
	e := echo.New()
	e.POST("/invoices", h.Create)
	e.GET("/invoices/:id", h.Get)
	e.POST("/invoices/:id/cancel", h.Cancel)
	e.POST("/invoices/:id/fundings", h.Fund)
	e.GET("/invoices/:id/fundings", h.ListFundings)
	e.POST("/invoices/:id/paid", h.MarkPaid)
	e.GET("/invoices/:id/proofs", h.Proofs)
	e.POST("/fundings/:id/refund", h.RefundFunding)

	return &invoiceFixture{e: e, repo: repo, documents: documents}
}

func createInvoice(t *testing.T, f *invoiceFixture, amount string) domain.Invoice {
	t.Helper()
	rec := serve(f.e, http.MethodPost, "/invoices", echo.MIMEApplicationJSON, []byte(`{
		"supplier_ref": "SUP-1",
		"buyer_ref": "BUY-1",
		"amount": "`+amount+`",
		"currency": "USD",
		"due_date": "2026-12-31"
	}`))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var inv domain.Invoice
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &inv))
	return inv
}

func TestInvoiceHandler_CreateAndGet(t *testing.T) {
	f := newInvoiceRouter(t)

	created := createInvoice(t, f, "1000.00")
	assert.Equal(t, domain.InvoiceStatusIssued, created.Status)
	assert.Equal(t, "1000", created.Amount.String())

	rec := serve(f.e, http.MethodGet, "/invoices/"+created.ID, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ISSUED"`)

	rec = serve(f.e, http.MethodGet, "/invoices/missing", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, domain.KindNotFound, decodeError(t, rec).ErrorKind)
}

func TestInvoiceHandler_CreateWithDocument(t *testing.T) {
	f := newInvoiceRouter(t)

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	for k, v := range map[string]string{
		"supplier_ref": "SUP-1",
		"buyer_ref":    "BUY-1",
		"amount":       "250.50",
		"currency":     "EUR",
		"due_date":     "2026-12-31T00:00:00Z",
	} {
		require.NoError(t, w.WriteField(k, v))
	}
	part, err := w.CreateFormFile("document", "invoice.pdf")
	require.NoError(t, err)
	_, err = part.Write([]byte("%PDF-1.7 invoice"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	rec := serve(f.e, http.MethodPost, "/invoices", w.FormDataContentType(), body.Bytes())
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var inv domain.Invoice
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &inv))
	assert.Equal(t, document.Hash([]byte("%PDF-1.7 invoice")), inv.DocumentHash)

	stored, err := f.documents.Get(context.Background(), inv.DocumentHash)
	require.NoError(t, err)
	assert.Equal(t, []byte("%PDF-1.7 invoice"), stored)
}

func TestInvoiceHandler_CreateValidation(t *testing.T) {
	f := newInvoiceRouter(t)

	tests := []struct {
		name string
		body string
	}{
		{"bad amount", `{"supplier_ref":"S","buyer_ref":"B","amount":"lots","currency":"USD","due_date":"2026-12-31"}`},
		{"bad date", `{"supplier_ref":"S","buyer_ref":"B","amount":"10","currency":"USD","due_date":"tomorrow"}`},
		{"bad currency", `{"supplier_ref":"S","buyer_ref":"B","amount":"10","currency":"usd","due_date":"2026-12-31"}`},
		{"negative amount", `{"supplier_ref":"S","buyer_ref":"B","amount":"-5","currency":"USD","due_date":"2026-12-31"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(f.e, http.MethodPost, "/invoices", echo.MIMEApplicationJSON, []byte(tt.body))
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, domain.KindMalformedInput, decodeError(t, rec).ErrorKind)
		})
	}
}

func TestInvoiceHandler_FundingLifecycle(t *testing.T) {
	f := newInvoiceRouter(t)
	inv := createInvoice(t, f, "5000")

	rec := serve(f.e, http.MethodPost, "/invoices/"+inv.ID+"/fundings", echo.MIMEApplicationJSON,
		[]byte(`{"investor_id":"investor-1","amount":"4500"}`))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var funding domain.Funding
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &funding))
	assert.Equal(t, domain.FundingStatusActive, funding.Status)

	// Funded invoices cannot be funded again.
	rec = serve(f.e, http.MethodPost, "/invoices/"+inv.ID+"/fundings", echo.MIMEApplicationJSON,
		[]byte(`{"investor_id":"investor-2","amount":"100"}`))
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, domain.KindInvalidState, decodeError(t, rec).ErrorKind)

	rec = serve(f.e, http.MethodGet, "/invoices/"+inv.ID+"/fundings", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), funding.ID)

	rec = serve(f.e, http.MethodPost, "/invoices/"+inv.ID+"/paid", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"PAID"`)

	rec = serve(f.e, http.MethodPost, "/invoices/"+inv.ID+"/paid", "", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	body := decodeError(t, rec)
	assert.Equal(t, domain.KindInvalidState, body.ErrorKind)
	assert.False(t, body.Retryable)

	got, err := f.repo.GetFunding(context.Background(), funding.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.FundingStatusReleased, got.Status)
}

func TestInvoiceHandler_RefundAndCancel(t *testing.T) {
	f := newInvoiceRouter(t)

	funded := createInvoice(t, f, "300")
	rec := serve(f.e, http.MethodPost, "/invoices/"+funded.ID+"/fundings", echo.MIMEApplicationJSON,
		[]byte(`{"investor_id":"investor-1","amount":"300"}`))
	require.Equal(t, http.StatusCreated, rec.Code)
	var funding domain.Funding
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &funding))

	rec = serve(f.e, http.MethodPost, "/fundings/"+funding.ID+"/refund", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"REFUNDED"`)

	issued := createInvoice(t, f, "300")
	rec = serve(f.e, http.MethodPost, "/invoices/"+issued.ID+"/cancel", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"CANCELLED"`)

	rec = serve(f.e, http.MethodPost, "/invoices/"+funded.ID+"/cancel", "", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestInvoiceHandler_Proofs(t *testing.T) {
	f := newInvoiceRouter(t)
	inv := createInvoice(t, f, "1000")

	rec := serve(f.e, http.MethodGet, "/invoices/"+inv.ID+"/proofs", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var summary proof.Summary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &summary))
	assert.Equal(t, inv.ID, summary.InvoiceID)
	assert.False(t, summary.Tokenized)
	assert.Empty(t, summary.Proofs)

	rec = serve(f.e, http.MethodGet, "/invoices/missing/proofs", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStatusForKind(t *testing.T) {
	assert.Equal(t, http.StatusGatewayTimeout, statusForKind(domain.KindTimeout))
	assert.Equal(t, http.StatusServiceUnavailable, statusForKind(domain.KindUnreachable))
	assert.Equal(t, http.StatusUnprocessableEntity, statusForKind(domain.KindRejected))
	assert.Equal(t, http.StatusConflict, statusForKind(domain.KindSessionAlreadyOpen))
	assert.Equal(t, http.StatusInternalServerError, statusForKind(domain.KindInternal))
}
