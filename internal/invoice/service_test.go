package invoice

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/grachmannico95/invoice-proof/internal/document"
	"github.com/grachmannico95/invoice-proof/internal/domain"
	"github.com/grachmannico95/invoice-proof/internal/storage"
	"github.com/grachmannico95/invoice-proof/mocks"
	"github.com/grachmannico95/invoice-proof/pkg/logger"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T) (Service, *storage.MemoryStore) {
	t.Helper()
	repo := storage.NewMemoryStore()
	return NewService(repo, document.NewMemoryStore(), logger.NewNop()), repo
}

func validInput() CreateInvoiceInput {
	return CreateInvoiceInput{
		SupplierRef: "SUP-1",
		BuyerRef:    "BUY-1",
		Amount:      decimal.RequireFromString("1000.00"),
		Currency:    "USD",
		DueDate:     time.Date(2026, 12, 31, 0, 0, 0, 0, time.UTC),
	}
}

func seed(t *testing.T, repo *storage.MemoryStore, id string, status domain.InvoiceStatus, due time.Time) {
	t.Helper()
	require.NoError(t, repo.CreateInvoice(context.Background(), &domain.Invoice{
		ID:       id,
		Amount:   decimal.RequireFromString("1000.00"),
		Currency: "USD",
		DueDate:  due,
		Status:   status,
	}))
}

func TestNewService(t *testing.T) {
	svc := NewService(storage.NewMemoryStore(), document.NewMemoryStore(), logger.NewNop())

	assert.NotNil(t, svc)
	assert.Implements(t, (*Service)(nil), svc)
}

func TestCreateInvoice_StoresDocument(t *testing.T) {
	// Setup
	repo := storage.NewMemoryStore()
	docs := mocks.NewMockStore(t)
	svc := NewService(repo, docs, logger.NewNop())
	ctx := context.Background()

	in := validInput()
	in.Document = []byte("%PDF-1.7 invoice")
	in.ContentType = "application/pdf"

	// Mock expectations
	docs.EXPECT().
		Put(mock.Anything, in.Document, "application/pdf").
		Return(document.Hash(in.Document), nil).
		Once()

	// Execute
	inv, err := svc.CreateInvoice(ctx, in)

	// Assert
	require.NoError(t, err)
	assert.Len(t, inv.ID, 36)
	assert.Equal(t, domain.InvoiceStatusIssued, inv.Status)
	assert.Equal(t, document.Hash(in.Document), inv.DocumentHash)

	stored, err := repo.GetInvoice(ctx, inv.ID)
	require.NoError(t, err)
	assert.True(t, stored.Amount.Equal(in.Amount))
}

func TestCreateInvoice_DocumentStoreError(t *testing.T) {
	// Setup
	repo := storage.NewMemoryStore()
	docs := mocks.NewMockStore(t)
	svc := NewService(repo, docs, logger.NewNop())

	in := validInput()
	in.Document = []byte("pdf")
	expectedError := domain.NewError(domain.KindUnreachable, "bucket unavailable")

	// Mock expectations
	docs.EXPECT().
		Put(mock.Anything, mock.Anything, "application/octet-stream").
		Return("", expectedError).
		Once()

	// Execute
	inv, err := svc.CreateInvoice(context.Background(), in)

	// Assert
	assert.Nil(t, inv)
	assert.ErrorIs(t, err, domain.ErrUnreachable)
}

func TestCreateInvoice_WithoutDocumentSkipsStore(t *testing.T) {
	// A mock without expectations fails on any call.
	svc := NewService(storage.NewMemoryStore(), mocks.NewMockStore(t), logger.NewNop())

	inv, err := svc.CreateInvoice(context.Background(), validInput())

	require.NoError(t, err)
	assert.Empty(t, inv.DocumentHash)
}

func TestCreateInvoice_Validation(t *testing.T) {
	svc, _ := newTestService(t)

	tests := []struct {
		name   string
		mutate func(in *CreateInvoiceInput)
	}{
		{name: "missing supplier", mutate: func(in *CreateInvoiceInput) { in.SupplierRef = " " }},
		{name: "missing buyer", mutate: func(in *CreateInvoiceInput) { in.BuyerRef = "" }},
		{name: "zero amount", mutate: func(in *CreateInvoiceInput) { in.Amount = decimal.Zero }},
		{name: "negative amount", mutate: func(in *CreateInvoiceInput) { in.Amount = decimal.NewFromInt(-5) }},
		{name: "lowercase currency", mutate: func(in *CreateInvoiceInput) { in.Currency = "usd" }},
		{name: "missing due date", mutate: func(in *CreateInvoiceInput) { in.DueDate = time.Time{} }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := validInput()
			tt.mutate(&in)

			_, err := svc.CreateInvoice(context.Background(), in)
			assert.ErrorIs(t, err, domain.ErrMalformedInput)
		})
	}
}

func TestFundInvoice_Success(t *testing.T) {
	svc, repo := newTestService(t)
	seed(t, repo, "inv-1", domain.InvoiceStatusIssued, time.Now().Add(24*time.Hour))
	ctx := context.Background()

	funding, err := svc.FundInvoice(ctx, "inv-1", "investor-1", decimal.RequireFromString("950.00"))
	require.NoError(t, err)
	assert.Equal(t, domain.FundingStatusActive, funding.Status)

	inv, err := repo.GetInvoice(ctx, "inv-1")
	require.NoError(t, err)
	assert.Equal(t, domain.InvoiceStatusFunded, inv.Status)
	assert.Empty(t, inv.FundingOwner)

	fundings, err := svc.ListFundings(ctx, "inv-1")
	require.NoError(t, err)
	require.Len(t, fundings, 1)
	assert.Equal(t, funding.ID, fundings[0].ID)
}

func TestFundInvoice_Refusals(t *testing.T) {
	svc, repo := newTestService(t)
	due := time.Now().Add(24 * time.Hour)
	seed(t, repo, "inv-issued", domain.InvoiceStatusIssued, due)
	seed(t, repo, "inv-funded", domain.InvoiceStatusFunded, due)
	seed(t, repo, "inv-paid", domain.InvoiceStatusPaid, due)
	seed(t, repo, "inv-cancelled", domain.InvoiceStatusCancelled, due)

	tests := []struct {
		name      string
		invoiceID string
		investor  string
		amount    string
		want      error
	}{
		{name: "already funded", invoiceID: "inv-funded", investor: "i", amount: "10", want: domain.ErrInvalidState},
		{name: "paid", invoiceID: "inv-paid", investor: "i", amount: "10", want: domain.ErrInvalidState},
		{name: "cancelled", invoiceID: "inv-cancelled", investor: "i", amount: "10", want: domain.ErrInvalidState},
		{name: "unknown invoice", invoiceID: "inv-missing", investor: "i", amount: "10", want: domain.ErrNotFound},
		{name: "missing investor", invoiceID: "inv-issued", investor: "", amount: "10", want: domain.ErrMalformedInput},
		{name: "zero amount", invoiceID: "inv-issued", investor: "i", amount: "0", want: domain.ErrMalformedInput},
		{name: "more than invoice", invoiceID: "inv-issued", investor: "i", amount: "1000.01", want: domain.ErrMalformedInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.FundInvoice(context.Background(), tt.invoiceID, tt.investor, decimal.RequireFromString(tt.amount))
			assert.ErrorIs(t, err, tt.want)
		})
	}

	inv, err := repo.GetInvoice(context.Background(), "inv-issued")
	require.NoError(t, err)
	assert.Equal(t, domain.InvoiceStatusIssued, inv.Status)
	assert.Empty(t, inv.FundingOwner)
}

func TestFundInvoice_ConcurrentRequestsHaveOneWinner(t *testing.T) {
	svc, repo := newTestService(t)
	seed(t, repo, "inv-1", domain.InvoiceStatusIssued, time.Now().Add(24*time.Hour))
	ctx := context.Background()

	const workers = 20
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		refusals  int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.FundInvoice(ctx, "inv-1", "investor", decimal.NewFromInt(500))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, domain.ErrAlreadyInProgress), errors.Is(err, domain.ErrInvalidState):
				refusals++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
	assert.Equal(t, workers-1, refusals)

	fundings, err := repo.ListFundings(ctx, "inv-1")
	require.NoError(t, err)
	assert.Len(t, fundings, 1)
}

func TestFundInvoice_StaleSlotIsTakenOver(t *testing.T) {
	repo := storage.NewMemoryStore()
	svc := NewService(repo, document.NewMemoryStore(), logger.NewNop()).(*service)
	seed(t, repo, "inv-1", domain.InvoiceStatusIssued, time.Now().Add(24*time.Hour))
	ctx := context.Background()

	_, err := repo.UpdateInvoice(ctx, "inv-1", func(inv *domain.Invoice) error {
		inv.FundingOwner = "crashed-request"
		return nil
	})
	require.NoError(t, err)

	_, err = svc.FundInvoice(ctx, "inv-1", "investor", decimal.NewFromInt(100))
	assert.ErrorIs(t, err, domain.ErrAlreadyInProgress)

	svc.now = func() time.Time { return time.Now().Add(2 * fundingClaimAge) }
	_, err = svc.FundInvoice(ctx, "inv-1", "investor", decimal.NewFromInt(100))
	assert.NoError(t, err)
}

func TestMarkPaid_ScenarioD(t *testing.T) {
	svc, repo := newTestService(t)
	seed(t, repo, "INV-200", domain.InvoiceStatusFunded, time.Now().Add(24*time.Hour))
	ctx := context.Background()

	funding := &domain.Funding{ID: "f-1", InvoiceID: "INV-200", InvestorID: "investor", Amount: decimal.NewFromInt(900), Status: domain.FundingStatusActive}
	require.NoError(t, repo.CreateFunding(ctx, funding, func(inv *domain.Invoice) error { return nil }))

	inv, err := svc.MarkPaid(ctx, "INV-200")
	require.NoError(t, err)
	assert.Equal(t, domain.InvoiceStatusPaid, inv.Status)

	f, err := repo.GetFunding(ctx, "f-1")
	require.NoError(t, err)
	assert.Equal(t, domain.FundingStatusReleased, f.Status)

	_, err = svc.MarkPaid(ctx, "INV-200")
	assert.ErrorIs(t, err, domain.ErrInvalidState)
}

func TestMarkPaid_Statuses(t *testing.T) {
	svc, repo := newTestService(t)
	due := time.Now().Add(24 * time.Hour)
	seed(t, repo, "inv-issued", domain.InvoiceStatusIssued, due)
	seed(t, repo, "inv-overdue", domain.InvoiceStatusOverdue, due)
	seed(t, repo, "inv-cancelled", domain.InvoiceStatusCancelled, due)

	_, err := svc.MarkPaid(context.Background(), "inv-issued")
	assert.ErrorIs(t, err, domain.ErrInvalidState)

	_, err = svc.MarkPaid(context.Background(), "inv-cancelled")
	assert.ErrorIs(t, err, domain.ErrInvalidState)

	inv, err := svc.MarkPaid(context.Background(), "inv-overdue")
	require.NoError(t, err)
	assert.Equal(t, domain.InvoiceStatusPaid, inv.Status)
}

func TestCancelInvoice(t *testing.T) {
	svc, repo := newTestService(t)
	due := time.Now().Add(24 * time.Hour)
	seed(t, repo, "inv-issued", domain.InvoiceStatusIssued, due)
	seed(t, repo, "inv-funded", domain.InvoiceStatusFunded, due)
	seed(t, repo, "inv-tokenizing", domain.InvoiceStatusIssued, due)
	ctx := context.Background()

	_, err := repo.UpdateInvoice(ctx, "inv-tokenizing", func(inv *domain.Invoice) error {
		inv.TokenizationOwner = "attempt-1"
		return nil
	})
	require.NoError(t, err)

	inv, err := svc.CancelInvoice(ctx, "inv-issued")
	require.NoError(t, err)
	assert.Equal(t, domain.InvoiceStatusCancelled, inv.Status)

	_, err = svc.CancelInvoice(ctx, "inv-issued")
	assert.ErrorIs(t, err, domain.ErrInvalidState)

	_, err = svc.CancelInvoice(ctx, "inv-funded")
	assert.ErrorIs(t, err, domain.ErrInvalidState)

	_, err = svc.CancelInvoice(ctx, "inv-tokenizing")
	assert.ErrorIs(t, err, domain.ErrAlreadyInProgress)
}

func TestCancelInvoice_StaleSlotsDoNotBlock(t *testing.T) {
	repo := storage.NewMemoryStore()
	svc := NewService(repo, document.NewMemoryStore(), logger.NewNop()).(*service)
	due := time.Now().Add(24 * time.Hour)
	ctx := context.Background()

	seed(t, repo, "inv-orphan", domain.InvoiceStatusIssued, due)
	seed(t, repo, "inv-funding", domain.InvoiceStatusIssued, due)
	seed(t, repo, "inv-finished", domain.InvoiceStatusIssued, due)
	seed(t, repo, "inv-resumable", domain.InvoiceStatusIssued, due)

	finished := domain.NewTokenizationAttempt("att-finished", "inv-finished", "0.0.1001", "att-finished", time.Now())
	finished.State = domain.StateFailed
	finished.FailedStep = domain.StepSignature
	finished.FailureKind = domain.KindInvalidSignature
	require.NoError(t, repo.CreateAttempt(ctx, finished))

	resumable := domain.NewTokenizationAttempt("att-resumable", "inv-resumable", "0.0.1001", "att-resumable", time.Now())
	resumable.State = domain.StateFailed
	resumable.Steps[domain.StepPrepare] = domain.StepDone
	resumable.Steps[domain.StepSignature] = domain.StepDone
	resumable.Steps[domain.StepMint] = domain.StepFailed
	resumable.FailedStep = domain.StepMint
	resumable.FailureKind = domain.KindUnreachable
	require.NoError(t, repo.CreateAttempt(ctx, resumable))

	for id, set := range map[string]func(inv *domain.Invoice){
		"inv-orphan":    func(inv *domain.Invoice) { inv.TokenizationOwner = "crashed-attempt" },
		"inv-funding":   func(inv *domain.Invoice) { inv.FundingOwner = "crashed-request" },
		"inv-finished":  func(inv *domain.Invoice) { inv.TokenizationOwner = "att-finished" },
		"inv-resumable": func(inv *domain.Invoice) { inv.TokenizationOwner = "att-resumable" },
	} {
		_, err := repo.UpdateInvoice(ctx, id, func(inv *domain.Invoice) error {
			set(inv)
			return nil
		})
		require.NoError(t, err)
	}

	// Fresh claims are honored.
	_, err := svc.CancelInvoice(ctx, "inv-orphan")
	assert.ErrorIs(t, err, domain.ErrAlreadyInProgress)
	_, err = svc.CancelInvoice(ctx, "inv-funding")
	assert.ErrorIs(t, err, domain.ErrAlreadyInProgress)

	// A finished attempt never holds the invoice.
	inv, err := svc.CancelInvoice(ctx, "inv-finished")
	require.NoError(t, err)
	assert.Equal(t, domain.InvoiceStatusCancelled, inv.Status)
	assert.Empty(t, inv.TokenizationOwner)

	svc.now = func() time.Time { return time.Now().Add(2 * tokenizationClaimAge) }

	for _, id := range []string{"inv-orphan", "inv-funding"} {
		inv, err := svc.CancelInvoice(ctx, id)
		require.NoError(t, err, id)
		assert.Equal(t, domain.InvoiceStatusCancelled, inv.Status)
		assert.Empty(t, inv.TokenizationOwner)
		assert.Empty(t, inv.FundingOwner)
	}

	// A failed attempt that can still be resumed keeps holding it.
	_, err = svc.CancelInvoice(ctx, "inv-resumable")
	assert.ErrorIs(t, err, domain.ErrAlreadyInProgress)
}

func TestRefundFunding(t *testing.T) {
	svc, repo := newTestService(t)
	seed(t, repo, "inv-1", domain.InvoiceStatusIssued, time.Now().Add(24*time.Hour))
	ctx := context.Background()

	funding, err := svc.FundInvoice(ctx, "inv-1", "investor", decimal.NewFromInt(100))
	require.NoError(t, err)

	refunded, err := svc.RefundFunding(ctx, funding.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.FundingStatusRefunded, refunded.Status)

	_, err = svc.RefundFunding(ctx, funding.ID)
	assert.ErrorIs(t, err, domain.ErrInvalidState)

	_, err = svc.RefundFunding(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSweepOverdue(t *testing.T) {
	svc, repo := newTestService(t)
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	seed(t, repo, "inv-late", domain.InvoiceStatusFunded, now.Add(-time.Hour))
	seed(t, repo, "inv-future", domain.InvoiceStatusFunded, now.Add(time.Hour))
	seed(t, repo, "inv-issued-late", domain.InvoiceStatusIssued, now.Add(-time.Hour))
	seed(t, repo, "inv-paid-late", domain.InvoiceStatusPaid, now.Add(-time.Hour))
	ctx := context.Background()

	flagged, err := svc.SweepOverdue(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, 1, flagged)

	expected := map[string]domain.InvoiceStatus{
		"inv-late":        domain.InvoiceStatusOverdue,
		"inv-future":      domain.InvoiceStatusFunded,
		"inv-issued-late": domain.InvoiceStatusIssued,
		"inv-paid-late":   domain.InvoiceStatusPaid,
	}
	for id, want := range expected {
		inv, err := repo.GetInvoice(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, want, inv.Status, id)
	}

	flagged, err = svc.SweepOverdue(ctx, now)
	require.NoError(t, err)
	assert.Zero(t, flagged)
}

func TestSweeper(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := NewSweeper(svc, "not a schedule", logger.NewNop())
	assert.Error(t, err)

	sweeper, err := NewSweeper(svc, "@every 1h", logger.NewNop())
	require.NoError(t, err)

	sweeper.Start()
	sweeper.Start()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.NoError(t, sweeper.Stop(ctx))
	assert.NoError(t, sweeper.Stop(ctx))
}
