package storage

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/grachmannico95/invoice-proof/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newInvoice(id string) *domain.Invoice {
	return &domain.Invoice{
		ID:          id,
		SupplierRef: "SUP-1",
		BuyerRef:    "BUY-1",
		Amount:      decimal.NewFromInt(1000),
		Currency:    "USD",
		DueDate:     time.Date(2026, 12, 1, 0, 0, 0, 0, time.UTC),
		Status:      domain.InvoiceStatusIssued,
		CreatedAt:   time.Now(),
	}
}

func TestMemoryStore_CreateInvoice(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	err := store.CreateInvoice(ctx, newInvoice("INV-1"))
	require.NoError(t, err)

	inv, err := store.GetInvoice(ctx, "INV-1")
	require.NoError(t, err)
	assert.Equal(t, "INV-1", inv.ID)
	assert.Equal(t, domain.InvoiceStatusIssued, inv.Status)
	assert.Nil(t, inv.TokenID)

	err = store.CreateInvoice(ctx, newInvoice("INV-1"))
	assert.ErrorIs(t, err, domain.ErrInvalidState)
}

func TestMemoryStore_GetInvoice_NotFound(t *testing.T) {
	store := NewMemoryStore()

	_, err := store.GetInvoice(context.Background(), "nonexistent")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestMemoryStore_UpdateInvoice_FnErrorLeavesRecord(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, store.CreateInvoice(ctx, newInvoice("INV-1")))

	boom := errors.New("boom")
	_, err := store.UpdateInvoice(ctx, "INV-1", func(inv *domain.Invoice) error {
		inv.Status = domain.InvoiceStatusPaid
		return boom
	})
	assert.ErrorIs(t, err, boom)

	inv, err := store.GetInvoice(ctx, "INV-1")
	require.NoError(t, err)
	assert.Equal(t, domain.InvoiceStatusIssued, inv.Status)
}

func TestMemoryStore_GetInvoice_ReturnsCopy(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, store.CreateInvoice(ctx, newInvoice("INV-1")))

	inv, err := store.GetInvoice(ctx, "INV-1")
	require.NoError(t, err)
	tokenID := "0.0.1"
	inv.TokenID = &tokenID

	again, err := store.GetInvoice(ctx, "INV-1")
	require.NoError(t, err)
	assert.Nil(t, again.TokenID)
}

func TestMemoryStore_UpdateInvoice_OwnerCompareAndSet(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, store.CreateInvoice(ctx, newInvoice("INV-1")))

	const workers = 20
	var wg sync.WaitGroup
	var mu sync.Mutex
	winners := 0

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := store.UpdateInvoice(ctx, "INV-1", func(inv *domain.Invoice) error {
				if inv.TokenizationOwner != "" {
					return domain.ErrAlreadyInProgress
				}
				inv.TokenizationOwner = "attempt"
				return nil
			})
			if err == nil {
				mu.Lock()
				winners++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, winners)
}

func TestMemoryStore_ListInvoicesDueBefore(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	early := newInvoice("INV-EARLY")
	early.DueDate = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	early.Status = domain.InvoiceStatusFunded
	late := newInvoice("INV-LATE")
	late.DueDate = time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC)
	late.Status = domain.InvoiceStatusFunded
	issued := newInvoice("INV-ISSUED")
	issued.DueDate = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, store.CreateInvoice(ctx, early))
	require.NoError(t, store.CreateInvoice(ctx, late))
	require.NoError(t, store.CreateInvoice(ctx, issued))

	due, err := store.ListInvoicesDueBefore(ctx, time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC), domain.InvoiceStatusFunded)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, "INV-EARLY", due[0].ID)
}

func TestMemoryStore_CreateFunding_GuardRejects(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, store.CreateInvoice(ctx, newInvoice("INV-1")))

	f := &domain.Funding{ID: "F-1", InvoiceID: "INV-1", Status: domain.FundingStatusActive}
	err := store.CreateFunding(ctx, f, func(inv *domain.Invoice) error {
		return domain.ErrInvalidState
	})
	assert.ErrorIs(t, err, domain.ErrInvalidState)

	_, err = store.GetFunding(ctx, "F-1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestMemoryStore_SettleFundings(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, store.CreateInvoice(ctx, newInvoice("INV-1")))

	for _, id := range []string{"F-1", "F-2"} {
		f := &domain.Funding{ID: id, InvoiceID: "INV-1", Status: domain.FundingStatusActive}
		require.NoError(t, store.CreateFunding(ctx, f, func(inv *domain.Invoice) error {
			inv.Status = domain.InvoiceStatusFunded
			return nil
		}))
	}
	_, err := store.UpdateFunding(ctx, "F-2", func(f *domain.Funding) error {
		f.Status = domain.FundingStatusRefunded
		return nil
	})
	require.NoError(t, err)

	inv, err := store.SettleFundings(ctx, "INV-1", func(inv *domain.Invoice) error {
		inv.Status = domain.InvoiceStatusPaid
		return nil
	}, domain.FundingStatusActive, domain.FundingStatusReleased)
	require.NoError(t, err)
	assert.Equal(t, domain.InvoiceStatusPaid, inv.Status)

	f1, err := store.GetFunding(ctx, "F-1")
	require.NoError(t, err)
	assert.Equal(t, domain.FundingStatusReleased, f1.Status)

	f2, err := store.GetFunding(ctx, "F-2")
	require.NoError(t, err)
	assert.Equal(t, domain.FundingStatusRefunded, f2.Status)
}

func TestMemoryStore_CommitStep(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, store.CreateInvoice(ctx, newInvoice("INV-1")))
	require.NoError(t, store.CreateAttempt(ctx, domain.NewTokenizationAttempt("A-1", "INV-1", "0.0.1001", "tok", time.Now())))

	proof := domain.ProofRecord{ID: "P-1", InvoiceID: "INV-1", AttemptID: "A-1", Kind: domain.ProofKindMint, LedgerTransactionID: "0.0.2@1.1"}
	a, err := store.CommitStep(ctx, "A-1", proof, func(a *domain.TokenizationAttempt, inv *domain.Invoice) error {
		tokenID := "0.0.9001"
		serial := int64(1)
		a.Steps[domain.StepMint] = domain.StepDone
		inv.TokenID = &tokenID
		inv.SerialNumber = &serial
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, domain.StepDone, a.Steps[domain.StepMint])

	inv, err := store.GetInvoice(ctx, "INV-1")
	require.NoError(t, err)
	require.NotNil(t, inv.TokenID)
	assert.Equal(t, "0.0.9001", *inv.TokenID)

	proofs, err := store.ListProofs(ctx, "INV-1")
	require.NoError(t, err)
	require.Len(t, proofs, 1)
	assert.Equal(t, domain.ProofKindMint, proofs[0].Kind)
}

func TestMemoryStore_CommitStep_FnErrorWritesNothing(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, store.CreateInvoice(ctx, newInvoice("INV-1")))
	require.NoError(t, store.CreateAttempt(ctx, domain.NewTokenizationAttempt("A-1", "INV-1", "0.0.1001", "tok", time.Now())))

	proof := domain.ProofRecord{ID: "P-1", InvoiceID: "INV-1", Kind: domain.ProofKindMint}
	_, err := store.CommitStep(ctx, "A-1", proof, func(a *domain.TokenizationAttempt, inv *domain.Invoice) error {
		tokenID := "0.0.9001"
		inv.TokenID = &tokenID
		return domain.ErrInvalidState
	})
	assert.ErrorIs(t, err, domain.ErrInvalidState)

	inv, err := store.GetInvoice(ctx, "INV-1")
	require.NoError(t, err)
	assert.Nil(t, inv.TokenID)

	proofs, err := store.ListProofs(ctx, "INV-1")
	require.NoError(t, err)
	assert.Empty(t, proofs)
}

func TestMemoryStore_ListAttemptsByState(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	minting := domain.NewTokenizationAttempt("A-1", "INV-1", "0.0.1001", "t1", time.Now())
	minting.State = domain.StateMinting
	done := domain.NewTokenizationAttempt("A-2", "INV-2", "0.0.1001", "t2", time.Now())
	done.State = domain.StateComplete

	require.NoError(t, store.CreateAttempt(ctx, minting))
	require.NoError(t, store.CreateAttempt(ctx, done))

	stranded, err := store.ListAttemptsByState(ctx, domain.StateMinting, domain.StateLogging)
	require.NoError(t, err)
	require.Len(t, stranded, 1)
	assert.Equal(t, "A-1", stranded[0].ID)
}
