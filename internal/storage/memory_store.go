package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/grachmannico95/invoice-proof/internal/domain"
)

// MemoryStore keeps every record behind one lock, so each Update* call is
// a single atomic read-modify-write.
type MemoryStore struct {
	invoices map[string]*domain.Invoice
	fundings map[string]*domain.Funding
	attempts map[string]*domain.TokenizationAttempt
	proofs   map[string][]domain.ProofRecord
	mu       sync.RWMutex
	now      func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		invoices: make(map[string]*domain.Invoice),
		fundings: make(map[string]*domain.Funding),
		attempts: make(map[string]*domain.TokenizationAttempt),
		proofs:   make(map[string][]domain.ProofRecord),
		now:      time.Now,
	}
}

func (s *MemoryStore) CreateInvoice(ctx context.Context, inv *domain.Invoice) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.invoices[inv.ID]; exists {
		return domain.Errorf(domain.KindInvalidState, "invoice %s already exists", inv.ID)
	}

	s.invoices[inv.ID] = inv.Clone()
	return nil
}

func (s *MemoryStore) GetInvoice(ctx context.Context, invoiceID string) (*domain.Invoice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	inv, exists := s.invoices[invoiceID]
	if !exists {
		return nil, domain.Errorf(domain.KindNotFound, "invoice %s", invoiceID)
	}
	return inv.Clone(), nil
}

func (s *MemoryStore) UpdateInvoice(ctx context.Context, invoiceID string, fn func(inv *domain.Invoice) error) (*domain.Invoice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	inv, exists := s.invoices[invoiceID]
	if !exists {
		return nil, domain.Errorf(domain.KindNotFound, "invoice %s", invoiceID)
	}

	working := inv.Clone()
	if err := fn(working); err != nil {
		return nil, err
	}
	working.UpdatedAt = s.now()
	s.invoices[invoiceID] = working

	return working.Clone(), nil
}

func (s *MemoryStore) ListInvoicesDueBefore(ctx context.Context, t time.Time, statuses ...domain.InvoiceStatus) ([]*domain.Invoice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Invoice
	for _, inv := range s.invoices {
		if !inv.DueDate.Before(t) {
			continue
		}
		if len(statuses) > 0 && !containsStatus(statuses, inv.Status) {
			continue
		}
		result = append(result, inv.Clone())
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].DueDate.Before(result[j].DueDate)
	})
	return result, nil
}

func (s *MemoryStore) CreateFunding(ctx context.Context, f *domain.Funding, guard func(inv *domain.Invoice) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	inv, exists := s.invoices[f.InvoiceID]
	if !exists {
		return domain.Errorf(domain.KindNotFound, "invoice %s", f.InvoiceID)
	}

	working := inv.Clone()
	if err := guard(working); err != nil {
		return err
	}
	working.UpdatedAt = s.now()
	s.invoices[f.InvoiceID] = working

	c := *f
	s.fundings[f.ID] = &c
	return nil
}

func (s *MemoryStore) GetFunding(ctx context.Context, fundingID string) (*domain.Funding, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	f, exists := s.fundings[fundingID]
	if !exists {
		return nil, domain.Errorf(domain.KindNotFound, "funding %s", fundingID)
	}
	c := *f
	return &c, nil
}

func (s *MemoryStore) ListFundings(ctx context.Context, invoiceID string) ([]*domain.Funding, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Funding
	for _, f := range s.fundings {
		if f.InvoiceID == invoiceID {
			c := *f
			result = append(result, &c)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

func (s *MemoryStore) UpdateFunding(ctx context.Context, fundingID string, fn func(f *domain.Funding) error) (*domain.Funding, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, exists := s.fundings[fundingID]
	if !exists {
		return nil, domain.Errorf(domain.KindNotFound, "funding %s", fundingID)
	}

	working := *f
	if err := fn(&working); err != nil {
		return nil, err
	}
	working.UpdatedAt = s.now()
	s.fundings[fundingID] = &working

	c := working
	return &c, nil
}

func (s *MemoryStore) SettleFundings(ctx context.Context, invoiceID string, guard func(inv *domain.Invoice) error, from, to domain.FundingStatus) (*domain.Invoice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	inv, exists := s.invoices[invoiceID]
	if !exists {
		return nil, domain.Errorf(domain.KindNotFound, "invoice %s", invoiceID)
	}

	working := inv.Clone()
	if err := guard(working); err != nil {
		return nil, err
	}

	now := s.now()
	working.UpdatedAt = now
	s.invoices[invoiceID] = working

	for _, f := range s.fundings {
		if f.InvoiceID == invoiceID && f.Status == from {
			f.Status = to
			f.UpdatedAt = now
		}
	}

	return working.Clone(), nil
}

func (s *MemoryStore) CreateAttempt(ctx context.Context, a *domain.TokenizationAttempt) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.attempts[a.ID]; exists {
		return domain.Errorf(domain.KindInvalidState, "attempt %s already exists", a.ID)
	}

	s.attempts[a.ID] = a.Clone()
	return nil
}

func (s *MemoryStore) GetAttempt(ctx context.Context, attemptID string) (*domain.TokenizationAttempt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, exists := s.attempts[attemptID]
	if !exists {
		return nil, domain.Errorf(domain.KindNotFound, "attempt %s", attemptID)
	}
	return a.Clone(), nil
}

func (s *MemoryStore) UpdateAttempt(ctx context.Context, attemptID string, fn func(a *domain.TokenizationAttempt) error) (*domain.TokenizationAttempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, exists := s.attempts[attemptID]
	if !exists {
		return nil, domain.Errorf(domain.KindNotFound, "attempt %s", attemptID)
	}

	working := a.Clone()
	if err := fn(working); err != nil {
		return nil, err
	}
	working.UpdatedAt = s.now()
	s.attempts[attemptID] = working

	return working.Clone(), nil
}

func (s *MemoryStore) ListAttemptsByState(ctx context.Context, states ...domain.PipelineState) ([]*domain.TokenizationAttempt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.TokenizationAttempt
	for _, a := range s.attempts {
		for _, st := range states {
			if a.State == st {
				result = append(result, a.Clone())
				break
			}
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

func (s *MemoryStore) CommitStep(ctx context.Context, attemptID string, proof domain.ProofRecord, fn func(a *domain.TokenizationAttempt, inv *domain.Invoice) error) (*domain.TokenizationAttempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, exists := s.attempts[attemptID]
	if !exists {
		return nil, domain.Errorf(domain.KindNotFound, "attempt %s", attemptID)
	}
	inv, exists := s.invoices[a.InvoiceID]
	if !exists {
		return nil, domain.Errorf(domain.KindNotFound, "invoice %s", a.InvoiceID)
	}

	workingAttempt := a.Clone()
	workingInvoice := inv.Clone()
	if err := fn(workingAttempt, workingInvoice); err != nil {
		return nil, err
	}

	now := s.now()
	workingAttempt.UpdatedAt = now
	workingInvoice.UpdatedAt = now

	s.attempts[attemptID] = workingAttempt
	s.invoices[a.InvoiceID] = workingInvoice
	s.proofs[a.InvoiceID] = append(s.proofs[a.InvoiceID], proof)

	return workingAttempt.Clone(), nil
}

func (s *MemoryStore) ListProofs(ctx context.Context, invoiceID string) ([]domain.ProofRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	records := s.proofs[invoiceID]
	result := make([]domain.ProofRecord, len(records))
	copy(result, records)
	return result, nil
}

func containsStatus(statuses []domain.InvoiceStatus, status domain.InvoiceStatus) bool {
	for _, s := range statuses {
		if s == status {
			return true
		}
	}
	return false
}
