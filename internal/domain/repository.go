package domain

import (
	"context"
	"time"
)

// Every Update* method is an atomic read-modify-write: fn receives the
// current record and its changes are persisted only if fn returns nil.

type InvoiceRepository interface {
	CreateInvoice(ctx context.Context, inv *Invoice) error
	GetInvoice(ctx context.Context, invoiceID string) (*Invoice, error)
	UpdateInvoice(ctx context.Context, invoiceID string, fn func(inv *Invoice) error) (*Invoice, error)
	ListInvoicesDueBefore(ctx context.Context, t time.Time, statuses ...InvoiceStatus) ([]*Invoice, error)
}

type FundingRepository interface {
	// CreateFunding runs guard against the locked invoice and inserts f in
	// the same write.
	CreateFunding(ctx context.Context, f *Funding, guard func(inv *Invoice) error) error
	GetFunding(ctx context.Context, fundingID string) (*Funding, error)
	ListFundings(ctx context.Context, invoiceID string) ([]*Funding, error)
	UpdateFunding(ctx context.Context, fundingID string, fn func(f *Funding) error) (*Funding, error)
	// SettleFundings runs guard against the locked invoice and moves every
	// funding of the invoice in status from to status to, in one write.
	SettleFundings(ctx context.Context, invoiceID string, guard func(inv *Invoice) error, from, to FundingStatus) (*Invoice, error)
}

type AttemptRepository interface {
	CreateAttempt(ctx context.Context, a *TokenizationAttempt) error
	GetAttempt(ctx context.Context, attemptID string) (*TokenizationAttempt, error)
	UpdateAttempt(ctx context.Context, attemptID string, fn func(a *TokenizationAttempt) error) (*TokenizationAttempt, error)
	ListAttemptsByState(ctx context.Context, states ...PipelineState) ([]*TokenizationAttempt, error)
	// CommitStep applies fn to the attempt and its invoice and appends proof,
	// all in one durable write.
	CommitStep(ctx context.Context, attemptID string, proof ProofRecord, fn func(a *TokenizationAttempt, inv *Invoice) error) (*TokenizationAttempt, error)
}

type ProofRepository interface {
	ListProofs(ctx context.Context, invoiceID string) ([]ProofRecord, error)
}

type Repository interface {
	InvoiceRepository
	FundingRepository
	AttemptRepository
	ProofRepository
}
