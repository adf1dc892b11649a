package proof

import (
	"context"
	"sort"

	"github.com/grachmannico95/invoice-proof/internal/domain"
)

// Summary is the audit view of one invoice: its ledger identifiers and
// every proof recorded for it, oldest first.
type Summary struct {
	InvoiceID    string               `json:"invoice_id"`
	Status       domain.InvoiceStatus `json:"status"`
	TokenID      *string              `json:"token_id,omitempty"`
	SerialNumber *int64               `json:"serial_number,omitempty"`
	FileID       *string              `json:"file_id,omitempty"`
	TopicID      *string              `json:"topic_id,omitempty"`
	Tokenized    bool                 `json:"tokenized"`
	Proofs       []domain.ProofRecord `json:"proofs"`
}

// Ledger is the read side over recorded proofs.
type Ledger struct {
	repo domain.Repository
}

func NewLedger(repo domain.Repository) *Ledger {
	return &Ledger{repo: repo}
}

func (l *Ledger) List(ctx context.Context, invoiceID string) ([]domain.ProofRecord, error) {
	if _, err := l.repo.GetInvoice(ctx, invoiceID); err != nil {
		return nil, err
	}
	proofs, err := l.repo.ListProofs(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	sortProofs(proofs)
	return proofs, nil
}

func (l *Ledger) Summary(ctx context.Context, invoiceID string) (*Summary, error) {
	inv, err := l.repo.GetInvoice(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	proofs, err := l.repo.ListProofs(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	if err := Check(inv, proofs); err != nil {
		return nil, err
	}
	sortProofs(proofs)

	return &Summary{
		InvoiceID:    inv.ID,
		Status:       inv.Status,
		TokenID:      inv.TokenID,
		SerialNumber: inv.SerialNumber,
		FileID:       inv.FileID,
		TopicID:      inv.TopicID,
		Tokenized:    has(proofs, domain.ProofKindMint) && has(proofs, domain.ProofKindFile) && has(proofs, domain.ProofKindConsensus),
		Proofs:       proofs,
	}, nil
}

// Check verifies that the token and file identifiers on the invoice are
// each backed by their proof and that no such proof exists without its
// identifier. The topic id may be assigned before anything is logged, so
// only a consensus proof without a topic is inconsistent.
func Check(inv *domain.Invoice, proofs []domain.ProofRecord) error {
	pairs := []struct {
		kind domain.ProofKind
		set  bool
		name string
	}{
		{domain.ProofKindMint, inv.TokenID != nil, "token_id"},
		{domain.ProofKindFile, inv.FileID != nil, "file_id"},
	}
	for _, p := range pairs {
		if p.set != has(proofs, p.kind) {
			return domain.Errorf(domain.KindInternal, "invoice %s: %s set=%t but %s proof present=%t",
				inv.ID, p.name, p.set, p.kind, !p.set)
		}
	}
	if inv.TopicID == nil && has(proofs, domain.ProofKindConsensus) {
		return domain.Errorf(domain.KindInternal, "invoice %s: consensus proof present without topic_id", inv.ID)
	}
	return nil
}

func has(proofs []domain.ProofRecord, kind domain.ProofKind) bool {
	for _, p := range proofs {
		if p.Kind == kind {
			return true
		}
	}
	return false
}

func sortProofs(proofs []domain.ProofRecord) {
	sort.SliceStable(proofs, func(i, j int) bool {
		return proofs[i].Timestamp.Before(proofs[j].Timestamp)
	})
}
