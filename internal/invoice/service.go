package invoice

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/grachmannico95/invoice-proof/internal/document"
	"github.com/grachmannico95/invoice-proof/internal/domain"
	"github.com/grachmannico95/invoice-proof/internal/metrics"
	"github.com/grachmannico95/invoice-proof/pkg/logger"
	"github.com/shopspring/decimal"
)

var currencyPattern = regexp.MustCompile(`^[A-Z]{3}$`)

// fundingClaimAge is how long a funding slot is honored before it is
// considered left behind by a crashed request.
const fundingClaimAge = time.Minute

// tokenizationClaimAge is how long a tokenization claim whose attempt was
// never recorded is honored.
const tokenizationClaimAge = time.Minute

var errNotFundingOwner = errors.New("request does not hold the funding slot")

type CreateInvoiceInput struct {
	SupplierRef string
	BuyerRef    string
	Amount      decimal.Decimal
	Currency    string
	DueDate     time.Time
	Document    []byte
	ContentType string
}

type Service interface {
	CreateInvoice(ctx context.Context, in CreateInvoiceInput) (*domain.Invoice, error)
	GetInvoice(ctx context.Context, invoiceID string) (*domain.Invoice, error)
	CancelInvoice(ctx context.Context, invoiceID string) (*domain.Invoice, error)
	FundInvoice(ctx context.Context, invoiceID, investorID string, amount decimal.Decimal) (*domain.Funding, error)
	ListFundings(ctx context.Context, invoiceID string) ([]*domain.Funding, error)
	RefundFunding(ctx context.Context, fundingID string) (*domain.Funding, error)
	MarkPaid(ctx context.Context, invoiceID string) (*domain.Invoice, error)
	SweepOverdue(ctx context.Context, now time.Time) (int, error)
}

type service struct {
	repo      domain.Repository
	documents document.Store
	logger    *logger.Logger
	now       func() time.Time
}

func NewService(repo domain.Repository, documents document.Store, log *logger.Logger) Service {
	return &service{
		repo:      repo,
		documents: documents,
		logger:    log,
		now:       time.Now,
	}
}

func (s *service) CreateInvoice(ctx context.Context, in CreateInvoiceInput) (*domain.Invoice, error) {
	if err := validateCreate(in); err != nil {
		return nil, err
	}

	invoiceID := uuid.New().String()
	ctx = logger.WithInvoiceID(ctx, invoiceID)

	var hash string
	if len(in.Document) > 0 {
		contentType := in.ContentType
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		h, err := s.documents.Put(ctx, in.Document, contentType)
		if err != nil {
			s.logger.Error(ctx, "Failed to store invoice document",
				"error", err,
			)
			return nil, err
		}
		hash = h
	}

	now := s.now().UTC()
	inv := &domain.Invoice{
		ID:           invoiceID,
		SupplierRef:  strings.TrimSpace(in.SupplierRef),
		BuyerRef:     strings.TrimSpace(in.BuyerRef),
		Amount:       in.Amount,
		Currency:     in.Currency,
		DueDate:      in.DueDate.UTC(),
		Status:       domain.InvoiceStatusIssued,
		DocumentHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.repo.CreateInvoice(ctx, inv); err != nil {
		s.logger.Error(ctx, "Failed to create invoice",
			"error", err,
		)
		return nil, err
	}

	s.logger.Info(ctx, "Invoice issued",
		"amount", inv.Amount.String(),
		"currency", inv.Currency,
		"document_hash", hash,
	)

	return inv, nil
}

func validateCreate(in CreateInvoiceInput) error {
	switch {
	case strings.TrimSpace(in.SupplierRef) == "":
		return domain.NewError(domain.KindMalformedInput, "supplier_ref is required")
	case strings.TrimSpace(in.BuyerRef) == "":
		return domain.NewError(domain.KindMalformedInput, "buyer_ref is required")
	case !in.Amount.IsPositive():
		return domain.NewError(domain.KindMalformedInput, "amount must be positive")
	case !currencyPattern.MatchString(in.Currency):
		return domain.Errorf(domain.KindMalformedInput, "currency %q is not an ISO 4217 code", in.Currency)
	case in.DueDate.IsZero():
		return domain.NewError(domain.KindMalformedInput, "due_date is required")
	}
	return nil
}

func (s *service) GetInvoice(ctx context.Context, invoiceID string) (*domain.Invoice, error) {
	ctx = logger.WithInvoiceID(ctx, invoiceID)

	s.logger.Debug(ctx, "Getting invoice")

	return s.repo.GetInvoice(ctx, invoiceID)
}

// CancelInvoice refuses while a tokenization or funding holds the invoice.
// Slots left behind by finished attempts or crashed requests do not block
// and are cleared by the cancellation.
func (s *service) CancelInvoice(ctx context.Context, invoiceID string) (*domain.Invoice, error) {
	ctx = logger.WithInvoiceID(ctx, invoiceID)

	current, err := s.repo.GetInvoice(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	staleOwner := ""
	if owner := current.TokenizationOwner; owner != "" {
		stale, err := s.tokenizationSlotStale(ctx, current)
		if err != nil {
			return nil, err
		}
		if stale {
			staleOwner = owner
		}
	}

	inv, err := s.repo.UpdateInvoice(ctx, invoiceID, func(inv *domain.Invoice) error {
		if owner := inv.TokenizationOwner; owner != "" && owner != staleOwner {
			return domain.Errorf(domain.KindAlreadyInProgress, "invoice %s is being tokenized", invoiceID)
		}
		if inv.FundingOwner != "" && s.now().Sub(inv.UpdatedAt) < fundingClaimAge {
			return domain.Errorf(domain.KindAlreadyInProgress, "invoice %s is being funded", invoiceID)
		}
		if err := Transition(inv, domain.InvoiceStatusCancelled); err != nil {
			return err
		}
		inv.TokenizationOwner = ""
		inv.FundingOwner = ""
		return nil
	})
	if err != nil {
		s.logger.Warn(ctx, "Invoice cancellation refused",
			"error", err,
		)
		return nil, err
	}

	s.recordTransition(ctx, domain.InvoiceStatusIssued, domain.InvoiceStatusCancelled)
	return inv, nil
}

// tokenizationSlotStale reports whether the invoice's tokenization owner no
// longer holds it: the attempt finished and cannot be resumed, or it was
// never created and the claim is older than tokenizationClaimAge.
func (s *service) tokenizationSlotStale(ctx context.Context, inv *domain.Invoice) (bool, error) {
	a, err := s.repo.GetAttempt(ctx, inv.TokenizationOwner)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return s.now().Sub(inv.UpdatedAt) >= tokenizationClaimAge, nil
	case err != nil:
		return false, err
	}
	return a.State.Terminal() && !a.Resumable(), nil
}

// FundInvoice holds the invoice's funding slot while the funding is
// written, so two concurrent requests cannot both fund an ISSUED invoice.
func (s *service) FundInvoice(ctx context.Context, invoiceID, investorID string, amount decimal.Decimal) (*domain.Funding, error) {
	ctx = logger.WithInvoiceID(ctx, invoiceID)

	if strings.TrimSpace(investorID) == "" {
		return nil, domain.NewError(domain.KindMalformedInput, "investor_id is required")
	}
	if !amount.IsPositive() {
		return nil, domain.NewError(domain.KindMalformedInput, "amount must be positive")
	}

	fundingID := uuid.New().String()

	_, err := s.repo.UpdateInvoice(ctx, invoiceID, func(inv *domain.Invoice) error {
		if inv.FundingOwner != "" && s.now().Sub(inv.UpdatedAt) < fundingClaimAge {
			return domain.Errorf(domain.KindAlreadyInProgress, "invoice %s is already being funded", invoiceID)
		}
		if inv.Status != domain.InvoiceStatusIssued {
			return domain.Errorf(domain.KindInvalidState, "invoice %s is %s, only ISSUED invoices can be funded", invoiceID, inv.Status)
		}
		if amount.GreaterThan(inv.Amount) {
			return domain.Errorf(domain.KindMalformedInput, "funding amount %s exceeds invoice amount %s", amount, inv.Amount)
		}
		inv.FundingOwner = fundingID
		return nil
	})
	if err != nil {
		s.logger.Warn(ctx, "Funding refused",
			"investor_id", investorID,
			"error", err,
		)
		return nil, err
	}

	now := s.now().UTC()
	funding := &domain.Funding{
		ID:         fundingID,
		InvoiceID:  invoiceID,
		InvestorID: investorID,
		Amount:     amount,
		Status:     domain.FundingStatusActive,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	err = s.repo.CreateFunding(ctx, funding, func(inv *domain.Invoice) error {
		if inv.FundingOwner != fundingID {
			return domain.Errorf(domain.KindAlreadyInProgress, "funding slot of invoice %s was taken over", invoiceID)
		}
		inv.FundingOwner = ""
		return Transition(inv, domain.InvoiceStatusFunded)
	})
	if err != nil {
		s.releaseFunding(ctx, invoiceID, fundingID)
		s.logger.Error(ctx, "Failed to create funding",
			"funding_id", fundingID,
			"error", err,
		)
		return nil, err
	}

	s.recordTransition(ctx, domain.InvoiceStatusIssued, domain.InvoiceStatusFunded)
	s.logger.Info(ctx, "Invoice funded",
		"funding_id", fundingID,
		"investor_id", investorID,
		"amount", amount.String(),
	)

	return funding, nil
}

func (s *service) releaseFunding(ctx context.Context, invoiceID, fundingID string) {
	_, err := s.repo.UpdateInvoice(ctx, invoiceID, func(inv *domain.Invoice) error {
		if inv.FundingOwner != fundingID {
			return errNotFundingOwner
		}
		inv.FundingOwner = ""
		return nil
	})
	if err != nil && !errors.Is(err, errNotFundingOwner) {
		s.logger.Warn(ctx, "Failed to release funding slot",
			"funding_id", fundingID,
			"error", err,
		)
	}
}

func (s *service) ListFundings(ctx context.Context, invoiceID string) ([]*domain.Funding, error) {
	if _, err := s.repo.GetInvoice(ctx, invoiceID); err != nil {
		return nil, err
	}
	return s.repo.ListFundings(ctx, invoiceID)
}

func (s *service) RefundFunding(ctx context.Context, fundingID string) (*domain.Funding, error) {
	f, err := s.repo.UpdateFunding(ctx, fundingID, func(f *domain.Funding) error {
		if f.Status != domain.FundingStatusActive {
			return domain.Errorf(domain.KindInvalidState, "funding %s is %s, only ACTIVE fundings can be refunded", fundingID, f.Status)
		}
		f.Status = domain.FundingStatusRefunded
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info(logger.WithInvoiceID(ctx, f.InvoiceID), "Funding refunded",
		"funding_id", fundingID,
		"amount", f.Amount.String(),
	)
	return f, nil
}

// MarkPaid settles a funded invoice and releases its active fundings in
// the same write.
func (s *service) MarkPaid(ctx context.Context, invoiceID string) (*domain.Invoice, error) {
	ctx = logger.WithInvoiceID(ctx, invoiceID)

	var from domain.InvoiceStatus
	inv, err := s.repo.SettleFundings(ctx, invoiceID, func(inv *domain.Invoice) error {
		from = inv.Status
		return Transition(inv, domain.InvoiceStatusPaid)
	}, domain.FundingStatusActive, domain.FundingStatusReleased)
	if err != nil {
		s.logger.Warn(ctx, "Mark paid refused",
			"error", err,
		)
		return nil, err
	}

	s.recordTransition(ctx, from, domain.InvoiceStatusPaid)
	return inv, nil
}

// SweepOverdue flags funded invoices whose due date is before now.
func (s *service) SweepOverdue(ctx context.Context, now time.Time) (int, error) {
	due, err := s.repo.ListInvoicesDueBefore(ctx, now, domain.InvoiceStatusFunded)
	if err != nil {
		return 0, err
	}

	flagged := 0
	for _, candidate := range due {
		invCtx := logger.WithInvoiceID(ctx, candidate.ID)
		_, err := s.repo.UpdateInvoice(invCtx, candidate.ID, func(inv *domain.Invoice) error {
			if inv.Status != domain.InvoiceStatusFunded || !inv.DueDate.Before(now) {
				return errSkip
			}
			return Transition(inv, domain.InvoiceStatusOverdue)
		})
		if errors.Is(err, errSkip) {
			continue
		}
		if err != nil {
			s.logger.Error(invCtx, "Failed to flag invoice overdue",
				"error", err,
			)
			continue
		}
		s.recordTransition(invCtx, domain.InvoiceStatusFunded, domain.InvoiceStatusOverdue)
		flagged++
	}

	return flagged, nil
}

var errSkip = errors.New("invoice changed since listing")

func (s *service) recordTransition(ctx context.Context, from, to domain.InvoiceStatus) {
	metrics.InvoiceTransitionsTotal.WithLabelValues(string(from), string(to)).Inc()
	s.logger.Info(ctx, "Invoice status changed",
		"from", from,
		"to", to,
	)
}
