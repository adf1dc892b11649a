package postgres

import (
	"context"

	"github.com/grachmannico95/invoice-proof/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

const fundingColumns = `id, invoice_id, investor_id, amount::text, status, created_at, updated_at`

func scanFunding(row rowScanner) (*domain.Funding, error) {
	var (
		f      domain.Funding
		amount string
		status string
	)
	if err := row.Scan(&f.ID, &f.InvoiceID, &f.InvestorID, &amount, &status, &f.CreatedAt, &f.UpdatedAt); err != nil {
		return nil, err
	}
	var err error
	if f.Amount, err = decimal.NewFromString(amount); err != nil {
		return nil, err
	}
	f.Status = domain.FundingStatus(status)
	return &f, nil
}

func (s *Store) CreateFunding(ctx context.Context, f *domain.Funding, guard func(inv *domain.Invoice) error) error {
	return s.inTx(ctx, func(tx pgx.Tx) error {
		inv, err := lockInvoice(ctx, tx, f.InvoiceID)
		if err != nil {
			return err
		}
		if err := guard(inv); err != nil {
			return err
		}
		inv.UpdatedAt = s.now()
		if err := saveInvoice(ctx, tx, inv); err != nil {
			return err
		}

		_, err = tx.Exec(ctx, `
			INSERT INTO fundings (id, invoice_id, investor_id, amount, status, created_at, updated_at)
			VALUES ($1, $2, $3, $4::numeric, $5, $6, $7)`,
			f.ID, f.InvoiceID, f.InvestorID, f.Amount.String(), string(f.Status), f.CreatedAt, f.UpdatedAt,
		)
		if err != nil {
			return dbError(err, "funding "+f.ID)
		}
		return nil
	})
}

func (s *Store) GetFunding(ctx context.Context, fundingID string) (*domain.Funding, error) {
	f, err := scanFunding(s.pool.QueryRow(ctx, `SELECT `+fundingColumns+` FROM fundings WHERE id = $1`, fundingID))
	if err != nil {
		return nil, dbError(err, "funding "+fundingID)
	}
	return f, nil
}

func (s *Store) ListFundings(ctx context.Context, invoiceID string) ([]*domain.Funding, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+fundingColumns+` FROM fundings WHERE invoice_id = $1 ORDER BY created_at`, invoiceID)
	if err != nil {
		return nil, dbError(err, "list fundings")
	}
	defer rows.Close()

	var result []*domain.Funding
	for rows.Next() {
		f, err := scanFunding(rows)
		if err != nil {
			return nil, dbError(err, "scan funding")
		}
		result = append(result, f)
	}
	if err := rows.Err(); err != nil {
		return nil, dbError(err, "list fundings")
	}
	return result, nil
}

func (s *Store) UpdateFunding(ctx context.Context, fundingID string, fn func(f *domain.Funding) error) (*domain.Funding, error) {
	var updated *domain.Funding
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		f, err := scanFunding(tx.QueryRow(ctx, `SELECT `+fundingColumns+` FROM fundings WHERE id = $1 FOR UPDATE`, fundingID))
		if err != nil {
			return dbError(err, "funding "+fundingID)
		}
		if err := fn(f); err != nil {
			return err
		}
		f.UpdatedAt = s.now()

		_, err = tx.Exec(ctx, `UPDATE fundings SET status = $2, updated_at = $3 WHERE id = $1`,
			f.ID, string(f.Status), f.UpdatedAt)
		if err != nil {
			return dbError(err, "funding "+fundingID)
		}
		updated = f
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *Store) SettleFundings(ctx context.Context, invoiceID string, guard func(inv *domain.Invoice) error, from, to domain.FundingStatus) (*domain.Invoice, error) {
	var updated *domain.Invoice
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		inv, err := lockInvoice(ctx, tx, invoiceID)
		if err != nil {
			return err
		}
		if err := guard(inv); err != nil {
			return err
		}
		now := s.now()
		inv.UpdatedAt = now
		if err := saveInvoice(ctx, tx, inv); err != nil {
			return err
		}

		_, err = tx.Exec(ctx, `UPDATE fundings SET status = $3, updated_at = $4 WHERE invoice_id = $1 AND status = $2`,
			invoiceID, string(from), string(to), now)
		if err != nil {
			return dbError(err, "settle fundings")
		}
		updated = inv
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}
