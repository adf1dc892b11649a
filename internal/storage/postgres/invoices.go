package postgres

import (
	"context"
	"time"

	"github.com/grachmannico95/invoice-proof/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

const invoiceColumns = `id, supplier_ref, buyer_ref, amount::text, currency, due_date, status,
	document_hash, token_id, serial_number, file_id, topic_id,
	tokenization_owner, funding_owner, created_at, updated_at`

func scanInvoice(row rowScanner) (*domain.Invoice, error) {
	var (
		inv    domain.Invoice
		amount string
		status string
	)
	err := row.Scan(
		&inv.ID, &inv.SupplierRef, &inv.BuyerRef, &amount, &inv.Currency, &inv.DueDate, &status,
		&inv.DocumentHash, &inv.TokenID, &inv.SerialNumber, &inv.FileID, &inv.TopicID,
		&inv.TokenizationOwner, &inv.FundingOwner, &inv.CreatedAt, &inv.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if inv.Amount, err = decimal.NewFromString(amount); err != nil {
		return nil, err
	}
	inv.Status = domain.InvoiceStatus(status)
	return &inv, nil
}

func (s *Store) CreateInvoice(ctx context.Context, inv *domain.Invoice) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO invoices (id, supplier_ref, buyer_ref, amount, currency, due_date, status,
			document_hash, token_id, serial_number, file_id, topic_id,
			tokenization_owner, funding_owner, created_at, updated_at)
		VALUES ($1, $2, $3, $4::numeric, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`,
		inv.ID, inv.SupplierRef, inv.BuyerRef, inv.Amount.String(), inv.Currency, inv.DueDate, string(inv.Status),
		inv.DocumentHash, inv.TokenID, inv.SerialNumber, inv.FileID, inv.TopicID,
		inv.TokenizationOwner, inv.FundingOwner, inv.CreatedAt, inv.UpdatedAt,
	)
	if err != nil {
		return dbError(err, "invoice "+inv.ID)
	}
	return nil
}

func (s *Store) GetInvoice(ctx context.Context, invoiceID string) (*domain.Invoice, error) {
	inv, err := scanInvoice(s.pool.QueryRow(ctx, `SELECT `+invoiceColumns+` FROM invoices WHERE id = $1`, invoiceID))
	if err != nil {
		return nil, dbError(err, "invoice "+invoiceID)
	}
	return inv, nil
}

func lockInvoice(ctx context.Context, tx pgx.Tx, invoiceID string) (*domain.Invoice, error) {
	inv, err := scanInvoice(tx.QueryRow(ctx, `SELECT `+invoiceColumns+` FROM invoices WHERE id = $1 FOR UPDATE`, invoiceID))
	if err != nil {
		return nil, dbError(err, "invoice "+invoiceID)
	}
	return inv, nil
}

func saveInvoice(ctx context.Context, tx pgx.Tx, inv *domain.Invoice) error {
	_, err := tx.Exec(ctx, `
		UPDATE invoices SET status = $2, document_hash = $3, token_id = $4, serial_number = $5,
			file_id = $6, topic_id = $7, tokenization_owner = $8, funding_owner = $9, updated_at = $10
		WHERE id = $1`,
		inv.ID, string(inv.Status), inv.DocumentHash, inv.TokenID, inv.SerialNumber,
		inv.FileID, inv.TopicID, inv.TokenizationOwner, inv.FundingOwner, inv.UpdatedAt,
	)
	if err != nil {
		return dbError(err, "invoice "+inv.ID)
	}
	return nil
}

func (s *Store) UpdateInvoice(ctx context.Context, invoiceID string, fn func(inv *domain.Invoice) error) (*domain.Invoice, error) {
	var updated *domain.Invoice
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		inv, err := lockInvoice(ctx, tx, invoiceID)
		if err != nil {
			return err
		}
		if err := fn(inv); err != nil {
			return err
		}
		inv.UpdatedAt = s.now()
		if err := saveInvoice(ctx, tx, inv); err != nil {
			return err
		}
		updated = inv
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *Store) ListInvoicesDueBefore(ctx context.Context, t time.Time, statuses ...domain.InvoiceStatus) ([]*domain.Invoice, error) {
	query := `SELECT ` + invoiceColumns + ` FROM invoices WHERE due_date < $1`
	args := []any{t}
	if len(statuses) > 0 {
		names := make([]string, len(statuses))
		for i, st := range statuses {
			names[i] = string(st)
		}
		query += ` AND status = ANY($2)`
		args = append(args, names)
	}
	query += ` ORDER BY due_date`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, dbError(err, "list invoices")
	}
	defer rows.Close()

	var result []*domain.Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, dbError(err, "scan invoice")
		}
		result = append(result, inv)
	}
	if err := rows.Err(); err != nil {
		return nil, dbError(err, "list invoices")
	}
	return result, nil
}
