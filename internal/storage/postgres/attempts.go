package postgres

import (
	"context"
	"encoding/json"

	"github.com/grachmannico95/invoice-proof/internal/domain"
	"github.com/jackc/pgx/v5"
)

const attemptColumns = `id, invoice_id, supplier_account_id, idempotency_token, state, steps,
	failed_step, failure_kind, failure_detail, transaction_id, nonce, valid_start,
	unsigned_tx, signed_tx, signing_request_id, token_id, serial_number, mint_tx_id,
	file_id, file_tx_id, topic_id, topic_sequence, consensus_tx_id, resumes,
	created_at, updated_at`

func scanAttempt(row rowScanner) (*domain.TokenizationAttempt, error) {
	var (
		a                       domain.TokenizationAttempt
		state, failedStep, kind string
		steps                   []byte
	)
	err := row.Scan(
		&a.ID, &a.InvoiceID, &a.SupplierAccountID, &a.IdempotencyToken, &state, &steps,
		&failedStep, &kind, &a.FailureDetail, &a.TransactionID, &a.Nonce, &a.ValidStart,
		&a.UnsignedTx, &a.SignedTx, &a.SigningRequestID, &a.TokenID, &a.SerialNumber, &a.MintTxID,
		&a.FileID, &a.FileTxID, &a.TopicID, &a.TopicSequence, &a.ConsensusTxID, &a.Resumes,
		&a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(steps, &a.Steps); err != nil {
		return nil, err
	}
	a.State = domain.PipelineState(state)
	a.FailedStep = domain.Step(failedStep)
	a.FailureKind = domain.ErrorKind(kind)
	return &a, nil
}

func attemptArgs(a *domain.TokenizationAttempt) ([]any, error) {
	steps, err := json.Marshal(a.Steps)
	if err != nil {
		return nil, err
	}
	return []any{
		a.ID, a.InvoiceID, a.SupplierAccountID, a.IdempotencyToken, string(a.State), steps,
		string(a.FailedStep), string(a.FailureKind), a.FailureDetail, a.TransactionID, a.Nonce, a.ValidStart,
		a.UnsignedTx, a.SignedTx, a.SigningRequestID, a.TokenID, a.SerialNumber, a.MintTxID,
		a.FileID, a.FileTxID, a.TopicID, a.TopicSequence, a.ConsensusTxID, a.Resumes,
		a.CreatedAt, a.UpdatedAt,
	}, nil
}

func (s *Store) CreateAttempt(ctx context.Context, a *domain.TokenizationAttempt) error {
	args, err := attemptArgs(a)
	if err != nil {
		return domain.WrapError(domain.KindInternal, err, "encode attempt")
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO tokenization_attempts (`+attemptColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13,
			$14, $15, $16, $17, $18, $19, $20, $21, $22, $23, $24, $25, $26)`,
		args...,
	)
	if err != nil {
		return dbError(err, "attempt "+a.ID)
	}
	return nil
}

func (s *Store) GetAttempt(ctx context.Context, attemptID string) (*domain.TokenizationAttempt, error) {
	a, err := scanAttempt(s.pool.QueryRow(ctx, `SELECT `+attemptColumns+` FROM tokenization_attempts WHERE id = $1`, attemptID))
	if err != nil {
		return nil, dbError(err, "attempt "+attemptID)
	}
	return a, nil
}

func lockAttempt(ctx context.Context, tx pgx.Tx, attemptID string) (*domain.TokenizationAttempt, error) {
	a, err := scanAttempt(tx.QueryRow(ctx, `SELECT `+attemptColumns+` FROM tokenization_attempts WHERE id = $1 FOR UPDATE`, attemptID))
	if err != nil {
		return nil, dbError(err, "attempt "+attemptID)
	}
	return a, nil
}

func saveAttempt(ctx context.Context, tx pgx.Tx, a *domain.TokenizationAttempt) error {
	steps, err := json.Marshal(a.Steps)
	if err != nil {
		return domain.WrapError(domain.KindInternal, err, "encode attempt")
	}
	_, err = tx.Exec(ctx, `
		UPDATE tokenization_attempts SET
			state = $2, steps = $3, failed_step = $4, failure_kind = $5, failure_detail = $6,
			transaction_id = $7, nonce = $8, valid_start = $9, unsigned_tx = $10, signed_tx = $11,
			signing_request_id = $12, token_id = $13, serial_number = $14, mint_tx_id = $15,
			file_id = $16, file_tx_id = $17, topic_id = $18, topic_sequence = $19,
			consensus_tx_id = $20, resumes = $21, updated_at = $22
		WHERE id = $1`,
		a.ID, string(a.State), steps, string(a.FailedStep), string(a.FailureKind), a.FailureDetail,
		a.TransactionID, a.Nonce, a.ValidStart, a.UnsignedTx, a.SignedTx,
		a.SigningRequestID, a.TokenID, a.SerialNumber, a.MintTxID,
		a.FileID, a.FileTxID, a.TopicID, a.TopicSequence,
		a.ConsensusTxID, a.Resumes, a.UpdatedAt,
	)
	if err != nil {
		return dbError(err, "attempt "+a.ID)
	}
	return nil
}

func (s *Store) UpdateAttempt(ctx context.Context, attemptID string, fn func(a *domain.TokenizationAttempt) error) (*domain.TokenizationAttempt, error) {
	var updated *domain.TokenizationAttempt
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		a, err := lockAttempt(ctx, tx, attemptID)
		if err != nil {
			return err
		}
		if err := fn(a); err != nil {
			return err
		}
		a.UpdatedAt = s.now()
		if err := saveAttempt(ctx, tx, a); err != nil {
			return err
		}
		updated = a
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *Store) ListAttemptsByState(ctx context.Context, states ...domain.PipelineState) ([]*domain.TokenizationAttempt, error) {
	names := make([]string, len(states))
	for i, st := range states {
		names[i] = string(st)
	}

	rows, err := s.pool.Query(ctx, `SELECT `+attemptColumns+` FROM tokenization_attempts
		WHERE state = ANY($1) ORDER BY created_at`, names)
	if err != nil {
		return nil, dbError(err, "list attempts")
	}
	defer rows.Close()

	var result []*domain.TokenizationAttempt
	for rows.Next() {
		a, err := scanAttempt(rows)
		if err != nil {
			return nil, dbError(err, "scan attempt")
		}
		result = append(result, a)
	}
	if err := rows.Err(); err != nil {
		return nil, dbError(err, "list attempts")
	}
	return result, nil
}

// CommitStep locks the attempt and then its invoice, always in that order.
func (s *Store) CommitStep(ctx context.Context, attemptID string, proof domain.ProofRecord, fn func(a *domain.TokenizationAttempt, inv *domain.Invoice) error) (*domain.TokenizationAttempt, error) {
	var updated *domain.TokenizationAttempt
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		a, err := lockAttempt(ctx, tx, attemptID)
		if err != nil {
			return err
		}
		inv, err := lockInvoice(ctx, tx, a.InvoiceID)
		if err != nil {
			return err
		}
		if err := fn(a, inv); err != nil {
			return err
		}

		now := s.now()
		a.UpdatedAt = now
		inv.UpdatedAt = now
		if err := saveAttempt(ctx, tx, a); err != nil {
			return err
		}
		if err := saveInvoice(ctx, tx, inv); err != nil {
			return err
		}

		_, err = tx.Exec(ctx, `
			INSERT INTO proof_records (id, invoice_id, attempt_id, kind, ledger_transaction_id, recorded_at)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			proof.ID, proof.InvoiceID, proof.AttemptID, string(proof.Kind), proof.LedgerTransactionID, proof.Timestamp,
		)
		if err != nil {
			return dbError(err, "proof "+proof.ID)
		}
		updated = a
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *Store) ListProofs(ctx context.Context, invoiceID string) ([]domain.ProofRecord, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, invoice_id, attempt_id, kind, ledger_transaction_id, recorded_at
		FROM proof_records WHERE invoice_id = $1 ORDER BY seq`, invoiceID)
	if err != nil {
		return nil, dbError(err, "list proofs")
	}
	defer rows.Close()

	result := []domain.ProofRecord{}
	for rows.Next() {
		var (
			p    domain.ProofRecord
			kind string
		)
		if err := rows.Scan(&p.ID, &p.InvoiceID, &p.AttemptID, &kind, &p.LedgerTransactionID, &p.Timestamp); err != nil {
			return nil, dbError(err, "scan proof")
		}
		p.Kind = domain.ProofKind(kind)
		result = append(result, p)
	}
	if err := rows.Err(); err != nil {
		return nil, dbError(err, "list proofs")
	}
	return result, nil
}
