package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/grachmannico95/invoice-proof/internal/domain"
	"github.com/grachmannico95/invoice-proof/internal/eventbus"
	"github.com/grachmannico95/invoice-proof/internal/ledger"
	"github.com/grachmannico95/invoice-proof/internal/metrics"
	"github.com/grachmannico95/invoice-proof/internal/signing"
	"github.com/grachmannico95/invoice-proof/internal/transaction"
)

// orphanClaimAge is how long an owner slot naming a missing attempt is
// honored. The slot is written just before the attempt record.
const orphanClaimAge = time.Minute

var (
	errTerminal = errors.New("attempt already terminal")
	errNotOwner = errors.New("attempt does not own the invoice")
)

func tokenizable(inv *domain.Invoice) error {
	switch inv.Status {
	case domain.InvoiceStatusPaid, domain.InvoiceStatusCancelled:
		return domain.Errorf(domain.KindInvalidState, "invoice %s is %s", inv.ID, inv.Status)
	}
	if inv.TokenID != nil {
		return domain.Errorf(domain.KindInvalidState, "invoice %s is already tokenized", inv.ID)
	}
	return nil
}

// claimInvoice makes attemptID the tokenization owner of the invoice. An
// owner whose attempt is terminal and cannot be resumed is stale and may
// be replaced. A resumable owner blocks new attempts, since its ledger
// steps must be finished under its own request tokens.
func (p *Pipeline) claimInvoice(ctx context.Context, invoiceID, attemptID string, check func(inv *domain.Invoice) error) (*domain.Invoice, error) {
	current, err := p.deps.Repo.GetInvoice(ctx, invoiceID)
	if err != nil {
		return nil, err
	}

	stale := ""
	if owner := current.TokenizationOwner; owner != "" && owner != attemptID {
		ownerAttempt, err := p.deps.Repo.GetAttempt(ctx, owner)
		switch {
		case err == nil && ownerAttempt.State.Terminal() && !p.isRunning(owner):
			if ownerAttempt.Resumable() {
				return nil, domain.Errorf(domain.KindAlreadyInProgress,
					"invoice %s has attempt %s failed at %s; resume it instead of starting a new one",
					invoiceID, owner, ownerAttempt.FailedStep)
			}
			stale = owner
		case errors.Is(err, domain.ErrNotFound) && p.now().Sub(current.UpdatedAt) > orphanClaimAge:
			stale = owner
		case errors.Is(err, domain.ErrNotFound):
			return nil, domain.Errorf(domain.KindAlreadyInProgress, "invoice %s is being claimed by attempt %s", invoiceID, owner)
		case err != nil:
			return nil, err
		default:
			return nil, domain.Errorf(domain.KindAlreadyInProgress, "invoice %s is being tokenized by attempt %s", invoiceID, owner)
		}
	}

	return p.deps.Repo.UpdateInvoice(ctx, invoiceID, func(inv *domain.Invoice) error {
		if owner := inv.TokenizationOwner; owner != "" && owner != attemptID && owner != stale {
			return domain.Errorf(domain.KindAlreadyInProgress, "invoice %s is being tokenized by attempt %s", invoiceID, owner)
		}
		if err := check(inv); err != nil {
			return err
		}
		inv.TokenizationOwner = attemptID
		return nil
	})
}

func (p *Pipeline) releaseInvoice(ctx context.Context, invoiceID, attemptID string) {
	_, err := p.deps.Repo.UpdateInvoice(ctx, invoiceID, func(inv *domain.Invoice) error {
		if inv.TokenizationOwner != attemptID {
			return errNotOwner
		}
		inv.TokenizationOwner = ""
		return nil
	})
	if err != nil && !errors.Is(err, errNotOwner) {
		p.log.Warn(ctx, "Failed to release invoice", "error", err)
	}
}

// failure is what a resume clears, kept to put back if the resume cannot
// claim the invoice.
type failure struct {
	step   domain.Step
	kind   domain.ErrorKind
	detail string
	status domain.StepStatus
}

func (p *Pipeline) restoreFailure(ctx context.Context, attemptID string, step domain.Step, f failure) {
	_, err := p.deps.Repo.UpdateAttempt(ctx, attemptID, func(a *domain.TokenizationAttempt) error {
		if a.State != stateFor(step) {
			return errTerminal
		}
		a.State = domain.StateFailed
		a.FailedStep = f.step
		a.FailureKind = f.kind
		a.FailureDetail = f.detail
		a.Steps[step] = f.status
		a.Resumes--
		return nil
	})
	if err != nil && !errors.Is(err, errTerminal) {
		p.log.Error(ctx, "Failed to restore attempt after refused resume", "error", err)
	}
}

func markFailed(a *domain.TokenizationAttempt, step domain.Step, err error) {
	a.State = domain.StateFailed
	a.FailedStep = step
	a.FailureKind = domain.KindOf(err)
	a.FailureDetail = err.Error()
	a.Steps[step] = domain.StepFailed
}

// fail moves the attempt to FAILED at step. The invoice is freed unless the
// attempt can be resumed. It is a no-op when the attempt already reached a
// terminal state.
func (p *Pipeline) fail(ctx context.Context, attemptID string, step domain.Step, cause error) {
	a, err := p.deps.Repo.UpdateAttempt(ctx, attemptID, func(a *domain.TokenizationAttempt) error {
		if a.State.Terminal() {
			return errTerminal
		}
		markFailed(a, step, cause)
		return nil
	})
	if errors.Is(err, errTerminal) {
		return
	}
	if err != nil {
		p.log.Error(ctx, "Failed to record attempt failure", "step", step, "cause", cause, "error", err)
		return
	}

	if a.SigningRequestID != "" {
		p.deps.Sessions.CloseByID(a.SigningRequestID)
	}
	if !a.Resumable() {
		p.releaseInvoice(ctx, a.InvoiceID, attemptID)
	}

	metrics.PipelineAttemptsTotal.WithLabelValues(string(domain.StateFailed)).Inc()
	p.log.Warn(ctx, "Tokenization failed",
		"step", step,
		"error_kind", a.FailureKind,
		"error", cause,
	)
}

// mintMetadata is the NFT metadata for inv. It is derived from fields that
// never change after issue, so a resumed mint sends the same bytes.
func mintMetadata(inv *domain.Invoice) []byte {
	meta := "invoice:" + inv.ID
	if len(inv.DocumentHash) >= 16 {
		meta += ":" + inv.DocumentHash[:16]
	}
	if len(meta) > transaction.MaxMetadataBytes {
		meta = meta[:transaction.MaxMetadataBytes]
	}
	return []byte(meta)
}

func (p *Pipeline) awaitSignature(ctx context.Context, attempt *domain.TokenizationAttempt, session *signing.Session) {
	signed, err := p.deps.Sessions.Await(ctx, session, p.cfg.SigningTimeout)
	if err != nil {
		p.fail(context.WithoutCancel(ctx), attempt.ID, domain.StepSignature, err)
		return
	}

	// Nothing below waits on the wallet, so shutdown no longer interrupts it.
	ctx = context.WithoutCancel(ctx)

	a, err := p.deps.Repo.UpdateAttempt(ctx, attempt.ID, func(a *domain.TokenizationAttempt) error {
		if a.State != domain.StateAwaitingSignature {
			return domain.Errorf(domain.KindCancelled, "attempt left AWAITING_SIGNATURE (%s)", a.State)
		}
		a.SignedTx = signed
		a.State = domain.StateVerifying
		return nil
	})
	if err != nil {
		p.log.Info(ctx, "Signed transaction dropped", "reason", err)
		return
	}

	err = traceStep(ctx, domain.StepSignature, func(ctx context.Context) error {
		return p.verify(ctx, a)
	})
	if err != nil {
		p.fail(ctx, a.ID, domain.StepSignature, err)
		return
	}

	p.runLedgerSteps(ctx, a.ID)
}

// verify checks the wallet signature and records the VERIFY proof. No
// ledger service is called unless verification succeeds.
func (p *Pipeline) verify(ctx context.Context, a *domain.TokenizationAttempt) error {
	ok, err := p.deps.Verifier.Verify(ctx, a.UnsignedTx, a.SignedTx, a.SupplierAccountID)
	if err != nil {
		return err
	}
	if !ok {
		return domain.Errorf(domain.KindInvalidSignature, "transaction %s is not signed by %s", a.TransactionID, a.SupplierAccountID)
	}

	proof := p.newProof(a, domain.ProofKindVerify, a.TransactionID)
	if _, err := p.deps.Repo.CommitStep(ctx, a.ID, proof, func(a *domain.TokenizationAttempt, inv *domain.Invoice) error {
		if err := guardStep(a, inv, domain.StateVerifying); err != nil {
			return err
		}
		a.Steps[domain.StepSignature] = domain.StepDone
		a.State = domain.StateMinting
		return nil
	}); err != nil {
		return err
	}

	p.log.Info(ctx, "Signature verified", "transaction_id", a.TransactionID)
	p.publish(ctx, proof)
	return nil
}

// runLedgerSteps runs every step from the first incomplete one until the
// attempt completes or a step fails.
func (p *Pipeline) runLedgerSteps(ctx context.Context, attemptID string) {
	ctx = context.WithoutCancel(ctx)

	for {
		a, err := p.deps.Repo.GetAttempt(ctx, attemptID)
		if err != nil {
			p.log.Error(ctx, "Failed to load attempt", "error", err)
			return
		}

		if a.State == domain.StateComplete {
			metrics.PipelineAttemptsTotal.WithLabelValues(string(domain.StateComplete)).Inc()
			p.log.Info(ctx, "Tokenization complete",
				"token_id", a.TokenID,
				"serial_number", a.SerialNumber,
				"file_id", a.FileID,
				"topic_sequence", a.TopicSequence,
			)
			return
		}
		if a.State.Terminal() {
			return
		}

		step := a.FirstIncompleteStep()
		var run func(ctx context.Context, a *domain.TokenizationAttempt) error
		switch step {
		case domain.StepMint:
			run = p.mintStep
		case domain.StepFile:
			run = p.fileStep
		case domain.StepLog:
			run = p.logStep
		default:
			p.fail(ctx, attemptID, step, domain.Errorf(domain.KindInvalidState, "step %s cannot run in state %s", step, a.State))
			return
		}

		err = traceStep(ctx, step, func(ctx context.Context) error {
			return run(ctx, a)
		})
		if err != nil {
			p.fail(ctx, attemptID, step, domain.AtStep(step, err))
			return
		}
	}
}

func (p *Pipeline) mintStep(ctx context.Context, a *domain.TokenizationAttempt) error {
	inv, err := p.deps.Repo.GetInvoice(ctx, a.InvoiceID)
	if err != nil {
		return err
	}
	tokenID := p.cfg.NFTTokenID

	associateToken := a.RequestToken(domain.StepMint, "associate")
	_, err = ledgerCall(ctx, p.log, p.cfg.Retry, domain.StepMint,
		func(ctx context.Context) (*ledger.Receipt, error) {
			return p.deps.Tokens.Associate(ctx, associateToken, ledger.AssociateParams{
				TokenID:   tokenID,
				AccountID: a.SupplierAccountID,
			})
		},
		// Association is keyed by the same token, so resubmitting is the lookup.
		func(ctx context.Context) (*ledger.Receipt, error) {
			return nil, domain.ErrNotFound
		},
	)
	if err != nil {
		return err
	}

	mintToken := a.RequestToken(domain.StepMint)
	receipt, err := ledgerCall(ctx, p.log, p.cfg.Retry, domain.StepMint,
		func(ctx context.Context) (*ledger.MintReceipt, error) {
			return p.deps.Tokens.Mint(ctx, mintToken, ledger.MintParams{
				TokenID:           tokenID,
				Metadata:          mintMetadata(inv),
				SignedTransaction: a.SignedTx,
			})
		},
		func(ctx context.Context) (*ledger.MintReceipt, error) {
			return p.deps.Tokens.LookupMint(ctx, mintToken)
		},
	)
	if err != nil {
		return err
	}

	proof := p.newProof(a, domain.ProofKindMint, receipt.TransactionID)
	_, err = p.deps.Repo.CommitStep(ctx, a.ID, proof, func(a *domain.TokenizationAttempt, inv *domain.Invoice) error {
		if err := guardStep(a, inv, domain.StateMinting); err != nil {
			return err
		}
		a.Steps[domain.StepMint] = domain.StepDone
		a.TokenID = receipt.TokenID
		a.SerialNumber = receipt.SerialNumber
		a.MintTxID = receipt.TransactionID
		a.State = domain.StateStoringFile

		tokenID, serial := receipt.TokenID, receipt.SerialNumber
		inv.TokenID = &tokenID
		inv.SerialNumber = &serial
		return nil
	})
	if err != nil {
		return err
	}

	p.log.Info(ctx, "Invoice minted", "token_id", receipt.TokenID, "serial_number", receipt.SerialNumber)
	p.publish(ctx, proof)
	return nil
}

func (p *Pipeline) fileStep(ctx context.Context, a *domain.TokenizationAttempt) error {
	inv, err := p.deps.Repo.GetInvoice(ctx, a.InvoiceID)
	if err != nil {
		return err
	}
	contents, err := p.fileContents(ctx, inv)
	if err != nil {
		return err
	}
	chunks := ledger.Chunk(contents)

	createToken := a.RequestToken(domain.StepFile)
	created, err := ledgerCall(ctx, p.log, p.cfg.Retry, domain.StepFile,
		func(ctx context.Context) (*ledger.FileReceipt, error) {
			return p.deps.Files.CreateFile(ctx, createToken, chunks[0])
		},
		func(ctx context.Context) (*ledger.FileReceipt, error) {
			return p.deps.Files.LookupFile(ctx, createToken)
		},
	)
	if err != nil {
		return err
	}

	for i, chunk := range chunks[1:] {
		appendToken := a.RequestToken(domain.StepFile, "append", strconv.Itoa(i+1))
		_, err := ledgerCall(ctx, p.log, p.cfg.Retry, domain.StepFile,
			func(ctx context.Context) (*ledger.FileReceipt, error) {
				return p.deps.Files.AppendFile(ctx, appendToken, created.FileID, chunk)
			},
			func(ctx context.Context) (*ledger.FileReceipt, error) {
				return p.deps.Files.LookupFile(ctx, appendToken)
			},
		)
		if err != nil {
			return err
		}
	}

	proof := p.newProof(a, domain.ProofKindFile, created.TransactionID)
	_, err = p.deps.Repo.CommitStep(ctx, a.ID, proof, func(a *domain.TokenizationAttempt, inv *domain.Invoice) error {
		if err := guardStep(a, inv, domain.StateStoringFile); err != nil {
			return err
		}
		a.Steps[domain.StepFile] = domain.StepDone
		a.FileID = created.FileID
		a.FileTxID = created.TransactionID
		a.State = domain.StateLogging

		fileID := created.FileID
		inv.FileID = &fileID
		return nil
	})
	if err != nil {
		return err
	}

	p.log.Info(ctx, "Invoice document stored", "file_id", created.FileID, "chunks", len(chunks))
	p.publish(ctx, proof)
	return nil
}

type invoiceSnapshot struct {
	ID          string `json:"id"`
	SupplierRef string `json:"supplier_ref"`
	BuyerRef    string `json:"buyer_ref"`
	Amount      string `json:"amount"`
	Currency    string `json:"currency"`
	DueDate     string `json:"due_date"`
}

// fileContents returns the stored invoice document, or a JSON snapshot of
// the invoice terms when no document was uploaded.
func (p *Pipeline) fileContents(ctx context.Context, inv *domain.Invoice) ([]byte, error) {
	if inv.DocumentHash != "" && p.deps.Documents != nil {
		return p.deps.Documents.Get(ctx, inv.DocumentHash)
	}
	return json.Marshal(invoiceSnapshot{
		ID:          inv.ID,
		SupplierRef: inv.SupplierRef,
		BuyerRef:    inv.BuyerRef,
		Amount:      inv.Amount.String(),
		Currency:    inv.Currency,
		DueDate:     inv.DueDate.UTC().Format("2006-01-02"),
	})
}

type consensusMessage struct {
	InvoiceID         string `json:"invoice_id"`
	AttemptID         string `json:"attempt_id"`
	TokenID           string `json:"token_id"`
	SerialNumber      int64  `json:"serial_number"`
	MintTransactionID string `json:"mint_transaction_id"`
	FileID            string `json:"file_id"`
	FileTransactionID string `json:"file_transaction_id"`
}

func (p *Pipeline) logStep(ctx context.Context, a *domain.TokenizationAttempt) error {
	inv, err := p.deps.Repo.GetInvoice(ctx, a.InvoiceID)
	if err != nil {
		return err
	}
	topicID := p.cfg.TopicID
	if inv.TopicID != nil {
		topicID = *inv.TopicID
	}
	if topicID == "" {
		return domain.NewError(domain.KindMalformedInput, "no consensus topic configured")
	}

	message, err := json.Marshal(consensusMessage{
		InvoiceID:         a.InvoiceID,
		AttemptID:         a.ID,
		TokenID:           a.TokenID,
		SerialNumber:      a.SerialNumber,
		MintTransactionID: a.MintTxID,
		FileID:            a.FileID,
		FileTransactionID: a.FileTxID,
	})
	if err != nil {
		return domain.WrapError(domain.KindInternal, err, "encode consensus message")
	}

	logToken := a.RequestToken(domain.StepLog)
	receipt, err := ledgerCall(ctx, p.log, p.cfg.Retry, domain.StepLog,
		func(ctx context.Context) (*ledger.ConsensusReceipt, error) {
			return p.deps.Consensus.SubmitMessage(ctx, logToken, ledger.MessageParams{TopicID: topicID, Message: message})
		},
		func(ctx context.Context) (*ledger.ConsensusReceipt, error) {
			return p.deps.Consensus.LookupMessage(ctx, logToken)
		},
	)
	if err != nil {
		return err
	}

	proof := p.newProof(a, domain.ProofKindConsensus, receipt.TransactionID)
	_, err = p.deps.Repo.CommitStep(ctx, a.ID, proof, func(a *domain.TokenizationAttempt, inv *domain.Invoice) error {
		if err := guardStep(a, inv, domain.StateLogging); err != nil {
			return err
		}
		a.Steps[domain.StepLog] = domain.StepDone
		a.TopicID = receipt.TopicID
		a.TopicSequence = receipt.SequenceNumber
		a.ConsensusTxID = receipt.TransactionID
		a.State = domain.StateComplete

		topic := receipt.TopicID
		inv.TopicID = &topic
		inv.TokenizationOwner = ""
		return nil
	})
	if err != nil {
		return err
	}

	p.log.Info(ctx, "Consensus record logged", "topic_id", receipt.TopicID, "sequence_number", receipt.SequenceNumber)
	p.publish(ctx, proof)
	return nil
}

// guardStep rejects a commit when the attempt moved on or lost the invoice.
func guardStep(a *domain.TokenizationAttempt, inv *domain.Invoice, want domain.PipelineState) error {
	if a.State != want {
		return domain.Errorf(domain.KindInvalidState, "attempt %s is %s, expected %s", a.ID, a.State, want)
	}
	if inv.TokenizationOwner != a.ID {
		return domain.Errorf(domain.KindInvalidState, "attempt %s no longer owns invoice %s", a.ID, inv.ID)
	}
	return nil
}

func (p *Pipeline) newProof(a *domain.TokenizationAttempt, kind domain.ProofKind, txID string) domain.ProofRecord {
	return domain.ProofRecord{
		ID:                  uuid.New().String(),
		InvoiceID:           a.InvoiceID,
		AttemptID:           a.ID,
		Kind:                kind,
		LedgerTransactionID: txID,
		Timestamp:           p.now().UTC().Truncate(time.Millisecond),
	}
}

func (p *Pipeline) publish(ctx context.Context, proof domain.ProofRecord) {
	if p.deps.Publisher == nil {
		return
	}
	if err := p.deps.Publisher.Publish(ctx, eventbus.NewProofEvent(proof)); err != nil {
		p.log.Warn(ctx, "Failed to publish proof event", "proof_id", proof.ID, "error", err)
	}
}
