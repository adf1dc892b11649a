package pipeline

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/grachmannico95/invoice-proof/internal/document"
	"github.com/grachmannico95/invoice-proof/internal/domain"
	"github.com/grachmannico95/invoice-proof/internal/eventbus"
	"github.com/grachmannico95/invoice-proof/internal/ledger"
	"github.com/grachmannico95/invoice-proof/internal/signing"
	"github.com/grachmannico95/invoice-proof/internal/transaction"
	"github.com/grachmannico95/invoice-proof/pkg/logger"
)

type Config struct {
	NFTTokenID     string
	TopicID        string
	SigningTimeout time.Duration
	Retry          RetryPolicy
}

type SignatureVerifier interface {
	Verify(ctx context.Context, unsigned, signed []byte, expectedAccount string) (bool, error)
}

type Publisher interface {
	Publish(ctx context.Context, event eventbus.Event) error
}

type Dependencies struct {
	Repo      domain.Repository
	Preparer  *transaction.Preparer
	Sessions  *signing.Manager
	Verifier  SignatureVerifier
	Tokens    ledger.TokenService
	Files     ledger.FileService
	Consensus ledger.ConsensusService
	Documents document.Store
	Publisher Publisher
	Logger    *logger.Logger
}

// Outcome is what callers see of an attempt. Retryable tells a safe but
// incomplete attempt apart from one that cannot succeed; Resumable says
// whether ResumeTokenization applies or a new signing round is needed.
type Outcome struct {
	AttemptID   string                            `json:"attempt_id"`
	InvoiceID   string                            `json:"invoice_id"`
	State       domain.PipelineState              `json:"status"`
	Steps       map[domain.Step]domain.StepStatus `json:"steps"`
	FailedStep  domain.Step                       `json:"failed_step,omitempty"`
	FailureKind domain.ErrorKind                  `json:"error_kind,omitempty"`
	Detail      string                            `json:"detail,omitempty"`
	Retryable   bool                              `json:"retryable"`
	Resumable   bool                              `json:"resumable"`
	Proofs      []domain.ProofRecord              `json:"proofs"`
}

type StartResult struct {
	Attempt        *domain.TokenizationAttempt
	SigningRequest domain.SigningRequest
}

// Pipeline drives tokenization attempts. Each attempt runs in its own
// goroutine; steps within an attempt run in order.
type Pipeline struct {
	cfg  Config
	deps Dependencies
	log  *logger.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu   sync.Mutex
	runs map[string]chan struct{}

	now func() time.Time
}

func New(cfg Config, deps Dependencies) *Pipeline {
	if cfg.SigningTimeout <= 0 {
		cfg.SigningTimeout = 45 * time.Second
	}
	if cfg.Retry.MaxAttempts <= 0 {
		cfg.Retry.MaxAttempts = 3
	}
	if cfg.Retry.BaseDelay <= 0 {
		cfg.Retry.BaseDelay = 500 * time.Millisecond
	}
	if cfg.Retry.MaxDelay <= 0 {
		cfg.Retry.MaxDelay = 10 * time.Second
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Pipeline{
		cfg:    cfg,
		deps:   deps,
		log:    deps.Logger,
		ctx:    ctx,
		cancel: cancel,
		runs:   make(map[string]chan struct{}),
		now:    time.Now,
	}
}

// StartTokenization claims the invoice, prepares the mint transaction and
// opens a signing session for the supplier's wallet. The attempt then
// waits in AWAITING_SIGNATURE for SubmitSignedTransaction.
func (p *Pipeline) StartTokenization(ctx context.Context, invoiceID, supplierAccountID string) (*StartResult, error) {
	if _, err := transaction.ParseAccountID(supplierAccountID); err != nil {
		return nil, err
	}

	attemptID := uuid.New().String()
	ctx = logger.WithAttemptID(logger.WithInvoiceID(ctx, invoiceID), attemptID)

	inv, err := p.claimInvoice(ctx, invoiceID, attemptID, tokenizable)
	if err != nil {
		return nil, err
	}

	attempt := domain.NewTokenizationAttempt(attemptID, invoiceID, supplierAccountID, attemptID, p.now())
	attempt.State = domain.StatePreparing
	if err := p.deps.Repo.CreateAttempt(ctx, attempt); err != nil {
		p.releaseInvoice(ctx, invoiceID, attemptID)
		return nil, err
	}

	p.log.Info(ctx, "Tokenization started", "supplier_account_id", supplierAccountID)

	prepared, err := p.deps.Preparer.Prepare(transaction.Operation{
		Kind:     transaction.OperationMint,
		TokenID:  p.cfg.NFTTokenID,
		Metadata: mintMetadata(inv),
		Memo:     inv.ID,
	}, supplierAccountID, p.now(), transaction.NewNonce())
	if err != nil {
		p.fail(ctx, attemptID, domain.StepPrepare, err)
		return nil, domain.AtStep(domain.StepPrepare, err)
	}

	attempt, err = p.deps.Repo.UpdateAttempt(ctx, attemptID, func(a *domain.TokenizationAttempt) error {
		if a.State != domain.StatePreparing {
			return domain.Errorf(domain.KindCancelled, "attempt left PREPARING (%s)", a.State)
		}
		a.Steps[domain.StepPrepare] = domain.StepDone
		a.TransactionID = prepared.TransactionID
		a.Nonce = prepared.Nonce
		a.ValidStart = prepared.ValidStart
		a.UnsignedTx = prepared.Bytes
		a.State = domain.StateAwaitingSignature
		return nil
	})
	if err != nil {
		p.releaseInvoice(ctx, invoiceID, attemptID)
		return nil, err
	}

	session, err := p.deps.Sessions.Open(ctx, domain.SigningRequest{
		AttemptID:     attemptID,
		AccountID:     supplierAccountID,
		TransactionID: prepared.TransactionID,
		UnsignedTx:    prepared.Bytes,
		Description:   prepared.Description,
	})
	if err != nil {
		p.fail(ctx, attemptID, domain.StepSignature, err)
		return nil, domain.AtStep(domain.StepSignature, err)
	}

	attempt, err = p.deps.Repo.UpdateAttempt(ctx, attemptID, func(a *domain.TokenizationAttempt) error {
		if a.State != domain.StateAwaitingSignature {
			return domain.Errorf(domain.KindCancelled, "attempt left AWAITING_SIGNATURE (%s)", a.State)
		}
		a.SigningRequestID = session.ID()
		return nil
	})
	if err != nil {
		p.deps.Sessions.Close(session)
		p.releaseInvoice(ctx, invoiceID, attemptID)
		return nil, err
	}

	p.launch(ctx, attemptID, func(runCtx context.Context) {
		p.awaitSignature(runCtx, attempt, session)
	})

	return &StartResult{Attempt: attempt, SigningRequest: session.Request()}, nil
}

// SubmitSignedTransaction hands the wallet response to the waiting attempt
// and returns once the attempt is terminal or ctx ends.
func (p *Pipeline) SubmitSignedTransaction(ctx context.Context, attemptID string, signed []byte) (*Outcome, error) {
	a, err := p.deps.Repo.GetAttempt(ctx, attemptID)
	if err != nil {
		return nil, err
	}
	ctx = logger.WithAttemptID(logger.WithInvoiceID(ctx, a.InvoiceID), attemptID)

	if a.State != domain.StateAwaitingSignature {
		return nil, domain.Errorf(domain.KindInvalidState, "attempt %s is %s, not awaiting a signature", attemptID, a.State)
	}

	if err := p.deps.Sessions.Deliver(ctx, a.SigningRequestID, signed); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.Errorf(domain.KindInvalidState, "signing request for attempt %s is no longer open", attemptID)
		}
		return nil, err
	}

	return p.Wait(ctx, attemptID)
}

// ResumeTokenization reruns a failed attempt from its first incomplete
// step. Steps already DONE are never repeated, and request tokens are the
// same as in the first run, so ledger effects that landed are reused.
// The attempt leaves FAILED before the invoice is claimed, so only one
// resume of an attempt can run at a time.
func (p *Pipeline) ResumeTokenization(ctx context.Context, attemptID string) (*Outcome, error) {
	a, err := p.deps.Repo.GetAttempt(ctx, attemptID)
	if err != nil {
		return nil, err
	}
	ctx = logger.WithAttemptID(logger.WithInvoiceID(ctx, a.InvoiceID), attemptID)

	if p.isRunning(attemptID) {
		return nil, domain.Errorf(domain.KindAlreadyInProgress, "attempt %s is already running", attemptID)
	}
	if err := resumable(a); err != nil {
		return nil, err
	}

	var (
		step     domain.Step
		previous failure
	)
	a, err = p.deps.Repo.UpdateAttempt(ctx, attemptID, func(a *domain.TokenizationAttempt) error {
		if !a.State.Terminal() {
			return domain.Errorf(domain.KindAlreadyInProgress, "attempt %s is already running (%s)", a.ID, a.State)
		}
		if err := resumable(a); err != nil {
			return err
		}
		step = a.FirstIncompleteStep()
		previous = failure{
			step:   a.FailedStep,
			kind:   a.FailureKind,
			detail: a.FailureDetail,
			status: a.Steps[step],
		}
		a.State = stateFor(step)
		a.Steps[step] = domain.StepPending
		a.FailedStep = ""
		a.FailureKind = ""
		a.FailureDetail = ""
		a.Resumes++
		return nil
	})
	if err != nil {
		return nil, err
	}

	mintDone := a.Steps[domain.StepMint] == domain.StepDone
	_, err = p.claimInvoice(ctx, a.InvoiceID, attemptID, func(inv *domain.Invoice) error {
		if mintDone {
			return nil
		}
		return tokenizable(inv)
	})
	if err != nil {
		p.restoreFailure(ctx, attemptID, step, previous)
		return nil, err
	}

	p.log.Info(ctx, "Resuming tokenization", "step", step, "resumes", a.Resumes)

	p.launch(ctx, attemptID, func(runCtx context.Context) {
		p.runLedgerSteps(runCtx, attemptID)
	})

	return p.Wait(ctx, attemptID)
}

// CancelTokenization stops an attempt that has not reached the ledger yet.
func (p *Pipeline) CancelTokenization(ctx context.Context, attemptID string) (*Outcome, error) {
	a, err := p.deps.Repo.UpdateAttempt(ctx, attemptID, func(a *domain.TokenizationAttempt) error {
		var step domain.Step
		switch a.State {
		case domain.StatePreparing:
			step = domain.StepPrepare
		case domain.StateAwaitingSignature:
			step = domain.StepSignature
		default:
			return domain.Errorf(domain.KindInvalidState, "attempt %s is %s and can no longer be cancelled", a.ID, a.State)
		}
		markFailed(a, step, domain.NewError(domain.KindCancelled, "cancelled by caller"))
		return nil
	})
	if err != nil {
		return nil, err
	}
	ctx = logger.WithAttemptID(logger.WithInvoiceID(ctx, a.InvoiceID), attemptID)

	if a.SigningRequestID != "" {
		p.deps.Sessions.CloseByID(a.SigningRequestID)
	}
	p.releaseInvoice(ctx, a.InvoiceID, attemptID)
	p.log.Info(ctx, "Tokenization cancelled", "failed_step", a.FailedStep)

	return p.outcome(ctx, a)
}

// Get returns the current outcome of an attempt without waiting.
func (p *Pipeline) Get(ctx context.Context, attemptID string) (*Outcome, error) {
	a, err := p.deps.Repo.GetAttempt(ctx, attemptID)
	if err != nil {
		return nil, err
	}
	return p.outcome(ctx, a)
}

// Wait blocks until the attempt's background run finishes or ctx ends and
// returns the outcome at that point.
func (p *Pipeline) Wait(ctx context.Context, attemptID string) (*Outcome, error) {
	p.mu.Lock()
	done, running := p.runs[attemptID]
	p.mu.Unlock()

	if running {
		select {
		case <-done:
		case <-ctx.Done():
		}
	}
	return p.Get(context.WithoutCancel(ctx), attemptID)
}

// PendingSigningRequest returns what the wallet of accountID should sign.
func (p *Pipeline) PendingSigningRequest(accountID string) (domain.SigningRequest, bool) {
	return p.deps.Sessions.Pending(accountID)
}

// RecoverStranded finishes attempts interrupted by a restart. Attempts
// that had not reached the ledger lost their signing session and are
// failed; attempts inside a ledger step are resumed where they stopped.
func (p *Pipeline) RecoverStranded(ctx context.Context) (int, error) {
	preLedger, err := p.deps.Repo.ListAttemptsByState(ctx,
		domain.StatePreparing, domain.StateAwaitingSignature, domain.StateVerifying)
	if err != nil {
		return 0, err
	}
	inLedger, err := p.deps.Repo.ListAttemptsByState(ctx,
		domain.StateMinting, domain.StateStoringFile, domain.StateLogging)
	if err != nil {
		return 0, err
	}

	recovered := 0
	for _, a := range preLedger {
		if p.isRunning(a.ID) {
			continue
		}
		actx := logger.WithAttemptID(logger.WithInvoiceID(ctx, a.InvoiceID), a.ID)
		step := domain.StepSignature
		if a.State == domain.StatePreparing {
			step = domain.StepPrepare
		}
		p.fail(actx, a.ID, step, domain.NewError(domain.KindCancelled, "signing session lost on restart"))
		recovered++
	}

	for _, a := range inLedger {
		if p.isRunning(a.ID) {
			continue
		}
		actx := logger.WithAttemptID(logger.WithInvoiceID(ctx, a.InvoiceID), a.ID)
		// A resume that stopped between leaving FAILED and claiming the
		// invoice has no owner slot yet.
		if _, err := p.claimInvoice(actx, a.InvoiceID, a.ID, func(*domain.Invoice) error { return nil }); err != nil {
			p.log.Error(actx, "Failed to reclaim invoice for stranded attempt", "error", err)
			continue
		}
		p.log.Info(actx, "Recovering stranded attempt", "state", a.State)
		attemptID := a.ID
		p.launch(actx, attemptID, func(runCtx context.Context) {
			p.runLedgerSteps(runCtx, attemptID)
		})
		recovered++
	}

	return recovered, nil
}

// Shutdown stops waiting for wallet responses and lets ledger steps in
// flight finish until ctx ends.
func (p *Pipeline) Shutdown(ctx context.Context) error {
	p.cancel()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Pipeline) launch(ctx context.Context, attemptID string, run func(ctx context.Context)) {
	done := make(chan struct{})

	p.mu.Lock()
	p.runs[attemptID] = done
	p.mu.Unlock()

	runCtx := logger.WithAttemptID(logger.WithInvoiceID(p.ctx, logger.GetInvoiceID(ctx)), attemptID)
	if traceID := logger.GetTraceID(ctx); traceID != "" {
		runCtx = logger.WithTraceID(runCtx, traceID)
	}

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer func() {
			p.mu.Lock()
			if p.runs[attemptID] == done {
				delete(p.runs, attemptID)
			}
			p.mu.Unlock()
			close(done)
		}()
		run(runCtx)
	}()
}

func (p *Pipeline) isRunning(attemptID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.runs[attemptID]
	return ok
}

func (p *Pipeline) outcome(ctx context.Context, a *domain.TokenizationAttempt) (*Outcome, error) {
	proofs, err := p.deps.Repo.ListProofs(ctx, a.InvoiceID)
	if err != nil {
		return nil, err
	}

	own := make([]domain.ProofRecord, 0, len(proofs))
	for _, pr := range proofs {
		if pr.AttemptID == a.ID {
			own = append(own, pr)
		}
	}

	o := &Outcome{
		AttemptID:   a.ID,
		InvoiceID:   a.InvoiceID,
		State:       a.State,
		Steps:       a.Steps,
		FailedStep:  a.FailedStep,
		FailureKind: a.FailureKind,
		Detail:      a.FailureDetail,
		Proofs:      own,
	}
	if a.State == domain.StateFailed {
		o.Retryable = domain.Retryable(a.FailureKind)
		o.Resumable = resumable(a) == nil
	}
	return o, nil
}

// resumable reports whether ResumeTokenization may reopen a.
func resumable(a *domain.TokenizationAttempt) error {
	if a.State != domain.StateFailed {
		return domain.Errorf(domain.KindInvalidState, "attempt %s is %s; only failed attempts resume", a.ID, a.State)
	}
	switch a.FirstIncompleteStep() {
	case domain.StepPrepare, domain.StepSignature:
		return domain.Errorf(domain.KindInvalidState, "attempt %s failed before the ledger; start a new signing round", a.ID)
	}
	if !domain.Retryable(a.FailureKind) {
		return domain.Errorf(domain.KindInvalidState, "attempt %s failed with %s at %s and cannot succeed", a.ID, a.FailureKind, a.FailedStep)
	}
	return nil
}

func stateFor(step domain.Step) domain.PipelineState {
	switch step {
	case domain.StepPrepare:
		return domain.StatePreparing
	case domain.StepSignature:
		return domain.StateAwaitingSignature
	case domain.StepMint:
		return domain.StateMinting
	case domain.StepFile:
		return domain.StateStoringFile
	case domain.StepLog:
		return domain.StateLogging
	}
	return domain.StateComplete
}
