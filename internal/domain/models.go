package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type InvoiceStatus string

const (
	InvoiceStatusIssued    InvoiceStatus = "ISSUED"
	InvoiceStatusFunded    InvoiceStatus = "FUNDED"
	InvoiceStatusPaid      InvoiceStatus = "PAID"
	InvoiceStatusOverdue   InvoiceStatus = "OVERDUE"
	InvoiceStatusCancelled InvoiceStatus = "CANCELLED"
)

// Invoice is mutated only by the tokenization pipeline (token, file and
// topic fields) and by lifecycle transitions (status). It is never deleted.
type Invoice struct {
	ID           string          `json:"id"`
	SupplierRef  string          `json:"supplier_ref"`
	BuyerRef     string          `json:"buyer_ref"`
	Amount       decimal.Decimal `json:"amount"`
	Currency     string          `json:"currency"`
	DueDate      time.Time       `json:"due_date"`
	Status       InvoiceStatus   `json:"status"`
	DocumentHash string          `json:"document_hash,omitempty"`
	TokenID      *string         `json:"token_id,omitempty"`
	SerialNumber *int64          `json:"serial_number,omitempty"`
	FileID       *string         `json:"file_id,omitempty"`
	TopicID      *string         `json:"topic_id,omitempty"`

	// Owner slots hold the id of the in-flight attempt or funding request.
	// They are only changed through a compare-and-set in the repository.
	TokenizationOwner string `json:"-"`
	FundingOwner      string `json:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (i *Invoice) Clone() *Invoice {
	c := *i
	c.TokenID = cloneString(i.TokenID)
	c.FileID = cloneString(i.FileID)
	c.TopicID = cloneString(i.TopicID)
	if i.SerialNumber != nil {
		s := *i.SerialNumber
		c.SerialNumber = &s
	}
	return &c
}

type FundingStatus string

const (
	FundingStatusActive   FundingStatus = "ACTIVE"
	FundingStatusReleased FundingStatus = "RELEASED"
	FundingStatusRefunded FundingStatus = "REFUNDED"
)

type Funding struct {
	ID         string          `json:"id"`
	InvoiceID  string          `json:"invoice_id"`
	InvestorID string          `json:"investor_id"`
	Amount     decimal.Decimal `json:"amount"`
	Status     FundingStatus   `json:"status"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// PipelineState is the tokenization pipeline position of an attempt.
type PipelineState string

const (
	StateNotStarted        PipelineState = "NOT_STARTED"
	StatePreparing         PipelineState = "PREPARING"
	StateAwaitingSignature PipelineState = "AWAITING_SIGNATURE"
	StateVerifying         PipelineState = "VERIFYING"
	StateMinting           PipelineState = "MINTING"
	StateStoringFile       PipelineState = "STORING_FILE"
	StateLogging           PipelineState = "LOGGING"
	StateComplete          PipelineState = "COMPLETE"
	StateFailed            PipelineState = "FAILED"
)

func (s PipelineState) Terminal() bool {
	return s == StateComplete || s == StateFailed
}

type Step string

const (
	StepPrepare   Step = "prepare"
	StepSignature Step = "signature"
	StepMint      Step = "mint"
	StepFile      Step = "file"
	StepLog       Step = "log"
)

// Steps lists every pipeline step in execution order.
var Steps = []Step{StepPrepare, StepSignature, StepMint, StepFile, StepLog}

type StepStatus string

const (
	StepPending StepStatus = "PENDING"
	StepDone    StepStatus = "DONE"
	StepFailed  StepStatus = "FAILED"
)

// TokenizationAttempt is the durable record of one tokenization request.
// Once State is terminal the record is immutable, except that a FAILED
// attempt may be reopened by a resume.
type TokenizationAttempt struct {
	ID                string              `json:"id"`
	InvoiceID         string              `json:"invoice_id"`
	SupplierAccountID string              `json:"supplier_account_id"`
	IdempotencyToken  string              `json:"idempotency_token"`
	State             PipelineState       `json:"state"`
	Steps             map[Step]StepStatus `json:"steps"`
	FailedStep        Step                `json:"failed_step,omitempty"`
	FailureKind       ErrorKind           `json:"failure_kind,omitempty"`
	FailureDetail     string              `json:"failure_detail,omitempty"`

	TransactionID    string    `json:"transaction_id,omitempty"`
	Nonce            string    `json:"nonce,omitempty"`
	ValidStart       time.Time `json:"valid_start"`
	UnsignedTx       []byte    `json:"-"`
	SignedTx         []byte    `json:"-"`
	SigningRequestID string    `json:"signing_request_id,omitempty"`

	TokenID       string `json:"token_id,omitempty"`
	SerialNumber  int64  `json:"serial_number,omitempty"`
	MintTxID      string `json:"mint_transaction_id,omitempty"`
	FileID        string `json:"file_id,omitempty"`
	FileTxID      string `json:"file_transaction_id,omitempty"`
	TopicID       string `json:"topic_id,omitempty"`
	TopicSequence int64  `json:"topic_sequence,omitempty"`
	ConsensusTxID string `json:"consensus_transaction_id,omitempty"`

	Resumes   int       `json:"resumes"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func NewTokenizationAttempt(id, invoiceID, supplierAccountID, idempotencyToken string, now time.Time) *TokenizationAttempt {
	steps := make(map[Step]StepStatus, len(Steps))
	for _, s := range Steps {
		steps[s] = StepPending
	}
	return &TokenizationAttempt{
		ID:                id,
		InvoiceID:         invoiceID,
		SupplierAccountID: supplierAccountID,
		IdempotencyToken:  idempotencyToken,
		State:             StateNotStarted,
		Steps:             steps,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
}

// FirstIncompleteStep returns the first step not yet DONE, or "" when all are.
func (a *TokenizationAttempt) FirstIncompleteStep() Step {
	for _, s := range Steps {
		if a.Steps[s] != StepDone {
			return s
		}
	}
	return ""
}

// Resumable reports whether a FAILED attempt stopped inside the ledger steps
// on a transient error, so running it again can still complete it.
func (a *TokenizationAttempt) Resumable() bool {
	if a.State != StateFailed {
		return false
	}
	switch a.FirstIncompleteStep() {
	case StepPrepare, StepSignature, "":
		return false
	}
	return Retryable(a.FailureKind)
}

// RequestToken is the ledger deduplication token for one step of this
// attempt lineage. It is stable across retries and resumes.
func (a *TokenizationAttempt) RequestToken(step Step, suffix ...string) string {
	token := a.IdempotencyToken + ":" + string(step)
	for _, s := range suffix {
		token += ":" + s
	}
	return token
}

func (a *TokenizationAttempt) Clone() *TokenizationAttempt {
	c := *a
	c.Steps = make(map[Step]StepStatus, len(a.Steps))
	for k, v := range a.Steps {
		c.Steps[k] = v
	}
	c.UnsignedTx = append([]byte(nil), a.UnsignedTx...)
	c.SignedTx = append([]byte(nil), a.SignedTx...)
	return &c
}

type SigningRequest struct {
	ID            string    `json:"id"`
	AttemptID     string    `json:"attempt_id"`
	AccountID     string    `json:"expected_signer_account_id"`
	TransactionID string    `json:"transaction_id"`
	UnsignedTx    []byte    `json:"unsigned_transaction_bytes"`
	Description   string    `json:"human_readable_description"`
	CreatedAt     time.Time `json:"created_at"`
	Deadline      time.Time `json:"deadline"`
}

type ProofKind string

const (
	ProofKindMint      ProofKind = "MINT"
	ProofKindFile      ProofKind = "FILE"
	ProofKindConsensus ProofKind = "CONSENSUS"
	ProofKindVerify    ProofKind = "VERIFY"
)

// ProofRecord is append-only and never mutated.
type ProofRecord struct {
	ID                  string    `json:"id"`
	InvoiceID           string    `json:"invoice_id"`
	AttemptID           string    `json:"attempt_id"`
	Kind                ProofKind `json:"kind"`
	LedgerTransactionID string    `json:"ledger_transaction_id"`
	Timestamp           time.Time `json:"timestamp"`
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
