package ledger

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/grachmannico95/invoice-proof/internal/domain"
)

type Op string

const (
	OpAssociate Op = "associate"
	OpMint      Op = "mint"
	OpCreate    Op = "create"
	OpAppend    Op = "append"
	OpSubmit    Op = "submit"
)

type fault struct {
	err    error
	landed bool
}

// Memory is an in-process ledger that honors request-token deduplication.
// It backs local runs without a gateway and the end-to-end tests.
type Memory struct {
	mu       sync.Mutex
	operator string
	clock    func() time.Time
	seq      int64

	receipts map[string]interface{}
	serials  map[string]int64
	files    map[string][]byte
	topics   map[string]int64
	metadata map[string]map[string]bool
	faults   map[Op][]fault
	calls    map[Op]int
}

var (
	_ TokenService     = (*Memory)(nil)
	_ FileService      = (*Memory)(nil)
	_ ConsensusService = (*Memory)(nil)
)

func NewMemory(operatorAccount string) *Memory {
	return &Memory{
		operator: operatorAccount,
		clock:    time.Now,
		receipts: make(map[string]interface{}),
		serials:  make(map[string]int64),
		files:    make(map[string][]byte),
		topics:   make(map[string]int64),
		metadata: make(map[string]map[string]bool),
		faults:   make(map[Op][]fault),
		calls:    make(map[Op]int),
	}
}

// FailNext queues err for the next call of op. With landed set the effect
// is applied before err is returned, which models a timeout after commit.
func (m *Memory) FailNext(op Op, err error, landed bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.faults[op] = append(m.faults[op], fault{err: err, landed: landed})
}

// Calls returns how many submissions of op reached the ledger.
func (m *Memory) Calls(op Op) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[op]
}

func (m *Memory) FileContents(fileID string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.files[fileID]
	return append([]byte(nil), c...), ok
}

func (m *Memory) Associate(ctx context.Context, requestToken string, params AssociateParams) (*Receipt, error) {
	r, err := m.apply(OpAssociate, requestToken, func() (interface{}, error) {
		return &Receipt{TransactionID: m.nextTxID()}, nil
	})
	if err != nil {
		return nil, err
	}
	c := *r.(*Receipt)
	return &c, nil
}

func (m *Memory) Mint(ctx context.Context, requestToken string, params MintParams) (*MintReceipt, error) {
	r, err := m.apply(OpMint, requestToken, func() (interface{}, error) {
		if len(params.SignedTransaction) == 0 {
			return nil, domain.NewError(domain.KindRejected, "mint requires a signed transaction")
		}
		seen := m.metadata[params.TokenID]
		if seen == nil {
			seen = make(map[string]bool)
			m.metadata[params.TokenID] = seen
		}
		if seen[string(params.Metadata)] {
			return nil, domain.Errorf(domain.KindRejected, "duplicate metadata for token %s", params.TokenID)
		}
		seen[string(params.Metadata)] = true

		m.serials[params.TokenID]++
		return &MintReceipt{
			TokenID:       params.TokenID,
			SerialNumber:  m.serials[params.TokenID],
			TransactionID: m.nextTxID(),
		}, nil
	})
	if err != nil {
		return nil, err
	}
	c := *r.(*MintReceipt)
	return &c, nil
}

func (m *Memory) LookupMint(ctx context.Context, requestToken string) (*MintReceipt, error) {
	r, err := m.lookup(requestToken)
	if err != nil {
		return nil, err
	}
	mr, ok := r.(*MintReceipt)
	if !ok {
		return nil, domain.Errorf(domain.KindNotFound, "request %s is not a mint", requestToken)
	}
	c := *mr
	return &c, nil
}

func (m *Memory) CreateFile(ctx context.Context, requestToken string, contents []byte) (*FileReceipt, error) {
	r, err := m.apply(OpCreate, requestToken, func() (interface{}, error) {
		if len(contents) > MaxFileChunk {
			return nil, domain.Errorf(domain.KindRejected, "file chunk of %d bytes exceeds %d", len(contents), MaxFileChunk)
		}
		m.seq++
		fileID := fmt.Sprintf("0.0.%d", 150000+m.seq)
		m.files[fileID] = append([]byte(nil), contents...)
		return &FileReceipt{FileID: fileID, TransactionID: m.nextTxID()}, nil
	})
	if err != nil {
		return nil, err
	}
	c := *r.(*FileReceipt)
	return &c, nil
}

func (m *Memory) AppendFile(ctx context.Context, requestToken string, fileID string, contents []byte) (*FileReceipt, error) {
	r, err := m.apply(OpAppend, requestToken, func() (interface{}, error) {
		existing, ok := m.files[fileID]
		if !ok {
			return nil, domain.Errorf(domain.KindRejected, "file %s does not exist", fileID)
		}
		if len(contents) > MaxFileChunk {
			return nil, domain.Errorf(domain.KindRejected, "file chunk of %d bytes exceeds %d", len(contents), MaxFileChunk)
		}
		m.files[fileID] = append(existing, contents...)
		return &FileReceipt{FileID: fileID, TransactionID: m.nextTxID()}, nil
	})
	if err != nil {
		return nil, err
	}
	c := *r.(*FileReceipt)
	return &c, nil
}

func (m *Memory) LookupFile(ctx context.Context, requestToken string) (*FileReceipt, error) {
	r, err := m.lookup(requestToken)
	if err != nil {
		return nil, err
	}
	fr, ok := r.(*FileReceipt)
	if !ok {
		return nil, domain.Errorf(domain.KindNotFound, "request %s is not a file operation", requestToken)
	}
	c := *fr
	return &c, nil
}

func (m *Memory) SubmitMessage(ctx context.Context, requestToken string, params MessageParams) (*ConsensusReceipt, error) {
	r, err := m.apply(OpSubmit, requestToken, func() (interface{}, error) {
		if len(params.Message) == 0 {
			return nil, domain.NewError(domain.KindRejected, "empty consensus message")
		}
		m.topics[params.TopicID]++
		return &ConsensusReceipt{
			TopicID:        params.TopicID,
			SequenceNumber: m.topics[params.TopicID],
			TransactionID:  m.nextTxID(),
		}, nil
	})
	if err != nil {
		return nil, err
	}
	c := *r.(*ConsensusReceipt)
	return &c, nil
}

func (m *Memory) LookupMessage(ctx context.Context, requestToken string) (*ConsensusReceipt, error) {
	r, err := m.lookup(requestToken)
	if err != nil {
		return nil, err
	}
	cr, ok := r.(*ConsensusReceipt)
	if !ok {
		return nil, domain.Errorf(domain.KindNotFound, "request %s is not a consensus message", requestToken)
	}
	c := *cr
	return &c, nil
}

func (m *Memory) apply(op Op, requestToken string, effect func() (interface{}, error)) (interface{}, error) {
	if requestToken == "" {
		return nil, domain.NewError(domain.KindMalformedInput, "request token is empty")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls[op]++

	var f *fault
	if queue := m.faults[op]; len(queue) > 0 {
		f = &queue[0]
		m.faults[op] = queue[1:]
	}
	if f != nil && !f.landed {
		return nil, f.err
	}

	if prior, ok := m.receipts[requestToken]; ok {
		if f != nil {
			return nil, f.err
		}
		return prior, nil
	}

	result, err := effect()
	if err != nil {
		return nil, err
	}
	m.receipts[requestToken] = result

	if f != nil {
		return nil, f.err
	}
	return result, nil
}

func (m *Memory) lookup(requestToken string) (interface{}, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.receipts[requestToken]
	if !ok {
		return nil, domain.Errorf(domain.KindNotFound, "no result for request %s", requestToken)
	}
	return r, nil
}

// nextTxID must be called with mu held.
func (m *Memory) nextTxID() string {
	m.seq++
	now := m.clock().Add(time.Duration(m.seq))
	return fmt.Sprintf("%s@%d.%09d", m.operator, now.Unix(), now.Nanosecond())
}
