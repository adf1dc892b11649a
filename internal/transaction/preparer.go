package transaction

import (
	"encoding/json"
	"hash/fnv"
	"time"

	"github.com/google/uuid"
	"github.com/grachmannico95/invoice-proof/internal/domain"
)

const (
	defaultValidDuration = 120 * time.Second
	defaultMaxFeeTinybar = 2_000_000_000
)

type PreparerConfig struct {
	NodeAccountID string
	Network       string
	ValidDuration time.Duration
	MaxFeeTinybar int64
}

// Prepared is an unsigned transaction ready to be handed to a wallet.
type Prepared struct {
	TransactionID string
	ValidStart    time.Time
	Nonce         string
	Bytes         []byte
	Description   string
}

// Preparer builds unsigned transactions. It never touches the network.
type Preparer struct {
	node          AccountID
	network       string
	validDuration time.Duration
	maxFee        int64
}

func NewPreparer(cfg PreparerConfig) (*Preparer, error) {
	node, err := ParseAccountID(cfg.NodeAccountID)
	if err != nil {
		return nil, domain.Errorf(domain.KindMalformedInput, "node account id %q", cfg.NodeAccountID)
	}

	p := &Preparer{
		node:          node,
		network:       cfg.Network,
		validDuration: cfg.ValidDuration,
		maxFee:        cfg.MaxFeeTinybar,
	}
	if p.validDuration <= 0 {
		p.validDuration = defaultValidDuration
	}
	if p.maxFee <= 0 {
		p.maxFee = defaultMaxFeeTinybar
	}
	return p, nil
}

func NewNonce() string {
	return uuid.New().String()
}

// Prepare validates the payer and operation and returns canonical unsigned
// bytes. The transaction id depends only on payer, start and nonce, so
// preparing again with the same inputs yields the same id and bytes.
func (p *Preparer) Prepare(op Operation, payer string, start time.Time, nonce string) (*Prepared, error) {
	payerID, err := ParseAccountID(payer)
	if err != nil {
		return nil, err
	}
	if err := op.validate(); err != nil {
		return nil, err
	}
	if nonce == "" {
		return nil, domain.NewError(domain.KindMalformedInput, "nonce is empty")
	}

	txID := TransactionID{Payer: payerID, ValidStart: validStart(start, nonce)}

	body := Body{
		TransactionID:         txID.String(),
		NodeAccountID:         p.node.String(),
		ValidDurationSeconds:  int64(p.validDuration / time.Second),
		Network:               p.network,
		Operation:             op,
		MaxTransactionFeeTiny: p.maxFee,
	}
	bodyBytes, err := json.Marshal(body)
	if err != nil {
		return nil, domain.WrapError(domain.KindInternal, err, "encode transaction body")
	}

	env := Envelope{BodyBytes: bodyBytes}
	envBytes, err := env.Encode()
	if err != nil {
		return nil, domain.WrapError(domain.KindInternal, err, "encode transaction envelope")
	}

	return &Prepared{
		TransactionID: txID.String(),
		ValidStart:    txID.ValidStart,
		Nonce:         nonce,
		Bytes:         envBytes,
		Description:   op.describe(payerID),
	}, nil
}

// validStart keeps the caller's second and derives the nanos from the
// nonce, giving distinct ids for requests started in the same second.
func validStart(start time.Time, nonce string) time.Time {
	h := fnv.New64a()
	h.Write([]byte(nonce))
	nanos := time.Duration(h.Sum64() % uint64(time.Second))
	return start.UTC().Truncate(time.Second).Add(nanos)
}
