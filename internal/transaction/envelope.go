package transaction

import (
	"crypto/ed25519"
	"encoding/json"

	"github.com/grachmannico95/invoice-proof/internal/domain"
)

// Body is the signed part of a transaction. It is serialized with
// encoding/json over a fixed struct, so equal values always produce equal
// bytes.
type Body struct {
	TransactionID         string    `json:"transactionId"`
	NodeAccountID         string    `json:"nodeAccountId"`
	ValidDurationSeconds  int64     `json:"validDurationSeconds"`
	Network               string    `json:"network"`
	Operation             Operation `json:"operation"`
	MaxTransactionFeeTiny int64     `json:"maxTransactionFee"`
}

type SignaturePair struct {
	PubKeyPrefix []byte `json:"pubKeyPrefix"`
	Ed25519      []byte `json:"ed25519"`
}

// Envelope carries body bytes plus the signatures collected over them.
// An unsigned envelope has an empty SigMap.
type Envelope struct {
	BodyBytes []byte          `json:"bodyBytes"`
	SigMap    []SignaturePair `json:"sigMap"`
}

func (e *Envelope) Encode() ([]byte, error) {
	if e.SigMap == nil {
		e.SigMap = []SignaturePair{}
	}
	return json.Marshal(e)
}

func DecodeEnvelope(b []byte) (*Envelope, error) {
	if len(b) == 0 {
		return nil, domain.NewError(domain.KindMalformedInput, "transaction bytes are empty")
	}

	var env Envelope
	if err := json.Unmarshal(b, &env); err != nil {
		return nil, domain.WrapError(domain.KindMalformedInput, err, "decode transaction envelope")
	}
	if len(env.BodyBytes) == 0 {
		return nil, domain.NewError(domain.KindMalformedInput, "transaction envelope has no body")
	}
	return &env, nil
}

func DecodeBody(b []byte) (*Body, error) {
	var body Body
	if err := json.Unmarshal(b, &body); err != nil {
		return nil, domain.WrapError(domain.KindMalformedInput, err, "decode transaction body")
	}
	return &body, nil
}

// Sign adds an ed25519 signature over the body of an encoded envelope and
// returns the re-encoded envelope. Wallets do this on their side; the
// server uses it only for operator-paid transactions and in tests.
func Sign(envelope []byte, key ed25519.PrivateKey) ([]byte, error) {
	env, err := DecodeEnvelope(envelope)
	if err != nil {
		return nil, err
	}

	pub := key.Public().(ed25519.PublicKey)
	env.SigMap = append(env.SigMap, SignaturePair{
		PubKeyPrefix: append([]byte(nil), pub...),
		Ed25519:      ed25519.Sign(key, env.BodyBytes),
	})
	return env.Encode()
}
