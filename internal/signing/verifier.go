package signing

import (
	"bytes"
	"context"
	"crypto/ed25519"

	"github.com/grachmannico95/invoice-proof/internal/metrics"
	"github.com/grachmannico95/invoice-proof/internal/transaction"
	"github.com/grachmannico95/invoice-proof/pkg/logger"
)

// Verifier checks wallet responses before anything reaches the ledger.
type Verifier struct {
	keys   KeyResolver
	logger *logger.Logger
}

func NewVerifier(keys KeyResolver, log *logger.Logger) *Verifier {
	return &Verifier{keys: keys, logger: log}
}

// Verify reports whether signed carries the same body as unsigned and a
// valid signature over it by the key of expectedAccount. An invalid
// signature is a false result, not an error; errors mean the input could
// not be decoded or the account key could not be resolved.
func (v *Verifier) Verify(ctx context.Context, unsigned, signed []byte, expectedAccount string) (bool, error) {
	original, err := transaction.DecodeEnvelope(unsigned)
	if err != nil {
		return false, err
	}
	response, err := transaction.DecodeEnvelope(signed)
	if err != nil {
		return false, err
	}
	if _, err := transaction.ParseAccountID(expectedAccount); err != nil {
		return false, err
	}

	if !bytes.Equal(original.BodyBytes, response.BodyBytes) {
		v.reject(ctx, expectedAccount, "body_mismatch")
		return false, nil
	}

	key, err := v.keys.PublicKey(ctx, expectedAccount)
	if err != nil {
		return false, err
	}

	for _, pair := range response.SigMap {
		if !bytes.HasPrefix(key, pair.PubKeyPrefix) {
			continue
		}
		if len(pair.Ed25519) != ed25519.SignatureSize {
			continue
		}
		if ed25519.Verify(key, response.BodyBytes, pair.Ed25519) {
			metrics.SignatureVerificationsTotal.WithLabelValues("valid").Inc()
			return true, nil
		}
	}

	v.reject(ctx, expectedAccount, "bad_signature")
	return false, nil
}

func (v *Verifier) reject(ctx context.Context, account, reason string) {
	metrics.SignatureVerificationsTotal.WithLabelValues(reason).Inc()
	v.logger.Warn(ctx, "Signature rejected",
		"account_id", account,
		"reason", reason,
	)
}
