package signing

import (
	"context"
	"crypto/ed25519"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/grachmannico95/invoice-proof/internal/domain"
	"github.com/grachmannico95/invoice-proof/internal/transaction"
	"github.com/grachmannico95/invoice-proof/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type verifierFixture struct {
	verifier *Verifier
	priv     ed25519.PrivateKey
	unsigned []byte
}

func newVerifierFixture(t *testing.T) verifierFixture {
	t.Helper()

	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	keys := NewStaticKeyResolver()
	keys.Register("0.0.1001", pub)

	preparer, err := transaction.NewPreparer(transaction.PreparerConfig{NodeAccountID: "0.0.3"})
	require.NoError(t, err)
	prepared, err := preparer.Prepare(transaction.Operation{
		Kind:     transaction.OperationMint,
		TokenID:  "0.0.9001",
		Metadata: []byte("INV-100"),
	}, "0.0.1001", time.Now(), "nonce")
	require.NoError(t, err)

	return verifierFixture{
		verifier: NewVerifier(keys, logger.NewNop()),
		priv:     priv,
		unsigned: prepared.Bytes,
	}
}

func TestVerifier_ValidSignature(t *testing.T) {
	f := newVerifierFixture(t)

	signed, err := transaction.Sign(f.unsigned, f.priv)
	require.NoError(t, err)

	ok, err := f.verifier.Verify(context.Background(), f.unsigned, signed, "0.0.1001")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestVerifier_WrongKey(t *testing.T) {
	f := newVerifierFixture(t)
	_, other, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	signed, err := transaction.Sign(f.unsigned, other)
	require.NoError(t, err)

	ok, err := f.verifier.Verify(context.Background(), f.unsigned, signed, "0.0.1001")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestVerifier_TamperedBody(t *testing.T) {
	f := newVerifierFixture(t)

	env, err := transaction.DecodeEnvelope(f.unsigned)
	require.NoError(t, err)
	body, err := transaction.DecodeBody(env.BodyBytes)
	require.NoError(t, err)
	body.Operation.Metadata = []byte("INV-999")
	env.BodyBytes, err = json.Marshal(body)
	require.NoError(t, err)
	tampered, err := env.Encode()
	require.NoError(t, err)

	// A correct signature over substituted bytes is still rejected.
	signed, err := transaction.Sign(tampered, f.priv)
	require.NoError(t, err)

	ok, err := f.verifier.Verify(context.Background(), f.unsigned, signed, "0.0.1001")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestVerifier_UnsignedResponse(t *testing.T) {
	f := newVerifierFixture(t)

	ok, err := f.verifier.Verify(context.Background(), f.unsigned, f.unsigned, "0.0.1001")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestVerifier_MalformedInput(t *testing.T) {
	f := newVerifierFixture(t)
	ctx := context.Background()

	_, err := f.verifier.Verify(ctx, nil, f.unsigned, "0.0.1001")
	assert.ErrorIs(t, err, domain.ErrMalformedInput)

	_, err = f.verifier.Verify(ctx, f.unsigned, []byte{}, "0.0.1001")
	assert.ErrorIs(t, err, domain.ErrMalformedInput)

	_, err = f.verifier.Verify(ctx, f.unsigned, []byte("garbage"), "0.0.1001")
	assert.ErrorIs(t, err, domain.ErrMalformedInput)

	_, err = f.verifier.Verify(ctx, f.unsigned, f.unsigned, "alice")
	assert.ErrorIs(t, err, domain.ErrInvalidPayer)
}

func TestVerifier_UnknownAccount(t *testing.T) {
	f := newVerifierFixture(t)

	signed, err := transaction.Sign(f.unsigned, f.priv)
	require.NoError(t, err)

	_, err = f.verifier.Verify(context.Background(), f.unsigned, signed, "0.0.4040")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestMirrorKeyResolver(t *testing.T) {
	pub, _, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		switch r.URL.Path {
		case "/api/v1/accounts/0.0.1001":
			_ = json.NewEncoder(w).Encode(map[string]interface{}{
				"account": "0.0.1001",
				"key":     map[string]string{"_type": "ED25519", "key": hex.EncodeToString(pub)},
			})
		case "/api/v1/accounts/0.0.2002":
			_ = json.NewEncoder(w).Encode(map[string]interface{}{
				"account": "0.0.2002",
				"key":     map[string]string{"_type": "ECDSA_SECP256K1", "key": "02abcd"},
			})
		case "/api/v1/accounts/0.0.5000":
			w.WriteHeader(http.StatusServiceUnavailable)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	r := NewMirrorKeyResolver(MirrorConfig{BaseURL: srv.URL})
	ctx := context.Background()

	key, err := r.PublicKey(ctx, "0.0.1001")
	require.NoError(t, err)
	assert.Equal(t, pub, key)

	_, err = r.PublicKey(ctx, "0.0.1001")
	require.NoError(t, err)
	assert.Equal(t, int32(1), calls.Load())

	_, err = r.PublicKey(ctx, "0.0.2002")
	assert.ErrorIs(t, err, domain.ErrUnsupportedOperation)

	_, err = r.PublicKey(ctx, "0.0.3003")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = r.PublicKey(ctx, "0.0.5000")
	assert.ErrorIs(t, err, domain.ErrUnreachable)
}

func TestStripDERPrefix(t *testing.T) {
	pub, _, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	der := append(append([]byte(nil), ed25519DERPrefix...), pub...)
	assert.Equal(t, []byte(pub), stripDERPrefix(der))
	assert.Equal(t, []byte(pub), stripDERPrefix(pub))
}
