package transaction

import (
	"crypto/ed25519"
	"testing"
	"time"

	"github.com/grachmannico95/invoice-proof/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestPreparer(t *testing.T) *Preparer {
	t.Helper()
	p, err := NewPreparer(PreparerConfig{NodeAccountID: "0.0.3", Network: "testnet"})
	require.NoError(t, err)
	return p
}

func mintOp() Operation {
	return Operation{Kind: OperationMint, TokenID: "0.0.9001", Metadata: []byte("ipfs://invoice/INV-100"), Memo: "INV-100"}
}

func TestParseAccountID(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{name: "plain", input: "0.0.1001", want: "0.0.1001"},
		{name: "with checksum", input: "0.0.1001-abcde", want: "0.0.1001"},
		{name: "non zero shard", input: "1.2.3", want: "1.2.3"},
		{name: "empty", input: "", wantErr: true},
		{name: "two components", input: "0.1001", wantErr: true},
		{name: "letters", input: "0.0.abc", wantErr: true},
		{name: "negative", input: "0.0.-1", wantErr: true},
		{name: "bad checksum", input: "0.0.1001-ABCDE", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseAccountID(tt.input)
			if tt.wantErr {
				assert.ErrorIs(t, err, domain.ErrInvalidPayer)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.String())
		})
	}
}

func TestTransactionID_RoundTrip(t *testing.T) {
	id := TransactionID{
		Payer:      AccountID{Num: 1001},
		ValidStart: time.Unix(1700000000, 42).UTC(),
	}
	assert.Equal(t, "0.0.1001@1700000000.000000042", id.String())

	parsed, err := ParseTransactionID(id.String())
	require.NoError(t, err)
	assert.Equal(t, id, parsed)

	_, err = ParseTransactionID("0.0.1001")
	assert.ErrorIs(t, err, domain.ErrMalformedInput)
}

func TestPrepare_Deterministic(t *testing.T) {
	p := newTestPreparer(t)
	start := time.Date(2026, 3, 1, 10, 0, 0, 500, time.UTC)

	first, err := p.Prepare(mintOp(), "0.0.1001", start, "nonce-1")
	require.NoError(t, err)
	second, err := p.Prepare(mintOp(), "0.0.1001", start, "nonce-1")
	require.NoError(t, err)

	assert.Equal(t, first.TransactionID, second.TransactionID)
	assert.Equal(t, first.Bytes, second.Bytes)
	assert.Contains(t, first.TransactionID, "0.0.1001@1772359200.")

	other, err := p.Prepare(mintOp(), "0.0.1001", start, "nonce-2")
	require.NoError(t, err)
	assert.NotEqual(t, first.TransactionID, other.TransactionID)
}

func TestPrepare_ProducesUnsignedEnvelope(t *testing.T) {
	p := newTestPreparer(t)

	prepared, err := p.Prepare(mintOp(), "0.0.1001", time.Now(), NewNonce())
	require.NoError(t, err)

	env, err := DecodeEnvelope(prepared.Bytes)
	require.NoError(t, err)
	assert.Empty(t, env.SigMap)

	body, err := DecodeBody(env.BodyBytes)
	require.NoError(t, err)
	assert.Equal(t, prepared.TransactionID, body.TransactionID)
	assert.Equal(t, "0.0.3", body.NodeAccountID)
	assert.Equal(t, OperationMint, body.Operation.Kind)
	assert.Contains(t, prepared.Description, "0.0.9001")
}

func TestPrepare_Errors(t *testing.T) {
	p := newTestPreparer(t)
	now := time.Now()

	tests := []struct {
		name  string
		op    Operation
		payer string
		want  error
	}{
		{name: "empty payer", op: mintOp(), payer: "", want: domain.ErrInvalidPayer},
		{name: "malformed payer", op: mintOp(), payer: "alice", want: domain.ErrInvalidPayer},
		{name: "unknown kind", op: Operation{Kind: "burn"}, payer: "0.0.1001", want: domain.ErrUnsupportedOperation},
		{name: "mint without metadata", op: Operation{Kind: OperationMint, TokenID: "0.0.9001"}, payer: "0.0.1001", want: domain.ErrMalformedInput},
		{name: "mint metadata too large", op: Operation{Kind: OperationMint, TokenID: "0.0.9001", Metadata: make([]byte, MaxMetadataBytes+1)}, payer: "0.0.1001", want: domain.ErrMalformedInput},
		{name: "transfer without recipient", op: Operation{Kind: OperationTransfer, TokenID: "0.0.9001", SerialNumber: 1}, payer: "0.0.1001", want: domain.ErrMalformedInput},
		{name: "status update without topic", op: Operation{Kind: OperationStatusUpdate, Message: []byte("x")}, payer: "0.0.1001", want: domain.ErrMalformedInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := p.Prepare(tt.op, tt.payer, now, "nonce")
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestPrepare_AllKinds(t *testing.T) {
	p := newTestPreparer(t)

	ops := []Operation{
		mintOp(),
		{Kind: OperationTransfer, TokenID: "0.0.9001", SerialNumber: 1, Recipient: "0.0.2002"},
		{Kind: OperationStatusUpdate, TopicID: "0.0.5005", Message: []byte(`{"status":"ISSUED"}`)},
	}
	for _, op := range ops {
		t.Run(string(op.Kind), func(t *testing.T) {
			prepared, err := p.Prepare(op, "0.0.1001", time.Now(), NewNonce())
			require.NoError(t, err)
			assert.NotEmpty(t, prepared.Bytes)
			assert.NotEmpty(t, prepared.Description)
		})
	}
}

func TestSign(t *testing.T) {
	p := newTestPreparer(t)
	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	prepared, err := p.Prepare(mintOp(), "0.0.1001", time.Now(), NewNonce())
	require.NoError(t, err)

	signed, err := Sign(prepared.Bytes, priv)
	require.NoError(t, err)

	env, err := DecodeEnvelope(signed)
	require.NoError(t, err)
	require.Len(t, env.SigMap, 1)
	assert.True(t, ed25519.Verify(pub, env.BodyBytes, env.SigMap[0].Ed25519))
}

func TestDecodeEnvelope_Malformed(t *testing.T) {
	_, err := DecodeEnvelope(nil)
	assert.ErrorIs(t, err, domain.ErrMalformedInput)

	_, err = DecodeEnvelope([]byte("not json"))
	assert.ErrorIs(t, err, domain.ErrMalformedInput)

	_, err = DecodeEnvelope([]byte(`{"sigMap":[]}`))
	assert.ErrorIs(t, err, domain.ErrMalformedInput)
}
