package signing

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/grachmannico95/invoice-proof/internal/domain"
	"github.com/grachmannico95/invoice-proof/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRequest(account string) domain.SigningRequest {
	return domain.SigningRequest{
		AttemptID:     "A-1",
		AccountID:     account,
		TransactionID: "0.0.1001@1.1",
		UnsignedTx:    []byte(`{"bodyBytes":"e30=","sigMap":[]}`),
		Description:   "Mint 1 NFT",
	}
}

func TestManager_OpenAwaitDeliver(t *testing.T) {
	m := NewManager(time.Second, logger.NewNop())
	ctx := context.Background()

	s, err := m.Open(ctx, newRequest("0.0.1001"))
	require.NoError(t, err)
	assert.NotEmpty(t, s.ID())

	pending, ok := m.Pending("0.0.1001")
	require.True(t, ok)
	assert.Equal(t, s.ID(), pending.ID)
	assert.False(t, pending.Deadline.IsZero())

	go func() {
		_ = m.Deliver(ctx, s.ID(), []byte("signed"))
	}()

	signed, err := m.Await(ctx, s, time.Second)
	require.NoError(t, err)
	assert.Equal(t, []byte("signed"), signed)

	_, ok = m.Pending("0.0.1001")
	assert.False(t, ok)
}

func TestManager_OneSessionPerAccount(t *testing.T) {
	m := NewManager(time.Second, logger.NewNop())
	ctx := context.Background()

	s, err := m.Open(ctx, newRequest("0.0.1001"))
	require.NoError(t, err)

	_, err = m.Open(ctx, newRequest("0.0.1001"))
	assert.ErrorIs(t, err, domain.ErrSessionAlreadyOpen)

	_, err = m.Open(ctx, newRequest("0.0.2002"))
	assert.NoError(t, err)

	m.Close(s)
	_, err = m.Open(ctx, newRequest("0.0.1001"))
	assert.NoError(t, err)
}

func TestManager_ConcurrentOpen(t *testing.T) {
	m := NewManager(time.Second, logger.NewNop())
	ctx := context.Background()

	var wg sync.WaitGroup
	var mu sync.Mutex
	opened := 0
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := m.Open(ctx, newRequest("0.0.1001")); err == nil {
				mu.Lock()
				opened++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, opened)
}

func TestManager_AwaitTimeoutDiscardsLateResponse(t *testing.T) {
	m := NewManager(time.Second, logger.NewNop())
	ctx := context.Background()

	s, err := m.Open(ctx, newRequest("0.0.1001"))
	require.NoError(t, err)

	_, err = m.Await(ctx, s, 20*time.Millisecond)
	assert.ErrorIs(t, err, domain.ErrTimeout)

	err = m.Deliver(ctx, s.ID(), []byte("late"))
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, ok := m.Pending("0.0.1001")
	assert.False(t, ok)
}

func TestManager_CloseIsIdempotent(t *testing.T) {
	m := NewManager(time.Second, logger.NewNop())
	ctx := context.Background()

	s, err := m.Open(ctx, newRequest("0.0.1001"))
	require.NoError(t, err)

	m.Close(s)
	m.Close(s)
	assert.False(t, m.CloseByID(s.ID()))

	_, err = m.Await(ctx, s, time.Second)
	assert.ErrorIs(t, err, domain.ErrCancelled)
}

func TestManager_CloseByIDWakesAwait(t *testing.T) {
	m := NewManager(time.Second, logger.NewNop())
	ctx := context.Background()

	s, err := m.Open(ctx, newRequest("0.0.1001"))
	require.NoError(t, err)

	go func() {
		time.Sleep(10 * time.Millisecond)
		m.CloseByID(s.ID())
	}()

	_, err = m.Await(ctx, s, 5*time.Second)
	assert.ErrorIs(t, err, domain.ErrCancelled)
}

func TestManager_DeliverTwice(t *testing.T) {
	m := NewManager(time.Second, logger.NewNop())
	ctx := context.Background()

	s, err := m.Open(ctx, newRequest("0.0.1001"))
	require.NoError(t, err)

	require.NoError(t, m.Deliver(ctx, s.ID(), []byte("one")))
	err = m.Deliver(ctx, s.ID(), []byte("two"))
	assert.ErrorIs(t, err, domain.ErrInvalidState)
}

func TestManager_OpenRejectsEmptyRequest(t *testing.T) {
	m := NewManager(time.Second, logger.NewNop())

	_, err := m.Open(context.Background(), domain.SigningRequest{AccountID: "0.0.1001"})
	assert.ErrorIs(t, err, domain.ErrMalformedInput)
}
