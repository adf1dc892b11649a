package eventbus

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/grachmannico95/invoice-proof/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dialHub(t *testing.T, srv *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/proofs" + query
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func TestHub_PushesProofsToSubscribers(t *testing.T) {
	hub := NewHub(logger.NewNop())
	srv := httptest.NewServer(hub)
	defer srv.Close()

	all := dialHub(t, srv, "")
	filtered := dialHub(t, srv, "?invoice_id=inv-2")
	require.Eventually(t, func() bool { return hub.Subscribers() == 2 }, time.Second, 5*time.Millisecond)

	ctx := context.Background()
	require.NoError(t, hub.Consume(ctx, NewProofEvent(testProof("p-1", "inv-1"))))
	require.NoError(t, hub.Consume(ctx, NewProofEvent(testProof("p-2", "inv-2"))))

	_ = all.SetReadDeadline(time.Now().Add(2 * time.Second))
	var got Event
	require.NoError(t, all.ReadJSON(&got))
	assert.Equal(t, "p-1", got.ID)
	require.NoError(t, all.ReadJSON(&got))
	assert.Equal(t, "p-2", got.ID)

	_ = filtered.SetReadDeadline(time.Now().Add(2 * time.Second))
	require.NoError(t, filtered.ReadJSON(&got))
	assert.Equal(t, "p-2", got.ID)
	assert.Equal(t, EventTypeProofRecorded, got.Type)
}

func TestHub_RemovesClosedSubscriber(t *testing.T) {
	hub := NewHub(logger.NewNop())
	srv := httptest.NewServer(hub)
	defer srv.Close()

	conn := dialHub(t, srv, "")
	require.Eventually(t, func() bool { return hub.Subscribers() == 1 }, time.Second, 5*time.Millisecond)

	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool { return hub.Subscribers() == 0 }, time.Second, 5*time.Millisecond)
}

func TestHub_Close(t *testing.T) {
	hub := NewHub(logger.NewNop())
	srv := httptest.NewServer(hub)
	defer srv.Close()

	conn := dialHub(t, srv, "")
	require.Eventually(t, func() bool { return hub.Subscribers() == 1 }, time.Second, 5*time.Millisecond)

	hub.Close()
	assert.Equal(t, 0, hub.Subscribers())

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := conn.ReadMessage()
	assert.Error(t, err)
}

func TestHub_RejectsUnknownPayload(t *testing.T) {
	hub := NewHub(logger.NewNop())
	err := hub.Consume(context.Background(), Event{ID: "x", Payload: 42})
	assert.Error(t, err)
}
