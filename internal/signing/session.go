package signing

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/grachmannico95/invoice-proof/internal/domain"
	"github.com/grachmannico95/invoice-proof/internal/metrics"
	"github.com/grachmannico95/invoice-proof/pkg/logger"
)

// Session is one outstanding signing request. A handle stays valid after
// Close; further Await calls report the session as cancelled.
type Session struct {
	request  domain.SigningRequest
	response chan []byte
	done     chan struct{}
	once     sync.Once
}

func (s *Session) ID() string {
	return s.request.ID
}

func (s *Session) Request() domain.SigningRequest {
	r := s.request
	r.UnsignedTx = append([]byte(nil), s.request.UnsignedTx...)
	return r
}

// Manager tracks open signing sessions, at most one per account.
type Manager struct {
	mu        sync.Mutex
	byAccount map[string]*Session
	byID      map[string]*Session
	timeout   time.Duration
	logger    *logger.Logger
	now       func() time.Time
}

func NewManager(timeout time.Duration, log *logger.Logger) *Manager {
	return &Manager{
		byAccount: make(map[string]*Session),
		byID:      make(map[string]*Session),
		timeout:   timeout,
		logger:    log,
		now:       time.Now,
	}
}

// Open registers a signing request for req.AccountID. ID, CreatedAt and
// Deadline are filled in by the manager.
func (m *Manager) Open(ctx context.Context, req domain.SigningRequest) (*Session, error) {
	if req.AccountID == "" || len(req.UnsignedTx) == 0 {
		return nil, domain.NewError(domain.KindMalformedInput, "signing request needs an account and transaction bytes")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, ok := m.byAccount[req.AccountID]; ok {
		return nil, domain.Errorf(domain.KindSessionAlreadyOpen,
			"account %s already has signing request %s outstanding", req.AccountID, existing.request.ID)
	}

	now := m.now()
	req.ID = uuid.New().String()
	req.CreatedAt = now
	req.Deadline = now.Add(m.timeout)
	req.UnsignedTx = append([]byte(nil), req.UnsignedTx...)

	s := &Session{
		request:  req,
		response: make(chan []byte, 1),
		done:     make(chan struct{}),
	}
	m.byAccount[req.AccountID] = s
	m.byID[req.ID] = s
	metrics.SigningSessionsOpen.Inc()

	m.logger.Info(ctx, "Signing session opened",
		"signing_request_id", req.ID,
		"account_id", req.AccountID,
		"transaction_id", req.TransactionID,
		"deadline", req.Deadline,
	)

	return s, nil
}

// Await blocks until the wallet responds, the timeout elapses or ctx ends.
// The session is closed on every path, so a late response is discarded.
// A non-positive timeout uses the manager default.
func (m *Manager) Await(ctx context.Context, s *Session, timeout time.Duration) ([]byte, error) {
	defer m.Close(s)

	if timeout <= 0 {
		timeout = m.timeout
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case signed := <-s.response:
		metrics.SigningSessionsTotal.WithLabelValues("responded").Inc()
		return signed, nil
	case <-timer.C:
		metrics.SigningSessionsTotal.WithLabelValues("timeout").Inc()
		m.logger.Warn(ctx, "Signing session timed out",
			"signing_request_id", s.request.ID,
			"account_id", s.request.AccountID,
		)
		return nil, domain.Errorf(domain.KindTimeout, "wallet did not respond within %s", timeout)
	case <-s.done:
		metrics.SigningSessionsTotal.WithLabelValues("closed").Inc()
		return nil, domain.NewError(domain.KindCancelled, "signing session closed")
	case <-ctx.Done():
		metrics.SigningSessionsTotal.WithLabelValues("cancelled").Inc()
		return nil, domain.WrapError(domain.KindCancelled, ctx.Err(), "signing wait cancelled")
	}
}

// Deliver hands a wallet response to the session waiting on it. Responses
// for unknown or closed sessions are rejected with not_found.
func (m *Manager) Deliver(ctx context.Context, sessionID string, signed []byte) error {
	if len(signed) == 0 {
		return domain.NewError(domain.KindMalformedInput, "signed transaction bytes are empty")
	}

	m.mu.Lock()
	s, ok := m.byID[sessionID]
	m.mu.Unlock()
	if !ok {
		m.logger.Warn(ctx, "Discarding response for closed signing session",
			"signing_request_id", sessionID,
		)
		return domain.Errorf(domain.KindNotFound, "signing request %s is not open", sessionID)
	}

	select {
	case s.response <- append([]byte(nil), signed...):
		return nil
	default:
		return domain.Errorf(domain.KindInvalidState, "signing request %s already has a response", sessionID)
	}
}

// Close releases the account slot. Calling it more than once is a no-op.
func (m *Manager) Close(s *Session) {
	s.once.Do(func() {
		m.mu.Lock()
		if m.byAccount[s.request.AccountID] == s {
			delete(m.byAccount, s.request.AccountID)
		}
		delete(m.byID, s.request.ID)
		m.mu.Unlock()

		close(s.done)
		metrics.SigningSessionsOpen.Dec()
	})
}

// CloseByID closes the session with the given id if it is still open.
func (m *Manager) CloseByID(sessionID string) bool {
	m.mu.Lock()
	s, ok := m.byID[sessionID]
	m.mu.Unlock()
	if !ok {
		return false
	}
	m.Close(s)
	return true
}

// Pending returns the request the wallet for accountID should sign next.
func (m *Manager) Pending(accountID string) (domain.SigningRequest, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.byAccount[accountID]
	if !ok {
		return domain.SigningRequest{}, false
	}
	return s.Request(), true
}
