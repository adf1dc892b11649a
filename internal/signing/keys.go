package signing

import (
	"context"
	"crypto/ed25519"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/grachmannico95/invoice-proof/internal/domain"
	"github.com/grachmannico95/invoice-proof/internal/transaction"
	"github.com/hashicorp/golang-lru/v2/expirable"
)

// KeyResolver returns the public key bound to a ledger account.
type KeyResolver interface {
	PublicKey(ctx context.Context, accountID string) (ed25519.PublicKey, error)
}

// StaticKeyResolver serves keys registered in process. Used for local runs
// and tests.
type StaticKeyResolver struct {
	mu   sync.RWMutex
	keys map[string]ed25519.PublicKey
}

func NewStaticKeyResolver() *StaticKeyResolver {
	return &StaticKeyResolver{keys: make(map[string]ed25519.PublicKey)}
}

func (r *StaticKeyResolver) Register(accountID string, key ed25519.PublicKey) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.keys[accountID] = key
}

func (r *StaticKeyResolver) PublicKey(ctx context.Context, accountID string) (ed25519.PublicKey, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	key, ok := r.keys[accountID]
	if !ok {
		return nil, domain.Errorf(domain.KindNotFound, "no key registered for account %s", accountID)
	}
	return key, nil
}

type MirrorConfig struct {
	BaseURL   string
	Timeout   time.Duration
	CacheSize int
	CacheTTL  time.Duration
}

// MirrorKeyResolver reads account keys from a Mirror Node REST API and
// caches them.
type MirrorKeyResolver struct {
	baseURL    string
	httpClient *http.Client
	cache      *expirable.LRU[string, ed25519.PublicKey]
}

func NewMirrorKeyResolver(cfg MirrorConfig) *MirrorKeyResolver {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = 1024
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 5 * time.Minute
	}

	return &MirrorKeyResolver{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{Timeout: cfg.Timeout},
		cache:      expirable.NewLRU[string, ed25519.PublicKey](cfg.CacheSize, nil, cfg.CacheTTL),
	}
}

type mirrorAccount struct {
	Account string `json:"account"`
	Key     *struct {
		Type string `json:"_type"`
		Key  string `json:"key"`
	} `json:"key"`
}

func (r *MirrorKeyResolver) PublicKey(ctx context.Context, accountID string) (ed25519.PublicKey, error) {
	if key, ok := r.cache.Get(accountID); ok {
		return key, nil
	}

	account, err := transaction.ParseAccountID(accountID)
	if err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/api/v1/accounts/%s", r.baseURL, account)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, domain.WrapError(domain.KindInternal, err, "create mirror request")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		var netErr net.Error
		if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
			return nil, domain.WrapError(domain.KindTimeout, err, "mirror node")
		}
		return nil, domain.WrapError(domain.KindUnreachable, err, "mirror node")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, domain.WrapError(domain.KindUnreachable, err, "read mirror response")
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, domain.Errorf(domain.KindNotFound, "account %s not found on mirror node", accountID)
	case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
		return nil, domain.Errorf(domain.KindUnreachable, "mirror node status %d", resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return nil, domain.Errorf(domain.KindMalformedInput, "mirror node status %d: %s", resp.StatusCode, string(body))
	}

	var acc mirrorAccount
	if err := json.Unmarshal(body, &acc); err != nil {
		return nil, domain.WrapError(domain.KindMalformedInput, err, "decode mirror account")
	}
	if acc.Key == nil {
		return nil, domain.Errorf(domain.KindMalformedInput, "account %s has no key", accountID)
	}
	if acc.Key.Type != "ED25519" {
		return nil, domain.Errorf(domain.KindUnsupportedOperation, "account %s key type %s", accountID, acc.Key.Type)
	}

	raw, err := hex.DecodeString(strings.TrimPrefix(acc.Key.Key, "0x"))
	if err != nil {
		return nil, domain.WrapError(domain.KindMalformedInput, err, "decode account key")
	}
	raw = stripDERPrefix(raw)
	if len(raw) != ed25519.PublicKeySize {
		return nil, domain.Errorf(domain.KindMalformedInput, "account %s key is %d bytes", accountID, len(raw))
	}

	key := ed25519.PublicKey(raw)
	r.cache.Add(accountID, key)
	return key, nil
}

// DER-encoded ed25519 public keys carry a fixed 12-byte SubjectPublicKeyInfo header.
var ed25519DERPrefix = []byte{0x30, 0x2a, 0x30, 0x05, 0x06, 0x03, 0x2b, 0x65, 0x70, 0x03, 0x21, 0x00}

func stripDERPrefix(b []byte) []byte {
	if len(b) == len(ed25519DERPrefix)+ed25519.PublicKeySize && strings.HasPrefix(string(b), string(ed25519DERPrefix)) {
		return b[len(ed25519DERPrefix):]
	}
	return b
}
