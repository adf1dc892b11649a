package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/grachmannico95/invoice-proof/internal/domain"
	"github.com/grachmannico95/invoice-proof/internal/metrics"
	"github.com/grachmannico95/invoice-proof/pkg/logger"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/time/rate"
)

const idempotencyHeader = "Idempotency-Key"

type GatewayConfig struct {
	BaseURL     string
	APIKey      string
	CallTimeout time.Duration
	RateLimit   float64
	RateBurst   int
	CacheSize   int
	CacheTTL    time.Duration
}

// Gateway talks to the ledger REST gateway. One instance serves all three
// services; it forwards the request token as Idempotency-Key and keeps the
// receipts it has seen so a repeated token is answered locally.
type Gateway struct {
	baseURL     string
	apiKey      string
	callTimeout time.Duration
	httpClient  *http.Client
	limiter     *rate.Limiter
	receipts    *expirable.LRU[string, json.RawMessage]
	logger      *logger.Logger
}

var (
	_ TokenService     = (*Gateway)(nil)
	_ FileService      = (*Gateway)(nil)
	_ ConsensusService = (*Gateway)(nil)
)

func NewGateway(cfg GatewayConfig, log *logger.Logger) *Gateway {
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = 10 * time.Second
	}
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = 10
	}
	if cfg.RateBurst <= 0 {
		cfg.RateBurst = 1
	}
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = 4096
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = time.Hour
	}

	return &Gateway{
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:      cfg.APIKey,
		callTimeout: cfg.CallTimeout,
		httpClient:  &http.Client{},
		limiter:     rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateBurst),
		receipts:    expirable.NewLRU[string, json.RawMessage](cfg.CacheSize, nil, cfg.CacheTTL),
		logger:      log,
	}
}

func (g *Gateway) Associate(ctx context.Context, requestToken string, params AssociateParams) (*Receipt, error) {
	var out Receipt
	path := "/v1/tokens/" + url.PathEscape(params.TokenID) + "/associations"
	err := g.submit(ctx, "token", "associate", path, requestToken, map[string]interface{}{
		"account_id": params.AccountID,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (g *Gateway) Mint(ctx context.Context, requestToken string, params MintParams) (*MintReceipt, error) {
	var out MintReceipt
	path := "/v1/tokens/" + url.PathEscape(params.TokenID) + "/mint"
	err := g.submit(ctx, "token", "mint", path, requestToken, map[string]interface{}{
		"metadata":           params.Metadata,
		"signed_transaction": params.SignedTransaction,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (g *Gateway) LookupMint(ctx context.Context, requestToken string) (*MintReceipt, error) {
	var out MintReceipt
	if err := g.lookup(ctx, "token", requestToken, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (g *Gateway) CreateFile(ctx context.Context, requestToken string, contents []byte) (*FileReceipt, error) {
	var out FileReceipt
	err := g.submit(ctx, "file", "create", "/v1/files", requestToken, map[string]interface{}{
		"contents": contents,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (g *Gateway) AppendFile(ctx context.Context, requestToken string, fileID string, contents []byte) (*FileReceipt, error) {
	var out FileReceipt
	path := "/v1/files/" + url.PathEscape(fileID) + "/contents"
	err := g.submit(ctx, "file", "append", path, requestToken, map[string]interface{}{
		"contents": contents,
	}, &out)
	if err != nil {
		return nil, err
	}
	if out.FileID == "" {
		out.FileID = fileID
	}
	return &out, nil
}

func (g *Gateway) LookupFile(ctx context.Context, requestToken string) (*FileReceipt, error) {
	var out FileReceipt
	if err := g.lookup(ctx, "file", requestToken, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (g *Gateway) SubmitMessage(ctx context.Context, requestToken string, params MessageParams) (*ConsensusReceipt, error) {
	var out ConsensusReceipt
	path := "/v1/topics/" + url.PathEscape(params.TopicID) + "/messages"
	err := g.submit(ctx, "consensus", "submit", path, requestToken, map[string]interface{}{
		"message": params.Message,
	}, &out)
	if err != nil {
		return nil, err
	}
	if out.TopicID == "" {
		out.TopicID = params.TopicID
	}
	return &out, nil
}

func (g *Gateway) LookupMessage(ctx context.Context, requestToken string) (*ConsensusReceipt, error) {
	var out ConsensusReceipt
	if err := g.lookup(ctx, "consensus", requestToken, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

type replayBody struct {
	Code    string          `json:"code"`
	Receipt json.RawMessage `json:"receipt"`
}

func (g *Gateway) submit(ctx context.Context, service, operation, path, requestToken string, payload interface{}, out interface{}) error {
	if requestToken == "" {
		return domain.NewError(domain.KindMalformedInput, "request token is empty")
	}

	if raw, ok := g.receipts.Get(requestToken); ok {
		metrics.LedgerReplaysTotal.WithLabelValues(service).Inc()
		return decodeReceipt(raw, out)
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return domain.WrapError(domain.KindMalformedInput, err, "encode ledger request")
	}

	status, respBody, err := g.do(ctx, service, operation, http.MethodPost, path, requestToken, body)
	if err != nil {
		return err
	}

	raw := json.RawMessage(respBody)
	switch {
	case status == http.StatusOK || status == http.StatusCreated:
	case status == http.StatusConflict:
		var replay replayBody
		if json.Unmarshal(respBody, &replay) != nil || len(replay.Receipt) == 0 {
			// Same token still being processed on the gateway side.
			return domain.Errorf(domain.KindUnreachable, "ledger request %s in progress", requestToken)
		}
		metrics.LedgerReplaysTotal.WithLabelValues(service).Inc()
		g.logger.Info(ctx, "Ledger returned prior result for request token",
			"service", service,
			"request_token", requestToken,
		)
		raw = replay.Receipt
	default:
		return classifyStatus(status, respBody)
	}

	if err := decodeReceipt(raw, out); err != nil {
		return err
	}
	g.receipts.Add(requestToken, raw)
	return nil
}

func (g *Gateway) lookup(ctx context.Context, service, requestToken string, out interface{}) error {
	if raw, ok := g.receipts.Get(requestToken); ok {
		return decodeReceipt(raw, out)
	}

	status, respBody, err := g.do(ctx, service, "lookup", http.MethodGet, "/v1/requests/"+url.PathEscape(requestToken), "", nil)
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return classifyStatus(status, respBody)
	}

	if err := decodeReceipt(respBody, out); err != nil {
		return err
	}
	g.receipts.Add(requestToken, json.RawMessage(respBody))
	return nil
}

func (g *Gateway) do(ctx context.Context, service, operation, method, path, requestToken string, body []byte) (int, []byte, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return 0, nil, domain.WrapError(domain.KindUnreachable, err, "ledger rate limit wait")
	}

	callCtx, cancel := context.WithTimeout(ctx, g.callTimeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(callCtx, method, g.baseURL+path, reader)
	if err != nil {
		return 0, nil, domain.WrapError(domain.KindInternal, err, "create ledger request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if requestToken != "" {
		req.Header.Set(idempotencyHeader, requestToken)
	}
	if g.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+g.apiKey)
	}

	start := time.Now()
	resp, err := g.httpClient.Do(req)
	metrics.LedgerCallDuration.WithLabelValues(service, operation).Observe(time.Since(start).Seconds())
	if err != nil {
		cerr := classifyTransport(ctx, err)
		metrics.LedgerCallsTotal.WithLabelValues(service, operation, outcome(cerr)).Inc()
		g.logger.Warn(ctx, "Ledger call failed",
			"service", service,
			"operation", operation,
			"request_token", requestToken,
			"error", cerr,
		)
		return 0, nil, cerr
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		cerr := classifyTransport(ctx, err)
		metrics.LedgerCallsTotal.WithLabelValues(service, operation, outcome(cerr)).Inc()
		return 0, nil, cerr
	}

	metrics.LedgerCallsTotal.WithLabelValues(service, operation, fmt.Sprintf("http_%d", resp.StatusCode)).Inc()
	g.logger.Debug(ctx, "Ledger call completed",
		"service", service,
		"operation", operation,
		"request_token", requestToken,
		"status", resp.StatusCode,
	)

	return resp.StatusCode, respBody, nil
}

// An undecodable receipt leaves the outcome unknown.
func decodeReceipt(raw []byte, out interface{}) error {
	if err := json.Unmarshal(raw, out); err != nil {
		return domain.WrapError(domain.KindTimeout, err, "decode ledger receipt")
	}
	return nil
}
