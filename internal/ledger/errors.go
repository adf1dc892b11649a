package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"

	"github.com/grachmannico95/invoice-proof/internal/domain"
)

type gatewayError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// classifyStatus maps a non-success gateway response to an error kind.
// A gateway timeout is ambiguous: the effect may have landed.
func classifyStatus(status int, body []byte) error {
	var ge gatewayError
	_ = json.Unmarshal(body, &ge)
	detail := ge.Message
	if detail == "" {
		detail = http.StatusText(status)
	}
	if ge.Code != "" {
		detail = ge.Code + ": " + detail
	}

	switch {
	case status == http.StatusGatewayTimeout || status == http.StatusRequestTimeout:
		return domain.Errorf(domain.KindTimeout, "ledger gateway status %d: %s", status, detail)
	case status == http.StatusTooManyRequests || status >= 500:
		return domain.Errorf(domain.KindUnreachable, "ledger gateway status %d: %s", status, detail)
	case status == http.StatusNotFound:
		return domain.Errorf(domain.KindNotFound, "ledger gateway: %s", detail)
	default:
		return domain.Errorf(domain.KindRejected, "ledger gateway status %d: %s", status, detail)
	}
}

// classifyTransport maps an http.Client error. Once the request may have
// been written, a deadline is ambiguous; anything else means the call did
// not reach the service.
func classifyTransport(ctx context.Context, err error) error {
	if errors.Is(err, context.Canceled) && ctx.Err() != nil {
		return domain.WrapError(domain.KindCancelled, err, "ledger call cancelled")
	}

	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return domain.WrapError(domain.KindTimeout, err, "ledger call timed out")
	}

	return domain.WrapError(domain.KindUnreachable, err, "ledger call failed")
}

func outcome(err error) string {
	if err == nil {
		return "ok"
	}
	return string(domain.KindOf(err))
}
