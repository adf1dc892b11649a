package transaction

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/grachmannico95/invoice-proof/internal/domain"
)

// shard.realm.num with an optional lowercase checksum suffix, e.g. 0.0.1001-abcde
var accountPattern = regexp.MustCompile(`^(\d{1,19})\.(\d{1,19})\.(\d{1,19})(-[a-z]{5})?$`)

type AccountID struct {
	Shard int64
	Realm int64
	Num   int64
}

// ParseAccountID validates s against the ledger account-id grammar. The
// checksum suffix, when present, is accepted and dropped.
func ParseAccountID(s string) (AccountID, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return AccountID{}, domain.NewError(domain.KindInvalidPayer, "account id is empty")
	}

	m := accountPattern.FindStringSubmatch(s)
	if m == nil {
		return AccountID{}, domain.Errorf(domain.KindInvalidPayer, "account id %q does not match shard.realm.num", s)
	}

	var parts [3]int64
	for i := 0; i < 3; i++ {
		v, err := strconv.ParseInt(m[i+1], 10, 64)
		if err != nil {
			return AccountID{}, domain.Errorf(domain.KindInvalidPayer, "account id %q: component out of range", s)
		}
		parts[i] = v
	}

	return AccountID{Shard: parts[0], Realm: parts[1], Num: parts[2]}, nil
}

func (a AccountID) String() string {
	return fmt.Sprintf("%d.%d.%d", a.Shard, a.Realm, a.Num)
}

func (a AccountID) IsZero() bool {
	return a.Shard == 0 && a.Realm == 0 && a.Num == 0
}

// TransactionID identifies a ledger transaction by its fee payer and the
// start of its validity window, rendered as payer@seconds.nanos.
type TransactionID struct {
	Payer      AccountID
	ValidStart time.Time
}

func (t TransactionID) String() string {
	return fmt.Sprintf("%s@%d.%09d", t.Payer, t.ValidStart.Unix(), t.ValidStart.Nanosecond())
}

func ParseTransactionID(s string) (TransactionID, error) {
	payer, start, ok := strings.Cut(s, "@")
	if !ok {
		return TransactionID{}, domain.Errorf(domain.KindMalformedInput, "transaction id %q has no @", s)
	}

	account, err := ParseAccountID(payer)
	if err != nil {
		return TransactionID{}, domain.Errorf(domain.KindMalformedInput, "transaction id %q: bad payer", s)
	}

	secStr, nanoStr, ok := strings.Cut(start, ".")
	if !ok {
		return TransactionID{}, domain.Errorf(domain.KindMalformedInput, "transaction id %q has no nanos", s)
	}
	sec, err := strconv.ParseInt(secStr, 10, 64)
	if err != nil {
		return TransactionID{}, domain.Errorf(domain.KindMalformedInput, "transaction id %q: bad seconds", s)
	}
	nanos, err := strconv.ParseInt(nanoStr, 10, 64)
	if err != nil || nanos < 0 || nanos >= int64(time.Second) {
		return TransactionID{}, domain.Errorf(domain.KindMalformedInput, "transaction id %q: bad nanos", s)
	}

	return TransactionID{Payer: account, ValidStart: time.Unix(sec, nanos).UTC()}, nil
}
