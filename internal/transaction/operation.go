package transaction

import (
	"fmt"

	"github.com/grachmannico95/invoice-proof/internal/domain"
)

type OperationKind string

const (
	OperationMint         OperationKind = "mint"
	OperationTransfer     OperationKind = "transfer"
	OperationStatusUpdate OperationKind = "status_update"
)

// MaxMetadataBytes is the ledger's per-serial NFT metadata limit.
const MaxMetadataBytes = 100

// Operation describes what a prepared transaction does. Only the fields
// of its Kind are read.
type Operation struct {
	Kind OperationKind `json:"kind"`

	// mint, transfer
	TokenID string `json:"token_id,omitempty"`
	// mint
	Metadata []byte `json:"metadata,omitempty"`
	// transfer
	SerialNumber int64  `json:"serial_number,omitempty"`
	Recipient    string `json:"recipient,omitempty"`
	// status_update
	TopicID string `json:"topic_id,omitempty"`
	Message []byte `json:"message,omitempty"`

	Memo string `json:"memo,omitempty"`
}

func (o Operation) validate() error {
	switch o.Kind {
	case OperationMint:
		if err := validateEntityID("token id", o.TokenID); err != nil {
			return err
		}
		if len(o.Metadata) == 0 {
			return domain.NewError(domain.KindMalformedInput, "mint metadata is empty")
		}
		if len(o.Metadata) > MaxMetadataBytes {
			return domain.Errorf(domain.KindMalformedInput, "mint metadata is %d bytes, limit %d", len(o.Metadata), MaxMetadataBytes)
		}
	case OperationTransfer:
		if err := validateEntityID("token id", o.TokenID); err != nil {
			return err
		}
		if o.SerialNumber <= 0 {
			return domain.NewError(domain.KindMalformedInput, "transfer serial number must be positive")
		}
		if err := validateEntityID("recipient", o.Recipient); err != nil {
			return err
		}
	case OperationStatusUpdate:
		if err := validateEntityID("topic id", o.TopicID); err != nil {
			return err
		}
		if len(o.Message) == 0 {
			return domain.NewError(domain.KindMalformedInput, "status message is empty")
		}
	default:
		return domain.Errorf(domain.KindUnsupportedOperation, "operation kind %q", o.Kind)
	}
	return nil
}

// describe renders the operation for the wallet prompt.
func (o Operation) describe(payer AccountID) string {
	switch o.Kind {
	case OperationMint:
		return fmt.Sprintf("Mint 1 NFT of token %s (%d bytes metadata), fee payer %s", o.TokenID, len(o.Metadata), payer)
	case OperationTransfer:
		return fmt.Sprintf("Transfer NFT %s serial %d from %s to %s", o.TokenID, o.SerialNumber, payer, o.Recipient)
	case OperationStatusUpdate:
		return fmt.Sprintf("Append status message to topic %s, fee payer %s", o.TopicID, payer)
	}
	return string(o.Kind)
}

// Token, topic and file ids share the account-id grammar.
func validateEntityID(field, id string) error {
	if _, err := ParseAccountID(id); err != nil {
		return domain.Errorf(domain.KindMalformedInput, "%s %q is not a valid entity id", field, id)
	}
	return nil
}
