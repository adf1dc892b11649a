package ledger

import "context"

// Every submitting call takes a caller-chosen request token. The services
// apply at most one effect per token; submitting a token again returns the
// receipt of the first effect. Lookup* calls return a not_found error when
// no effect has landed for the token.
//
// Errors are *domain.Error with kind unreachable (safe to retry with the
// same token), timeout (outcome unknown, look up before retrying) or
// rejected (do not retry).

type MintParams struct {
	TokenID           string
	Metadata          []byte
	SignedTransaction []byte
}

type MintReceipt struct {
	TokenID       string `json:"token_id"`
	SerialNumber  int64  `json:"serial_number"`
	TransactionID string `json:"transaction_id"`
}

type AssociateParams struct {
	TokenID   string
	AccountID string
}

type Receipt struct {
	TransactionID string `json:"transaction_id"`
}

type FileReceipt struct {
	FileID        string `json:"file_id"`
	TransactionID string `json:"transaction_id"`
}

type MessageParams struct {
	TopicID string
	Message []byte
}

type ConsensusReceipt struct {
	TopicID        string `json:"topic_id"`
	SequenceNumber int64  `json:"sequence_number"`
	TransactionID  string `json:"transaction_id"`
}

type TokenService interface {
	Associate(ctx context.Context, requestToken string, params AssociateParams) (*Receipt, error)
	Mint(ctx context.Context, requestToken string, params MintParams) (*MintReceipt, error)
	LookupMint(ctx context.Context, requestToken string) (*MintReceipt, error)
}

type FileService interface {
	CreateFile(ctx context.Context, requestToken string, contents []byte) (*FileReceipt, error)
	AppendFile(ctx context.Context, requestToken string, fileID string, contents []byte) (*FileReceipt, error)
	LookupFile(ctx context.Context, requestToken string) (*FileReceipt, error)
}

type ConsensusService interface {
	SubmitMessage(ctx context.Context, requestToken string, params MessageParams) (*ConsensusReceipt, error)
	LookupMessage(ctx context.Context, requestToken string) (*ConsensusReceipt, error)
}

// MaxFileChunk is the largest content a single file create or append may carry.
const MaxFileChunk = 4096

// Chunk splits contents into create and append payloads.
func Chunk(contents []byte) [][]byte {
	if len(contents) == 0 {
		return [][]byte{{}}
	}
	var chunks [][]byte
	for len(contents) > MaxFileChunk {
		chunks = append(chunks, contents[:MaxFileChunk])
		contents = contents[MaxFileChunk:]
	}
	return append(chunks, contents)
}
