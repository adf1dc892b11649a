package eventbus

import (
	"time"

	"github.com/grachmannico95/invoice-proof/internal/domain"
)

type EventType string

const (
	EventTypeProofRecorded EventType = "proof_recorded"
)

type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	Payload   interface{} `json:"payload"`
	Timestamp time.Time   `json:"timestamp"`
}

type ProofRecordedEvent struct {
	Proof domain.ProofRecord `json:"proof"`
}

// NewProofEvent wraps a freshly appended proof. The proof id doubles as the
// event id so consumers can drop repeats.
func NewProofEvent(proof domain.ProofRecord) Event {
	return Event{
		ID:        proof.ID,
		Type:      EventTypeProofRecorded,
		Payload:   ProofRecordedEvent{Proof: proof},
		Timestamp: proof.Timestamp,
	}
}
