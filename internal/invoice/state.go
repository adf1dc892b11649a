package invoice

import "github.com/grachmannico95/invoice-proof/internal/domain"

// transitions lists every lifecycle move. PAID and CANCELLED have no
// outgoing edges. OVERDUE stays payable.
var transitions = map[domain.InvoiceStatus][]domain.InvoiceStatus{
	domain.InvoiceStatusIssued:  {domain.InvoiceStatusFunded, domain.InvoiceStatusCancelled},
	domain.InvoiceStatusFunded:  {domain.InvoiceStatusPaid, domain.InvoiceStatusOverdue},
	domain.InvoiceStatusOverdue: {domain.InvoiceStatusPaid},
}

func CanTransition(from, to domain.InvoiceStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Transition moves inv to status to, or returns an invalid_state error
// naming both ends.
func Transition(inv *domain.Invoice, to domain.InvoiceStatus) error {
	if !CanTransition(inv.Status, to) {
		return domain.Errorf(domain.KindInvalidState, "invoice %s cannot move from %s to %s", inv.ID, inv.Status, to)
	}
	inv.Status = to
	return nil
}

func Terminal(status domain.InvoiceStatus) bool {
	return len(transitions[status]) == 0
}
