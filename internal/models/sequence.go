package models

// SequenceKind selects one per-organization, per-year document counter.
type SequenceKind string

const (
	SequenceQuotation      SequenceKind = "quotation"
	SequenceBill           SequenceKind = "bill"
	SequenceServiceRequest SequenceKind = "service_request"
	SequencePayment        SequenceKind = "payment"
)

// DefaultPrefix is used when the organization has not configured one.
func (k SequenceKind) DefaultPrefix() string {
	switch k {
	case SequenceQuotation:
		return "QT"
	case SequenceBill:
		return "INV"
	case SequenceServiceRequest:
		return "SR"
	case SequencePayment:
		return "TXN"
	}
	return "DOC"
}

func (k SequenceKind) Valid() bool {
	switch k {
	case SequenceQuotation, SequenceBill, SequenceServiceRequest, SequencePayment:
		return true
	}
	return false
}
