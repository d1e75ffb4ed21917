package core

import (
	"fmt"
	"strings"
)

// Polarity decides which side of an Internal transfer is debited.
type Polarity string

const (
	// SourceDebit subtracts on the source bank row and adds on the destination row.
	SourceDebit Polarity = "source-debit"
	// SourceCredit is the mirrored convention.
	SourceCredit Polarity = "source-credit"
)

func ParsePolarity(s string) (Polarity, error) {
	switch Polarity(strings.ToLower(strings.TrimSpace(s))) {
	case "", SourceDebit:
		return SourceDebit, nil
	case SourceCredit:
		return SourceCredit, nil
	}
	return "", fmt.Errorf("unknown internal transfer polarity %q", s)
}

// Policy is the sign convention applied to every event when folding a
// running balance. Only the Internal transfer polarity is configurable.
type Policy struct {
	Internal Polarity
}

func DefaultPolicy() Policy {
	return Policy{Internal: SourceDebit}
}

// SignedDelta returns the amount an event contributes to its sequence's
// running balance:
//
//	income             +amount
//	expense            -amount
//	external transfer  -amount
//	internal transfer  -amount on the source bank row, +amount on the destination row
func (p Policy) SignedDelta(e Event) Money {
	switch e.Kind {
	case Income:
		return e.Amount
	case Expense:
		return e.Amount.Neg()
	case Transfer:
		if e.TransferType != Internal {
			return e.Amount.Neg()
		}
		debit := e.Sequence.Bank() == e.Source
		if p.Internal == SourceCredit {
			debit = !debit
		}
		if debit {
			return e.Amount.Neg()
		}
		return e.Amount
	}
	return Zero
}
