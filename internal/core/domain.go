package core

import (
	"strings"
	"time"
)

const (
	Income   Kind = "income"
	Expense  Kind = "expense"
	Transfer Kind = "transfer"
)

const (
	Transactions Sequence = "transactions"
	BankA        Sequence = "bank_a"
	BankB        Sequence = "bank_b"
)

const (
	Internal TransferType = "internal"
	External TransferType = "external"
)

const (
	NoBank Bank = ""
	A      Bank = "A"
	B      Bank = "B"
)

type (
	// Kind tags a MonetaryEvent as income, expense or transfer.
	Kind string

	// Sequence names one of the three per-owner running-balance streams.
	Sequence string

	TransferType string

	// Bank identifies one of the two tracked bank accounts.
	Bank string

	// Event is a MonetaryEvent. Balance is always derived by the ledger
	// engine and never taken from client input.
	Event struct {
		ID         string
		OwnerID    string
		Sequence   Sequence
		Kind       Kind
		Amount     Money
		OccurredAt time.Time
		Balance    Money

		// Income and expense metadata
		Category    string
		Account     string
		Description string

		// Transfer metadata
		TransferType  TransferType
		Source        Bank
		Destination   Bank
		CounterpartID string

		CreatedAt time.Time
	}
)

// Sequences lists every sequence in recalculation order.
func Sequences() []Sequence {
	return []Sequence{Transactions, BankA, BankB}
}

func (k Kind) IsValid() bool {
	switch k {
	case Income, Expense, Transfer:
		return true
	}
	return false
}

func (s Sequence) IsValid() bool {
	switch s {
	case Transactions, BankA, BankB:
		return true
	}
	return false
}

// Bank returns the bank a sequence belongs to, or NoBank for Transactions.
func (s Sequence) Bank() Bank {
	switch s {
	case BankA:
		return A
	case BankB:
		return B
	}
	return NoBank
}

func (t TransferType) IsValid() bool {
	return t == Internal || t == External
}

func (b Bank) IsValid() bool {
	return b == A || b == B
}

// Sequence returns the transfer sequence that holds this bank's rows.
func (b Bank) Sequence() Sequence {
	switch b {
	case A:
		return BankA
	case B:
		return BankB
	}
	return Transactions
}

// Other returns the opposite bank.
func (b Bank) Other() Bank {
	switch b {
	case A:
		return B
	case B:
		return A
	}
	return NoBank
}

// ParseSequence maps user input to a Sequence. Empty input yields Transactions.
func ParseSequence(s string) (Sequence, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "transactions", "transaction":
		return Transactions, nil
	case "bank_a", "banka", "a":
		return BankA, nil
	case "bank_b", "bankb", "b":
		return BankB, nil
	}
	return "", &ValidationError{Field: "sequence", Reason: "unknown sequence " + s}
}

// ParseBank maps user input to a Bank, accepting the configured display names too.
func ParseBank(s string, names map[Bank]string) (Bank, error) {
	v := strings.TrimSpace(s)
	switch strings.ToUpper(v) {
	case "":
		return NoBank, nil
	case "A", "BANK_A":
		return A, nil
	case "B", "BANK_B":
		return B, nil
	}
	for b, name := range names {
		if name != "" && strings.EqualFold(name, v) {
			return b, nil
		}
	}
	return NoBank, &ValidationError{Field: "bank", Reason: "unknown bank " + s}
}

// IsInternalTransfer reports whether the event is one side of an Internal pair.
func (e Event) IsInternalTransfer() bool {
	return e.Kind == Transfer && e.TransferType == Internal
}

func (e Event) Validate() error {
	if strings.TrimSpace(e.OwnerID) == "" {
		return &ValidationError{Field: "owner_id", Reason: "missing owner"}
	}
	if !e.Kind.IsValid() {
		return &ValidationError{Field: "kind", Reason: "must be income, expense or transfer"}
	}
	if !e.Sequence.IsValid() {
		return &ValidationError{Field: "sequence", Reason: "unknown sequence"}
	}
	if err := e.Amount.Validate(); err != nil {
		return err
	}
	if e.OccurredAt.IsZero() {
		return &ValidationError{Field: "date", Reason: "missing date"}
	}
	if len(e.Description) > 200 {
		return &ValidationError{Field: "description", Reason: "too long (max 200 characters)"}
	}

	if e.Kind != Transfer {
		if e.Sequence != Transactions {
			return &ValidationError{Field: "sequence", Reason: "income and expense belong to the transactions sequence"}
		}
		return nil
	}

	if !e.TransferType.IsValid() {
		return &ValidationError{Field: "transfer_type", Reason: "must be internal or external"}
	}
	switch e.Sequence {
	case Transactions:
		if e.TransferType != External {
			return &ValidationError{Field: "transfer_type", Reason: "internal transfers are recorded on bank sequences"}
		}
	default:
		if !e.Source.IsValid() {
			return &ValidationError{Field: "source", Reason: "missing source bank"}
		}
		if e.TransferType == Internal {
			if e.Destination != e.Source.Other() {
				return &ValidationError{Field: "destination", Reason: "internal transfers move money between the two banks"}
			}
			if bank := e.Sequence.Bank(); bank != e.Source && bank != e.Destination {
				return &ValidationError{Field: "sequence", Reason: "row is not on either side of the transfer"}
			}
		} else if e.Sequence.Bank() != e.Source {
			return &ValidationError{Field: "sequence", Reason: "external transfers are recorded on the source bank"}
		}
	}
	return nil
}
