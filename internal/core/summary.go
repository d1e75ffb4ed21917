package core

// SequenceBalance is the closing state of one sequence.
type SequenceBalance struct {
	Sequence Sequence
	Balance  Money
	Events   int
}

// Summary is a compact per-owner view across the three sequences.
type Summary struct {
	OwnerID   string
	Sequences []SequenceBalance
}

// Statement is one sequence's events in chronological order with their
// running balances.
type Statement struct {
	OwnerID  string
	Sequence Sequence
	Events   []Event
}

// Closing returns the balance of the last event, or zero for an empty statement.
func (s Statement) Closing() Money {
	if len(s.Events) == 0 {
		return Zero
	}
	return s.Events[len(s.Events)-1].Balance
}
