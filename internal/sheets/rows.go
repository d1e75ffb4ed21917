package sheets

import (
	"fmt"

	"registro/internal/core"
)

// Header is the first row of every mirrored sequence.
var Header = []interface{}{"Date", "Time", "Kind", "Category/Account", "Description", "Transfer", "Amount", "Balance"}

// TabName is the spreadsheet tab holding one owner's sequence.
func TabName(ownerID string, seq core.Sequence) string {
	return fmt.Sprintf("%s %s", ownerID, seq)
}

// Rows renders a statement as the header plus one row per event. Amount and
// Balance are numbers so spreadsheet formulas keep working.
func Rows(st core.Statement) [][]interface{} {
	out := make([][]interface{}, 0, len(st.Events)+1)
	out = append(out, Header)
	for _, e := range st.Events {
		out = append(out, Row(e))
	}
	return out
}

func Row(e core.Event) []interface{} {
	label := e.Category
	if e.Account != "" {
		if label != "" {
			label += " / "
		}
		label += e.Account
	}
	return []interface{}{
		e.OccurredAt.UTC().Format(core.DateLayout),
		e.OccurredAt.UTC().Format("15:04"),
		string(e.Kind),
		label,
		e.Description,
		transferLabel(e),
		e.Amount.Float(),
		e.Balance.Float(),
	}
}

func transferLabel(e core.Event) string {
	if e.Kind != core.Transfer {
		return ""
	}
	switch {
	case e.TransferType == core.Internal:
		return fmt.Sprintf("internal %s to %s", e.Source, e.Destination)
	case e.Source != core.NoBank:
		return fmt.Sprintf("external from %s", e.Source)
	}
	return "external"
}
