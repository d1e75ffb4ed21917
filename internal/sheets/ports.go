package sheets

import (
	"context"

	"registro/internal/core"
)

// Ports for outbound adapters.
type (
	// SequenceWriter mirrors a whole statement into an external spreadsheet,
	// replacing whatever was there before.
	SequenceWriter interface {
		WriteSequence(ctx context.Context, st core.Statement) error
	}
)
