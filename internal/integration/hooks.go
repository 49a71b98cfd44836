package integration

import (
	"context"
	"errors"
	"log/slog"

	"github.com/odyssey-erp/retail-ledger/internal/accounting/journals"
	"github.com/odyssey-erp/retail-ledger/internal/accounting/shared"
)

// Generator produces the automatic ledger entries of commercial documents.
type Generator interface {
	GenerateSaleEntry(ctx context.Context, saleID, authorID int64) (journals.Entry, error)
	GeneratePurchaseEntry(ctx context.Context, purchaseID, authorID int64) (journals.Entry, error)
}

// Outcome reports what happened to the ledger side of a sale or purchase. The
// commercial document is committed either way.
type Outcome struct {
	EntryNumber   string `json:"entryNumber,omitempty"`
	AlreadyLinked bool   `json:"alreadyLinked,omitempty"`
	Warning       string `json:"warning,omitempty"`
	Remedy        string `json:"remedy,omitempty"`
}

// OK reports whether an entry exists for the document.
func (o Outcome) OK() bool {
	return o.Warning == ""
}

// Hooks wires sale and purchase creation into the general ledger.
type Hooks struct {
	generator Generator
	logger    *slog.Logger
}

// NewHooks constructs integration hooks.
func NewHooks(generator Generator, logger *slog.Logger) *Hooks {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hooks{generator: generator, logger: logger}
}

// OnSaleCreated generates the sale entry. Failures become a warning.
func (h *Hooks) OnSaleCreated(ctx context.Context, saleID, authorID int64) Outcome {
	return h.run(ctx, journals.SourceSale, saleID, func() (journals.Entry, error) {
		return h.generator.GenerateSaleEntry(ctx, saleID, authorID)
	})
}

// OnPurchaseCreated generates the purchase entry. Failures become a warning.
func (h *Hooks) OnPurchaseCreated(ctx context.Context, purchaseID, authorID int64) Outcome {
	return h.run(ctx, journals.SourcePurchase, purchaseID, func() (journals.Entry, error) {
		return h.generator.GeneratePurchaseEntry(ctx, purchaseID, authorID)
	})
}

func (h *Hooks) run(ctx context.Context, kind journals.SourceKind, id int64, generate func() (journals.Entry, error)) Outcome {
	if h == nil || h.generator == nil {
		return Outcome{}
	}
	entry, err := generate()
	switch {
	case err == nil:
		return Outcome{EntryNumber: entry.Number}
	case errors.Is(err, shared.ErrSourceAlreadyLinked):
		h.logger.InfoContext(ctx, "ledger entry already generated",
			slog.String("source", string(kind)), slog.Int64("source_id", id))
		return Outcome{AlreadyLinked: true}
	}
	out := Outcome{Warning: warningFor(kind, err), Remedy: remedyPath(kind, id)}
	h.logger.WarnContext(ctx, "ledger entry generation failed",
		slog.String("source", string(kind)),
		slog.Int64("source_id", id),
		slog.String("code", shared.ErrorCode(err)),
		slog.String("remedy", out.Remedy),
		slog.Any("error", err),
	)
	return out
}
