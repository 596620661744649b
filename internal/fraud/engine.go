package fraud

import (
	"context"
	"fmt"

	"keyshop/internal/model"
)

// HistoryLookup is the slice of order history the engine needs. Both checks
// deliberately ignore rejected orders: a rejected order's evidence should not
// poison a legitimate resubmission.
type HistoryLookup interface {
	ExistsScreenshotHash(ctx context.Context, hash string) (bool, error)
	ExistsTransactionID(ctx context.Context, transactionID string) (bool, error)
}

type Input struct {
	UserID        string
	TransactionID string
	// hex sha256 of the screenshot bytes
	ScreenshotHash string
	// minor units
	Amount int64
	// OCRRan and Confidence drive the manual-review routing, not the flags.
	OCRRan     bool
	Confidence float64
}

type Result struct {
	Flags                []string
	RequiresManualReview bool
}

// Engine classifies an order's payment evidence. It is pure annotation: it
// never blocks or rejects anything itself; a human makes the final call on
// every flagged order.
type Engine struct {
	history             HistoryLookup
	highAmountThreshold int64
	minConfidence       float64
}

func NewEngine(history HistoryLookup, highAmountThreshold int64, minConfidence float64) *Engine {
	return &Engine{
		history:             history,
		highAmountThreshold: highAmountThreshold,
		minConfidence:       minConfidence,
	}
}

func (e *Engine) Evaluate(ctx context.Context, in *Input) (*Result, error) {
	res := &Result{}

	if in.ScreenshotHash != "" {
		seen, err := e.history.ExistsScreenshotHash(ctx, in.ScreenshotHash)
		if err != nil {
			return nil, fmt.Errorf("check screenshot hash: %w", err)
		}
		if seen {
			res.Flags = append(res.Flags, model.FraudFlagDuplicateScreenshot)
		}
	}

	if in.TransactionID != "" {
		seen, err := e.history.ExistsTransactionID(ctx, in.TransactionID)
		if err != nil {
			return nil, fmt.Errorf("check transaction id: %w", err)
		}
		if seen {
			res.Flags = append(res.Flags, model.FraudFlagTransactionIDReuse)
		}
	}

	if in.Amount >= e.highAmountThreshold {
		res.Flags = append(res.Flags, model.FraudFlagHighAmount)
	}

	res.RequiresManualReview = len(res.Flags) > 0 ||
		!in.OCRRan ||
		in.Confidence < e.minConfidence

	return res, nil
}
