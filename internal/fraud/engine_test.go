package fraud

import (
	"context"
	"testing"

	"keyshop/internal/model"
)

type fakeHistory struct {
	hashes map[string]bool
	txns   map[string]bool
}

func (f *fakeHistory) ExistsScreenshotHash(_ context.Context, hash string) (bool, error) {
	return f.hashes[hash], nil
}

func (f *fakeHistory) ExistsTransactionID(_ context.Context, txn string) (bool, error) {
	return f.txns[txn], nil
}

func TestEvaluate(t *testing.T) {
	history := &fakeHistory{
		hashes: map[string]bool{"seen-hash": true},
		txns:   map[string]bool{"seen-txn": true},
	}
	engine := NewEngine(history, 500000, 0.6)

	tests := []struct {
		name       string
		in         Input
		wantFlags  []string
		wantReview bool
	}{
		{
			name:       "clean order",
			in:         Input{ScreenshotHash: "new-hash", TransactionID: "new-txn", Amount: 1000, OCRRan: true, Confidence: 0.9},
			wantFlags:  nil,
			wantReview: false,
		},
		{
			name:       "duplicate screenshot",
			in:         Input{ScreenshotHash: "seen-hash", TransactionID: "new-txn", Amount: 1000, OCRRan: true, Confidence: 0.9},
			wantFlags:  []string{model.FraudFlagDuplicateScreenshot},
			wantReview: true,
		},
		{
			name:       "transaction id reuse",
			in:         Input{ScreenshotHash: "new-hash", TransactionID: "seen-txn", Amount: 1000, OCRRan: true, Confidence: 0.9},
			wantFlags:  []string{model.FraudFlagTransactionIDReuse},
			wantReview: true,
		},
		{
			name:       "high amount",
			in:         Input{ScreenshotHash: "new-hash", Amount: 500000, OCRRan: true, Confidence: 0.9},
			wantFlags:  []string{model.FraudFlagHighAmount},
			wantReview: true,
		},
		{
			name:       "empty transaction id is not reuse",
			in:         Input{ScreenshotHash: "new-hash", TransactionID: "", Amount: 1000, OCRRan: true, Confidence: 0.9},
			wantFlags:  nil,
			wantReview: false,
		},
		{
			name:       "no ocr forces review without flags",
			in:         Input{ScreenshotHash: "new-hash", Amount: 1000, OCRRan: false},
			wantFlags:  nil,
			wantReview: true,
		},
		{
			name:       "low confidence forces review",
			in:         Input{ScreenshotHash: "new-hash", Amount: 1000, OCRRan: true, Confidence: 0.2},
			wantFlags:  nil,
			wantReview: true,
		},
		{
			name: "all flags together",
			in:   Input{ScreenshotHash: "seen-hash", TransactionID: "seen-txn", Amount: 900000, OCRRan: true, Confidence: 0.9},
			wantFlags: []string{
				model.FraudFlagDuplicateScreenshot,
				model.FraudFlagTransactionIDReuse,
				model.FraudFlagHighAmount,
			},
			wantReview: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := engine.Evaluate(context.Background(), &tt.in)
			if err != nil {
				t.Fatalf("evaluate: %v", err)
			}
			if len(res.Flags) != len(tt.wantFlags) {
				t.Fatalf("flags = %v, want %v", res.Flags, tt.wantFlags)
			}
			for i, f := range tt.wantFlags {
				if res.Flags[i] != f {
					t.Errorf("flags[%d] = %s, want %s", i, res.Flags[i], f)
				}
			}
			if res.RequiresManualReview != tt.wantReview {
				t.Errorf("requiresManualReview = %v, want %v", res.RequiresManualReview, tt.wantReview)
			}
		})
	}
}
