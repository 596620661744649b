package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"keyshop/internal/config"
)

// OCRClient consumes the text-extraction service as a black box: given a
// quarantined screenshot it returns whatever transaction id and amount the
// extractor could read, with a confidence score. Extraction quality is the
// extractor's problem, not ours.
type OCRClient interface {
	ExtractPaymentInfo(ctx context.Context, filePath string) (*PaymentInfo, error)
}

type PaymentInfo struct {
	TransactionID string  `json:"transaction_id"`
	Amount        string  `json:"amount"`
	Confidence    float64 `json:"confidence"`
}

type ocrClientImpl struct {
	httpClient *http.Client
	baseURL    string
}

func NewOCRClient(cfg *config.OCR) OCRClient {
	return &ocrClientImpl{
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		baseURL: cfg.BaseURL,
	}
}

func (c *ocrClientImpl) ExtractPaymentInfo(ctx context.Context, filePath string) (*PaymentInfo, error) {
	body, err := json.Marshal(map[string]string{"path": filePath})
	if err != nil {
		return nil, fmt.Errorf("marshal ocr payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/extract", bytes.NewBuffer(body))
	if err != nil {
		return nil, fmt.Errorf("http new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ocr request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("ocr error %d: %s", resp.StatusCode, string(b))
	}

	var info PaymentInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("decode ocr response: %w", err)
	}

	return &info, nil
}
