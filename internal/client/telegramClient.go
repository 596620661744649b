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

// BotClient is the outbound side of the chat-bot approval channel: it posts
// operator messages with approve/reject buttons, edits them with the outcome
// and answers callback queries.
type BotClient interface {
	SendApprovalRequest(ctx context.Context, orderNo, summary string) (int64, error)
	EditMessage(ctx context.Context, messageID int64, text string) error
	AnswerCallback(ctx context.Context, callbackID, text string) error
}

type botClientImpl struct {
	httpClient   *http.Client
	baseApiURL   string
	token        string
	operatorChat int64
}

func NewBotClient(cfg *config.Bot) BotClient {
	return &botClientImpl{
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
		baseApiURL:   cfg.BaseApiURL,
		token:        cfg.Token,
		operatorChat: cfg.OperatorChat,
	}
}

type inlineButton struct {
	Text         string `json:"text"`
	CallbackData string `json:"callback_data"`
}

func (c *botClientImpl) SendApprovalRequest(ctx context.Context, orderNo, summary string) (int64, error) {
	payload := map[string]interface{}{
		"chat_id": c.operatorChat,
		"text":    summary,
		"reply_markup": map[string]interface{}{
			"inline_keyboard": [][]inlineButton{{
				{Text: "Approve", CallbackData: "approve:" + orderNo},
				{Text: "Reject", CallbackData: "reject:" + orderNo},
			}},
		},
	}

	var result struct {
		OK     bool `json:"ok"`
		Result struct {
			MessageID int64 `json:"message_id"`
		} `json:"result"`
	}
	if err := c.call(ctx, "sendMessage", payload, &result); err != nil {
		return 0, err
	}
	if !result.OK {
		return 0, fmt.Errorf("bot api rejected sendMessage")
	}

	return result.Result.MessageID, nil
}

func (c *botClientImpl) EditMessage(ctx context.Context, messageID int64, text string) error {
	payload := map[string]interface{}{
		"chat_id":    c.operatorChat,
		"message_id": messageID,
		"text":       text,
	}
	return c.call(ctx, "editMessageText", payload, nil)
}

func (c *botClientImpl) AnswerCallback(ctx context.Context, callbackID, text string) error {
	payload := map[string]interface{}{
		"callback_query_id": callbackID,
		"text":              text,
	}
	return c.call(ctx, "answerCallbackQuery", payload, nil)
}

func (c *botClientImpl) call(ctx context.Context, method string, payload interface{}, out interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", method, err)
	}

	url := fmt.Sprintf("%s/bot%s/%s", c.baseApiURL, c.token, method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(body))
	if err != nil {
		return fmt.Errorf("http new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("bot api %s failed: %w", method, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("bot api %s error %d: %s", method, resp.StatusCode, string(b))
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode %s response: %w", method, err)
		}
	}

	return nil
}
