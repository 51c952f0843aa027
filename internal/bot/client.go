package bot

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/akudrin/ipkeeper/internal/models"
)

// Sender is the outbound half of the transport: deliver a reply, retract a
// message, acknowledge a button press.
type Sender interface {
	SendMessage(ctx context.Context, chatID int64, reply *models.Reply) (int, error)
	DeleteMessage(ctx context.Context, chatID int64, messageID int) error
	AnswerCallbackQuery(ctx context.Context, callbackID string) error
}

// Client talks to the Telegram Bot API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	logger     *zap.Logger
}

func NewClient(apiBase, token string, logger *zap.Logger) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    fmt.Sprintf("%s/bot%s", apiBase, token),
		logger:     logger,
	}
}

type inlineKeyboardButton struct {
	Text         string `json:"text"`
	CallbackData string `json:"callback_data"`
}

type inlineKeyboardMarkup struct {
	InlineKeyboard [][]inlineKeyboardButton `json:"inline_keyboard"`
}

type sendMessageRequest struct {
	ChatID      int64                 `json:"chat_id"`
	Text        string                `json:"text"`
	ReplyMarkup *inlineKeyboardMarkup `json:"reply_markup,omitempty"`
}

type apiResponse struct {
	OK          bool            `json:"ok"`
	Description string          `json:"description"`
	Result      json.RawMessage `json:"result"`
}

func (c *Client) SendMessage(ctx context.Context, chatID int64, reply *models.Reply) (int, error) {
	req := sendMessageRequest{
		ChatID: chatID,
		Text:   reply.Text,
	}

	if len(reply.Buttons) > 0 {
		markup := &inlineKeyboardMarkup{}
		for _, row := range reply.Buttons {
			var keyboardRow []inlineKeyboardButton
			for _, b := range row {
				keyboardRow = append(keyboardRow, inlineKeyboardButton{
					Text:         b.Label,
					CallbackData: b.Data,
				})
			}
			markup.InlineKeyboard = append(markup.InlineKeyboard, keyboardRow)
		}
		req.ReplyMarkup = markup
	}

	var sent struct {
		MessageID int `json:"message_id"`
	}
	if err := c.call(ctx, "sendMessage", req, &sent); err != nil {
		return 0, err
	}

	return sent.MessageID, nil
}

func (c *Client) DeleteMessage(ctx context.Context, chatID int64, messageID int) error {
	req := struct {
		ChatID    int64 `json:"chat_id"`
		MessageID int   `json:"message_id"`
	}{ChatID: chatID, MessageID: messageID}

	return c.call(ctx, "deleteMessage", req, nil)
}

func (c *Client) AnswerCallbackQuery(ctx context.Context, callbackID string) error {
	req := struct {
		CallbackQueryID string `json:"callback_query_id"`
	}{CallbackQueryID: callbackID}

	return c.call(ctx, "answerCallbackQuery", req, nil)
}

func (c *Client) SetWebhook(ctx context.Context, webhookURL string) error {
	req := struct {
		URL string `json:"url"`
	}{URL: webhookURL}

	return c.call(ctx, "setWebhook", req, nil)
}

func (c *Client) call(ctx context.Context, method string, payload, result interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s request: %w", method, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/"+method, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build %s request: %w", method, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("call %s: %w", method, err)
	}
	defer resp.Body.Close()

	var apiResp apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return fmt.Errorf("decode %s response: %w", method, err)
	}

	if !apiResp.OK {
		return fmt.Errorf("%s rejected: %s", method, apiResp.Description)
	}

	if result != nil {
		if err := json.Unmarshal(apiResp.Result, result); err != nil {
			return fmt.Errorf("decode %s result: %w", method, err)
		}
	}

	c.logger.Debug("Bot API call succeeded", zap.String("method", method))
	return nil
}
