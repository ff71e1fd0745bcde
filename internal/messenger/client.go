// Package messenger предоставляет клиент исходящих сообщений чата (совместимый с Telegram Bot API).
package messenger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"
)

// ErrDeliveryFailed возвращается, если чат отказался принять сообщение, например пользователь заблокировал бота.
var ErrDeliveryFailed = errors.New("delivery failed")

// Button описывает кнопку под сообщением. Data возвращается боту при нажатии.
type Button struct {
	Text string
	Data string
}

// Message описывает исходящее сообщение. Если задан PhotoRef, текст отправляется подписью к фото.
type Message struct {
	ChatID   int64
	Text     string
	PhotoRef string
	Buttons  [][]Button
}

// Client инкапсулирует HTTP-взаимодействие с API чата.
type Client struct {
	baseURL    string
	httpClient *retryablehttp.Client
}

// NewClient создаёт клиент для API по указанному адресу и токену бота.
// Ответы 5xx и 429 повторяются с экспоненциальной задержкой.
func NewClient(baseURL, token string, logger *zap.Logger) *Client {
	base := strings.TrimRight(baseURL, "/")
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "https://" + base
	}

	hc := retryablehttp.NewClient()
	hc.RetryMax = 3
	hc.RetryWaitMin = 200 * time.Millisecond
	hc.RetryWaitMax = 2 * time.Second
	hc.HTTPClient.Timeout = 10 * time.Second
	hc.ErrorHandler = retryablehttp.PassthroughErrorHandler
	if logger != nil {
		hc.Logger = leveledLogger{logger.Sugar()}
	} else {
		hc.Logger = nil
	}

	return &Client{
		baseURL:    base + "/bot" + token,
		httpClient: hc,
	}
}

type inlineButton struct {
	Text         string `json:"text"`
	CallbackData string `json:"callback_data"`
}

type replyMarkup struct {
	InlineKeyboard [][]inlineButton `json:"inline_keyboard"`
}

type sendMessageRequest struct {
	ChatID      int64        `json:"chat_id"`
	Text        string       `json:"text,omitempty"`
	Photo       string       `json:"photo,omitempty"`
	Caption     string       `json:"caption,omitempty"`
	ReplyMarkup *replyMarkup `json:"reply_markup,omitempty"`
}

type apiResponse struct {
	OK          bool   `json:"ok"`
	ErrorCode   int    `json:"error_code,omitempty"`
	Description string `json:"description,omitempty"`
}

// Send отправляет сообщение.
func (c *Client) Send(ctx context.Context, msg Message) error {
	req := sendMessageRequest{ChatID: msg.ChatID}
	method := "sendMessage"
	if msg.PhotoRef != "" {
		method = "sendPhoto"
		req.Photo = msg.PhotoRef
		req.Caption = msg.Text
	} else {
		req.Text = msg.Text
	}

	if len(msg.Buttons) > 0 {
		markup := &replyMarkup{InlineKeyboard: make([][]inlineButton, 0, len(msg.Buttons))}
		for _, row := range msg.Buttons {
			r := make([]inlineButton, 0, len(row))
			for _, b := range row {
				r = append(r, inlineButton{Text: b.Text, CallbackData: b.Data})
			}
			markup.InlineKeyboard = append(markup.InlineKeyboard, r)
		}
		req.ReplyMarkup = markup
	}

	return c.call(ctx, method, req)
}

// AnswerCallback подтверждает получение нажатия кнопки, чтобы клиент убрал индикатор загрузки.
func (c *Client) AnswerCallback(ctx context.Context, callbackID string) error {
	return c.call(ctx, "answerCallbackQuery", map[string]string{"callback_query_id": callbackID})
}

func (c *Client) call(ctx context.Context, method string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/"+method, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if resp != nil {
			resp.Body.Close()
		}
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	var result apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("decode response (status %d): %w", resp.StatusCode, err)
	}

	if result.OK {
		return nil
	}

	switch resp.StatusCode {
	case http.StatusForbidden, http.StatusBadRequest:
		return fmt.Errorf("%w: %s: %s", ErrDeliveryFailed, method, result.Description)
	default:
		return fmt.Errorf("%s: unexpected status %d: %s", method, resp.StatusCode, result.Description)
	}
}

type leveledLogger struct {
	s *zap.SugaredLogger
}

func (l leveledLogger) Error(msg string, kv ...interface{}) { l.s.Errorw(msg, kv...) }
func (l leveledLogger) Info(msg string, kv ...interface{}) { l.s.Debugw(msg, kv...) }
func (l leveledLogger) Debug(msg string, kv ...interface{}) { l.s.Debugw(msg, kv...) }
func (l leveledLogger) Warn(msg string, kv ...interface{}) { l.s.Warnw(msg, kv...) }
