package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/craigary/telegram-summary-bot/internal/observability"

	"golang.org/x/time/rate"
)

var (
	ErrSendFailed     = errors.New("telegram send failed")
	ErrFileNotFound   = errors.New("telegram file not found")
	ErrUnexpectedBody = errors.New("unexpected response from Telegram API")
)

// maxDownloadBytes caps photo downloads. Telegram photo renditions stay well
// under this.
const maxDownloadBytes = 20 * 1024 * 1024

// Client calls the Telegram Bot API. Outgoing sendMessage calls are paced
// with a shared limiter to stay inside the global bot-wide rate limit.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewClient creates a new Bot API client.
func NewClient(baseURL, token string) *Client {
	return &Client{
		baseURL: baseURL,
		token:   token,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		// Global bot limit is ~30 messages per second.
		limiter: rate.NewLimiter(rate.Limit(25), 5),
	}
}

type sendMessageRequest struct {
	ChatID          string `json:"chat_id"`
	Text            string `json:"text"`
	ParseMode       string `json:"parse_mode,omitempty"`
	MessageThreadID *int64 `json:"message_thread_id,omitempty"`
}

type apiResponse struct {
	OK          bool            `json:"ok"`
	Description string          `json:"description,omitempty"`
	Result      json.RawMessage `json:"result,omitempty"`
}

// SendMessage posts a MarkdownV2 message to the chat, addressed to the given
// forum topic when topicID is non-nil.
func (c *Client) SendMessage(ctx context.Context, chatID string, topicID *int64, text string) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("failed to wait for send slot: %w", err)
	}

	payload := sendMessageRequest{
		ChatID:          chatID,
		Text:            text,
		ParseMode:       "MarkdownV2",
		MessageThreadID: topicID,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode send request: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", c.baseURL, c.token)
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		observability.TelegramSends.WithLabelValues("error").Inc()
		return fmt.Errorf("failed to call sendMessage: %w", err)
	}
	defer resp.Body.Close()

	var decoded apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		observability.TelegramSends.WithLabelValues("error").Inc()
		return fmt.Errorf("%w: %v", ErrUnexpectedBody, err)
	}
	if !decoded.OK {
		observability.TelegramSends.WithLabelValues("error").Inc()
		return fmt.Errorf("%w: %s (status %d)", ErrSendFailed, decoded.Description, resp.StatusCode)
	}

	observability.TelegramSends.WithLabelValues("ok").Inc()
	return nil
}

// GetFile resolves a file_id to a download path.
func (c *Client) GetFile(ctx context.Context, fileID string) (*File, error) {
	url := fmt.Sprintf("%s/bot%s/getFile?file_id=%s", c.baseURL, c.token, fileID)
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call getFile: %w", err)
	}
	defer resp.Body.Close()

	var decoded apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnexpectedBody, err)
	}
	if !decoded.OK {
		return nil, fmt.Errorf("%w: %s", ErrFileNotFound, decoded.Description)
	}

	var file File
	if err := json.Unmarshal(decoded.Result, &file); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnexpectedBody, err)
	}
	if file.FilePath == "" {
		return nil, ErrFileNotFound
	}
	return &file, nil
}

// DownloadFile fetches the bytes behind a getFile path.
func (c *Client) DownloadFile(ctx context.Context, filePath string) ([]byte, error) {
	url := fmt.Sprintf("%s/file/bot%s/%s", c.baseURL, c.token, filePath)
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download file: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxDownloadBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read file body: %w", err)
	}
	return data, nil
}

// FetchPhoto resolves and downloads the largest rendition of a photo.
func (c *Client) FetchPhoto(ctx context.Context, photo []PhotoSize) ([]byte, error) {
	if len(photo) == 0 {
		return nil, ErrFileNotFound
	}
	largest := photo[len(photo)-1]

	file, err := c.GetFile(ctx, largest.FileID)
	if err != nil {
		return nil, err
	}
	return c.DownloadFile(ctx, file.FilePath)
}

// ChatIDString formats a numeric chat id the way the archive keys groups.
func ChatIDString(id int64) string {
	return strconv.FormatInt(id, 10)
}
