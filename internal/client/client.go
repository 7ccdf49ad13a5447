// Package client HTTP клиент эндпоинтов моста
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/iudanet/tgbridge/pkg/api"
)

// Пути эндпоинтов моста
const (
	PathVerifyInitData = "/verify-telegram-init-data"
	PathCreateSession  = "/create-telegram-session"
	PathHealth         = "/health"
)

// Error ответ моста с кодом ошибки
type Error struct {
	Code       string
	StatusCode int
}

func (e *Error) Error() string {
	return fmt.Sprintf("bridge error (%d): %s", e.StatusCode, e.Code)
}

// Code возвращает код ошибки моста или пустую строку
func Code(err error) string {
	var bridgeErr *Error
	if errors.As(err, &bridgeErr) {
		return bridgeErr.Code
	}
	return ""
}

// Client представляет HTTP клиент для взаимодействия с мостом
type Client struct {
	httpClient *http.Client
	baseURL    string
}

// NewClient создает новый клиент
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// VerifyInitData проверяет подпись initData без привязки к пользователю
func (c *Client) VerifyInitData(ctx context.Context, initData string) (bool, error) {
	var resp api.VerifyInitDataResponse
	err := c.doRequest(ctx, http.MethodPost, PathVerifyInitData, api.VerifyInitDataRequest{InitData: initData}, &resp)
	if err != nil {
		return false, fmt.Errorf("verify request failed: %w", err)
	}
	return resp.OK, nil
}

// CreateSession обменивает initData на сессию directory
func (c *Client) CreateSession(ctx context.Context, initData string, telegramID int64) (*api.CreateSessionResponse, error) {
	req := api.CreateSessionRequest{
		InitData:   initData,
		TelegramID: api.TelegramID(telegramID),
	}

	var resp api.CreateSessionResponse
	if err := c.doRequest(ctx, http.MethodPost, PathCreateSession, req, &resp); err != nil {
		return nil, fmt.Errorf("create session request failed: %w", err)
	}
	return &resp, nil
}

// Health проверяет доступность моста
func (c *Client) Health(ctx context.Context) (*api.HealthResponse, error) {
	var resp api.HealthResponse
	if err := c.doRequest(ctx, http.MethodGet, PathHealth, nil, &resp); err != nil {
		return nil, fmt.Errorf("health request failed: %w", err)
	}
	return &resp, nil
}

// doRequest выполняет HTTP запрос
func (c *Client) doRequest(ctx context.Context, method, path string, body, result interface{}) error {
	var bodyReader io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var errResp api.ErrorResponse
		if err := json.Unmarshal(respBody, &errResp); err == nil && errResp.Error != "" {
			return &Error{Code: errResp.Error, StatusCode: resp.StatusCode}
		}
		return fmt.Errorf("request failed with status %d: %s", resp.StatusCode, string(respBody))
	}

	if result != nil {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}

	return nil
}
