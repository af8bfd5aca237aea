// Package whatsapp is a thin client for the WhatsApp Cloud API, the delivery
// channel for patient-facing messages.
package whatsapp

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

	"github.com/ottoferraz/clinic-scheduler/pkg/logging"
)

const defaultBaseURL = "https://graph.facebook.com/v21.0"

// Config controls how the client behaves.
type Config struct {
	BaseURL       string
	AccessToken   string
	PhoneNumberID string
	Timeout       time.Duration
	MaxRetries    int
	Backoff       time.Duration
	HTTPClient    *http.Client
	Logger        *logging.Logger
}

// Client sends text messages through the Cloud API. It satisfies the
// dispatcher's message-channel contract.
type Client struct {
	accessToken   string
	phoneNumberID string
	baseURL       string
	httpClient    *http.Client
	maxRetries    int
	backoff       time.Duration
	logger        *logging.Logger
}

// New creates a configured Client with sane defaults.
func New(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.AccessToken) == "" {
		return nil, errors.New("whatsapp: access token is required")
	}
	if strings.TrimSpace(cfg.PhoneNumberID) == "" {
		return nil, errors.New("whatsapp: phone number id is required")
	}
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	maxRetries := cfg.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}
	backoff := cfg.Backoff
	if backoff <= 0 {
		backoff = 250 * time.Millisecond
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}
	return &Client{
		accessToken:   cfg.AccessToken,
		phoneNumberID: cfg.PhoneNumberID,
		baseURL:       baseURL,
		httpClient:    httpClient,
		maxRetries:    maxRetries,
		backoff:       backoff,
		logger:        logger,
	}, nil
}

type textPayload struct {
	MessagingProduct string `json:"messaging_product"`
	To               string `json:"to"`
	Type             string `json:"type"`
	Text             struct {
		Body string `json:"body"`
	} `json:"text"`
}

type sendResponse struct {
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
}

// APIError is a non-2xx Cloud API response.
type APIError struct {
	StatusCode int
	Code       int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("whatsapp: api error (status %d, code %d): %s", e.StatusCode, e.Code, e.Message)
}

// Send delivers a text message and returns the provider message id.
func (c *Client) Send(ctx context.Context, to, body string) (string, error) {
	if strings.TrimSpace(to) == "" {
		return "", errors.New("whatsapp: destination required")
	}

	payload := textPayload{
		MessagingProduct: "whatsapp",
		To:               to,
		Type:             "text",
	}
	payload.Text.Body = body
	encoded, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("whatsapp: marshal payload: %w", err)
	}

	data, err := c.invoke(ctx, encoded)
	if err != nil {
		return "", err
	}

	var resp sendResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return "", fmt.Errorf("whatsapp: decode response: %w", err)
	}
	if len(resp.Messages) == 0 {
		return "", errors.New("whatsapp: response carried no message id")
	}
	return resp.Messages[0].ID, nil
}

func (c *Client) invoke(ctx context.Context, body []byte) ([]byte, error) {
	url := fmt.Sprintf("%s/%s/messages", c.baseURL, c.phoneNumberID)
	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("whatsapp: build request: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+c.accessToken)
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if attempt == c.maxRetries {
				return nil, fmt.Errorf("whatsapp: http error: %w", err)
			}
			lastErr = err
			c.logRetry(attempt, 0, err)
			if sleepErr := c.sleep(ctx, attempt); sleepErr != nil {
				return nil, sleepErr
			}
			continue
		}

		data, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if readErr != nil {
			return nil, fmt.Errorf("whatsapp: read response: %w", readErr)
		}
		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return data, nil
		}

		apiErr := decodeAPIError(resp.StatusCode, data)
		if attempt < c.maxRetries && retryableStatus(resp.StatusCode) {
			lastErr = apiErr
			c.logRetry(attempt, resp.StatusCode, apiErr)
			if sleepErr := c.sleep(ctx, attempt); sleepErr != nil {
				return nil, sleepErr
			}
			continue
		}
		return nil, apiErr
	}

	if lastErr != nil {
		return nil, lastErr
	}
	return nil, errors.New("whatsapp: request failed without response")
}

func retryableStatus(status int) bool {
	return status == http.StatusTooManyRequests || status >= 500
}

func decodeAPIError(status int, data []byte) *APIError {
	var wrapper struct {
		Error struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(data, &wrapper); err != nil || wrapper.Error.Message == "" {
		return &APIError{StatusCode: status, Message: strings.TrimSpace(string(data))}
	}
	return &APIError{StatusCode: status, Code: wrapper.Error.Code, Message: wrapper.Error.Message}
}

func (c *Client) logRetry(attempt, status int, err error) {
	c.logger.Warn("whatsapp send retrying", "attempt", attempt+1, "status", status, "error", err)
}

func (c *Client) sleep(ctx context.Context, attempt int) error {
	delay := c.backoff * time.Duration(1<<attempt)
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
