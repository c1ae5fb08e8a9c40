package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/region23/servicedesk/internal/api"
)

const maxResponseBytes = 1 << 20

// ActionError ошибка управляющего действия: транспорт, статус или success=false
type ActionError struct {
	Action     Action
	TimerID    int64
	StatusCode int
	Message    string
	Err        error
}

func (e *ActionError) Error() string {
	switch {
	case e.Err != nil:
		return fmt.Sprintf("%s timer %d: %v", e.Action, e.TimerID, e.Err)
	case e.StatusCode != 0:
		return fmt.Sprintf("%s timer %d: status %d: %s", e.Action, e.TimerID, e.StatusCode, e.Message)
	default:
		return fmt.Sprintf("%s timer %d: %s", e.Action, e.TimerID, e.Message)
	}
}

func (e *ActionError) Unwrap() error {
	return e.Err
}

// HTTPClient вызывает управляющие эндпоинты по HTTP
type HTTPClient struct {
	baseURL string
	token   string
	http    *http.Client
}

var _ Client = (*HTTPClient)(nil)

// NewHTTPClient создает клиент. token добавляется как Bearer, если не пуст.
func NewHTTPClient(baseURL, token string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: timeout},
	}
}

// Pause вызывает POST /timer/{id}/pause
func (c *HTTPClient) Pause(ctx context.Context, id int64) (*api.ControlResponse, error) {
	return c.control(ctx, ActionPause, id)
}

// Resume вызывает POST /timer/{id}/resume
func (c *HTTPClient) Resume(ctx context.Context, id int64) (*api.ControlResponse, error) {
	return c.control(ctx, ActionResume, id)
}

// Reset вызывает POST /timer/{id}/reset
func (c *HTTPClient) Reset(ctx context.Context, id int64) (*api.ControlResponse, error) {
	return c.control(ctx, ActionReset, id)
}

// Delete вызывает POST /timer/{id}/delete
func (c *HTTPClient) Delete(ctx context.Context, id int64) (*api.ControlResponse, error) {
	return c.control(ctx, ActionDelete, id)
}

func (c *HTTPClient) control(ctx context.Context, action Action, id int64) (*api.ControlResponse, error) {
	endpoint := fmt.Sprintf("%s/timer/%d/%s", c.baseURL, id, action)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader([]byte("{}")))
	if err != nil {
		return nil, &ActionError{Action: action, TimerID: id, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	c.authorize(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &ActionError{Action: action, TimerID: id, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, &ActionError{Action: action, TimerID: id, StatusCode: resp.StatusCode, Err: err}
	}

	var out api.ControlResponse
	decodeErr := json.Unmarshal(body, &out)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &ActionError{Action: action, TimerID: id, StatusCode: resp.StatusCode, Message: out.Message}
	}
	if decodeErr != nil {
		return nil, &ActionError{Action: action, TimerID: id, StatusCode: resp.StatusCode, Err: fmt.Errorf("decode response: %w", decodeErr)}
	}
	if !out.Success {
		return nil, &ActionError{Action: action, TimerID: id, Message: out.Message}
	}

	return &out, nil
}

// FetchPage загружает страницу таймеров и разбирает снимки из разметки
func (c *HTTPClient) FetchPage(ctx context.Context, path string) ([]Record, []error, error) {
	u, err := url.JoinPath(c.baseURL, path)
	if err != nil {
		return nil, nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, nil, err
	}
	c.authorize(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("fetch timers page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, nil, fmt.Errorf("fetch timers page: status %d", resp.StatusCode)
	}

	records, problems, err := ParsePage(resp.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("parse timers page: %w", err)
	}
	return records, problems, nil
}

func (c *HTTPClient) authorize(req *http.Request) {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
}
