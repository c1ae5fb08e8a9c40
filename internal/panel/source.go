package panel

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/region23/servicedesk/internal/api"
	"github.com/region23/servicedesk/internal/storage/models"
)

// HTTPSource работает с задачами через JSON API сервера
type HTTPSource struct {
	baseURL string
	token   string
	http    *http.Client
}

// NewHTTPSource создает источник задач поверх JSON API
func NewHTTPSource(baseURL, token string, timeout time.Duration) *HTTPSource {
	return &HTTPSource{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: timeout},
	}
}

// Get реализует TaskSource
func (s *HTTPSource) Get(ctx context.Context, id int64) (*api.Task, error) {
	var t api.Task
	if err := s.do(ctx, http.MethodGet, fmt.Sprintf("/api/tasks/%d", id), nil, "", &t); err != nil {
		return nil, fmt.Errorf("fetch task %d: %w", id, err)
	}
	return &t, nil
}

// Pending возвращает незавершенные задачи
func (s *HTTPSource) Pending(ctx context.Context) ([]api.Task, error) {
	var tasks []api.Task
	if err := s.do(ctx, http.MethodGet, "/api/tasks?completed=false", nil, "", &tasks); err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	return tasks, nil
}

// SubmitBulk отправляет форму массового действия и возвращает число
// обработанных задач
func (s *HTTPSource) SubmitBulk(ctx context.Context, form url.Values) (int, error) {
	var out struct {
		Affected int `json:"affected"`
	}
	err := s.do(ctx, http.MethodPost, "/tasks/bulk", strings.NewReader(form.Encode()),
		"application/x-www-form-urlencoded", &out)
	if err != nil {
		return 0, fmt.Errorf("bulk %s: %w", form.Get(FieldAction), err)
	}
	return out.Affected, nil
}

func (s *HTTPSource) do(ctx context.Context, method, path string, body io.Reader, contentType string, dst any) error {
	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}

	resp, err := s.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var failure struct {
			Message string `json:"message"`
		}
		if json.NewDecoder(resp.Body).Decode(&failure) == nil && failure.Message != "" {
			return fmt.Errorf("status %d: %s", resp.StatusCode, failure.Message)
		}
		return fmt.Errorf("status %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// ModelGetter отдает задачу из хранилища
type ModelGetter interface {
	Get(ctx context.Context, id int64) (*models.Task, error)
}

type modelSource struct {
	getter ModelGetter
}

// FromModels превращает сервис задач в TaskSource
func FromModels(g ModelGetter) TaskSource {
	return modelSource{getter: g}
}

func (s modelSource) Get(ctx context.Context, id int64) (*api.Task, error) {
	t, err := s.getter.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	view := api.NewTask(t)
	return &view, nil
}
