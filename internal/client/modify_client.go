package client

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

	"tasksync/internal/domain"
)

// ModifyClient talks to the modify endpoint over HTTP+JSON. Failed calls
// return the server's *domain.Fault, so errors.Is works against the domain
// sentinels.
type ModifyClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewModifyClient returns a client for baseURL (scheme and host, no path).
// A nil hc gets a client with a 10s timeout.
func NewModifyClient(baseURL string, hc *http.Client) *ModifyClient {
	if hc == nil {
		hc = &http.Client{Timeout: 10 * time.Second}
	}
	return &ModifyClient{
		baseURL:    strings.TrimRight(baseURL, "/") + "/api/v1",
		httpClient: hc,
	}
}

type okResponse struct {
	OK bool `json:"ok"`
}

func (c *ModifyClient) AddTask(ctx context.Context, t domain.Task) (bool, error) {
	var out okResponse
	err := c.do(ctx, http.MethodPost, "/tasks", t, &out)
	return out.OK, err
}

func (c *ModifyClient) UpdateTask(ctx context.Context, t domain.Task) (bool, error) {
	var out okResponse
	err := c.do(ctx, http.MethodPut, "/tasks/"+url.PathEscape(t.ID), t, &out)
	return out.OK, err
}

func (c *ModifyClient) DeleteTask(ctx context.Context, id string) (bool, error) {
	var out okResponse
	err := c.do(ctx, http.MethodDelete, "/tasks/"+url.PathEscape(id), nil, &out)
	return out.OK, err
}

func (c *ModifyClient) GetTask(ctx context.Context, id string) (domain.Task, error) {
	var out struct {
		Task domain.Task `json:"task"`
	}
	err := c.do(ctx, http.MethodGet, "/tasks/"+url.PathEscape(id), nil, &out)
	return out.Task, err
}

func (c *ModifyClient) GetAllTasks(ctx context.Context) ([]domain.Task, error) {
	var out struct {
		Tasks []domain.Task `json:"tasks"`
	}
	err := c.do(ctx, http.MethodGet, "/tasks", nil, &out)
	return out.Tasks, err
}

func (c *ModifyClient) do(ctx context.Context, method, path string, body, out any) error {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		rd = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		var fb struct {
			Error *domain.Fault `json:"error"`
		}
		if json.Unmarshal(raw, &fb) == nil && fb.Error != nil && fb.Error.Code != "" {
			return fb.Error
		}
		return &domain.Fault{
			Code:    domain.FaultInternal,
			Message: "unexpected response from server",
			Cause:   fmt.Sprintf("%s: %s", resp.Status, strings.TrimSpace(string(raw))),
		}
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
