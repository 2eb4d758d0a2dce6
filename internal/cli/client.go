package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"mathengine/internal/api"
	"mathengine/internal/models"
)

// apiClient - клиент публичного HTTP API для mathctl
type apiClient struct {
	baseURL string
	token   string
	http    *http.Client
}

func newAPIClient(baseURL, token string) *apiClient {
	return &apiClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *apiClient) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var apiErr api.ErrorResponse
		if err := json.NewDecoder(resp.Body).Decode(&apiErr); err == nil && apiErr.Error != "" {
			return fmt.Errorf("%s %s: %d %s", method, path, resp.StatusCode, apiErr.Error)
		}
		return fmt.Errorf("%s %s: %d", method, path, resp.StatusCode)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *apiClient) login(ctx context.Context, login, password string) error {
	var resp models.AuthResponse
	if err := c.do(ctx, http.MethodPost, "/api/v1/login", models.Credentials{Login: login, Password: password}, &resp); err != nil {
		return err
	}
	c.token = resp.Token
	return nil
}

func (c *apiClient) submit(ctx context.Context, req api.QuestionRequest) (string, error) {
	var resp api.QuestionResponse
	if err := c.do(ctx, http.MethodPost, "/api/v1/questions", req, &resp); err != nil {
		return "", err
	}
	return resp.ID, nil
}

func (c *apiClient) operations(ctx context.Context) (api.OperationsResponse, error) {
	var resp api.OperationsResponse
	err := c.do(ctx, http.MethodGet, "/api/v1/operations", nil, &resp)
	return resp, err
}

func (c *apiClient) answers(ctx context.Context) (api.AnswersResponse, error) {
	var resp api.AnswersResponse
	err := c.do(ctx, http.MethodGet, "/api/v1/answers", nil, &resp)
	return resp, err
}

func (c *apiClient) summary(ctx context.Context) (models.Summary, error) {
	var resp models.Summary
	err := c.do(ctx, http.MethodGet, "/api/v1/summary", nil, &resp)
	return resp, err
}

func (c *apiClient) cancelAll(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/api/v1/cancel", nil, nil)
}
