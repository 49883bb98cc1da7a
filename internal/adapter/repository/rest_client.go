package repository

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"seedbazaar/internal/infrastructure/metrics"
	"seedbazaar/pkg/errors"
	"seedbazaar/pkg/logger"
)

// WebResponse is the backend's envelope. Flag is a pointer because some
// endpoints omit it; only an explicit false is a failure.
type WebResponse[T any] struct {
	Status       int    `json:"status"`
	Flag         *bool  `json:"flag"`
	Message      string `json:"message"`
	Response     T      `json:"response"`
	TotalRecords int64  `json:"totalRecords"`
}

// Credentials supplies the bearer token and forgets it when the backend
// rejects it.
type Credentials interface {
	Token() string
	InvalidateToken(ctx context.Context) error
}

type RestClient struct {
	baseURL string
	http    *http.Client
	creds   Credentials
	metrics *metrics.Metrics
}

func NewRestClient(baseURL string, timeout time.Duration, creds Credentials, m *metrics.Metrics) *RestClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &RestClient{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
		creds:   creds,
		metrics: m,
	}
}

// do performs the request and decodes the envelope into out. out may be
// nil for endpoints whose body is irrelevant.
func (c *RestClient) do(ctx context.Context, operation, method, path string, body interface{}, out interface{}) error {
	start := time.Now()
	err := c.roundTrip(ctx, method, path, body, out)

	result := "ok"
	if err != nil {
		result = "error"
		logger.WithFields(map[string]interface{}{
			"operation": operation,
			"method":    method,
			"path":      path,
		}).Warnf("backend call failed: %v", err)
	}
	c.metrics.APIRequest(operation, result, time.Since(start).Seconds())
	return err
}

func (c *RestClient) roundTrip(ctx context.Context, method, path string, body interface{}, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return errors.Internal("Failed to encode request", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return errors.Internal("Failed to build request", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.creds != nil {
		if token := c.creds.Token(); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Transport("Backend unreachable", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Transport("Failed to read response", err)
	}

	if resp.StatusCode == http.StatusUnauthorized {
		if c.creds != nil {
			if err := c.creds.InvalidateToken(ctx); err != nil {
				logger.Warn("Failed to drop rejected token: %v", err)
			}
		}
		return errors.Unauthorized("Session expired", nil)
	}

	var envelope WebResponse[json.RawMessage]
	if len(bytes.TrimSpace(data)) > 0 {
		if err := json.Unmarshal(data, &envelope); err != nil {
			if resp.StatusCode >= 300 {
				return errors.API(resp.StatusCode, http.StatusText(resp.StatusCode))
			}
			return errors.Decode("Invalid response body", err)
		}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := envelope.Message
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return errors.API(resp.StatusCode, msg)
	}
	if envelope.Flag != nil && !*envelope.Flag {
		msg := envelope.Message
		if msg == "" {
			msg = "Request was not successful"
		}
		return errors.API(http.StatusBadGateway, msg)
	}

	if out == nil || len(envelope.Response) == 0 || string(envelope.Response) == "null" {
		return nil
	}
	if err := json.Unmarshal(envelope.Response, out); err != nil {
		return errors.Decode(fmt.Sprintf("Unexpected %s response", path), err)
	}
	return nil
}
