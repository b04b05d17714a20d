package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/stywzn/qdashboard/pkg/resilience"
)

// OrchestratorClient talks to the inference orchestrator that fronts the
// model hosts. POST /api/inference generates, GET /health reports liveness.
type OrchestratorClient struct {
	baseURL string
	http    *http.Client
	retry   resilience.RetryConfig
}

func NewOrchestratorClient(baseURL string, timeout time.Duration, attempts int) *OrchestratorClient {
	retry := resilience.DefaultRetryConfig()
	retry.MaxAttempts = attempts
	retry.InitialDelay = 500 * time.Millisecond
	return &OrchestratorClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		retry:   retry,
	}
}

func (c *OrchestratorClient) Name() string { return "orchestrator" }

type inferenceRequest struct {
	Prompt      string  `json:"prompt"`
	Language    string  `json:"language"`
	MaxLength   int     `json:"max_length"`
	Temperature float64 `json:"temperature"`
}

type inferenceResponse struct {
	Response      string  `json:"response"`
	InferenceTime float64 `json:"inference_time"`
	Model         string  `json:"model"`
}

type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("orchestrator: status %d: %s", e.code, e.body)
}

func (e *statusError) Temporary() bool { return e.code >= 500 || e.code == http.StatusTooManyRequests }

func (c *OrchestratorClient) Generate(ctx context.Context, req Request) (Completion, error) {
	body, err := json.Marshal(inferenceRequest{
		Prompt:      req.Prompt,
		Language:    req.Language,
		MaxLength:   req.MaxTokens,
		Temperature: req.Temperature,
	})
	if err != nil {
		return Completion{}, fmt.Errorf("encode inference request: %w", err)
	}

	var out inferenceResponse
	err = resilience.Retry(ctx, c.retry, func() error {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/inference", bytes.NewReader(body))
		if err != nil {
			return err
		}
		httpReq.Header.Set("Content-Type", "application/json")
		return c.do(httpReq, &out)
	})
	if err != nil {
		return Completion{}, err
	}

	return Completion{
		Text:          out.Response,
		Model:         out.Model,
		InferenceTime: time.Duration(out.InferenceTime * float64(time.Second)),
	}, nil
}

func (c *OrchestratorClient) Health(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return err
	}
	return c.do(req, nil)
}

func (c *OrchestratorClient) do(req *http.Request, dst any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("orchestrator %s: %w", req.URL.Path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return &statusError{code: resp.StatusCode, body: strings.TrimSpace(string(b))}
	}
	if dst == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("decode orchestrator response: %w", err)
	}
	return nil
}
