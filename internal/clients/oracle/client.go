package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel/codes"

	"github.com/yungbote/nearby-backend/internal/observability"
	apperrors "github.com/yungbote/nearby-backend/internal/pkg/errors"
	"github.com/yungbote/nearby-backend/internal/pkg/httpx"
	"github.com/yungbote/nearby-backend/internal/pkg/logger"
)

type Config struct {
	BaseURL    string
	APIKey     string
	Model      string
	EmbedModel string
	Timeout    time.Duration
	MaxRetries int
	Gate       *RateGate
}

const compareSystemPrompt = `You compare two people who are physically near each other and may want to meet.
You receive each person's display name and a short descriptor of who they are and what they are looking for.
Score how compatible B is for A (scoreForA) and how compatible A is for B (scoreForB), each 0-100.
shortTextForA is one sentence shown to A about B; shortTextForB is one sentence shown to B about A.
longTextForA and longTextForB are short paragraphs expanding on the same.
Never mention locations, distances or anything not present in the descriptors.`

type client struct {
	log        *logger.Logger
	baseURL    string
	apiKey     string
	model      string
	embedModel string
	maxRetries int
	gate       *RateGate
	httpClient *http.Client
}

// NewClient builds an OpenAI-compatible oracle client.
func NewClient(log *logger.Logger, cfg Config) (Oracle, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("missing ORACLE_API_KEY")
	}
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = "https://api.openai.com"
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = "gpt-4o-mini"
	}
	embed := strings.TrimSpace(cfg.EmbedModel)
	if embed == "" {
		embed = "text-embedding-3-small"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	maxRetries := cfg.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}
	return &client{
		log:        log.With("client", "OracleClient"),
		baseURL:    baseURL,
		apiKey:     cfg.APIKey,
		model:      model,
		embedModel: embed,
		maxRetries: maxRetries,
		gate:       cfg.Gate,
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

type oracleHTTPError struct {
	StatusCode int
	Body       string
}

func (e *oracleHTTPError) Error() string {
	return fmt.Sprintf("oracle http %d: %s", e.StatusCode, e.Body)
}

func (e *oracleHTTPError) HTTPStatusCode() int {
	if e == nil {
		return 0
	}
	return e.StatusCode
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model          string         `json:"model"`
	Messages       []chatMessage  `json:"messages"`
	ResponseFormat map[string]any `json:"response_format,omitempty"`
	Temperature    *float64       `json:"temperature,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
			Refusal string `json:"refusal,omitempty"`
		} `json:"message"`
	} `json:"choices"`
}

type embeddingsRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embeddingsResponse struct {
	Data []struct {
		Embedding []float64 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
}

func (c *client) Compare(ctx context.Context, req CompareRequest) (*CompareResult, error) {
	user, err := json.Marshal(map[string]any{
		"A": map[string]string{"displayName": req.A.DisplayName, "descriptor": req.A.Descriptor},
		"B": map[string]string{"displayName": req.B.DisplayName, "descriptor": req.B.Descriptor},
	})
	if err != nil {
		return nil, &apperrors.OracleError{Op: "compare", Err: err}
	}
	temp := 0.2
	body := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: compareSystemPrompt},
			{Role: "user", Content: string(user)},
		},
		ResponseFormat: map[string]any{
			"type": "json_schema",
			"json_schema": map[string]any{
				"name":   "pair_compatibility",
				"schema": compareSchema,
				"strict": true,
			},
		},
		Temperature: &temp,
	}

	var resp chatResponse
	if err := c.do(ctx, "compare", "/v1/chat/completions", body, &resp); err != nil {
		return nil, err
	}
	if len(resp.Choices) == 0 {
		return nil, &apperrors.OracleError{Op: "compare", Err: errMalformed("no choices")}
	}
	msg := resp.Choices[0].Message
	if msg.Refusal != "" {
		return nil, &apperrors.OracleError{Op: "compare", Err: fmt.Errorf("model refused: %s", msg.Refusal)}
	}
	var out compareOutput
	if err := json.Unmarshal([]byte(strings.TrimSpace(msg.Content)), &out); err != nil {
		return nil, &apperrors.OracleError{Op: "compare", Err: errMalformed(err.Error())}
	}
	return out.validate()
}

func (c *client) Embed(ctx context.Context, text string) ([]float32, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, nil
	}
	var resp embeddingsResponse
	if err := c.do(ctx, "embed", "/v1/embeddings", embeddingsRequest{Model: c.embedModel, Input: []string{text}}, &resp); err != nil {
		return nil, err
	}
	if len(resp.Data) == 0 || len(resp.Data[0].Embedding) == 0 {
		return nil, &apperrors.OracleError{Op: "embed", Err: errMalformed("empty embedding")}
	}
	vec := make([]float32, len(resp.Data[0].Embedding))
	for i, f := range resp.Data[0].Embedding {
		vec[i] = float32(f)
	}
	return vec, nil
}

func (c *client) doOnce(ctx context.Context, path string, body any) (*http.Response, []byte, error) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		return nil, nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, &buf)
	if err != nil {
		return nil, nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, err
	}
	raw, readErr := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if readErr != nil {
		return resp, nil, readErr
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp, raw, &oracleHTTPError{StatusCode: resp.StatusCode, Body: string(raw)}
	}
	return resp, raw, nil
}

// do retries timeouts, 408, 429 and 5xx up to maxRetries times, taking a
// gate token before every attempt; the caller degrades on whatever error
// comes back.
func (c *client) do(ctx context.Context, op, path string, body any, out any) (err error) {
	ctx, span := observability.Tracer().Start(ctx, "oracle."+op)
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "oracle call failed")
		}
		span.End()
	}()
	backoff := &httpx.Backoff{Base: 500 * time.Millisecond, Max: 5 * time.Second, Jitter: 0.2}
	start := time.Now()
	for attempt := 0; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return &apperrors.OracleError{Op: op, Err: err}
		}
		if err := c.gate.Wait(ctx, op); err != nil {
			return err
		}
		resp, raw, err := c.doOnce(ctx, path, body)
		if err == nil {
			observability.Current().ObserveOracleCall(op, "ok", time.Since(start))
			if uErr := json.Unmarshal(raw, out); uErr != nil {
				return &apperrors.OracleError{Op: op, Err: errMalformed(uErr.Error())}
			}
			return nil
		}

		status := 0
		if resp != nil {
			status = resp.StatusCode
		}
		if !httpx.Retryable(err) || attempt >= c.maxRetries {
			observability.Current().ObserveOracleCall(op, statusLabel(status), time.Since(start))
			return &apperrors.OracleError{Op: op, Status: status, Err: err}
		}

		sleepFor := backoff.Next(resp)
		c.log.Warn("Oracle request retrying", "op", op, "attempt", attempt+1, "sleep", sleepFor.String(), "error", err.Error())
		select {
		case <-ctx.Done():
			return &apperrors.OracleError{Op: op, Err: ctx.Err()}
		case <-time.After(sleepFor):
		}
	}
}

func statusLabel(code int) string {
	if code == 0 {
		return "error"
	}
	return fmt.Sprintf("%d", code)
}
