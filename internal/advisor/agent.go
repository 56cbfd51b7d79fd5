package advisor

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

	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"preptracker/pkg/circuitbreaker"
	"preptracker/pkg/metrics"
	"preptracker/pkg/trace"
	"preptracker/pkg/util"
)

const backendAgent = "agent"

var ErrEmptyReply = errors.New("advisor returned no text")

// replyPaths are tried in order to find the text in an agent-service reply.
var replyPaths = []string{
	"recommendations",
	"text",
	"content.0.text",
	"choices.0.message.content",
}

// AgentClient calls an agent-service over HTTP. Calls run behind a circuit
// breaker and are retried once on network errors and 5xx replies.
type AgentClient struct {
	baseURL    string
	httpClient *http.Client
	cb         *circuitbreaker.CircuitBreaker
	maxRetries int64
	logger     *zap.Logger
}

func NewAgentClient(baseURL string, timeout time.Duration, logger *zap.Logger) *AgentClient {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	cbConfig := circuitbreaker.Config{
		FailureThreshold:    3,
		SuccessThreshold:    2,
		Timeout:             30 * time.Second,
		HalfOpenMaxRequests: 2,
		OnStateChange: func(from, to circuitbreaker.State) {
			logger.Warn("Advisor circuit breaker state changed",
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	}

	return &AgentClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		cb:         circuitbreaker.NewCircuitBreaker(cbConfig),
		maxRetries: 1,
		logger:     logger,
	}
}

type agentRequest struct {
	System string `json:"system"`
	Prompt string `json:"prompt"`
}

func (c *AgentClient) Advise(ctx context.Context, system, prompt string) (string, error) {
	var (
		text string
		err  error
	)
	for attempt := int64(0); ; attempt++ {
		err = c.cb.Execute(func() error {
			var callErr error
			text, callErr = c.call(ctx, system, prompt)
			return callErr
		}, func(err error) bool {
			retryable, _ := util.IsRetryableError(err)
			return retryable
		})
		if err == nil {
			return text, nil
		}

		retryable, errType := util.IsRetryableError(err)
		if !util.ShouldRetry(attempt+1, c.maxRetries, retryable) {
			break
		}
		c.logger.Warn("Retrying advisor call",
			zap.Int64("attempt", attempt+1),
			zap.String("error_type", errType),
			zap.Error(err),
		)
	}
	return "", err
}

func (c *AgentClient) call(ctx context.Context, system, prompt string) (string, error) {
	start := time.Now()
	body, err := json.Marshal(agentRequest{System: system, Prompt: prompt})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/recommend", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	// 传播 trace_id
	if traceID := trace.FromContext(ctx); traceID != "" {
		req.Header.Set(trace.HeaderName, traceID)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.RecordAdvisorCallLatency(backendAgent, "error", time.Since(start))
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		metrics.RecordAdvisorCallLatency(backendAgent, "5xx", time.Since(start))
		return "", fmt.Errorf("advisor service 5xx: %d", resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		metrics.RecordAdvisorCallLatency(backendAgent, fmt.Sprintf("%d", resp.StatusCode), time.Since(start))
		return "", fmt.Errorf("advisor service error: %d", resp.StatusCode)
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		metrics.RecordAdvisorCallLatency(backendAgent, "error", time.Since(start))
		return "", err
	}
	metrics.RecordAdvisorCallLatency(backendAgent, "success", time.Since(start))
	return extractText(raw)
}

// extractText accepts a bare JSON string or an object carrying the text at
// one of replyPaths.
func extractText(raw []byte) (string, error) {
	if !gjson.ValidBytes(raw) {
		return "", fmt.Errorf("advisor service error: invalid JSON reply")
	}
	parsed := gjson.ParseBytes(raw)
	if parsed.Type == gjson.String {
		return nonEmpty(parsed.String())
	}
	for _, path := range replyPaths {
		if r := parsed.Get(path); r.Exists() {
			if r.IsArray() {
				parts := make([]string, 0)
				for _, item := range r.Array() {
					parts = append(parts, item.String())
				}
				return nonEmpty(strings.Join(parts, "\n"))
			}
			return nonEmpty(r.String())
		}
	}
	return "", ErrEmptyReply
}

func nonEmpty(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", ErrEmptyReply
	}
	return s, nil
}
