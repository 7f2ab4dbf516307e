package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"strings"
	"time"
)

// Gateway defaults, tuned for local inference backends where cold
// model loads regularly take tens of seconds.
const (
	DefaultMaxRetries     = 2
	DefaultRetryDelay     = 1 * time.Second
	DefaultAttemptTimeout = 90 * time.Second

	// Responses shorter than this after trimming are treated as a
	// failed attempt and retried.
	minContentChars = 10
)

// SystemSample is a coarse process snapshot taken around a request.
type SystemSample struct {
	HeapMBBefore   float64 `json:"heap_mb_before"`
	HeapMBAfter    float64 `json:"heap_mb_after"`
	GoroutineCount int     `json:"goroutine_count"`
}

// AttemptTelemetry is recorded once per successful attempt.
type AttemptTelemetry struct {
	Ollama     *OllamaTelemetry `json:"ollama,omitempty"`
	System     SystemSample     `json:"system_metrics"`
	WallTimeMS int64            `json:"wall_time_ms"`
}

// RetryInfo tracks every attempt of a gatewayed request, successful
// or not. Times are seconds to keep artifact arithmetic simple.
type RetryInfo struct {
	TotalAttempts int                `json:"total_attempts"`
	RetryAttempts int                `json:"retry_attempts"`
	RetryReasons  []string           `json:"retry_reasons"`
	FinalSuccess  bool               `json:"final_success"`
	TotalTime     float64            `json:"total_time"`
	AttemptTimes  []float64          `json:"attempt_times"`
	Telemetry     []AttemptTelemetry `json:"telemetry,omitempty"`
}

// Response is the gateway's verdict on a request: the model text if
// any attempt succeeded, plus the full attempt history. Err is set
// only when every attempt failed.
type Response struct {
	Output    string    `json:"model_output"`
	RetryInfo RetryInfo `json:"retry_info"`
	Err       string    `json:"error,omitempty"`
}

// Gateway wraps a Client with retry, per-attempt timeouts, and a
// minimal content-sanity check. A response can be a 200 and still be
// useless (empty, or a couple of tokens before the model gave up);
// those are retried like transport failures.
type Gateway struct {
	client     Client
	maxRetries int
	retryDelay time.Duration
	timeout    time.Duration
}

type GatewayOption func(*Gateway)

func WithMaxRetries(n int) GatewayOption {
	return func(g *Gateway) { g.maxRetries = n }
}

func WithRetryDelay(d time.Duration) GatewayOption {
	return func(g *Gateway) { g.retryDelay = d }
}

func WithAttemptTimeout(d time.Duration) GatewayOption {
	return func(g *Gateway) { g.timeout = d }
}

func NewGateway(client Client, opts ...GatewayOption) *Gateway {
	g := &Gateway{
		client:     client,
		maxRetries: DefaultMaxRetries,
		retryDelay: DefaultRetryDelay,
		timeout:    DefaultAttemptTimeout,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *Gateway) Model() string { return g.client.Model() }

// Invoke runs the request with up to maxRetries+1 attempts. It never
// returns a Go error: a total failure comes back as a Response with
// Err set and FinalSuccess false so the caller can record the run
// instead of dropping it.
func (g *Gateway) Invoke(ctx context.Context, prompt string, params GenerationParams) *Response {
	info := RetryInfo{
		RetryReasons: []string{},
		AttemptTimes: []float64{},
	}
	var lastError string
	var output string

	for attempt := 0; attempt <= g.maxRetries; attempt++ {
		info.TotalAttempts++
		if attempt > 0 {
			info.RetryAttempts++
			slog.Debug("Retrying model request", "model", g.client.Model(),
				"attempt", attempt, "max_retries", g.maxRetries)
			select {
			case <-time.After(g.retryDelay):
			case <-ctx.Done():
				info.RetryReasons = append(info.RetryReasons,
					fmt.Sprintf("Attempt %d: %v", attempt+1, ctx.Err()))
				return &Response{RetryInfo: info, Err: ctx.Err().Error()}
			}
		}

		heapBefore := heapMB()
		start := time.Now()

		attemptCtx, cancel := context.WithTimeout(ctx, g.timeout)
		result, err := g.client.Generate(attemptCtx, prompt, params)
		cancel()

		elapsed := time.Since(start)
		info.AttemptTimes = append(info.AttemptTimes, elapsed.Seconds())
		info.TotalTime += elapsed.Seconds()

		if err != nil {
			reason := g.classifyError(err)
			info.RetryReasons = append(info.RetryReasons,
				fmt.Sprintf("Attempt %d: %s", attempt+1, reason))
			lastError = reason
			continue
		}

		output = result.Text
		if len(strings.TrimSpace(output)) < minContentChars {
			info.RetryReasons = append(info.RetryReasons,
				fmt.Sprintf("Attempt %d: Empty or too short response", attempt+1))
			lastError = "Empty response from model"
			continue
		}

		info.FinalSuccess = true
		info.Telemetry = append(info.Telemetry, AttemptTelemetry{
			Ollama: result.Telemetry,
			System: SystemSample{
				HeapMBBefore:   heapBefore,
				HeapMBAfter:    heapMB(),
				GoroutineCount: runtime.NumGoroutine(),
			},
			WallTimeMS: elapsed.Milliseconds(),
		})
		break
	}

	resp := &Response{Output: output, RetryInfo: info}
	if !info.FinalSuccess {
		resp.Err = lastError
		slog.Warn("Model request exhausted retries", "model", g.client.Model(),
			"attempts", info.TotalAttempts, "error", lastError)
	}
	return resp
}

func (g *Gateway) classifyError(err error) string {
	var httpErr *HTTPError
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Sprintf("Request timeout (%ds)", int(g.timeout.Seconds()))
	case errors.As(err, &httpErr):
		return fmt.Sprintf("HTTP %d", httpErr.StatusCode)
	default:
		return err.Error()
	}
}

func heapMB() float64 {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return float64(m.HeapAlloc) / (1024 * 1024)
}
