package llm

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

// scriptedClient returns each queued outcome in order, repeating the
// last one once the script runs out.
type scriptedClient struct {
	outcomes []scriptedOutcome
	calls    int
}

type scriptedOutcome struct {
	text string
	err  error
}

func (c *scriptedClient) Generate(ctx context.Context, prompt string, params GenerationParams) (*Result, error) {
	i := c.calls
	if i >= len(c.outcomes) {
		i = len(c.outcomes) - 1
	}
	c.calls++
	out := c.outcomes[i]
	if out.err != nil {
		return nil, out.err
	}
	return &Result{Text: out.text}, nil
}

func (c *scriptedClient) Model() string { return "scripted" }

func fastGateway(c Client) *Gateway {
	return NewGateway(c, WithRetryDelay(time.Millisecond), WithAttemptTimeout(time.Second))
}

func TestGateway_SuccessFirstAttempt(t *testing.T) {
	client := &scriptedClient{outcomes: []scriptedOutcome{
		{text: "create_todo(title=\"Buy milk\")"},
	}}
	resp := fastGateway(client).Invoke(context.Background(), "p", GenerationParams{})

	if !resp.RetryInfo.FinalSuccess {
		t.Fatalf("want success, got %+v", resp)
	}
	if resp.RetryInfo.TotalAttempts != 1 || resp.RetryInfo.RetryAttempts != 0 {
		t.Errorf("attempts = %+v", resp.RetryInfo)
	}
	if resp.Err != "" {
		t.Errorf("unexpected error %q", resp.Err)
	}
	if len(resp.RetryInfo.AttemptTimes) != 1 {
		t.Errorf("attempt times = %v", resp.RetryInfo.AttemptTimes)
	}
}

func TestGateway_ShortResponseRetried(t *testing.T) {
	client := &scriptedClient{outcomes: []scriptedOutcome{
		{text: "ok"},
		{text: "list_todos(completed=False)"},
	}}
	resp := fastGateway(client).Invoke(context.Background(), "p", GenerationParams{})

	if !resp.RetryInfo.FinalSuccess {
		t.Fatalf("want recovery on second attempt, got %+v", resp)
	}
	if resp.RetryInfo.TotalAttempts != 2 || resp.RetryInfo.RetryAttempts != 1 {
		t.Errorf("attempts = %+v", resp.RetryInfo)
	}
	if got := resp.RetryInfo.RetryReasons; len(got) != 1 || got[0] != "Attempt 1: Empty or too short response" {
		t.Errorf("reasons = %v", got)
	}
}

func TestGateway_ExhaustedRetries(t *testing.T) {
	client := &scriptedClient{outcomes: []scriptedOutcome{
		{err: &HTTPError{StatusCode: 500, Body: "boom"}},
	}}
	resp := fastGateway(client).Invoke(context.Background(), "p", GenerationParams{})

	if resp.RetryInfo.FinalSuccess {
		t.Fatalf("want failure, got %+v", resp)
	}
	if resp.RetryInfo.TotalAttempts != DefaultMaxRetries+1 {
		t.Errorf("total attempts = %d, want %d", resp.RetryInfo.TotalAttempts, DefaultMaxRetries+1)
	}
	if resp.Err != "HTTP 500" {
		t.Errorf("error = %q", resp.Err)
	}
	for i, reason := range resp.RetryInfo.RetryReasons {
		if !strings.HasSuffix(reason, "HTTP 500") {
			t.Errorf("reason[%d] = %q", i, reason)
		}
	}
}

func TestGateway_TimeoutReason(t *testing.T) {
	client := &scriptedClient{outcomes: []scriptedOutcome{
		{err: context.DeadlineExceeded},
		{text: "search_todos(query=\"milk\")"},
	}}
	g := NewGateway(client, WithRetryDelay(time.Millisecond), WithAttemptTimeout(90*time.Second))
	resp := g.Invoke(context.Background(), "p", GenerationParams{})

	if !resp.RetryInfo.FinalSuccess {
		t.Fatalf("want recovery, got %+v", resp)
	}
	if got := resp.RetryInfo.RetryReasons[0]; got != "Attempt 1: Request timeout (90s)" {
		t.Errorf("reason = %q", got)
	}
}

func TestGateway_GenericErrorReason(t *testing.T) {
	client := &scriptedClient{outcomes: []scriptedOutcome{
		{err: errors.New("connection refused")},
	}}
	resp := fastGateway(client).Invoke(context.Background(), "p", GenerationParams{})

	if resp.Err != "connection refused" {
		t.Errorf("error = %q", resp.Err)
	}
}

func TestGateway_TelemetryOnSuccessOnly(t *testing.T) {
	client := &scriptedClient{outcomes: []scriptedOutcome{
		{err: errors.New("transient")},
		{text: "get_todo(id=1) and some padding"},
	}}
	resp := fastGateway(client).Invoke(context.Background(), "p", GenerationParams{})

	if !resp.RetryInfo.FinalSuccess {
		t.Fatalf("want success, got %+v", resp)
	}
	if len(resp.RetryInfo.Telemetry) != 1 {
		t.Errorf("telemetry entries = %d, want 1", len(resp.RetryInfo.Telemetry))
	}
	if len(resp.RetryInfo.AttemptTimes) != 2 {
		t.Errorf("attempt times = %v, want one per attempt", resp.RetryInfo.AttemptTimes)
	}
}

func TestGateway_CancelledContextStopsRetries(t *testing.T) {
	client := &scriptedClient{outcomes: []scriptedOutcome{
		{err: errors.New("transient")},
	}}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	resp := NewGateway(client, WithRetryDelay(time.Hour)).Invoke(ctx, "p", GenerationParams{})

	if resp.RetryInfo.FinalSuccess {
		t.Fatalf("want failure, got %+v", resp)
	}
	if client.calls != 1 {
		t.Errorf("calls = %d, want no further attempts after cancellation", client.calls)
	}
}

func TestDeterministicParams(t *testing.T) {
	p := DeterministicParams()
	if p.Temperature == nil || *p.Temperature != 0 {
		t.Errorf("temperature = %v", p.Temperature)
	}
	if p.Seed == nil || *p.Seed != 1234 {
		t.Errorf("seed = %v", p.Seed)
	}
	if p.TopP == nil || *p.TopP != 1.0 {
		t.Errorf("top_p = %v", p.TopP)
	}
	if p.TopK == nil || *p.TopK != 0 {
		t.Errorf("top_k = %v", p.TopK)
	}
}
