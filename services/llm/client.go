package llm

import "context"

// GenerationParams are the sampling knobs passed through to the
// backend. Nil pointer fields fall back to backend defaults.
type GenerationParams struct {
	Temperature *float32 `json:"temperature"`
	TopK        *int     `json:"top_k"`
	TopP        *float32 `json:"top_p"`
	MaxTokens   *int     `json:"max_tokens"`
	Seed        *int     `json:"seed"`
	Stop        []string `json:"stop"`

	// System is sent as the backend's system prompt when non-empty.
	System string `json:"-"`
}

// DeterministicParams pins sampling so repeated runs of the same
// prompt produce comparable output: temperature 0, fixed seed,
// top_p 1.0, top_k 0.
func DeterministicParams() GenerationParams {
	temp := float32(0)
	seed := 1234
	topP := float32(1.0)
	topK := 0
	return GenerationParams{
		Temperature: &temp,
		Seed:        &seed,
		TopP:        &topP,
		TopK:        &topK,
	}
}

// OllamaTelemetry carries the generation counters Ollama reports
// alongside the response text. Counts are tokens, durations are
// nanoseconds.
type OllamaTelemetry struct {
	PromptEvalCount int   `json:"prompt_eval_count"`
	EvalCount       int   `json:"eval_count"`
	TotalDuration   int64 `json:"total_duration"`
	EvalDuration    int64 `json:"eval_duration"`
	LoadDuration    int64 `json:"load_duration"`
}

// Result is a single successful backend round trip.
type Result struct {
	Text string

	// Telemetry is set for backends that report it (Ollama).
	Telemetry *OllamaTelemetry
}

// Client defines the standard interface for any LLM backend.
type Client interface {
	Generate(ctx context.Context, prompt string, params GenerationParams) (*Result, error)

	// Model reports the backend model identifier, used to label
	// results and artifacts.
	Model() string
}
