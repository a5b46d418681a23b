package llm

// Response is the result of a completion call. Token counts feed the rate
// limiter's per-minute budget; providers that don't report them leave zeros.
type Response struct {
	Content      string `json:"content"`
	Model        string `json:"model,omitempty"`
	InputTokens  int    `json:"input_tokens,omitempty"`
	OutputTokens int    `json:"output_tokens,omitempty"`
	StopReason   string `json:"stop_reason,omitempty"`
}
