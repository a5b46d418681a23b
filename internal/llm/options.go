package llm

// RequestOptions tunes a single completion request. Nil fields leave the
// provider default in place.
type RequestOptions struct {
	MaxTokens   *int
	Temperature *float64
	TopP        *float64
	StopSeqs    []string
}

// WithMaxTokens returns a pointer for use in RequestOptions.
func WithMaxTokens(n int) *int { return &n }

// WithTemperature returns a pointer for use in RequestOptions.
func WithTemperature(t float64) *float64 { return &t }
