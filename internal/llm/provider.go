package llm

import "context"

// Provider produces a single completion for a prompt. Used by corpus preview
// to smoke-test a templated example against a live model.
type Provider interface {
	Name() string
	Complete(ctx context.Context, req *Request) (*Response, error)
}

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type Request struct {
	Messages    []Message
	System      string
	MaxTokens   int
	Temperature float64
}

type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

type Response struct {
	Text       string
	StopReason string
	Usage      Usage
}
