package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/packages/param"
)

const (
	claudeDefaultBaseURL  = "https://api.anthropic.com/v1"
	claudeDefaultModel    = "claude-sonnet-4-5-20250929"
	claudeDefaultRetryMax = 3
	claudeRetryBaseDelay  = time.Second

	anthropicVersionHeader = "2023-06-01"
)

// APIError represents a non-2xx response from the Claude API.
type APIError struct {
	StatusCode int
	Status     string
	RequestID  string
	Type       string
	Message    string
	Body       []byte
}

func (e *APIError) Error() string {
	if e == nil {
		return "llm: claude api error <nil>"
	}

	msg := strings.TrimSpace(e.Message)
	if msg == "" && len(e.Body) > 0 {
		msg = strings.TrimSpace(string(e.Body))
	}

	switch {
	case e.Type != "" && msg != "":
		return fmt.Sprintf("llm: claude api error (%s): %s: %s", e.Status, e.Type, msg)
	case msg != "":
		return fmt.Sprintf("llm: claude api error (%s): %s", e.Status, msg)
	default:
		return fmt.Sprintf("llm: claude api error (%s)", e.Status)
	}
}

type ClaudeProvider struct {
	apiKey     string
	authToken  string
	baseURL    string
	model      string
	httpClient *http.Client
	retryMax   int
	retryBase  time.Duration
}

// NewClaudeProvider builds a Claude-backed provider. The API key falls back
// to ANTHROPIC_API_KEY or ANTHROPIC_AUTH_TOKEN.
func NewClaudeProvider(apiKey, baseURL, model string) *ClaudeProvider {
	p := &ClaudeProvider{
		apiKey:     strings.TrimSpace(apiKey),
		baseURL:    strings.TrimRight(claudeDefaultBaseURL, "/"),
		model:      claudeDefaultModel,
		httpClient: &http.Client{},
		retryMax:   claudeDefaultRetryMax,
		retryBase:  claudeRetryBaseDelay,
	}
	if envBaseURL := strings.TrimSpace(os.Getenv("ANTHROPIC_BASE_URL")); envBaseURL != "" {
		p.baseURL = strings.TrimRight(envBaseURL, "/")
	}
	if v := strings.TrimSpace(baseURL); v != "" {
		p.baseURL = strings.TrimRight(v, "/")
	}
	if v := strings.TrimSpace(model); v != "" {
		p.model = v
	}
	if p.apiKey == "" {
		if envKey := strings.TrimSpace(os.Getenv("ANTHROPIC_API_KEY")); envKey != "" {
			p.apiKey = envKey
		} else if envToken := strings.TrimSpace(os.Getenv("ANTHROPIC_AUTH_TOKEN")); envToken != "" {
			p.authToken = envToken
		}
	}
	return p
}

func (p *ClaudeProvider) Name() string {
	return "claude"
}

func (p *ClaudeProvider) Complete(ctx context.Context, req *Request) (*Response, error) {
	if p == nil {
		return nil, errors.New("llm: claude: nil provider")
	}
	if ctx == nil {
		return nil, errors.New("llm: claude: nil context")
	}
	if req == nil {
		return nil, errors.New("llm: claude: nil request")
	}
	if strings.TrimSpace(p.apiKey) == "" && strings.TrimSpace(p.authToken) == "" {
		return nil, errors.New("llm: claude: missing api key")
	}

	messages := make([]anthropic.MessageParam, 0, len(req.Messages))
	for _, m := range req.Messages {
		messages = append(messages, anthropic.MessageParam{
			Role:    claudeRole(m.Role),
			Content: []anthropic.ContentBlockParamUnion{anthropic.NewTextBlock(m.Content)},
		})
	}

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 1024
	}
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(p.model),
		MaxTokens: int64(maxTokens),
		Messages:  messages,
	}
	if system := strings.TrimSpace(req.System); system != "" {
		params.System = []anthropic.TextBlockParam{{
			Text: system,
			Type: "text",
		}}
	}
	if req.Temperature != 0 {
		params.Temperature = param.NewOpt(req.Temperature)
	}

	sdk := p.newSDKClient()
	for attempt := 0; ; attempt++ {
		msg, err := sdk.Messages.New(ctx, params)
		if err != nil {
			err = normalizeClaudeError(err)
			if !claudeShouldRetry(err) || attempt >= p.retryMax {
				return nil, err
			}
			if err := sleepWithContext(ctx, claudeBackoff(p.retryBase, attempt)); err != nil {
				return nil, err
			}
			continue
		}
		return claudeResponse(msg), nil
	}
}

func (p *ClaudeProvider) newSDKClient() *anthropic.Client {
	opts := make([]option.RequestOption, 0, 4)
	if base := strings.TrimSpace(p.baseURL); base != "" {
		opts = append(opts, option.WithBaseURL(strings.TrimSuffix(strings.TrimRight(base, "/"), "/v1")))
	}
	if p.httpClient != nil {
		opts = append(opts, option.WithHTTPClient(p.httpClient))
	}
	if strings.TrimSpace(p.apiKey) != "" {
		opts = append(opts, option.WithAPIKey(p.apiKey))
	} else if strings.TrimSpace(p.authToken) != "" {
		opts = append(opts, option.WithAuthToken(p.authToken))
	}
	opts = append(opts, option.WithMaxRetries(0))
	opts = append(opts, option.WithHeader("anthropic-version", anthropicVersionHeader))

	client := anthropic.NewClient(opts...)
	return &client
}

func claudeRole(role string) anthropic.MessageParamRole {
	if strings.EqualFold(strings.TrimSpace(role), "assistant") {
		return anthropic.MessageParamRoleAssistant
	}
	return anthropic.MessageParamRoleUser
}

func claudeResponse(msg *anthropic.Message) *Response {
	if msg == nil {
		return nil
	}

	resp := &Response{
		StopReason: string(msg.StopReason),
		Usage: Usage{
			InputTokens:  int(msg.Usage.InputTokens),
			OutputTokens: int(msg.Usage.OutputTokens),
		},
	}

	var sb strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			sb.WriteString(block.AsText().Text)
		}
	}
	resp.Text = sb.String()
	return resp
}

type claudeErrorEnvelope struct {
	Type  string `json:"type"`
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

func normalizeClaudeError(err error) error {
	if err == nil {
		return nil
	}

	var sdkErr *anthropic.Error
	if !errors.As(err, &sdkErr) {
		return err
	}

	apiErr := &APIError{
		StatusCode: sdkErr.StatusCode,
		RequestID:  sdkErr.RequestID,
	}
	if sdkErr.Response != nil {
		apiErr.Status = sdkErr.Response.Status
	} else if sdkErr.StatusCode != 0 {
		apiErr.Status = fmt.Sprintf("%d %s", sdkErr.StatusCode, http.StatusText(sdkErr.StatusCode))
	}

	raw := strings.TrimSpace(sdkErr.RawJSON())
	if raw != "" {
		apiErr.Body = []byte(raw)
		var env claudeErrorEnvelope
		if json.Unmarshal([]byte(raw), &env) == nil {
			apiErr.Type = env.Error.Type
			apiErr.Message = env.Error.Message
		}
	}
	return apiErr
}

func claudeShouldRetry(err error) bool {
	if err == nil {
		return false
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode >= 500 && apiErr.StatusCode <= 599
	}

	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func claudeBackoff(base time.Duration, attempt int) time.Duration {
	if base <= 0 || attempt < 0 {
		return 0
	}
	return base * time.Duration(1<<attempt)
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
