package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	perrors "github.com/reslab/research-agent/internal/errors"
	"github.com/reslab/research-agent/internal/retry"
)

const (
	geminiAPIBase    = "https://generativelanguage.googleapis.com/v1beta"
	defaultModel     = "gemini-2.0-flash"
	defaultMaxTokens = 4096
)

// GeminiProvider implements Provider using the Gemini generateContent API.
type GeminiProvider struct {
	apiKey    string
	baseURL   string
	model     string
	maxTokens int
	client    *http.Client
	logger    zerolog.Logger
}

// GeminiOption configures the provider.
type GeminiOption func(*GeminiProvider)

func WithModel(model string) GeminiOption {
	return func(p *GeminiProvider) { p.model = model }
}

func WithMaxTokens(n int) GeminiOption {
	return func(p *GeminiProvider) { p.maxTokens = n }
}

func WithBaseURL(url string) GeminiOption {
	return func(p *GeminiProvider) { p.baseURL = strings.TrimRight(url, "/") }
}

func WithHTTPClient(c *http.Client) GeminiOption {
	return func(p *GeminiProvider) { p.client = c }
}

func WithLogger(l zerolog.Logger) GeminiOption {
	return func(p *GeminiProvider) { p.logger = l }
}

// NewGeminiProvider constructs a new Gemini provider.
func NewGeminiProvider(apiKey string, opts ...GeminiOption) *GeminiProvider {
	p := &GeminiProvider{
		apiKey:    apiKey,
		baseURL:   geminiAPIBase,
		model:     defaultModel,
		maxTokens: defaultMaxTokens,
		client:    &http.Client{Timeout: 120 * time.Second},
		logger:    zerolog.Nop(),
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

func (p *GeminiProvider) ModelID() string { return p.model }

// ---- Gemini wire types ----

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiGenerationConfig struct {
	MaxOutputTokens int `json:"maxOutputTokens,omitempty"`
}

type geminiRequest struct {
	SystemInstruction *geminiContent         `json:"systemInstruction,omitempty"`
	Contents          []geminiContent        `json:"contents"`
	GenerationConfig  geminiGenerationConfig `json:"generationConfig"`
}

type geminiResponse struct {
	Candidates []struct {
		Content      geminiContent `json:"content"`
		FinishReason string        `json:"finishReason"`
	} `json:"candidates"`
	UsageMetadata struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
	} `json:"usageMetadata"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error,omitempty"`
}

func (p *GeminiProvider) buildRequest(system string, history []Message, userMessage string) geminiRequest {
	gr := geminiRequest{
		GenerationConfig: geminiGenerationConfig{MaxOutputTokens: p.maxTokens},
	}
	if system != "" {
		gr.SystemInstruction = &geminiContent{Parts: []geminiPart{{Text: system}}}
	}
	for _, m := range history {
		role := m.Role
		if role != "user" {
			role = "model"
		}
		gr.Contents = append(gr.Contents, geminiContent{
			Role:  role,
			Parts: []geminiPart{{Text: m.Content}},
		})
	}
	gr.Contents = append(gr.Contents, geminiContent{
		Role:  "user",
		Parts: []geminiPart{{Text: userMessage}},
	})
	return gr
}

// Generate sends a blocking completion request. Transient upstream failures
// are retried with backoff before surfacing an error.
func (p *GeminiProvider) Generate(ctx context.Context, system string, history []Message, userMessage string) (string, error) {
	gr := p.buildRequest(system, history, userMessage)
	body, err := json.Marshal(gr)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	var text string
	err = retry.LLM().Do(ctx, func(ctx context.Context) error {
		var genErr error
		text, genErr = p.generateOnce(ctx, body)
		return genErr
	})
	return text, err
}

func (p *GeminiProvider) generateOnce(ctx context.Context, body []byte) (string, error) {
	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", p.baseURL, p.model, p.apiKey)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return "", perrors.WrapAPI("gemini", 0, "request failed", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read body: %w", err)
	}

	var gr geminiResponse
	if err := json.Unmarshal(raw, &gr); err != nil {
		return "", perrors.WrapAPI("gemini", resp.StatusCode, "malformed response", err)
	}
	if gr.Error != nil {
		return "", perrors.WrapAPI("gemini", resp.StatusCode,
			fmt.Sprintf("%s: %s", gr.Error.Status, gr.Error.Message), nil)
	}
	if resp.StatusCode != http.StatusOK {
		return "", perrors.WrapAPI("gemini", resp.StatusCode, "request rejected", nil)
	}
	if len(gr.Candidates) == 0 {
		return "", perrors.WrapAPI("gemini", resp.StatusCode, "no candidates returned", nil)
	}

	var sb strings.Builder
	for _, part := range gr.Candidates[0].Content.Parts {
		sb.WriteString(part.Text)
	}

	p.logger.Debug().
		Str("model", p.model).
		Str("finish_reason", gr.Candidates[0].FinishReason).
		Int("in_tokens", gr.UsageMetadata.PromptTokenCount).
		Int("out_tokens", gr.UsageMetadata.CandidatesTokenCount).
		Msg("gemini completion")
	return sb.String(), nil
}
