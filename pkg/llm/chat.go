package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/anthropic"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/xhad/askpdf/internal/models"
)

const defaultSystemTemplate = `You are a helpful assistant that answers questions based on the provided context from PDF documents.

Rules:
1. Only use information from the provided context
2. If the context doesn't contain enough information, say so
3. Cite which chunk(s) you used (e.g., "According to Chunk 2...")
4. Be concise and accurate
5. If you're unsure, acknowledge it`

// ChatConfig represents the configuration for a chat engine. The
// provider is fixed once at construction time; there is no per-call
// provider dispatch.
type ChatConfig struct {
	Provider       string // "openai", "anthropic" or "ollama"
	Model          string
	APIKey         string
	BaseURL        string // Ollama server URL
	MaxTokens      int
	Temperature    float64
	SystemTemplate string
	RequestTimeout time.Duration
}

// ChatEngine is an engine that uses an LLM to generate grounded answers
// from retrieved context chunks.
type ChatEngine struct {
	config ChatConfig
	llm    llms.Model
}

// NewWithConfig creates a new ChatEngine with the given configuration.
func NewWithConfig(config ChatConfig) (*ChatEngine, error) {
	if config.Provider == "" {
		config.Provider = "openai"
	}
	if config.MaxTokens < 0 {
		return nil, models.NewError(models.KindConfiguration, "max tokens cannot be negative")
	} else if config.MaxTokens == 0 {
		config.MaxTokens = 1000
	}
	if config.Temperature < 0 || config.Temperature > 2 {
		return nil, models.NewError(models.KindConfiguration,
			"temperature must be between 0 and 2, got %v", config.Temperature)
	}
	if config.Temperature == 0 {
		config.Temperature = 0.3
	}
	if config.SystemTemplate == "" {
		config.SystemTemplate = defaultSystemTemplate
	}
	if config.RequestTimeout == 0 {
		config.RequestTimeout = 120 * time.Second
	}

	var model llms.Model
	var err error

	switch config.Provider {
	case "openai":
		if config.Model == "" {
			config.Model = "gpt-3.5-turbo"
		}
		model, err = openai.New(
			openai.WithToken(config.APIKey),
			openai.WithModel(config.Model))
	case "anthropic":
		if config.Model == "" {
			config.Model = "claude-3-haiku-20240307"
		}
		model, err = anthropic.New(
			anthropic.WithToken(config.APIKey),
			anthropic.WithModel(config.Model))
	case "ollama":
		if config.Model == "" {
			config.Model = "mistral"
		}
		if config.BaseURL == "" {
			config.BaseURL = "http://localhost:11434"
		}
		model, err = ollama.New(
			ollama.WithModel(config.Model),
			ollama.WithServerURL(config.BaseURL))
	default:
		return nil, models.NewError(models.KindConfiguration,
			"unknown LLM provider %q", config.Provider)
	}
	if err != nil {
		return nil, models.WrapError(models.KindConfiguration, err,
			"failed to initialize %s LLM", config.Provider)
	}

	return &ChatEngine{config: config, llm: model}, nil
}

// Model returns the configured model name.
func (ce *ChatEngine) Model() string { return ce.config.Model }

// Generate answers the question using the retrieved chunks, in ranked
// order, as the only context. The full chunk texts are sent to the
// provider regardless of any display truncation done by callers.
func (ce *ChatEngine) Generate(ctx context.Context, question string, contextChunks []string) (*models.Generation, error) {
	content := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, ce.config.SystemTemplate),
		llms.TextParts(llms.ChatMessageTypeHuman, buildUserPrompt(question, contextChunks)),
	}

	genCtx, cancel := context.WithTimeout(ctx, ce.config.RequestTimeout)
	defer cancel()

	resp, err := ce.llm.GenerateContent(genCtx, content,
		llms.WithMaxTokens(ce.config.MaxTokens),
		llms.WithTemperature(ce.config.Temperature))
	if err != nil {
		return nil, models.WrapError(models.KindProvider, err, "generation failed")
	}
	if resp == nil || len(resp.Choices) == 0 || resp.Choices[0] == nil {
		return nil, models.NewError(models.KindProvider, "provider returned no choices")
	}

	choice := resp.Choices[0]
	return &models.Generation{
		Text:       choice.Content,
		Model:      ce.config.Model,
		TokensUsed: totalTokens(choice.GenerationInfo),
	}, nil
}

// buildUserPrompt numbers each context chunk so the model can cite them.
func buildUserPrompt(question string, contextChunks []string) string {
	var b strings.Builder
	b.WriteString("Context from PDF:\n")
	for i, chunk := range contextChunks {
		fmt.Fprintf(&b, "[Chunk %d]\n%s", i+1, chunk)
		b.WriteString("\n\n")
	}
	fmt.Fprintf(&b, "Question: %s\n\n", question)
	b.WriteString("Answer the question based on the context above. Include citations to specific chunks.")
	return b.String()
}

// totalTokens pulls token usage out of the provider-specific generation
// info. OpenAI reports TotalTokens; Anthropic reports input and output
// separately. Unknown shapes report zero rather than failing the call.
func totalTokens(info map[string]any) int {
	if info == nil {
		return 0
	}
	if total, ok := asInt(info["TotalTokens"]); ok {
		return total
	}
	in, okIn := asInt(info["InputTokens"])
	out, okOut := asInt(info["OutputTokens"])
	if okIn || okOut {
		return in + out
	}
	return 0
}

func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int32:
		return int(n), true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	default:
		return 0, false
	}
}
