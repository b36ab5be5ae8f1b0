package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"

	"github.com/xhad/askpdf/internal/models"
)

type fakeChatModel struct {
	lastMessages []llms.MessageContent
	response     *llms.ContentResponse
	err          error
}

func (f *fakeChatModel) GenerateContent(_ context.Context, messages []llms.MessageContent, _ ...llms.CallOption) (*llms.ContentResponse, error) {
	f.lastMessages = messages
	return f.response, f.err
}

func (f *fakeChatModel) Call(_ context.Context, _ string, _ ...llms.CallOption) (string, error) {
	return "", errors.New("not implemented")
}

func TestGenerate(t *testing.T) {
	fake := &fakeChatModel{
		response: &llms.ContentResponse{
			Choices: []*llms.ContentChoice{{
				Content: "According to Chunk 1, cats are mammals.",
				GenerationInfo: map[string]any{
					"PromptTokens":     100,
					"CompletionTokens": 20,
					"TotalTokens":      120,
				},
			}},
		},
	}
	ce := &ChatEngine{config: ChatConfig{Model: "gpt-3.5-turbo", MaxTokens: 100, Temperature: 0.3}, llm: fake}

	gen, err := ce.Generate(context.Background(), "What are cats?", []string{"Cats are mammals.", "Dogs bark."})
	require.NoError(t, err)

	assert.Equal(t, "According to Chunk 1, cats are mammals.", gen.Text)
	assert.Equal(t, "gpt-3.5-turbo", gen.Model)
	assert.Equal(t, 120, gen.TokensUsed)

	// System prompt plus a single user prompt carrying numbered chunks
	// and the question.
	require.Len(t, fake.lastMessages, 2)
	user := fake.lastMessages[1].Parts[0].(llms.TextContent).Text
	assert.Contains(t, user, "[Chunk 1]\nCats are mammals.")
	assert.Contains(t, user, "[Chunk 2]\nDogs bark.")
	assert.Contains(t, user, "Question: What are cats?")
}

func TestGenerate_ProviderError(t *testing.T) {
	ce := &ChatEngine{config: ChatConfig{MaxTokens: 100, Temperature: 0.3}, llm: &fakeChatModel{err: errors.New("rate limited")}}

	_, err := ce.Generate(context.Background(), "q", []string{"c"})
	require.Error(t, err)
	assert.True(t, models.IsKind(err, models.KindProvider))
}

func TestGenerate_EmptyChoices(t *testing.T) {
	ce := &ChatEngine{config: ChatConfig{MaxTokens: 100, Temperature: 0.3}, llm: &fakeChatModel{response: &llms.ContentResponse{}}}

	_, err := ce.Generate(context.Background(), "q", []string{"c"})
	require.Error(t, err)
	assert.True(t, models.IsKind(err, models.KindProvider))
}

func TestTotalTokens(t *testing.T) {
	tests := []struct {
		name string
		info map[string]any
		want int
	}{
		{"openai shape", map[string]any{"TotalTokens": 42}, 42},
		{"anthropic shape", map[string]any{"InputTokens": 30, "OutputTokens": 12}, 42},
		{"unknown shape", map[string]any{"something": "else"}, 0},
		{"nil info", nil, 0},
		{"float values", map[string]any{"TotalTokens": float64(7)}, 7},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, totalTokens(tt.info))
		})
	}
}

func TestNewWithConfig_Validation(t *testing.T) {
	_, err := NewWithConfig(ChatConfig{Provider: "smoke-signals"})
	require.Error(t, err)
	assert.True(t, models.IsKind(err, models.KindConfiguration))

	_, err = NewWithConfig(ChatConfig{Provider: "ollama", MaxTokens: -1})
	require.Error(t, err)
	assert.True(t, models.IsKind(err, models.KindConfiguration))

	_, err = NewWithConfig(ChatConfig{Provider: "ollama", Temperature: 3})
	require.Error(t, err)
	assert.True(t, models.IsKind(err, models.KindConfiguration))
}

func TestNewWithConfig_OllamaDefaults(t *testing.T) {
	ce, err := NewWithConfig(ChatConfig{Provider: "ollama"})
	require.NoError(t, err)
	assert.Equal(t, "mistral", ce.Model())
	assert.Equal(t, 1000, ce.config.MaxTokens)
	assert.InDelta(t, 0.3, ce.config.Temperature, 1e-9)
}
