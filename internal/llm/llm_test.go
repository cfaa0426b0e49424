package llm

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agenthands/intake/internal/config"
	"github.com/agenthands/intake/internal/core/model"
)

type MockLLM struct {
	Response string
	Err      error
	Prompts  []string
}

func (m *MockLLM) Generate(ctx context.Context, prompt string) (string, error) {
	m.Prompts = append(m.Prompts, prompt)
	return m.Response, m.Err
}

func TestClassifier_Classify(t *testing.T) {
	mock := &MockLLM{Response: "```json\n{\"label\": \"Update\", \"confidence\": 0.83}\n```"}
	c := NewClassifier(mock, "")

	label, conf, err := c.Classify(context.Background(), "Loan status: approved")
	require.NoError(t, err)

	assert.Equal(t, model.LabelUpdate, label)
	assert.InDelta(t, 0.83, conf, 1e-9)
	require.Len(t, mock.Prompts, 1)
	assert.Contains(t, mock.Prompts[0], "Loan status: approved")
}

func TestClassifier_ClampsConfidence(t *testing.T) {
	c := NewClassifier(&MockLLM{Response: `{"label":"request","confidence":7}`}, "")

	_, conf, err := c.Classify(context.Background(), "x")
	require.NoError(t, err)
	assert.Equal(t, 1.0, conf)
}

func TestClassifier_CustomPrompt(t *testing.T) {
	mock := &MockLLM{Response: `{"label":"request","confidence":0.5}`}

	_, _, err := NewClassifier(mock, "Classify: %s").Classify(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, "Classify: hello", mock.Prompts[0])

	// prompts without a placeholder fall back to the default
	mock.Prompts = nil
	_, _, err = NewClassifier(mock, "no placeholder").Classify(context.Background(), "hello")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(mock.Prompts[0], "You sort incoming"))
}

func TestClassifier_TruncatesText(t *testing.T) {
	mock := &MockLLM{Response: `{"label":"request","confidence":0.5}`}

	_, _, err := NewClassifier(mock, "%s").Classify(context.Background(), strings.Repeat("é", maxPromptText+10))
	require.NoError(t, err)
	assert.Equal(t, maxPromptText, len([]rune(mock.Prompts[0])))
}

func TestClassifier_Errors(t *testing.T) {
	tests := []struct {
		name string
		mock *MockLLM
	}{
		{"generate fails", &MockLLM{Err: errors.New("429 too many requests")}},
		{"not json", &MockLLM{Response: "request"}},
		{"unknown label", &MockLLM{Response: `{"label":"spam","confidence":0.9}`}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := NewClassifier(tt.mock, "").Classify(context.Background(), "text")
			assert.Error(t, err)
		})
	}
}

func TestNewClient(t *testing.T) {
	ctx := context.Background()

	c, err := NewClient(ctx, config.LLMConfig{}, nil)
	require.NoError(t, err)
	assert.Nil(t, c)

	c, err = NewClient(ctx, config.LLMConfig{Provider: "OpenAI", Model: "gpt-4o-mini", APIKey: "k"}, nil)
	require.NoError(t, err)
	assert.IsType(t, &OpenAIClient{}, c)

	c, err = NewClient(ctx, config.LLMConfig{Provider: "ollama", Model: "llama3"}, nil)
	require.NoError(t, err)
	assert.IsType(t, &OpenAIClient{}, c)

	c, err = NewClient(ctx, config.LLMConfig{Provider: "claude", Model: "claude-3-haiku-20240307", APIKey: "k"}, nil)
	require.NoError(t, err)
	assert.IsType(t, &ClaudeClient{}, c)

	_, err = NewClient(ctx, config.LLMConfig{Provider: "palm"}, nil)
	assert.Error(t, err)
}
