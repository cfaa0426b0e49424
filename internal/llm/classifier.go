package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/agenthands/intake/internal/core/common"
	"github.com/agenthands/intake/internal/core/model"
)

// DefaultPrompt is a format string taking the request text.
const DefaultPrompt = `You sort incoming customer emails for a loan servicing team.
Label the email "request" if the sender asks for something to be done or provided,
or "update" if it only reports status or progress on existing work.

Email:
"""
%s
"""

Answer with JSON only: {"label": "request" or "update", "confidence": number between 0 and 1}`

// maxPromptText bounds how much of a record is sent to the model.
const maxPromptText = 4000

// Classifier asks a language model to label request text.
type Classifier struct {
	client LLMClient
	prompt string
}

func NewClassifier(client LLMClient, prompt string) *Classifier {
	if prompt == "" || !strings.Contains(prompt, "%s") {
		prompt = DefaultPrompt
	}
	return &Classifier{client: client, prompt: prompt}
}

type classification struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
}

func (c *Classifier) Classify(ctx context.Context, text string) (model.Label, float64, error) {
	if r := []rune(text); len(r) > maxPromptText {
		text = string(r[:maxPromptText])
	}

	resp, err := c.client.Generate(ctx, fmt.Sprintf(c.prompt, text))
	if err != nil {
		return "", 0, eris.Wrap(err, "classify")
	}

	answer, err := common.ParseJSON[classification](resp)
	if err != nil {
		return "", 0, err
	}
	label, err := model.ParseLabel(answer.Label)
	if err != nil {
		return "", 0, err
	}

	conf := answer.Confidence
	switch {
	case conf < 0:
		conf = 0
	case conf > 1:
		conf = 1
	}
	return label, conf, nil
}
