package classifier

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/sashabaranov/go-openai"
	"github.com/xaenox/interview-ranker/internal/models"
	"go.uber.org/zap"
)

var ErrEmptyResponse = errors.New("no content in OpenAI response")

// NewOpenAIClient builds a client for the given key. An empty baseURL keeps
// the public endpoint.
func NewOpenAIClient(apiKey, baseURL string) *openai.Client {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return openai.NewClientWithConfig(cfg)
}

// completer issues JSON-mode chat completions shared by the classifier and
// the rater.
type completer struct {
	client      *openai.Client
	model       string
	maxTokens   int
	temperature float64
}

func (c *completer) complete(ctx context.Context, system, prompt string) (string, error) {
	resp, err := c.client.CreateChatCompletion(
		ctx,
		openai.ChatCompletionRequest{
			Model: c.model,
			Messages: []openai.ChatCompletionMessage{
				{
					Role:    openai.ChatMessageRoleSystem,
					Content: system,
				},
				{
					Role:    openai.ChatMessageRoleUser,
					Content: prompt,
				},
			},
			MaxTokens:   c.maxTokens,
			Temperature: float32(c.temperature),
			ResponseFormat: &openai.ChatCompletionResponseFormat{
				Type: openai.ChatCompletionResponseFormatTypeJSONObject,
			},
		},
	)
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyResponse
	}

	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if content == "" {
		return "", ErrEmptyResponse
	}
	return content, nil
}

// Speaker labels used in prompts, independent of the transport's role names
const (
	speakerInterviewer = "interviewer"
	speakerCandidate   = "candidate"
	speakerOther       = "other"
)

type promptMessage struct {
	Speaker string      `json:"speaker"`
	Role    models.Role `json:"role"`
	Content string      `json:"content"`
}

func speaker(r models.Role) string {
	switch {
	case r.IsInterviewer():
		return speakerInterviewer
	case r.IsRespondent():
		return speakerCandidate
	}
	return speakerOther
}

type promptQuestion struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

func formatConversation(msgs []models.Message) string {
	out := make([]promptMessage, len(msgs))
	for i, m := range msgs {
		out[i] = promptMessage{Speaker: speaker(m.Role), Role: m.Role, Content: m.Content}
	}
	b, _ := json.MarshalIndent(out, "", "  ")
	return string(b)
}

func formatBank(bank []models.Question) string {
	out := make([]promptQuestion, len(bank))
	for i, q := range bank {
		out[i] = promptQuestion{ID: strconv.Itoa(q.ID), Text: q.Text}
	}
	b, _ := json.MarshalIndent(out, "", "  ")
	return string(b)
}

const classifySystemPrompt = "You are a helpful assistant that analyzes interview conversations. Always return valid JSON only."

type analysisResponse struct {
	AskedQuestions    []json.RawMessage `json:"askedQuestions"`
	AnsweredQuestions []json.RawMessage `json:"answeredQuestions"`
}

// GPTClassifier asks an OpenAI chat model which questions were asked and
// answered.
type GPTClassifier struct {
	completer
	logger *zap.Logger
}

func NewGPTClassifier(client *openai.Client, model string, maxTokens int, temperature float64, logger *zap.Logger) *GPTClassifier {
	return &GPTClassifier{
		completer: completer{
			client:      client,
			model:       model,
			maxTokens:   maxTokens,
			temperature: temperature,
		},
		logger: logger,
	}
}

func (c *GPTClassifier) Classify(ctx context.Context, conversation []models.Message, bank []models.Question) (*models.Analysis, error) {
	prompt := fmt.Sprintf(`You are analyzing a behavioral interview conversation to track which questions have been asked and fully answered.

Question Bank (the questions available to ask):
%s

Conversation History:
%s

Your task:
1. Identify which questions from the question bank have been ASKED by the interviewer (speaker: "interviewer")
2. Identify which of those asked questions have been FULLY ANSWERED by the candidate (speaker: "candidate")

A question is fully answered when the candidate gave a substantive response that addresses
the question with meaningful content, not just "yes", "no" or "ok", and the exchange is complete.

Return the analysis as a JSON object with this exact structure:
{
    "askedQuestions": [question IDs as numbers],
    "answeredQuestions": [question IDs as numbers]
}

Only include IDs from the question bank. Return empty arrays if nothing matches.`, formatBank(bank), formatConversation(conversation))

	content, err := c.complete(ctx, classifySystemPrompt, prompt)
	if err != nil {
		return nil, fmt.Errorf("classify questions: %w", err)
	}

	var resp analysisResponse
	if err := json.Unmarshal([]byte(content), &resp); err != nil {
		c.logger.Error("Failed to parse classifier response",
			zap.Error(err),
			zap.String("response", content))
		return nil, fmt.Errorf("parse classifier response: %w", err)
	}

	return &models.Analysis{
		AskedQuestions:    NormalizeIDs(resp.AskedQuestions, bank),
		AnsweredQuestions: NormalizeIDs(resp.AnsweredQuestions, bank),
	}, nil
}
