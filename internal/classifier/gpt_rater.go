package classifier

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/sashabaranov/go-openai"
	"github.com/xaenox/interview-ranker/internal/models"
	"go.uber.org/zap"
)

const rateSystemPrompt = "You are an expert behavioral interview evaluator. Always return valid JSON only with precise numerical ratings."

type ratingResponse struct {
	Specificity        flexFloat `json:"specificity"`
	Depth              flexFloat `json:"depth"`
	BehavioralEvidence flexFloat `json:"behavioralEvidence"`
	Novelty            flexFloat `json:"novelty"`
	OverallScore       flexFloat `json:"overallScore"`
}

// GPTRater asks an OpenAI chat model to rate one answer.
type GPTRater struct {
	completer
	logger *zap.Logger
}

func NewGPTRater(client *openai.Client, model string, maxTokens int, temperature float64, logger *zap.Logger) *GPTRater {
	return &GPTRater{
		completer: completer{
			client:      client,
			model:       model,
			maxTokens:   maxTokens,
			temperature: temperature,
		},
		logger: logger,
	}
}

func (r *GPTRater) Rate(ctx context.Context, question models.Question, conversationSegment []models.Message) (*models.Rating, error) {
	prompt := fmt.Sprintf(`You are evaluating a behavioral interview answer. Rate the candidate's response (messages with speaker "candidate").

Question Asked: %q

Conversation Segment (question and answer):
%s

Rate the answer on each parameter from 0 to 10:
1. specificity: concrete details, numbers, names, dates or examples rather than generalizations.
2. depth: elaboration, context and detail beyond a surface-level response.
3. behavioralEvidence: a concrete Situation, Task, Action and Result that demonstrates skills.
4. novelty: fresh perspective or insight beyond a typical response.
5. overallScore: a holistic judgment of the answer's quality and value.

Return the evaluation as a JSON object with this exact structure:
{
    "specificity": <number 0-10>,
    "depth": <number 0-10>,
    "behavioralEvidence": <number 0-10>,
    "novelty": <number 0-10>,
    "overallScore": <number 0-10>
}

Use decimal values if needed (e.g. 7.5).`, question.Text, formatConversation(conversationSegment))

	content, err := r.complete(ctx, rateSystemPrompt, prompt)
	if err != nil {
		return nil, fmt.Errorf("rate question %d: %w", question.ID, err)
	}

	var resp ratingResponse
	if err := json.Unmarshal([]byte(content), &resp); err != nil {
		r.logger.Error("Failed to parse rater response",
			zap.Error(err),
			zap.Int("question_id", question.ID),
			zap.String("response", content))
		return nil, fmt.Errorf("parse rater response: %w", err)
	}

	rating := models.Rating{
		Specificity:        float64(resp.Specificity),
		Depth:              float64(resp.Depth),
		BehavioralEvidence: float64(resp.BehavioralEvidence),
		Novelty:            float64(resp.Novelty),
		OverallScore:       float64(resp.OverallScore),
	}.Clamp(MinRating, MaxRating)
	return &rating, nil
}
