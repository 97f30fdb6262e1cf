package genai

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/openai/openai-go"

	"github.com/BTreeMap/SurveyPipe/internal/models"
)

// moderatorMaxTokens bounds the yes/no on-topic verdict.
const moderatorMaxTokens = 10

const moderatorSystemPrompt = "You moderate answers in a survey conversation." +
	" Given the conversation so far and the participant's latest message," +
	" decide whether the message is an attempt to engage with the current" +
	" survey question (including asking to skip it or asking for" +
	" clarification). Reply with exactly Yes or No."

// IsOnTopic reports whether the participant's message engages with the
// current survey question. Errors are returned to the caller; the engine
// treats a failed check as on-topic.
func (c *Client) IsOnTopic(ctx context.Context, message string, history []models.Turn) (bool, error) {
	var b strings.Builder
	b.WriteString("Conversation so far:\n")
	b.WriteString(renderHistory(history))
	fmt.Fprintf(&b, "Latest participant message: %s\n", message)
	b.WriteString("Is this message on topic? Reply Yes or No.")

	resp, err := c.chat.New(ctx, openai.ChatCompletionNewParams{
		Model: c.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(moderatorSystemPrompt),
			openai.UserMessage(b.String()),
		},
		Temperature: openai.Float(0),
		MaxTokens:   openai.Int(moderatorMaxTokens),
	})
	if err != nil {
		slog.Error("Client.IsOnTopic: moderation chat failed", "error", err)
		return false, fmt.Errorf("on-topic check failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return false, fmt.Errorf("on-topic check returned no choices")
	}
	verdict := strings.Contains(strings.ToLower(resp.Choices[0].Message.Content), "yes")
	slog.Debug("Client.IsOnTopic: verdict", "onTopic", verdict)
	return verdict, nil
}

// ReviewQuestion runs a question's outgoing text through the moderation
// endpoint and reports whether it was flagged. Used to vet model-phrased
// question text before registering custom surveys.
func (c *Client) ReviewQuestion(ctx context.Context, questionText string) (bool, error) {
	resp, err := c.moderations.New(ctx, openai.ModerationNewParams{
		Input: openai.ModerationNewParamsInputUnion{OfString: openai.String(questionText)},
		Model: openai.ModerationModelOmniModerationLatest,
	})
	if err != nil {
		slog.Error("Client.ReviewQuestion: moderation endpoint failed", "error", err)
		return false, fmt.Errorf("question review failed: %w", err)
	}
	if len(resp.Results) == 0 {
		return false, fmt.Errorf("question review returned no results")
	}
	flagged := resp.Results[0].Flagged
	if flagged {
		slog.Warn("Client.ReviewQuestion: question text flagged")
	}
	return flagged, nil
}
