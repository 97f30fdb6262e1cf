package genai

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/shared"

	"github.com/BTreeMap/SurveyPipe/internal/models"
	"github.com/BTreeMap/SurveyPipe/internal/tone"
)

// interpretMaxTokens bounds the structured interpretation response.
const interpretMaxTokens = 500

const interpreterSystemPrompt = "You are assisting with a deterministic survey engine." +
	" Always keep the conversation concise and friendly." +
	" You must obey these hard rules:\n" +
	"- NEVER invent a question. Only use questions provided in the survey definition.\n" +
	"- NEVER repeat a question that is already answered or skipped.\n" +
	"- If the user response is unclear for the current question, set need_clarification=true and ask one clarification question that still targets the same question id.\n" +
	"- Only choose next_question_id from the allowed questions list provided.\n" +
	"- If you are staying on the same question for clarification, keep next_question_id equal to that question's id.\n" +
	"- Parsed answers for choice questions must be one of the provided options. Multi-select answers should be a JSON list of provided options.\n" +
	"- If the user asks to skip, set parsed_answer.value to SKIP.\n" +
	"- When you move forward, propose the next question in the survey order from the allowed list."

// remainingQuestion is the slimmed question view shown to the model.
type remainingQuestion struct {
	ID      string   `json:"id"`
	Text    string   `json:"text"`
	Options []string `json:"options,omitempty"`
	Type    string   `json:"type"`
}

// Interpret asks the model to read the participant's last message against the
// current question and propose the next turn. The returned result is advisory;
// the survey engine re-validates every field. A non-nil error means no usable
// structured response could be obtained.
func (c *Client) Interpret(ctx context.Context, state *models.SessionState, def *models.SurveyDefinition, userMessage string) (*models.InterpretationResult, error) {
	system := interpreterSystemPrompt
	if guide := tone.BuildToneGuide(def.ToneTags); guide != "" {
		system += guide
	}

	resp, err := c.chat.New(ctx, openai.ChatCompletionNewParams{
		Model: c.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(system),
			openai.UserMessage(buildInterpretPrompt(state, def, userMessage)),
		},
		Temperature: openai.Float(0),
		MaxTokens:   openai.Int(interpretMaxTokens),
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		},
	})
	if err != nil {
		slog.Error("Client.Interpret: chat completion failed", "error", err, "sessionID", state.SessionID)
		return nil, fmt.Errorf("interpretation request failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		slog.Error("Client.Interpret: no choices returned", "sessionID", state.SessionID)
		return nil, fmt.Errorf("interpretation returned no choices: %w", models.ErrInterpretationEmpty)
	}

	content := resp.Choices[0].Message.Content
	var result models.InterpretationResult
	if err := json.Unmarshal([]byte(content), &result); err != nil {
		slog.Error("Client.Interpret: failed to parse structured response", "error", err, "sessionID", state.SessionID)
		return nil, fmt.Errorf("failed to parse interpretation: %w", err)
	}
	slog.Debug("Client.Interpret: interpretation received",
		"sessionID", state.SessionID,
		"questionID", result.ParsedAnswer.QuestionID,
		"confidence", result.ParsedAnswer.Confidence,
		"needClarification", result.NeedClarification,
		"nextQuestionID", result.NextQuestionID)
	return &result, nil
}

// buildInterpretPrompt renders the per-turn user message: current question,
// the remaining eligible questions, accumulated answers, and the transcript.
func buildInterpretPrompt(state *models.SessionState, def *models.SurveyDefinition, userMessage string) string {
	current := def.QuestionByID(state.CurrentQuestionID)
	currentText := ""
	var currentOptions []string
	if current != nil {
		currentText = current.Text
		currentOptions = current.Options
	}

	var remaining []remainingQuestion
	for i := range def.Questions {
		q := &def.Questions[i]
		if state.QuestionStatus[q.ID].IsTerminal() {
			continue
		}
		remaining = append(remaining, remainingQuestion{
			ID:      q.ID,
			Text:    q.Text,
			Options: q.Options,
			Type:    string(q.Type),
		})
	}

	currentJSON, _ := json.Marshal(map[string]any{"id": state.CurrentQuestionID, "text": currentText, "options": currentOptions})
	remainingJSON, _ := json.Marshal(remaining)
	answersJSON, _ := json.Marshal(state.Answers)

	var b strings.Builder
	fmt.Fprintf(&b, "You are running a survey titled '%s'. ", def.Title)
	fmt.Fprintf(&b, "Current question: %s.\n", currentJSON)
	fmt.Fprintf(&b, "Remaining eligible questions: %s.\n", remainingJSON)
	fmt.Fprintf(&b, "Answers so far: %s.\n", answersJSON)
	fmt.Fprintf(&b, "Last user message: %s.\n", userMessage)
	fmt.Fprintf(&b, "History: %s.\n", renderHistory(state.History))
	b.WriteString("Return only JSON following this schema:\n" +
		"{\n" +
		"  \"parsed_answer\": {\"question_id\": \"<current question id>\", \"value\": <value>, \"confidence\": <0-1 number>, \"notes\": \"optional short\"},\n" +
		"  \"need_clarification\": <true|false>,\n" +
		"  \"clarification_question\": <null or string>,\n" +
		"  \"next_question_id\": \"<one of remaining questions ids>\",\n" +
		"  \"assistant_question_text\": \"conversational version of the next question to display\",\n" +
		"  \"reasoning_brief\": \"short reasoning for validation (not shown to user)\"\n" +
		"}")
	return b.String()
}

func renderHistory(history []models.Turn) string {
	var b strings.Builder
	for _, turn := range history {
		label := "Answer"
		if turn.Role == models.RoleAssistant {
			label = "Question"
		}
		fmt.Fprintf(&b, "%s: %s\n", label, turn.Content)
	}
	return b.String()
}
