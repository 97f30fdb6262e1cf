package genai

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/BTreeMap/SurveyPipe/internal/models"
)

type mockChat struct {
	content    string
	err        error
	noChoices  bool
	lastParams openai.ChatCompletionNewParams
}

func (m *mockChat) New(ctx context.Context, body openai.ChatCompletionNewParams, opts ...option.RequestOption) (*openai.ChatCompletion, error) {
	m.lastParams = body
	if m.err != nil {
		return nil, m.err
	}
	if m.noChoices {
		return &openai.ChatCompletion{}, nil
	}
	return &openai.ChatCompletion{
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{Content: m.content}},
		},
	}, nil
}

type mockModerations struct {
	flagged bool
	err     error
}

func (m *mockModerations) New(ctx context.Context, body openai.ModerationNewParams, opts ...option.RequestOption) (*openai.ModerationNewResponse, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &openai.ModerationNewResponse{
		Results: []openai.Moderation{{Flagged: m.flagged}},
	}, nil
}

func testClient(chat *mockChat, mods *mockModerations) *Client {
	return &Client{chat: chat, moderations: mods, model: openai.ChatModelGPT4oMini}
}

func testState() (*models.SessionState, *models.SurveyDefinition) {
	def := &models.SurveyDefinition{
		ID:    "CULTURE",
		Title: "Culture",
		Questions: []models.Question{
			{ID: "Q1", Type: models.QuestionTypeSingleChoice, Text: "Have you experienced this?", Options: []string{"Yes", "No"}},
			{ID: "Q2", Type: models.QuestionTypeFreeText, Text: "Tell us more."},
		},
		ToneTags: []string{"warm_supportive"},
	}
	state := models.NewSessionState("sess-1", def.ID, def)
	state.CurrentQuestionID = "Q1"
	state.QuestionStatus["Q1"] = models.StatusAsked
	state.AppendTurn(models.RoleAssistant, "Have you experienced this?", "Q1")
	return state, def
}

func TestInterpretParsesStructuredResponse(t *testing.T) {
	chat := &mockChat{content: `{
		"parsed_answer": {"question_id": "Q1", "value": "Yes", "confidence": 0.92},
		"need_clarification": false,
		"next_question_id": "Q2",
		"assistant_question_text": "Thanks. Tell us more?"
	}`}
	client := testClient(chat, &mockModerations{})
	state, def := testState()

	result, err := client.Interpret(context.Background(), state, def, "yes it happened")
	if err != nil {
		t.Fatalf("Interpret failed: %v", err)
	}
	if result.ParsedAnswer.QuestionID != "Q1" || result.ParsedAnswer.Value != "Yes" {
		t.Errorf("parsed answer wrong: %+v", result.ParsedAnswer)
	}
	if result.NextQuestionID != "Q2" {
		t.Errorf("NextQuestionID = %q, want Q2", result.NextQuestionID)
	}
}

func TestInterpretPromptContents(t *testing.T) {
	chat := &mockChat{content: `{"need_clarification": true}`}
	client := testClient(chat, &mockModerations{})
	state, def := testState()

	if _, err := client.Interpret(context.Background(), state, def, "huh?"); err != nil {
		t.Fatalf("Interpret failed: %v", err)
	}

	if len(chat.lastParams.Messages) != 2 {
		t.Fatalf("expected system+user messages, got %d", len(chat.lastParams.Messages))
	}
	system := chat.lastParams.Messages[0].OfSystem.Content.OfString.Value
	if !strings.Contains(system, "NEVER invent a question") {
		t.Errorf("hard rules missing from system prompt")
	}
	if !strings.Contains(system, "TONE POLICY") {
		t.Errorf("tone guide not folded into system prompt")
	}
	user := chat.lastParams.Messages[1].OfUser.Content.OfString.Value
	if !strings.Contains(user, `"id":"Q1"`) {
		t.Errorf("current question missing from prompt: %s", user)
	}
	if !strings.Contains(user, "huh?") {
		t.Errorf("user message missing from prompt")
	}
	if !strings.Contains(user, "Q2") {
		t.Errorf("remaining questions missing from prompt")
	}
	if chat.lastParams.ResponseFormat.OfJSONObject == nil {
		t.Error("JSON object response format not requested")
	}
}

func TestInterpretErrorPaths(t *testing.T) {
	state, def := testState()
	ctx := context.Background()

	client := testClient(&mockChat{err: errors.New("rate limited")}, &mockModerations{})
	if _, err := client.Interpret(ctx, state, def, "yes"); err == nil {
		t.Error("transport error not surfaced")
	}

	client = testClient(&mockChat{content: "sorry, I can't do JSON"}, &mockModerations{})
	if _, err := client.Interpret(ctx, state, def, "yes"); err == nil {
		t.Error("unparseable content not surfaced as error")
	}

	client = testClient(&mockChat{noChoices: true}, &mockModerations{})
	_, err := client.Interpret(ctx, state, def, "yes")
	if !errors.Is(err, models.ErrInterpretationEmpty) {
		t.Errorf("empty completion: err = %v, want ErrInterpretationEmpty", err)
	}
}

func TestIsOnTopic(t *testing.T) {
	ctx := context.Background()
	state, _ := testState()

	client := testClient(&mockChat{content: "Yes"}, &mockModerations{})
	onTopic, err := client.IsOnTopic(ctx, "I'd like to skip this one", state.History)
	if err != nil || !onTopic {
		t.Errorf("IsOnTopic = %v, %v; want true, nil", onTopic, err)
	}

	client = testClient(&mockChat{content: "No."}, &mockModerations{})
	onTopic, err = client.IsOnTopic(ctx, "what's the weather?", state.History)
	if err != nil || onTopic {
		t.Errorf("IsOnTopic = %v, %v; want false, nil", onTopic, err)
	}

	client = testClient(&mockChat{err: errors.New("down")}, &mockModerations{})
	if _, err = client.IsOnTopic(ctx, "hello", state.History); err == nil {
		t.Error("transport error not surfaced")
	}
}

func TestReviewQuestion(t *testing.T) {
	ctx := context.Background()

	client := testClient(&mockChat{}, &mockModerations{flagged: true})
	flagged, err := client.ReviewQuestion(ctx, "some hostile question text")
	if err != nil || !flagged {
		t.Errorf("ReviewQuestion = %v, %v; want true, nil", flagged, err)
	}

	client = testClient(&mockChat{}, &mockModerations{flagged: false})
	flagged, err = client.ReviewQuestion(ctx, "How satisfied are you?")
	if err != nil || flagged {
		t.Errorf("ReviewQuestion = %v, %v; want false, nil", flagged, err)
	}

	client = testClient(&mockChat{}, &mockModerations{err: errors.New("endpoint down")})
	if _, err = client.ReviewQuestion(ctx, "text"); err == nil {
		t.Error("moderation error not surfaced")
	}
}

func TestNewClientRequiresKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	if _, err := NewClient(); err == nil {
		t.Error("missing API key accepted")
	}
	client, err := NewClient(WithAPIKey("sk-test"), WithModel("gpt-4o"))
	if err != nil {
		t.Fatalf("NewClient with explicit key failed: %v", err)
	}
	if client.chat == nil || client.moderations == nil {
		t.Error("client services not wired")
	}
}
