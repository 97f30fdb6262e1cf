package survey

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/BTreeMap/SurveyPipe/internal/models"
	"github.com/BTreeMap/SurveyPipe/internal/store"
)

// Engine owns per-session survey state and drives the turn cycle. Each turn
// runs load, mutate, persist to completion before the state is considered
// consistent; callers must serialize turns for the same session id.
type Engine struct {
	sessions    store.SessionStore
	surveys     DefinitionSource
	interpreter Interpreter
	moderator   Moderator
}

// EngineOption configures optional engine collaborators.
type EngineOption func(*Engine)

// WithModerator installs a moderation collaborator. Moderation only runs for
// surveys that request it in their definition.
func WithModerator(m Moderator) EngineOption {
	return func(e *Engine) { e.moderator = m }
}

// NewEngine creates a survey engine backed by the given session store,
// definition source, and interpretation port.
func NewEngine(sessions store.SessionStore, surveys DefinitionSource, interpreter Interpreter, opts ...EngineOption) *Engine {
	e := &Engine{
		sessions:    sessions,
		surveys:     surveys,
		interpreter: interpreter,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// BeginSession creates fresh session state for a survey, asks the first
// eligible question, and persists the result. If the survey has no eligible
// question at all the session terminates immediately with the end message.
func (e *Engine) BeginSession(ctx context.Context, sessionID, surveyID string) (*models.TurnResult, error) {
	def, err := e.surveys.Definition(surveyID)
	if err != nil {
		slog.Error("Engine.BeginSession: unknown survey", "error", err, "surveyID", surveyID)
		return nil, err
	}

	state := models.NewSessionState(sessionID, surveyID, def)
	MarkConditionallySkipped(state, def)

	first := NextQuestion(state, def)
	if first == "" {
		slog.Info("Engine.BeginSession: survey has no eligible questions, terminating", "sessionID", sessionID, "surveyID", surveyID)
		return e.terminate(ctx, state, def)
	}

	state.QuestionStatus[first] = models.StatusAsked
	state.CurrentQuestionID = first

	message := questionPrompt(def.QuestionByID(first))
	if def.Intro != "" {
		message = def.Intro + "\n\n" + message
	}
	state.AppendTurn(models.RoleAssistant, message, first)

	if err := e.save(ctx, state); err != nil {
		return nil, err
	}
	slog.Info("Engine.BeginSession: session started", "sessionID", sessionID, "surveyID", surveyID, "firstQuestion", first)
	return &models.TurnResult{SessionID: sessionID, InterviewID: surveyID, Message: message}, nil
}

// NextStep processes one participant message for a session and returns the
// outgoing reply. Every recoverable failure degrades to a well-formed turn
// result: invalid answers force clarification, ineligible next-question
// proposals are replaced by the progression policy's candidate, and an
// unusable interpretation falls back to re-asking the current question.
func (e *Engine) NextStep(ctx context.Context, sessionID, surveyID, userMessage string) (*models.TurnResult, error) {
	state, err := e.sessions.LoadSession(ctx, sessionID)
	if err != nil {
		slog.Error("Engine.NextStep: failed to load session", "error", err, "sessionID", sessionID)
		return nil, fmt.Errorf("failed to load session %s: %w", sessionID, err)
	}
	if state == nil {
		// First contact for this session id.
		return e.BeginSession(ctx, sessionID, surveyID)
	}

	def, err := e.surveys.Definition(state.SurveyID)
	if err != nil {
		slog.Error("Engine.NextStep: unknown survey for existing session", "error", err, "sessionID", sessionID, "surveyID", state.SurveyID)
		return nil, err
	}

	// Terminated sessions only replay the end message; no mutation, no
	// transcript growth.
	if state.Terminated {
		slog.Debug("Engine.NextStep: session already terminated", "sessionID", sessionID)
		return &models.TurnResult{SessionID: sessionID, Message: def.EndText()}, nil
	}

	// Answers may be stale relative to the skip rules.
	MarkConditionallySkipped(state, def)

	if def.ModerateAnswers && e.moderator != nil {
		onTopic, err := e.moderator.IsOnTopic(ctx, userMessage, state.History)
		if err != nil {
			// Moderation failure never blocks the session.
			slog.Warn("Engine.NextStep: moderation check failed, treating message as on-topic", "error", err, "sessionID", sessionID)
			onTopic = true
		}
		if !onTopic {
			reminder := def.OffTopicText()
			state.AppendTurn(models.RoleAssistant, reminder, state.CurrentQuestionID)
			if err := e.save(ctx, state); err != nil {
				return nil, err
			}
			slog.Info("Engine.NextStep: off-topic message, no answer recorded", "sessionID", sessionID, "currentQuestion", state.CurrentQuestionID)
			return &models.TurnResult{SessionID: sessionID, Message: reminder}, nil
		}
	}

	if state.CurrentQuestionID == "" {
		slog.Error("Engine.NextStep: active session has no current question, terminating", "sessionID", sessionID)
		return e.terminate(ctx, state, def)
	}
	current := def.QuestionByID(state.CurrentQuestionID)
	if current == nil {
		// The definition no longer contains the question the session is
		// waiting on. Not recoverable for this session.
		slog.Error("Engine.NextStep: current question missing from definition, terminating",
			"sessionID", sessionID, "currentQuestion", state.CurrentQuestionID, "error", models.ErrQuestionNotInSurvey)
		return e.terminate(ctx, state, def)
	}

	state.AppendTurn(models.RoleUser, userMessage, current.ID)

	interp, err := e.interpreter.Interpret(ctx, state, def, userMessage)
	if err != nil || interp == nil {
		// The port produced nothing usable. Degrade to a clarification turn
		// so the session stays answerable.
		slog.Warn("Engine.NextStep: interpretation failed, falling back to clarification", "error", err, "sessionID", sessionID, "currentQuestion", current.ID)
		interp = &models.InterpretationResult{NeedClarification: true}
	}

	normalized := Normalize(current, interp.ParsedAnswer.Value)
	needClarification := interp.NeedClarification
	if !normalized.Valid && !needClarification {
		// Never silently drop an invalid answer.
		needClarification = true
	}
	slog.Debug("Engine.NextStep: answer interpreted",
		"sessionID", sessionID, "currentQuestion", current.ID,
		"valid", normalized.Valid, "needClarification", needClarification,
		"confidence", interp.ParsedAnswer.Confidence)

	if needClarification {
		text := strings.TrimSpace(interp.ClarificationQuestion)
		if text == "" {
			text = questionPrompt(current)
		}
		state.AppendTurn(models.RoleAssistant, text, current.ID)
		if err := e.save(ctx, state); err != nil {
			return nil, err
		}
		return &models.TurnResult{SessionID: sessionID, Message: text}, nil
	}

	state.Answers[current.StorageKey()] = normalized.Value
	if normalized.Value.IsSkip() {
		state.QuestionStatus[current.ID] = models.StatusSkipped
	} else {
		state.QuestionStatus[current.ID] = models.StatusAnswered
	}

	// Recorded answers may exclude questions that were eligible a turn ago.
	MarkConditionallySkipped(state, def)

	candidate := NextQuestion(state, def)
	chosen := candidate
	if proposed := interp.NextQuestionID; proposed != "" && proposed != candidate {
		if containsID(EligibleQuestions(state, def), proposed) {
			chosen = proposed
		} else {
			slog.Info("Engine.NextStep: proposed next question not eligible, using policy candidate",
				"sessionID", sessionID, "proposed", proposed, "candidate", candidate)
		}
	}

	if chosen == "" {
		slog.Info("Engine.NextStep: survey exhausted, terminating", "sessionID", sessionID)
		return e.terminate(ctx, state, def)
	}

	state.QuestionStatus[chosen] = models.StatusAsked
	state.CurrentQuestionID = chosen

	next := def.QuestionByID(chosen)
	text := ""
	// Port-supplied phrasing is only trusted when it was produced for the
	// question actually chosen.
	if interp.NextQuestionID == chosen || interp.NextQuestionID == "" {
		text = strings.TrimSpace(interp.AssistantQuestionText)
	}
	if text == "" {
		text = questionPrompt(next)
	}
	state.AppendTurn(models.RoleAssistant, text, chosen)

	if err := e.save(ctx, state); err != nil {
		return nil, err
	}
	return &models.TurnResult{SessionID: sessionID, Message: text}, nil
}

// StateSummary is a read-only view of a session's progress.
type StateSummary struct {
	SessionID         string                        `json:"session_id"`
	SurveyID          string                        `json:"survey_id"`
	Terminated        bool                          `json:"terminated"`
	CurrentQuestionID string                        `json:"current_question_id,omitempty"`
	Answered          int                           `json:"answered"`
	Skipped           int                           `json:"skipped"`
	Remaining         int                           `json:"remaining"`
	Answers           map[string]models.AnswerValue `json:"answers"`
	UpdatedAt         time.Time                     `json:"updated_at"`
}

// DescribeState summarizes a session's progress without mutating it.
func (e *Engine) DescribeState(ctx context.Context, sessionID string) (*StateSummary, error) {
	state, err := e.sessions.LoadSession(ctx, sessionID)
	if err != nil {
		slog.Error("Engine.DescribeState: failed to load session", "error", err, "sessionID", sessionID)
		return nil, fmt.Errorf("failed to load session %s: %w", sessionID, err)
	}
	if state == nil {
		return nil, models.ErrSessionNotFound
	}

	summary := &StateSummary{
		SessionID:         state.SessionID,
		SurveyID:          state.SurveyID,
		Terminated:        state.Terminated,
		CurrentQuestionID: state.CurrentQuestionID,
		Answers:           state.Answers,
		UpdatedAt:         state.UpdatedAt,
	}
	for _, status := range state.QuestionStatus {
		switch status {
		case models.StatusAnswered:
			summary.Answered++
		case models.StatusSkipped:
			summary.Skipped++
		default:
			summary.Remaining++
		}
	}
	return summary, nil
}

// terminate marks the session done, records the end message, and persists.
func (e *Engine) terminate(ctx context.Context, state *models.SessionState, def *models.SurveyDefinition) (*models.TurnResult, error) {
	state.Terminated = true
	state.CurrentQuestionID = ""
	message := def.EndText()
	state.AppendTurn(models.RoleAssistant, message, "")
	if err := e.save(ctx, state); err != nil {
		return nil, err
	}
	return &models.TurnResult{SessionID: state.SessionID, Message: message}, nil
}

func (e *Engine) save(ctx context.Context, state *models.SessionState) error {
	state.UpdatedAt = time.Now()
	if err := e.sessions.SaveSession(ctx, state); err != nil {
		slog.Error("Engine: failed to save session", "error", err, "sessionID", state.SessionID)
		return fmt.Errorf("failed to save session %s: %w", state.SessionID, err)
	}
	return nil
}

// questionPrompt renders a question's definition text, listing options for
// choice questions.
func questionPrompt(q *models.Question) string {
	if len(q.Options) == 0 {
		return q.Text
	}
	return q.Text + "\nOptions: " + strings.Join(q.Options, ", ")
}

func containsID(ids []string, target string) bool {
	for _, id := range ids {
		if id == target {
			return true
		}
	}
	return false
}
