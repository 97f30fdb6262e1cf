// Package models defines session state structures for SurveyPipe surveys.
package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// QuestionStatus tracks a question's lifecycle within a session. Transitions
// are monotonic: unasked -> asked -> {answered|skipped}, with skipped also
// reachable directly from unasked via condition evaluation.
type QuestionStatus string

const (
	// StatusUnasked means the question has not been presented yet.
	StatusUnasked QuestionStatus = "unasked"
	// StatusAsked means the question is currently awaiting an answer.
	StatusAsked QuestionStatus = "asked"
	// StatusAnswered means a normalized answer was stored.
	StatusAnswered QuestionStatus = "answered"
	// StatusSkipped means the question was skipped, by condition or by the participant.
	StatusSkipped QuestionStatus = "skipped"
)

// IsTerminal reports whether the status admits no further transitions.
func (s QuestionStatus) IsTerminal() bool {
	return s == StatusAnswered || s == StatusSkipped
}

// AnswerValue is a stored answer: either a single text value or a list of
// selected options. It round-trips the JSON shapes the original answer data
// uses (a bare string or an array of strings).
type AnswerValue struct {
	Text  string
	List  []string
	Multi bool
}

// TextAnswer builds a single-valued answer.
func TextAnswer(text string) AnswerValue {
	return AnswerValue{Text: text}
}

// ListAnswer builds a multi-valued answer.
func ListAnswer(values []string) AnswerValue {
	return AnswerValue{List: values, Multi: true}
}

// IsSkip reports whether the value is the skip sentinel.
func (v AnswerValue) IsSkip() bool {
	return !v.Multi && v.Text == AnswerSkip
}

// Contains reports whether target equals the value or is a member of a
// multi-valued answer.
func (v AnswerValue) Contains(target string) bool {
	if v.Multi {
		for _, item := range v.List {
			if item == target {
				return true
			}
		}
		return false
	}
	return v.Text == target
}

// MarshalJSON encodes a single value as a JSON string and a multi value as a
// JSON array of strings.
func (v AnswerValue) MarshalJSON() ([]byte, error) {
	if v.Multi {
		if v.List == nil {
			return json.Marshal([]string{})
		}
		return json.Marshal(v.List)
	}
	return json.Marshal(v.Text)
}

// UnmarshalJSON accepts either a JSON string or a JSON array of strings.
func (v *AnswerValue) UnmarshalJSON(data []byte) error {
	var text string
	if err := json.Unmarshal(data, &text); err == nil {
		*v = AnswerValue{Text: text}
		return nil
	}
	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		*v = AnswerValue{List: list, Multi: true}
		return nil
	}
	return fmt.Errorf("answer value must be a string or a list of strings")
}

// TurnRole identifies the author of a transcript entry.
type TurnRole string

const (
	// RoleUser marks a participant message.
	RoleUser TurnRole = "user"
	// RoleAssistant marks an outgoing survey message.
	RoleAssistant TurnRole = "assistant"
)

// Turn is a single transcript entry, optionally tied to a question.
type Turn struct {
	Role       TurnRole  `json:"role"`
	Content    string    `json:"content"`
	QuestionID string    `json:"question_id,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// SessionState is the per-conversation mutable progress record. It is owned
// exclusively by the survey engine while a turn is in flight; persistence
// round-trips it as a whole.
type SessionState struct {
	SessionID         string                    `json:"session_id"`
	SurveyID          string                    `json:"survey_id"`
	Answers           map[string]AnswerValue    `json:"answers"`
	QuestionStatus    map[string]QuestionStatus `json:"question_status"`
	CurrentQuestionID string                    `json:"current_question_id,omitempty"`
	History           []Turn                    `json:"history"`
	Terminated        bool                      `json:"terminated"`
	CreatedAt         time.Time                 `json:"created_at"`
	UpdatedAt         time.Time                 `json:"updated_at"`
}

// NewSessionState builds a fresh session for a survey with every question unasked.
func NewSessionState(sessionID, surveyID string, def *SurveyDefinition) *SessionState {
	now := time.Now()
	status := make(map[string]QuestionStatus, len(def.Questions))
	for i := range def.Questions {
		status[def.Questions[i].ID] = StatusUnasked
	}
	return &SessionState{
		SessionID:      sessionID,
		SurveyID:       surveyID,
		Answers:        make(map[string]AnswerValue),
		QuestionStatus: status,
		History:        []Turn{},
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// AppendTurn records a transcript entry.
func (s *SessionState) AppendTurn(role TurnRole, content, questionID string) {
	s.History = append(s.History, Turn{
		Role:       role,
		Content:    content,
		QuestionID: questionID,
		Timestamp:  time.Now(),
	})
}

// ToJSON serializes the session state for persistence.
func (s *SessionState) ToJSON() (string, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return "", fmt.Errorf("failed to marshal session state: %w", err)
	}
	return string(data), nil
}

// FromJSON deserializes a persisted session state.
func (s *SessionState) FromJSON(data string) error {
	if err := json.Unmarshal([]byte(data), s); err != nil {
		return fmt.Errorf("failed to unmarshal session state: %w", err)
	}
	return nil
}
