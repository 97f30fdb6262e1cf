// Package models defines the core data structures for SurveyPipe.
//
// It includes survey definitions, session state, interpretation results, and
// the API response envelope shared across modules.
package models

import (
	"errors"
	"fmt"
)

// QuestionType defines how a question's answers are validated and stored.
type QuestionType string

const (
	// QuestionTypeSingleChoice accepts exactly one of the question's options.
	QuestionTypeSingleChoice QuestionType = "single_choice"
	// QuestionTypeMultiChoice accepts one or more of the question's options.
	QuestionTypeMultiChoice QuestionType = "multi_choice"
	// QuestionTypeLikert5 accepts one option from a 5-point agreement scale.
	QuestionTypeLikert5 QuestionType = "likert_5"
	// QuestionTypeFreeText accepts any text verbatim.
	QuestionTypeFreeText QuestionType = "free_text"
)

// AnswerSkip is the sentinel value recording that a participant skipped a question.
const AnswerSkip = "SKIP"

// Validation constants for survey definitions.
const (
	// MaxQuestionTextLength defines the maximum allowed length for question text.
	MaxQuestionTextLength = 4096
	// MaxOptionLength defines the maximum allowed length for a choice option.
	MaxOptionLength = 500
	// MaxOptionsCount defines the maximum number of options per question.
	MaxOptionsCount = 25
)

// Error variables for better error handling and testability
var (
	ErrEmptySurveyID        = errors.New("survey id cannot be empty")
	ErrNoQuestions          = errors.New("survey must contain at least one question")
	ErrEmptyQuestionID      = errors.New("question id cannot be empty")
	ErrDuplicateQuestionID  = errors.New("duplicate question id")
	ErrInvalidQuestionType  = errors.New("invalid question type")
	ErrEmptyQuestionText    = errors.New("question text cannot be empty")
	ErrQuestionTextTooLong  = errors.New("question text exceeds maximum length")
	ErrMissingOptions       = errors.New("options are required for choice questions")
	ErrUnexpectedOptions    = errors.New("free text questions cannot carry options")
	ErrTooManyOptions       = errors.New("too many options")
	ErrEmptyOption          = errors.New("option cannot be empty")
	ErrOptionTooLong        = errors.New("option exceeds maximum length")
	ErrDanglingCondition    = errors.New("condition references an unknown answer key")
	ErrEmptyConditionVar    = errors.New("condition variable cannot be empty")
	ErrUnknownSurvey        = errors.New("unknown survey id")
	ErrSessionNotFound      = errors.New("session not found")
	ErrQuestionNotInSurvey  = errors.New("current question not present in survey definition")
	ErrInterpretationEmpty  = errors.New("interpretation result is empty")
)

// IsValidQuestionType checks if the given question type is supported.
func IsValidQuestionType(qt QuestionType) bool {
	switch qt {
	case QuestionTypeSingleChoice, QuestionTypeMultiChoice, QuestionTypeLikert5, QuestionTypeFreeText:
		return true
	default:
		return false
	}
}

// Condition gates a question on a previously stored answer. The question is
// eligible only when the answer stored under Var equals (or, for multi-valued
// answers, contains) Equals.
type Condition struct {
	Var    string `json:"var" yaml:"var"`
	Equals string `json:"equals" yaml:"equals"`
}

// Question is a single survey item. Options are ordered and empty for free
// text. SaveAs defaults to the question id when empty.
type Question struct {
	ID        string       `json:"id" yaml:"id"`
	Type      QuestionType `json:"type" yaml:"type"`
	Text      string       `json:"text" yaml:"text"`
	Options   []string     `json:"options,omitempty" yaml:"options,omitempty"`
	SaveAs    string       `json:"save_as,omitempty" yaml:"save_as,omitempty"`
	Condition *Condition   `json:"condition,omitempty" yaml:"condition,omitempty"`
}

// StorageKey returns the key under which this question's answer is stored.
func (q *Question) StorageKey() string {
	if q.SaveAs != "" {
		return q.SaveAs
	}
	return q.ID
}

// HasOption reports whether value is one of the question's options.
func (q *Question) HasOption(value string) bool {
	for _, opt := range q.Options {
		if opt == value {
			return true
		}
	}
	return false
}

// SurveyDefinition is the immutable, externally supplied description of a
// survey: an ordered question list plus the surrounding copy.
type SurveyDefinition struct {
	ID              string     `json:"id" yaml:"id"`
	Title           string     `json:"title,omitempty" yaml:"title,omitempty"`
	Intro           string     `json:"intro,omitempty" yaml:"intro,omitempty"`
	Questions       []Question `json:"questions" yaml:"questions"`
	EndMessage      string     `json:"end_message,omitempty" yaml:"end_message,omitempty"`
	OffTopicMessage string     `json:"off_topic_message,omitempty" yaml:"off_topic_message,omitempty"`
	ModerateAnswers bool       `json:"moderate_answers,omitempty" yaml:"moderate_answers,omitempty"`
	ToneTags        []string   `json:"tone_tags,omitempty" yaml:"tone_tags,omitempty"`
}

// DefaultEndMessage is used when a definition does not supply one.
const DefaultEndMessage = "Survey complete."

// DefaultOffTopicMessage is used when a definition does not supply one.
const DefaultOffTopicMessage = "Please respond to the current survey question or let me know if you'd like to skip."

// EndText returns the survey's end-of-survey message, falling back to the default.
func (d *SurveyDefinition) EndText() string {
	if d.EndMessage != "" {
		return d.EndMessage
	}
	return DefaultEndMessage
}

// OffTopicText returns the off-topic reminder, falling back to the default.
func (d *SurveyDefinition) OffTopicText() string {
	if d.OffTopicMessage != "" {
		return d.OffTopicMessage
	}
	return DefaultOffTopicMessage
}

// QuestionByID returns the question with the given id, or nil.
func (d *SurveyDefinition) QuestionByID(id string) *Question {
	for i := range d.Questions {
		if d.Questions[i].ID == id {
			return &d.Questions[i]
		}
	}
	return nil
}

// Validate performs comprehensive validation on a survey definition.
// Conditions may only reference storage keys of questions in the same survey.
func (d *SurveyDefinition) Validate() error {
	if d.ID == "" {
		return ErrEmptySurveyID
	}
	if len(d.Questions) == 0 {
		return ErrNoQuestions
	}

	seen := make(map[string]bool, len(d.Questions))
	keys := make(map[string]bool, len(d.Questions))
	for i := range d.Questions {
		q := &d.Questions[i]
		if q.ID == "" {
			return ErrEmptyQuestionID
		}
		if seen[q.ID] {
			return fmt.Errorf("%w: %s", ErrDuplicateQuestionID, q.ID)
		}
		seen[q.ID] = true
		keys[q.StorageKey()] = true
		if err := q.validate(); err != nil {
			return fmt.Errorf("question %s: %w", q.ID, err)
		}
	}

	for i := range d.Questions {
		q := &d.Questions[i]
		if q.Condition == nil {
			continue
		}
		if q.Condition.Var == "" {
			return fmt.Errorf("question %s: %w", q.ID, ErrEmptyConditionVar)
		}
		if !keys[q.Condition.Var] {
			return fmt.Errorf("question %s: %w: %s", q.ID, ErrDanglingCondition, q.Condition.Var)
		}
	}
	return nil
}

// validate checks the per-question constraints.
func (q *Question) validate() error {
	if !IsValidQuestionType(q.Type) {
		return ErrInvalidQuestionType
	}
	if q.Text == "" {
		return ErrEmptyQuestionText
	}
	if len(q.Text) > MaxQuestionTextLength {
		return ErrQuestionTextTooLong
	}

	switch q.Type {
	case QuestionTypeFreeText:
		if len(q.Options) > 0 {
			return ErrUnexpectedOptions
		}
	default:
		if len(q.Options) == 0 {
			return ErrMissingOptions
		}
		if len(q.Options) > MaxOptionsCount {
			return ErrTooManyOptions
		}
		for _, opt := range q.Options {
			if opt == "" {
				return ErrEmptyOption
			}
			if len(opt) > MaxOptionLength {
				return ErrOptionTooLong
			}
		}
	}
	return nil
}

// TurnResult is the only payload the survey core produces: the outgoing
// message for a session, plus the survey id when a session was just started.
type TurnResult struct {
	SessionID   string `json:"session_id"`
	InterviewID string `json:"interview_id,omitempty"`
	Message     string `json:"message"`
}
