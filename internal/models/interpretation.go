// Package models defines the interpretation port contract for SurveyPipe.
package models

// ParsedAnswer is the model's reading of the participant's last message,
// targeted at a specific question. Value is whatever JSON shape the model
// produced; the answer normalizer is the authority on its validity.
type ParsedAnswer struct {
	QuestionID string  `json:"question_id"`
	Value      any     `json:"value"`
	Confidence float64 `json:"confidence"`
	Notes      string  `json:"notes,omitempty"`
}

// InterpretationResult is the structured suggestion returned by the
// interpretation port for one turn. The survey core treats every field as
// untrusted advice: answers are re-validated by the normalizer and the
// proposed next question is only honored when the progression policy agrees.
type InterpretationResult struct {
	ParsedAnswer          ParsedAnswer `json:"parsed_answer"`
	NeedClarification     bool         `json:"need_clarification"`
	ClarificationQuestion string       `json:"clarification_question,omitempty"`
	NextQuestionID        string       `json:"next_question_id,omitempty"`
	AssistantQuestionText string       `json:"assistant_question_text,omitempty"`
	ReasoningBrief        string       `json:"reasoning_brief,omitempty"`
}
