package survey

import (
	"github.com/BTreeMap/SurveyPipe/internal/models"
)

// NextQuestion returns the id of the next question to ask, or "" when the
// survey is exhausted. It scans questions strictly after the current question
// in definition order (or from the start when no question is current),
// marking ineligible unasked questions as skipped along the way. Definition
// order is the sole source of truth for ordering.
func NextQuestion(state *models.SessionState, def *models.SurveyDefinition) string {
	start := 0
	if state.CurrentQuestionID != "" {
		for i := range def.Questions {
			if def.Questions[i].ID == state.CurrentQuestionID {
				start = i + 1
				break
			}
		}
	}
	for i := start; i < len(def.Questions); i++ {
		q := &def.Questions[i]
		if state.QuestionStatus[q.ID].IsTerminal() {
			continue
		}
		if !IsEligible(q, state.Answers) {
			if state.QuestionStatus[q.ID] == models.StatusUnasked {
				state.QuestionStatus[q.ID] = models.StatusSkipped
			}
			continue
		}
		return q.ID
	}
	return ""
}

// EligibleQuestions returns, in definition order, every question that has not
// reached a terminal status and whose condition currently holds. It bounds
// what the interpretation port may legally propose as the next question.
func EligibleQuestions(state *models.SessionState, def *models.SurveyDefinition) []string {
	var eligible []string
	for i := range def.Questions {
		q := &def.Questions[i]
		if state.QuestionStatus[q.ID].IsTerminal() {
			continue
		}
		if !IsEligible(q, state.Answers) {
			continue
		}
		eligible = append(eligible, q.ID)
	}
	return eligible
}
