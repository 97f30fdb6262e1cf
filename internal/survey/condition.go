// Package survey implements the deterministic survey core: condition
// evaluation, answer normalization, progression, and the per-turn state
// machine that reconciles survey logic with untrusted interpreter output.
package survey

import (
	"github.com/BTreeMap/SurveyPipe/internal/models"
)

// IsEligible reports whether a question may still be asked given the answers
// accumulated so far. Questions without a condition are always eligible. A
// conditioned question is eligible only when the referenced answer exists and
// equals the target value, or contains it when the stored answer is a list.
func IsEligible(q *models.Question, answers map[string]models.AnswerValue) bool {
	if q.Condition == nil {
		return true
	}
	stored, ok := answers[q.Condition.Var]
	if !ok {
		return false
	}
	return stored.Contains(q.Condition.Equals)
}

// MarkConditionallySkipped transitions every still-unasked question that is no
// longer eligible to skipped. Idempotent; must run before any decision that
// depends on eligibility because answers may have just changed the skip set.
func MarkConditionallySkipped(state *models.SessionState, def *models.SurveyDefinition) {
	for i := range def.Questions {
		q := &def.Questions[i]
		if state.QuestionStatus[q.ID] != models.StatusUnasked {
			continue
		}
		if !IsEligible(q, state.Answers) {
			state.QuestionStatus[q.ID] = models.StatusSkipped
		}
	}
}
