package survey

import (
	"context"

	"github.com/BTreeMap/SurveyPipe/internal/models"
)

// Interpreter is the model-backed collaborator that reads the participant's
// last message in the context of the session and produces a structured
// suggestion for the turn. The engine treats every field of the result as
// untrusted advice: answers are re-validated by the normalizer and proposed
// next questions are checked against the progression policy. A non-nil error
// means the port produced nothing usable, which is distinct from a
// low-confidence but well-formed result.
type Interpreter interface {
	Interpret(ctx context.Context, state *models.SessionState, def *models.SurveyDefinition, userMessage string) (*models.InterpretationResult, error)
}

// Moderator decides whether a participant message engages with the survey.
// Off-topic messages trigger a reminder turn without recording an answer.
type Moderator interface {
	IsOnTopic(ctx context.Context, message string, history []models.Turn) (bool, error)
}

// DefinitionSource resolves survey ids to immutable survey definitions.
type DefinitionSource interface {
	Definition(surveyID string) (*models.SurveyDefinition, error)
}
