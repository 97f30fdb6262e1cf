package survey

import (
	"strings"

	"github.com/BTreeMap/SurveyPipe/internal/models"
)

// NormalizedAnswer is the outcome of validating a candidate answer value.
// Invalidity is reported through the flags, never through an error: the
// normalizer must accept arbitrary untrusted input without failing.
type NormalizedAnswer struct {
	Value              models.AnswerValue
	Valid              bool
	NeedsClarification bool
}

// Normalize validates and coerces a raw candidate value against a question's
// type and options. The raw value is whatever JSON shape the interpretation
// port produced; this function is the authority on whether it is storable.
func Normalize(q *models.Question, raw any) NormalizedAnswer {
	if text, ok := asText(raw); ok && text == models.AnswerSkip {
		return NormalizedAnswer{Value: models.TextAnswer(models.AnswerSkip), Valid: true}
	}

	switch q.Type {
	case models.QuestionTypeFreeText:
		text, ok := asText(raw)
		if !ok {
			return invalid(models.TextAnswer(""))
		}
		return NormalizedAnswer{Value: models.TextAnswer(text), Valid: true}

	case models.QuestionTypeMultiChoice:
		selected, ok := asTextList(raw)
		if !ok || len(selected) == 0 {
			return invalid(models.ListAnswer(nil))
		}
		for _, item := range selected {
			if !q.HasOption(item) {
				return invalid(models.ListAnswer(nil))
			}
		}
		return NormalizedAnswer{Value: models.ListAnswer(selected), Valid: true}

	default: // single_choice, likert_5
		text, ok := asText(raw)
		if !ok || !q.HasOption(text) {
			return invalid(models.TextAnswer(""))
		}
		return NormalizedAnswer{Value: models.TextAnswer(text), Valid: true}
	}
}

func invalid(value models.AnswerValue) NormalizedAnswer {
	return NormalizedAnswer{Value: value, NeedsClarification: true}
}

// asText extracts a trimmed string from an untrusted value.
func asText(raw any) (string, bool) {
	text, ok := raw.(string)
	if !ok {
		return "", false
	}
	return strings.TrimSpace(text), true
}

// asTextList extracts a list of trimmed strings from an untrusted value. A
// comma-delimited string is split into tokens; JSON arrays are accepted
// element-wise. Empty tokens are dropped.
func asTextList(raw any) ([]string, bool) {
	switch v := raw.(type) {
	case string:
		return splitTokens(v), true
	case []string:
		var out []string
		for _, item := range v {
			if trimmed := strings.TrimSpace(item); trimmed != "" {
				out = append(out, trimmed)
			}
		}
		return out, true
	case []any:
		var out []string
		for _, item := range v {
			text, ok := item.(string)
			if !ok {
				return nil, false
			}
			if trimmed := strings.TrimSpace(text); trimmed != "" {
				out = append(out, trimmed)
			}
		}
		return out, true
	default:
		return nil, false
	}
}

func splitTokens(text string) []string {
	var out []string
	for _, part := range strings.Split(text, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
