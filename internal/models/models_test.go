package models

import (
	"encoding/json"
	"errors"
	"testing"
)

func validDefinition() SurveyDefinition {
	return SurveyDefinition{
		ID:    "CULTURE",
		Title: "Culture",
		Questions: []Question{
			{ID: "Q1", Type: QuestionTypeSingleChoice, Text: "First?", Options: []string{"Yes", "No"}, SaveAs: "q1"},
			{ID: "Q2", Type: QuestionTypeMultiChoice, Text: "Which?", Options: []string{"A", "B"}, Condition: &Condition{Var: "q1", Equals: "Yes"}},
			{ID: "Q3", Type: QuestionTypeFreeText, Text: "Anything else?"},
		},
	}
}

func TestSurveyDefinitionValidate(t *testing.T) {
	def := validDefinition()
	if err := def.Validate(); err != nil {
		t.Fatalf("valid definition rejected: %v", err)
	}
}

func TestSurveyDefinitionValidateRejectsDuplicates(t *testing.T) {
	def := validDefinition()
	def.Questions = append(def.Questions, Question{ID: "Q1", Type: QuestionTypeFreeText, Text: "dup"})
	err := def.Validate()
	if !errors.Is(err, ErrDuplicateQuestionID) {
		t.Errorf("expected ErrDuplicateQuestionID, got %v", err)
	}
}

func TestSurveyDefinitionValidateRejectsDanglingCondition(t *testing.T) {
	def := validDefinition()
	def.Questions[1].Condition = &Condition{Var: "nope", Equals: "Yes"}
	err := def.Validate()
	if !errors.Is(err, ErrDanglingCondition) {
		t.Errorf("expected ErrDanglingCondition, got %v", err)
	}
}

func TestSurveyDefinitionValidateRejectsChoiceWithoutOptions(t *testing.T) {
	def := validDefinition()
	def.Questions[0].Options = nil
	err := def.Validate()
	if !errors.Is(err, ErrMissingOptions) {
		t.Errorf("expected ErrMissingOptions, got %v", err)
	}
}

func TestQuestionStorageKeyDefaultsToID(t *testing.T) {
	q := Question{ID: "Q3"}
	if got := q.StorageKey(); got != "Q3" {
		t.Errorf("StorageKey() = %q, want %q", got, "Q3")
	}
	q.SaveAs = "q3"
	if got := q.StorageKey(); got != "q3" {
		t.Errorf("StorageKey() = %q, want %q", got, "q3")
	}
}

func TestAnswerValueJSONRoundTrip(t *testing.T) {
	cases := []struct {
		name  string
		value AnswerValue
		want  string
	}{
		{"text", TextAnswer("Yes"), `"Yes"`},
		{"list", ListAnswer([]string{"Manager", "Colleague"}), `["Manager","Colleague"]`},
		{"empty list", ListAnswer(nil), `[]`},
	}
	for _, tc := range cases {
		data, err := json.Marshal(tc.value)
		if err != nil {
			t.Fatalf("%s: marshal failed: %v", tc.name, err)
		}
		if string(data) != tc.want {
			t.Errorf("%s: marshal = %s, want %s", tc.name, data, tc.want)
		}
		var back AnswerValue
		if err := json.Unmarshal(data, &back); err != nil {
			t.Fatalf("%s: unmarshal failed: %v", tc.name, err)
		}
		if back.Multi != tc.value.Multi {
			t.Errorf("%s: Multi flag lost in round trip", tc.name)
		}
	}
}

func TestAnswerValueContains(t *testing.T) {
	if !TextAnswer("Yes").Contains("Yes") {
		t.Error("text answer should match itself")
	}
	if TextAnswer("Yes").Contains("No") {
		t.Error("text answer should not match a different value")
	}
	list := ListAnswer([]string{"Manager", "Colleague"})
	if !list.Contains("Colleague") {
		t.Error("list answer should contain its members")
	}
	if list.Contains("Customer") {
		t.Error("list answer should not contain absent values")
	}
}

func TestAnswerValueIsSkip(t *testing.T) {
	if !TextAnswer(AnswerSkip).IsSkip() {
		t.Error("SKIP text should be recognized as skip")
	}
	if ListAnswer([]string{AnswerSkip}).IsSkip() {
		t.Error("a list is never the skip sentinel")
	}
}

func TestSessionStateJSONRoundTrip(t *testing.T) {
	def := validDefinition()
	state := NewSessionState("sess-1", def.ID, &def)
	state.Answers["q1"] = TextAnswer("Yes")
	state.QuestionStatus["Q1"] = StatusAnswered
	state.CurrentQuestionID = "Q2"
	state.AppendTurn(RoleAssistant, "Which?", "Q2")

	encoded, err := state.ToJSON()
	if err != nil {
		t.Fatalf("ToJSON failed: %v", err)
	}
	var decoded SessionState
	if err := decoded.FromJSON(encoded); err != nil {
		t.Fatalf("FromJSON failed: %v", err)
	}
	if decoded.SessionID != "sess-1" || decoded.SurveyID != def.ID {
		t.Errorf("identifiers lost: %+v", decoded)
	}
	if decoded.QuestionStatus["Q1"] != StatusAnswered {
		t.Errorf("question status lost: %v", decoded.QuestionStatus)
	}
	if got := decoded.Answers["q1"]; !got.Contains("Yes") {
		t.Errorf("answer lost: %+v", got)
	}
	if len(decoded.History) != 1 || decoded.History[0].QuestionID != "Q2" {
		t.Errorf("history lost: %+v", decoded.History)
	}
}
