package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/BTreeMap/SurveyPipe/internal/models"
	"github.com/BTreeMap/SurveyPipe/internal/registry"
	"github.com/BTreeMap/SurveyPipe/internal/store"
	"github.com/BTreeMap/SurveyPipe/internal/survey"
)

type scriptedInterpreter struct {
	results []*models.InterpretationResult
	calls   int
}

func (m *scriptedInterpreter) Interpret(ctx context.Context, state *models.SessionState, def *models.SurveyDefinition, userMessage string) (*models.InterpretationResult, error) {
	i := m.calls
	m.calls++
	if i < len(m.results) {
		return m.results[i], nil
	}
	return &models.InterpretationResult{NeedClarification: true}, nil
}

type stubReviewer struct {
	flagged map[string]bool
	err     error
}

func (r *stubReviewer) ReviewQuestion(ctx context.Context, text string) (bool, error) {
	if r.err != nil {
		return false, r.err
	}
	return r.flagged[text], nil
}

func newTestServer(t *testing.T, interp survey.Interpreter, reviewer QuestionReviewer) *Server {
	t.Helper()
	reg, err := registry.New()
	if err != nil {
		t.Fatalf("registry.New failed: %v", err)
	}
	engine := survey.NewEngine(store.NewInMemoryStore(), reg, interp)
	return NewServer(engine, reg, reviewer)
}

func doJSON(t *testing.T, router http.Handler, method, path string, body any) (*httptest.ResponseRecorder, models.APIResponse) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode request: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	var resp models.APIResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response %q: %v", rr.Body.String(), err)
	}
	return rr, resp
}

func TestCreateSession(t *testing.T) {
	server := newTestServer(t, &scriptedInterpreter{}, nil)
	router := server.Router()

	rr, resp := doJSON(t, router, http.MethodPost, "/sessions", map[string]string{"survey_id": "CULTURE_DISCRIMINATION"})
	if rr.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}
	result := resp.Result.(map[string]any)
	if result["session_id"] == "" {
		t.Error("session id not generated")
	}
	if result["interview_id"] != "CULTURE_DISCRIMINATION" {
		t.Errorf("interview_id = %v", result["interview_id"])
	}
	if !strings.Contains(result["message"].(string), "discriminated against") {
		t.Errorf("first question missing: %v", result["message"])
	}
}

func TestCreateSessionErrors(t *testing.T) {
	server := newTestServer(t, &scriptedInterpreter{}, nil)
	router := server.Router()

	rr, _ := doJSON(t, router, http.MethodPost, "/sessions", map[string]string{"survey_id": "NOPE"})
	if rr.Code != http.StatusNotFound {
		t.Errorf("unknown survey status = %d", rr.Code)
	}
	rr, _ = doJSON(t, router, http.MethodPost, "/sessions", map[string]string{})
	if rr.Code != http.StatusBadRequest {
		t.Errorf("missing survey_id status = %d", rr.Code)
	}
	req := httptest.NewRequest(http.MethodPost, "/sessions", strings.NewReader("{not json"))
	rr2 := httptest.NewRecorder()
	router.ServeHTTP(rr2, req)
	if rr2.Code != http.StatusBadRequest {
		t.Errorf("malformed JSON status = %d", rr2.Code)
	}
}

func TestPostMessageTurn(t *testing.T) {
	interp := &scriptedInterpreter{results: []*models.InterpretationResult{
		{ParsedAnswer: models.ParsedAnswer{QuestionID: "Q1", Value: "No", Confidence: 0.9}},
	}}
	server := newTestServer(t, interp, nil)
	router := server.Router()

	_, created := doJSON(t, router, http.MethodPost, "/sessions",
		map[string]string{"survey_id": "CULTURE_DISCRIMINATION", "session_id": "sess-api"})
	if created.Status != string(models.APIStatusOK) {
		t.Fatalf("session create failed: %+v", created)
	}

	rr, resp := doJSON(t, router, http.MethodPost, "/sessions/sess-api/messages", map[string]string{"message": "no, never"})
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}
	msg := resp.Result.(map[string]any)["message"].(string)
	// Q2 is conditioned on q1 = Yes, so the next question is Q3.
	if !strings.Contains(msg, "witnessed discrimination") {
		t.Errorf("expected Q3 next, got %q", msg)
	}
}

func TestPostMessageValidation(t *testing.T) {
	server := newTestServer(t, &scriptedInterpreter{}, nil)
	router := server.Router()

	rr, _ := doJSON(t, router, http.MethodPost, "/sessions/ghost/messages", map[string]string{"message": ""})
	if rr.Code != http.StatusBadRequest {
		t.Errorf("empty message status = %d", rr.Code)
	}
	// First contact with an unknown survey id cannot start a session.
	rr, _ = doJSON(t, router, http.MethodPost, "/sessions/ghost/messages", map[string]string{"message": "hi", "survey_id": "NOPE"})
	if rr.Code != http.StatusNotFound {
		t.Errorf("unknown session status = %d", rr.Code)
	}
}

func TestGetSession(t *testing.T) {
	server := newTestServer(t, &scriptedInterpreter{}, nil)
	router := server.Router()

	doJSON(t, router, http.MethodPost, "/sessions",
		map[string]string{"survey_id": "CULTURE_DISCRIMINATION", "session_id": "sess-get"})

	rr, resp := doJSON(t, router, http.MethodGet, "/sessions/sess-get", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	summary := resp.Result.(map[string]any)
	if summary["current_question_id"] != "Q1" {
		t.Errorf("current_question_id = %v", summary["current_question_id"])
	}

	rr, _ = doJSON(t, router, http.MethodGet, "/sessions/missing", nil)
	if rr.Code != http.StatusNotFound {
		t.Errorf("missing session status = %d", rr.Code)
	}
}

func TestListSurveys(t *testing.T) {
	server := newTestServer(t, &scriptedInterpreter{}, nil)
	rr, resp := doJSON(t, server.Router(), http.MethodGet, "/surveys", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	list := resp.Result.([]any)
	if len(list) == 0 {
		t.Fatal("built-in survey not listed")
	}
}

func customSurveyBody(id string) map[string]any {
	return map[string]any{
		"id": id,
		"questions": []map[string]any{
			{"id": "Q1", "type": "single_choice", "text": "Happy here?", "options": []string{"Yes", "No"}},
		},
	}
}

func TestRegisterSurvey(t *testing.T) {
	server := newTestServer(t, &scriptedInterpreter{}, nil)
	router := server.Router()

	rr, _ := doJSON(t, router, http.MethodPost, "/surveys", customSurveyBody("TEAM_PULSE"))
	if rr.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}
	rr, _ = doJSON(t, router, http.MethodPost, "/sessions", map[string]string{"survey_id": "TEAM_PULSE"})
	if rr.Code != http.StatusCreated {
		t.Errorf("registered survey not usable: %d", rr.Code)
	}

	rr, _ = doJSON(t, router, http.MethodPost, "/surveys", map[string]any{"id": "BAD"})
	if rr.Code != http.StatusBadRequest {
		t.Errorf("invalid survey status = %d", rr.Code)
	}
}

func TestRegisterSurveyFlaggedQuestion(t *testing.T) {
	reviewer := &stubReviewer{flagged: map[string]bool{"Happy here?": true}}
	server := newTestServer(t, &scriptedInterpreter{}, reviewer)

	rr, resp := doJSON(t, server.Router(), http.MethodPost, "/surveys", customSurveyBody("FLAGGED"))
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}
	if !strings.Contains(resp.Message, "Q1") {
		t.Errorf("flagged question not named: %q", resp.Message)
	}
}

func TestRegisterSurveyReviewerFailureDoesNotBlock(t *testing.T) {
	reviewer := &stubReviewer{err: fmt.Errorf("moderation endpoint down")}
	server := newTestServer(t, &scriptedInterpreter{}, reviewer)

	rr, _ := doJSON(t, server.Router(), http.MethodPost, "/surveys", customSurveyBody("REVIEW_DOWN"))
	if rr.Code != http.StatusCreated {
		t.Errorf("review failure blocked registration: %d", rr.Code)
	}
}
