package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/BTreeMap/SurveyPipe/internal/models"
)

// createSessionRequest is the body for POST /sessions.
type createSessionRequest struct {
	SurveyID  string `json:"survey_id"`
	SessionID string `json:"session_id,omitempty"`
}

// postMessageRequest is the body for POST /sessions/{id}/messages. SurveyID is
// only consulted on first contact, when no session state exists yet.
type postMessageRequest struct {
	Message  string `json:"message"`
	SurveyID string `json:"survey_id,omitempty"`
}

// createSessionHandler handles POST /sessions.
func (s *Server) createSessionHandler(w http.ResponseWriter, r *http.Request) {
	slog.Debug("createSessionHandler invoked", "method", r.Method, "path", r.URL.Path)

	var req createSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("createSessionHandler invalid JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	if req.SurveyID == "" {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("survey_id is required"))
		return
	}
	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	result, err := s.engine.BeginSession(r.Context(), sessionID, req.SurveyID)
	if err != nil {
		if errors.Is(err, models.ErrUnknownSurvey) {
			writeJSONResponse(w, http.StatusNotFound, models.Error("Unknown survey: "+req.SurveyID))
			return
		}
		slog.Error("createSessionHandler begin failed", "error", err, "sessionID", sessionID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to start session"))
		return
	}
	writeJSONResponse(w, http.StatusCreated, models.Success(result))
}

// postMessageHandler handles POST /sessions/{id}/messages.
func (s *Server) postMessageHandler(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["id"]
	slog.Debug("postMessageHandler invoked", "sessionID", sessionID)

	var req postMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("postMessageHandler invalid JSON", "error", err, "sessionID", sessionID)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("message is required"))
		return
	}

	result, err := s.engine.NextStep(r.Context(), sessionID, req.SurveyID, req.Message)
	if err != nil {
		if errors.Is(err, models.ErrUnknownSurvey) {
			writeJSONResponse(w, http.StatusNotFound, models.Error("Unknown session and no valid survey_id supplied"))
			return
		}
		slog.Error("postMessageHandler turn failed", "error", err, "sessionID", sessionID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to process message"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(result))
}

// getSessionHandler handles GET /sessions/{id}.
func (s *Server) getSessionHandler(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["id"]
	slog.Debug("getSessionHandler invoked", "sessionID", sessionID)

	summary, err := s.engine.DescribeState(r.Context(), sessionID)
	if err != nil {
		if errors.Is(err, models.ErrSessionNotFound) {
			writeJSONResponse(w, http.StatusNotFound, models.Error("Session not found"))
			return
		}
		slog.Error("getSessionHandler describe failed", "error", err, "sessionID", sessionID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to load session"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(summary))
}

// listSurveysHandler handles GET /surveys.
func (s *Server) listSurveysHandler(w http.ResponseWriter, r *http.Request) {
	slog.Debug("listSurveysHandler invoked")
	writeJSONResponse(w, http.StatusOK, models.Success(s.registry.List()))
}

// registerSurveyHandler handles POST /surveys. Question text is vetted with
// the moderation endpoint when a reviewer is configured; flagged text rejects
// the whole survey.
func (s *Server) registerSurveyHandler(w http.ResponseWriter, r *http.Request) {
	slog.Debug("registerSurveyHandler invoked")

	var def models.SurveyDefinition
	if err := json.NewDecoder(r.Body).Decode(&def); err != nil {
		slog.Warn("registerSurveyHandler invalid JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	if err := def.Validate(); err != nil {
		slog.Warn("registerSurveyHandler validation failed", "error", err, "surveyID", def.ID)
		writeJSONResponse(w, http.StatusBadRequest, models.Error(err.Error()))
		return
	}

	if s.reviewer != nil {
		for i := range def.Questions {
			q := &def.Questions[i]
			flagged, err := s.reviewer.ReviewQuestion(r.Context(), q.Text)
			if err != nil {
				// Review failures are logged but do not block registration.
				slog.Warn("registerSurveyHandler question review failed", "error", err, "questionID", q.ID)
				continue
			}
			if flagged {
				slog.Warn("registerSurveyHandler question flagged", "surveyID", def.ID, "questionID", q.ID)
				writeJSONResponse(w, http.StatusUnprocessableEntity,
					models.Error(fmt.Sprintf("Question %s was flagged by content review", q.ID)))
				return
			}
		}
	}

	if err := s.registry.Register(&def); err != nil {
		slog.Error("registerSurveyHandler register failed", "error", err, "surveyID", def.ID)
		writeJSONResponse(w, http.StatusBadRequest, models.Error(err.Error()))
		return
	}
	writeJSONResponse(w, http.StatusCreated, models.SuccessWithMessage("Survey registered", map[string]string{"survey_id": def.ID}))
}
