package messaging

import (
	"context"
	"log/slog"

	"github.com/BTreeMap/SurveyPipe/internal/survey"
)

// sessionIDPrefix namespaces chat-channel sessions so they never collide with
// API-created session ids.
const sessionIDPrefix = "wa:"

// Responder consumes incoming participant messages from a Service, drives the
// survey engine one turn per message, and sends the engine's reply back over
// the same channel. Each sender's phone number maps to a stable session id,
// so a conversation survives process restarts. The single consume loop
// serializes turns, honoring the engine's single-writer requirement.
type Responder struct {
	service  Service
	engine   *survey.Engine
	surveyID string
}

// NewResponder creates a responder that administers the given survey to every
// participant who messages the channel.
func NewResponder(service Service, engine *survey.Engine, surveyID string) *Responder {
	return &Responder{
		service:  service,
		engine:   engine,
		surveyID: surveyID,
	}
}

// SessionIDFor returns the stable session id for a sender.
func (r *Responder) SessionIDFor(from string) (string, error) {
	canonical, err := r.service.ValidateAndCanonicalizeRecipient(from)
	if err != nil {
		return "", err
	}
	return sessionIDPrefix + canonical, nil
}

// Start runs the consume loop until ctx is canceled or the service's
// responses channel closes.
func (r *Responder) Start(ctx context.Context) error {
	if err := r.service.Start(ctx); err != nil {
		return err
	}
	go r.loop(ctx)
	slog.Info("Responder started", "surveyID", r.surveyID)
	return nil
}

func (r *Responder) loop(ctx context.Context) {
	responses := r.service.Responses()
	receipts := r.service.Receipts()
	for {
		select {
		case <-ctx.Done():
			slog.Debug("Responder loop stopping due to context cancellation")
			return
		case response, ok := <-responses:
			if !ok {
				slog.Debug("Responder loop stopping, responses channel closed")
				return
			}
			r.handleResponse(ctx, response.From, response.Body)
		case receipt, ok := <-receipts:
			if !ok {
				receipts = nil
				continue
			}
			slog.Debug("Responder: delivery receipt", "to", receipt.To, "status", receipt.Status)
		}
	}
}

// handleResponse runs one survey turn for an incoming message and replies.
func (r *Responder) handleResponse(ctx context.Context, from, body string) {
	sessionID, err := r.SessionIDFor(from)
	if err != nil {
		slog.Warn("Responder.handleResponse: invalid sender, dropping message", "error", err, "from", from)
		return
	}

	result, err := r.engine.NextStep(ctx, sessionID, r.surveyID, body)
	if err != nil {
		slog.Error("Responder.handleResponse: turn failed", "error", err, "sessionID", sessionID)
		return
	}

	if err := r.service.SendMessage(ctx, from, result.Message); err != nil {
		slog.Error("Responder.handleResponse: reply send failed", "error", err, "sessionID", sessionID)
	}
}
