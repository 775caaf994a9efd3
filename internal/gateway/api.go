// ABOUTME: HTTP API handlers for the question and history endpoints
// ABOUTME: Maps orchestrator and ledger errors onto JSON error responses

package gateway

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/praxyhealth/praxy-gateway/internal/conversation"
	"github.com/praxyhealth/praxy-gateway/internal/ledger"
)

// AskRequest is the JSON request body for POST /api/ask.
type AskRequest struct {
	UserID   string `json:"user_id"`
	Question string `json:"question"`
	Model    string `json:"model,omitempty"`
}

// TurnResponse is one transcript entry in API responses.
type TurnResponse struct {
	Seq       int64  `json:"seq"`
	Role      string `json:"role"`
	Content   string `json:"content"`
	CreatedAt string `json:"created_at"`
}

// AskResponse is the JSON response for POST /api/ask: the full
// transcript for the (user, model) pair including the new exchange.
type AskResponse struct {
	UserID     string         `json:"user_id"`
	Model      string         `json:"model"`
	Answer     string         `json:"answer"`
	Transcript []TurnResponse `json:"transcript"`
}

// HistoryResponse is the JSON response for GET /api/history/{user}/{model}.
type HistoryResponse struct {
	UserID string         `json:"user_id"`
	Model  string         `json:"model"`
	Turns  []TurnResponse `json:"turns"`
}

// handleAsk handles POST /api/ask requests.
// It runs one question round trip through the conversation service and
// returns the updated transcript.
func (g *Gateway) handleAsk(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	req, err := parseAskRequest(r.Body)
	if err != nil {
		g.sendJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	model := req.Model
	if model == "" {
		model = g.config.Completion.DefaultVariant
	}
	if _, ok := g.config.Models[model]; !ok {
		g.sendJSONError(w, http.StatusBadRequest, "unknown model: "+model)
		return
	}

	transcript, err := g.conversation.HandleQuestion(r.Context(), req.UserID, model, req.Question)
	if err != nil {
		g.sendAskError(w, req.UserID, model, err)
		return
	}

	resp := AskResponse{
		UserID:     req.UserID,
		Model:      model,
		Transcript: turnsToResponse(transcript),
	}
	if len(transcript) > 0 {
		resp.Answer = transcript[len(transcript)-1].Content
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// sendAskError maps conversation errors onto HTTP status codes.
func (g *Gateway) sendAskError(w http.ResponseWriter, userID, model string, err error) {
	switch {
	case errors.Is(err, conversation.ErrRemoteCompletion):
		g.logger.Warn("completion failed", "user_id", userID, "model", model, "error", err)
		g.sendJSONError(w, http.StatusBadGateway, "completion service unavailable")
	case errors.Is(err, conversation.ErrPartialAppend):
		g.logger.Error("partial append", "user_id", userID, "model", model, "error", err)
		g.sendJSONError(w, http.StatusInternalServerError, "answer could not be recorded")
	case errors.Is(err, ledger.ErrNotFound):
		g.sendJSONError(w, http.StatusNotFound, "identity not found")
	default:
		g.logger.Error("ask failed", "user_id", userID, "model", model, "error", err)
		g.sendJSONError(w, http.StatusInternalServerError, "internal server error")
	}
}

// handleHistory handles GET /api/history/{user_id}/{model} requests.
// Unknown users produce an empty list, not an error, and are never
// created as a side effect of reading.
func (g *Gateway) handleHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	rest := strings.TrimPrefix(r.URL.Path, "/api/history/")
	parts := strings.SplitN(rest, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		g.sendJSONError(w, http.StatusBadRequest, "expected /api/history/{user_id}/{model}")
		return
	}
	userID, model := parts[0], parts[1]

	turns, err := g.ledger.HistoryByExternalID(r.Context(), userID, model)
	if err != nil {
		g.logger.Error("history read failed", "user_id", userID, "model", model, "error", err)
		g.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(HistoryResponse{
		UserID: userID,
		Model:  model,
		Turns:  turnsToResponse(turns),
	})
}

// handleModels handles GET /api/models requests, returning the
// configured variant-to-model mapping.
func (g *Gateway) handleModels(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"default": g.config.Completion.DefaultVariant,
		"models":  g.config.Models,
	})
}

// sendJSONError writes a JSON error response with the given status code.
func (g *Gateway) sendJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// parseAskRequest parses and validates an AskRequest from the given reader.
// Returns an error if the JSON is invalid or required fields are missing.
func parseAskRequest(r io.Reader) (*AskRequest, error) {
	var req AskRequest
	if err := json.NewDecoder(r).Decode(&req); err != nil {
		return nil, errors.New("invalid JSON body")
	}

	if req.UserID == "" {
		return nil, errors.New("user_id is required")
	}

	if req.Question == "" {
		return nil, errors.New("question is required")
	}

	return &req, nil
}

func turnsToResponse(turns []*ledger.Turn) []TurnResponse {
	out := make([]TurnResponse, 0, len(turns))
	for _, t := range turns {
		out = append(out, TurnResponse{
			Seq:       t.Seq,
			Role:      string(t.Role),
			Content:   t.Content,
			CreatedAt: t.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	return out
}
