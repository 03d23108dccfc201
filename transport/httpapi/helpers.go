package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	orchestratorx "github.com/AakashRaj-AidenAi/wealth-navigator-ai/agent/agents/orchestrator"
	contractx "github.com/AakashRaj-AidenAi/wealth-navigator-ai/agent/contract"
	statex "github.com/AakashRaj-AidenAi/wealth-navigator-ai/agent/state"
	"github.com/rs/zerolog/log"
)

const maxBodyBytes = 1 << 20

// readJSON decodes a JSON request body with a size limit.
func readJSON[T any](w http.ResponseWriter, r *http.Request) (T, bool) {
	var v T
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(&v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
		} else {
			writeError(w, http.StatusBadRequest, "invalid request body")
		}
		return v, false
	}
	return v, true
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Error().Err(err).Msg("failed to write JSON response")
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// writeTurnError maps turn failures onto status codes. Internal detail stays
// in the log.
func writeTurnError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, orchestratorx.ErrInvalidMessage), errors.Is(err, orchestratorx.ErrInvalidUser),
		errors.Is(err, contractx.ErrValidation):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, statex.ErrConversationNotFound):
		writeError(w, http.StatusNotFound, "conversation not found")
	case errors.Is(err, contractx.ErrModelInvoke):
		log.Error().Err(err).Msg("model call failed")
		writeError(w, http.StatusBadGateway, "model call failed")
	default:
		log.Error().Err(err).Msg("request failed")
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}
