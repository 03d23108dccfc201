package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"iter"
	"net/http"
	"strings"

	orchestratorx "github.com/AakashRaj-AidenAi/wealth-navigator-ai/agent/agents/orchestrator"
	contractx "github.com/AakashRaj-AidenAi/wealth-navigator-ai/agent/contract"
	memoryx "github.com/AakashRaj-AidenAi/wealth-navigator-ai/agent/memory"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
)

// HeaderUserID identifies the caller. Authentication happens upstream.
const HeaderUserID = "X-User-ID"

type TurnService interface {
	HandleTurn(ctx context.Context, in orchestratorx.TurnRequest) (orchestratorx.TurnResult, error)
	HandleTurnStream(ctx context.Context, in orchestratorx.TurnRequest) iter.Seq2[contractx.Event, error]
	Classify(ctx context.Context, text string) contractx.ClassificationResult
	Agents() []contractx.AgentInfo
	Summarize(ctx context.Context, conversationID string, threshold int) (string, error)
}

// SignatureVerifier checks QStash deliveries.
type SignatureVerifier interface {
	Verify(signature string, body []byte, requestURL string) error
}

type Handlers struct {
	Turns TurnService
	// Verifier guards the summarize callback. Nil disables the route.
	Verifier SignatureVerifier
	// PublicURL is the externally visible base URL QStash signs against.
	PublicURL string
}

type chatRequest struct {
	Content        string `json:"content"`
	ConversationID string `json:"conversation_id,omitempty"`
	AgentType      string `json:"agent_type,omitempty"`
}

type chatResponse struct {
	ConversationID   string   `json:"conversation_id"`
	Title            string   `json:"title,omitempty"`
	Created          bool     `json:"created"`
	Content          string   `json:"content"`
	Agent            string   `json:"agent"`
	Intent           string   `json:"intent"`
	ToolsUsed        []string `json:"tools_used"`
	RoundsUsed       int      `json:"rounds"`
	ForcedCompletion bool     `json:"forced_completion"`
}

func (h *Handlers) turnRequest(w http.ResponseWriter, r *http.Request) (orchestratorx.TurnRequest, bool) {
	userID := strings.TrimSpace(r.Header.Get(HeaderUserID))
	if userID == "" {
		writeError(w, http.StatusUnauthorized, HeaderUserID+" header is required")
		return orchestratorx.TurnRequest{}, false
	}
	body, ok := readJSON[chatRequest](w, r)
	if !ok {
		return orchestratorx.TurnRequest{}, false
	}
	if strings.TrimSpace(body.Content) == "" {
		writeError(w, http.StatusBadRequest, "content is required")
		return orchestratorx.TurnRequest{}, false
	}
	return orchestratorx.TurnRequest{
		UserID:         userID,
		ConversationID: body.ConversationID,
		Text:           body.Content,
		AgentType:      body.AgentType,
	}, true
}

func (h *Handlers) Chat(w http.ResponseWriter, r *http.Request) {
	in, ok := h.turnRequest(w, r)
	if !ok {
		return
	}
	out, err := h.Turns.HandleTurn(r.Context(), in)
	if err != nil {
		writeTurnError(w, err)
		return
	}
	res := out.Result
	writeJSON(w, http.StatusOK, chatResponse{
		ConversationID:   out.ConversationID,
		Title:            out.Title,
		Created:          out.Created,
		Content:          res.Content,
		Agent:            res.AgentName,
		Intent:           res.Intent,
		ToolsUsed:        res.ToolsInvoked,
		RoundsUsed:       res.RoundsUsed,
		ForcedCompletion: res.ForcedCompletion,
	})
}

// ChatStream writes turn events as server-sent events. Each event name is
// the event type; the data line is the JSON event.
func (h *Handlers) ChatStream(w http.ResponseWriter, r *http.Request) {
	in, ok := h.turnRequest(w, r)
	if !ok {
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	for ev, err := range h.Turns.HandleTurnStream(r.Context(), in) {
		if err != nil && ev.Type != contractx.EventError {
			ev = contractx.Event{Type: contractx.EventError, Message: err.Error()}
		}
		if werr := writeSSE(w, ev); werr != nil {
			log.Debug().Err(werr).Msg("sse client went away")
			return
		}
		flusher.Flush()
		if err != nil {
			return
		}
	}
}

func writeSSE(w io.Writer, ev contractx.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	if _, err := io.WriteString(w, "event: "+string(ev.Type)+"\ndata: "); err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		return err
	}
	_, err = io.WriteString(w, "\n\n")
	return err
}

type classifyRequest struct {
	Text string `json:"text"`
}

func (h *Handlers) Classify(w http.ResponseWriter, r *http.Request) {
	body, ok := readJSON[classifyRequest](w, r)
	if !ok {
		return
	}
	if strings.TrimSpace(body.Text) == "" {
		writeError(w, http.StatusBadRequest, "text is required")
		return
	}
	writeJSON(w, http.StatusOK, h.Turns.Classify(r.Context(), body.Text))
}

func (h *Handlers) ListAgents(w http.ResponseWriter, _ *http.Request) {
	agents := h.Turns.Agents()
	writeJSON(w, http.StatusOK, map[string]any{"agents": agents, "total": len(agents)})
}

// SummarizeCallback is the QStash delivery target for deferred
// summarization.
func (h *Handlers) SummarizeCallback(w http.ResponseWriter, r *http.Request) {
	if h.Verifier == nil {
		writeError(w, http.StatusNotFound, "summarize callback disabled")
		return
	}
	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.Verifier.Verify(r.Header.Get("Upstash-Signature"), raw, h.callbackURL(r)); err != nil {
		log.Warn().Err(err).Msg("rejected summarize callback")
		writeError(w, http.StatusUnauthorized, "invalid signature")
		return
	}

	var job memoryx.SummarizeJob
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &job); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}
	convID := chi.URLParam(r, "id")
	if job.ConversationID != "" && job.ConversationID != convID {
		writeError(w, http.StatusBadRequest, "conversation id mismatch")
		return
	}

	summary, err := h.Turns.Summarize(r.Context(), convID, job.Threshold)
	if err != nil {
		if errors.Is(err, contractx.ErrModelInvoke) {
			// A 5xx makes QStash retry the delivery.
			log.Error().Err(err).Str("conversation_id", convID).Msg("summarization failed")
			writeError(w, http.StatusServiceUnavailable, "summarization failed")
			return
		}
		writeTurnError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"conversation_id": convID, "summarized": summary != ""})
}

func (h *Handlers) callbackURL(r *http.Request) string {
	if h.PublicURL == "" {
		return ""
	}
	return strings.TrimRight(h.PublicURL, "/") + r.URL.Path
}
