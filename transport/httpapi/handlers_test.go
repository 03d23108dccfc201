package httpapi

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"iter"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	orchestratorx "github.com/AakashRaj-AidenAi/wealth-navigator-ai/agent/agents/orchestrator"
	contractx "github.com/AakashRaj-AidenAi/wealth-navigator-ai/agent/contract"
	statex "github.com/AakashRaj-AidenAi/wealth-navigator-ai/agent/state"
)

type fakeTurns struct {
	lastTurn    orchestratorx.TurnRequest
	turnErr     error
	events      []contractx.Event
	streamErr   error
	summarized  string
	summarizeOn string
}

func (f *fakeTurns) HandleTurn(_ context.Context, in orchestratorx.TurnRequest) (orchestratorx.TurnResult, error) {
	f.lastTurn = in
	if f.turnErr != nil {
		return orchestratorx.TurnResult{}, f.turnErr
	}
	out := orchestratorx.TurnResult{ConversationID: "c1", Created: in.ConversationID == ""}
	out.Result.Content = "Drift is 3%."
	out.Result.AgentName = "portfolio_intelligence"
	out.Result.Intent = "portfolio_analysis"
	out.Result.ToolsInvoked = []string{"calculate_drift"}
	out.Result.RoundsUsed = 2
	return out, nil
}

func (f *fakeTurns) HandleTurnStream(_ context.Context, in orchestratorx.TurnRequest) iter.Seq2[contractx.Event, error] {
	f.lastTurn = in
	return func(yield func(contractx.Event, error) bool) {
		for _, ev := range f.events {
			if !yield(ev, nil) {
				return
			}
		}
		if f.streamErr != nil {
			yield(contractx.Event{}, f.streamErr)
		}
	}
}

func (f *fakeTurns) Classify(_ context.Context, text string) contractx.ClassificationResult {
	return contractx.ClassificationResult{Intent: contractx.Intent{Name: "client_lookup", Confidence: 0.8, Reasoning: text}}
}

func (f *fakeTurns) Agents() []contractx.AgentInfo {
	return []contractx.AgentInfo{{Name: contractx.AgentAdvisor, Category: "advisory"}}
}

func (f *fakeTurns) Summarize(_ context.Context, convID string, _ int) (string, error) {
	f.summarizeOn = convID
	return f.summarized, nil
}

type fakeVerifier struct {
	err    error
	gotURL string
}

func (v *fakeVerifier) Verify(_ string, _ []byte, requestURL string) error {
	v.gotURL = requestURL
	return v.err
}

func post(t *testing.T, h http.Handler, path, body string, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestChatReturnsTurnResult(t *testing.T) {
	t.Parallel()

	turns := &fakeTurns{}
	h := NewRouter(&Handlers{Turns: turns})
	rec := post(t, h, "/v1/chat", `{"content":"drift?","agent_type":"portfolio_intelligence"}`, map[string]string{HeaderUserID: "u1"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var resp chatResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Agent != "portfolio_intelligence" || !resp.Created || resp.ToolsUsed[0] != "calculate_drift" {
		t.Fatalf("unexpected response: %#v", resp)
	}
	if turns.lastTurn.UserID != "u1" || turns.lastTurn.AgentType != "portfolio_intelligence" {
		t.Fatalf("unexpected turn request: %#v", turns.lastTurn)
	}
}

func TestChatValidation(t *testing.T) {
	t.Parallel()

	h := NewRouter(&Handlers{Turns: &fakeTurns{}})
	if rec := post(t, h, "/v1/chat", `{"content":"hi"}`, nil); rec.Code != http.StatusUnauthorized {
		t.Fatalf("missing user status = %d", rec.Code)
	}
	if rec := post(t, h, "/v1/chat", `{"content":"  "}`, map[string]string{HeaderUserID: "u1"}); rec.Code != http.StatusBadRequest {
		t.Fatalf("empty content status = %d", rec.Code)
	}
	if rec := post(t, h, "/v1/chat", `{not json`, map[string]string{HeaderUserID: "u1"}); rec.Code != http.StatusBadRequest {
		t.Fatalf("bad json status = %d", rec.Code)
	}
}

func TestChatMapsErrors(t *testing.T) {
	t.Parallel()

	cases := []struct {
		err  error
		want int
	}{
		{statex.ErrConversationNotFound, http.StatusNotFound},
		{errors.Join(contractx.ErrModelInvoke, errors.New("502")), http.StatusBadGateway},
		{contractx.ErrConfiguration, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		h := NewRouter(&Handlers{Turns: &fakeTurns{turnErr: tc.err}})
		rec := post(t, h, "/v1/chat", `{"content":"hi","conversation_id":"x"}`, map[string]string{HeaderUserID: "u1"})
		if rec.Code != tc.want {
			t.Fatalf("%v: status = %d, want %d", tc.err, rec.Code, tc.want)
		}
	}
}

func TestChatStreamWritesSSE(t *testing.T) {
	t.Parallel()

	turns := &fakeTurns{
		events: []contractx.Event{
			{Type: contractx.EventStreamStart, ConversationID: "c1"},
			{Type: contractx.EventStreamToken, Token: "Hi"},
			{Type: contractx.EventStreamEnd, Content: "Hi"},
		},
	}
	srv := httptest.NewServer(NewRouter(&Handlers{Turns: turns}))
	t.Cleanup(srv.Close)

	req, _ := http.NewRequest(http.MethodPost, srv.URL+"/v1/chat/stream", strings.NewReader(`{"content":"hi"}`))
	req.Header.Set(HeaderUserID, "u1")
	resp, err := srv.Client().Do(req)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("content type = %q", ct)
	}

	var names []string
	sc := bufio.NewScanner(resp.Body)
	for sc.Scan() {
		if name, ok := strings.CutPrefix(sc.Text(), "event: "); ok {
			names = append(names, name)
		}
	}
	want := "stream_start,stream_token,stream_end"
	if got := strings.Join(names, ","); got != want {
		t.Fatalf("events = %s, want %s", got, want)
	}
}

func TestChatStreamTurnsErrorIntoEvent(t *testing.T) {
	t.Parallel()

	turns := &fakeTurns{streamErr: errors.New("no agents")}
	rec := post(t, NewRouter(&Handlers{Turns: turns}), "/v1/chat/stream", `{"content":"hi"}`, map[string]string{HeaderUserID: "u1"})
	body := rec.Body.String()
	if !strings.Contains(body, "event: error") || !strings.Contains(body, "no agents") {
		t.Fatalf("unexpected body: %s", body)
	}
}

func TestClassifyAndAgents(t *testing.T) {
	t.Parallel()

	h := NewRouter(&Handlers{Turns: &fakeTurns{}})
	rec := post(t, h, "/v1/classify", `{"text":"find Mehta"}`, nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"client_lookup"`) {
		t.Fatalf("classify: %d %s", rec.Code, rec.Body.String())
	}

	req := httptest.NewRequest(http.MethodGet, "/v1/agents", nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), `"total":1`) {
		t.Fatalf("agents: %d %s", rr.Code, rr.Body.String())
	}
}

func TestSummarizeCallbackVerifiesSignature(t *testing.T) {
	t.Parallel()

	turns := &fakeTurns{summarized: "short summary"}
	verifier := &fakeVerifier{}
	h := NewRouter(&Handlers{Turns: turns, Verifier: verifier, PublicURL: "https://api.example.com/"})

	rec := post(t, h, "/v1/conversations/c9/summarize", `{"conversation_id":"c9"}`, map[string]string{"Upstash-Signature": "sig"})
	if rec.Code != http.StatusOK || turns.summarizeOn != "c9" {
		t.Fatalf("status = %d, summarized %q", rec.Code, turns.summarizeOn)
	}
	if verifier.gotURL != "https://api.example.com/v1/conversations/c9/summarize" {
		t.Fatalf("verify url = %q", verifier.gotURL)
	}

	verifier.err = errors.New("bad")
	rec = post(t, h, "/v1/conversations/c9/summarize", `{}`, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("bad signature status = %d", rec.Code)
	}

	disabled := NewRouter(&Handlers{Turns: turns})
	if rec := post(t, disabled, "/v1/conversations/c9/summarize", `{}`, nil); rec.Code != http.StatusNotFound {
		t.Fatalf("disabled status = %d", rec.Code)
	}
}
