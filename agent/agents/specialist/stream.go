package specialist

import (
	"context"
	"errors"
	"io"
	"iter"
	"strings"
	"sync/atomic"

	contractx "github.com/AakashRaj-AidenAi/wealth-navigator-ai/agent/contract"
	toolx "github.com/AakashRaj-AidenAi/wealth-navigator-ai/agent/tool"
	"github.com/cloudwego/eino/schema"
)

// RunStream is the streaming form of Run. Tool rounds are buffered and
// reported as agent_status events; the answer arrives as stream_token events
// followed by one stream_end. The returned sequence can be ranged once.
func (a *Agent) RunStream(ctx context.Context, text string, actx *contractx.AgentContext) iter.Seq2[contractx.Event, error] {
	var used atomic.Bool
	return func(yield func(contractx.Event, error) bool) {
		if !used.CompareAndSwap(false, true) {
			yield(contractx.Event{}, contractx.ErrStreamConsumed)
			return
		}
		a.stream(ctx, a.newTurn(text, actx), yield)
	}
}

func (a *Agent) stream(ctx context.Context, t *turn, yield func(contractx.Event, error) bool) {
	if len(t.defs) == 0 {
		content, ok := a.streamCompletion(ctx, t.msgs, 1, yield)
		if ok {
			yield(a.endEvent(t, content, 1, false), nil)
		}
		return
	}

	for round := 1; round <= a.def.MaxRounds; round++ {
		if err := ctx.Err(); err != nil {
			yield(contractx.Event{}, err)
			return
		}
		resp, err := a.gateway.Complete(ctx, a.request(t.msgs, t.defs))
		if err != nil {
			yield(contractx.Event{}, a.invokeErr(round, err))
			return
		}
		if len(resp.ToolCalls) == 0 {
			for _, tok := range chunkWords(resp.Content) {
				if !yield(contractx.Event{Type: contractx.EventStreamToken, Agent: a.def.Name, Token: tok}, nil) {
					return
				}
			}
			yield(a.endEvent(t, resp.Content, round, false), nil)
			return
		}
		if !t.applyTools(ctx, resp, func(call schema.ToolCall, res toolx.Result) bool {
			return yield(a.toolEvent(call, res), nil)
		}) {
			return
		}
	}

	content, ok := a.streamCompletion(ctx, t.msgs, a.def.MaxRounds+1, yield)
	if ok {
		yield(a.endEvent(t, content, a.def.MaxRounds, true), nil)
	}
}

// streamCompletion requests a tool-free completion and forwards each delta
// as a stream_token. It reports false when the consumer stopped or an error
// was yielded.
func (a *Agent) streamCompletion(ctx context.Context, msgs []*schema.Message, call int, yield func(contractx.Event, error) bool) (string, bool) {
	sr, err := a.gateway.CompleteStream(ctx, a.request(msgs, nil))
	if err != nil {
		yield(contractx.Event{}, a.invokeErr(call, err))
		return "", false
	}
	defer sr.Close()

	var sb strings.Builder
	for {
		chunk, err := sr.Recv()
		if errors.Is(err, io.EOF) {
			return sb.String(), true
		}
		if err != nil {
			yield(contractx.Event{}, a.invokeErr(call, err))
			return "", false
		}
		if chunk == nil || chunk.Content == "" {
			continue
		}
		sb.WriteString(chunk.Content)
		if !yield(contractx.Event{Type: contractx.EventStreamToken, Agent: a.def.Name, Token: chunk.Content}, nil) {
			return "", false
		}
	}
}

func (a *Agent) toolEvent(call schema.ToolCall, res toolx.Result) contractx.Event {
	name := call.Function.Name
	if res.OK() {
		return contractx.Event{
			Type:    contractx.EventAgentStatus,
			Agent:   a.def.Name,
			Status:  contractx.StatusToolCall,
			Message: "Calling " + name,
		}
	}
	return contractx.Event{
		Type:    contractx.EventAgentStatus,
		Agent:   a.def.Name,
		Status:  contractx.StatusToolError,
		Message: name + " failed",
		ToolError: &contractx.ToolFailure{
			Tool:    name,
			Message: res.Err.Error(),
			Unknown: res.UnknownTool(),
		},
	}
}

func (a *Agent) endEvent(t *turn, content string, rounds int, forced bool) contractx.Event {
	return contractx.Event{
		Type:             contractx.EventStreamEnd,
		Agent:            a.def.Name,
		Content:          content,
		ToolsInvoked:     t.invoked,
		RoundsUsed:       rounds,
		ForcedCompletion: forced,
	}
}

// chunkWords splits buffered text into word-sized tokens that concatenate
// back to the original.
func chunkWords(s string) []string {
	if s == "" {
		return nil
	}
	return strings.SplitAfter(s, " ")
}
