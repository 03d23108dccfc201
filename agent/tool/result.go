package tool

import (
	"encoding/json"
	"errors"

	contractx "github.com/AakashRaj-AidenAi/wealth-navigator-ai/agent/contract"
)

// Result is either a tool value or a tool error, never both.
type Result struct {
	Tool  string
	Value any
	Err   error
}

func (r Result) OK() bool {
	return r.Err == nil
}

func (r Result) UnknownTool() bool {
	return errors.Is(r.Err, contractx.ErrUnknownTool)
}

// Payload renders the result as the content of a tool-role message.
// Strings pass through as-is; failures become {"error": "..."}.
func (r Result) Payload() string {
	if r.Err != nil {
		raw, _ := json.Marshal(map[string]string{"error": r.Err.Error()})
		return string(raw)
	}
	if s, ok := r.Value.(string); ok {
		return s
	}
	raw, err := json.Marshal(r.Value)
	if err != nil {
		raw, _ = json.Marshal(map[string]string{"error": "tool result is not serializable: " + err.Error()})
	}
	return string(raw)
}
