package prompt

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"

	contractx "github.com/AakashRaj-AidenAi/wealth-navigator-ai/agent/contract"
	einoprompt "github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"
)

//go:embed template/*.txt template/task/*.txt
var templates embed.FS

// Task template names.
const (
	TaskIntent           = "intent"
	TaskEntities         = "entities"
	TaskSentiment        = "sentiment"
	TaskQuery            = "query"
	TaskSummarizer       = "summarizer"
	TaskSummarizeRequest = "summarize_request"
)

// Agent returns the instruction text for a specialist agent.
func Agent(name string) (string, error) {
	return load(path.Join("template", name+".txt"))
}

// Agents lists the agent names that ship with instructions.
func Agents() []string {
	entries, err := fs.ReadDir(templates, "template")
	if err != nil {
		return nil
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || path.Ext(e.Name()) != ".txt" {
			continue
		}
		names = append(names, strings.TrimSuffix(e.Name(), ".txt"))
	}
	sort.Strings(names)
	return names
}

func Task(name string) (string, error) {
	return load(path.Join("template", "task", name+".txt"))
}

// Render formats a task template into a single user message.
func Render(ctx context.Context, task string, vars map[string]any) ([]*schema.Message, error) {
	raw, err := Task(task)
	if err != nil {
		return nil, err
	}
	return format(ctx, vars, schema.UserMessage(raw))
}

// Summarize builds the summariser transcript. previous may be empty.
func Summarize(ctx context.Context, transcript, previous string) ([]*schema.Message, error) {
	system, err := Task(TaskSummarizer)
	if err != nil {
		return nil, err
	}
	request, err := Task(TaskSummarizeRequest)
	if err != nil {
		return nil, err
	}
	return format(ctx, map[string]any{
		"transcript": transcript,
		"previous":   previous,
	}, schema.SystemMessage(system), schema.UserMessage(request))
}

func format(ctx context.Context, vars map[string]any, msgs ...schema.MessagesTemplate) ([]*schema.Message, error) {
	out, err := einoprompt.FromMessages(schema.GoTemplate, msgs...).Format(ctx, vars)
	if err != nil {
		return nil, fmt.Errorf("%w: render prompt: %v", contractx.ErrValidation, err)
	}
	return out, nil
}

func load(name string) (string, error) {
	raw, err := templates.ReadFile(name)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("%w: %s", contractx.ErrPromptMissing, name)
		}
		return "", err
	}
	return strings.TrimSpace(string(raw)), nil
}
