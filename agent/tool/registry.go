package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	contractx "github.com/AakashRaj-AidenAi/wealth-navigator-ai/agent/contract"
	"github.com/cloudwego/eino/schema"
)

// Func receives the decoded model arguments merged with the request bindings.
type Func func(ctx context.Context, args map[string]any) (any, error)

type entry struct {
	info *schema.ToolInfo
	fn   Func
}

// Builder collects tool registrations at process start. Build freezes them
// into a Registry that is read without locking.
type Builder struct {
	entries map[string]entry
	order   []string
}

func NewBuilder() *Builder {
	return &Builder{entries: make(map[string]entry, 16)}
}

// Register adds a tool with an explicit parameter schema. A nil params map
// registers a tool that takes no arguments.
func (b *Builder) Register(name, description string, params map[string]*schema.ParameterInfo, fn Func) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("%w: tool name is required", contractx.ErrValidation)
	}
	if fn == nil {
		return fmt.Errorf("%w: tool=%s has no callable", contractx.ErrValidation, name)
	}
	if _, dup := b.entries[name]; dup {
		return fmt.Errorf("%w: tool=%s registered twice", contractx.ErrValidation, name)
	}
	if params == nil {
		params = map[string]*schema.ParameterInfo{}
	}

	b.entries[name] = entry{
		info: &schema.ToolInfo{
			Name:        name,
			Desc:        description,
			ParamsOneOf: schema.NewParamsOneOfByParams(params),
		},
		fn: fn,
	}
	b.order = append(b.order, name)
	return nil
}

// RegisterTyped registers fn with arguments decoded into T. When params is nil
// the schema is derived from T's fields.
func RegisterTyped[T any](b *Builder, name, description string, params map[string]*schema.ParameterInfo, fn func(context.Context, T) (any, error)) error {
	if fn == nil {
		return fmt.Errorf("%w: tool=%s has no callable", contractx.ErrValidation, name)
	}
	if params == nil {
		derived, err := ParamsOf[T]()
		if err != nil {
			return fmt.Errorf("derive params for tool=%s: %w", name, err)
		}
		params = derived
	}
	return b.Register(name, description, params, func(ctx context.Context, args map[string]any) (any, error) {
		in, err := decodeArgs[T](args)
		if err != nil {
			return nil, err
		}
		return fn(ctx, in)
	})
}

func (b *Builder) Build() *Registry {
	entries := make(map[string]entry, len(b.entries))
	for k, v := range b.entries {
		entries[k] = v
	}
	return &Registry{
		entries: entries,
		order:   append([]string(nil), b.order...),
	}
}

// Registry is immutable after Build.
type Registry struct {
	entries map[string]entry
	order   []string
}

func (r *Registry) Names() []string {
	return append([]string(nil), r.order...)
}

func (r *Registry) Has(name string) bool {
	_, ok := r.entries[name]
	return ok
}

// Definitions resolves names to tool definitions in input order. Unknown names
// are skipped so an agent can keep a tool name that was later removed.
func (r *Registry) Definitions(names []string) []*schema.ToolInfo {
	if r == nil || len(names) == 0 {
		return nil
	}
	out := make([]*schema.ToolInfo, 0, len(names))
	for _, name := range names {
		e, ok := r.entries[name]
		if !ok {
			continue
		}
		out = append(out, e.info)
	}
	return out
}

// Dispatch parses argsJSON, merges extra over it and invokes the tool.
// Callable errors are returned unwrapped in Result.Err.
func (r *Registry) Dispatch(ctx context.Context, name string, argsJSON string, extra contractx.Bindings) Result {
	e, ok := r.entries[name]
	if !ok {
		return Result{Tool: name, Err: fmt.Errorf("%w: %s", contractx.ErrUnknownTool, name)}
	}

	args, err := parseArgs(argsJSON)
	if err != nil {
		return Result{Tool: name, Err: fmt.Errorf("%w: invalid arguments for tool=%s: %v", contractx.ErrValidation, name, err)}
	}
	for k, v := range extra {
		args[k] = v
	}

	val, err := e.fn(ctx, args)
	if err != nil {
		return Result{Tool: name, Err: err}
	}
	return Result{Tool: name, Value: val}
}

func parseArgs(raw string) (map[string]any, error) {
	args := map[string]any{}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return args, nil
	}
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		return nil, err
	}
	if args == nil {
		args = map[string]any{}
	}
	return args, nil
}
