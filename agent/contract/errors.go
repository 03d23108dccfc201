package contract

import "errors"

var (
	ErrModelInvoke     = errors.New("model invoke failed")
	ErrSchemaViolation = errors.New("model response violates schema")
	ErrPromptMissing   = errors.New("required prompt is missing")
	ErrValidation      = errors.New("validation failed")

	// ErrConfiguration aborts a turn immediately; nothing retries it.
	ErrConfiguration  = errors.New("runtime misconfigured")
	ErrUnknownTool    = errors.New("unknown tool")
	ErrUnknownAgent   = errors.New("unknown agent")
	ErrStreamConsumed = errors.New("event stream already consumed")
)
