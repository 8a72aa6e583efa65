package audit

import "context"

// Trail is the external audit/trace service. Every call is best-effort:
// the pipeline dispatches into it off the critical path and discards
// failures. A nil Trail means auditing is disabled and must be fully
// transparent to normal operation.
type Trail interface {
	CreateThread(ctx context.Context, callID string) (string, error)
	Append(ctx context.Context, threadID, label, content string) error
	Fetch(ctx context.Context, threadID string) (string, error)
}
