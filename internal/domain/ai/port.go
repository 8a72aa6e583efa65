package ai

import "context"

// Embedder turns text into a fixed-length vector. Implementations retry
// a transient provider failure exactly once; a second failure surfaces
// as a *errs.DependencyError.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Generation is one completed text-generation call.
type Generation struct {
	Content          string
	PromptTokens     int
	CompletionTokens int
}

// Generator invokes the external generation provider. Output is
// untrusted free text; callers coerce it into their structured contract.
type Generator interface {
	Generate(ctx context.Context, system, user string) (*Generation, error)
}
