// Package models contains shared data models used across the Devboard codebase.
package models

import "context"

// CompletionProvider is the interface for the hosted completion service.
// Never call a concrete client directly — always inject this interface.
// Implementations own their timeout and retry policy; callers see only
// success or failure.
type CompletionProvider interface {
	// Complete runs one chat completion and returns the generated text.
	Complete(ctx context.Context, req CompletionRequest) (string, error)
	// Name returns the provider identifier (e.g., "huggingface").
	Name() string
}

// CompletionRequest is the assembled input for one completion call.
type CompletionRequest struct {
	Kind        string        // task kind, selects the system preset
	Context     string        // caller-supplied input
	Memory      []MemoryEntry // prior turns, oldest first, already bounded
	RepoContext string        // fetched tree or file content, may be empty
	MaxTokens   int           // 0 means the client default
}
