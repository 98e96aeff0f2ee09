// Package extraction provides a placeholder domain.Extractor for local
// development and tests, mirroring internal/adapter/embedding's
// MockProvider: a real extractor is an external LLM collaborator out of
// scope per spec.md §1, wired by the host process the same way a real
// embedding/LLM provider would be.
package extraction

import (
	"context"
	"strings"

	"memkernel/internal/domain"
)

// NoopExtractor always returns an empty Extraction. It exists so
// cmd/memkernel can run end-to-end without a configured LLM collaborator;
// ingest still completes (the anchor node still promotes to READY with no
// mentioned entities), it just never discovers any.
type NoopExtractor struct{}

// NewNoopExtractor constructs a NoopExtractor.
func NewNoopExtractor() *NoopExtractor { return &NoopExtractor{} }

// Extract implements domain.Extractor.
func (NoopExtractor) Extract(_ context.Context, _ string) (domain.Extraction, error) {
	return domain.Extraction{}, nil
}

var _ domain.Extractor = NoopExtractor{}

// FragmentJoinSummarizer is the placeholder domain.Summarizer counterpart
// to NoopExtractor: instead of calling an LLM, it joins the fragment set
// with newlines. It exists so the optional summary step in
// internal/usecase/memory.Manager.Search has something real to call
// end-to-end without a configured LLM collaborator.
type FragmentJoinSummarizer struct{}

// NewFragmentJoinSummarizer constructs a FragmentJoinSummarizer.
func NewFragmentJoinSummarizer() *FragmentJoinSummarizer { return &FragmentJoinSummarizer{} }

// Summarize implements domain.Summarizer.
func (FragmentJoinSummarizer) Summarize(_ context.Context, fragments []string) (string, error) {
	return strings.Join(fragments, "\n"), nil
}

var _ domain.Summarizer = FragmentJoinSummarizer{}
