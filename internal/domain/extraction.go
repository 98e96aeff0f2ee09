package domain

import "context"

// ExtractedEntity is one entity mention recognized by the extractor.
type ExtractedEntity struct {
	Name     string            `json:"name"`
	Type     string            `json:"type"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// ExtractedRelationship is one relationship recognized by the extractor.
// From/To refer to entity names (or the memory's own anchor name).
type ExtractedRelationship struct {
	From string `json:"from"`
	To   string `json:"to"`
	Type string `json:"type"`
}

// Extraction is the parsed result of one entity-extraction call.
type Extraction struct {
	Entities      []ExtractedEntity
	Relationships []ExtractedRelationship
}

// Extractor is the thin contract over the external LLM collaborator's
// entity-extraction capability (§6). Parse failures are tolerated by the
// caller as an empty Extraction, never as an error that blocks ingest.
type Extractor interface {
	Extract(ctx context.Context, content string) (Extraction, error)
}

// Summarizer is the thin contract over the external LLM collaborator's
// chat-completion capability, used to synthesize a summary from a search
// result's hydrated graph fragment.
type Summarizer interface {
	Summarize(ctx context.Context, fragments []string) (string, error)
}
