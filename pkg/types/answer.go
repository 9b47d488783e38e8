// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

// Reference is one entry in the synthesized answer's reference list. It is
// rendered from the authoritative Citation records, never from LLM output.
type Reference struct {
	ID    int    `json:"id" yaml:"id"`
	Title string `json:"title" yaml:"title"`
	URL   string `json:"url" yaml:"url"`
}

// Answer is the final synthesized output of a research session.
type Answer struct {
	// Text is the markdown answer body with inline [N] citation markers,
	// without any reference sections.
	Text string `json:"text" yaml:"text"`

	// UsedReferences are citations whose [N] marker appears in Text, in
	// citation order. UnusedReferences were extracted but not cited.
	UsedReferences   []Reference `json:"used_references" yaml:"used_references"`
	UnusedReferences []Reference `json:"unused_references" yaml:"unused_references"`

	// Confidence is a fixed constant on success and 0 on any failure or
	// cancellation path.
	Confidence float64 `json:"confidence" yaml:"confidence"`

	// Formatted is the full markdown document: answer body plus the
	// programmatically rendered reference sections.
	Formatted string `json:"formatted" yaml:"formatted"`
}
