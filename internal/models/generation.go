package models

// EditBlock is one textual substitution against a named file's current
// content. The first occurrence of Search is replaced with Replace.
type EditBlock struct {
	Search  string `json:"search"`
	Replace string `json:"replace"`
}

// GenerationResult is the response contract of the generation backend.
// Every optional field may be absent; absence means "no change in this
// dimension", never an empty overwrite.
type GenerationResult struct {
	Answer    string                 `json:"answer"`
	Thought   string                 `json:"thought,omitempty"`
	Plan      []string               `json:"plan,omitempty"`
	Files     map[string]string      `json:"files,omitempty"`
	Diffs     map[string][]EditBlock `json:"diffs,omitempty"`
	Questions []string               `json:"questions,omitempty"`
	Summary   string                 `json:"summary,omitempty"`
}
