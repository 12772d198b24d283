package loam

// AssemblyDocument is the typed view of a Loam document holding an assembly.
// The keys live in the document's frontmatter (Markdown) or at the top level
// (YAML/JSON); the body, if any, is free-form documentation.
type AssemblyDocument struct {
	Version  string         `json:"version,omitempty" mapstructure:"version"`
	Assembly map[string]any `json:"assembly" mapstructure:"assembly"`
}
