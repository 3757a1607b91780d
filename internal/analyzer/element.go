// Package analyzer finds dead-code candidates in a Go source tree using
// syntactic heuristics: naming and doc-comment keywords plus substring
// reference counting. It deliberately performs no call-graph or symbol
// resolution.
package analyzer

// Kind classifies a discovered code element.
type Kind string

const (
	KindFunction Kind = "function"
	KindMethod   Kind = "method"
	KindType     Kind = "type"
)

// Element is one static finding: a function, method, or named type with
// its location and scoring state. Location fields are immutable once
// created; Confidence and Reasons are set exactly once per analysis run.
type Element struct {
	// Name is the qualified identifier: Receiver.method for methods,
	// the bare name otherwise.
	Name string `json:"name"`
	Kind Kind   `json:"kind"`

	// FilePath is relative to the analysis root, slash-separated.
	FilePath   string `json:"file_path"`
	LineNumber int    `json:"line_number"`

	// Doc is the extracted doc comment text, without comment markers.
	Doc string `json:"doc,omitempty"`

	// IsPrivate reports an unexported base name. IsHook marks runtime,
	// test, or interface hooks that are never safe to flag.
	IsPrivate bool `json:"is_private"`
	IsHook    bool `json:"is_hook"`

	// ReferencingFiles is the sorted set of files (relative paths) whose
	// contents contain the base name, including the declaring file.
	ReferenceCount   int      `json:"reference_count"`
	ReferencingFiles []string `json:"referencing_files,omitempty"`

	Confidence float64  `json:"confidence"`
	Reasons    []string `json:"reasons,omitempty"`
}

// BaseName returns the unqualified element name.
func (e *Element) BaseName() string {
	for i := len(e.Name) - 1; i >= 0; i-- {
		if e.Name[i] == '.' {
			return e.Name[i+1:]
		}
	}
	return e.Name
}
