package analyzer

import (
	"fmt"
	"strings"
)

// deadCodeKeywords is checked in order against names and doc comments;
// the first match in list order is the one reported.
var deadCodeKeywords = []string{
	"deprecated", "legacy", "old", "unused", "obsolete",
	"todo: remove", "fixme: remove", "to be removed",
	"no longer used", "not used", "dead code",
}

// score sets an element's confidence and reasons. The result is a pure
// function of (name, doc, referencing files), so re-running analysis on
// an unchanged tree is deterministic.
func score(e *Element) {
	if e.IsHook {
		e.Confidence = 0
		e.Reasons = []string{"runtime or framework hook"}
		return
	}

	var confidence float64
	var reasons []string

	nameLower := strings.ToLower(e.Name)
	for _, keyword := range deadCodeKeywords {
		if strings.Contains(nameLower, keyword) {
			confidence += 0.3
			reasons = append(reasons, fmt.Sprintf("name contains %q", keyword))
			break
		}
	}

	if e.Doc != "" {
		docLower := strings.ToLower(e.Doc)
		for _, keyword := range deadCodeKeywords {
			if strings.Contains(docLower, keyword) {
				confidence += 0.4
				reasons = append(reasons, fmt.Sprintf("doc comment mentions %q", keyword))
				break
			}
		}
	}

	refs := e.ReferencingFiles
	switch {
	case len(refs) == 0:
		confidence += 0.3
		reasons = append(reasons, "no references found in codebase")
	case len(refs) == 1 && refs[0] == e.FilePath:
		confidence += 0.2
		reasons = append(reasons, "only referenced in its own file")
	}

	if e.IsPrivate && len(refs) <= 1 {
		confidence += 0.2
		reasons = append(reasons, "unexported with limited references")
	}

	if confidence > 1.0 {
		confidence = 1.0
	}
	e.Confidence = confidence
	e.Reasons = reasons
}

// Select returns elements with confidence at or above the threshold. The
// input is already sorted by descending confidence with discovery-order
// ties, and selection preserves that ordering. Pure filter, no side
// effects.
func Select(elements []Element, minConfidence float64) []Element {
	var out []Element
	for _, e := range elements {
		if e.Confidence >= minConfidence {
			out = append(out, e)
		}
	}
	return out
}
