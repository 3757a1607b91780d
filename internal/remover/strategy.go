package remover

import (
	"bytes"
	"fmt"
	"sort"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/cairnhq/cairn/internal/injector"
	"github.com/cairnhq/cairn/internal/parser"
)

// Strategy rewrites parsed source with the given declarations removed.
// Declarations arrive sorted by position; implementations must delete in
// reverse so earlier offsets stay valid.
type Strategy interface {
	Name() string
	Remove(parsed *parser.ParseResult, decls []declaration) ([]byte, []string, error)
}

// Structural removes declarations by splicing out their exact byte
// ranges, extended to cover any attached doc comment block.
type Structural struct{}

func (Structural) Name() string { return "structural" }

func (Structural) Remove(parsed *parser.ParseResult, decls []declaration) ([]byte, []string, error) {
	src := parsed.Source
	var removed []string

	type span struct{ start, end int }
	spans := make([]span, 0, len(decls))
	for _, d := range decls {
		start := int(declStart(d.node).StartByte())
		start = lineStart(src, start)
		end := lineEnd(src, int(d.node.EndByte()))
		if start < 0 || end > len(src) || start >= end {
			return nil, nil, fmt.Errorf("invalid byte range %d..%d for %s", start, end, d.name)
		}
		spans = append(spans, span{start: start, end: end})
		removed = append(removed, d.name)
	}

	sort.Slice(spans, func(i, j int) bool { return spans[i].start > spans[j].start })

	out := src
	for _, s := range spans {
		var buf []byte
		buf = append(buf, out[:s.start]...)
		buf = append(buf, out[s.end:]...)
		out = buf
	}
	return collapseBlankRuns(out), removed, nil
}

// LineRange removes declarations by whole-line ranges derived from the
// parse tree's row positions. Coarser than the structural splice but
// independent of byte offsets; kept as the fallback path.
type LineRange struct{}

func (LineRange) Name() string { return "line-range" }

func (LineRange) Remove(parsed *parser.ParseResult, decls []declaration) ([]byte, []string, error) {
	lines := strings.Split(string(parsed.Source), "\n")
	var removed []string

	type span struct{ start, end int } // inclusive line indexes
	spans := make([]span, 0, len(decls))
	for _, d := range decls {
		start := int(declStart(d.node).StartPoint().Row)
		end := int(d.node.EndPoint().Row)
		if start < 0 || end >= len(lines) || start > end {
			return nil, nil, fmt.Errorf("invalid line range %d..%d for %s", start+1, end+1, d.name)
		}
		spans = append(spans, span{start: start, end: end})
		removed = append(removed, d.name)
	}

	sort.Slice(spans, func(i, j int) bool { return spans[i].start > spans[j].start })

	for _, s := range spans {
		lines = append(lines[:s.start], lines[s.end+1:]...)
	}
	return collapseBlankRuns([]byte(strings.Join(lines, "\n"))), removed, nil
}

// declStart returns the node the removal range starts at: the first
// comment of a doc block attached directly above the declaration, or the
// declaration itself.
func declStart(node *sitter.Node) *sitter.Node {
	start := node
	expectRow := int(node.StartPoint().Row) - 1
	for prev := start.PrevSibling(); prev != nil && prev.Type() == "comment"; prev = prev.PrevSibling() {
		if int(prev.EndPoint().Row) != expectRow {
			break
		}
		start = prev
		expectRow = int(prev.StartPoint().Row) - 1
	}
	return start
}

// lineStart walks back to the byte index just after the previous newline.
func lineStart(src []byte, offset int) int {
	for offset > 0 && src[offset-1] != '\n' {
		offset--
	}
	return offset
}

// lineEnd walks forward past the end of the current line, consuming the
// trailing newline when present.
func lineEnd(src []byte, offset int) int {
	for offset < len(src) && src[offset] != '\n' {
		offset++
	}
	if offset < len(src) {
		offset++
	}
	return offset
}

// collapseBlankRuns squeezes runs of three or more newlines down to two,
// so removals leave at most one blank line behind.
func collapseBlankRuns(src []byte) []byte {
	for bytes.Contains(src, []byte("\n\n\n")) {
		src = bytes.ReplaceAll(src, []byte("\n\n\n"), []byte("\n\n"))
	}
	return src
}

// cleanupTrackerImport drops the tracker import when no tracking call
// survives in the rewritten source. Returns the (possibly rewritten)
// source and whether the import was stripped.
func cleanupTrackerImport(src []byte) ([]byte, bool) {
	if bytes.Contains(src, []byte("tombstone.Hit(")) {
		return src, false
	}
	quoted := `"` + injector.TrackerImportPath + `"`
	if !bytes.Contains(src, []byte(quoted)) {
		return src, false
	}

	lines := strings.Split(string(src), "\n")
	out := lines[:0:0]
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == quoted || trimmed == "import "+quoted {
			continue
		}
		out = append(out, line)
	}

	// Remove an import block left empty by the strip.
	for i := 0; i < len(out)-1; i++ {
		if strings.TrimSpace(out[i]) == "import (" && strings.TrimSpace(out[i+1]) == ")" {
			out = append(out[:i], out[i+2:]...)
			break
		}
	}
	return collapseBlankRuns([]byte(strings.Join(out, "\n"))), true
}
