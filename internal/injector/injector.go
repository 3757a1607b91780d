// Package injector rewrites source files to wrap dead-code candidates
// with a runtime tracking call and registers each candidate as a
// tombstone in the external store.
package injector

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/cairnhq/cairn/internal/analyzer"
	"github.com/cairnhq/cairn/internal/parser"
	"github.com/cairnhq/cairn/pkg/tombstone"
)

// TrackerImportPath is the import the injected call depends on.
const TrackerImportPath = "github.com/cairnhq/cairn/pkg/tombstone"

// markerCall is the function the injected statement invokes. Its presence
// at the top of a body is the idempotence marker.
const markerCall = "tombstone.Hit("

// Injector plants tracking markers in selected elements.
type Injector struct {
	root    string
	tracker *tombstone.Tracker
	dryRun  bool
	logf    func(format string, args ...any)
}

// Option configures an Injector.
type Option func(*Injector)

// WithDryRun reports planned edits without writing or registering.
func WithDryRun() Option {
	return func(inj *Injector) { inj.dryRun = true }
}

// WithLogger replaces the default stderr logger.
func WithLogger(logf func(format string, args ...any)) Option {
	return func(inj *Injector) { inj.logf = logf }
}

// New creates an injector. The tracker provides identity derivation and
// tombstone registration.
func New(root string, tracker *tombstone.Tracker, opts ...Option) *Injector {
	inj := &Injector{
		root:    root,
		tracker: tracker,
		logf: func(format string, args ...any) {
			fmt.Fprintf(os.Stderr, format+"\n", args...)
		},
	}
	for _, opt := range opts {
		opt(inj)
	}
	return inj
}

// Change describes one instrumented element.
type Change struct {
	Element     analyzer.Element
	TombstoneID string
}

// Result summarizes an instrumentation run.
type Result struct {
	Changes []Change
	// Skipped lists elements already carrying a marker.
	Skipped []analyzer.Element
	// Failed maps file paths to the error that aborted that file's edit.
	Failed map[string]error
}

// Instrument inserts a tracking call into each selected function or
// method and registers a tombstone for it. Types are never instrumented.
// Each file is rewritten at most once; a failure on one file leaves that
// file untouched and does not affect others.
func (inj *Injector) Instrument(candidates []analyzer.Element) *Result {
	res := &Result{Failed: make(map[string]error)}

	byFile := make(map[string][]analyzer.Element)
	var fileOrder []string
	for _, e := range candidates {
		if e.Kind != analyzer.KindFunction && e.Kind != analyzer.KindMethod {
			continue
		}
		if _, seen := byFile[e.FilePath]; !seen {
			fileOrder = append(fileOrder, e.FilePath)
		}
		byFile[e.FilePath] = append(byFile[e.FilePath], e)
	}

	for _, rel := range fileOrder {
		inj.instrumentFile(rel, byFile[rel], res)
	}
	return res
}

// edit is a pending byte insertion.
type edit struct {
	offset uint32
	text   string
}

func (inj *Injector) instrumentFile(rel string, elements []analyzer.Element, res *Result) {
	path := filepath.Join(inj.root, filepath.FromSlash(rel))

	psr := parser.New()
	defer psr.Close()

	parsed, err := psr.ParseFile(path)
	if err != nil {
		inj.logf("warning: skipping %s: %v", rel, err)
		res.Failed[rel] = err
		return
	}
	defer parsed.Close()

	src := parsed.Source
	var edits []edit
	var applied []analyzer.Element

	for _, e := range elements {
		decl := findDeclaration(parsed, e)
		if decl == nil {
			inj.logf("warning: %s: no declaration for %s at line %d, skipping", rel, e.Name, e.LineNumber)
			continue
		}

		body := decl.ChildByFieldName("body")
		if body == nil {
			// Declaration without a body (e.g. assembly stub).
			inj.logf("warning: %s: %s has no body, skipping", rel, e.Name)
			continue
		}

		if hasMarker(body, src) {
			inj.logf("skipping %s: already instrumented", e.Name)
			res.Skipped = append(res.Skipped, e)
			continue
		}

		stmt := fmt.Sprintf("\n\ttombstone.Hit(%q, %q, %d, %q)", e.Name, e.FilePath, e.LineNumber, reasonFor(e))
		offset := body.StartByte() + 1
		// A single-line body keeps its statements on the brace line; they
		// need a separator after the injected call.
		if int(offset) < len(src) && src[offset] != '\n' {
			stmt += "\n"
		}
		edits = append(edits, edit{offset: offset, text: stmt})
		applied = append(applied, e)
	}

	if len(applied) == 0 {
		return
	}

	if !strings.Contains(string(src), `"`+TrackerImportPath+`"`) {
		imp, err := importEdit(parsed)
		if err != nil {
			inj.logf("warning: %s: %v", rel, err)
			res.Failed[rel] = err
			return
		}
		edits = append(edits, imp)
	}

	if inj.dryRun {
		for _, e := range applied {
			inj.logf("would instrument %s (%s:%d)", e.Name, e.FilePath, e.LineNumber)
			id, _ := inj.tracker.Register(e.Name, e.FilePath, e.LineNumber, reasonFor(e))
			res.Changes = append(res.Changes, Change{Element: e, TombstoneID: id})
		}
		return
	}

	if err := writeEdited(path, src, edits); err != nil {
		res.Failed[rel] = err
		inj.logf("warning: failed to rewrite %s: %v", rel, err)
		return
	}

	for _, e := range applied {
		id, err := inj.tracker.Register(e.Name, e.FilePath, e.LineNumber, reasonFor(e))
		if err != nil {
			inj.logf("warning: instrumented %s but registration failed: %v", e.Name, err)
		}
		res.Changes = append(res.Changes, Change{Element: e, TombstoneID: id})
	}
}

// writeEdited applies insertions in descending offset order so earlier
// offsets stay valid, then rewrites the file in one write.
func writeEdited(path string, src []byte, edits []edit) error {
	sort.Slice(edits, func(i, j int) bool { return edits[i].offset > edits[j].offset })

	out := src
	for _, ed := range edits {
		if int(ed.offset) > len(out) {
			return fmt.Errorf("edit offset %d beyond file size", ed.offset)
		}
		var buf []byte
		buf = append(buf, out[:ed.offset]...)
		buf = append(buf, ed.text...)
		buf = append(buf, out[ed.offset:]...)
		out = buf
	}

	mode := os.FileMode(0o644)
	if info, err := os.Stat(path); err == nil {
		mode = info.Mode()
	}
	return os.WriteFile(path, out, mode)
}

// findDeclaration locates the function or method declaration matching the
// element's base name and recorded line.
func findDeclaration(parsed *parser.ParseResult, e analyzer.Element) *sitter.Node {
	root := parsed.Tree.RootNode()
	wantType := "function_declaration"
	if e.Kind == analyzer.KindMethod {
		wantType = "method_declaration"
	}

	for i := range int(root.ChildCount()) {
		node := root.Child(i)
		if node.Type() != wantType {
			continue
		}
		if int(node.StartPoint().Row)+1 != e.LineNumber {
			continue
		}
		if parser.GetNodeText(node.ChildByFieldName("name"), parsed.Source) == e.BaseName() {
			return node
		}
	}
	return nil
}

// hasMarker reports whether the body already starts with a tracking call.
func hasMarker(body *sitter.Node, src []byte) bool {
	text := parser.GetNodeText(body, src)
	text = strings.TrimPrefix(text, "{")
	return strings.HasPrefix(strings.TrimSpace(text), markerCall)
}

// importEdit produces the insertion that adds the tracker import: into
// the last grouped import block when one exists, as a standalone import
// after the last import statement, or after the package clause otherwise.
func importEdit(parsed *parser.ParseResult) (edit, error) {
	root := parsed.Tree.RootNode()

	var lastImport *sitter.Node
	for i := range int(root.ChildCount()) {
		if node := root.Child(i); node.Type() == "import_declaration" {
			lastImport = node
		}
	}

	if lastImport != nil {
		// Grouped import: insert before the closing paren.
		for i := int(lastImport.ChildCount()) - 1; i >= 0; i-- {
			child := lastImport.Child(i)
			if child.Type() == "import_spec_list" {
				closing := child.EndByte() - 1
				return edit{offset: closing, text: "\n\t\"" + TrackerImportPath + "\"\n"}, nil
			}
		}
		return edit{offset: lastImport.EndByte(), text: "\nimport \"" + TrackerImportPath + "\""}, nil
	}

	for i := range int(root.ChildCount()) {
		if node := root.Child(i); node.Type() == "package_clause" {
			return edit{offset: node.EndByte(), text: "\n\nimport \"" + TrackerImportPath + "\""}, nil
		}
	}
	return edit{}, fmt.Errorf("no package clause found")
}

func reasonFor(e analyzer.Element) string {
	if len(e.Reasons) > 0 {
		return e.Reasons[0]
	}
	return "potentially unused code"
}
