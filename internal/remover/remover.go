// Package remover deletes confirmed-dead functions from source files and
// strips instrumentation that no longer has a referent.
package remover

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/cairnhq/cairn/internal/parser"
)

// Target names one function to remove. FunctionName may be qualified
// (Receiver.method); only the trailing component is matched against
// declarations. An empty FilePath fans the target out to every scanned
// file, a documented higher-risk fallback.
type Target struct {
	FunctionName string `json:"function_name"`
	FilePath     string `json:"file_path,omitempty"`
}

// Removal reports the functions removed from one file.
type Removal struct {
	File    string
	Removed []string
}

// Result summarizes a removal run.
type Result struct {
	Removals []Removal
	Warnings []string
	Failed   map[string]error
}

// TotalRemoved counts removed functions across all files.
func (r *Result) TotalRemoved() int {
	n := 0
	for _, rm := range r.Removals {
		n += len(rm.Removed)
	}
	return n
}

// Remover rewrites files to excise confirmed-dead declarations.
type Remover struct {
	root     string
	dryRun   bool
	strategy Strategy
	logf     func(format string, args ...any)
}

// Option configures a Remover.
type Option func(*Remover)

// WithDryRun reports planned removals without writing.
func WithDryRun() Option {
	return func(r *Remover) { r.dryRun = true }
}

// WithStrategy overrides the removal strategy (default structural splice
// with line-range fallback).
func WithStrategy(s Strategy) Option {
	return func(r *Remover) { r.strategy = s }
}

// WithLogger replaces the default stderr logger.
func WithLogger(logf func(format string, args ...any)) Option {
	return func(r *Remover) { r.logf = logf }
}

// New creates a remover rooted at the given directory.
func New(root string, opts ...Option) *Remover {
	r := &Remover{
		root: root,
		logf: func(format string, args ...any) {
			fmt.Fprintf(os.Stderr, format+"\n", args...)
		},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run removes the targeted functions. allFiles (relative paths) is used
// to fan out targets that carry no file path. Files are processed
// strictly sequentially: rewriting is not safe to interleave. A failure
// on one file leaves it untouched and does not affect others; a file is
// either fully rewritten or not written at all.
func (r *Remover) Run(targets []Target, allFiles []string) *Result {
	res := &Result{Failed: make(map[string]error)}

	byFile := make(map[string][]nameTarget)
	var fileOrder []string
	add := func(rel, name string, explicit bool) {
		for i, existing := range byFile[rel] {
			if existing.name == name {
				if explicit {
					byFile[rel][i].explicit = true
				}
				return
			}
		}
		if _, seen := byFile[rel]; !seen {
			fileOrder = append(fileOrder, rel)
		}
		byFile[rel] = append(byFile[rel], nameTarget{name: name, explicit: explicit})
	}

	for _, t := range targets {
		name := baseName(t.FunctionName)
		if name == "" {
			continue
		}
		if t.FilePath != "" {
			add(t.FilePath, name, true)
			continue
		}
		for _, rel := range allFiles {
			add(rel, name, false)
		}
	}

	for _, rel := range fileOrder {
		r.removeFromFile(rel, byFile[rel], res)
	}
	return res
}

func (r *Remover) removeFromFile(rel string, names []nameTarget, res *Result) {
	path := filepath.Join(r.root, filepath.FromSlash(rel))
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			for _, nt := range names {
				if nt.explicit {
					r.warn(res, rel, fmt.Sprintf("no resolvable declaration for %s (file not found)", nt.name))
				}
			}
		} else {
			res.Failed[rel] = err
		}
		return
	}

	psr := parser.New()
	defer psr.Close()

	parsed, err := psr.ParseFile(path)
	if err != nil {
		r.logf("warning: skipping %s: %v", rel, err)
		res.Failed[rel] = err
		return
	}
	defer parsed.Close()

	decls, warnings := matchDeclarations(parsed, names)
	for _, w := range warnings {
		r.warn(res, rel, w)
	}
	if len(decls) == 0 {
		return
	}

	strategy := r.strategy
	if strategy == nil {
		strategy = Structural{}
	}

	out, removed, err := strategy.Remove(parsed, decls)
	if err != nil && r.strategy == nil {
		r.logf("warning: %s: %s strategy failed (%v), falling back to line ranges", rel, strategy.Name(), err)
		strategy = LineRange{}
		out, removed, err = strategy.Remove(parsed, decls)
	}
	if err != nil {
		res.Failed[rel] = err
		r.logf("warning: failed to rewrite %s: %v", rel, err)
		return
	}

	out, stripped := cleanupTrackerImport(out)

	if r.dryRun {
		r.logf("would remove from %s: %s", rel, strings.Join(removed, ", "))
		res.Removals = append(res.Removals, Removal{File: rel, Removed: removed})
		return
	}

	mode := os.FileMode(0o644)
	if info, err := os.Stat(path); err == nil {
		mode = info.Mode()
	}
	if err := os.WriteFile(path, out, mode); err != nil {
		res.Failed[rel] = err
		r.logf("warning: failed to write %s: %v", rel, err)
		return
	}

	r.logf("removed from %s: %s", rel, strings.Join(removed, ", "))
	if stripped {
		r.logf("stripped unused tracker import from %s", rel)
	}
	res.Removals = append(res.Removals, Removal{File: rel, Removed: removed})
}

func (r *Remover) warn(res *Result, rel, msg string) {
	res.Warnings = append(res.Warnings, rel+": "+msg)
	r.logf("warning: %s: %s", rel, msg)
}

// nameTarget is one function name to remove from a file. explicit marks
// targets that carried a file path, as opposed to path-less fan-out
// probes.
type nameTarget struct {
	name     string
	explicit bool
}

// declaration is one matched function or method declaration.
type declaration struct {
	name string
	node *sitter.Node
}

// matchDeclarations resolves target names against the file's function and
// method declarations. A name with multiple same-named declarations is
// ambiguous: it is reported and left untouched rather than guessing. An
// explicit target with no declaration at all is reported the same way;
// fan-out probes are expected to miss in most files and stay silent.
func matchDeclarations(parsed *parser.ParseResult, names []nameTarget) ([]declaration, []string) {
	root := parsed.Tree.RootNode()

	found := make(map[string][]*sitter.Node)
	for i := range int(root.ChildCount()) {
		node := root.Child(i)
		t := node.Type()
		if t != "function_declaration" && t != "method_declaration" {
			continue
		}
		name := parser.GetNodeText(node.ChildByFieldName("name"), parsed.Source)
		found[name] = append(found[name], node)
	}

	var decls []declaration
	var warnings []string
	for _, nt := range names {
		nodes := found[nt.name]
		switch len(nodes) {
		case 0:
			if nt.explicit {
				warnings = append(warnings, fmt.Sprintf("no declaration named %s", nt.name))
			}
		case 1:
			decls = append(decls, declaration{name: nt.name, node: nodes[0]})
		default:
			warnings = append(warnings, fmt.Sprintf("%d declarations named %s, skipping (ambiguous)", len(nodes), nt.name))
		}
	}

	sort.Slice(decls, func(i, j int) bool {
		return decls[i].node.StartByte() < decls[j].node.StartByte()
	})
	return decls, warnings
}

func baseName(qualified string) string {
	if idx := strings.LastIndexByte(qualified, '.'); idx >= 0 {
		return qualified[idx+1:]
	}
	return qualified
}
