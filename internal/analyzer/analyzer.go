package analyzer

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/cairnhq/cairn/internal/fileproc"
	"github.com/cairnhq/cairn/internal/parser"
	"github.com/cairnhq/cairn/internal/scanner"
	"github.com/cairnhq/cairn/pkg/config"
)

// Analyzer scans a source tree and scores each element by likelihood of
// being dead code. Every run is a fresh computation over the current
// tree; nothing is persisted between runs.
type Analyzer struct {
	root       string
	cfg        *config.Config
	onProgress func()
}

// Option configures an Analyzer.
type Option func(*Analyzer)

// WithConfig sets the configuration (exclusion patterns).
func WithConfig(cfg *config.Config) Option {
	return func(a *Analyzer) { a.cfg = cfg }
}

// WithProgress sets a callback invoked once per scanned file.
func WithProgress(fn func()) Option {
	return func(a *Analyzer) { a.onProgress = fn }
}

// New creates an analyzer rooted at the given directory.
func New(root string, opts ...Option) *Analyzer {
	a := &Analyzer{root: root, cfg: config.LoadOrDefault()}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Files returns the source files under the analysis root after exclusions,
// in stable discovery order.
func (a *Analyzer) Files() ([]string, error) {
	return scanner.NewScanner(a.cfg).ScanDir(a.root)
}

// Analyze builds the element inventory, counts references, and scores
// every element. The result is sorted by descending confidence; ties keep
// discovery order (file order, then declaration order).
func (a *Analyzer) Analyze() ([]Element, error) {
	files, err := a.Files()
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", a.root, err)
	}

	elements := a.inventory(files)
	a.countReferences(files, elements)

	for i := range elements {
		score(&elements[i])
	}

	sort.SliceStable(elements, func(i, j int) bool {
		return elements[i].Confidence > elements[j].Confidence
	})
	return elements, nil
}

// Candidates runs a full analysis and filters to elements at or above the
// confidence threshold.
func (a *Analyzer) Candidates(minConfidence float64) ([]Element, error) {
	elements, err := a.Analyze()
	if err != nil {
		return nil, err
	}
	return Select(elements, minConfidence), nil
}

// inventory parses files in parallel and merges per-file elements back in
// discovery order. Parse failures are logged and skipped.
func (a *Analyzer) inventory(files []string) []Element {
	perFile, ok := fileproc.MapFiles(files,
		func(p *parser.Parser, path string) ([]Element, error) {
			result, err := p.ParseFile(path)
			if err != nil {
				return nil, err
			}
			defer result.Close()
			return InventoryFile(result, scanner.Rel(a.root, path)), nil
		},
		a.onProgress,
		func(path string, err error) {
			fmt.Fprintf(os.Stderr, "warning: could not parse %s: %v\n", path, err)
		},
	)

	var elements []Element
	for i := range perFile {
		if ok[i] {
			elements = append(elements, perFile[i]...)
		}
	}
	return elements
}

// countReferences scans every file's raw contents for each element's base
// name. A substring match anywhere counts, including the declaring file.
// This is a documented approximation: same-named elements share counts,
// and no scope resolution is attempted. Read failures are logged and the
// file skipped.
func (a *Analyzer) countReferences(files []string, elements []Element) {
	type fileContent struct {
		rel     string
		content string
	}

	contents, ok := fileproc.MapFiles(files,
		func(_ *parser.Parser, path string) (fileContent, error) {
			data, err := os.ReadFile(path)
			if err != nil {
				return fileContent{}, err
			}
			return fileContent{rel: scanner.Rel(a.root, path), content: string(data)}, nil
		},
		nil,
		func(path string, err error) {
			fmt.Fprintf(os.Stderr, "warning: could not read %s: %v\n", path, err)
		},
	)

	// name -> set of referencing files, keyed by qualified name exactly as
	// scored. Same-named elements collide deliberately.
	refs := make(map[string]map[string]struct{})
	for i := range contents {
		if !ok[i] {
			continue
		}
		fc := contents[i]
		for j := range elements {
			e := &elements[j]
			if !strings.Contains(fc.content, e.BaseName()) {
				continue
			}
			set := refs[e.Name]
			if set == nil {
				set = make(map[string]struct{})
				refs[e.Name] = set
			}
			set[fc.rel] = struct{}{}
		}
	}

	for i := range elements {
		e := &elements[i]
		set := refs[e.Name]
		e.ReferenceCount = len(set)
		e.ReferencingFiles = make([]string, 0, len(set))
		for f := range set {
			e.ReferencingFiles = append(e.ReferencingFiles, f)
		}
		sort.Strings(e.ReferencingFiles)
	}
}
