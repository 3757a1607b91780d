package injector

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cairnhq/cairn/internal/analyzer"
	"github.com/cairnhq/cairn/internal/parser"
	"github.com/cairnhq/cairn/pkg/config"
	"github.com/cairnhq/cairn/pkg/tombstone"
	"github.com/cairnhq/cairn/pkg/tombstone/memstore"
)

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func readFile(t *testing.T, root, rel string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(rel)))
	if err != nil {
		t.Fatal(err)
	}
	return string(data)
}

func mustParse(t *testing.T, source string) {
	t.Helper()
	p := parser.New()
	defer p.Close()
	result, err := p.Parse([]byte(source), "rewritten.go")
	if err != nil {
		t.Fatalf("rewritten source does not parse: %v\n%s", err, source)
	}
	result.Close()
}

func candidates(t *testing.T, root string) []analyzer.Element {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Exclude.Gitignore = false
	cands, err := analyzer.New(root, analyzer.WithConfig(cfg)).Candidates(0.6)
	if err != nil {
		t.Fatalf("Candidates() error: %v", err)
	}
	return cands
}

const demoSource = `package demo

import "fmt"

// oldGreet kept for the legacy templates.
func oldGreet(name string) string {
	return fmt.Sprintf("hi %s", name)
}

func Keep() {
	fmt.Println(oldGreet("x"))
}
`

func TestInstrument(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "demo.go", demoSource)

	store := memstore.New()
	tracker := tombstone.New(tombstone.WithProject("demo"), tombstone.WithStore(store))

	result := New(root, tracker).Instrument(candidates(t, root))
	if len(result.Failed) > 0 {
		t.Fatalf("Failed: %v", result.Failed)
	}
	if len(result.Changes) != 1 {
		t.Fatalf("Changes = %v, want one (oldGreet)", result.Changes)
	}

	rewritten := readFile(t, root, "demo.go")
	mustParse(t, rewritten)

	if !strings.Contains(rewritten, `tombstone.Hit("oldGreet", "demo.go", 6, `) {
		t.Errorf("marker not injected:\n%s", rewritten)
	}
	// The injected call carries the selection reason so runtime events
	// mirror the registration record.
	if !strings.Contains(rewritten, `name contains \"old\"`) {
		t.Errorf("reason not embedded in marker:\n%s", rewritten)
	}
	if !strings.Contains(rewritten, `"`+TrackerImportPath+`"`) {
		t.Errorf("tracker import not added:\n%s", rewritten)
	}
	if strings.Contains(rewritten, `tombstone.Hit("Keep"`) {
		t.Errorf("Keep should not be instrumented:\n%s", rewritten)
	}

	records := store.Records()
	if len(records) != 1 {
		t.Fatalf("store has %d records, want 1", len(records))
	}
	rec := records[0]
	if rec.Status != tombstone.StatusActive {
		t.Errorf("Status = %q, want active", rec.Status)
	}
	wantID := tombstone.ID("demo", "demo.go", "oldGreet", 6)
	if rec.TombstoneID != wantID {
		t.Errorf("TombstoneID = %q, want %q", rec.TombstoneID, wantID)
	}
	if result.Changes[0].TombstoneID != wantID {
		t.Errorf("Change.TombstoneID = %q, want %q", result.Changes[0].TombstoneID, wantID)
	}
}

func TestInstrumentIsIdempotent(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "demo.go", demoSource)

	store := memstore.New()
	tracker := tombstone.New(tombstone.WithProject("demo"), tombstone.WithStore(store))
	inj := New(root, tracker)

	first := inj.Instrument(candidates(t, root))
	if len(first.Changes) != 1 {
		t.Fatalf("first run Changes = %v", first.Changes)
	}
	afterFirst := readFile(t, root, "demo.go")

	// Re-analyze: line numbers shifted, the marker is now in place.
	second := inj.Instrument(candidates(t, root))
	if len(second.Changes) != 0 {
		t.Errorf("second run instrumented again: %v", second.Changes)
	}
	if len(second.Skipped) != 1 {
		t.Errorf("second run Skipped = %v, want the instrumented element", second.Skipped)
	}
	if got := readFile(t, root, "demo.go"); got != afterFirst {
		t.Errorf("second run modified the file:\n%s", got)
	}
}

func TestInstrumentDryRun(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "demo.go", demoSource)

	tracker := tombstone.New(tombstone.WithProject("demo"), tombstone.WithDryRun())
	result := New(root, tracker, WithDryRun()).Instrument(candidates(t, root))

	if len(result.Changes) != 1 {
		t.Fatalf("Changes = %v, want one planned change", result.Changes)
	}
	if got := readFile(t, root, "demo.go"); got != demoSource {
		t.Errorf("dry run modified the file:\n%s", got)
	}
}

func TestInstrumentSingleLineBody(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "tiny.go", `package demo

func legacyAnswer() int { return 42 }

func Use() int { return legacyAnswer() }
`)

	tracker := tombstone.New(tombstone.WithProject("demo"), tombstone.WithStore(memstore.New()))
	result := New(root, tracker).Instrument(candidates(t, root))
	if len(result.Failed) > 0 {
		t.Fatalf("Failed: %v", result.Failed)
	}

	rewritten := readFile(t, root, "tiny.go")
	mustParse(t, rewritten)
	if !strings.Contains(rewritten, `tombstone.Hit("legacyAnswer", "tiny.go", 3, `) {
		t.Errorf("marker not injected:\n%s", rewritten)
	}
	// The original body must move to its own line; two statements on the
	// brace line is not valid Go.
	for _, line := range strings.Split(rewritten, "\n") {
		if strings.Contains(line, "tombstone.Hit(") && strings.Contains(line, "return 42") {
			t.Errorf("injected call and body share a line: %q", line)
		}
	}
	if !strings.Contains(rewritten, "return 42") {
		t.Errorf("body lost:\n%s", rewritten)
	}
}

func TestInstrumentGroupedImports(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "multi.go", `package demo

import (
	"fmt"
	"strings"
)

func oldJoin(parts []string) string {
	return strings.Join(parts, ",")
}

func oldPrint(s string) {
	fmt.Println(s)
}

func Use() {
	oldPrint(oldJoin(nil))
}
`)

	tracker := tombstone.New(tombstone.WithProject("demo"), tombstone.WithStore(memstore.New()))
	result := New(root, tracker).Instrument(candidates(t, root))
	if len(result.Failed) > 0 {
		t.Fatalf("Failed: %v", result.Failed)
	}
	if len(result.Changes) != 2 {
		t.Fatalf("Changes = %v, want both old functions", result.Changes)
	}

	rewritten := readFile(t, root, "multi.go")
	mustParse(t, rewritten)
	if got := strings.Count(rewritten, `"`+TrackerImportPath+`"`); got != 1 {
		t.Errorf("tracker import appears %d times, want 1:\n%s", got, rewritten)
	}
	if !strings.Contains(rewritten, `tombstone.Hit("oldJoin"`) || !strings.Contains(rewritten, `tombstone.Hit("oldPrint"`) {
		t.Errorf("markers missing:\n%s", rewritten)
	}
}

func TestInstrumentNeverTouchesTypes(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "types.go", "package demo\n\ntype legacyConfig struct{}\n")

	tracker := tombstone.New(tombstone.WithProject("demo"), tombstone.WithStore(memstore.New()))
	before := readFile(t, root, "types.go")
	result := New(root, tracker).Instrument([]analyzer.Element{{
		Name: "legacyConfig", Kind: analyzer.KindType, FilePath: "types.go", LineNumber: 3,
	}})

	if len(result.Changes) != 0 {
		t.Errorf("type was instrumented: %v", result.Changes)
	}
	if got := readFile(t, root, "types.go"); got != before {
		t.Errorf("file modified:\n%s", got)
	}
}
