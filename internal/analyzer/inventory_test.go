package analyzer

import (
	"testing"

	"github.com/cairnhq/cairn/internal/parser"
)

func parseSource(t *testing.T, source string) *parser.ParseResult {
	t.Helper()
	p := parser.New()
	t.Cleanup(p.Close)

	result, err := p.Parse([]byte(source), "test.go")
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	t.Cleanup(result.Close)
	return result
}

func TestInventoryFile(t *testing.T) {
	source := `package billing

import "fmt"

// Invoice represents a billed amount.
type Invoice struct {
	Total int
}

// String renders the invoice for display.
func (i *Invoice) String() string {
	return fmt.Sprintf("total=%d", i.Total)
}

// applyDiscount reduces the total by a percentage.
// Deprecated: discounts moved to the pricing service.
func (i *Invoice) applyDiscount(pct int) {
	i.Total -= i.Total * pct / 100
}

// NewInvoice creates an empty invoice.
func NewInvoice() *Invoice {
	return &Invoice{}
}

func legacyTotalFormat(total int) string {
	return fmt.Sprintf("$%d", total)
}

func main() {
	fmt.Println(NewInvoice())
}
`
	result := parseSource(t, source)
	elements := InventoryFile(result, "billing/invoice.go")

	byName := make(map[string]Element)
	for _, e := range elements {
		byName[e.Name] = e
	}
	if len(elements) != 6 {
		t.Fatalf("expected 6 elements, got %d: %v", len(elements), byName)
	}

	t.Run("type declaration", func(t *testing.T) {
		e, ok := byName["Invoice"]
		if !ok {
			t.Fatal("Invoice not found")
		}
		if e.Kind != KindType {
			t.Errorf("Kind = %q, want %q", e.Kind, KindType)
		}
		if e.Doc != "Invoice represents a billed amount." {
			t.Errorf("Doc = %q", e.Doc)
		}
		if e.IsPrivate {
			t.Error("Invoice should be exported")
		}
	})

	t.Run("method qualification", func(t *testing.T) {
		e, ok := byName["Invoice.applyDiscount"]
		if !ok {
			t.Fatalf("Invoice.applyDiscount not found in %v", byName)
		}
		if e.Kind != KindMethod {
			t.Errorf("Kind = %q, want %q", e.Kind, KindMethod)
		}
		if !e.IsPrivate {
			t.Error("applyDiscount should be unexported")
		}
		if e.BaseName() != "applyDiscount" {
			t.Errorf("BaseName() = %q", e.BaseName())
		}
	})

	t.Run("multiline doc comment", func(t *testing.T) {
		e := byName["Invoice.applyDiscount"]
		want := "applyDiscount reduces the total by a percentage.\nDeprecated: discounts moved to the pricing service."
		if e.Doc != want {
			t.Errorf("Doc = %q, want %q", e.Doc, want)
		}
	})

	t.Run("interface method is a hook", func(t *testing.T) {
		if !byName["Invoice.String"].IsHook {
			t.Error("String method should be a hook")
		}
		if byName["Invoice.applyDiscount"].IsHook {
			t.Error("applyDiscount should not be a hook")
		}
	})

	t.Run("entry point is a hook", func(t *testing.T) {
		if !byName["main"].IsHook {
			t.Error("main should be a hook")
		}
		if byName["legacyTotalFormat"].IsHook {
			t.Error("legacyTotalFormat should not be a hook")
		}
	})

	t.Run("line numbers are one-based", func(t *testing.T) {
		if got := byName["Invoice"].LineNumber; got != 6 {
			t.Errorf("Invoice line = %d, want 6", got)
		}
		if got := byName["NewInvoice"].LineNumber; got != 22 {
			t.Errorf("NewInvoice line = %d, want 22", got)
		}
	})
}

func TestInventoryFilePointerGenericReceiver(t *testing.T) {
	source := `package cache

type Shard[K comparable, V any] struct{}

func (s *Shard[K, V]) purge() {}
`
	result := parseSource(t, source)
	elements := InventoryFile(result, "cache/shard.go")

	var found bool
	for _, e := range elements {
		if e.Name == "Shard.purge" {
			found = true
			if e.Kind != KindMethod {
				t.Errorf("Kind = %q, want %q", e.Kind, KindMethod)
			}
		}
	}
	if !found {
		t.Fatalf("Shard.purge not found in %v", elements)
	}
}

func TestIsFrameworkHook(t *testing.T) {
	tests := []struct {
		name string
		kind Kind
		want bool
	}{
		{"main", KindFunction, true},
		{"init", KindFunction, true},
		{"TestMain", KindFunction, true},
		{"TestParse", KindFunction, true},
		{"BenchmarkScan", KindFunction, true},
		{"ExampleNew", KindFunction, true},
		{"FuzzDecode", KindFunction, true},
		{"Test", KindFunction, false},
		{"Testify", KindFunction, true}, // prefix match is deliberately coarse
		{"mainLoop", KindFunction, false},
		{"String", KindMethod, true},
		{"Error", KindMethod, true},
		{"MarshalJSON", KindMethod, true},
		{"ServeHTTP", KindMethod, true},
		{"String", KindFunction, false},
		{"serve", KindMethod, false},
	}
	for _, tt := range tests {
		if got := isFrameworkHook(tt.name, tt.kind); got != tt.want {
			t.Errorf("isFrameworkHook(%q, %q) = %v, want %v", tt.name, tt.kind, got, tt.want)
		}
	}
}
