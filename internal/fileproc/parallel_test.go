package fileproc

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/cairnhq/cairn/internal/parser"
)

func TestMapFilesPreservesInputOrder(t *testing.T) {
	files := make([]string, 50)
	for i := range files {
		files[i] = fmt.Sprintf("file-%02d.go", i)
	}

	results, ok := MapFiles(files,
		func(_ *parser.Parser, path string) (string, error) {
			return "processed:" + path, nil
		},
		nil, nil)

	if len(results) != len(files) {
		t.Fatalf("len(results) = %d, want %d", len(results), len(files))
	}
	for i, path := range files {
		if !ok[i] {
			t.Errorf("ok[%d] = false", i)
		}
		if results[i] != "processed:"+path {
			t.Errorf("results[%d] = %q, out of order", i, results[i])
		}
	}
}

func TestMapFilesReportsErrors(t *testing.T) {
	files := []string{"good.go", "bad.go", "good2.go"}
	boom := errors.New("boom")

	var mu sync.Mutex
	var failed []string

	results, ok := MapFiles(files,
		func(_ *parser.Parser, path string) (int, error) {
			if path == "bad.go" {
				return 0, boom
			}
			return len(path), nil
		},
		nil,
		func(path string, err error) {
			mu.Lock()
			failed = append(failed, path)
			mu.Unlock()
		})

	if !reflect.DeepEqual(failed, []string{"bad.go"}) {
		t.Errorf("failed = %v", failed)
	}
	if ok[0] != true || ok[1] != false || ok[2] != true {
		t.Errorf("ok = %v", ok)
	}
	if results[0] != len("good.go") || results[2] != len("good2.go") {
		t.Errorf("results = %v", results)
	}
}

func TestMapFilesProgressCallback(t *testing.T) {
	files := []string{"a.go", "b.go", "c.go"}
	var ticks atomic.Int64

	MapFiles(files,
		func(_ *parser.Parser, _ string) (struct{}, error) {
			return struct{}{}, nil
		},
		func() { ticks.Add(1) },
		nil)

	if got := ticks.Load(); got != int64(len(files)) {
		t.Errorf("progress ticks = %d, want %d", got, len(files))
	}
}

func TestMapFilesEmptyInput(t *testing.T) {
	results, ok := MapFiles(nil,
		func(_ *parser.Parser, _ string) (int, error) { return 0, nil },
		nil, nil)
	if results != nil || ok != nil {
		t.Errorf("empty input should return nil, nil; got %v, %v", results, ok)
	}
}

func TestMapFilesParserPerWorker(t *testing.T) {
	// Each invocation receives a usable parser.
	files := []string{"a.go", "b.go", "c.go", "d.go"}
	sources := map[string]string{}
	for _, f := range files {
		sources[f] = "package m\n\nfunc F() {}\n"
	}

	results, ok := MapFiles(files,
		func(p *parser.Parser, path string) (int, error) {
			result, err := p.Parse([]byte(sources[path]), path)
			if err != nil {
				return 0, err
			}
			defer result.Close()
			return int(result.Tree.RootNode().ChildCount()), nil
		},
		nil, nil)

	counts := append([]int(nil), results...)
	sort.Ints(counts)
	for i, o := range ok {
		if !o {
			t.Errorf("parse failed for %s", files[i])
		}
	}
	if counts[0] != counts[len(counts)-1] {
		t.Errorf("inconsistent parses: %v", results)
	}
}
