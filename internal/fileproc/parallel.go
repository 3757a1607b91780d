// Package fileproc provides concurrent file processing utilities.
package fileproc

import (
	"fmt"
	"runtime"
	"sync"

	"github.com/sourcegraph/conc/pool"

	"github.com/cairnhq/cairn/internal/parser"
)

// ProcessingError represents an error that occurred while processing a file.
type ProcessingError struct {
	Path string
	Err  error
}

func (e ProcessingError) Error() string {
	return fmt.Sprintf("%s: %v", e.Path, e.Err)
}

func (e ProcessingError) Unwrap() error {
	return e.Err
}

// DefaultWorkerMultiplier is the multiplier applied to NumCPU for worker
// count. 2x is optimal for mixed I/O and CGO workloads.
const DefaultWorkerMultiplier = 2

// ProgressFunc is called after each file is processed.
type ProgressFunc func()

// ErrorFunc is called when a file processing error occurs.
// Receives the file path and the error. If nil, errors are silently skipped.
type ErrorFunc func(path string, err error)

// MapFiles processes files in parallel, calling fn for each file with a
// dedicated parser. Results are returned in input order: the element at
// index i corresponds to files[i], with ok[i] false for files whose fn
// returned an error. Preserving order keeps downstream analysis output
// deterministic regardless of goroutine scheduling.
func MapFiles[T any](files []string, fn func(*parser.Parser, string) (T, error), onProgress ProgressFunc, onError ErrorFunc) (results []T, ok []bool) {
	if len(files) == 0 {
		return nil, nil
	}

	maxWorkers := runtime.NumCPU() * DefaultWorkerMultiplier
	results = make([]T, len(files))
	ok = make([]bool, len(files))
	var mu sync.Mutex

	p := pool.New().WithMaxGoroutines(maxWorkers)
	for i, path := range files {
		p.Go(func() {
			psr := parser.New()
			defer psr.Close()

			result, err := fn(psr, path)
			if err != nil {
				if onError != nil {
					mu.Lock()
					onError(path, err)
					mu.Unlock()
				}
			} else {
				results[i] = result
				ok[i] = true
			}

			if onProgress != nil {
				onProgress()
			}
		})
	}
	p.Wait()

	return results, ok
}
