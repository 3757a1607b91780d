package tombstone

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

// DefaultTimeout bounds every store call made by a Tracker so a slow or
// unreachable store never adds unbounded latency to instrumented code.
const DefaultTimeout = 5 * time.Second

// Tracker reports invocations of instrumented code to a Store. It holds no
// per-call mutable state and is safe for concurrent use from any number of
// goroutines.
//
// A Tracker without a configured store degrades to local logging: Record
// returns false but the wrapped code runs unaffected.
type Tracker struct {
	project string
	store   Store
	timeout time.Duration
	dryRun  bool
	logw    io.Writer

	// emitted latches identities whose event reached the store, capping
	// telemetry at one successful emit per identity per process. Failed
	// emits do not latch, so later calls keep trying.
	emitted sync.Map // tombstone id -> struct{}

	mu      sync.Mutex
	wrapped map[string]any
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithProject sets the project name used for identity derivation.
func WithProject(name string) Option {
	return func(t *Tracker) { t.project = name }
}

// WithStore sets the event store.
func WithStore(s Store) Option {
	return func(t *Tracker) { t.store = s }
}

// WithTimeout bounds each store call.
func WithTimeout(d time.Duration) Option {
	return func(t *Tracker) { t.timeout = d }
}

// WithDryRun suppresses all store I/O; hits are only logged.
func WithDryRun() Option {
	return func(t *Tracker) { t.dryRun = true }
}

// WithLogWriter redirects the tracker's local log lines (default stderr).
func WithLogWriter(w io.Writer) Option {
	return func(t *Tracker) { t.logw = w }
}

// New creates a tracker. Without WithStore it runs in local-log mode.
func New(opts ...Option) *Tracker {
	t := &Tracker{
		project: "default",
		timeout: DefaultTimeout,
		logw:    os.Stderr,
		wrapped: make(map[string]any),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Project returns the tracker's project name.
func (t *Tracker) Project() string {
	return t.project
}

// Hit records one invocation of the instrumented element identified by its
// registration-time location. This is the call the injector plants at the
// top of instrumented function bodies. An optional reason is carried in
// the event context, mirroring the registration record. It never panics
// and never blocks longer than the configured timeout.
func (t *Tracker) Hit(functionName, filePath string, lineNumber int, reason ...string) {
	ev := Event{
		TombstoneID:  ID(t.project, filePath, functionName, lineNumber),
		ProjectName:  t.project,
		FunctionName: functionName,
		FilePath:     filePath,
		LineNumber:   lineNumber,
		TriggeredAt:  time.Now().UTC(),
	}
	if len(reason) > 0 && reason[0] != "" {
		ev.Context = map[string]string{"reason": reason[0]}
	}
	t.Record(ev)
}

// Record appends an invocation event to the store. Returns false when the
// event was not persisted (dry run, no store, timeout, or store error);
// failures are logged and swallowed, never propagated to the caller.
func (t *Tracker) Record(ev Event) bool {
	if ev.TriggeredAt.IsZero() {
		ev.TriggeredAt = time.Now().UTC()
	}

	if t.dryRun {
		fmt.Fprintf(t.logw, "[tombstone dry run] %s triggered at %s\n", ev.FunctionName, ev.TriggeredAt.Format(time.RFC3339))
		return true
	}

	if t.store == nil {
		fmt.Fprintf(t.logw, "[tombstone local] %s triggered at %s\n", ev.FunctionName, ev.TriggeredAt.Format(time.RFC3339))
		return false
	}

	if _, done := t.emitted.Load(ev.TombstoneID); done {
		return true
	}

	ctx, cancel := context.WithTimeout(context.Background(), t.timeout)
	defer cancel()

	if err := t.store.AppendEvent(ctx, ev); err != nil {
		fmt.Fprintf(t.logw, "[tombstone error] failed to record event for %s: %v\n", ev.FunctionName, err)
		return false
	}

	t.emitted.Store(ev.TombstoneID, struct{}{})
	return true
}

// Register upserts a tombstone record for a candidate without triggering
// it. The injector calls this after a successful instrumentation edit.
func (t *Tracker) Register(functionName, filePath string, lineNumber int, reason string) (string, error) {
	id := ID(t.project, filePath, functionName, lineNumber)

	if t.dryRun {
		fmt.Fprintf(t.logw, "[tombstone dry run] registered %s in %s\n", functionName, filePath)
		return id, nil
	}

	if t.store == nil {
		return id, fmt.Errorf("no store configured")
	}

	ctx, cancel := context.WithTimeout(context.Background(), t.timeout)
	defer cancel()

	rec := Record{
		TombstoneID:  id,
		ProjectName:  t.project,
		FunctionName: functionName,
		FilePath:     filePath,
		LineNumber:   lineNumber,
		Reason:       reason,
		RegisteredAt: time.Now().UTC(),
		Status:       StatusActive,
	}
	if err := t.store.UpsertTombstone(ctx, rec); err != nil {
		return id, fmt.Errorf("failed to register tombstone: %w", err)
	}
	return id, nil
}

// Marker identifies an instrumented element for wrapping.
type Marker struct {
	Name   string
	File   string
	Line   int
	Reason string
}

// Wrap returns a callable that records the invocation and then runs fn.
// The wrapper forwards panics and return values untouched; telemetry is a
// pure side effect. The association is kept in the tracker's registry.
func Wrap[T any](t *Tracker, m Marker, fn func() T) func() T {
	wrapper := func() T {
		t.Record(Event{
			TombstoneID:  ID(t.project, m.File, m.Name, m.Line),
			ProjectName:  t.project,
			FunctionName: m.Name,
			FilePath:     m.File,
			LineNumber:   m.Line,
			TriggeredAt:  time.Now().UTC(),
			Context:      markerContext(m),
		})
		return fn()
	}
	t.register(ID(t.project, m.File, m.Name, m.Line), wrapper)
	return wrapper
}

// WrapFunc is Wrap for callables with no return value.
func WrapFunc(t *Tracker, m Marker, fn func()) func() {
	wrapper := func() {
		t.Record(Event{
			TombstoneID:  ID(t.project, m.File, m.Name, m.Line),
			ProjectName:  t.project,
			FunctionName: m.Name,
			FilePath:     m.File,
			LineNumber:   m.Line,
			TriggeredAt:  time.Now().UTC(),
			Context:      markerContext(m),
		})
		fn()
	}
	t.register(ID(t.project, m.File, m.Name, m.Line), wrapper)
	return wrapper
}

func markerContext(m Marker) map[string]string {
	if m.Reason == "" {
		return nil
	}
	return map[string]string{"reason": m.Reason}
}

func (t *Tracker) register(id string, wrapper any) {
	t.mu.Lock()
	t.wrapped[id] = wrapper
	t.mu.Unlock()
}

// Wrapped returns the registered wrapper for a tombstone identity, if any.
func (t *Tracker) Wrapped(id string) (any, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	w, ok := t.wrapped[id]
	return w, ok
}

var (
	defaultMu      sync.Mutex
	defaultTracker *Tracker
)

// Default returns the process-wide tracker, creating a local-log instance
// on first use. SetDefault should be called once during program init;
// there is no teardown.
func Default() *Tracker {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	if defaultTracker == nil {
		defaultTracker = New()
	}
	return defaultTracker
}

// SetDefault installs the process-wide tracker. Intended to be called once
// from main before any instrumented code runs.
func SetDefault(t *Tracker) {
	defaultMu.Lock()
	defaultTracker = t
	defaultMu.Unlock()
}

// Hit records an invocation on the default tracker. Injected
// instrumentation calls this form.
func Hit(functionName, filePath string, lineNumber int, reason ...string) {
	Default().Hit(functionName, filePath, lineNumber, reason...)
}
