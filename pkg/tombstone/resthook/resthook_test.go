package resthook

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/cairnhq/cairn/pkg/tombstone"
)

func TestUpsertTombstone(t *testing.T) {
	var got *http.Request
	var body tombstone.Record
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Clone(context.Background())
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	client := New(srv.URL, "secret-key")
	rec := tombstone.Record{
		TombstoneID:  "abcd1234abcd1234",
		ProjectName:  "proj",
		FunctionName: "oldFunc",
		FilePath:     "pkg/a.go",
		LineNumber:   10,
		Reason:       "no references found in codebase",
		RegisteredAt: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		Status:       tombstone.StatusActive,
	}
	if err := client.UpsertTombstone(context.Background(), rec); err != nil {
		t.Fatalf("UpsertTombstone() error: %v", err)
	}

	if got.Method != http.MethodPost || got.URL.Path != "/rest/v1/tombstones" {
		t.Errorf("request = %s %s", got.Method, got.URL.Path)
	}
	if got.Header.Get("apikey") != "secret-key" {
		t.Errorf("apikey header = %q", got.Header.Get("apikey"))
	}
	if got.Header.Get("Authorization") != "Bearer secret-key" {
		t.Errorf("Authorization header = %q", got.Header.Get("Authorization"))
	}
	if got.Header.Get("Prefer") != "resolution=merge-duplicates" {
		t.Errorf("Prefer header = %q", got.Header.Get("Prefer"))
	}
	if body.TombstoneID != rec.TombstoneID || body.Status != tombstone.StatusActive {
		t.Errorf("payload = %+v", body)
	}
}

func TestAppendEvent(t *testing.T) {
	var got *http.Request
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Clone(context.Background())
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	client := New(srv.URL, "k")
	err := client.AppendEvent(context.Background(), tombstone.Event{
		TombstoneID: "abcd1234abcd1234",
		ProjectName: "proj",
		TriggeredAt: time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("AppendEvent() error: %v", err)
	}
	if got.URL.Path != "/rest/v1/tombstone_events" {
		t.Errorf("path = %q", got.URL.Path)
	}
	if got.Header.Get("Prefer") != "" {
		t.Errorf("events insert should not request upsert, Prefer = %q", got.Header.Get("Prefer"))
	}
}

func TestListTombstones(t *testing.T) {
	cutoff := time.Date(2026, 2, 22, 12, 0, 0, 0, time.UTC)
	records := []tombstone.Record{
		{TombstoneID: "a", ProjectName: "proj", FunctionName: "f1", Status: tombstone.StatusActive},
		{TombstoneID: "b", ProjectName: "proj", FunctionName: "f2", Status: tombstone.StatusActive},
	}

	var got *http.Request
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Clone(context.Background())
		json.NewEncoder(w).Encode(records)
	}))
	defer srv.Close()

	client := New(srv.URL, "k")
	out, err := client.ListTombstones(context.Background(), "proj", tombstone.StatusActive, cutoff)
	if err != nil {
		t.Fatalf("ListTombstones() error: %v", err)
	}
	if len(out) != 2 || out[0].TombstoneID != "a" {
		t.Errorf("records = %v", out)
	}

	q := got.URL.Query()
	if q.Get("project_name") != "eq.proj" {
		t.Errorf("project filter = %q", q.Get("project_name"))
	}
	if q.Get("status") != "eq.active" {
		t.Errorf("status filter = %q", q.Get("status"))
	}
	if q.Get("registered_at") != "lt.2026-02-22T12:00:00Z" {
		t.Errorf("cutoff filter = %q", q.Get("registered_at"))
	}
	if q.Get("order") != "registered_at.asc" {
		t.Errorf("order = %q", q.Get("order"))
	}
}

func TestListEvents(t *testing.T) {
	var got *http.Request
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Clone(context.Background())
		json.NewEncoder(w).Encode([]tombstone.Event{{TombstoneID: "a"}})
	}))
	defer srv.Close()

	client := New(srv.URL, "k")
	events, err := client.ListEvents(context.Background(), []string{"a", "b"})
	if err != nil {
		t.Fatalf("ListEvents() error: %v", err)
	}
	if len(events) != 1 {
		t.Errorf("events = %v", events)
	}
	if q := got.URL.Query().Get("tombstone_id"); q != "in.(a,b)" {
		t.Errorf("id filter = %q", q)
	}
}

func TestListEventsEmptyInput(t *testing.T) {
	client := New("http://unused.invalid", "k")
	events, err := client.ListEvents(context.Background(), nil)
	if err != nil || events != nil {
		t.Errorf("ListEvents(nil) = %v, %v; want nil, nil without any request", events, err)
	}
}

func TestErrorStatusSurfaced(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"permission denied"}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	client := New(srv.URL, "bad-key")
	err := client.AppendEvent(context.Background(), tombstone.Event{TombstoneID: "x"})
	if err == nil {
		t.Fatal("expected error for 401 response")
	}
}
