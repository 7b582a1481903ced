package observability

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

func openTestLog(t *testing.T) (EventLog, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "activity.jsonl")
	log, err := NewJSONLEventLog(path)
	if err != nil {
		t.Fatalf("creating event log: %v", err)
	}
	t.Cleanup(func() { _ = log.Close() })
	return log, path
}

func TestEventLog_WriteAndRead(t *testing.T) {
	log, _ := openTestLog(t)

	now := time.Now().UTC().Truncate(time.Millisecond)
	events := []Event{
		{Time: now, Level: "INFO", Type: EventTaskCreated, Message: "task created", Data: map[string]any{"task_id": float64(7)}},
		{Time: now.Add(time.Second), Level: "WARN", Type: EventExpired, Message: "session expired"},
	}
	for _, e := range events {
		if err := log.Write(e); err != nil {
			t.Fatalf("writing event: %v", err)
		}
	}

	result, err := log.Read(EventFilter{})
	if err != nil {
		t.Fatalf("reading events: %v", err)
	}
	if len(result) != 2 {
		t.Fatalf("expected 2 events, got %d", len(result))
	}
	if result[0].Type != EventTaskCreated || result[0].Data["task_id"] != float64(7) {
		t.Errorf("first event = %+v", result[0])
	}
	if result[1].Level != "WARN" {
		t.Errorf("expected level WARN, got %s", result[1].Level)
	}
}

func TestEventLog_Filters(t *testing.T) {
	log, _ := openTestLog(t)

	base := time.Date(2025, 1, 15, 10, 0, 0, 0, time.UTC)
	for i, typ := range []string{EventLogin, EventTaskCreated, EventStatusChanged, EventTaskCreated, EventLogout} {
		e := Event{Time: base.Add(time.Duration(i) * time.Hour), Level: "INFO", Type: typ, Message: typ}
		if err := log.Write(e); err != nil {
			t.Fatalf("writing event: %v", err)
		}
	}

	byType, err := log.Read(EventFilter{Type: EventTaskCreated})
	if err != nil {
		t.Fatalf("reading: %v", err)
	}
	if len(byType) != 2 {
		t.Errorf("type filter: got %d events, want 2", len(byType))
	}

	since := base.Add(90 * time.Minute)
	until := base.Add(3*time.Hour + 30*time.Minute)
	ranged, _ := log.Read(EventFilter{Since: &since, Until: &until})
	if len(ranged) != 2 || ranged[0].Type != EventStatusChanged {
		t.Errorf("time filter: got %+v", ranged)
	}

	limited, _ := log.Read(EventFilter{Limit: 2})
	if len(limited) != 2 || limited[1].Type != EventLogout {
		t.Errorf("limit keeps newest: got %+v", limited)
	}

	lower, _ := log.Read(EventFilter{Level: "info"})
	if len(lower) != 5 {
		t.Errorf("level filter is case-insensitive: got %d", len(lower))
	}
}

func TestEventLog_SkipsMalformedLines(t *testing.T) {
	log, path := openTestLog(t)
	if err := log.Write(NewEvent(EventLogin, nil)); err != nil {
		t.Fatal(err)
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		t.Fatal(err)
	}
	_, _ = f.WriteString("{not json\n\n")
	_ = f.Close()

	events, err := log.Read(EventFilter{})
	if err != nil {
		t.Fatalf("reading: %v", err)
	}
	if len(events) != 1 {
		t.Errorf("got %d events, want 1", len(events))
	}
}

func TestEventLog_FilePermissions(t *testing.T) {
	_, path := openTestLog(t)
	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Errorf("mode = %o, want 600", perm)
	}
}

func TestNewEvent(t *testing.T) {
	e := NewEvent(EventExpired, map[string]any{"username": "a"})
	if e.Level != "WARN" || e.Message != "session expired" {
		t.Errorf("expired event = %+v", e)
	}
	if e.Time.IsZero() {
		t.Error("event time not set")
	}

	e = NewEvent(EventTaskDeleted, nil)
	if e.Level != "INFO" || e.Message != "task deleted" {
		t.Errorf("deleted event = %+v", e)
	}
}

func TestEventLog_ConcurrentWrites(t *testing.T) {
	log, _ := openTestLog(t)

	const n = 50
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := log.Write(NewEvent(EventTaskCreated, nil)); err != nil {
				t.Errorf("writing event: %v", err)
			}
		}()
	}
	wg.Wait()

	events, err := log.Read(EventFilter{})
	if err != nil {
		t.Fatalf("reading: %v", err)
	}
	if len(events) != n {
		t.Errorf("got %d events, want %d", len(events), n)
	}
}
