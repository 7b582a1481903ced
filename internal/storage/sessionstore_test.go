package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/valter-silva-au/taskflow/pkg/models"
	"gopkg.in/yaml.v3"
)

func recv(t *testing.T, ch <-chan models.Session) models.Session {
	t.Helper()
	select {
	case s := <-ch:
		return s
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for session notification")
		return models.Session{}
	}
}

func TestSessionStore_GetEmptyWhenMissing(t *testing.T) {
	store := NewSessionStoreManager(t.TempDir(), nil)

	sess, err := store.Get()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sess.Active() {
		t.Errorf("expected empty session, got %+v", sess)
	}
	if store.Token() != "" {
		t.Errorf("Token() = %q, want empty", store.Token())
	}
}

func TestSessionStore_SetWritesSingleDocument(t *testing.T) {
	dir := t.TempDir()
	store := NewSessionStoreManager(dir, nil)

	if err := store.Set("tok-123", models.User{ID: 7, Username: "testuser"}); err != nil {
		t.Fatalf("Set: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, SessionFileName))
	if err != nil {
		t.Fatalf("reading session file: %v", err)
	}
	var onDisk models.Session
	if err := yaml.Unmarshal(data, &onDisk); err != nil {
		t.Fatalf("parsing session file: %v", err)
	}
	if onDisk.Token != "tok-123" {
		t.Errorf("Token = %q, want tok-123", onDisk.Token)
	}
	if onDisk.User == nil || onDisk.User.Username != "testuser" || onDisk.User.ID != 7 {
		t.Errorf("User = %+v, want {7 testuser}", onDisk.User)
	}

	info, err := os.Stat(filepath.Join(dir, SessionFileName))
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Errorf("session file mode = %o, want 600", perm)
	}

	leftovers, _ := filepath.Glob(filepath.Join(dir, ".session.yaml.tmp-*"))
	if len(leftovers) != 0 {
		t.Errorf("temp files left behind: %v", leftovers)
	}
}

func TestSessionStore_SetRejectsEmptyToken(t *testing.T) {
	store := NewSessionStoreManager(t.TempDir(), nil)
	if err := store.Set("", models.User{Username: "x"}); err == nil {
		t.Fatal("expected error for empty token")
	}
}

func TestSessionStore_ClearRemovesTokenAndUser(t *testing.T) {
	dir := t.TempDir()
	store := NewSessionStoreManager(dir, nil)
	if err := store.Set("tok", models.User{ID: 1, Username: "a"}); err != nil {
		t.Fatalf("Set: %v", err)
	}

	if err := store.Clear(); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	sess, err := store.Get()
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if sess.Token != "" || sess.User != nil {
		t.Errorf("expected token and user absent, got %+v", sess)
	}
	if _, err := os.Stat(filepath.Join(dir, SessionFileName)); !os.IsNotExist(err) {
		t.Errorf("expected session file removed, stat err = %v", err)
	}

	// Clearing twice is not an error.
	if err := store.Clear(); err != nil {
		t.Errorf("second Clear: %v", err)
	}
}

func TestSessionStore_UserWithoutTokenIsEmpty(t *testing.T) {
	dir := t.TempDir()
	writeRaw := "user:\n  id: 3\n  username: ghost\n"
	if err := os.WriteFile(filepath.Join(dir, SessionFileName), []byte(writeRaw), 0o600); err != nil {
		t.Fatal(err)
	}

	sess, err := NewSessionStoreManager(dir, nil).Get()
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if sess.User != nil {
		t.Errorf("expected user dropped without a token, got %+v", sess.User)
	}
}

func TestSessionStore_SubscribersSeeSetAndClear(t *testing.T) {
	store := NewSessionStoreManager(t.TempDir(), nil)
	ch, unsubscribe := store.Subscribe()
	defer unsubscribe()

	if err := store.Set("tok", models.User{ID: 1, Username: "a"}); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if got := recv(t, ch); got.Token != "tok" {
		t.Errorf("notified token = %q, want tok", got.Token)
	}

	if err := store.Clear(); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if got := recv(t, ch); got.Active() {
		t.Errorf("expected cleared session notification, got %+v", got)
	}
}

func TestSessionStore_SlowSubscriberGetsLatest(t *testing.T) {
	store := NewSessionStoreManager(t.TempDir(), nil)
	ch, unsubscribe := store.Subscribe()
	defer unsubscribe()

	for _, tok := range []string{"one", "two", "three"} {
		if err := store.Set(tok, models.User{Username: tok}); err != nil {
			t.Fatalf("Set: %v", err)
		}
	}
	if got := recv(t, ch); got.Token != "three" {
		t.Errorf("buffered token = %q, want three", got.Token)
	}
}

func TestSessionStore_UnsubscribeClosesChannel(t *testing.T) {
	store := NewSessionStoreManager(t.TempDir(), nil)
	ch, unsubscribe := store.Subscribe()
	unsubscribe()
	unsubscribe()

	if _, ok := <-ch; ok {
		t.Error("expected closed channel after unsubscribe")
	}
	if err := store.Set("tok", models.User{}); err != nil {
		t.Fatalf("Set after unsubscribe: %v", err)
	}
}

func TestSessionStore_WatchSeesOtherProcessWrites(t *testing.T) {
	dir := t.TempDir()
	watching := NewSessionStoreManager(dir, nil)
	other := NewSessionStoreManager(dir, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ch, unsubscribe := watching.Subscribe()
	defer unsubscribe()
	if err := watching.Watch(ctx); err != nil {
		t.Fatalf("Watch: %v", err)
	}

	if err := other.Set("from-other", models.User{ID: 2, Username: "b"}); err != nil {
		t.Fatalf("Set: %v", err)
	}
	waitFor(t, ch, func(s models.Session) bool { return s.Token == "from-other" })

	if err := other.Clear(); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	waitFor(t, ch, func(s models.Session) bool { return !s.Active() })
}

// waitFor drains ch until a session satisfying ok arrives.
func waitFor(t *testing.T, ch <-chan models.Session, ok func(models.Session) bool) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case got := <-ch:
			if ok(got) {
				return
			}
		case <-deadline:
			t.Fatal("timed out waiting for watcher notification")
		}
	}
}
